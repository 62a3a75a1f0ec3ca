package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Must be less than pongWait.
	maxMessageSize = 8192                // Maximum frame size allowed from peer.
	sendTimeout    = 10 * time.Second
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	Send           chan []byte
	ConversationID string
	UserID         string
	// onMessage stores a message the peer typed; the push comes back through the hub.
	onMessage func(ctx context.Context, content string) error
}

// ReadPump pumps frames from the websocket connection to onMessage.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read failed", "err", err, "conversation_id", c.ConversationID)
			}
			break
		}

		var in WSMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			c.reply(Event{Type: EventError, Error: "invalid message frame"})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err = c.onMessage(ctx, in.Content)
		cancel()
		if err != nil {
			c.reply(Event{Type: EventError, Error: SendFailureMessage(err)})
		}
	}
}

func (c *Client) reply(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	c.hub.Deliver(ctx, c, ev)
}

// WritePump writes the first frames, then pumps messages from the hub to the
// websocket connection. Each event is written as its own text frame.
func (c *Client) WritePump(first ...[]byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for _, message := range first {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
