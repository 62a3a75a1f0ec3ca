package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "conversation:"

// Hub owns the sockets of this instance, grouped by conversation. Every
// message is published to Redis and fanned back out by SubscribeToRedis,
// so a publish on any instance reaches subscribers on all of them.
type Hub struct {
	rooms      map[string]map[*Client]bool
	broadcast  chan BroadcastMessage // From Redis -> Clients
	direct     chan delivery         // Hub -> one client
	Register   chan *Client
	Unregister chan *Client
	redis      *redis.Client
	log        *slog.Logger
	done       chan struct{}
}

type delivery struct {
	client  *Client
	payload []byte
}

func NewHub(redisClient *redis.Client, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan BroadcastMessage),
		direct:     make(chan delivery),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		redis:      redisClient,
		log:        log,
		done:       make(chan struct{}),
	}
}

// Start subscribes to Redis and then runs the hub until ctx is done.
// It returns once the subscription is confirmed.
func (h *Hub) Start(ctx context.Context) error {
	pubsub := h.redis.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("chat: subscribe: %w", err)
	}
	go h.Run(ctx)
	go h.SubscribeToRedis(ctx, pubsub)
	return nil
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, room := range h.rooms {
				for client := range room {
					close(client.Send)
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			return

		case client := <-h.Register:
			room, ok := h.rooms[client.ConversationID]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[client.ConversationID] = room
			}
			room[client] = true

		case client := <-h.Unregister:
			h.remove(client)

		case d := <-h.direct:
			if h.rooms[d.client.ConversationID][d.client] {
				h.send(d.client, d.payload)
			}

		case msg := <-h.broadcast:
			for client := range h.rooms[msg.ConversationID] {
				h.send(client, msg.Payload)
			}
		}
	}
}

// send drops clients whose buffer is full instead of blocking the hub.
func (h *Hub) send(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		h.log.Warn("dropping slow websocket client",
			"conversation_id", client.ConversationID, "user_id", client.UserID)
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	room, ok := h.rooms[client.ConversationID]
	if !ok || !room[client] {
		return
	}
	delete(room, client)
	close(client.Send)
	if len(room) == 0 {
		delete(h.rooms, client.ConversationID)
	}
}

// SubscribeToRedis forwards published events to the run loop.
func (h *Hub) SubscribeToRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			convID := strings.TrimPrefix(msg.Channel, channelPrefix)
			select {
			case h.broadcast <- BroadcastMessage{ConversationID: convID, Payload: []byte(msg.Payload)}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Publish sends ev to every subscriber of its conversation, on every instance.
func (h *Hub) Publish(ctx context.Context, conversationID string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := h.redis.Publish(ctx, channelPrefix+conversationID, payload).Err(); err != nil {
		return fmt.Errorf("chat: publish: %w", err)
	}
	return nil
}

// Deliver writes ev to a single client if it is still registered.
func (h *Hub) Deliver(ctx context.Context, client *Client, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case h.direct <- delivery{client: client, payload: payload}:
	case <-ctx.Done():
	case <-h.done:
	}
}

// Join registers client unless the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters client; it is a no-op once the hub has stopped.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}
