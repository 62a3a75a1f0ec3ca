package chat

import "time"

// Conversation is a buyer/seller thread about one listing, joined with the
// names and listing fields the inbox needs.
type Conversation struct {
	ID           string    `db:"id" json:"id"`
	ProductID    string    `db:"product_id" json:"product_id"`
	BuyerID      string    `db:"buyer_id" json:"buyer_id"`
	SellerID     string    `db:"seller_id" json:"seller_id"`
	ProductTitle string    `db:"product_title" json:"product_title"`
	ProductPrice float64   `db:"product_price" json:"product_price"`
	BuyerName    string    `db:"buyer_name" json:"buyer_name"`
	SellerName   string    `db:"seller_name" json:"seller_name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether userID is the buyer or the seller.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.BuyerID == userID || c.SellerID == userID)
}

type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	SenderName     string    `db:"sender_name" json:"sender_name"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

const (
	EventHistory        = "history"
	EventMessageCreated = "message.created"
	EventError          = "error"
)

// Event is the JSON frame written to WebSocket subscribers and published on Redis.
type Event struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// HistoryEvent is the first frame of every subscription. An empty
// conversation still carries "messages": [].
type HistoryEvent struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
}

func newHistoryEvent(msgs []Message) HistoryEvent {
	if msgs == nil {
		msgs = []Message{}
	}
	return HistoryEvent{Type: EventHistory, Messages: msgs}
}

// BroadcastMessage pipes a Redis payload to the hub for one conversation.
type BroadcastMessage struct {
	ConversationID string
	Payload        []byte
}

// WSMessage is what the browser sends over the socket.
type WSMessage struct {
	Content string `json:"content"`
}

type StartRequest struct {
	ProductID string `json:"product_id"`
}

type SendRequest struct {
	Content string `json:"content"`
}
