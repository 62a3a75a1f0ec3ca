package chat

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"classifieds/internal/logging"
)

const MaxMessageLength = 2000

var (
	ErrNotFound        = errors.New("chat: conversation not found")
	ErrForbidden       = errors.New("chat: not a participant")
	ErrProductNotFound = errors.New("chat: product not found")
	ErrSelfContact     = errors.New("chat: cannot message yourself")
	ErrEmptyMessage    = errors.New("chat: message is empty")
	ErrMessageTooLong  = errors.New("chat: message too long")
)

// SendFailureMessage is the text shown when a message could not be sent.
func SendFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return "Message cannot be empty"
	case errors.Is(err, ErrMessageTooLong):
		return "Message is too long"
	default:
		return "Could not send message"
	}
}

type Store interface {
	ProductSeller(ctx context.Context, productID string) (sellerID, status string, err error)
	FindOrCreate(ctx context.Context, productID, buyerID, sellerID string) (string, error)
	Get(ctx context.Context, id string) (Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]Message, error)
	InsertMessage(ctx context.Context, conversationID, senderID, content string) (Message, error)
}

type Publisher interface {
	Publish(ctx context.Context, conversationID string, ev Event) error
}

type Service struct {
	repo      Store
	publisher Publisher
}

func NewService(repo Store, publisher Publisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

// StartConversation returns the buyer's conversation with the listing's seller,
// creating it on first contact.
func (s *Service) StartConversation(ctx context.Context, buyerID, productID string) (string, error) {
	sellerID, status, err := s.repo.ProductSeller(ctx, productID)
	if err != nil {
		return "", err
	}
	if status != "approved" && sellerID != buyerID {
		return "", ErrProductNotFound
	}
	if sellerID == buyerID {
		return "", ErrSelfContact
	}
	return s.repo.FindOrCreate(ctx, productID, buyerID, sellerID)
}

// Conversation returns the conversation if viewerID takes part in it.
func (s *Service) Conversation(ctx context.Context, id, viewerID string) (Conversation, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if !c.HasParticipant(viewerID) {
		return Conversation{}, ErrForbidden
	}
	return c, nil
}

func (s *Service) History(ctx context.Context, id, viewerID string) ([]Message, error) {
	if _, err := s.Conversation(ctx, id, viewerID); err != nil {
		return nil, err
	}
	return s.repo.Messages(ctx, id)
}

// Send stores the message and pushes the full row to the conversation's
// subscribers, the sender included.
func (s *Service) Send(ctx context.Context, id, senderID, content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return Message{}, ErrMessageTooLong
	}
	if _, err := s.Conversation(ctx, id, senderID); err != nil {
		return Message{}, err
	}

	m, err := s.repo.InsertMessage(ctx, id, senderID, content)
	if err != nil {
		return Message{}, err
	}

	// The row is stored; a failed push only delays delivery until the next history load.
	if err := s.publisher.Publish(ctx, id, Event{Type: EventMessageCreated, Message: &m}); err != nil {
		logging.FromContext(ctx).Error("chat publish failed", "conversation_id", id, "err", err)
	}
	return m, nil
}

func (s *Service) ForUser(ctx context.Context, userID string) ([]Conversation, error) {
	return s.repo.ListForUser(ctx, userID)
}
