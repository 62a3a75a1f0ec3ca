// Package assistant is the business-advice chat bot for sellers.
package assistant

import (
	"context"
	"errors"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// MaxTurns bounds how much history is forwarded upstream.
	MaxTurns = 30
	// MaxTurnLength bounds a single message in runes.
	MaxTurnLength = 4000
)

const greeting = "Hello! I'm your AI Business Assistant. I can help you with business advice, " +
	"selling tips, pricing strategies, marketing ideas, and more. How can I assist you today?"

const systemPrompt = `You are a friendly business assistant for sellers on an online classifieds marketplace.
Give practical, concise advice on pricing, writing listings, product photos, negotiating with buyers,
marketing and growing a small business. Prices are usually in Nigerian Naira.
Warn sellers about common scams and never ask for passwords or payment details.`

var (
	ErrEmptyConversation = errors.New("messages are required")
	ErrLastTurnNotUser   = errors.New("the last message must come from the user")
	ErrInvalidRole       = errors.New("message role must be user or assistant")
	ErrEmptyTurn         = errors.New("message content is required")
	ErrTurnTooLong       = errors.New("message is too long")
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Service struct {
	completer Completer
}

func NewService(c Completer) *Service {
	return &Service{completer: c}
}

// Greeting is the assistant's opening message.
func Greeting() Turn {
	return Turn{Role: RoleAssistant, Content: greeting}
}

// Reply validates the transcript and asks the model for the next assistant turn.
func (s *Service) Reply(ctx context.Context, turns []Turn) (Turn, error) {
	history, err := normalize(turns)
	if err != nil {
		return Turn{}, err
	}

	prompt := make([]Turn, 0, len(history)+1)
	prompt = append(prompt, Turn{Role: RoleSystem, Content: systemPrompt})
	prompt = append(prompt, history...)

	text, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return Turn{}, err
	}
	return Turn{Role: RoleAssistant, Content: text}, nil
}

// normalize trims content, checks roles and keeps the most recent MaxTurns turns.
func normalize(turns []Turn) ([]Turn, error) {
	if len(turns) == 0 {
		return nil, ErrEmptyConversation
	}
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return nil, ErrInvalidRole
		}
		content := strings.TrimSpace(t.Content)
		if content == "" {
			return nil, ErrEmptyTurn
		}
		if len([]rune(content)) > MaxTurnLength {
			return nil, ErrTurnTooLong
		}
		out = append(out, Turn{Role: t.Role, Content: content})
	}
	if out[len(out)-1].Role != RoleUser {
		return nil, ErrLastTurnNotUser
	}
	if len(out) > MaxTurns {
		out = out[len(out)-MaxTurns:]
	}
	return out, nil
}
