package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const conversationSelect = `
	SELECT c.id, c.product_id, c.buyer_id, c.seller_id,
		p.title AS product_title, p.price AS product_price,
		COALESCE(b.full_name, '') AS buyer_name, COALESCE(s.full_name, '') AS seller_name,
		c.created_at, c.updated_at
	FROM conversations c
	JOIN products p ON p.id = c.product_id
	LEFT JOIN profiles b ON b.id = c.buyer_id
	LEFT JOIN profiles s ON s.id = c.seller_id`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ProductSeller returns the owner and approval status of a listing.
func (r *Repository) ProductSeller(ctx context.Context, productID string) (string, string, error) {
	var row struct {
		SellerID string `db:"seller_id"`
		Status   string `db:"approval_status"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT seller_id, approval_status FROM products WHERE id = $1`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrProductNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("chat: product seller: %w", err)
	}
	return row.SellerID, row.Status, nil
}

// FindOrCreate returns the id of the single conversation for the triple,
// inserting it when absent. Safe under concurrent callers.
func (r *Repository) FindOrCreate(ctx context.Context, productID, buyerID, sellerID string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO conversations (product_id, buyer_id, seller_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, buyer_id, seller_id) DO NOTHING
		RETURNING id`, productID, buyerID, sellerID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("chat: create conversation: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT id FROM conversations
		WHERE product_id = $1 AND buyer_id = $2 AND seller_id = $3`,
		productID, buyerID, sellerID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("chat: find conversation: %w", err)
	}
	return id, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Conversation, error) {
	var c Conversation
	err := r.db.GetContext(ctx, &c, conversationSelect+` WHERE c.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("chat: get conversation: %w", err)
	}
	return c, nil
}

// ListForUser returns the user's conversations, most recently active first.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]Conversation, error) {
	out := []Conversation{}
	err := r.db.SelectContext(ctx, &out, conversationSelect+`
		WHERE c.buyer_id = $1 OR c.seller_id = $1
		ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("chat: list conversations: %w", err)
	}
	return out, nil
}

// Messages returns the conversation history, oldest first.
func (r *Repository) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	out := []Message{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT m.id, m.conversation_id, m.sender_id, COALESCE(p.full_name, '') AS sender_name,
			m.content, m.created_at
		FROM messages m
		LEFT JOIN profiles p ON p.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at ASC, m.id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: messages: %w", err)
	}
	return out, nil
}

// InsertMessage stores a message and touches the conversation's updated_at.
func (r *Repository) InsertMessage(ctx context.Context, conversationID, senderID, content string) (Message, error) {
	var m Message
	err := r.db.GetContext(ctx, &m, `
		WITH m AS (
			INSERT INTO messages (conversation_id, sender_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, conversation_id, sender_id, content, created_at
		), touched AS (
			UPDATE conversations SET updated_at = now() WHERE id = $1
		)
		SELECT m.id, m.conversation_id, m.sender_id, COALESCE(p.full_name, '') AS sender_name,
			m.content, m.created_at
		FROM m LEFT JOIN profiles p ON p.id = m.sender_id`, conversationID, senderID, content)
	if err != nil {
		return Message{}, fmt.Errorf("chat: insert message: %w", err)
	}
	return m, nil
}
