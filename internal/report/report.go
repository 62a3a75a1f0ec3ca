// Package report lets signed-in users flag listings for moderator review.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
)

var (
	ErrNotFound        = errors.New("report: not found")
	ErrProductNotFound = errors.New("report: product not found")
	ErrEmptyReason     = errors.New("report: reason is required")
)

// Report is a flagged listing, joined with the listing title and reporter name.
type Report struct {
	ID           string     `db:"id" json:"id"`
	ProductID    string     `db:"product_id" json:"product_id"`
	ProductTitle string     `db:"product_title" json:"product_title"`
	ReporterID   string     `db:"reporter_id" json:"reporter_id"`
	ReporterName string     `db:"reporter_name" json:"reporter_name"`
	Reason       string     `db:"reason" json:"reason"`
	Status       string     `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy   *string    `db:"resolved_by" json:"resolved_by,omitempty"`
}

type CreateRequest struct {
	Reason string `json:"reason"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const reportSelect = `
	SELECT r.id, r.product_id, COALESCE(p.title, '') AS product_title,
		r.reporter_id, COALESCE(pr.full_name, '') AS reporter_name,
		r.reason, r.status, r.created_at, r.resolved_at, r.resolved_by
	FROM reported_products r
	LEFT JOIN products p ON p.id = r.product_id
	LEFT JOIN profiles pr ON pr.id = r.reporter_id`

func (r *Repository) Insert(ctx context.Context, reporterID, productID, reason string) (Report, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO reported_products (product_id, reporter_id, reason)
		SELECT id, $2, $3 FROM products WHERE id = $1
		RETURNING id`, productID, reporterID, reason).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrProductNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("report: insert: %w", err)
	}
	return r.get(ctx, id)
}

func (r *Repository) get(ctx context.Context, id string) (Report, error) {
	var rep Report
	err := r.db.GetContext(ctx, &rep, reportSelect+` WHERE r.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("report: get: %w", err)
	}
	return rep, nil
}

// List returns every report, newest first.
func (r *Repository) List(ctx context.Context) ([]Report, error) {
	out := []Report{}
	if err := r.db.SelectContext(ctx, &out, reportSelect+` ORDER BY r.created_at DESC`); err != nil {
		return nil, fmt.Errorf("report: list: %w", err)
	}
	return out, nil
}

// Resolve marks the report resolved by adminID. Concurrent calls are last-write-wins.
func (r *Repository) Resolve(ctx context.Context, id, adminID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reported_products
		SET status = 'resolved', resolved_at = now(), resolved_by = $2
		WHERE id = $1`, id, adminID)
	if err != nil {
		return fmt.Errorf("report: resolve: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type Store interface {
	Insert(ctx context.Context, reporterID, productID, reason string) (Report, error)
	List(ctx context.Context) ([]Report, error)
	Resolve(ctx context.Context, id, adminID string) error
}

type Service struct {
	repo Store
}

func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, reporterID, productID, reason string) (Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Report{}, ErrEmptyReason
	}
	return s.repo.Insert(ctx, reporterID, productID, reason)
}

func (s *Service) List(ctx context.Context) ([]Report, error) {
	return s.repo.List(ctx)
}

func (s *Service) Resolve(ctx context.Context, id, adminID string) error {
	return s.repo.Resolve(ctx, id, adminID)
}

// PendingCount counts reports still awaiting a moderator.
func PendingCount(reports []Report) int {
	n := 0
	for _, r := range reports {
		if r.Status == StatusPending {
			n++
		}
	}
	return n
}
