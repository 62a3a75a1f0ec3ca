package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrNotFound = errors.New("listing: not found")

const listingColumns = `id, seller_id, title, description, price, category, condition, location,
	images, approval_status, is_verified, is_popular, views_count, created_at, updated_at`

const sellerColumns = `id, full_name, phone, location, avatar_url, rating, total_sales, created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ListApproved returns approved listings, restricted to category when it is set.
func (r *Repository) ListApproved(ctx context.Context, category string) ([]Listing, error) {
	items := []Listing{}
	query := `SELECT ` + listingColumns + ` FROM products
		WHERE approval_status = 'approved' AND ($1::text = '' OR category = $1)`
	if err := r.db.SelectContext(ctx, &items, query, category); err != nil {
		return nil, fmt.Errorf("listing: list approved: %w", err)
	}
	return items, nil
}

// CountApproved returns the number of approved listings per category slug.
func (r *Repository) CountApproved(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Category string `db:"category"`
		N        int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT category, COUNT(*) AS n FROM products
		WHERE approval_status = 'approved' GROUP BY category`); err != nil {
		return nil, fmt.Errorf("listing: count approved: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.N
	}
	return counts, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Listing, error) {
	var l Listing
	err := r.db.GetContext(ctx, &l, `SELECT `+listingColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Listing{}, ErrNotFound
	}
	if err != nil {
		return Listing{}, fmt.Errorf("listing: get: %w", err)
	}
	return l, nil
}

func (r *Repository) GetSeller(ctx context.Context, sellerID string) (Seller, error) {
	var s Seller
	err := r.db.GetContext(ctx, &s, `SELECT `+sellerColumns+` FROM profiles WHERE id = $1`, sellerID)
	if errors.Is(err, sql.ErrNoRows) {
		return Seller{}, ErrSellerNotFound
	}
	if err != nil {
		return Seller{}, fmt.Errorf("listing: get seller: %w", err)
	}
	return s, nil
}

// IncrementViews bumps views_count in place and returns the new value.
func (r *Repository) IncrementViews(ctx context.Context, id string) (int, error) {
	var views int
	err := r.db.QueryRowContext(ctx, `
		UPDATE products SET views_count = views_count + 1
		WHERE id = $1 RETURNING views_count`, id).Scan(&views)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("listing: increment views: %w", err)
	}
	return views, nil
}

func (r *Repository) Insert(ctx context.Context, l Listing) (Listing, error) {
	if l.Images == nil {
		l.Images = pq.StringArray{}
	}
	var out Listing
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO products (seller_id, title, description, price, category, condition, location, images, approval_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+listingColumns,
		l.SellerID, l.Title, l.Description, l.Price, l.Category, l.Condition, l.Location, l.Images, l.ApprovalStatus)
	if err != nil {
		return Listing{}, fmt.Errorf("listing: insert: %w", err)
	}
	return out, nil
}

// ListBySeller returns a seller's listings newest first.
func (r *Repository) ListBySeller(ctx context.Context, sellerID string, approvedOnly bool) ([]Listing, error) {
	items := []Listing{}
	err := r.db.SelectContext(ctx, &items, `SELECT `+listingColumns+` FROM products
		WHERE seller_id = $1 AND (NOT $2::boolean OR approval_status = 'approved')
		ORDER BY created_at DESC`, sellerID, approvedOnly)
	if err != nil {
		return nil, fmt.Errorf("listing: list by seller: %w", err)
	}
	return items, nil
}

// ListAll returns every listing regardless of status, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]Listing, error) {
	items := []Listing{}
	if err := r.db.SelectContext(ctx, &items,
		`SELECT `+listingColumns+` FROM products ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("listing: list all: %w", err)
	}
	return items, nil
}

// SetStatus overwrites the approval status. Concurrent calls are last-write-wins.
func (r *Repository) SetStatus(ctx context.Context, id string, status ApprovalStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET approval_status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("listing: set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
