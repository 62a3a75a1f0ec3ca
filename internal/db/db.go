package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

const uniqueViolation = "23505"

type Database struct {
	Conn *sql.DB
	// X wraps Conn for struct scanning and named queries.
	X *sqlx.DB
}

func NewDatabase(dsn string) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("db: empty connection string")
	}
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn, X: sqlx.NewDb(conn, "pgx")}, nil
}

func (d *Database) Close() error {
	return d.Conn.Close()
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (d *Database) AutoMigrate(ctx context.Context) error {
	for _, query := range schema {
		if _, err := d.Conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		full_name VARCHAR(120) NOT NULL DEFAULT '',
		phone VARCHAR(40) NOT NULL DEFAULT '',
		location VARCHAR(120) NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		rating NUMERIC(3,2) NOT NULL DEFAULT 0,
		total_sales INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS user_roles (
		user_id UUID REFERENCES users(id) ON DELETE CASCADE,
		role VARCHAR(20) NOT NULL,
		PRIMARY KEY (user_id, role)
	)`,

	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		seller_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC(14,2) NOT NULL CHECK (price >= 0),
		category VARCHAR(40) NOT NULL,
		condition VARCHAR(40) NOT NULL,
		location VARCHAR(120) NOT NULL,
		images TEXT[] NOT NULL DEFAULT '{}',
		approval_status VARCHAR(10) NOT NULL DEFAULT 'pending'
			CHECK (approval_status IN ('pending', 'approved', 'rejected')),
		is_verified BOOLEAN NOT NULL DEFAULT false,
		is_popular BOOLEAN NOT NULL DEFAULT false,
		views_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS products_category_status_idx ON products (category, approval_status)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		buyer_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		seller_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (product_id, buyer_id, seller_id)
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	)`,

	`CREATE INDEX IF NOT EXISTS messages_conversation_created_idx ON messages (conversation_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS reported_products (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		reporter_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		reason TEXT NOT NULL,
		status VARCHAR(10) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'resolved')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		resolved_at TIMESTAMPTZ,
		resolved_by UUID REFERENCES users(id) ON DELETE SET NULL
	)`,
}
