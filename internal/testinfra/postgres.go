// Package testinfra provides the database fixtures used by integration tests.
package testinfra

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"classifieds/internal/db"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type PGContainer struct {
	C *postgres.PostgresContainer
}

// StartPostgres16 starts a Postgres 16 container and returns its DSN.
// If DATABASE_URL is set that database is reused instead.
func StartPostgres16(ctx context.Context) (*PGContainer, string, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return &PGContainer{}, dsn, nil
	}

	pgC, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("classifieds"),
		postgres.WithUsername("classifieds"),
		postgres.WithPassword("testpass"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", err
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, "", err
	}
	return &PGContainer{C: pgC}, dsn, nil
}

func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}

// Database returns a migrated database for the test, or skips the test when
// neither DATABASE_URL nor CLASSIFIEDS_INTEGRATION=1 is set.
func Database(t *testing.T) *db.Database {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" && os.Getenv("CLASSIFIEDS_INTEGRATION") != "1" {
		t.Skip("set DATABASE_URL or CLASSIFIEDS_INTEGRATION=1 to run integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, dsn, err := StartPostgres16(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	database, err := db.NewDatabase(dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := database.AutoMigrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

// SeedUser inserts a user with a profile and returns its id.
func SeedUser(t *testing.T, database *db.Database, fullName string) string {
	t.Helper()
	ctx := context.Background()

	var id string
	email := fmt.Sprintf("%s@example.com", uuid.NewString())
	if err := database.Conn.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, 'x') RETURNING id`, email).Scan(&id); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := database.Conn.ExecContext(ctx,
		`INSERT INTO profiles (id, full_name) VALUES ($1, $2)`, id, fullName); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return id
}

// SeedListing inserts a listing owned by sellerID with the given status and returns its id.
func SeedListing(t *testing.T, database *db.Database, sellerID, title, status string) string {
	t.Helper()
	var id string
	if err := database.Conn.QueryRowContext(context.Background(), `
		INSERT INTO products (seller_id, title, price, category, condition, location, approval_status)
		VALUES ($1, $2, 1000, 'electronics', 'Brand New', 'Lagos', $3) RETURNING id`,
		sellerID, title, status).Scan(&id); err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return id
}
