package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"classifieds/internal/db"

	"github.com/jmoiron/sqlx"
)

var (
	ErrUserNotFound   = errors.New("user: not found")
	ErrDuplicateEmail = errors.New("user: email already registered")
)

const profileColumns = `id, full_name, phone, location, avatar_url, rating, total_sales, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts the identity and its profile in one transaction.
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string, p Profile) (Profile, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("user: begin: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`,
		email, passwordHash,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Profile{}, ErrDuplicateEmail
		}
		return Profile{}, fmt.Errorf("user: insert user: %w", err)
	}

	var out Profile
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO profiles (id, full_name, phone, location)
		VALUES ($1, $2, $3, $4)
		RETURNING `+profileColumns,
		id, p.FullName, p.Phone, p.Location,
	).StructScan(&out)
	if err != nil {
		return Profile{}, fmt.Errorf("user: insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Profile{}, fmt.Errorf("user: commit: %w", err)
	}
	return out, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("user: get by email: %w", err)
	}
	return u, nil
}

func (r *Repository) GetProfile(ctx context.Context, id string) (Profile, error) {
	var p Profile
	err := r.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, fmt.Errorf("user: get profile: %w", err)
	}
	return p, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (Profile, error) {
	var p Profile
	err := r.db.GetContext(ctx, &p, `
		UPDATE profiles SET
			full_name  = COALESCE($2, full_name),
			phone      = COALESCE($3, phone),
			location   = COALESCE($4, location),
			avatar_url = COALESCE($5, avatar_url),
			updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns,
		id, u.FullName, u.Phone, u.Location, u.AvatarURL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, fmt.Errorf("user: update profile: %w", err)
	}
	return p, nil
}

func (r *Repository) ListProfiles(ctx context.Context) ([]Profile, error) {
	profiles := []Profile{}
	if err := r.db.SelectContext(ctx, &profiles,
		`SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("user: list profiles: %w", err)
	}
	return profiles, nil
}

func (r *Repository) Roles(ctx context.Context, userID string) ([]string, error) {
	roles := []string{}
	if err := r.db.SelectContext(ctx, &roles,
		`SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID); err != nil {
		return nil, fmt.Errorf("user: roles: %w", err)
	}
	return roles, nil
}

// GrantRole assigns role to the user with the given email. Granting twice is a no-op.
func (r *Repository) GrantRole(ctx context.Context, email, role string) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role)
		SELECT id, $2 FROM users WHERE email = $1
		ON CONFLICT DO NOTHING`, email, role)
	if err != nil {
		return fmt.Errorf("user: grant role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetUserByEmail(ctx, email); err != nil {
			return err
		}
	}
	return nil
}
