package user

import "time"

// RoleAdmin gates the moderation console.
const RoleAdmin = "admin"

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Profile is the public face of a user: what sellers, buyers and admins see.
type Profile struct {
	ID         string    `db:"id" json:"id"`
	FullName   string    `db:"full_name" json:"full_name"`
	Phone      string    `db:"phone" json:"phone,omitempty"`
	Location   string    `db:"location" json:"location,omitempty"`
	AvatarURL  string    `db:"avatar_url" json:"avatar_url,omitempty"`
	Rating     float64   `db:"rating" json:"rating"`
	TotalSales int       `db:"total_sales" json:"total_sales"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"omitempty,max=40"`
	Location string `json:"location" validate:"omitempty,max=120"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Profile     Profile   `json:"profile"`
}

// ProfileUpdate carries only the fields the caller wants to change.
type ProfileUpdate struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=1,max=120"`
	Phone     *string `json:"phone" validate:"omitempty,max=40"`
	Location  *string `json:"location" validate:"omitempty,max=120"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,http_url"`
}
