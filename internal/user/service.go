package user

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"classifieds/internal/session"
	"classifieds/internal/web"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "classifieds"

var (
	ErrInvalidCredentials = errors.New("user: invalid credentials")
	ErrInvalidToken       = errors.New("user: invalid token")
	ErrTokenRevoked       = errors.New("user: token revoked")
)

// ValidationError wraps a failed request check with a user-facing message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string, p Profile) (Profile, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetProfile(ctx context.Context, id string) (Profile, error)
	UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	Roles(ctx context.Context, userID string) ([]string, error)
	GrantRole(ctx context.Context, email, role string) error
}

type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Service struct {
	repo      Store
	revoker   Revoker
	jwtSecret []byte
	tokenTTL  time.Duration
	validate  *validator.Validate
	now       func() time.Time
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func NewService(repo Store, revoker Revoker, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		repo:      repo,
		revoker:   revoker,
		jwtSecret: []byte(secret),
		tokenTTL:  tokenTTL,
		validate:  web.NewValidator(),
		now:       time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (Profile, error) {
	req.Email = normalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validate.Struct(req); err != nil {
		return Profile{}, &ValidationError{Message: web.ValidationMessage(err)}
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, fmt.Errorf("user: hash password: %w", err)
	}

	return s.repo.CreateUser(ctx, req.Email, string(hashedPwd), Profile{
		FullName: req.FullName,
		Phone:    strings.TrimSpace(req.Phone),
		Location: strings.TrimSpace(req.Location),
	})
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResponse{}, ErrInvalidCredentials
		}
		return LoginResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResponse{}, ErrInvalidCredentials
	}

	profile, err := s.repo.GetProfile(ctx, u.ID)
	if err != nil {
		return LoginResponse{}, err
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	ss, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("user: sign token: %w", err)
	}

	return LoginResponse{
		AccessToken: ss,
		ExpiresAt:   expiresAt.UTC(),
		Profile:     profile,
	}, nil
}

// ValidateToken implements the auth middleware's TokenValidator.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (session.Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return session.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return session.Session{}, ErrInvalidToken
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return session.Session{}, fmt.Errorf("user: check revocation: %w", err)
	}
	if revoked {
		return session.Session{}, ErrTokenRevoked
	}

	return session.Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SignOut revokes the session's token for the rest of its lifetime.
func (s *Service) SignOut(ctx context.Context, sess session.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if err := s.revoker.Revoke(ctx, sess.TokenID, ttl); err != nil {
		return fmt.Errorf("user: revoke token: %w", err)
	}
	return nil
}

func (s *Service) Profile(ctx context.Context, id string) (Profile, error) {
	return s.repo.GetProfile(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (Profile, error) {
	if u.FullName != nil {
		trimmed := strings.TrimSpace(*u.FullName)
		u.FullName = &trimmed
	}
	if err := s.validate.Struct(u); err != nil {
		return Profile{}, &ValidationError{Message: web.ValidationMessage(err)}
	}
	return s.repo.UpdateProfile(ctx, id, u)
}

func (s *Service) ListProfiles(ctx context.Context) ([]Profile, error) {
	return s.repo.ListProfiles(ctx)
}

func (s *Service) Roles(ctx context.Context, userID string) ([]string, error) {
	return s.repo.Roles(ctx, userID)
}

func (s *Service) HasRole(ctx context.Context, userID, role string) (bool, error) {
	roles, err := s.repo.Roles(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(roles, role), nil
}

func (s *Service) GrantRole(ctx context.Context, email, role string) error {
	return s.repo.GrantRole(ctx, normalizeEmail(email), role)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
