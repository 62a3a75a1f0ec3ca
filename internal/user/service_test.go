package user

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeRepository struct {
	mu       sync.Mutex
	users    map[string]User
	profiles map[string]Profile
	roles    map[string][]string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:    make(map[string]User),
		profiles: make(map[string]Profile),
		roles:    make(map[string][]string),
	}
}

func (f *fakeRepository) CreateUser(_ context.Context, email, hash string, p Profile) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return Profile{}, ErrDuplicateEmail
	}
	now := time.Now().UTC()
	id := uuid.NewString()
	f.users[email] = User{ID: id, Email: email, PasswordHash: hash, CreatedAt: now}
	p.ID = id
	p.CreatedAt, p.UpdatedAt = now, now
	f.profiles[id] = p
	return p, nil
}

func (f *fakeRepository) GetUserByEmail(_ context.Context, email string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeRepository) GetProfile(_ context.Context, id string) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return Profile{}, ErrUserNotFound
	}
	return p, nil
}

func (f *fakeRepository) UpdateProfile(_ context.Context, id string, u ProfileUpdate) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return Profile{}, ErrUserNotFound
	}
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Location != nil {
		p.Location = *u.Location
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	f.profiles[id] = p
	return p, nil
}

func (f *fakeRepository) ListProfiles(context.Context) ([]Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepository) Roles(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.roles[userID]...), nil
}

func (f *fakeRepository) GrantRole(_ context.Context, email, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return ErrUserNotFound
	}
	for _, r := range f.roles[u.ID] {
		if r == role {
			return nil
		}
	}
	f.roles[u.ID] = append(f.roles[u.ID], role)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newFakeRepository()
	return NewService(repo, NewRedisRevoker(client), "test-secret", time.Hour), repo, mr
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	profile, err := svc.Register(ctx, RegisterRequest{
		Email:    "  Ada@Example.com ",
		Password: "supersafe",
		FullName: "Ada Obi",
		Location: "Lagos",
	})
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}
	if profile.FullName != "Ada Obi" {
		t.Fatalf("expected full name %q got %q", "Ada Obi", profile.FullName)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("login: expected token, got empty string")
	}
	if resp.Profile.ID != profile.ID {
		t.Fatalf("login: expected profile %q got %q", profile.ID, resp.Profile.ID)
	}

	s, err := svc.ValidateToken(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if s.UserID != profile.ID {
		t.Fatalf("validate token: expected user %q got %q", profile.ID, s.UserID)
	}
	if s.Email != "ada@example.com" {
		t.Fatalf("validate token: expected normalized email, got %q", s.Email)
	}
	if s.TokenID == "" {
		t.Fatal("validate token: expected token id")
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "ada@example.com",
		Password: "short",
		FullName: "Ada Obi",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Message, "password") {
		t.Fatalf("expected message about password, got %q", verr.Message)
	}

	_, err = svc.Register(context.Background(), RegisterRequest{
		Email:    "not-an-email",
		Password: "supersafe",
		FullName: "Ada Obi",
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for bad email, got %v", err)
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := RegisterRequest{Email: "ada@example.com", Password: "supersafe", FullName: "Ada Obi"}

	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	req.Email = "ADA@example.com"
	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterRequest{Email: "ada@example.com", Password: "supersafe", FullName: "Ada"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong-password"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "supersafe"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestService_SignOutRevokesToken(t *testing.T) {
	svc, _, mr := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterRequest{Email: "ada@example.com", Password: "supersafe", FullName: "Ada"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	s, err := svc.ValidateToken(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if err := svc.SignOut(ctx, s); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, resp.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after sign out, got %v", err)
	}

	ttl := mr.TTL(revocationKey(s.TokenID))
	if ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected revocation ttl within token lifetime, got %v", ttl)
	}
}

func TestService_ValidateTokenRejectsTampering(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterRequest{Email: "ada@example.com", Password: "supersafe", FullName: "Ada"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	other := NewService(newFakeRepository(), svc.revoker, "another-secret", time.Hour)
	if _, err := other.ValidateToken(ctx, resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign secret, got %v", err)
	}
	if _, err := svc.ValidateToken(ctx, "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestService_ValidateTokenExpired(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterRequest{Email: "ada@example.com", Password: "supersafe", FullName: "Ada"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.ValidateToken(ctx, resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestService_GrantRole(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, RegisterRequest{Email: "admin@example.com", Password: "supersafe", FullName: "Admin"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ok, err := svc.HasRole(ctx, p.ID, RoleAdmin)
	if err != nil || ok {
		t.Fatalf("expected no admin role before grant, got ok=%v err=%v", ok, err)
	}
	if err := svc.GrantRole(ctx, " Admin@Example.com", RoleAdmin); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.GrantRole(ctx, "admin@example.com", RoleAdmin); err != nil {
		t.Fatalf("grant twice: %v", err)
	}
	ok, err = svc.HasRole(ctx, p.ID, RoleAdmin)
	if err != nil || !ok {
		t.Fatalf("expected admin role after grant, got ok=%v err=%v", ok, err)
	}
	if err := svc.GrantRole(ctx, "ghost@example.com", RoleAdmin); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for unknown email, got %v", err)
	}
}

func TestService_UpdateProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, RegisterRequest{Email: "ada@example.com", Password: "supersafe", FullName: "Ada"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	loc := "Abuja"
	updated, err := svc.UpdateProfile(ctx, p.ID, ProfileUpdate{Location: &loc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Location != "Abuja" || updated.FullName != "Ada" {
		t.Fatalf("unexpected profile after update: %+v", updated)
	}

	blank := "   "
	var verr *ValidationError
	if _, err := svc.UpdateProfile(ctx, p.ID, ProfileUpdate{FullName: &blank}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for blank name, got %v", err)
	}

	bad := "ftp://example.com/a.png"
	if _, err := svc.UpdateProfile(ctx, p.ID, ProfileUpdate{AvatarURL: &bad}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for non-http avatar, got %v", err)
	}
}
