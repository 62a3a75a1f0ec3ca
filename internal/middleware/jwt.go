package myMiddleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"classifieds/internal/logging"
	"classifieds/internal/session"
	"classifieds/internal/web"
)

// SignInRoute is where clients are sent when a session is required.
const SignInRoute = "/auth"

// TokenValidator turns a bearer token into a session.
// This interface decouples 'middleware' from 'user'.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (session.Session, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

// Handle requires a valid session and redirects to sign-in otherwise.
func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := am.resolve(r)
		if !ok {
			logging.FromContext(r.Context()).Warn("security_event",
				"event", "auth.session", "outcome", "fail", "path", r.URL.Path)
			web.Redirect(w, http.StatusUnauthorized, "sign in required", SignInRoute)
			return
		}
		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
	})
}

// Optional attaches the session when a valid token is present but never rejects.
func (am *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, ok := am.resolve(r); ok {
			r = r.WithContext(session.WithSession(r.Context(), s))
		}
		next.ServeHTTP(w, r)
	})
}

func (am *AuthMiddleware) resolve(r *http.Request) (session.Session, bool) {
	tokenString := BearerToken(r)

	// Browsers cannot set headers on WebSocket upgrades.
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	if tokenString == "" {
		return session.Session{}, false
	}

	s, err := am.validator.ValidateToken(r.Context(), tokenString)
	if err != nil {
		logging.FromContext(r.Context()).Debug("token rejected", slog.String("err", err.Error()))
		return session.Session{}, false
	}
	return s, true
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}
