package myMiddleware

import (
	"context"
	"net/http"

	"classifieds/internal/logging"
	"classifieds/internal/session"
	"classifieds/internal/web"
)

// HomeRoute is where callers without the required role are sent.
const HomeRoute = "/"

type RoleChecker interface {
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

// RequireRole consults the caller's role assignments on every request.
// It must run after AuthMiddleware.Handle.
func RequireRole(checker RoleChecker, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := session.FromContext(r.Context())
			if !ok {
				web.Redirect(w, http.StatusUnauthorized, "sign in required", SignInRoute)
				return
			}
			allowed, err := checker.HasRole(r.Context(), s.UserID, role)
			if err != nil || !allowed {
				logging.FromContext(r.Context()).Warn("security_event",
					"event", "role."+role, "outcome", "fail", "user_id", s.UserID)
				web.Redirect(w, http.StatusForbidden, "You don't have "+role+" privileges", HomeRoute)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
