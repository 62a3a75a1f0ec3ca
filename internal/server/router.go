// Package server assembles the HTTP surface: middleware chain, route
// groups and the client routing table.
package server

import (
	"context"
	"net/http"
	"time"

	"classifieds/internal/admin"
	"classifieds/internal/assistant"
	"classifieds/internal/chat"
	"classifieds/internal/dashboard"
	"classifieds/internal/listing"
	"classifieds/internal/logging"
	"classifieds/internal/media"
	myMiddleware "classifieds/internal/middleware"
	"classifieds/internal/report"
	"classifieds/internal/user"
	"classifieds/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Limiter throttles a route group. A nil Limiter disables throttling.
type Limiter interface {
	Middleware(next http.Handler) http.Handler
}

type Deps struct {
	Auth  *myMiddleware.AuthMiddleware
	Roles myMiddleware.RoleChecker

	Users     *user.Handler
	Listings  *listing.Handler
	Media     *media.Handler
	Chat      *chat.Handler
	Dashboard *dashboard.Handler
	Reports   *report.Handler
	Admin     *admin.Handler
	Assistant *assistant.Handler

	AuthLimiter      Limiter
	AssistantLimiter Limiter

	// Ready reports whether backing services are reachable.
	Ready func(ctx context.Context) error
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(myMiddleware.SecurityHeaders)
	r.Use(myMiddleware.CORS)

	r.Get("/healthz", healthz(d.Ready))
	r.Get("/api/routes", func(w http.ResponseWriter, r *http.Request) {
		web.JSON(w, http.StatusOK, map[string]any{"routes": ClientRoutes})
	})

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(throttle(d.AuthLimiter))
		r.Post("/api/auth/register", d.Users.Register)
		r.Post("/api/auth/login", d.Users.Login)
	})
	r.Get("/api/listings", d.Listings.Browse)
	r.Get("/api/categories", d.Listings.Categories)
	r.Get("/api/categories/{slug}", d.Listings.Category)
	r.Get("/api/sellers/{id}", d.Listings.Seller)
	r.With(d.Auth.Optional).Get("/api/listings/{id}", d.Listings.Detail)

	r.Group(func(r chi.Router) {
		r.Use(throttle(d.AssistantLimiter))
		r.Get("/api/assistant", d.Assistant.Greeting)
		r.Post("/api/assistant", d.Assistant.Reply)
	})

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(d.Auth.Handle)

		r.Post("/api/auth/signout", d.Users.SignOut)
		r.Get("/api/auth/session", d.Users.Session)
		r.Get("/api/me", d.Users.Me)
		r.Patch("/api/me", d.Users.UpdateMe)

		r.Post("/api/listings", d.Listings.Create)
		r.Post("/api/listings/{id}/reports", d.Reports.Create)
		if d.Media != nil {
			r.Post("/api/uploads/images", d.Media.UploadImage)
		}

		r.Get("/api/dashboard", d.Dashboard.Overview)

		r.Post("/api/conversations", d.Chat.Start)
		r.Get("/api/conversations", d.Chat.List)
		r.Get("/api/conversations/{id}", d.Chat.Get)
		r.Get("/api/conversations/{id}/messages", d.Chat.Messages)
		r.Post("/api/conversations/{id}/messages", d.Chat.Send)

		// WebSocket (Real-time)
		r.Get("/ws/conversations/{id}", d.Chat.ServeWs)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(admin.RequireAdmin(d.Roles))
			r.Get("/", d.Admin.Console)
			r.Post("/listings/{id}/approve", d.Admin.Approve)
			r.Post("/listings/{id}/reject", d.Admin.Reject)
			r.Post("/reports/{id}/resolve", d.Admin.ResolveReport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		web.Error(w, http.StatusNotFound, "page not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		web.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func throttle(l Limiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return l.Middleware
}

func healthz(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				logging.FromContext(r.Context()).Warn("readiness check failed", "err", err)
				web.Error(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		web.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
