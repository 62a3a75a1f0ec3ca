package admin

import (
	"context"
	"errors"
	"net/http"

	"classifieds/internal/logging"
	myMiddleware "classifieds/internal/middleware"
	"classifieds/internal/session"
	"classifieds/internal/user"
	"classifieds/internal/web"
)

// RequireAdmin gates the console on the admin role. It must run after the auth middleware.
func RequireAdmin(checker myMiddleware.RoleChecker) func(http.Handler) http.Handler {
	return myMiddleware.RequireRole(checker, user.RoleAdmin)
}

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) Console(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Snapshot(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("admin snapshot failed", "err", err)
		web.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	web.JSON(w, http.StatusOK, snap)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.listingAction(w, r, h.Service.Approve)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.listingAction(w, r, h.Service.Reject)
}

func (h *Handler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		web.Error(w, http.StatusNotFound, "Failed to resolve report")
		return
	}
	s, _ := session.FromContext(r.Context())
	res, err := h.Service.ResolveReport(r.Context(), id, s.UserID)
	h.writeResult(w, r, "report.resolve", id, res, err)
}

func (h *Handler) listingAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id string) (ActionResult, error)) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		web.Error(w, http.StatusNotFound, "Product not found")
		return
	}
	res, err := action(r.Context(), id)
	h.writeResult(w, r, "listing.moderate", id, res, err)
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, event, id string, res ActionResult, err error) {
	s, _ := session.FromContext(r.Context())
	log := logging.FromContext(r.Context())

	var aerr *ActionError
	switch {
	case err == nil:
		log.Info("security_event", "event", "admin."+event, "outcome", "success",
			"target_id", id, "admin_id", s.UserID, "notice", res.Notice)
		web.JSON(w, http.StatusOK, res)
	case errors.As(err, &aerr) && errors.Is(err, ErrNotFound):
		web.Error(w, http.StatusNotFound, aerr.Notice)
	case errors.As(err, &aerr):
		log.Error("admin action failed", "event", event, "target_id", id, "err", err)
		web.Error(w, http.StatusInternalServerError, aerr.Notice)
	default:
		log.Error("admin snapshot failed", "err", err)
		web.Error(w, http.StatusInternalServerError, "internal error")
	}
}
