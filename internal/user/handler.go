package user

import (
	"errors"
	"net/http"

	"classifieds/internal/logging"
	"classifieds/internal/session"
	"classifieds/internal/web"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Service.Register(r.Context(), req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("security_event",
		"event", "auth.register", "outcome", "success", "user_id", res.ID)
	web.JSON(w, http.StatusCreated, res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Service.Login(r.Context(), req)
	if err != nil {
		logging.FromContext(r.Context()).Warn("security_event",
			"event", "auth.login", "outcome", "fail")
		h.writeErr(w, r, err)
		return
	}

	web.JSON(w, http.StatusOK, res)
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	if err := h.Service.SignOut(r.Context(), s); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session echoes the caller's session together with their profile and roles.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	profile, err := h.Service.Profile(r.Context(), s.UserID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	roles, err := h.Service.Roles(r.Context(), s.UserID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{
		"session": s,
		"profile": profile,
		"roles":   roles,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	profile, err := h.Service.Profile(r.Context(), s.UserID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, profile)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req ProfileUpdate
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s, _ := session.FromContext(r.Context())
	profile, err := h.Service.UpdateProfile(r.Context(), s.UserID, req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, profile)
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		web.Error(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, ErrDuplicateEmail):
		web.Error(w, http.StatusConflict, "email already registered")
	case errors.Is(err, ErrInvalidCredentials):
		web.Error(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, ErrUserNotFound):
		web.Error(w, http.StatusNotFound, "profile not found")
	default:
		logging.FromContext(r.Context()).Error("user request failed", "err", err)
		web.Error(w, http.StatusInternalServerError, "internal error")
	}
}
