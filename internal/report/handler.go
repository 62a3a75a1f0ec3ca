package report

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

// Create files a report against the listing in the {id} route parameter.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	productID, err := web.IDParam(r, "id")
	if err != nil {
		web.Error(w, http.StatusNotFound, "Product not found")
		return
	}
	var req CreateRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s, _ := session.FromContext(r.Context())
	rep, err := h.Service.Create(r.Context(), s.UserID, productID, req.Reason)
	switch {
	case errors.Is(err, ErrEmptyReason):
		web.Error(w, http.StatusBadRequest, "reason is required")
	case errors.Is(err, ErrProductNotFound):
		web.Error(w, http.StatusNotFound, "Product not found")
	case err != nil:
		logging.FromContext(r.Context()).Error("report create failed", "err", err)
		web.Error(w, http.StatusInternalServerError, "internal error")
	default:
		web.JSON(w, http.StatusCreated, rep)
	}
}
