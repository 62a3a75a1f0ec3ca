package listing

import (
	"errors"
	"net/http"

	"classifieds/internal/logging"
	"classifieds/internal/session"
	"classifieds/internal/web"

	"github.com/go-chi/chi/v5"
)

// DashboardRoute is where the client goes after submitting a listing.
const DashboardRoute = "/dashboard"

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.Browse(r.Context(), queryFrom(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, page)
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Service.Categories(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{"categories": cats, "conditions": Conditions()})
}

func (h *Handler) Category(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.Catalog(r.Context(), chi.URLParam(r, "slug"), queryFrom(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, page)
}

func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		web.Error(w, http.StatusNotFound, "Product not found")
		return
	}
	s, _ := session.FromContext(r.Context())
	detail, err := h.Service.Detail(r.Context(), id, s.UserID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, detail)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s, _ := session.FromContext(r.Context())
	l, err := h.Service.Create(r.Context(), s.UserID, req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("listing submitted", "listing_id", l.ID, "seller_id", s.UserID)
	web.JSON(w, http.StatusCreated, map[string]any{
		"listing":  l,
		"message":  "Product submitted for approval",
		"redirect": DashboardRoute,
	})
}

func (h *Handler) Seller(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		web.Error(w, http.StatusNotFound, "seller not found")
		return
	}
	page, err := h.Service.SellerProfile(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, page)
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		web.Error(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, ErrNotFound):
		web.Error(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, ErrSellerNotFound):
		web.Error(w, http.StatusNotFound, "seller not found")
	case errors.Is(err, ErrUnknownCategory):
		web.Error(w, http.StatusNotFound, "category not found")
	default:
		logging.FromContext(r.Context()).Error("listing request failed", "err", err)
		web.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func queryFrom(r *http.Request) CatalogQuery {
	q := r.URL.Query()
	return CatalogQuery{Search: q.Get("q"), Sort: ParseSort(q.Get("sort"))}
}
