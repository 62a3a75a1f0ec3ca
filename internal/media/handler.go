package media

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

// UploadImage accepts a multipart form with a single "file" part.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+1<<20)
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		web.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	s, _ := session.FromContext(r.Context())
	up, err := h.Service.Upload(r.Context(), s.UserID, header.Size, file)
	switch {
	case errors.Is(err, ErrTooLarge):
		web.Error(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrUnsupportedType):
		web.Error(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ErrEmpty):
		web.Error(w, http.StatusBadRequest, err.Error())
	case err != nil:
		logging.FromContext(r.Context()).Error("image upload failed", "err", err)
		web.Error(w, http.StatusBadGateway, "could not store image")
	default:
		web.JSON(w, http.StatusCreated, up)
	}
}
