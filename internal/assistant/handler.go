package assistant

import (
	"errors"
	"net/http"

	"classifieds/internal/logging"
	"classifieds/internal/web"
)

const failureMessage = "Failed to get response. Please try again."

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

type replyRequest struct {
	Messages []Turn `json:"messages"`
}

func (h *Handler) Greeting(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, http.StatusOK, map[string][]Turn{"messages": {Greeting()}})
}

func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	turn, err := h.Service.Reply(r.Context(), req.Messages)
	switch {
	case err == nil:
		web.JSON(w, http.StatusOK, map[string]string{"message": turn.Content})
	case errors.Is(err, ErrEmptyConversation), errors.Is(err, ErrLastTurnNotUser),
		errors.Is(err, ErrInvalidRole), errors.Is(err, ErrEmptyTurn), errors.Is(err, ErrTurnTooLong):
		web.Error(w, http.StatusBadRequest, err.Error())
	default:
		logging.FromContext(r.Context()).Error("assistant completion failed", "err", err)
		web.Error(w, http.StatusBadGateway, failureMessage)
	}
}
