package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"classifieds/internal/logging"
	"classifieds/internal/session"
	"classifieds/internal/web"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Sockets authenticate with a bearer token, not cookies.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChatRoute is the client path of a conversation.
const ChatRoute = "/chat/"

type Handler struct {
	Service *Service
	hub     *Hub
}

func NewHandler(s *Service, hub *Hub) *Handler {
	return &Handler{Service: s, hub: hub}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s, _ := session.FromContext(r.Context())
	id, err := h.Service.StartConversation(r.Context(), s.UserID, req.ProductID)
	if err != nil {
		h.writeErr(w, r, err, "internal error")
		return
	}
	web.JSON(w, http.StatusOK, map[string]string{
		"conversation_id": id,
		"redirect":        ChatRoute + id,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	convs, err := h.Service.ForUser(r.Context(), s.UserID)
	if err != nil {
		h.writeErr(w, r, err, "internal error")
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		web.Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	s, _ := session.FromContext(r.Context())
	c, err := h.Service.Conversation(r.Context(), id, s.UserID)
	if err != nil {
		h.writeErr(w, r, err, "internal error")
		return
	}
	web.JSON(w, http.StatusOK, c)
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		web.Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	s, _ := session.FromContext(r.Context())
	msgs, err := h.Service.History(r.Context(), id, s.UserID)
	if err != nil {
		h.writeErr(w, r, err, "internal error")
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		web.Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	var req SendRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	s, _ := session.FromContext(r.Context())
	m, err := h.Service.Send(r.Context(), id, s.UserID, req.Content)
	if err != nil {
		h.writeErr(w, r, err, SendFailureMessage(err))
		return
	}
	web.JSON(w, http.StatusCreated, m)
}

// ServeWs upgrades a participant's request and streams the conversation:
// first the history, then every new message.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		web.Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	s, _ := session.FromContext(r.Context())
	if _, err := h.Service.Conversation(r.Context(), id, s.UserID); err != nil {
		h.writeErr(w, r, err, "internal error")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.FromContext(r.Context()).Warn("websocket upgrade failed", "err", err)
		return
	}

	client := &Client{
		hub:            h.hub,
		conn:           conn,
		Send:           make(chan []byte, 256),
		ConversationID: id,
		UserID:         s.UserID,
	}
	client.onMessage = func(ctx context.Context, content string) error {
		_, err := h.Service.Send(ctx, id, s.UserID, content)
		return err
	}

	// Join before reading history. Anything published meanwhile waits in
	// client.Send and is written after the history frame, so a message can
	// show up in both but never in neither.
	if !h.hub.Join(client) {
		conn.Close()
		return
	}

	history, err := h.Service.History(r.Context(), id, s.UserID)
	if err != nil {
		logging.FromContext(r.Context()).Error("websocket history failed", "conversation_id", id, "err", err)
		h.hub.Leave(client)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "could not load messages"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	first, err := json.Marshal(newHistoryEvent(history))
	if err != nil {
		h.hub.Leave(client)
		conn.Close()
		return
	}

	go client.WritePump(first)
	go client.ReadPump()
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		web.Error(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, ErrProductNotFound):
		web.Error(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, ErrSelfContact):
		web.Error(w, http.StatusBadRequest, "you cannot message yourself")
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMessageTooLong):
		web.Error(w, http.StatusBadRequest, SendFailureMessage(err))
	default:
		logging.FromContext(r.Context()).Error("chat request failed", "err", err)
		web.Error(w, http.StatusInternalServerError, fallback)
	}
}
