package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"classifieds/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const wsConversationID = "0b7c4f0e-3d7a-4b55-9a53-2f3c8d1e6a10"

// historyHookStore runs onHistory once, right after the history snapshot is taken.
type historyHookStore struct {
	*fakeStore
	onHistory func()
}

func (s *historyHookStore) Messages(ctx context.Context, id string) ([]Message, error) {
	msgs, err := s.fakeStore.Messages(ctx, id)
	if hook := s.onHistory; hook != nil {
		s.onHistory = nil
		hook()
	}
	return msgs, err
}

type wsFrame struct {
	Type     string    `json:"type"`
	Message  *Message  `json:"message"`
	Messages []Message `json:"messages"`
	Error    string    `json:"error"`
}

func newWSStore() *historyHookStore {
	store := newFakeStore()
	store.conversations[wsConversationID] = Conversation{
		ID: wsConversationID, ProductID: "phone", BuyerID: "buyer", SellerID: "seller",
	}
	return &historyHookStore{fakeStore: store}
}

// newWSServer mounts ServeWs behind a stub session taken from ?as=.
func newWSServer(t *testing.T, svc *Service, hub *Hub) *httptest.Server {
	t.Helper()
	h := NewHandler(svc, hub)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := session.Session{UserID: r.URL.Query().Get("as")}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
		})
	})
	r.Get("/ws/conversations/{id}", h.ServeWs)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/conversations/" + wsConversationID + "?as=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial as %s: %v", userID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readRaw(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return raw
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	var f wsFrame
	if err := json.Unmarshal(readRaw(t, conn), &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return f
}

func TestServeWs_HistoryFirstWithMessagesKey(t *testing.T) {
	store := newWSStore()
	hub := startHub(t)
	srv := newWSServer(t, NewService(store, hub), hub)

	conn := dial(t, srv, "buyer")
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(readRaw(t, conn), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["type"]) != `"history"` {
		t.Fatalf("first frame should be history, got %s", raw["type"])
	}
	if string(raw["messages"]) != "[]" {
		t.Fatalf("empty conversation should carry messages: [], got %q", raw["messages"])
	}
}

func TestServeWs_MessageSentWhileLoadingHistoryIsDelivered(t *testing.T) {
	store := newWSStore()
	hub := startHub(t)
	svc := NewService(store, hub)
	store.onHistory = func() {
		if _, err := svc.Send(context.Background(), wsConversationID, "seller", "Yes, still available"); err != nil {
			t.Errorf("seller send: %v", err)
		}
	}
	srv := newWSServer(t, svc, hub)

	conn := dial(t, srv, "buyer")
	if f := readFrame(t, conn); f.Type != EventHistory {
		t.Fatalf("expected history first, got %+v", f)
	}
	f := readFrame(t, conn)
	if f.Type != EventMessageCreated || f.Message == nil || f.Message.Content != "Yes, still available" {
		t.Fatalf("expected the concurrent message live, got %+v", f)
	}
}

func TestServeWs_ClientFramesAreSent(t *testing.T) {
	store := newWSStore()
	hub := startHub(t)
	srv := newWSServer(t, NewService(store, hub), hub)

	buyer := dial(t, srv, "buyer")
	seller := dial(t, srv, "seller")
	readFrame(t, buyer)
	readFrame(t, seller)

	if err := buyer.WriteJSON(WSMessage{Content: "  Can you do 120k?  "}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for name, conn := range map[string]*websocket.Conn{"buyer": buyer, "seller": seller} {
		f := readFrame(t, conn)
		if f.Type != EventMessageCreated || f.Message == nil {
			t.Fatalf("%s: expected message.created, got %+v", name, f)
		}
		if f.Message.Content != "Can you do 120k?" || f.Message.SenderID != "buyer" {
			t.Fatalf("%s: unexpected message %+v", name, f.Message)
		}
	}

	if err := buyer.WriteJSON(WSMessage{Content: "   "}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, buyer); f.Type != EventError || f.Error != SendFailureMessage(ErrEmptyMessage) {
		t.Fatalf("expected error frame, got %+v", f)
	}
	store.mu.Lock()
	got := len(store.messages[wsConversationID])
	store.mu.Unlock()
	if got != 1 {
		t.Fatalf("expected one stored message, got %d", got)
	}
}

func TestServeWs_RejectsNonParticipant(t *testing.T) {
	store := newWSStore()
	hub := startHub(t)
	srv := newWSServer(t, NewService(store, hub), hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/conversations/" + wsConversationID + "?as=stranger"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}
}

func TestServeWs_Teardown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(client, nil)
	if err := hub.Start(ctx); err != nil {
		t.Fatalf("start hub: %v", err)
	}

	store := newWSStore()
	srv := newWSServer(t, NewService(store, hub), hub)

	// A peer that disconnects leaves the room without disturbing the other side.
	buyer := dial(t, srv, "buyer")
	seller := dial(t, srv, "seller")
	readFrame(t, buyer)
	readFrame(t, seller)
	_ = buyer.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	buyer.Close()

	if err := seller.WriteJSON(WSMessage{Content: "Still there?"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, seller); f.Type != EventMessageCreated {
		t.Fatalf("expected seller to keep receiving, got %+v", f)
	}

	// Stopping the hub closes the remaining sockets.
	cancel()
	_ = seller.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, _, err := seller.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) &&
			!strings.Contains(err.Error(), "EOF") {
			t.Fatalf("expected server close, got %v", err)
		}
		break
	}
}
