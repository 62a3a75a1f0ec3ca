// Command loadtest drives the marketplace flow end to end: sellers list an
// item, an admin approves it, buyers open a conversation and both sides
// exchange messages over WebSockets.
//
// Auth endpoints are rate limited per IP; raise rateLimit.authPerMinute on the
// target before running with many pairs.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type config struct {
	baseURL       string
	pairs         int
	messages      int
	adminEmail    string
	adminPassword string
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	Profile     struct {
		ID string `json:"id"`
	} `json:"profile"`
}

type createListingResponse struct {
	Listing struct {
		ID string `json:"id"`
	} `json:"listing"`
}

type startResponse struct {
	ConversationID string `json:"conversation_id"`
}

var (
	sent     atomic.Int64
	received atomic.Int64
	failures atomic.Int64
)

func main() {
	cfg := config{}
	flag.StringVar(&cfg.baseURL, "base", "http://localhost:8080", "server base URL")
	flag.IntVar(&cfg.pairs, "pairs", 50, "number of seller/buyer pairs")
	flag.IntVar(&cfg.messages, "messages", 20, "messages per user")
	flag.StringVar(&cfg.adminEmail, "admin-email", os.Getenv("LOADTEST_ADMIN_EMAIL"), "admin account used to approve listings")
	flag.StringVar(&cfg.adminPassword, "admin-password", os.Getenv("LOADTEST_ADMIN_PASSWORD"), "admin password")
	flag.Parse()

	if cfg.adminEmail == "" || cfg.adminPassword == "" {
		slog.Error("admin credentials are required to approve test listings")
		os.Exit(2)
	}
	adminToken, err := login(cfg, cfg.adminEmail, cfg.adminPassword)
	if err != nil {
		slog.Error("admin login failed", "err", err)
		os.Exit(1)
	}

	slog.Info("starting load test", "users", cfg.pairs*2, "messages_per_user", cfg.messages)
	start := time.Now()
	runID := time.Now().UnixNano()

	var wg sync.WaitGroup
	for i := 0; i < cfg.pairs; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			if err := runPair(cfg, adminToken, fmt.Sprintf("%d-%d", runID, pairID)); err != nil {
				failures.Add(1)
				slog.Warn("pair failed", "pair", pairID, "err", err)
			}
		}(i)
	}
	wg.Wait()

	slog.Info("load test complete",
		"duration", time.Since(start).String(),
		"sent", sent.Load(),
		"received", received.Load(),
		"failed_pairs", failures.Load())
}

func runPair(cfg config, adminToken, tag string) error {
	const pass = "password123"

	sellerToken, err := signUp(cfg, "seller-"+tag+"@loadtest.local", pass, "Seller "+tag)
	if err != nil {
		return fmt.Errorf("seller auth: %w", err)
	}
	buyerToken, err := signUp(cfg, "buyer-"+tag+"@loadtest.local", pass, "Buyer "+tag)
	if err != nil {
		return fmt.Errorf("buyer auth: %w", err)
	}

	var created createListingResponse
	if err := call(cfg, http.MethodPost, "/api/listings", sellerToken, map[string]any{
		"title":     "Load test item " + tag,
		"price":     15000,
		"category":  "electronics",
		"condition": "Brand New",
		"location":  "Lagos",
	}, http.StatusCreated, &created); err != nil {
		return fmt.Errorf("create listing: %w", err)
	}

	path := "/api/admin/listings/" + created.Listing.ID + "/approve"
	if err := call(cfg, http.MethodPost, path, adminToken, nil, http.StatusOK, nil); err != nil {
		return fmt.Errorf("approve listing: %w", err)
	}

	if err := call(cfg, http.MethodGet, "/api/listings/"+created.Listing.ID, buyerToken, nil, http.StatusOK, nil); err != nil {
		return fmt.Errorf("view listing: %w", err)
	}

	var conv startResponse
	if err := call(cfg, http.MethodPost, "/api/conversations", buyerToken,
		map[string]string{"product_id": created.Listing.ID}, http.StatusOK, &conv); err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go spamChat(&wg, cfg, sellerToken, conv.ConversationID, "seller-"+tag)
	go spamChat(&wg, cfg, buyerToken, conv.ConversationID, "buyer-"+tag)
	wg.Wait()
	return nil
}

// signUp registers (ignoring conflicts) and logs in.
func signUp(cfg config, email, password, name string) (string, error) {
	err := call(cfg, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": password, "full_name": name,
	}, http.StatusCreated, nil)
	if err != nil && !strings.Contains(err.Error(), "409") {
		return "", err
	}
	return login(cfg, email, password)
}

func login(cfg config, email, password string) (string, error) {
	var res loginResponse
	err := call(cfg, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	}, http.StatusOK, &res)
	return res.AccessToken, err
}

func spamChat(wg *sync.WaitGroup, cfg config, token, convID, user string) {
	defer wg.Done()

	wsURL := strings.Replace(cfg.baseURL, "http", "ws", 1) + "/ws/conversations/" + convID +
		"?token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		slog.Warn("websocket connect failed", "user", user, "err", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			received.Add(1)
		}
	}()

	for i := 0; i < cfg.messages; i++ {
		if err := conn.WriteJSON(map[string]string{
			"content": fmt.Sprintf("load test message %d from %s", i, user),
		}); err != nil {
			slog.Warn("send failed", "user", user, "err", err)
			break
		}
		sent.Add(1)
		// Spread writes out a little, like a real typist.
		time.Sleep(10 * time.Millisecond)
	}

	// Give the last pushes time to arrive before closing.
	time.Sleep(500 * time.Millisecond)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func call(cfg config, method, path, token string, body any, want int, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, cfg.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
