package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLoggerEmitsRecordWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	InitWriter(&buf, "info")
	t.Cleanup(func() { slog.SetDefault(prev) })

	var sawLogger bool
	h := middleware.RequestID(RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = FromContext(r.Context()) != slog.Default()
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	req.Header.Set("X-Request-Id", "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !sawLogger {
		t.Fatal("expected request-scoped logger in context")
	}
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log record: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "http_request" {
		t.Fatalf("unexpected msg: %v", rec["msg"])
	}
	if rec["request_id"] != "req-42" {
		t.Fatalf("expected request id req-42, got %v", rec["request_id"])
	}
	if rec["status"] != float64(http.StatusTeapot) {
		t.Fatalf("expected status 418, got %v", rec["status"])
	}
}
