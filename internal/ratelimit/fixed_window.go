// Package ratelimit throttles abuse-prone endpoints with a fixed window
// counter shared through Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"classifieds/internal/logging"
	"classifieds/internal/web"

	"github.com/redis/go-redis/v9"
)

var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// FixedWindowLimiter allows limit hits per key in each window.
type FixedWindowLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window  time.Duration
	trusted *TrustedProxies
	now     func() time.Time
}

func NewFixedWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	if limit <= 0 || window <= 0 {
		return nil, errors.New("ratelimit: limit and window must be positive")
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "classifieds:ratelimit"
	}
	return &FixedWindowLimiter{client: client, prefix: prefix, limit: limit, window: window, now: time.Now}, nil
}

// TrustProxies makes the middleware honor forwarded headers from these peers.
func (l *FixedWindowLimiter) TrustProxies(t *TrustedProxies) *FixedWindowLimiter {
	l.trusted = t
	return l
}

// Allow reports whether key is still within quota. Redis errors deny the request.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil {
		return false
	}
	if key = strings.TrimSpace(key); key == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	slot := l.now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	n, err := incrWindow.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		logging.FromContext(ctx).Warn("rate limiter unavailable", "err", err)
		return false
	}
	return n <= int64(l.limit)
}

// Middleware rejects callers over quota with 429, keyed by client IP.
func (l *FixedWindowLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r.Context(), ClientIP(r, l.trusted)) {
			logging.FromContext(r.Context()).Warn("security_event",
				"event", "ratelimit", "outcome", "deny", "path", r.URL.Path)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(l.window.Seconds())))
			web.Error(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
