package httpx

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/peeyushmeher/cleanswift/libs/auth"
)

// Quota is a limiter's verdict for one request.
type Quota struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Quota, error)
}

type RateLimitOptions struct {
	Prefix string
	// FailOpen lets requests through when the limiter backend errors.
	FailOpen bool
	Logger   *slog.Logger
}

// WithRateLimit rejects callers over quota with 429 and a Retry-After header.
func WithRateLimit(l Limiter, opts RateLimitOptions) Middleware {
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q, err := l.Allow(r.Context(), prefix+":"+clientKey(r))
			if err != nil {
				if opts.Logger != nil {
					opts.Logger.Warn("rate limiter error", "request_id", RequestIDFromContext(r.Context()), "err", err)
				}
				if opts.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "rate_limiter_unavailable"})
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
			if !q.Allowed {
				retry := int(time.Until(q.ResetAt).Round(time.Second).Seconds())
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limited"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MemoryLimiter keeps windows in process memory. Each replica counts on its own.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

func NewMemoryLimiter(limit int, per time.Duration) *MemoryLimiter {
	limit, per = normalizeQuota(limit, per)
	return &MemoryLimiter{limit: limit, window: per, now: time.Now, windows: map[string]*window{}}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (Quota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w := m.windows[key]
	if w == nil || !now.Before(w.resetAt) {
		if len(m.windows) >= 10_000 {
			m.sweep(now)
		}
		w = &window{resetAt: now.Add(m.window)}
		m.windows[key] = w
	}
	w.count++
	return quotaFor(m.limit, w.count, w.resetAt), nil
}

func (m *MemoryLimiter) sweep(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
		}
	}
}

func quotaFor(limit, count int, resetAt time.Time) Quota {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Quota{Allowed: count <= limit, Limit: limit, Remaining: remaining, ResetAt: resetAt}
}

func normalizeQuota(limit int, per time.Duration) (int, time.Duration) {
	if limit <= 0 {
		limit = 60
	}
	if per <= 0 {
		per = time.Minute
	}
	return limit, per
}

// clientKey prefers the authenticated user so that mobile clients behind a shared carrier
// NAT are not throttled together.
func clientKey(r *http.Request) string {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return "user:" + p.UserID
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return "ip:" + strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return "ip:" + host
	}
	return "ip:" + r.RemoteAddr
}
