package httpmiddleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-caller sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per caller per window.
	Max int
	// Window is the sliding window duration.
	Window time.Duration
	// MemberHeader names the request header carrying the caller's member
	// identity. Requests with the header get a per-member budget; anonymous
	// requests (public menu reads) share a per-IP budget instead. Empty
	// means IP-only limiting.
	MemberHeader string
}

// slot tracks one caller's request counts over the current and previous
// windows.
type slot struct {
	prevStart time.Time
	currStart time.Time
	prev      float64
	curr      float64
}

type limiter struct {
	cfg   RateLimitConfig
	mu    sync.Mutex
	slots map[string]*slot
}

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{cfg: cfg, slots: make(map[string]*slot)}
}

// take records one request for the caller and reports whether it fits the
// budget. The previous window counts toward the budget weighted by how much
// of it still overlaps the sliding window, so the limit holds across window
// boundaries.
func (l *limiter) take(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.slots[key]
	if s == nil {
		s = &slot{currStart: now}
		l.slots[key] = s
	}
	if now.Sub(s.currStart) >= l.cfg.Window {
		s.prev, s.prevStart = s.curr, s.currStart
		s.curr = 0
		s.currStart = now.Truncate(l.cfg.Window)
		if now.Sub(s.prevStart) >= 2*l.cfg.Window {
			s.prev = 0
		}
	}

	overlap := 1 - now.Sub(s.currStart).Seconds()/l.cfg.Window.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	weighted := s.prev*overlap + s.curr
	resetAt = s.currStart.Add(l.cfg.Window)

	if weighted >= float64(l.cfg.Max) {
		return 0, resetAt, false
	}
	s.curr++

	remaining = int(float64(l.cfg.Max) - weighted - 1)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, resetAt, true
}

// sweep drops callers whose windows have fully expired.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, s := range l.slots {
		if now.Sub(s.currStart) >= 2*l.cfg.Window {
			delete(l.slots, key)
		}
	}
}

// callerKey returns the limit bucket for a request: the member identity when
// the configured header is present, the client address otherwise. Members
// and anonymous callers never share a bucket.
func (l *limiter) callerKey(r *http.Request) string {
	if l.cfg.MemberHeader != "" {
		if id := r.Header.Get(l.cfg.MemberHeader); id != "" {
			return "member:" + id
		}
	}
	return "ip:" + clientIP(r)
}

// RateLimit returns a middleware enforcing a sliding window budget per
// caller. Rejected requests get 429 Too Many Requests with a JSON body;
// every response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers.
//
// This variant never evicts idle callers. Use RateLimitWithCleanup on
// long-running servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return limitMiddleware(newLimiter(cfg))
}

// RateLimitWithCleanup is RateLimit plus a background goroutine that drops
// idle callers every two windows. The goroutine stops when ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.sweep(now)
			}
		}
	}()
	return limitMiddleware(l)
}

func limitMiddleware(l *limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, resetAt, ok := l.take(l.callerKey(r), time.Now())

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := int(math.Ceil(time.Until(resetAt).Seconds()))
			if retryAfter < 0 {
				retryAfter = 0
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code":    http.StatusTooManyRequests,
				"message": "rate limit exceeded",
			})
		})
	}
}

// clientIP resolves the originating address: the first X-Forwarded-For hop,
// then X-Real-IP, then the connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
