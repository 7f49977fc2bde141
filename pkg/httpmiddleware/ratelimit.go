package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
)

// RateLimitConfig configures the per-client rate limiter.
type RateLimitConfig struct {
	// Max requests allowed per Window. Zero disables limiting.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// window counts requests in the current and previous fixed windows; the
// previous count is weighted by its overlap with the sliding window.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

type limiter struct {
	max    int
	period time.Duration
	key    func(*http.Request) string

	mu      sync.Mutex
	clients map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	l := &limiter{
		max:     cfg.Max,
		period:  cfg.Window,
		key:     cfg.KeyFunc,
		clients: make(map[string]*window),
	}
	if l.key == nil {
		l.key = ClientIP
	}
	if l.period <= 0 {
		l.period = time.Minute
	}
	return l
}

// take records a request for key at now. It reports whether the request is
// allowed, how many remain and when the current window ends.
func (l *limiter) take(key string, now time.Time) (ok bool, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.clients[key]
	if !found {
		w = &window{start: now.Truncate(l.period)}
		l.clients[key] = w
	}
	if elapsed := now.Sub(w.start); elapsed >= l.period {
		if elapsed >= 2*l.period {
			w.prev = 0
		} else {
			w.prev = w.curr
		}
		w.curr = 0
		w.start = now.Truncate(l.period)
	}

	weight := math.Max(0, 1-now.Sub(w.start).Seconds()/l.period.Seconds())
	used := w.prev*weight + w.curr
	reset = w.start.Add(l.period)
	if used >= float64(l.max) {
		return false, 0, reset
	}
	w.curr++
	return true, max(0, int(float64(l.max)-used-1)), reset
}

// evict drops clients idle for two full windows.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.clients {
		if now.Sub(w.start) >= 2*l.period {
			delete(l.clients, key)
		}
	}
}

func (l *limiter) runEviction(ctx context.Context) {
	ticker := time.NewTicker(2 * l.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

// RateLimit limits requests per client with a sliding window and answers 429
// once the limit is reached. Idle clients are evicted until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := newLimiter(cfg)
	go l.runEviction(ctx)
	return l.middleware
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, remaining, reset := l.take(l.key(r), time.Now())

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		retry := max(0, math.Ceil(time.Until(reset).Seconds()))
		h.Set("Retry-After", strconv.Itoa(int(retry)))
		writeProblem(w, http.StatusTooManyRequests, "rate limit exceeded")
	})
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP or the remote
// host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeProblem writes an RFC 9457 problem body.
func writeProblem(w http.ResponseWriter, status int, detail string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("title", func(e *jx.Encoder) { e.Str(http.StatusText(status)) })
		e.Field("status", func(e *jx.Encoder) { e.Int(status) })
		e.Field("detail", func(e *jx.Encoder) { e.Str(detail) })
	})
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
