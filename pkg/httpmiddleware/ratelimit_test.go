package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, mutate func(r *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func fromAddr(addr string) func(*http.Request) {
	return func(r *http.Request) { r.RemoteAddr = addr }
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := RateLimit(t.Context(), RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := serve(h, fromAddr("192.168.1.1:12345"))
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := RateLimit(t.Context(), RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, serve(h, fromAddr("10.0.0.1:9999")).Code)
	}
	w := serve(h, fromAddr("10.0.0.1:9999"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var detail string
	var status int
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "detail":
			v, err := d.Str()
			detail = v
			return err
		case "status":
			v, err := d.Int()
			status = v
			return err
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate limit exceeded", detail)
}

func TestRateLimit_Keys(t *testing.T) {
	tests := []struct {
		name   string
		cfg    RateLimitConfig
		first  func(*http.Request)
		second func(*http.Request)
		want   int
	}{
		{
			name:   "different remote addresses",
			cfg:    RateLimitConfig{Max: 1, Window: time.Minute},
			first:  fromAddr("10.0.0.1:1234"),
			second: fromAddr("10.0.0.2:1234"),
			want:   http.StatusOK,
		},
		{
			name:   "same host different port",
			cfg:    RateLimitConfig{Max: 1, Window: time.Minute},
			first:  fromAddr("10.0.0.1:1234"),
			second: fromAddr("10.0.0.1:5678"),
			want:   http.StatusTooManyRequests,
		},
		{
			name: "forwarded for first hop",
			cfg:  RateLimitConfig{Max: 1, Window: time.Minute},
			first: func(r *http.Request) {
				r.RemoteAddr = "192.168.1.1:4444"
				r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
			},
			second: func(r *http.Request) {
				r.RemoteAddr = "192.168.1.2:5555"
				r.Header.Set("X-Forwarded-For", "203.0.113.50")
			},
			want: http.StatusTooManyRequests,
		},
		{
			name: "custom key",
			cfg: RateLimitConfig{Max: 1, Window: time.Minute, KeyFunc: func(r *http.Request) string {
				return r.Header.Get("X-API-Key")
			}},
			first:  func(r *http.Request) { r.Header.Set("X-API-Key", "key-a") },
			second: func(r *http.Request) { r.Header.Set("X-API-Key", "key-b") },
			want:   http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RateLimit(t.Context(), tt.cfg)(okHandler())
			require.Equal(t, http.StatusOK, serve(h, tt.first).Code)
			assert.Equal(t, tt.want, serve(h, tt.second).Code)
		})
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(t.Context(), RateLimitConfig{})(okHandler())
	for range 10 {
		w := serve(h, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 4, Window: time.Minute})
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for range 4 {
		ok, _, _ := l.take("k", start)
		require.True(t, ok)
	}
	ok, _, _ := l.take("k", start.Add(30*time.Second))
	assert.False(t, ok)

	// Halfway through the next window the previous four count as two.
	ok, remaining, _ := l.take("k", start.Add(90*time.Second))
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	// Two idle windows reset the client.
	ok, remaining, _ = l.take("k", start.Add(5*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 3, remaining)
}

func TestLimiter_Evict(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Second})
	now := time.Now()
	l.take("a", now)
	l.evict(now.Add(3 * time.Second))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.clients)
}

func TestRateLimit_StopsEvictionWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_ = RateLimit(ctx, RateLimitConfig{Max: 1, Window: time.Millisecond})
	cancel()
}
