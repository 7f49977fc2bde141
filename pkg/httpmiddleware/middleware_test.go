package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var trail []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trail = append(trail, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	serve(h, nil)
	assert.Equal(t, []string{"outer", "inner"}, trail)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{name: "reuses valid id", incoming: "abc-123", reuse: true},
		{name: "generates when missing", incoming: ""},
		{name: "rejects control characters", incoming: "bad\x01id"},
		{name: "rejects oversized", incoming: strings.Repeat("a", 129)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, func(r *http.Request) {
				if tt.incoming != "" {
					r.Header.Set(RequestIDHeader, tt.incoming)
				}
			})
			got := w.Header().Get(RequestIDHeader)
			require.NotEmpty(t, got)
			assert.Equal(t, got, seen)
			if tt.reuse {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.NotEqual(t, tt.incoming, got)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), InjectLogger(zap.New(core)), Recovery())

	w := serve(h, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestLogRequests_UsesRoutePattern(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	r := chi.NewRouter()
	r.Use(LogRequests())
	r.Get("/orders/{orderNo}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	h := Wrap(r, InjectLogger(zap.New(core)), RequestID())
	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("Request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/orders/{orderNo}", fields["route"])
	assert.EqualValues(t, http.StatusAccepted, fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestInjectLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := InjectLogger(zap.New(core))(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("hello")
	}))
	serve(h, nil)
	assert.Equal(t, 1, logs.FilterMessage("hello").Len())
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		cfg        CORSConfig
		method     string
		origin     string
		preflight  bool
		wantCode   int
		wantOrigin string
		wantCreds  string
	}{
		{name: "any origin", cfg: CORSConfig{}, method: http.MethodGet, origin: "https://shop.example", wantCode: http.StatusOK, wantOrigin: "*"},
		{name: "listed origin echoed in config case", cfg: CORSConfig{AllowOrigins: []string{"https://Shop.example"}}, method: http.MethodGet, origin: "https://shop.example", wantCode: http.StatusOK, wantOrigin: "https://Shop.example"},
		{name: "unlisted origin", cfg: CORSConfig{AllowOrigins: []string{"https://shop.example"}}, method: http.MethodGet, origin: "https://evil.example", wantCode: http.StatusOK},
		{name: "preflight", cfg: CORSConfig{MaxAge: 600}, method: http.MethodOptions, origin: "https://shop.example", preflight: true, wantCode: http.StatusNoContent, wantOrigin: "*"},
		{name: "credentials disable wildcard", cfg: CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true}, method: http.MethodGet, origin: "https://shop.example", wantCode: http.StatusOK},
		{name: "credentials with listed origin", cfg: CORSConfig{AllowOrigins: []string{"https://shop.example"}, AllowCredentials: true}, method: http.MethodGet, origin: "https://shop.example", wantCode: http.StatusOK, wantOrigin: "https://shop.example", wantCreds: "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.cfg)(okHandler())
			req := httptest.NewRequest(tt.method, "/orders/create", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
				req.Header.Set("Access-Control-Request-Headers", "Content-Type")
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
			if tt.preflight {
				assert.Equal(t, "GET, POST, PATCH, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
				assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
				assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}
