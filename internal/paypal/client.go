// Package paypal implements payment.Gateway on top of the PayPal Orders v2
// REST API.
package paypal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/xenking/storefront/internal/domain/payment"
)

// Well-known API hosts.
const (
	SandboxURL = "https://api-m.sandbox.paypal.com"
	LiveURL    = "https://api-m.paypal.com"
)

// BaseURLFor maps an environment name to its API host. Anything other than
// "live" selects the sandbox.
func BaseURLFor(env string) string {
	if strings.EqualFold(env, "live") {
		return LiveURL
	}
	return SandboxURL
}

// Config configures the client.
type Config struct {
	ClientID     string
	ClientSecret string
	// BaseURL overrides the host derived from the environment.
	BaseURL string
	Timeout time.Duration
}

var _ payment.Gateway = (*Client)(nil)

// Client talks to the PayPal REST API using client-credential tokens.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	transport      http.RoundTripper
}

// WithTracerProvider traces outbound requests with tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithTransport sets the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// New creates a Client. ctx bounds token refreshes and should live as long as
// the client.
func New(ctx context.Context, cfg Config, opts ...Option) *Client {
	o := options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	var otelOpts []otelhttp.Option
	if o.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(o.tracerProvider))
	}
	base := &http.Client{
		Transport: otelhttp.NewTransport(o.transport, otelOpts...),
		Timeout:   cfg.Timeout,
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	httpClient := cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	httpClient.Timeout = cfg.Timeout

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
	}
}

// do sends a JSON request and returns the response body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, path string, body []byte, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < http.StatusInternalServerError {
			return nil, fmt.Errorf("%s %s: token: %w: %w", method, path, payment.ErrGatewayRejected, err)
		}
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, payment.ErrGatewayUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w: %w", method, path, payment.ErrGatewayUnavailable, err)
	}

	zctx.From(ctx).Debug("PayPal call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("debug_id", resp.Header.Get("Paypal-Debug-Id")),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return data, nil
}
