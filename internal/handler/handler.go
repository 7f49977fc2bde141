// Package handler exposes the checkout service over HTTP with huma.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
)

// Checkout is the order workflow served by the handler.
type Checkout interface {
	Create(ctx context.Context, req checkout.Request) (*checkout.Result, error)
	Capture(ctx context.Context, externalID string) (string, error)
	Cancel(ctx context.Context, externalID string) error
	Lookup(ctx context.Context, number, email string) (*order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
	Stats(ctx context.Context) (order.Stats, error)
	SetStatus(ctx context.Context, number, status string) error
}

// Authenticator validates admin API keys.
type Authenticator interface {
	Authenticate(ctx context.Context, secret, scope string) (*auth.Key, error)
}

var _ Checkout = (*checkout.Service)(nil)

// Config holds handler settings.
type Config struct {
	// FrontendURL is the storefront origin used for post-payment redirects.
	FrontendURL string
}

// Handler serves the order API.
type Handler struct {
	checkout Checkout
	auth     Authenticator
	frontend string
}

// New returns a Handler.
func New(cfg Config, svc Checkout, authn Authenticator) *Handler {
	return &Handler{
		checkout: svc,
		auth:     authn,
		frontend: strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

const (
	tagCheckout = "Checkout"
	tagOrders   = "Orders"
	tagAdmin    = "Admin"
)

// Register adds every operation and the API key middleware to api.
func (h *Handler) Register(api huma.API) {
	api.UseMiddleware(h.requireAPIKey(api))

	huma.Register(api, huma.Operation{
		OperationID:   "create-order",
		Method:        http.MethodPost,
		Path:          "/orders/create",
		Summary:       "Create an order for client-side approval",
		Tags:          []string{tagCheckout},
		DefaultStatus: http.StatusOK,
	}, h.CreateOrder)

	huma.Register(api, huma.Operation{
		OperationID:   "create-order-redirect",
		Method:        http.MethodPost,
		Path:          "/orders/create-redirect",
		Summary:       "Create an order for redirect approval",
		Tags:          []string{tagCheckout},
		DefaultStatus: http.StatusOK,
	}, h.CreateOrderRedirect)

	huma.Register(api, huma.Operation{
		OperationID: "capture-order",
		Method:      http.MethodPost,
		Path:        "/orders/capture",
		Summary:     "Capture an approved payment",
		Tags:        []string{tagCheckout},
	}, h.CaptureOrder)

	huma.Register(api, huma.Operation{
		OperationID:   "payment-return",
		Method:        http.MethodGet,
		Path:          "/orders/return",
		Summary:       "Capture after buyer approval and redirect to the order page",
		Tags:          []string{tagCheckout},
		DefaultStatus: http.StatusFound,
	}, h.PaymentReturn)

	huma.Register(api, huma.Operation{
		OperationID:   "payment-cancel",
		Method:        http.MethodGet,
		Path:          "/orders/cancel",
		Summary:       "Cancel after the buyer abandoned approval and redirect to the cart",
		Tags:          []string{tagCheckout},
		DefaultStatus: http.StatusFound,
	}, h.PaymentCancel)

	huma.Register(api, huma.Operation{
		OperationID: "lookup-order",
		Method:      http.MethodGet,
		Path:        "/orders/public",
		Summary:     "Look up an order by number and email",
		Tags:        []string{tagOrders},
	}, h.LookupOrder)

	adminSecurity := []map[string][]string{{SecuritySchemeName: {}}}

	huma.Register(api, huma.Operation{
		OperationID: "admin-list-orders",
		Method:      http.MethodGet,
		Path:        "/orders/admin",
		Summary:     "List all orders",
		Tags:        []string{tagAdmin},
		Security:    adminSecurity,
	}, h.ListOrders)

	huma.Register(api, huma.Operation{
		OperationID: "admin-set-order-status",
		Method:      http.MethodPatch,
		Path:        "/orders/admin/{orderNo}/status",
		Summary:     "Change an order's fulfillment status",
		Tags:        []string{tagAdmin},
		Security:    adminSecurity,
	}, h.SetOrderStatus)

	huma.Register(api, huma.Operation{
		OperationID: "admin-order-stats",
		Method:      http.MethodGet,
		Path:        "/orders/admin/stats",
		Summary:     "Count orders by status",
		Tags:        []string{tagAdmin},
		Security:    adminSecurity,
	}, h.OrderStats)
}
