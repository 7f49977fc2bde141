package handler

import (
	"context"
	"net/url"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
)

func (b *CheckoutBody) request() checkout.Request {
	items := make([]pricing.Request, len(b.Items))
	for i, it := range b.Items {
		items[i] = pricing.Request{ItemID: it.CommodityID, Quantity: int(it.Quantity)}
	}
	return checkout.Request{
		Contact: order.Contact{
			Email:      b.Email,
			Country:    b.Country,
			Region:     b.Region,
			Address1:   b.Address1,
			Address2:   b.Address2,
			PostalCode: b.PostalCode,
			Phone:      b.Phone,
		},
		Currency: b.Currency,
		Items:    items,
	}
}

// CreateOrder handles POST /orders/create for client SDK approval flows.
func (h *Handler) CreateOrder(ctx context.Context, in *CreateOrderInput) (*CreateOrderOutput, error) {
	res, err := h.checkout.Create(ctx, in.Body.request())
	if err != nil {
		return nil, mapError(ctx, err)
	}
	out := &CreateOrderOutput{}
	out.Body.PayPalOrderID = res.ExternalID
	out.Body.ApprovalURL = res.ApprovalURL
	return out, nil
}

// CreateOrderRedirect handles POST /orders/create-redirect. The processor
// must return an approval link for redirect flows.
func (h *Handler) CreateOrderRedirect(ctx context.Context, in *CreateOrderInput) (*CreateOrderRedirectOutput, error) {
	res, err := h.checkout.Create(ctx, in.Body.request())
	if err != nil {
		return nil, mapError(ctx, err)
	}
	if res.ApprovalURL == "" {
		zctx.From(ctx).Error("Payment intent has no approval link",
			zap.String("order_no", res.OrderNo),
			zap.String("external_id", res.ExternalID),
		)
		return nil, errBadGateway()
	}
	out := &CreateOrderRedirectOutput{}
	out.Body.ApprovalURL = res.ApprovalURL
	return out, nil
}

// CaptureOrder handles POST /orders/capture.
func (h *Handler) CaptureOrder(ctx context.Context, in *CaptureOrderInput) (*CaptureOrderOutput, error) {
	number, err := h.checkout.Capture(ctx, in.Body.PayPalOrderID)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	out := &CaptureOrderOutput{}
	out.Body.OrderNo = number
	return out, nil
}

// PaymentReturn handles the processor's approval redirect: it captures and
// sends the buyer to the order page.
func (h *Handler) PaymentReturn(ctx context.Context, in *TokenInput) (*RedirectOutput, error) {
	if in.Token == "" {
		return nil, mapError(ctx, &checkout.ValidationError{Field: "token"})
	}
	number, err := h.checkout.Capture(ctx, in.Token)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return h.redirect("/order-query?orderNo=" + url.QueryEscape(number)), nil
}

// PaymentCancel handles the processor's cancel redirect and sends the buyer
// back to the cart.
func (h *Handler) PaymentCancel(ctx context.Context, in *TokenInput) (*RedirectOutput, error) {
	if err := h.checkout.Cancel(ctx, in.Token); err != nil {
		return nil, mapError(ctx, err)
	}
	return h.redirect("/cart"), nil
}

func (h *Handler) redirect(path string) *RedirectOutput {
	return &RedirectOutput{Status: 302, Location: h.frontend + path}
}

// LookupOrder handles GET /orders/public.
func (h *Handler) LookupOrder(ctx context.Context, in *LookupOrderInput) (*LookupOrderOutput, error) {
	o, err := h.checkout.Lookup(ctx, in.OrderNo, in.Email)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return &LookupOrderOutput{Body: toPublic(o)}, nil
}
