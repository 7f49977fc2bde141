package handler

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/pricing"
)

func errBadGateway() error {
	return huma.Error502BadGateway("payment processor error")
}

// mapError converts a checkout error into an HTTP problem. Unexpected errors
// are logged and reported without detail.
func mapError(ctx context.Context, err error) error {
	var (
		validation *checkout.ValidationError
		invalid    *pricing.InvalidItemError
		stock      *order.OutOfStockError
		transition *order.InvalidTransitionError
	)
	lg := zctx.From(ctx)

	switch {
	case errors.As(err, &validation):
		return huma.Error400BadRequest(validation.Error(), &huma.ErrorDetail{
			Location: validation.Field,
			Message:  validation.Error(),
		})
	case errors.Is(err, pricing.ErrEmptyCart), errors.Is(err, pricing.ErrTotalTooLarge):
		return huma.Error400BadRequest(err.Error())
	case errors.As(err, &invalid):
		return huma.Error422UnprocessableEntity(invalid.Error())
	case errors.As(err, &stock):
		return huma.Error422UnprocessableEntity(stock.Error())
	case errors.Is(err, order.ErrNotFound):
		return huma.Error404NotFound("order not found")
	case errors.As(err, &transition):
		return huma.Error409Conflict(transition.Error())
	case payment.IsGatewayError(err):
		lg.Warn("Payment gateway failure", zap.Error(err))
		return errBadGateway()
	case errors.Is(err, context.Canceled):
		return huma.NewError(499, "request canceled")
	default:
		lg.Error("Request failed", zap.Error(err))
		return huma.Error500InternalServerError("internal error")
	}
}
