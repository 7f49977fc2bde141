package handler

import (
	"context"
)

// ListOrders handles GET /orders/admin.
func (h *Handler) ListOrders(ctx context.Context, _ *struct{}) (*ListOrdersOutput, error) {
	orders, err := h.checkout.List(ctx)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	out := &ListOrdersOutput{Body: make([]AdminOrder, len(orders))}
	for i := range orders {
		out.Body[i] = toAdmin(&orders[i])
	}
	return out, nil
}

// SetOrderStatus handles PATCH /orders/admin/{orderNo}/status.
func (h *Handler) SetOrderStatus(ctx context.Context, in *SetOrderStatusInput) (*MessageOutput, error) {
	if err := h.checkout.SetStatus(ctx, in.OrderNo, in.Body.Status); err != nil {
		return nil, mapError(ctx, err)
	}
	out := &MessageOutput{}
	out.Body.Message = "status updated"
	return out, nil
}

// OrderStats handles GET /orders/admin/stats.
func (h *Handler) OrderStats(ctx context.Context, _ *struct{}) (*OrderStatsOutput, error) {
	st, err := h.checkout.Stats(ctx)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	out := &OrderStatsOutput{}
	b := &out.Body
	b.Total = st.Total
	b.Pending = st.Pending
	b.Paid = st.Paid
	b.Fulfilling = st.Fulfilling
	b.Shipped = st.Shipped
	b.Completed = st.Completed
	b.Canceled = st.Canceled
	return out, nil
}
