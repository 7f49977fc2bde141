package checkout

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/pricing"
)

// Config holds checkout settings.
type Config struct {
	// Currency is used when a request names none.
	Currency  string
	BrandName string
	ReturnURL string
	CancelURL string
	// ReserveStock decrements commodity stock at order creation and restores
	// it when the order is canceled.
	ReserveStock bool
}

// Option configures a Service.
type Option func(*Service)

// WithCache serves public lookups through c.
func WithCache(c order.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMeterProvider records checkout metrics with mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// Service encapsulates the checkout workflow.
type Service struct {
	store   Store
	gateway payment.Gateway
	cfg     Config
	cache   order.Cache

	meterProvider metric.MeterProvider
	created       metric.Int64Counter
	captured      metric.Int64Counter
	failures      metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(store Store, gateway payment.Gateway, cfg Config, opts ...Option) (*Service, error) {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	s := &Service{
		store:         store,
		gateway:       gateway,
		cfg:           cfg,
		meterProvider: noop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := s.meterProvider.Meter("github.com/xenking/storefront/internal/domain/checkout")
	var err error
	if s.created, err = meter.Int64Counter("checkout.orders.created",
		metric.WithDescription("Orders created and sent for approval"),
	); err != nil {
		return nil, errors.Wrap(err, "orders created counter")
	}
	if s.captured, err = meter.Int64Counter("checkout.orders.captured",
		metric.WithDescription("Orders whose payment was captured"),
	); err != nil {
		return nil, errors.Wrap(err, "orders captured counter")
	}
	if s.failures, err = meter.Int64Counter("checkout.failures",
		metric.WithDescription("Checkout operations that failed"),
	); err != nil {
		return nil, errors.Wrap(err, "failures counter")
	}
	return s, nil
}

// Create validates and prices the request, records a pending order and
// creates the payment intent. Nothing is persisted unless every step
// succeeds.
func (s *Service) Create(ctx context.Context, req Request) (*Result, error) {
	if err := req.normalize(s.cfg.Currency); err != nil {
		return nil, err
	}

	var res *Result
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		items, err := tx.GetByIDs(ctx, pricing.IDs(req.Items))
		if err != nil {
			return errors.Wrap(err, "load catalog")
		}
		quote, err := pricing.Price(req.Items, catalog.NewSnapshot(items))
		if err != nil {
			return err
		}

		o, err := tx.CreatePending(ctx, order.NewOrder{
			Contact:  req.Contact,
			Currency: req.Currency,
			Total:    quote.Totals.Total,
		})
		if err != nil {
			return errors.Wrap(err, "create order")
		}

		lines := linesFromQuote(quote)
		if err := tx.AttachLines(ctx, o.ID, lines); err != nil {
			return errors.Wrap(err, "attach lines")
		}
		if s.cfg.ReserveStock {
			if err := tx.ReserveStock(ctx, lines); err != nil {
				return errors.Wrap(err, "reserve stock")
			}
		}
		if err := tx.AppendEvent(ctx, order.NewEvent(order.EventCreated, o, "")); err != nil {
			return errors.Wrap(err, "append event")
		}

		intent, err := s.gateway.CreateIntent(ctx, s.intentRequest(o, quote))
		if err != nil {
			return errors.Wrap(err, "create payment intent")
		}
		if err := tx.SetExternalRef(ctx, o.ID, intent.ExternalID); err != nil {
			return errors.Wrap(err, "set external ref")
		}

		res = &Result{
			OrderNo:     o.Number,
			ExternalID:  intent.ExternalID,
			ApprovalURL: intent.ApprovalURL,
			Quote:       quote,
			Currency:    o.Currency,
		}
		return nil
	})
	if err != nil {
		s.fail(ctx, "create", err)
		return nil, err
	}

	s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("currency", res.Currency)))
	zctx.From(ctx).Info("Order created",
		zap.String("order_no", res.OrderNo),
		zap.String("external_id", res.ExternalID),
		zap.String("total", res.Quote.Totals.Total.StringFixed(2)),
	)
	return res, nil
}

func (s *Service) intentRequest(o *order.Order, q *pricing.Quote) payment.IntentRequest {
	items := make([]payment.Item, len(q.Lines))
	for i, l := range q.Lines {
		items[i] = payment.Item{
			Name:      l.Item.Title,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		}
	}
	return payment.IntentRequest{
		Reference: o.Number,
		Currency:  o.Currency,
		Amount: payment.Amount{
			ItemTotal: q.Totals.ItemsSubtotal,
			Shipping:  q.Totals.ShippingTotal,
			Discount:  q.Totals.DiscountTotal,
			Total:     q.Totals.Total,
		},
		Items: items,
		Redirect: payment.Redirect{
			ReturnURL: s.cfg.ReturnURL,
			CancelURL: s.cfg.CancelURL,
		},
		BrandName: s.cfg.BrandName,
	}
}

// Capture collects payment for the order referenced by externalID and marks
// it PAID. Capturing an already captured order returns its number without
// contacting the processor.
func (s *Service) Capture(ctx context.Context, externalID string) (string, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return "", &ValidationError{Field: "paypalOrderId"}
	}

	var (
		number   string
		recorded bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.FindByExternalRef(ctx, externalID)
		if err != nil {
			return err
		}
		number = o.Number
		if o.Captured() {
			return nil
		}
		if o.Status != order.StatusPending && o.Status != order.StatusPaid {
			return &order.InvalidTransitionError{From: o.Status, To: order.StatusPaid}
		}

		capture, err := s.gateway.Capture(ctx, externalID)
		if err != nil {
			return errors.Wrap(err, "capture payment")
		}

		applied, err := tx.RecordCapture(ctx, o.ID, capture.CaptureID, capture.Status)
		if err != nil {
			return errors.Wrap(err, "record capture")
		}
		if !applied {
			return nil
		}

		prev := o.Status
		o.Status = order.StatusPaid
		o.CaptureRef = capture.CaptureID
		o.CaptureStatus = capture.Status
		if err := tx.AppendEvent(ctx, order.NewEvent(order.EventPaid, o, prev)); err != nil {
			return errors.Wrap(err, "append event")
		}
		recorded = true
		return nil
	})
	if err != nil {
		s.fail(ctx, "capture", err)
		return "", err
	}

	lg := zctx.From(ctx)
	if recorded {
		s.captured.Add(ctx, 1)
		s.invalidate(ctx, number)
		lg.Info("Order paid", zap.String("order_no", number), zap.String("external_id", externalID))
	} else {
		lg.Info("Capture already recorded", zap.String("order_no", number))
	}
	return number, nil
}

// Cancel marks a pending order as canceled after the buyer abandoned
// approval. Unknown references and orders past PENDING are left untouched.
func (s *Service) Cancel(ctx context.Context, externalID string) error {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil
	}

	var number string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.FindByExternalRef(ctx, externalID)
		if errors.Is(err, order.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if o.Status != order.StatusPending {
			return nil
		}
		if err := s.transition(ctx, tx, o, order.StatusCanceled); err != nil {
			return err
		}
		number = o.Number
		return nil
	})
	if err != nil {
		s.fail(ctx, "cancel", err)
		return err
	}
	if number != "" {
		s.invalidate(ctx, number)
		zctx.From(ctx).Info("Order canceled by buyer", zap.String("order_no", number))
	}
	return nil
}

// transition moves o to next inside tx, releasing reserved stock on
// cancellation and recording the outbox event.
func (s *Service) transition(ctx context.Context, tx Tx, o *order.Order, next order.Status) error {
	prev := o.Status
	ok, err := tx.SetStatus(ctx, o.ID, prev, next)
	if err != nil {
		return errors.Wrap(err, "set status")
	}
	if !ok {
		return &order.InvalidTransitionError{From: prev, To: next}
	}
	if next == order.StatusCanceled && s.cfg.ReserveStock {
		if err := tx.ReleaseStock(ctx, o.ID); err != nil {
			return errors.Wrap(err, "release stock")
		}
	}

	o.Status = next
	eventType := order.EventStatusChanged
	if next == order.StatusCanceled {
		eventType = order.EventCanceled
	}
	if err := tx.AppendEvent(ctx, order.NewEvent(eventType, o, prev)); err != nil {
		return errors.Wrap(err, "append event")
	}
	return nil
}

// Lookup returns the order matching both number and email. Orders in a
// terminal status are served from the cache when one is configured.
func (s *Service) Lookup(ctx context.Context, number, email string) (*order.Order, error) {
	number = strings.TrimSpace(number)
	email = strings.TrimSpace(email)
	if number == "" {
		return nil, &ValidationError{Field: "orderNo"}
	}
	if email == "" {
		return nil, &ValidationError{Field: "email"}
	}

	lg := zctx.From(ctx)
	if s.cache != nil {
		o, err := s.cache.Get(ctx, number)
		switch {
		case err != nil:
			lg.Warn("Order cache get failed", zap.String("order_no", number), zap.Error(err))
		case o != nil:
			if !strings.EqualFold(o.Contact.Email, email) {
				return nil, order.ErrNotFound
			}
			return o, nil
		}
	}

	o, err := s.store.FindByNumberAndEmail(ctx, number, email)
	if err != nil {
		return nil, err
	}
	// Only terminal orders are cached: a status write committed between the
	// read above and Set would otherwise leave a stale view until the TTL.
	if s.cache != nil && o.Status.Terminal() {
		if err := s.cache.Set(ctx, o); err != nil {
			lg.Warn("Order cache set failed", zap.String("order_no", number), zap.Error(err))
		}
	}
	return o, nil
}

// List returns every order with its lines, newest first.
func (s *Service) List(ctx context.Context) ([]order.Order, error) {
	return s.store.List(ctx)
}

// Stats counts orders by status.
func (s *Service) Stats(ctx context.Context) (order.Stats, error) {
	return s.store.CountByStatus(ctx)
}

// SetStatus applies an administrative status change. Only CANCELED,
// FULFILLING, SHIPPED and COMPLETED may be requested, and the change must be
// allowed from the order's current status. Requesting the current status is
// a no-op.
func (s *Service) SetStatus(ctx context.Context, number, status string) error {
	next, ok := order.ParseStatus(status)
	if !ok || !next.AdminSettable() {
		return &ValidationError{Field: "status", Reason: "must be one of CANCELED, FULFILLING, SHIPPED, COMPLETED"}
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return &ValidationError{Field: "orderNo"}
	}

	var changed bool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.FindByNumber(ctx, number)
		if err != nil {
			return err
		}
		if o.Status == next {
			return nil
		}
		if !o.Status.CanTransition(next) {
			return &order.InvalidTransitionError{From: o.Status, To: next}
		}
		if err := s.transition(ctx, tx, o, next); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		s.fail(ctx, "set_status", err)
		return err
	}
	if changed {
		s.invalidate(ctx, number)
		zctx.From(ctx).Info("Order status changed",
			zap.String("order_no", number),
			zap.String("status", string(next)),
		)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, number string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, number); err != nil {
		zctx.From(ctx).Warn("Order cache invalidation failed", zap.String("order_no", number), zap.Error(err))
	}
}

func (s *Service) fail(ctx context.Context, op string, err error) {
	s.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("kind", errorKind(err)),
	))
	lg := zctx.From(ctx)
	if errorKind(err) == "internal" || errorKind(err) == "gateway" {
		lg.Error("Checkout operation failed", zap.String("op", op), zap.Error(err))
		return
	}
	lg.Info("Checkout operation rejected", zap.String("op", op), zap.Error(err))
}

// errorKind classifies err for metrics.
func errorKind(err error) string {
	var (
		valErr   *ValidationError
		itemErr  *pricing.InvalidItemError
		stockErr *order.OutOfStockError
		trErr    *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &valErr),
		errors.Is(err, pricing.ErrEmptyCart),
		errors.Is(err, pricing.ErrTotalTooLarge):
		return "validation"
	case errors.As(err, &itemErr), errors.As(err, &stockErr):
		return "pricing"
	case errors.Is(err, order.ErrNotFound):
		return "not_found"
	case errors.As(err, &trErr):
		return "transition"
	case payment.IsGatewayError(err):
		return "gateway"
	default:
		return "internal"
	}
}
