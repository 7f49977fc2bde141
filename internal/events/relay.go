package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// RelayConfig tunes the relay loop.
type RelayConfig struct {
	Interval  time.Duration
	BatchSize int
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithMeterProvider records relay metrics with mp.
func WithMeterProvider(mp metric.MeterProvider) RelayOption {
	return func(r *Relay) { r.meterProvider = mp }
}

// Relay moves outbox messages to a Publisher at least once.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	interval  time.Duration
	batchSize int

	meterProvider metric.MeterProvider
	published     metric.Int64Counter
	failures      metric.Int64Counter
}

// NewRelay creates a Relay.
func NewRelay(outbox Outbox, publisher Publisher, cfg RelayConfig, opts ...RelayOption) (*Relay, error) {
	r := &Relay{
		outbox:        outbox,
		publisher:     publisher,
		interval:      cfg.Interval,
		batchSize:     cfg.BatchSize,
		meterProvider: noop.NewMeterProvider(),
	}
	if r.interval <= 0 {
		r.interval = time.Second
	}
	if r.batchSize <= 0 {
		r.batchSize = 100
	}
	for _, opt := range opts {
		opt(r)
	}

	meter := r.meterProvider.Meter("github.com/xenking/storefront/internal/events")
	var err error
	if r.published, err = meter.Int64Counter("events.published",
		metric.WithDescription("Outbox events delivered to the broker"),
	); err != nil {
		return nil, errors.Wrap(err, "published counter")
	}
	if r.failures, err = meter.Int64Counter("events.publish_failures",
		metric.WithDescription("Failed outbox relay attempts"),
	); err != nil {
		return nil, errors.Wrap(err, "failures counter")
	}
	return r, nil
}

// RelayOnce drains batches until the outbox has nothing pending and returns
// how many messages were published.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.outbox.Drain(ctx, r.batchSize, r.publisher.Publish)
		if err != nil {
			r.failures.Add(ctx, 1)
			return total, errors.Wrap(err, "drain outbox")
		}
		total += n
		r.published.Add(ctx, int64(n))
		if n < r.batchSize {
			return total, nil
		}
	}
}

// Run relays on every tick until ctx is canceled. Failed attempts are logged
// and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	lg := zctx.From(ctx).Named("relay")
	lg.Info("Starting outbox relay",
		zap.Duration("interval", r.interval),
		zap.Int("batch_size", r.batchSize),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.Info("Outbox relay stopped")
			return nil
		case <-ticker.C:
			n, err := r.RelayOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				lg.Warn("Outbox relay failed", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Debug("Relayed outbox events", zap.Int("count", n))
			}
		}
	}
}
