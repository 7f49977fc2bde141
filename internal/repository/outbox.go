package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/events"
)

const (
	appendEventSQL = `INSERT INTO outbox (event_id, event_type, key, payload) VALUES ($1, $2, $3, $4)`

	fetchPendingSQL = `SELECT id, event_id, event_type, key, payload, created_at
		FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1 FOR UPDATE SKIP LOCKED`

	markSentSQL = `UPDATE outbox SET sent_at = now() WHERE id = ANY($1)`
)

// AppendEvent writes e to the outbox keyed by order number.
func (r *OrderRepository) AppendEvent(ctx context.Context, e order.Event) error {
	if _, err := r.db.Exec(ctx, appendEventSQL, e.ID, e.Type, e.OrderNo, events.Encode(e)); err != nil {
		return fmt.Errorf("appending %s event: %w", e.Type, err)
	}
	return nil
}

var _ events.Outbox = (*OutboxRepository)(nil)

// OutboxRepository hands pending outbox rows to the relay.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository returns an OutboxRepository that uses the given pool.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Drain locks up to limit pending rows, skipping rows held by another relay,
// and marks them sent once fn succeeds.
func (r *OutboxRepository) Drain(ctx context.Context, limit int, fn func(ctx context.Context, msgs []events.Message) error) (int, error) {
	var n int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, fetchPendingSQL, limit)
		if err != nil {
			return fmt.Errorf("fetching pending events: %w", err)
		}
		msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (events.Message, error) {
			var (
				m         events.Message
				eventType string
			)
			err := row.Scan(&m.ID, &m.EventID, &eventType, &m.Key, &m.Payload, &m.CreatedAt)
			m.Type = order.EventType(eventType)
			return m, err
		})
		if err != nil {
			return fmt.Errorf("scanning pending events: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}

		if err := fn(ctx, msgs); err != nil {
			return err
		}

		ids := make([]int64, len(msgs))
		for i, m := range msgs {
			ids[i] = m.ID
		}
		if _, err := tx.Exec(ctx, markSentSQL, ids); err != nil {
			return fmt.Errorf("marking events sent: %w", err)
		}
		n = len(msgs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
