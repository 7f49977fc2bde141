// Package events relays order lifecycle events from the transactional outbox
// to Kafka.
package events

import (
	"context"
	"time"

	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/order"
)

// Message is a pending outbox row.
type Message struct {
	ID        int64
	EventID   uuid.UUID
	Type      order.EventType
	Key       string
	Payload   []byte
	CreatedAt time.Time
}

// Outbox hands out pending messages. Drain locks up to limit pending rows,
// passes them to fn and marks them sent only when fn succeeds.
type Outbox interface {
	Drain(ctx context.Context, limit int, fn func(ctx context.Context, msgs []Message) error) (int, error)
}

// Publisher delivers messages to a broker.
type Publisher interface {
	Publish(ctx context.Context, msgs []Message) error
}

// Encode renders e as the JSON payload stored in the outbox.
func Encode(e order.Event) []byte {
	var enc jx.Encoder
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("id", func(enc *jx.Encoder) { enc.Str(e.ID.String()) })
		enc.Field("type", func(enc *jx.Encoder) { enc.Str(string(e.Type)) })
		enc.Field("order_no", func(enc *jx.Encoder) { enc.Str(e.OrderNo) })
		enc.Field("status", func(enc *jx.Encoder) { enc.Str(string(e.Status)) })
		if e.PreviousStatus != "" {
			enc.Field("previous_status", func(enc *jx.Encoder) { enc.Str(string(e.PreviousStatus)) })
		}
		enc.Field("total", func(enc *jx.Encoder) { enc.Str(e.Total.StringFixed(2)) })
		enc.Field("currency", func(enc *jx.Encoder) { enc.Str(e.Currency) })
		enc.Field("occurred_at", func(enc *jx.Encoder) { enc.Str(e.OccurredAt.UTC().Format(time.RFC3339Nano)) })
	})
	return enc.Bytes()
}
