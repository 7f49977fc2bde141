package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel errors for ledger operations.
var (
	ErrNotFound             = errors.New("order not found")
	ErrOrderNumberExhausted = errors.New("could not allocate a unique order number")
)

// OutOfStockError indicates a reservation could not be satisfied.
type OutOfStockError struct {
	CommodityID int64
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("commodity %d is out of stock", e.CommodityID)
}

// Contact holds the customer's contact and shipping details.
type Contact struct {
	Email      string
	Country    string
	Region     string
	Address1   string
	Address2   string
	PostalCode string
	Phone      string
}

// Order is a persisted customer order.
type Order struct {
	ID       int64
	Number   string
	Contact  Contact
	Currency string
	Total    decimal.Decimal
	Status   Status

	// ExternalRef is the payment processor's order id, set once the intent
	// has been created.
	ExternalRef string
	// CaptureRef and CaptureStatus are recorded on capture. CaptureStatus
	// keeps the processor's raw status string.
	CaptureRef    string
	CaptureStatus string

	CreatedAt time.Time
	UpdatedAt time.Time

	Lines []Line
}

// Captured reports whether a capture has been recorded.
func (o *Order) Captured() bool {
	return o.CaptureRef != ""
}

// Line is an immutable snapshot of a purchased item.
type Line struct {
	CommodityID int64
	Title       string
	UnitPrice   decimal.Decimal
	Quantity    int
	LineTotal   decimal.Decimal
}

// NewOrder is the input for creating a pending order.
type NewOrder struct {
	Contact  Contact
	Currency string
	Total    decimal.Decimal
}

// Stats counts orders per status.
type Stats struct {
	Total      int
	Pending    int
	Paid       int
	Fulfilling int
	Shipped    int
	Completed  int
	Canceled   int
}

// Add increments the counter for s by n.
func (st *Stats) Add(s Status, n int) {
	st.Total += n
	switch s {
	case StatusPending:
		st.Pending += n
	case StatusPaid:
		st.Paid += n
	case StatusFulfilling:
		st.Fulfilling += n
	case StatusShipped:
		st.Shipped += n
	case StatusCompleted:
		st.Completed += n
	case StatusCanceled:
		st.Canceled += n
	}
}

// EventType names an order lifecycle event.
type EventType string

const (
	EventCreated       EventType = "order.created"
	EventPaid          EventType = "order.paid"
	EventCanceled      EventType = "order.canceled"
	EventStatusChanged EventType = "order.status_changed"
)

// Event is written to the outbox in the same transaction as the change it
// describes.
type Event struct {
	ID             uuid.UUID
	Type           EventType
	OrderNo        string
	Status         Status
	PreviousStatus Status
	Total          decimal.Decimal
	Currency       string
	OccurredAt     time.Time
}

// NewEvent builds an event describing o after a change from prev.
func NewEvent(t EventType, o *Order, prev Status) Event {
	return Event{
		ID:             uuid.New(),
		Type:           t,
		OrderNo:        o.Number,
		Status:         o.Status,
		PreviousStatus: prev,
		Total:          o.Total,
		Currency:       o.Currency,
		OccurredAt:     time.Now().UTC(),
	}
}

// Ledger is the order store. Implementations never commit or roll back; a
// Ledger bound to a transaction writes into it and the caller decides its
// outcome.
type Ledger interface {
	CreatePending(ctx context.Context, o NewOrder) (*Order, error)
	AttachLines(ctx context.Context, orderID int64, lines []Line) error
	SetExternalRef(ctx context.Context, orderID int64, ref string) error
	// RecordCapture stores the capture reference and raw status and marks
	// the order PAID. It reports false when a capture was already recorded.
	RecordCapture(ctx context.Context, orderID int64, captureRef, rawStatus string) (bool, error)
	// SetStatus moves the order from one status to another. It reports false
	// when the order is no longer in status from.
	SetStatus(ctx context.Context, orderID int64, from, to Status) (bool, error)

	FindByNumberAndEmail(ctx context.Context, number, email string) (*Order, error)
	// FindByExternalRef and FindByNumber lock the row when called inside a
	// transaction.
	FindByExternalRef(ctx context.Context, ref string) (*Order, error)
	FindByNumber(ctx context.Context, number string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	CountByStatus(ctx context.Context) (Stats, error)

	AppendEvent(ctx context.Context, e Event) error

	ReserveStock(ctx context.Context, lines []Line) error
	ReleaseStock(ctx context.Context, orderID int64) error
}

// Cache holds order views for public lookups.
type Cache interface {
	Get(ctx context.Context, number string) (*Order, error)
	Set(ctx context.Context, o *Order) error
	Delete(ctx context.Context, number string) error
}
