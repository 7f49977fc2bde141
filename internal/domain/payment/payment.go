// Package payment defines the contract between checkout and a hosted payment
// processor.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Gateway failures. Adapters wrap these so callers can classify with
// errors.Is.
var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected request")
	ErrCaptureFailed      = errors.New("payment capture failed")
)

// IsGatewayError reports whether err is any gateway failure.
func IsGatewayError(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable) ||
		errors.Is(err, ErrGatewayRejected) ||
		errors.Is(err, ErrCaptureFailed)
}

// Item is a purchase line as shown to the processor.
type Item struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Amount is the order amount with its breakdown.
type Amount struct {
	ItemTotal decimal.Decimal
	Shipping  decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
}

// Redirect holds the URLs the processor sends the buyer back to.
type Redirect struct {
	ReturnURL string
	CancelURL string
}

// IntentRequest describes a payment to be approved by the buyer.
type IntentRequest struct {
	Reference string
	Currency  string
	Amount    Amount
	Items     []Item
	Redirect  Redirect
	BrandName string
}

// Intent is a created, not yet approved payment.
type Intent struct {
	ExternalID  string
	ApprovalURL string
}

// Capture is the result of collecting an approved payment.
type Capture struct {
	CaptureID string
	// Status is the processor's raw status string.
	Status string
}

// Gateway creates and captures payments.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	Capture(ctx context.Context, externalID string) (*Capture, error)
}
