// Package checkout orchestrates order creation, payment capture and the
// administrative order lifecycle.
//
// Every state change runs inside a single local transaction: the catalog
// snapshot, the pending order, its lines and the outbox event are written
// together, and the payment processor is called before commit so that a
// processor failure leaves no local trace.
package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
)

// Tx is what a checkout transaction can read and write.
type Tx interface {
	order.Ledger
	catalog.Repository
}

// Store opens transactions and serves reads outside of them.
type Store interface {
	order.Ledger
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Request is a checkout submission.
type Request struct {
	Contact  order.Contact
	Currency string
	Items    []pricing.Request
}

// Result is a created order awaiting buyer approval.
type Result struct {
	OrderNo     string
	ExternalID  string
	ApprovalURL string
	Quote       *pricing.Quote
	Currency    string
}

// normalize trims contact fields and rejects missing required values. It runs
// before any catalog read or ledger write.
func (r *Request) normalize(defaultCurrency string) error {
	c := &r.Contact
	c.Email = strings.TrimSpace(c.Email)
	c.Country = strings.TrimSpace(c.Country)
	c.Region = strings.TrimSpace(c.Region)
	c.Address1 = strings.TrimSpace(c.Address1)
	c.Address2 = strings.TrimSpace(c.Address2)
	c.PostalCode = strings.TrimSpace(c.PostalCode)
	c.Phone = strings.TrimSpace(c.Phone)

	required := []struct {
		field string
		value string
	}{
		{"email", c.Email},
		{"country", c.Country},
		{"region", c.Region},
		{"address1", c.Address1},
		{"postal_code", c.PostalCode},
		{"phone", c.Phone},
	}
	for _, f := range required {
		if f.value == "" {
			return &ValidationError{Field: f.field}
		}
	}
	if !strings.Contains(c.Email, "@") {
		return &ValidationError{Field: "email", Reason: "must be an email address"}
	}
	if len(r.Items) == 0 {
		return &ValidationError{Field: "items"}
	}
	for _, it := range r.Items {
		if it.Quantity > pricing.MaxQuantity {
			return &ValidationError{
				Field:  "items",
				Reason: fmt.Sprintf("quantity of commodity %d exceeds %d", it.ItemID, pricing.MaxQuantity),
			}
		}
	}

	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = defaultCurrency
	}
	if len(r.Currency) != 3 {
		return &ValidationError{Field: "currency", Reason: "must be an ISO 4217 code"}
	}
	return nil
}

func linesFromQuote(q *pricing.Quote) []order.Line {
	lines := make([]order.Line, len(q.Lines))
	for i, l := range q.Lines {
		lines[i] = order.Line{
			CommodityID: l.Item.ID,
			Title:       l.Item.Title,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal,
		}
	}
	return lines
}
