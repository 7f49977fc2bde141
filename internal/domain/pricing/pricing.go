// Package pricing turns a cart into priced lines and order totals.
//
// Pricing is a pure function of the requested items and a catalog snapshot:
// it performs no I/O, so callers read the snapshot inside whatever transaction
// they need the prices to be consistent with. All monetary values are rounded
// half away from zero to two decimals at every step, which keeps
// ItemsSubtotal + ShippingTotal - DiscountTotal equal to Total exactly.
package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// MaxQuantity is the largest quantity a single cart entry may request.
const MaxQuantity = 10000

// MaxAmount is the largest amount the ledger stores, NUMERIC(12,2).
var MaxAmount = decimal.RequireFromString("9999999999.99")

var (
	// ErrEmptyCart is returned when no items are requested.
	ErrEmptyCart = errors.New("items required")
	// ErrTotalTooLarge is returned when the order total exceeds MaxAmount.
	ErrTotalTooLarge = errors.New("order total exceeds the maximum amount")
)

// InvalidItemError indicates a requested item id is absent from the catalog.
type InvalidItemError struct {
	ItemID int64
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("invalid commodity: %d", e.ItemID)
}

// Request is a single cart entry.
type Request struct {
	ItemID   int64
	Quantity int
}

// Line is a priced cart entry.
type Line struct {
	Item         catalog.Item
	Quantity     int
	UnitPrice    decimal.Decimal
	ShippingFee  decimal.Decimal
	LineSubtotal decimal.Decimal
	LineShipping decimal.Decimal
	LineTotal    decimal.Decimal
}

// Totals is the order-level breakdown.
type Totals struct {
	ItemsSubtotal decimal.Decimal
	ShippingTotal decimal.Decimal
	DiscountTotal decimal.Decimal
	Total         decimal.Decimal
}

// Quote is the full pricing output.
type Quote struct {
	Lines  []Line
	Totals Totals
}

// IDs returns the distinct item ids referenced by reqs, in request order.
func IDs(reqs []Request) []int64 {
	seen := make(map[int64]struct{}, len(reqs))
	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		if _, ok := seen[r.ItemID]; ok {
			continue
		}
		seen[r.ItemID] = struct{}{}
		ids = append(ids, r.ItemID)
	}
	return ids
}

// NormalizeQuantity coerces a requested quantity to at least one.
func NormalizeQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

// Price prices reqs against snapshot. It fails on the first unknown item id,
// or when the total does not fit MaxAmount, and returns no partial output.
func Price(reqs []Request, snapshot catalog.Snapshot) (*Quote, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]Line, 0, len(reqs))
	itemsSubtotal := decimal.Zero
	shippingTotal := decimal.Zero

	for _, r := range reqs {
		item, ok := snapshot[r.ItemID]
		if !ok {
			return nil, &InvalidItemError{ItemID: r.ItemID}
		}

		qty := NormalizeQuantity(r.Quantity)
		dq := decimal.NewFromInt(int64(qty))

		unit := round(item.EffectivePrice())
		fee := round(item.UnitShipping())
		lineSubtotal := round(unit.Mul(dq))
		lineShipping := round(fee.Mul(dq))
		lineTotal := round(lineSubtotal.Add(lineShipping))

		lines = append(lines, Line{
			Item:         item,
			Quantity:     qty,
			UnitPrice:    unit,
			ShippingFee:  fee,
			LineSubtotal: lineSubtotal,
			LineShipping: lineShipping,
			LineTotal:    lineTotal,
		})

		itemsSubtotal = round(itemsSubtotal.Add(lineSubtotal))
		shippingTotal = round(shippingTotal.Add(lineShipping))
	}

	discount := decimal.Zero
	total := round(itemsSubtotal.Add(shippingTotal).Sub(discount))
	if total.GreaterThan(MaxAmount) {
		return nil, ErrTotalTooLarge
	}

	return &Quote{
		Lines: lines,
		Totals: Totals{
			ItemsSubtotal: itemsSubtotal,
			ShippingTotal: shippingTotal,
			DiscountTotal: discount,
			Total:         total,
		},
	}, nil
}

// round rounds half away from zero to cents.
func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
