// Package catalog describes the read-only view of sellable commodities that
// checkout prices against.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Item is a commodity as stored in the catalog.
type Item struct {
	ID             int64
	Title          string
	Price          decimal.Decimal
	PromotionPrice decimal.NullDecimal
	OnPromotion    bool
	ShippingFee    decimal.NullDecimal
	Stock          int
}

// EffectivePrice returns the promotion price when the item is on promotion
// and one is set, otherwise the regular price.
func (i Item) EffectivePrice() decimal.Decimal {
	if i.OnPromotion && i.PromotionPrice.Valid {
		return i.PromotionPrice.Decimal
	}
	return i.Price
}

// UnitShipping returns the per-unit shipping fee, zero when unset.
func (i Item) UnitShipping() decimal.Decimal {
	if i.ShippingFee.Valid {
		return i.ShippingFee.Decimal
	}
	return decimal.Zero
}

// Snapshot is a set of catalog items keyed by id, read once per checkout.
type Snapshot map[int64]Item

// NewSnapshot indexes items by id.
func NewSnapshot(items []Item) Snapshot {
	s := make(Snapshot, len(items))
	for _, it := range items {
		s[it.ID] = it
	}
	return s
}

// Repository defines read operations for the catalog.
type Repository interface {
	GetByIDs(ctx context.Context, ids []int64) ([]Item, error)
}
