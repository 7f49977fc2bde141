package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	getCommoditiesByIDsSQL = `SELECT id, title, price, promotion_price, is_on_promotion, shipping_fee, stock
		FROM commodities WHERE id = ANY($1)`

	upsertCommoditySQL = `INSERT INTO commodities (id, title, price, promotion_price, is_on_promotion, shipping_fee, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			promotion_price = EXCLUDED.promotion_price,
			is_on_promotion = EXCLUDED.is_on_promotion,
			shipping_fee = EXCLUDED.shipping_fee,
			stock = EXCLUDED.stock,
			updated_at = now()`

	syncCommoditySeqSQL = `SELECT setval(pg_get_serial_sequence('commodities', 'id'), COALESCE(MAX(id), 1)) FROM commodities`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	db dbtx
}

// NewCatalogRepository returns a CatalogRepository that uses db.
func NewCatalogRepository(db dbtx) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetByIDs returns commodities matching any of the given ids.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []int64) ([]catalog.Item, error) {
	rows, err := r.db.Query(ctx, getCommoditiesByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting commodities by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

// Upsert inserts or replaces commodities. Used by seeding.
func (r *CatalogRepository) Upsert(ctx context.Context, items []catalog.Item) error {
	b := &pgx.Batch{}
	for _, it := range items {
		b.Queue(upsertCommoditySQL,
			it.ID, it.Title, it.Price, it.PromotionPrice, it.OnPromotion, it.ShippingFee, it.Stock,
		)
	}
	b.Queue(syncCommoditySeqSQL)

	if err := r.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("upserting commodities: %w", err)
	}
	return nil
}

func scanItem(row pgx.CollectableRow) (catalog.Item, error) {
	var it catalog.Item
	err := row.Scan(
		&it.ID, &it.Title, &it.Price, &it.PromotionPrice, &it.OnPromotion, &it.ShippingFee, &it.Stock,
	)
	return it, err
}
