package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `[
  {"id": 1, "title": "Dripper", "price": "24.00", "promotion_price": "19.50", "is_on_promotion": true, "shipping_fee": 4, "stock": 40, "sku": "ignored"},
  {"id": 2, "title": "Mug", "price": 12, "promotion_price": null, "is_on_promotion": false, "shipping_fee": null, "stock": 120}
]`

func TestDecodeCatalog(t *testing.T) {
	items, err := decodeCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, items, 2)

	a := items[0]
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, "Dripper", a.Title)
	assert.True(t, a.Price.Equal(decimal.RequireFromString("24")))
	require.True(t, a.PromotionPrice.Valid)
	assert.True(t, a.PromotionPrice.Decimal.Equal(decimal.RequireFromString("19.5")))
	assert.True(t, a.OnPromotion)
	require.True(t, a.ShippingFee.Valid)
	assert.True(t, a.ShippingFee.Decimal.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, 40, a.Stock)

	b := items[1]
	assert.True(t, b.Price.Equal(decimal.NewFromInt(12)))
	assert.False(t, b.PromotionPrice.Valid)
	assert.False(t, b.ShippingFee.Valid)
}

func TestDecodeCatalog_RequiredFieldsOnly(t *testing.T) {
	items, err := decodeCatalog(strings.NewReader(`[{"id": 1, "title": "x", "price": "1.00", "stock": 1}]`))
	require.NoError(t, err)
	require.Len(t, items, 1)

	it := items[0]
	assert.Equal(t, int64(1), it.ID)
	assert.Equal(t, "x", it.Title)
	assert.True(t, it.Price.Equal(decimal.NewFromInt(1)))
	assert.False(t, it.PromotionPrice.Valid)
	assert.False(t, it.OnPromotion)
	assert.Equal(t, 1, it.Stock)
}

func TestDecodeCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not an array", input: `{"id": 1}`},
		{name: "missing title", input: `[{"id": 1, "price": "1"}]`},
		{name: "bad price", input: `[{"id": 1, "title": "x", "price": "cheap"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeCatalog(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestReadCatalogFile_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commodities.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(sampleCatalog))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	items, err := readCatalogFile(path)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestReadCatalogFile_Seed(t *testing.T) {
	items, err := readCatalogFile(filepath.Join("..", "..", "db", "seed", "commodities.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, items)
}
