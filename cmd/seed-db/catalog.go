package main

import (
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// readCatalogFile decodes a commodities file. Files ending in .gz are
// decompressed first.
func readCatalogFile(path string) ([]catalog.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return decodeCatalog(r)
}

// decodeCatalog reads a JSON array of commodities. Money fields may be JSON
// strings or numbers; promotion_price and shipping_fee may be null.
func decodeCatalog(r io.Reader) ([]catalog.Item, error) {
	var items []catalog.Item
	err := jx.Decode(r, 4096).Arr(func(d *jx.Decoder) error {
		var it catalog.Item
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				it.ID, err = d.Int64()
			case "title":
				it.Title, err = d.Str()
			case "price":
				var p decimal.NullDecimal
				if p, err = decodeMoney(d); err == nil {
					it.Price = p.Decimal
				}
			case "promotion_price":
				it.PromotionPrice, err = decodeMoney(d)
			case "is_on_promotion":
				it.OnPromotion, err = d.Bool()
			case "shipping_fee":
				it.ShippingFee, err = decodeMoney(d)
			case "stock":
				it.Stock, err = d.Int()
			default:
				err = d.Skip()
			}
			if err != nil {
				return errors.Wrapf(err, "field %q", key)
			}
			return nil
		}); err != nil {
			return err
		}
		if it.ID <= 0 || it.Title == "" {
			return errors.Errorf("commodity %d: id and title are required", it.ID)
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return items, nil
}

func decodeMoney(d *jx.Decoder) (decimal.NullDecimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.NullDecimal{}, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		return decimal.NewNullDecimal(v), nil
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		return decimal.NewNullDecimal(v), nil
	}
}
