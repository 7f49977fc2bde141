package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderKeyPrefix  = "order:"
	defaultCacheTTL = 5 * time.Minute
)

var _ order.Cache = (*OrderCache)(nil)

// OrderCache keeps public order views in Redis.
type OrderCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewOrderCache returns an OrderCache. A zero ttl selects the default.
func NewOrderCache(client redis.Cmdable, ttl time.Duration) *OrderCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &OrderCache{client: client, ttl: ttl}
}

// Get returns the cached order, or nil on a miss.
func (c *OrderCache) Get(ctx context.Context, number string) (*order.Order, error) {
	data, err := c.client.Get(ctx, orderKeyPrefix+number).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "cache get")
	}

	var o order.Order
	if err := decodeOrder(jx.DecodeBytes(data), &o); err != nil {
		return nil, errors.Wrap(err, "decode cached order")
	}
	return &o, nil
}

// Set stores o under its number.
func (c *OrderCache) Set(ctx context.Context, o *order.Order) error {
	if err := c.client.Set(ctx, orderKeyPrefix+o.Number, encodeOrder(o), c.ttl).Err(); err != nil {
		return errors.Wrap(err, "cache set")
	}
	return nil
}

// Delete evicts the order.
func (c *OrderCache) Delete(ctx context.Context, number string) error {
	if err := c.client.Del(ctx, orderKeyPrefix+number).Err(); err != nil {
		return errors.Wrap(err, "cache delete")
	}
	return nil
}

func encodeOrder(o *order.Order) []byte {
	str := func(name, v string) func(e *jx.Encoder) {
		return func(e *jx.Encoder) { e.Field(name, func(e *jx.Encoder) { e.Str(v) }) }
	}
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		str("number", o.Number)(e)
		str("email", o.Contact.Email)(e)
		str("country", o.Contact.Country)(e)
		str("region", o.Contact.Region)(e)
		str("address1", o.Contact.Address1)(e)
		str("address2", o.Contact.Address2)(e)
		str("postal_code", o.Contact.PostalCode)(e)
		str("phone", o.Contact.Phone)(e)
		str("currency", o.Currency)(e)
		str("total", o.Total.String())(e)
		str("status", string(o.Status))(e)
		str("external_ref", o.ExternalRef)(e)
		str("capture_ref", o.CaptureRef)(e)
		str("capture_status", o.CaptureStatus)(e)
		str("created_at", o.CreatedAt.Format(time.RFC3339Nano))(e)
		str("updated_at", o.UpdatedAt.Format(time.RFC3339Nano))(e)
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range o.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("commodity_id", func(e *jx.Encoder) { e.Int64(l.CommodityID) })
						str("title", l.Title)(e)
						str("unit_price", l.UnitPrice.String())(e)
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						str("line_total", l.LineTotal.String())(e)
					})
				}
			})
		})
	})
	return e.Bytes()
}

func decodeOrder(d *jx.Decoder, o *order.Order) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Int64()
			o.ID = v
			return err
		case "lines":
			return d.Arr(func(d *jx.Decoder) error {
				var l order.Line
				if err := decodeLine(d, &l); err != nil {
					return err
				}
				o.Lines = append(o.Lines, l)
				return nil
			})
		}

		v, err := d.Str()
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		switch key {
		case "number":
			o.Number = v
		case "email":
			o.Contact.Email = v
		case "country":
			o.Contact.Country = v
		case "region":
			o.Contact.Region = v
		case "address1":
			o.Contact.Address1 = v
		case "address2":
			o.Contact.Address2 = v
		case "postal_code":
			o.Contact.PostalCode = v
		case "phone":
			o.Contact.Phone = v
		case "currency":
			o.Currency = v
		case "total":
			o.Total, err = decimal.NewFromString(v)
		case "status":
			o.Status = order.Status(v)
		case "external_ref":
			o.ExternalRef = v
		case "capture_ref":
			o.CaptureRef = v
		case "capture_status":
			o.CaptureStatus = v
		case "created_at":
			o.CreatedAt, err = time.Parse(time.RFC3339Nano, v)
		case "updated_at":
			o.UpdatedAt, err = time.Parse(time.RFC3339Nano, v)
		}
		return err
	})
}

func decodeLine(d *jx.Decoder, l *order.Line) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "commodity_id":
			l.CommodityID, err = d.Int64()
		case "quantity":
			l.Quantity, err = d.Int()
		case "title":
			l.Title, err = d.Str()
		case "unit_price", "line_total":
			var v string
			if v, err = d.Str(); err != nil {
				return err
			}
			var dec decimal.Decimal
			if dec, err = decimal.NewFromString(v); err != nil {
				return err
			}
			if key == "unit_price" {
				l.UnitPrice = dec
			} else {
				l.LineTotal = dec
			}
		default:
			err = d.Skip()
		}
		return err
	})
}
