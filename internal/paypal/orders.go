package paypal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/payment"
)

// maxItemName is the longest item name the API accepts.
const maxItemName = 127

// CreateIntent creates a CAPTURE-intent order and returns its id and the
// buyer approval link.
func (c *Client) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	body, err := encodeCreateOrder(req)
	if err != nil {
		return nil, err
	}

	data, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	var r orderResponse
	if err := r.Decode(jx.DecodeBytes(data)); err != nil {
		return nil, fmt.Errorf("decode create order: %w: %w", payment.ErrGatewayRejected, err)
	}
	if r.ID == "" {
		return nil, fmt.Errorf("create order: missing id: %w", payment.ErrGatewayRejected)
	}

	return &payment.Intent{
		ExternalID:  r.ID,
		ApprovalURL: r.link("approve"),
	}, nil
}

// Capture captures an approved order. Repeated calls for the same order carry
// the same PayPal-Request-Id, so the API replays the first result instead of
// charging twice.
func (c *Client) Capture(ctx context.Context, externalID string) (*payment.Capture, error) {
	if externalID == "" {
		return nil, errors.Wrap(payment.ErrCaptureFailed, "empty order id")
	}

	header := http.Header{}
	header.Set("PayPal-Request-Id", "capture-"+externalID)
	header.Set("Prefer", "return=representation")

	path := "/v2/checkout/orders/" + url.PathEscape(externalID) + "/capture"
	data, err := c.do(ctx, http.MethodPost, path, []byte("{}"), header)
	if err != nil {
		return nil, errors.Wrap(err, "capture order")
	}

	var r orderResponse
	if err := r.Decode(jx.DecodeBytes(data)); err != nil {
		return nil, fmt.Errorf("decode capture: %w: %w", payment.ErrCaptureFailed, err)
	}

	capID, capStatus := r.firstCapture()
	if capID == "" {
		return nil, fmt.Errorf("capture %s: no capture in response (status %q): %w", externalID, r.Status, payment.ErrCaptureFailed)
	}
	if capStatus == "" {
		capStatus = r.Status
	}

	return &payment.Capture{
		CaptureID: capID,
		Status:    capStatus,
	}, nil
}

func encodeCreateOrder(req payment.IntentRequest) ([]byte, error) {
	amt := req.Amount
	if !amt.ItemTotal.Add(amt.Shipping).Sub(amt.Discount).Equal(amt.Total) {
		return nil, &BreakdownMismatchError{
			Total:    money(amt.Total),
			Computed: money(amt.ItemTotal.Add(amt.Shipping).Sub(amt.Discount)),
		}
	}
	itemSum := decimal.Zero
	for _, it := range req.Items {
		itemSum = itemSum.Add(it.UnitPrice.Round(2).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if len(req.Items) > 0 && !itemSum.Equal(amt.ItemTotal) {
		return nil, &BreakdownMismatchError{
			Total:    money(amt.ItemTotal),
			Computed: money(itemSum),
		}
	}

	cur := req.Currency
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("intent", func(e *jx.Encoder) { e.Str("CAPTURE") })
		e.Field("purchase_units", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					if req.Reference != "" {
						e.Field("reference_id", func(e *jx.Encoder) { e.Str(req.Reference) })
						e.Field("invoice_id", func(e *jx.Encoder) { e.Str(req.Reference) })
					}
					e.Field("amount", func(e *jx.Encoder) {
						e.Obj(func(e *jx.Encoder) {
							e.Field("currency_code", func(e *jx.Encoder) { e.Str(cur) })
							e.Field("value", func(e *jx.Encoder) { e.Str(money(amt.Total)) })
							e.Field("breakdown", func(e *jx.Encoder) {
								e.Obj(func(e *jx.Encoder) {
									e.Field("item_total", func(e *jx.Encoder) { encodeMoney(e, cur, amt.ItemTotal) })
									if !amt.Shipping.IsZero() {
										e.Field("shipping", func(e *jx.Encoder) { encodeMoney(e, cur, amt.Shipping) })
									}
									if !amt.Discount.IsZero() {
										e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, cur, amt.Discount) })
									}
								})
							})
						})
					})
					e.Field("items", func(e *jx.Encoder) {
						e.Arr(func(e *jx.Encoder) {
							for _, it := range req.Items {
								e.Obj(func(e *jx.Encoder) {
									e.Field("name", func(e *jx.Encoder) { e.Str(truncate(it.Name, maxItemName)) })
									e.Field("unit_amount", func(e *jx.Encoder) { encodeMoney(e, cur, it.UnitPrice) })
									e.Field("quantity", func(e *jx.Encoder) { e.Str(strconv.Itoa(it.Quantity)) })
								})
							}
						})
					})
				})
			})
		})
		e.Field("application_context", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				if req.Redirect.ReturnURL != "" {
					e.Field("return_url", func(e *jx.Encoder) { e.Str(req.Redirect.ReturnURL) })
				}
				if req.Redirect.CancelURL != "" {
					e.Field("cancel_url", func(e *jx.Encoder) { e.Str(req.Redirect.CancelURL) })
				}
				if req.BrandName != "" {
					e.Field("brand_name", func(e *jx.Encoder) { e.Str(req.BrandName) })
				}
				e.Field("user_action", func(e *jx.Encoder) { e.Str("PAY_NOW") })
			})
		})
	})
	return e.Bytes(), nil
}

func encodeMoney(e *jx.Encoder, currency string, v decimal.Decimal) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("currency_code", func(e *jx.Encoder) { e.Str(currency) })
		e.Field("value", func(e *jx.Encoder) { e.Str(money(v)) })
	})
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// orderResponse is the subset of the Orders v2 resource the client reads.
type orderResponse struct {
	ID            string
	Status        string
	Links         []link
	PurchaseUnits []purchaseUnit
}

type link struct {
	Href string
	Rel  string
}

type purchaseUnit struct {
	Captures []capture
}

type capture struct {
	ID     string
	Status string
}

func (r *orderResponse) link(rel string) string {
	for _, l := range r.Links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}

func (r *orderResponse) firstCapture() (id, status string) {
	if len(r.PurchaseUnits) == 0 || len(r.PurchaseUnits[0].Captures) == 0 {
		return "", ""
	}
	c := r.PurchaseUnits[0].Captures[0]
	return c.ID, c.Status
}

func (r *orderResponse) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			r.ID = v
			return err
		case "status":
			v, err := d.Str()
			r.Status = v
			return err
		case "links":
			return d.Arr(func(d *jx.Decoder) error {
				var l link
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "href":
						v, err := d.Str()
						l.Href = v
						return err
					case "rel":
						v, err := d.Str()
						l.Rel = v
						return err
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				r.Links = append(r.Links, l)
				return nil
			})
		case "purchase_units":
			return d.Arr(func(d *jx.Decoder) error {
				var pu purchaseUnit
				if err := pu.Decode(d); err != nil {
					return err
				}
				r.PurchaseUnits = append(r.PurchaseUnits, pu)
				return nil
			})
		default:
			return d.Skip()
		}
	})
}

func (pu *purchaseUnit) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "payments" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "captures" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				var c capture
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "id":
						v, err := d.Str()
						c.ID = v
						return err
					case "status":
						v, err := d.Str()
						c.Status = v
						return err
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				pu.Captures = append(pu.Captures, c)
				return nil
			})
		})
	})
}
