package handler

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
)

// Quantity accepts a JSON number or a string with a leading integer, such as
// "3" or "2.7". Anything else decodes to zero, which pricing treats as one.
// Values are clamped to the int32 range of the ledger column.
type Quantity int

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	*q = 0
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil
		}
		if v, err := n.Int64(); err == nil {
			*q = clampQuantity(float64(v))
		} else if f, err := n.Float64(); err == nil {
			*q = clampQuantity(math.Trunc(f))
		}
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil
		}
		*q = leadingInt(s)
	}
	return nil
}

// leadingInt parses the optionally signed integer prefix of s, after leading
// whitespace. It returns zero when s has no such prefix.
func leadingInt(s string) Quantity {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	// ParseInt saturates on overflow.
	v, _ := strconv.ParseInt(s[:end], 10, 64)
	return clampQuantity(float64(v))
}

func clampQuantity(f float64) Quantity {
	switch {
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	default:
		return Quantity(f)
	}
}

// Schema implements huma.SchemaProvider so that any JSON value passes request
// validation.
func (Quantity) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "Units to buy, at most " + strconv.Itoa(pricing.MaxQuantity) + ". Missing or invalid values count as 1.",
		Examples:    []any{1},
	}
}

type CartItem struct {
	CommodityID int64    `json:"commodity_id" minimum:"1" doc:"Catalog item id"`
	Quantity    Quantity `json:"quantity,omitempty"`
}

// CheckoutBody is the checkout form. Fields are optional in the schema so
// that missing values are reported by checkout validation as 400s.
type CheckoutBody struct {
	Email      string     `json:"email,omitempty" maxLength:"320"`
	Country    string     `json:"country,omitempty" maxLength:"64"`
	Region     string     `json:"region,omitempty" maxLength:"128"`
	Address1   string     `json:"address1,omitempty" maxLength:"256"`
	Address2   string     `json:"address2,omitempty" maxLength:"256"`
	PostalCode string     `json:"postal_code,omitempty" maxLength:"32"`
	Phone      string     `json:"phone,omitempty" maxLength:"64"`
	Currency   string     `json:"currency,omitempty" doc:"ISO 4217 code, defaults to the store currency"`
	Items      []CartItem `json:"items,omitempty"`
}

type CreateOrderInput struct {
	Body CheckoutBody
}

type CreateOrderOutput struct {
	Body struct {
		PayPalOrderID string `json:"paypalOrderId"`
		ApprovalURL   string `json:"approvalUrl,omitempty"`
	}
}

type CreateOrderRedirectOutput struct {
	Body struct {
		ApprovalURL string `json:"approvalUrl"`
	}
}

type CaptureOrderInput struct {
	Body struct {
		PayPalOrderID string `json:"paypalOrderId,omitempty"`
	}
}

type CaptureOrderOutput struct {
	Body struct {
		OrderNo string `json:"orderNo"`
	}
}

type TokenInput struct {
	Token string `query:"token" doc:"Payment processor order id"`
}

type RedirectOutput struct {
	Status   int
	Location string `header:"Location"`
}

type LookupOrderInput struct {
	OrderNo string `query:"orderNo"`
	Email   string `query:"email"`
}

type OrderLine struct {
	CommodityID int64  `json:"commodity_id"`
	Title       string `json:"title_snapshot"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"line_total"`
}

type PublicOrder struct {
	OrderNo     string      `json:"orderNo"`
	Status      string      `json:"status"`
	Currency    string      `json:"currency"`
	TotalAmount string      `json:"total_amount"`
	CreatedAt   time.Time   `json:"created_at"`
	Items       []OrderLine `json:"items"`
}

type LookupOrderOutput struct {
	Body PublicOrder
}

type AdminOrder struct {
	PublicOrder
	Email         string    `json:"email"`
	Country       string    `json:"country"`
	Region        string    `json:"region"`
	Address1      string    `json:"address1"`
	Address2      string    `json:"address2,omitempty"`
	PostalCode    string    `json:"postal_code"`
	Phone         string    `json:"phone"`
	PayPalOrderID string    `json:"paypal_order_id,omitempty"`
	CaptureID     string    `json:"paypal_capture_id,omitempty"`
	CaptureStatus string    `json:"paypal_capture_status,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ListOrdersOutput struct {
	Body []AdminOrder
}

type SetOrderStatusInput struct {
	OrderNo string `path:"orderNo"`
	Body    struct {
		Status string `json:"status" doc:"One of CANCELED, FULFILLING, SHIPPED, COMPLETED"`
	}
}

type MessageOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

type OrderStatsOutput struct {
	Body struct {
		Total      int `json:"total"`
		Pending    int `json:"pending"`
		Paid       int `json:"paid"`
		Fulfilling int `json:"fulfilling"`
		Shipped    int `json:"shipped"`
		Completed  int `json:"completed"`
		Canceled   int `json:"canceled"`
	}
}

func toLines(lines []order.Line) []OrderLine {
	out := make([]OrderLine, len(lines))
	for i, l := range lines {
		out[i] = OrderLine{
			CommodityID: l.CommodityID,
			Title:       l.Title,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal.StringFixed(2),
		}
	}
	return out
}

func toPublic(o *order.Order) PublicOrder {
	return PublicOrder{
		OrderNo:     o.Number,
		Status:      string(o.Status),
		Currency:    o.Currency,
		TotalAmount: o.Total.StringFixed(2),
		CreatedAt:   o.CreatedAt,
		Items:       toLines(o.Lines),
	}
}

func toAdmin(o *order.Order) AdminOrder {
	return AdminOrder{
		PublicOrder:   toPublic(o),
		Email:         o.Contact.Email,
		Country:       o.Contact.Country,
		Region:        o.Contact.Region,
		Address1:      o.Contact.Address1,
		Address2:      o.Contact.Address2,
		PostalCode:    o.Contact.PostalCode,
		Phone:         o.Contact.Phone,
		PayPalOrderID: o.ExternalRef,
		CaptureID:     o.CaptureRef,
		CaptureStatus: o.CaptureStatus,
		UpdatedAt:     o.UpdatedAt,
	}
}
