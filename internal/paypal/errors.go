package paypal

import (
	"fmt"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/payment"
)

// APIError is a non-2xx reply from the API.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
	DebugID    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: %d %s: %s (debug_id=%s)", e.StatusCode, e.Name, e.Message, e.DebugID)
}

// Unwrap classifies the reply: 5xx and 429 are availability failures,
// everything else is a rejection.
func (e *APIError) Unwrap() error {
	if e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests {
		return payment.ErrGatewayUnavailable
	}
	return payment.ErrGatewayRejected
}

func decodeAPIError(status int, body []byte) error {
	e := &APIError{StatusCode: status}
	if len(body) == 0 {
		return e
	}
	// Best effort: a malformed error body still yields the status code.
	_ = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name", "error":
			v, err := d.Str()
			e.Name = v
			return err
		case "message", "error_description":
			v, err := d.Str()
			e.Message = v
			return err
		case "debug_id":
			v, err := d.Str()
			e.DebugID = v
			return err
		default:
			return d.Skip()
		}
	})
	return e
}

// BreakdownMismatchError is returned before sending an order whose amount
// breakdown does not add up.
type BreakdownMismatchError struct {
	Total    string
	Computed string
}

func (e *BreakdownMismatchError) Error() string {
	return fmt.Sprintf("amount breakdown %s does not match total %s", e.Computed, e.Total)
}

func (e *BreakdownMismatchError) Unwrap() error {
	return payment.ErrGatewayRejected
}
