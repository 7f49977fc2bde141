//go:build integration

package integration

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func createOrder(t *testing.T, req checkoutRequest) createResponse {
	t.Helper()

	resp := doPost(t, "/orders/create", req)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	out := decodeJSON[createResponse](t, resp)
	if !strings.HasPrefix(out.PayPalOrderID, "STUB") {
		t.Fatalf("unexpected paypal order id %q", out.PayPalOrderID)
	}
	return out
}

func capture(t *testing.T, paypalID string) string {
	t.Helper()

	resp := doPost(t, "/orders/capture", map[string]string{"paypalOrderId": paypalID})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	return decodeJSON[captureResponse](t, resp).OrderNo
}

func TestCheckout_CreateCaptureLookup(t *testing.T) {
	created := createOrder(t, validCheckout(cartItem{CommodityID: seedCommodID, Quantity: "2"}))
	if created.ApprovalURL == "" {
		t.Fatal("approvalUrl is empty")
	}

	orderNo := capture(t, created.PayPalOrderID)
	if orderNo == "" {
		t.Fatal("orderNo is empty")
	}

	// Capturing again replays the recorded result.
	if again := capture(t, created.PayPalOrderID); again != orderNo {
		t.Fatalf("second capture: got %q, want %q", again, orderNo)
	}

	q := url.Values{"orderNo": {orderNo}, "email": {"BUYER@example.com"}}
	resp := doGet(t, "/orders/public?"+q.Encode())
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[publicOrder](t, resp)
	if got.Status != "PAID" {
		t.Errorf("status: got %q, want PAID", got.Status)
	}
	if got.TotalAmount != "29.00" {
		t.Errorf("total: got %q, want 29.00", got.TotalAmount)
	}
	if got.Currency != "USD" {
		t.Errorf("currency: got %q, want USD", got.Currency)
	}
	if len(got.Items) != 1 {
		t.Fatalf("items: got %d, want 1", len(got.Items))
	}
	line := got.Items[0]
	if line.Quantity != 2 || line.UnitPrice != "12.00" || line.LineTotal != "29.00" {
		t.Errorf("line: got %+v", line)
	}
	if line.Title == "" {
		t.Error("title snapshot is empty")
	}
}

func TestCheckout_CreateRedirect(t *testing.T) {
	resp := doPost(t, "/orders/create-redirect", validCheckout())
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	out := decodeJSON[createResponse](t, resp)
	if out.ApprovalURL == "" {
		t.Fatal("approvalUrl is empty")
	}
}

func TestCheckout_ReturnRedirectsToOrderPage(t *testing.T) {
	created := createOrder(t, validCheckout())

	resp := doGet(t, "/orders/return?token="+created.PayPalOrderID+"&PayerID=PAYER")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusFound)

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if !strings.HasPrefix(loc.String(), frontendURL+"/order-query?") {
		t.Fatalf("unexpected location %q", loc)
	}
	if loc.Query().Get("orderNo") == "" {
		t.Fatal("orderNo missing from redirect")
	}
}

func TestCheckout_CancelThenCaptureConflicts(t *testing.T) {
	created := createOrder(t, validCheckout())

	resp := doGet(t, "/orders/cancel?token="+created.PayPalOrderID)
	resp.Body.Close()
	expectStatus(t, resp, http.StatusFound)
	if got := resp.Header.Get("Location"); got != frontendURL+"/cart" {
		t.Fatalf("location: got %q, want %q", got, frontendURL+"/cart")
	}

	resp = doPost(t, "/orders/capture", map[string]string{"paypalOrderId": created.PayPalOrderID})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusConflict)
}

func TestCheckout_CancelUnknownTokenStillRedirects(t *testing.T) {
	resp := doGet(t, "/orders/cancel?token=UNKNOWN")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusFound)
}

func TestCheckout_Errors(t *testing.T) {
	missingPhone := validCheckout()
	missingPhone.Phone = ""
	emptyCart := validCheckout()
	emptyCart.Items = []cartItem{}

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{name: "missing phone", path: "/orders/create", body: missingPhone, want: http.StatusBadRequest},
		{name: "empty cart", path: "/orders/create", body: emptyCart, want: http.StatusBadRequest},
		{name: "unknown commodity", path: "/orders/create", body: validCheckout(cartItem{CommodityID: 999, Quantity: 1}), want: http.StatusUnprocessableEntity},
		{name: "capture without id", path: "/orders/capture", body: map[string]string{}, want: http.StatusBadRequest},
		{name: "capture unknown order", path: "/orders/capture", body: map[string]string{"paypalOrderId": "NOPE"}, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doPost(t, tt.path, tt.body)
			defer resp.Body.Close()
			expectStatus(t, resp, tt.want)
		})
	}
}

func TestLookup_WrongEmail(t *testing.T) {
	created := createOrder(t, validCheckout())
	orderNo := capture(t, created.PayPalOrderID)

	q := url.Values{"orderNo": {orderNo}, "email": {"someone-else@example.com"}}
	resp := doGet(t, "/orders/public?"+q.Encode())
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)
}
