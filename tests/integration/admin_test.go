//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestAdmin_Auth(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{name: "no key", want: http.StatusUnauthorized},
		{name: "wrong key", header: map[string]string{"api_key": "wrong-key"}, want: http.StatusUnauthorized},
		{name: "valid key", header: map[string]string{"api_key": testAPIKey}, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodGet, "/orders/admin/stats", nil, tt.header)
			defer resp.Body.Close()
			expectStatus(t, resp, tt.want)
		})
	}
}

func TestAdmin_ListAndStats(t *testing.T) {
	created := createOrder(t, validCheckout())
	capture(t, created.PayPalOrderID)

	resp := doAdmin(t, http.MethodGet, "/orders/admin", nil)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	orders := decodeJSON[[]adminOrder](t, resp)
	var found *adminOrder
	for i := range orders {
		if orders[i].PayPalOrderID == created.PayPalOrderID {
			found = &orders[i]
		}
	}
	if found == nil {
		t.Fatalf("order %s missing from admin list", created.PayPalOrderID)
	}
	if found.Status != "PAID" || found.CaptureID == "" || found.Email != "buyer@example.com" {
		t.Errorf("admin order: got %+v", *found)
	}

	resp = doAdmin(t, http.MethodGet, "/orders/admin/stats", nil)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	stats := decodeJSON[orderStats](t, resp)
	if stats.Total < 1 || stats.Paid < 1 {
		t.Errorf("stats: got %+v", stats)
	}
	if stats.Total < stats.Pending+stats.Paid+stats.Canceled {
		t.Errorf("stats total %d below sum of buckets", stats.Total)
	}
}

func TestAdmin_FulfillmentFlow(t *testing.T) {
	created := createOrder(t, validCheckout())
	orderNo := capture(t, created.PayPalOrderID)
	path := "/orders/admin/" + orderNo + "/status"

	steps := []struct {
		status string
		want   int
	}{
		{status: "COMPLETED", want: http.StatusConflict},
		{status: "FULFILLING", want: http.StatusOK},
		{status: "FULFILLING", want: http.StatusOK},
		{status: "PAID", want: http.StatusBadRequest},
		{status: "SHIPPED", want: http.StatusOK},
		{status: "CANCELED", want: http.StatusConflict},
		{status: "COMPLETED", want: http.StatusOK},
	}
	for _, s := range steps {
		resp := doAdmin(t, http.MethodPatch, path, map[string]string{"status": s.status})
		resp.Body.Close()
		if resp.StatusCode != s.want {
			t.Fatalf("set %s: got %d, want %d", s.status, resp.StatusCode, s.want)
		}
	}

	resp := doAdmin(t, http.MethodPatch, "/orders/admin/NO-SUCH-ORDER/status", map[string]string{"status": "SHIPPED"})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)
}

func TestAdmin_CancelPending(t *testing.T) {
	created := createOrder(t, validCheckout())

	resp := doAdmin(t, http.MethodGet, "/orders/admin", nil)
	defer resp.Body.Close()
	orders := decodeJSON[[]adminOrder](t, resp)

	var orderNo string
	for _, o := range orders {
		if o.PayPalOrderID == created.PayPalOrderID {
			orderNo = o.OrderNo
		}
	}
	if orderNo == "" {
		t.Fatal("created order not listed")
	}

	resp = doAdmin(t, http.MethodPatch, "/orders/admin/"+orderNo+"/status", map[string]string{"status": "CANCELED"})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
}
