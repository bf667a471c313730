package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paypalServer(t *testing.T, tokenCalls, orderCalls *atomic.Int32, orderStatus int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			tokenCalls.Add(1)
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "client-id", user)
			assert.Equal(t, "client-secret", pass)
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
		case "/v2/checkout/orders":
			orderCalls.Add(1)
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			assert.NotEmpty(t, r.Header.Get("PayPal-Request-Id"))

			var req paypalOrderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.PurchaseUnits, 1)
			assert.Equal(t, "25.00", req.PurchaseUnits[0].Amount.Value)
			assert.Equal(t, "USD", req.PurchaseUnits[0].Amount.CurrencyCode)
			assert.Equal(t, req.PurchaseUnits[0].ReferenceID, req.PurchaseUnits[0].InvoiceID)

			if orderStatus >= 400 {
				w.WriteHeader(orderStatus)
				return
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id":"PP-1","status":"CREATED","links":[
				{"href":"%s/self","rel":"self"},
				{"href":"https://paypal.test/approve/PP-1","rel":"approve"}
			]}`, r.Host)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestPayPalCreateOrder(t *testing.T) {
	var tokenCalls, orderCalls atomic.Int32
	srv := paypalServer(t, &tokenCalls, &orderCalls, 0)
	defer srv.Close()

	client := NewPayPalClient("client-id", "client-secret", srv.URL)
	client.backoff = testBackoff()

	approvalURL, err := client.CreateOrder(context.Background(), externalID, decimal.RequireFromString("25"))
	require.NoError(t, err)
	assert.Equal(t, "https://paypal.test/approve/PP-1", approvalURL)
	assert.Equal(t, int32(1), tokenCalls.Load())
	assert.Equal(t, int32(1), orderCalls.Load())
}

func TestPayPalCreateOrder_ClientErrorNotRetried(t *testing.T) {
	var tokenCalls, orderCalls atomic.Int32
	srv := paypalServer(t, &tokenCalls, &orderCalls, http.StatusUnprocessableEntity)
	defer srv.Close()

	client := NewPayPalClient("client-id", "client-secret", srv.URL)
	client.backoff = testBackoff()

	_, err := client.CreateOrder(context.Background(), externalID, decimal.RequireFromString("25"))
	require.Error(t, err)
	assert.Equal(t, int32(1), orderCalls.Load())
}

func TestPayPalCreateOrder_ServerErrorRetried(t *testing.T) {
	var tokenCalls, orderCalls atomic.Int32
	srv := paypalServer(t, &tokenCalls, &orderCalls, http.StatusBadGateway)
	defer srv.Close()

	client := NewPayPalClient("client-id", "client-secret", srv.URL)
	client.backoff = testBackoff()

	_, err := client.CreateOrder(context.Background(), externalID, decimal.RequireFromString("25"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 4 attempts")
	assert.Equal(t, int32(4), orderCalls.Load())
}

func TestPayPalCreateOrder_TokenFailureStopsEarly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewPayPalClient("client-id", "client-secret", srv.URL)
	client.backoff = testBackoff()

	_, err := client.CreateOrder(context.Background(), externalID, decimal.RequireFromString("25"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paypal token")
}

func TestPayPalCaptureOrder(t *testing.T) {
	var captured atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
		case "/v2/checkout/orders/PP-ORDER-1/capture":
			captured.Add(1)
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			assert.Equal(t, "PP-ORDER-1-capture", r.Header.Get("PayPal-Request-Id"))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":"PP-ORDER-1","status":"COMPLETED","purchase_units":[
				{"payments":{"captures":[{"id":"CAP-1","status":"COMPLETED","invoice_id":"LP-1"}]}}
			]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewPayPalClient("client-id", "client-secret", srv.URL)
	client.backoff = testBackoff()

	capture, err := client.CaptureOrder(context.Background(), "PP-ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "CAP-1", capture.ID)
	assert.Equal(t, "COMPLETED", capture.Status)
	assert.Equal(t, "LP-1", capture.InvoiceID)
	assert.Equal(t, int32(1), captured.Load())
}

func TestPayPalGetCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
		case "/v2/payments/captures/CAP-1":
			fmt.Fprint(w, `{"id":"CAP-1","status":"COMPLETED","invoice_id":"LP-1"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewPayPalClient("client-id", "client-secret", srv.URL)
	client.backoff = testBackoff()

	t.Run("known capture", func(t *testing.T) {
		capture, err := client.GetCapture(context.Background(), "CAP-1")
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", capture.Status)
		assert.Equal(t, "LP-1", capture.InvoiceID)
	})

	t.Run("unknown capture id maps to order-not-found", func(t *testing.T) {
		_, err := client.GetCapture(context.Background(), "CAP-FAKE")
		require.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestPayPalWebhookEventPredicates(t *testing.T) {
	var approved PayPalWebhookEvent
	require.NoError(t, json.Unmarshal([]byte(`{"event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"PP-1"}}`), &approved))
	assert.True(t, approved.Approved())
	assert.False(t, approved.CaptureEvent())
	assert.Equal(t, "PP-1", approved.Resource.ID)

	var completed PayPalWebhookEvent
	require.NoError(t, json.Unmarshal([]byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-1"}}`), &completed))
	assert.True(t, completed.CaptureEvent())
	assert.False(t, completed.Approved())

	var unrelated PayPalWebhookEvent
	require.NoError(t, json.Unmarshal([]byte(`{"event_type":"BILLING.PLAN.CREATED","resource":{"id":"B-1"}}`), &unrelated))
	assert.False(t, unrelated.Approved())
	assert.False(t, unrelated.CaptureEvent())
}
