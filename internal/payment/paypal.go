package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PayPalClient talks to the global rail's REST API. All calls go through
// the bounded-backoff policy: timeouts and 5xx are retried, 4xx are not.
type PayPalClient struct {
	ClientID string
	Secret   string
	BaseURL  string

	ReturnURL string
	CancelURL string

	client  *http.Client
	backoff backoff
}

func NewPayPalClient(clientID, secret, baseURL string) *PayPalClient {
	return &PayPalClient{
		ClientID: clientID,
		Secret:   secret,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		backoff:  defaultBackoff,
	}
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	var token string

	err := c.backoff.do(ctx, "paypal token", func() error {
		form := url.Values{"grant_type": {"client_credentials"}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.SetBasicAuth(c.ClientID, c.Secret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.client.Do(req)
		if err != nil {
			return transientf("paypal token request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return transientf("paypal token: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("paypal token: status %d", resp.StatusCode)
		}

		var body paypalTokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return transientf("paypal token: malformed body: %w", err)
		}
		if body.AccessToken == "" {
			return errors.New("paypal token: empty access token")
		}
		token = body.AccessToken
		return nil
	})

	return token, err
}

type paypalOrderRequest struct {
	Intent             string               `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit `json:"purchase_units"`
	ApplicationContext paypalAppContext     `json:"application_context"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id"`
	InvoiceID   string       `json:"invoice_id"`
	Amount      paypalAmount `json:"amount"`
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalAppContext struct {
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreateOrder registers the deposit with PayPal and returns the approval
// URL the browser is redirected to. The external order id rides along as
// the invoice id so the webhook can key back to our PaymentOrder.
func (c *PayPalClient) CreateOrder(ctx context.Context, externalOrderID string, amount decimal.Decimal) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	payload := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: externalOrderID,
			InvoiceID:   externalOrderID,
			Amount: paypalAmount{
				CurrencyCode: "USD",
				Value:        amount.StringFixed(2),
			},
		}},
		ApplicationContext: paypalAppContext{
			ReturnURL: c.ReturnURL,
			CancelURL: c.CancelURL,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var approvalURL string
	err = c.backoff.do(ctx, "paypal create order", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.BaseURL+"/v2/checkout/orders", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		// The external order id doubles as the idempotency key, so a
		// retried create cannot open two provider orders.
		req.Header.Set("PayPal-Request-Id", externalOrderID)

		resp, err := c.client.Do(req)
		if err != nil {
			return transientf("paypal create order request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return transientf("paypal create order: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
			return fmt.Errorf("paypal create order: status %d", resp.StatusCode)
		}

		var orderResp paypalOrderResponse
		if err := json.NewDecoder(resp.Body).Decode(&orderResp); err != nil {
			return transientf("paypal create order: malformed body: %w", err)
		}

		for _, link := range orderResp.Links {
			if link.Rel == "approve" {
				approvalURL = link.Href
				return nil
			}
		}
		return errors.New("paypal create order: no approval link")
	})
	if err != nil {
		return "", err
	}

	return approvalURL, nil
}

// PayPalCapture is a capture object as PayPal's own API reports it. Webhook
// handling acts on these, never on fields from the posted webhook body.
type PayPalCapture struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	InvoiceID string `json:"invoice_id"`
}

type paypalCaptureOrderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []PayPalCapture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CaptureOrder captures an approved provider order. The provider order id
// doubles as the idempotency key, so a re-delivered approval webhook cannot
// capture the buyer twice.
func (c *PayPalClient) CaptureOrder(ctx context.Context, providerOrderID string) (*PayPalCapture, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var capture *PayPalCapture
	err = c.backoff.do(ctx, "paypal capture order", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.BaseURL+"/v2/checkout/orders/"+providerOrderID+"/capture", bytes.NewReader([]byte("{}")))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("PayPal-Request-Id", providerOrderID+"-capture")

		resp, err := c.client.Do(req)
		if err != nil {
			return transientf("paypal capture order request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return transientf("paypal capture order: status %d", resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("paypal order %s: %w", providerOrderID, ErrOrderNotFound)
		case resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK:
			return fmt.Errorf("paypal capture order: status %d", resp.StatusCode)
		}

		var body paypalCaptureOrderResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return transientf("paypal capture order: malformed body: %w", err)
		}
		for _, unit := range body.PurchaseUnits {
			if len(unit.Payments.Captures) > 0 {
				capture = &unit.Payments.Captures[0]
				return nil
			}
		}
		return errors.New("paypal capture order: no capture in response")
	})
	if err != nil {
		return nil, err
	}
	return capture, nil
}

// GetCapture looks a capture up at PayPal. A 404 means the capture id the
// webhook named does not exist there, which marks the event as forged or
// foreign.
func (c *PayPalClient) GetCapture(ctx context.Context, captureID string) (*PayPalCapture, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var capture *PayPalCapture
	err = c.backoff.do(ctx, "paypal get capture", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.BaseURL+"/v2/payments/captures/"+captureID, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.client.Do(req)
		if err != nil {
			return transientf("paypal get capture request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return transientf("paypal get capture: status %d", resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("paypal capture %s: %w", captureID, ErrOrderNotFound)
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("paypal get capture: status %d", resp.StatusCode)
		}

		var body PayPalCapture
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return transientf("paypal get capture: malformed body: %w", err)
		}
		capture = &body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return capture, nil
}

// PayPalWebhookEvent is the subset of the webhook body the tracker needs:
// the event type and the resource id to look up at the provider. Nothing
// else in the body is trusted.
type PayPalWebhookEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID string `json:"id"`
	} `json:"resource"`
}

func (e PayPalWebhookEvent) Approved() bool {
	return e.EventType == "CHECKOUT.ORDER.APPROVED"
}

func (e PayPalWebhookEvent) CaptureEvent() bool {
	switch e.EventType {
	case "PAYMENT.CAPTURE.COMPLETED", "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.REFUNDED":
		return true
	}
	return false
}
