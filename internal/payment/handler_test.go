package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockPaymentService struct{ mock.Mock }

func (m *MockPaymentService) CreateOrder(ctx context.Context, userID int, req CreateOrderRequest) (*Continuation, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Continuation), args.Error(1)
}

func (m *MockPaymentService) GetOrder(ctx context.Context, externalOrderID string) (*PaymentOrder, error) {
	args := m.Called(ctx, externalOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaymentOrder), args.Error(1)
}

func (m *MockPaymentService) HandleECPayNotification(ctx context.Context, form url.Values) error {
	return m.Called(ctx, form).Error(0)
}

func (m *MockPaymentService) HandlePayPalEvent(ctx context.Context, event PayPalWebhookEvent) error {
	return m.Called(ctx, event).Error(0)
}

func webhookRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandler(svc)
	router.POST("/webhooks/ecpay", h.ECPayWebhook)
	router.POST("/webhooks/paypal", h.PayPalWebhook)
	authed := func(c *gin.Context) {
		c.Set("user_id", 7)
		c.Next()
	}
	router.POST("/deposits", authed, h.CreateOrder)
	router.GET("/deposits/orders/:externalID", authed, h.GetOrder)
	return router
}

func TestCreateOrderHandler(t *testing.T) {
	t.Run("returns continuation", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("CreateOrder", mock.Anything, 7, mock.AnythingOfType("payment.CreateOrderRequest")).
			Return(&Continuation{Provider: ProviderPayPal, ExternalOrderID: externalID, ApprovalURL: "https://paypal.test/approve"}, nil)

		req := httptest.NewRequest("POST", "/deposits", strings.NewReader(`{"amount":"25","provider":"paypal"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		webhookRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "https://paypal.test/approve")
	})

	t.Run("rejected amounts are the caller's fault", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("CreateOrder", mock.Anything, 7, mock.Anything).Return(nil, ErrBelowMinimum)

		req := httptest.NewRequest("POST", "/deposits", strings.NewReader(`{"amount":"0.50","provider":"paypal"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		webhookRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("provider outage maps to bad gateway", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("CreateOrder", mock.Anything, 7, mock.Anything).Return(nil, assert.AnError)

		req := httptest.NewRequest("POST", "/deposits", strings.NewReader(`{"amount":"25","provider":"paypal"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		webhookRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("malformed body never reaches the service", func(t *testing.T) {
		svc := new(MockPaymentService)

		req := httptest.NewRequest("POST", "/deposits", strings.NewReader(`{"amount":"25"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		webhookRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "CreateOrder")
	})
}

func TestECPayWebhook_AcknowledgesWithGatewayContract(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("HandleECPayNotification", mock.Anything, mock.Anything).Return(nil)

	form := url.Values{"MerchantTradeNo": {externalID}, "RtnCode": {"1"}}
	req := httptest.NewRequest("POST", "/webhooks/ecpay", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	webhookRouter(svc).ServeHTTP(w, req)

	// The gateway keeps retrying until it reads this exact body.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1|OK", w.Body.String())
}

func TestECPayWebhook_UnknownOrderStillAnswered(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("HandleECPayNotification", mock.Anything, mock.Anything).Return(ErrOrderNotFound)

	form := url.Values{"MerchantTradeNo": {"LP-unknown"}, "RtnCode": {"1"}}
	req := httptest.NewRequest("POST", "/webhooks/ecpay", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	webhookRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0|OrderNotFound", w.Body.String())
}

func TestECPayWebhook_ForgedSignatureRejected(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("HandleECPayNotification", mock.Anything, mock.Anything).Return(ErrInvalidSignature)

	form := url.Values{"MerchantTradeNo": {externalID}, "RtnCode": {"1"}, "CheckMacValue": {"TOTALLY-BOGUS"}}
	req := httptest.NewRequest("POST", "/webhooks/ecpay", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	webhookRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "0|CheckMacValue Error", w.Body.String())
}

func TestPayPalWebhook(t *testing.T) {
	t.Run("event processed", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("HandlePayPalEvent", mock.Anything, mock.AnythingOfType("payment.PayPalWebhookEvent")).Return(nil)

		req := httptest.NewRequest("POST", "/webhooks/paypal",
			strings.NewReader(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"invoice_id":"LP0000000000000001AB"}}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		webhookRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown order acknowledged so retries stop", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("HandlePayPalEvent", mock.Anything, mock.Anything).Return(ErrOrderNotFound)

		req := httptest.NewRequest("POST", "/webhooks/paypal",
			strings.NewReader(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"invoice_id":"LP-unknown"}}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		webhookRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ignored")
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := new(MockPaymentService)

		req := httptest.NewRequest("POST", "/webhooks/paypal", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		webhookRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetOrder_OwnershipHidesForeignOrders(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("GetOrder", mock.Anything, externalID).
		Return(&PaymentOrder{ExternalOrderID: externalID, UserID: 99, Status: StatusConfirmed}, nil)

	req := httptest.NewRequest("GET", "/deposits/orders/"+externalID, nil)
	w := httptest.NewRecorder()
	webhookRouter(svc).ServeHTTP(w, req)

	// Another user's order id reads as not found, never as 403.
	assert.Equal(t, http.StatusNotFound, w.Code)
}
