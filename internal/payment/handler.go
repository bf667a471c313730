package payment

import (
	"errors"
	"net/http"

	"lancepay/internal/auth"
	"lancepay/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreateOrder godoc
// @Summary      Create a deposit order
// @Description  Persists a pending payment order and returns the provider continuation payload (auto-post form for the regional rail, approval URL for PayPal).
// @Tags         deposit
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateOrderRequest  true  "Deposit request"
// @Success      201      {object}  Continuation
// @Failure      400      {object}  api.ErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Failure      502      {object}  api.ErrorResponse
// @Router       /deposits [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cont, err := h.service.CreateOrder(c.Request.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrBelowMinimum), errors.Is(err, ErrUnknownProvider):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create deposit order"})
		}
		return
	}

	c.JSON(http.StatusCreated, cont)
}

// GetOrder godoc
// @Summary      Get a payment order by external id
// @Description  Used by reconciliation polling after the user returns from a provider.
// @Tags         deposit
// @Security     BearerAuth
// @Produce      json
// @Param        externalID  path  string  true  "External order id"
// @Success      200  {object}  PaymentOrder
// @Failure      401  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /deposits/orders/{externalID} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	order, err := h.service.GetOrder(c.Request.Context(), c.Param("externalID"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load order"})
		return
	}

	if order.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// ECPayWebhook godoc
// @Summary      ECPay server-to-server payment result
// @Description  The gateway retries until it receives the literal body "1|OK", so duplicates are expected and safe.
// @Tags         webhook
// @Accept       x-www-form-urlencoded
// @Produce      plain
// @Success      200  {string}  string
// @Router       /webhooks/ecpay [post]
func (h *Handler) ECPayWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "0|BadRequest")
		return
	}

	if err := h.service.HandleECPayNotification(c.Request.Context(), c.Request.PostForm); err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			logger.Errorf("ECPay notification rejected: %v", err)
			c.String(http.StatusBadRequest, "0|CheckMacValue Error")
			return
		}
		if errors.Is(err, ErrOrderNotFound) {
			c.String(http.StatusOK, "0|OrderNotFound")
			return
		}
		logger.Errorf("ECPay notification handling failed: %v", err)
		c.String(http.StatusInternalServerError, "0|Error")
		return
	}

	c.String(http.StatusOK, "1|OK")
}

// PayPalWebhook godoc
// @Summary      PayPal webhook event
// @Tags         webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  api.MessageResponse
// @Router       /webhooks/paypal [post]
func (h *Handler) PayPalWebhook(c *gin.Context) {
	var event PayPalWebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook body"})
		return
	}

	if err := h.service.HandlePayPalEvent(c.Request.Context(), event); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			// Event for an order we never created; acknowledge so the
			// provider stops retrying.
			c.JSON(http.StatusOK, gin.H{"message": "ignored"})
			return
		}
		logger.Errorf("PayPal webhook handling failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
