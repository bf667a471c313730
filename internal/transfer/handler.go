package transfer

import (
	"errors"
	"net/http"

	"lancepay/internal/auth"
	"lancepay/internal/wallet"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Send godoc
// @Summary      Transfer funds to another user
// @Description  Debits the sender by amount + fee and credits the recipient atomically. Requires the 6-digit transfer PIN.
// @Tags         transfer
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      SendRequest  true  "Transfer request"
// @Success      201      {object}  Transfer
// @Failure      400      {object}  api.ErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Failure      402      {object}  api.ErrorResponse
// @Failure      422      {object}  api.ErrorResponse
// @Router       /transfer [post]
func (h *Handler) Send(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.service.Send(c.Request.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrRecipientNotFound),
			errors.Is(err, ErrSelfTransfer),
			errors.Is(err, ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrPerTransactionLimit), errors.Is(err, ErrDailyLimit):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, ErrPinNotSet):
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		case errors.Is(err, ErrPinMismatch):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, wallet.ErrInsufficientFunds):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to execute transfer"})
		}
		return
	}

	c.JSON(http.StatusCreated, t)
}

// SetPin godoc
// @Summary      Set or change the transfer PIN
// @Description  Requires the new PIN entered twice. The PIN is stored as a salted one-way hash.
// @Tags         transfer
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      SetPinRequest  true  "PIN payload"
// @Success      200      {object}  api.MessageResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Router       /transfer/pin [post]
func (h *Handler) SetPin(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req SetPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetPin(c.Request.Context(), userID, req.Pin, req.ConfirmPin); err != nil {
		switch {
		case errors.Is(err, ErrPinMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": "pins do not match"})
		case errors.Is(err, auth.ErrInvalidPinFormat):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set pin"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "pin updated"})
}

// HasPin godoc
// @Summary      Check whether a transfer PIN is configured
// @Tags         transfer
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Failure      401  {object}  api.ErrorResponse
// @Router       /transfer/pin [get]
func (h *Handler) HasPin(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	has, err := h.service.HasPin(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check pin"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"has_pin": has})
}

// Limits godoc
// @Summary      Get transfer limits snapshot
// @Tags         transfer
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  LimitsSnapshot
// @Failure      401  {object}  api.ErrorResponse
// @Router       /transfer/limits [get]
func (h *Handler) Limits(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	limits, err := h.service.Limits(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load limits"})
		return
	}

	c.JSON(http.StatusOK, limits)
}

// History godoc
// @Summary      Get transfer history
// @Tags         transfer
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  History
// @Failure      401  {object}  api.ErrorResponse
// @Router       /transfer/history [get]
func (h *Handler) History(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	history, err := h.service.History(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	c.JSON(http.StatusOK, history)
}
