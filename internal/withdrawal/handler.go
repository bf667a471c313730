package withdrawal

import (
	"errors"
	"net/http"
	"strconv"

	"lancepay/internal/auth"
	"lancepay/internal/wallet"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Request godoc
// @Summary      Request a withdrawal
// @Description  Moves the amount from available balance into the pending withdrawal bucket.
// @Tags         withdrawal
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      RequestWithdrawal  true  "Withdrawal amount"
// @Success      201      {object}  map[string]interface{}
// @Failure      400      {object}  api.ErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Failure      402      {object}  api.ErrorResponse
// @Router       /withdraw [post]
func (h *Handler) Request(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req RequestWithdrawal
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wd, w, err := h.repo.Request(c.Request.Context(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, wallet.ErrInsufficientFunds):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to request withdrawal"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"withdrawal": wd,
		"wallet":     w,
	})
}

// Resolve godoc
// @Summary      Resolve a pending withdrawal
// @Description  Administrative terminal action. Approving settles the payout; rejecting returns the funds. Idempotent per withdrawal id.
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string          true  "Withdrawal id"
// @Param        request  body      ResolveRequest  true  "Resolution"
// @Success      200      {object}  Withdrawal
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /admin/withdrawals/{id}/resolve [post]
func (h *Handler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wd, err := h.repo.Resolve(c.Request.Context(), c.Param("id"), req.Approve)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "withdrawal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve withdrawal"})
		return
	}

	c.JSON(http.StatusOK, wd)
}

// ListPending godoc
// @Summary      List pending withdrawals
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        limit  query  int  false  "page size"
// @Success      200  {array}  Withdrawal
// @Router       /admin/withdrawals [get]
func (h *Handler) ListPending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	out, err := h.repo.ListPending(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list withdrawals"})
		return
	}

	c.JSON(http.StatusOK, out)
}
