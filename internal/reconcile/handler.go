package reconcile

import (
	"net/http"

	"lancepay/internal/auth"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	reconciler *Reconciler
}

func NewHandler(reconciler *Reconciler) *Handler {
	return &Handler{reconciler: reconciler}
}

// Reconcile godoc
// @Summary      Reconcile a deposit order
// @Description  Runs the bounded re-check loop for an order after returning from a provider. The "timeout" outcome means still pending, not failed. Safe to call repeatedly.
// @Tags         deposit
// @Security     BearerAuth
// @Produce      json
// @Param        externalID  path  string  true  "External order id"
// @Success      200  {object}  Result
// @Failure      401  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /deposits/orders/{externalID}/reconcile [post]
func (h *Handler) Reconcile(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	// Runs on the request context: if the user navigates away the poll
	// loop is cancelled with it.
	result, err := h.reconciler.Run(c.Request.Context(), userID, c.Param("externalID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}

	if result.Order != nil && result.Order.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	c.JSON(http.StatusOK, result)
}
