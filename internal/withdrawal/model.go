package withdrawal

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)

// Withdrawal earmarks funds out of the available balance. Terminal
// resolution is an out-of-band administrative action; both paths are
// idempotent per withdrawal id.
type Withdrawal struct {
	ID         string          `db:"id" json:"id"`
	UserID     int             `db:"user_id" json:"user_id"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Status     string          `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	ResolvedAt sql.NullTime    `db:"resolved_at" json:"resolved_at,omitempty"`
}

func (w *Withdrawal) Terminal() bool {
	return w.Status == StatusCompleted || w.Status == StatusRejected
}

type RequestWithdrawal struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

type ResolveRequest struct {
	Approve bool `json:"approve"`
}
