package wallet

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the authoritative per-user balance record. Balances are stored
// in the canonical currency only; other currencies are display conversions.
type Wallet struct {
	ID                int             `db:"id" json:"id"`
	UserID            int             `db:"user_id" json:"user_id"`
	AvailableBalance  decimal.Decimal `db:"available_balance" json:"available_balance"`
	PendingWithdrawal decimal.Decimal `db:"pending_withdrawal" json:"pending_withdrawal"`
	TotalEarned       decimal.Decimal `db:"total_earned" json:"total_earned"`
	TotalSpent        decimal.Decimal `db:"total_spent" json:"total_spent"`
	Currency          string          `db:"currency" json:"currency"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// LedgerEntry is one append-only journal row. Amounts are signed in the
// canonical currency. Corrections are new compensating entries, never edits;
// only the status column transitions (pending → completed/rejected).
type LedgerEntry struct {
	ID          string          `db:"id" json:"id"`
	UserID      int             `db:"user_id" json:"user_id"`
	Type        string          `db:"type" json:"type"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Status      string          `db:"status" json:"status"`
	Description string          `db:"description" json:"description"`
	ReferenceID sql.NullString  `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

const (
	EntryDeposit             = "deposit"
	EntryWithdrawal          = "withdrawal"
	EntryTransferIn          = "transfer_in"
	EntryTransferOut         = "transfer_out"
	EntryFeeRevenue          = "fee_revenue"
	EntryEscrow              = "escrow"
	EntryRelease             = "release"
	EntrySubscriptionRevenue = "subscription_revenue"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)
