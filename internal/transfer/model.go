package transfer

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transfer struct {
	ID             string          `db:"id" json:"id"`
	FromUserID     int             `db:"from_user_id" json:"from_user_id"`
	ToUserID       int             `db:"to_user_id" json:"to_user_id"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Fee            decimal.Decimal `db:"fee" json:"fee"`
	TotalDeduction decimal.Decimal `db:"total_deduction" json:"total_deduction"`
	Note           string          `db:"note" json:"note"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

const StatusCompleted = "completed"

// FeeSchedule computes the platform fee for one transfer:
// fee = 0 below the free threshold, else clamp(amount*rate, min, max),
// rounded half-up to two decimal places.
type FeeSchedule struct {
	Rate          decimal.Decimal `json:"rate"`
	Min           decimal.Decimal `json:"min"`
	Max           decimal.Decimal `json:"max"`
	FreeThreshold decimal.Decimal `json:"free_threshold"`
}

func (f FeeSchedule) Fee(amount decimal.Decimal) decimal.Decimal {
	if amount.LessThan(f.FreeThreshold) {
		return decimal.Zero
	}
	fee := amount.Mul(f.Rate).Round(2)
	if fee.LessThan(f.Min) {
		return f.Min
	}
	if fee.GreaterThan(f.Max) {
		return f.Max
	}
	return fee
}

// TierLimits are derived per user per tier; used_today is recomputed from
// the transfer journal, never stored, so it cannot drift.
type TierLimits struct {
	Tier                string          `json:"tier"`
	DailyLimit          decimal.Decimal `json:"daily_limit"`
	PerTransactionLimit decimal.Decimal `json:"per_transaction_limit"`
	Fees                FeeSchedule     `json:"fee_schedule"`
}

type LimitsSnapshot struct {
	TierLimits
	UsedToday      decimal.Decimal `json:"used_today"`
	RemainingToday decimal.Decimal `json:"remaining_today"`
}

var tiers = map[string]TierLimits{
	"standard": {
		Tier:                "standard",
		DailyLimit:          decimal.NewFromInt(5000),
		PerTransactionLimit: decimal.NewFromInt(1000),
		Fees: FeeSchedule{
			Rate:          decimal.NewFromFloat(0.01),
			Min:           decimal.NewFromInt(1),
			Max:           decimal.NewFromInt(20),
			FreeThreshold: decimal.NewFromInt(50),
		},
	},
	"premium": {
		Tier:                "premium",
		DailyLimit:          decimal.NewFromInt(20000),
		PerTransactionLimit: decimal.NewFromInt(5000),
		Fees: FeeSchedule{
			Rate:          decimal.NewFromFloat(0.005),
			Min:           decimal.NewFromInt(1),
			Max:           decimal.NewFromInt(15),
			FreeThreshold: decimal.NewFromInt(200),
		},
	},
}

// LimitsForTier falls back to the standard tier for unknown values.
func LimitsForTier(tier string) TierLimits {
	if t, ok := tiers[tier]; ok {
		return t
	}
	return tiers["standard"]
}

type SendRequest struct {
	ToUserEmail string          `json:"to_user_email" binding:"required,email"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Note        string          `json:"note"`
	Pin         string          `json:"pin" binding:"required"`
}

type SetPinRequest struct {
	Pin        string `json:"pin" binding:"required"`
	ConfirmPin string `json:"confirm_pin" binding:"required"`
}

type History struct {
	Sent     []Transfer `json:"sent"`
	Received []Transfer `json:"received"`
}
