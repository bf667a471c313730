package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProviderECPay  = "ecpay"
	ProviderPayPal = "paypal"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
)

// PaymentOrder tracks one deposit attempt against an external rail. It
// transitions to confirmed or rejected exactly once; a second transition
// attempt on a terminal order is a no-op. Confirmation triggers exactly one
// ledger credit keyed by ExternalOrderID.
type PaymentOrder struct {
	ID              int             `db:"id" json:"id"`
	Provider        string          `db:"provider" json:"provider"`
	ExternalOrderID string          `db:"external_order_id" json:"external_order_id"`
	UserID          int             `db:"user_id" json:"user_id"`
	AmountNative    decimal.Decimal `db:"amount_native" json:"amount_native"`
	NativeCurrency  string          `db:"native_currency" json:"native_currency"`
	AmountCanonical decimal.Decimal `db:"amount_canonical" json:"amount_canonical"`
	Status          string          `db:"status" json:"status"`
	Notes           string          `db:"notes" json:"notes"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

func (o *PaymentOrder) Terminal() bool {
	return o.Status == StatusConfirmed || o.Status == StatusRejected
}

type CreateOrderRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Provider string          `json:"provider" binding:"required,oneof=ecpay paypal"`
}

// Continuation is the provider-specific payload the browser uses to hand
// the user off: an auto-posting form for ECPay, an approval URL for PayPal.
type Continuation struct {
	Provider        string            `json:"provider"`
	ExternalOrderID string            `json:"external_order_id"`
	ApprovalURL     string            `json:"approval_url,omitempty"`
	FormAction      string            `json:"form_action,omitempty"`
	FormFields      map[string]string `json:"form_fields,omitempty"`
}

// Minimum deposits are per-rail constants, not one canonical minimum: the
// regional rail's convenience-store floor is fixed in local currency and
// does not float with the exchange rate.
var (
	ECPayMinimumTWD  = decimal.NewFromInt(300)
	PayPalMinimumUSD = decimal.NewFromInt(1)
)
