package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lancepay/internal/currency"
	"lancepay/internal/logger"
	"lancepay/internal/metrics"
)

var (
	ErrBelowMinimum     = errors.New("amount below provider minimum")
	ErrUnknownProvider  = errors.New("unknown payment provider")
	ErrInvalidSignature = errors.New("invalid notification signature")
)

// Converter is the slice of the currency service the tracker needs.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// PayPalGateway is the slice of the global rail the tracker calls: order
// registration before handoff, capture once the buyer approves, and capture
// lookups so webhook handling acts on what the provider's API reports
// rather than on the posted body.
type PayPalGateway interface {
	CreateOrder(ctx context.Context, externalOrderID string, amount decimal.Decimal) (string, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (*PayPalCapture, error)
	GetCapture(ctx context.Context, captureID string) (*PayPalCapture, error)
}

type Service interface {
	CreateOrder(ctx context.Context, userID int, req CreateOrderRequest) (*Continuation, error)
	GetOrder(ctx context.Context, externalOrderID string) (*PaymentOrder, error)
	HandleECPayNotification(ctx context.Context, form url.Values) error
	HandlePayPalEvent(ctx context.Context, event PayPalWebhookEvent) error
}

type service struct {
	repo   Repository
	rates  Converter
	ecpay  *ECPayClient
	paypal PayPalGateway
}

func NewService(repo Repository, rates Converter, ecpay *ECPayClient, paypal PayPalGateway) Service {
	return &service{
		repo:   repo,
		rates:  rates,
		ecpay:  ecpay,
		paypal: paypal,
	}
}

// newExternalOrderID fits the regional rail's 20-character alphanumeric
// trade number constraint.
func newExternalOrderID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "LP" + raw[:18]
}

// CreateOrder converts the user-entered amount into the canonical currency
// before anything else so minimums and the eventual credit are enforced in
// one consistent unit, then persists the pending order and returns the
// provider continuation payload. The tracker never credits the ledger.
func (s *service) CreateOrder(ctx context.Context, userID int, req CreateOrderRequest) (*Continuation, error) {
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrBelowMinimum)
	}

	order := &PaymentOrder{
		Provider:        req.Provider,
		ExternalOrderID: newExternalOrderID(),
		UserID:          userID,
		Status:          StatusPending,
	}

	switch req.Provider {
	case ProviderECPay:
		// The regional rail settles whole TWD only.
		amount = amount.Round(0)
		if amount.LessThan(ECPayMinimumTWD) {
			return nil, fmt.Errorf("%w: regional rail minimum is NT$%s", ErrBelowMinimum, ECPayMinimumTWD)
		}
		canonical, err := s.rates.Convert(ctx, amount, currency.Regional, currency.Canonical)
		if err != nil {
			return nil, err
		}
		order.AmountNative = amount
		order.NativeCurrency = currency.Regional
		order.AmountCanonical = canonical

	case ProviderPayPal:
		if amount.LessThan(PayPalMinimumUSD) {
			return nil, fmt.Errorf("%w: minimum is $%s", ErrBelowMinimum, PayPalMinimumUSD)
		}
		order.AmountNative = amount
		order.NativeCurrency = currency.Canonical
		order.AmountCanonical = amount

	default:
		return nil, ErrUnknownProvider
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}
	metrics.RecordDeposit(order.Provider, StatusPending)

	switch req.Provider {
	case ProviderECPay:
		cont := s.ecpay.BuildCheckout(order)
		return &cont, nil
	default:
		approvalURL, err := s.paypal.CreateOrder(ctx, order.ExternalOrderID, order.AmountCanonical)
		if err != nil {
			return nil, err
		}
		return &Continuation{
			Provider:        ProviderPayPal,
			ExternalOrderID: order.ExternalOrderID,
			ApprovalURL:     approvalURL,
		}, nil
	}
}

func (s *service) GetOrder(ctx context.Context, externalOrderID string) (*PaymentOrder, error) {
	return s.repo.FindByExternalID(ctx, externalOrderID)
}

func (s *service) HandleECPayNotification(ctx context.Context, form url.Values) error {
	// The gateway signs every notification with the shared hash key; users
	// know their own trade numbers, so an unsigned confirmation is a forgery
	// attempt and must not touch the order.
	if !s.ecpay.VerifyNotification(form) {
		return ErrInvalidSignature
	}

	n := ParseECPayNotification(form)
	if n.MerchantTradeNo == "" {
		return ErrOrderNotFound
	}

	if !n.Paid() {
		_, err := s.repo.MarkRejected(ctx, n.MerchantTradeNo, "ecpay: "+n.RtnMsg)
		return err
	}

	order, err := s.repo.FindByExternalID(ctx, n.MerchantTradeNo)
	if err != nil {
		return err
	}
	if !n.VerifyAmount(order) {
		logger.Errorf("ECPay notification amount mismatch for %s: got %s want %s",
			n.MerchantTradeNo, n.TradeAmt, order.AmountNative)
		_, err := s.repo.MarkRejected(ctx, n.MerchantTradeNo, "ecpay: amount mismatch")
		return err
	}

	_, err = s.repo.MarkConfirmed(ctx, n.MerchantTradeNo, "ecpay trade "+n.TradeNo)
	return err
}

// HandlePayPalEvent trusts nothing in the posted body beyond the resource
// id, which it resolves against PayPal's API before any order transition.
// Approval events trigger the capture; capture events are re-read from the
// provider and applied by their reported status.
func (s *service) HandlePayPalEvent(ctx context.Context, event PayPalWebhookEvent) error {
	if event.Resource.ID == "" {
		return nil
	}

	switch {
	case event.Approved():
		capture, err := s.paypal.CaptureOrder(ctx, event.Resource.ID)
		if err != nil {
			return err
		}
		return s.applyCapture(ctx, capture)
	case event.CaptureEvent():
		capture, err := s.paypal.GetCapture(ctx, event.Resource.ID)
		if err != nil {
			return err
		}
		return s.applyCapture(ctx, capture)
	default:
		// Unrelated event type; acknowledge and move on.
		return nil
	}
}

func (s *service) applyCapture(ctx context.Context, capture *PayPalCapture) error {
	if capture.InvoiceID == "" {
		return ErrOrderNotFound
	}

	switch capture.Status {
	case "COMPLETED":
		_, err := s.repo.MarkConfirmed(ctx, capture.InvoiceID, "paypal capture "+capture.ID)
		return err
	case "DECLINED", "FAILED":
		_, err := s.repo.MarkRejected(ctx, capture.InvoiceID, "paypal capture "+capture.Status)
		return err
	default:
		// PENDING and friends: leave the order pending, a later capture
		// event settles it.
		return nil
	}
}
