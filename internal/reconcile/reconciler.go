package reconcile

import (
	"context"
	"errors"

	"lancepay/internal/logger"
	"lancepay/internal/metrics"
	"lancepay/internal/payment"
	"lancepay/internal/wallet"
)

type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeRejected  Outcome = "rejected"
	// OutcomeTimeout is a third outcome, not a failure: the order was
	// still pending when the poll window closed and the caller should
	// re-check later.
	OutcomeTimeout  Outcome = "timeout"
	OutcomeNotFound Outcome = "not_found"
)

type OrderSource interface {
	FindByExternalID(ctx context.Context, externalOrderID string) (*payment.PaymentOrder, error)
}

type WalletSource interface {
	GetOrCreateWallet(ctx context.Context, userID int) (*wallet.Wallet, error)
}

type Result struct {
	Outcome Outcome               `json:"outcome"`
	Order   *payment.PaymentOrder `json:"order,omitempty"`
	Wallet  *wallet.Wallet        `json:"wallet"`
}

// Reconciler establishes the authoritative terminal state of a deposit
// after the user returns from a provider flow. It only ever reads order
// state; the credit itself rides the ledger's reference-id de-duplication,
// so re-running reconciliation any number of times cannot double-credit.
type Reconciler struct {
	orders  OrderSource
	wallets WalletSource
	policy  Policy
}

func New(orders OrderSource, wallets WalletSource, policy Policy) *Reconciler {
	return &Reconciler{orders: orders, wallets: wallets, policy: policy}
}

func (r *Reconciler) Run(ctx context.Context, userID int, externalOrderID string) (*Result, error) {
	// The webhook may already have settled everything before the browser
	// got back; refresh the snapshot first.
	w, err := r.wallets.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	order, err := r.orders.FindByExternalID(ctx, externalOrderID)
	if err != nil {
		if errors.Is(err, payment.ErrOrderNotFound) {
			return r.notFound(ctx, userID, w)
		}
		return nil, err
	}

	if order.Terminal() {
		return r.terminal(ctx, userID, order, w)
	}

	// Bounded poll: re-query until a terminal state or the attempt
	// ceiling. No lock is held between attempts.
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := sleep(ctx, r.policy.Interval); err != nil {
			return nil, err
		}

		order, err = r.orders.FindByExternalID(ctx, externalOrderID)
		if err != nil {
			if errors.Is(err, payment.ErrOrderNotFound) {
				// The record existed a moment ago; treat as transient
				// and keep polling.
				continue
			}
			return nil, err
		}

		if order.Terminal() {
			return r.terminal(ctx, userID, order, w)
		}
	}

	logger.Infof("Deposit %s still pending after %d attempts, deferring to manual re-check",
		externalOrderID, r.policy.MaxAttempts)
	metrics.RecordReconciliation(string(OutcomeTimeout))

	w, err = r.wallets.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeTimeout, Order: order, Wallet: w}, nil
}

func (r *Reconciler) terminal(ctx context.Context, userID int, order *payment.PaymentOrder, w *wallet.Wallet) (*Result, error) {
	outcome := OutcomeRejected
	if order.Status == payment.StatusConfirmed {
		outcome = OutcomeConfirmed
		// The confirming webhook's credit may still be committing; wait
		// briefly and re-read so the caller sees the credited balance.
		if err := sleep(ctx, r.policy.ConfirmGrace); err != nil {
			return nil, err
		}
		var err error
		w, err = r.wallets.GetOrCreateWallet(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	metrics.RecordReconciliation(string(outcome))
	return &Result{Outcome: outcome, Order: order, Wallet: w}, nil
}

func (r *Reconciler) notFound(ctx context.Context, userID int, w *wallet.Wallet) (*Result, error) {
	// The webhook may not have created the record yet; give it one grace
	// period and one more wallet refresh before handing off to a manual
	// re-check.
	if err := sleep(ctx, r.policy.NotFoundGrace); err != nil {
		return nil, err
	}

	w, err := r.wallets.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	metrics.RecordReconciliation(string(OutcomeNotFound))
	return &Result{Outcome: OutcomeNotFound, Wallet: w}, nil
}
