package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// earningTypes and spendingTypes drive the monotonic lifetime counters.
var (
	earningTypes  = map[string]bool{EntryTransferIn: true, EntrySubscriptionRevenue: true}
	spendingTypes = map[string]bool{EntryTransferOut: true, EntryFeeRevenue: true}
)

const walletColumns = `id, user_id, available_balance, pending_withdrawal, total_earned, total_spent, currency, created_at, updated_at`

// LockForUpdate loads (creating if absent) a wallet row under a row lock.
// All balance mutation for a user is serialized through this lock; there is
// no lock shared across users.
func LockForUpdate(ctx context.Context, tx *sqlx.Tx, userID int) (*Wallet, error) {
	w := &Wallet{}
	err := tx.QueryRowxContext(ctx,
		`SELECT `+walletColumns+`
		 FROM wallets
		 WHERE user_id = $1
		 FOR UPDATE`,
		userID,
	).StructScan(w)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO wallets (user_id)
		 VALUES ($1)
		 RETURNING `+walletColumns,
		userID,
	).StructScan(w)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ReferenceExists reports whether a journal entry with the given reference
// id has already been written. This is the idempotency check that makes
// duplicate payment confirmations safe.
func ReferenceExists(ctx context.Context, q sqlx.QueryerContext, referenceID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists,
		`SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE reference_id = $1)`, referenceID)
	return exists, err
}

func insertEntry(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, entryType, status, referenceID, description string) error {
	var ref interface{}
	if referenceID != "" {
		ref = referenceID
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, user_id, type, amount, status, description, reference_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), userID, entryType, amount, status, description, ref,
	)
	return err
}

func saveBalances(ctx context.Context, tx *sqlx.Tx, w *Wallet) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE wallets
		 SET available_balance = $1, pending_withdrawal = $2, total_earned = $3, total_spent = $4, updated_at = NOW()
		 WHERE id = $5`,
		w.AvailableBalance, w.PendingWithdrawal, w.TotalEarned, w.TotalSpent, w.ID,
	)
	return err
}

// ApplyCredit increases available_balance and writes the journal row inside
// the caller's transaction. When referenceID is already journaled the call
// is a successful no-op and applied is false.
func ApplyCredit(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, entryType, referenceID, description string) (*Wallet, bool, error) {
	if !amount.IsPositive() {
		return nil, false, ErrInvalidAmount
	}

	if referenceID != "" {
		exists, err := ReferenceExists(ctx, tx, referenceID)
		if err != nil {
			return nil, false, err
		}
		if exists {
			w, err := LockForUpdate(ctx, tx, userID)
			return w, false, err
		}
	}

	w, err := LockForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, false, err
	}

	w.AvailableBalance = w.AvailableBalance.Add(amount)
	if earningTypes[entryType] {
		w.TotalEarned = w.TotalEarned.Add(amount)
	}

	if err := saveBalances(ctx, tx, w); err != nil {
		return nil, false, err
	}
	if err := insertEntry(ctx, tx, userID, amount, entryType, StatusCompleted, referenceID, description); err != nil {
		return nil, false, err
	}
	return w, true, nil
}

// ApplyDebit decreases available_balance, failing with ErrInsufficientFunds
// before any write when the balance would go negative.
func ApplyDebit(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, entryType, referenceID, description string) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	w, err := LockForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if w.AvailableBalance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	w.AvailableBalance = w.AvailableBalance.Sub(amount)
	if spendingTypes[entryType] {
		w.TotalSpent = w.TotalSpent.Add(amount)
	}

	if err := saveBalances(ctx, tx, w); err != nil {
		return nil, err
	}
	if err := insertEntry(ctx, tx, userID, amount.Neg(), entryType, StatusCompleted, referenceID, description); err != nil {
		return nil, err
	}
	return w, nil
}

// ApplyLock earmarks funds: available_balance → pending_withdrawal, with a
// pending journal row. available + pending is unchanged.
func ApplyLock(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, entryType, referenceID, description string) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	w, err := LockForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if w.AvailableBalance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	w.AvailableBalance = w.AvailableBalance.Sub(amount)
	w.PendingWithdrawal = w.PendingWithdrawal.Add(amount)

	if err := saveBalances(ctx, tx, w); err != nil {
		return nil, err
	}
	if err := insertEntry(ctx, tx, userID, amount.Neg(), entryType, StatusPending, referenceID, description); err != nil {
		return nil, err
	}
	return w, nil
}

// ApplyRelease returns earmarked funds to available_balance and writes a
// compensating release entry.
func ApplyRelease(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, referenceID, description string) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	w, err := LockForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if w.PendingWithdrawal.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	w.PendingWithdrawal = w.PendingWithdrawal.Sub(amount)
	w.AvailableBalance = w.AvailableBalance.Add(amount)

	if err := saveBalances(ctx, tx, w); err != nil {
		return nil, err
	}
	if err := insertEntry(ctx, tx, userID, amount, EntryRelease, StatusCompleted, referenceID, description); err != nil {
		return nil, err
	}
	return w, nil
}

// ApplySettle removes earmarked funds from the ledger entirely (a completed
// payout). No new journal row: the original pending entry already recorded
// the outflow, its status transitions instead.
func ApplySettle(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	w, err := LockForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if w.PendingWithdrawal.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	w.PendingWithdrawal = w.PendingWithdrawal.Sub(amount)

	if err := saveBalances(ctx, tx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// SetEntryStatus transitions the status of the journal row keyed by
// reference id. Amounts never change.
func SetEntryStatus(ctx context.Context, tx *sqlx.Tx, referenceID, status string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE ledger_entries SET status = $1 WHERE reference_id = $2`,
		status, referenceID,
	)
	return err
}
