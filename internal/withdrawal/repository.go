package withdrawal

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"lancepay/internal/events"
	"lancepay/internal/logger"
	"lancepay/internal/metrics"
	"lancepay/internal/wallet"
)

var ErrNotFound = errors.New("withdrawal not found")

const withdrawalColumns = `id, user_id, amount, status, created_at, resolved_at`

type Repository struct {
	db  *sqlx.DB
	bus events.Publisher
}

func NewRepository(db *sqlx.DB, bus events.Publisher) *Repository {
	if bus == nil {
		bus = events.NewMemoryPublisher()
	}
	return &Repository{db: db, bus: bus}
}

// Request moves amount from available_balance into pending_withdrawal and
// writes the pending journal entry, all in one transaction. The sum of the
// two buckets is unchanged until resolution.
func (r *Repository) Request(ctx context.Context, userID int, amount decimal.Decimal) (*Withdrawal, *wallet.Wallet, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, nil, wallet.ErrInvalidAmount
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	wd := &Withdrawal{
		ID:     uuid.NewString(),
		UserID: userID,
		Amount: amount,
		Status: StatusPending,
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO withdrawals (id, user_id, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, wd.ID, wd.UserID, wd.Amount, wd.Status).Scan(&wd.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	w, err := wallet.ApplyLock(ctx, tx, userID, amount, wallet.EntryWithdrawal, wd.ID, "Withdrawal request")
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	metrics.RecordWithdrawal(StatusPending)
	r.notify(userID)
	return wd, w, nil
}

// Resolve finalizes a withdrawal. Completion removes the amount from
// pending_withdrawal permanently; rejection returns it to the available
// balance. Resolving an already-terminal withdrawal is a no-op.
func (r *Repository) Resolve(ctx context.Context, withdrawalID string, approve bool) (*Withdrawal, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	wd := &Withdrawal{}
	err = tx.QueryRowxContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`,
		withdrawalID,
	).StructScan(wd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if wd.Terminal() {
		return wd, nil
	}

	status := StatusRejected
	if approve {
		status = StatusCompleted
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE withdrawals SET status = $1, resolved_at = NOW() WHERE id = $2`,
		status, wd.ID)
	if err != nil {
		return nil, err
	}
	wd.Status = status

	if approve {
		if _, err := wallet.ApplySettle(ctx, tx, wd.UserID, wd.Amount); err != nil {
			return nil, err
		}
		if err := wallet.SetEntryStatus(ctx, tx, wd.ID, wallet.StatusCompleted); err != nil {
			return nil, err
		}
	} else {
		if _, err := wallet.ApplyRelease(ctx, tx, wd.UserID, wd.Amount, wd.ID+":release", "Withdrawal rejected"); err != nil {
			return nil, err
		}
		if err := wallet.SetEntryStatus(ctx, tx, wd.ID, wallet.StatusRejected); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordWithdrawal(status)
	r.notify(wd.UserID)
	return wd, nil
}

func (r *Repository) ListPending(ctx context.Context, limit int) ([]Withdrawal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var out []Withdrawal
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Withdrawal{}
	}
	return out, nil
}

func (r *Repository) notify(userID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.bus.PublishWalletChanged(ctx, events.WalletChanged{
		UserID: userID,
		Reason: "withdrawal",
		At:     time.Now(),
	}); err != nil {
		logger.Debugf("wallet.changed publish failed for user %d: %v", userID, err)
	}
}
