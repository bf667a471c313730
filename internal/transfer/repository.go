package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"lancepay/internal/events"
	"lancepay/internal/logger"
	"lancepay/internal/wallet"
)

type SQLRepository struct {
	db  *sqlx.DB
	bus events.Publisher
}

func NewRepository(db *sqlx.DB, bus events.Publisher) *SQLRepository {
	if bus == nil {
		bus = events.NewMemoryPublisher()
	}
	return &SQLRepository{db: db, bus: bus}
}

// Execute applies a validated transfer atomically: two debits against the
// sender (amount + fee), one credit to the recipient, one transfers row. A
// failure at any point rolls the whole thing back.
func (r *SQLRepository) Execute(ctx context.Context, t *Transfer) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Both wallet rows are locked in ascending user id order before any
	// mutation so two opposing transfers cannot deadlock.
	first, second := t.FromUserID, t.ToUserID
	if second < first {
		first, second = second, first
	}
	if _, err := wallet.LockForUpdate(ctx, tx, first); err != nil {
		return err
	}
	if _, err := wallet.LockForUpdate(ctx, tx, second); err != nil {
		return err
	}

	if _, err := wallet.ApplyDebit(ctx, tx, t.FromUserID, t.Amount,
		wallet.EntryTransferOut, t.ID, fmt.Sprintf("Transfer to user %d", t.ToUserID)); err != nil {
		return err
	}

	if t.Fee.IsPositive() {
		if _, err := wallet.ApplyDebit(ctx, tx, t.FromUserID, t.Fee,
			wallet.EntryFeeRevenue, t.ID+":fee", "Transfer fee"); err != nil {
			return err
		}
	}

	if _, _, err := wallet.ApplyCredit(ctx, tx, t.ToUserID, t.Amount,
		wallet.EntryTransferIn, t.ID+":in", "Transfer received"); err != nil {
		return err
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO transfers (id, from_user_id, to_user_id, amount, fee, total_deduction, note, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, t.ID, t.FromUserID, t.ToUserID, t.Amount, t.Fee, t.TotalDeduction, t.Note, t.Status).Scan(&t.CreatedAt)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	r.notify(t.FromUserID)
	r.notify(t.ToUserID)
	return nil
}

func (r *SQLRepository) notify(userID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.bus.PublishWalletChanged(ctx, events.WalletChanged{
		UserID: userID,
		Reason: "transfer",
		At:     time.Now(),
	}); err != nil {
		logger.Debugf("wallet.changed publish failed for user %d: %v", userID, err)
	}
}

// UsedToday sums completed outgoing transfers for the current UTC calendar
// day straight from the journal.
func (r *SQLRepository) UsedToday(ctx context.Context, userID int) (decimal.Decimal, error) {
	var used decimal.Decimal
	err := r.db.GetContext(ctx, &used, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transfers
		WHERE from_user_id = $1
		  AND status = 'completed'
		  AND (created_at AT TIME ZONE 'utc')::date = (NOW() AT TIME ZONE 'utc')::date
	`, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return used, nil
}

func (r *SQLRepository) ListSent(ctx context.Context, userID int, limit int) ([]Transfer, error) {
	return r.list(ctx, `from_user_id`, userID, limit)
}

func (r *SQLRepository) ListReceived(ctx context.Context, userID int, limit int) ([]Transfer, error) {
	return r.list(ctx, `to_user_id`, userID, limit)
}

func (r *SQLRepository) list(ctx context.Context, column string, userID int, limit int) ([]Transfer, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var transfers []Transfer
	err := r.db.SelectContext(ctx, &transfers, `
		SELECT id, from_user_id, to_user_id, amount, fee, total_deduction, note, status, created_at
		FROM transfers
		WHERE `+column+` = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	if transfers == nil {
		transfers = []Transfer{}
	}
	return transfers, nil
}
