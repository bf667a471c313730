package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"lancepay/internal/events"
	"lancepay/internal/logger"
	"lancepay/internal/metrics"
	"lancepay/internal/wallet"
)

var ErrOrderNotFound = errors.New("payment order not found")

const orderColumns = `id, provider, external_order_id, user_id, amount_native, native_currency, amount_canonical, status, notes, created_at, updated_at`

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

func (r *SQLRepository) Create(ctx context.Context, order *PaymentOrder) error {
	return r.db.QueryRowxContext(ctx, `
		INSERT INTO payment_orders (provider, external_order_id, user_id, amount_native, native_currency, amount_canonical, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, order.Provider, order.ExternalOrderID, order.UserID, order.AmountNative,
		order.NativeCurrency, order.AmountCanonical, order.Status, order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
}

func (r *SQLRepository) FindByExternalID(ctx context.Context, externalOrderID string) (*PaymentOrder, error) {
	order := &PaymentOrder{}
	err := r.db.GetContext(ctx, order,
		`SELECT `+orderColumns+` FROM payment_orders WHERE external_order_id = $1`,
		externalOrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// MarkConfirmed transitions a pending order to confirmed and credits the
// wallet in the same transaction, keyed by the external order id. Calling
// it on an already-terminal order is a no-op returning the stored order, so
// duplicate webhook deliveries and poll observations are safe.
func (r *SQLRepository) MarkConfirmed(ctx context.Context, externalOrderID, notes string) (*PaymentOrder, error) {
	order, applied, err := r.transition(ctx, externalOrderID, StatusConfirmed, notes)
	if err != nil {
		return nil, err
	}
	if applied {
		metrics.RecordDeposit(order.Provider, StatusConfirmed)
		r.notify(order.UserID)
	}
	return order, nil
}

func (r *SQLRepository) MarkRejected(ctx context.Context, externalOrderID, notes string) (*PaymentOrder, error) {
	order, applied, err := r.transition(ctx, externalOrderID, StatusRejected, notes)
	if err != nil {
		return nil, err
	}
	if applied {
		metrics.RecordDeposit(order.Provider, StatusRejected)
	}
	return order, nil
}

func (r *SQLRepository) transition(ctx context.Context, externalOrderID, status, notes string) (*PaymentOrder, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	order := &PaymentOrder{}
	err = tx.QueryRowxContext(ctx,
		`SELECT `+orderColumns+`
		 FROM payment_orders
		 WHERE external_order_id = $1
		 FOR UPDATE`,
		externalOrderID,
	).StructScan(order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrOrderNotFound
		}
		return nil, false, err
	}

	if order.Terminal() {
		// Re-delivered confirmation: nothing to apply.
		return order, false, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE payment_orders SET status = $1, notes = $2, updated_at = NOW() WHERE id = $3`,
		status, notes, order.ID)
	if err != nil {
		return nil, false, err
	}
	order.Status = status
	order.Notes = notes

	if status == StatusConfirmed {
		_, applied, err := wallet.ApplyCredit(ctx, tx, order.UserID, order.AmountCanonical,
			wallet.EntryDeposit, order.ExternalOrderID, "Deposit via "+order.Provider)
		if err != nil {
			return nil, false, err
		}
		if !applied {
			// The journal already carries this reference id; the status
			// transition still commits, the credit does not repeat.
			metrics.CreditsDeduplicated.Inc()
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return order, true, nil
}

func (r *SQLRepository) notify(userID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.bus.PublishWalletChanged(ctx, events.WalletChanged{
		UserID: userID,
		Reason: "deposit",
		At:     time.Now(),
	}); err != nil {
		logger.Debugf("wallet.changed publish failed for user %d: %v", userID, err)
	}
}

func (r *SQLRepository) ListByUser(ctx context.Context, userID int, limit int) ([]PaymentOrder, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var orders []PaymentOrder
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM payment_orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []PaymentOrder{}
	}
	return orders, nil
}
