package wallet

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLedgerMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return sqlxDB, mock, func() { sqlxDB.Close() }
}

func beginTx(t *testing.T, db *sqlx.DB) *sqlx.Tx {
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	return tx
}

func walletRowColumns() []string {
	return []string{"id", "user_id", "available_balance", "pending_withdrawal", "total_earned", "total_spent", "currency", "created_at", "updated_at"}
}

func walletRow(id, userID int, available, pending string) *sqlmock.Rows {
	return sqlmock.NewRows(walletRowColumns()).
		AddRow(id, userID, available, pending, "0", "0", "USD", time.Now(), time.Now())
}

const (
	selectForUpdatePattern = `SELECT (.+)\s+FROM wallets\s+WHERE user_id = \$1\s+FOR UPDATE`
	updateWalletPattern    = `UPDATE wallets\s+SET available_balance = \$1, pending_withdrawal = \$2, total_earned = \$3, total_spent = \$4, updated_at = NOW\(\)\s+WHERE id = \$5`
	insertEntryPattern     = `INSERT INTO ledger_entries \(id, user_id, type, amount, status, description, reference_id\)`
)

func expectReferenceCheck(mock sqlmock.Sqlmock, referenceID string, exists bool) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE reference_id = $1)`)).
		WithArgs(referenceID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func TestApplyCredit_AppliesAndJournals(t *testing.T) {
	db, mock, close := setupLedgerMock(t)
	defer close()

	ctx := context.Background()
	amount := decimal.RequireFromString("250.00")
	start := decimal.RequireFromString("100.00")

	mock.ExpectBegin()
	expectReferenceCheck(mock, "ORDER-1", false)
	mock.ExpectQuery(selectForUpdatePattern).
		WithArgs(7).
		WillReturnRows(walletRow(3, 7, "100.00", "0"))
	mock.ExpectExec(updateWalletPattern).
		WithArgs(start.Add(amount), decimal.RequireFromString("0"), decimal.RequireFromString("0"), decimal.RequireFromString("0"), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEntryPattern).
		WithArgs(sqlmock.AnyArg(), 7, EntryDeposit, amount, StatusCompleted, "Deposit", "ORDER-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx := beginTx(t, db)
	w, applied, err := ApplyCredit(ctx, tx, 7, amount, EntryDeposit, "ORDER-1", "Deposit")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, w.AvailableBalance.Equal(decimal.RequireFromString("350.00")))

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCredit_DuplicateReferenceIsNoOp(t *testing.T) {
	db, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	expectReferenceCheck(mock, "ORDER-1", true)
	// Only the snapshot re-read: no balance update, no journal row.
	mock.ExpectQuery(selectForUpdatePattern).
		WithArgs(7).
		WillReturnRows(walletRow(3, 7, "350.00", "0"))
	mock.ExpectCommit()

	tx := beginTx(t, db)
	w, applied, err := ApplyCredit(context.Background(), tx, 7, decimal.RequireFromString("250.00"), EntryDeposit, "ORDER-1", "Deposit")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.True(t, w.AvailableBalance.Equal(decimal.RequireFromString("350.00")))

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCredit_RejectsNonPositiveAmount(t *testing.T) {
	db, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx := beginTx(t, db)
	_, _, err := ApplyCredit(context.Background(), tx, 7, decimal.Zero, EntryDeposit, "", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDebit_InsufficientFundsFailsBeforeWrite(t *testing.T) {
	db, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdatePattern).
		WithArgs(7).
		WillReturnRows(walletRow(3, 7, "100.00", "0"))
	mock.ExpectRollback()

	tx := beginTx(t, db)
	_, err := ApplyDebit(context.Background(), tx, 7, decimal.RequireFromString("100.01"), EntryTransferOut, "T-1", "Transfer")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyLock_MovesAvailableToPending(t *testing.T) {
	db, mock, close := setupLedgerMock(t)
	defer close()

	amount := decimal.RequireFromString("200.00")
	start := decimal.RequireFromString("500.00")

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdatePattern).
		WithArgs(7).
		WillReturnRows(walletRow(3, 7, "500.00", "0"))
	mock.ExpectExec(updateWalletPattern).
		WithArgs(start.Sub(amount), decimal.RequireFromString("0").Add(amount), decimal.RequireFromString("0"), decimal.RequireFromString("0"), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEntryPattern).
		WithArgs(sqlmock.AnyArg(), 7, EntryWithdrawal, amount.Neg(), StatusPending, "Withdrawal request", "WD-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx := beginTx(t, db)
	w, err := ApplyLock(context.Background(), tx, 7, amount, EntryWithdrawal, "WD-1", "Withdrawal request")
	require.NoError(t, err)

	// Conservation: the two buckets always sum to the pre-lock total.
	assert.True(t, w.AvailableBalance.Add(w.PendingWithdrawal).Equal(start))
	assert.True(t, w.PendingWithdrawal.Equal(amount))

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRelease_ReturnsPendingToAvailable(t *testing.T) {
	db, mock, close := setupLedgerMock(t)
	defer close()

	amount := decimal.RequireFromString("200.00")

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdatePattern).
		WithArgs(7).
		WillReturnRows(walletRow(3, 7, "300.00", "200.00"))
	mock.ExpectExec(updateWalletPattern).
		WithArgs(decimal.RequireFromString("300.00").Add(amount), decimal.RequireFromString("200.00").Sub(amount), decimal.RequireFromString("0"), decimal.RequireFromString("0"), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEntryPattern).
		WithArgs(sqlmock.AnyArg(), 7, EntryRelease, amount, StatusCompleted, "Withdrawal rejected", "WD-1:release").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx := beginTx(t, db)
	w, err := ApplyRelease(context.Background(), tx, 7, amount, "WD-1:release", "Withdrawal rejected")
	require.NoError(t, err)
	assert.True(t, w.AvailableBalance.Equal(decimal.RequireFromString("500.00")))
	assert.True(t, w.PendingWithdrawal.IsZero())

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateWallet_CreatesWhenMissing(t *testing.T) {
	db, mock, close := setupLedgerMock(t)
	defer close()

	repo := NewRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM wallets WHERE user_id = \$1`).
		WithArgs(7).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO wallets \(user_id\)\s+VALUES \(\$1\)\s+RETURNING`).
		WithArgs(7).
		WillReturnRows(walletRow(3, 7, "0", "0"))

	w, err := repo.GetOrCreateWallet(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, w.UserID)
	assert.True(t, w.AvailableBalance.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEntries_ClampsPaging(t *testing.T) {
	db, mock, close := setupLedgerMock(t)
	defer close()

	repo := NewRepository(db)

	mock.ExpectQuery(`SELECT (.+)\s+FROM ledger_entries\s+WHERE user_id = \$1\s+ORDER BY created_at DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs(7, 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "amount", "status", "description", "reference_id", "created_at"}))

	entries, err := repo.ListEntries(context.Background(), 7, 500, -3)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	require.NoError(t, mock.ExpectationsWereMet())
}
