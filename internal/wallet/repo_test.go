package wallet

import (
	"context"
	"github.com/ariefcatur/go-piano-orders/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func expectLockWallet(mock pgxmock.PgxPoolIface, userID string, id, available, locked int64) {
	mock.ExpectExec("INSERT INTO wallets").WithArgs(userID).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("FROM wallets WHERE user_id = \\$1 FOR UPDATE").WithArgs(userID).
		WillReturnRows(mock.NewRows([]string{"id", "user_id", "available_balance", "locked_balance", "updated_at"}).
			AddRow(id, userID, available, locked, time.Now()))
}

func TestRepoCreditCommitsEntryAndBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockWallet(mock, "admin", 3, 1_000, 0)
	mock.ExpectQuery("INSERT INTO wallet_transactions").
		WithArgs(int64(3), "IN", int64(500), RefOrder, "7", "order DH7").
		WillReturnRows(mock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), time.Now()))
	mock.ExpectExec("UPDATE wallets SET available_balance").
		WithArgs(int64(3), int64(1_500), int64(0)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	l := NewLedger(&Repo{DB: mock})
	e, err := l.Credit(context.Background(), "admin", 500, RefOrder, "7", "order DH7")
	require.NoError(t, err)
	assert.Equal(t, int64(11), e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoCreditDuplicateRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockWallet(mock, "admin", 3, 1_500, 0)
	mock.ExpectQuery("INSERT INTO wallet_transactions").
		WithArgs(int64(3), "IN", int64(500), RefOrder, "7", "").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	l := NewLedger(&Repo{DB: mock})
	_, err = l.Credit(context.Background(), "admin", 500, RefOrder, "7", "")
	assert.ErrorIs(t, err, ErrDuplicateEntry)
	assert.True(t, apperr.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoGetWalletNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM wallets WHERE user_id").WithArgs("ghost").WillReturnError(pgx.ErrNoRows)

	_, err = (&Repo{DB: mock}).GetWallet(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestRepoSumEntries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SUM\\(CASE WHEN direction = 'IN'").WithArgs(int64(3)).
		WillReturnRows(mock.NewRows([]string{"sum"}).AddRow(int64(1_250)))

	sum, err := (&Repo{DB: mock}).SumEntries(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1_250), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var withdrawalColumnNames = []string{"id", "user_id", "amount", "bank_name", "bank_account", "account_holder", "status",
	"resolved_by", "resolved_at", "admin_note", "created_at"}

func TestRepoLockWalletCreatesThenLocksRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT INTO wallets \(user_id\) VALUES \(\$1\).*ON CONFLICT \(user_id\) DO NOTHING`).
		WithArgs("teacher-1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`(?s)SELECT id, user_id, available_balance, locked_balance, updated_at.*FROM wallets WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("teacher-1").
		WillReturnRows(mock.NewRows([]string{"id", "user_id", "available_balance", "locked_balance", "updated_at"}).
			AddRow(int64(8), "teacher-1", int64(0), int64(0), time.Now()))
	mock.ExpectCommit()

	var got Wallet
	err = (&Repo{DB: mock}).Transact(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		got, err = tx.LockWallet(ctx, "teacher-1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.ID)
	assert.Zero(t, got.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoRequestWithdrawalHoldsAndInserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	expectLockWallet(mock, "teacher-1", 8, 1_000, 100)
	mock.ExpectExec("UPDATE wallets SET available_balance").
		WithArgs(int64(8), int64(600), int64(500)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`(?s)INSERT INTO withdrawal_requests \(user_id, amount, bank_name, bank_account, account_holder, status\).*'pending'.*RETURNING id, created_at`).
		WithArgs("teacher-1", int64(400), "BCA", "123", "ANI").
		WillReturnRows(mock.NewRows([]string{"id", "created_at"}).AddRow(int64(21), created))
	mock.ExpectCommit()

	l := NewLedger(&Repo{DB: mock})
	w, err := l.RequestWithdrawal(context.Background(), "teacher-1", 400, BankInfo{BankName: "BCA", AccountNumber: " 123 ", AccountHolder: "ANI"})
	require.NoError(t, err)
	assert.Equal(t, int64(21), w.ID)
	assert.Equal(t, created, w.CreatedAt)
	assert.Equal(t, WithdrawalPending, w.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoRequestWithdrawalInsufficientRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockWallet(mock, "teacher-1", 8, 100, 0)
	mock.ExpectRollback()

	_, err = NewLedger(&Repo{DB: mock}).RequestWithdrawal(context.Background(), "teacher-1", 400, BankInfo{BankName: "BCA", AccountNumber: "123", AccountHolder: "ANI"})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, apperr.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

const resolveWithdrawalSQL = `(?s)UPDATE withdrawal_requests.*SET status = \$2, resolved_by = \$3, resolved_at = \$4, admin_note = \$5` +
	`.*WHERE id = \$1 AND status = 'pending'.*RETURNING id, user_id, amount`

func TestRepoResolveWithdrawalApprove(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(resolveWithdrawalSQL).
		WithArgs(int64(21), "approved", "admin-1", at, "paid").
		WillReturnRows(mock.NewRows(withdrawalColumnNames).AddRow(
			int64(21), "teacher-1", int64(400), "BCA", "123", "ANI", "approved", "admin-1", &at, "paid", at.Add(-time.Hour)))
	expectLockWallet(mock, "teacher-1", 8, 600, 400)
	mock.ExpectQuery("INSERT INTO wallet_transactions").
		WithArgs(int64(8), "OUT", int64(400), RefWithdrawal, "21", "withdrawal to BCA 123").
		WillReturnRows(mock.NewRows([]string{"id", "created_at"}).AddRow(int64(30), at))
	mock.ExpectExec("UPDATE wallets SET available_balance").
		WithArgs(int64(8), int64(600), int64(0)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	l := NewLedger(&Repo{DB: mock})
	l.Now = func() time.Time { return at }
	w, err := l.ResolveWithdrawal(context.Background(), 21, ActionApprove, "admin-1", "paid")
	require.NoError(t, err)
	assert.Equal(t, WithdrawalApproved, w.Status)
	assert.Equal(t, "admin-1", w.ResolvedBy)
	require.NotNil(t, w.ResolvedAt)
	assert.Equal(t, at, *w.ResolvedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoResolveWithdrawalZeroRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// already resolved by someone else
	mock.ExpectBegin()
	mock.ExpectQuery(resolveWithdrawalSQL).
		WithArgs(int64(21), "rejected", "admin-2", pgxmock.AnyArg(), "").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()
	mock.ExpectQuery("FROM withdrawal_requests WHERE id = \\$1").WithArgs(int64(21)).
		WillReturnRows(mock.NewRows(withdrawalColumnNames).AddRow(
			int64(21), "teacher-1", int64(400), "BCA", "123", "ANI", "approved", "admin-1", nil, "", time.Now()))

	// never existed
	mock.ExpectBegin()
	mock.ExpectQuery(resolveWithdrawalSQL).
		WithArgs(int64(99), "rejected", "admin-2", pgxmock.AnyArg(), "").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()
	mock.ExpectQuery("FROM withdrawal_requests WHERE id = \\$1").WithArgs(int64(99)).WillReturnError(pgx.ErrNoRows)

	l := NewLedger(&Repo{DB: mock})
	_, err = l.ResolveWithdrawal(context.Background(), 21, ActionReject, "admin-2", "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.True(t, apperr.IsConflict(err))

	_, err = l.ResolveWithdrawal(context.Background(), 99, ActionReject, "admin-2", "")
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
