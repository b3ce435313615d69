package wallet

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-piano-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"time"
)

type Repo struct{ DB postgres.DB }

func (r *Repo) Transact(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

func (r *Repo) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	var w Wallet
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, available_balance, locked_balance, updated_at
		FROM wallets WHERE user_id = $1`, userID).
		Scan(&w.ID, &w.UserID, &w.Available, &w.Locked, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	return w, err
}

func (r *Repo) ListEntries(ctx context.Context, walletID int64, limit, offset int) ([]Entry, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, wallet_id, direction, amount, reference_type, reference_id, note, created_at
		FROM wallet_transactions WHERE wallet_id = $1
		ORDER BY id DESC LIMIT $2 OFFSET $3`, walletID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var dir string
		if err := rows.Scan(&e.ID, &e.WalletID, &dir, &e.Amount, &e.ReferenceType, &e.ReferenceID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Direction = Direction(dir)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) SumEntries(ctx context.Context, walletID int64) (int64, error) {
	var sum int64
	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'IN' THEN amount ELSE -amount END), 0)::bigint
		FROM wallet_transactions WHERE wallet_id = $1`, walletID).Scan(&sum)
	return sum, err
}

const withdrawalColumns = `id, user_id, amount, bank_name, bank_account, account_holder, status,
	COALESCE(resolved_by, ''), resolved_at, admin_note, created_at`

func scanWithdrawal(row pgx.Row) (Withdrawal, error) {
	var w Withdrawal
	var status string
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Bank.BankName, &w.Bank.AccountNumber, &w.Bank.AccountHolder,
		&status, &w.ResolvedBy, &w.ResolvedAt, &w.AdminNote, &w.CreatedAt)
	w.Status = WithdrawalStatus(status)
	return w, err
}

func (r *Repo) GetWithdrawal(ctx context.Context, id int64) (Withdrawal, error) {
	w, err := scanWithdrawal(r.DB.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Withdrawal{}, ErrWithdrawalNotFound
	}
	return w, err
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockWallet(ctx context.Context, userID string) (Wallet, error) {
	// lazy create; DO NOTHING keeps the existing row untouched
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO wallets (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return Wallet{}, err
	}
	var w Wallet
	err := t.tx.QueryRow(ctx, `
		SELECT id, user_id, available_balance, locked_balance, updated_at
		FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&w.ID, &w.UserID, &w.Available, &w.Locked, &w.UpdatedAt)
	return w, err
}

func (t *pgTx) SetBalances(ctx context.Context, walletID, available, locked int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE wallets SET available_balance = $2, locked_balance = $3, updated_at = now()
		WHERE id = $1`, walletID, available, locked)
	return err
}

func (t *pgTx) AppendEntry(ctx context.Context, e *Entry) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO wallet_transactions (wallet_id, direction, amount, reference_type, reference_id, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		e.WalletID, string(e.Direction), e.Amount, e.ReferenceType, e.ReferenceID, e.Note).
		Scan(&e.ID, &e.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return ErrDuplicateEntry
	}
	return err
}

func (t *pgTx) InsertWithdrawal(ctx context.Context, w *Withdrawal) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO withdrawal_requests (user_id, amount, bank_name, bank_account, account_holder, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING id, created_at`,
		w.UserID, w.Amount, w.Bank.BankName, w.Bank.AccountNumber, w.Bank.AccountHolder).
		Scan(&w.ID, &w.CreatedAt)
}

func (t *pgTx) ResolveWithdrawal(ctx context.Context, id int64, status WithdrawalStatus, adminID, note string, at time.Time) (Withdrawal, bool, error) {
	w, err := scanWithdrawal(t.tx.QueryRow(ctx, `
		UPDATE withdrawal_requests
		SET status = $2, resolved_by = $3, resolved_at = $4, admin_note = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING `+withdrawalColumns, id, string(status), adminID, at, note))
	if errors.Is(err, pgx.ErrNoRows) {
		return Withdrawal{}, false, nil
	}
	if err != nil {
		return Withdrawal{}, false, err
	}
	return w, true, nil
}
