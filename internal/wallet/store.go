package wallet

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateEntry      = errors.New("ledger entry already recorded")
	ErrAlreadyResolved     = errors.New("withdrawal already resolved")
	ErrWithdrawalNotFound  = errors.New("withdrawal request not found")
	ErrWalletNotFound      = errors.New("wallet not found")
)

// Store owns persistence. Every balance change goes through Transact so the
// balance update and its ledger row commit together.
type Store interface {
	Transact(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetWallet(ctx context.Context, userID string) (Wallet, error)
	ListEntries(ctx context.Context, walletID int64, limit, offset int) ([]Entry, error)
	SumEntries(ctx context.Context, walletID int64) (int64, error)
	GetWithdrawal(ctx context.Context, id int64) (Withdrawal, error)
}

// Tx is scoped to one transaction.
type Tx interface {
	// LockWallet creates the wallet if missing and locks it until commit.
	LockWallet(ctx context.Context, userID string) (Wallet, error)
	SetBalances(ctx context.Context, walletID, available, locked int64) error
	// AppendEntry returns ErrDuplicateEntry when the reference was already applied.
	AppendEntry(ctx context.Context, e *Entry) error
	InsertWithdrawal(ctx context.Context, w *Withdrawal) error
	// ResolveWithdrawal moves a pending request to status. ok is false when
	// the request is missing or no longer pending.
	ResolveWithdrawal(ctx context.Context, id int64, status WithdrawalStatus, adminID, note string, at time.Time) (w Withdrawal, ok bool, err error)
}
