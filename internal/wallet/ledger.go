package wallet

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-piano-orders/internal/apperr"
	"go.uber.org/zap"
	"strconv"
	"strings"
	"time"
)

type Ledger struct {
	Store Store
	Now   func() time.Time
}

func NewLedger(s Store) *Ledger {
	return &Ledger{Store: s, Now: time.Now}
}

// Credit adds amount to the user's available balance and appends one IN
// entry. A reference that was already credited returns ErrDuplicateEntry and
// changes nothing.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, refType, refID, note string) (Entry, error) {
	const op = "wallet.Credit"
	if userID == "" || refType == "" || refID == "" {
		return Entry{}, apperr.Validationf(op, "user, reference type and reference id are required")
	}
	if amount <= 0 {
		return Entry{}, apperr.Validationf(op, "amount must be positive, got %d", amount)
	}

	var entry Entry
	err := l.Store.Transact(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.LockWallet(ctx, userID)
		if err != nil {
			return err
		}
		entry = Entry{
			WalletID:      w.ID,
			Direction:     DirectionIn,
			Amount:        amount,
			ReferenceType: refType,
			ReferenceID:   refID,
			Note:          note,
		}
		if err := tx.AppendEntry(ctx, &entry); err != nil {
			return err
		}
		return tx.SetBalances(ctx, w.ID, w.Available+amount, w.Locked)
	})
	if errors.Is(err, ErrDuplicateEntry) {
		return Entry{}, apperr.Conflict(op, err)
	}
	if err != nil {
		return Entry{}, apperr.Internal(op, err)
	}

	zap.L().Info("wallet credited",
		zap.String("user_id", userID), zap.Int64("amount", amount),
		zap.String("reference_type", refType), zap.String("reference_id", refID))
	return entry, nil
}

// RequestWithdrawal holds amount (available -> locked) and records a pending request.
func (l *Ledger) RequestWithdrawal(ctx context.Context, userID string, amount int64, bank BankInfo) (Withdrawal, error) {
	const op = "wallet.RequestWithdrawal"
	if userID == "" {
		return Withdrawal{}, apperr.Validationf(op, "user is required")
	}
	if amount <= 0 {
		return Withdrawal{}, apperr.Validationf(op, "amount must be positive, got %d", amount)
	}
	bank.BankName = strings.TrimSpace(bank.BankName)
	bank.AccountNumber = strings.TrimSpace(bank.AccountNumber)
	bank.AccountHolder = strings.TrimSpace(bank.AccountHolder)
	if bank.BankName == "" || bank.AccountNumber == "" || bank.AccountHolder == "" {
		return Withdrawal{}, apperr.Validationf(op, "bank name, account number and account holder are required")
	}

	var wr Withdrawal
	err := l.Store.Transact(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.LockWallet(ctx, userID)
		if err != nil {
			return err
		}
		if w.Available < amount {
			return ErrInsufficientBalance
		}
		if err := tx.SetBalances(ctx, w.ID, w.Available-amount, w.Locked+amount); err != nil {
			return err
		}
		wr = Withdrawal{UserID: userID, Amount: amount, Bank: bank, Status: WithdrawalPending}
		return tx.InsertWithdrawal(ctx, &wr)
	})
	if errors.Is(err, ErrInsufficientBalance) {
		return Withdrawal{}, apperr.Conflict(op, err)
	}
	if err != nil {
		return Withdrawal{}, apperr.Internal(op, err)
	}

	zap.L().Info("withdrawal requested",
		zap.Int64("withdrawal_id", wr.ID), zap.String("user_id", userID), zap.Int64("amount", amount))
	return wr, nil
}

// ResolveWithdrawal finalizes (approve) or releases (reject) a pending hold.
// Only approval writes a ledger entry.
func (l *Ledger) ResolveWithdrawal(ctx context.Context, id int64, action Action, adminID, note string) (Withdrawal, error) {
	const op = "wallet.ResolveWithdrawal"
	var to WithdrawalStatus
	switch action {
	case ActionApprove:
		to = WithdrawalApproved
	case ActionReject:
		to = WithdrawalRejected
	default:
		return Withdrawal{}, apperr.Validationf(op, "unknown action %q", action)
	}
	if adminID == "" {
		return Withdrawal{}, apperr.Validationf(op, "admin is required")
	}

	var wr Withdrawal
	err := l.Store.Transact(ctx, func(ctx context.Context, tx Tx) error {
		var ok bool
		var err error
		wr, ok, err = tx.ResolveWithdrawal(ctx, id, to, adminID, note, l.Now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyResolved
		}

		w, err := tx.LockWallet(ctx, wr.UserID)
		if err != nil {
			return err
		}
		if w.Locked < wr.Amount {
			return fmt.Errorf("wallet %d locked balance %d below withdrawal %d", w.ID, w.Locked, wr.Amount)
		}

		if to == WithdrawalRejected {
			return tx.SetBalances(ctx, w.ID, w.Available+wr.Amount, w.Locked-wr.Amount)
		}
		out := Entry{
			WalletID:      w.ID,
			Direction:     DirectionOut,
			Amount:        wr.Amount,
			ReferenceType: RefWithdrawal,
			ReferenceID:   strconv.FormatInt(wr.ID, 10),
			Note:          "withdrawal to " + wr.Bank.BankName + " " + wr.Bank.AccountNumber,
		}
		if err := tx.AppendEntry(ctx, &out); err != nil {
			return err
		}
		return tx.SetBalances(ctx, w.ID, w.Available, w.Locked-wr.Amount)
	})
	if errors.Is(err, ErrAlreadyResolved) {
		// CAS miss: tell apart "never existed" from "someone else resolved it"
		if _, gerr := l.Store.GetWithdrawal(ctx, id); errors.Is(gerr, ErrWithdrawalNotFound) {
			return Withdrawal{}, apperr.NotFound(op, ErrWithdrawalNotFound)
		}
		return Withdrawal{}, apperr.Conflict(op, err)
	}
	if err != nil {
		return Withdrawal{}, apperr.Internal(op, err)
	}

	zap.L().Info("withdrawal resolved",
		zap.Int64("withdrawal_id", id), zap.String("status", string(to)), zap.String("admin_id", adminID))
	return wr, nil
}

// Balance returns a zero wallet for users that never received anything.
func (l *Ledger) Balance(ctx context.Context, userID string) (Wallet, error) {
	w, err := l.Store.GetWallet(ctx, userID)
	if errors.Is(err, ErrWalletNotFound) {
		return Wallet{UserID: userID}, nil
	}
	if err != nil {
		return Wallet{}, apperr.Internal("wallet.Balance", err)
	}
	return w, nil
}

func (l *Ledger) Entries(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	w, err := l.Store.GetWallet(ctx, userID)
	if errors.Is(err, ErrWalletNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, apperr.Internal("wallet.Entries", err)
	}
	es, err := l.Store.ListEntries(ctx, w.ID, limit, offset)
	if err != nil {
		return nil, apperr.Internal("wallet.Entries", err)
	}
	return es, nil
}

type Reconciliation struct {
	Wallet    Wallet `json:"wallet"`
	LedgerSum int64  `json:"ledger_sum"`
	Balanced  bool   `json:"balanced"`
}

// Reconcile checks available + locked against the signed sum of all entries.
func (l *Ledger) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	w, err := l.Balance(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	if w.ID == 0 {
		return Reconciliation{Wallet: w, Balanced: true}, nil
	}
	sum, err := l.Store.SumEntries(ctx, w.ID)
	if err != nil {
		return Reconciliation{}, apperr.Internal("wallet.Reconcile", err)
	}
	rec := Reconciliation{Wallet: w, LedgerSum: sum, Balanced: sum == w.Total()}
	if !rec.Balanced {
		zap.L().Error("wallet out of balance",
			zap.String("user_id", userID), zap.Int64("ledger_sum", sum), zap.Int64("balance", w.Total()))
	}
	return rec, nil
}
