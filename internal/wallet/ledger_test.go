package wallet

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-piano-orders/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// refTopUp seeds balances; the service itself never tops up.
const refTopUp = "manual_topup"

// memStore serializes transactions behind one mutex and applies a
// transaction's writes only when fn returns nil.
type memStore struct {
	mu sync.Mutex
	st memState
}

type memState struct {
	wallets     map[string]Wallet
	entries     []Entry
	withdrawals map[int64]Withdrawal
	nextID      int64
}

func newMemStore() *memStore {
	return &memStore{st: memState{wallets: map[string]Wallet{}, withdrawals: map[int64]Withdrawal{}}}
}

func (s memState) clone() memState {
	c := memState{
		wallets:     make(map[string]Wallet, len(s.wallets)),
		entries:     append([]Entry(nil), s.entries...),
		withdrawals: make(map[int64]Withdrawal, len(s.withdrawals)),
		nextID:      s.nextID,
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	return c
}

func (s *memStore) Transact(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(ctx, &memTx{st: &work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *memStore) GetWallet(_ context.Context, userID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.st.wallets[userID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (s *memStore) ListEntries(_ context.Context, walletID int64, limit, offset int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Entry{}
	for i := len(s.st.entries) - 1; i >= 0; i-- {
		if s.st.entries[i].WalletID == walletID {
			out = append(out, s.st.entries[i])
		}
	}
	if offset >= len(out) {
		return []Entry{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) SumEntries(_ context.Context, walletID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, e := range s.st.entries {
		if e.WalletID == walletID {
			sum += e.Signed()
		}
	}
	return sum, nil
}

func (s *memStore) GetWithdrawal(_ context.Context, id int64) (Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.st.withdrawals[id]
	if !ok {
		return Withdrawal{}, ErrWithdrawalNotFound
	}
	return w, nil
}

type memTx struct{ st *memState }

func (t *memTx) id() int64 {
	t.st.nextID++
	return t.st.nextID
}

func (t *memTx) LockWallet(_ context.Context, userID string) (Wallet, error) {
	w, ok := t.st.wallets[userID]
	if !ok {
		w = Wallet{ID: t.id(), UserID: userID}
		t.st.wallets[userID] = w
	}
	return w, nil
}

func (t *memTx) SetBalances(_ context.Context, walletID, available, locked int64) error {
	if available < 0 || locked < 0 {
		return fmt.Errorf("check constraint: negative balance on wallet %d", walletID)
	}
	for k, w := range t.st.wallets {
		if w.ID == walletID {
			w.Available, w.Locked = available, locked
			t.st.wallets[k] = w
			return nil
		}
	}
	return fmt.Errorf("wallet %d missing", walletID)
}

func (t *memTx) AppendEntry(_ context.Context, e *Entry) error {
	for _, x := range t.st.entries {
		if x.WalletID == e.WalletID && x.Direction == e.Direction &&
			x.ReferenceType == e.ReferenceType && x.ReferenceID == e.ReferenceID {
			return ErrDuplicateEntry
		}
	}
	e.ID = t.id()
	e.CreatedAt = time.Now()
	t.st.entries = append(t.st.entries, *e)
	return nil
}

func (t *memTx) InsertWithdrawal(_ context.Context, w *Withdrawal) error {
	w.ID = t.id()
	w.CreatedAt = time.Now()
	t.st.withdrawals[w.ID] = *w
	return nil
}

func (t *memTx) ResolveWithdrawal(_ context.Context, id int64, status WithdrawalStatus, adminID, note string, at time.Time) (Withdrawal, bool, error) {
	w, ok := t.st.withdrawals[id]
	if !ok || w.Status != WithdrawalPending {
		return Withdrawal{}, false, nil
	}
	w.Status, w.ResolvedBy, w.AdminNote, w.ResolvedAt = status, adminID, note, &at
	t.st.withdrawals[id] = w
	return w, true, nil
}

var bank = BankInfo{BankName: "VCB", AccountNumber: "0123456789", AccountHolder: "NGUYEN VAN A"}

func fundedLedger(t *testing.T, userID string, amount int64) (*Ledger, *memStore) {
	t.Helper()
	s := newMemStore()
	l := NewLedger(s)
	_, err := l.Credit(context.Background(), userID, amount, refTopUp, "seed", "")
	require.NoError(t, err)
	return l, s
}

func assertBalanced(t *testing.T, l *Ledger, userID string) {
	t.Helper()
	rec, err := l.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, rec.Balanced, "ledger sum %d vs balance %d", rec.LedgerSum, rec.Wallet.Total())
}

func TestCreditCreatesWalletLazily(t *testing.T) {
	l := NewLedger(newMemStore())
	ctx := context.Background()

	w, err := l.Balance(ctx, "teacher-1")
	require.NoError(t, err)
	assert.Zero(t, w.ID)
	assert.Zero(t, w.Total())

	e, err := l.Credit(ctx, "teacher-1", 700_000, RefOrderTeacherShare, "12", "course order DH12")
	require.NoError(t, err)
	assert.Equal(t, DirectionIn, e.Direction)

	w, err = l.Balance(ctx, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, int64(700_000), w.Available)
	assert.Zero(t, w.Locked)
	assertBalanced(t, l, "teacher-1")
}

func TestCreditValidation(t *testing.T) {
	l := NewLedger(newMemStore())
	ctx := context.Background()

	_, err := l.Credit(ctx, "u1", 0, RefOrder, "1", "")
	assert.True(t, apperr.IsValidation(err))
	_, err = l.Credit(ctx, "u1", -5, RefOrder, "1", "")
	assert.True(t, apperr.IsValidation(err))
	_, err = l.Credit(ctx, "u1", 5, "", "1", "")
	assert.True(t, apperr.IsValidation(err))
}

func TestCreditSameReferenceTwice(t *testing.T) {
	l := NewLedger(newMemStore())
	ctx := context.Background()

	_, err := l.Credit(ctx, "admin", 1_000_000, RefOrder, "7", "")
	require.NoError(t, err)
	_, err = l.Credit(ctx, "admin", 1_000_000, RefOrder, "7", "")
	assert.ErrorIs(t, err, ErrDuplicateEntry)
	assert.True(t, apperr.IsConflict(err))

	w, _ := l.Balance(ctx, "admin")
	assert.Equal(t, int64(1_000_000), w.Available)
	assertBalanced(t, l, "admin")
}

func TestConcurrentCredits(t *testing.T) {
	l := NewLedger(newMemStore())
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	var won atomic.Int64
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// half share one reference, the other half are distinct top-ups
			ref := "same"
			if i%2 == 1 {
				ref = fmt.Sprintf("topup-%d", i)
			}
			if _, err := l.Credit(ctx, "admin", 100, refTopUp, ref, ""); err == nil {
				won.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(n/2+1), won.Load())
	w, _ := l.Balance(ctx, "admin")
	assert.Equal(t, int64(100*(n/2+1)), w.Available)
	assertBalanced(t, l, "admin")
}

func TestRequestWithdrawalInsufficientBalance(t *testing.T) {
	l, _ := fundedLedger(t, "u1", 50_000)
	ctx := context.Background()

	_, err := l.RequestWithdrawal(ctx, "u1", 50_001, bank)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, apperr.IsConflict(err))

	w, _ := l.Balance(ctx, "u1")
	assert.Equal(t, int64(50_000), w.Available)
	assert.Zero(t, w.Locked)
}

func TestRequestWithdrawalValidation(t *testing.T) {
	l, _ := fundedLedger(t, "u1", 50_000)
	ctx := context.Background()

	_, err := l.RequestWithdrawal(ctx, "u1", 0, bank)
	assert.True(t, apperr.IsValidation(err))
	_, err = l.RequestWithdrawal(ctx, "u1", 10, BankInfo{BankName: "VCB"})
	assert.True(t, apperr.IsValidation(err))
}

func TestApproveWithdrawal(t *testing.T) {
	l, s := fundedLedger(t, "u1", 100_000)
	ctx := context.Background()

	wr, err := l.RequestWithdrawal(ctx, "u1", 40_000, bank)
	require.NoError(t, err)
	assert.Equal(t, WithdrawalPending, wr.Status)

	w, _ := l.Balance(ctx, "u1")
	assert.Equal(t, int64(60_000), w.Available)
	assert.Equal(t, int64(40_000), w.Locked)
	assertBalanced(t, l, "u1")

	entriesBefore := len(s.st.entries)
	wr, err = l.ResolveWithdrawal(ctx, wr.ID, ActionApprove, "admin-1", "paid")
	require.NoError(t, err)
	assert.Equal(t, WithdrawalApproved, wr.Status)
	assert.Equal(t, "admin-1", wr.ResolvedBy)

	w, _ = l.Balance(ctx, "u1")
	assert.Equal(t, int64(60_000), w.Available)
	assert.Zero(t, w.Locked)

	require.Len(t, s.st.entries, entriesBefore+1)
	out := s.st.entries[len(s.st.entries)-1]
	assert.Equal(t, DirectionOut, out.Direction)
	assert.Equal(t, int64(40_000), out.Amount)
	assert.Equal(t, RefWithdrawal, out.ReferenceType)
	assertBalanced(t, l, "u1")
}

func TestRejectWithdrawal(t *testing.T) {
	l, s := fundedLedger(t, "u1", 100_000)
	ctx := context.Background()

	wr, err := l.RequestWithdrawal(ctx, "u1", 40_000, bank)
	require.NoError(t, err)

	entriesBefore := len(s.st.entries)
	wr, err = l.ResolveWithdrawal(ctx, wr.ID, ActionReject, "admin-1", "wrong account")
	require.NoError(t, err)
	assert.Equal(t, WithdrawalRejected, wr.Status)

	w, _ := l.Balance(ctx, "u1")
	assert.Equal(t, int64(100_000), w.Available)
	assert.Zero(t, w.Locked)
	assert.Len(t, s.st.entries, entriesBefore)
	assertBalanced(t, l, "u1")
}

func TestResolveWithdrawalOnlyOnce(t *testing.T) {
	l, _ := fundedLedger(t, "u1", 100_000)
	ctx := context.Background()

	wr, err := l.RequestWithdrawal(ctx, "u1", 10_000, bank)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var won atomic.Int64
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			action := ActionApprove
			if i%2 == 0 {
				action = ActionReject
			}
			if _, err := l.ResolveWithdrawal(ctx, wr.ID, action, "admin", ""); err == nil {
				won.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrAlreadyResolved)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int64(1), won.Load())

	w, _ := l.Balance(ctx, "u1")
	assert.Zero(t, w.Locked)
	assertBalanced(t, l, "u1")
}

func TestResolveUnknownWithdrawal(t *testing.T) {
	l := NewLedger(newMemStore())
	_, err := l.ResolveWithdrawal(context.Background(), 999, ActionApprove, "admin", "")
	assert.True(t, apperr.IsNotFound(err))

	_, err = l.ResolveWithdrawal(context.Background(), 1, "refund", "admin", "")
	assert.True(t, apperr.IsValidation(err))
}

func TestLedgerSumMatchesBalanceAfterRandomOperations(t *testing.T) {
	l := NewLedger(newMemStore())
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	var pending []int64
	for i := 0; i < 300; i++ {
		switch op := rng.Intn(3); {
		case op == 0:
			_, err := l.Credit(ctx, "u1", int64(rng.Intn(100_000)+1), RefOrder, fmt.Sprint(i), "")
			require.NoError(t, err)
		case op == 1:
			wr, err := l.RequestWithdrawal(ctx, "u1", int64(rng.Intn(80_000)+1), bank)
			if err == nil {
				pending = append(pending, wr.ID)
			} else {
				require.ErrorIs(t, err, ErrInsufficientBalance)
			}
		case len(pending) > 0:
			id := pending[0]
			pending = pending[1:]
			action := ActionApprove
			if rng.Intn(2) == 0 {
				action = ActionReject
			}
			_, err := l.ResolveWithdrawal(ctx, id, action, "admin", "")
			require.NoError(t, err)
		}
		assertBalanced(t, l, "u1")
	}
}

func TestEntriesPagination(t *testing.T) {
	l := NewLedger(newMemStore())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := l.Credit(ctx, "u1", 10, RefOrder, fmt.Sprint(i), "")
		require.NoError(t, err)
	}

	es, err := l.Entries(ctx, "u1", 2, 1)
	require.NoError(t, err)
	require.Len(t, es, 2)
	assert.Equal(t, "3", es[0].ReferenceID)
	assert.Equal(t, "2", es[1].ReferenceID)

	es, err = l.Entries(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, es)
}
