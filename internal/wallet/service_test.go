package wallet_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/wallet"
)

type fakeStore struct {
	wallets map[string]*wallet.Wallet
	txs     map[string]*wallet.Transaction
	seq     int
}

func newFakeStore(balances map[string]int64) *fakeStore {
	f := &fakeStore{wallets: map[string]*wallet.Wallet{}, txs: map[string]*wallet.Transaction{}}
	for id, b := range balances {
		f.wallets[id] = &wallet.Wallet{UserID: id, Balance: b}
	}
	return f
}

// WithinTx runs fn against a copy and only keeps it when fn succeeds, so
// tests see the same all-or-nothing outcome a real transaction gives.
func (f *fakeStore) WithinTx(_ context.Context, fn func(wallet.Store) error) error {
	cp := f.clone()
	if err := fn(cp); err != nil {
		return err
	}
	*f = *cp
	return nil
}

func (f *fakeStore) clone() *fakeStore {
	cp := &fakeStore{wallets: map[string]*wallet.Wallet{}, txs: map[string]*wallet.Transaction{}, seq: f.seq}
	for k, w := range f.wallets {
		wc := *w
		cp.wallets[k] = &wc
	}
	for k, t := range f.txs {
		tc := *t
		cp.txs[k] = &tc
	}
	return cp
}

func (f *fakeStore) Wallet(_ context.Context, userID string) (*wallet.Wallet, error) {
	w, ok := f.wallets[userID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (f *fakeStore) AddBalance(_ context.Context, userID string, delta int64) error {
	w, ok := f.wallets[userID]
	if !ok {
		return wallet.ErrWalletNotFound
	}
	if w.Balance+delta < 0 {
		return wallet.ErrInsufficientFunds
	}
	w.Balance += delta
	return nil
}

func (f *fakeStore) Hold(_ context.Context, userID string, amount int64) error {
	w, ok := f.wallets[userID]
	if !ok {
		return wallet.ErrWalletNotFound
	}
	if w.Balance < amount {
		return wallet.ErrInsufficientFunds
	}
	w.Balance -= amount
	w.Held += amount
	return nil
}

func (f *fakeStore) ReleaseHeld(_ context.Context, userID string, amount int64, refund bool) error {
	w := f.wallets[userID]
	if w.Held < amount {
		return wallet.ErrInsufficientFunds
	}
	w.Held -= amount
	if refund {
		w.Balance += amount
	}
	return nil
}

func (f *fakeStore) CreateTransaction(_ context.Context, t *wallet.Transaction) error {
	f.seq++
	t.ID = fmt.Sprintf("t%d", f.seq)
	cp := *t
	f.txs[t.ID] = &cp
	return nil
}

func (f *fakeStore) LockTransaction(_ context.Context, id string) (*wallet.Transaction, error) {
	t, ok := f.txs[id]
	if !ok {
		return nil, wallet.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) FinishTransaction(_ context.Context, id, status, adminID, note string) (*wallet.Transaction, error) {
	t := f.txs[id]
	t.Status = status
	t.ReviewedBy = &adminID
	t.AdminNote = note
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListTransactions(_ context.Context, tf wallet.TxFilter) ([]wallet.Transaction, error) {
	var out []wallet.Transaction
	for _, t := range f.txs {
		if tf.UserID != "" && t.UserID != tf.UserID {
			continue
		}
		if tf.Status != "" && t.Status != tf.Status {
			continue
		}
		if tf.Type != "" && t.Type != tf.Type {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeRelay struct{ texts []string }

func (r *fakeRelay) RelayToAdmins(_ context.Context, text string) error {
	r.texts = append(r.texts, text)
	return nil
}

type fakeNotifier struct{ kinds []string }

func (n *fakeNotifier) Notify(_ context.Context, _, kind, _, _, _ string) error {
	n.kinds = append(n.kinds, kind)
	return nil
}

func newService(st *fakeStore) (*wallet.Service, *fakeRelay, *fakeNotifier) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	r, n := &fakeRelay{}, &fakeNotifier{}
	return wallet.NewService(log, st, r, n, wallet.Limits{MinDeposit: 100, MinWithdrawal: 100}), r, n
}

func TestDeposit(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore(map[string]int64{"u1": 0})
	svc, relay, _ := newService(st)

	_, err := svc.Deposit(ctx, "u1", wallet.DepositRequest{Amount: 50, PaymentMethod: "card", ProofURL: "https://img/x.png"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	tx, err := svc.Deposit(ctx, "u1", wallet.DepositRequest{Amount: 500, PaymentMethod: "card", ProofURL: "https://img/x.png"})
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusPending, tx.Status)
	assert.Equal(t, int64(0), st.wallets["u1"].Balance, "nothing is credited before review")
	require.Len(t, relay.texts, 1)
	assert.Contains(t, relay.texts[0], "https://img/x.png")
}

func TestDepositReview(t *testing.T) {
	ctx := context.Background()

	t.Run("approve credits the balance", func(t *testing.T) {
		st := newFakeStore(map[string]int64{"u1": 10})
		svc, _, notes := newService(st)
		tx, err := svc.Deposit(ctx, "u1", wallet.DepositRequest{Amount: 500, PaymentMethod: "card", ProofURL: "https://p"})
		require.NoError(t, err)

		done, err := svc.Approve(ctx, "a1", tx.ID, wallet.ReviewRequest{Note: "ok"})
		require.NoError(t, err)
		assert.Equal(t, wallet.StatusCompleted, done.Status)
		assert.Equal(t, int64(510), st.wallets["u1"].Balance)
		assert.Contains(t, notes.kinds, "transaction_approved")

		_, err = svc.Approve(ctx, "a1", tx.ID, wallet.ReviewRequest{})
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
		assert.Equal(t, int64(510), st.wallets["u1"].Balance, "second approval must not credit again")
	})

	t.Run("reject moves nothing", func(t *testing.T) {
		st := newFakeStore(map[string]int64{"u1": 10})
		svc, _, _ := newService(st)
		tx, err := svc.Deposit(ctx, "u1", wallet.DepositRequest{Amount: 500, PaymentMethod: "card", ProofURL: "https://p"})
		require.NoError(t, err)

		done, err := svc.Reject(ctx, "a1", tx.ID, wallet.ReviewRequest{Note: "fake screenshot"})
		require.NoError(t, err)
		assert.Equal(t, wallet.StatusRejected, done.Status)
		assert.Equal(t, "fake screenshot", done.AdminNote)
		assert.Equal(t, int64(10), st.wallets["u1"].Balance)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		svc, _, _ := newService(newFakeStore(nil))
		_, err := svc.Approve(ctx, "a1", "nope", wallet.ReviewRequest{})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	req := wallet.WithdrawRequest{Amount: 300, PaymentMethod: "card", Details: "4111"}

	t.Run("holds the amount", func(t *testing.T) {
		st := newFakeStore(map[string]int64{"u1": 1000})
		svc, relay, _ := newService(st)

		tx, err := svc.Withdraw(ctx, "u1", req)
		require.NoError(t, err)
		assert.Equal(t, wallet.StatusPending, tx.Status)
		assert.Equal(t, int64(700), st.wallets["u1"].Balance)
		assert.Equal(t, int64(300), st.wallets["u1"].Held)
		assert.Len(t, relay.texts, 1)
	})

	t.Run("insufficient balance is 402 and records nothing", func(t *testing.T) {
		st := newFakeStore(map[string]int64{"u1": 200})
		svc, relay, _ := newService(st)

		_, err := svc.Withdraw(ctx, "u1", req)
		require.Error(t, err)
		assert.Equal(t, 402, apperr.Status(err))
		assert.Empty(t, st.txs)
		assert.Empty(t, relay.texts)
		assert.Equal(t, int64(200), st.wallets["u1"].Balance)
	})

	t.Run("below minimum", func(t *testing.T) {
		svc, _, _ := newService(newFakeStore(map[string]int64{"u1": 1000}))
		_, err := svc.Withdraw(ctx, "u1", wallet.WithdrawRequest{Amount: 10, PaymentMethod: "card", Details: "x"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestWithdrawReview(t *testing.T) {
	ctx := context.Background()
	req := wallet.WithdrawRequest{Amount: 300, PaymentMethod: "card", Details: "4111"}

	t.Run("approve pays out the held amount", func(t *testing.T) {
		st := newFakeStore(map[string]int64{"u1": 1000})
		svc, _, _ := newService(st)
		tx, err := svc.Withdraw(ctx, "u1", req)
		require.NoError(t, err)

		_, err = svc.Approve(ctx, "a1", tx.ID, wallet.ReviewRequest{})
		require.NoError(t, err)
		assert.Equal(t, int64(700), st.wallets["u1"].Balance)
		assert.Equal(t, int64(0), st.wallets["u1"].Held)
	})

	t.Run("reject refunds the held amount", func(t *testing.T) {
		st := newFakeStore(map[string]int64{"u1": 1000})
		svc, _, _ := newService(st)
		tx, err := svc.Withdraw(ctx, "u1", req)
		require.NoError(t, err)

		_, err = svc.Reject(ctx, "a1", tx.ID, wallet.ReviewRequest{Note: "wrong card"})
		require.NoError(t, err)
		assert.Equal(t, int64(1000), st.wallets["u1"].Balance)
		assert.Equal(t, int64(0), st.wallets["u1"].Held)

		_, err = svc.Reject(ctx, "a1", tx.ID, wallet.ReviewRequest{})
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
		assert.Equal(t, int64(1000), st.wallets["u1"].Balance)
	})
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore(map[string]int64{"u1": 100})
	svc, _, notes := newService(st)

	tx, err := svc.Adjust(ctx, "a1", "u1", wallet.AdjustRequest{Amount: 50, Note: "bonus"})
	require.NoError(t, err)
	assert.Equal(t, wallet.TypeAdjustment, tx.Type)
	require.NotNil(t, tx.ReviewedBy)
	assert.Equal(t, "a1", *tx.ReviewedBy)
	assert.Equal(t, int64(150), st.wallets["u1"].Balance)
	assert.Contains(t, notes.kinds, "balance_adjusted")

	_, err = svc.Adjust(ctx, "a1", "u1", wallet.AdjustRequest{Amount: -200, Note: "penalty"})
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	assert.Equal(t, int64(150), st.wallets["u1"].Balance)
	assert.Len(t, st.txs, 1)

	_, err = svc.Adjust(ctx, "a1", "ghost", wallet.AdjustRequest{Amount: 5, Note: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHistoryNeverNil(t *testing.T) {
	svc, _, _ := newService(newFakeStore(map[string]int64{"u1": 0}))
	txs, err := svc.History(context.Background(), "u1", 20, 0)
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
}
