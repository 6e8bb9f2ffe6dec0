package marketplace_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/marketplace"
)

// fakeStore keeps everything in maps. WithinTx snapshots the maps and puts
// them back when fn fails, the way a rolled back transaction would.
type fakeStore struct {
	orders    map[string]*marketplace.Order
	bids      map[string]*marketplace.Bid
	reviews   map[string]*marketplace.Review
	balances  map[string]int64
	ratings   map[string]float64
	completed map[string]int
	seq       int
	txCalls   int

	failAssign error
	failReject error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:    map[string]*marketplace.Order{},
		bids:      map[string]*marketplace.Bid{},
		reviews:   map[string]*marketplace.Review{},
		balances:  map[string]int64{},
		ratings:   map[string]float64{},
		completed: map[string]int{},
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

type fakeSnapshot struct {
	orders    map[string]marketplace.Order
	bids      map[string]marketplace.Bid
	reviews   map[string]marketplace.Review
	balances  map[string]int64
	ratings   map[string]float64
	completed map[string]int
}

func copyValues[T any](m map[string]*T) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[k] = *v
	}
	return out
}

func restoreValues[T any](m map[string]T) map[string]*T {
	out := make(map[string]*T, len(m))
	for k, v := range m {
		out[k] = &v
	}
	return out
}

func copyMap[T any](m map[string]T) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f *fakeStore) WithinTx(_ context.Context, fn func(marketplace.Store) error) error {
	f.txCalls++
	snap := fakeSnapshot{
		orders:    copyValues(f.orders),
		bids:      copyValues(f.bids),
		reviews:   copyValues(f.reviews),
		balances:  copyMap(f.balances),
		ratings:   copyMap(f.ratings),
		completed: copyMap(f.completed),
	}
	if err := fn(f); err != nil {
		f.orders = restoreValues(snap.orders)
		f.bids = restoreValues(snap.bids)
		f.reviews = restoreValues(snap.reviews)
		f.balances, f.ratings, f.completed = snap.balances, snap.ratings, snap.completed
		return err
	}
	return nil
}

func (f *fakeStore) CreateOrder(_ context.Context, o *marketplace.Order) error {
	o.ID = f.nextID("o")
	o.Status = marketplace.StatusOpen
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeStore) GetOrder(_ context.Context, id string) (*marketplace.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, marketplace.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) LockOrder(ctx context.Context, id string) (*marketplace.Order, error) {
	return f.GetOrder(ctx, id)
}

func (f *fakeStore) ListOpenOrders(_ context.Context, _ marketplace.OrderFilter) ([]marketplace.Order, error) {
	var out []marketplace.Order
	for _, o := range f.orders {
		if o.Status == marketplace.StatusOpen {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) ListUserOrders(_ context.Context, userID string) ([]marketplace.Order, error) {
	var out []marketplace.Order
	for _, o := range f.orders {
		if o.ClientID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateOrder(_ context.Context, id string, req marketplace.UpdateOrderRequest) (*marketplace.Order, error) {
	o := f.orders[id]
	if req.Title != nil {
		o.Title = *req.Title
	}
	if req.Price != nil {
		o.Price = *req.Price
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) SetOrderStatus(_ context.Context, id, status string) error {
	f.orders[id].Status = status
	return nil
}

func (f *fakeStore) AssignExecutor(_ context.Context, orderID, executorID string, price *int64) error {
	if f.failAssign != nil {
		return f.failAssign
	}
	o := f.orders[orderID]
	o.ExecutorID = &executorID
	o.Status = marketplace.StatusInProgress
	if price != nil {
		o.Price = *price
	}
	return nil
}

func (f *fakeStore) IncrementCompletedOrders(_ context.Context, userID string) error {
	f.completed[userID]++
	return nil
}

func (f *fakeStore) ChargeWallet(_ context.Context, userID string, amount int64, _ string) error {
	if f.balances[userID] < amount {
		return marketplace.ErrInsufficientFunds
	}
	f.balances[userID] -= amount
	return nil
}

func (f *fakeStore) CreateBid(_ context.Context, b *marketplace.Bid) error {
	for _, existing := range f.bids {
		if existing.OrderID == b.OrderID && existing.ExecutorID == b.ExecutorID {
			return marketplace.ErrDuplicateBid
		}
	}
	b.ID = f.nextID("b")
	b.Status = marketplace.BidPending
	cp := *b
	f.bids[b.ID] = &cp
	return nil
}

func (f *fakeStore) GetBid(_ context.Context, id string) (*marketplace.Bid, error) {
	b, ok := f.bids[id]
	if !ok {
		return nil, marketplace.ErrBidNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) ListBids(_ context.Context, orderID, executorID string) ([]marketplace.Bid, error) {
	var out []marketplace.Bid
	for _, b := range f.bids {
		if b.OrderID == orderID && (executorID == "" || b.ExecutorID == executorID) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) SetBidStatus(_ context.Context, id, status string) error {
	b, ok := f.bids[id]
	if !ok {
		return marketplace.ErrBidNotFound
	}
	if status == marketplace.BidAccepted {
		for _, other := range f.bids {
			if other.OrderID == b.OrderID && other.Status == marketplace.BidAccepted {
				return marketplace.ErrAlreadyAccepted
			}
		}
	}
	b.Status = status
	return nil
}

func (f *fakeStore) RejectPendingBids(_ context.Context, orderID, exceptBidID string) ([]marketplace.Bid, error) {
	if f.failReject != nil {
		return nil, f.failReject
	}
	var out []marketplace.Bid
	for _, b := range f.bids {
		if b.OrderID == orderID && b.Status == marketplace.BidPending && b.ID != exceptBidID {
			b.Status = marketplace.BidRejected
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateReview(_ context.Context, r *marketplace.Review) error {
	for _, existing := range f.reviews {
		if existing.OrderID == r.OrderID {
			return marketplace.ErrDuplicateReview
		}
	}
	r.ID = f.nextID("r")
	r.IsVisible = true
	cp := *r
	f.reviews[r.ID] = &cp
	return nil
}

func (f *fakeStore) GetReview(_ context.Context, id string) (*marketplace.Review, error) {
	r, ok := f.reviews[id]
	if !ok {
		return nil, marketplace.ErrReviewNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ReviewByOrder(_ context.Context, orderID string) (*marketplace.Review, error) {
	for _, r := range f.reviews {
		if r.OrderID == orderID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, marketplace.ErrReviewNotFound
}

func (f *fakeStore) ListExecutorReviews(_ context.Context, executorID string, _, _ int) ([]marketplace.Review, error) {
	var out []marketplace.Review
	for _, r := range f.reviews {
		if r.ExecutorID == executorID && r.IsVisible {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) ExecutorSummary(_ context.Context, executorID string) (*marketplace.RatingSummary, error) {
	if executorID == "ghost" {
		return nil, marketplace.ErrUserNotFound
	}
	return &marketplace.RatingSummary{ExecutorID: executorID, Rating: f.ratings[executorID]}, nil
}

func (f *fakeStore) ListReviewsForModeration(_ context.Context, _ *bool, _, _ int) ([]marketplace.Review, error) {
	return nil, nil
}

func (f *fakeStore) ModerateReview(_ context.Context, id, adminID string, req marketplace.ModerateReviewRequest) (*marketplace.Review, error) {
	r, ok := f.reviews[id]
	if !ok {
		return nil, marketplace.ErrReviewNotFound
	}
	if req.IsVisible != nil {
		r.IsVisible = *req.IsVisible
	}
	if req.AdminBonusPoints != nil {
		r.AdminBonusPoints = *req.AdminBonusPoints
	}
	r.IsModerated = true
	r.ModeratedBy = &adminID
	cp := *r
	return &cp, nil
}

func (f *fakeStore) VisibleRatings(_ context.Context, executorID string) ([]marketplace.RatingInput, error) {
	var out []marketplace.RatingInput
	for _, r := range f.reviews {
		if r.ExecutorID == executorID && r.IsVisible {
			out = append(out, marketplace.RatingInput{Stars: r.Rating, BonusPoints: r.AdminBonusPoints})
		}
	}
	return out, nil
}

func (f *fakeStore) SetUserRating(_ context.Context, userID string, rating float64) error {
	f.ratings[userID] = rating
	return nil
}

type sentNotification struct {
	userID, kind string
}

type fakeNotifier struct {
	sent []sentNotification
}

func (n *fakeNotifier) Notify(_ context.Context, userID, kind, _, _, _ string) error {
	n.sent = append(n.sent, sentNotification{userID: userID, kind: kind})
	return nil
}

func (n *fakeNotifier) kinds(userID string) []string {
	var out []string
	for _, s := range n.sent {
		if s.userID == userID {
			out = append(out, s.kind)
		}
	}
	return out
}

type fakeChats struct {
	opened []string
	err    error
}

func (c *fakeChats) OpenForOrder(_ context.Context, orderID, _, _ string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.opened = append(c.opened, orderID)
	return "conv-" + orderID, nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	store    *fakeStore
	notifier *fakeNotifier
	chats    *fakeChats
	svc      *marketplace.Service
}

func newFixture() *fixture {
	st := newFakeStore()
	n := &fakeNotifier{}
	ch := &fakeChats{}
	svc := marketplace.NewService(testLogger(), st, n, ch, marketplace.PriorityFees{High: 50, Urgent: 100})
	return &fixture{store: st, notifier: n, chats: ch, svc: svc}
}

func (fx *fixture) openOrder(t *testing.T, clientID string) *marketplace.Order {
	t.Helper()
	o, err := fx.svc.CreateOrder(context.Background(), clientID, marketplace.CreateOrderRequest{Title: "Move a sofa", Price: 1000})
	require.NoError(t, err)
	return o
}

func (fx *fixture) bid(t *testing.T, executorID, orderID string, price *int64) *marketplace.Bid {
	t.Helper()
	b, err := fx.svc.PlaceBid(context.Background(), executorID, orderID, marketplace.PlaceBidRequest{Message: "I can do it", ProposedPrice: price})
	require.NoError(t, err)
	return b
}

func ptr[T any](v T) *T { return &v }

func TestCreateOrder_PriorityFee(t *testing.T) {
	ctx := context.Background()

	t.Run("normal is free", func(t *testing.T) {
		fx := newFixture()
		o, err := fx.svc.CreateOrder(ctx, "c1", marketplace.CreateOrderRequest{Title: "t"})
		require.NoError(t, err)
		assert.Equal(t, marketplace.PriorityNormal, o.Priority)
		assert.Equal(t, marketplace.StatusOpen, o.Status)
	})

	t.Run("urgent charges the wallet", func(t *testing.T) {
		fx := newFixture()
		fx.store.balances["c1"] = 150
		o, err := fx.svc.CreateOrder(ctx, "c1", marketplace.CreateOrderRequest{Title: "t", Priority: marketplace.PriorityUrgent})
		require.NoError(t, err)
		assert.Equal(t, marketplace.PriorityUrgent, o.Priority)
		assert.Equal(t, int64(50), fx.store.balances["c1"])
	})

	t.Run("insufficient balance is 402", func(t *testing.T) {
		fx := newFixture()
		fx.store.balances["c1"] = 10
		_, err := fx.svc.CreateOrder(ctx, "c1", marketplace.CreateOrderRequest{Title: "t", Priority: marketplace.PriorityHigh})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
		assert.Equal(t, 402, apperr.Status(err))
		assert.Empty(t, fx.store.orders, "order insert is rolled back with the charge")
		assert.Equal(t, int64(10), fx.store.balances["c1"])
	})
}

func TestPlaceBid(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	o := fx.openOrder(t, "c1")

	b := fx.bid(t, "e1", o.ID, nil)
	assert.Equal(t, marketplace.BidPending, b.Status)
	assert.Contains(t, fx.notifier.kinds("c1"), "bid_received")

	_, err := fx.svc.PlaceBid(ctx, "e1", o.ID, marketplace.PlaceBidRequest{Message: "again"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = fx.svc.PlaceBid(ctx, "c1", o.ID, marketplace.PlaceBidRequest{Message: "self"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = fx.svc.PlaceBid(ctx, "e2", "missing", marketplace.PlaceBidRequest{Message: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAcceptBid(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	o := fx.openOrder(t, "c1")
	winner := fx.bid(t, "e1", o.ID, ptr(int64(800)))
	loser := fx.bid(t, "e2", o.ID, nil)
	withdrawn := fx.bid(t, "e3", o.ID, nil)
	_, err := fx.svc.WithdrawBid(ctx, "e3", withdrawn.ID)
	require.NoError(t, err)

	res, err := fx.svc.AcceptBid(ctx, "c1", winner.ID)
	require.NoError(t, err)

	assert.Equal(t, marketplace.StatusInProgress, res.Order.Status)
	require.NotNil(t, res.Order.ExecutorID)
	assert.Equal(t, "e1", *res.Order.ExecutorID)
	assert.Equal(t, int64(800), res.Order.Price)
	assert.Equal(t, 1, res.RejectedBids)
	assert.Equal(t, "conv-"+o.ID, res.ConversationID)

	assert.Equal(t, marketplace.BidAccepted, fx.store.bids[winner.ID].Status)
	assert.Equal(t, marketplace.BidRejected, fx.store.bids[loser.ID].Status)
	assert.Equal(t, marketplace.BidWithdrawn, fx.store.bids[withdrawn.ID].Status)
	assert.Equal(t, marketplace.StatusInProgress, fx.store.orders[o.ID].Status)

	assert.Contains(t, fx.notifier.kinds("e1"), "bid_accepted")
	assert.Contains(t, fx.notifier.kinds("e2"), "bid_rejected")
	assert.Empty(t, fx.notifier.kinds("e3"))

	// Second accept on the same order is refused.
	_, err = fx.svc.AcceptBid(ctx, "c1", loser.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestAcceptBid_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not the owner", func(t *testing.T) {
		fx := newFixture()
		o := fx.openOrder(t, "c1")
		b := fx.bid(t, "e1", o.ID, nil)
		_, err := fx.svc.AcceptBid(ctx, "c2", b.ID)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
		assert.Equal(t, marketplace.BidPending, fx.store.bids[b.ID].Status)
	})

	t.Run("unknown bid", func(t *testing.T) {
		fx := newFixture()
		_, err := fx.svc.AcceptBid(ctx, "c1", "nope")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("withdrawn bid", func(t *testing.T) {
		fx := newFixture()
		o := fx.openOrder(t, "c1")
		b := fx.bid(t, "e1", o.ID, nil)
		_, err := fx.svc.WithdrawBid(ctx, "e1", b.ID)
		require.NoError(t, err)
		_, err = fx.svc.AcceptBid(ctx, "c1", b.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	})

	t.Run("store failure surfaces as internal", func(t *testing.T) {
		fx := newFixture()
		o := fx.openOrder(t, "c1")
		b := fx.bid(t, "e1", o.ID, nil)
		fx.store.failAssign = errors.New("boom")
		_, err := fx.svc.AcceptBid(ctx, "c1", b.ID)
		require.Error(t, err)
		assert.Equal(t, 500, apperr.Status(err))
		assert.Empty(t, fx.chats.opened)
		assert.Equal(t, marketplace.BidPending, fx.store.bids[b.ID].Status, "bid accept is rolled back")
	})

	t.Run("failure on the last step rolls back every step", func(t *testing.T) {
		fx := newFixture()
		o := fx.openOrder(t, "c1")
		winner := fx.bid(t, "e1", o.ID, ptr(int64(900)))
		other := fx.bid(t, "e2", o.ID, nil)
		fx.store.failReject = errors.New("boom")

		_, err := fx.svc.AcceptBid(ctx, "c1", winner.ID)
		require.Error(t, err)

		assert.Equal(t, marketplace.BidPending, fx.store.bids[winner.ID].Status)
		assert.Equal(t, marketplace.BidPending, fx.store.bids[other.ID].Status)
		stored := fx.store.orders[o.ID]
		assert.Equal(t, marketplace.StatusOpen, stored.Status)
		assert.Nil(t, stored.ExecutorID)
		assert.Equal(t, o.Price, stored.Price)
		assert.Empty(t, fx.notifier.kinds("e1"))

		// The order is still acceptable once the store recovers.
		fx.store.failReject = nil
		res, err := fx.svc.AcceptBid(ctx, "c1", winner.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, res.RejectedBids)
	})

	t.Run("chat failure does not fail the accept", func(t *testing.T) {
		fx := newFixture()
		fx.chats.err = errors.New("chat down")
		o := fx.openOrder(t, "c1")
		b := fx.bid(t, "e1", o.ID, nil)
		res, err := fx.svc.AcceptBid(ctx, "c1", b.ID)
		require.NoError(t, err)
		assert.Empty(t, res.ConversationID)
	})
}

func TestCancelOrder_RejectsPendingBids(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	o := fx.openOrder(t, "c1")
	b1 := fx.bid(t, "e1", o.ID, nil)
	b2 := fx.bid(t, "e2", o.ID, nil)

	_, err := fx.svc.CancelOrder(ctx, "e1", o.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	cancelled, err := fx.svc.CancelOrder(ctx, "c1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusCancelled, cancelled.Status)
	assert.Equal(t, marketplace.BidRejected, fx.store.bids[b1.ID].Status)
	assert.Equal(t, marketplace.BidRejected, fx.store.bids[b2.ID].Status)
	assert.Contains(t, fx.notifier.kinds("e2"), "order_cancelled")

	_, err = fx.svc.CancelOrder(ctx, "c1", o.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCompleteOrder(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	o := fx.openOrder(t, "c1")

	_, err := fx.svc.CompleteOrder(ctx, "c1", o.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState, "open orders have no executor yet")

	b := fx.bid(t, "e1", o.ID, nil)
	_, err = fx.svc.AcceptBid(ctx, "c1", b.ID)
	require.NoError(t, err)

	done, err := fx.svc.CompleteOrder(ctx, "c1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusCompleted, done.Status)
	assert.Equal(t, 1, fx.store.completed["e1"])
	assert.Contains(t, fx.notifier.kinds("e1"), "order_completed")
}

func TestUpdateOrder(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	o := fx.openOrder(t, "c1")

	updated, err := fx.svc.UpdateOrder(ctx, "c1", o.ID, marketplace.UpdateOrderRequest{Title: ptr("Move two sofas")})
	require.NoError(t, err)
	assert.Equal(t, "Move two sofas", updated.Title)

	_, err = fx.svc.UpdateOrder(ctx, "c2", o.ID, marketplace.UpdateOrderRequest{Title: ptr("mine")})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestListBids_Visibility(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	o := fx.openOrder(t, "c1")
	fx.bid(t, "e1", o.ID, nil)
	fx.bid(t, "e2", o.ID, nil)

	all, err := fx.svc.ListBids(ctx, "c1", "client", o.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := fx.svc.ListBids(ctx, "e1", "executor", o.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "e1", own[0].ExecutorID)

	admin, err := fx.svc.ListBids(ctx, "a1", "admin", o.ID)
	require.NoError(t, err)
	assert.Len(t, admin, 2)

	none, err := fx.svc.ListBids(ctx, "e9", "executor", o.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func completedOrder(t *testing.T, fx *fixture, clientID, executorID string) *marketplace.Order {
	t.Helper()
	ctx := context.Background()
	o := fx.openOrder(t, clientID)
	b := fx.bid(t, executorID, o.ID, nil)
	_, err := fx.svc.AcceptBid(ctx, clientID, b.ID)
	require.NoError(t, err)
	done, err := fx.svc.CompleteOrder(ctx, clientID, o.ID)
	require.NoError(t, err)
	return done
}

func TestCreateReview_RecomputesRating(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	o1 := completedOrder(t, fx, "c1", "e1")
	o2 := completedOrder(t, fx, "c2", "e1")

	_, err := fx.svc.CreateReview(ctx, "c1", o1.ID, marketplace.CreateReviewRequest{Rating: 5})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, fx.store.ratings["e1"], 0.001)

	_, err = fx.svc.CreateReview(ctx, "c2", o2.ID, marketplace.CreateReviewRequest{Rating: 4})
	require.NoError(t, err)
	assert.InDelta(t, 4.5, fx.store.ratings["e1"], 0.001)
	assert.Contains(t, fx.notifier.kinds("e1"), "review_received")

	_, err = fx.svc.CreateReview(ctx, "c1", o1.ID, marketplace.CreateReviewRequest{Rating: 1})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreateReview_Guards(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	open := fx.openOrder(t, "c1")
	done := completedOrder(t, fx, "c1", "e1")

	_, err := fx.svc.CreateReview(ctx, "c1", open.ID, marketplace.CreateReviewRequest{Rating: 5})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = fx.svc.CreateReview(ctx, "e1", done.ID, marketplace.CreateReviewRequest{Rating: 5})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestModerateReview(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	o1 := completedOrder(t, fx, "c1", "e1")
	o2 := completedOrder(t, fx, "c2", "e1")
	r1, err := fx.svc.CreateReview(ctx, "c1", o1.ID, marketplace.CreateReviewRequest{Rating: 1})
	require.NoError(t, err)
	_, err = fx.svc.CreateReview(ctx, "c2", o2.ID, marketplace.CreateReviewRequest{Rating: 4})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, fx.store.ratings["e1"], 0.001)

	// Hiding the 1-star review leaves only the 4.
	hide := marketplace.ModerateReviewRequest{IsVisible: ptr(false), Note: "abusive"}
	moderated, err := fx.svc.ModerateReview(ctx, "a1", r1.ID, hide)
	require.NoError(t, err)
	assert.True(t, moderated.IsModerated)
	assert.InDelta(t, 4.0, fx.store.ratings["e1"], 0.001)

	// Same decision again changes nothing.
	_, err = fx.svc.ModerateReview(ctx, "a1", r1.ID, hide)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, fx.store.ratings["e1"], 0.001)

	_, err = fx.svc.ModerateReview(ctx, "a1", "missing", hide)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetOrderReview_Access(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	o := completedOrder(t, fx, "c1", "e1")
	_, err := fx.svc.CreateReview(ctx, "c1", o.ID, marketplace.CreateReviewRequest{Rating: 5, Comment: "great"})
	require.NoError(t, err)

	for _, who := range []struct{ id, role string }{{"c1", "client"}, {"e1", "executor"}, {"a1", "admin"}} {
		r, err := fx.svc.GetOrderReview(ctx, who.id, who.role, o.ID)
		require.NoError(t, err, who.id)
		assert.Equal(t, "great", r.Comment)
	}

	_, err = fx.svc.GetOrderReview(ctx, "e2", "executor", o.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestExecutorReviews_UnknownExecutor(t *testing.T) {
	fx := newFixture()
	_, _, err := fx.svc.ExecutorReviews(context.Background(), "ghost", 20, 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
