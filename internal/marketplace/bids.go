package marketplace

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/metrics"
)

// PlaceBid records an executor's response to an open order.
func (s *Service) PlaceBid(ctx context.Context, executorID, orderID string, req PlaceBidRequest) (*Bid, error) {
	const op = "marketplace.Service.PlaceBid"

	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, s.orderErr(op, err)
	}
	if o.Status != StatusOpen {
		return nil, apperr.InvalidState("order is not accepting bids")
	}
	if o.ClientID == executorID {
		return nil, apperr.Forbidden("cannot bid on your own order")
	}

	b := &Bid{OrderID: orderID, ExecutorID: executorID, Message: req.Message, ProposedPrice: req.ProposedPrice}
	if err := s.store.CreateBid(ctx, b); err != nil {
		return nil, s.orderErr(op, err)
	}

	s.notify(ctx, o.ClientID, "bid_received", "New bid on your order", o.Title, o.ID)
	s.log.WithFields(logrus.Fields{"op": op, "order_id": orderID, "bid_id": b.ID}).Info("bid placed")
	return b, nil
}

// ListBids shows the order's client and admins every bid; anyone else only
// sees bids they placed themselves.
func (s *Service) ListBids(ctx context.Context, userID, role, orderID string) ([]Bid, error) {
	const op = "marketplace.Service.ListBids"

	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, s.orderErr(op, err)
	}
	filter := userID
	if o.ClientID == userID || role == "admin" {
		filter = ""
	}
	bids, err := s.store.ListBids(ctx, orderID, filter)
	if err != nil {
		return nil, s.orderErr(op, err)
	}
	return nonNil(bids), nil
}

// WithdrawBid lets an executor pull back a bid that is still pending.
func (s *Service) WithdrawBid(ctx context.Context, executorID, bidID string) (*Bid, error) {
	const op = "marketplace.Service.WithdrawBid"

	b, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, s.orderErr(op, err)
	}
	if b.ExecutorID != executorID {
		return nil, apperr.Forbidden("not your bid")
	}
	if b.Status != BidPending {
		return nil, apperr.InvalidState("only pending bids can be withdrawn")
	}
	if err := s.store.SetBidStatus(ctx, bidID, BidWithdrawn); err != nil {
		return nil, s.orderErr(op, err)
	}
	b.Status = BidWithdrawn
	return b, nil
}

// RejectBid lets the order's client turn down a pending bid.
func (s *Service) RejectBid(ctx context.Context, clientID, bidID string) (*Bid, error) {
	const op = "marketplace.Service.RejectBid"

	var (
		bid   *Bid
		title string
	)
	err := s.store.WithinTx(ctx, func(st Store) error {
		b, err := st.GetBid(ctx, bidID)
		if err != nil {
			return err
		}
		o, err := st.LockOrder(ctx, b.OrderID)
		if err != nil {
			return err
		}
		if o.ClientID != clientID {
			return apperr.Forbidden("not your order")
		}
		if b.Status != BidPending {
			return apperr.InvalidState("only pending bids can be rejected")
		}
		if err := st.SetBidStatus(ctx, bidID, BidRejected); err != nil {
			return err
		}
		b.Status = BidRejected
		bid, title = b, o.Title
		return nil
	})
	if err != nil {
		return nil, s.orderErr(op, err)
	}

	s.notify(ctx, bid.ExecutorID, "bid_rejected", "Your bid was declined", title, bid.OrderID)
	return bid, nil
}

// AcceptBid assigns the order to the bid's executor. The chosen bid is
// marked accepted, the order moves to in_progress with that executor, and
// every other pending bid is rejected, all in one transaction holding the
// order row lock. Either all three writes land or none do.
func (s *Service) AcceptBid(ctx context.Context, clientID, bidID string) (*AcceptResult, error) {
	const op = "marketplace.Service.AcceptBid"
	log := s.log.WithFields(logrus.Fields{"op": op, "bid_id": bidID})

	var (
		res      AcceptResult
		rejected []Bid
	)
	err := s.store.WithinTx(ctx, func(st Store) error {
		b, err := st.GetBid(ctx, bidID)
		if err != nil {
			return err
		}
		o, err := st.LockOrder(ctx, b.OrderID)
		if err != nil {
			return err
		}
		if o.ClientID != clientID {
			return apperr.Forbidden("not your order")
		}
		if o.Status != StatusOpen {
			return apperr.InvalidState("order is no longer open")
		}

		// Re-read under the order lock so a concurrent withdraw is seen.
		b, err = st.GetBid(ctx, bidID)
		if err != nil {
			return err
		}
		if b.Status != BidPending {
			return apperr.InvalidState("only pending bids can be accepted")
		}

		if err := st.SetBidStatus(ctx, bidID, BidAccepted); err != nil {
			return err
		}
		if err := st.AssignExecutor(ctx, o.ID, b.ExecutorID, b.ProposedPrice); err != nil {
			return err
		}
		rejected, err = st.RejectPendingBids(ctx, o.ID, bidID)
		if err != nil {
			return err
		}

		b.Status = BidAccepted
		o.Status = StatusInProgress
		o.ExecutorID = &b.ExecutorID
		if b.ProposedPrice != nil {
			o.Price = *b.ProposedPrice
		}
		res.Order, res.Bid, res.RejectedBids = o, b, len(rejected)
		return nil
	})
	if err != nil {
		return nil, s.orderErr(op, err)
	}
	metrics.BidsAccepted.Inc()

	if s.chats != nil {
		convID, err := s.chats.OpenForOrder(ctx, res.Order.ID, res.Order.ClientID, res.Bid.ExecutorID)
		if err != nil {
			log.WithError(err).Warn("failed to open order conversation")
		}
		res.ConversationID = convID
	}

	s.notify(ctx, res.Bid.ExecutorID, "bid_accepted", "Your bid was accepted", res.Order.Title, res.Order.ID)
	for _, r := range rejected {
		s.notify(ctx, r.ExecutorID, "bid_rejected", "Your bid was declined", res.Order.Title, res.Order.ID)
	}

	log.WithFields(logrus.Fields{"order_id": res.Order.ID, "rejected": len(rejected)}).Info("bid accepted")
	return &res, nil
}
