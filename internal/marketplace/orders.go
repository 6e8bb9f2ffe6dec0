package marketplace

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/metrics"
)

// CreateOrder posts a new order. Raised priorities are paid for from the
// client's wallet in the same transaction that creates the order.
func (s *Service) CreateOrder(ctx context.Context, clientID string, req CreateOrderRequest) (*Order, error) {
	const op = "marketplace.Service.CreateOrder"
	log := s.log.WithFields(logrus.Fields{"op": op, "client_id": clientID})

	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	o := &Order{
		ClientID:    clientID,
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		Price:       req.Price,
		Priority:    priority,
		Deadline:    req.Deadline,
	}
	fee := s.fees.For(priority)

	err := s.store.WithinTx(ctx, func(st Store) error {
		if err := st.CreateOrder(ctx, o); err != nil {
			return err
		}
		if fee > 0 {
			return st.ChargeWallet(ctx, clientID, fee, fmt.Sprintf("%s priority for order %s", priority, o.ID))
		}
		return nil
	})
	if errors.Is(err, ErrInsufficientFunds) {
		return nil, apperr.New(apperr.ErrInsufficientFunds, fmt.Sprintf("insufficient balance: %s priority costs %d GT", priority, fee))
	}
	if err != nil {
		log.WithError(err).Error("failed to create order")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.OrdersCreated.WithLabelValues(priority).Inc()
	log.WithFields(logrus.Fields{"order_id": o.ID, "fee": fee}).Info("order created")
	return o, nil
}

func (s *Service) ListOpenOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	orders, err := s.store.ListOpenOrders(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("marketplace.Service.ListOpenOrders: %w", err)
	}
	return nonNil(orders), nil
}

func (s *Service) ListMyOrders(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.store.ListUserOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("marketplace.Service.ListMyOrders: %w", err)
	}
	return nonNil(orders), nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("marketplace.Service.GetOrder: %w", err)
	}
	return o, nil
}

// UpdateOrder edits an open order. Only its client may do so.
func (s *Service) UpdateOrder(ctx context.Context, userID, orderID string, req UpdateOrderRequest) (*Order, error) {
	const op = "marketplace.Service.UpdateOrder"

	var updated *Order
	err := s.store.WithinTx(ctx, func(st Store) error {
		o, err := st.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.ClientID != userID {
			return apperr.Forbidden("not your order")
		}
		if o.Status != StatusOpen {
			return apperr.InvalidState("only open orders can be edited")
		}
		updated, err = st.UpdateOrder(ctx, orderID, req)
		return err
	})
	if err != nil {
		return nil, s.orderErr(op, err)
	}
	return updated, nil
}

// CancelOrder cancels an open or in-progress order and rejects every bid
// still pending on it.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID string) (*Order, error) {
	const op = "marketplace.Service.CancelOrder"

	var (
		order    *Order
		rejected []Bid
	)
	err := s.store.WithinTx(ctx, func(st Store) error {
		o, err := st.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.ClientID != userID {
			return apperr.Forbidden("not your order")
		}
		if o.Status != StatusOpen && o.Status != StatusInProgress {
			return apperr.InvalidState("order cannot be cancelled in status " + o.Status)
		}
		if err := st.SetOrderStatus(ctx, orderID, StatusCancelled); err != nil {
			return err
		}
		rejected, err = st.RejectPendingBids(ctx, orderID, "")
		if err != nil {
			return err
		}
		o.Status = StatusCancelled
		order = o
		return nil
	})
	if err != nil {
		return nil, s.orderErr(op, err)
	}

	for _, b := range rejected {
		s.notify(ctx, b.ExecutorID, "order_cancelled", "Order cancelled", order.Title, order.ID)
	}
	if order.ExecutorID != nil {
		s.notify(ctx, *order.ExecutorID, "order_cancelled", "Order cancelled", order.Title, order.ID)
	}
	s.log.WithFields(logrus.Fields{"op": op, "order_id": orderID, "rejected_bids": len(rejected)}).Info("order cancelled")
	return order, nil
}

// CompleteOrder closes an in-progress order and credits the executor with a
// completed job.
func (s *Service) CompleteOrder(ctx context.Context, userID, orderID string) (*Order, error) {
	const op = "marketplace.Service.CompleteOrder"

	var order *Order
	err := s.store.WithinTx(ctx, func(st Store) error {
		o, err := st.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.ClientID != userID {
			return apperr.Forbidden("not your order")
		}
		if o.Status != StatusInProgress || o.ExecutorID == nil {
			return apperr.InvalidState("only in-progress orders can be completed")
		}
		if err := st.SetOrderStatus(ctx, orderID, StatusCompleted); err != nil {
			return err
		}
		if err := st.IncrementCompletedOrders(ctx, *o.ExecutorID); err != nil {
			return err
		}
		o.Status = StatusCompleted
		order = o
		return nil
	})
	if err != nil {
		return nil, s.orderErr(op, err)
	}

	s.notify(ctx, *order.ExecutorID, "order_completed", "Order completed", order.Title, order.ID)
	return order, nil
}

// orderErr turns store sentinels into client-facing errors.
func (s *Service) orderErr(op string, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, ErrOrderNotFound):
		return apperr.NotFound("order not found")
	case errors.Is(err, ErrBidNotFound):
		return apperr.NotFound("bid not found")
	case errors.Is(err, ErrReviewNotFound):
		return apperr.NotFound("review not found")
	case errors.Is(err, ErrAlreadyAccepted):
		return apperr.Conflict("order already has an accepted bid")
	case errors.Is(err, ErrDuplicateBid):
		return apperr.Conflict("you already placed a bid on this order")
	case errors.Is(err, ErrDuplicateReview):
		return apperr.Conflict("review already exists for this order")
	}
	s.log.WithError(err).WithField("op", op).Error("marketplace operation failed")
	return fmt.Errorf("%s: %w", op, err)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
