package marketplace

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/apperr"
)

// CreateReview lets the client rate the executor of a completed order, once.
func (s *Service) CreateReview(ctx context.Context, clientID, orderID string, req CreateReviewRequest) (*Review, error) {
	const op = "marketplace.Service.CreateReview"

	r := &Review{OrderID: orderID, ReviewerID: clientID, Rating: req.Rating, Comment: req.Comment}
	err := s.store.WithinTx(ctx, func(st Store) error {
		o, err := st.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.ClientID != clientID {
			return apperr.Forbidden("only the order's client can review it")
		}
		if o.Status != StatusCompleted || o.ExecutorID == nil {
			return apperr.InvalidState("can only review completed orders")
		}
		r.ExecutorID = *o.ExecutorID

		if err := st.CreateReview(ctx, r); err != nil {
			return err
		}
		return recomputeRating(ctx, st, r.ExecutorID)
	})
	if err != nil {
		return nil, s.orderErr(op, err)
	}

	s.notify(ctx, r.ExecutorID, "review_received", "You received a review", fmt.Sprintf("%d stars", r.Rating), r.OrderID)
	s.log.WithFields(logrus.Fields{"op": op, "review_id": r.ID, "executor_id": r.ExecutorID}).Info("review created")
	return r, nil
}

// GetOrderReview returns the review of an order to its participants and admins.
func (s *Service) GetOrderReview(ctx context.Context, userID, role, orderID string) (*Review, error) {
	const op = "marketplace.Service.GetOrderReview"

	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, s.orderErr(op, err)
	}
	if role != "admin" && !o.isParticipant(userID) {
		return nil, apperr.Forbidden("not a participant in this order")
	}
	r, err := s.store.ReviewByOrder(ctx, orderID)
	if err != nil {
		return nil, s.orderErr(op, err)
	}
	return r, nil
}

// ExecutorReviews returns the executor's visible reviews with a summary.
func (s *Service) ExecutorReviews(ctx context.Context, executorID string, limit, offset int) (*RatingSummary, []Review, error) {
	const op = "marketplace.Service.ExecutorReviews"

	summary, err := s.store.ExecutorSummary(ctx, executorID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil, apperr.NotFound("executor not found")
	}
	if err != nil {
		return nil, nil, s.orderErr(op, err)
	}
	reviews, err := s.store.ListExecutorReviews(ctx, executorID, limit, offset)
	if err != nil {
		return nil, nil, s.orderErr(op, err)
	}
	return summary, nonNil(reviews), nil
}

func (s *Service) ListReviewsForModeration(ctx context.Context, moderated *bool, limit, offset int) ([]Review, error) {
	reviews, err := s.store.ListReviewsForModeration(ctx, moderated, limit, offset)
	if err != nil {
		return nil, s.orderErr("marketplace.Service.ListReviewsForModeration", err)
	}
	return nonNil(reviews), nil
}

// ModerateReview applies an admin's visibility and bonus decision and
// recomputes the executor's rating from scratch, so applying the same
// decision twice leaves the rating unchanged.
func (s *Service) ModerateReview(ctx context.Context, adminID, reviewID string, req ModerateReviewRequest) (*Review, error) {
	const op = "marketplace.Service.ModerateReview"

	var review *Review
	err := s.store.WithinTx(ctx, func(st Store) error {
		r, err := st.ModerateReview(ctx, reviewID, adminID, req)
		if err != nil {
			return err
		}
		review = r
		return recomputeRating(ctx, st, r.ExecutorID)
	})
	if err != nil {
		return nil, s.orderErr(op, err)
	}

	s.log.WithFields(logrus.Fields{
		"op":        op,
		"review_id": reviewID,
		"admin_id":  adminID,
		"visible":   review.IsVisible,
		"bonus":     review.AdminBonusPoints,
	}).Info("review moderated")
	return review, nil
}

func recomputeRating(ctx context.Context, st Store, executorID string) error {
	inputs, err := st.VisibleRatings(ctx, executorID)
	if err != nil {
		return err
	}
	return st.SetUserRating(ctx, executorID, ComputeRating(inputs))
}
