package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/alerts"
	"github.com/gruzztop/gruzztop/internal/apperr"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

type BroadcastQueue interface {
	EnqueueBroadcast(ctx context.Context, p alerts.BroadcastPayload) error
}

type Notifier interface {
	Notify(ctx context.Context, userID, kind, title, body, reference string) error
}

type Service struct {
	log      *logrus.Logger
	store    Store
	cache    Cache
	queue    BroadcastQueue
	notifier Notifier
}

func NewService(log *logrus.Logger, store Store, cache Cache, queue BroadcastQueue, notifier Notifier) *Service {
	return &Service{log: log, store: store, cache: cache, queue: queue, notifier: notifier}
}

func (s *Service) adminErr(op string, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, ErrUserNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, ErrBroadcastNotFound):
		return apperr.NotFound("broadcast not found")
	}
	s.log.WithError(err).WithField("op", op).Error("admin operation failed")
	return fmt.Errorf("%s: %w", op, err)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
