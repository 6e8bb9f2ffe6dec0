package marketplace

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, userID, kind, title, body, reference string) error
}

// ConversationOpener opens (or reopens) the chat between an order's client
// and its executor.
type ConversationOpener interface {
	OpenForOrder(ctx context.Context, orderID, clientID, executorID string) (string, error)
}

// PriorityFees is the GT Coin price of raising an order's priority.
type PriorityFees struct {
	High   int64
	Urgent int64
}

func (f PriorityFees) For(priority string) int64 {
	switch priority {
	case PriorityHigh:
		return f.High
	case PriorityUrgent:
		return f.Urgent
	default:
		return 0
	}
}

type Service struct {
	log      *logrus.Logger
	store    Store
	notifier Notifier
	chats    ConversationOpener
	fees     PriorityFees
}

func NewService(log *logrus.Logger, store Store, notifier Notifier, chats ConversationOpener, fees PriorityFees) *Service {
	return &Service{log: log, store: store, notifier: notifier, chats: chats, fees: fees}
}

// notify is best-effort: a failed notification never fails the request.
func (s *Service) notify(ctx context.Context, userID, kind, title, body, ref string) {
	if s.notifier == nil || userID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, userID, kind, title, body, ref); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "kind": kind}).Warn("notification failed")
	}
}
