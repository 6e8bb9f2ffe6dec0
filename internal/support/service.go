package support

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/apperr"
)

// Relay forwards new tickets to the admin chat.
type Relay interface {
	RelayToAdmins(ctx context.Context, text string) error
}

type Notifier interface {
	Notify(ctx context.Context, userID, kind, title, body, reference string) error
}

type Service struct {
	log      *logrus.Logger
	store    Store
	relay    Relay
	notifier Notifier
}

func NewService(log *logrus.Logger, store Store, relay Relay, notifier Notifier) *Service {
	return &Service{log: log, store: store, relay: relay, notifier: notifier}
}

func (s *Service) Create(ctx context.Context, userID string, req CreateTicketRequest) (*Ticket, error) {
	const op = "support.Service.Create"

	t := &Ticket{UserID: userID, Subject: req.Subject, Message: req.Message}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.WithFields(logrus.Fields{"op": op, "ticket_id": t.ID, "user_id": userID}).Info("support ticket opened")

	if s.relay != nil {
		text := fmt.Sprintf("Support ticket from %s\nSubject: %s\n\n%s\n\nTicket: %s", t.UserName, t.Subject, t.Message, t.ID)
		if err := s.relay.RelayToAdmins(ctx, text); err != nil {
			s.log.WithError(err).WithField("ticket_id", t.ID).Warn("failed to relay support ticket")
		}
	}
	return t, nil
}

func (s *Service) Mine(ctx context.Context, userID string, limit, offset int) ([]Ticket, error) {
	items, err := s.store.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("support.Service.Mine: %w", err)
	}
	return nonNil(items), nil
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]Ticket, error) {
	items, err := s.store.List(ctx, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("support.Service.List: %w", err)
	}
	return nonNil(items), nil
}

// Reply answers a ticket and tells its author.
func (s *Service) Reply(ctx context.Context, adminID, ticketID string, req ReplyRequest) (*Ticket, error) {
	const op = "support.Service.Reply"

	status := StatusAnswered
	if req.Close {
		status = StatusClosed
	}
	t, err := s.store.Reply(ctx, ticketID, req.Reply, status)
	switch {
	case errors.Is(err, ErrTicketNotFound):
		return nil, apperr.NotFound("ticket not found")
	case errors.Is(err, ErrTicketClosed):
		return nil, apperr.InvalidState("ticket is closed")
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.WithFields(logrus.Fields{"op": op, "ticket_id": t.ID, "admin_id": adminID, "status": status}).Info("support ticket answered")

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, t.UserID, "ticket_answered", "Support replied: "+t.Subject, req.Reply, t.ID); err != nil {
			s.log.WithError(err).WithField("ticket_id", t.ID).Warn("ticket notification failed")
		}
	}
	return t, nil
}

func nonNil(items []Ticket) []Ticket {
	if items == nil {
		return []Ticket{}
	}
	return items
}
