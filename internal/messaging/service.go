package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/metrics"
)

// Publisher pushes events to a user's live connections.
type Publisher interface {
	Publish(userID string, evt Event)
}

type Notifier interface {
	Notify(ctx context.Context, userID, kind, title, body, reference string) error
}

type Service struct {
	log       *logrus.Logger
	store     Store
	pub       Publisher
	notifier  Notifier
	retention time.Duration
	now       func() time.Time
}

func NewService(log *logrus.Logger, store Store, pub Publisher, notifier Notifier, retention time.Duration) *Service {
	return &Service{log: log, store: store, pub: pub, notifier: notifier, retention: retention, now: time.Now}
}

// Start returns the conversation between the caller and another user,
// creating it when none is live. A conversation the caller hid comes back.
func (s *Service) Start(ctx context.Context, userID string, req StartRequest) (*Conversation, error) {
	const op = "messaging.Service.Start"

	if req.ParticipantID == userID {
		return nil, apperr.Validation("cannot start a conversation with yourself")
	}
	c, err := s.getOrCreate(ctx, userID, req.ParticipantID, req.OrderID)
	if err != nil {
		return nil, s.chatErr(op, err)
	}
	if c.StateFor(userID) == StateSoftDeleted {
		if err := s.restore(ctx, c, userID); err != nil {
			return nil, s.chatErr(op, err)
		}
	}
	return c, nil
}

// OpenForOrder gives an order's client and executor a conversation once a
// bid is accepted, bringing an old one back into view for both.
func (s *Service) OpenForOrder(ctx context.Context, orderID, clientID, executorID string) (string, error) {
	const op = "messaging.Service.OpenForOrder"

	c, err := s.getOrCreate(ctx, clientID, executorID, &orderID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	for _, uid := range []string{clientID, executorID} {
		if c.StateFor(uid) == StateSoftDeleted {
			if err := s.restore(ctx, c, uid); err != nil {
				return "", fmt.Errorf("%s: %w", op, err)
			}
		}
	}
	return c.ID, nil
}

func (s *Service) getOrCreate(ctx context.Context, a, b string, orderID *string) (*Conversation, error) {
	c, err := s.store.FindConversation(ctx, a, b, orderID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return nil, err
	}
	c = &Conversation{OrderID: orderID, Participants: []string{a, b}, DeletedBy: []string{}}
	if err := s.store.CreateConversation(ctx, c); err != nil {
		if errors.Is(err, ErrConversationExists) {
			// Lost the insert race; the winner's row is now visible.
			return s.store.FindConversation(ctx, a, b, orderID)
		}
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"conversation_id": c.ID, "participants": c.Participants}).Debug("conversation created")
	return c, nil
}

func (s *Service) restore(ctx context.Context, c *Conversation, userID string) error {
	if _, err := Transition(c.StateFor(userID), ActionUserRestore); err != nil {
		return err
	}
	if err := s.store.Restore(ctx, c.ID, userID); err != nil {
		return err
	}
	kept := c.DeletedBy[:0]
	for _, id := range c.DeletedBy {
		if id != userID {
			kept = append(kept, id)
		}
	}
	c.DeletedBy = kept
	return nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Conversation, error) {
	convs, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, s.chatErr("messaging.Service.List", err)
	}
	if convs == nil {
		convs = []Conversation{}
	}
	return convs, nil
}

// participantConversation loads a conversation the caller takes part in.
// Permanently deleted conversations are gone as far as participants know.
func (s *Service) participantConversation(ctx context.Context, userID, id string) (*Conversation, error) {
	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, apperr.Forbidden("not a participant in this conversation")
	}
	if c.PermanentlyDeleted {
		return nil, ErrConversationNotFound
	}
	return c, nil
}

func (s *Service) Messages(ctx context.Context, userID, conversationID string, before *time.Time, limit int) ([]Message, error) {
	const op = "messaging.Service.Messages"

	if _, err := s.participantConversation(ctx, userID, conversationID); err != nil {
		return nil, s.chatErr(op, err)
	}
	return s.messages(ctx, op, conversationID, before, limit)
}

func (s *Service) messages(ctx context.Context, op, conversationID string, before *time.Time, limit int) ([]Message, error) {
	msgs, err := s.store.ListMessages(ctx, conversationID, before, limit)
	if err != nil {
		return nil, s.chatErr(op, err)
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// Send posts a message. Any participant who had hidden the conversation
// sees it again.
func (s *Service) Send(ctx context.Context, userID, conversationID string, req SendRequest) (*Message, error) {
	const op = "messaging.Service.Send"

	if strings.TrimSpace(req.Content) == "" && req.FileURL == "" {
		return nil, apperr.Validation("message must have content or a file")
	}
	c, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, s.chatErr(op, err)
	}
	if !c.HasParticipant(userID) {
		return nil, apperr.Forbidden("not a participant in this conversation")
	}
	if _, err := Transition(c.StateFor(userID), ActionNewMessage); err != nil {
		return nil, s.chatErr(op, err)
	}

	m := &Message{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        req.Content,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
		FileType:       req.FileType,
		FileSize:       req.FileSize,
	}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, s.chatErr(op, err)
	}
	metrics.MessagesSent.Inc()

	s.deliver(ctx, c, m)
	return m, nil
}

func (s *Service) deliver(ctx context.Context, c *Conversation, m *Message) {
	evt := Event{Type: EventMessageNew, Data: m}
	for _, uid := range c.Participants {
		s.pub.Publish(uid, evt)
	}
	preview := m.Content
	if preview == "" {
		preview = "Attachment: " + m.FileName
	}
	if r := []rune(preview); len(r) > 120 {
		preview = string(r[:120]) + "..."
	}
	for _, uid := range c.Others(m.SenderID) {
		if s.notifier == nil {
			break
		}
		if err := s.notifier.Notify(ctx, uid, "new_message", "New message", preview, c.ID); err != nil {
			s.log.WithError(err).WithField("user_id", uid).Warn("message notification failed")
		}
	}
}

func (s *Service) MarkRead(ctx context.Context, userID, conversationID string) (int64, error) {
	const op = "messaging.Service.MarkRead"

	c, err := s.participantConversation(ctx, userID, conversationID)
	if err != nil {
		return 0, s.chatErr(op, err)
	}
	n, err := s.store.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return 0, s.chatErr(op, err)
	}
	if n > 0 {
		evt := Event{Type: EventMessageRead, Data: map[string]any{
			"conversation_id": conversationID,
			"reader_id":       userID,
			"count":           n,
		}}
		for _, uid := range c.Others(userID) {
			s.pub.Publish(uid, evt)
		}
	}
	return n, nil
}

// Delete hides the conversation for the caller only.
func (s *Service) Delete(ctx context.Context, userID, conversationID string) error {
	const op = "messaging.Service.Delete"

	c, err := s.participantConversation(ctx, userID, conversationID)
	if err != nil {
		return s.chatErr(op, err)
	}
	if _, err := Transition(c.StateFor(userID), ActionUserDelete); err != nil {
		return s.chatErr(op, err)
	}
	if err := s.store.SoftDelete(ctx, conversationID, userID); err != nil {
		return s.chatErr(op, err)
	}
	s.log.WithFields(logrus.Fields{"op": op, "conversation_id": conversationID, "user_id": userID}).Info("conversation hidden")
	return nil
}

func (s *Service) Contacts(ctx context.Context, userID string) ([]string, error) {
	return s.store.Contacts(ctx, userID)
}

// ===== Admin =====

func (s *Service) AdminList(ctx context.Context, state State, limit, offset int) ([]Conversation, error) {
	convs, err := s.store.ListByState(ctx, state, limit, offset)
	if err != nil {
		return nil, s.chatErr("messaging.Service.AdminList", err)
	}
	if convs == nil {
		convs = []Conversation{}
	}
	return convs, nil
}

// AdminMessages reads any conversation regardless of state; deleted chats
// are kept as evidence until purged.
func (s *Service) AdminMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]Message, error) {
	const op = "messaging.Service.AdminMessages"
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return nil, s.chatErr(op, err)
	}
	return s.messages(ctx, op, conversationID, before, limit)
}

func (s *Service) PermanentlyDelete(ctx context.Context, adminID, conversationID string) error {
	const op = "messaging.Service.PermanentlyDelete"

	c, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return s.chatErr(op, err)
	}
	if _, err := Transition(c.State(), ActionAdminDelete); err != nil {
		return s.chatErr(op, err)
	}
	if err := s.store.PermanentlyDelete(ctx, conversationID, adminID); err != nil {
		return s.chatErr(op, err)
	}
	s.log.WithFields(logrus.Fields{"op": op, "conversation_id": conversationID, "admin_id": adminID}).Info("conversation permanently deleted")
	return nil
}

// Purge removes conversations whose permanent deletion is older than the
// retention window.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	const op = "messaging.Service.Purge"

	cutoff := s.now().Add(-s.retention)
	n, err := s.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	metrics.ConversationsPurged.Add(float64(n))
	s.log.WithFields(logrus.Fields{"op": op, "purged": n, "cutoff": cutoff}).Info("conversation purge finished")
	return n, nil
}

// DeliverBroadcast posts content from the admin into a conversation with
// every recipient. Failures for one recipient do not stop the rest.
func (s *Service) DeliverBroadcast(ctx context.Context, adminID, content string, recipients []string) (int, error) {
	const op = "messaging.Service.DeliverBroadcast"

	delivered := 0
	for _, uid := range recipients {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if uid == adminID {
			continue
		}
		c, err := s.getOrCreate(ctx, adminID, uid, nil)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"op": op, "user_id": uid}).Warn("broadcast conversation failed")
			continue
		}
		m := &Message{ConversationID: c.ID, SenderID: adminID, Content: content}
		if err := s.store.CreateMessage(ctx, m); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"op": op, "user_id": uid}).Warn("broadcast message failed")
			continue
		}
		s.deliver(ctx, c, m)
		delivered++
	}
	metrics.MessagesSent.Add(float64(delivered))
	return delivered, nil
}

func (s *Service) chatErr(op string, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, ErrConversationNotFound):
		return apperr.NotFound("conversation not found")
	case errors.Is(err, ErrConversationClosed):
		return apperr.InvalidState("conversation was permanently deleted")
	case errors.Is(err, ErrInvalidTransition):
		return apperr.InvalidState("conversation cannot be changed in its current state")
	}
	s.log.WithError(err).WithField("op", op).Error("messaging operation failed")
	return fmt.Errorf("%s: %w", op, err)
}
