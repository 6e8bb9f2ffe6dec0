package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/messaging"
)

var ErrNotificationNotFound = errors.New("notification not found")

// EventNotification is pushed over the websocket when a notification is created.
const EventNotification = "notification"

type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"-"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Reference string     `json:"reference,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at"`
}

type NotificationStore interface {
	Create(ctx context.Context, n *Notification) error
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type PostgresNotificationStore struct {
	pool *pgxpool.Pool
}

func NewPostgresNotificationStore(pool *pgxpool.Pool) *PostgresNotificationStore {
	return &PostgresNotificationStore{pool: pool}
}

func (s *PostgresNotificationStore) Create(ctx context.Context, n *Notification) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, type, title, body, reference)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, n.UserID, n.Type, n.Title, n.Body, n.Reference).Scan(&n.ID, &n.CreatedAt)
}

func (s *PostgresNotificationStore) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, type, title, body, reference, created_at, read_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Reference, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (s *PostgresNotificationStore) MarkRead(ctx context.Context, id, userID string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *PostgresNotificationStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ct, err := s.pool.Exec(ctx, `UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s *PostgresNotificationStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&n)
	return n, err
}

type Publisher interface {
	Publish(userID string, evt messaging.Event)
}

// Notifications records in-app notifications and pushes them to online users.
type Notifications struct {
	log   *logrus.Logger
	store NotificationStore
	pub   Publisher
}

func NewNotifications(log *logrus.Logger, store NotificationStore, pub Publisher) *Notifications {
	return &Notifications{log: log, store: store, pub: pub}
}

func (s *Notifications) Notify(ctx context.Context, userID, kind, title, body, reference string) error {
	const op = "alerts.Notifications.Notify"

	n := &Notification{UserID: userID, Type: kind, Title: title, Body: body, Reference: reference}
	if err := s.store.Create(ctx, n); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.pub != nil {
		s.pub.Publish(userID, messaging.Event{Type: EventNotification, Data: n})
	}
	s.log.WithFields(logrus.Fields{"op": op, "user_id": userID, "type": kind}).Debug("notification created")
	return nil
}

func (s *Notifications) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	const op = "alerts.Notifications.List"

	items, err := s.store.List(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	if items == nil {
		items = []Notification{}
	}
	unread, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return items, unread, nil
}

func (s *Notifications) MarkRead(ctx context.Context, userID, id string) error {
	const op = "alerts.Notifications.MarkRead"

	err := s.store.MarkRead(ctx, id, userID)
	if errors.Is(err, ErrNotificationNotFound) {
		return apperr.NotFound("notification not found")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Notifications) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("alerts.Notifications.MarkAllRead: %w", err)
	}
	return n, nil
}
