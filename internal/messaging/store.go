package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gruzztop/gruzztop/internal/db"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrConversationClosed is returned when writing to a permanently
	// deleted conversation.
	ErrConversationClosed = errors.New("conversation permanently deleted")
	// ErrConversationExists is returned by CreateConversation when a live
	// conversation for the same pair and order was inserted concurrently.
	ErrConversationExists = errors.New("conversation already exists")
)

type Store interface {
	// FindConversation returns the live conversation between a and b, scoped
	// to orderID when it is not nil. Permanently deleted ones are skipped.
	FindConversation(ctx context.Context, a, b string, orderID *string) (*Conversation, error)
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]Conversation, error)
	ListByState(ctx context.Context, state State, limit, offset int) ([]Conversation, error)
	Contacts(ctx context.Context, userID string) ([]string, error)

	// CreateMessage stores m and, in the same statement, stamps
	// last_message_at and clears deleted_by so the conversation reappears
	// for everyone.
	CreateMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)

	SoftDelete(ctx context.Context, conversationID, userID string) error
	Restore(ctx context.Context, conversationID, userID string) error
	PermanentlyDelete(ctx context.Context, conversationID, adminID string) error
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const convColumns = `c.id, c.order_id, c.participants::text[], c.deleted_by::text[], c.permanently_deleted,
	c.permanently_deleted_at, c.permanently_deleted_by, c.last_message_at, c.created_at`

func scanConversation(row pgx.Row, extra ...any) (*Conversation, error) {
	var c Conversation
	dest := append([]any{
		&c.ID, &c.OrderID, &c.Participants, &c.DeletedBy, &c.PermanentlyDeleted,
		&c.PermanentlyDeletedAt, &c.PermanentlyDeletedBy, &c.LastMessageAt, &c.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) FindConversation(ctx context.Context, a, b string, orderID *string) (*Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+convColumns+`
		FROM conversations c
		WHERE c.participants @> ARRAY[$1::uuid, $2::uuid]
		  AND cardinality(c.participants) = 2
		  AND NOT c.permanently_deleted
		  AND c.order_id IS NOT DISTINCT FROM $3::uuid
		ORDER BY c.created_at DESC
		LIMIT 1
	`, a, b, orderID))
	if db.IsNoRows(err) {
		return nil, ErrConversationNotFound
	}
	return c, err
}

func (s *PostgresStore) CreateConversation(ctx context.Context, c *Conversation) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (order_id, participants)
		VALUES ($1, $2::uuid[])
		RETURNING id, created_at
	`, c.OrderID, c.Participants).Scan(&c.ID, &c.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrConversationExists
	}
	return err
}

func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, `SELECT `+convColumns+` FROM conversations c WHERE c.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrConversationNotFound
	}
	return c, err
}

// ListForUser returns the conversations the user can see, most recently
// active first, each with its last message and the user's unread count.
func (s *PostgresStore) ListForUser(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+convColumns+`,
			lm.id, lm.sender_id, lm.content, lm.file_url, lm.file_name, lm.created_at,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.conversation_id = c.id AND m.sender_id <> $1::uuid AND m.read_at IS NULL)
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT m.id, m.sender_id, m.content, m.file_url, m.file_name, m.created_at
			FROM messages m WHERE m.conversation_id = c.id
			ORDER BY m.created_at DESC LIMIT 1
		) lm ON TRUE
		WHERE $1::uuid = ANY(c.participants)
		  AND NOT ($1::uuid = ANY(c.deleted_by))
		  AND NOT c.permanently_deleted
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var (
			lmID, lmSender, lmContent, lmFileURL, lmFileName *string
			lmCreated                                        *time.Time
			unread                                           int
		)
		c, err := scanConversation(rows, &lmID, &lmSender, &lmContent, &lmFileURL, &lmFileName, &lmCreated, &unread)
		if err != nil {
			return nil, err
		}
		c.UnreadCount = unread
		if lmID != nil {
			c.LastMessage = &Message{
				ID:             *lmID,
				ConversationID: c.ID,
				SenderID:       deref(lmSender),
				Content:        deref(lmContent),
				FileURL:        deref(lmFileURL),
				FileName:       deref(lmFileName),
				CreatedAt:      *lmCreated,
			}
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListByState(ctx context.Context, state State, limit, offset int) ([]Conversation, error) {
	var cond string
	switch state {
	case StateActive:
		cond = `NOT c.permanently_deleted AND cardinality(c.deleted_by) = 0`
	case StateSoftDeleted:
		cond = `NOT c.permanently_deleted AND cardinality(c.deleted_by) > 0`
	case StatePermanentlyDeleted:
		cond = `c.permanently_deleted`
	default:
		cond = `TRUE`
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+convColumns+`
		FROM conversations c
		WHERE `+cond+`
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Contacts lists everyone the user shares a live conversation with.
func (s *PostgresStore) Contacts(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p::text
		FROM conversations c, unnest(c.participants) AS p
		WHERE $1::uuid = ANY(c.participants) AND NOT c.permanently_deleted AND p <> $1::uuid
	`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m *Message) error {
	err := s.pool.QueryRow(ctx, `
		WITH conv AS (
			UPDATE conversations
			SET last_message_at = NOW(), deleted_by = '{}'
			WHERE id = $1 AND NOT permanently_deleted
			RETURNING id
		)
		INSERT INTO messages (conversation_id, sender_id, content, file_url, file_name, file_type, file_size)
		SELECT conv.id, $2, $3, $4, $5, $6, $7 FROM conv
		RETURNING id, created_at
	`, m.ConversationID, m.SenderID, m.Content, m.FileURL, m.FileName, m.FileType, m.FileSize).
		Scan(&m.ID, &m.CreatedAt)
	if db.IsNoRows(err) {
		return ErrConversationClosed
	}
	return err
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, content, file_url, file_name, file_type, file_size, read_at, created_at
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
			ORDER BY created_at DESC
			LIMIT $3
		) page
		ORDER BY created_at ASC
	`, conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.FileURL, &m.FileName,
			&m.FileType, &m.FileSize, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		UPDATE messages SET read_at = NOW()
		WHERE conversation_id = $1 AND sender_id <> $2::uuid AND read_at IS NULL
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// SoftDelete appends the user to deleted_by in one statement, so two
// participants deleting at once both stick. Deleting twice is a no-op.
func (s *PostgresStore) SoftDelete(ctx context.Context, conversationID, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations
		SET deleted_by = array_append(deleted_by, $2::uuid)
		WHERE id = $1 AND NOT permanently_deleted
		  AND $2::uuid = ANY(participants)
		  AND NOT ($2::uuid = ANY(deleted_by))
	`, conversationID, userID)
	return err
}

func (s *PostgresStore) Restore(ctx context.Context, conversationID, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations
		SET deleted_by = array_remove(deleted_by, $2::uuid)
		WHERE id = $1 AND NOT permanently_deleted
	`, conversationID, userID)
	return err
}

func (s *PostgresStore) PermanentlyDelete(ctx context.Context, conversationID, adminID string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE conversations
		SET permanently_deleted = TRUE, permanently_deleted_at = NOW(), permanently_deleted_by = $2
		WHERE id = $1 AND NOT permanently_deleted
	`, conversationID, adminID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrConversationClosed
	}
	return nil
}

// PurgeBefore physically removes conversations permanently deleted before
// cutoff. Messages go with them through the foreign key cascade.
func (s *PostgresStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM conversations
		WHERE permanently_deleted AND permanently_deleted_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
