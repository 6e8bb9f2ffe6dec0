package support

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gruzztop/gruzztop/internal/db"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketClosed   = errors.New("ticket closed")
)

type Store interface {
	Create(ctx context.Context, t *Ticket) error
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]Ticket, error)
	List(ctx context.Context, status string, limit, offset int) ([]Ticket, error)
	// Reply stores the admin reply and the new status. Closed tickets
	// cannot be replied to.
	Reply(ctx context.Context, id, reply, status string) (*Ticket, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const ticketColumns = `t.id, t.user_id, u.full_name, t.subject, t.message, t.status, t.admin_reply, t.created_at, t.updated_at`

func scanTicket(row pgx.Row) (*Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.UserID, &t.UserName, &t.Subject, &t.Message, &t.Status, &t.AdminReply, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) Create(ctx context.Context, t *Ticket) error {
	created, err := scanTicket(s.pool.QueryRow(ctx, `
		WITH t AS (
			INSERT INTO support_tickets (user_id, subject, message)
			VALUES ($1, $2, $3)
			RETURNING *
		)
		SELECT `+ticketColumns+` FROM t JOIN users u ON u.id = t.user_id
	`, t.UserID, t.Subject, t.Message))
	if err != nil {
		return err
	}
	*t = *created
	return nil
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]Ticket, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListForUser(ctx context.Context, userID string, limit, offset int) ([]Ticket, error) {
	return s.query(ctx, `
		SELECT `+ticketColumns+`
		FROM support_tickets t JOIN users u ON u.id = t.user_id
		WHERE t.user_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
}

func (s *PostgresStore) List(ctx context.Context, status string, limit, offset int) ([]Ticket, error) {
	return s.query(ctx, `
		SELECT `+ticketColumns+`
		FROM support_tickets t JOIN users u ON u.id = t.user_id
		WHERE $1 = '' OR t.status = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
}

func (s *PostgresStore) Reply(ctx context.Context, id, reply, status string) (*Ticket, error) {
	t, err := scanTicket(s.pool.QueryRow(ctx, `
		WITH t AS (
			UPDATE support_tickets
			SET admin_reply = $2, status = $3, updated_at = NOW()
			WHERE id = $1 AND status <> 'closed'
			RETURNING *
		)
		SELECT `+ticketColumns+` FROM t JOIN users u ON u.id = t.user_id
	`, id, reply, status))
	if db.IsNoRows(err) {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM support_tickets WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrTicketClosed
		}
		return nil, ErrTicketNotFound
	}
	return t, err
}
