package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gruzztop/gruzztop/internal/db"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrBroadcastNotFound = errors.New("broadcast not found")
)

type Store interface {
	Stats(ctx context.Context) (*Stats, error)

	User(ctx context.Context, id string) (*AdminUser, error)
	ListUsers(ctx context.Context, f UserFilter) ([]AdminUser, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetRole(ctx context.Context, id, role string) error
	Account(ctx context.Context, id string) (active bool, role string, err error)

	ListOrders(ctx context.Context, status string, limit, offset int) ([]AdminOrder, error)
	ListWallets(ctx context.Context, limit, offset int) ([]AdminWallet, error)

	CreateBroadcast(ctx context.Context, b *Broadcast) error
	ListBroadcasts(ctx context.Context, limit, offset int) ([]Broadcast, error)
	Recipients(ctx context.Context, role string) ([]string, error)
	FinishBroadcast(ctx context.Context, id, status string, recipients int) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) countBy(ctx context.Context, sql string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	var err error

	if st.UsersByRole, err = s.countBy(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`); err != nil {
		return nil, fmt.Errorf("users by role: %w", err)
	}
	if st.OrdersByStatus, err = s.countBy(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`); err != nil {
		return nil, fmt.Errorf("orders by status: %w", err)
	}
	err = s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE NOT is_active),
			(SELECT COUNT(*) FROM transactions WHERE status = 'pending'),
			(SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE status = 'pending' AND type = 'deposit'),
			(SELECT COALESCE(SUM(balance), 0) FROM wallets),
			(SELECT COALESCE(SUM(held), 0) FROM wallets),
			(SELECT COUNT(*) FROM support_tickets WHERE status = 'open'),
			(SELECT COUNT(*) FROM conversations WHERE NOT permanently_deleted)
	`).Scan(
		&st.BannedUsers, &st.PendingTransactions, &st.PendingDepositAmount,
		&st.CoinsInCirculation, &st.CoinsHeld, &st.OpenTickets, &st.ActiveConversations,
	)
	if err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}
	return &st, nil
}

const userColumns = `u.id, u.full_name, u.email, u.phone, u.role, u.is_active, u.rating::float8,
	u.completed_orders, COALESCE(w.balance, 0), u.created_at`

func scanUser(row pgx.Row) (*AdminUser, error) {
	var u AdminUser
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.Role, &u.IsActive, &u.Rating,
		&u.CompletedOrders, &u.Balance, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) User(ctx context.Context, id string) (*AdminUser, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u LEFT JOIN wallets w ON w.user_id = u.id
		WHERE u.id = $1
	`, id))
	if db.IsNoRows(err) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s *PostgresStore) ListUsers(ctx context.Context, f UserFilter) ([]AdminUser, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Role != "" {
		add("u.role = $%d", f.Role)
	}
	if f.Query != "" {
		add("(u.full_name ILIKE $%[1]d OR u.email ILIKE $%[1]d OR u.phone ILIKE $%[1]d)", "%"+f.Query+"%")
	}
	if f.Active != nil {
		add("u.is_active = $%d", *f.Active)
	}

	sql := `SELECT ` + userColumns + ` FROM users u LEFT JOIN wallets w ON w.user_id = u.id`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	sql += fmt.Sprintf(" ORDER BY u.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) exec(ctx context.Context, sql string, args ...any) error {
	ct, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

func (s *PostgresStore) SetRole(ctx context.Context, id, role string) error {
	return s.exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
}

// Account reports a deleted user as inactive.
func (s *PostgresStore) Account(ctx context.Context, id string) (bool, string, error) {
	var (
		active bool
		role   string
	)
	err := s.pool.QueryRow(ctx, `SELECT is_active, role FROM users WHERE id = $1`, id).Scan(&active, &role)
	if db.IsNoRows(err) {
		return false, "", nil
	}
	return active, role, err
}

func (s *PostgresStore) ListOrders(ctx context.Context, status string, limit, offset int) ([]AdminOrder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.title, o.client_id, c.full_name, o.executor_id, e.full_name,
		       o.price, o.priority, o.status,
		       (SELECT COUNT(*) FROM order_bids b WHERE b.order_id = o.id),
		       o.created_at, o.updated_at
		FROM orders o
		JOIN users c ON c.id = o.client_id
		LEFT JOIN users e ON e.id = o.executor_id
		WHERE $1 = '' OR o.status = $1
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminOrder
	for rows.Next() {
		var o AdminOrder
		if err := rows.Scan(&o.ID, &o.Title, &o.ClientID, &o.ClientName, &o.ExecutorID, &o.ExecutorName,
			&o.Price, &o.Priority, &o.Status, &o.BidCount, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListWallets(ctx context.Context, limit, offset int) ([]AdminWallet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT w.user_id, u.full_name, u.email, w.balance, w.held, w.updated_at
		FROM wallets w JOIN users u ON u.id = w.user_id
		ORDER BY w.balance + w.held DESC, w.user_id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminWallet
	for rows.Next() {
		var w AdminWallet
		if err := rows.Scan(&w.UserID, &w.FullName, &w.Email, &w.Balance, &w.Held, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateBroadcast(ctx context.Context, b *Broadcast) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO broadcasts (admin_id, content, target_role)
		VALUES ($1, $2, $3)
		RETURNING id, status, created_at
	`, b.AdminID, b.Content, b.TargetRole).Scan(&b.ID, &b.Status, &b.CreatedAt)
}

func (s *PostgresStore) ListBroadcasts(ctx context.Context, limit, offset int) ([]Broadcast, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, admin_id, content, target_role, recipients, status, created_at, sent_at
		FROM broadcasts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Broadcast
	for rows.Next() {
		var b Broadcast
		if err := rows.Scan(&b.ID, &b.AdminID, &b.Content, &b.TargetRole, &b.Recipients, &b.Status, &b.CreatedAt, &b.SentAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Recipients lists active users of role, or every active non-admin when
// role is empty.
func (s *PostgresStore) Recipients(ctx context.Context, role string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM users
		WHERE is_active AND role <> 'admin' AND ($1 = '' OR role = $1)
		ORDER BY created_at
	`, role)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *PostgresStore) FinishBroadcast(ctx context.Context, id, status string, recipients int) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE broadcasts
		SET status = $2, recipients = $3, sent_at = CASE WHEN $2 = 'sent' THEN NOW() ELSE sent_at END
		WHERE id = $1
	`, id, status, recipients)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrBroadcastNotFound
	}
	return nil
}
