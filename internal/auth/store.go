package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gruzztop/gruzztop/internal/db"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already exists")
)

type Store interface {
	CreateUser(ctx context.Context, u *User) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	Me(ctx context.Context, userID string) (*Me, error)
	PromoteToAdmin(ctx context.Context, email string) error
	PasswordHash(ctx context.Context, userID string) (string, error)
	SetPasswordHash(ctx context.Context, userID, hash string) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// CreateUser inserts the user and their empty wallet together.
func (s *PostgresStore) CreateUser(ctx context.Context, u *User) (*User, error) {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (full_name, email, phone, password, role)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, is_active, created_at
		`, u.FullName, strings.ToLower(u.Email), u.Phone, u.PasswordHash, u.Role).
			Scan(&u.ID, &u.IsActive, &u.CreatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}

		_, err = tx.Exec(ctx, `INSERT INTO wallets (user_id) VALUES ($1)`, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, full_name, email, phone, role, is_active, password, rating::float8, completed_orders, created_at
		FROM users WHERE email = $1
	`, strings.ToLower(email)).Scan(
		&u.ID, &u.FullName, &u.Email, &u.Phone, &u.Role, &u.IsActive,
		&u.PasswordHash, &u.Rating, &u.CompletedOrders, &u.CreatedAt,
	)
	if db.IsNoRows(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) Me(ctx context.Context, userID string) (*Me, error) {
	var m Me
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.full_name, u.email, u.phone, u.role, u.is_active, u.rating::float8,
		       u.completed_orders, u.created_at, u.bio, u.avatar_url, u.city,
		       COALESCE(w.balance, 0), COALESCE(w.held, 0)
		FROM users u
		LEFT JOIN wallets w ON w.user_id = u.id
		WHERE u.id = $1
	`, userID).Scan(
		&m.ID, &m.FullName, &m.Email, &m.Phone, &m.Role, &m.IsActive, &m.Rating,
		&m.CompletedOrders, &m.CreatedAt, &m.Bio, &m.AvatarURL, &m.City,
		&m.Balance, &m.Held,
	)
	if db.IsNoRows(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) PromoteToAdmin(ctx context.Context, email string) error {
	ct, err := s.pool.Exec(ctx, `UPDATE users SET role = 'admin', updated_at = NOW() WHERE email = $1`, strings.ToLower(email))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) PasswordHash(ctx context.Context, userID string) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx, `SELECT password FROM users WHERE id = $1`, userID).Scan(&hash)
	if db.IsNoRows(err) {
		return "", ErrUserNotFound
	}
	return hash, err
}

func (s *PostgresStore) SetPasswordHash(ctx context.Context, userID, hash string) error {
	ct, err := s.pool.Exec(ctx, `UPDATE users SET password = $1, updated_at = NOW() WHERE id = $2`, hash, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
