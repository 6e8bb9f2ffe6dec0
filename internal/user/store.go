package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gruzztop/gruzztop/internal/db"
)

var ErrNotFound = errors.New("user not found")

type Store interface {
	PublicProfile(ctx context.Context, userID string) (*PublicProfile, error)
	UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) PublicProfile(ctx context.Context, userID string) (*PublicProfile, error) {
	var p PublicProfile
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.full_name, u.role, u.bio, u.avatar_url, u.city,
		       u.rating::float8, u.completed_orders, u.created_at,
		       (SELECT COUNT(*) FROM reviews r WHERE r.executor_id = u.id AND r.is_visible)
		FROM users u
		WHERE u.id = $1
	`, userID).Scan(
		&p.ID, &p.FullName, &p.Role, &p.Bio, &p.AvatarURL, &p.City,
		&p.Rating, &p.CompletedOrders, &p.CreatedAt, &p.ReviewCount,
	)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE users
		SET full_name  = COALESCE($1, full_name),
		    phone      = COALESCE($2, phone),
		    bio        = COALESCE($3, bio),
		    avatar_url = COALESCE($4, avatar_url),
		    city       = COALESCE($5, city),
		    updated_at = NOW()
		WHERE id = $6
	`, req.FullName, req.Phone, req.Bio, req.AvatarURL, req.City, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
