package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gruzztop/gruzztop/internal/db"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const categoryColumns = `id, name, slug, description, icon, sort_order, is_active, created_at`

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Icon, &c.SortOrder, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE is_active
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, req CreateRequest) (*Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx, `
		INSERT INTO categories (name, slug, description, icon, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+categoryColumns,
		req.Name, req.Slug, req.Description, req.Icon, req.SortOrder))
	if db.IsUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	return c, err
}

func (s *PostgresStore) Update(ctx context.Context, id string, req UpdateRequest) (*Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx, `
		UPDATE categories
		SET name        = COALESCE($1, name),
		    slug        = COALESCE($2, slug),
		    description = COALESCE($3, description),
		    icon        = COALESCE($4, icon),
		    sort_order  = COALESCE($5, sort_order),
		    is_active   = COALESCE($6, is_active)
		WHERE id = $7
		RETURNING `+categoryColumns,
		req.Name, req.Slug, req.Description, req.Icon, req.SortOrder, req.IsActive, id))
	switch {
	case db.IsNoRows(err):
		return nil, ErrNotFound
	case db.IsUniqueViolation(err):
		return nil, ErrDuplicate
	}
	return c, err
}

// Delete removes the category; orders filed under it keep a NULL category.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
