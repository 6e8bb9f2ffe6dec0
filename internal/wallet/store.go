package wallet

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
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInsufficientFunds   = errors.New("insufficient balance")
)

type Store interface {
	WithinTx(ctx context.Context, fn func(Store) error) error

	Wallet(ctx context.Context, userID string) (*Wallet, error)
	// AddBalance applies a signed delta. It fails with ErrInsufficientFunds
	// rather than letting the balance go below zero.
	AddBalance(ctx context.Context, userID string, delta int64) error
	// Hold moves amount from balance to held.
	Hold(ctx context.Context, userID string, amount int64) error
	// ReleaseHeld drops amount from held, returning it to balance when refund is set.
	ReleaseHeld(ctx context.Context, userID string, amount int64, refund bool) error

	CreateTransaction(ctx context.Context, t *Transaction) error
	LockTransaction(ctx context.Context, id string) (*Transaction, error)
	FinishTransaction(ctx context.Context, id, status, adminID, note string) (*Transaction, error)
	ListTransactions(ctx context.Context, f TxFilter) ([]Transaction, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
	q    db.DBTX
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStore{pool: s.pool, q: tx})
	})
}

func (s *PostgresStore) Wallet(ctx context.Context, userID string) (*Wallet, error) {
	var w Wallet
	err := s.q.QueryRow(ctx, `SELECT user_id, balance, held, updated_at FROM wallets WHERE user_id = $1`, userID).
		Scan(&w.UserID, &w.Balance, &w.Held, &w.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *PostgresStore) AddBalance(ctx context.Context, userID string, delta int64) error {
	ct, err := s.q.Exec(ctx, `
		UPDATE wallets SET balance = balance + $1, updated_at = NOW()
		WHERE user_id = $2 AND balance + $1 >= 0
	`, delta, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return s.missingOrShort(ctx, userID)
	}
	return nil
}

func (s *PostgresStore) Hold(ctx context.Context, userID string, amount int64) error {
	ct, err := s.q.Exec(ctx, `
		UPDATE wallets SET balance = balance - $1, held = held + $1, updated_at = NOW()
		WHERE user_id = $2 AND balance >= $1
	`, amount, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return s.missingOrShort(ctx, userID)
	}
	return nil
}

func (s *PostgresStore) ReleaseHeld(ctx context.Context, userID string, amount int64, refund bool) error {
	credit := int64(0)
	if refund {
		credit = amount
	}
	ct, err := s.q.Exec(ctx, `
		UPDATE wallets SET held = held - $1, balance = balance + $2, updated_at = NOW()
		WHERE user_id = $3 AND held >= $1
	`, amount, credit, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("release %d held for %s: %w", amount, userID, ErrInsufficientFunds)
	}
	return nil
}

func (s *PostgresStore) missingOrShort(ctx context.Context, userID string) error {
	if _, err := s.Wallet(ctx, userID); err != nil {
		return err
	}
	return ErrInsufficientFunds
}

const txColumns = `t.id, t.user_id, COALESCE(u.full_name, ''), t.amount, t.type, t.status, t.payment_method,
	t.proof_url, t.details, t.admin_note, t.reviewed_by, t.reviewed_at, t.created_at`

const txFrom = ` FROM transactions t LEFT JOIN users u ON u.id = t.user_id `

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.UserName, &t.Amount, &t.Type, &t.Status, &t.PaymentMethod,
		&t.ProofURL, &t.Details, &t.AdminNote, &t.ReviewedBy, &t.ReviewedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, t *Transaction) error {
	return s.q.QueryRow(ctx, `
		INSERT INTO transactions (user_id, amount, type, status, payment_method, proof_url, details, admin_note,
			reviewed_by, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::uuid, CASE WHEN $9::uuid IS NULL THEN NULL ELSE NOW() END)
		RETURNING id, reviewed_at, created_at
	`, t.UserID, t.Amount, t.Type, t.Status, t.PaymentMethod, t.ProofURL, t.Details, t.AdminNote, t.ReviewedBy).
		Scan(&t.ID, &t.ReviewedAt, &t.CreatedAt)
}

// LockTransaction reads the row FOR UPDATE; call it inside WithinTx.
func (s *PostgresStore) LockTransaction(ctx context.Context, id string) (*Transaction, error) {
	t, err := scanTransaction(s.q.QueryRow(ctx, `SELECT `+txColumns+txFrom+` WHERE t.id = $1 FOR UPDATE OF t`, id))
	if db.IsNoRows(err) {
		return nil, ErrTransactionNotFound
	}
	return t, err
}

func (s *PostgresStore) FinishTransaction(ctx context.Context, id, status, adminID, note string) (*Transaction, error) {
	_, err := s.q.Exec(ctx, `
		UPDATE transactions
		SET status = $1, reviewed_by = $2, reviewed_at = NOW(), admin_note = $3
		WHERE id = $4
	`, status, adminID, note, id)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(s.q.QueryRow(ctx, `SELECT `+txColumns+txFrom+` WHERE t.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrTransactionNotFound
	}
	return t, err
}

func (s *PostgresStore) ListTransactions(ctx context.Context, f TxFilter) ([]Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("t.user_id = $%d", f.UserID)
	}
	if f.Status != "" {
		add("t.status = $%d", f.Status)
	}
	if f.Type != "" {
		add("t.type = $%d", f.Type)
	}

	query := `SELECT ` + txColumns + txFrom
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
