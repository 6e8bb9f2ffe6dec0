package marketplace

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
	ErrOrderNotFound     = errors.New("order not found")
	ErrBidNotFound       = errors.New("bid not found")
	ErrReviewNotFound    = errors.New("review not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateBid      = errors.New("bid already placed")
	ErrDuplicateReview   = errors.New("review already exists")
	ErrAlreadyAccepted   = errors.New("order already has an accepted bid")
	ErrInsufficientFunds = errors.New("insufficient balance")
)

type Store interface {
	// WithinTx runs fn against a Store bound to a single transaction.
	WithinTx(ctx context.Context, fn func(Store) error) error

	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	LockOrder(ctx context.Context, id string) (*Order, error)
	ListOpenOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]Order, error)
	UpdateOrder(ctx context.Context, id string, req UpdateOrderRequest) (*Order, error)
	SetOrderStatus(ctx context.Context, id, status string) error
	AssignExecutor(ctx context.Context, orderID, executorID string, price *int64) error
	IncrementCompletedOrders(ctx context.Context, userID string) error
	ChargeWallet(ctx context.Context, userID string, amount int64, details string) error

	CreateBid(ctx context.Context, b *Bid) error
	GetBid(ctx context.Context, id string) (*Bid, error)
	ListBids(ctx context.Context, orderID, executorID string) ([]Bid, error)
	SetBidStatus(ctx context.Context, id, status string) error
	RejectPendingBids(ctx context.Context, orderID, exceptBidID string) ([]Bid, error)

	CreateReview(ctx context.Context, r *Review) error
	GetReview(ctx context.Context, id string) (*Review, error)
	ReviewByOrder(ctx context.Context, orderID string) (*Review, error)
	ListExecutorReviews(ctx context.Context, executorID string, limit, offset int) ([]Review, error)
	ExecutorSummary(ctx context.Context, executorID string) (*RatingSummary, error)
	ListReviewsForModeration(ctx context.Context, moderated *bool, limit, offset int) ([]Review, error)
	ModerateReview(ctx context.Context, id, adminID string, req ModerateReviewRequest) (*Review, error)
	VisibleRatings(ctx context.Context, executorID string) ([]RatingInput, error)
	SetUserRating(ctx context.Context, userID string, rating float64) error
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

// ===== Orders =====

const orderColumns = `o.id, o.client_id, o.executor_id, o.category_id, o.title, o.description, o.address,
	o.price, o.priority, o.status, o.deadline, o.created_at, o.updated_at, o.completed_at`

const bidCountColumn = `(SELECT COUNT(*) FROM order_bids b WHERE b.order_id = o.id AND b.status <> 'withdrawn')`

func scanOrder(row pgx.Row, withBidCount bool) (*Order, error) {
	var o Order
	dest := []any{
		&o.ID, &o.ClientID, &o.ExecutorID, &o.CategoryID, &o.Title, &o.Description, &o.Address,
		&o.Price, &o.Priority, &o.Status, &o.Deadline, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt,
	}
	if withBidCount {
		dest = append(dest, &o.BidCount)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows, true)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateOrder(ctx context.Context, o *Order) error {
	return s.q.QueryRow(ctx, `
		INSERT INTO orders (client_id, category_id, title, description, address, price, priority, deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, status, created_at, updated_at
	`, o.ClientID, o.CategoryID, o.Title, o.Description, o.Address, o.Price, o.Priority, o.Deadline).
		Scan(&o.ID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(s.q.QueryRow(ctx, `SELECT `+orderColumns+`, `+bidCountColumn+` FROM orders o WHERE o.id = $1`, id), true)
	if db.IsNoRows(err) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (s *PostgresStore) LockOrder(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(s.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, id), false)
	if db.IsNoRows(err) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// ListOpenOrders returns open orders, urgent first, then high, then newest.
func (s *PostgresStore) ListOpenOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	where := []string{"o.status = 'open'"}
	var args []any
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		where = append(where, fmt.Sprintf("o.category_id = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		where = append(where, fmt.Sprintf("o.priority = $%d", len(args)))
	}
	args = append(args, f.Limit, f.Offset)

	query := `SELECT ` + orderColumns + `, ` + bidCountColumn + `
		FROM orders o
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY CASE o.priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 ELSE 2 END, o.created_at DESC
		` + fmt.Sprintf("LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (s *PostgresStore) ListUserOrders(ctx context.Context, userID string) ([]Order, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+orderColumns+`, `+bidCountColumn+`
		FROM orders o
		WHERE o.client_id = $1 OR o.executor_id = $1
		ORDER BY o.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (s *PostgresStore) UpdateOrder(ctx context.Context, id string, req UpdateOrderRequest) (*Order, error) {
	o, err := scanOrder(s.q.QueryRow(ctx, `
		UPDATE orders o
		SET title       = COALESCE($1, o.title),
		    description = COALESCE($2, o.description),
		    address     = COALESCE($3, o.address),
		    price       = COALESCE($4, o.price),
		    deadline    = COALESCE($5, o.deadline),
		    updated_at  = NOW()
		WHERE o.id = $6
		RETURNING `+orderColumns+`, `+bidCountColumn,
		req.Title, req.Description, req.Address, req.Price, req.Deadline, id), true)
	if db.IsNoRows(err) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (s *PostgresStore) SetOrderStatus(ctx context.Context, id, status string) error {
	ct, err := s.q.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *PostgresStore) AssignExecutor(ctx context.Context, orderID, executorID string, price *int64) error {
	ct, err := s.q.Exec(ctx, `
		UPDATE orders
		SET executor_id = $1, status = 'in_progress', price = COALESCE($2, price), updated_at = NOW()
		WHERE id = $3
	`, executorID, price, orderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *PostgresStore) IncrementCompletedOrders(ctx context.Context, userID string) error {
	_, err := s.q.Exec(ctx, `UPDATE users SET completed_orders = completed_orders + 1, updated_at = NOW() WHERE id = $1`, userID)
	return err
}

// ChargeWallet debits the wallet and records a completed payment.
func (s *PostgresStore) ChargeWallet(ctx context.Context, userID string, amount int64, details string) error {
	ct, err := s.q.Exec(ctx, `
		UPDATE wallets SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2 AND balance >= $1
	`, amount, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO transactions (user_id, amount, type, status, details)
		VALUES ($1, $2, 'payment', 'completed', $3)
	`, userID, amount, details)
	return err
}

// ===== Bids =====

const bidColumns = `b.id, b.order_id, b.executor_id, COALESCE(u.full_name, ''), b.message, b.proposed_price, b.status, b.created_at, b.updated_at`

func scanBid(row pgx.Row) (*Bid, error) {
	var b Bid
	if err := row.Scan(&b.ID, &b.OrderID, &b.ExecutorID, &b.ExecutorName, &b.Message, &b.ProposedPrice, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) CreateBid(ctx context.Context, b *Bid) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO order_bids (order_id, executor_id, message, proposed_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, status, created_at, updated_at
	`, b.OrderID, b.ExecutorID, b.Message, b.ProposedPrice).Scan(&b.ID, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateBid
	}
	return err
}

func (s *PostgresStore) GetBid(ctx context.Context, id string) (*Bid, error) {
	b, err := scanBid(s.q.QueryRow(ctx, `
		SELECT `+bidColumns+`
		FROM order_bids b LEFT JOIN users u ON u.id = b.executor_id
		WHERE b.id = $1
	`, id))
	if db.IsNoRows(err) {
		return nil, ErrBidNotFound
	}
	return b, err
}

// ListBids returns the order's bids; a non-empty executorID narrows them to
// that executor's own.
func (s *PostgresStore) ListBids(ctx context.Context, orderID, executorID string) ([]Bid, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+bidColumns+`
		FROM order_bids b LEFT JOIN users u ON u.id = b.executor_id
		WHERE b.order_id = $1 AND ($2 = '' OR b.executor_id::text = $2)
		ORDER BY b.created_at
	`, orderID, executorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetBidStatus(ctx context.Context, id, status string) error {
	ct, err := s.q.Exec(ctx, `UPDATE order_bids SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if db.IsUniqueViolation(err) {
		return ErrAlreadyAccepted
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrBidNotFound
	}
	return nil
}

func (s *PostgresStore) RejectPendingBids(ctx context.Context, orderID, exceptBidID string) ([]Bid, error) {
	rows, err := s.q.Query(ctx, `
		UPDATE order_bids b
		SET status = 'rejected', updated_at = NOW()
		WHERE b.order_id = $1 AND b.status = 'pending' AND ($2 = '' OR b.id::text <> $2)
		RETURNING b.id, b.order_id, b.executor_id, b.message, b.proposed_price, b.status, b.created_at, b.updated_at
	`, orderID, exceptBidID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bid
	for rows.Next() {
		var b Bid
		if err := rows.Scan(&b.ID, &b.OrderID, &b.ExecutorID, &b.Message, &b.ProposedPrice, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ===== Reviews =====

const reviewColumns = `r.id, r.order_id, r.reviewer_id, COALESCE(u.full_name, ''), r.executor_id, r.rating, r.comment,
	r.admin_bonus_points, r.is_visible, r.is_moderated, r.moderation_note, r.moderated_by, r.moderated_at,
	r.created_at, r.updated_at`

const reviewFrom = ` FROM reviews r LEFT JOIN users u ON u.id = r.reviewer_id `

func scanReview(row pgx.Row) (*Review, error) {
	var r Review
	err := row.Scan(&r.ID, &r.OrderID, &r.ReviewerID, &r.ReviewerName, &r.ExecutorID, &r.Rating, &r.Comment,
		&r.AdminBonusPoints, &r.IsVisible, &r.IsModerated, &r.ModerationNote, &r.ModeratedBy, &r.ModeratedAt,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectReviews(rows pgx.Rows) ([]Review, error) {
	defer rows.Close()
	var out []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateReview(ctx context.Context, r *Review) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO reviews (order_id, reviewer_id, executor_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_visible, is_moderated, created_at, updated_at
	`, r.OrderID, r.ReviewerID, r.ExecutorID, r.Rating, r.Comment).
		Scan(&r.ID, &r.IsVisible, &r.IsModerated, &r.CreatedAt, &r.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateReview
	}
	return err
}

func (s *PostgresStore) GetReview(ctx context.Context, id string) (*Review, error) {
	r, err := scanReview(s.q.QueryRow(ctx, `SELECT `+reviewColumns+reviewFrom+`WHERE r.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrReviewNotFound
	}
	return r, err
}

func (s *PostgresStore) ReviewByOrder(ctx context.Context, orderID string) (*Review, error) {
	r, err := scanReview(s.q.QueryRow(ctx, `SELECT `+reviewColumns+reviewFrom+`WHERE r.order_id = $1`, orderID))
	if db.IsNoRows(err) {
		return nil, ErrReviewNotFound
	}
	return r, err
}

func (s *PostgresStore) ListExecutorReviews(ctx context.Context, executorID string, limit, offset int) ([]Review, error) {
	rows, err := s.q.Query(ctx, `SELECT `+reviewColumns+reviewFrom+`
		WHERE r.executor_id = $1 AND r.is_visible
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3`, executorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectReviews(rows)
}

func (s *PostgresStore) ExecutorSummary(ctx context.Context, executorID string) (*RatingSummary, error) {
	summary := &RatingSummary{ExecutorID: executorID}
	err := s.q.QueryRow(ctx, `SELECT full_name, rating::float8 FROM users WHERE id = $1`, executorID).
		Scan(&summary.ExecutorName, &summary.Rating)
	if db.IsNoRows(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.q.Query(ctx, `
		SELECT rating, COUNT(*) FROM reviews
		WHERE executor_id = $1 AND is_visible
		GROUP BY rating
	`, executorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stars int
	for rows.Next() {
		var rating, count int
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, err
		}
		summary.AddStars(rating, count)
		summary.TotalReviews += count
		stars += rating * count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if summary.TotalReviews > 0 {
		summary.AverageStars = float64(stars) / float64(summary.TotalReviews)
	}
	return summary, nil
}

func (s *PostgresStore) ListReviewsForModeration(ctx context.Context, moderated *bool, limit, offset int) ([]Review, error) {
	rows, err := s.q.Query(ctx, `SELECT `+reviewColumns+reviewFrom+`
		WHERE ($1::boolean IS NULL OR r.is_moderated = $1)
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3`, moderated, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectReviews(rows)
}

func (s *PostgresStore) ModerateReview(ctx context.Context, id, adminID string, req ModerateReviewRequest) (*Review, error) {
	ct, err := s.q.Exec(ctx, `
		UPDATE reviews
		SET is_visible = COALESCE($1, is_visible),
		    admin_bonus_points = COALESCE($2, admin_bonus_points),
		    moderation_note = $3,
		    is_moderated = TRUE,
		    moderated_by = $4,
		    moderated_at = NOW(),
		    updated_at = NOW()
		WHERE id = $5
	`, req.IsVisible, req.AdminBonusPoints, req.Note, adminID, id)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrReviewNotFound
	}
	return s.GetReview(ctx, id)
}

func (s *PostgresStore) VisibleRatings(ctx context.Context, executorID string) ([]RatingInput, error) {
	rows, err := s.q.Query(ctx, `SELECT rating, admin_bonus_points FROM reviews WHERE executor_id = $1 AND is_visible`, executorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RatingInput
	for rows.Next() {
		var in RatingInput
		if err := rows.Scan(&in.Stars, &in.BonusPoints); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetUserRating(ctx context.Context, userID string, rating float64) error {
	_, err := s.q.Exec(ctx, `UPDATE users SET rating = $1, updated_at = NOW() WHERE id = $2`, rating, userID)
	return err
}
