package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canteenhq/canteen/internal/domain/order"
)

const createFeedbackSQL = `INSERT INTO feedback (order_id, member_id, rating, comment, created_at)
	VALUES ($1, $2, $3, $4, $5)`

var _ order.FeedbackRepository = (*FeedbackRepository)(nil)

// FeedbackRepository implements order.FeedbackRepository backed by
// PostgreSQL. The order_id primary key enforces the one-rating rule at the
// storage level too.
type FeedbackRepository struct {
	pool *pgxpool.Pool
}

// NewFeedbackRepository returns a FeedbackRepository that uses the given pool.
func NewFeedbackRepository(pool *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{pool: pool}
}

// Create persists one feedback entry.
func (r *FeedbackRepository) Create(ctx context.Context, fb *order.Feedback) error {
	_, err := r.pool.Exec(ctx, createFeedbackSQL,
		fb.OrderID, fb.MemberID, fb.Rating, fb.Comment, fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating feedback for order %q: %w", fb.OrderID, err)
	}
	return nil
}
