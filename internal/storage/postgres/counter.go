package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canteenhq/canteen/internal/domain/order"
)

const (
	incrementCounterSQL = `INSERT INTO order_counters (member_id, month, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (member_id, month)
		DO UPDATE SET count = order_counters.count + 1
		RETURNING count`

	decrementCounterSQL = `UPDATE order_counters
		SET count = GREATEST(count - 1, 0)
		WHERE member_id = $1 AND month = $2
		RETURNING count`

	getCounterSQL = `SELECT count FROM order_counters
		WHERE member_id = $1 AND month = $2`
)

var _ order.CounterRepository = (*CounterRepository)(nil)

// CounterRepository tracks per-member monthly order counts in PostgreSQL.
// The upsert keeps increments atomic under concurrent placements.
type CounterRepository struct {
	pool *pgxpool.Pool
}

// NewCounterRepository returns a CounterRepository that uses the given pool.
func NewCounterRepository(pool *pgxpool.Pool) *CounterRepository {
	return &CounterRepository{pool: pool}
}

// Increment adds one to the member's count for the month and returns the new
// value, creating the row on first use.
func (r *CounterRepository) Increment(ctx context.Context, memberID, month string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, incrementCounterSQL, memberID, month).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("incrementing counter %q/%q: %w", memberID, month, err)
	}
	return count, nil
}

// Decrement subtracts one, floored at zero. A missing row counts as zero.
func (r *CounterRepository) Decrement(ctx context.Context, memberID, month string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, decrementCounterSQL, memberID, month).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("decrementing counter %q/%q: %w", memberID, month, err)
	}
	return count, nil
}

// Get returns the member's count for the month; zero if never incremented.
func (r *CounterRepository) Get(ctx context.Context, memberID, month string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, getCounterSQL, memberID, month).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting counter %q/%q: %w", memberID, month, err)
	}
	return count, nil
}
