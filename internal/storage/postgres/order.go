package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/canteenhq/canteen/internal/domain/order"
	"github.com/canteenhq/canteen/internal/domain/pricing"
)

const (
	createOrderSQL = `INSERT INTO orders (id, member_id, lines, subtotal, green_token,
			attendance_discount, discount_percent, total, status, payment_method,
			instructions, contact, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	orderColumns = `id, member_id, lines, subtotal, green_token, attendance_discount,
		discount_percent, total, status, payment_method, instructions, contact,
		suggestion, feedback_submitted, created_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByMemberSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE member_id = $1 ORDER BY created_at DESC`

	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	// The WHERE status clause makes the update a compare-and-swap: only one
	// of two racing transitions can match the old status.
	updateOrderStatusSQL = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`

	setOrderSuggestionSQL = `UPDATE orders SET suggestion = $2 WHERE id = $1`

	markOrderFeedbackSQL = `UPDATE orders SET feedback_submitted = TRUE WHERE id = $1`
)

// orderLineJSON is the stored shape of one order line in the JSONB column.
type orderLineJSON struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Lines are serialized to JSON for storage in
// the JSONB column; the quote is denormalized into NUMERIC columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	linesJSON, err := marshalLines(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.MemberID, linesJSON,
		o.Quote.Subtotal, o.Quote.GreenToken, o.Quote.AttendanceDiscount,
		o.Quote.DiscountPercent, o.Quote.Total,
		string(o.Status), string(o.PaymentMethod),
		o.Instructions, o.Contact, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByMember returns the member's orders, newest first.
func (r *OrderRepository) ListByMember(ctx context.Context, memberID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByMemberSQL, memberID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for member %q: %w", memberID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listAllOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing all orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus performs a compare-and-swap on the status column and reports
// whether the swap happened.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("updating status of order %q: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetSuggestion stores the pairing suggestion text on the order.
func (r *OrderRepository) SetSuggestion(ctx context.Context, id, text string) error {
	_, err := r.pool.Exec(ctx, setOrderSuggestionSQL, id, text)
	if err != nil {
		return fmt.Errorf("setting suggestion on order %q: %w", id, err)
	}
	return nil
}

// MarkFeedbackSubmitted flips the one-time feedback flag.
func (r *OrderRepository) MarkFeedbackSubmitted(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, markOrderFeedbackSQL, id)
	if err != nil {
		return fmt.Errorf("marking feedback on order %q: %w", id, err)
	}
	return nil
}

func marshalLines(lines []pricing.Line) ([]byte, error) {
	stored := make([]orderLineJSON, len(lines))
	for i, l := range lines {
		stored[i] = orderLineJSON{
			ItemID:    l.ItemID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		}
	}
	return json.Marshal(stored)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		linesJSON []byte
		status    string
		method    string
	)
	err := row.Scan(
		&o.ID, &o.MemberID, &linesJSON,
		&o.Quote.Subtotal, &o.Quote.GreenToken, &o.Quote.AttendanceDiscount,
		&o.Quote.DiscountPercent, &o.Quote.Total,
		&status, &method, &o.Instructions, &o.Contact,
		&o.Suggestion, &o.FeedbackSubmitted, &o.CreatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}
	o.Status = order.Status(status)
	o.PaymentMethod = order.PaymentMethod(method)

	var stored []orderLineJSON
	if err := json.Unmarshal(linesJSON, &stored); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order lines: %w", err)
	}
	o.Lines = make([]pricing.Line, len(stored))
	for i, l := range stored {
		o.Lines[i] = pricing.Line{
			ItemID:    l.ItemID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		}
	}
	return o, nil
}
