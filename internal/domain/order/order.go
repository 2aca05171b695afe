package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/canteenhq/canteen/internal/domain/pricing"
)

// Status is the kitchen workflow state of an order.
type Status string

const (
	StatusPlaced    Status = "placed"
	StatusCooking   Status = "cooking"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// transitions is the closed edge set of the order state machine. Any edge
// not listed here is invalid.
var transitions = map[Status][]Status{
	StatusPlaced:  {StatusCooking, StatusCancelled},
	StatusCooking: {StatusReady},
	StatusReady:   {StatusDelivered},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlaced, StatusCooking, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions exist from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError signals an attempted edge outside the state
// machine. The order is left unchanged.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// PaymentMethod selects how an order is settled.
type PaymentMethod string

const (
	PayCash   PaymentMethod = "cash"
	PayCredit PaymentMethod = "credit"
)

// Sentinel errors for order operations.
var (
	ErrNotFound             = errors.New("order not found")
	ErrEmptyLines           = errors.New("order lines required")
	ErrOrderingBlocked      = errors.New("ordering is blocked for this member")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrFeedbackExists       = errors.New("feedback already submitted")
	ErrNotDelivered         = errors.New("feedback requires a delivered order")
)

// InvalidQuantityError indicates a cart line with a non-positive quantity.
type InvalidQuantityError struct {
	ItemID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for item %s", e.ItemID)
}

// ItemNotFoundError indicates a requested menu item does not exist.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("menu item %s not found", e.ItemID)
}

// InvalidRatingError indicates a feedback rating outside 1-5.
type InvalidRatingError struct {
	Rating int
}

func (e *InvalidRatingError) Error() string {
	return fmt.Sprintf("rating must be between 1 and 5, got %d", e.Rating)
}

// CartLine is a member's cart entry: an item reference plus quantity.
type CartLine struct {
	ItemID   string
	Quantity int
}

// Order is a placed order with its quantity-frozen lines and the quote
// captured at creation time. Orders are never deleted; they only reach a
// terminal status.
type Order struct {
	ID            string
	MemberID      string
	Lines         []pricing.Line
	Quote         pricing.Quote
	Status        Status
	PaymentMethod PaymentMethod
	Instructions  string
	Contact       string
	// Suggestion is the pairing text attached asynchronously after
	// placement; empty until (and unless) it arrives.
	Suggestion        string
	FeedbackSubmitted bool
	CreatedAt         time.Time
}

// Feedback is a member's one-time rating of a delivered order.
type Feedback struct {
	OrderID   string
	MemberID  string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByMember(ctx context.Context, memberID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	// UpdateStatus performs a compare-and-swap on the status column and
	// reports whether the swap happened. A false result means another
	// transition won the race; the caller must reload and fail with
	// InvalidTransitionError.
	UpdateStatus(ctx context.Context, id string, from, to Status) (bool, error)
	SetSuggestion(ctx context.Context, id, text string) error
	MarkFeedbackSubmitted(ctx context.Context, id string) error
}

// CounterRepository tracks the month-scoped count of non-cancelled orders
// per member, keyed by a "YYYY-MM" month string. Used only to gate credit
// eligibility.
type CounterRepository interface {
	Increment(ctx context.Context, memberID, month string) (int, error)
	Decrement(ctx context.Context, memberID, month string) (int, error)
	Get(ctx context.Context, memberID, month string) (int, error)
}

// FeedbackRepository persists order feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, fb *Feedback) error
}

// MonthKey formats t as the counter month key.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
