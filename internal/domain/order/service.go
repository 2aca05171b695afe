package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/canteenhq/canteen/internal/domain/menu"
	"github.com/canteenhq/canteen/internal/domain/notify"
	"github.com/canteenhq/canteen/internal/domain/pricing"
	"github.com/canteenhq/canteen/internal/domain/suggest"
)

// CreditLedger is the slice of the credit ledger the order book needs.
type CreditLedger interface {
	IsBlocked(ctx context.Context, memberID string) (bool, error)
	Charge(ctx context.Context, memberID string, amount decimal.Decimal, orderID string) error
	Refund(ctx context.Context, memberID string, amount decimal.Decimal, orderID string) error
	Evaluate(ctx context.Context, memberID string, monthlyOrders int) (bool, error)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	MemberID      string
	Lines         []CartLine
	PaymentMethod PaymentMethod
	GreenToken    bool
	Attendance    *decimal.Decimal
	Instructions  string
	Contact       string
}

// Service is the order book: it owns a member's order collection, mediates
// between pricing and the credit ledger, and drives lifecycle transitions.
type Service struct {
	menu      menu.Repository
	pricer    *pricing.Engine
	ledger    CreditLedger
	orders    Repository
	counters  CounterRepository
	feedback  FeedbackRepository
	notifier  notify.Notifier
	suggester suggest.Suggester
	now       func() time.Time
	// spawn runs the asynchronous suggestion attach. Replaced with a
	// synchronous runner in tests.
	spawn func(func())
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	menuRepo menu.Repository,
	pricer *pricing.Engine,
	ledger CreditLedger,
	orders Repository,
	counters CounterRepository,
	feedback FeedbackRepository,
	notifier notify.Notifier,
	suggester suggest.Suggester,
) *Service {
	return &Service{
		menu:      menuRepo,
		pricer:    pricer,
		ledger:    ledger,
		orders:    orders,
		counters:  counters,
		feedback:  feedback,
		notifier:  notifier,
		suggester: suggester,
		now:       time.Now,
		spawn:     func(f func()) { go f() },
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PriceCart resolves the cart against the menu and prices it. Used both for
// quote previews and during placement.
func (s *Service) PriceCart(ctx context.Context, lines []CartLine, in pricing.Input) (pricing.Quote, []pricing.Line, error) {
	if len(lines) == 0 {
		return pricing.Quote{}, nil, ErrEmptyLines
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		if l.Quantity <= 0 {
			return pricing.Quote{}, nil, &InvalidQuantityError{ItemID: l.ItemID}
		}
		ids[i] = l.ItemID
	}

	fetched, err := s.menu.GetByIDs(ctx, ids)
	if err != nil {
		return pricing.Quote{}, nil, errors.Wrap(err, "get menu items")
	}
	byID := make(map[string]menu.Item, len(fetched))
	for _, it := range fetched {
		byID[it.ID] = it
	}

	priced := make([]pricing.Line, len(lines))
	for i, l := range lines {
		it, ok := byID[l.ItemID]
		if !ok {
			return pricing.Quote{}, nil, &ItemNotFoundError{ItemID: l.ItemID}
		}
		priced[i] = pricing.Line{
			ItemID:    it.ID,
			Name:      it.Name,
			UnitPrice: it.Price,
			Quantity:  l.Quantity,
		}
	}

	return s.pricer.Quote(priced, in), priced, nil
}

// PlaceOrder turns a cart into a placed order: block check, quote, credit
// charge (if chosen), persist, month counter, eligibility re-evaluation,
// confirmation notification. The pairing suggestion is attached
// asynchronously and never delays or fails placement. If persisting the
// order fails after a successful charge, the charge is rolled back with a
// refund so no charge exists without an order record.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	switch req.PaymentMethod {
	case PayCash, PayCredit:
	default:
		return nil, ErrUnknownPaymentMethod
	}

	blocked, err := s.ledger.IsBlocked(ctx, req.MemberID)
	if err != nil {
		return nil, errors.Wrap(err, "check block")
	}
	if blocked {
		return nil, ErrOrderingBlocked
	}

	quote, lines, err := s.PriceCart(ctx, req.Lines, pricing.Input{
		GreenToken: req.GreenToken,
		Attendance: req.Attendance,
	})
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:            uuid.New().String(),
		MemberID:      req.MemberID,
		Lines:         lines,
		Quote:         quote,
		Status:        StatusPlaced,
		PaymentMethod: req.PaymentMethod,
		Instructions:  req.Instructions,
		Contact:       req.Contact,
		CreatedAt:     s.now(),
	}

	// Charge exactly the quote's payable amount, never a recomputed value.
	if req.PaymentMethod == PayCredit && quote.Total.IsPositive() {
		if err := s.ledger.Charge(ctx, req.MemberID, quote.Total, o.ID); err != nil {
			return nil, err
		}
	}

	if err := s.orders.Create(ctx, o); err != nil {
		if req.PaymentMethod == PayCredit && quote.Total.IsPositive() {
			// Roll the charge back so the ledger never carries a charge
			// without an order record.
			if rbErr := s.ledger.Refund(ctx, req.MemberID, quote.Total, o.ID); rbErr != nil {
				return nil, errors.Wrap(rbErr, "rollback charge after create failure")
			}
		}
		return nil, errors.Wrap(err, "create order")
	}

	// The order exists and any charge stands; counter or eligibility
	// bookkeeping failures must not surface as a placement failure.
	count, err := s.counters.Increment(ctx, req.MemberID, MonthKey(o.CreatedAt))
	if err != nil {
		zctx.From(ctx).Warn("Month counter increment failed",
			zap.String("member_id", req.MemberID),
			zap.String("order_id", o.ID),
			zap.Error(err))
	} else if _, err := s.ledger.Evaluate(ctx, req.MemberID, count); err != nil {
		zctx.From(ctx).Warn("Eligibility evaluation failed",
			zap.String("member_id", req.MemberID),
			zap.Error(err))
	}

	s.notifier.Notify(ctx, notify.Notification{
		MemberID:    req.MemberID,
		Category:    notify.CategoryOrder,
		OrderStatus: string(StatusPlaced),
		Text:        fmt.Sprintf("Order placed, total %s.", quote.Total.StringFixed(2)),
	})

	s.spawn(func() { s.attachSuggestion(context.WithoutCancel(ctx), o) })

	return o, nil
}

// attachSuggestion fetches a pairing suggestion and stores it on the order.
// Failures are swallowed: the order exists regardless.
func (s *Service) attachSuggestion(ctx context.Context, o *Order) {
	items := make([]suggest.Item, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = suggest.Item{Name: l.Name, Quantity: l.Quantity}
	}
	text, err := s.suggester.Suggest(ctx, items)
	if err != nil || text == "" {
		return
	}
	if err := s.orders.SetSuggestion(ctx, o.ID, text); err != nil {
		return
	}
	o.Suggestion = text
}

// GetOrder returns one of the member's orders. Orders belonging to other
// members are reported as not found.
func (s *Service) GetOrder(ctx context.Context, memberID, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.MemberID != memberID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListOrders returns the member's order collection.
func (s *Service) ListOrders(ctx context.Context, memberID string) ([]Order, error) {
	return s.orders.ListByMember(ctx, memberID)
}

// ListAllOrders returns every member's orders. Kitchen staff only.
func (s *Service) ListAllOrders(ctx context.Context) ([]Order, error) {
	return s.orders.ListAll(ctx)
}

// Cancel cancels one of the member's placed orders. Credit orders are
// refunded for exactly the captured payable amount; the month counter is
// decremented and eligibility re-evaluated.
func (s *Service) Cancel(ctx context.Context, memberID, orderID string) (*Order, error) {
	o, err := s.GetOrder(ctx, memberID, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, o, StatusCancelled)
}

// UpdateStatus advances an order through the kitchen workflow. Staff entry
// point: cross-member visibility, status changes only.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, &InvalidTransitionError{To: to}
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, o, to)
}

// transition applies one state-machine edge. The storage-level
// compare-and-swap serializes racing transitions on the same order: the
// loser observes the now-current status and fails with
// InvalidTransitionError instead of corrupting state.
func (s *Service) transition(ctx context.Context, o *Order, to Status) (*Order, error) {
	from := o.Status
	if !CanTransition(from, to) {
		return nil, &InvalidTransitionError{From: from, To: to}
	}

	swapped, err := s.orders.UpdateStatus(ctx, o.ID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	if !swapped {
		current, err := s.orders.GetByID(ctx, o.ID)
		if err != nil {
			return nil, errors.Wrap(err, "reload order")
		}
		return nil, &InvalidTransitionError{From: current.Status, To: to}
	}
	o.Status = to

	if to == StatusCancelled {
		if o.PaymentMethod == PayCredit && o.Quote.Total.IsPositive() {
			if err := s.ledger.Refund(ctx, o.MemberID, o.Quote.Total, o.ID); err != nil {
				return nil, errors.Wrap(err, "refund cancelled order")
			}
		}
		// The counter tracks non-cancelled orders; same-month
		// cancellations are taken back out. The cancellation itself is
		// already committed, so bookkeeping failures are only logged.
		if MonthKey(o.CreatedAt) == MonthKey(s.now()) {
			count, err := s.counters.Decrement(ctx, o.MemberID, MonthKey(o.CreatedAt))
			if err != nil {
				zctx.From(ctx).Warn("Month counter decrement failed",
					zap.String("member_id", o.MemberID),
					zap.String("order_id", o.ID),
					zap.Error(err))
			} else if _, err := s.ledger.Evaluate(ctx, o.MemberID, count); err != nil {
				zctx.From(ctx).Warn("Eligibility evaluation failed",
					zap.String("member_id", o.MemberID),
					zap.Error(err))
			}
		}
	}

	s.notifier.Notify(ctx, notify.Notification{
		MemberID:    o.MemberID,
		Category:    notify.CategoryOrder,
		OrderStatus: string(to),
		Text:        fmt.Sprintf("Order %s is now %s.", shortID(o.ID), to),
	})
	return o, nil
}

// SubmitFeedback records the member's one-time rating of a delivered order.
func (s *Service) SubmitFeedback(ctx context.Context, memberID, orderID string, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return &InvalidRatingError{Rating: rating}
	}

	o, err := s.GetOrder(ctx, memberID, orderID)
	if err != nil {
		return err
	}
	if o.Status != StatusDelivered {
		return ErrNotDelivered
	}
	if o.FeedbackSubmitted {
		return ErrFeedbackExists
	}

	fb := &Feedback{
		OrderID:   orderID,
		MemberID:  memberID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: s.now(),
	}
	if err := s.feedback.Create(ctx, fb); err != nil {
		return errors.Wrap(err, "create feedback")
	}
	if err := s.orders.MarkFeedbackSubmitted(ctx, orderID); err != nil {
		return errors.Wrap(err, "mark feedback submitted")
	}
	o.FeedbackSubmitted = true
	return nil
}

// shortID trims a UUID to its first segment for notification text.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
