package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/canteenhq/canteen/internal/domain/notify"
)

// Config holds the tunable ledger constants.
type Config struct {
	// EligibilityOrders is the minimum count of non-cancelled orders in
	// the current calendar month required for eligibility.
	EligibilityOrders int
	// PenaltyPerDay accrues for every whole day past the due date.
	PenaltyPerDay decimal.Decimal
	// TierLimits maps tier (1-based index 0) to its credit limit.
	TierLimits []decimal.Decimal
	// PromotionMonths is the consecutive on-time month count that
	// triggers a tier promotion.
	PromotionMonths int
}

// DefaultConfig returns the standard ledger constants: eligibility at 20
// orders, 5 per day late, tiers 500/1000/2000, promotion every 2 on-time
// months.
func DefaultConfig() Config {
	return Config{
		EligibilityOrders: 20,
		PenaltyPerDay:     decimal.NewFromInt(5),
		TierLimits: []decimal.Decimal{
			decimal.NewFromInt(500),
			decimal.NewFromInt(1000),
			decimal.NewFromInt(2000),
		},
		PromotionMonths: 2,
	}
}

// MaxTier returns the highest configured tier.
func (c Config) MaxTier() int { return len(c.TierLimits) }

func (c Config) tierLimit(tier int) decimal.Decimal {
	return c.TierLimits[tier-1]
}

// Ledger owns all mutations of credit accounts. Operations load the
// account, apply the rule, and persist the result; the clock is injected
// for tests.
type Ledger struct {
	repo     Repository
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time
}

// NewLedger creates a Ledger with the given dependencies.
func NewLedger(repo Repository, notifier notify.Notifier, cfg Config) *Ledger {
	return &Ledger{
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the ledger clock. Intended for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Account returns the member's account with penalty accrual applied, so
// penalty and days-late are current as of this read.
func (l *Ledger) Account(ctx context.Context, memberID string) (*Account, error) {
	acct, err := l.repo.GetOrCreate(ctx, memberID)
	if err != nil {
		return nil, errors.Wrap(err, "load account")
	}
	l.accrue(acct)
	if err := l.repo.Save(ctx, acct); err != nil {
		return nil, errors.Wrap(err, "save account")
	}
	return acct, nil
}

// IsBlocked reports whether the member is under an administrative block.
func (l *Ledger) IsBlocked(ctx context.Context, memberID string) (bool, error) {
	acct, err := l.repo.GetOrCreate(ctx, memberID)
	if err != nil {
		return false, errors.Wrap(err, "load account")
	}
	return acct.Blocked, nil
}

// Evaluate recomputes eligibility from the month-scoped order count:
// eligible iff the member placed at least the configured number of
// non-cancelled orders this calendar month. An ineligible-to-eligible
// crossing emits exactly one notification.
func (l *Ledger) Evaluate(ctx context.Context, memberID string, monthlyOrders int) (bool, error) {
	acct, err := l.repo.GetOrCreate(ctx, memberID)
	if err != nil {
		return false, errors.Wrap(err, "load account")
	}

	eligible := monthlyOrders >= l.cfg.EligibilityOrders
	crossed := eligible && !acct.Eligible
	acct.Eligible = eligible

	if err := l.repo.Save(ctx, acct); err != nil {
		return false, errors.Wrap(err, "save account")
	}

	if crossed {
		l.notifier.Notify(ctx, notify.Notification{
			MemberID: memberID,
			Category: notify.CategoryCredit,
			Text:     "You are now eligible to request canteen credit.",
		})
	}
	return eligible, nil
}

// RequestAuthorization flags the member for administrative approval.
func (l *Ledger) RequestAuthorization(ctx context.Context, memberID string) error {
	acct, err := l.repo.GetOrCreate(ctx, memberID)
	if err != nil {
		return errors.Wrap(err, "load account")
	}
	if !acct.Eligible {
		return ErrNotEligible
	}
	if acct.AuthRequested {
		return ErrAlreadyRequested
	}
	acct.AuthRequested = true
	return errors.Wrap(l.repo.Save(ctx, acct), "save account")
}

// Approve grants credit at tier 1. Approving an already-approved account
// re-applies the tier-1 defaults; safeguards are the caller's concern.
func (l *Ledger) Approve(ctx context.Context, memberID string) error {
	acct, err := l.repo.GetOrCreate(ctx, memberID)
	if err != nil {
		return errors.Wrap(err, "load account")
	}

	due := l.now().AddDate(0, 1, 0)
	acct.Approved = true
	acct.AuthRequested = false
	acct.Tier = 1
	acct.Limit = l.cfg.tierLimit(1)
	acct.DueDate = &due

	if err := l.repo.Save(ctx, acct); err != nil {
		return errors.Wrap(err, "save account")
	}

	l.notifier.Notify(ctx, notify.Notification{
		MemberID: memberID,
		Category: notify.CategoryCredit,
		Text:     fmt.Sprintf("Canteen credit approved: tier 1, limit %s.", acct.Limit.StringFixed(2)),
	})
	return nil
}

// Charge adds an order charge to the balance. It fails with
// ErrInsufficientCredit when the amount exceeds the available credit
// (effective limit minus balance, with the probation haircut applied).
// Penalty accrual runs first so the decision uses current state.
func (l *Ledger) Charge(ctx context.Context, memberID string, amount decimal.Decimal, orderID string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	acct, err := l.repo.GetOrCreate(ctx, memberID)
	if err != nil {
		return errors.Wrap(err, "load account")
	}
	l.accrue(acct)

	if amount.GreaterThan(acct.Available()) {
		// Persist the accrual even when the charge is refused.
		if err := l.repo.Save(ctx, acct); err != nil {
			return errors.Wrap(err, "save account")
		}
		return ErrInsufficientCredit
	}

	acct.Balance = acct.Balance.Add(amount)
	if err := l.repo.Save(ctx, acct); err != nil {
		return errors.Wrap(err, "save account")
	}
	return errors.Wrap(l.append(ctx, acct, Transaction{
		Kind:    TxCharge,
		Amount:  amount,
		OrderID: orderID,
	}), "append charge")
}

// Refund reverses a prior charge: balance is reduced by the amount, floored
// at zero. Refunds always succeed.
func (l *Ledger) Refund(ctx context.Context, memberID string, amount decimal.Decimal, orderID string) error {
	acct, err := l.repo.GetOrCreate(ctx, memberID)
	if err != nil {
		return errors.Wrap(err, "load account")
	}

	acct.Balance = acct.Balance.Sub(amount)
	if acct.Balance.IsNegative() {
		acct.Balance = decimal.Zero
	}
	if err := l.repo.Save(ctx, acct); err != nil {
		return errors.Wrap(err, "save account")
	}
	return errors.Wrap(l.append(ctx, acct, Transaction{
		Kind:    TxRefund,
		Amount:  amount,
		OrderID: orderID,
	}), "append refund")
}

// Pay applies a repayment. The amount offsets the accrued penalty first,
// then the balance, both floored at zero. Overpayment is accepted and the
// transaction records the requested amount. A payment made with zero days
// late that clears the balance counts as an on-time month: it lifts
// probation, starts a fresh one-month cycle, and after enough consecutive
// on-time months promotes the tier one step. A payment against an account
// that owes nothing, or has no credit line yet, is recorded without
// starting a cycle.
func (l *Ledger) Pay(ctx context.Context, memberID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	acct, err := l.repo.GetOrCreate(ctx, memberID)
	if err != nil {
		return errors.Wrap(err, "load account")
	}
	l.accrue(acct)
	onTime := acct.DaysLate == 0
	hadDebt := acct.Balance.IsPositive() || acct.Penalty.IsPositive()

	remainder := amount
	if acct.Penalty.IsPositive() {
		applied := decimal.Min(acct.Penalty, remainder)
		acct.Penalty = acct.Penalty.Sub(applied)
		acct.PenaltyPaid = acct.PenaltyPaid.Add(applied)
		remainder = remainder.Sub(applied)
	}
	if remainder.IsPositive() {
		acct.Balance = acct.Balance.Sub(remainder)
		if acct.Balance.IsNegative() {
			acct.Balance = decimal.Zero
		}
	}

	promoted := false
	switch {
	case !acct.Approved || !hadDebt:
		// A payment with nothing owed (or without a credit line) is
		// recorded but starts no repayment cycle.
	case acct.Balance.IsZero() && acct.Penalty.IsZero():
		// Clearing everything owed starts a fresh repayment cycle; only
		// an on-time clearing counts toward promotion and lifts probation.
		acct.DaysLate = 0
		acct.Penalty = decimal.Zero
		acct.PenaltyPaid = decimal.Zero
		due := l.now().AddDate(0, 1, 0)
		acct.DueDate = &due

		if onTime {
			acct.OnTimeMonths++
			acct.Probation = false
			if acct.OnTimeMonths >= l.cfg.PromotionMonths && acct.Tier > 0 && acct.Tier < l.cfg.MaxTier() {
				acct.Tier++
				acct.Limit = l.cfg.tierLimit(acct.Tier)
				acct.OnTimeMonths = 0
				promoted = true
			}
		} else {
			acct.OnTimeMonths = 0
		}
	default:
		acct.OnTimeMonths = 0
	}

	if err := l.repo.Save(ctx, acct); err != nil {
		return errors.Wrap(err, "save account")
	}
	if err := l.append(ctx, acct, Transaction{Kind: TxPayment, Amount: amount}); err != nil {
		return errors.Wrap(err, "append payment")
	}

	if promoted {
		l.notifier.Notify(ctx, notify.Notification{
			MemberID: memberID,
			Category: notify.CategoryCredit,
			Text: fmt.Sprintf("Credit tier promoted to %d, new limit %s.",
				acct.Tier, acct.Limit.StringFixed(2)),
		})
	}
	return nil
}

// ApplyProbation puts the account on probation, halving the effective limit
// until a subsequent on-time full repayment lifts it. Administrative.
func (l *Ledger) ApplyProbation(ctx context.Context, memberID string) error {
	acct, err := l.repo.GetOrCreate(ctx, memberID)
	if err != nil {
		return errors.Wrap(err, "load account")
	}
	acct.Probation = true
	acct.OnTimeMonths = 0
	return errors.Wrap(l.repo.Save(ctx, acct), "save account")
}

// SetBlocked sets or clears the administrative hard block.
func (l *Ledger) SetBlocked(ctx context.Context, memberID string, active bool) error {
	acct, err := l.repo.GetOrCreate(ctx, memberID)
	if err != nil {
		return errors.Wrap(err, "load account")
	}
	acct.Blocked = active
	return errors.Wrap(l.repo.Save(ctx, acct), "save account")
}

// accrue recomputes days-late and penalty from the due date:
// daysLate = max(0, whole days past due), penalty = daysLate * PenaltyPerDay
// minus whatever penalty was already repaid this cycle, floored at zero.
func (l *Ledger) accrue(acct *Account) {
	if acct.DueDate == nil {
		return
	}
	daysLate := int(l.now().Sub(*acct.DueDate).Hours() / 24)
	if daysLate < 0 {
		daysLate = 0
	}
	acct.DaysLate = daysLate
	penalty := l.cfg.PenaltyPerDay.Mul(decimal.NewFromInt(int64(daysLate))).Sub(acct.PenaltyPaid)
	if penalty.IsNegative() {
		penalty = decimal.Zero
	}
	acct.Penalty = penalty
}

func (l *Ledger) append(ctx context.Context, acct *Account, tx Transaction) error {
	tx.CreatedAt = l.now()
	acct.Transactions = append(acct.Transactions, tx)
	return l.repo.Append(ctx, acct.MemberID, tx)
}
