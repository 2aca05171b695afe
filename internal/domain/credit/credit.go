// Package credit implements the deferred-payment ledger: per-member
// accounts with eligibility, tiered limits, penalties, probation and tier
// progression.
package credit

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for ledger operations. All are expected business-rule
// failures returned to the caller, never faults.
var (
	ErrNotEligible        = errors.New("not eligible for credit")
	ErrAlreadyRequested   = errors.New("credit authorization already requested")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrInvalidAmount      = errors.New("amount must be greater than 0")
)

// TransactionKind enumerates ledger entry kinds.
type TransactionKind string

const (
	TxCharge  TransactionKind = "charge"
	TxPayment TransactionKind = "payment"
	TxRefund  TransactionKind = "refund"
)

// Transaction is an append-only ledger entry. Amount is always non-negative.
type Transaction struct {
	Kind      TransactionKind
	Amount    decimal.Decimal
	OrderID   string
	CreatedAt time.Time
}

// Account is one member's credit ledger. Created lazily on first evaluation
// and persisted across sessions; mutated only by Ledger operations.
type Account struct {
	MemberID      string
	Eligible      bool
	Approved      bool
	AuthRequested bool
	// Tier is the credit-limit bracket: 0 = none, 1-3 increasing.
	Tier    int
	Limit   decimal.Decimal
	Balance decimal.Decimal
	Penalty decimal.Decimal
	DueDate *time.Time
	// DaysLate is the stored result of the last penalty accrual.
	DaysLate int
	// PenaltyPaid is the penalty amount already repaid in the current
	// cycle. Accrual derives Penalty from DaysLate, so payments against
	// the penalty are tracked here to survive recomputation.
	PenaltyPaid decimal.Decimal
	// OnTimeMonths counts consecutive months cleared on time, reset on
	// promotion and on any late or partial payment.
	OnTimeMonths int
	Probation    bool
	// Blocked is an administrative hard block, independent of the credit
	// math. While set, no new orders may be placed at all.
	Blocked      bool
	Transactions []Transaction
}

// EffectiveLimit returns the limit after the probation haircut.
func (a *Account) EffectiveLimit() decimal.Decimal {
	if a.Probation {
		return a.Limit.Div(decimal.NewFromInt(2))
	}
	return a.Limit
}

// Available returns the credit still spendable: effective limit minus
// outstanding balance, floored at zero.
func (a *Account) Available() decimal.Decimal {
	avail := a.EffectiveLimit().Sub(a.Balance)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// TotalDue returns the balance plus accrued penalty.
func (a *Account) TotalDue() decimal.Decimal {
	return a.Balance.Add(a.Penalty)
}

// Repository persists credit accounts. GetOrCreate returns an empty
// tier-zero account the first time a member is seen.
type Repository interface {
	GetOrCreate(ctx context.Context, memberID string) (*Account, error)
	Save(ctx context.Context, acct *Account) error
	Append(ctx context.Context, memberID string, tx Transaction) error
}
