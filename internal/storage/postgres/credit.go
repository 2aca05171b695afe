package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canteenhq/canteen/internal/domain/credit"
)

const (
	ensureCreditAccountSQL = `INSERT INTO credit_accounts (member_id)
		VALUES ($1) ON CONFLICT (member_id) DO NOTHING`

	getCreditAccountSQL = `SELECT member_id, eligible, approved, auth_requested, tier,
			credit_limit, balance, penalty, due_date, days_late, penalty_paid,
			on_time_months, probation, blocked
		FROM credit_accounts WHERE member_id = $1`

	saveCreditAccountSQL = `UPDATE credit_accounts SET
			eligible = $2, approved = $3, auth_requested = $4, tier = $5,
			credit_limit = $6, balance = $7, penalty = $8, due_date = $9,
			days_late = $10, penalty_paid = $11, on_time_months = $12,
			probation = $13, blocked = $14
		WHERE member_id = $1`

	listCreditTransactionsSQL = `SELECT kind, amount, order_id, created_at
		FROM credit_transactions WHERE member_id = $1 ORDER BY created_at, id`

	appendCreditTransactionSQL = `INSERT INTO credit_transactions
			(member_id, kind, amount, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ credit.Repository = (*CreditRepository)(nil)

// CreditRepository implements credit.Repository backed by PostgreSQL.
type CreditRepository struct {
	pool *pgxpool.Pool
}

// NewCreditRepository returns a CreditRepository that uses the given pool.
func NewCreditRepository(pool *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{pool: pool}
}

// GetOrCreate loads the member's account, inserting a zero-valued row the
// first time the member is seen. The transaction history is loaded with it.
func (r *CreditRepository) GetOrCreate(ctx context.Context, memberID string) (*credit.Account, error) {
	if _, err := r.pool.Exec(ctx, ensureCreditAccountSQL, memberID); err != nil {
		return nil, fmt.Errorf("ensuring credit account %q: %w", memberID, err)
	}

	acct := &credit.Account{}
	err := r.pool.QueryRow(ctx, getCreditAccountSQL, memberID).Scan(
		&acct.MemberID, &acct.Eligible, &acct.Approved, &acct.AuthRequested,
		&acct.Tier, &acct.Limit, &acct.Balance, &acct.Penalty, &acct.DueDate,
		&acct.DaysLate, &acct.PenaltyPaid, &acct.OnTimeMonths,
		&acct.Probation, &acct.Blocked,
	)
	if err != nil {
		return nil, fmt.Errorf("getting credit account %q: %w", memberID, err)
	}

	rows, err := r.pool.Query(ctx, listCreditTransactionsSQL, memberID)
	if err != nil {
		return nil, fmt.Errorf("listing credit transactions for %q: %w", memberID, err)
	}
	acct.Transactions, err = pgx.CollectRows(rows, scanCreditTransaction)
	if err != nil {
		return nil, fmt.Errorf("listing credit transactions for %q: %w", memberID, err)
	}
	return acct, nil
}

// Save writes the account's current state back. Transactions are append-only
// and written separately via Append.
func (r *CreditRepository) Save(ctx context.Context, acct *credit.Account) error {
	_, err := r.pool.Exec(ctx, saveCreditAccountSQL,
		acct.MemberID, acct.Eligible, acct.Approved, acct.AuthRequested,
		acct.Tier, acct.Limit, acct.Balance, acct.Penalty, acct.DueDate,
		acct.DaysLate, acct.PenaltyPaid, acct.OnTimeMonths,
		acct.Probation, acct.Blocked,
	)
	if err != nil {
		return fmt.Errorf("saving credit account %q: %w", acct.MemberID, err)
	}
	return nil
}

// Append records one ledger entry for the member.
func (r *CreditRepository) Append(ctx context.Context, memberID string, tx credit.Transaction) error {
	_, err := r.pool.Exec(ctx, appendCreditTransactionSQL,
		memberID, string(tx.Kind), tx.Amount, tx.OrderID, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending credit transaction for %q: %w", memberID, err)
	}
	return nil
}

func scanCreditTransaction(row pgx.CollectableRow) (credit.Transaction, error) {
	var (
		tx   credit.Transaction
		kind string
	)
	err := row.Scan(&kind, &tx.Amount, &tx.OrderID, &tx.CreatedAt)
	tx.Kind = credit.TransactionKind(kind)
	return tx, err
}
