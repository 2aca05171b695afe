package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canteenhq/canteen/internal/domain/member"
)

const (
	getMemberByIDSQL = `SELECT id, name, contact, contact_verified, joined_at
		FROM members WHERE id = $1`

	upsertMemberSQL = `INSERT INTO members (id, name, contact, contact_verified, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, contact = EXCLUDED.contact,
			contact_verified = EXCLUDED.contact_verified`
)

var _ member.Repository = (*MemberRepository)(nil)

// MemberRepository implements member.Repository backed by PostgreSQL.
type MemberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository returns a MemberRepository that uses the given pool.
func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

// GetByID returns one roster entry.
func (r *MemberRepository) GetByID(ctx context.Context, id string) (*member.Member, error) {
	var m member.Member
	err := r.pool.QueryRow(ctx, getMemberByIDSQL, id).Scan(
		&m.ID, &m.Name, &m.Contact, &m.ContactVerified, &m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, member.ErrNotFound
		}
		return nil, fmt.Errorf("getting member %q: %w", id, err)
	}
	return &m, nil
}

// Upsert inserts or refreshes a roster entry, keyed by member ID.
func (r *MemberRepository) Upsert(ctx context.Context, m *member.Member) error {
	_, err := r.pool.Exec(ctx, upsertMemberSQL,
		m.ID, m.Name, m.Contact, m.ContactVerified, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting member %q: %w", m.ID, err)
	}
	return nil
}
