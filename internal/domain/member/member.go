// Package member holds the community roster: who may order at all.
package member

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a member is not on the roster.
var ErrNotFound = errors.New("member not found")

// Member is one roster entry. The roster is maintained out of band (bulk
// import); the API only reads it.
type Member struct {
	ID              string
	Name            string
	Contact         string
	ContactVerified bool
	JoinedAt        time.Time
}

// Repository provides roster access. Upsert is idempotent on member ID so
// repeated imports converge.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Member, error)
	Upsert(ctx context.Context, m *Member) error
}
