package menu

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested menu item does not exist.
var ErrNotFound = errors.New("menu item not found")

// Item represents a dish available for ordering. Items are immutable
// reference data owned by the catalog.
type Item struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	Active   bool
}

// Repository defines read operations for the menu catalog.
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	GetByID(ctx context.Context, id string) (*Item, error)
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
}
