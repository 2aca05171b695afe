package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/canteenhq/canteen/internal/domain/menu"
)

const (
	listMenuItemsSQL = `SELECT id, name, price, category, active
		FROM menu_items WHERE active = TRUE ORDER BY id`

	getMenuItemByIDSQL = `SELECT id, name, price, category, active
		FROM menu_items WHERE id = $1 AND active = TRUE`

	getMenuItemsByIDsSQL = `SELECT id, name, price, category, active
		FROM menu_items WHERE id = ANY($1) AND active = TRUE`

	upsertMenuItemSQL = `INSERT INTO menu_items (id, name, price, category, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price,
			category = EXCLUDED.category, active = EXCLUDED.active`
)

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// List returns all active menu items ordered by ID.
func (r *MenuRepository) List(ctx context.Context) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, listMenuItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing menu items: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// GetByID returns a single active menu item by its identifier.
func (r *MenuRepository) GetByID(ctx context.Context, id string) (*menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}
	return &it, nil
}

// GetByIDs returns active menu items matching any of the given IDs.
func (r *MenuRepository) GetByIDs(ctx context.Context, ids []string) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting menu items by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// Upsert inserts or updates a catalog entry. Used by the seeder.
func (r *MenuRepository) Upsert(ctx context.Context, it *menu.Item) error {
	_, err := r.pool.Exec(ctx, upsertMenuItemSQL,
		it.ID, it.Name, it.Price, it.Category, it.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting menu item %q: %w", it.ID, err)
	}
	return nil
}

func scanMenuItem(row pgx.CollectableRow) (menu.Item, error) {
	var (
		it    menu.Item
		price decimal.Decimal
	)
	err := row.Scan(&it.ID, &it.Name, &price, &it.Category, &it.Active)
	it.Price = price
	return it, err
}
