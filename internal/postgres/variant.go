package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canastra/storefront/internal/domain/variant"
)

const (
	getVariantSQL = `SELECT id, product_id, sku, unit_price, discount_percent,
		stock_quantity, sold_quantity, view_count
		FROM variants WHERE id = $1`

	listVariantsByProductSQL = `SELECT id, product_id, sku, unit_price, discount_percent,
		stock_quantity, sold_quantity, view_count
		FROM variants WHERE product_id = $1 ORDER BY sku`

	bumpVariantViewsSQL = `UPDATE variants SET view_count = view_count + 1, updated_at = now()
		WHERE product_id = $1`

	// adjustVariantSQL applies signed stock/sold deltas to a single
	// variant. When $4 is true the stock change is conditional: the row
	// only matches while the resulting stock stays non-negative, so a
	// decrement that lost a race since the caller's read matches nothing.
	adjustVariantSQL = `UPDATE variants
		SET stock_quantity = stock_quantity + $2,
		    sold_quantity  = sold_quantity + $3,
		    updated_at     = now()
		WHERE id = $1 AND (NOT $4 OR stock_quantity + $2 >= 0)`
)

var _ variant.Store = (*VariantStore)(nil)

// VariantStore implements variant.Store backed by PostgreSQL.
type VariantStore struct {
	pool *pgxpool.Pool
}

// NewVariantStore returns a VariantStore that uses the given pool.
func NewVariantStore(pool *pgxpool.Pool) *VariantStore {
	return &VariantStore{pool: pool}
}

// GetByID returns a variant snapshot by its identifier.
func (s *VariantStore) GetByID(ctx context.Context, id string) (*variant.Variant, error) {
	// A malformed id cannot reference a row; treat it as absent instead
	// of letting the uuid codec fail the query.
	if uuid.Validate(id) != nil {
		return nil, variant.ErrNotFound
	}
	rows, err := s.pool.Query(ctx, getVariantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting variant %q: %w", id, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVariant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, variant.ErrNotFound
		}
		return nil, fmt.Errorf("getting variant %q: %w", id, err)
	}
	return &v, nil
}

// ListByProduct returns all variants of the given product.
func (s *VariantStore) ListByProduct(ctx context.Context, productID string) ([]variant.Variant, error) {
	rows, err := s.pool.Query(ctx, listVariantsByProductSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing variants of product %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanVariant)
}

// BumpViews atomically increments the view counter of every variant of
// the given product.
func (s *VariantStore) BumpViews(ctx context.Context, productID string) error {
	_, err := s.pool.Exec(ctx, bumpVariantViewsSQL, productID)
	if err != nil {
		return fmt.Errorf("bumping views for product %q: %w", productID, err)
	}
	return nil
}

// applyAdjustment executes one conditional counter update inside tx.
// It reports whether the row matched; a false return on a conditional
// adjustment means the precondition no longer held at apply time.
func applyAdjustment(ctx context.Context, tx pgx.Tx, adj variant.Adjustment) (bool, error) {
	tag, err := tx.Exec(ctx, adjustVariantSQL,
		adj.VariantID, adj.StockDelta, adj.SoldDelta, adj.RequireStock,
	)
	if err != nil {
		return false, fmt.Errorf("adjusting variant %q: %w", adj.VariantID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanVariant(row pgx.CollectableRow) (variant.Variant, error) {
	var v variant.Variant
	err := row.Scan(
		&v.ID, &v.ProductID, &v.SKU, &v.UnitPrice, &v.DiscountPercent,
		&v.StockQuantity, &v.SoldQuantity, &v.ViewCount,
	)
	return v, err
}
