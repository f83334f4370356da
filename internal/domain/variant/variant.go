package variant

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested variant does not exist.
var ErrNotFound = errors.New("variant not found")

// Variant is a sellable configuration of a product. Counters are owned by
// the store and mutated only through its atomic adjustment API; callers
// never read-modify-write them.
type Variant struct {
	ID              string
	ProductID       string
	SKU             string
	UnitPrice       int64
	DiscountPercent int
	StockQuantity   int
	SoldQuantity    int
	ViewCount       int64
}

// Adjustment is a signed delta applied to a variant's counters as part of
// a surrounding transaction. RequireStock makes the stock change
// conditional: the update must only apply while
// stock_quantity + StockDelta >= 0 still holds at apply time.
type Adjustment struct {
	VariantID    string
	StockDelta   int
	SoldDelta    int
	RequireStock bool
}

// Store defines access to variants and their counters.
type Store interface {
	GetByID(ctx context.Context, id string) (*Variant, error)
	ListByProduct(ctx context.Context, productID string) ([]Variant, error)
	// BumpViews atomically increments the view counter of every variant
	// of the given product.
	BumpViews(ctx context.Context, productID string) error
}
