package product

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog entry. Sellable stock lives on its variants.
type Product struct {
	ID        string
	Name      string
	Slug      string
	Thumbnail string
	Category  string
}

// Repository defines read access to the product catalog.
type Repository interface {
	List(ctx context.Context, page, pageSize int) ([]Product, int64, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
