package voucher

import (
	"context"

	"github.com/go-faster/errors"
)

// DiscountType enumerates the supported voucher discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the order total.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the order total.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when a voucher id or name resolves to nothing.
	ErrNotFound = errors.New("voucher not found")
	// ErrExhausted is returned when a voucher has no redemptions left.
	ErrExhausted = errors.New("voucher is no longer available")
	// ErrMinOrderNotMet is returned when the order total is below the
	// voucher's minimum order value.
	ErrMinOrderNotMet = errors.New("order total is less than voucher minimum value")
)

// Voucher defines a discount rule with a limited number of redemptions.
// RemainingRedemptions never goes below zero; it is decremented exactly
// once per successful order through the store's conditional decrement.
type Voucher struct {
	ID                   string
	Name                 string
	DiscountType         DiscountType
	DiscountValue        int64
	MinOrderValue        int64
	RemainingRedemptions int
}

// Store provides lookup of vouchers. Redemption consumption happens inside
// the order commit transaction, not through this interface.
type Store interface {
	GetByID(ctx context.Context, id string) (*Voucher, error)
	GetByName(ctx context.Context, name string) (*Voucher, error)
	List(ctx context.Context, page, pageSize int) ([]Voucher, int64, error)
}
