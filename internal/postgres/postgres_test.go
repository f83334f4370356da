package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/canastra/storefront/internal/domain/order"
	"github.com/canastra/storefront/internal/domain/product"
	"github.com/canastra/storefront/internal/domain/variant"
	"github.com/canastra/storefront/internal/domain/voucher"
)

// Malformed ids can never reference a row, so every lookup must report
// not-found without reaching the database. A nil pool proves the query
// path is never entered.
func TestMalformedIDsResolveToNotFound(t *testing.T) {
	ctx := context.Background()

	for _, id := range []string{"", "abc", "123", "00000000-0000-0000-0000-00000000000g"} {
		_, err := NewVariantStore(nil).GetByID(ctx, id)
		require.ErrorIs(t, err, variant.ErrNotFound, "variant id %q", id)

		_, err = NewProductRepository(nil).GetByID(ctx, id)
		require.ErrorIs(t, err, product.ErrNotFound, "product id %q", id)

		_, err = NewVoucherStore(nil).GetByID(ctx, id)
		require.ErrorIs(t, err, voucher.ErrNotFound, "voucher id %q", id)

		orders := NewOrderRepository(nil)
		_, err = orders.GetByID(ctx, id)
		require.ErrorIs(t, err, order.ErrNotFound, "order id %q", id)

		_, err = orders.GetForUser(ctx, "user-1", id)
		require.ErrorIs(t, err, order.ErrNotFound, "order id %q", id)

		_, _, err = orders.UpdateStatus(ctx, id, order.StatusCancelled)
		require.ErrorIs(t, err, order.ErrNotFound, "order id %q", id)
	}
}
