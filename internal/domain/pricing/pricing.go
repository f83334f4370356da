// Package pricing holds the pure money math shared by checkout and voucher
// preview. All amounts are integer minor units; divisions truncate.
package pricing

import (
	"github.com/canastra/storefront/internal/domain/variant"
	"github.com/canastra/storefront/internal/domain/voucher"
)

// EffectiveUnitPrice returns the variant's unit price after its own
// discount percentage is applied, truncated.
func EffectiveUnitPrice(v *variant.Variant) int64 {
	if v.DiscountPercent <= 0 {
		return v.UnitPrice
	}
	return v.UnitPrice - v.UnitPrice*int64(v.DiscountPercent)/100
}

// VoucherDiscount returns the discount a voucher grants on the given order
// total. Percentage discounts are capped at the order total; fixed
// discounts never exceed it. Unknown discount types grant nothing.
func VoucherDiscount(orderTotal int64, v *voucher.Voucher) int64 {
	if orderTotal <= 0 {
		return 0
	}
	switch v.DiscountType {
	case voucher.DiscountPercentage:
		d := orderTotal * v.DiscountValue / 100
		return min(d, orderTotal)
	case voucher.DiscountFixed:
		return min(v.DiscountValue, orderTotal)
	default:
		return 0
	}
}
