package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/canastra/storefront/internal/domain/variant"
	"github.com/canastra/storefront/internal/domain/voucher"
)

func TestEffectiveUnitPrice(t *testing.T) {
	tests := []struct {
		name     string
		price    int64
		discount int
		want     int64
	}{
		{"no discount", 1000, 0, 1000},
		{"ten percent", 1000, 10, 900},
		{"truncates", 999, 10, 900}, // 999 - 99.9 truncated to 999-99
		{"full discount", 1000, 100, 0},
		{"negative treated as none", 1000, -5, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &variant.Variant{UnitPrice: tt.price, DiscountPercent: tt.discount}
			assert.Equal(t, tt.want, EffectiveUnitPrice(v))
		})
	}
}

func TestVoucherDiscount_Percentage(t *testing.T) {
	v := &voucher.Voucher{DiscountType: voucher.DiscountPercentage, DiscountValue: 10}

	assert.Equal(t, int64(15), VoucherDiscount(150, v))
	// Integer division truncates.
	assert.Equal(t, int64(15), VoucherDiscount(155, v))
	assert.Equal(t, int64(0), VoucherDiscount(0, v))

	// Capped at the order total.
	v.DiscountValue = 150
	assert.Equal(t, int64(100), VoucherDiscount(100, v))
}

func TestVoucherDiscount_Fixed(t *testing.T) {
	v := &voucher.Voucher{DiscountType: voucher.DiscountFixed, DiscountValue: 50}

	assert.Equal(t, int64(50), VoucherDiscount(150, v))
	// Never exceeds the order total.
	assert.Equal(t, int64(30), VoucherDiscount(30, v))
}

func TestVoucherDiscount_UnknownType(t *testing.T) {
	v := &voucher.Voucher{DiscountType: "bogus", DiscountValue: 50}
	assert.Equal(t, int64(0), VoucherDiscount(150, v))
}
