package order

import "github.com/canastra/storefront/internal/domain/variant"

// transition matches a status change and describes the per-unit counter
// deltas it implies. Matching is on the (old, new) pair only.
type transition struct {
	match        func(from, to Status) bool
	stockDelta   int
	soldDelta    int
	requireStock bool
}

// transitions is the compensation table. Stock is decremented at order
// time, so only three changes carry side effects:
//
//	any -> cancelled   restores stock
//	any -> delivered   bumps the sold counter (stock untouched)
//	cancelled -> any   re-consumes stock, reversing the restoration
//
// Every rule is guarded against repeating itself: moving to the status
// the order already has is a no-op.
var transitions = []transition{
	{
		match:      func(from, to Status) bool { return to == StatusCancelled && from != StatusCancelled },
		stockDelta: +1,
	},
	{
		match:     func(from, to Status) bool { return to == StatusDelivered && from != StatusDelivered },
		soldDelta: +1,
	},
	{
		match:        func(from, to Status) bool { return from == StatusCancelled && to != StatusCancelled },
		stockDelta:   -1,
		requireStock: true,
	},
}

// AdjustmentsFor returns the counter adjustments the given status change
// implies for the order's lines. A nil result means the transition has no
// stock/sold side effects. Reactivation out of cancelled requires the
// stock to still be available: the decrement is conditional so the
// stock quantity can never go negative.
func AdjustmentsFor(from, to Status, lines []Line) []variant.Adjustment {
	for _, t := range transitions {
		if !t.match(from, to) {
			continue
		}
		adjs := make([]variant.Adjustment, len(lines))
		for i, l := range lines {
			adjs[i] = variant.Adjustment{
				VariantID:    l.VariantID,
				StockDelta:   t.stockDelta * l.Quantity,
				SoldDelta:    t.soldDelta * l.Quantity,
				RequireStock: t.requireStock,
			}
		}
		return adjs
	}
	return nil
}
