package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/canastra/storefront/internal/domain/pricing"
	"github.com/canastra/storefront/internal/domain/product"
	"github.com/canastra/storefront/internal/domain/variant"
	"github.com/canastra/storefront/internal/domain/voucher"
)

// LineRequest is one requested line at checkout.
type LineRequest struct {
	VariantID string
	Quantity  int
	Deadline  *time.Time
}

// PlaceOrderRequest holds the input for placing an order. UserID is
// passed explicitly; the engine has no notion of an ambient current user.
type PlaceOrderRequest struct {
	UserID      string
	Address     string
	PaymentType PaymentType
	VoucherID   string
	Lines       []LineRequest
}

// PlaceOrderResult is the outcome of a successfully placed order.
//
// FinalAmount always equals Order.TotalPrice (the fulfilled, discounted
// total). RequestedTotal carries the unclipped total of everything the
// caller asked for, which can be higher when stock ran short.
type PlaceOrderResult struct {
	Order          *Order
	DiscountAmount int64
	RequestedTotal int64
	FinalAmount    int64
	Message        string
	StockWarnings  []StockWarning
}

// Service orchestrates order placement and status transitions.
type Service struct {
	products product.Repository
	variants variant.Store
	vouchers voucher.Store
	orders   Repository
	events   Publisher
	now      func() time.Time
}

// NewService creates an order Service. A nil publisher disables events.
func NewService(
	products product.Repository,
	variants variant.Store,
	vouchers voucher.Store,
	orders Repository,
	events Publisher,
) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		products: products,
		variants: variants,
		vouchers: vouchers,
		orders:   orders,
		events:   events,
		now:      time.Now,
	}
}

// PlaceOrder allocates the requested quantities against live stock,
// prices the fulfillable part, redeems at most one voucher, and commits
// the order plus every counter mutation as one atomic unit.
//
// Lines that cannot be fully allocated degrade into stock warnings; the
// order fails only when nothing at all could be allocated. Concurrency
// is handled entirely by the transactional store: stock and voucher
// decrements are conditional at commit time, and a lost race aborts the
// whole transaction with no partial effects.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyLines
	}
	if req.PaymentType == "" {
		return nil, &ValidationError{Message: "payment type is required"}
	}

	var (
		lines          []Line
		allocations    []variant.Adjustment
		warnings       []StockWarning
		requestedTotal int64
		fulfilledTotal int64
	)

	for _, reqLine := range req.Lines {
		if reqLine.Quantity <= 0 {
			return nil, &ValidationError{
				Message: fmt.Sprintf("quantity must be greater than 0 for variant %s", reqLine.VariantID),
			}
		}

		v, err := s.variants.GetByID(ctx, reqLine.VariantID)
		if err != nil {
			return nil, errors.Wrapf(err, "get variant %s", reqLine.VariantID)
		}
		p, err := s.products.GetByID(ctx, v.ProductID)
		if err != nil {
			return nil, errors.Wrapf(err, "get product %s", v.ProductID)
		}

		unitPrice := pricing.EffectiveUnitPrice(v)
		allocated := min(reqLine.Quantity, v.StockQuantity)

		requestedTotal += unitPrice * int64(reqLine.Quantity)
		fulfilledTotal += unitPrice * int64(allocated)

		if allocated < reqLine.Quantity {
			warnings = append(warnings, StockWarning{
				ProductID:         p.ID,
				ProductName:       p.Name,
				RequestedQuantity: reqLine.Quantity,
				AvailableStock:    v.StockQuantity,
				AllocatedQuantity: allocated,
			})
		}

		if allocated > 0 {
			lines = append(lines, Line{
				ProductID: p.ID,
				VariantID: v.ID,
				UnitPrice: unitPrice,
				Quantity:  allocated,
				LineTotal: unitPrice * int64(allocated),
				Deadline:  reqLine.Deadline,
			})
			allocations = append(allocations, variant.Adjustment{
				VariantID:    v.ID,
				StockDelta:   -allocated,
				RequireStock: true,
			})
		}
	}

	if len(lines) == 0 {
		return nil, ErrInsufficientStock
	}

	// Voucher eligibility is checked against the fulfilled total. The
	// remaining-redemptions read here is advisory; the commit re-checks it
	// with a conditional decrement.
	var discount int64
	if req.VoucherID != "" {
		vc, err := s.vouchers.GetByID(ctx, req.VoucherID)
		if err != nil {
			return nil, errors.Wrap(err, "get voucher")
		}
		if fulfilledTotal < vc.MinOrderValue {
			return nil, voucher.ErrMinOrderNotMet
		}
		if vc.RemainingRedemptions <= 0 {
			return nil, voucher.ErrExhausted
		}
		discount = pricing.VoucherDiscount(fulfilledTotal, vc)
	}

	finalAmount := fulfilledTotal - discount

	now := s.now().UTC()
	o := &Order{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		Status:      StatusPending,
		PaymentType: req.PaymentType,
		Address:     req.Address,
		VoucherID:   req.VoucherID,
		Lines:       lines,
		TotalPrice:  finalAmount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.orders.Create(ctx, o, allocations); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.events.OrderCreated(ctx, o)

	msg := "Order created successfully"
	if len(warnings) > 0 {
		msg = "Order created with stock limitations"
	}

	return &PlaceOrderResult{
		Order:          o,
		DiscountAmount: discount,
		RequestedTotal: requestedTotal,
		FinalAmount:    finalAmount,
		Message:        msg,
		StockWarnings:  warnings,
	}, nil
}

// SetStatus moves an order to newStatus, applying the stock/sold
// compensations of the (old, new) transition atomically with the status
// write. Repeating the current status is a no-op.
func (s *Service) SetStatus(ctx context.Context, orderID string, newStatus Status) (*Order, error) {
	if _, err := ParseStatus(string(newStatus)); err != nil {
		return nil, err
	}

	o, oldStatus, err := s.orders.UpdateStatus(ctx, orderID, newStatus)
	if err != nil {
		return nil, errors.Wrapf(err, "update order %s status", orderID)
	}

	if oldStatus != newStatus {
		s.events.OrderStatusUpdated(ctx, o, oldStatus)
	}
	return o, nil
}

// VoucherPreview is the outcome of validating a voucher against a
// prospective cart without consuming a redemption.
type VoucherPreview struct {
	Valid          bool
	Message        string
	DiscountAmount int64
	FinalTotal     int64
}

// PreviewVoucher prices the cart at effective unit prices and applies the
// named voucher's rule. Nothing is mutated.
func (s *Service) PreviewVoucher(ctx context.Context, voucherName string, lines []LineRequest) (*VoucherPreview, error) {
	vc, err := s.vouchers.GetByName(ctx, voucherName)
	if err != nil {
		if errors.Is(err, voucher.ErrNotFound) {
			return &VoucherPreview{Valid: false, Message: "Voucher not found"}, nil
		}
		return nil, errors.Wrap(err, "get voucher")
	}
	if vc.RemainingRedemptions <= 0 {
		return &VoucherPreview{Valid: false, Message: "Voucher is no longer available"}, nil
	}

	var total int64
	for _, l := range lines {
		v, err := s.variants.GetByID(ctx, l.VariantID)
		if err != nil {
			if errors.Is(err, variant.ErrNotFound) {
				return &VoucherPreview{
					Valid:   false,
					Message: fmt.Sprintf("Variant with ID %s not found", l.VariantID),
				}, nil
			}
			return nil, errors.Wrapf(err, "get variant %s", l.VariantID)
		}
		total += pricing.EffectiveUnitPrice(v) * int64(l.Quantity)
	}

	if total < vc.MinOrderValue {
		return &VoucherPreview{
			Valid:      false,
			Message:    fmt.Sprintf("Order total must be at least %d to use this voucher", vc.MinOrderValue),
			FinalTotal: total,
		}, nil
	}

	discount := pricing.VoucherDiscount(total, vc)
	return &VoucherPreview{
		Valid:          true,
		Message:        "Voucher applied",
		DiscountAmount: discount,
		FinalTotal:     total - discount,
	}, nil
}

// GetForUser returns one of the user's own orders.
func (s *Service) GetForUser(ctx context.Context, userID, orderID string) (*Order, error) {
	return s.orders.GetForUser(ctx, userID, orderID)
}

// ListForUser returns a page of the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, page, pageSize int) ([]Order, int64, error) {
	return s.orders.ListForUser(ctx, userID, page, pageSize)
}

// Get returns any order by id (admin surface).
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// List returns a filtered page of all orders (admin surface).
func (s *Service) List(ctx context.Context, f ListFilter, page, pageSize int) ([]Order, int64, error) {
	return s.orders.List(ctx, f, page, pageSize)
}

// Stats returns order counts and delivered revenue totals.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.orders.Stats(ctx)
}
