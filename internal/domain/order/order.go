package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/canastra/storefront/internal/domain/variant"
)

// Status is an order lifecycle state. There is no enforced transition
// graph: any status may move to any other, and stock compensations are
// keyed purely by the (old, new) pair.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// Statuses lists every valid order status.
var Statuses = []Status{
	StatusPending, StatusConfirmed, StatusProcessing,
	StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded,
}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if Status(s) == st {
			return st, nil
		}
	}
	return "", &ValidationError{Message: fmt.Sprintf("invalid status %q", s)}
}

// PaymentType enumerates the accepted payment methods. Payment itself is
// out of scope; the engine only records the choice.
type PaymentType string

const (
	PaymentCash          PaymentType = "cash"
	PaymentCreditCard    PaymentType = "credit_card"
	PaymentBankTransfer  PaymentType = "bank_transfer"
	PaymentDigitalWallet PaymentType = "digital_wallet"
)

// PaymentTypes lists every accepted payment type.
var PaymentTypes = []PaymentType{
	PaymentCash, PaymentCreditCard, PaymentBankTransfer, PaymentDigitalWallet,
}

// ParsePaymentType validates a raw payment type string.
func ParsePaymentType(s string) (PaymentType, error) {
	for _, pt := range PaymentTypes {
		if PaymentType(s) == pt {
			return pt, nil
		}
	}
	return "", &ValidationError{Message: fmt.Sprintf("invalid payment type %q", s)}
}

// Line is a single order line. It records the allocated quantity and the
// effective unit price at order time; it is never recomputed from the
// live catalog.
type Line struct {
	ProductID string
	VariantID string
	UnitPrice int64
	Quantity  int
	LineTotal int64
	Deadline  *time.Time
}

// Order is a placed customer order. Status and TotalPrice are the only
// fields mutated after creation; Lines are immutable.
type Order struct {
	ID          string
	UserID      string
	Status      Status
	PaymentType PaymentType
	Address     string
	VoucherID   string
	Lines       []Line
	TotalPrice  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StockWarning reports a line whose requested quantity could not be fully
// allocated. Advisory only; the order still succeeds with the allocated
// quantity.
type StockWarning struct {
	ProductID         string
	ProductName       string
	RequestedQuantity int
	AvailableStock    int
	AllocatedQuantity int
}

// ValidationError indicates malformed or unsatisfiable client input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	// ErrNotFound is returned when an order id resolves to nothing.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyLines is returned when a checkout request carries no lines.
	ErrEmptyLines = errors.New("order lines required")
	// ErrInsufficientStock is returned when every requested line
	// allocated zero units; no order is created.
	ErrInsufficientStock = errors.New("no items could be processed due to stock unavailability")
	// ErrStockConflict signals that a conditional stock decrement lost a
	// race between the stock read and the commit. The transaction is
	// rolled back; callers may retry the whole operation.
	ErrStockConflict = errors.New("stock changed concurrently, retry the order")
)

// ListFilter narrows admin order listings.
type ListFilter struct {
	UserID      string
	Status      Status
	PaymentType PaymentType
}

// Stats aggregates order counts and delivered revenue.
type Stats struct {
	TotalOrders      int64
	PendingOrders    int64
	ProcessingOrders int64
	DeliveredOrders  int64
	CancelledOrders  int64
	TotalRevenue     int64
	TodayRevenue     int64
	MonthRevenue     int64
}

// Repository defines persistence for orders. Create and UpdateStatus are
// transactional: every mutation they imply commits atomically or not at
// all (see the postgres implementation).
type Repository interface {
	// Create inserts the order and applies the given counter adjustments
	// (stock decrements for allocated lines) in one transaction. When the
	// order references a voucher, the voucher's remaining redemptions are
	// decremented in the same transaction, conditionally on still being
	// positive; a raced-to-zero voucher aborts with voucher.ErrExhausted.
	// A failed conditional stock decrement aborts with ErrStockConflict.
	Create(ctx context.Context, o *Order, allocations []variant.Adjustment) error

	// UpdateStatus sets the order's status and applies the stock/sold
	// compensations for the (old, new) transition atomically with the
	// status write. Returns the updated order and the status it held
	// before the write, or ErrNotFound.
	UpdateStatus(ctx context.Context, orderID string, newStatus Status) (*Order, Status, error)

	GetByID(ctx context.Context, orderID string) (*Order, error)
	GetForUser(ctx context.Context, userID, orderID string) (*Order, error)
	ListForUser(ctx context.Context, userID string, page, pageSize int) ([]Order, int64, error)
	List(ctx context.Context, f ListFilter, page, pageSize int) ([]Order, int64, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Publisher emits order lifecycle events after a successful commit.
// Implementations must be non-blocking failures-wise: event delivery is
// best effort and never fails the originating operation.
type Publisher interface {
	OrderCreated(ctx context.Context, o *Order)
	OrderStatusUpdated(ctx context.Context, o *Order, oldStatus Status)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) OrderCreated(context.Context, *Order)               {}
func (NopPublisher) OrderStatusUpdated(context.Context, *Order, Status) {}
