package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canastra/storefront/internal/domain/order"
	"github.com/canastra/storefront/internal/domain/variant"
	"github.com/canastra/storefront/internal/domain/voucher"
)

const (
	insertOrderSQL = `INSERT INTO orders
		(id, user_id, status, payment_type, address, voucher_id, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	insertOrderLineSQL = `INSERT INTO order_lines
		(order_id, line_no, product_id, variant_id, unit_price, quantity, line_total, deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	orderColumns = `id, user_id, status, payment_type, address,
		COALESCE(voucher_id::text, ''), total_price, created_at, updated_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderForUpdateSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	getOrderForUserSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`

	getOrderLinesSQL = `SELECT order_id, product_id, variant_id, unit_price, quantity, line_total, deadline
		FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, line_no`

	setOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

	orderStatsSQL = `SELECT
		count(*),
		count(*) FILTER (WHERE status = 'pending'),
		count(*) FILTER (WHERE status = 'processing'),
		count(*) FILTER (WHERE status = 'delivered'),
		count(*) FILTER (WHERE status = 'cancelled'),
		COALESCE(sum(total_price) FILTER (WHERE status = 'delivered'), 0),
		COALESCE(sum(total_price) FILTER (WHERE status = 'delivered' AND created_at >= date_trunc('day', now())), 0),
		COALESCE(sum(total_price) FILTER (WHERE status = 'delivered' AND created_at >= date_trunc('month', now())), 0)
		FROM orders`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order, its lines, every scheduled stock decrement,
// and at most one voucher redemption as a single transaction. The
// decrements are conditional at apply time: a variant whose stock moved
// under us since the caller's read aborts with order.ErrStockConflict,
// and a voucher raced to zero aborts with voucher.ErrExhausted. Either
// way nothing is left behind.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, allocations []variant.Adjustment) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var voucherID *string
		if o.VoucherID != "" {
			voucherID = &o.VoucherID
		}

		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.UserID, string(o.Status), string(o.PaymentType), o.Address,
			voucherID, o.TotalPrice, o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		for i, l := range o.Lines {
			if _, err := tx.Exec(ctx, insertOrderLineSQL,
				o.ID, i+1, l.ProductID, l.VariantID, l.UnitPrice, l.Quantity, l.LineTotal, l.Deadline,
			); err != nil {
				return fmt.Errorf("inserting order line %d: %w", i+1, err)
			}
		}

		for _, adj := range allocations {
			ok, err := applyAdjustment(ctx, tx, adj)
			if err != nil {
				return err
			}
			if !ok {
				return order.ErrStockConflict
			}
		}

		if o.VoucherID != "" {
			ok, err := redeemVoucher(ctx, tx, o.VoucherID)
			if err != nil {
				return err
			}
			if !ok {
				return voucher.ErrExhausted
			}
		}

		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "create order %s", o.ID)
	}
	return nil
}

// UpdateStatus writes the new status and applies the stock/sold
// compensations the (old, new) transition implies, all in one
// transaction. The order row is locked for the duration so concurrent
// transitions serialize and each compensation applies exactly once.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, newStatus order.Status) (*order.Order, order.Status, error) {
	if uuid.Validate(orderID) != nil {
		return nil, "", order.ErrNotFound
	}
	var (
		updated   *order.Order
		oldStatus order.Status
	)
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, getOrderForUpdateSQL, orderID)
		if err != nil {
			return fmt.Errorf("locking order: %w", err)
		}
		o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order: %w", err)
		}

		if err := attachLines(ctx, tx, []*order.Order{&o}); err != nil {
			return err
		}
		oldStatus = o.Status

		for _, adj := range order.AdjustmentsFor(oldStatus, newStatus, o.Lines) {
			ok, err := applyAdjustment(ctx, tx, adj)
			if err != nil {
				return err
			}
			if !ok {
				return order.ErrStockConflict
			}
		}

		if _, err := tx.Exec(ctx, setOrderStatusSQL, orderID, string(newStatus)); err != nil {
			return fmt.Errorf("updating status: %w", err)
		}

		o.Status = newStatus
		o.UpdatedAt = time.Now().UTC()
		updated = &o
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return updated, oldStatus, nil
}

// GetByID returns any order with its lines.
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	if uuid.Validate(orderID) != nil {
		return nil, order.ErrNotFound
	}
	return r.getOne(ctx, getOrderSQL, orderID)
}

// GetForUser returns an order only if it belongs to the given user.
func (r *OrderRepository) GetForUser(ctx context.Context, userID, orderID string) (*order.Order, error) {
	if uuid.Validate(orderID) != nil {
		return nil, order.ErrNotFound
	}
	return r.getOne(ctx, getOrderForUserSQL, orderID, userID)
}

// ListForUser returns one page of the user's orders, newest first.
func (r *OrderRepository) ListForUser(ctx context.Context, userID string, page, pageSize int) ([]order.Order, int64, error) {
	return r.list(ctx, order.ListFilter{UserID: userID}, page, pageSize)
}

// List returns one filtered page of all orders, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter, page, pageSize int) ([]order.Order, int64, error) {
	return r.list(ctx, f, page, pageSize)
}

// Stats aggregates order counts and delivered revenue in one query.
func (r *OrderRepository) Stats(ctx context.Context) (*order.Stats, error) {
	var st order.Stats
	err := r.pool.QueryRow(ctx, orderStatsSQL).Scan(
		&st.TotalOrders, &st.PendingOrders, &st.ProcessingOrders,
		&st.DeliveredOrders, &st.CancelledOrders,
		&st.TotalRevenue, &st.TodayRevenue, &st.MonthRevenue,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating order stats: %w", err)
	}
	return &st, nil
}

func (r *OrderRepository) getOne(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	if err := attachLines(ctx, r.pool, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) list(ctx context.Context, f order.ListFilter, page, pageSize int) ([]order.Order, int64, error) {
	where := "TRUE"
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(" AND %s = $%d", cond, len(args))
	}
	if f.UserID != "" {
		add("user_id", f.UserID)
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	if f.PaymentType != "" {
		add("payment_type", string(f.PaymentType))
	}

	var total int64
	countSQL := `SELECT count(*) FROM orders WHERE ` + where
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	listSQL := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}

	refs := make([]*order.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := attachLines(ctx, r.pool, refs); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// querier is the subset of pgx.Tx and pgxpool.Pool used by attachLines.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// attachLines loads the lines of every given order in one query.
func attachLines(ctx context.Context, q querier, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := q.Query(ctx, getOrderLinesSQL, ids)
	if err != nil {
		return fmt.Errorf("loading order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			l       order.Line
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.VariantID, &l.UnitPrice, &l.Quantity, &l.LineTotal, &l.Deadline); err != nil {
			return fmt.Errorf("scanning order line: %w", err)
		}
		byID[orderID].Lines = append(byID[orderID].Lines, l)
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		status      string
		paymentType string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &status, &paymentType, &o.Address,
		&o.VoucherID, &o.TotalPrice, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	o.PaymentType = order.PaymentType(paymentType)
	return o, err
}
