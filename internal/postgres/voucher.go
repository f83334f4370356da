package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canastra/storefront/internal/domain/voucher"
)

const (
	voucherColumns = `id, name, discount_type, discount_value, min_order_value, remaining_redemptions`

	getVoucherByIDSQL   = `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1`
	getVoucherByNameSQL = `SELECT ` + voucherColumns + ` FROM vouchers WHERE UPPER(name) = UPPER($1)`

	listVouchersSQL  = `SELECT ` + voucherColumns + ` FROM vouchers ORDER BY name LIMIT $1 OFFSET $2`
	countVouchersSQL = `SELECT count(*) FROM vouchers`

	// redeemVoucherSQL consumes one redemption, conditionally on any
	// being left. Matching zero rows means the voucher raced to zero
	// since the caller's read.
	redeemVoucherSQL = `UPDATE vouchers
		SET remaining_redemptions = remaining_redemptions - 1, updated_at = now()
		WHERE id = $1 AND remaining_redemptions > 0`
)

var _ voucher.Store = (*VoucherStore)(nil)

// VoucherStore implements voucher.Store backed by PostgreSQL.
type VoucherStore struct {
	pool *pgxpool.Pool
}

// NewVoucherStore returns a VoucherStore that uses the given pool.
func NewVoucherStore(pool *pgxpool.Pool) *VoucherStore {
	return &VoucherStore{pool: pool}
}

// GetByID returns a voucher by its identifier.
func (s *VoucherStore) GetByID(ctx context.Context, id string) (*voucher.Voucher, error) {
	if uuid.Validate(id) != nil {
		return nil, voucher.ErrNotFound
	}
	return s.getOne(ctx, getVoucherByIDSQL, id)
}

// GetByName looks up a voucher by its unique name (case-insensitive).
func (s *VoucherStore) GetByName(ctx context.Context, name string) (*voucher.Voucher, error) {
	return s.getOne(ctx, getVoucherByNameSQL, name)
}

// List returns one page of vouchers ordered by name, plus the total count.
func (s *VoucherStore) List(ctx context.Context, page, pageSize int) ([]voucher.Voucher, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, countVouchersSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting vouchers: %w", err)
	}

	rows, err := s.pool.Query(ctx, listVouchersSQL, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("listing vouchers: %w", err)
	}
	vouchers, err := pgx.CollectRows(rows, scanVoucher)
	if err != nil {
		return nil, 0, fmt.Errorf("listing vouchers: %w", err)
	}
	return vouchers, total, nil
}

func (s *VoucherStore) getOne(ctx context.Context, sql, arg string) (*voucher.Voucher, error) {
	rows, err := s.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("finding voucher %q: %w", arg, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrNotFound
		}
		return nil, fmt.Errorf("finding voucher %q: %w", arg, err)
	}
	return &v, nil
}

// redeemVoucher consumes one redemption inside tx. It reports whether a
// redemption was actually consumed.
func redeemVoucher(ctx context.Context, tx pgx.Tx, voucherID string) (bool, error) {
	tag, err := tx.Exec(ctx, redeemVoucherSQL, voucherID)
	if err != nil {
		return false, fmt.Errorf("redeeming voucher %q: %w", voucherID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanVoucher(row pgx.CollectableRow) (voucher.Voucher, error) {
	var (
		v            voucher.Voucher
		discountType string
	)
	err := row.Scan(
		&v.ID, &v.Name, &discountType, &v.DiscountValue,
		&v.MinOrderValue, &v.RemainingRedemptions,
	)
	v.DiscountType = voucher.DiscountType(discountType)
	return v, err
}
