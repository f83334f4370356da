package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/canastra/storefront/internal/domain/order"
	"github.com/canastra/storefront/internal/domain/voucher"
)

// ApplyVoucher handles POST /api/vouchers/apply. It previews a voucher
// against a prospective cart without consuming a redemption.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	var (
		name  string
		lines []order.LineRequest
	)
	err := decodeObj(r.Body, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "voucherName":
			name, err = d.Str()
		case "lines":
			err = d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLineRequest(d)
				if err != nil {
					return err
				}
				lines = append(lines, l)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "voucherName is required")
		return
	}

	preview, err := h.orders.PreviewVoucher(r.Context(), name, lines)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("valid", func(e *jx.Encoder) { e.Bool(preview.Valid) })
		e.Field("message", func(e *jx.Encoder) { e.Str(preview.Message) })
		e.Field("discountAmount", func(e *jx.Encoder) { e.Int64(preview.DiscountAmount) })
		e.Field("finalTotal", func(e *jx.Encoder) { e.Int64(preview.FinalTotal) })
	})
}

// ListVouchers handles GET /api/vouchers.
func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	vouchers, total, err := h.vouchers.List(r.Context(), page, pageSize)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("vouchers", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range vouchers {
					e.Obj(func(e *jx.Encoder) { encodeVoucher(e, &vouchers[i]) })
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { e.Int64(total) })
		e.Field("page", func(e *jx.Encoder) { e.Int(page) })
		e.Field("pageSize", func(e *jx.Encoder) { e.Int(pageSize) })
	})
}

// GetVoucher handles GET /api/vouchers/{id}.
func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := h.vouchers.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeVoucher(e, v) })
}

func encodeVoucher(e *jx.Encoder, v *voucher.Voucher) {
	e.Field("id", func(e *jx.Encoder) { e.Str(v.ID) })
	e.Field("name", func(e *jx.Encoder) { e.Str(v.Name) })
	e.Field("discountType", func(e *jx.Encoder) { e.Str(string(v.DiscountType)) })
	e.Field("discountValue", func(e *jx.Encoder) { e.Int64(v.DiscountValue) })
	e.Field("minOrderValue", func(e *jx.Encoder) { e.Int64(v.MinOrderValue) })
	e.Field("remainingRedemptions", func(e *jx.Encoder) { e.Int(v.RemainingRedemptions) })
}
