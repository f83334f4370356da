package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/canastra/storefront/internal/domain/order"
	"github.com/canastra/storefront/internal/domain/product"
	"github.com/canastra/storefront/internal/domain/variant"
	"github.com/canastra/storefront/internal/domain/voucher"
)

// userHeader carries the caller identity until real auth lands upstream.
const userHeader = "X-User-ID"

// PlaceOrder handles POST /api/orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing "+userHeader+" header")
		return
	}

	req, err := decodePlaceOrderRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.UserID = userID

	result, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Field("orderId", func(e *jx.Encoder) { e.Str(result.Order.ID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(result.Order.Status)) })
		e.Field("totalPrice", func(e *jx.Encoder) { e.Int64(result.Order.TotalPrice) })
		e.Field("discountAmount", func(e *jx.Encoder) { e.Int64(result.DiscountAmount) })
		e.Field("requestedTotal", func(e *jx.Encoder) { e.Int64(result.RequestedTotal) })
		e.Field("finalAmount", func(e *jx.Encoder) { e.Int64(result.FinalAmount) })
		e.Field("message", func(e *jx.Encoder) { e.Str(result.Message) })
		if len(result.StockWarnings) > 0 {
			e.Field("stockWarnings", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, sw := range result.StockWarnings {
						e.Obj(func(e *jx.Encoder) {
							e.Field("productId", func(e *jx.Encoder) { e.Str(sw.ProductID) })
							e.Field("productName", func(e *jx.Encoder) { e.Str(sw.ProductName) })
							e.Field("requestedQuantity", func(e *jx.Encoder) { e.Int(sw.RequestedQuantity) })
							e.Field("availableStock", func(e *jx.Encoder) { e.Int(sw.AvailableStock) })
							e.Field("allocatedQuantity", func(e *jx.Encoder) { e.Int(sw.AllocatedQuantity) })
						})
					}
				})
			})
		}
	})
}

// GetMyOrder handles GET /api/orders/{id}.
func (h *Handler) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing "+userHeader+" header")
		return
	}

	o, err := h.orders.GetForUser(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ListMyOrders handles GET /api/orders.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing "+userHeader+" header")
		return
	}

	page, pageSize := pageParams(r)
	orders, total, err := h.orders.ListForUser(r.Context(), userID, page, pageSize)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeOrderPage(w, orders, total, page, pageSize)
}

// ListOrders handles GET /api/admin/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := order.ListFilter{
		UserID:      q.Get("userId"),
		Status:      order.Status(q.Get("status")),
		PaymentType: order.PaymentType(q.Get("paymentType")),
	}
	if f.Status != "" {
		if _, err := order.ParseStatus(string(f.Status)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if f.PaymentType != "" {
		if _, err := order.ParsePaymentType(string(f.PaymentType)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	page, pageSize := pageParams(r)
	orders, total, err := h.orders.List(r.Context(), f, page, pageSize)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeOrderPage(w, orders, total, page, pageSize)
}

// GetOrder handles GET /api/admin/orders/{id}. The admin view enriches
// each line with the variant's current stock.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}

	// Stock enrichment is best effort; a vanished variant just omits it.
	stock := make(map[string]int, len(o.Lines))
	for _, l := range o.Lines {
		if v, err := h.variants.GetByID(r.Context(), l.VariantID); err == nil {
			stock[l.VariantID] = v.StockQuantity
		}
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrderWithStock(e, o, stock) })
}

// UpdateOrderStatus handles PUT /api/admin/orders/{id}/status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var status string
	if err := decodeObj(r.Body, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		var err error
		status, err = d.Str()
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	o, err := h.orders.SetStatus(r.Context(), r.PathValue("id"), order.Status(status))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// OrderStats handles GET /api/admin/orders/stats.
func (h *Handler) OrderStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.orders.Stats(r.Context())
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("totalOrders", func(e *jx.Encoder) { e.Int64(st.TotalOrders) })
		e.Field("pendingOrders", func(e *jx.Encoder) { e.Int64(st.PendingOrders) })
		e.Field("processingOrders", func(e *jx.Encoder) { e.Int64(st.ProcessingOrders) })
		e.Field("deliveredOrders", func(e *jx.Encoder) { e.Int64(st.DeliveredOrders) })
		e.Field("cancelledOrders", func(e *jx.Encoder) { e.Int64(st.CancelledOrders) })
		e.Field("totalRevenue", func(e *jx.Encoder) { e.Int64(st.TotalRevenue) })
		e.Field("todayRevenue", func(e *jx.Encoder) { e.Int64(st.TodayRevenue) })
		e.Field("monthRevenue", func(e *jx.Encoder) { e.Int64(st.MonthRevenue) })
	})
}

// ListStatuses handles GET /api/orders/statuses.
func (h *Handler) ListStatuses(w http.ResponseWriter, _ *http.Request) {
	values := make([]string, len(order.Statuses))
	for i, s := range order.Statuses {
		values[i] = string(s)
	}
	writeStringList(w, "statuses", values)
}

// ListPaymentTypes handles GET /api/orders/payment-types.
func (h *Handler) ListPaymentTypes(w http.ResponseWriter, _ *http.Request) {
	values := make([]string, len(order.PaymentTypes))
	for i, pt := range order.PaymentTypes {
		values[i] = string(pt)
	}
	writeStringList(w, "paymentTypes", values)
}

func writeStringList(w http.ResponseWriter, field string, values []string) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field(field, func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, v := range values {
					e.Str(v)
				}
			})
		})
	})
}

func writeOrderPage(w http.ResponseWriter, orders []order.Order, total int64, page, pageSize int) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range orders {
					e.Obj(func(e *jx.Encoder) { encodeOrder(e, &orders[i]) })
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { e.Int64(total) })
		e.Field("page", func(e *jx.Encoder) { e.Int(page) })
		e.Field("pageSize", func(e *jx.Encoder) { e.Int(pageSize) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	encodeOrderWithStock(e, o, nil)
}

// encodeOrderWithStock encodes an order; when stock is non-nil, every
// line whose variant appears in it carries a currentStock field.
func encodeOrderWithStock(e *jx.Encoder, o *order.Order, stock map[string]int) {
	e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
	e.Field("userId", func(e *jx.Encoder) { e.Str(o.UserID) })
	e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
	e.Field("paymentType", func(e *jx.Encoder) { e.Str(string(o.PaymentType)) })
	e.Field("address", func(e *jx.Encoder) { e.Str(o.Address) })
	if o.VoucherID != "" {
		e.Field("voucherId", func(e *jx.Encoder) { e.Str(o.VoucherID) })
	}
	e.Field("totalPrice", func(e *jx.Encoder) { e.Int64(o.TotalPrice) })
	e.Field("lines", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, l := range o.Lines {
				e.Obj(func(e *jx.Encoder) {
					e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
					e.Field("variantId", func(e *jx.Encoder) { e.Str(l.VariantID) })
					e.Field("unitPrice", func(e *jx.Encoder) { e.Int64(l.UnitPrice) })
					e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
					e.Field("lineTotal", func(e *jx.Encoder) { e.Int64(l.LineTotal) })
					if s, ok := stock[l.VariantID]; ok {
						e.Field("currentStock", func(e *jx.Encoder) { e.Int(s) })
					}
					if l.Deadline != nil {
						e.Field("deadline", func(e *jx.Encoder) { e.Str(l.Deadline.Format(time.RFC3339)) })
					}
				})
			}
		})
	})
	e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
	e.Field("updatedAt", func(e *jx.Encoder) { e.Str(o.UpdatedAt.Format(time.RFC3339)) })
}

// decodeObj decodes a single JSON object from r, dispatching each key to fn.
func decodeObj(r io.Reader, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return jx.DecodeBytes(body).Obj(fn)
}

func decodePlaceOrderRequest(r io.Reader) (order.PlaceOrderRequest, error) {
	var req order.PlaceOrderRequest
	err := decodeObj(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "address":
			req.Address, err = d.Str()
		case "paymentType":
			var s string
			if s, err = d.Str(); err == nil {
				req.PaymentType, err = order.ParsePaymentType(s)
			}
		case "voucherId":
			req.VoucherID, err = d.Str()
		case "lines":
			err = d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLineRequest(d)
				if err != nil {
					return err
				}
				req.Lines = append(req.Lines, l)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func decodeLineRequest(d *jx.Decoder) (order.LineRequest, error) {
	var l order.LineRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "variantId":
			l.VariantID, err = d.Str()
		case "quantity":
			l.Quantity, err = d.Int()
		case "deadline":
			var s string
			if s, err = d.Str(); err == nil {
				var t time.Time
				if t, err = time.Parse(time.RFC3339, s); err == nil {
					l.Deadline = &t
				}
			}
		default:
			err = d.Skip()
		}
		return err
	})
	return l, err
}

// writeOrderError maps domain errors onto the wire error envelope.
func writeOrderError(w http.ResponseWriter, err error) {
	var vErr *order.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Message)
	case errors.Is(err, order.ErrEmptyLines),
		errors.Is(err, order.ErrInsufficientStock),
		errors.Is(err, voucher.ErrMinOrderNotMet):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, variant.ErrNotFound),
		errors.Is(err, voucher.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrStockConflict),
		errors.Is(err, voucher.ErrExhausted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
