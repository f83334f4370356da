// Package handler exposes the storefront over HTTP.
//
// Handlers decode requests, delegate to the domain layer, and map domain
// errors onto the wire error envelope. No business rules live here.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/canastra/storefront/internal/domain/auth"
	"github.com/canastra/storefront/internal/domain/order"
	"github.com/canastra/storefront/internal/domain/product"
	"github.com/canastra/storefront/internal/domain/variant"
	"github.com/canastra/storefront/internal/domain/voucher"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler serves the public and admin HTTP API, delegating business logic
// to the order service and the catalog stores.
type Handler struct {
	orders   *order.Service
	products product.Repository
	variants variant.Store
	vouchers voucher.Store
	apikeys  auth.Repository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	orders *order.Service,
	products product.Repository,
	variants variant.Store,
	vouchers voucher.Store,
	apikeys auth.Repository,
) *Handler {
	return &Handler{
		orders:   orders,
		products: products,
		variants: variants,
		vouchers: vouchers,
		apikeys:  apikeys,
	}
}

// Routes registers every endpoint on the given mux. Admin routes are
// wrapped with API key authentication.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.PlaceOrder)
	mux.HandleFunc("GET /api/orders", h.ListMyOrders)
	mux.HandleFunc("GET /api/orders/statuses", h.ListStatuses)
	mux.HandleFunc("GET /api/orders/payment-types", h.ListPaymentTypes)
	mux.HandleFunc("GET /api/orders/{id}", h.GetMyOrder)

	mux.Handle("GET /api/admin/orders", h.requireAPIKey(h.ListOrders))
	mux.Handle("GET /api/admin/orders/stats", h.requireAPIKey(h.OrderStats))
	mux.Handle("GET /api/admin/orders/{id}", h.requireAPIKey(h.GetOrder))
	mux.Handle("PUT /api/admin/orders/{id}/status", h.requireAPIKey(h.UpdateOrderStatus))

	mux.HandleFunc("POST /api/vouchers/apply", h.ApplyVoucher)
	mux.HandleFunc("GET /api/vouchers", h.ListVouchers)
	mux.HandleFunc("GET /api/vouchers/{id}", h.GetVoucher)

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
}

// writeJSON writes a JSON object response built by fields.
func writeJSON(w http.ResponseWriter, status int, fields func(e *jx.Encoder)) {
	var e jx.Encoder
	e.Obj(fields)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the {code, message} error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
}

// pageParams reads ?page and ?pageSize with sane bounds.
func pageParams(r *http.Request) (page, pageSize int) {
	page, pageSize = 1, defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && v > 0 {
		pageSize = min(v, maxPageSize)
	}
	return page, pageSize
}
