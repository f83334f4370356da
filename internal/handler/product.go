package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/canastra/storefront/internal/domain/product"
	"github.com/canastra/storefront/internal/domain/variant"
)

// ListProducts handles GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	products, total, err := h.products.List(r.Context(), page, pageSize)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range products {
					e.Obj(func(e *jx.Encoder) { encodeProduct(e, &products[i]) })
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { e.Int64(total) })
		e.Field("page", func(e *jx.Encoder) { e.Int(page) })
		e.Field("pageSize", func(e *jx.Encoder) { e.Int(pageSize) })
	})
}

// GetProduct handles GET /api/products/{id}. The detail read includes the
// product's variants and counts as a view.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	variants, err := h.variants.ListByProduct(r.Context(), p.ID)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	// View counting is best effort and never fails the read.
	_ = h.variants.BumpViews(r.Context(), p.ID)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProduct(e, p)
		e.Field("variants", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range variants {
					e.Obj(func(e *jx.Encoder) { encodeVariant(e, &variants[i]) })
				}
			})
		})
	})
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
	e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
	e.Field("slug", func(e *jx.Encoder) { e.Str(p.Slug) })
	e.Field("thumbnail", func(e *jx.Encoder) { e.Str(p.Thumbnail) })
	e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
}

func encodeVariant(e *jx.Encoder, v *variant.Variant) {
	e.Field("id", func(e *jx.Encoder) { e.Str(v.ID) })
	e.Field("sku", func(e *jx.Encoder) { e.Str(v.SKU) })
	e.Field("unitPrice", func(e *jx.Encoder) { e.Int64(v.UnitPrice) })
	e.Field("discountPercent", func(e *jx.Encoder) { e.Int(v.DiscountPercent) })
	e.Field("stockQuantity", func(e *jx.Encoder) { e.Int(v.StockQuantity) })
	e.Field("soldQuantity", func(e *jx.Encoder) { e.Int(v.SoldQuantity) })
}
