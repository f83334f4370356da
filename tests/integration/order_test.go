//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"testing"
)

const testAPIKey = "integration-test-key"

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func adminHeaders() map[string]string {
	return map[string]string{"X-API-Key": testAPIKey}
}

// seededVariant returns the first variant of the idx-th seeded product.
// Tests that drain stock use distinct products so they cannot starve
// each other.
func seededVariant(t *testing.T, idx int) variantResponse {
	t.Helper()

	resp := doGet(t, "/api/products")
	defer resp.Body.Close()
	list := decodeJSON[productListResponse](t, resp)
	if len(list.Products) <= idx {
		t.Fatalf("want at least %d seeded products, got %d", idx+1, len(list.Products))
	}

	detail := doGet(t, "/api/products/"+list.Products[idx].ID)
	defer detail.Body.Close()
	p := decodeJSON[productResponse](t, detail)
	if len(p.Variants) == 0 {
		t.Fatal("no variants on seeded product")
	}
	return p.Variants[0]
}

func TestPlaceOrder_MissingUser(t *testing.T) {
	v := seededVariant(t, 0)
	resp := doRequest(t, http.MethodPost, "/api/orders", placeOrderRequest{
		PaymentType: "cash",
		Lines:       []lineRequest{{VariantID: v.ID, Quantity: 1}},
	}, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_EmptyLines(t *testing.T) {
	resp := doRequest(t, http.MethodPost, "/api/orders", placeOrderRequest{
		PaymentType: "cash",
		Lines:       []lineRequest{},
	}, asUser("user-empty"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_UnknownVariant(t *testing.T) {
	resp := doRequest(t, http.MethodPost, "/api/orders", placeOrderRequest{
		PaymentType: "cash",
		Lines:       []lineRequest{{VariantID: "00000000-0000-0000-0000-000000000000", Quantity: 1}},
	}, asUser("user-unknown"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMalformedIDsReturnNotFound(t *testing.T) {
	// Ids that cannot be uuids must behave exactly like unknown ids.
	place := doRequest(t, http.MethodPost, "/api/orders", placeOrderRequest{
		PaymentType: "cash",
		Lines:       []lineRequest{{VariantID: "abc", Quantity: 1}},
	}, asUser("user-malformed"))
	place.Body.Close()
	if place.StatusCode != http.StatusNotFound {
		t.Errorf("place with malformed variant id: expected 404, got %d", place.StatusCode)
	}

	get := doRequest(t, http.MethodGet, "/api/orders/abc", nil, asUser("user-malformed"))
	get.Body.Close()
	if get.StatusCode != http.StatusNotFound {
		t.Errorf("get order by malformed id: expected 404, got %d", get.StatusCode)
	}

	product := doGet(t, "/api/products/123")
	product.Body.Close()
	if product.StatusCode != http.StatusNotFound {
		t.Errorf("get product by malformed id: expected 404, got %d", product.StatusCode)
	}

	update := doRequest(t, http.MethodPut, "/api/admin/orders/not-a-uuid/status",
		map[string]string{"status": "cancelled"}, adminHeaders())
	update.Body.Close()
	if update.StatusCode != http.StatusNotFound {
		t.Errorf("status update by malformed id: expected 404, got %d", update.StatusCode)
	}
}

func TestPlaceOrder_Success(t *testing.T) {
	v := seededVariant(t, 0)

	resp := doRequest(t, http.MethodPost, "/api/orders", placeOrderRequest{
		Address:     "1 Main St",
		PaymentType: "credit_card",
		Lines:       []lineRequest{{VariantID: v.ID, Quantity: 2}},
	}, asUser("user-success"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	placed := decodeJSON[placeOrderResponse](t, resp)
	if !uuidPattern.MatchString(placed.OrderID) {
		t.Errorf("order id %q is not a uuid", placed.OrderID)
	}
	if placed.Status != "pending" {
		t.Errorf("status: got %q, want pending", placed.Status)
	}

	effective := v.UnitPrice - v.UnitPrice*int64(v.DiscountPercent)/100
	want := 2 * effective
	if placed.FinalAmount != want {
		t.Errorf("finalAmount: got %d, want %d", placed.FinalAmount, want)
	}
	if len(placed.StockWarnings) != 0 {
		t.Errorf("unexpected stock warnings: %+v", placed.StockWarnings)
	}

	// Stock must have decreased by the allocated quantity.
	after := seededVariant(t, 0)
	if after.StockQuantity != v.StockQuantity-2 {
		t.Errorf("stock: got %d, want %d", after.StockQuantity, v.StockQuantity-2)
	}
}

func TestPlaceOrder_PartialAllocation(t *testing.T) {
	v := seededVariant(t, 1)
	requested := v.StockQuantity + 5

	resp := doRequest(t, http.MethodPost, "/api/orders", placeOrderRequest{
		PaymentType: "cash",
		Lines:       []lineRequest{{VariantID: v.ID, Quantity: requested}},
	}, asUser("user-partial"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	placed := decodeJSON[placeOrderResponse](t, resp)
	if len(placed.StockWarnings) != 1 {
		t.Fatalf("expected 1 stock warning, got %d", len(placed.StockWarnings))
	}
	w := placed.StockWarnings[0]
	if w.RequestedQuantity != requested || w.AllocatedQuantity != v.StockQuantity {
		t.Errorf("warning: got %+v", w)
	}
	if placed.RequestedTotal <= placed.FinalAmount {
		t.Errorf("requestedTotal %d should exceed finalAmount %d", placed.RequestedTotal, placed.FinalAmount)
	}

	// The variant is now fully drained; ordering again must fail.
	resp2 := doRequest(t, http.MethodPost, "/api/orders", placeOrderRequest{
		PaymentType: "cash",
		Lines:       []lineRequest{{VariantID: v.ID, Quantity: 1}},
	}, asUser("user-partial"))
	defer resp2.Body.Close()

	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for drained variant, got %d", resp2.StatusCode)
	}
}

func TestPlaceOrder_ConcurrentNoOversell(t *testing.T) {
	// Find a variant with known stock and hammer it concurrently. The sum
	// of allocated quantities must never exceed the starting stock.
	v := seededVariant(t, 2)
	if v.StockQuantity == 0 {
		t.Skip("variant drained by earlier tests")
	}

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		allocated int
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := doRequest(t, http.MethodPost, "/api/orders", placeOrderRequest{
				PaymentType: "cash",
				Lines:       []lineRequest{{VariantID: v.ID, Quantity: v.StockQuantity}},
			}, asUser(fmt.Sprintf("user-conc-%d", i)))
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				placed := decodeJSON[placeOrderResponse](t, resp)
				qty := v.StockQuantity
				if len(placed.StockWarnings) == 1 {
					qty = placed.StockWarnings[0].AllocatedQuantity
				}
				mu.Lock()
				allocated += qty
				mu.Unlock()
			case http.StatusBadRequest, http.StatusConflict:
				// Out of stock or lost the commit race; both acceptable.
			default:
				t.Errorf("unexpected status %d", resp.StatusCode)
			}
		}(i)
	}
	wg.Wait()

	if allocated > v.StockQuantity {
		t.Errorf("oversold: allocated %d of %d stock", allocated, v.StockQuantity)
	}

	after := seededVariant(t, 2)
	if after.StockQuantity < 0 {
		t.Errorf("stock went negative: %d", after.StockQuantity)
	}
}

func TestOrderLifecycle(t *testing.T) {
	v := seededVariant(t, 0)
	if v.StockQuantity < 1 {
		t.Skip("variant drained by earlier tests")
	}

	resp := doRequest(t, http.MethodPost, "/api/orders", placeOrderRequest{
		PaymentType: "bank_transfer",
		Lines:       []lineRequest{{VariantID: v.ID, Quantity: 1}},
	}, asUser("user-lifecycle"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place: expected 201, got %d", resp.StatusCode)
	}
	placed := decodeJSON[placeOrderResponse](t, resp)

	stockAfterPlace := seededVariant(t, 0).StockQuantity

	// Admin transitions require the API key.
	noAuth := doRequest(t, http.MethodPut, "/api/admin/orders/"+placed.OrderID+"/status",
		map[string]string{"status": "cancelled"}, nil)
	noAuth.Body.Close()
	if noAuth.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", noAuth.StatusCode)
	}

	// Cancel restores stock.
	cancel := doRequest(t, http.MethodPut, "/api/admin/orders/"+placed.OrderID+"/status",
		map[string]string{"status": "cancelled"}, adminHeaders())
	defer cancel.Body.Close()
	if cancel.StatusCode != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", cancel.StatusCode)
	}
	if got := seededVariant(t, 0).StockQuantity; got != stockAfterPlace+1 {
		t.Errorf("stock after cancel: got %d, want %d", got, stockAfterPlace+1)
	}

	// Reactivating re-decrements stock.
	reactivate := doRequest(t, http.MethodPut, "/api/admin/orders/"+placed.OrderID+"/status",
		map[string]string{"status": "processing"}, adminHeaders())
	defer reactivate.Body.Close()
	if reactivate.StatusCode != http.StatusOK {
		t.Fatalf("reactivate: expected 200, got %d", reactivate.StatusCode)
	}
	if got := seededVariant(t, 0).StockQuantity; got != stockAfterPlace {
		t.Errorf("stock after reactivate: got %d, want %d", got, stockAfterPlace)
	}

	// Deliver; repeated delivery is a no-op.
	for range 2 {
		deliver := doRequest(t, http.MethodPut, "/api/admin/orders/"+placed.OrderID+"/status",
			map[string]string{"status": "delivered"}, adminHeaders())
		deliver.Body.Close()
		if deliver.StatusCode != http.StatusOK {
			t.Fatalf("deliver: expected 200, got %d", deliver.StatusCode)
		}
	}

	// The owner sees the final state.
	get := doRequest(t, http.MethodGet, "/api/orders/"+placed.OrderID, nil, asUser("user-lifecycle"))
	defer get.Body.Close()
	o := decodeJSON[orderResponse](t, get)
	if o.Status != "delivered" {
		t.Errorf("final status: got %q, want delivered", o.Status)
	}

	// A different user cannot.
	other := doRequest(t, http.MethodGet, "/api/orders/"+placed.OrderID, nil, asUser("somebody-else"))
	other.Body.Close()
	if other.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for other user, got %d", other.StatusCode)
	}
}

func TestVoucherFlow(t *testing.T) {
	v := seededVariant(t, 0)
	if v.StockQuantity < 2 {
		t.Skip("variant drained by earlier tests")
	}

	// Preview is non-mutating.
	preview := doRequest(t, http.MethodPost, "/api/vouchers/apply", map[string]any{
		"voucherName": "WELCOME10",
		"lines":       []lineRequest{{VariantID: v.ID, Quantity: 2}},
	}, nil)
	defer preview.Body.Close()
	if preview.StatusCode != http.StatusOK {
		t.Fatalf("preview: expected 200, got %d", preview.StatusCode)
	}
	p := decodeJSON[voucherPreviewResponse](t, preview)
	if !p.Valid {
		t.Fatalf("preview invalid: %s", p.Message)
	}
	if p.DiscountAmount == 0 {
		t.Error("expected non-zero discount")
	}

	// An unknown voucher previews as invalid, not as an error.
	bad := doRequest(t, http.MethodPost, "/api/vouchers/apply", map[string]any{
		"voucherName": "NO-SUCH-CODE",
		"lines":       []lineRequest{{VariantID: v.ID, Quantity: 1}},
	}, nil)
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", bad.StatusCode)
	}
	if decodeJSON[voucherPreviewResponse](t, bad).Valid {
		t.Error("unknown voucher should be invalid")
	}
}

// voucherByName looks a seeded voucher up through the public listing.
func voucherByName(t *testing.T, name string) voucherResponse {
	t.Helper()

	resp := doGet(t, "/api/vouchers?pageSize=100")
	defer resp.Body.Close()
	list := decodeJSON[voucherListResponse](t, resp)
	for _, vc := range list.Vouchers {
		if vc.Name == name {
			return vc
		}
	}
	t.Fatalf("voucher %s not seeded", name)
	return voucherResponse{}
}

func TestVoucherRedemption(t *testing.T) {
	v := seededVariant(t, 0)
	if v.StockQuantity < 1 {
		t.Skip("variant drained by earlier tests")
	}
	vc := voucherByName(t, "WELCOME10")

	resp := doRequest(t, http.MethodPost, "/api/orders", placeOrderRequest{
		PaymentType: "cash",
		VoucherID:   vc.ID,
		Lines:       []lineRequest{{VariantID: v.ID, Quantity: 1}},
	}, asUser("user-redeem"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	placed := decodeJSON[placeOrderResponse](t, resp)
	effective := v.UnitPrice - v.UnitPrice*int64(v.DiscountPercent)/100
	wantDiscount := effective * vc.DiscountValue / 100
	if placed.DiscountAmount != wantDiscount {
		t.Errorf("discountAmount: got %d, want %d", placed.DiscountAmount, wantDiscount)
	}
	if placed.FinalAmount != effective-wantDiscount {
		t.Errorf("finalAmount: got %d, want %d", placed.FinalAmount, effective-wantDiscount)
	}

	// The commit must have consumed exactly one redemption.
	after := voucherByName(t, "WELCOME10")
	if after.RemainingRedemptions != vc.RemainingRedemptions-1 {
		t.Errorf("remaining redemptions: got %d, want %d",
			after.RemainingRedemptions, vc.RemainingRedemptions-1)
	}
}

func TestVoucherLastRedemptionRace(t *testing.T) {
	v := seededVariant(t, 0)
	vc := voucherByName(t, "LASTCHANCE")
	if vc.RemainingRedemptions != 1 {
		t.Fatalf("LASTCHANCE remaining redemptions: got %d, want 1", vc.RemainingRedemptions)
	}
	if v.StockQuantity < 6 {
		t.Skip("variant drained by earlier tests")
	}

	// Race the last redemption: exactly one checkout may win, the rest
	// must abort without touching stock.
	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := doRequest(t, http.MethodPost, "/api/orders", placeOrderRequest{
				PaymentType: "cash",
				VoucherID:   vc.ID,
				Lines:       []lineRequest{{VariantID: v.ID, Quantity: 1}},
			}, asUser(fmt.Sprintf("user-race-%d", i)))
			defer resp.Body.Close()

			mu.Lock()
			defer mu.Unlock()
			switch resp.StatusCode {
			case http.StatusCreated:
				created++
			case http.StatusConflict:
				conflicts++
			default:
				t.Errorf("unexpected status %d", resp.StatusCode)
			}
		}(i)
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("winners: got %d, want exactly 1", created)
	}
	if conflicts != workers-1 {
		t.Errorf("conflicts: got %d, want %d", conflicts, workers-1)
	}
	if after := voucherByName(t, "LASTCHANCE"); after.RemainingRedemptions != 0 {
		t.Errorf("remaining redemptions: got %d, want 0", after.RemainingRedemptions)
	}

	// Losing transactions roll back their stock decrements too.
	if got := seededVariant(t, 0).StockQuantity; got != v.StockQuantity-1 {
		t.Errorf("stock: got %d, want %d", got, v.StockQuantity-1)
	}
}

func TestAdminStats(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/admin/orders/stats", nil, adminHeaders())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	stats := decodeJSON[map[string]int64](t, resp)
	if stats["totalOrders"] == 0 {
		t.Error("expected orders from earlier tests")
	}
}

func TestReferenceLists(t *testing.T) {
	resp := doGet(t, "/api/orders/statuses")
	defer resp.Body.Close()
	statuses := decodeJSON[map[string][]string](t, resp)
	if len(statuses["statuses"]) != 7 {
		t.Errorf("statuses: got %d, want 7", len(statuses["statuses"]))
	}

	resp2 := doGet(t, "/api/orders/payment-types")
	defer resp2.Body.Close()
	types := decodeJSON[map[string][]string](t, resp2)
	if len(types["paymentTypes"]) != 4 {
		t.Errorf("payment types: got %d, want 4", len(types["paymentTypes"]))
	}
}
