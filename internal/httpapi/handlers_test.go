package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/pricing"
	"warungpos/backend/internal/service"
	"warungpos/backend/internal/store/memory"
)

// newTestAPI builds a full API around the seeded in-memory store so
// handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.Noop{}, nil, zerolog.Nop(), time.Minute)
	auth := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, repo)
	return New(svc, auth, nil, zerolog.Nop(), nil)
}

func tokenFor(t *testing.T, api *API, username, role string) string {
	t.Helper()
	token, err := api.auth.sign(username, role, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/healthz", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestLoginAndReject(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.AccessToken == "" || body.Role != domain.RoleAdmin {
		t.Fatalf("unexpected login response: %+v", body)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCheckoutEndpoint(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := tokenFor(t, api, "cashier", domain.RoleCashier)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 1, Qty: 10}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !pricing.EqualWithin(resp.GrandTotal, 31500) {
		t.Fatalf("expected grand total 31500, got %.2f", resp.GrandTotal)
	}
	if resp.Sale.Receipt == "" {
		t.Fatalf("expected a receipt identifier")
	}
}

func TestCheckoutRequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/checkout", "", domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 1, Qty: 1}},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCheckoutInsufficientStockConflict(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "cashier", domain.RoleCashier)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 2, Qty: 41}},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Details struct {
			ProductID int64 `json:"product_id"`
			Available int   `json:"available"`
			Requested int   `json:"requested"`
		} `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Details.ProductID != 2 || body.Details.Available != 40 || body.Details.Requested != 41 {
		t.Fatalf("unexpected conflict details: %+v", body.Details)
	}
}

func TestCheckoutManualPriceAboveBase(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "cashier", domain.RoleCashier)
	manual := 5000.0

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 1, Qty: 2, ManualPrice: &manual}},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutUnknownProduct(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "cashier", domain.RoleCashier)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 999, Qty: 1}},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestVoidSaleEndpointIsAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashier := tokenFor(t, api, "cashier", domain.RoleCashier)
	admin := tokenFor(t, api, "admin", domain.RoleAdmin)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", cashier, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 5, Qty: 4}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	voidPath := fmt.Sprintf("/api/v1/sales/%d/void", resp.Sale.ID)

	rec = doJSON(t, handler, http.MethodPost, voidPath, cashier, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier void, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, voidPath, admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin void, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var voided domain.Sale
	if err := json.NewDecoder(rec.Body).Decode(&voided); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !voided.Voided {
		t.Fatalf("expected sale to be voided")
	}

	// Re-voiding is a no-op, not an error.
	rec = doJSON(t, handler, http.MethodPost, voidPath, admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat void, got %d", rec.Code)
	}
}

func TestBarcodeLookup(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "cashier", domain.RoleCashier)

	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/products/barcode/8991001010058", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var product domain.Product
	if err := json.NewDecoder(rec.Body).Decode(&product); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if product.Name != "Kopi Sachet" {
		t.Fatalf("expected Kopi Sachet, got %s", product.Name)
	}

	rec = doJSON(t, api.Handler(), http.MethodGet, "/api/v1/products/barcode/0000000000000", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown barcode, got %d", rec.Code)
	}
}

func TestCreateProductValidation(t *testing.T) {
	api := newTestAPI(t)
	admin := tokenFor(t, api, "admin", domain.RoleAdmin)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/products", admin, domain.ProductCreateRequest{
		Name:  "Invalid Item",
		Price: 0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero price, got %d", rec.Code)
	}

	rec = doJSON(t, api.Handler(), http.MethodPost, "/api/v1/products", admin, domain.ProductCreateRequest{
		Name:         "Gula Pasir",
		Price:        15000,
		CostPrice:    12000,
		InitialStock: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestReportEndpoints(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := tokenFor(t, api, "admin", domain.RoleAdmin)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", admin, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 3, Qty: 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout failed: %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/total", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summary domain.SalesSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if summary.Transactions != 1 {
		t.Fatalf("expected 1 transaction, got %d", summary.Transactions)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/inventory", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/sales?from=2026-02-02&to=2026-01-01", admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", rec.Code)
	}
}
