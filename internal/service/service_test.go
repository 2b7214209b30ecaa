package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/pricing"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/store/memory"
)

// Seeded catalog: product 1 is Mie Goreng Instan (3500, stock 120,
// tiers 5->5% and 10->10%), product 2 is Telur 10 Butir (26500, stock
// 40), product 4 is Roti Tawar (17800, stock 25), product 5 is Kopi
// Sachet (2600, stock 200, tier 10->8%).

func newTestService() *Service {
	return New(memory.NewSeeded(), cache.Noop{}, nil, zerolog.Nop(), time.Minute)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func TestCheckoutAppliesTierDiscount(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 1, Qty: 10}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if !pricing.EqualWithin(resp.OriginalTotal, 35000) {
		t.Fatalf("expected original total 35000, got %.2f", resp.OriginalTotal)
	}
	if !pricing.EqualWithin(resp.TotalDiscount, 3500) {
		t.Fatalf("expected discount 3500, got %.2f", resp.TotalDiscount)
	}
	if !pricing.EqualWithin(resp.GrandTotal, 31500) {
		t.Fatalf("expected grand total 31500, got %.2f", resp.GrandTotal)
	}
	if !pricing.EqualWithin(resp.Sale.Items[0].UnitPrice, 3150) {
		t.Fatalf("expected unit price 3150, got %.2f", resp.Sale.Items[0].UnitPrice)
	}
	if resp.Sale.Items[0].BasePrice != 3500 {
		t.Fatalf("expected base price snapshot 3500, got %.2f", resp.Sale.Items[0].BasePrice)
	}

	product, err := svc.GetProduct(ctx, 1)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Quantity != 110 {
		t.Fatalf("expected stock 110 after checkout, got %d", product.Quantity)
	}
}

func TestCheckoutManualPriceWinsOverTiers(t *testing.T) {
	svc := newTestService()
	manual := 3000.0

	resp, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 1, Qty: 10, ManualPrice: &manual}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.Sale.Items[0].UnitPrice != 3000 {
		t.Fatalf("expected manual unit price 3000, got %.2f", resp.Sale.Items[0].UnitPrice)
	}
	if resp.GrandTotal != 30000 {
		t.Fatalf("expected grand total 30000, got %.2f", resp.GrandTotal)
	}
}

func TestCheckoutManualPriceAboveBaseRejected(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	manual := 4000.0

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 1, Qty: 2, ManualPrice: &manual}},
	})
	var discountErr *pricing.InvalidDiscountError
	if !errors.As(err, &discountErr) {
		t.Fatalf("expected invalid discount error, got %v", err)
	}

	product, err := svc.GetProduct(ctx, 1)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Quantity != 120 {
		t.Fatalf("expected stock untouched at 120, got %d", product.Quantity)
	}
}

func TestCheckoutInsufficientStockAbortsWholeSale(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{ProductID: 4, Qty: 25},
			{ProductID: 2, Qty: 41},
		},
	})
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if stockErr.ProductID != 2 || stockErr.Available != 40 || stockErr.Requested != 41 {
		t.Fatalf("unexpected stock error detail: %+v", stockErr)
	}

	roti, err := svc.GetProduct(ctx, 4)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if roti.Quantity != 25 {
		t.Fatalf("expected first line stock untouched at 25, got %d", roti.Quantity)
	}
}

func TestCheckoutUnknownProduct(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 999, Qty: 1}},
	})
	if !errors.Is(err, store.ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestCheckoutTotalsReconcile(t *testing.T) {
	svc := newTestService()
	manual := 17000.0

	resp, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{ProductID: 1, Qty: 5},
			{ProductID: 5, Qty: 12},
			{ProductID: 4, Qty: 1, ManualPrice: &manual},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if diff := math.Abs(resp.OriginalTotal - resp.TotalDiscount - resp.GrandTotal); diff > pricing.Epsilon {
		t.Fatalf("totals do not reconcile: original=%.4f discount=%.4f grand=%.4f", resp.OriginalTotal, resp.TotalDiscount, resp.GrandTotal)
	}
	if resp.Sale.Total != resp.GrandTotal {
		t.Fatalf("sale total %.2f diverges from grand total %.2f", resp.Sale.Total, resp.GrandTotal)
	}
}

func TestVoidSaleRestocksAndIsIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 1, Qty: 5}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	voided, err := svc.VoidSale(ctx, resp.Sale.ID)
	if err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if !voided.Voided || voided.VoidedAt == nil {
		t.Fatalf("expected sale to be voided")
	}
	if voided.Total != resp.Sale.Total {
		t.Fatalf("void must not alter the recorded total")
	}

	product, err := svc.GetProduct(ctx, 1)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Quantity != 120 {
		t.Fatalf("expected stock restored to 120, got %d", product.Quantity)
	}

	again, err := svc.VoidSale(ctx, resp.Sale.ID)
	if err != nil {
		t.Fatalf("second void failed: %v", err)
	}
	if !again.VoidedAt.Equal(*voided.VoidedAt) {
		t.Fatalf("second void must not change voided_at")
	}
	product, _ = svc.GetProduct(ctx, 1)
	if product.Quantity != 120 {
		t.Fatalf("second void must not restock again, got %d", product.Quantity)
	}
}

func TestVoidSaleRequiresAdmin(t *testing.T) {
	svc := newTestService()
	cashier := WithActor(context.Background(), domain.Actor{Username: "cashier", Role: domain.RoleCashier})

	_, err := svc.VoidSale(cashier, 1)
	if !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected admin required, got %v", err)
	}
}

func TestVoidUnknownSale(t *testing.T) {
	svc := newTestService()

	_, err := svc.VoidSale(adminCtx(), 404)
	if !errors.Is(err, store.ErrSaleNotFound) {
		t.Fatalf("expected sale not found, got %v", err)
	}
}

func TestReportsExcludeVoidedSales(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	first, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 3, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	second, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 8, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if _, err := svc.VoidSale(ctx, second.Sale.ID); err != nil {
		t.Fatalf("void failed: %v", err)
	}

	summary, err := svc.TotalSales(ctx)
	if err != nil {
		t.Fatalf("total sales failed: %v", err)
	}
	if summary.Transactions != 1 {
		t.Fatalf("expected 1 counted transaction, got %d", summary.Transactions)
	}
	if summary.Revenue != first.GrandTotal {
		t.Fatalf("expected revenue %.2f, got %.2f", first.GrandTotal, summary.Revenue)
	}
}

func TestSalesInRange(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 7, Qty: 3}},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	report, err := svc.SalesInRange(ctx, today, today)
	if err != nil {
		t.Fatalf("sales in range failed: %v", err)
	}
	if report.Transactions != 1 {
		t.Fatalf("expected today's sale to be counted, got %d", report.Transactions)
	}

	if _, err := svc.SalesInRange(ctx, "2026-02-02", "2026-01-01"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid range error, got %v", err)
	}
	if _, err := svc.SalesInRange(ctx, "not-a-date", today); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid date error, got %v", err)
	}
}

func TestInventoryReportDerivesBeginningStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{{ProductID: 5, Qty: 10}},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	report, err := svc.InventoryReport(ctx)
	if err != nil {
		t.Fatalf("inventory report failed: %v", err)
	}

	var kopi *domain.InventoryReportRow
	for i := range report.Rows {
		if report.Rows[i].ProductID == 5 {
			kopi = &report.Rows[i]
		}
	}
	if kopi == nil {
		t.Fatalf("expected kopi row in inventory report")
	}
	if kopi.RemainingStock != 190 || kopi.UnitsSold != 10 {
		t.Fatalf("unexpected kopi row: %+v", kopi)
	}
	if kopi.BeginningStock != kopi.RemainingStock+int(kopi.UnitsSold) {
		t.Fatalf("beginning stock must equal remaining plus sold: %+v", kopi)
	}
	// 10 sachets at the 8% tier price of 2392 each.
	if math.Abs(kopi.Revenue-23920) > pricing.Epsilon {
		t.Fatalf("expected kopi revenue 23920, got %.2f", kopi.Revenue)
	}
}

func TestReplaceDiscountRulesRejectsDuplicateTier(t *testing.T) {
	svc := newTestService()

	_, err := svc.ReplaceDiscountRules(adminCtx(), 1, []domain.DiscountRuleInput{
		{MinQty: 5, Percent: 5},
		{MinQty: 5, Percent: 10},
	})
	var discountErr *pricing.InvalidDiscountError
	if !errors.As(err, &discountErr) {
		t.Fatalf("expected invalid discount error, got %v", err)
	}
}

func TestAdjustStockCannotGoNegative(t *testing.T) {
	svc := newTestService()

	_, err := svc.AdjustStock(adminCtx(), 4, -1000)
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	product, err := svc.GetProduct(context.Background(), 4)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Quantity != 25 {
		t.Fatalf("expected stock unchanged at 25, got %d", product.Quantity)
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateProduct(context.Background(), domain.ProductCreateRequest{Name: "Gula Pasir", Price: 15000})
	if !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected admin required, got %v", err)
	}

	created, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:         "Gula Pasir",
		Price:        15000,
		CostPrice:    12000,
		InitialStock: 30,
		Discounts:    []domain.DiscountRuleInput{{MinQty: 10, Percent: 5}},
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if created.Category != domain.DefaultCategory {
		t.Fatalf("expected default category, got %s", created.Category)
	}
	if len(created.Discounts) != 1 || created.Discounts[0].ProductID != created.ID {
		t.Fatalf("expected discount rule bound to product, got %+v", created.Discounts)
	}
}
