package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/cart"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/obs"
	"warungpos/backend/internal/pricing"
	"warungpos/backend/internal/store"
)

// ErrAdminRequired is returned when a mutation needs the admin role.
var ErrAdminRequired = errors.New("admin role required")

const reportKeyPrefix = "reports:"

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	cache     cache.ReportCache
	metrics   *obs.Metrics
	logger    zerolog.Logger
	reportTTL time.Duration
}

func New(repo store.Repository, reportCache cache.ReportCache, metrics *obs.Metrics, logger zerolog.Logger, reportTTL time.Duration) *Service {
	if reportCache == nil {
		reportCache = cache.Noop{}
	}
	if reportTTL <= 0 {
		reportTTL = 5 * time.Minute
	}
	return &Service{
		repo:      repo,
		cache:     reportCache,
		metrics:   metrics,
		logger:    logger,
		reportTTL: reportTTL,
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrAdminRequired
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		req.Category = domain.DefaultCategory
	}
	if req.Name == "" || req.Price <= 0 || req.CostPrice < 0 || req.InitialStock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	rules, err := buildDiscountRules(req.Discounts)
	if err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		Barcode:   req.Barcode,
		Name:      req.Name,
		Category:  req.Category,
		ImageRef:  strings.TrimSpace(req.ImageRef),
		Price:     req.Price,
		CostPrice: req.CostPrice,
		Quantity:  req.InitialStock,
		Discounts: rules,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info().Int64("product_id", created.ID).Str("name", created.Name).Int("stock", created.Quantity).Msg("product created")
	s.invalidateReports(ctx)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			category = domain.DefaultCategory
		}
		updated.Category = category
	}
	if req.ImageRef != nil {
		updated.ImageRef = strings.TrimSpace(*req.ImageRef)
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Price = *req.Price
	}
	if req.CostPrice != nil {
		if *req.CostPrice < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.CostPrice = *req.CostPrice
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info().Int64("product_id", saved.ID).Msg("product updated")
	s.invalidateReports(ctx)
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("product_id", id).Msg("product deleted")
	s.invalidateReports(ctx)
	return nil
}

// ReplaceDiscountRules swaps the full tier set of a product.
func (s *Service) ReplaceDiscountRules(ctx context.Context, productID int64, inputs []domain.DiscountRuleInput) ([]domain.DiscountRule, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	rules, err := buildDiscountRules(inputs)
	if err != nil {
		return nil, err
	}

	saved, err := s.repo.ReplaceDiscountRules(ctx, productID, rules)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("product_id", productID).Int("tiers", len(saved)).Msg("discount rules replaced")
	return saved, nil
}

func (s *Service) AdjustStock(ctx context.Context, productID int64, delta int) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if delta == 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	product, err := s.repo.AdjustStock(ctx, productID, delta)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info().Int64("product_id", productID).Int("delta", delta).Int("stock", product.Quantity).Msg("stock adjusted")
	s.invalidateReports(ctx)
	return *product, nil
}

// Checkout prices the requested lines, validates stock against the
// current catalog, and commits the sale atomically. Either every line
// decrements or nothing does.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if len(req.Lines) == 0 {
		s.countCheckoutFailure("invalid_input")
		return domain.CheckoutResponse{}, store.ErrInvalidInput
	}

	ck := cart.New()
	for _, line := range req.Lines {
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			s.countCheckoutFailure(failureReason(err))
			return domain.CheckoutResponse{}, err
		}
		if err := ck.Add(*product, line.Qty); err != nil {
			s.countCheckoutFailure(failureReason(err))
			return domain.CheckoutResponse{}, err
		}
		// Duplicate product lines merge; the last manual price wins.
		if line.ManualPrice != nil {
			if err := ck.SetManualPrice(line.ProductID, line.ManualPrice); err != nil {
				s.countCheckoutFailure(failureReason(err))
				return domain.CheckoutResponse{}, err
			}
		}
	}

	priced, err := ck.PricedLines()
	if err != nil {
		s.countCheckoutFailure(failureReason(err))
		return domain.CheckoutResponse{}, err
	}
	totals, err := ck.Totals()
	if err != nil {
		s.countCheckoutFailure(failureReason(err))
		return domain.CheckoutResponse{}, err
	}

	items := make([]domain.SaleItem, 0, len(priced))
	for _, line := range priced {
		items = append(items, domain.SaleItem{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Barcode:   line.Product.Barcode,
			Qty:       line.Qty,
			BasePrice: line.Product.Price,
			UnitPrice: line.UnitPrice,
		})
	}

	sale := domain.Sale{
		Receipt:   uuid.NewString(),
		Total:     totals.Grand,
		CreatedAt: time.Now().UTC(),
		Items:     items,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		s.countCheckoutFailure(failureReason(err))
		return domain.CheckoutResponse{}, err
	}

	if s.metrics != nil {
		s.metrics.CheckoutsTotal.Inc()
		s.metrics.SaleRevenue.Add(created.Total)
	}
	s.invalidateReports(ctx)
	s.logger.Info().
		Int64("sale_id", created.ID).
		Str("receipt", created.Receipt).
		Int("lines", len(created.Items)).
		Float64("total", created.Total).
		Msg("checkout committed")

	return domain.CheckoutResponse{
		Sale:          *created,
		OriginalTotal: totals.Original,
		TotalDiscount: totals.Discount,
		GrandTotal:    totals.Grand,
	}, nil
}

// VoidSale reverses a completed sale and restocks its items. Voiding an
// already-voided sale returns the sale unchanged.
func (s *Service) VoidSale(ctx context.Context, id int64) (domain.Sale, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Sale{}, err
	}

	at := time.Now().UTC()
	sale, err := s.repo.VoidSale(ctx, id, at)
	if err != nil {
		return domain.Sale{}, err
	}

	if sale.VoidedAt != nil && sale.VoidedAt.Equal(at) {
		if s.metrics != nil {
			s.metrics.VoidsTotal.Inc()
		}
		s.invalidateReports(ctx)
		s.logger.Info().Int64("sale_id", sale.ID).Str("receipt", sale.Receipt).Msg("sale voided")
	}
	return *sale, nil
}

func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, fromStr, toStr string, includeVoided bool) (domain.SaleListResponse, error) {
	var from, to *time.Time
	if strings.TrimSpace(fromStr) != "" || strings.TrimSpace(toStr) != "" {
		f, t, err := parseDateRange(fromStr, toStr)
		if err != nil {
			return domain.SaleListResponse{}, err
		}
		from, to = &f, &t
	}

	sales, err := s.repo.ListSales(ctx, from, to, includeVoided)
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	return domain.SaleListResponse{Sales: sales}, nil
}

// TotalSales reports transaction count and charged revenue across all
// completed, non-voided sales.
func (s *Service) TotalSales(ctx context.Context) (domain.SalesSummary, error) {
	key := cache.Key("reports", "total")
	var cached domain.SalesSummary
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	summary, err := s.repo.SalesSummary(ctx, nil, nil)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	s.cacheSet(ctx, key, summary)
	return summary, nil
}

func (s *Service) SalesInRange(ctx context.Context, fromStr, toStr string) (domain.RangedSalesReport, error) {
	from, to, err := parseDateRange(fromStr, toStr)
	if err != nil {
		return domain.RangedSalesReport{}, err
	}

	key := cache.Key("reports", "sales", fromStr, toStr)
	var cached domain.RangedSalesReport
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	summary, err := s.repo.SalesSummary(ctx, &from, &to)
	if err != nil {
		return domain.RangedSalesReport{}, err
	}
	report := domain.RangedSalesReport{
		From:         fromStr,
		To:           toStr,
		Transactions: summary.Transactions,
		Revenue:      summary.Revenue,
	}
	s.cacheSet(ctx, key, report)
	return report, nil
}

func (s *Service) ProductsSoldInRange(ctx context.Context, fromStr, toStr string) (domain.ProductSalesReport, error) {
	from, to, err := parseDateRange(fromStr, toStr)
	if err != nil {
		return domain.ProductSalesReport{}, err
	}

	key := cache.Key("reports", "products", fromStr, toStr)
	var cached domain.ProductSalesReport
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	products, err := s.repo.ProductsSold(ctx, from, to)
	if err != nil {
		return domain.ProductSalesReport{}, err
	}
	report := domain.ProductSalesReport{From: fromStr, To: toStr, Products: products}
	s.cacheSet(ctx, key, report)
	return report, nil
}

// InventoryReport rebuilds the stock ledger view: remaining stock,
// units sold, revenue, and the derived beginning stock per product.
func (s *Service) InventoryReport(ctx context.Context) (domain.InventoryReport, error) {
	key := cache.Key("reports", "inventory")
	var cached domain.InventoryReport
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	rows, err := s.repo.InventoryRows(ctx)
	if err != nil {
		return domain.InventoryReport{}, err
	}
	report := domain.InventoryReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Rows:        rows,
	}
	s.cacheSet(ctx, key, report)
	return report, nil
}

func (s *Service) cacheSet(ctx context.Context, key string, v any) {
	if err := s.cache.SetJSON(ctx, key, v, s.reportTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
}

func (s *Service) invalidateReports(ctx context.Context) {
	if err := s.cache.InvalidatePrefix(ctx, reportKeyPrefix); err != nil {
		s.logger.Warn().Err(err).Msg("report cache invalidation failed")
	}
}

func (s *Service) countCheckoutFailure(reason string) {
	if s.metrics != nil {
		s.metrics.CheckoutFailures.WithLabelValues(reason).Inc()
	}
}

func failureReason(err error) string {
	var stockErr *store.InsufficientStockError
	var discountErr *pricing.InvalidDiscountError
	switch {
	case errors.Is(err, store.ErrProductNotFound):
		return "product_not_found"
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.As(err, &discountErr):
		return "invalid_discount"
	case errors.Is(err, store.ErrStockValidationFailed):
		return "stock_conflict"
	case errors.Is(err, store.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

func buildDiscountRules(inputs []domain.DiscountRuleInput) ([]domain.DiscountRule, error) {
	rules := make([]domain.DiscountRule, 0, len(inputs))
	seen := make(map[int]struct{}, len(inputs))
	for _, in := range inputs {
		if in.MinQty < 1 {
			return nil, &pricing.InvalidDiscountError{Reason: "min quantity below one"}
		}
		if in.Percent < 0 || in.Percent > 100 {
			return nil, &pricing.InvalidDiscountError{Reason: fmt.Sprintf("percent %.2f outside 0..100", in.Percent)}
		}
		if _, dup := seen[in.MinQty]; dup {
			return nil, &pricing.InvalidDiscountError{Reason: fmt.Sprintf("duplicate tier at quantity %d", in.MinQty)}
		}
		seen[in.MinQty] = struct{}{}
		rules = append(rules, domain.DiscountRule{MinQty: in.MinQty, Percent: in.Percent})
	}
	return rules, nil
}

// parseDateRange parses inclusive calendar dates into a half-open UTC
// window [from, to+24h).
func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", strings.TrimSpace(fromStr))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid from date", store.ErrInvalidInput)
	}
	to, err := time.Parse("2006-01-02", strings.TrimSpace(toStr))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid to date", store.ErrInvalidInput)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from after to", store.ErrInvalidInput)
	}
	return from.UTC(), to.UTC().Add(24 * time.Hour), nil
}
