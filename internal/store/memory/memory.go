package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

// Store is an in-memory Repository used for dev mode and tests.
type Store struct {
	mu              sync.RWMutex
	products        map[int64]domain.Product
	sales           map[int64]domain.Sale
	usersByUsername map[string]domain.UserAccount
	nextProductID   int64
	nextRuleID      int64
	nextSaleID      int64
	nextItemID      int64
}

func New() *Store {
	return &Store{
		products:        make(map[int64]domain.Product),
		sales:           make(map[int64]domain.Sale),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store preloaded with a small warung catalog and
// dev user accounts.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	seed := []domain.Product{
		{Barcode: "8991001010010", Name: "Mie Goreng Instan", Category: "grocery", Price: 3500, CostPrice: 2700, Quantity: 120},
		{Barcode: "8991001010027", Name: "Telur 10 Butir", Category: "grocery", Price: 26500, CostPrice: 23000, Quantity: 40},
		{Barcode: "8991001010034", Name: "Susu UHT 1L", Category: "dairy", Price: 18900, CostPrice: 13600, Quantity: 60},
		{Barcode: "8991001010041", Name: "Roti Tawar", Category: "bakery", Price: 17800, CostPrice: 12400, Quantity: 25},
		{Barcode: "8991001010058", Name: "Kopi Sachet", Category: "beverage", Price: 2600, CostPrice: 1700, Quantity: 200},
		{Barcode: "8991001010065", Name: "Air Mineral 600ml", Category: "beverage", Price: 3900, CostPrice: 3200, Quantity: 150},
		{Barcode: "8991001010072", Name: "Keripik Singkong", Category: "snack", Price: 12800, CostPrice: 8000, Quantity: 80},
		{Barcode: "8991001010089", Name: "Sabun Mandi", Category: "household", Price: 7400, CostPrice: 5000, Quantity: 90},
	}
	discounts := map[string][]domain.DiscountRule{
		"Mie Goreng Instan": {{MinQty: 5, Percent: 5}, {MinQty: 10, Percent: 10}},
		"Kopi Sachet":       {{MinQty: 10, Percent: 8}},
		"Air Mineral 600ml": {{MinQty: 24, Percent: 15}},
	}

	for _, p := range seed {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.nextProductID++
		p.ID = s.nextProductID
		for _, rule := range discounts[p.Name] {
			s.nextRuleID++
			rule.ID = s.nextRuleID
			rule.ProductID = p.ID
			p.Discounts = append(p.Discounts, rule)
		}
		s.products[p.ID] = p
	}

	s.usersByUsername = seedUsers()
	return s
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables, with hardcoded dev defaults as fallback. These
// are never used in production (the backend uses PostgreSQL when
// DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		zlog.Warn().Msg("memory store: using default dev credentials, set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			zlog.Fatal().Err(err).Str("username", u.username).Msg("memory store: hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, store.ErrProductNotFound
	}
	copied := cloneProduct(p)
	return &copied, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Barcode == barcode {
			copied := cloneProduct(p)
			return &copied, nil
		}
	}
	return nil, store.ErrProductNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Price <= 0 || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Barcode != "" {
		for _, p := range s.products {
			if p.Barcode == product.Barcode {
				return nil, store.ErrInvalidInput
			}
		}
	}

	now := time.Now().UTC()
	if product.Category == "" {
		product.Category = domain.DefaultCategory
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	s.nextProductID++
	product.ID = s.nextProductID

	rules := product.Discounts
	product.Discounts = nil
	for _, rule := range rules {
		if rule.MinQty < 1 || rule.Percent < 0 || rule.Percent > 100 {
			return nil, store.ErrInvalidInput
		}
		s.nextRuleID++
		rule.ID = s.nextRuleID
		rule.ProductID = product.ID
		product.Discounts = append(product.Discounts, rule)
	}

	s.products[product.ID] = cloneProduct(product)
	created := cloneProduct(product)
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Price <= 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrProductNotFound
	}

	// Stock and discount rules are managed through their own operations.
	product.Quantity = existing.Quantity
	product.Discounts = existing.Discounts
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	if product.Category == "" {
		product.Category = domain.DefaultCategory
	}

	s.products[product.ID] = cloneProduct(product)
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ReplaceDiscountRules(_ context.Context, productID int64, rules []domain.DiscountRule) ([]domain.DiscountRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrProductNotFound
	}

	replaced := make([]domain.DiscountRule, 0, len(rules))
	for _, rule := range rules {
		if rule.MinQty < 1 || rule.Percent < 0 || rule.Percent > 100 {
			return nil, store.ErrInvalidInput
		}
		s.nextRuleID++
		rule.ID = s.nextRuleID
		rule.ProductID = productID
		replaced = append(replaced, rule)
	}

	product.Discounts = replaced
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product

	return slices.Clone(replaced), nil
}

func (s *Store) AdjustStock(_ context.Context, productID int64, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrProductNotFound
	}

	next := product.Quantity + delta
	if next < 0 {
		return nil, &store.InsufficientStockError{ProductID: productID, Available: product.Quantity, Requested: -delta}
	}
	product.Quantity = next
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product

	adjusted := cloneProduct(product)
	return &adjusted, nil
}

// CreateSale decrements stock for every line and records the sale in a
// single critical section; any failing line leaves all stock untouched.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every line before mutating anything.
	requested := make(map[int64]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		requested[item.ProductID] += item.Qty
	}
	for productID, qty := range requested {
		product, exists := s.products[productID]
		if !exists {
			return nil, store.ErrProductNotFound
		}
		if product.Quantity < qty {
			return nil, &store.InsufficientStockError{ProductID: productID, Available: product.Quantity, Requested: qty}
		}
	}

	for productID, qty := range requested {
		product := s.products[productID]
		product.Quantity -= qty
		product.UpdatedAt = time.Now().UTC()
		s.products[productID] = product
	}

	if sale.Receipt == "" {
		sale.Receipt = uuid.NewString()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	s.nextSaleID++
	sale.ID = s.nextSaleID
	for i := range sale.Items {
		s.nextItemID++
		sale.Items[i].ID = s.nextItemID
		sale.Items[i].SaleID = sale.ID
	}

	s.sales[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrSaleNotFound
	}
	copied := cloneSale(sale)
	return &copied, nil
}

func (s *Store) ListSales(_ context.Context, from *time.Time, to *time.Time, includeVoided bool) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if !includeVoided && sale.Voided {
			continue
		}
		if from != nil && sale.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && !sale.CreatedAt.Before(*to) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}

	slices.SortFunc(sales, func(a, b domain.Sale) int {
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return 1
		case b.CreatedAt.Before(a.CreatedAt):
			return -1
		default:
			return int(b.ID - a.ID)
		}
	})

	return sales, nil
}

// VoidSale is idempotent: voiding an already-voided sale returns it
// unchanged. Stock restoration skips products deleted since the sale.
func (s *Store) VoidSale(_ context.Context, id int64, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrSaleNotFound
	}
	if sale.Voided {
		copied := cloneSale(sale)
		return &copied, nil
	}

	for _, item := range sale.Items {
		product, exists := s.products[item.ProductID]
		if !exists {
			continue
		}
		product.Quantity += item.Qty
		product.UpdatedAt = at
		s.products[item.ProductID] = product
	}

	sale.Voided = true
	voidedAt := at
	sale.VoidedAt = &voidedAt
	s.sales[id] = cloneSale(sale)

	copied := cloneSale(sale)
	return &copied, nil
}

func (s *Store) SalesSummary(_ context.Context, from *time.Time, to *time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary domain.SalesSummary
	for _, sale := range s.sales {
		if sale.Voided {
			continue
		}
		if from != nil && sale.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && !sale.CreatedAt.Before(*to) {
			continue
		}
		summary.Transactions++
		summary.Revenue += sale.Total
	}
	return summary, nil
}

func (s *Store) ProductsSold(_ context.Context, from time.Time, to time.Time) ([]domain.ProductSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProduct := make(map[int64]*domain.ProductSales)
	for _, sale := range s.sales {
		if sale.Voided || sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		for _, item := range sale.Items {
			row, exists := byProduct[item.ProductID]
			if !exists {
				row = &domain.ProductSales{ProductID: item.ProductID, Name: item.Name}
				byProduct[item.ProductID] = row
			}
			row.QtySold += int64(item.Qty)
			row.Revenue += float64(item.Qty) * item.UnitPrice
		}
	}

	result := make([]domain.ProductSales, 0, len(byProduct))
	for _, row := range byProduct {
		result = append(result, *row)
	}
	slices.SortFunc(result, func(a, b domain.ProductSales) int {
		switch {
		case a.Revenue > b.Revenue:
			return -1
		case a.Revenue < b.Revenue:
			return 1
		default:
			return cmpString(a.Name, b.Name)
		}
	})
	return result, nil
}

func (s *Store) InventoryRows(_ context.Context) ([]domain.InventoryReportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	soldQty := make(map[int64]int64)
	soldRevenue := make(map[int64]float64)
	for _, sale := range s.sales {
		if sale.Voided {
			continue
		}
		for _, item := range sale.Items {
			soldQty[item.ProductID] += int64(item.Qty)
			soldRevenue[item.ProductID] += float64(item.Qty) * item.UnitPrice
		}
	}

	rows := make([]domain.InventoryReportRow, 0, len(s.products))
	for _, p := range s.products {
		units := soldQty[p.ID]
		rows = append(rows, domain.InventoryReportRow{
			ProductID:      p.ID,
			Name:           p.Name,
			BeginningStock: p.Quantity + int(units),
			RemainingStock: p.Quantity,
			UnitsSold:      units,
			Revenue:        soldRevenue[p.ID],
		})
	}
	slices.SortFunc(rows, func(a, b domain.InventoryReportRow) int {
		return cmpString(a.Name, b.Name)
	})
	return rows, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidInput
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrInvalidInput
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneProduct(p domain.Product) domain.Product {
	copied := p
	copied.Discounts = slices.Clone(p.Discounts)
	return copied
}

func cloneSale(sale domain.Sale) domain.Sale {
	copied := sale
	copied.Items = slices.Clone(sale.Items)
	if sale.VoidedAt != nil {
		at := *sale.VoidedAt
		copied.VoidedAt = &at
	}
	return copied
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
