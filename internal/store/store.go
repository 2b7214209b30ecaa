package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warungpos/backend/internal/domain"
)

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrSaleNotFound          = errors.New("sale not found")
	ErrStockValidationFailed = errors.New("stock validation failed")
	ErrInvalidInput          = errors.New("invalid input")
)

// InsufficientStockError reports a requested quantity that exceeds the
// on-hand stock of a product. It carries enough detail for the API layer
// to build an actionable response.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ReplaceDiscountRules(ctx context.Context, productID int64, rules []domain.DiscountRule) ([]domain.DiscountRule, error)
	AdjustStock(ctx context.Context, productID int64, delta int) (*domain.Product, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	ListSales(ctx context.Context, from *time.Time, to *time.Time, includeVoided bool) ([]domain.Sale, error)
	VoidSale(ctx context.Context, id int64, at time.Time) (*domain.Sale, error)
	SalesSummary(ctx context.Context, from *time.Time, to *time.Time) (domain.SalesSummary, error)
	ProductsSold(ctx context.Context, from time.Time, to time.Time) ([]domain.ProductSales, error)
	InventoryRows(ctx context.Context) ([]domain.InventoryReportRow, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
