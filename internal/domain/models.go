package domain

import "time"

// DiscountRule grants a percentage off a product's unit price once the
// purchased quantity reaches MinQty. A product may carry several tiers;
// the highest applicable percent wins.
type DiscountRule struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	MinQty    int     `json:"min_qty"`
	Percent   float64 `json:"percent"`
}

type Product struct {
	ID        int64          `json:"id"`
	Barcode   string         `json:"barcode,omitempty"`
	Name      string         `json:"name"`
	Category  string         `json:"category"`
	ImageRef  string         `json:"image_ref,omitempty"`
	Price     float64        `json:"price"`
	CostPrice float64        `json:"cost_price"`
	Quantity  int            `json:"quantity"`
	Discounts []DiscountRule `json:"discounts,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SaleItem is the immutable snapshot of a cart line at checkout time.
// UnitPrice is the price actually charged per unit; BasePrice is the
// catalog price at the moment of sale.
type SaleItem struct {
	ID        int64   `json:"id"`
	SaleID    int64   `json:"sale_id"`
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Barcode   string  `json:"barcode,omitempty"`
	Qty       int     `json:"qty"`
	BasePrice float64 `json:"base_price"`
	UnitPrice float64 `json:"unit_price"`
}

type Sale struct {
	ID        int64      `json:"id"`
	Receipt   string     `json:"receipt"`
	Total     float64    `json:"total"`
	Voided    bool       `json:"voided"`
	VoidedAt  *time.Time `json:"voided_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Items     []SaleItem `json:"items"`
}

type DiscountRuleInput struct {
	MinQty  int     `json:"min_qty" validate:"gte=1"`
	Percent float64 `json:"percent" validate:"gte=0,lte=100"`
}

type ProductCreateRequest struct {
	Name         string              `json:"name" validate:"required"`
	Barcode      string              `json:"barcode"`
	Category     string              `json:"category"`
	ImageRef     string              `json:"image_ref"`
	Price        float64             `json:"price" validate:"gt=0"`
	CostPrice    float64             `json:"cost_price" validate:"gte=0"`
	InitialStock int                 `json:"initial_stock" validate:"gte=0"`
	Discounts    []DiscountRuleInput `json:"discounts" validate:"dive"`
}

type ProductUpdateRequest struct {
	Name      *string  `json:"name,omitempty"`
	Barcode   *string  `json:"barcode,omitempty"`
	Category  *string  `json:"category,omitempty"`
	ImageRef  *string  `json:"image_ref,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	CostPrice *float64 `json:"cost_price,omitempty"`
}

type StockAdjustRequest struct {
	Delta int `json:"delta" validate:"required"`
}

type CheckoutLine struct {
	ProductID   int64    `json:"product_id" validate:"required"`
	Qty         int      `json:"qty" validate:"gte=1"`
	ManualPrice *float64 `json:"manual_price,omitempty"`
}

type CheckoutRequest struct {
	Lines []CheckoutLine `json:"lines" validate:"required,min=1,dive"`
}

type CheckoutResponse struct {
	Sale          Sale    `json:"sale"`
	OriginalTotal float64 `json:"original_total"`
	TotalDiscount float64 `json:"total_discount"`
	GrandTotal    float64 `json:"grand_total"`
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

type SalesSummary struct {
	Transactions int64   `json:"transactions"`
	Revenue      float64 `json:"revenue"`
}

type RangedSalesReport struct {
	From         string  `json:"from"`
	To           string  `json:"to"`
	Transactions int64   `json:"transactions"`
	Revenue      float64 `json:"revenue"`
}

type ProductSales struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	QtySold   int64   `json:"qty_sold"`
	Revenue   float64 `json:"revenue"`
}

type ProductSalesReport struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Products []ProductSales `json:"products"`
}

type InventoryReportRow struct {
	ProductID      int64   `json:"product_id"`
	Name           string  `json:"name"`
	BeginningStock int     `json:"beginning_stock"`
	RemainingStock int     `json:"remaining_stock"`
	UnitsSold      int64   `json:"units_sold"`
	Revenue        float64 `json:"revenue"`
}

type InventoryReport struct {
	GeneratedAt string               `json:"generated_at"`
	Rows        []InventoryReportRow `json:"rows"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username" validate:"required,min=4"`
	Password string `json:"password" validate:"required,min=6"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const DefaultCategory = "Uncategorized"
