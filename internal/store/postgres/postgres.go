package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate() error {
	driver, err := migratepgx.WithInstance(s.db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "warungpos", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(barcode,''), name, category, image_ref, price, cost_price, quantity, created_at, updated_at
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Barcode, &p.Name, &p.Category, &p.ImageRef, &p.Price, &p.CostPrice, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachDiscounts(ctx, products); err != nil {
		return nil, err
	}

	return products, nil
}

// attachDiscounts loads the rule sets for all listed products in one query.
func (s *Store) attachDiscounts(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(products))
	index := make(map[int64]*domain.Product, len(products))
	for i := range products {
		ids = append(ids, products[i].ID)
		index[products[i].ID] = &products[i]
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, min_qty, percent
		FROM product_discounts
		WHERE product_id = ANY($1)
		ORDER BY product_id, min_qty
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rule domain.DiscountRule
		if err := rows.Scan(&rule.ID, &rule.ProductID, &rule.MinQty, &rule.Percent); err != nil {
			return err
		}
		if p, ok := index[rule.ProductID]; ok {
			p.Discounts = append(p.Discounts, rule)
		}
	}
	return rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.getProduct(ctx, "id = $1", id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, store.ErrInvalidInput
	}
	return s.getProduct(ctx, "barcode = $1", barcode)
}

func (s *Store) getProduct(ctx context.Context, where string, arg any) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(barcode,''), name, category, image_ref, price, cost_price, quantity, created_at, updated_at
		FROM products
		WHERE `+where, arg).Scan(&p.ID, &p.Barcode, &p.Name, &p.Category, &p.ImageRef, &p.Price, &p.CostPrice, &p.Quantity, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, min_qty, percent
		FROM product_discounts
		WHERE product_id = $1
		ORDER BY min_qty
	`, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rule domain.DiscountRule
		if err := rows.Scan(&rule.ID, &rule.ProductID, &rule.MinQty, &rule.Percent); err != nil {
			return nil, err
		}
		p.Discounts = append(p.Discounts, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Price <= 0 || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.Category == "" {
		product.Category = domain.DefaultCategory
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO products (barcode, name, category, image_ref, price, cost_price, quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		RETURNING id, created_at, updated_at
	`, nullIfEmpty(product.Barcode), product.Name, product.Category, product.ImageRef, product.Price, product.CostPrice, product.Quantity).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	rules := product.Discounts
	product.Discounts = nil
	for _, rule := range rules {
		if rule.MinQty < 1 || rule.Percent < 0 || rule.Percent > 100 {
			return nil, store.ErrInvalidInput
		}
		rule.ProductID = product.ID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO product_discounts (product_id, min_qty, percent)
			VALUES ($1,$2,$3)
			RETURNING id
		`, rule.ProductID, rule.MinQty, rule.Percent).Scan(&rule.ID)
		if err != nil {
			return nil, err
		}
		product.Discounts = append(product.Discounts, rule)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	product.CreatedAt = product.CreatedAt.UTC()
	product.UpdatedAt = product.UpdatedAt.UTC()
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Price <= 0 {
		return nil, store.ErrInvalidInput
	}
	if product.Category == "" {
		product.Category = domain.DefaultCategory
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET barcode = $2, name = $3, category = $4, image_ref = $5, price = $6, cost_price = $7, updated_at = now()
		WHERE id = $1
	`, product.ID, nullIfEmpty(product.Barcode), product.Name, product.Category, product.ImageRef, product.Price, product.CostPrice)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrProductNotFound
	}

	return s.GetProduct(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrProductNotFound
	}
	return nil
}

func (s *Store) ReplaceDiscountRules(ctx context.Context, productID int64, rules []domain.DiscountRule) ([]domain.DiscountRule, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrProductNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_discounts WHERE product_id = $1`, productID); err != nil {
		return nil, err
	}

	replaced := make([]domain.DiscountRule, 0, len(rules))
	for _, rule := range rules {
		if rule.MinQty < 1 || rule.Percent < 0 || rule.Percent > 100 {
			return nil, store.ErrInvalidInput
		}
		rule.ProductID = productID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO product_discounts (product_id, min_qty, percent)
			VALUES ($1,$2,$3)
			RETURNING id
		`, productID, rule.MinQty, rule.Percent).Scan(&rule.ID)
		if err != nil {
			return nil, err
		}
		replaced = append(replaced, rule)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return replaced, nil
}

func (s *Store) AdjustStock(ctx context.Context, productID int64, delta int) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity + $1, updated_at = now()
		WHERE id = $2 AND quantity + $1 >= 0
	`, delta, productID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var available int
		err := s.db.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, &store.InsufficientStockError{ProductID: productID, Available: available, Requested: -delta}
	}

	return s.GetProduct(ctx, productID)
}

// CreateSale runs the whole checkout in one transaction: every line's
// stock is taken with a conditional decrement, then the sale and its item
// snapshots are inserted. A failed line rolls back the lot.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $1, updated_at = now()
			WHERE id = $2 AND quantity >= $1
		`, item.Qty, item.ProductID)
		if err != nil {
			if isSerializationFailure(err) {
				return nil, store.ErrStockValidationFailed
			}
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			var available int
			err := pgTx.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id = $1`, item.ProductID).Scan(&available)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrProductNotFound
			}
			if err != nil {
				return nil, err
			}
			return nil, &store.InsufficientStockError{ProductID: item.ProductID, Available: available, Requested: item.Qty}
		}
	}

	if sale.Receipt == "" {
		sale.Receipt = uuid.NewString()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO sales (receipt, total, voided, created_at)
		VALUES ($1,$2,false,$3)
		RETURNING id
	`, sale.Receipt, sale.Total, sale.CreatedAt).Scan(&sale.ID)
	if err != nil {
		return nil, err
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		err := pgTx.QueryRowContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, name, barcode, qty, base_price, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id
		`, item.SaleID, item.ProductID, item.Name, item.Barcode, item.Qty, item.BasePrice, item.UnitPrice).Scan(&item.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return nil, store.ErrStockValidationFailed
		}
		return nil, err
	}

	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	var sale domain.Sale
	var voidedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, receipt, total, voided, voided_at, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.Receipt, &sale.Total, &sale.Voided, &voidedAt, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSaleNotFound
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	if voidedAt.Valid {
		at := voidedAt.Time.UTC()
		sale.VoidedAt = &at
	}

	items, err := s.loadSaleItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items

	return &sale, nil
}

func (s *Store) loadSaleItems(ctx context.Context, saleID int64) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, name, barcode, qty, base_price, unit_price
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Name, &item.Barcode, &item.Qty, &item.BasePrice, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSales(ctx context.Context, from *time.Time, to *time.Time, includeVoided bool) ([]domain.Sale, error) {
	query := `
		SELECT id, receipt, total, voided, voided_at, created_at
		FROM sales
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
	`
	if !includeVoided {
		query += ` AND voided = false`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT 500`

	rows, err := s.db.QueryContext(ctx, query, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		var voidedAt sql.NullTime
		if err := rows.Scan(&sale.ID, &sale.Receipt, &sale.Total, &sale.Voided, &voidedAt, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		if voidedAt.Valid {
			at := voidedAt.Time.UTC()
			sale.VoidedAt = &at
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sales {
		items, err := s.loadSaleItems(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Items = items
	}

	return sales, nil
}

// VoidSale marks a sale voided and restores stock for its items. Voiding
// an already-voided sale is a no-op that returns the sale unchanged.
// Products deleted since the sale are skipped during restock.
func (s *Store) VoidSale(ctx context.Context, id int64, at time.Time) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var sale domain.Sale
	var voidedAt sql.NullTime
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, receipt, total, voided, voided_at, created_at
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&sale.ID, &sale.Receipt, &sale.Total, &sale.Voided, &voidedAt, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSaleNotFound
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	if voidedAt.Valid {
		t := voidedAt.Time.UTC()
		sale.VoidedAt = &t
	}

	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT id, sale_id, product_id, name, barcode, qty, base_price, unit_price
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	items := make([]domain.SaleItem, 0, 8)
	for itemRows.Next() {
		var item domain.SaleItem
		if err := itemRows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Name, &item.Barcode, &item.Qty, &item.BasePrice, &item.UnitPrice); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()
	sale.Items = items

	if sale.Voided {
		return &sale, nil
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET voided = true, voided_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		// Zero rows affected means the product was deleted; skip it.
		_, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity + $1, updated_at = now()
			WHERE id = $2
		`, item.Qty, item.ProductID)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return nil, store.ErrStockValidationFailed
		}
		return nil, err
	}

	sale.Voided = true
	voided := at.UTC()
	sale.VoidedAt = &voided
	return &sale, nil
}

func (s *Store) SalesSummary(ctx context.Context, from *time.Time, to *time.Time) (domain.SalesSummary, error) {
	var summary domain.SalesSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::bigint, COALESCE(SUM(total),0)
		FROM sales
		WHERE voided = false
			AND ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
	`, nullTime(from), nullTime(to)).Scan(&summary.Transactions, &summary.Revenue)
	return summary, err
}

func (s *Store) ProductsSold(ctx context.Context, from time.Time, to time.Time) ([]domain.ProductSales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT si.product_id, si.name, SUM(si.qty)::bigint, COALESCE(SUM(si.qty * si.unit_price),0)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.voided = false
			AND s.created_at >= $1
			AND s.created_at < $2
		GROUP BY si.product_id, si.name
		ORDER BY 4 DESC, si.name
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.ProductSales, 0, 32)
	for rows.Next() {
		var row domain.ProductSales
		if err := rows.Scan(&row.ProductID, &row.Name, &row.QtySold, &row.Revenue); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) InventoryRows(ctx context.Context) ([]domain.InventoryReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.quantity,
			COALESCE(sold.units, 0)::bigint,
			COALESCE(sold.revenue, 0)
		FROM products p
		LEFT JOIN (
			SELECT si.product_id, SUM(si.qty) AS units, SUM(si.qty * si.unit_price) AS revenue
			FROM sale_items si
			JOIN sales s ON s.id = si.sale_id
			WHERE s.voided = false
			GROUP BY si.product_id
		) sold ON sold.product_id = p.id
		ORDER BY p.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.InventoryReportRow, 0, 64)
	for rows.Next() {
		var row domain.InventoryReportRow
		if err := rows.Scan(&row.ProductID, &row.Name, &row.RemainingStock, &row.UnitsSold, &row.Revenue); err != nil {
			return nil, err
		}
		row.BeginningStock = row.RemainingStock + int(row.UnitsSold)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrInvalidInput
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrInvalidInput
	}
	return nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}
