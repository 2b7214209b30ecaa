// Package cart holds the in-progress checkout state for a single terminal
// session. Stock checks run against the product snapshot captured when the
// line was added; the store re-validates atomically at checkout.
package cart

import (
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/pricing"
	"warungpos/backend/internal/store"
)

type Line struct {
	Product     domain.Product
	Qty         int
	ManualPrice *float64
}

// PricedLine is a Line with its resolved per-unit price.
type PricedLine struct {
	Line
	UnitPrice float64
}

type Totals struct {
	Original float64
	Discount float64
	Grand    float64
}

type Cart struct {
	lines []Line
}

func New() *Cart {
	return &Cart{lines: make([]Line, 0, 8)}
}

// Add puts qty units of product into the cart, merging with an existing
// line for the same product. The cumulative quantity is checked against
// the product's on-hand stock.
func (c *Cart) Add(product domain.Product, qty int) error {
	if qty < 1 {
		return store.ErrInvalidInput
	}

	for i := range c.lines {
		if c.lines[i].Product.ID != product.ID {
			continue
		}
		merged := c.lines[i].Qty + qty
		if merged > product.Quantity {
			return &store.InsufficientStockError{ProductID: product.ID, Available: product.Quantity, Requested: merged}
		}
		c.lines[i].Product = product
		c.lines[i].Qty = merged
		return nil
	}

	if qty > product.Quantity {
		return &store.InsufficientStockError{ProductID: product.ID, Available: product.Quantity, Requested: qty}
	}
	c.lines = append(c.lines, Line{Product: product, Qty: qty})
	return nil
}

// Remove drops the line for productID. Removing an absent line is a no-op.
func (c *Cart) Remove(productID int64) {
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// SetQuantity replaces the quantity of an existing line. A quantity below
// one removes the line.
func (c *Cart) SetQuantity(productID int64, qty int) error {
	if qty < 1 {
		c.Remove(productID)
		return nil
	}

	for i := range c.lines {
		if c.lines[i].Product.ID != productID {
			continue
		}
		if qty > c.lines[i].Product.Quantity {
			return &store.InsufficientStockError{ProductID: productID, Available: c.lines[i].Product.Quantity, Requested: qty}
		}
		c.lines[i].Qty = qty
		return nil
	}
	return store.ErrProductNotFound
}

// SetManualPrice installs a cashier price override on an existing line.
// The override is validated against the line's base price; nil clears it.
func (c *Cart) SetManualPrice(productID int64, price *float64) error {
	for i := range c.lines {
		if c.lines[i].Product.ID != productID {
			continue
		}
		if price != nil {
			if _, err := pricing.EffectiveUnitPrice(c.lines[i].Product.Price, nil, c.lines[i].Qty, price); err != nil {
				return err
			}
		}
		c.lines[i].ManualPrice = price
		return nil
	}
	return store.ErrProductNotFound
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// PricedLines resolves the effective unit price for every line.
func (c *Cart) PricedLines() ([]PricedLine, error) {
	priced := make([]PricedLine, 0, len(c.lines))
	for _, line := range c.lines {
		unit, err := pricing.EffectiveUnitPrice(line.Product.Price, line.Product.Discounts, line.Qty, line.ManualPrice)
		if err != nil {
			return nil, err
		}
		priced = append(priced, PricedLine{Line: line, UnitPrice: unit})
	}
	return priced, nil
}

// Totals aggregates the line breakdowns. Original minus Discount equals
// Grand by construction.
func (c *Cart) Totals() (Totals, error) {
	priced, err := c.PricedLines()
	if err != nil {
		return Totals{}, err
	}

	var totals Totals
	for _, line := range priced {
		lt := pricing.Totals(line.Product.Price, line.UnitPrice, line.Qty)
		totals.Original += lt.Original
		totals.Discount += lt.Discount
		totals.Grand += lt.Total
	}
	return totals, nil
}
