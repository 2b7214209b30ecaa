// Package pricing contains the pure price-resolution rules for checkout:
// quantity-tiered percentage discounts, manual price overrides and
// per-line totals. It has no knowledge of persistence or carts.
package pricing

import (
	"fmt"
	"math"

	"warungpos/backend/internal/domain"
)

// Epsilon is the tolerance used when comparing monetary amounts.
const Epsilon = 1e-6

// InvalidDiscountError reports a discount or override that would price a
// line outside the [0, base price] range.
type InvalidDiscountError struct {
	Reason string
}

func (e *InvalidDiscountError) Error() string {
	return "invalid discount: " + e.Reason
}

// ResolveDiscountPercent returns the highest percent among rules whose
// MinQty threshold is met by qty, or 0 when no rule applies.
func ResolveDiscountPercent(rules []domain.DiscountRule, qty int) float64 {
	best := 0.0
	for _, rule := range rules {
		if qty >= rule.MinQty && rule.Percent > best {
			best = rule.Percent
		}
	}
	return best
}

// EffectiveUnitPrice resolves the per-unit price for a line. A non-nil
// manualPrice always takes precedence over rule resolution. The result
// must lie within [0, basePrice].
func EffectiveUnitPrice(basePrice float64, rules []domain.DiscountRule, qty int, manualPrice *float64) (float64, error) {
	if basePrice < 0 {
		return 0, &InvalidDiscountError{Reason: fmt.Sprintf("base price %.2f below zero", basePrice)}
	}

	if manualPrice != nil {
		price := *manualPrice
		if price < 0 {
			return 0, &InvalidDiscountError{Reason: fmt.Sprintf("manual price %.2f below zero", price)}
		}
		if price > basePrice+Epsilon {
			return 0, &InvalidDiscountError{Reason: fmt.Sprintf("manual price %.2f above base price %.2f", price, basePrice)}
		}
		return price, nil
	}

	percent := ResolveDiscountPercent(rules, qty)
	if percent < 0 || percent > 100 {
		return 0, &InvalidDiscountError{Reason: fmt.Sprintf("discount percent %.2f out of range", percent)}
	}
	return basePrice * (1 - percent/100), nil
}

// LineTotals carries the monetary breakdown of a single cart line.
type LineTotals struct {
	Original float64
	Discount float64
	Total    float64
}

// Totals computes the breakdown for qty units priced at unitPrice against
// a catalog basePrice.
func Totals(basePrice float64, unitPrice float64, qty int) LineTotals {
	original := basePrice * float64(qty)
	total := unitPrice * float64(qty)
	return LineTotals{
		Original: original,
		Discount: original - total,
		Total:    total,
	}
}

// EqualWithin reports whether two amounts agree within Epsilon.
func EqualWithin(a float64, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}
