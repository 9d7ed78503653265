// Package pricing derives subtotal, tax and grand total from cart state.
// Everything here is a pure function over its inputs; the engine never
// touches the catalog or the cart store.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/adiva-s/ResourceRite/internal/domain"
)

// Engine computes pricing breakdowns with a single flat tax rate.
type Engine struct {
	taxRate decimal.Decimal
}

func NewEngine(taxRate decimal.Decimal) *Engine {
	return &Engine{taxRate: taxRate}
}

// Compute derives the breakdown from a cart snapshot. Line items with a
// negative price or non-positive quantity are skipped, not fatal, so one
// corrupted entry does not break the whole cart view.
//
// Rounding policy: tax is computed from the unrounded subtotal and then
// rounded to 2 decimals; the grand total is round(subtotal + unrounded tax),
// NOT round(subtotal) + round(tax). The displayed subtotal is rounded
// separately for display.
func (e *Engine) Compute(cart *domain.Cart) domain.PricingBreakdown {
	subtotal := decimal.Zero
	if cart != nil {
		for _, item := range cart.Items {
			if !item.Countable() {
				continue
			}
			subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return e.fromSubtotal(subtotal)
}

// ComputeItems derives the breakdown from validation-time snapshot items.
// Used by checkout, where the charge comes from current catalog prices.
func (e *Engine) ComputeItems(items []domain.SnapshotItem) domain.PricingBreakdown {
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Quantity < 1 || item.UnitPrice.IsNegative() {
			continue
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return e.fromSubtotal(subtotal)
}

func (e *Engine) fromSubtotal(subtotal decimal.Decimal) domain.PricingBreakdown {
	tax := subtotal.Mul(e.taxRate)
	return domain.PricingBreakdown{
		Subtotal:   subtotal.Round(2),
		TaxAmount:  tax.Round(2),
		GrandTotal: subtotal.Add(tax).Round(2),
	}
}
