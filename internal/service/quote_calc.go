package service

import (
	"math"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// ComputeTotal returns Σ quantity × price. Malformed numbers were already
// coerced to 0 when the items were decoded; NaN and infinities count as 0.
func ComputeTotal(items []model.QuoteItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Quantity.Float() * it.Price.Float()
	}
	return total
}

func validateItems(items []model.QuoteItem) error {
	for i, it := range items {
		if it.Quantity.Float() < 0 {
			return validationf("item %d: quantity must not be negative", i)
		}
		if it.Price.Float() < 0 {
			return validationf("item %d: price must not be negative", i)
		}
		if line := it.Quantity.Float() * it.Price.Float(); !inAmountRange(line) {
			return validationf("item %d: line total exceeds %.2f", i, model.MaxAmount)
		}
	}
	return checkTotal(ComputeTotal(items))
}

// checkTotal rejects totals the money columns (and JSON) cannot represent.
func checkTotal(total float64) error {
	if !inAmountRange(total) {
		return validationf("total exceeds %.2f", model.MaxAmount)
	}
	return nil
}

func inAmountRange(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v <= model.MaxAmount
}

func validateAmount(v float64) error {
	if v < 0 {
		return validationf("amount must not be negative")
	}
	if !inAmountRange(v) {
		return validationf("amount exceeds %.2f", model.MaxAmount)
	}
	return nil
}
