package checkout

import (
	"math"

	"uglies/internal/models"
)

// Coarse impact heuristics. They are estimates per unit sold, not per kg of
// actual product.
const (
	WastePerUnitKg       = 0.5
	CarbonPerWasteKg     = 2.5
	MoneySavedRate       = 0.3
	ScorePointsPerWasteK = 10
)

// EstimateImpact derives the impact snapshot of an order from its lines.
func EstimateImpact(lines []models.CartLine) models.OrderImpact {
	var impact models.OrderImpact
	for _, line := range lines {
		waste := float64(line.Quantity) * WastePerUnitKg
		impact.WastePrevented += waste
		impact.CarbonSaved += waste * CarbonPerWasteKg
	}
	return impact
}

// MoneySaved estimates what the buyer saved against retail prices.
func MoneySaved(totalAmount float64) float64 {
	return totalAmount * MoneySavedRate
}

// SustainabilityPoints converts prevented waste into score points, truncated.
func SustainabilityPoints(wastePrevented float64) int {
	return int(math.Floor(wastePrevented * ScorePointsPerWasteK))
}
