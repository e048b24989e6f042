package checkout

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/models"
)

// discountedPrice applies a campaign percentage to a list price. Discounts are
// not clamped: 100% yields zero and anything above yields a negative price.
func discountedPrice(price, discountPercentage float64) float64 {
	return price * (1 - discountPercentage/100)
}

// unitPrice resolves the effective price of product, taking the campaign's
// offer for it into account when campaign is non-nil.
func unitPrice(product models.Product, campaign *models.Campaign) float64 {
	if campaign == nil {
		return product.Price
	}
	offer, ok := campaign.Offer(product.ID)
	if !ok {
		return product.Price
	}
	return discountedPrice(product.Price, offer.DiscountPercentage)
}

// priceLines turns validated cart lines into order items and their total.
func priceLines(lines []models.CartLine, products map[primitive.ObjectID]models.Product, campaign *models.Campaign) ([]models.OrderItem, float64) {
	items := make([]models.OrderItem, 0, len(lines))
	total := 0.0
	for _, line := range lines {
		price := unitPrice(products[line.ProductID], campaign)
		items = append(items, models.OrderItem{
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			PriceAtPurchase: price,
		})
		total += price * float64(line.Quantity)
	}
	return items, total
}
