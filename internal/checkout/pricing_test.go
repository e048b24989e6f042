package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/models"
)

func TestUnitPrice(t *testing.T) {
	product := models.Product{ID: primitive.NewObjectID(), Price: 50}
	other := primitive.NewObjectID()

	assert.Equal(t, 50.0, unitPrice(product, nil))
	assert.Equal(t, 50.0, unitPrice(product, &models.Campaign{Offers: []models.ProductOffer{{ProductID: other, DiscountPercentage: 50}}}))
	assert.InDelta(t, 37.5, unitPrice(product, &models.Campaign{Offers: []models.ProductOffer{{ProductID: product.ID, DiscountPercentage: 25}}}), 1e-9)
	assert.Equal(t, 0.0, discountedPrice(50, 100))
}

func TestPriceLines(t *testing.T) {
	a := models.Product{ID: primitive.NewObjectID(), Price: 2}
	b := models.Product{ID: primitive.NewObjectID(), Price: 3.5}
	products := map[primitive.ObjectID]models.Product{a.ID: a, b.ID: b}
	lines := []models.CartLine{{ProductID: a.ID, Quantity: 3}, {ProductID: b.ID, Quantity: 2}}

	items, total := priceLines(lines, products, nil)
	assert.Equal(t, 13.0, total)
	assert.Equal(t, []models.OrderItem{
		{ProductID: a.ID, Quantity: 3, PriceAtPurchase: 2},
		{ProductID: b.ID, Quantity: 2, PriceAtPurchase: 3.5},
	}, items)
}

func TestEstimateImpact(t *testing.T) {
	impact := EstimateImpact([]models.CartLine{{Quantity: 3}, {Quantity: 1}})
	assert.Equal(t, 2.0, impact.WastePrevented)
	assert.Equal(t, 5.0, impact.CarbonSaved)
	assert.Equal(t, 0, SustainabilityPoints(0.05))
	assert.Equal(t, 12, SustainabilityPoints(1.25))
}

func TestSettle(t *testing.T) {
	s := settle(models.Campaign{TargetAmount: 100, CurrentAmount: 90, ParticipantCount: 4, Status: models.CampaignActive}, 10)
	assert.Equal(t, Settlement{CurrentAmount: 100, ParticipantCount: 5, Status: models.CampaignTargetReached, TargetReached: true}, s)

	s = settle(models.Campaign{TargetAmount: 100, CurrentAmount: 10, Status: models.CampaignActive}, 10)
	assert.Equal(t, models.CampaignActive, s.Status)
	assert.False(t, s.TargetReached)

	s = settle(models.Campaign{TargetAmount: 100, CurrentAmount: 150, Status: models.CampaignCompleted}, 10)
	assert.Equal(t, models.CampaignCompleted, s.Status)
	assert.Equal(t, 160.0, s.CurrentAmount)
	assert.False(t, s.TargetReached)
}
