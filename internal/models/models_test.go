package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderPending, OrderConfirmed, true},
		{OrderConfirmed, OrderPreparing, true},
		{OrderPreparing, OrderReady, true},
		{OrderReady, OrderDelivered, true},
		{OrderPending, OrderCancelled, true},
		{OrderReady, OrderCancelled, true},
		{OrderPending, OrderDelivered, false},
		{OrderConfirmed, OrderPending, false},
		{OrderDelivered, OrderCancelled, false},
		{OrderCancelled, OrderPending, false},
		{OrderPending, OrderStatus("shipped"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCampaignStatusNeverReturnsToActive(t *testing.T) {
	for _, from := range []CampaignStatus{CampaignActive, CampaignTargetReached, CampaignCompleted, CampaignCancelled} {
		assert.False(t, from.CanTransitionTo(CampaignActive), "%s -> active", from)
	}
	assert.True(t, CampaignActive.CanTransitionTo(CampaignTargetReached))
	assert.True(t, CampaignTargetReached.CanTransitionTo(CampaignCompleted))
	assert.True(t, CampaignActive.CanTransitionTo(CampaignCancelled))
	assert.False(t, CampaignCompleted.CanTransitionTo(CampaignCancelled))
	assert.False(t, CampaignTargetReached.CanTransitionTo(CampaignStatus("paused")))
}

func TestHubLevelForOrders(t *testing.T) {
	assert.Equal(t, HubBronze, HubLevelForOrders(0))
	assert.Equal(t, HubBronze, HubLevelForOrders(5))
	assert.Equal(t, HubSilver, HubLevelForOrders(6))
	assert.Equal(t, HubGold, HubLevelForOrders(21))
	assert.Equal(t, HubPlatinum, HubLevelForOrders(51))
}

func TestCampaignOffer(t *testing.T) {
	productID := primitive.NewObjectID()
	campaign := Campaign{Offers: []ProductOffer{{ProductID: productID, DiscountPercentage: 20}}}

	offer, ok := campaign.Offer(productID)
	require.True(t, ok)
	assert.Equal(t, 20.0, offer.DiscountPercentage)

	_, ok = campaign.Offer(primitive.NewObjectID())
	assert.False(t, ok)
}

func TestStringListDecodesLegacyString(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"specialties": "Citrus, Stone fruits ,"})
	require.NoError(t, err)

	var farmer Farmer
	require.NoError(t, bson.Unmarshal(raw, &farmer))
	assert.Equal(t, StringList{"Citrus", "Stone fruits"}, farmer.Specialties)
}

func TestStringListRoundTripsAsArray(t *testing.T) {
	raw, err := bson.Marshal(Farmer{Specialties: StringList{"Herbs"}})
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.IsType(t, bson.A{}, doc["specialties"])
	assert.IsType(t, bson.A{}, doc["sustainabilityPractices"])
}

func TestSumImpact(t *testing.T) {
	totals := SumImpact([]ImpactEntry{
		{WastePrevented: 1, CarbonSaved: 2.5, MoneySaved: 60, OrdersCompleted: 1},
		{WastePrevented: 0.5, CarbonSaved: 1.25, MoneySaved: 30, OrdersCompleted: 1, GroupOrdersParticipated: 1},
	})
	assert.Equal(t, 1.5, totals.WastePrevented)
	assert.Equal(t, 3.75, totals.CarbonSaved)
	assert.Equal(t, 90.0, totals.MoneySaved)
	assert.Equal(t, 2, totals.OrdersCompleted)
	assert.Equal(t, 1, totals.GroupOrdersParticipated)
}
