package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CampaignStatus string

const (
	CampaignActive        CampaignStatus = "active"
	CampaignTargetReached CampaignStatus = "target_reached"
	CampaignCompleted     CampaignStatus = "completed"
	CampaignCancelled     CampaignStatus = "cancelled"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignActive, CampaignTargetReached, CampaignCompleted, CampaignCancelled:
		return true
	}
	return false
}

func (s CampaignStatus) Terminal() bool {
	switch s {
	case CampaignCompleted, CampaignCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a campaign may move from s to next. A
// campaign never returns to active once it has left it.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	if !next.Valid() || s.Terminal() {
		return false
	}
	switch s {
	case CampaignActive:
		return next != CampaignActive
	case CampaignTargetReached:
		return next == CampaignCompleted || next == CampaignCancelled
	}
	return false
}

type HubLevel string

const (
	HubBronze   HubLevel = "bronze"
	HubSilver   HubLevel = "silver"
	HubGold     HubLevel = "gold"
	HubPlatinum HubLevel = "platinum"
)

// HubLevelForOrders ranks an organizer by the number of orders they placed.
func HubLevelForOrders(orders int64) HubLevel {
	switch {
	case orders > 50:
		return HubPlatinum
	case orders > 20:
		return HubGold
	case orders > 5:
		return HubSilver
	default:
		return HubBronze
	}
}

// ProductOffer is a campaign discount on a single product.
type ProductOffer struct {
	ProductID          primitive.ObjectID `bson:"productId" json:"productId"`
	DiscountPercentage float64            `bson:"discountPercentage" json:"discountPercentage"`
	MinQuantity        int                `bson:"minQuantity" json:"minQuantity"`
}

// CampaignImpact summarises what a completed campaign achieved.
type CampaignImpact struct {
	TotalWastePrevented float64 `bson:"totalWastePrevented" json:"totalWastePrevented"`
	CarbonSaved         float64 `bson:"carbonSaved" json:"carbonSaved"`
	ParticipantSavings  float64 `bson:"participantSavings" json:"participantSavings"`
}

// Campaign is a neighborhood group-buying pool.
type Campaign struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title            string             `bson:"title" json:"title"`
	Description      string             `bson:"description" json:"description"`
	OrganizerID      primitive.ObjectID `bson:"organizerId" json:"organizerId"`
	Neighborhood     string             `bson:"neighborhood" json:"neighborhood"`
	TargetAmount     float64            `bson:"targetAmount" json:"targetAmount"`
	CurrentAmount    float64            `bson:"currentAmount" json:"currentAmount"`
	ParticipantCount int                `bson:"participantCount" json:"participantCount"`
	Deadline         time.Time          `bson:"deadline" json:"deadline"`
	DeliveryDate     time.Time          `bson:"deliveryDate" json:"deliveryDate"`
	DeliveryLocation string             `bson:"deliveryLocation" json:"deliveryLocation"`
	Status           CampaignStatus     `bson:"status" json:"status"`
	Offers           []ProductOffer     `bson:"offers" json:"offers"`
	HubLevel         HubLevel           `bson:"hubLevel" json:"hubLevel"`
	Impact           *CampaignImpact    `bson:"impact,omitempty" json:"impact,omitempty"`
	InviteCode       string             `bson:"inviteCode" json:"inviteCode"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
}

// Offer returns the campaign's offer for productID, if any.
func (c Campaign) Offer(productID primitive.ObjectID) (ProductOffer, bool) {
	for _, offer := range c.Offers {
		if offer.ProductID == productID {
			return offer, true
		}
	}
	return ProductOffer{}, false
}
