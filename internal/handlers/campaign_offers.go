package handlers

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/models"
)

type campaignOfferInput struct {
	ProductID          string  `json:"productId" binding:"required"`
	DiscountPercentage float64 `json:"discountPercentage"`
	MinQuantity        int     `json:"minQuantity"`
}

type createCampaignRequest struct {
	Title            string               `json:"title" binding:"required"`
	Description      string               `json:"description"`
	Neighborhood     string               `json:"neighborhood"`
	TargetAmount     float64              `json:"targetAmount" binding:"required"`
	Deadline         time.Time            `json:"deadline" binding:"required"`
	DeliveryDate     time.Time            `json:"deliveryDate" binding:"required"`
	DeliveryLocation string               `json:"deliveryLocation" binding:"required"`
	Offers           []campaignOfferInput `json:"offers"`
}

func validateOffer(in campaignOfferInput) (models.ProductOffer, error) {
	productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(in.ProductID))
	if err != nil {
		return models.ProductOffer{}, fmt.Errorf("invalid productId %q", in.ProductID)
	}
	if in.DiscountPercentage < 0 {
		return models.ProductOffer{}, fmt.Errorf("discountPercentage must not be negative")
	}
	if in.MinQuantity < 0 {
		return models.ProductOffer{}, fmt.Errorf("minQuantity must not be negative")
	}
	return models.ProductOffer{
		ProductID:          productID,
		DiscountPercentage: in.DiscountPercentage,
		MinQuantity:        in.MinQuantity,
	}, nil
}

// toCampaign validates the request. Neighborhood falls back to the
// organizer's own neighborhood. A product may carry at most one offer.
func (r createCampaignRequest) toCampaign(organizer models.UserProfile, now time.Time) (models.Campaign, error) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return models.Campaign{}, fmt.Errorf("title is required")
	}
	if r.TargetAmount <= 0 {
		return models.Campaign{}, fmt.Errorf("targetAmount must be greater than 0")
	}
	if !r.Deadline.After(now) {
		return models.Campaign{}, fmt.Errorf("deadline must be in the future")
	}
	if r.DeliveryDate.Before(r.Deadline) {
		return models.Campaign{}, fmt.Errorf("deliveryDate must not be before the deadline")
	}
	neighborhood := strings.TrimSpace(r.Neighborhood)
	if neighborhood == "" {
		neighborhood = organizer.Neighborhood
	}
	if neighborhood == "" {
		return models.Campaign{}, fmt.Errorf("neighborhood is required")
	}

	offers := make([]models.ProductOffer, 0, len(r.Offers))
	seen := make(map[primitive.ObjectID]bool, len(r.Offers))
	for _, in := range r.Offers {
		offer, err := validateOffer(in)
		if err != nil {
			return models.Campaign{}, err
		}
		if seen[offer.ProductID] {
			return models.Campaign{}, fmt.Errorf("duplicate offer for product %s", offer.ProductID.Hex())
		}
		seen[offer.ProductID] = true
		offers = append(offers, offer)
	}

	return models.Campaign{
		Title:            title,
		Description:      strings.TrimSpace(r.Description),
		OrganizerID:      organizer.UserID,
		Neighborhood:     neighborhood,
		TargetAmount:     r.TargetAmount,
		Deadline:         r.Deadline.UTC(),
		DeliveryDate:     r.DeliveryDate.UTC(),
		DeliveryLocation: strings.TrimSpace(r.DeliveryLocation),
		Status:           models.CampaignActive,
		Offers:           offers,
		CreatedAt:        now,
	}, nil
}

func offerProductIDs(offers []models.ProductOffer) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(offers))
	for _, o := range offers {
		ids = append(ids, o.ProductID)
	}
	return ids
}
