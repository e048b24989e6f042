package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/models"
)

// Settlement is the new accumulator state of a campaign after an order was
// folded into it.
type Settlement struct {
	CurrentAmount    float64
	ParticipantCount int
	Status           models.CampaignStatus
	TargetReached    bool
}

// settle adds one participant contributing orderTotal to campaign. The status
// moves to target_reached only from active, so it latches.
func settle(campaign models.Campaign, orderTotal float64) Settlement {
	s := Settlement{
		CurrentAmount:    campaign.CurrentAmount + orderTotal,
		ParticipantCount: campaign.ParticipantCount + 1,
		Status:           campaign.Status,
	}
	if s.CurrentAmount >= campaign.TargetAmount && campaign.Status == models.CampaignActive {
		s.Status = models.CampaignTargetReached
		s.TargetReached = true
	}
	return s
}

// recordImpact credits the buyer's profile and appends a ledger entry. It
// returns the money saved figure written to the ledger.
func recordImpact(ctx context.Context, tx Tx, order models.Order, now time.Time) (float64, error) {
	profile, err := tx.Profile(ctx, order.UserID)
	if errors.Is(err, ErrRecordNotFound) {
		return 0, ErrProfileNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load profile: %w", err)
	}

	waste := order.Impact.WastePrevented
	if err := tx.AddProfileImpact(ctx, profile.ID, waste, SustainabilityPoints(waste)); err != nil {
		return 0, fmt.Errorf("update profile: %w", err)
	}

	groupOrders := 0
	if order.CampaignID != nil {
		groupOrders = 1
	}
	entry := models.ImpactEntry{
		UserID:                  order.UserID,
		Date:                    now,
		WastePrevented:          waste,
		CarbonSaved:             order.Impact.CarbonSaved,
		MoneySaved:              MoneySaved(order.TotalAmount),
		OrdersCompleted:         1,
		GroupOrdersParticipated: groupOrders,
	}
	if err := tx.InsertImpactEntry(ctx, &entry); err != nil {
		return 0, fmt.Errorf("insert impact entry: %w", err)
	}
	return entry.MoneySaved, nil
}

// settleCampaign re-reads the campaign and folds orderTotal into it. A
// campaign that no longer exists yields ErrCampaignNotFound.
func settleCampaign(ctx context.Context, tx Tx, campaignID primitive.ObjectID, orderTotal float64) (*models.Campaign, Settlement, error) {
	campaign, err := tx.Campaign(ctx, campaignID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, Settlement{}, ErrCampaignNotFound
	}
	if err != nil {
		return nil, Settlement{}, fmt.Errorf("reload campaign: %w", err)
	}

	s := settle(*campaign, orderTotal)
	if err := tx.SettleCampaign(ctx, campaignID, s); err != nil {
		return nil, Settlement{}, fmt.Errorf("settle campaign: %w", err)
	}

	settled := *campaign
	settled.CurrentAmount = s.CurrentAmount
	settled.ParticipantCount = s.ParticipantCount
	settled.Status = s.Status
	return &settled, s, nil
}
