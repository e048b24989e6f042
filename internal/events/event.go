package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/models"
)

const (
	TypeOrderCreated          = "order.created"
	TypeOrderStatusChanged    = "order.status_changed"
	TypeCampaignTargetReached = "campaign.target_reached"
)

// Event is the envelope published for every domain change worth telling other
// systems about. UserID is the user the event concerns.
type Event struct {
	ID        string         `json:"event_id"`
	Type      string         `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	RelatedID string         `json:"related_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// New builds an event with a fresh id.
func New(eventType string, userID primitive.ObjectID, relatedID string, payload map[string]any) Event {
	evt := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RelatedID: relatedID,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
	if !userID.IsZero() {
		evt.UserID = userID.Hex()
	}
	return evt
}

func OrderCreated(order models.Order) Event {
	payload := map[string]any{
		"totalAmount":    order.TotalAmount,
		"items":          len(order.Items),
		"wastePrevented": order.Impact.WastePrevented,
	}
	if order.CampaignID != nil {
		payload["campaignId"] = order.CampaignID.Hex()
	}
	return New(TypeOrderCreated, order.UserID, order.ID.Hex(), payload)
}

func OrderStatusChanged(order models.Order, previous models.OrderStatus) Event {
	return New(TypeOrderStatusChanged, order.UserID, order.ID.Hex(), map[string]any{
		"from": string(previous),
		"to":   string(order.Status),
	})
}

// CampaignTargetReached is addressed to the campaign organizer.
func CampaignTargetReached(campaign models.Campaign) Event {
	return New(TypeCampaignTargetReached, campaign.OrganizerID, campaign.ID.Hex(), map[string]any{
		"title":            campaign.Title,
		"neighborhood":     campaign.Neighborhood,
		"currentAmount":    campaign.CurrentAmount,
		"targetAmount":     campaign.TargetAmount,
		"participantCount": campaign.ParticipantCount,
	})
}

// PayloadString returns payload[key] as a string, or "" when absent.
func (e Event) PayloadString(key string) string {
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}
