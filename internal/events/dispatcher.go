package events

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/models"
)

// NotificationWriter persists in-app notifications.
type NotificationWriter interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
}

// Dispatcher turns selected events into user notifications and then forwards
// every event to the next publisher. A failed notification does not stop the
// event from being forwarded.
type Dispatcher struct {
	notifications NotificationWriter
	next          Publisher
	now           func() time.Time
}

func NewDispatcher(notifications NotificationWriter, next Publisher) *Dispatcher {
	if next == nil {
		next = LogPublisher{}
	}
	return &Dispatcher{notifications: notifications, next: next, now: time.Now}
}

func (d *Dispatcher) Publish(ctx context.Context, evt Event) error {
	if n, ok := d.notificationFor(evt); ok && d.notifications != nil {
		if err := d.notifications.InsertNotification(ctx, n); err != nil {
			log.Printf("[EVENTS] [WARN] notification for %s %s not stored: %v", evt.Type, evt.RelatedID, err)
		}
	}
	return d.next.Publish(ctx, evt)
}

func (d *Dispatcher) notificationFor(evt Event) (*models.Notification, bool) {
	userID, err := primitive.ObjectIDFromHex(evt.UserID)
	if err != nil {
		return nil, false
	}

	n := &models.Notification{
		UserID:    userID,
		RelatedID: evt.RelatedID,
		CreatedAt: d.now().UTC(),
	}
	switch evt.Type {
	case TypeOrderStatusChanged:
		n.Type = models.NotificationOrderUpdate
		n.Title = "Order update"
		n.Message = fmt.Sprintf("Your order is now %s.", evt.PayloadString("to"))
	case TypeCampaignTargetReached:
		n.Type = models.NotificationGroupBuying
		n.Title = "Campaign target reached"
		title := evt.PayloadString("title")
		if title == "" {
			title = "Your campaign"
		}
		n.Message = fmt.Sprintf("%s reached its target. Time to plan the delivery!", title)
	default:
		return nil, false
	}
	return n, true
}
