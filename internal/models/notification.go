package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationOrderUpdate     NotificationType = "order_update"
	NotificationGroupBuying     NotificationType = "group_buying"
	NotificationNewProduct      NotificationType = "new_product"
	NotificationFarmerStory     NotificationType = "farmer_story"
	NotificationImpactMilestone NotificationType = "impact_milestone"
)

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Type      NotificationType   `bson:"type" json:"type"`
	Title     string             `bson:"title" json:"title"`
	Message   string             `bson:"message" json:"message"`
	IsRead    bool               `bson:"isRead" json:"isRead"`
	RelatedID string             `bson:"relatedId,omitempty" json:"relatedId,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
