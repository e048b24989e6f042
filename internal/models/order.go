package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderReady, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an order may move from s to next. Orders
// advance one step at a time and may be cancelled until they are delivered.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() || s.Terminal() {
		return false
	}
	if next == OrderCancelled {
		return true
	}
	switch s {
	case OrderPending:
		return next == OrderConfirmed
	case OrderConfirmed:
		return next == OrderPreparing
	case OrderPreparing:
		return next == OrderReady
	case OrderReady:
		return next == OrderDelivered
	}
	return false
}

type DeliveryMethod string

const (
	DeliveryIndividual DeliveryMethod = "individual"
	DeliveryGroup      DeliveryMethod = "group"
	DeliveryPickup     DeliveryMethod = "pickup"
)

// OrderItem captures the price of a product at the moment it was purchased.
type OrderItem struct {
	ProductID       primitive.ObjectID `bson:"productId" json:"productId"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	PriceAtPurchase float64            `bson:"priceAtPurchase" json:"priceAtPurchase"`
}

// OrderImpact is the estimated environmental effect of a single order.
type OrderImpact struct {
	WastePrevented float64 `bson:"wastePrevented" json:"wastePrevented"`
	CarbonSaved    float64 `bson:"carbonSaved" json:"carbonSaved"`
}

// Order defines the persisted order document.
type Order struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"`
	Items           []OrderItem         `bson:"items" json:"items"`
	TotalAmount     float64             `bson:"totalAmount" json:"totalAmount"`
	Status          OrderStatus         `bson:"status" json:"status"`
	DeliveryAddress string              `bson:"deliveryAddress" json:"deliveryAddress"`
	DeliveryMethod  DeliveryMethod      `bson:"deliveryMethod" json:"deliveryMethod"`
	DeliveryDate    *time.Time          `bson:"deliveryDate,omitempty" json:"deliveryDate,omitempty"`
	CampaignID      *primitive.ObjectID `bson:"campaignId,omitempty" json:"campaignId,omitempty"`
	Notes           string              `bson:"notes,omitempty" json:"notes,omitempty"`
	Impact          OrderImpact         `bson:"impact" json:"impact"`
	TrackingNumber  string              `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}
