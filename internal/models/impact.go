package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ImpactEntry is one append-only row of a user's impact ledger.
type ImpactEntry struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID                  primitive.ObjectID `bson:"userId" json:"userId"`
	Date                    time.Time          `bson:"date" json:"date"`
	WastePrevented          float64            `bson:"wastePrevented" json:"wastePrevented"`
	CarbonSaved             float64            `bson:"carbonSaved" json:"carbonSaved"`
	MoneySaved              float64            `bson:"moneySaved" json:"moneySaved"`
	OrdersCompleted         int                `bson:"ordersCompleted" json:"ordersCompleted"`
	GroupOrdersParticipated int                `bson:"groupOrdersParticipated" json:"groupOrdersParticipated"`
}

// ImpactTotals is the sum of a set of ledger entries.
type ImpactTotals struct {
	WastePrevented          float64 `json:"wastePrevented"`
	CarbonSaved             float64 `json:"carbonSaved"`
	MoneySaved              float64 `json:"moneySaved"`
	OrdersCompleted         int     `json:"ordersCompleted"`
	GroupOrdersParticipated int     `json:"groupOrdersParticipated"`
}

func SumImpact(entries []ImpactEntry) ImpactTotals {
	var totals ImpactTotals
	for _, e := range entries {
		totals.WastePrevented += e.WastePrevented
		totals.CarbonSaved += e.CarbonSaved
		totals.MoneySaved += e.MoneySaved
		totals.OrdersCompleted += e.OrdersCompleted
		totals.GroupOrdersParticipated += e.GroupOrdersParticipated
	}
	return totals
}
