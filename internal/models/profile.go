package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleFarmer Role = "farmer"
)

type ProfilePreferences struct {
	Categories         []string `bson:"categories" json:"categories"`
	ConditionGrades    []string `bson:"conditionGrades" json:"conditionGrades"`
	DeliveryPreference string   `bson:"deliveryPreference" json:"deliveryPreference"`
}

// UserProfile holds marketplace data for an account. Score and waste totals
// only ever grow.
type UserProfile struct {
	ID                  primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID              primitive.ObjectID  `bson:"userId" json:"userId"`
	Role                Role                `bson:"role" json:"role"`
	Name                string              `bson:"name" json:"name"`
	Address             string              `bson:"address,omitempty" json:"address,omitempty"`
	Phone               string              `bson:"phone,omitempty" json:"phone,omitempty"`
	Neighborhood        string              `bson:"neighborhood" json:"neighborhood"`
	SustainabilityScore int                 `bson:"sustainabilityScore" json:"sustainabilityScore"`
	TotalWastePrevented float64             `bson:"totalWastePrevented" json:"totalWastePrevented"`
	JoinDate            time.Time           `bson:"joinDate" json:"joinDate"`
	Preferences         *ProfilePreferences `bson:"preferences,omitempty" json:"preferences,omitempty"`
}
