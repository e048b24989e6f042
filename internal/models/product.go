package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a listing of imperfect produce offered by a farmer.
type Product struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                string             `bson:"name" json:"name"`
	Description         string             `bson:"description" json:"description"`
	Price               float64            `bson:"price" json:"price"`
	ImageRef            string             `bson:"imageRef,omitempty" json:"imageRef,omitempty"`
	ImageURL            string             `bson:"-" json:"imageUrl,omitempty"`
	FarmerID            primitive.ObjectID `bson:"farmerId" json:"farmerId"`
	Category            string             `bson:"category" json:"category"`
	ConditionGrade      string             `bson:"conditionGrade" json:"conditionGrade"`
	StockQuantity       int                `bson:"stockQuantity" json:"stockQuantity"`
	Unit                string             `bson:"unit" json:"unit"`
	HarvestDate         *time.Time         `bson:"harvestDate,omitempty" json:"harvestDate,omitempty"`
	ExpiryDate          *time.Time         `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	IsActive            bool               `bson:"isActive" json:"isActive"`
	NutritionalInfo     string             `bson:"nutritionalInfo,omitempty" json:"nutritionalInfo,omitempty"`
	StorageInstructions string             `bson:"storageInstructions,omitempty" json:"storageInstructions,omitempty"`
	RecipeSuggestions   StringList         `bson:"recipeSuggestions,omitempty" json:"recipeSuggestions,omitempty"`
	CarbonFootprint     float64            `bson:"carbonFootprint,omitempty" json:"carbonFootprint,omitempty"`
	InStock             bool               `bson:"-" json:"inStock"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
}

// Available reports whether the product can satisfy a request for quantity units.
func (p Product) Available(quantity int) bool {
	return p.IsActive && p.StockQuantity >= quantity
}
