package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Farmer struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                    string             `bson:"name" json:"name" yaml:"name"`
	Bio                     string             `bson:"bio" json:"bio" yaml:"bio"`
	Location                string             `bson:"location" json:"location" yaml:"location"`
	FarmSize                string             `bson:"farmSize,omitempty" json:"farmSize,omitempty" yaml:"farmSize"`
	Specialties             StringList         `bson:"specialties" json:"specialties" yaml:"specialties"`
	Story                   string             `bson:"story" json:"story" yaml:"story"`
	ImageRef                string             `bson:"imageRef,omitempty" json:"imageRef,omitempty" yaml:"imageRef"`
	ImageURL                string             `bson:"-" json:"imageUrl,omitempty" yaml:"-"`
	ContactInfo             string             `bson:"contactInfo,omitempty" json:"contactInfo,omitempty" yaml:"contactInfo"`
	SustainabilityPractices StringList         `bson:"sustainabilityPractices" json:"sustainabilityPractices" yaml:"sustainabilityPractices"`
	Certifications          StringList         `bson:"certifications,omitempty" json:"certifications,omitempty" yaml:"certifications"`
	TotalWastePrevented     float64            `bson:"totalWastePrevented" json:"totalWastePrevented" yaml:"totalWastePrevented"`
	Rating                  float64            `bson:"rating,omitempty" json:"rating,omitempty" yaml:"rating"`
	IsActive                bool               `bson:"isActive" json:"isActive" yaml:"-"`
	JoinDate                time.Time          `bson:"joinDate" json:"joinDate" yaml:"-"`
}
