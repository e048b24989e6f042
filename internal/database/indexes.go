package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexSpecs() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		Products: {
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("active_newest")},
			{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("category_index")},
			{Keys: bson.D{{Key: "conditionGrade", Value: 1}}, Options: options.Index().SetName("conditionGrade_index")},
			{Keys: bson.D{{Key: "farmerId", Value: 1}}, Options: options.Index().SetName("farmerId_index")},
		},
		CartItems: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "productId", Value: 1}}, Options: options.Index().SetName("user_product_unique").SetUnique(true)},
		},
		Orders: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("userId_index")},
			{Keys: bson.D{{Key: "status", Value: 1}}, Options: options.Index().SetName("status_index")},
			{Keys: bson.D{{Key: "campaignId", Value: 1}}, Options: options.Index().SetName("campaignId_index").SetSparse(true)},
		},
		Campaigns: {
			{Keys: bson.D{{Key: "neighborhood", Value: 1}, {Key: "status", Value: 1}}, Options: options.Index().SetName("neighborhood_status")},
			{Keys: bson.D{{Key: "organizerId", Value: 1}}, Options: options.Index().SetName("organizerId_index")},
			{Keys: bson.D{{Key: "inviteCode", Value: 1}}, Options: options.Index().SetName("inviteCode_unique").SetUnique(true)},
		},
		Profiles: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetName("userId_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "neighborhood", Value: 1}, {Key: "sustainabilityScore", Value: -1}}, Options: options.Index().SetName("neighborhood_score")},
		},
		ImpactEntries: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}, Options: options.Index().SetName("userId_date")},
		},
		Notifications: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isRead", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("userId_isRead")},
		},
		Users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_unique").SetUnique(true)},
		},
	}
}

// EnsureIndexes creates every index the service relies on. It keeps going
// after a failure and returns the first error seen.
func EnsureIndexes(db *mongo.Database) error {
	var firstErr error
	for collection, models := range indexSpecs() {
		if err := ensureCollectionIndexes(db, collection, models); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func ensureCollectionIndexes(db *mongo.Database, collection string, models []mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Printf("EnsureIndexes: creating %d indexes on %s", len(models), collection)
	names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
	if err != nil {
		log.Printf("EnsureIndexes: %s index error: %v", collection, err)
		return err
	}
	log.Printf("EnsureIndexes: %s indexes ready: %v", collection, names)
	return nil
}
