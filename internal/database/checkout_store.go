package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"uglies/internal/checkout"
	"uglies/internal/models"
)

// CheckoutStore runs the checkout workflow inside a MongoDB multi-document
// transaction. Snapshot reads plus write-conflict retries done by
// WithTransaction give each checkout a serializable view of the documents it
// touches.
type CheckoutStore struct {
	db      *mongo.Database
	timeout time.Duration
}

func NewCheckoutStore(db *mongo.Database) *CheckoutStore {
	return &CheckoutStore{db: db, timeout: 10 * time.Second}
}

func (s *CheckoutStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx, &mongoTx{db: s.db})
	}, txOpts)
	return err
}

type mongoTx struct {
	db *mongo.Database
}

func (t *mongoTx) findOne(ctx context.Context, collection string, filter bson.M, out any) error {
	err := t.db.Collection(collection).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return checkout.ErrRecordNotFound
	}
	return err
}

func (t *mongoTx) CartLines(ctx context.Context, userID primitive.ObjectID) ([]models.CartLine, error) {
	opts := options.Find().SetSort(bson.D{{Key: "addedAt", Value: 1}})
	cursor, err := t.db.Collection(CartItems).Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var lines []models.CartLine
	if err := cursor.All(ctx, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (t *mongoTx) Product(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	if err := t.findOne(ctx, Products, bson.M{"_id": id}, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (t *mongoTx) Campaign(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := t.findOne(ctx, Campaigns, bson.M{"_id": id}, &campaign); err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (t *mongoTx) Profile(ctx context.Context, userID primitive.ObjectID) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := t.findOne(ctx, Profiles, bson.M{"userId": userID}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (t *mongoTx) InsertOrder(ctx context.Context, order *models.Order) (primitive.ObjectID, error) {
	res, err := t.db.Collection(Orders).InsertOne(ctx, order)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected order id type %T", res.InsertedID)
	}
	return id, nil
}

// DecrementStock only matches while enough stock remains, so stock can never
// go negative even if another transaction committed in between.
func (t *mongoTx) DecrementStock(ctx context.Context, productID primitive.ObjectID, quantity int) error {
	filter := bson.M{
		"_id":           productID,
		"stockQuantity": bson.M{"$gte": quantity},
	}
	update := bson.M{"$inc": bson.M{"stockQuantity": -quantity}}

	res, err := t.db.Collection(Products).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return checkout.ErrStockConflict
	}
	return nil
}

func (t *mongoTx) ClearCart(ctx context.Context, userID primitive.ObjectID) error {
	_, err := t.db.Collection(CartItems).DeleteMany(ctx, bson.M{"userId": userID})
	return err
}

func (t *mongoTx) AddProfileImpact(ctx context.Context, profileID primitive.ObjectID, wastePrevented float64, score int) error {
	update := bson.M{"$inc": bson.M{
		"totalWastePrevented": wastePrevented,
		"sustainabilityScore": score,
	}}
	res, err := t.db.Collection(Profiles).UpdateByID(ctx, profileID, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return checkout.ErrProfileNotFound
	}
	return nil
}

func (t *mongoTx) InsertImpactEntry(ctx context.Context, entry *models.ImpactEntry) error {
	_, err := t.db.Collection(ImpactEntries).InsertOne(ctx, entry)
	return err
}

func (t *mongoTx) SettleCampaign(ctx context.Context, id primitive.ObjectID, s checkout.Settlement) error {
	update := bson.M{"$set": bson.M{
		"currentAmount":    s.CurrentAmount,
		"participantCount": s.ParticipantCount,
		"status":           s.Status,
	}}
	res, err := t.db.Collection(Campaigns).UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return checkout.ErrCampaignNotFound
	}
	return nil
}
