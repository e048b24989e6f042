package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"uglies/internal/models"
)

// NotificationStore persists in-app notifications for the event dispatcher.
type NotificationStore struct {
	db *mongo.Database
}

func NewNotificationStore(db *mongo.Database) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	res, err := s.db.Collection(Notifications).InsertOne(ctx, n)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		n.ID = id
	}
	return nil
}
