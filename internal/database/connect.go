package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	Products      = "products"
	Farmers       = "farmers"
	CartItems     = "cart_items"
	Orders        = "orders"
	Campaigns     = "campaigns"
	Profiles      = "user_profiles"
	ImpactEntries = "user_impact"
	Notifications = "notifications"
	Users         = "users"
)

// Connect dials MongoDB and verifies the primary is reachable. Transactions
// require a replica set or sharded cluster.
func Connect(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
