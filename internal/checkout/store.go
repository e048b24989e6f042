package checkout

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/models"
)

var (
	// ErrRecordNotFound is returned by Tx lookups when no document matches.
	ErrRecordNotFound = errors.New("record not found")
	// ErrStockConflict is returned by Tx.DecrementStock when the guarded
	// decrement matched nothing.
	ErrStockConflict = errors.New("stock decrement would go negative")
)

// Store runs fn inside a single transaction. Either every write made through
// tx is committed or none is. Implementations may call fn more than once when
// the underlying database asks for a retry, so fn must not keep state across
// attempts.
type Store interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of reads and writes the checkout workflow performs.
type Tx interface {
	CartLines(ctx context.Context, userID primitive.ObjectID) ([]models.CartLine, error)
	Product(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Campaign(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	Profile(ctx context.Context, userID primitive.ObjectID) (*models.UserProfile, error)

	InsertOrder(ctx context.Context, order *models.Order) (primitive.ObjectID, error)
	DecrementStock(ctx context.Context, productID primitive.ObjectID, quantity int) error
	ClearCart(ctx context.Context, userID primitive.ObjectID) error
	AddProfileImpact(ctx context.Context, profileID primitive.ObjectID, wastePrevented float64, score int) error
	InsertImpactEntry(ctx context.Context, entry *models.ImpactEntry) error
	SettleCampaign(ctx context.Context, id primitive.ObjectID, s Settlement) error
}
