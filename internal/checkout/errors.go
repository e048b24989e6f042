package checkout

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrUnauthenticated  = errors.New("not authenticated")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrProfileNotFound  = errors.New("user profile not found")
	ErrCampaignNotFound = errors.New("campaign not found")
)

// ProductUnavailableError is reported by validation when a product is missing,
// inactive or short on stock.
type ProductUnavailableError struct {
	ProductID   primitive.ObjectID
	ProductName string
	Requested   int
	Available   int
}

func (e ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available in requested quantity", e.ProductName)
}

// InsufficientStockError is reported when the stock decrement itself fails,
// meaning another checkout consumed the stock after validation.
type InsufficientStockError struct {
	ProductID   primitive.ObjectID
	ProductName string
	Requested   int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductName)
}
