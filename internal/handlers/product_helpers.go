package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"uglies/internal/database"
	"uglies/internal/models"
)

// productView is a product as shown to buyers, with its farmer attached.
type productView struct {
	models.Product
	Farmer *models.Farmer `json:"farmer,omitempty"`
}

// normalizeProductDocument accepts documents written before stock moved to
// stockQuantity and before isActive existed.
func normalizeProductDocument(raw bson.M) (models.Product, error) {
	if _, ok := raw["stockQuantity"]; !ok {
		raw["stockQuantity"] = raw["stock"]
	}
	switch typed := raw["stockQuantity"].(type) {
	case int32:
		raw["stockQuantity"] = int(typed)
	case int64:
		raw["stockQuantity"] = int(typed)
	case float64:
		raw["stockQuantity"] = int(typed)
	case int:
	default:
		raw["stockQuantity"] = 0
	}
	delete(raw, "stock")

	if _, ok := raw["isActive"].(bool); !ok {
		raw["isActive"] = true
	}

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Product{}, err
	}

	var p models.Product
	if err := bson.Unmarshal(data, &p); err != nil {
		return models.Product{}, err
	}

	p.InStock = p.StockQuantity > 0
	return p, nil
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}

		product, err := normalizeProductDocument(raw)
		if err != nil {
			return nil, err
		}

		products = append(products, product)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func findProducts(ctx context.Context, db *mongo.Database, filter bson.M) (map[primitive.ObjectID]models.Product, error) {
	cursor, err := db.Collection(database.Products).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products, err := decodeProducts(ctx, cursor)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

func findFarmers(ctx context.Context, db *mongo.Database, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Farmer, error) {
	byID := make(map[primitive.ObjectID]models.Farmer, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}

	cursor, err := db.Collection(database.Farmers).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var farmers []models.Farmer
	if err := cursor.All(ctx, &farmers); err != nil {
		return nil, err
	}
	for _, f := range farmers {
		byID[f.ID] = f
	}
	return byID, nil
}

// buildProductViews resolves image URLs and attaches farmers. Products whose
// farmer is missing are still returned, without a farmer.
func buildProductViews(products []models.Product, farmers map[primitive.ObjectID]models.Farmer, assets AssetStore) []productView {
	views := make([]productView, 0, len(products))
	for _, p := range products {
		p.ImageURL = assets.URL(p.ImageRef)
		view := productView{Product: p}
		if f, ok := farmers[p.FarmerID]; ok {
			f.ImageURL = assets.URL(f.ImageRef)
			view.Farmer = &f
		}
		views = append(views, view)
	}
	return views
}

func farmerIDsOf(products []models.Product) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(products))
	ids := make([]primitive.ObjectID, 0, len(products))
	for _, p := range products {
		if _, ok := seen[p.FarmerID]; ok || p.FarmerID.IsZero() {
			continue
		}
		seen[p.FarmerID] = struct{}{}
		ids = append(ids, p.FarmerID)
	}
	return ids
}

func productViews(ctx context.Context, db *mongo.Database, assets AssetStore, products []models.Product) ([]productView, error) {
	farmers, err := findFarmers(ctx, db, farmerIDsOf(products))
	if err != nil {
		return nil, err
	}
	return buildProductViews(products, farmers, assets), nil
}
