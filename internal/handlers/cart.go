package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"uglies/internal/database"
	"uglies/internal/models"
)

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type updateCartRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type cartLineView struct {
	models.CartLine
	Product productView `json:"product"`
}

// joinCartLines pairs lines with their products. Lines whose product no
// longer exists are dropped.
func joinCartLines(lines []models.CartLine, products []productView) []cartLineView {
	byID := make(map[primitive.ObjectID]productView, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	out := make([]cartLineView, 0, len(lines))
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			continue
		}
		out = append(out, cartLineView{CartLine: line, Product: product})
	}
	return out
}

func GetCart(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /cart"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "addedAt", Value: -1}})
		cursor, err := db.Collection(database.CartItems).Find(ctx, bson.M{"userId": userID}, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		lines := make([]models.CartLine, 0)
		if err := cursor.All(ctx, &lines); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		productIDs := make([]primitive.ObjectID, 0, len(lines))
		for _, line := range lines {
			productIDs = append(productIDs, line.ProductID)
		}
		byID, err := findProducts(ctx, db, bson.M{"_id": bson.M{"$in": productIDs}})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		products := make([]models.Product, 0, len(byID))
		for _, p := range byID {
			products = append(products, p)
		}
		views, err := productViews(ctx, db, assets, products)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, joinCartLines(lines, views))
	}
}

// AddToCart merges the quantity into an existing line for the same product.
func AddToCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}

		var req addToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var product models.Product
		err = db.Collection(database.Products).FindOne(ctx, bson.M{"_id": productID, "isActive": bson.M{"$ne": false}}).Decode(&product)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var line models.CartLine
		err = db.Collection(database.CartItems).FindOneAndUpdate(
			ctx,
			bson.M{"userId": userID, "productId": productID},
			bson.M{
				"$inc":         bson.M{"quantity": req.Quantity},
				"$setOnInsert": bson.M{"addedAt": time.Now().UTC()},
			},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&line)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[%s] user %s has %d x %s in cart", route, userID.Hex(), line.Quantity, productID.Hex())
		c.JSON(http.StatusOK, line)
	}
}

// UpdateCartItem sets a line's quantity; zero or less removes the line.
func UpdateCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /cart/:id"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}
		lineID, ok := objectIDParam(c, "id", route)
		if !ok {
			return
		}

		var req updateCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		owner := bson.M{"_id": lineID, "userId": userID}
		if *req.Quantity <= 0 {
			res, err := db.Collection(database.CartItems).DeleteOne(ctx, owner)
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if res.DeletedCount == 0 {
				respondWithError(c, http.StatusNotFound, route, "cart item not found")
				return
			}
			c.Status(http.StatusNoContent)
			return
		}

		var line models.CartLine
		err := db.Collection(database.CartItems).FindOneAndUpdate(
			ctx,
			owner,
			bson.M{"$set": bson.M{"quantity": *req.Quantity}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&line)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "cart item not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, line)
	}
}

func RemoveCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart/:id"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}
		lineID, ok := objectIDParam(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.CartItems).DeleteOne(ctx, bson.M{"_id": lineID, "userId": userID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "cart item not found")
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func ClearCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.CartItems).DeleteMany(ctx, bson.M{"userId": userID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": res.DeletedCount})
	}
}
