package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"uglies/internal/database"
	"uglies/internal/models"
)

/* =======================
   REQUEST MODELS
======================= */

type ProductUpdateRequest struct {
	Name                *string    `json:"name"`
	Description         *string    `json:"description"`
	Price               *float64   `json:"price"`
	Category            *string    `json:"category"`
	ConditionGrade      *string    `json:"conditionGrade"`
	Unit                *string    `json:"unit"`
	HarvestDate         *time.Time `json:"harvestDate"`
	ExpiryDate          *time.Time `json:"expiryDate"`
	IsActive            *bool      `json:"isActive"`
	NutritionalInfo     *string    `json:"nutritionalInfo"`
	StorageInstructions *string    `json:"storageInstructions"`
	RecipeSuggestions   *[]string  `json:"recipeSuggestions"`
	CarbonFootprint     *float64   `json:"carbonFootprint"`
}

type StockAdjustmentRequest struct {
	Change int `json:"change" binding:"required"`
}

func (r ProductUpdateRequest) toUpdate() (bson.M, error) {
	set := bson.M{}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return nil, errors.New("name cannot be empty")
		}
		set["name"] = name
	}
	if r.Description != nil {
		set["description"] = strings.TrimSpace(*r.Description)
	}
	if r.Price != nil {
		if *r.Price <= 0 {
			return nil, errors.New("invalid price")
		}
		set["price"] = *r.Price
	}
	if r.Category != nil {
		category := strings.TrimSpace(*r.Category)
		if category == "" {
			return nil, errors.New("category cannot be empty")
		}
		set["category"] = category
	}
	if r.ConditionGrade != nil {
		set["conditionGrade"] = strings.TrimSpace(*r.ConditionGrade)
	}
	if r.Unit != nil {
		set["unit"] = strings.TrimSpace(*r.Unit)
	}
	if r.HarvestDate != nil {
		set["harvestDate"] = *r.HarvestDate
	}
	if r.ExpiryDate != nil {
		set["expiryDate"] = *r.ExpiryDate
	}
	if r.IsActive != nil {
		set["isActive"] = *r.IsActive
	}
	if r.NutritionalInfo != nil {
		set["nutritionalInfo"] = strings.TrimSpace(*r.NutritionalInfo)
	}
	if r.StorageInstructions != nil {
		set["storageInstructions"] = strings.TrimSpace(*r.StorageInstructions)
	}
	if r.RecipeSuggestions != nil {
		set["recipeSuggestions"] = models.StringList(compactList(*r.RecipeSuggestions))
	}
	if r.CarbonFootprint != nil {
		if *r.CarbonFootprint < 0 {
			return nil, errors.New("carbonFootprint must be zero or greater")
		}
		set["carbonFootprint"] = *r.CarbonFootprint
	}
	return set, nil
}

func mapKeys(input bson.M) []string {
	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

/* =======================
   GET (ADMIN) – LIST
======================= */

func GetAllProducts(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/products"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if category := strings.TrimSpace(c.Query("category")); category != "" {
			filter["category"] = category
		}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			pattern := bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
			filter["$or"] = []bson.M{{"name": pattern}, {"description": pattern}}
		}
		if isActive := strings.TrimSpace(c.Query("isActive")); isActive != "" {
			filter["isActive"] = strings.EqualFold(isActive, "true")
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		total, err := db.Collection(database.Products).CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := applyPagination(options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}), page, limit)
		cursor, err := db.Collection(database.Products).Find(ctx, filter, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		products, err := decodeProducts(ctx, cursor)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		views, err := productViews(ctx, db, assets, products)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       views,
			"pagination": paginationMeta(page, limit, total),
		})
	}
}

/* =======================
   CREATE
======================= */

func CreateProduct(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/products"
		defer handlePanic(c, route)

		if !strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data") {
			respondWithError(c, http.StatusUnsupportedMediaType, route, "multipart/form-data required")
			return
		}

		input, err := parseMultipartProductRequest(c, assets)
		if err != nil {
			log.Printf("[%s] multipart error: %v", route, err)
			respondMultipartError(c, err)
			return
		}

		discardImage := func() {
			if err := assets.Delete(input.ImageRef); err != nil {
				log.Printf("[%s] image cleanup failed: %v", route, err)
			}
		}

		product, err := input.toProduct(time.Now().UTC())
		if err != nil {
			discardImage()
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		count, err := db.Collection(database.Farmers).CountDocuments(ctx, bson.M{"_id": product.FarmerID})
		if err != nil {
			discardImage()
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count == 0 {
			discardImage()
			respondWithError(c, http.StatusBadRequest, route, "farmer not found")
			return
		}

		res, err := db.Collection(database.Products).InsertOne(ctx, product)
		if err != nil {
			discardImage()
			log.Printf("[%s] insert error: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		product.ID = res.InsertedID.(primitive.ObjectID)
		product.ImageURL = assets.URL(product.ImageRef)
		product.InStock = product.StockQuantity > 0
		log.Printf("[%s] product %s created", route, product.ID.Hex())
		c.JSON(http.StatusCreated, product)
	}
}

/* =======================
   UPDATE
======================= */

func UpdateProduct(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/products/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, "id", route)
		if !ok {
			return
		}

		removeImage := false
		if removeRaw := strings.TrimSpace(c.Query("removeImage")); removeRaw != "" {
			parsed, err := strconv.ParseBool(removeRaw)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "removeImage must be boolean")
				return
			}
			removeImage = parsed
		}

		var req ProductUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}

		updateSet, err := req.toUpdate()
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var existing models.Product
		err = db.Collection(database.Products).FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		update := bson.M{}
		if len(updateSet) > 0 {
			update["$set"] = updateSet
		}
		if removeImage {
			update["$unset"] = bson.M{"imageRef": ""}
		}
		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		log.Printf("[%s] update fields: %v removeImage=%t", route, mapKeys(updateSet), removeImage)

		var raw bson.M
		err = db.Collection(database.Products).FindOneAndUpdate(
			ctx,
			bson.M{"_id": id},
			update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&raw)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if removeImage && existing.ImageRef != "" {
			if err := assets.Delete(existing.ImageRef); err != nil {
				log.Printf("[%s] image delete failed: %v", route, err)
			}
		}

		updated, err := normalizeProductDocument(raw)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}
		updated.ImageURL = assets.URL(updated.ImageRef)
		c.JSON(http.StatusOK, updated)
	}
}

/* =======================
   STOCK
======================= */

// stockAdjustmentFilter only matches while the adjustment keeps stock at or
// above zero.
func stockAdjustmentFilter(id primitive.ObjectID, change int) bson.M {
	filter := bson.M{"_id": id}
	if change < 0 {
		filter["stockQuantity"] = bson.M{"$gte": -change}
	}
	return filter
}

func AdjustProductStock(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/products/:id/stock"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, "id", route)
		if !ok {
			return
		}

		var req StockAdjustmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var updated models.Product
		err := db.Collection(database.Products).FindOneAndUpdate(
			ctx,
			stockAdjustmentFilter(id, req.Change),
			bson.M{"$inc": bson.M{"stockQuantity": req.Change}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			count, countErr := db.Collection(database.Products).CountDocuments(ctx, bson.M{"_id": id})
			if countErr == nil && count == 0 {
				respondWithError(c, http.StatusNotFound, route, "product not found")
				return
			}
			respondWithError(c, http.StatusConflict, route, "stock cannot go below zero")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[%s] product %s stock %+d -> %d", route, id.Hex(), req.Change, updated.StockQuantity)
		c.JSON(http.StatusOK, gin.H{
			"id":            updated.ID.Hex(),
			"stockQuantity": updated.StockQuantity,
			"inStock":       updated.StockQuantity > 0,
		})
	}
}

/* =======================
   DELETE (deactivate)
======================= */

func DeleteProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/products/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		result, err := db.Collection(database.Products).UpdateOne(
			ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"isActive": false}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}

		c.Status(http.StatusNoContent)
	}
}
