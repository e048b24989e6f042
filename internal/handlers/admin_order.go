package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"uglies/internal/database"
	"uglies/internal/events"
	"uglies/internal/models"
)

type updateOrderStatusRequest struct {
	Status         string `json:"status" binding:"required"`
	TrackingNumber string `json:"trackingNumber"`
}

type adminOrderView struct {
	orderView
	Buyer *models.UserProfile `json:"buyer,omitempty"`
}

func GetAllOrders(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/orders"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			if !models.OrderStatus(status).Valid() {
				respondWithError(c, http.StatusBadRequest, route, "invalid status")
				return
			}
			filter["status"] = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		collection := db.Collection(database.Orders)
		total, err := collection.CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := applyPagination(options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}), page, limit)
		cursor, err := collection.Find(ctx, filter, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		orders := make([]models.Order, 0)
		if err := cursor.All(ctx, &orders); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		views, err := loadOrderViews(ctx, db, assets, orders)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		buyerIDs := make([]primitive.ObjectID, 0, len(orders))
		for _, order := range orders {
			buyerIDs = append(buyerIDs, order.UserID)
		}
		buyers, err := findProfiles(ctx, db, buyerIDs)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		data := make([]adminOrderView, 0, len(views))
		for _, view := range views {
			item := adminOrderView{orderView: view}
			if buyer, ok := buyers[view.UserID]; ok {
				buyer := buyer
				item.Buyer = &buyer
			}
			data = append(data, item)
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       data,
			"pagination": paginationMeta(page, limit, total),
		})
	}
}

// findProfiles loads profiles keyed by their user id.
func findProfiles(ctx context.Context, db *mongo.Database, userIDs []primitive.ObjectID) (map[primitive.ObjectID]models.UserProfile, error) {
	profiles := make(map[primitive.ObjectID]models.UserProfile)
	if len(userIDs) == 0 {
		return profiles, nil
	}
	cursor, err := db.Collection(database.Profiles).Find(ctx, bson.M{"userId": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, err
	}
	var list []models.UserProfile
	if err := cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	for _, p := range list {
		profiles[p.UserID] = p
	}
	return profiles, nil
}

// UpdateOrderStatus moves an order along its lifecycle and announces the
// change. The update is conditional on the status read so two admins cannot
// both apply a transition from the same state.
func UpdateOrderStatus(db *mongo.Database, publisher events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /admin/api/orders/:id/status"
		defer handlePanic(c, route)

		orderID, ok := objectIDParam(c, "id", route)
		if !ok {
			return
		}

		var req updateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		next := models.OrderStatus(strings.TrimSpace(req.Status))
		if !next.Valid() {
			respondWithError(c, http.StatusBadRequest, route, "invalid status")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		collection := db.Collection(database.Orders)
		var current models.Order
		err := collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&current)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if !current.Status.CanTransitionTo(next) {
			respondWithError(c, http.StatusConflict, route, "cannot move order from "+string(current.Status)+" to "+string(next))
			return
		}

		set := bson.M{"status": next, "updatedAt": time.Now().UTC()}
		if tracking := strings.TrimSpace(req.TrackingNumber); tracking != "" {
			set["trackingNumber"] = tracking
		}

		var updated models.Order
		err = collection.FindOneAndUpdate(
			ctx,
			bson.M{"_id": orderID, "status": current.Status},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusConflict, route, "order status changed concurrently")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[ORDER] [INFO] order %s moved %s -> %s", orderID.Hex(), current.Status, updated.Status)
		if err := publisher.Publish(ctx, events.OrderStatusChanged(updated, current.Status)); err != nil {
			log.Printf("[ORDER] [WARN] publish status change for %s failed: %v", orderID.Hex(), err)
		}

		c.JSON(http.StatusOK, updated)
	}
}
