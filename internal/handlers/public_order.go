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

	"uglies/internal/checkout"
	"uglies/internal/database"
	"uglies/internal/idempotency"
	"uglies/internal/models"
)

// OrderCreator turns the caller's cart into an order.
type OrderCreator interface {
	CreateOrderFromCart(ctx context.Context, userID primitive.ObjectID, req checkout.Request) (*checkout.Result, error)
}

// IdempotencyStore remembers Idempotency-Key outcomes. A nil store disables
// replay protection.
type IdempotencyStore interface {
	Reserve(ctx context.Context, scope, key string) (result string, replay bool, err error)
	Complete(ctx context.Context, scope, key, result string) error
	Release(ctx context.Context, scope, key string) error
}

type createOrderRequest struct {
	DeliveryAddress string     `json:"deliveryAddress" binding:"required"`
	DeliveryMethod  string     `json:"deliveryMethod" binding:"omitempty,oneof=individual group pickup"`
	DeliveryDate    *time.Time `json:"deliveryDate"`
	Notes           string     `json:"notes"`
	CampaignID      string     `json:"campaignId"`
}

func (r createOrderRequest) toCheckout() (checkout.Request, error) {
	req := checkout.Request{
		DeliveryAddress: strings.TrimSpace(r.DeliveryAddress),
		DeliveryMethod:  models.DeliveryMethod(r.DeliveryMethod),
		DeliveryDate:    r.DeliveryDate,
		Notes:           strings.TrimSpace(r.Notes),
	}
	if req.DeliveryAddress == "" {
		return checkout.Request{}, errors.New("deliveryAddress is required")
	}
	if raw := strings.TrimSpace(r.CampaignID); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return checkout.Request{}, errors.New("invalid campaignId")
		}
		req.CampaignID = &id
	}
	return req, nil
}

// checkoutErrorResponse maps a checkout failure to its HTTP status and body.
func checkoutErrorResponse(err error) (int, gin.H) {
	var unavailable checkout.ProductUnavailableError
	var insufficient checkout.InsufficientStockError
	switch {
	case errors.Is(err, checkout.ErrUnauthenticated):
		return http.StatusUnauthorized, gin.H{"error": "unauthorized"}
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest, gin.H{"error": "cart is empty"}
	case errors.As(err, &unavailable):
		return http.StatusConflict, gin.H{
			"error":       unavailable.Error(),
			"productId":   unavailable.ProductID.Hex(),
			"productName": unavailable.ProductName,
			"requested":   unavailable.Requested,
			"available":   unavailable.Available,
		}
	case errors.As(err, &insufficient):
		return http.StatusConflict, gin.H{
			"error":       insufficient.Error(),
			"productId":   insufficient.ProductID.Hex(),
			"productName": insufficient.ProductName,
			"requested":   insufficient.Requested,
		}
	case errors.Is(err, checkout.ErrProfileNotFound):
		return http.StatusPreconditionFailed, gin.H{"error": "create a profile before placing orders"}
	default:
		return http.StatusInternalServerError, gin.H{"error": "order could not be created"}
	}
}

func createOrderResponse(result *checkout.Result) gin.H {
	body := gin.H{
		"orderId":       result.Order.ID.Hex(),
		"totalAmount":   result.Order.TotalAmount,
		"status":        result.Order.Status,
		"impact":        result.Order.Impact,
		"moneySaved":    result.MoneySaved,
		"targetReached": result.TargetReached,
	}
	if result.Campaign != nil {
		body["campaign"] = gin.H{
			"id":               result.Campaign.ID.Hex(),
			"currentAmount":    result.Campaign.CurrentAmount,
			"targetAmount":     result.Campaign.TargetAmount,
			"participantCount": result.Campaign.ParticipantCount,
			"status":           result.Campaign.Status,
		}
	}
	return body
}

// CreateOrder checks out the caller's cart. A repeated Idempotency-Key
// returns the order created by the first request instead of a new one.
func CreateOrder(creator OrderCreator, idem IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}

		var body createOrderRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			respondValidationError(c, err)
			return
		}
		req, err := body.toCheckout()
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx := c.Request.Context()
		scope := userID.Hex()
		key := idempotency.Key(c.Request)
		if idem == nil {
			key = ""
		}

		if key != "" {
			orderID, replay, err := idem.Reserve(ctx, scope, key)
			switch {
			case errors.Is(err, idempotency.ErrInFlight):
				respondWithError(c, http.StatusConflict, route, "a request with this idempotency key is in progress")
				return
			case err != nil:
				log.Printf("[ORDER] [WARN] idempotency unavailable, continuing without it: %v", err)
				key = ""
			case replay:
				log.Printf("[ORDER] [INFO] replaying order %s for user %s", orderID, scope)
				c.JSON(http.StatusOK, gin.H{"orderId": orderID, "replayed": true})
				return
			}
		}

		result, err := creator.CreateOrderFromCart(ctx, userID, req)
		if err != nil {
			if key != "" {
				if relErr := idem.Release(context.WithoutCancel(ctx), scope, key); relErr != nil {
					log.Printf("[ORDER] [WARN] release idempotency key: %v", relErr)
				}
			}
			status, payload := checkoutErrorResponse(err)
			log.Printf("[%s] returning error %d: %v", route, status, err)
			c.AbortWithStatusJSON(status, payload)
			return
		}

		if key != "" {
			if err := idem.Complete(context.WithoutCancel(ctx), scope, key, result.Order.ID.Hex()); err != nil {
				log.Printf("[ORDER] [WARN] complete idempotency key: %v", err)
			}
		}

		c.JSON(http.StatusCreated, createOrderResponse(result))
	}
}

type orderItemView struct {
	models.OrderItem
	Product *productView `json:"product,omitempty"`
}

type orderView struct {
	models.Order
	Items    []orderItemView  `json:"items"`
	Campaign *models.Campaign `json:"campaign,omitempty"`
}

func buildOrderViews(orders []models.Order, products []productView, campaigns map[primitive.ObjectID]models.Campaign) []orderView {
	byID := make(map[primitive.ObjectID]productView, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		view := orderView{Order: order, Items: make([]orderItemView, 0, len(order.Items))}
		for _, item := range order.Items {
			iv := orderItemView{OrderItem: item}
			if p, ok := byID[item.ProductID]; ok {
				p := p
				iv.Product = &p
			}
			view.Items = append(view.Items, iv)
		}
		if order.CampaignID != nil {
			if campaign, ok := campaigns[*order.CampaignID]; ok {
				campaign := campaign
				view.Campaign = &campaign
			}
		}
		views = append(views, view)
	}
	return views
}

// loadOrderViews attaches products, farmers and campaigns to orders.
func loadOrderViews(ctx context.Context, db *mongo.Database, assets AssetStore, orders []models.Order) ([]orderView, error) {
	productIDs := make([]primitive.ObjectID, 0)
	campaignIDs := make([]primitive.ObjectID, 0)
	for _, order := range orders {
		for _, item := range order.Items {
			productIDs = append(productIDs, item.ProductID)
		}
		if order.CampaignID != nil {
			campaignIDs = append(campaignIDs, *order.CampaignID)
		}
	}

	byID, err := findProducts(ctx, db, bson.M{"_id": bson.M{"$in": productIDs}})
	if err != nil {
		return nil, err
	}
	products := make([]models.Product, 0, len(byID))
	for _, p := range byID {
		products = append(products, p)
	}
	views, err := productViews(ctx, db, assets, products)
	if err != nil {
		return nil, err
	}

	campaigns := make(map[primitive.ObjectID]models.Campaign)
	if len(campaignIDs) > 0 {
		cursor, err := db.Collection(database.Campaigns).Find(ctx, bson.M{"_id": bson.M{"$in": campaignIDs}})
		if err != nil {
			return nil, err
		}
		var list []models.Campaign
		if err := cursor.All(ctx, &list); err != nil {
			return nil, err
		}
		for _, campaign := range list {
			campaigns[campaign.ID] = campaign
		}
	}

	return buildOrderViews(orders, views, campaigns), nil
}

func GetMyOrders(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection(database.Orders).Find(ctx, bson.M{"userId": userID}, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "orders could not be fetched")
			return
		}
		orders := make([]models.Order, 0)
		if err := cursor.All(ctx, &orders); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "failed to parse orders")
			return
		}

		views, err := loadOrderViews(ctx, db, assets, orders)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

func GetMyOrder(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var order models.Order
		err := db.Collection(database.Orders).FindOne(ctx, bson.M{"_id": orderID, "userId": userID}).Decode(&order)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		views, err := loadOrderViews(ctx, db, assets, []models.Order{order})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, views[0])
	}
}
