package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"uglies/internal/database"
	"uglies/internal/models"
)

const inviteCodeAttempts = 5

type offerView struct {
	models.ProductOffer
	Product *productView `json:"product,omitempty"`
}

type campaignView struct {
	models.Campaign
	Offers []offerView `json:"offers"`
}

type updateCampaignStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// newInviteCode returns a 6 character uppercase code.
func newInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
}

func buildCampaignViews(campaigns []models.Campaign, products []productView) []campaignView {
	byID := make(map[primitive.ObjectID]productView, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	views := make([]campaignView, 0, len(campaigns))
	for _, campaign := range campaigns {
		view := campaignView{Campaign: campaign, Offers: make([]offerView, 0, len(campaign.Offers))}
		for _, offer := range campaign.Offers {
			ov := offerView{ProductOffer: offer}
			if p, ok := byID[offer.ProductID]; ok {
				p := p
				ov.Product = &p
			}
			view.Offers = append(view.Offers, ov)
		}
		views = append(views, view)
	}
	return views
}

func loadCampaignViews(ctx context.Context, db *mongo.Database, assets AssetStore, campaigns []models.Campaign) ([]campaignView, error) {
	ids := make([]primitive.ObjectID, 0)
	for _, campaign := range campaigns {
		ids = append(ids, offerProductIDs(campaign.Offers)...)
	}
	byID, err := findProducts(ctx, db, bson.M{"_id": bson.M{"$in": ids}})
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
	return buildCampaignViews(campaigns, views), nil
}

// listCampaigns renders campaigns matching filter, soonest deadline first.
func listCampaigns(c *gin.Context, db *mongo.Database, assets AssetStore, route string, filter bson.M) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "deadline", Value: 1}})
	cursor, err := db.Collection(database.Campaigns).Find(ctx, filter, opts)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "db error")
		return
	}
	campaigns := make([]models.Campaign, 0)
	if err := cursor.All(ctx, &campaigns); err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "decode error")
		return
	}

	views, err := loadCampaignViews(ctx, db, assets, campaigns)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "db error")
		return
	}
	c.JSON(http.StatusOK, views)
}

// GetCampaigns lists open campaigns, optionally for one neighborhood.
func GetCampaigns(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /campaigns"
		defer handlePanic(c, route)

		filter := bson.M{
			"status":   models.CampaignActive,
			"deadline": bson.M{"$gt": time.Now().UTC()},
		}
		if neighborhood := strings.TrimSpace(c.Query("neighborhood")); neighborhood != "" {
			filter["neighborhood"] = neighborhood
		}
		listCampaigns(c, db, assets, route, filter)
	}
}

// GetNeighborhoodCampaigns lists every campaign of a neighborhood whose
// deadline has not passed, whatever its status.
func GetNeighborhoodCampaigns(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /campaigns/neighborhood/:name"
		defer handlePanic(c, route)

		name := strings.TrimSpace(c.Param("name"))
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "invalid name")
			return
		}
		listCampaigns(c, db, assets, route, bson.M{
			"neighborhood": name,
			"deadline":     bson.M{"$gt": time.Now().UTC()},
		})
	}
}

func GetMyCampaigns(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /user/campaigns"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}
		listCampaigns(c, db, assets, route, bson.M{"organizerId": userID})
	}
}

func getOneCampaign(c *gin.Context, db *mongo.Database, assets AssetStore, route string, filter bson.M) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	var campaign models.Campaign
	err := db.Collection(database.Campaigns).FindOne(ctx, filter).Decode(&campaign)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respondWithError(c, http.StatusNotFound, route, "campaign not found")
		return
	}
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "db error")
		return
	}

	views, err := loadCampaignViews(ctx, db, assets, []models.Campaign{campaign})
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "db error")
		return
	}
	c.JSON(http.StatusOK, views[0])
}

func GetCampaign(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /campaigns/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, "id", route)
		if !ok {
			return
		}
		getOneCampaign(c, db, assets, route, bson.M{"_id": id})
	}
}

func GetCampaignByInvite(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /campaigns/invite/:code"
		defer handlePanic(c, route)

		code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
		if code == "" {
			respondWithError(c, http.StatusBadRequest, route, "invalid code")
			return
		}
		getOneCampaign(c, db, assets, route, bson.M{"inviteCode": code})
	}
}

// CreateCampaign opens a campaign organized by the caller. The caller's hub
// level is derived from how many orders they placed.
func CreateCampaign(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /user/campaigns"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}

		var req createCampaignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var organizer models.UserProfile
		err := db.Collection(database.Profiles).FindOne(ctx, bson.M{"userId": userID}).Decode(&organizer)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusPreconditionFailed, route, "create a profile before organizing campaigns")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		campaign, err := req.toCampaign(organizer, time.Now().UTC())
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		if len(campaign.Offers) > 0 {
			ids := offerProductIDs(campaign.Offers)
			found, err := db.Collection(database.Products).CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if found != int64(len(ids)) {
				respondWithError(c, http.StatusBadRequest, route, "offer references an unknown product")
				return
			}
		}

		orders, err := db.Collection(database.Orders).CountDocuments(ctx, bson.M{"userId": userID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		campaign.HubLevel = models.HubLevelForOrders(orders)

		collection := db.Collection(database.Campaigns)
		for attempt := 0; ; attempt++ {
			campaign.InviteCode = newInviteCode()
			res, err := collection.InsertOne(ctx, campaign)
			if mongo.IsDuplicateKeyError(err) && attempt < inviteCodeAttempts-1 {
				continue
			}
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "campaign could not be created")
				return
			}
			if id, ok := res.InsertedID.(primitive.ObjectID); ok {
				campaign.ID = id
			}
			break
		}

		log.Printf("[CAMPAIGN] [INFO] campaign %s created by %s in %s (invite %s)", campaign.ID.Hex(), userID.Hex(), campaign.Neighborhood, campaign.InviteCode)
		c.JSON(http.StatusCreated, campaign)
	}
}

// UpdateCampaignStatus applies an admin status change. Leaving active is
// final.
func UpdateCampaignStatus(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /admin/api/campaigns/:id/status"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, "id", route)
		if !ok {
			return
		}

		var req updateCampaignStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		next := models.CampaignStatus(strings.TrimSpace(req.Status))
		if !next.Valid() {
			respondWithError(c, http.StatusBadRequest, route, "invalid status")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		collection := db.Collection(database.Campaigns)
		var current models.Campaign
		err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&current)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "campaign not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if !current.Status.CanTransitionTo(next) {
			respondWithError(c, http.StatusConflict, route, "cannot move campaign from "+string(current.Status)+" to "+string(next))
			return
		}

		var updated models.Campaign
		err = collection.FindOneAndUpdate(
			ctx,
			bson.M{"_id": id, "status": current.Status},
			bson.M{"$set": bson.M{"status": next}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusConflict, route, "campaign status changed concurrently")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[CAMPAIGN] [INFO] campaign %s moved %s -> %s", id.Hex(), current.Status, updated.Status)
		c.JSON(http.StatusOK, updated)
	}
}
