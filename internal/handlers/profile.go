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
	"uglies/internal/middleware"
	"uglies/internal/models"
)

const (
	impactHistoryLimit = 30
	leaderboardSize    = 10
)

type updateProfileRequest struct {
	Name         *string                    `json:"name"`
	Address      *string                    `json:"address"`
	Phone        *string                    `json:"phone"`
	Neighborhood *string                    `json:"neighborhood"`
	Preferences  *models.ProfilePreferences `json:"preferences"`
}

func (r updateProfileRequest) toUpdate() (bson.M, error) {
	set := bson.M{}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return nil, errors.New("name must not be empty")
		}
		set["name"] = name
	}
	if r.Address != nil {
		set["address"] = strings.TrimSpace(*r.Address)
	}
	if r.Phone != nil {
		set["phone"] = strings.TrimSpace(*r.Phone)
	}
	if r.Neighborhood != nil {
		set["neighborhood"] = strings.TrimSpace(*r.Neighborhood)
	}
	if r.Preferences != nil {
		set["preferences"] = r.Preferences
	}
	return set, nil
}

func newProfile(userID primitive.ObjectID, name, neighborhood string, now time.Time) models.UserProfile {
	return models.UserProfile{
		UserID:       userID,
		Role:         models.RoleUser,
		Name:         name,
		Neighborhood: neighborhood,
		JoinDate:     now,
	}
}

// ProfileRoleLookup resolves roles from profiles for middleware.RequireRole.
func ProfileRoleLookup(db *mongo.Database) middleware.RoleLookup {
	return func(ctx context.Context, userID primitive.ObjectID) (models.Role, error) {
		var profile models.UserProfile
		opts := options.FindOne().SetProjection(bson.M{"role": 1})
		if err := db.Collection(database.Profiles).FindOne(ctx, bson.M{"userId": userID}, opts).Decode(&profile); err != nil {
			return "", err
		}
		return profile.Role, nil
	}
}

func findProfile(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) (models.UserProfile, error) {
	var profile models.UserProfile
	err := db.Collection(database.Profiles).FindOne(ctx, bson.M{"userId": userID}).Decode(&profile)
	return profile, err
}

func GetProfile(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /user/profile"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		profile, err := findProfile(ctx, db, userID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "profile not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// UpdateProfile edits the caller's profile, creating it on first use with
// the user role and a zero score. Role and score are never client writable.
func UpdateProfile(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /user/profile"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}

		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		set, err := req.toUpdate()
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		onInsert := bson.M{
			"role":                models.RoleUser,
			"sustainabilityScore": 0,
			"totalWastePrevented": 0.0,
			"joinDate":            time.Now().UTC(),
		}
		if _, ok := set["name"]; !ok {
			onInsert["name"] = ""
		}
		if _, ok := set["neighborhood"]; !ok {
			onInsert["neighborhood"] = ""
		}
		update := bson.M{"$setOnInsert": onInsert}
		if len(set) > 0 {
			update["$set"] = set
		}

		var profile models.UserProfile
		err = db.Collection(database.Profiles).FindOneAndUpdate(
			ctx,
			bson.M{"userId": userID},
			update,
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&profile)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[PROFILE] [INFO] profile of %s updated fields=%v", userID.Hex(), mapKeys(set))
		c.JSON(http.StatusOK, profile)
	}
}

// GetMyImpact returns the caller's profile with their most recent ledger
// entries and the totals of those entries.
func GetMyImpact(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /user/impact"
		defer handlePanic(c, route)

		userID, ok := requireUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		profile, err := findProfile(ctx, db, userID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "profile not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}}).SetLimit(impactHistoryLimit)
		cursor, err := db.Collection(database.ImpactEntries).Find(ctx, bson.M{"userId": userID}, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		entries := make([]models.ImpactEntry, 0)
		if err := cursor.All(ctx, &entries); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"profile": profile,
			"entries": entries,
			"totals":  models.SumImpact(entries),
		})
	}
}

func GetNeighborhoods(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /neighborhoods"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		values, err := db.Collection(database.Profiles).Distinct(ctx, "neighborhood", bson.M{"neighborhood": bson.M{"$ne": ""}})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, sortedStrings(values))
	}
}

// GetNeighborhoodLeaderboard ranks a neighborhood's profiles by score.
// Profiles that have not scored yet are left out.
func GetNeighborhoodLeaderboard(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /neighborhoods/:name/leaderboard"
		defer handlePanic(c, route)

		name := strings.TrimSpace(c.Param("name"))
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "invalid name")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		opts := options.Find().
			SetSort(bson.D{{Key: "sustainabilityScore", Value: -1}, {Key: "totalWastePrevented", Value: -1}}).
			SetLimit(leaderboardSize).
			SetProjection(bson.M{"address": 0, "phone": 0, "preferences": 0})
		cursor, err := db.Collection(database.Profiles).Find(ctx, bson.M{
			"neighborhood":        name,
			"sustainabilityScore": bson.M{"$gt": 0},
		}, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		profiles := make([]models.UserProfile, 0)
		if err := cursor.All(ctx, &profiles); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		type entry struct {
			Rank                int     `json:"rank"`
			UserID              string  `json:"userId"`
			Name                string  `json:"name"`
			SustainabilityScore int     `json:"sustainabilityScore"`
			TotalWastePrevented float64 `json:"totalWastePrevented"`
		}
		board := make([]entry, 0, len(profiles))
		for i, p := range profiles {
			board = append(board, entry{
				Rank:                i + 1,
				UserID:              p.UserID.Hex(),
				Name:                p.Name,
				SustainabilityScore: p.SustainabilityScore,
				TotalWastePrevented: p.TotalWastePrevented,
			})
		}
		c.JSON(http.StatusOK, board)
	}
}

type promoteUserRequest struct {
	Role string `json:"role" binding:"omitempty,oneof=user admin farmer"`
}

// PromoteUser changes a profile's role. Without a body the user becomes an
// admin.
func PromoteUser(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/users/:id/promote"
		defer handlePanic(c, route)

		userID, ok := objectIDParam(c, "id", route)
		if !ok {
			return
		}

		var req promoteUserRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
		}
		role := models.Role(req.Role)
		if role == "" {
			role = models.RoleAdmin
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.Profiles).UpdateOne(ctx, bson.M{"userId": userID}, bson.M{"$set": bson.M{"role": role}})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "profile not found")
			return
		}

		log.Printf("[PROFILE] [INFO] user %s is now %s", userID.Hex(), role)
		c.JSON(http.StatusOK, gin.H{"userId": userID.Hex(), "role": role})
	}
}

type platformImpact struct {
	models.ImpactTotals
	Users             int64   `json:"users"`
	Orders            int64   `json:"orders"`
	AverageOrderValue float64 `json:"averageOrderValue"`
}

// GetPlatformImpact sums the whole impact ledger with user and order counts.
func GetPlatformImpact(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/impact"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		ledger, err := aggregateImpact(ctx, db)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		users, err := db.Collection(database.Profiles).CountDocuments(ctx, bson.M{})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var revenue struct {
			Count int64   `bson:"count"`
			Total float64 `bson:"total"`
		}
		cursor, err := db.Collection(database.Orders).Aggregate(ctx, mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"status": bson.M{"$ne": models.OrderCancelled}}}},
			{{Key: "$group", Value: bson.M{"_id": nil, "count": bson.M{"$sum": 1}, "total": bson.M{"$sum": "$totalAmount"}}}},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)
		if cursor.Next(ctx) {
			if err := cursor.Decode(&revenue); err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "decode error")
				return
			}
		}

		c.JSON(http.StatusOK, summarizePlatform(ledger, users, revenue.Count, revenue.Total))
	}
}

func aggregateImpact(ctx context.Context, db *mongo.Database) (models.ImpactTotals, error) {
	var totals models.ImpactTotals
	cursor, err := db.Collection(database.ImpactEntries).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":                     nil,
			"wastePrevented":          bson.M{"$sum": "$wastePrevented"},
			"carbonSaved":             bson.M{"$sum": "$carbonSaved"},
			"moneySaved":              bson.M{"$sum": "$moneySaved"},
			"ordersCompleted":         bson.M{"$sum": "$ordersCompleted"},
			"groupOrdersParticipated": bson.M{"$sum": "$groupOrdersParticipated"},
		}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
	})
	if err != nil {
		return totals, err
	}
	defer cursor.Close(ctx)

	var row models.ImpactEntry
	if cursor.Next(ctx) {
		if err := cursor.Decode(&row); err != nil {
			return totals, err
		}
		totals = models.SumImpact([]models.ImpactEntry{row})
	}
	return totals, cursor.Err()
}

func summarizePlatform(ledger models.ImpactTotals, users, orders int64, revenue float64) platformImpact {
	out := platformImpact{ImpactTotals: ledger, Users: users, Orders: orders}
	if orders > 0 {
		out.AverageOrderValue = revenue / float64(orders)
	}
	return out
}
