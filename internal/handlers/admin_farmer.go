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
	"uglies/internal/models"
)

type FarmerUpdateRequest struct {
	Name                    *string   `json:"name"`
	Bio                     *string   `json:"bio"`
	Location                *string   `json:"location"`
	Story                   *string   `json:"story"`
	Specialties             *[]string `json:"specialties"`
	SustainabilityPractices *[]string `json:"sustainabilityPractices"`
	Certifications          *[]string `json:"certifications"`
	IsActive                *bool     `json:"isActive"`
}

/*
POST /admin/api/farmers
- multipart form, image optional
*/
func CreateFarmer(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/farmers"
		defer handlePanic(c, route)

		if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
			respondMultipartError(c, err)
			return
		}

		name := formString(c, "name")
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}
		location := formString(c, "location")
		if location == "" {
			respondWithError(c, http.StatusBadRequest, route, "location required")
			return
		}

		imageRef, _, err := saveFormImage(c, assets, "farmers")
		if err != nil {
			respondMultipartError(c, err)
			return
		}

		farmer := models.Farmer{
			Name:                    name,
			Bio:                     formString(c, "bio"),
			Location:                location,
			FarmSize:                formString(c, "farmSize"),
			Specialties:             models.StringList(formList(c, "specialties")),
			Story:                   formString(c, "story"),
			ImageRef:                imageRef,
			ContactInfo:             formString(c, "contactInfo"),
			SustainabilityPractices: models.StringList(formList(c, "sustainabilityPractices")),
			Certifications:          models.StringList(formList(c, "certifications")),
			IsActive:                true,
			JoinDate:                time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.Farmers).InsertOne(ctx, farmer)
		if err != nil {
			if delErr := assets.Delete(imageRef); delErr != nil {
				log.Printf("[%s] orphaned image %s: %v", route, imageRef, delErr)
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		farmer.ID = res.InsertedID.(primitive.ObjectID)
		farmer.ImageURL = assets.URL(farmer.ImageRef)
		c.JSON(http.StatusCreated, farmer)
	}
}

/*
PUT /admin/api/farmers/:id
*/
func UpdateFarmer(db *mongo.Database, assets AssetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/farmers/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, "id", route)
		if !ok {
			return
		}

		var req FarmerUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}

		update, err := req.toUpdate()
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var updated models.Farmer
		err = db.Collection(database.Farmers).FindOneAndUpdate(
			ctx,
			bson.M{"_id": id},
			bson.M{"$set": update},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "farmer not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		updated.ImageURL = assets.URL(updated.ImageRef)
		c.JSON(http.StatusOK, updated)
	}
}

func (r FarmerUpdateRequest) toUpdate() (bson.M, error) {
	update := bson.M{}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return nil, errors.New("name cannot be empty")
		}
		update["name"] = name
	}
	if r.Bio != nil {
		update["bio"] = strings.TrimSpace(*r.Bio)
	}
	if r.Location != nil {
		update["location"] = strings.TrimSpace(*r.Location)
	}
	if r.Story != nil {
		update["story"] = strings.TrimSpace(*r.Story)
	}
	if r.Specialties != nil {
		update["specialties"] = models.StringList(compactList(*r.Specialties))
	}
	if r.SustainabilityPractices != nil {
		update["sustainabilityPractices"] = models.StringList(compactList(*r.SustainabilityPractices))
	}
	if r.Certifications != nil {
		update["certifications"] = models.StringList(compactList(*r.Certifications))
	}
	if r.IsActive != nil {
		update["isActive"] = *r.IsActive
	}
	if len(update) == 0 {
		return nil, errors.New("no fields to update")
	}
	return update, nil
}

func compactList(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
