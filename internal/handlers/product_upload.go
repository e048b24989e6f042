package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/models"
)

type MultipartProductInput struct {
	Name                string
	NameSet             bool
	Description         string
	Price               float64
	PriceSet            bool
	FarmerID            primitive.ObjectID
	FarmerIDSet         bool
	Category            string
	ConditionGrade      string
	StockQuantity       int
	StockQuantitySet    bool
	Unit                string
	HarvestDate         *time.Time
	ExpiryDate          *time.Time
	IsActive            bool
	IsActiveSet         bool
	NutritionalInfo     string
	StorageInstructions string
	RecipeSuggestions   []string
	CarbonFootprint     float64
	ImageRef            string
	ImageSet            bool
}

func parseMultipartProductRequest(c *gin.Context, assets AssetStore) (MultipartProductInput, error) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		return MultipartProductInput{}, err
	}

	input := MultipartProductInput{
		Description:         formString(c, "description"),
		Category:            formString(c, "category"),
		ConditionGrade:      formString(c, "conditionGrade"),
		Unit:                formString(c, "unit"),
		NutritionalInfo:     formString(c, "nutritionalInfo"),
		StorageInstructions: formString(c, "storageInstructions"),
		RecipeSuggestions:   formList(c, "recipeSuggestions"),
	}

	if value, ok := c.GetPostForm("name"); ok {
		input.Name = strings.TrimSpace(value)
		input.NameSet = true
	}

	if value, ok := c.GetPostForm("price"); ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return MultipartProductInput{}, fmt.Errorf("price must be a number")
		}
		input.Price = parsed
		input.PriceSet = true
	}

	if value, ok := c.GetPostForm("stockQuantity"); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return MultipartProductInput{}, fmt.Errorf("stockQuantity must be an integer")
		}
		input.StockQuantity = parsed
		input.StockQuantitySet = true
	}

	if value := formString(c, "carbonFootprint"); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return MultipartProductInput{}, fmt.Errorf("carbonFootprint must be a number")
		}
		input.CarbonFootprint = parsed
	}

	if value := formString(c, "farmerId"); value != "" {
		farmerID, err := primitive.ObjectIDFromHex(value)
		if err != nil {
			return MultipartProductInput{}, fmt.Errorf("invalid farmerId")
		}
		input.FarmerID = farmerID
		input.FarmerIDSet = true
	}

	var err error
	if input.HarvestDate, err = formDate(c, "harvestDate"); err != nil {
		return MultipartProductInput{}, err
	}
	if input.ExpiryDate, err = formDate(c, "expiryDate"); err != nil {
		return MultipartProductInput{}, err
	}

	if value, ok := c.GetPostForm("isActive"); ok {
		parsed, err := parseBoolValue(value)
		if err != nil {
			return MultipartProductInput{}, fmt.Errorf("isActive must be boolean")
		}
		input.IsActive = parsed
		input.IsActiveSet = true
	}

	input.ImageRef, input.ImageSet, err = saveFormImage(c, assets, "products")
	if err != nil {
		return MultipartProductInput{}, err
	}

	return input, nil
}

// toProduct validates a create request and builds the product document.
func (in MultipartProductInput) toProduct(now time.Time) (models.Product, error) {
	if !in.NameSet || in.Name == "" {
		return models.Product{}, errors.New("name required")
	}
	if !in.PriceSet || in.Price <= 0 {
		return models.Product{}, errors.New("invalid price")
	}
	if !in.FarmerIDSet {
		return models.Product{}, errors.New("farmerId required")
	}
	if in.Category == "" {
		return models.Product{}, errors.New("category required")
	}
	if in.StockQuantitySet && in.StockQuantity < 0 {
		return models.Product{}, errors.New("stockQuantity must be zero or greater")
	}

	isActive := true
	if in.IsActiveSet {
		isActive = in.IsActive
	}
	unit := in.Unit
	if unit == "" {
		unit = "kg"
	}

	return models.Product{
		Name:                in.Name,
		Description:         in.Description,
		Price:               in.Price,
		ImageRef:            in.ImageRef,
		FarmerID:            in.FarmerID,
		Category:            in.Category,
		ConditionGrade:      in.ConditionGrade,
		StockQuantity:       in.StockQuantity,
		Unit:                unit,
		HarvestDate:         in.HarvestDate,
		ExpiryDate:          in.ExpiryDate,
		IsActive:            isActive,
		NutritionalInfo:     in.NutritionalInfo,
		StorageInstructions: in.StorageInstructions,
		RecipeSuggestions:   models.StringList(in.RecipeSuggestions),
		CarbonFootprint:     in.CarbonFootprint,
		CreatedAt:           now,
	}, nil
}

func saveFormImage(c *gin.Context, assets AssetStore, kind string) (string, bool, error) {
	file, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || strings.Contains(err.Error(), "no such file") {
			return "", false, nil
		}
		return "", false, err
	}
	ref, err := assets.Save(file, kind)
	if err != nil {
		return "", false, err
	}
	return ref, true, nil
}

func formString(c *gin.Context, key string) string {
	return strings.TrimSpace(c.PostForm(key))
}

// formList accepts repeated fields as well as one comma separated value.
func formList(c *gin.Context, key string) []string {
	values := c.PostFormArray(key)
	if len(values) == 1 {
		values = strings.Split(values[0], ",")
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func formDate(c *gin.Context, key string) (*time.Time, error) {
	value := formString(c, key)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD)", key)
}

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}

func respondMultipartError(c *gin.Context, err error) {
	log.Println("[UPLOAD] [ERROR] multipart request rejected:", err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
