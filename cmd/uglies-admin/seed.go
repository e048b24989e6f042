package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v3"

	"uglies/internal/database"
	"uglies/internal/models"
)

type seedProduct struct {
	Name                string   `yaml:"name"`
	Description         string   `yaml:"description"`
	Price               float64  `yaml:"price"`
	Farmer              string   `yaml:"farmer"`
	Category            string   `yaml:"category"`
	ConditionGrade      string   `yaml:"conditionGrade"`
	StockQuantity       int      `yaml:"stockQuantity"`
	Unit                string   `yaml:"unit"`
	HarvestedDaysAgo    int      `yaml:"harvestedDaysAgo"`
	ShelfLifeDays       int      `yaml:"shelfLifeDays"`
	StorageInstructions string   `yaml:"storageInstructions"`
	RecipeSuggestions   []string `yaml:"recipeSuggestions"`
	CarbonFootprint     float64  `yaml:"carbonFootprint"`
}

type seedFile struct {
	Farmers  []models.Farmer `yaml:"farmers"`
	Products []seedProduct   `yaml:"products"`
}

func loadSeedFile(path string) (seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return seedFile{}, fmt.Errorf("read seed file: %w", err)
	}
	return parseSeed(raw)
}

// parseSeed decodes a seed file and checks every product names a known farmer.
func parseSeed(raw []byte) (seedFile, error) {
	var data seedFile
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return seedFile{}, fmt.Errorf("parse seed file: %w", err)
	}

	names := make(map[string]bool, len(data.Farmers))
	for _, f := range data.Farmers {
		if f.Name == "" {
			return seedFile{}, fmt.Errorf("farmer without name")
		}
		names[f.Name] = true
	}
	for _, p := range data.Products {
		if !names[p.Farmer] {
			return seedFile{}, fmt.Errorf("product %q references unknown farmer %q", p.Name, p.Farmer)
		}
		if p.Price <= 0 {
			return seedFile{}, fmt.Errorf("product %q must have a positive price", p.Name)
		}
	}
	return data, nil
}

func (p seedProduct) toProduct(farmerID primitive.ObjectID, now time.Time) models.Product {
	unit := p.Unit
	if unit == "" {
		unit = "kg"
	}
	product := models.Product{
		Name:                p.Name,
		Description:         p.Description,
		Price:               p.Price,
		FarmerID:            farmerID,
		Category:            p.Category,
		ConditionGrade:      p.ConditionGrade,
		StockQuantity:       p.StockQuantity,
		Unit:                unit,
		IsActive:            true,
		StorageInstructions: p.StorageInstructions,
		RecipeSuggestions:   models.StringList(p.RecipeSuggestions),
		CarbonFootprint:     p.CarbonFootprint,
		CreatedAt:           now,
	}
	if p.HarvestedDaysAgo > 0 {
		harvested := now.AddDate(0, 0, -p.HarvestedDaysAgo)
		product.HarvestDate = &harvested
	}
	if p.ShelfLifeDays > 0 {
		expiry := now.AddDate(0, 0, p.ShelfLifeDays)
		product.ExpiryDate = &expiry
	}
	return product
}

// applySeed inserts the seed data unless farmers already exist. It returns
// how many farmers and products were created.
func applySeed(ctx context.Context, db *mongo.Database, data seedFile, now time.Time) (int, int, error) {
	existing, err := db.Collection(database.Farmers).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, 0, err
	}
	if existing > 0 {
		return 0, 0, nil
	}

	ids := make(map[string]primitive.ObjectID, len(data.Farmers))
	for _, farmer := range data.Farmers {
		farmer.IsActive = true
		farmer.JoinDate = now
		res, err := db.Collection(database.Farmers).InsertOne(ctx, farmer)
		if err != nil {
			return 0, 0, fmt.Errorf("insert farmer %q: %w", farmer.Name, err)
		}
		ids[farmer.Name] = res.InsertedID.(primitive.ObjectID)
	}

	docs := make([]interface{}, 0, len(data.Products))
	for _, p := range data.Products {
		docs = append(docs, p.toProduct(ids[p.Farmer], now))
	}
	if len(docs) > 0 {
		if _, err := db.Collection(database.Products).InsertMany(ctx, docs); err != nil {
			return len(ids), 0, fmt.Errorf("insert products: %w", err)
		}
	}
	return len(ids), len(docs), nil
}
