package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/models"
)

const sampleSeed = `
farmers:
  - name: Lin Mei-Hua
    location: Nantou County
    specialties: [Citrus fruits, Stone fruits]
    rating: 4.9
products:
  - name: Wonky Oranges
    price: 80
    farmer: Lin Mei-Hua
    category: fruit
    conditionGrade: B
    stockQuantity: 40
    harvestedDaysAgo: 2
    shelfLifeDays: 14
`

func TestParseSeed(t *testing.T) {
	data, err := parseSeed([]byte(sampleSeed))
	require.NoError(t, err)
	require.Len(t, data.Farmers, 1)
	require.Len(t, data.Products, 1)

	assert.Equal(t, models.StringList{"Citrus fruits", "Stone fruits"}, data.Farmers[0].Specialties)
	assert.Equal(t, 4.9, data.Farmers[0].Rating)
	assert.Equal(t, "Lin Mei-Hua", data.Products[0].Farmer)
}

func TestParseSeedRejectsUnknownFarmer(t *testing.T) {
	_, err := parseSeed([]byte(`
farmers:
  - name: A
products:
  - name: Carrots
    price: 10
    farmer: B
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown farmer")
}

func TestParseSeedRejectsFreeProduct(t *testing.T) {
	_, err := parseSeed([]byte(`
farmers:
  - name: A
products:
  - name: Carrots
    farmer: A
`))
	require.Error(t, err)
}

func TestSeedProductDefaults(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	farmerID := primitive.NewObjectID()

	p := seedProduct{Name: "Carrots", Price: 10, HarvestedDaysAgo: 1, ShelfLifeDays: 7}.toProduct(farmerID, now)

	assert.Equal(t, "kg", p.Unit)
	assert.True(t, p.IsActive)
	assert.Equal(t, farmerID, p.FarmerID)
	require.NotNil(t, p.HarvestDate)
	assert.Equal(t, now.AddDate(0, 0, -1), *p.HarvestDate)
	require.NotNil(t, p.ExpiryDate)
	assert.Equal(t, now.AddDate(0, 0, 7), *p.ExpiryDate)
}

func TestSampleSeedFileParses(t *testing.T) {
	data, err := loadSeedFile("../../seed/sample.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, data.Farmers)
	assert.NotEmpty(t, data.Products)
}
