package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newMultipartContext(t *testing.T, fields map[string][]string, image []byte, imageName string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, values := range fields {
		for _, v := range values {
			_ = writer.WriteField(key, v)
		}
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", imageName)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = part.Write(image)
	}
	_ = writer.Close()

	req := httptest.NewRequest("POST", "/admin/api/products", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestParseMultipartProductRequest_BuildsProduct(t *testing.T) {
	farmerID := primitive.NewObjectID()
	root := t.TempDir()
	c := newMultipartContext(t, map[string][]string{
		"name":              {"Crooked cucumbers"},
		"price":             {"2.5"},
		"farmerId":          {farmerID.Hex()},
		"category":          {"vegetables"},
		"conditionGrade":    {"B"},
		"stockQuantity":     {"12"},
		"harvestDate":       {"2024-05-30"},
		"recipeSuggestions": {"Pickles, Tzatziki"},
		"isActive":          {"on"},
	}, []byte("fake-png"), "cucumber.png")

	parsed, err := parseMultipartProductRequest(c, AssetStore{Root: root})
	if err != nil {
		t.Fatalf("parseMultipartProductRequest returned error: %v", err)
	}
	if !parsed.ImageSet {
		t.Fatalf("expected image to be stored, got %+v", parsed)
	}
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(parsed.ImageRef))); err != nil {
		t.Fatalf("stored image missing: %v", err)
	}

	product, err := parsed.toProduct(time.Now())
	if err != nil {
		t.Fatalf("toProduct returned error: %v", err)
	}
	if product.FarmerID != farmerID || product.StockQuantity != 12 || product.Unit != "kg" || !product.IsActive {
		t.Fatalf("unexpected product: %+v", product)
	}
	if product.HarvestDate == nil || product.HarvestDate.Day() != 30 {
		t.Fatalf("expected harvestDate 2024-05-30, got %v", product.HarvestDate)
	}
	if len(product.RecipeSuggestions) != 2 || product.RecipeSuggestions[1] != "Tzatziki" {
		t.Fatalf("unexpected recipe suggestions: %v", product.RecipeSuggestions)
	}
}

func TestParseMultipartProductRequest_RejectsBadInput(t *testing.T) {
	tests := map[string]map[string][]string{
		"price":    {"price": {"cheap"}},
		"farmer":   {"farmerId": {"xyz"}},
		"date":     {"expiryDate": {"next week"}},
		"isActive": {"isActive": {"maybe"}},
	}
	for name, fields := range tests {
		t.Run(name, func(t *testing.T) {
			c := newMultipartContext(t, fields, nil, "")
			if _, err := parseMultipartProductRequest(c, AssetStore{Root: t.TempDir()}); err == nil {
				t.Fatalf("expected error for %v", fields)
			}
		})
	}
}

func TestParseMultipartProductRequest_RejectsUnsupportedImage(t *testing.T) {
	c := newMultipartContext(t, map[string][]string{"name": {"x"}}, []byte("MZ"), "virus.exe")
	if _, err := parseMultipartProductRequest(c, AssetStore{Root: t.TempDir()}); err == nil {
		t.Fatal("expected unsupported image type error")
	}
}

func TestToProductRequiresCoreFields(t *testing.T) {
	base := MultipartProductInput{Name: "Pears", NameSet: true, Price: 3, PriceSet: true, FarmerIDSet: true, Category: "fruits"}
	if _, err := base.toProduct(time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noPrice := base
	noPrice.Price = 0
	if _, err := noPrice.toProduct(time.Now()); err == nil {
		t.Fatal("expected invalid price error")
	}

	negative := base
	negative.StockQuantity, negative.StockQuantitySet = -1, true
	if _, err := negative.toProduct(time.Now()); err == nil {
		t.Fatal("expected negative stock error")
	}
}
