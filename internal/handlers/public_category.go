package handlers

import (
	"context"
	"log"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"uglies/internal/database"
)

// GetProductCategories lists the categories used by active products.
func GetProductCategories(db *mongo.Database) gin.HandlerFunc {
	return distinctProductField(db, "GET /products/categories", "category")
}

// GetConditionGrades lists the condition grades used by active products.
func GetConditionGrades(db *mongo.Database) gin.HandlerFunc {
	return distinctProductField(db, "GET /products/grades", "conditionGrade")
}

func distinctProductField(db *mongo.Database, route, field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		log.Printf("[%s] hit", route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		values, err := db.Collection(database.Products).Distinct(ctx, field, bson.M{"isActive": true})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		out := sortedStrings(values)
		log.Printf("[%s] returning %d values", route, len(out))
		c.JSON(http.StatusOK, out)
	}
}

// sortedStrings keeps the non-empty string values of a distinct result.
func sortedStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
