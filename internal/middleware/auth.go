package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/models"
)

// RoleLookup resolves the marketplace role of a user.
type RoleLookup func(ctx context.Context, userID primitive.ObjectID) (models.Role, error)

// RequireRole must run after UserAuth. Roles live on the user profile rather
// than in the token, so a promotion takes effect immediately.
func RequireRole(lookup RoleLookup, allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := CurrentUserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		role, err := lookup(ctx, userID)
		if err != nil {
			log.Println("[AUTH] [ERROR] role lookup failed:", err)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		for _, r := range allowed {
			if role == r {
				c.Set("role", role)
				c.Next()
				return
			}
		}
		log.Printf("[AUTH] [WARN] user %s with role %q denied", userID.Hex(), role)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}
