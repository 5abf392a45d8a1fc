package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tomengsanchez/asset-manager-api/internal/middleware"
	"github.com/tomengsanchez/asset-manager-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext rebuilds the acting user from the token claims for
// audit trails and history entries.
func actorFromContext(c *gin.Context) *models.User {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	return &models.User{
		ID:          claims.UserID,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
	}
}
