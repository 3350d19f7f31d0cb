package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/facility-inventory-api/internal/middleware"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	"github.com/noah-isme/facility-inventory-api/internal/service"
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

// actorFromContext builds the acting user from the verified token, never from the request body.
func actorFromContext(c *gin.Context) service.Actor {
	actor := service.Actor{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	if claims := claimsFromContext(c); claims != nil {
		actor.UserID = claims.UserID
		actor.Username = claims.Username
	}
	return actor
}
