package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/skrillzofficial/eventry-api/internal/middleware"
	"github.com/skrillzofficial/eventry-api/internal/models"
)

// claimsFromContext pulls the authenticated user's claims, or nil when the
// route was reached without a token.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
