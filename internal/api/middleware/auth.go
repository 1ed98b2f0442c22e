// Package middleware provides HTTP middleware for the DomainGuard REST
// API, including API key authentication and request logging.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/domainguard/internal/api/models"
)

// RequireAPIKey enforces a shared-secret API key sent as
// `X-API-Key: <key>`. An empty configured key disables the check. The
// comparison is constant time so response timing leaks nothing about the
// key.
func RequireAPIKey(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-API-Key")
		if expected == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1 {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
	}
}
