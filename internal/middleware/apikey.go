package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// InternalAPIKeyMiddleware guards service-to-service routes. Requests
// must carry the shared key in the configured header; with no key
// configured the routes are disabled outright.
func InternalAPIKeyMiddleware(header, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Internal API disabled"})
			c.Abort()
			return
		}

		provided := c.GetHeader(header)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
