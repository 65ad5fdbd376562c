package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// CacheControl marks API responses as private and uncached by default.
// Handlers that serve public content override the header.
func CacheControl() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Header("Cache-Control", "private, no-cache")
		}
		c.Next()
	}
}
