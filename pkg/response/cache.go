package response

import "github.com/gin-gonic/gin"

// SuccessNoCache sends a successful JSON response that must never be stored.
// Used for signed URLs and session tokens.
func SuccessNoCache(c *gin.Context, status int, data interface{}, message string) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	Success(c, status, data, message, nil)
}
