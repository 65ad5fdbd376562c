package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches authentication endpoints to the router.
// limiter guards the unauthenticated entry points.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, acAuth []gin.HandlerFunc, limiter gin.HandlerFunc) {
	auth := router.Group("/auth")
	{
		auth.POST("/telegram", limiter, handler.Telegram)
		auth.POST("/refresh", limiter, handler.Refresh)
		auth.GET("/me", append(acAuth, handler.Me)...)
		auth.POST("/logout", append(acAuth, handler.Logout)...)
	}
}
