package user

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches admin user endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, acAdmin []gin.HandlerFunc) {
	users := router.Group("/users")
	{
		users.GET("", append(acAdmin, handler.List)...)
		users.GET("/:userId", append(acAdmin, handler.GetByID)...)
		users.PUT("/:userId/role", append(acAdmin, handler.UpdateRole)...)
	}
}
