package module

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches module endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, acOptional, acAdmin []gin.HandlerFunc) {
	modules := router.Group("/modules")
	{
		modules.GET("", append(acOptional, handler.List)...)
		modules.GET("/:moduleId", append(acOptional, handler.GetByID)...)
		modules.POST("", append(acAdmin, handler.Create)...)
		modules.PUT("/:moduleId", append(acAdmin, handler.Update)...)
		modules.DELETE("/:moduleId", append(acAdmin, handler.Delete)...)
	}
}
