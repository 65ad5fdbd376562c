package template

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches template routes under /templates.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, acAuth, acAdmin []gin.HandlerFunc) {
	group := router.Group("/templates")
	{
		group.GET("", handler.List)
		group.GET("/categories", handler.Categories)
		group.GET("/:templateId", handler.GetByID)
		group.GET("/:templateId/download", append(acAuth, handler.Download)...)
		group.POST("", append(acAdmin, handler.Create)...)
		group.PUT("/:templateId", append(acAdmin, handler.Update)...)
		group.DELETE("/:templateId", append(acAdmin, handler.Delete)...)
	}
}
