package feedback

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches feedback routes under /feedback.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, acAuth, acAdmin []gin.HandlerFunc) {
	group := router.Group("/feedback")
	{
		group.POST("", append(acAuth, handler.Create)...)
		group.GET("", append(acAdmin, handler.List)...)
		group.GET("/my", append(acAuth, handler.Mine)...)
		group.GET("/export", append(acAdmin, handler.Export)...)
		group.DELETE("/:feedbackId", append(acAuth, handler.Delete)...)
	}
}
