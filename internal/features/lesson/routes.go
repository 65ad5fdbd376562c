package lesson

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches lesson endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, acOptional, acAdmin []gin.HandlerFunc) {
	lessons := router.Group("/lessons")
	{
		lessons.GET("/module/:moduleId", append(acOptional, handler.ListByModule)...)
		lessons.GET("/:lessonId", append(acOptional, handler.GetByID)...)
		lessons.POST("", append(acAdmin, handler.Create)...)
		lessons.PUT("/:lessonId", append(acAdmin, handler.Update)...)
		lessons.DELETE("/:lessonId", append(acAdmin, handler.Delete)...)
	}
}
