package progress

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches progress endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, acAuth []gin.HandlerFunc) {
	progress := router.Group("/progress")
	{
		progress.GET("", append(acAuth, handler.Summary)...)
		progress.GET("/lessons/:lessonId", append(acAuth, handler.GetLesson)...)
		progress.PUT("/lessons/:lessonId", append(acAuth, handler.UpdateLesson)...)
		progress.GET("/modules/:moduleId", append(acAuth, handler.GetModule)...)
	}
}
