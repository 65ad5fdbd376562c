package video

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches video endpoints to the router. The stream endpoint
// authenticates through its signed query instead of a bearer token.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, acAuth []gin.HandlerFunc) {
	videos := router.Group("/videos")
	{
		videos.GET("/secure-url/:videoId", append(acAuth, handler.SecureURL)...)
		videos.GET("/stream/:videoId", handler.Stream)
		videos.POST("/mark-watched/:videoId", append(acAuth, handler.MarkWatched)...)
		videos.GET("/progress/:videoId", append(acAuth, handler.Progress)...)
	}
}
