package subscription

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches subscription routes under /subscriptions.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, acAuth, acAdmin []gin.HandlerFunc) {
	group := router.Group("/subscriptions")
	{
		group.GET("", append(acAdmin, handler.List)...)
		group.POST("", append(acAdmin, handler.Grant)...)
		group.GET("/current", append(acAuth, handler.Current)...)
		group.POST("/cancel", append(acAuth, handler.Cancel)...)
		group.PUT("/auto-renewal", append(acAuth, handler.SetAutoRenewal)...)
	}
}
