package webhooks

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the routes for the webhooks module. Deliveries authenticate
// with their signature header, not a caller token
func RegisterRoutes(g *gin.RouterGroup, controller *Controller) {
	group := g.Group("/webhooks")

	group.POST("/video", controller.ReceiveVideoEvent)
}
