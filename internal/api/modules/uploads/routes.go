package uploads

import (
	"github.com/ethanbaker/storyvideo/internal/auth"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the routes for the uploads module. Every route needs a caller JWT
func RegisterRoutes(g *gin.RouterGroup, controller *Controller, jwtSecret []byte) {
	group := g.Group("/uploads")
	group.Use(auth.JWTAuthMiddleware(jwtSecret))

	group.POST("/topic-summary", controller.CreateTopicSummaryUpload) // Replace a sharer's summary of a topic
	group.POST("/response", controller.CreateResponseUpload)          // Answer a prompt
}
