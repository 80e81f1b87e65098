package health

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the routes for the health module
func RegisterRoutes(g *gin.RouterGroup, checks map[string]Check) {
	controller := &Controller{checks: checks}

	g.GET("/health", controller.getStatus)
	g.GET("/health/ready", controller.getReadiness)
}
