package admin

import (
	"github.com/ethanbaker/api/pkg/api_key"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the routes for the admin module behind the API key header
func RegisterRoutes(g *gin.RouterGroup, controller *Controller, validator func(key string) bool) {
	group := g.Group("/admin")
	group.Handlers = append(group.Handlers, api_key.APIKeyHeaderHandler(validator))

	group.POST("/sweep", controller.Sweep) // Run one reconciliation sweep now
}

// NewKeyValidator accepts exactly apiKey. An empty key rejects everything
func NewKeyValidator(apiKey string) func(key string) bool {
	return func(key string) bool {
		return apiKey != "" && key == apiKey
	}
}
