package health

import (
	"context"
	"net/http"
	"time"

	"github.com/ethanbaker/api/pkg/api_types"
	"github.com/ethanbaker/storyvideo/pkg/sdk"
	"github.com/gin-gonic/gin"
)

// Check reports whether a dependency (database, session cache) is reachable
type Check func(ctx context.Context) error

// Controller serves liveness and readiness
type Controller struct {
	checks map[string]Check
}

// Return status of the API
func (ctrl *Controller) getStatus(c *gin.Context) {
	res := api_types.NewSuccessResponse("OK", nil)
	c.JSON(res.AsGinResponse())
}

// Return whether every dependency answers
func (ctrl *Controller) getReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range ctrl.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(sdk.NewErrorResponse(http.StatusServiceUnavailable, "Dependencies unavailable", failed).AsGinResponse())
		return
	}
	c.JSON(sdk.NewSuccess("Ready").AsGinResponse())
}
