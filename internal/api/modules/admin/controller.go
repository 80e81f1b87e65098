package admin

import (
	"context"
	"net/http"

	"github.com/ethanbaker/storyvideo/internal/ingest"
	"github.com/ethanbaker/storyvideo/pkg/sdk"
	"github.com/gin-gonic/gin"
)

// Sweeper runs a reconciliation sweep
type Sweeper interface {
	Sweep(ctx context.Context) (ingest.SweepResult, error)
}

// Controller handles operator requests
type Controller struct {
	sweeper Sweeper
}

// NewController creates an admin controller
func NewController(sweeper Sweeper) *Controller {
	return &Controller{sweeper: sweeper}
}

// Sweep handles POST requests to reconcile stale slots immediately
func (ctrl *Controller) Sweep(c *gin.Context) {
	result, err := ctrl.sweeper.Sweep(c.Request.Context())
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Failed to run sweep", err.Error()).AsGinResponse())
		return
	}

	resp := &sdk.SweepResponse{
		Checked:   result.Checked,
		Ready:     result.Ready,
		Errored:   result.Errored,
		Unchanged: result.Unchanged,
		Failed:    result.Failed,
	}
	c.JSON(sdk.NewSuccessResponse("Sweep finished", resp).AsGinResponse())
}
