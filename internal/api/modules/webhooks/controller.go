package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/ethanbaker/storyvideo/internal/ingest"
	"github.com/ethanbaker/storyvideo/pkg/sdk"
	"github.com/gin-gonic/gin"
)

// maxBodyBytes bounds a webhook delivery
const maxBodyBytes = 1 << 20

// Handler processes one raw webhook delivery
type Handler interface {
	Handle(ctx context.Context, signature string, body []byte) ingest.Outcome
}

// Controller receives video service webhooks
type Controller struct {
	handler Handler
}

// NewController creates a webhooks controller
func NewController(handler Handler) *Controller {
	return &Controller{handler: handler}
}

// ReceiveVideoEvent handles POST deliveries from the video service. The raw body is
// kept intact since the signature covers it byte for byte
func (ctrl *Controller) ReceiveVideoEvent(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not read request body", err.Error()).AsGinResponse())
		return
	}

	outcome := ctrl.handler.Handle(c.Request.Context(), c.GetHeader(ingest.SignatureHeader), body)
	if outcome.Status >= http.StatusBadRequest {
		var detail any
		if outcome.Err != nil {
			detail = outcome.Err.Error()
		}
		c.JSON(sdk.NewErrorResponse(outcome.Status, "Webhook "+outcome.Result, detail).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Webhook "+outcome.Result, gin.H{"result": outcome.Result}).AsGinResponse())
}
