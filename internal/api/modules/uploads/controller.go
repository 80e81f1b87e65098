package uploads

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ethanbaker/storyvideo/internal/auth"
	"github.com/ethanbaker/storyvideo/internal/ingest"
	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/ethanbaker/storyvideo/pkg/sdk"
	"github.com/gin-gonic/gin"
)

// Issuer issues uploads for callers
type Issuer interface {
	Issue(ctx context.Context, req ingest.IssueRequest) (*ingest.IssuedUpload, error)
}

// Controller handles upload requests
type Controller struct {
	issuer Issuer
}

// NewController creates an uploads controller
func NewController(issuer Issuer) *Controller {
	return &Controller{issuer: issuer}
}

// CreateTopicSummaryUpload handles POST requests for a topic summary upload
func (ctrl *Controller) CreateTopicSummaryUpload(c *gin.Context) {
	var req sdk.TopicSummaryUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err.Error()).AsGinResponse())
		return
	}
	if strings.TrimSpace(req.TopicID) == "" {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "topic_id is required", nil).AsGinResponse())
		return
	}

	ctrl.issue(c, ingest.IssueRequest{
		CallerID:  auth.CallerID(c),
		ActingFor: req.ActingForSharerID,
		TopicID:   req.TopicID,
	})
}

// CreateResponseUpload handles POST requests for a prompt response upload
func (ctrl *Controller) CreateResponseUpload(c *gin.Context) {
	var req sdk.ResponseUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err.Error()).AsGinResponse())
		return
	}
	if strings.TrimSpace(req.PromptID) == "" {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "prompt_id is required", nil).AsGinResponse())
		return
	}

	ctrl.issue(c, ingest.IssueRequest{
		CallerID:  auth.CallerID(c),
		ActingFor: req.ActingForSharerID,
		PromptID:  req.PromptID,
	})
}

func (ctrl *Controller) issue(c *gin.Context, req ingest.IssueRequest) {
	issued, err := ctrl.issuer.Issue(c.Request.Context(), req)
	if err != nil {
		code, message := errorStatus(err)
		c.JSON(sdk.NewErrorResponse(code, message, err.Error()).AsGinResponse())
		return
	}

	resp := &sdk.UploadSessionResponse{
		UploadURL: issued.UploadURL,
		UploadID:  issued.UploadID,
		ContentID: issued.ContentID,
	}
	c.JSON(sdk.NewSuccessResponse("Upload created successfully", resp).AsGinResponse())
}

// errorStatus maps issuer failures to HTTP answers
func errorStatus(err error) (int, string) {
	var external *content.ExternalServiceError

	switch {
	case errors.Is(err, content.ErrValidation):
		return http.StatusBadRequest, "Invalid upload request"
	case errors.Is(err, content.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, content.ErrUnauthorized):
		return http.StatusForbidden, "Not allowed to upload for this sharer"
	case errors.Is(err, content.ErrConflict):
		return http.StatusConflict, "A conflicting upload was created at the same time, try again"
	case errors.As(err, &external):
		return http.StatusBadGateway, "Video service unavailable"
	default:
		return http.StatusInternalServerError, "Failed to create upload"
	}
}
