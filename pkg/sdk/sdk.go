package sdk

import (
	"context"
	"fmt"
	"net/http"
)

// CreateTopicSummaryUpload issues an upload for a topic summary, replacing any existing one
func (c *Client) CreateTopicSummaryUpload(ctx context.Context, req *TopicSummaryUploadRequest) (*UploadSessionResponse, error) {
	return c.createUpload(ctx, "/api/uploads/topic-summary", req)
}

// CreateResponseUpload issues an upload answering a prompt
func (c *Client) CreateResponseUpload(ctx context.Context, req *ResponseUploadRequest) (*UploadSessionResponse, error) {
	return c.createUpload(ctx, "/api/uploads/response", req)
}

// Sweep triggers a reconciliation sweep. Requires an API key
func (c *Client) Sweep(ctx context.Context) (*SweepResponse, error) {
	var out ApiResponse[SweepResponse]
	if err := c.doJSON(ctx, http.MethodPost, "/api/admin/sweep", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) createUpload(ctx context.Context, path string, req any) (*UploadSessionResponse, error) {
	var out ApiResponse[UploadSessionResponse]
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}

	if out.Data.UploadURL == "" || out.Data.ContentID == "" {
		return nil, fmt.Errorf("no upload returned")
	}
	return &out.Data, nil
}
