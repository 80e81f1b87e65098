package sdk

import (
	"encoding/json"

	"github.com/ethanbaker/api/pkg/api_types"
)

// ApiResponse represents a standard API response structure
type ApiResponse[T any] struct {
	Status  api_types.StatusType `json:"status"`          // Status message
	Code    int                  `json:"code"`            // Status code
	Message string               `json:"message"`         // Human-readable message
	Data    T                    `json:"data,omitempty"`  // Optional data field for successful responses
	Error   any                  `json:"error,omitempty"` // Optional errors field for error responses
}

// AsGinResponse converts the ApiResponse to a format suitable for Gin framework
func (r ApiResponse[T]) AsGinResponse() (int, any) {
	return r.Code, r
}

// AsJSON converts the ApiResponse to a format suitable for JSON responses
func (r ApiResponse[T]) AsJSON() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func NewSuccess(message string) ApiResponse[any] {
	return ApiResponse[any]{
		Status:  api_types.StatusSuccess,
		Code:    200,
		Message: message,
	}
}

func NewSuccessResponse[T any](message string, data T) ApiResponse[T] {
	return ApiResponse[T]{
		Status:  api_types.StatusSuccess,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(code int, message string, err any) ApiResponse[any] {
	return ApiResponse[any]{
		Status:  api_types.StatusError,
		Code:    code,
		Message: message,
		Error:   err,
	}
}

/** Upload Module DTOs */

// TopicSummaryUploadRequest asks for an upload of a sharer's summary of a topic
type TopicSummaryUploadRequest struct {
	TopicID           string `json:"topic_id"`
	ActingForSharerID string `json:"acting_for_sharer_id,omitempty"` // Set when an executor records for a sharer
}

// ResponseUploadRequest asks for an upload answering a prompt
type ResponseUploadRequest struct {
	PromptID          string `json:"prompt_id"`
	ActingForSharerID string `json:"acting_for_sharer_id,omitempty"`
}

// UploadSessionResponse is returned once an upload has been issued
type UploadSessionResponse struct {
	UploadURL string `json:"upload_url"` // Where the caller PUTs the video bytes
	UploadID  string `json:"upload_id"`  // The external upload handle
	ContentID string `json:"content_id"` // The id of the new content slot
}

/** Admin Module DTOs */

// SweepResponse summarizes a reconciliation sweep
type SweepResponse struct {
	Checked   int `json:"checked"`
	Ready     int `json:"ready"`
	Errored   int `json:"errored"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}
