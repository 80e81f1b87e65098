// Package videohost is the HTTP client for the external transcoding and streaming service.
package videohost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/ethanbaker/storyvideo/pkg/logging"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const (
	DefaultAPIURL    = "https://api.mux.com"
	DefaultStreamURL = "https://stream.mux.com"
)

// Config configures the video service client
type Config struct {
	APIURL      string
	StreamURL   string
	TokenID     string
	TokenSecret string

	// Retry settings for API calls. Transcript downloads are retried by the caller
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	HTTPClient *http.Client
	Logger     logging.Logger
}

// Client talks to the video service REST API and its text track endpoint
type Client struct {
	apiURL      string
	streamURL   string
	tokenID     string
	tokenSecret string
	client      *http.Client
	executor    failsafe.Executor[*http.Response]
	logger      logging.Logger
}

// NewClient creates a client whose API calls run through retry and a circuit breaker
func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.StreamURL == "" {
		cfg.StreamURL = DefaultStreamURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscardLogger()
	}

	return &Client{
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		streamURL:   strings.TrimRight(cfg.StreamURL, "/"),
		tokenID:     cfg.TokenID,
		tokenSecret: cfg.TokenSecret,
		client:      cfg.HTTPClient,
		executor:    newExecutor(cfg),
		logger:      cfg.Logger,
	}
}

// shouldRetry retries transport errors, server errors and rate limits
func shouldRetry(resp *http.Response, err error) bool {
	if err != nil || resp == nil {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

//nolint:bodyclose // *http.Response is a type parameter here
func newExecutor(cfg Config) failsafe.Executor[*http.Response] {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(shouldRetry).
		ReturnLastFailure().
		Build()

	breaker := circuitbreaker.NewBuilder[*http.Response]().
		WithFailureThresholdRatio(5, 10).
		WithDelay(15 * time.Second).
		WithSuccessThreshold(1).
		HandleIf(func(resp *http.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode >= 500)
		}).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			cfg.Logger.WithFields(logging.Fields{
				"circuit_breaker": "videohost",
				"from_state":      stateName(event.OldState),
				"to_state":        stateName(event.NewState),
			}).Warn("circuit breaker state change")
		}).
		Build()

	return failsafe.With(retry, breaker)
}

func stateName(state circuitbreaker.State) string {
	switch state {
	case circuitbreaker.ClosedState:
		return "closed"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	default:
		return "unknown"
	}
}

// do runs an authenticated API request through the executor
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	return c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.tokenID, c.tokenSecret)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if shouldRetry(resp, err) && resp != nil && resp.Body != nil {
			// Drain so a retried attempt can reuse the connection
			_, _ = io.Copy(io.Discard, resp.Body)
		}
		return resp, err
	})
}

// decode reads a {"data": ...} response into out, mapping failures to ExternalServiceError
func decode[T any](op string, resp *http.Response, out *T) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &content.ExternalServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(detail)))}
	}
	if out == nil {
		return nil
	}

	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &content.ExternalServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid response body: %w", err)}
	}
	*out = env.Data
	return nil
}

// CreateUpload requests a direct upload URL for a new asset
func (c *Client) CreateUpload(ctx context.Context, req UploadRequest) (*Upload, error) {
	const op = "create upload"

	resp, err := c.do(ctx, http.MethodPost, "/video/v1/uploads", newCreateUploadBody(req))
	if err != nil {
		return nil, &content.ExternalServiceError{Op: op, Err: err}
	}

	var upload Upload
	if err := decode(op, resp, &upload); err != nil {
		return nil, err
	}
	if upload.ID == "" || upload.URL == "" {
		return nil, &content.ExternalServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("response is missing the upload id or url")}
	}
	return &upload, nil
}

// GetAsset retrieves the current state of an asset
func (c *Client) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	const op = "get asset"

	resp, err := c.do(ctx, http.MethodGet, "/video/v1/assets/"+url.PathEscape(assetID), nil)
	if err != nil {
		return nil, &content.ExternalServiceError{Op: op, Err: err}
	}

	var asset Asset
	if err := decode(op, resp, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// DeleteAsset removes an asset. An asset that is already gone is not an error
func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	const op = "delete asset"

	resp, err := c.do(ctx, http.MethodDelete, "/video/v1/assets/"+url.PathEscape(assetID), nil)
	if err != nil {
		return &content.ExternalServiceError{Op: op, Err: err}
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		c.logger.WithField("asset_id", assetID).Debug("asset already deleted")
		return nil
	}
	return decode[struct{}](op, resp, nil)
}

// FetchTranscript downloads the plain text of a text track. It makes a single attempt
func (c *Client) FetchTranscript(ctx context.Context, playbackID, trackID string) (string, error) {
	const op = "fetch transcript"

	endpoint := fmt.Sprintf("%s/%s/text/%s.txt", c.streamURL, url.PathEscape(playbackID), url.PathEscape(trackID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &content.ExternalServiceError{Op: op, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &content.ExternalServiceError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &content.ExternalServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &content.ExternalServiceError{Op: op, Err: fmt.Errorf("failed to read transcript: %w", err)}
	}
	return strings.TrimSpace(string(text)), nil
}
