package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethanbaker/storyvideo/internal/ingest"
	"github.com/ethanbaker/storyvideo/pkg/sdk"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls  int
	result ingest.SweepResult
	err    error
}

func (f *fakeSweeper) Sweep(context.Context) (ingest.SweepResult, error) {
	f.calls++
	return f.result, f.err
}

func newEngine(sweeper Sweeper, apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	RegisterRoutes(engine.Group("/api"), NewController(sweeper), NewKeyValidator(apiKey))
	return engine
}

func sweep(engine *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/sweep", nil)
	if key != "" {
		req.Header.Set("X-API-KEY", key)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestSweep(t *testing.T) {
	sweeper := &fakeSweeper{result: ingest.SweepResult{Checked: 3, Ready: 1, Errored: 1, Unchanged: 1}}

	rec := sweep(newEngine(sweeper, "admin-key"), "admin-key")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp sdk.ApiResponse[sdk.SweepResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, sdk.SweepResponse{Checked: 3, Ready: 1, Errored: 1, Unchanged: 1}, resp.Data)
	assert.Equal(t, 1, sweeper.calls)
}

func TestSweep_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		configKey string
		key       string
	}{
		{name: "missing key", configKey: "admin-key"},
		{name: "wrong key", configKey: "admin-key", key: "guess"},
		{name: "no key configured", configKey: "", key: "anything"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sweeper := &fakeSweeper{}
			rec := sweep(newEngine(sweeper, tt.configKey), tt.key)

			assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)
			assert.Zero(t, sweeper.calls)
		})
	}
}

func TestSweep_Failure(t *testing.T) {
	rec := sweep(newEngine(&fakeSweeper{err: errors.New("db down")}, "admin-key"), "admin-key")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
