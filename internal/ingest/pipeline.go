// Package ingest issues video uploads and reconciles the lifecycle events the video
// service sends back for them.
package ingest

import (
	"time"

	"github.com/ethanbaker/storyvideo/internal/events"
	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/ethanbaker/storyvideo/pkg/logging"
	"github.com/ethanbaker/storyvideo/pkg/retry"
	"github.com/ethanbaker/storyvideo/pkg/utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// VideoService is everything the pipeline needs from the video service
type VideoService interface {
	UploadService
	AssetSource
	TranscriptSource
}

// Dependencies wires a Pipeline
type Dependencies struct {
	Store     content.Store
	Sessions  content.UploadSessionStore
	Access    content.AccessResolver
	Videos    VideoService
	Publisher events.Publisher

	Settings         utils.UploadSettings
	TranscriptPolicy retry.Policy
	Webhooks         RouterConfig
	SweepMinAge      time.Duration

	Registerer prometheus.Registerer
	Logger     logging.Logger
	NewID      func() string
}

// Pipeline holds the wired ingestion components
type Pipeline struct {
	Issuer     *Issuer
	Router     *Router
	Reconciler *Reconciler
	Sweeper    *Sweeper
	Metrics    *Metrics
}

// NewPipeline builds every component from deps
func NewPipeline(deps Dependencies) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = logging.NewDiscardLogger()
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.TranscriptPolicy.MaxAttempts == 0 {
		deps.TranscriptPolicy = retry.DefaultPolicy()
	}
	if deps.SweepMinAge == 0 {
		deps.SweepMinAge = 30 * time.Minute
	}

	metrics := NewMetrics(deps.Registerer)
	transcripts := NewTranscriptFetcher(deps.Store, deps.Videos, deps.TranscriptPolicy, metrics, deps.Logger, deps.NewID)
	reconciler := NewReconciler(deps.Store, deps.Sessions, transcripts, deps.Publisher, metrics, deps.Logger, deps.NewID)

	return &Pipeline{
		Issuer:     NewIssuer(deps.Store, deps.Sessions, deps.Access, deps.Videos, deps.Settings, metrics, deps.Logger, deps.NewID),
		Router:     NewRouter(deps.Store, deps.Sessions, reconciler, deps.Webhooks, metrics, deps.Logger),
		Reconciler: reconciler,
		Sweeper:    NewSweeper(deps.Store, deps.Videos, reconciler, deps.SweepMinAge, metrics, deps.Logger),
		Metrics:    metrics,
	}
}
