package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethanbaker/storyvideo/internal/videohost"
	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/ethanbaker/storyvideo/pkg/logging"
	"github.com/robfig/cron/v3"
)

const defaultSweepBatch = 100

// AssetSource reads the current state of an asset from the video service
type AssetSource interface {
	GetAsset(ctx context.Context, assetID string) (*videohost.Asset, error)
}

// SweepResult counts what a sweep did
type SweepResult struct {
	Checked   int
	Ready     int
	Errored   int
	Unchanged int
	Failed    int
}

// Sweeper recovers slots whose ready or errored event never arrived by asking the
// video service for the asset state and feeding it to the reconciler
type Sweeper struct {
	store      content.Store
	assets     AssetSource
	reconciler *Reconciler
	minAge     time.Duration
	batch      int
	metrics    *Metrics
	logger     logging.Logger
	now        func() time.Time

	cron    *cron.Cron
	running sync.Mutex
}

// NewSweeper creates a sweeper that checks ASSET_CREATED slots untouched for minAge
func NewSweeper(store content.Store, assets AssetSource, reconciler *Reconciler, minAge time.Duration, metrics *Metrics, logger logging.Logger) *Sweeper {
	return &Sweeper{
		store:      store,
		assets:     assets,
		reconciler: reconciler,
		minAge:     minAge,
		batch:      defaultSweepBatch,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Sweep runs one pass. Overlapping calls are skipped
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	if !s.running.TryLock() {
		s.logger.Info("sweep already running, skipping")
		return result, nil
	}
	defer s.running.Unlock()

	slots, err := s.store.ListStaleSlots(ctx, content.StatusAssetCreated, s.now().Add(-s.minAge), s.batch)
	if err != nil {
		return result, fmt.Errorf("failed to list stale slots: %w", err)
	}

	for _, slot := range slots {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Checked++

		outcome := s.sweepSlot(ctx, slot)
		s.metrics.SweptSlots.WithLabelValues(outcome).Inc()
		switch outcome {
		case "ready":
			result.Ready++
		case "errored":
			result.Errored++
		case "unchanged":
			result.Unchanged++
		default:
			result.Failed++
		}
	}

	s.logger.WithFields(logging.Fields{
		"checked":   result.Checked,
		"ready":     result.Ready,
		"errored":   result.Errored,
		"unchanged": result.Unchanged,
		"failed":    result.Failed,
	}).Info("reconciliation sweep finished")
	return result, nil
}

func (s *Sweeper) sweepSlot(ctx context.Context, slot *content.Slot) string {
	log := s.logger.WithFields(logging.Fields{
		"content_id": slot.ID,
		"kind":       slot.Kind,
		"asset_id":   slot.AssetID,
	})

	if slot.AssetID == "" {
		log.Warn("asset created slot has no asset id")
		return "failed"
	}

	asset, err := s.assets.GetAsset(ctx, slot.AssetID)
	if err != nil {
		log.WithError(err).Warn("failed to get asset during sweep")
		return "failed"
	}

	switch asset.Status {
	case videohost.AssetStatusReady:
		fields := asset.ReadyFields()
		fields.AssetID = slot.AssetID
		if err := s.reconciler.AssetReady(ctx, slot, fields); err != nil {
			log.WithError(err).Error("failed to apply swept ready state")
			return "failed"
		}
		return "ready"
	case videohost.AssetStatusErrored:
		errorText := asset.Errors.Text()
		if errorText == "" {
			errorText = "asset errored"
		}
		if err := s.reconciler.AssetErrored(ctx, slot, errorText); err != nil {
			log.WithError(err).Error("failed to apply swept errored state")
			return "failed"
		}
		return "errored"
	default:
		return "unchanged"
	}
}

// Start schedules sweeps with a cron spec such as "@every 15m"
func (s *Sweeper) Start(schedule string) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.WithError(err).Error("reconciliation sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", schedule).Info("reconciliation sweeper started")
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
