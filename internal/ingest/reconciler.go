package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethanbaker/storyvideo/internal/events"
	"github.com/ethanbaker/storyvideo/internal/videohost"
	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/ethanbaker/storyvideo/pkg/logging"
	"github.com/sirupsen/logrus"
)

// Reconciler applies lifecycle events to slots. Every transition is a compare-and-set
// on the stored status, so replays and out-of-order deliveries are harmless
type Reconciler struct {
	store       content.Store
	sessions    content.UploadSessionStore
	transcripts *TranscriptFetcher
	publisher   events.Publisher
	metrics     *Metrics
	logger      logging.Logger
	newID       func() string
}

// NewReconciler creates a reconciler
func NewReconciler(store content.Store, sessions content.UploadSessionStore, transcripts *TranscriptFetcher, publisher events.Publisher, metrics *Metrics, logger logging.Logger, newID func() string) *Reconciler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Reconciler{
		store:       store,
		sessions:    sessions,
		transcripts: transcripts,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger,
		newID:       newID,
	}
}

func (r *Reconciler) log(slot *content.Slot) *logrus.Entry {
	return r.logger.WithFields(logging.Fields{
		"content_id": slot.ID,
		"kind":       slot.Kind,
	})
}

// AssetCreated moves a WAITING slot to ASSET_CREATED and consumes its upload session
func (r *Reconciler) AssetCreated(ctx context.Context, slot *content.Slot, assetID, uploadID string) error {
	if assetID == "" {
		r.log(slot).Warn("asset created event without an asset id")
		return nil
	}

	moved, err := r.store.MarkAssetCreated(ctx, slot.Ref(), assetID)
	if err != nil {
		return err
	}
	if moved {
		r.metrics.Transitions.WithLabelValues(string(slot.Kind), string(content.StatusAssetCreated)).Inc()
		r.log(slot).WithField("asset_id", assetID).Info("asset created")
	} else {
		r.log(slot).WithField("status", slot.Status).Debug("asset created event ignored")
	}

	if uploadID == "" {
		uploadID = slot.UploadID
	}
	if uploadID != "" && r.sessions != nil {
		if err := r.sessions.Consume(ctx, uploadID); err != nil {
			r.log(slot).WithError(err).Warn("failed to consume upload session")
		}
	}
	return nil
}

// AssetReady moves a WAITING or ASSET_CREATED slot to READY. A response video that is
// READY afterwards gets its prompt response, also when this delivery is a replay
func (r *Reconciler) AssetReady(ctx context.Context, slot *content.Slot, fields content.ReadyFields) error {
	moved, err := r.store.MarkReady(ctx, slot.Ref(), fields)
	if err != nil {
		return err
	}

	current, err := r.store.GetSlot(ctx, slot.Ref())
	if err != nil {
		return err
	}

	if moved {
		r.metrics.Transitions.WithLabelValues(string(slot.Kind), string(content.StatusReady)).Inc()
		r.log(current).WithField("playback_id", current.PlaybackID).Info("video ready")
		r.publish(ctx, events.TypeVideoReady, current)
	} else {
		r.log(current).WithField("status", current.Status).Debug("asset ready event ignored")
	}

	if current.Status == content.StatusReady && current.Kind == content.KindResponseVideo {
		r.ensurePromptResponse(ctx, current)
	}
	return nil
}

// ensurePromptResponse creates the derived prompt response at most once
func (r *Reconciler) ensurePromptResponse(ctx context.Context, slot *content.Slot) {
	if slot.PromptID == "" || slot.SharerID == "" {
		integrity := &content.DataIntegrityError{Ref: slot.Ref(), Reason: "ready response video has no prompt or sharer"}
		r.log(slot).WithError(integrity).Error("cannot create prompt response")
		return
	}

	inserted, err := r.store.CreatePromptResponse(ctx, &content.PromptResponse{
		ID:       r.newID(),
		PromptID: slot.PromptID,
		SharerID: slot.SharerID,
		VideoID:  slot.ID,
	})
	if err != nil {
		// The slot stays READY, a replay or the sweeper retries the derived record
		r.log(slot).WithError(err).Error("failed to create prompt response")
		return
	}
	if inserted {
		r.log(slot).WithField("prompt_id", slot.PromptID).Info("created prompt response")
	}
}

// AssetErrored moves a WAITING or ASSET_CREATED slot to ERRORED
func (r *Reconciler) AssetErrored(ctx context.Context, slot *content.Slot, errorText string) error {
	return r.markErrored(ctx, slot, []content.Status{content.StatusWaiting, content.StatusAssetCreated}, errorText)
}

// UploadFailed moves a WAITING slot to ERRORED
func (r *Reconciler) UploadFailed(ctx context.Context, slot *content.Slot, errorText string) error {
	return r.markErrored(ctx, slot, []content.Status{content.StatusWaiting}, errorText)
}

func (r *Reconciler) markErrored(ctx context.Context, slot *content.Slot, from []content.Status, errorText string) error {
	moved, err := r.store.MarkErrored(ctx, slot.Ref(), from, errorText)
	if err != nil {
		return err
	}
	if !moved {
		r.log(slot).WithField("status", slot.Status).Debug("error event ignored")
		return nil
	}

	r.metrics.Transitions.WithLabelValues(string(slot.Kind), string(content.StatusErrored)).Inc()
	r.log(slot).WithField("error", errorText).Warn("video errored")

	errored := *slot
	errored.Status = content.StatusErrored
	errored.ErrorText = errorText
	r.publish(ctx, events.TypeVideoErrored, &errored)
	return nil
}

// TrackReady stores the transcript of a generated text track. Other tracks are ignored
func (r *Reconciler) TrackReady(ctx context.Context, slot *content.Slot, track videohost.Track) error {
	if !track.Generated() {
		r.log(slot).WithField("track_id", track.ID).Debug("ignoring non generated track")
		return nil
	}
	if track.ID == "" {
		return content.Validationf("track event without a track id")
	}
	if r.transcripts == nil {
		return errors.New("no transcript fetcher configured")
	}
	return r.transcripts.Fetch(ctx, slot, track)
}

// DownloadsReady records that a downloadable rendition exists
func (r *Reconciler) DownloadsReady(ctx context.Context, slot *content.Slot) error {
	if err := r.store.SetDownloadAvailable(ctx, slot.Ref()); err != nil {
		return fmt.Errorf("failed to record download availability: %w", err)
	}
	r.log(slot).Info("downloads available")
	return nil
}

// publish sends a domain event. Failures never affect the transition
func (r *Reconciler) publish(ctx context.Context, eventType string, slot *content.Slot) {
	if err := r.publisher.Publish(ctx, events.NewSlotEvent(r.newID(), eventType, slot)); err != nil {
		r.log(slot).WithError(err).WithField("event_type", eventType).Error("failed to publish domain event")
	}
}
