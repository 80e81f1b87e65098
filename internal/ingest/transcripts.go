package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethanbaker/storyvideo/internal/videohost"
	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/ethanbaker/storyvideo/pkg/logging"
	"github.com/ethanbaker/storyvideo/pkg/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// TranscriptSource downloads the text of a track
type TranscriptSource interface {
	FetchTranscript(ctx context.Context, playbackID, trackID string) (string, error)
}

// TranscriptFetcher stores one transcript per (slot, track), fetching the text under a retry policy
type TranscriptFetcher struct {
	store   content.Store
	source  TranscriptSource
	policy  retry.Policy
	group   singleflight.Group
	metrics *Metrics
	logger  logging.Logger
	newID   func() string
}

// NewTranscriptFetcher creates a fetcher
func NewTranscriptFetcher(store content.Store, source TranscriptSource, policy retry.Policy, metrics *Metrics, logger logging.Logger, newID func() string) *TranscriptFetcher {
	return &TranscriptFetcher{
		store:   store,
		source:  source,
		policy:  policy,
		metrics: metrics,
		logger:  logger,
		newID:   newID,
	}
}

// Fetch stores the transcript of track for slot. A slot without a playback id or a
// track that is already stored is a successful no-op. Exhausting the retry policy
// returns the last fetch error
func (f *TranscriptFetcher) Fetch(ctx context.Context, slot *content.Slot, track videohost.Track) error {
	log := f.logger.WithFields(logging.Fields{
		"content_id": slot.ID,
		"kind":       slot.Kind,
		"track_id":   track.ID,
	})

	if slot.PlaybackID == "" {
		log.Info("slot has no playback id yet, skipping transcript")
		f.metrics.TranscriptFetches.WithLabelValues("skipped").Inc()
		return nil
	}

	// Concurrent deliveries for the same track share one fetch
	key := fmt.Sprintf("%s/%s/%s", slot.Kind, slot.ID, track.ID)
	_, err, shared := f.group.Do(key, func() (any, error) {
		return nil, f.fetch(ctx, slot, track, log)
	})
	if shared {
		log.Debug("joined in-flight transcript fetch")
	}
	return err
}

func (f *TranscriptFetcher) fetch(ctx context.Context, slot *content.Slot, track videohost.Track, log *logrus.Entry) error {
	exists, err := f.store.HasTranscript(ctx, slot.Ref(), track.ID)
	if err != nil {
		return err
	}
	if exists {
		f.metrics.TranscriptFetches.WithLabelValues("duplicate").Inc()
		return nil
	}

	policy := f.policy
	policy.Retryable = func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	policy.OnRetry = func(attempt int, err error) {
		f.metrics.TranscriptFetches.WithLabelValues("retry").Inc()
		log.WithError(err).WithField("attempt", attempt).Warn("transcript fetch failed, retrying")
	}

	text, err := retry.Get(ctx, policy, func(ctx context.Context) (string, error) {
		return f.source.FetchTranscript(ctx, slot.PlaybackID, track.ID)
	})
	if err != nil {
		f.metrics.TranscriptFetches.WithLabelValues("exhausted").Inc()
		log.WithError(err).Error("transcript fetch failed")
		return fmt.Errorf("failed to fetch transcript for track %s: %w", track.ID, err)
	}

	inserted, err := f.store.CreateTranscript(ctx, &content.Transcript{
		ID:       f.newID(),
		Kind:     slot.Kind,
		VideoID:  slot.ID,
		TrackID:  track.ID,
		Text:     text,
		Source:   track.TextSource,
		Type:     track.TextType,
		Language: track.LanguageCode,
	})
	if err != nil {
		return err
	}

	if inserted {
		f.metrics.TranscriptFetches.WithLabelValues("stored").Inc()
		log.Info("stored transcript")
	} else {
		f.metrics.TranscriptFetches.WithLabelValues("duplicate").Inc()
	}
	return nil
}
