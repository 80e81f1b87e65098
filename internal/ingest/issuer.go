package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethanbaker/storyvideo/internal/videohost"
	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/ethanbaker/storyvideo/pkg/logging"
	"github.com/ethanbaker/storyvideo/pkg/utils"
	"github.com/sirupsen/logrus"
)

// UploadService is the part of the video service the issuer needs
type UploadService interface {
	CreateUpload(ctx context.Context, req videohost.UploadRequest) (*videohost.Upload, error)
	DeleteAsset(ctx context.Context, assetID string) error
}

// IssueRequest asks for an upload. Exactly one of TopicID or PromptID is set
type IssueRequest struct {
	CallerID  string
	ActingFor string
	TopicID   string
	PromptID  string
}

// IssuedUpload is what the caller needs to upload the video bytes
type IssuedUpload struct {
	UploadURL string
	UploadID  string
	ContentID string
}

// Issuer creates WAITING slots and the external uploads that will fill them
type Issuer struct {
	store    content.Store
	sessions content.UploadSessionStore
	access   content.AccessResolver
	uploads  UploadService
	settings utils.UploadSettings
	metrics  *Metrics
	logger   logging.Logger
	newID    func() string
}

// NewIssuer creates an issuer
func NewIssuer(store content.Store, sessions content.UploadSessionStore, access content.AccessResolver, uploads UploadService, settings utils.UploadSettings, metrics *Metrics, logger logging.Logger, newID func() string) *Issuer {
	return &Issuer{
		store:    store,
		sessions: sessions,
		access:   access,
		uploads:  uploads,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
		newID:    newID,
	}
}

// Issue resolves who the upload is for, replaces any prior topic summary, creates the
// slot and requests the external upload. A failure after the slot exists deletes it again
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*IssuedUpload, error) {
	kind, err := req.kind()
	if err != nil {
		return nil, err
	}

	sharerID, err := i.access.EffectiveSharer(ctx, req.CallerID, req.ActingFor)
	if err != nil {
		i.metrics.UploadSessions.WithLabelValues(string(kind), "rejected").Inc()
		return nil, err
	}

	log := i.logger.WithFields(logging.Fields{
		"kind":      kind,
		"sharer_id": sharerID,
		"caller_id": req.CallerID,
	})

	var slot *content.Slot
	switch kind {
	case content.KindTopicSummaryVideo:
		if err := i.replaceTopicSummaries(ctx, req.TopicID, sharerID, log); err != nil {
			return nil, err
		}
		slot = content.NewTopicSummaryVideo(i.newID(), req.TopicID, sharerID)
	default:
		slot = content.NewResponseVideo(i.newID(), req.PromptID, sharerID)
	}

	if err := i.store.CreateSlot(ctx, slot); err != nil {
		i.metrics.UploadSessions.WithLabelValues(string(kind), "failed").Inc()
		return nil, err
	}
	log = log.WithField("content_id", slot.ID)

	upload, err := i.requestUpload(ctx, slot)
	if err != nil {
		i.compensate(ctx, slot, log)
		i.metrics.UploadSessions.WithLabelValues(string(kind), "failed").Inc()
		log.WithError(err).Error("failed to issue upload")
		return nil, err
	}

	i.metrics.UploadSessions.WithLabelValues(string(kind), "issued").Inc()
	log.WithField("upload_id", upload.ID).Info("issued upload")

	return &IssuedUpload{
		UploadURL: upload.URL,
		UploadID:  upload.ID,
		ContentID: slot.ID,
	}, nil
}

func (r IssueRequest) kind() (content.Kind, error) {
	switch {
	case r.TopicID != "" && r.PromptID != "":
		return "", content.Validationf("exactly one of topic_id or prompt_id may be set")
	case r.TopicID != "":
		return content.KindTopicSummaryVideo, nil
	case r.PromptID != "":
		return content.KindResponseVideo, nil
	default:
		return "", content.Validationf("topic_id or prompt_id is required")
	}
}

// replaceTopicSummaries removes the existing summaries for the pair. Deleting the
// external asset is best effort, deleting the row is not
func (i *Issuer) replaceTopicSummaries(ctx context.Context, topicID, sharerID string, log *logrus.Entry) error {
	existing, err := i.store.ListTopicSummaryVideos(ctx, topicID, sharerID)
	if err != nil {
		return err
	}

	for _, prior := range existing {
		priorLog := log.WithField("replaced_content_id", prior.ID)

		if prior.AssetID != "" {
			if err := i.uploads.DeleteAsset(ctx, prior.AssetID); err != nil {
				priorLog.WithError(err).WithField("asset_id", prior.AssetID).Warn("failed to delete replaced asset")
			}
		}
		if prior.UploadID != "" {
			if err := i.sessions.Consume(ctx, prior.UploadID); err != nil {
				priorLog.WithError(err).Warn("failed to consume replaced upload session")
			}
		}

		if err := i.store.DeleteSlot(ctx, prior.Ref()); err != nil {
			return fmt.Errorf("failed to delete replaced topic summary %s: %w", prior.ID, err)
		}
		priorLog.Info("replaced topic summary")
	}
	return nil
}

func (i *Issuer) requestUpload(ctx context.Context, slot *content.Slot) (*videohost.Upload, error) {
	passthrough := Passthrough{
		ContentID: slot.ID,
		Kind:      slot.Kind,
		TopicID:   slot.TopicID,
		PromptID:  slot.PromptID,
		SharerID:  slot.SharerID,
	}

	upload, err := i.uploads.CreateUpload(ctx, videohost.UploadRequest{
		Passthrough:      passthrough.Encode(),
		CorsOrigin:       i.settings.CorsOrigin,
		PlaybackPolicy:   i.settings.PlaybackPolicy,
		VideoQuality:     i.settings.VideoQuality,
		StaticRenditions: i.settings.StaticRenditions,
		CaptionLanguages: i.settings.CaptionLanguages,
		TimeoutSeconds:   int(i.settings.Timeout.Seconds()),
		Test:             i.settings.Test,
	})
	if err != nil {
		return nil, err
	}

	if err := i.store.SetUploadID(ctx, slot.Ref(), upload.ID); err != nil {
		return nil, fmt.Errorf("failed to record upload id: %w", err)
	}

	session := &content.UploadSession{
		UploadID:  upload.ID,
		ContentID: slot.ID,
		Kind:      slot.Kind,
		SharerID:  slot.SharerID,
		CreatedAt: time.Now().UTC(),
	}
	if err := i.sessions.Save(ctx, session, i.settings.Timeout); err != nil {
		return nil, fmt.Errorf("failed to save upload session: %w", err)
	}
	return upload, nil
}

// compensate deletes a slot whose upload could not be issued. It runs even if the
// request context is already cancelled
func (i *Issuer) compensate(ctx context.Context, slot *content.Slot, log *logrus.Entry) {
	ctx = context.WithoutCancel(ctx)
	if err := i.store.DeleteSlot(ctx, slot.Ref()); err != nil && !errors.Is(err, content.ErrNotFound) {
		log.WithError(err).Error("failed to delete slot after upload failure")
	}
}
