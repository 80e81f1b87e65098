package ingest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/ethanbaker/storyvideo/pkg/logging"
	"github.com/sirupsen/logrus"
)

// Webhook results reported on Outcome and in metrics
const (
	ResultApplied      = "applied"
	ResultIgnored      = "ignored"
	ResultUnresolved   = "unresolved"
	ResultAmbiguous    = "ambiguous"
	ResultUnauthorized = "unauthorized"
	ResultMalformed    = "malformed"
	ResultFailed       = "failed"
)

// Outcome is how a webhook delivery was handled. Status is the HTTP status to answer with
type Outcome struct {
	Status int
	Result string
	Err    error
}

// RouterConfig configures webhook authentication
type RouterConfig struct {
	Secret    string
	Tolerance time.Duration
}

// Router authenticates, parses and resolves webhook deliveries, then dispatches them to the reconciler
type Router struct {
	store      content.Store
	sessions   content.UploadSessionStore
	resolver   *Resolver
	reconciler *Reconciler
	cfg        RouterConfig
	metrics    *Metrics
	logger     logging.Logger
	now        func() time.Time
}

// NewRouter creates a router. Without a secret, deliveries are accepted unsigned
func NewRouter(store content.Store, sessions content.UploadSessionStore, reconciler *Reconciler, cfg RouterConfig, metrics *Metrics, logger logging.Logger) *Router {
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultSignatureTolerance
	}
	if cfg.Secret == "" {
		logger.Warn("video webhook secret is not set, webhook deliveries will not be authenticated")
	}

	return &Router{
		store:      store,
		sessions:   sessions,
		resolver:   NewResolver(store),
		reconciler: reconciler,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Handle processes one raw delivery
func (r *Router) Handle(ctx context.Context, signature string, body []byte) Outcome {
	if r.cfg.Secret != "" {
		if err := VerifySignature(signature, body, r.cfg.Secret, r.cfg.Tolerance, r.now()); err != nil {
			r.logger.WithError(err).Warn("rejected webhook delivery")
			return r.finish("unknown", Outcome{Status: http.StatusUnauthorized, Result: ResultUnauthorized, Err: err})
		}
	}

	event, err := ParseEvent(body)
	if err != nil {
		r.logger.WithError(err).Warn("malformed webhook delivery")
		return r.finish("unknown", Outcome{Status: http.StatusBadRequest, Result: ResultMalformed, Err: err})
	}

	log := r.logger.WithFields(logging.Fields{
		"event_id":   event.ID,
		"event_type": event.ExternalType,
	})

	if event.Type == EventIgnored {
		log.Debug("ignoring webhook event type")
		return r.finish(event.ExternalType, Outcome{Status: http.StatusOK, Result: ResultIgnored})
	}

	slot, err := r.resolve(ctx, event, log)
	switch {
	case errors.Is(err, content.ErrAmbiguousOwner):
		r.metrics.UnresolvedEvents.WithLabelValues(unresolvedAmbiguous).Inc()
		log.WithError(err).Error("webhook event matches both content tables, refusing to apply it")
		return r.finish(event.ExternalType, Outcome{Status: http.StatusOK, Result: ResultAmbiguous, Err: err})
	case errors.Is(err, content.ErrNotFound):
		if event.Passthrough.ContentID != "" {
			r.metrics.UnresolvedEvents.WithLabelValues(unresolvedWithPassthrough).Inc()
			log.WithField("content_id", event.Passthrough.ContentID).Error("webhook event names a content slot that does not exist")
		} else {
			r.metrics.UnresolvedEvents.WithLabelValues(unresolvedNotFound).Inc()
			log.Info("webhook event does not match any content slot")
		}
		return r.finish(event.ExternalType, Outcome{Status: http.StatusOK, Result: ResultUnresolved})
	case err != nil:
		log.WithError(err).Error("failed to resolve webhook event")
		return r.finish(event.ExternalType, Outcome{Status: http.StatusInternalServerError, Result: ResultFailed, Err: err})
	}

	if err := r.dispatch(ctx, event, slot); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, content.ErrValidation) {
			status = http.StatusBadRequest
		}
		log.WithError(err).WithField("content_id", slot.ID).Error("failed to apply webhook event")
		return r.finish(event.ExternalType, Outcome{Status: status, Result: ResultFailed, Err: err})
	}

	return r.finish(event.ExternalType, Outcome{Status: http.StatusOK, Result: ResultApplied})
}

func (r *Router) finish(eventType string, outcome Outcome) Outcome {
	r.metrics.WebhookEvents.WithLabelValues(eventType, outcome.Result).Inc()
	return outcome
}

// resolve finds the owning slot: passthrough content id, then upload handle, then asset id
func (r *Router) resolve(ctx context.Context, event *Event, log *logrus.Entry) (*content.Slot, error) {
	if id := event.Passthrough.ContentID; id != "" {
		var slot *content.Slot
		var err error
		if event.Passthrough.Kind != "" {
			slot, err = r.store.GetSlot(ctx, content.Ref{Kind: event.Passthrough.Kind, ID: id})
		} else {
			slot, err = r.resolver.ByContentID(ctx, id)
		}
		if !errors.Is(err, content.ErrNotFound) {
			return slot, err
		}
		log.WithField("content_id", id).Warn("passthrough content id not found, falling back")
	}

	if uploadID := event.UploadID(); uploadID != "" {
		slot, err := r.byUploadID(ctx, uploadID)
		if !errors.Is(err, content.ErrNotFound) {
			return slot, err
		}
	}

	return r.resolver.ByAssetID(ctx, event.AssetID())
}

func (r *Router) byUploadID(ctx context.Context, uploadID string) (*content.Slot, error) {
	if r.sessions != nil {
		session, err := r.sessions.Lookup(ctx, uploadID)
		if err == nil {
			slot, err := r.store.GetSlot(ctx, session.Ref())
			if !errors.Is(err, content.ErrNotFound) {
				return slot, err
			}
		} else if !errors.Is(err, content.ErrNotFound) {
			// The session cache is an optimization, the upload_id column is authoritative
			r.logger.WithError(err).Warn("upload session lookup failed")
		}
	}
	return r.resolver.ByUploadID(ctx, uploadID)
}

func (r *Router) dispatch(ctx context.Context, event *Event, slot *content.Slot) error {
	switch event.Type {
	case EventAssetCreated:
		return r.reconciler.AssetCreated(ctx, slot, event.AssetID(), event.UploadID())
	case EventAssetReady:
		fields := event.Data.Asset.ReadyFields()
		fields.AssetID = event.AssetID()
		return r.reconciler.AssetReady(ctx, slot, fields)
	case EventAssetErrored:
		return r.reconciler.AssetErrored(ctx, slot, event.ErrorText())
	case EventUploadFailed:
		return r.reconciler.UploadFailed(ctx, slot, event.ErrorText())
	case EventTrackReady:
		return r.reconciler.TrackReady(ctx, slot, event.Track())
	case EventDownloadsReady:
		return r.reconciler.DownloadsReady(ctx, slot)
	default:
		return nil
	}
}
