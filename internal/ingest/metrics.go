package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Unresolved event reasons
const (
	unresolvedNotFound        = "not_found"
	unresolvedWithPassthrough = "unresolved_with_passthrough"
	unresolvedAmbiguous       = "ambiguous_owner"
)

// Metrics counts what the ingestion pipeline does
type Metrics struct {
	WebhookEvents     *prometheus.CounterVec // type, outcome
	UnresolvedEvents  *prometheus.CounterVec // reason
	Transitions       *prometheus.CounterVec // kind, status
	TranscriptFetches *prometheus.CounterVec // result
	UploadSessions    *prometheus.CounterVec // kind, result
	SweptSlots        *prometheus.CounterVec // result
}

// NewMetrics registers the pipeline metrics with reg. A nil reg leaves them unregistered
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyvideo",
			Name:      "webhook_events_total",
			Help:      "Video service webhook deliveries by event type and outcome",
		}, []string{"type", "outcome"}),
		UnresolvedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyvideo",
			Name:      "webhook_unresolved_total",
			Help:      "Webhook deliveries that could not be matched to a content slot",
		}, []string{"reason"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyvideo",
			Name:      "slot_transitions_total",
			Help:      "Lifecycle transitions applied to content slots",
		}, []string{"kind", "status"}),
		TranscriptFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyvideo",
			Name:      "transcript_fetches_total",
			Help:      "Transcript fetch outcomes",
		}, []string{"result"}),
		UploadSessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyvideo",
			Name:      "upload_sessions_total",
			Help:      "Upload sessions issued by kind and result",
		}, []string{"kind", "result"}),
		SweptSlots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyvideo",
			Name:      "swept_slots_total",
			Help:      "Slots checked by the reconciliation sweeper by result",
		}, []string{"result"}),
	}
}
