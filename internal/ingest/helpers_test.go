package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethanbaker/storyvideo/internal/events"
	contentstore "github.com/ethanbaker/storyvideo/internal/stores/content"
	"github.com/ethanbaker/storyvideo/internal/stores/delegation"
	"github.com/ethanbaker/storyvideo/internal/stores/uploads"
	"github.com/ethanbaker/storyvideo/internal/videohost"
	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/ethanbaker/storyvideo/pkg/logging"
	"github.com/ethanbaker/storyvideo/pkg/retry"
	"github.com/ethanbaker/storyvideo/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// fakeVideos is an in-process stand-in for the video service
type fakeVideos struct {
	mu sync.Mutex

	uploadErr  error
	uploadReqs []videohost.UploadRequest
	deleteErr  error
	deleted    []string

	assets   map[string]*videohost.Asset
	assetErr error

	transcriptFailures int // Fail this many fetches before succeeding
	transcriptCalls    atomic.Int32
	transcriptDelay    time.Duration
}

func newFakeVideos() *fakeVideos {
	return &fakeVideos{assets: make(map[string]*videohost.Asset)}
}

func (f *fakeVideos) CreateUpload(_ context.Context, req videohost.UploadRequest) (*videohost.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploadReqs = append(f.uploadReqs, req)
	id := fmt.Sprintf("upload-%d", len(f.uploadReqs))
	return &videohost.Upload{ID: id, URL: "https://storage.example/" + id, Status: "waiting"}, nil
}

func (f *fakeVideos) DeleteAsset(_ context.Context, assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, assetID)
	return f.deleteErr
}

func (f *fakeVideos) GetAsset(_ context.Context, assetID string) (*videohost.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.assetErr != nil {
		return nil, f.assetErr
	}
	asset, ok := f.assets[assetID]
	if !ok {
		return nil, &content.ExternalServiceError{Op: "get asset", StatusCode: 404, Err: errors.New("not found")}
	}
	return asset, nil
}

func (f *fakeVideos) FetchTranscript(_ context.Context, playbackID, trackID string) (string, error) {
	call := int(f.transcriptCalls.Add(1))
	if f.transcriptDelay > 0 {
		time.Sleep(f.transcriptDelay)
	}
	if call <= f.transcriptFailures {
		return "", &content.ExternalServiceError{Op: "fetch transcript", StatusCode: 404, Err: errors.New("not ready")}
	}
	return fmt.Sprintf("transcript of %s/%s", playbackID, trackID), nil
}

func (f *fakeVideos) uploadRequests() []videohost.UploadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]videohost.UploadRequest(nil), f.uploadReqs...)
}

func (f *fakeVideos) deletedAssets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

// testEnv is a pipeline over in-memory stores and fakes
type testEnv struct {
	store      *contentstore.InMemoryStore
	sessions   *uploads.InMemoryStore
	access     *delegation.InMemoryStore
	videos     *fakeVideos
	publisher  *recordingPublisher
	registry   *prometheus.Registry
	pipeline   *Pipeline
	webhookCfg RouterConfig
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

func fastTranscriptPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func newTestEnv(t *testing.T, opts ...func(*Dependencies)) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     contentstore.NewInMemoryStore(),
		sessions:  uploads.NewInMemoryStore(),
		access:    delegation.NewInMemoryStore(),
		videos:    newFakeVideos(),
		publisher: &recordingPublisher{},
		registry:  prometheus.NewRegistry(),
	}

	deps := Dependencies{
		Store:            env.store,
		Sessions:         env.sessions,
		Access:           env.access,
		Videos:           env.videos,
		Publisher:        env.publisher,
		Settings:         utils.DefaultUploadSettings(),
		TranscriptPolicy: fastTranscriptPolicy(),
		SweepMinAge:      10 * time.Minute,
		Registerer:       env.registry,
		Logger:           logging.NewDiscardLogger(),
		NewID:            sequentialIDs("id"),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.webhookCfg = deps.Webhooks
	env.pipeline = NewPipeline(deps)
	return env
}

// seed stores a slot directly
func (e *testEnv) seed(t *testing.T, slot *content.Slot) *content.Slot {
	t.Helper()
	require.NoError(t, e.store.CreateSlot(context.Background(), slot))
	return slot
}

func (e *testEnv) slot(t *testing.T, ref content.Ref) *content.Slot {
	t.Helper()
	slot, err := e.store.GetSlot(context.Background(), ref)
	require.NoError(t, err)
	return slot
}

// deliver sends an unsigned webhook body through the router
func (e *testEnv) deliver(t *testing.T, eventType string, data any) Outcome {
	t.Helper()
	return e.pipeline.Router.Handle(context.Background(), "", webhookBody(t, eventType, data))
}

func webhookBody(t *testing.T, eventType string, data any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":   "evt-" + eventType,
		"type": eventType,
		"data": data,
	})
	require.NoError(t, err)
	return body
}

func readyAssetData(assetID, playbackID string, passthrough string) map[string]any {
	return map[string]any{
		"id":           assetID,
		"status":       "ready",
		"passthrough":  passthrough,
		"duration":     31.2,
		"aspect_ratio": "16:9",
		"playback_ids": []map[string]any{{"id": playbackID, "policy": "public"}},
		"tracks": []map[string]any{
			{"id": "video-track", "type": "video", "max_width": 1920, "max_height": 1080},
		},
	}
}

func generatedTrackData(trackID, assetID string) map[string]any {
	return map[string]any{
		"id":            trackID,
		"asset_id":      assetID,
		"type":          "text",
		"text_type":     "subtitles",
		"text_source":   "generated_vod",
		"language_code": "en",
		"status":        "ready",
	}
}
