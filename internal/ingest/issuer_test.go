package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	contentstore "github.com/ethanbaker/storyvideo/internal/stores/content"
	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conflictStore fails every slot insert the way a lost unique-key race does
type conflictStore struct {
	*contentstore.InMemoryStore
}

func (conflictStore) CreateSlot(context.Context, *content.Slot) error {
	return content.ErrConflict
}

func TestIssuer_Authorization(t *testing.T) {
	tests := []struct {
		name       string
		req        IssueRequest
		wantErr    error
		wantSharer string
	}{
		{name: "self", req: IssueRequest{CallerID: "sharer-1", PromptID: "prompt-1"}, wantSharer: "sharer-1"},
		{name: "self named explicitly", req: IssueRequest{CallerID: "sharer-1", ActingFor: "sharer-1", TopicID: "topic-1"}, wantSharer: "sharer-1"},
		{name: "verified delegate", req: IssueRequest{CallerID: "executor-1", ActingFor: "sharer-1", PromptID: "prompt-1"}, wantSharer: "sharer-1"},
		{name: "unverified delegate", req: IssueRequest{CallerID: "executor-2", ActingFor: "sharer-1", PromptID: "prompt-1"}, wantErr: content.ErrUnauthorized},
		{name: "stranger", req: IssueRequest{CallerID: "someone", ActingFor: "sharer-1", TopicID: "topic-1"}, wantErr: content.ErrUnauthorized},
		{name: "anonymous", req: IssueRequest{PromptID: "prompt-1"}, wantErr: content.ErrUnauthenticated},
		{name: "no target", req: IssueRequest{CallerID: "sharer-1"}, wantErr: content.ErrValidation},
		{name: "two targets", req: IssueRequest{CallerID: "sharer-1", TopicID: "topic-1", PromptID: "prompt-1"}, wantErr: content.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			require.NoError(t, env.access.Grant(ctx, "executor-1", "sharer-1", true))
			require.NoError(t, env.access.Grant(ctx, "executor-2", "sharer-1", false))

			issued, err := env.pipeline.Issuer.Issue(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, issued)
				assert.Zero(t, env.store.SlotCount(content.KindResponseVideo)+env.store.SlotCount(content.KindTopicSummaryVideo))
				assert.Empty(t, env.videos.uploadRequests())
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, issued.UploadURL)
			assert.NotEmpty(t, issued.UploadID)

			kind := content.KindResponseVideo
			if tt.req.TopicID != "" {
				kind = content.KindTopicSummaryVideo
			}
			slot := env.slot(t, content.Ref{Kind: kind, ID: issued.ContentID})
			assert.Equal(t, tt.wantSharer, slot.SharerID)
			assert.Equal(t, content.StatusWaiting, slot.Status)
			assert.Equal(t, issued.UploadID, slot.UploadID)

			session, err := env.sessions.Lookup(ctx, issued.UploadID)
			require.NoError(t, err)
			assert.Equal(t, slot.Ref(), session.Ref())
			assert.Equal(t, tt.wantSharer, session.SharerID)
		})
	}
}

func TestIssuer_UploadRequest(t *testing.T) {
	env := newTestEnv(t)

	issued, err := env.pipeline.Issuer.Issue(context.Background(), IssueRequest{CallerID: "sharer-1", PromptID: "prompt-1"})
	require.NoError(t, err)

	requests := env.videos.uploadRequests()
	require.Len(t, requests, 1)
	req := requests[0]

	passthrough := ParsePassthrough(req.Passthrough)
	assert.Equal(t, issued.ContentID, passthrough.ContentID)
	assert.Equal(t, content.KindResponseVideo, passthrough.Kind)
	assert.Equal(t, "prompt-1", passthrough.PromptID)
	assert.Equal(t, "sharer-1", passthrough.SharerID)

	settings := env.pipeline.Issuer.settings
	assert.Equal(t, settings.PlaybackPolicy, req.PlaybackPolicy)
	assert.Equal(t, settings.CaptionLanguages, req.CaptionLanguages)
	assert.Equal(t, int(time.Hour.Seconds()), req.TimeoutSeconds)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.pipeline.Metrics.UploadSessions.WithLabelValues(string(content.KindResponseVideo), "issued")))
}

func TestIssuer_ReplacesTopicSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := IssueRequest{CallerID: "sharer-1", TopicID: "topic-1"}

	first, err := env.pipeline.Issuer.Issue(ctx, req)
	require.NoError(t, err)

	// The first upload got as far as an asset
	firstRef := content.Ref{Kind: content.KindTopicSummaryVideo, ID: first.ContentID}
	moved, err := env.store.MarkAssetCreated(ctx, firstRef, "asset-old")
	require.NoError(t, err)
	require.True(t, moved)

	second, err := env.pipeline.Issuer.Issue(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ContentID, second.ContentID)

	assert.Equal(t, 1, env.store.SlotCount(content.KindTopicSummaryVideo))
	_, err = env.store.GetSlot(ctx, firstRef)
	assert.ErrorIs(t, err, content.ErrNotFound)
	assert.Equal(t, []string{"asset-old"}, env.videos.deletedAssets())

	_, err = env.sessions.Lookup(ctx, first.UploadID)
	assert.ErrorIs(t, err, content.ErrNotFound)

	// Another sharer's summary of the same topic is untouched
	_, err = env.pipeline.Issuer.Issue(ctx, IssueRequest{CallerID: "sharer-2", TopicID: "topic-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, env.store.SlotCount(content.KindTopicSummaryVideo))
}

func TestIssuer_ReplacementSurvivesAssetDeleteFailure(t *testing.T) {
	env := newTestEnv(t)
	env.videos.deleteErr = errors.New("video service down")
	ctx := context.Background()

	first, err := env.pipeline.Issuer.Issue(ctx, IssueRequest{CallerID: "sharer-1", TopicID: "topic-1"})
	require.NoError(t, err)
	_, err = env.store.MarkAssetCreated(ctx, content.Ref{Kind: content.KindTopicSummaryVideo, ID: first.ContentID}, "asset-old")
	require.NoError(t, err)

	_, err = env.pipeline.Issuer.Issue(ctx, IssueRequest{CallerID: "sharer-1", TopicID: "topic-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, env.store.SlotCount(content.KindTopicSummaryVideo))
}

func TestIssuer_CompensatesUploadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.videos.uploadErr = &content.ExternalServiceError{Op: "create upload", StatusCode: 503, Err: errors.New("unavailable")}

	issued, err := env.pipeline.Issuer.Issue(context.Background(), IssueRequest{CallerID: "sharer-1", PromptID: "prompt-1"})
	assert.Nil(t, issued)

	var external *content.ExternalServiceError
	require.ErrorAs(t, err, &external)
	assert.Equal(t, 503, external.StatusCode)
	assert.Zero(t, env.store.SlotCount(content.KindResponseVideo))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.pipeline.Metrics.UploadSessions.WithLabelValues(string(content.KindResponseVideo), "failed")))
}

func TestIssuer_CompensatesCancelledRequest(t *testing.T) {
	env := newTestEnv(t)
	env.videos.uploadErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.pipeline.Issuer.Issue(ctx, IssueRequest{CallerID: "sharer-1", TopicID: "topic-1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, env.store.SlotCount(content.KindTopicSummaryVideo))
}

func TestIssuer_Conflict(t *testing.T) {
	env := newTestEnv(t, func(deps *Dependencies) {
		deps.Store = conflictStore{contentstore.NewInMemoryStore()}
	})

	_, err := env.pipeline.Issuer.Issue(context.Background(), IssueRequest{CallerID: "sharer-1", TopicID: "topic-1"})
	assert.ErrorIs(t, err, content.ErrConflict)
	assert.Empty(t, env.videos.uploadRequests())
}
