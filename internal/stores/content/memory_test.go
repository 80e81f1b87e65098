package content

import (
	"context"
	"testing"
	"time"

	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_CreateSlot(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	t.Run("response videos may repeat per prompt", func(t *testing.T) {
		require.NoError(t, store.CreateSlot(ctx, content.NewResponseVideo("rv-1", "prompt-1", "sharer-1")))
		require.NoError(t, store.CreateSlot(ctx, content.NewResponseVideo("rv-2", "prompt-1", "sharer-1")))
		assert.Equal(t, 2, store.SlotCount(content.KindResponseVideo))
	})

	t.Run("one topic summary per topic and sharer", func(t *testing.T) {
		require.NoError(t, store.CreateSlot(ctx, content.NewTopicSummaryVideo("ts-1", "topic-1", "sharer-1")))

		err := store.CreateSlot(ctx, content.NewTopicSummaryVideo("ts-2", "topic-1", "sharer-1"))
		assert.ErrorIs(t, err, content.ErrConflict)

		require.NoError(t, store.CreateSlot(ctx, content.NewTopicSummaryVideo("ts-3", "topic-1", "sharer-2")))
	})

	t.Run("rejects empty id and unknown kind", func(t *testing.T) {
		assert.Error(t, store.CreateSlot(ctx, &content.Slot{Kind: content.KindResponseVideo}))
		assert.Error(t, store.CreateSlot(ctx, &content.Slot{ID: "x", Kind: "other"}))
	})
}

func TestInMemoryStore_Transitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		start      content.Status
		apply      func(store *InMemoryStore, ref content.Ref) (bool, error)
		wantMoved  bool
		wantStatus content.Status
	}{
		{
			name:  "asset created from waiting",
			start: content.StatusWaiting,
			apply: func(store *InMemoryStore, ref content.Ref) (bool, error) {
				return store.MarkAssetCreated(ctx, ref, "asset-1")
			},
			wantMoved:  true,
			wantStatus: content.StatusAssetCreated,
		},
		{
			name:  "asset created does not regress ready",
			start: content.StatusReady,
			apply: func(store *InMemoryStore, ref content.Ref) (bool, error) {
				return store.MarkAssetCreated(ctx, ref, "asset-1")
			},
			wantMoved:  false,
			wantStatus: content.StatusReady,
		},
		{
			name:  "ready from waiting",
			start: content.StatusWaiting,
			apply: func(store *InMemoryStore, ref content.Ref) (bool, error) {
				return store.MarkReady(ctx, ref, content.ReadyFields{AssetID: "asset-1", PlaybackID: "play-1"})
			},
			wantMoved:  true,
			wantStatus: content.StatusReady,
		},
		{
			name:  "ready from asset created",
			start: content.StatusAssetCreated,
			apply: func(store *InMemoryStore, ref content.Ref) (bool, error) {
				return store.MarkReady(ctx, ref, content.ReadyFields{PlaybackID: "play-1"})
			},
			wantMoved:  true,
			wantStatus: content.StatusReady,
		},
		{
			name:  "ready does not leave errored",
			start: content.StatusErrored,
			apply: func(store *InMemoryStore, ref content.Ref) (bool, error) {
				return store.MarkReady(ctx, ref, content.ReadyFields{PlaybackID: "play-1"})
			},
			wantMoved:  false,
			wantStatus: content.StatusErrored,
		},
		{
			name:  "errored does not leave ready",
			start: content.StatusReady,
			apply: func(store *InMemoryStore, ref content.Ref) (bool, error) {
				return store.MarkErrored(ctx, ref, []content.Status{content.StatusWaiting, content.StatusAssetCreated}, "boom")
			},
			wantMoved:  false,
			wantStatus: content.StatusReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewInMemoryStore()
			slot := content.NewResponseVideo("rv-1", "prompt-1", "sharer-1")
			slot.Status = tt.start
			require.NoError(t, store.CreateSlot(ctx, slot))

			moved, err := tt.apply(store, slot.Ref())
			require.NoError(t, err)
			assert.Equal(t, tt.wantMoved, moved)

			stored, err := store.GetSlot(ctx, slot.Ref())
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
		})
	}
}

func TestInMemoryStore_MarkReadyKeepsAssetID(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	slot := content.NewTopicSummaryVideo("ts-1", "topic-1", "sharer-1")
	require.NoError(t, store.CreateSlot(ctx, slot))

	moved, err := store.MarkAssetCreated(ctx, slot.Ref(), "asset-original")
	require.NoError(t, err)
	require.True(t, moved)

	moved, err = store.MarkReady(ctx, slot.Ref(), content.ReadyFields{
		AssetID:    "asset-other",
		PlaybackID: "play-1",
		Duration:   12.5,
		Resolution: content.Resolution{MaxResolution: "HD", AspectRatio: "16:9"},
	})
	require.NoError(t, err)
	require.True(t, moved)

	stored, err := store.GetSlot(ctx, slot.Ref())
	require.NoError(t, err)
	assert.Equal(t, "asset-original", stored.AssetID)
	assert.Equal(t, "play-1", stored.PlaybackID)
	assert.Equal(t, 12.5, stored.Duration)
	assert.Equal(t, "16:9", stored.Resolution.AspectRatio)
}

func TestInMemoryStore_Lookups(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	rv := content.NewResponseVideo("rv-1", "prompt-1", "sharer-1")
	require.NoError(t, store.CreateSlot(ctx, rv))
	require.NoError(t, store.SetUploadID(ctx, rv.Ref(), "upload-1"))
	_, err := store.MarkAssetCreated(ctx, rv.Ref(), "asset-1")
	require.NoError(t, err)

	found, err := store.FindSlotByUploadID(ctx, content.KindResponseVideo, "upload-1")
	require.NoError(t, err)
	assert.Equal(t, "rv-1", found.ID)

	found, err = store.FindSlotByAssetID(ctx, content.KindResponseVideo, "asset-1")
	require.NoError(t, err)
	assert.Equal(t, "rv-1", found.ID)

	_, err = store.FindSlotByAssetID(ctx, content.KindTopicSummaryVideo, "asset-1")
	assert.ErrorIs(t, err, content.ErrNotFound)

	_, err = store.FindSlotByAssetID(ctx, content.KindResponseVideo, "")
	assert.ErrorIs(t, err, content.ErrNotFound)

	assert.ErrorIs(t, store.SetUploadID(ctx, content.Ref{Kind: content.KindResponseVideo, ID: "missing"}, "u"), content.ErrNotFound)
}

func TestInMemoryStore_ListStaleSlots(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	old := time.Now().Add(-time.Hour)

	stale := content.NewResponseVideo("rv-stale", "prompt-1", "sharer-1")
	stale.Status = content.StatusAssetCreated
	stale.CreatedAt, stale.UpdatedAt = old, old
	require.NoError(t, store.CreateSlot(ctx, stale))

	fresh := content.NewTopicSummaryVideo("ts-fresh", "topic-1", "sharer-1")
	fresh.Status = content.StatusAssetCreated
	require.NoError(t, store.CreateSlot(ctx, fresh))

	slots, err := store.ListStaleSlots(ctx, content.StatusAssetCreated, time.Now().Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "rv-stale", slots[0].ID)
}

func TestInMemoryStore_DerivedRecords(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	rv := content.NewResponseVideo("rv-1", "prompt-1", "sharer-1")
	require.NoError(t, store.CreateSlot(ctx, rv))

	transcript := &content.Transcript{ID: "t-1", Kind: content.KindResponseVideo, VideoID: "rv-1", TrackID: "track-1", Text: "hello"}
	inserted, err := store.CreateTranscript(ctx, transcript)
	require.NoError(t, err)
	assert.True(t, inserted)

	transcript.ID = "t-2"
	inserted, err = store.CreateTranscript(ctx, transcript)
	require.NoError(t, err)
	assert.False(t, inserted)

	has, err := store.HasTranscript(ctx, rv.Ref(), "track-1")
	require.NoError(t, err)
	assert.True(t, has)
	assert.Len(t, store.Transcripts(rv.Ref()), 1)

	response := &content.PromptResponse{ID: "pr-1", PromptID: "prompt-1", SharerID: "sharer-1", VideoID: "rv-1"}
	inserted, err = store.CreatePromptResponse(ctx, response)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.CreatePromptResponse(ctx, &content.PromptResponse{ID: "pr-2", PromptID: "prompt-1", SharerID: "sharer-1", VideoID: "rv-1"})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Len(t, store.PromptResponses("rv-1"), 1)

	// Deleting the slot cascades to its transcripts
	require.NoError(t, store.DeleteSlot(ctx, rv.Ref()))
	assert.Empty(t, store.Transcripts(rv.Ref()))
}
