package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/ethanbaker/storyvideo/internal/events"
	"github.com/ethanbaker/storyvideo/internal/videohost"
	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staleSlot(id, assetID string, updatedAt time.Time) *content.Slot {
	slot := content.NewResponseVideo(id, "prompt-"+id, "sharer-1")
	slot.Status, slot.AssetID = content.StatusAssetCreated, assetID
	slot.CreatedAt, slot.UpdatedAt = updatedAt, updatedAt
	return slot
}

func TestSweeper_Sweep(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	old := now.Add(-time.Hour)

	env.seed(t, staleSlot("rv-ready", "asset-ready", old))
	env.seed(t, staleSlot("rv-errored", "asset-errored", old))
	env.seed(t, staleSlot("rv-preparing", "asset-preparing", old))
	env.seed(t, staleSlot("rv-missing", "asset-missing", old))
	env.seed(t, staleSlot("rv-fresh", "asset-fresh", now))

	env.videos.assets["asset-ready"] = &videohost.Asset{
		ID:          "asset-ready",
		Status:      videohost.AssetStatusReady,
		Duration:    12,
		PlaybackIDs: []videohost.PlaybackID{{ID: "play-ready", Policy: "public"}},
	}
	env.videos.assets["asset-errored"] = &videohost.Asset{
		ID:     "asset-errored",
		Status: videohost.AssetStatusErrored,
		Errors: &videohost.AssetErrors{Type: "invalid_input", Messages: []string{"no video track"}},
	}
	env.videos.assets["asset-preparing"] = &videohost.Asset{ID: "asset-preparing", Status: videohost.AssetStatusPreparing}
	env.videos.assets["asset-fresh"] = &videohost.Asset{ID: "asset-fresh", Status: videohost.AssetStatusReady}

	result, err := env.pipeline.Sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Checked: 4, Ready: 1, Errored: 1, Unchanged: 1, Failed: 1}, result)

	ready := env.slot(t, content.Ref{Kind: content.KindResponseVideo, ID: "rv-ready"})
	assert.Equal(t, content.StatusReady, ready.Status)
	assert.Equal(t, "play-ready", ready.PlaybackID)
	assert.Len(t, env.store.PromptResponses("rv-ready"), 1)

	errored := env.slot(t, content.Ref{Kind: content.KindResponseVideo, ID: "rv-errored"})
	assert.Equal(t, content.StatusErrored, errored.Status)
	assert.Equal(t, "invalid_input: no video track", errored.ErrorText)

	assert.Equal(t, content.StatusAssetCreated, env.slot(t, content.Ref{Kind: content.KindResponseVideo, ID: "rv-preparing"}).Status)
	assert.Equal(t, content.StatusAssetCreated, env.slot(t, content.Ref{Kind: content.KindResponseVideo, ID: "rv-fresh"}).Status)

	assert.ElementsMatch(t, []string{events.TypeVideoReady, events.TypeVideoErrored}, env.publisher.types())
}

func TestSweeper_SkipsOverlappingRuns(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, staleSlot("rv-1", "asset-1", time.Now().Add(-time.Hour)))
	env.videos.assets["asset-1"] = &videohost.Asset{ID: "asset-1", Status: videohost.AssetStatusReady}

	env.pipeline.Sweeper.running.Lock()
	result, err := env.pipeline.Sweeper.Sweep(context.Background())
	env.pipeline.Sweeper.running.Unlock()

	require.NoError(t, err)
	assert.Zero(t, result.Checked)
	assert.Equal(t, content.StatusAssetCreated, env.slot(t, content.Ref{Kind: content.KindResponseVideo, ID: "rv-1"}).Status)
}

func TestSweeper_StartRejectsBadSchedule(t *testing.T) {
	env := newTestEnv(t)

	assert.Error(t, env.pipeline.Sweeper.Start("whenever"))

	require.NoError(t, env.pipeline.Sweeper.Start("@every 1h"))
	env.pipeline.Sweeper.Stop()
}
