package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethanbaker/storyvideo/pkg/content"
)

// probeOrder is the order the two content tables are searched
var probeOrder = []content.Kind{content.KindResponseVideo, content.KindTopicSummaryVideo}

// Resolver finds which of the two content tables owns an identifier
type Resolver struct {
	store content.Store
}

// NewResolver creates a resolver over store
func NewResolver(store content.Store) *Resolver {
	return &Resolver{store: store}
}

// ByContentID resolves a slot id of unknown kind
func (r *Resolver) ByContentID(ctx context.Context, id string) (*content.Slot, error) {
	return r.probe(ctx, "content id", id, func(kind content.Kind) (*content.Slot, error) {
		return r.store.GetSlot(ctx, content.Ref{Kind: kind, ID: id})
	})
}

// ByUploadID resolves the slot an upload handle was issued for
func (r *Resolver) ByUploadID(ctx context.Context, uploadID string) (*content.Slot, error) {
	return r.probe(ctx, "upload id", uploadID, func(kind content.Kind) (*content.Slot, error) {
		return r.store.FindSlotByUploadID(ctx, kind, uploadID)
	})
}

// ByAssetID resolves the slot owning an external asset
func (r *Resolver) ByAssetID(ctx context.Context, assetID string) (*content.Slot, error) {
	return r.probe(ctx, "asset id", assetID, func(kind content.Kind) (*content.Slot, error) {
		return r.store.FindSlotByAssetID(ctx, kind, assetID)
	})
}

// probe searches both tables. A key found in both is ambiguous and resolves to nothing
func (r *Resolver) probe(ctx context.Context, label, key string, lookup func(kind content.Kind) (*content.Slot, error)) (*content.Slot, error) {
	if key == "" {
		return nil, content.ErrNotFound
	}

	var found *content.Slot
	for _, kind := range probeOrder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		slot, err := lookup(kind)
		if errors.Is(err, content.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s %s: %w", label, key, err)
		}

		if found != nil {
			return nil, fmt.Errorf("%w: %s %s", content.ErrAmbiguousOwner, label, key)
		}
		found = slot
	}

	if found == nil {
		return nil, content.ErrNotFound
	}
	return found, nil
}
