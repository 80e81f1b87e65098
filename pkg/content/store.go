package content

import (
	"context"
	"time"
)

// Store defines persistence for both content tables, their transcripts and prompt responses.
//
// Lookups return ErrNotFound when the row is absent. The transition methods are
// compare-and-set on the stored status: they report whether this call moved the
// row, and never move a row out of a terminal status
type Store interface {
	// Slots
	CreateSlot(ctx context.Context, slot *Slot) error
	GetSlot(ctx context.Context, ref Ref) (*Slot, error)
	FindSlotByUploadID(ctx context.Context, kind Kind, uploadID string) (*Slot, error)
	FindSlotByAssetID(ctx context.Context, kind Kind, assetID string) (*Slot, error)
	ListTopicSummaryVideos(ctx context.Context, topicID, sharerID string) ([]*Slot, error)
	ListStaleSlots(ctx context.Context, status Status, olderThan time.Time, limit int) ([]*Slot, error)
	SetUploadID(ctx context.Context, ref Ref, uploadID string) error
	DeleteSlot(ctx context.Context, ref Ref) error

	// Lifecycle transitions
	MarkAssetCreated(ctx context.Context, ref Ref, assetID string) (bool, error)
	MarkReady(ctx context.Context, ref Ref, fields ReadyFields) (bool, error)
	MarkErrored(ctx context.Context, ref Ref, from []Status, errorText string) (bool, error)
	SetDownloadAvailable(ctx context.Context, ref Ref) error

	// Derived records
	HasTranscript(ctx context.Context, ref Ref, trackID string) (bool, error)
	CreateTranscript(ctx context.Context, transcript *Transcript) (bool, error)
	CreatePromptResponse(ctx context.Context, response *PromptResponse) (bool, error)
}

// UploadSessionStore keeps the short-lived mapping of upload handles to slots.
// Sessions expire on their own; Consume removes one early once its asset exists
type UploadSessionStore interface {
	Save(ctx context.Context, session *UploadSession, ttl time.Duration) error
	Lookup(ctx context.Context, uploadID string) (*UploadSession, error)
	Consume(ctx context.Context, uploadID string) error
}

// AccessResolver decides which sharer a caller is acting for.
// An empty actingFor means the caller acts for themselves
type AccessResolver interface {
	EffectiveSharer(ctx context.Context, callerID, actingFor string) (string, error)
}
