package content

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethanbaker/storyvideo/pkg/content"
)

// InMemoryStore provides an in-memory implementation of content.Store for testing.
// It enforces the same unique keys and compare-and-set transitions as the MySQL store
type InMemoryStore struct {
	slots           map[content.Ref]*content.Slot
	transcripts     map[transcriptKey]*content.Transcript
	promptResponses map[promptResponseKey]*content.PromptResponse
	mutex           sync.RWMutex
}

type transcriptKey struct {
	ref     content.Ref
	trackID string
}

type promptResponseKey struct {
	promptID string
	videoID  string
}

// NewInMemoryStore creates a new in-memory content store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		slots:           make(map[content.Ref]*content.Slot),
		transcripts:     make(map[transcriptKey]*content.Transcript),
		promptResponses: make(map[promptResponseKey]*content.PromptResponse),
	}
}

// CreateSlot stores a copy of the slot
func (s *InMemoryStore) CreateSlot(_ context.Context, slot *content.Slot) error {
	if slot.ID == "" {
		return fmt.Errorf("slot id cannot be empty")
	}
	if !slot.Kind.Valid() {
		return fmt.Errorf("unknown content kind %q", slot.Kind)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.slots[slot.Ref()]; exists {
		return fmt.Errorf("%w: slot %s", content.ErrConflict, slot.ID)
	}
	if slot.Kind == content.KindTopicSummaryVideo {
		for _, existing := range s.slots {
			if existing.Kind == slot.Kind && existing.TopicID == slot.TopicID && existing.SharerID == slot.SharerID {
				return fmt.Errorf("%w: %s for topic %s and sharer %s", content.ErrConflict, slot.Kind, slot.TopicID, slot.SharerID)
			}
		}
	}

	now := time.Now()
	stored := *slot
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	s.slots[slot.Ref()] = &stored
	return nil
}

// GetSlot retrieves a copy of a slot
func (s *InMemoryStore) GetSlot(_ context.Context, ref content.Ref) (*content.Slot, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	slot, exists := s.slots[ref]
	if !exists {
		return nil, content.ErrNotFound
	}
	copied := *slot
	return &copied, nil
}

// FindSlotByUploadID retrieves the slot an upload handle was issued for
func (s *InMemoryStore) FindSlotByUploadID(_ context.Context, kind content.Kind, uploadID string) (*content.Slot, error) {
	return s.find(kind, func(slot *content.Slot) bool { return uploadID != "" && slot.UploadID == uploadID })
}

// FindSlotByAssetID retrieves the slot that owns an external asset
func (s *InMemoryStore) FindSlotByAssetID(_ context.Context, kind content.Kind, assetID string) (*content.Slot, error) {
	return s.find(kind, func(slot *content.Slot) bool { return assetID != "" && slot.AssetID == assetID })
}

// ListTopicSummaryVideos returns every stored summary for a (topic, sharer) pair
func (s *InMemoryStore) ListTopicSummaryVideos(_ context.Context, topicID, sharerID string) ([]*content.Slot, error) {
	return s.list(func(slot *content.Slot) bool {
		return slot.Kind == content.KindTopicSummaryVideo && slot.TopicID == topicID && slot.SharerID == sharerID
	}, 0), nil
}

// ListStaleSlots returns slots sitting in status since before olderThan
func (s *InMemoryStore) ListStaleSlots(_ context.Context, status content.Status, olderThan time.Time, limit int) ([]*content.Slot, error) {
	return s.list(func(slot *content.Slot) bool {
		return slot.Status == status && slot.UpdatedAt.Before(olderThan)
	}, limit), nil
}

// SetUploadID records the upload handle issued for a slot
func (s *InMemoryStore) SetUploadID(_ context.Context, ref content.Ref, uploadID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	slot, exists := s.slots[ref]
	if !exists {
		return content.ErrNotFound
	}
	slot.UploadID = uploadID
	slot.UpdatedAt = time.Now()
	return nil
}

// DeleteSlot removes a slot and its transcripts
func (s *InMemoryStore) DeleteSlot(_ context.Context, ref content.Ref) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.slots, ref)
	for key := range s.transcripts {
		if key.ref == ref {
			delete(s.transcripts, key)
		}
	}
	return nil
}

// MarkAssetCreated moves a WAITING slot to ASSET_CREATED
func (s *InMemoryStore) MarkAssetCreated(_ context.Context, ref content.Ref, assetID string) (bool, error) {
	return s.transition(ref, []content.Status{content.StatusWaiting}, func(slot *content.Slot) {
		slot.Status = content.StatusAssetCreated
		slot.AssetID = assetID
	})
}

// MarkReady moves a WAITING or ASSET_CREATED slot to READY
func (s *InMemoryStore) MarkReady(_ context.Context, ref content.Ref, fields content.ReadyFields) (bool, error) {
	return s.transition(ref, []content.Status{content.StatusWaiting, content.StatusAssetCreated}, func(slot *content.Slot) {
		slot.Status = content.StatusReady
		if slot.AssetID == "" {
			slot.AssetID = fields.AssetID
		}
		slot.PlaybackID = fields.PlaybackID
		slot.Duration = fields.Duration
		slot.Resolution = fields.Resolution
	})
}

// MarkErrored moves a slot in one of the from statuses to ERRORED
func (s *InMemoryStore) MarkErrored(_ context.Context, ref content.Ref, from []content.Status, errorText string) (bool, error) {
	return s.transition(ref, from, func(slot *content.Slot) {
		slot.Status = content.StatusErrored
		slot.ErrorText = errorText
	})
}

// SetDownloadAvailable flags that a downloadable rendition exists
func (s *InMemoryStore) SetDownloadAvailable(_ context.Context, ref content.Ref) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if slot, exists := s.slots[ref]; exists {
		slot.DownloadAvailable = true
		slot.UpdatedAt = time.Now()
	}
	return nil
}

// HasTranscript reports whether a transcript for the track is stored
func (s *InMemoryStore) HasTranscript(_ context.Context, ref content.Ref, trackID string) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, exists := s.transcripts[transcriptKey{ref: ref, trackID: trackID}]
	return exists, nil
}

// CreateTranscript stores a transcript unless one exists for the same (video, track)
func (s *InMemoryStore) CreateTranscript(_ context.Context, transcript *content.Transcript) (bool, error) {
	ref := content.Ref{Kind: transcript.Kind, ID: transcript.VideoID}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.slots[ref]; !exists {
		return false, fmt.Errorf("failed to create transcript: %w", content.ErrNotFound)
	}

	key := transcriptKey{ref: ref, trackID: transcript.TrackID}
	if _, exists := s.transcripts[key]; exists {
		return false, nil
	}

	stored := *transcript
	stored.CreatedAt = time.Now()
	s.transcripts[key] = &stored
	return true, nil
}

// CreatePromptResponse stores a prompt response unless one exists for (prompt, video)
func (s *InMemoryStore) CreatePromptResponse(_ context.Context, response *content.PromptResponse) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := promptResponseKey{promptID: response.PromptID, videoID: response.VideoID}
	if _, exists := s.promptResponses[key]; exists {
		return false, nil
	}

	stored := *response
	stored.CreatedAt = time.Now()
	s.promptResponses[key] = &stored
	return true, nil
}

// Transcripts returns the stored transcripts of a slot, ordered by track
func (s *InMemoryStore) Transcripts(ref content.Ref) []*content.Transcript {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	transcripts := make([]*content.Transcript, 0)
	for key, transcript := range s.transcripts {
		if key.ref == ref {
			copied := *transcript
			transcripts = append(transcripts, &copied)
		}
	}
	sort.Slice(transcripts, func(i, j int) bool { return transcripts[i].TrackID < transcripts[j].TrackID })
	return transcripts
}

// PromptResponses returns the stored prompt responses for a video
func (s *InMemoryStore) PromptResponses(videoID string) []*content.PromptResponse {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	responses := make([]*content.PromptResponse, 0)
	for key, response := range s.promptResponses {
		if key.videoID == videoID {
			copied := *response
			responses = append(responses, &copied)
		}
	}
	return responses
}

// SlotCount returns the number of stored slots of a kind
func (s *InMemoryStore) SlotCount(kind content.Kind) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	count := 0
	for ref := range s.slots {
		if ref.Kind == kind {
			count++
		}
	}
	return count
}

func (s *InMemoryStore) transition(ref content.Ref, from []content.Status, apply func(slot *content.Slot)) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	slot, exists := s.slots[ref]
	if !exists {
		return false, nil
	}

	for _, status := range from {
		if slot.Status == status {
			apply(slot)
			slot.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) find(kind content.Kind, match func(slot *content.Slot) bool) (*content.Slot, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for ref, slot := range s.slots {
		if ref.Kind == kind && match(slot) {
			copied := *slot
			return &copied, nil
		}
	}
	return nil, content.ErrNotFound
}

func (s *InMemoryStore) list(match func(slot *content.Slot) bool, limit int) []*content.Slot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	slots := make([]*content.Slot, 0)
	for _, slot := range s.slots {
		if match(slot) {
			copied := *slot
			slots = append(slots, &copied)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].CreatedAt.Before(slots[j].CreatedAt) })

	if limit > 0 && len(slots) > limit {
		slots = slots[:limit]
	}
	return slots
}

// Ensure InMemoryStore implements content.Store
var _ content.Store = (*InMemoryStore)(nil)

// Ensure Store implements content.Store
var _ content.Store = (*Store)(nil)
