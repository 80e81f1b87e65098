package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mysqlDuplicateEntry is the server error number for a unique key violation
const mysqlDuplicateEntry = 1062

// Store handles content persistence in MySQL using GORM
type Store struct {
	db *gorm.DB
}

// NewStore creates a new content store with a MySQL connection
func NewStore(databaseURL string) (*Store, error) {
	db, err := gorm.Open(gormmysql.Open(databaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return NewStoreFromDB(db), nil
}

// NewStoreFromDB wraps an existing GORM connection
func NewStoreFromDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetDB returns the underlying connection so other stores can share it
func (s *Store) GetDB() *gorm.DB {
	return s.db
}

// Ping checks that the database answers
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates the content tables
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&ResponseVideoModel{},
		&TopicSummaryVideoModel{},
		&ResponseVideoTranscriptModel{},
		&TopicSummaryVideoTranscriptModel{},
		&PromptResponseModel{},
	)
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	return sqlDB.Close()
}

/** ---- SLOTS ---- */

// CreateSlot inserts a new slot. A second topic summary for the same (topic, sharer) yields ErrConflict
func (s *Store) CreateSlot(ctx context.Context, slot *content.Slot) error {
	if slot.ID == "" {
		return fmt.Errorf("slot id cannot be empty")
	}

	var model any
	switch slot.Kind {
	case content.KindResponseVideo:
		model = &ResponseVideoModel{
			ID:        slot.ID,
			PromptID:  slot.PromptID,
			SharerID:  slot.SharerID,
			Lifecycle: lifecycleFromSlot(slot),
		}
	case content.KindTopicSummaryVideo:
		model = &TopicSummaryVideoModel{
			ID:        slot.ID,
			TopicID:   slot.TopicID,
			SharerID:  slot.SharerID,
			Lifecycle: lifecycleFromSlot(slot),
		}
	default:
		return fmt.Errorf("unknown content kind %q", slot.Kind)
	}

	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s for topic %s and sharer %s", content.ErrConflict, slot.Kind, slot.TopicID, slot.SharerID)
		}
		return fmt.Errorf("failed to create %s: %w", slot.Kind, err)
	}

	return nil
}

// GetSlot retrieves a slot by its tagged key
func (s *Store) GetSlot(ctx context.Context, ref content.Ref) (*content.Slot, error) {
	return s.findOne(ctx, ref.Kind, "id = ?", ref.ID)
}

// FindSlotByUploadID retrieves the slot an upload handle was issued for
func (s *Store) FindSlotByUploadID(ctx context.Context, kind content.Kind, uploadID string) (*content.Slot, error) {
	if uploadID == "" {
		return nil, content.ErrNotFound
	}
	return s.findOne(ctx, kind, "upload_id = ?", uploadID)
}

// FindSlotByAssetID retrieves the slot that owns an external asset
func (s *Store) FindSlotByAssetID(ctx context.Context, kind content.Kind, assetID string) (*content.Slot, error) {
	if assetID == "" {
		return nil, content.ErrNotFound
	}
	return s.findOne(ctx, kind, "asset_id = ?", assetID)
}

// ListTopicSummaryVideos returns every stored summary for a (topic, sharer) pair
func (s *Store) ListTopicSummaryVideos(ctx context.Context, topicID, sharerID string) ([]*content.Slot, error) {
	var models []TopicSummaryVideoModel
	result := s.db.WithContext(ctx).
		Where("topic_id = ? AND sharer_id = ?", topicID, sharerID).
		Order("created_at ASC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list topic summary videos: %w", result.Error)
	}

	slots := make([]*content.Slot, 0, len(models))
	for i := range models {
		slots = append(slots, models[i].toSlot())
	}
	return slots, nil
}

// ListStaleSlots returns slots of both kinds sitting in status since before olderThan
func (s *Store) ListStaleSlots(ctx context.Context, status content.Status, olderThan time.Time, limit int) ([]*content.Slot, error) {
	var responses []ResponseVideoModel
	if err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(status), olderThan).
		Order("updated_at ASC").Limit(limit).
		Find(&responses).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale response videos: %w", err)
	}

	var summaries []TopicSummaryVideoModel
	if err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(status), olderThan).
		Order("updated_at ASC").Limit(limit).
		Find(&summaries).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale topic summary videos: %w", err)
	}

	slots := make([]*content.Slot, 0, len(responses)+len(summaries))
	for i := range responses {
		slots = append(slots, responses[i].toSlot())
	}
	for i := range summaries {
		slots = append(slots, summaries[i].toSlot())
	}
	return slots, nil
}

// SetUploadID records the upload handle issued for a slot
func (s *Store) SetUploadID(ctx context.Context, ref content.Ref, uploadID string) error {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Table(table).
		Where("id = ?", ref.ID).
		Updates(map[string]any{"upload_id": uploadID, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to set upload id: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return content.ErrNotFound
	}
	return nil
}

// DeleteSlot removes a slot and its transcripts
func (s *Store) DeleteSlot(ctx context.Context, ref content.Ref) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch ref.Kind {
		case content.KindResponseVideo:
			if err := tx.Where("video_id = ?", ref.ID).Delete(&ResponseVideoTranscriptModel{}).Error; err != nil {
				return fmt.Errorf("failed to delete transcripts: %w", err)
			}
			if err := tx.Where("id = ?", ref.ID).Delete(&ResponseVideoModel{}).Error; err != nil {
				return fmt.Errorf("failed to delete response video: %w", err)
			}
		case content.KindTopicSummaryVideo:
			if err := tx.Where("video_id = ?", ref.ID).Delete(&TopicSummaryVideoTranscriptModel{}).Error; err != nil {
				return fmt.Errorf("failed to delete transcripts: %w", err)
			}
			if err := tx.Where("id = ?", ref.ID).Delete(&TopicSummaryVideoModel{}).Error; err != nil {
				return fmt.Errorf("failed to delete topic summary video: %w", err)
			}
		default:
			return fmt.Errorf("unknown content kind %q", ref.Kind)
		}
		return nil
	})
}

/** ---- TRANSITIONS ---- */

// MarkAssetCreated moves a WAITING slot to ASSET_CREATED and records the asset id
func (s *Store) MarkAssetCreated(ctx context.Context, ref content.Ref, assetID string) (bool, error) {
	return s.transition(ctx, ref, []content.Status{content.StatusWaiting}, map[string]any{
		"status":   string(content.StatusAssetCreated),
		"asset_id": assetID,
	})
}

// MarkReady moves a WAITING or ASSET_CREATED slot to READY. An asset id already on the row is kept
func (s *Store) MarkReady(ctx context.Context, ref content.Ref, fields content.ReadyFields) (bool, error) {
	return s.transition(ctx, ref, []content.Status{content.StatusWaiting, content.StatusAssetCreated}, map[string]any{
		"status":         string(content.StatusReady),
		"asset_id":       gorm.Expr("COALESCE(asset_id, ?)", optional(fields.AssetID)),
		"playback_id":    optional(fields.PlaybackID),
		"duration":       fields.Duration,
		"max_resolution": fields.Resolution.MaxResolution,
		"aspect_ratio":   fields.Resolution.AspectRatio,
		"width":          fields.Resolution.Width,
		"height":         fields.Resolution.Height,
	})
}

// MarkErrored moves a slot in one of the from statuses to ERRORED
func (s *Store) MarkErrored(ctx context.Context, ref content.Ref, from []content.Status, errorText string) (bool, error) {
	return s.transition(ctx, ref, from, map[string]any{
		"status":     string(content.StatusErrored),
		"error_text": errorText,
	})
}

// SetDownloadAvailable flags that a downloadable rendition exists. It does not touch the status
func (s *Store) SetDownloadAvailable(ctx context.Context, ref content.Ref) error {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Table(table).
		Where("id = ?", ref.ID).
		Updates(map[string]any{"download_available": true, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to set download availability: %w", result.Error)
	}
	return nil
}

// transition is a compare-and-set update: the row only changes if its status is in from
func (s *Store) transition(ctx context.Context, ref content.Ref, from []content.Status, updates map[string]any) (bool, error) {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return false, err
	}

	statuses := make([]string, len(from))
	for i, status := range from {
		statuses[i] = string(status)
	}
	updates["updated_at"] = time.Now()

	result := s.db.WithContext(ctx).Table(table).
		Where("id = ? AND status IN ?", ref.ID, statuses).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update %s %s: %w", ref.Kind, ref.ID, result.Error)
	}

	return result.RowsAffected > 0, nil
}

/** ---- DERIVED RECORDS ---- */

// HasTranscript reports whether a transcript for the track is already stored
func (s *Store) HasTranscript(ctx context.Context, ref content.Ref, trackID string) (bool, error) {
	var model any
	switch ref.Kind {
	case content.KindResponseVideo:
		model = &ResponseVideoTranscriptModel{}
	case content.KindTopicSummaryVideo:
		model = &TopicSummaryVideoTranscriptModel{}
	default:
		return false, fmt.Errorf("unknown content kind %q", ref.Kind)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(model).
		Where("video_id = ? AND track_id = ?", ref.ID, trackID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check transcript: %w", err)
	}
	return count > 0, nil
}

// CreateTranscript stores a transcript unless one exists for the same (video, track).
// Returns whether a row was inserted
func (s *Store) CreateTranscript(ctx context.Context, transcript *content.Transcript) (bool, error) {
	ref := content.Ref{Kind: transcript.Kind, ID: transcript.VideoID}
	exists, err := s.HasTranscript(ctx, ref, transcript.TrackID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	var model any
	switch transcript.Kind {
	case content.KindResponseVideo:
		model = &ResponseVideoTranscriptModel{
			ID: transcript.ID, VideoID: transcript.VideoID, TrackID: transcript.TrackID,
			Text: transcript.Text, Source: transcript.Source, Type: transcript.Type, Language: transcript.Language,
		}
	case content.KindTopicSummaryVideo:
		model = &TopicSummaryVideoTranscriptModel{
			ID: transcript.ID, VideoID: transcript.VideoID, TrackID: transcript.TrackID,
			Text: transcript.Text, Source: transcript.Source, Type: transcript.Type, Language: transcript.Language,
		}
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		// A concurrent delivery won the insert
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create transcript: %w", err)
	}
	return true, nil
}

// CreatePromptResponse stores the derived prompt response unless one exists for (prompt, video).
// Returns whether a row was inserted
func (s *Store) CreatePromptResponse(ctx context.Context, response *content.PromptResponse) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&PromptResponseModel{}).
		Where("prompt_id = ? AND video_id = ?", response.PromptID, response.VideoID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check prompt response: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	model := &PromptResponseModel{
		ID:       response.ID,
		PromptID: response.PromptID,
		SharerID: response.SharerID,
		VideoID:  response.VideoID,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create prompt response: %w", err)
	}
	return true, nil
}

/** ---- HELPERS ---- */

// findOne loads the first row of the kind's table matching the query
func (s *Store) findOne(ctx context.Context, kind content.Kind, query string, args ...any) (*content.Slot, error) {
	switch kind {
	case content.KindResponseVideo:
		var model ResponseVideoModel
		if err := s.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
			return nil, lookupError(kind, err)
		}
		return model.toSlot(), nil
	case content.KindTopicSummaryVideo:
		var model TopicSummaryVideoModel
		if err := s.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
			return nil, lookupError(kind, err)
		}
		return model.toSlot(), nil
	default:
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}
}

func lookupError(kind content.Kind, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return content.ErrNotFound
	}
	return fmt.Errorf("failed to get %s: %w", kind, err)
}

func tableFor(kind content.Kind) (string, error) {
	switch kind {
	case content.KindResponseVideo:
		return ResponseVideoModel{}.TableName(), nil
	case content.KindTopicSummaryVideo:
		return TopicSummaryVideoModel{}.TableName(), nil
	default:
		return "", fmt.Errorf("unknown content kind %q", kind)
	}
}

// isDuplicateKey detects unique key violations whether or not GORM translated the driver error
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
