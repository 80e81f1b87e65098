package content

import (
	"time"

	"github.com/ethanbaker/storyvideo/pkg/content"
)

// lifecycleColumns are shared by both content tables
type lifecycleColumns struct {
	Status            string  `gorm:"column:status;size:20;not null;index"`
	UploadID          *string `gorm:"column:upload_id;size:255;index"`
	AssetID           *string `gorm:"column:asset_id;size:255;index"`
	PlaybackID        *string `gorm:"column:playback_id;size:255"`
	Duration          float64 `gorm:"column:duration"`
	MaxResolution     string  `gorm:"column:max_resolution;size:32"`
	AspectRatio       string  `gorm:"column:aspect_ratio;size:16"`
	Width             int     `gorm:"column:width"`
	Height            int     `gorm:"column:height"`
	ErrorText         string  `gorm:"column:error_text;type:text"`
	DownloadAvailable bool    `gorm:"column:download_available;not null;default:false"`
}

// ResponseVideoModel represents the database model for videos answering a prompt
type ResponseVideoModel struct {
	ID        string    `gorm:"column:id;type:char(36);primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;index"`

	PromptID  string           `gorm:"column:prompt_id;size:64;not null;index"`
	SharerID  string           `gorm:"column:sharer_id;size:64;not null;index"`
	Lifecycle lifecycleColumns `gorm:"embedded"`
}

// TableName sets the table name for GORM
func (ResponseVideoModel) TableName() string {
	return "response_videos"
}

// TopicSummaryVideoModel represents the database model for a sharer's topic summary.
// Rows are hard deleted on replacement, so the unique key is the one-active-per-pair constraint
type TopicSummaryVideoModel struct {
	ID        string    `gorm:"column:id;type:char(36);primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;index"`

	TopicID   string           `gorm:"column:topic_id;size:64;not null;uniqueIndex:ux_topic_summary_topic_sharer,priority:1"`
	SharerID  string           `gorm:"column:sharer_id;size:64;not null;uniqueIndex:ux_topic_summary_topic_sharer,priority:2"`
	Lifecycle lifecycleColumns `gorm:"embedded"`
}

// TableName sets the table name for GORM
func (TopicSummaryVideoModel) TableName() string {
	return "topic_summary_videos"
}

// ResponseVideoTranscriptModel is a transcript of a response video track
type ResponseVideoTranscriptModel struct {
	ID        string    `gorm:"column:id;type:char(36);primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`

	VideoID  string             `gorm:"column:video_id;type:char(36);not null;uniqueIndex:ux_response_transcript_video_track,priority:1"`
	TrackID  string             `gorm:"column:track_id;size:255;not null;uniqueIndex:ux_response_transcript_video_track,priority:2"`
	Text     string             `gorm:"column:text;type:mediumtext"`
	Source   string             `gorm:"column:source;size:64"`
	Type     string             `gorm:"column:type;size:64"`
	Language string             `gorm:"column:language;size:32"`
	Video    ResponseVideoModel `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for GORM
func (ResponseVideoTranscriptModel) TableName() string {
	return "response_video_transcripts"
}

// TopicSummaryVideoTranscriptModel is a transcript of a topic summary video track
type TopicSummaryVideoTranscriptModel struct {
	ID        string    `gorm:"column:id;type:char(36);primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`

	VideoID  string                 `gorm:"column:video_id;type:char(36);not null;uniqueIndex:ux_topic_transcript_video_track,priority:1"`
	TrackID  string                 `gorm:"column:track_id;size:255;not null;uniqueIndex:ux_topic_transcript_video_track,priority:2"`
	Text     string                 `gorm:"column:text;type:mediumtext"`
	Source   string                 `gorm:"column:source;size:64"`
	Type     string                 `gorm:"column:type;size:64"`
	Language string                 `gorm:"column:language;size:32"`
	Video    TopicSummaryVideoModel `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for GORM
func (TopicSummaryVideoTranscriptModel) TableName() string {
	return "topic_summary_video_transcripts"
}

// PromptResponseModel is the derived record created once a response video is ready
type PromptResponseModel struct {
	ID        string    `gorm:"column:id;type:char(36);primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`

	PromptID string `gorm:"column:prompt_id;size:64;not null;uniqueIndex:ux_prompt_response_prompt_video,priority:1"`
	VideoID  string `gorm:"column:video_id;type:char(36);not null;uniqueIndex:ux_prompt_response_prompt_video,priority:2"`
	SharerID string `gorm:"column:sharer_id;size:64;not null;index"`
}

// TableName sets the table name for GORM
func (PromptResponseModel) TableName() string {
	return "prompt_responses"
}

/** Conversions */

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func lifecycleFromSlot(slot *content.Slot) lifecycleColumns {
	return lifecycleColumns{
		Status:            string(slot.Status),
		UploadID:          optional(slot.UploadID),
		AssetID:           optional(slot.AssetID),
		PlaybackID:        optional(slot.PlaybackID),
		Duration:          slot.Duration,
		MaxResolution:     slot.Resolution.MaxResolution,
		AspectRatio:       slot.Resolution.AspectRatio,
		Width:             slot.Resolution.Width,
		Height:            slot.Resolution.Height,
		ErrorText:         slot.ErrorText,
		DownloadAvailable: slot.DownloadAvailable,
	}
}

func (l lifecycleColumns) applyTo(slot *content.Slot) {
	slot.Status = content.Status(l.Status)
	slot.UploadID = deref(l.UploadID)
	slot.AssetID = deref(l.AssetID)
	slot.PlaybackID = deref(l.PlaybackID)
	slot.Duration = l.Duration
	slot.Resolution = content.Resolution{
		MaxResolution: l.MaxResolution,
		AspectRatio:   l.AspectRatio,
		Width:         l.Width,
		Height:        l.Height,
	}
	slot.ErrorText = l.ErrorText
	slot.DownloadAvailable = l.DownloadAvailable
}

func (m *ResponseVideoModel) toSlot() *content.Slot {
	slot := &content.Slot{
		ID:        m.ID,
		Kind:      content.KindResponseVideo,
		SharerID:  m.SharerID,
		PromptID:  m.PromptID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	m.Lifecycle.applyTo(slot)
	return slot
}

func (m *TopicSummaryVideoModel) toSlot() *content.Slot {
	slot := &content.Slot{
		ID:        m.ID,
		Kind:      content.KindTopicSummaryVideo,
		SharerID:  m.SharerID,
		TopicID:   m.TopicID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	m.Lifecycle.applyTo(slot)
	return slot
}
