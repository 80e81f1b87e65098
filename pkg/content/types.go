// Package content holds the video slot model shared by the stores, the ingest pipeline and the API.
package content

import (
	"time"
)

// Kind tags which of the two content tables a slot lives in
type Kind string

const (
	KindResponseVideo     Kind = "response_video"      // An answer to a prompt, bound to a promptId
	KindTopicSummaryVideo Kind = "topic_summary_video" // A sharer's summary of a topic, one per (topic, sharer)
)

// Valid reports whether k is one of the two modeled kinds
func (k Kind) Valid() bool {
	return k == KindResponseVideo || k == KindTopicSummaryVideo
}

// Status is the lifecycle state of a slot
type Status string

const (
	StatusWaiting      Status = "WAITING"
	StatusAssetCreated Status = "ASSET_CREATED"
	StatusReady        Status = "READY"
	StatusErrored      Status = "ERRORED"
)

// Terminal reports whether no further lifecycle transition may leave s
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusErrored
}

// Resolution is the stored rendition metadata of a ready asset
type Resolution struct {
	MaxResolution string `json:"max_resolution,omitempty"` // e.g. "HD", "1080p"
	AspectRatio   string `json:"aspect_ratio,omitempty"`   // e.g. "16:9"
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
}

// Slot is a placeholder tracking one video's external lifecycle. Exactly one of
// PromptID (response videos) or TopicID (topic summary videos) is set, matching Kind
type Slot struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	SharerID string `json:"sharer_id"`
	PromptID string `json:"prompt_id,omitempty"`
	TopicID  string `json:"topic_id,omitempty"`

	Status            Status     `json:"status"`
	UploadID          string     `json:"upload_id,omitempty"`
	AssetID           string     `json:"asset_id,omitempty"`
	PlaybackID        string     `json:"playback_id,omitempty"`
	Duration          float64    `json:"duration,omitempty"`
	Resolution        Resolution `json:"resolution"`
	ErrorText         string     `json:"error_text,omitempty"`
	DownloadAvailable bool       `json:"download_available"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref is the tagged key of a slot: which table, which row
type Ref struct {
	Kind Kind
	ID   string
}

// Ref returns the tagged key of the slot
func (s *Slot) Ref() Ref {
	return Ref{Kind: s.Kind, ID: s.ID}
}

// NewResponseVideo builds a WAITING response video slot
func NewResponseVideo(id, promptID, sharerID string) *Slot {
	return &Slot{
		ID:       id,
		Kind:     KindResponseVideo,
		SharerID: sharerID,
		PromptID: promptID,
		Status:   StatusWaiting,
	}
}

// NewTopicSummaryVideo builds a WAITING topic summary video slot
func NewTopicSummaryVideo(id, topicID, sharerID string) *Slot {
	return &Slot{
		ID:       id,
		Kind:     KindTopicSummaryVideo,
		SharerID: sharerID,
		TopicID:  topicID,
		Status:   StatusWaiting,
	}
}

// ReadyFields are the values recorded when an asset becomes playable
type ReadyFields struct {
	AssetID    string
	PlaybackID string
	Duration   float64
	Resolution Resolution
}

// Transcript is caption text generated for one track of a slot's asset
type Transcript struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	VideoID  string `json:"video_id"`
	TrackID  string `json:"track_id"`
	Text     string `json:"text"`
	Source   string `json:"source"`   // e.g. "generated_vod"
	Type     string `json:"type"`     // e.g. "subtitles"
	Language string `json:"language"` // BCP 47 code

	CreatedAt time.Time `json:"created_at"`
}

// PromptResponse is the derived record marking that a prompt has a ready answer video
type PromptResponse struct {
	ID       string `json:"id"`
	PromptID string `json:"prompt_id"`
	SharerID string `json:"sharer_id"`
	VideoID  string `json:"video_id"`

	CreatedAt time.Time `json:"created_at"`
}

// UploadSession maps an issued upload handle back to the slot it was issued for
type UploadSession struct {
	UploadID  string    `json:"upload_id"`
	ContentID string    `json:"content_id"`
	Kind      Kind      `json:"kind"`
	SharerID  string    `json:"sharer_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Ref returns the tagged key of the session's slot
func (u *UploadSession) Ref() Ref {
	return Ref{Kind: u.Kind, ID: u.ContentID}
}
