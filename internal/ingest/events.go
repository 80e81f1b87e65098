package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethanbaker/storyvideo/internal/videohost"
	"github.com/ethanbaker/storyvideo/pkg/content"
)

// Internal event types the reconciler understands
const (
	EventAssetCreated   = "asset_created"
	EventAssetReady     = "asset.ready"
	EventAssetErrored   = "asset.errored"
	EventUploadFailed   = "upload.failed"
	EventTrackReady     = "track.ready"
	EventDownloadsReady = "downloads.ready"
	EventIgnored        = "ignored"
)

// eventTypes maps the video service's event names to internal ones
var eventTypes = map[string]string{
	"video.upload.asset_created":          EventAssetCreated,
	"video.asset.created":                 EventAssetCreated,
	"video.asset.ready":                   EventAssetReady,
	"video.asset.errored":                 EventAssetErrored,
	"video.upload.errored":                EventUploadFailed,
	"video.upload.cancelled":              EventUploadFailed,
	"video.asset.track.ready":             EventTrackReady,
	"video.asset.static_renditions.ready": EventDownloadsReady,
	"video.asset.static_rendition.ready":  EventDownloadsReady,
	"video.asset.master.ready":            EventDownloadsReady,
}

// InternalType maps an external event name, returning EventIgnored for unknown names
func InternalType(external string) string {
	if internal, ok := eventTypes[external]; ok {
		return internal
	}
	return EventIgnored
}

// Passthrough is the metadata attached to an upload and echoed back on its events
type Passthrough struct {
	ContentID string       `json:"content_id,omitempty"`
	Kind      content.Kind `json:"kind,omitempty"`
	TopicID   string       `json:"topic_id,omitempty"`
	PromptID  string       `json:"prompt_id,omitempty"`
	SharerID  string       `json:"sharer_id,omitempty"`
}

// Encode renders the passthrough string sent with an upload
func (p Passthrough) Encode() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

// ParsePassthrough decodes a passthrough string. Anything malformed yields an empty value
func ParsePassthrough(raw string) Passthrough {
	var p Passthrough
	if strings.TrimSpace(raw) == "" {
		return p
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Passthrough{}
	}
	if p.Kind != "" && !p.Kind.Valid() {
		p.Kind = ""
	}
	return p
}

// UploadError is the failure reported on upload events
type UploadError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AssetSettings are the settings an upload creates its asset with
type AssetSettings struct {
	Passthrough string `json:"passthrough,omitempty"`
}

// EventData is the union of the payload shapes carried by asset, upload and track events
type EventData struct {
	videohost.Asset

	AssetID          string         `json:"asset_id,omitempty"`
	NewAssetSettings *AssetSettings `json:"new_asset_settings,omitempty"`
	Error            *UploadError   `json:"error,omitempty"`

	// Track events
	Type         string `json:"type,omitempty"`
	TextType     string `json:"text_type,omitempty"`
	TextSource   string `json:"text_source,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Name         string `json:"name,omitempty"`
}

// Event is a parsed webhook delivery
type Event struct {
	ID           string
	ExternalType string
	Type         string
	Data         EventData
	Passthrough  Passthrough
}

type envelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEvent decodes a webhook body. Only a malformed envelope is an error
func ParseEvent(body []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, content.Validationf("malformed event envelope: %v", err)
	}
	if env.Type == "" {
		return nil, content.Validationf("event type is missing")
	}

	event := &Event{
		ID:           env.ID,
		ExternalType: env.Type,
		Type:         InternalType(env.Type),
	}

	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &event.Data); err != nil {
			return nil, content.Validationf("malformed event data: %v", err)
		}
	}

	raw := event.Data.Passthrough
	if raw == "" && event.Data.NewAssetSettings != nil {
		raw = event.Data.NewAssetSettings.Passthrough
	}
	event.Passthrough = ParsePassthrough(raw)

	return event, nil
}

func (e *Event) isUploadEvent() bool {
	return strings.HasPrefix(e.ExternalType, "video.upload.")
}

// AssetID returns the external asset the event concerns
func (e *Event) AssetID() string {
	if e.Data.AssetID != "" {
		return e.Data.AssetID
	}
	if strings.HasPrefix(e.ExternalType, "video.asset.") {
		return e.Data.ID
	}
	return ""
}

// UploadID returns the upload handle the event concerns
func (e *Event) UploadID() string {
	if e.isUploadEvent() {
		return e.Data.ID
	}
	return e.Data.UploadID
}

// Track returns the track carried by a track event
func (e *Event) Track() videohost.Track {
	return videohost.Track{
		ID:           e.Data.ID,
		Type:         e.Data.Type,
		Status:       e.Data.Status,
		TextType:     e.Data.TextType,
		TextSource:   e.Data.TextSource,
		LanguageCode: e.Data.LanguageCode,
		Name:         e.Data.Name,
	}
}

// ErrorText returns the failure description of an errored asset or upload
func (e *Event) ErrorText() string {
	if text := e.Data.Errors.Text(); text != "" {
		return text
	}
	if e.Data.Error != nil {
		if e.Data.Error.Type != "" {
			return fmt.Sprintf("%s: %s", e.Data.Error.Type, e.Data.Error.Message)
		}
		return e.Data.Error.Message
	}
	return "unknown error"
}
