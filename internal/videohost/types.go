package videohost

import (
	"strings"

	"github.com/ethanbaker/storyvideo/pkg/content"
)

// Asset statuses reported by the video service
const (
	AssetStatusPreparing = "preparing"
	AssetStatusReady     = "ready"
	AssetStatusErrored   = "errored"
)

// Track text sources that carry machine generated captions
const (
	TextSourceGeneratedVOD  = "generated_vod"
	TextSourceGeneratedLive = "generated_live"
)

// PlaybackID is a public handle used to stream an asset
type PlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

// Track is one media or text track of an asset
type Track struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"` // "video", "audio" or "text"
	Status       string  `json:"status,omitempty"`
	MaxWidth     int     `json:"max_width,omitempty"`
	MaxHeight    int     `json:"max_height,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	TextType     string  `json:"text_type,omitempty"`
	TextSource   string  `json:"text_source,omitempty"`
	LanguageCode string  `json:"language_code,omitempty"`
	Name         string  `json:"name,omitempty"`
}

// Generated reports whether the track is a machine generated text track
func (t Track) Generated() bool {
	return t.Type == "text" && strings.HasPrefix(t.TextSource, "generated_")
}

// AssetErrors lists why an asset could not be processed
type AssetErrors struct {
	Type     string   `json:"type"`
	Messages []string `json:"messages"`
}

// Text flattens the errors into the text stored on a slot
func (e *AssetErrors) Text() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Messages)+1)
	if e.Type != "" {
		parts = append(parts, e.Type)
	}
	parts = append(parts, e.Messages...)
	return strings.Join(parts, ": ")
}

// Asset is the video service's view of an uploaded video
type Asset struct {
	ID                  string       `json:"id"`
	Status              string       `json:"status"`
	Passthrough         string       `json:"passthrough,omitempty"`
	UploadID            string       `json:"upload_id,omitempty"`
	PlaybackIDs         []PlaybackID `json:"playback_ids,omitempty"`
	Duration            float64      `json:"duration,omitempty"`
	AspectRatio         string       `json:"aspect_ratio,omitempty"`
	ResolutionTier      string       `json:"resolution_tier,omitempty"`
	MaxStoredResolution string       `json:"max_stored_resolution,omitempty"`
	Tracks              []Track      `json:"tracks,omitempty"`
	Errors              *AssetErrors `json:"errors,omitempty"`
}

// ReadyFields extracts the values stored on a slot when the asset is ready
func (a *Asset) ReadyFields() content.ReadyFields {
	fields := content.ReadyFields{
		AssetID:  a.ID,
		Duration: a.Duration,
		Resolution: content.Resolution{
			MaxResolution: a.ResolutionTier,
			AspectRatio:   a.AspectRatio,
		},
	}
	if fields.Resolution.MaxResolution == "" {
		fields.Resolution.MaxResolution = a.MaxStoredResolution
	}
	if len(a.PlaybackIDs) > 0 {
		fields.PlaybackID = a.PlaybackIDs[0].ID
	}
	for _, track := range a.Tracks {
		if track.Type == "video" {
			fields.Resolution.Width = track.MaxWidth
			fields.Resolution.Height = track.MaxHeight
			break
		}
	}
	return fields
}

// UploadRequest describes a direct upload to create
type UploadRequest struct {
	Passthrough      string
	CorsOrigin       string
	PlaybackPolicy   string
	VideoQuality     string
	StaticRenditions []string
	CaptionLanguages []string
	TimeoutSeconds   int
	Test             bool
}

// Upload is an issued direct upload
type Upload struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Status  string `json:"status"`
	AssetID string `json:"asset_id,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

/** Wire formats */

type staticRendition struct {
	Resolution string `json:"resolution"`
}

type generatedSubtitle struct {
	LanguageCode string `json:"language_code"`
	Name         string `json:"name"`
}

type assetInput struct {
	GeneratedSubtitles []generatedSubtitle `json:"generated_subtitles,omitempty"`
}

type newAssetSettings struct {
	PlaybackPolicy   []string          `json:"playback_policy"`
	Passthrough      string            `json:"passthrough,omitempty"`
	VideoQuality     string            `json:"video_quality,omitempty"`
	StaticRenditions []staticRendition `json:"static_renditions,omitempty"`
	Input            []assetInput      `json:"input,omitempty"`
}

type createUploadBody struct {
	CorsOrigin       string           `json:"cors_origin"`
	NewAssetSettings newAssetSettings `json:"new_asset_settings"`
	Timeout          int              `json:"timeout,omitempty"`
	Test             bool             `json:"test,omitempty"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func newCreateUploadBody(req UploadRequest) createUploadBody {
	settings := newAssetSettings{
		PlaybackPolicy: []string{req.PlaybackPolicy},
		Passthrough:    req.Passthrough,
		VideoQuality:   req.VideoQuality,
	}
	for _, resolution := range req.StaticRenditions {
		settings.StaticRenditions = append(settings.StaticRenditions, staticRendition{Resolution: resolution})
	}
	if len(req.CaptionLanguages) > 0 {
		input := assetInput{}
		for _, language := range req.CaptionLanguages {
			input.GeneratedSubtitles = append(input.GeneratedSubtitles, generatedSubtitle{
				LanguageCode: language,
				Name:         strings.ToUpper(language) + " (generated)",
			})
		}
		settings.Input = []assetInput{input}
	}

	return createUploadBody{
		CorsOrigin:       req.CorsOrigin,
		NewAssetSettings: settings,
		Timeout:          req.TimeoutSeconds,
		Test:             req.Test,
	}
}
