package utils

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// UploadSettings are the options sent to the video service with every new upload
type UploadSettings struct {
	CorsOrigin       string        `yaml:"cors_origin"`       // Origin allowed to PUT the file bytes
	PlaybackPolicy   string        `yaml:"playback_policy"`   // "public" or "signed"
	VideoQuality     string        `yaml:"video_quality"`     // Encoding tier requested from the service
	StaticRenditions []string      `yaml:"static_renditions"` // Downloadable renditions, e.g. "highest", "audio-only"
	CaptionLanguages []string      `yaml:"caption_languages"` // Languages for generated captions
	Timeout          time.Duration `yaml:"timeout"`           // How long the direct upload URL stays valid
	Test             bool          `yaml:"test"`              // Create test assets (watermarked, short-lived)
}

// DefaultUploadSettings returns the settings used when no settings file is configured
func DefaultUploadSettings() UploadSettings {
	return UploadSettings{
		CorsOrigin:       "*",
		PlaybackPolicy:   "public",
		VideoQuality:     "basic",
		StaticRenditions: []string{"highest"},
		CaptionLanguages: []string{"en"},
		Timeout:          time.Hour,
	}
}

// LoadUploadSettings reads upload settings from a YAML file, filling unset fields with defaults.
// An empty path returns the defaults
func LoadUploadSettings(path string) (UploadSettings, error) {
	settings := DefaultUploadSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read upload settings file: %w", err)
	}

	var loaded UploadSettings
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return settings, fmt.Errorf("failed to parse upload settings file: %w", err)
	}

	if loaded.CorsOrigin != "" {
		settings.CorsOrigin = loaded.CorsOrigin
	}
	if loaded.PlaybackPolicy != "" {
		settings.PlaybackPolicy = loaded.PlaybackPolicy
	}
	if loaded.VideoQuality != "" {
		settings.VideoQuality = loaded.VideoQuality
	}
	if loaded.StaticRenditions != nil {
		settings.StaticRenditions = loaded.StaticRenditions
	}
	if loaded.CaptionLanguages != nil {
		settings.CaptionLanguages = loaded.CaptionLanguages
	}
	if loaded.Timeout > 0 {
		settings.Timeout = loaded.Timeout
	}
	settings.Test = loaded.Test

	return settings, nil
}
