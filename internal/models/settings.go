package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Theme values.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"
)

// Recording quality presets.
const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// Settings is the flat user configuration record.
//
// APIKey is persisted in plaintext; surfaces that leave the process should
// use Masked.
type Settings struct {
	Theme            string `json:"theme"`
	AutoSave         bool   `json:"autoSave"`
	Notifications    bool   `json:"notifications"`
	RecordingQuality string `json:"recordingQuality"`
	AutoTranscribe   bool   `json:"autoTranscribe"`
	Language         string `json:"language"`
	APIKey           string `json:"apiKey"`
	BackupEnabled    bool   `json:"backupEnabled"`
	HapticFeedback   bool   `json:"hapticFeedback"`
	SpeechToText     bool   `json:"speechToText"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Theme:            ThemeLight,
		AutoSave:         true,
		Notifications:    true,
		RecordingQuality: QualityHigh,
		AutoTranscribe:   true,
		Language:         "en",
		APIKey:           "",
		BackupEnabled:    false,
		HapticFeedback:   true,
		SpeechToText:     true,
	}
}

// Validate checks enumerated options against their documented domains.
func (s *Settings) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Theme, validation.Required, validation.In(ThemeLight, ThemeDark, ThemeAuto)),
		validation.Field(&s.RecordingQuality, validation.Required, validation.In(QualityHigh, QualityMedium, QualityLow)),
		validation.Field(&s.Language, validation.Required, validation.In("en", "es", "fr", "de")),
	)
}

// Masked returns a copy with the API key obscured.
func (s Settings) Masked() Settings {
	if s.APIKey == "" {
		return s
	}
	k := s.APIKey
	if len(k) > 4 {
		s.APIKey = "****" + k[len(k)-4:]
	} else {
		s.APIKey = "****"
	}
	return s
}
