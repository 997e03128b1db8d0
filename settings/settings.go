// Package settings persists user preferences as JSON under ~/.sotto.
// Unknown keys in the file are ignored and missing keys fall back to the
// defaults, so old config files survive upgrades.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sotto/overlay"
)

// Settings is the full persisted preference set.
type Settings struct {
	UseLLM           bool    `json:"use_llm"`
	UseClipboard     bool    `json:"use_clipboard"` // clipboard-only, no keystroke paste
	TonePreference   string  `json:"tone_preference"`
	Language         string  `json:"language"`
	UseAudioFeedback bool    `json:"use_audio_feedback"`
	MaxRecordingTime float64 `json:"max_recording_time"` // seconds, 0 = unlimited

	WhisperAPIURL string `json:"whisper_api_url"`
	OllamaAPIURL  string `json:"ollama_api_url"`
	LLMModel      string `json:"llm_model"`

	LLMTemperature         float64 `json:"llm_temperature"`
	LLMSimilarityThreshold float64 `json:"llm_similarity_threshold"`
	LLMValidationEnabled   bool    `json:"llm_validation_enabled"`

	OverlayEnabled         bool    `json:"overlay_enabled"`
	OverlayPosition        string  `json:"overlay_position"`
	OverlayOpacity         float64 `json:"overlay_opacity"`
	OverlayShowTimer       bool    `json:"overlay_show_timer"`
	OverlayShowTextPreview bool    `json:"overlay_show_text_preview"`
	OverlayAutoHideDelay   float64 `json:"overlay_auto_hide_delay"` // seconds, 0 disables
	OverlayFontSize        int     `json:"overlay_font_size"`
}

// Defaults returns the stock configuration.
func Defaults() Settings {
	return Settings{
		UseLLM:           true,
		UseClipboard:     false,
		TonePreference:   "auto",
		Language:         "en",
		UseAudioFeedback: true,
		MaxRecordingTime: 120,

		WhisperAPIURL: "http://127.0.0.1:8080/inference",
		OllamaAPIURL:  "http://localhost:11434/api/generate",
		LLMModel:      "llama3.2",

		LLMTemperature:         0.0,
		LLMSimilarityThreshold: 0.65,
		LLMValidationEnabled:   true,

		OverlayEnabled:         true,
		OverlayPosition:        string(overlay.BottomRight),
		OverlayOpacity:         0.95,
		OverlayShowTimer:       true,
		OverlayShowTextPreview: true,
		OverlayAutoHideDelay:   3.0,
		OverlayFontSize:        14,
	}
}

// Overlay converts the persisted overlay keys into a controller config.
// Invalid positions fall back to bottom-right.
func (s Settings) Overlay() overlay.Config {
	pos := overlay.Position(s.OverlayPosition)
	if !pos.Valid() {
		pos = overlay.BottomRight
	}
	return overlay.Config{
		Enabled:         s.OverlayEnabled,
		Position:        pos,
		Opacity:         s.OverlayOpacity,
		ShowTimer:       s.OverlayShowTimer,
		ShowTextPreview: s.OverlayShowTextPreview,
		AutoHideDelay:   time.Duration(s.OverlayAutoHideDelay * float64(time.Second)),
		FontSize:        s.OverlayFontSize,
	}
}

// DefaultPath returns ~/.sotto/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".sotto", "config.json"), nil
}

// Store is a thread-safe settings holder with save-on-update semantics.
type Store struct {
	mu   sync.RWMutex
	path string
	cur  Settings
}

// Open loads settings from path, layering the file over the defaults.
// A missing file is not an error; the defaults are used as-is.
func Open(path string) (*Store, error) {
	s := &Store{path: path, cur: Defaults()}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s.cur); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return s, nil
}

// Get returns a snapshot of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update applies fn to the settings and persists the result.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cur)
	return s.saveLocked()
}

// Save persists the current settings.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(s.cur, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
