package overlay

import (
	"strings"
	"time"
)

// State is the overlay's visual state. Exactly one state is active at any
// instant; every state may be entered from every other state.
type State int

const (
	StateHidden State = iota
	StateRecording
	StateTranscribing
	StateProcessing
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StateProcessing:
		return "processing"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Transcript is the payload shown in the Complete state. It is retained
// after auto-hide so it can be redisplayed on demand.
type Transcript struct {
	Text      string
	WordCount int
	CharCount int
}

// NewTranscript derives word and character counts from text.
func NewTranscript(text string) Transcript {
	return Transcript{
		Text:      text,
		WordCount: len(strings.Fields(text)),
		CharCount: len(text),
	}
}

// Position anchors the overlay panel on screen.
type Position string

const (
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	BottomLeft  Position = "bottom-left"
	BottomRight Position = "bottom-right"
	Center      Position = "center"
)

// Valid reports whether p is a recognised anchor.
func (p Position) Valid() bool {
	switch p {
	case TopLeft, TopRight, BottomLeft, BottomRight, Center:
		return true
	}
	return false
}

// Config is the overlay configuration snapshot supplied at construction.
// Enabled, Position, ShowTimer and ShowTextPreview may be updated live
// through the controller's setters.
type Config struct {
	Enabled         bool
	Position        Position
	Opacity         float64
	ShowTimer       bool
	ShowTextPreview bool
	AutoHideDelay   time.Duration // 0 disables auto-hide
	FontSize        int
	TickInterval    time.Duration // elapsed-timer period; defaults to 100ms
}

// DefaultConfig mirrors the stock settings.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Position:        BottomRight,
		Opacity:         0.95,
		ShowTimer:       true,
		ShowTextPreview: true,
		AutoHideDelay:   3 * time.Second,
		FontSize:        14,
		TickInterval:    100 * time.Millisecond,
	}
}

const (
	previewMaxLen = 150
	errorMaxLen   = 50
	ellipsis      = "..."
)

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + ellipsis
}

func formatElapsed(d time.Duration) string {
	secs := int(d.Seconds())
	return pad2(secs/60) + ":" + pad2(secs%60)
}

func pad2(n int) string {
	if n < 0 {
		n = 0
	}
	if n > 99 {
		n = 99
	}
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
