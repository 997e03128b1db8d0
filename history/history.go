// Package history keeps the most recent transcripts on disk so they can be
// re-copied from the tray after the clipboard moves on.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// maxEntries caps the on-disk history; the oldest entries are dropped first.
const maxEntries = 50

const previewLen = 50

// Entry is one finished dictation.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	AppName   string    `json:"app_name,omitempty"`
	WordCount int       `json:"word_count"`
	CharCount int       `json:"char_count"`
}

// Stats summarizes the stored history.
type Stats struct {
	Entries    int
	TotalWords int
	TotalChars int
	Oldest     time.Time
	Newest     time.Time
}

// DefaultPath returns ~/.sotto/history.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".sotto", "history.json"), nil
}

// Store holds entries newest-first and persists after every mutation.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries []Entry
}

// Open loads history from path. A missing or unreadable file starts empty;
// history is a convenience and never blocks startup.
func Open(path string) *Store {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		s.entries = nil
	}
	if len(s.entries) > maxEntries {
		s.entries = s.entries[:maxEntries]
	}
	return s
}

// Add prepends a new transcript, deriving the counts from text.
func (s *Store) Add(text, appName string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	e := Entry{
		Timestamp: time.Now(),
		Text:      text,
		AppName:   appName,
		WordCount: len(strings.Fields(text)),
		CharCount: len(text),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]Entry{e}, s.entries...)
	if len(s.entries) > maxEntries {
		s.entries = s.entries[:maxEntries]
	}
	return s.saveLocked()
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, n)
	copy(out, s.entries[:n])
	return out
}

// Last returns the newest entry.
func (s *Store) Last() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[0], true
}

// Search returns entries whose text contains query, case-insensitive,
// newest first.
func (s *Store) Search(query string) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if strings.Contains(strings.ToLower(e.Text), q) {
			out = append(out, e)
		}
	}
	return out
}

// Clear drops all entries and persists the empty list.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return s.saveLocked()
}

// Stats summarizes the stored entries.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Entries: len(s.entries)}
	for _, e := range s.entries {
		st.TotalWords += e.WordCount
		st.TotalChars += e.CharCount
	}
	if len(s.entries) > 0 {
		st.Newest = s.entries[0].Timestamp
		st.Oldest = s.entries[len(s.entries)-1].Timestamp
	}
	return st
}

// ExportText renders the history as plain text, newest first.
func (s *Store) ExportText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var b strings.Builder
	for _, e := range s.entries {
		fmt.Fprintf(&b, "[%s] %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Text)
	}
	return b.String()
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// FormatPreview renders an entry as a short menu label, e.g. "3m ago: hello".
func FormatPreview(e Entry) string {
	text := e.Text
	if len(text) > previewLen {
		text = text[:previewLen] + "..."
	}
	return relativeTime(time.Since(e.Timestamp)) + ": " + text
}

func relativeTime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
