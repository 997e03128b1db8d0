package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "history.json"))
}

func TestAddNewestFirst(t *testing.T) {
	s := newStore(t)
	for _, text := range []string{"first", "second", "third"} {
		if err := s.Add(text, "terminal"); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	recent := s.Recent(10)
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3", len(recent))
	}
	if recent[0].Text != "third" || recent[2].Text != "first" {
		t.Errorf("order = %q, %q, %q, want newest first", recent[0].Text, recent[1].Text, recent[2].Text)
	}

	last, ok := s.Last()
	if !ok || last.Text != "third" {
		t.Errorf("Last = %+v ok=%v", last, ok)
	}
	if last.WordCount != 1 || last.CharCount != 5 {
		t.Errorf("counts = %d words %d chars", last.WordCount, last.CharCount)
	}
}

func TestAddIgnoresEmptyText(t *testing.T) {
	s := newStore(t)
	if err := s.Add("   ", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := s.Stats().Entries; got != 0 {
		t.Errorf("entries = %d after blank add", got)
	}
}

func TestCapAtFifty(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 60; i++ {
		if err := s.Add("entry "+strings.Repeat("x", i%5+1), ""); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if got := s.Stats().Entries; got != 50 {
		t.Errorf("entries = %d, want capped at 50", got)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := Open(path)
	if err := s.Add("remember me", "editor"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reloaded := Open(path)
	last, ok := reloaded.Last()
	if !ok || last.Text != "remember me" || last.AppName != "editor" {
		t.Errorf("reloaded entry = %+v ok=%v", last, ok)
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	s := Open(path)
	if got := s.Stats().Entries; got != 0 {
		t.Errorf("entries = %d from corrupt file, want 0", got)
	}
}

func TestSearch(t *testing.T) {
	s := newStore(t)
	s.Add("meeting notes for tuesday", "")
	s.Add("grocery list", "")
	s.Add("more MEETING follow-ups", "")

	hits := s.Search("meeting")
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].Text != "more MEETING follow-ups" {
		t.Errorf("search order not newest first: %q", hits[0].Text)
	}
	if got := s.Search("   "); got != nil {
		t.Errorf("blank query returned %d hits", len(got))
	}
}

func TestClear(t *testing.T) {
	s := newStore(t)
	s.Add("something", "")
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := s.Last(); ok {
		t.Errorf("entry survived Clear")
	}
}

func TestStatsAndExport(t *testing.T) {
	s := newStore(t)
	s.Add("one two", "")
	s.Add("three four five", "")

	st := s.Stats()
	if st.Entries != 2 || st.TotalWords != 5 {
		t.Errorf("stats = %+v", st)
	}
	if st.Newest.Before(st.Oldest) {
		t.Errorf("newest %v before oldest %v", st.Newest, st.Oldest)
	}

	export := s.ExportText()
	if !strings.Contains(export, "three four five") || !strings.Contains(export, "one two") {
		t.Errorf("export missing entries:\n%s", export)
	}
	if strings.Index(export, "three four five") > strings.Index(export, "one two") {
		t.Errorf("export not newest first")
	}
}

func TestFormatPreview(t *testing.T) {
	e := Entry{Timestamp: time.Now().Add(-3 * time.Minute), Text: "short text"}
	if got := FormatPreview(e); got != "3m ago: short text" {
		t.Errorf("preview = %q", got)
	}

	e = Entry{Timestamp: time.Now(), Text: strings.Repeat("a", 80)}
	want := "just now: " + strings.Repeat("a", 50) + "..."
	if got := FormatPreview(e); got != want {
		t.Errorf("preview = %q, want %q", got, want)
	}

	e = Entry{Timestamp: time.Now().Add(-26 * time.Hour), Text: "old"}
	if got := FormatPreview(e); got != "1d ago: old" {
		t.Errorf("preview = %q", got)
	}
}
