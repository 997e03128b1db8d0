package overlay

import (
	"testing"
	"time"
)

func TestOriginAnchors(t *testing.T) {
	screen := Rect{X: 0, Y: 0, W: 1920, H: 1080}
	size := Size{W: 200, H: 80}

	cases := []struct {
		anchor Position
		want   Point
	}{
		{TopLeft, Point{40, 40}},
		{TopRight, Point{1920 - 200 - 40, 40}},
		{BottomLeft, Point{40, 1080 - 80 - 40 - 100}},
		{BottomRight, Point{1920 - 200 - 40, 1080 - 80 - 40 - 100}},
		{Center, Point{(1920 - 200) / 2, (1080 - 80) / 2}},
		{Position("bogus"), Point{1920 - 200 - 40, 1080 - 80 - 40 - 100}},
	}
	for _, tc := range cases {
		if got := Origin(tc.anchor, screen, size); got != tc.want {
			t.Errorf("Origin(%q) = %+v, want %+v", tc.anchor, got, tc.want)
		}
	}
}

func TestOriginOffsetScreen(t *testing.T) {
	// Secondary monitor to the right of the primary.
	screen := Rect{X: 1920, Y: 0, W: 1280, H: 720}
	size := Size{W: 100, H: 50}

	got := Origin(TopLeft, screen, size)
	want := Point{1960, 40}
	if got != want {
		t.Errorf("Origin on offset screen = %+v, want %+v", got, want)
	}
}

func TestRepositionAfterEveryRender(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	cfg.AutoHideDelay = 0
	c := New(fake, cfg)
	defer c.Destroy()

	c.ShowTranscribing()
	drain(c)
	c.ShowComplete("text")
	drain(c)

	moves := fake.Moves()
	contents := fake.Contents()
	if len(moves) != len(contents) {
		t.Errorf("%d moves for %d renders, want one move per render", len(moves), len(contents))
	}
	want := Origin(BottomRight, fake.FixedScreen, fake.FixedSize)
	for i, p := range moves {
		if p != want {
			t.Errorf("move %d = %+v, want %+v", i, p, want)
		}
	}
}

func TestSetPositionRepositionsVisibleSurface(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	cfg.AutoHideDelay = 0
	c := New(fake, cfg)
	defer c.Destroy()

	c.ShowComplete("text")
	drain(c)
	c.SetPosition(TopLeft)
	drain(c)

	moves := fake.Moves()
	if len(moves) == 0 {
		t.Fatalf("no moves recorded")
	}
	want := Origin(TopLeft, fake.FixedScreen, fake.FixedSize)
	if moves[len(moves)-1] != want {
		t.Errorf("last move = %+v, want %+v", moves[len(moves)-1], want)
	}

	c.SetPosition(Position("bogus"))
	drain(c)
	if got := moves[len(moves)-1]; got != want {
		t.Errorf("invalid anchor moved the surface to %+v", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{7 * time.Second, "00:07"},
		{65 * time.Second, "01:05"},
		{10 * time.Minute, "10:00"},
	}
	for _, tc := range cases {
		if got := formatElapsed(tc.d); got != tc.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestNewTranscriptCounts(t *testing.T) {
	tr := NewTranscript("  hello   there world ")
	if tr.WordCount != 3 {
		t.Errorf("WordCount = %d, want 3", tr.WordCount)
	}
	if tr.CharCount != len("  hello   there world ") {
		t.Errorf("CharCount = %d, want len of raw text", tr.CharCount)
	}
}
