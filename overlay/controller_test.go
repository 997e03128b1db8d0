package overlay

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.AutoHideDelay = 60 * time.Millisecond
	return cfg
}

// drain blocks until every previously enqueued task has run.
func drain(c *Controller) {
	done := make(chan struct{})
	c.enqueue(func() { close(done) })
	<-done
}

func TestLazySurfaceCreation(t *testing.T) {
	fake := NewFakeSurface()
	c := New(fake, testConfig())
	defer c.Destroy()

	drain(c)
	if fake.CreateCalls() != 0 {
		t.Errorf("surface created at construction, want lazy create")
	}

	c.ShowRecording()
	drain(c)
	if fake.CreateCalls() != 1 {
		t.Errorf("create calls = %d, want 1", fake.CreateCalls())
	}

	c.ShowError("boom")
	drain(c)
	if fake.CreateCalls() != 1 {
		t.Errorf("create calls after second transition = %d, want 1", fake.CreateCalls())
	}
}

func TestDisabledIsNoOp(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	cfg.Enabled = false
	c := New(fake, cfg)
	defer c.Destroy()

	c.ShowRecording()
	c.ShowComplete("hello world")
	c.ShowError("boom")
	drain(c)

	if fake.CreateCalls() != 0 {
		t.Errorf("disabled overlay allocated a surface")
	}
	if got := c.State(); got != StateHidden {
		t.Errorf("state = %v, want hidden", got)
	}
}

func TestDisableHidesVisibleSurface(t *testing.T) {
	fake := NewFakeSurface()
	c := New(fake, testConfig())
	defer c.Destroy()

	c.ShowRecording()
	drain(c)
	if !fake.Visible() {
		t.Fatalf("surface not visible after ShowRecording")
	}

	c.SetEnabled(false)
	drain(c)
	if fake.Visible() {
		t.Errorf("surface still visible after disable")
	}
	c.ShowRecording()
	drain(c)
	if got := c.State(); got != StateHidden {
		t.Errorf("state = %v after transition while disabled, want hidden", got)
	}
}

func TestStateTransitions(t *testing.T) {
	fake := NewFakeSurface()
	c := New(fake, testConfig())
	defer c.Destroy()

	c.ShowRecording()
	drain(c)
	if got := c.State(); got != StateRecording {
		t.Fatalf("state = %v, want recording", got)
	}
	if _, ok := c.StartedAt(); !ok {
		t.Errorf("startedAt not set on entering recording")
	}

	c.ShowTranscribing()
	drain(c)
	if got := c.State(); got != StateTranscribing {
		t.Fatalf("state = %v, want transcribing", got)
	}
	if _, ok := c.StartedAt(); !ok {
		t.Errorf("startedAt cleared on transcribing, want retained")
	}
	last, _ := fake.LastContent()
	if !strings.HasPrefix(last.Detail, "Recorded ") {
		t.Errorf("transcribing detail = %q, want elapsed figure", last.Detail)
	}

	c.ShowProcessing()
	drain(c)
	if got := c.State(); got != StateProcessing {
		t.Fatalf("state = %v, want processing", got)
	}

	c.ShowComplete("hello world")
	drain(c)
	if got := c.State(); got != StateComplete {
		t.Fatalf("state = %v, want complete", got)
	}

	c.Hide()
	drain(c)
	if got := c.State(); got != StateHidden {
		t.Fatalf("state = %v, want hidden", got)
	}
	if _, ok := c.StartedAt(); ok {
		t.Errorf("startedAt survives Hide, want cleared")
	}
	if fake.Visible() {
		t.Errorf("surface visible after Hide")
	}
}

func TestConcurrentTransitionsSettle(t *testing.T) {
	fake := NewFakeSurface()
	c := New(fake, testConfig())
	defer c.Destroy()

	ops := []func(){
		c.ShowRecording,
		c.ShowTranscribing,
		c.ShowProcessing,
		func() { c.ShowComplete("some text") },
		func() { c.ShowError("some error") },
		c.Hide,
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, op := range ops {
			wg.Add(1)
			go func(fn func()) {
				defer wg.Done()
				fn()
			}(op)
		}
	}
	wg.Wait()
	drain(c)

	switch c.State() {
	case StateHidden, StateRecording, StateTranscribing, StateProcessing, StateComplete, StateError:
	default:
		t.Errorf("settled in invalid state %v", c.State())
	}
}

func TestTransitionOrderPreserved(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	cfg.AutoHideDelay = 0
	c := New(fake, cfg)
	defer c.Destroy()

	c.ShowRecording()
	c.ShowTranscribing()
	c.ShowProcessing()
	c.ShowComplete("done")
	drain(c)

	want := []State{StateRecording, StateTranscribing, StateProcessing, StateComplete}
	var got []State
	for _, content := range fake.Contents() {
		got = append(got, content.State)
	}
	if len(got) < len(want) {
		t.Fatalf("rendered %d states, want at least %d", len(got), len(want))
	}
	for i, st := range want {
		if got[i] != st {
			t.Errorf("render %d = %v, want %v", i, got[i], st)
		}
	}
}

func TestElapsedTimerUpdatesAndCancels(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	c := New(fake, cfg)
	defer c.Destroy()

	c.ShowRecording()
	drain(c)
	before := len(fake.Contents())

	time.Sleep(5 * cfg.TickInterval)
	drain(c)
	after := len(fake.Contents())
	if after <= before {
		t.Fatalf("no timer renders while recording")
	}
	last, _ := fake.LastContent()
	if last.State != StateRecording || len(last.Detail) != 5 || last.Detail[2] != ':' {
		t.Errorf("timer render = %+v, want recording with mm:ss detail", last)
	}

	c.ShowComplete("done")
	drain(c)
	settled := len(fake.Contents())
	time.Sleep(5 * cfg.TickInterval)
	drain(c)
	for _, content := range fake.Contents()[settled:] {
		if content.State == StateRecording {
			t.Errorf("stale recording tick rendered after transition")
		}
	}
}

func TestPulseRunsOnlyWhileRecording(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	c := New(fake, cfg)
	defer c.Destroy()

	c.ShowRecording()
	time.Sleep(5 * cfg.TickInterval)
	drain(c)
	if fake.Pulses() == 0 {
		t.Fatalf("no pulse frames during recording")
	}

	c.Hide()
	drain(c)
	n := fake.Pulses()
	time.Sleep(5 * cfg.TickInterval)
	drain(c)
	if fake.Pulses() != n {
		t.Errorf("pulse frames after hide: %d -> %d", n, fake.Pulses())
	}
}

func TestCompleteCountsAndPreview(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	cfg.AutoHideDelay = 0
	c := New(fake, cfg)
	defer c.Destroy()

	c.ShowComplete("one two  three")
	drain(c)
	last, _ := fake.LastContent()
	if last.Detail != "3 words, 14 chars" {
		t.Errorf("detail = %q, want derived counts", last.Detail)
	}
	if !last.ShowPreview || last.Preview != "one two  three" {
		t.Errorf("preview = %q show=%v, want full text shown", last.Preview, last.ShowPreview)
	}

	long := strings.Repeat("a", 200)
	c.ShowComplete(long)
	drain(c)
	last, _ = fake.LastContent()
	if last.Preview != long[:150]+"..." {
		t.Errorf("long preview not truncated to 150+ellipsis, got %d chars", len(last.Preview))
	}

	c.ShowComplete("")
	drain(c)
	last, _ = fake.LastContent()
	if last.ShowPreview || last.Preview != "" {
		t.Errorf("empty text rendered a preview")
	}
	if last.Detail != "0 words, 0 chars" {
		t.Errorf("empty text detail = %q, want zero counts", last.Detail)
	}
}

func TestPreviewDisabled(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	cfg.ShowTextPreview = false
	cfg.AutoHideDelay = 0
	c := New(fake, cfg)
	defer c.Destroy()

	c.ShowComplete("hello world")
	drain(c)
	last, _ := fake.LastContent()
	if last.ShowPreview || last.Preview != "" {
		t.Errorf("preview rendered with ShowTextPreview off")
	}
}

func TestErrorTruncation(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	cfg.AutoHideDelay = 0
	c := New(fake, cfg)
	defer c.Destroy()

	long := strings.Repeat("x", 80)
	c.ShowError(long)
	drain(c)
	last, _ := fake.LastContent()
	if last.Detail != long[:50]+"..." {
		t.Errorf("error detail = %q, want 50 chars + ellipsis", last.Detail)
	}
}

func TestAutoHideFiresOnce(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	c := New(fake, cfg)
	defer c.Destroy()

	c.ShowComplete("first")
	drain(c)
	time.Sleep(cfg.AutoHideDelay / 2)
	c.ShowComplete("second")
	drain(c)

	// The first timer would fire about now; only the rescheduled one counts.
	time.Sleep(cfg.AutoHideDelay / 2)
	drain(c)
	if got := c.State(); got != StateComplete {
		t.Fatalf("hidden by stale auto-hide timer, state = %v", got)
	}

	time.Sleep(cfg.AutoHideDelay)
	drain(c)
	if got := c.State(); got != StateHidden {
		t.Errorf("state = %v after full delay, want hidden", got)
	}
	if fake.Visible() {
		t.Errorf("surface still visible after auto-hide")
	}
}

func TestAutoHideCancelledByNewTransition(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	c := New(fake, cfg)
	defer c.Destroy()

	c.ShowComplete("text")
	drain(c)
	c.ShowRecording()
	drain(c)

	time.Sleep(2 * cfg.AutoHideDelay)
	drain(c)
	if got := c.State(); got != StateRecording {
		t.Errorf("state = %v, want recording to survive cancelled auto-hide", got)
	}
}

func TestAutoHideDisabledByZeroDelay(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	cfg.AutoHideDelay = 0
	c := New(fake, cfg)
	defer c.Destroy()

	c.ShowComplete("text")
	drain(c)
	time.Sleep(100 * time.Millisecond)
	drain(c)
	if got := c.State(); got != StateComplete {
		t.Errorf("state = %v, want complete with auto-hide disabled", got)
	}
}

func TestShowLastTranscriptRestoresAfterHide(t *testing.T) {
	fake := NewFakeSurface()
	cfg := testConfig()
	cfg.AutoHideDelay = 0
	c := New(fake, cfg)
	defer c.Destroy()

	if c.ShowLastTranscript() {
		t.Errorf("ShowLastTranscript reported a transcript before any completion")
	}

	c.ShowComplete("keep me around")
	drain(c)
	c.Hide()
	drain(c)

	if !c.ShowLastTranscript() {
		t.Fatalf("transcript not retained across Hide")
	}
	drain(c)
	if got := c.State(); got != StateComplete {
		t.Errorf("state = %v after redisplay, want complete", got)
	}
	last, _ := fake.LastContent()
	if last.Preview != "keep me around" {
		t.Errorf("redisplayed preview = %q", last.Preview)
	}

	got, ok := c.LastTranscript()
	if !ok || got.Text != "keep me around" || got.WordCount != 3 {
		t.Errorf("LastTranscript = %+v ok=%v", got, ok)
	}
}

func TestCreateFailureDegradesSilently(t *testing.T) {
	fake := NewFakeSurface()
	fake.CreateErr = errors.New("no display")
	c := New(fake, testConfig())
	defer c.Destroy()

	c.ShowRecording()
	drain(c)
	c.ShowComplete("text")
	drain(c)

	if len(fake.Contents()) != 0 {
		t.Errorf("content rendered despite create failure")
	}
	if got := c.State(); got != StateHidden {
		t.Errorf("state = %v after failed create, want hidden", got)
	}
}

func TestRenderPanicSwallowed(t *testing.T) {
	fake := NewFakeSurface()
	fake.PanicOnSetContent = true
	c := New(fake, testConfig())
	defer c.Destroy()

	c.ShowRecording()
	drain(c)
	c.ShowError("still alive")
	drain(c)

	// The update goroutine survived both panics if drain returned.
	if got := c.State(); got != StateError {
		t.Errorf("state = %v, want error", got)
	}
}

func TestDestroyIsTerminal(t *testing.T) {
	fake := NewFakeSurface()
	c := New(fake, testConfig())

	c.ShowRecording()
	drain(c)
	c.Destroy()

	deadline := time.Now().Add(time.Second)
	for !fake.Destroyed() {
		if time.Now().After(deadline) {
			t.Fatalf("surface not destroyed")
		}
		time.Sleep(time.Millisecond)
	}

	// Requests after Destroy are discarded without blocking.
	c.ShowRecording()
	c.ShowComplete("late")
	if got := c.State(); got != StateHidden {
		t.Errorf("state = %v after destroy, want hidden", got)
	}
}
