// Package overlay implements the transient status indicator shown during the
// dictation pipeline: a six-state machine (hidden, recording, transcribing,
// processing, complete, error) rendered through a swappable Surface backend.
//
// Rendering toolkits only tolerate surface mutation from the goroutine that
// owns the surface, so the controller serializes every visual update onto a
// single update goroutine via a task queue. State-entry operations are safe
// to call from any goroutine and never block beyond enqueueing.
package overlay

import (
	"fmt"
	"sync"
	"time"

	"sotto/log"
)

const taskQueueSize = 128

// Controller owns the overlay session: current state, the recording start
// time, the last displayed transcript, and all timers. One controller exists
// per process, constructed by the composition root and shared by reference.
type Controller struct {
	surface Surface
	tasks   chan func()
	quit    chan struct{}

	// Immutable after construction.
	opacity       float64
	fontSize      int
	autoHideDelay time.Duration
	tickInterval  time.Duration

	// mu guards every field below. Reads are allowed from any goroutine
	// (diagnostics, menu state); writes happen only on the update goroutine.
	mu           sync.RWMutex
	enabled      bool
	position     Position
	showTimer    bool
	showPreview  bool
	state        State
	startedAt    time.Time
	last         *Transcript
	created      bool
	createFailed bool
	destroyed    bool

	// Timer bookkeeping, touched only on the update goroutine.
	recTicker   *ticker
	pulseTicker *ticker
	pulseFrame  int
	autoHide    *time.Timer
	hideGen     uint64
}

// New builds a controller around surface. The surface itself is not created
// until the first transition request, which avoids startup-order races with
// the host application's own UI initialization.
func New(surface Surface, cfg Config) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	if cfg.Position == "" || !cfg.Position.Valid() {
		cfg.Position = BottomRight
	}
	c := &Controller{
		surface:       surface,
		tasks:         make(chan func(), taskQueueSize),
		quit:          make(chan struct{}),
		opacity:       cfg.Opacity,
		fontSize:      cfg.FontSize,
		autoHideDelay: cfg.AutoHideDelay,
		tickInterval:  cfg.TickInterval,
		enabled:       cfg.Enabled,
		position:      cfg.Position,
		showTimer:     cfg.ShowTimer,
		showPreview:   cfg.ShowTextPreview,
		state:         StateHidden,
	}
	go c.loop()
	return c
}

func (c *Controller) loop() {
	for {
		select {
		case <-c.quit:
			return
		case fn := <-c.tasks:
			c.runTask(fn)
		}
	}
}

// runTask isolates surface failures: overlay feedback is best-effort and a
// broken backend must never take down the transcription pipeline.
func (c *Controller) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("overlay: render failure: %v", r)
		}
	}()
	fn()
}

// enqueue pushes a task for the update goroutine and returns immediately.
// After Destroy the controller is terminal and tasks are discarded.
func (c *Controller) enqueue(fn func()) {
	select {
	case <-c.quit:
		return
	default:
	}
	select {
	case c.tasks <- fn:
	case <-c.quit:
	}
}

// State reports the current overlay state. Safe from any goroutine.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// StartedAt reports when the current recording began, if one is active.
func (c *Controller) StartedAt() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startedAt, !c.startedAt.IsZero()
}

// LastTranscript returns the most recently completed transcript, retained
// across auto-hide.
func (c *Controller) LastTranscript() (Transcript, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Transcript{}, false
	}
	return *c.last, true
}

// Enabled reports whether the overlay renders at all.
func (c *Controller) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles rendering. Disabling hides any visible surface; while
// disabled every transition request is a no-op and no surface is allocated.
func (c *Controller) SetEnabled(on bool) {
	c.mu.Lock()
	was := c.enabled
	c.enabled = on
	c.mu.Unlock()
	if was && !on {
		c.enqueue(func() { c.applyHide() })
	}
}

// SetPosition moves the overlay anchor and repositions a visible surface.
func (c *Controller) SetPosition(p Position) {
	if !p.Valid() {
		return
	}
	c.mu.Lock()
	c.position = p
	c.mu.Unlock()
	c.enqueue(func() {
		if c.surfaceReady() && c.State() != StateHidden {
			c.reposition()
		}
	})
}

// SetShowTimer toggles the elapsed-time display for future ticks.
func (c *Controller) SetShowTimer(on bool) {
	c.mu.Lock()
	c.showTimer = on
	c.mu.Unlock()
}

// SetShowTextPreview toggles the transcript preview on Complete.
func (c *Controller) SetShowTextPreview(on bool) {
	c.mu.Lock()
	c.showPreview = on
	c.mu.Unlock()
}

// ShowRecording transitions to Recording, records the start time and starts
// the elapsed-time timer (and pulse animation when the backend supports it).
func (c *Controller) ShowRecording() {
	if !c.Enabled() {
		return
	}
	c.enqueue(func() {
		if !c.ensureSurface() {
			return
		}
		c.cancelRecordingTimers()
		c.cancelAutoHide()

		now := time.Now()
		c.mu.Lock()
		c.state = StateRecording
		c.startedAt = now
		showTimer := c.showTimer
		c.mu.Unlock()

		detail := ""
		if showTimer {
			detail = "00:00"
		}
		c.render(Content{State: StateRecording, Status: "Recording", Detail: detail})
		c.surface.Show()
		c.startElapsedTimer(now)
		c.startPulse()
	})
}

// ShowTranscribing cancels the recording timer and shows how long the take
// was. The start time is retained so the elapsed figure stays available.
func (c *Controller) ShowTranscribing() {
	if !c.Enabled() {
		return
	}
	c.enqueue(func() {
		if !c.ensureSurface() {
			return
		}
		c.cancelRecordingTimers()
		c.cancelAutoHide()

		c.mu.Lock()
		c.state = StateTranscribing
		started := c.startedAt
		c.mu.Unlock()

		detail := "Processing audio..."
		if !started.IsZero() {
			detail = fmt.Sprintf("Recorded %.1fs", time.Since(started).Seconds())
		}
		c.render(Content{State: StateTranscribing, Status: "Transcribing", Detail: detail})
		c.surface.Show()
	})
}

// ShowProcessing is a cosmetic-only transition shown while the language
// model cleans up the transcript.
func (c *Controller) ShowProcessing() {
	if !c.Enabled() {
		return
	}
	c.enqueue(func() {
		if !c.ensureSurface() {
			return
		}
		c.cancelRecordingTimers()
		c.cancelAutoHide()

		c.mu.Lock()
		c.state = StateProcessing
		c.mu.Unlock()

		c.render(Content{State: StateProcessing, Status: "Processing", Detail: "Improving grammar..."})
		c.surface.Show()
	})
}

// ShowComplete shows the finished transcript, deriving word and character
// counts from the text.
func (c *Controller) ShowComplete(text string) {
	c.ShowTranscript(NewTranscript(text))
}

// ShowTranscript is ShowComplete with caller-supplied counts.
func (c *Controller) ShowTranscript(t Transcript) {
	if !c.Enabled() {
		return
	}
	c.enqueue(func() { c.applyComplete(t) })
}

func (c *Controller) applyComplete(t Transcript) {
	if !c.ensureSurface() {
		return
	}
	c.cancelRecordingTimers()
	c.cancelAutoHide()

	c.mu.Lock()
	c.state = StateComplete
	if t.Text != "" {
		cp := t
		c.last = &cp
	}
	showPreview := c.showPreview
	c.mu.Unlock()

	detail := fmt.Sprintf("%d words, %d chars", t.WordCount, t.CharCount)
	content := Content{State: StateComplete, Status: "Complete", Detail: detail}
	if showPreview && t.Text != "" {
		content.Preview = truncate(t.Text, previewMaxLen)
		content.ShowPreview = true
	}
	c.render(content)
	c.surface.Show()
	c.scheduleAutoHide()
}

// ShowError cancels any recording timer and shows a truncated error message.
func (c *Controller) ShowError(msg string) {
	if !c.Enabled() {
		return
	}
	c.enqueue(func() {
		if !c.ensureSurface() {
			return
		}
		c.cancelRecordingTimers()
		c.cancelAutoHide()

		c.mu.Lock()
		c.state = StateError
		c.mu.Unlock()

		c.render(Content{State: StateError, Status: "Error", Detail: truncate(msg, errorMaxLen)})
		c.surface.Show()
		c.scheduleAutoHide()
	})
}

// ShowLastTranscript redisplays the most recent transcript and reports
// whether one was available.
func (c *Controller) ShowLastTranscript() bool {
	c.mu.RLock()
	last := c.last
	enabled := c.enabled
	c.mu.RUnlock()
	if last == nil || !enabled {
		return last != nil
	}
	t := *last
	c.enqueue(func() { c.applyComplete(t) })
	return true
}

// Hide cancels all timers and hides the surface. The state field updates
// immediately; backends are free to fade out afterwards.
func (c *Controller) Hide() {
	c.enqueue(func() { c.applyHide() })
}

func (c *Controller) applyHide() {
	c.cancelRecordingTimers()
	c.cancelAutoHide()

	c.mu.Lock()
	c.state = StateHidden
	c.startedAt = time.Time{}
	created := c.created
	c.mu.Unlock()

	if created {
		c.surface.Hide()
	}
}

// Destroy tears the controller down: all timers cancelled, surface released.
// The controller is unusable afterwards.
func (c *Controller) Destroy() {
	c.enqueue(func() {
		c.cancelRecordingTimers()
		c.cancelAutoHide()

		c.mu.Lock()
		c.state = StateHidden
		c.startedAt = time.Time{}
		created := c.created
		c.destroyed = true
		c.mu.Unlock()

		if created {
			c.surface.Destroy()
		}
		close(c.quit)
	})
}

// ensureSurface lazily creates the rendering surface. A failed create is
// remembered so the overlay degrades to a permanent silent no-op.
func (c *Controller) ensureSurface() bool {
	c.mu.RLock()
	created, failed, destroyed := c.created, c.createFailed, c.destroyed
	c.mu.RUnlock()
	if destroyed || failed {
		return false
	}
	if created {
		return true
	}
	cfg := Config{
		Enabled:         true,
		Position:        c.positionNow(),
		Opacity:         c.opacity,
		ShowTimer:       c.showTimerNow(),
		ShowTextPreview: c.showPreviewNow(),
		AutoHideDelay:   c.autoHideDelay,
		FontSize:        c.fontSize,
		TickInterval:    c.tickInterval,
	}
	if err := c.surface.Create(cfg); err != nil {
		log.Warnf("overlay: surface create failed: %v", err)
		c.mu.Lock()
		c.createFailed = true
		c.mu.Unlock()
		return false
	}
	c.mu.Lock()
	c.created = true
	c.mu.Unlock()
	return true
}

func (c *Controller) surfaceReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.created && !c.destroyed
}

func (c *Controller) positionNow() Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

func (c *Controller) showTimerNow() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.showTimer
}

func (c *Controller) showPreviewNow() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.showPreview
}

// render pushes content to the surface and repositions, since content
// changes (preview shown/hidden) can change the surface height.
func (c *Controller) render(content Content) {
	content.Opacity = c.opacity
	content.FontSize = c.fontSize
	c.surface.SetContent(content)
	c.reposition()
}

func (c *Controller) reposition() {
	scr := c.surface.Screen()
	sz := c.surface.Size()
	c.surface.Move(Origin(c.positionNow(), scr, sz))
}

// startElapsedTimer publishes mm:ss while the state remains Recording.
// The tick callback runs on the update goroutine; a tick that fires after
// the state moved on is stale and cancels the timer instead of rendering.
func (c *Controller) startElapsedTimer(started time.Time) {
	c.recTicker = c.startTicker(c.tickInterval, func() bool {
		c.mu.RLock()
		recording := c.state == StateRecording && !c.startedAt.IsZero()
		showTimer := c.showTimer
		c.mu.RUnlock()
		if !recording {
			return false
		}
		if showTimer {
			c.render(Content{State: StateRecording, Status: "Recording", Detail: formatElapsed(time.Since(started))})
		}
		return true
	})
}

// startPulse drives the optional recording animation. Idempotent: a pulse
// ticker already running is left alone.
func (c *Controller) startPulse() {
	anim, ok := c.surface.(Animator)
	if !ok || c.pulseTicker != nil {
		return
	}
	c.pulseFrame = 0
	c.pulseTicker = c.startTicker(c.tickInterval, func() bool {
		if c.State() != StateRecording {
			return false
		}
		c.pulseFrame++
		anim.Pulse(c.pulseFrame)
		return true
	})
}

// cancelRecordingTimers is the first thing every transition runs: the pulse
// and elapsed timers must be dead before any other state is rendered.
func (c *Controller) cancelRecordingTimers() {
	if c.recTicker != nil {
		c.recTicker.cancel()
		c.recTicker = nil
	}
	if c.pulseTicker != nil {
		c.pulseTicker.cancel()
		c.pulseTicker = nil
	}
}

// scheduleAutoHide arms a single pending auto-hide. The generation counter
// makes a timer that fires after a newer transition a silent no-op.
func (c *Controller) scheduleAutoHide() {
	if c.autoHideDelay <= 0 {
		return
	}
	c.hideGen++
	gen := c.hideGen
	c.autoHide = time.AfterFunc(c.autoHideDelay, func() {
		c.enqueue(func() {
			if c.hideGen != gen {
				return
			}
			st := c.State()
			if st != StateComplete && st != StateError {
				return
			}
			c.applyHide()
		})
	})
}

// cancelAutoHide invalidates any pending auto-hide. Cancellation is
// cooperative: the generation bump makes an already-fired callback a no-op.
func (c *Controller) cancelAutoHide() {
	c.hideGen++
	if c.autoHide != nil {
		c.autoHide.Stop()
		c.autoHide = nil
	}
}

// ticker is a cancellable periodic task whose callback always executes on
// the controller's update goroutine.
type ticker struct {
	stop chan struct{}
	once sync.Once
}

func (t *ticker) cancel() {
	t.once.Do(func() { close(t.stop) })
}

// startTicker schedules fn on the update goroutine at the given interval.
// fn returning false cancels the ticker (stale-tick self-cancellation).
func (c *Controller) startTicker(interval time.Duration, fn func() bool) *ticker {
	t := &ticker{stop: make(chan struct{})}
	go func() {
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-c.quit:
				return
			case <-tk.C:
				c.enqueue(func() {
					select {
					case <-t.stop:
						return
					default:
					}
					if !fn() {
						t.cancel()
					}
				})
			}
		}
	}()
	return t
}
