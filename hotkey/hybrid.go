package hotkey

import (
	"sync/atomic"
	"time"
)

type Mode string

const (
	ModePTT    Mode = "ptt"
	ModeToggle Mode = "toggle"
)

// StartEvent indicates a new recording should start.
type StartEvent struct {
	Mode Mode
}

// Hybrid wraps a Hotkey to provide hybrid tap-to-toggle and hold-to-talk
// behavior on the same key combination. Recording starts on keydown; a
// release before the long-press threshold leaves it running in toggle mode,
// a later release stops it (push-to-talk).
type Hybrid struct {
	startCh chan StartEvent
	stopCh  chan struct{}
	toggle  atomic.Bool
}

// NewHybrid builds a Hybrid controller on top of an existing Hotkey.
// longPress is the hold duration past which a press counts as PTT.
func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan StartEvent, 1),
		stopCh:  make(chan struct{}, 1),
	}
	go h.run(hk, longPress)
	return h
}

// Start returns a channel signaling when to begin recording.
func (h *Hybrid) Start() <-chan StartEvent { return h.startCh }

// StopChan returns a channel signaled when to stop recording, for both
// PTT and toggle modes.
func (h *Hybrid) StopChan() <-chan struct{} { return h.stopCh }

// IsToggle reports whether the current recording continues without the key
// held. Silence auto-close only applies then.
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

type hybridState int

const (
	stIdle hybridState = iota
	stToggleRecording
)

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	state := stIdle
	for {
		switch state {
		case stIdle:
			<-hk.Keydown()
			// Start immediately; the hold duration decides the mode.
			h.toggle.Store(false)
			h.startCh <- StartEvent{Mode: ModePTT}
			timer := time.NewTimer(longPress)
			select {
			case <-timer.C:
				// Held past the threshold: stop on release
				<-hk.Keyup()
				select {
				case h.stopCh <- struct{}{}:
				default:
				}
			case <-hk.Keyup():
				// Short tap: toggled on, next press stops
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				h.toggle.Store(true)
				state = stToggleRecording
			}
		case stToggleRecording:
			<-hk.Keydown()
			<-hk.Keyup()
			select {
			case h.stopCh <- struct{}{}:
			default:
			}
			state = stIdle
		}
	}
}
