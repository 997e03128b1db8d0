// Package tray drives the menu bar entry: recording control, quick access to
// recent transcripts and toggles for the pipeline options.
package tray

import (
	"sync"
	"time"

	"fyne.io/systray"
)

const maxHistoryItems = 5

// HistoryEntry is one recent-transcript menu line.
type HistoryEntry struct {
	Label string // short preview with relative time
	Text  string // full transcript, delivered to OnHistory
}

// Config seeds the initial checked state of the menu.
type Config struct {
	ClipboardMode      bool
	UseLLM             bool
	Tone               string
	Language           string
	OverlayEnabled     bool
	OverlayPosition    string
	OverlayShowTimer   bool
	OverlayShowPreview bool
}

// Handlers receive menu events. Nil handlers are ignored.
type Handlers struct {
	OnRecordStart     func()
	OnRecordStop      func()
	OnCopyLast        func()
	OnShowLast        func()
	OnHistory         func(text string)
	OnClipboardMode   func(bool)
	OnUseLLM          func(bool)
	OnTone            func(string)
	OnLanguage        func(string)
	OnOverlayEnabled  func(bool)
	OnOverlayPosition func(string)
	OnOverlayTimer    func(bool)
	OnOverlayPreview  func(bool)
}

var (
	mu        sync.Mutex
	recording bool
	warning   bool

	recordItem   *systray.MenuItem
	copyLastItem *systray.MenuItem
	showLastItem *systray.MenuItem
	historyItems []*systray.MenuItem
	historyTexts []string
)

var tones = []string{"auto", "casual", "professional", "technical"}

var positions = []string{"top-left", "top-right", "bottom-left", "bottom-right", "center"}

var languages = []struct{ code, label string }{
	{"en", "English"},
	{"es", "Spanish"},
	{"fr", "French"},
	{"de", "German"},
	{"it", "Italian"},
	{"", "Auto-detect"},
}

// Run starts the tray in the background and returns a channel that closes
// when the user picks Quit.
func Run(cfg Config, h Handlers) <-chan struct{} {
	quit := make(chan struct{})
	go systray.Run(func() { onReady(cfg, h) }, func() { close(quit) })
	return quit
}

// Quit tears the tray down.
func Quit() {
	systray.Quit()
}

func onReady(cfg Config, h Handlers) {
	systray.SetTitle("sotto")
	systray.SetTooltip("sotto - push to talk dictation")

	recordItem = systray.AddMenuItem("Start Recording", "Toggle recording")
	go func() {
		for range recordItem.ClickedCh {
			mu.Lock()
			rec := recording
			mu.Unlock()
			if rec {
				call(h.OnRecordStop)
			} else {
				call(h.OnRecordStart)
			}
		}
	}()

	systray.AddSeparator()

	copyLastItem = systray.AddMenuItem("Copy Last Text", "Copy the last transcript to the clipboard")
	copyLastItem.Disable()
	go clicks(copyLastItem, func() { call(h.OnCopyLast) })

	showLastItem = systray.AddMenuItem("Show Last Transcript", "Redisplay the last transcript overlay")
	showLastItem.Disable()
	go clicks(showLastItem, func() { call(h.OnShowLast) })

	historyMenu := systray.AddMenuItem("Recent", "Recent transcripts")
	for i := 0; i < maxHistoryItems; i++ {
		item := historyMenu.AddSubMenuItem("", "")
		item.Hide()
		historyItems = append(historyItems, item)
		idx := i
		go clicks(item, func() {
			mu.Lock()
			var text string
			if idx < len(historyTexts) {
				text = historyTexts[idx]
			}
			mu.Unlock()
			if text != "" && h.OnHistory != nil {
				h.OnHistory(text)
			}
		})
	}

	systray.AddSeparator()

	clipItem := systray.AddMenuItemCheckbox("Clipboard Mode", "Copy only, never simulate a paste keystroke", cfg.ClipboardMode)
	go toggles(clipItem, h.OnClipboardMode)

	llmItem := systray.AddMenuItemCheckbox("Grammar Cleanup (LLM)", "Post-process transcripts with the local LLM", cfg.UseLLM)
	go toggles(llmItem, h.OnUseLLM)

	toneMenu := systray.AddMenuItem("Tone", "Cleanup register")
	radioGroup(toneMenu, tones, cfg.Tone, h.OnTone)

	overlayMenu := systray.AddMenuItem("Overlay", "Status overlay options")
	ovEnabled := overlayMenu.AddSubMenuItemCheckbox("Enabled", "", cfg.OverlayEnabled)
	go toggles(ovEnabled, h.OnOverlayEnabled)
	ovTimer := overlayMenu.AddSubMenuItemCheckbox("Show Timer", "", cfg.OverlayShowTimer)
	go toggles(ovTimer, h.OnOverlayTimer)
	ovPreview := overlayMenu.AddSubMenuItemCheckbox("Show Text Preview", "", cfg.OverlayShowPreview)
	go toggles(ovPreview, h.OnOverlayPreview)
	posMenu := overlayMenu.AddSubMenuItem("Position", "")
	radioGroup(posMenu, positions, cfg.OverlayPosition, h.OnOverlayPosition)

	langMenu := systray.AddMenuItem("Language", "Transcription language")
	var langItems []*systray.MenuItem
	for _, l := range languages {
		item := langMenu.AddSubMenuItemCheckbox(l.label, "", l.code == cfg.Language)
		langItems = append(langItems, item)
	}
	for i, l := range languages {
		item := langItems[i]
		code := l.code
		go clicks(item, func() {
			for _, other := range langItems {
				other.Uncheck()
			}
			item.Check()
			if h.OnLanguage != nil {
				h.OnLanguage(code)
			}
		})
	}

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit sotto")
	go clicks(quitItem, systray.Quit)
}

// radioGroup wires a one-of-n checkbox submenu.
func radioGroup(parent *systray.MenuItem, values []string, active string, fn func(string)) {
	var items []*systray.MenuItem
	for _, v := range values {
		items = append(items, parent.AddSubMenuItemCheckbox(v, "", v == active))
	}
	for i, v := range values {
		item := items[i]
		value := v
		go clicks(item, func() {
			for _, other := range items {
				other.Uncheck()
			}
			item.Check()
			if fn != nil {
				fn(value)
			}
		})
	}
}

func clicks(item *systray.MenuItem, fn func()) {
	for range item.ClickedCh {
		fn()
	}
}

func toggles(item *systray.MenuItem, fn func(bool)) {
	for range item.ClickedCh {
		var on bool
		if item.Checked() {
			item.Uncheck()
			on = false
		} else {
			item.Check()
			on = true
		}
		if fn != nil {
			fn(on)
		}
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

// SetRecording swaps the record action and the tray title.
func SetRecording(on bool) {
	mu.Lock()
	recording = on
	warn := warning
	mu.Unlock()
	if recordItem == nil {
		return
	}
	if on {
		recordItem.SetTitle("Stop Recording")
		systray.SetTitle("● sotto")
	} else {
		recordItem.SetTitle("Start Recording")
		if warn {
			systray.SetTitle("⚠ sotto")
		} else {
			systray.SetTitle("sotto")
		}
	}
}

// SetWarning marks the tray while no voice is being detected.
func SetWarning(on bool) {
	mu.Lock()
	warning = on
	rec := recording
	mu.Unlock()
	if rec {
		if on {
			systray.SetTitle("⚠ sotto")
		} else {
			systray.SetTitle("● sotto")
		}
	}
}

// SetStatus mirrors overlay state onto the tooltip for headless tray mode.
// An empty status restores the default tooltip.
func SetStatus(status string) {
	if status == "" {
		systray.SetTooltip("sotto - push to talk dictation")
		return
	}
	systray.SetTooltip("sotto - " + status)
}

// SetError surfaces the last pipeline error in the tooltip.
func SetError(msg string) {
	systray.SetTooltip("sotto - error: " + msg)
}

// SetLastRecording notes the duration of the last successful take and
// enables the last-transcript actions.
func SetLastRecording(d time.Duration) {
	if copyLastItem == nil || showLastItem == nil {
		return
	}
	copyLastItem.SetTitle("Copy Last Text")
	copyLastItem.Enable()
	showLastItem.Enable()
	systray.SetTooltip("sotto - last take " + d.Truncate(100*time.Millisecond).String())
}

// SetHistory replaces the recent-transcript submenu entries, newest first.
func SetHistory(entries []HistoryEntry) {
	mu.Lock()
	historyTexts = historyTexts[:0]
	for _, e := range entries {
		historyTexts = append(historyTexts, e.Text)
	}
	mu.Unlock()
	for i, item := range historyItems {
		if i < len(entries) {
			item.SetTitle(entries[i].Label)
			item.Show()
		} else {
			item.Hide()
		}
	}
}
