package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sotto/overlay"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type RecordingTickMsg struct{ Duration float64 }
type AudioLevelMsg struct{ Level float64 }
type LogMsg struct{ Text string }
type TranscriptionMsg struct {
	Text     string
	Metrics  []string
	NoSpeech bool
}
type ModeLineMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type BluetoothWarningMsg struct{ IsBT bool }
type HybridHelpMsg struct{ Enabled bool }
type NoVoiceWarningMsg struct{}
type VoiceClearedMsg struct{}
type SilenceAutoCloseMsg struct{}
type OverlayContentMsg struct{ Content overlay.Content }
type OverlayVisibleMsg struct{ Visible bool }
type tickMsg time.Time

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func logToTUI(format string, args ...any) {
	tuiSend(LogMsg{Text: fmt.Sprintf(format, args...)})
}

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
)

type tuiModel struct {
	state             tuiState
	recordingDuration float64
	audioLevel        float64
	peakLevel         float64
	width, height     int
	modeLine          string
	deviceLine        string
	btWarning         bool
	hybridHelp        bool
	noVoice           bool
	logLine           string
	lastText          string
	lastMetrics       []string
	noSpeech          bool
	msgCount          int
	overlayContent    overlay.Content
	overlayVisible    bool
}

func NewTUIProgram() *tea.Program {
	return tea.NewProgram(tuiModel{}, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+g":
			select {
			case deviceSelectChan <- struct{}{}:
			default:
			}
		}

	case tickMsg:
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.recordingDuration = 0
		m.audioLevel = 0
		m.peakLevel = 0
		m.noVoice = false
		m.logLine = ""

	case RecordingStopMsg:
		m.state = tuiStateIdle
		m.audioLevel = 0
		m.noVoice = false

	case RecordingTickMsg:
		m.recordingDuration = msg.Duration

	case AudioLevelMsg:
		if m.state == tuiStateRecording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
			if msg.Level > m.peakLevel {
				m.peakLevel = msg.Level
			}
		}

	case NoVoiceWarningMsg:
		m.noVoice = true

	case VoiceClearedMsg:
		m.noVoice = false

	case SilenceAutoCloseMsg:
		m.state = tuiStateIdle
		m.audioLevel = 0
		m.noVoice = false
		m.logLine = "recording auto-closed after prolonged silence"

	case LogMsg:
		m.logLine = msg.Text

	case TranscriptionMsg:
		m.msgCount++
		m.lastText = msg.Text
		m.lastMetrics = msg.Metrics
		m.noSpeech = msg.NoSpeech

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case BluetoothWarningMsg:
		m.btWarning = msg.IsBT

	case HybridHelpMsg:
		m.hybridHelp = msg.Enabled

	case OverlayContentMsg:
		m.overlayContent = msg.Content

	case OverlayVisibleMsg:
		m.overlayVisible = msg.Visible
	}
	return m, nil
}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	overlayBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	overlayState = map[overlay.State]lipgloss.Style{
		overlay.StateRecording:    recStyle,
		overlay.StateTranscribing: warnStyle,
		overlay.StateProcessing:   lipgloss.NewStyle().Foreground(lipgloss.Color("135")),
		overlay.StateComplete:     okStyle,
		overlay.StateError:        recStyle,
	}
)

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string

	if m.state == tuiStateRecording {
		lines = append(lines, recStyle.Render(fmt.Sprintf("● REC %.1fs", m.recordingDuration))+"  "+levelMeter(m.audioLevel))
		if m.noVoice {
			lines = append(lines, warnStyle.Render("  ⚠ no voice detected"))
		}
	} else {
		lines = append(lines, idleStyle.Render("○ STANDBY"))
	}

	if m.overlayVisible {
		lines = append(lines, "", m.renderOverlayPanel())
	}

	lines = append(lines, "")
	if m.modeLine != "" {
		lines = append(lines, dimStyle.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		lines = append(lines, idleStyle.Render(m.deviceLine))
	}
	if m.btWarning {
		lines = append(lines, warnStyle.Render("⚠ bluetooth mic: expect degraded audio quality"))
	}
	if m.logLine != "" {
		lines = append(lines, warnStyle.Render(m.logLine))
	}

	if m.lastText != "" {
		lines = append(lines, "", dimStyle.Render(fmt.Sprintf("Last transcription (#%d)", m.msgCount)))
		style := textStyle
		if m.noSpeech {
			style = warnStyle
		}
		for _, l := range wrapText(m.lastText, max(10, m.width-4)) {
			lines = append(lines, style.Render(l))
		}
		if !m.noSpeech {
			lines = append(lines, okStyle.Render("[✓ copied]"))
		}
		if len(m.lastMetrics) > 0 {
			lines = append(lines, "")
			for _, metric := range m.lastMetrics {
				lines = append(lines, dimStyle.Render(metric))
			}
		}
	}

	lines = append(lines, "")
	help := helpStyle.Bold(true).Render("Ctrl+Shift+Space") + helpStyle.Render(" to record")
	if m.hybridHelp {
		help += helpStyle.Render("  (tap = toggle, hold = push-to-talk)")
	}
	lines = append(lines, help)
	lines = append(lines, helpStyle.Render("sotto "+version))

	return strings.Join(lines, "\n")
}

// renderOverlayPanel mirrors the floating overlay inside the terminal.
func (m tuiModel) renderOverlayPanel() string {
	c := m.overlayContent
	style, ok := overlayState[c.State]
	if !ok {
		style = idleStyle
	}
	body := style.Render("● "+c.Status)
	if c.Detail != "" {
		body += "  " + dimStyle.Render(c.Detail)
	}
	if c.ShowPreview && c.Preview != "" {
		body += "\n" + dimStyle.Italic(true).Render(c.Preview)
	}
	return overlayBox.Render(body)
}

func levelMeter(level float64) string {
	const width = 20
	filled := int(level * 4 * width)
	if filled > width {
		filled = width
	}
	return okStyle.Render(strings.Repeat("█", filled)) + idleStyle.Render(strings.Repeat("░", width-filled))
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// tuiSurface renders the overlay through the TUI instead of a floating
// window. Geometry is fixed; the terminal does the layout.
type tuiSurface struct{}

func (s *tuiSurface) Create(cfg overlay.Config) error { return nil }

func (s *tuiSurface) SetContent(c overlay.Content) {
	tuiSend(OverlayContentMsg{Content: c})
}

func (s *tuiSurface) Size() overlay.Size { return overlay.Size{W: 40, H: 3} }

func (s *tuiSurface) Screen() overlay.Rect { return overlay.Rect{W: 80, H: 24} }

func (s *tuiSurface) Move(p overlay.Point) {}

func (s *tuiSurface) Show() { tuiSend(OverlayVisibleMsg{Visible: true}) }

func (s *tuiSurface) Hide() { tuiSend(OverlayVisibleMsg{Visible: false}) }

func (s *tuiSurface) Destroy() { tuiSend(OverlayVisibleMsg{Visible: false}) }
