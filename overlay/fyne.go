//go:build gui

package overlay

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// FyneSurface renders the overlay as a frameless floating splash window.
// The fyne app must already be running on the main goroutine; controller
// calls arrive on the update goroutine and are marshalled in with fyne.Do.
type FyneSurface struct {
	app fyne.App

	mu     sync.Mutex
	win    fyne.Window
	bg     *canvas.Rectangle
	dot    *canvas.Text
	status *canvas.Text
	detail *canvas.Text
	prev   *canvas.Text
	size   Size
}

func NewFyneSurface(app fyne.App) *FyneSurface {
	return &FyneSurface{app: app}
}

var stateColors = map[State]color.Color{
	StateRecording:    color.NRGBA{R: 0xe7, G: 0x4c, B: 0x3c, A: 0xff},
	StateTranscribing: color.NRGBA{R: 0xf3, G: 0x9c, B: 0x12, A: 0xff},
	StateProcessing:   color.NRGBA{R: 0x9b, G: 0x59, B: 0xb6, A: 0xff},
	StateComplete:     color.NRGBA{R: 0x2e, G: 0xcc, B: 0x71, A: 0xff},
	StateError:        color.NRGBA{R: 0xe7, G: 0x4c, B: 0x3c, A: 0xff},
}

func (s *FyneSurface) Create(cfg Config) error {
	fyne.DoAndWait(func() {
		var win fyne.Window
		if drv, ok := s.app.Driver().(desktop.Driver); ok {
			win = drv.CreateSplashWindow()
		} else {
			win = s.app.NewWindow("sotto")
		}

		alpha := uint8(cfg.Opacity * 0xff)
		s.bg = canvas.NewRectangle(color.NRGBA{R: 0x1e, G: 0x1e, B: 0x2e, A: alpha})
		s.bg.CornerRadius = 10

		fg := color.NRGBA{R: 0xcd, G: 0xd6, B: 0xf4, A: 0xff}
		dim := color.NRGBA{R: 0x9a, G: 0xa0, B: 0xb5, A: 0xff}

		s.dot = canvas.NewText("●", dim)
		s.dot.TextSize = float32(cfg.FontSize)
		s.status = canvas.NewText("", fg)
		s.status.TextSize = float32(cfg.FontSize)
		s.status.TextStyle = fyne.TextStyle{Bold: true}
		s.detail = canvas.NewText("", dim)
		s.detail.TextSize = float32(cfg.FontSize) - 2
		s.prev = canvas.NewText("", dim)
		s.prev.TextSize = float32(cfg.FontSize) - 2
		s.prev.TextStyle = fyne.TextStyle{Italic: true}
		s.prev.Hide()

		head := container.NewHBox(s.dot, s.status, s.detail)
		body := container.NewVBox(head, s.prev)
		win.SetContent(container.NewStack(s.bg, container.NewPadded(body)))
		win.SetPadded(false)
		win.SetFixedSize(true)

		s.mu.Lock()
		s.win = win
		s.mu.Unlock()
		s.resizeLocked()
	})
	return nil
}

// resizeLocked shrinks the window to its content and caches the extent.
// Must run on the fyne goroutine.
func (s *FyneSurface) resizeLocked() {
	min := s.win.Content().MinSize()
	s.win.Resize(min)
	s.mu.Lock()
	s.size = Size{W: int(min.Width), H: int(min.Height)}
	s.mu.Unlock()
}

func (s *FyneSurface) SetContent(c Content) {
	fyne.DoAndWait(func() {
		if s.win == nil {
			return
		}
		if col, ok := stateColors[c.State]; ok {
			s.dot.Color = col
		}
		s.status.Text = c.Status
		s.detail.Text = c.Detail
		if c.ShowPreview {
			s.prev.Text = c.Preview
			s.prev.Show()
		} else {
			s.prev.Text = ""
			s.prev.Hide()
		}
		s.dot.Refresh()
		s.status.Refresh()
		s.detail.Refresh()
		s.prev.Refresh()
		s.resizeLocked()
	})
}

func (s *FyneSurface) Size() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *FyneSurface) Screen() Rect {
	r := Rect{W: 1920, H: 1080}
	fyne.DoAndWait(func() {
		if monitor := glfw.GetPrimaryMonitor(); monitor != nil {
			x, y, w, h := monitor.GetWorkarea()
			r = Rect{X: x, Y: y, W: w, H: h}
		}
	})
	return r
}

func (s *FyneSurface) Move(p Point) {
	fyne.Do(func() {
		if win := glfw.GetCurrentContext(); win != nil {
			win.SetPos(p.X, p.Y)
		}
	})
}

func (s *FyneSurface) Show() {
	fyne.Do(func() {
		if s.win == nil {
			return
		}
		// Floating and non-stealing, straight through glfw.
		if win := glfw.GetCurrentContext(); win != nil {
			win.SetAttrib(glfw.FocusOnShow, glfw.False)
			win.SetAttrib(glfw.Floating, glfw.True)
			win.Show()
		} else {
			s.win.Show()
		}
	})
}

func (s *FyneSurface) Hide() {
	fyne.Do(func() {
		if s.win == nil {
			return
		}
		if win := glfw.GetCurrentContext(); win != nil {
			win.Hide()
		} else {
			s.win.Hide()
		}
	})
}

func (s *FyneSurface) Destroy() {
	fyne.Do(func() {
		if s.win != nil {
			s.win.Close()
			s.win = nil
		}
	})
}

// Pulse breathes the recording dot by cycling its alpha.
func (s *FyneSurface) Pulse(frame int) {
	fyne.Do(func() {
		if s.win == nil {
			return
		}
		col, ok := s.dot.Color.(color.NRGBA)
		if !ok {
			return
		}
		if frame%10 < 5 {
			col.A = 0xff - uint8(frame%5)*0x28
		} else {
			col.A = 0x5b + uint8(frame%5)*0x28
		}
		s.dot.Color = col
		s.dot.Refresh()
	})
}
