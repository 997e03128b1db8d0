package overlay

import "sync"

// FakeSurface is an in-memory Surface for tests. It records every call so
// tests can assert on the rendered sequence, and it implements Animator so
// the pulse path is exercised too.
type FakeSurface struct {
	mu sync.Mutex

	// Test knobs.
	CreateErr         error // returned by Create
	PanicOnSetContent bool  // SetContent panics once set
	FixedScreen       Rect
	FixedSize         Size

	createCalls int
	visible     bool
	destroyed   bool
	contents    []Content
	moves       []Point
	pulses      int
}

// NewFakeSurface returns a fake with a 1920x1080 screen and a 200x80 panel.
func NewFakeSurface() *FakeSurface {
	return &FakeSurface{
		FixedScreen: Rect{X: 0, Y: 0, W: 1920, H: 1080},
		FixedSize:   Size{W: 200, H: 80},
	}
}

func (f *FakeSurface) Create(cfg Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.createCalls++
	return nil
}

func (f *FakeSurface) SetContent(c Content) {
	f.mu.Lock()
	panicNow := f.PanicOnSetContent
	if !panicNow {
		f.contents = append(f.contents, c)
	}
	f.mu.Unlock()
	if panicNow {
		panic("fake surface: SetContent")
	}
}

func (f *FakeSurface) Size() Size {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FixedSize
}

func (f *FakeSurface) Screen() Rect {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FixedScreen
}

func (f *FakeSurface) Move(p Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, p)
}

func (f *FakeSurface) Show() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = true
}

func (f *FakeSurface) Hide() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = false
}

func (f *FakeSurface) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = false
	f.destroyed = true
}

func (f *FakeSurface) Pulse(frame int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulses++
}

// CreateCalls reports how many times Create succeeded.
func (f *FakeSurface) CreateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

// Visible reports whether the surface is currently shown.
func (f *FakeSurface) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

// Destroyed reports whether Destroy was called.
func (f *FakeSurface) Destroyed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

// Contents returns a copy of every rendered Content, oldest first.
func (f *FakeSurface) Contents() []Content {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Content, len(f.contents))
	copy(out, f.contents)
	return out
}

// LastContent returns the most recently rendered Content.
func (f *FakeSurface) LastContent() (Content, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.contents) == 0 {
		return Content{}, false
	}
	return f.contents[len(f.contents)-1], true
}

// Moves returns a copy of every Move target, oldest first.
func (f *FakeSurface) Moves() []Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Point, len(f.moves))
	copy(out, f.moves)
	return out
}

// Pulses reports how many animation frames were delivered.
func (f *FakeSurface) Pulses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulses
}
