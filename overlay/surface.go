package overlay

// Content is the full set of fields a backend renders for one state.
// Backends map State to their own icons and colors.
type Content struct {
	State       State
	Status      string // headline, e.g. "Recording"
	Detail      string // secondary line, e.g. "00:07" or an error message
	Preview     string // truncated transcript text; empty when hidden
	ShowPreview bool
	Opacity     float64
	FontSize    int
}

// Rect is a screen rectangle in pixels, origin top-left.
type Rect struct {
	X, Y, W, H int
}

// Size is a surface extent in pixels.
type Size struct {
	W, H int
}

// Point is a screen coordinate in pixels.
type Point struct {
	X, Y int
}

// Surface is a swappable rendering backend. The controller calls every
// method from its single update goroutine, so implementations do not need
// their own locking for controller-driven mutation. Errors from Create are
// logged and the surface is abandoned; all other methods are best-effort.
type Surface interface {
	// Create allocates the visual surface. Called lazily on the first
	// transition request, never at construction.
	Create(cfg Config) error

	// SetContent replaces the rendered fields. Surface size may change as a
	// result (preview shown/hidden), so the controller repositions after
	// every call.
	SetContent(c Content)

	// Size returns the current surface extent.
	Size() Size

	// Screen returns the bounds of the screen the surface lives on.
	Screen() Rect

	// Move places the surface's top-left corner.
	Move(p Point)

	Show()
	Hide()
	Destroy()
}

// Animator is an optional Surface capability. Backends that render a
// recording pulse implement it; the controller drives Pulse on its own
// periodic tick while the state is Recording.
type Animator interface {
	Pulse(frame int)
}

const (
	anchorMargin = 40
	// Extra clearance above docks/taskbars for bottom anchors.
	bottomOffset = 100
)

// Origin computes the surface's top-left corner for an anchor within screen.
// Unknown anchors fall back to bottom-right.
func Origin(anchor Position, screen Rect, size Size) Point {
	switch anchor {
	case TopLeft:
		return Point{screen.X + anchorMargin, screen.Y + anchorMargin}
	case TopRight:
		return Point{screen.X + screen.W - size.W - anchorMargin, screen.Y + anchorMargin}
	case BottomLeft:
		return Point{screen.X + anchorMargin, screen.Y + screen.H - size.H - anchorMargin - bottomOffset}
	case Center:
		return Point{screen.X + (screen.W-size.W)/2, screen.Y + (screen.H-size.H)/2}
	default: // BottomRight
		return Point{screen.X + screen.W - size.W - anchorMargin, screen.Y + screen.H - size.H - anchorMargin - bottomOffset}
	}
}
