package main

import (
	"sotto/overlay"
	"sotto/tray"
)

// traySurface is the overlay fallback for headless tray mode: no window to
// draw into, so state is mirrored onto the tray tooltip. Geometry is
// irrelevant; the anchor math runs against a zero screen.
type traySurface struct{}

func (s *traySurface) Create(cfg overlay.Config) error { return nil }

func (s *traySurface) SetContent(c overlay.Content) {
	text := c.Status
	if c.Detail != "" {
		text += " - " + c.Detail
	}
	tray.SetStatus(text)
}

func (s *traySurface) Size() overlay.Size { return overlay.Size{} }

func (s *traySurface) Screen() overlay.Rect { return overlay.Rect{} }

func (s *traySurface) Move(p overlay.Point) {}

func (s *traySurface) Show() {}

func (s *traySurface) Hide() { tray.SetStatus("") }

func (s *traySurface) Destroy() {}
