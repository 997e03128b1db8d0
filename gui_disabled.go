//go:build !gui

package main

import "sotto/overlay"

var guiSurface overlay.Surface

func initGUI() {
	panic("sotto: built without GUI support (rebuild with -tags gui)")
}
