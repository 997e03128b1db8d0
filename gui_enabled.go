//go:build gui

package main

import (
	"runtime"

	"fyne.io/fyne/v2/app"

	"sotto/overlay"
)

var guiSurface overlay.Surface

// initGUI takes the main thread for Fyne/GLFW and runs the pipeline in a
// goroutine. The overlay renders into a borderless splash window instead of
// the TUI panel.
func initGUI() {
	runtime.LockOSThread()

	fyneApp := app.New()
	guiSurface = overlay.NewFyneSurface(fyneApp)

	go run()
	fyneApp.Run()
}
