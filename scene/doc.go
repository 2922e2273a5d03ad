// Package scene holds demo pictures and animations for small colour panels.
//
// Every scene draws through a Canvas, the drawing surface of an st7789.Dev,
// so the same code runs on hardware and against the emulator. Static scenes
// are plain functions; animated ones implement Animation and are driven by
// Play.
package scene
