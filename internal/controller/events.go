// Package controller sequences a capture: import, scan, histogram,
// tonemap, preview, save. It is a single-writer state machine driven
// by the window event loop.
package controller

import (
	"github.com/hdrsnip/hdrsnip/internal/capture"
	"github.com/hdrsnip/hdrsnip/internal/gpu"
)

// Event is the message type flowing from the event loop and the
// background threads into the controller.
type Event interface{ isEvent() }

// TakeCaptureHotkey starts a capture.
type TakeCaptureHotkey struct{}

// FoundMonitor reports the monitor the cursor is on.
type FoundMonitor struct {
	Monitor capture.MonitorInfo
}

// GotCapture carries the OS shared handle and the capture extent.
type GotCapture struct {
	Handle uintptr
	Width  uint32
	Height uint32
}

// ImportedCapture carries the HDR image imported from the handle.
// Ownership of the image transfers to the controller.
type ImportedCapture struct {
	Image *gpu.HDRImage
}

// WhitepointKind distinguishes the SDR-white fallback from the
// histogram-selected HDR whitepoint.
type WhitepointKind int

const (
	WhitepointSDR WhitepointKind = iota
	WhitepointHDR
)

// SelectedWhitepoint reports the chosen tonemap whitepoint.
type SelectedWhitepoint struct {
	Kind  WhitepointKind
	Value float32
}

// ErrorDuringLoad aborts a capture in the Loading state.
type ErrorDuringLoad struct {
	Err error
}

// MouseMoved carries the cursor position in window pixels.
type MouseMoved struct {
	Pos [2]float32
}

// MousePressed starts a drag selection at the given position.
type MousePressed struct {
	Pos [2]float32
}

// MouseReleased ends a drag selection.
type MouseReleased struct{}

// EscapePressed discards the active capture.
type EscapePressed struct{}

// EnterPressed accepts the current selection.
type EnterPressed struct{}

// RedrawRequested asks the render thread for a frame.
type RedrawRequested struct{}

// Resized reports a new window extent.
type Resized struct {
	Width, Height uint32
}

// Shutdown ends the process; the controller releases the published
// capture, hides the window, and transitions to Exited.
type Shutdown struct{}

func (TakeCaptureHotkey) isEvent()  {}
func (FoundMonitor) isEvent()       {}
func (GotCapture) isEvent()         {}
func (ImportedCapture) isEvent()    {}
func (SelectedWhitepoint) isEvent() {}
func (ErrorDuringLoad) isEvent()    {}
func (MouseMoved) isEvent()         {}
func (MousePressed) isEvent()       {}
func (MouseReleased) isEvent()      {}
func (EscapePressed) isEvent()      {}
func (EnterPressed) isEvent()       {}
func (RedrawRequested) isEvent()    {}
func (Resized) isEvent()            {}
func (Shutdown) isEvent()           {}
