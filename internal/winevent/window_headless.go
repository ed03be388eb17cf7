//go:build headless

package winevent

import (
	"errors"

	vk "github.com/goki/vulkan"

	"github.com/hdrsnip/hdrsnip/internal/controller"
	"github.com/hdrsnip/hdrsnip/internal/gpu"
)

// Window is the headless stand-in: no OS window, events only arrive
// through the pump directly. It records the calls the controller
// makes so tests can assert on them.
type Window struct {
	pump *Pump

	Visible bool
	Focused bool
	Rect    [4]int32

	redraw chan struct{}
}

// NewWindow returns the headless window.
func NewWindow(pump *Pump) *Window {
	return &Window{pump: pump, redraw: make(chan struct{}, 1)}
}

// Run returns immediately; headless builds have no OS event source of
// their own.
func (w *Window) Run() error {
	return nil
}

// Show marks the window visible.
func (w *Window) Show() { w.Visible = true }

// Hide marks the window hidden and unfocused.
func (w *Window) Hide() { w.Visible = false; w.Focused = false }

// Focus marks the window focused.
func (w *Window) Focus() { w.Focused = true }

// SetRect records the requested geometry.
func (w *Window) SetRect(x, y int32, width, height uint32) {
	w.Rect = [4]int32{x, y, int32(width), int32(height)}
	w.pump.Post(controller.Resized{Width: width, Height: height})
}

// RequestRedraw nudges the (absent) render thread.
func (w *Window) RequestRedraw() {
	select {
	case w.redraw <- struct{}{}:
	default:
	}
}

// Redraw is the render thread's wakeup channel.
func (w *Window) Redraw() <-chan struct{} { return w.redraw }

// CreateSurface fails: headless builds have no presentable surface,
// so no render thread is started.
func (w *Window) CreateSurface(ctx *gpu.Context) (vk.Surface, error) {
	return vk.NullSurface, errors.New("no surface in a headless build")
}

// ShowErrorBox is a no-op in a headless build.
func ShowErrorBox(title, message string) {}
