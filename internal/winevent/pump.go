// Package winevent is the window/event-loop thread:
// it owns the OS window, translates input into controller events, and
// exposes the native handles the renderer's surface is created from.
package winevent

import (
	"github.com/hdrsnip/hdrsnip/internal/capture"
	"github.com/hdrsnip/hdrsnip/internal/controller"
	"github.com/hdrsnip/hdrsnip/internal/gpu"
)

// eventBuffer sizes the event channel; input events are small and the
// controller drains them every loop turn, so backpressure here only
// matters under pathological stalls.
const eventBuffer = 256

// Pump carries events from the window thread (and the background
// threads' adapters) to the controller.
type Pump struct {
	events chan controller.Event
}

// NewPump returns an empty event pump.
func NewPump() *Pump {
	return &Pump{events: make(chan controller.Event, eventBuffer)}
}

// Events is the controller's receive side.
func (p *Pump) Events() <-chan controller.Event { return p.events }

// Post enqueues one event. Senders are shared by the window thread,
// the capture taker's adapter, and the hotkey registrar.
func (p *Pump) Post(ev controller.Event) {
	p.events <- ev
}

// TakerEvents adapts the capture taker's callbacks onto the pump.
type TakerEvents struct {
	Pump *Pump
}

func (t TakerEvents) FoundMonitor(mon capture.MonitorInfo) {
	t.Pump.Post(controller.FoundMonitor{Monitor: mon})
}

func (t TakerEvents) GotCapture(handle uintptr, width, height uint32) {
	t.Pump.Post(controller.GotCapture{Handle: handle, Width: width, Height: height})
}

func (t TakerEvents) ImportedCapture(img *gpu.HDRImage) {
	t.Pump.Post(controller.ImportedCapture{Image: img})
}

func (t TakerEvents) SelectedWhitepoint(hdr bool, value float32) {
	kind := controller.WhitepointSDR
	if hdr {
		kind = controller.WhitepointHDR
	}
	t.Pump.Post(controller.SelectedWhitepoint{Kind: kind, Value: value})
}

func (t TakerEvents) Error(err error) {
	t.Pump.Post(controller.ErrorDuringLoad{Err: err})
}
