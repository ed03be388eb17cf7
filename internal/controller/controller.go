package controller

import (
	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/capture"
	"github.com/hdrsnip/hdrsnip/internal/gpu"
	"github.com/hdrsnip/hdrsnip/internal/logx"
)

// State is the controller's position in its capture lifecycle
//.
type State int

const (
	StateInactive State = iota
	StateLoading
	StateActive
	StateExited
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Window is the subset of the window thread's surface the controller
// drives: visibility, focus, and geometry.
type Window interface {
	Show()
	Hide()
	Focus()
	SetRect(x, y int32, width, height uint32)
	RequestRedraw()
}

// Taker starts an asynchronous capture; results arrive back on the
// controller's event channel as FoundMonitor / GotCapture /
// ImportedCapture / SelectedWhitepoint or ErrorDuringLoad.
type Taker interface {
	TakeCapture()
}

// SaveRequest transfers ownership of the HDR image to the saver
// thread, which tonemaps, crops, encodes, and writes it.
type SaveRequest struct {
	Image      *gpu.HDRImage
	Whitepoint float32
	Selection  gpu.Selection
}

// Saver accepts save requests; failures are reported, not fatal.
type Saver interface {
	Save(req SaveRequest)
}

// Controller is the single writer of the capture state machine. All
// methods are called from the window event thread only.
type Controller struct {
	log      *zap.Logger
	window   Window
	taker    Taker
	saver    Saver
	rstate   *gpu.RendererState
	waitIdle func()

	state State

	// Loading-phase arrivals; the transition to Active needs all four.
	haveMonitor    bool
	haveCapture    bool
	haveImport     bool
	haveWhitepoint bool

	monitor    capture.MonitorInfo
	handle     uintptr
	img        *gpu.HDRImage
	whitepoint float32

	windowExtent [2]uint32
	selection    gpu.Selection

	// A press only records its origin; the selection is not touched
	// until the drag actually moves, so a plain click-release keeps
	// whatever selection was already active.
	dragging    bool
	dragMoved   bool
	pressOrigin [2]int32
}

// New wires the controller to its collaborators. rstate is the
// renderer's shared state; the controller is its only writer.
// waitIdle blocks until no GPU work is in flight; it runs before any
// HDR image the renderer may still be drawing is destroyed. May be
// nil when no render thread exists (tests).
func New(window Window, taker Taker, saver Saver, rstate *gpu.RendererState, waitIdle func()) *Controller {
	return &Controller{
		log:      logx.Named("controller"),
		window:   window,
		taker:    taker,
		saver:    saver,
		rstate:   rstate,
		waitIdle: waitIdle,
	}
}

// State returns the current machine state; used by tests and the
// event loop's shutdown path.
func (c *Controller) State() State { return c.state }

// HandleEvent advances the state machine by one event.
func (c *Controller) HandleEvent(ev Event) {
	if c.state == StateExited {
		return
	}

	switch e := ev.(type) {
	case Shutdown:
		c.shutdown()
	case Resized:
		c.windowExtent = [2]uint32{e.Width, e.Height}
	case TakeCaptureHotkey:
		if c.state == StateInactive {
			c.startLoading()
		}
	case FoundMonitor:
		if c.state == StateLoading {
			c.onFoundMonitor(e.Monitor)
		}
	case GotCapture:
		if c.state == StateLoading {
			c.handle = e.Handle
			c.haveCapture = true
			c.maybeActivate()
		}
	case ImportedCapture:
		if c.state == StateLoading {
			c.onImportedCapture(e.Image)
		} else if e.Image != nil {
			// Arrived after the capture was cancelled; nothing will draw
			// or save it.
			e.Image.Destroy()
		}
	case SelectedWhitepoint:
		if c.state == StateLoading {
			c.whitepoint = e.Value
			c.rstate.SetWhitepoint(e.Value)
			c.haveWhitepoint = true
			c.maybeActivate()
		}
	case ErrorDuringLoad:
		if c.state == StateLoading {
			c.log.Error("capture failed during load", zap.Error(e.Err))
			c.abort()
		}
	case MouseMoved:
		if c.state == StateActive {
			c.onMouseMoved(e.Pos)
		}
	case MousePressed:
		if c.state == StateActive {
			c.dragging = true
			c.dragMoved = false
			c.pressOrigin = [2]int32{int32(e.Pos[0]), int32(e.Pos[1])}
		}
	case MouseReleased:
		if c.state == StateActive {
			c.onMouseReleased()
		}
	case EscapePressed:
		if c.state == StateActive {
			c.log.Info("capture discarded")
			c.abort()
		}
	case EnterPressed:
		if c.state == StateActive {
			c.accept()
		}
	case RedrawRequested:
		c.window.RequestRedraw()
	}
}

func (c *Controller) startLoading() {
	c.state = StateLoading
	c.haveMonitor = false
	c.haveCapture = false
	c.haveImport = false
	c.haveWhitepoint = false
	c.dragging = false
	c.dragMoved = false
	c.log.Debug("capture requested")
	c.taker.TakeCapture()
}

func (c *Controller) onFoundMonitor(mon capture.MonitorInfo) {
	c.monitor = mon
	c.haveMonitor = true

	c.window.SetRect(mon.Rect.X, mon.Rect.Y, mon.Rect.Width, mon.Rect.Height)
	c.windowExtent = [2]uint32{mon.Rect.Width, mon.Rect.Height}

	// Selection starts as the full monitor.
	c.selection = gpu.Selection{
		Start: [2]int32{0, 0},
		End:   [2]int32{int32(mon.Rect.Width), int32(mon.Rect.Height)},
	}
	c.publishSelection()
	c.maybeActivate()
}

func (c *Controller) onImportedCapture(img *gpu.HDRImage) {
	c.img = img
	c.haveImport = true
	prev := c.rstate.SetCapture(img, c.monitor.MaxBrightness)
	c.destroyAfterIdle(prev)
	c.maybeActivate()
}

func (c *Controller) maybeActivate() {
	if !(c.haveMonitor && c.haveCapture && c.haveImport && c.haveWhitepoint) {
		return
	}
	c.state = StateActive
	c.window.Show()
	c.window.Focus()
	c.log.Info("capture ready",
		zap.Float32("whitepoint", c.whitepoint),
		zap.Uint32("width", c.monitor.Rect.Width),
		zap.Uint32("height", c.monitor.Rect.Height))
}

func (c *Controller) onMouseMoved(pos [2]float32) {
	c.rstate.SetMouse(pos)
	if c.dragging {
		c.selection.Start = c.pressOrigin
		c.selection.End = [2]int32{
			clampI32(int32(pos[0]), 0, int32(c.windowExtent[0])),
			clampI32(int32(pos[1]), 0, int32(c.windowExtent[1])),
		}
		c.dragMoved = true
		c.publishSelection()
	}
}

func (c *Controller) onMouseReleased() {
	if !c.dragging {
		return
	}
	c.dragging = false
	if !c.dragMoved {
		// A click that never dragged cancels without touching the
		// existing selection.
		return
	}
	if c.selection.Empty() {
		return
	}
	c.accept()
}

func clampI32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// accept hands the capture to the saver and returns to Inactive. The
// saver now owns the HDR image.
func (c *Controller) accept() {
	if c.selection.Empty() {
		c.log.Debug("selection is empty, nothing to save")
		c.abort()
		return
	}
	img := c.rstate.Clear()
	c.window.Hide()
	c.state = StateInactive
	c.img = nil
	c.saver.Save(SaveRequest{
		Image:      img,
		Whitepoint: c.whitepoint,
		Selection:  c.selection,
	})
	c.log.Info("capture submitted for save")
}

// abort discards any in-progress capture and returns to Inactive.
func (c *Controller) abort() {
	img := c.rstate.Clear()
	c.window.Hide()
	c.state = StateInactive
	c.img = nil
	c.destroyAfterIdle(img)
}

func (c *Controller) shutdown() {
	img := c.rstate.Clear()
	c.destroyAfterIdle(img)
	c.window.Hide()
	c.state = StateExited
	c.log.Info("controller exited")
}

// destroyAfterIdle waits out any frame still sampling the image
// before releasing it.
func (c *Controller) destroyAfterIdle(img *gpu.HDRImage) {
	if img == nil {
		return
	}
	if c.waitIdle != nil {
		c.waitIdle()
	}
	img.Destroy()
}

func (c *Controller) publishSelection() {
	c.rstate.SetSelection(
		[2]float32{float32(c.selection.Start[0]), float32(c.selection.Start[1])},
		[2]float32{float32(c.selection.End[0]), float32(c.selection.End[1])},
	)
}
