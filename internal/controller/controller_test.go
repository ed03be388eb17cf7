package controller

import (
	"errors"
	"testing"

	"github.com/hdrsnip/hdrsnip/internal/capture"
	"github.com/hdrsnip/hdrsnip/internal/gpu"
)

type fakeWindow struct {
	visible bool
	focused bool
	rect    [4]int32
	redraws int
}

func (w *fakeWindow) Show()  { w.visible = true }
func (w *fakeWindow) Hide()  { w.visible = false; w.focused = false }
func (w *fakeWindow) Focus() { w.focused = true }
func (w *fakeWindow) SetRect(x, y int32, width, height uint32) {
	w.rect = [4]int32{x, y, int32(width), int32(height)}
}
func (w *fakeWindow) RequestRedraw() { w.redraws++ }

type fakeTaker struct {
	captures int
}

func (t *fakeTaker) TakeCapture() { t.captures++ }

type fakeSaver struct {
	requests []SaveRequest
}

func (s *fakeSaver) Save(req SaveRequest) { s.requests = append(s.requests, req) }

func testMonitor() capture.MonitorInfo {
	return capture.MonitorInfo{
		Rect:          capture.Rect{X: 0, Y: 0, Width: 1920, Height: 1080},
		SDRWhite:      1.0,
		MaxBrightness: 6.0,
		Handle:        1,
	}
}

func newTestController() (*Controller, *fakeWindow, *fakeTaker, *fakeSaver, *gpu.RendererState) {
	window := &fakeWindow{}
	taker := &fakeTaker{}
	saver := &fakeSaver{}
	state := &gpu.RendererState{}
	ctrl := New(window, taker, saver, state, nil)
	return ctrl, window, taker, saver, state
}

// drive loads a capture to the Active state.
func drive(ctrl *Controller) {
	ctrl.HandleEvent(TakeCaptureHotkey{})
	ctrl.HandleEvent(FoundMonitor{Monitor: testMonitor()})
	ctrl.HandleEvent(GotCapture{Handle: 42, Width: 1920, Height: 1080})
	ctrl.HandleEvent(ImportedCapture{Image: &gpu.HDRImage{}})
	ctrl.HandleEvent(SelectedWhitepoint{Kind: WhitepointHDR, Value: 3.5})
}

func TestController_HotkeyStartsLoading(t *testing.T) {
	ctrl, _, taker, _, _ := newTestController()

	ctrl.HandleEvent(TakeCaptureHotkey{})
	if ctrl.State() != StateLoading {
		t.Fatalf("state = %v, want loading", ctrl.State())
	}
	if taker.captures != 1 {
		t.Errorf("captures = %d, want 1", taker.captures)
	}

	// A second hotkey during loading must not start another capture.
	ctrl.HandleEvent(TakeCaptureHotkey{})
	if taker.captures != 1 {
		t.Errorf("captures = %d after re-press, want 1", taker.captures)
	}
}

func TestController_AllArrivalsActivate(t *testing.T) {
	ctrl, window, _, _, state := newTestController()

	ctrl.HandleEvent(TakeCaptureHotkey{})
	ctrl.HandleEvent(FoundMonitor{Monitor: testMonitor()})
	if ctrl.State() != StateLoading {
		t.Fatal("monitor alone must not activate")
	}
	if window.rect != [4]int32{0, 0, 1920, 1080} {
		t.Errorf("window rect = %v, want the monitor rect", window.rect)
	}

	ctrl.HandleEvent(GotCapture{Handle: 42, Width: 1920, Height: 1080})
	img := &gpu.HDRImage{}
	ctrl.HandleEvent(ImportedCapture{Image: img})
	if ctrl.State() != StateLoading {
		t.Fatal("three arrivals must not activate")
	}

	ctrl.HandleEvent(SelectedWhitepoint{Kind: WhitepointHDR, Value: 3.5})
	if ctrl.State() != StateActive {
		t.Fatalf("state = %v after all four arrivals, want active", ctrl.State())
	}
	if !window.visible || !window.focused {
		t.Error("activation must show and focus the window")
	}

	snap := state.Snapshot()
	if snap.HDRImage != img {
		t.Error("renderer state must hold the imported image")
	}
	if snap.Whitepoint != 3.5 || snap.MaxBrightness != 6.0 {
		t.Errorf("published whitepoint/brightness = %v/%v", snap.Whitepoint, snap.MaxBrightness)
	}
	if snap.Selection != [2][2]float32{{0, 0}, {1920, 1080}} {
		t.Errorf("initial selection = %v, want the full monitor", snap.Selection)
	}
}

// Hotkey then escape with no mouse movement: Inactive -> Loading ->
// Active -> Inactive with no save submitted.
func TestController_EscapeDiscardsWithoutSaving(t *testing.T) {
	ctrl, window, _, saver, state := newTestController()

	drive(ctrl)
	ctrl.HandleEvent(EscapePressed{})

	if ctrl.State() != StateInactive {
		t.Fatalf("state = %v, want inactive", ctrl.State())
	}
	if len(saver.requests) != 0 {
		t.Error("escape must not submit a save")
	}
	if window.visible {
		t.Error("escape must hide the window")
	}
	if state.Snapshot().HDRImage != nil {
		t.Error("escape must clear the published image")
	}
}

func TestController_EnterSubmitsSave(t *testing.T) {
	ctrl, _, _, saver, _ := newTestController()

	drive(ctrl)
	ctrl.HandleEvent(EnterPressed{})

	if ctrl.State() != StateInactive {
		t.Fatalf("state = %v, want inactive", ctrl.State())
	}
	if len(saver.requests) != 1 {
		t.Fatalf("saves = %d, want 1", len(saver.requests))
	}
	req := saver.requests[0]
	if req.Image == nil {
		t.Error("save request must carry the image")
	}
	if req.Whitepoint != 3.5 {
		t.Errorf("save whitepoint = %v, want 3.5", req.Whitepoint)
	}
	if req.Selection.Empty() {
		t.Error("full-monitor selection must not be empty")
	}
}

func TestController_DragSelectionSaveOnRelease(t *testing.T) {
	ctrl, _, _, saver, state := newTestController()

	drive(ctrl)
	ctrl.HandleEvent(MousePressed{Pos: [2]float32{100, 100}})
	ctrl.HandleEvent(MouseMoved{Pos: [2]float32{500, 400}})
	ctrl.HandleEvent(MouseReleased{})

	if len(saver.requests) != 1 {
		t.Fatalf("saves = %d, want 1", len(saver.requests))
	}
	x, y, w, h := saver.requests[0].Selection.Rect()
	if x != 100 || y != 100 || w != 400 || h != 300 {
		t.Errorf("selection rect = (%d,%d %dx%d), want (100,100 400x300)", x, y, w, h)
	}
	if state.Snapshot().HDRImage != nil {
		t.Error("save must clear the published image")
	}
}

// A click without a drag cancels: the controller stays active and the
// previously published selection is untouched.
func TestController_EmptyDragKeepsSelection(t *testing.T) {
	ctrl, _, _, saver, state := newTestController()

	drive(ctrl)
	before := state.Snapshot().Selection

	ctrl.HandleEvent(MousePressed{Pos: [2]float32{100, 100}})
	ctrl.HandleEvent(MouseReleased{})

	if ctrl.State() != StateActive {
		t.Fatalf("state = %v, want still active", ctrl.State())
	}
	if len(saver.requests) != 0 {
		t.Error("empty selection must not save")
	}
	after := state.Snapshot().Selection
	if after != before {
		t.Errorf("selection changed across a no-drag click: %v -> %v", before, after)
	}
	if after != [2][2]float32{{0, 0}, {1920, 1080}} {
		t.Errorf("selection = %v, want the full monitor from loading", after)
	}

	// Enter afterwards still saves the surviving full-monitor selection.
	ctrl.HandleEvent(EnterPressed{})
	if len(saver.requests) != 1 {
		t.Fatalf("saves = %d after enter, want 1", len(saver.requests))
	}
	if saver.requests[0].Selection.Empty() {
		t.Error("the preserved selection must still be saveable")
	}
}

// Drag positions outside the window clamp to its bounds.
func TestController_DragClampsToWindow(t *testing.T) {
	ctrl, _, _, saver, _ := newTestController()

	drive(ctrl)
	ctrl.HandleEvent(MousePressed{Pos: [2]float32{1800, 1000}})
	ctrl.HandleEvent(MouseMoved{Pos: [2]float32{5000, -50}})
	ctrl.HandleEvent(MouseReleased{})

	if len(saver.requests) != 1 {
		t.Fatalf("saves = %d, want 1", len(saver.requests))
	}
	x, y, w, h := saver.requests[0].Selection.Rect()
	if x != 1800 || y != 0 || w != 120 || h != 1000 {
		t.Errorf("selection rect = (%d,%d %dx%d), want (1800,0 120x1000)", x, y, w, h)
	}
}

func TestController_ErrorDuringLoadAborts(t *testing.T) {
	ctrl, window, _, _, _ := newTestController()

	ctrl.HandleEvent(TakeCaptureHotkey{})
	ctrl.HandleEvent(FoundMonitor{Monitor: testMonitor()})
	ctrl.HandleEvent(ErrorDuringLoad{Err: errors.New("no capture for you")})

	if ctrl.State() != StateInactive {
		t.Fatalf("state = %v, want inactive", ctrl.State())
	}
	if window.visible {
		t.Error("error must hide the window")
	}

	// The machine must accept a fresh capture afterwards.
	ctrl.HandleEvent(TakeCaptureHotkey{})
	if ctrl.State() != StateLoading {
		t.Error("controller must recover after a load error")
	}
}

func TestController_MouseIgnoredWhileInactive(t *testing.T) {
	ctrl, _, _, saver, _ := newTestController()

	ctrl.HandleEvent(MousePressed{Pos: [2]float32{10, 10}})
	ctrl.HandleEvent(MouseMoved{Pos: [2]float32{50, 50}})
	ctrl.HandleEvent(MouseReleased{})
	ctrl.HandleEvent(EnterPressed{})

	if ctrl.State() != StateInactive {
		t.Fatalf("state = %v, want inactive", ctrl.State())
	}
	if len(saver.requests) != 0 {
		t.Error("inactive controller must not save")
	}
}

func TestController_ShutdownExits(t *testing.T) {
	ctrl, _, taker, _, _ := newTestController()

	drive(ctrl)
	ctrl.HandleEvent(Shutdown{})
	if ctrl.State() != StateExited {
		t.Fatalf("state = %v, want exited", ctrl.State())
	}

	// Nothing moves the machine after exit.
	ctrl.HandleEvent(TakeCaptureHotkey{})
	if ctrl.State() != StateExited || taker.captures != 1 {
		t.Error("exited controller must ignore further events")
	}
}

func TestController_LateImportAfterShutdownIsDropped(t *testing.T) {
	ctrl, _, _, _, state := newTestController()

	ctrl.HandleEvent(TakeCaptureHotkey{})
	ctrl.HandleEvent(Shutdown{})
	ctrl.HandleEvent(ImportedCapture{Image: &gpu.HDRImage{}})

	if state.Snapshot().HDRImage != nil {
		t.Error("an import arriving after shutdown must not be published")
	}
}
