//go:build !headless

package winevent

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/controller"
	"github.com/hdrsnip/hdrsnip/internal/logx"
)

// Window is the capture overlay window, driven by Ebiten purely as a
// window and input-event pump; the Vulkan renderer presents to the
// native surface directly.
type Window struct {
	log  *zap.Logger
	pump *Pump

	width, height int
	lastMouseX    int
	lastMouseY    int

	redraw chan struct{}
}

// NewWindow creates the (initially hidden) overlay window.
func NewWindow(pump *Pump) *Window {
	return &Window{
		log:    logx.Named("winevent"),
		pump:   pump,
		width:  1,
		height: 1,
		redraw: make(chan struct{}, 1),
	}
}

// Run enters the event loop on the calling (main) thread and blocks
// until shutdown. A window close posts Shutdown to the controller.
func (w *Window) Run() error {
	ebiten.SetWindowTitle("hdrsnip")
	ebiten.SetWindowDecorated(false)
	ebiten.SetWindowFloating(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetWindowSize(w.width, w.height)
	ebiten.MinimizeWindow()

	err := ebiten.RunGame(w)
	w.pump.Post(controller.Shutdown{})
	return err
}

// Update translates this tick's input into controller events.
func (w *Window) Update() error {
	cx, cy := ebiten.CursorPosition()
	if cx != w.lastMouseX || cy != w.lastMouseY {
		w.lastMouseX, w.lastMouseY = cx, cy
		w.pump.Post(controller.MouseMoved{Pos: [2]float32{float32(cx), float32(cy)}})
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		w.pump.Post(controller.MousePressed{Pos: [2]float32{float32(cx), float32(cy)}})
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		w.pump.Post(controller.MouseReleased{})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		w.pump.Post(controller.EscapePressed{})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		w.pump.Post(controller.EnterPressed{})
	}
	return nil
}

// Draw is intentionally empty: presentation happens on the render
// thread's own swapchain, not through Ebiten's framebuffer.
func (w *Window) Draw(screen *ebiten.Image) {}

// Layout reports resizes to the controller and keeps the logical size
// equal to the window size.
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != w.width || outsideHeight != w.height {
		w.width, w.height = outsideWidth, outsideHeight
		w.pump.Post(controller.Resized{Width: uint32(outsideWidth), Height: uint32(outsideHeight)})
	}
	return outsideWidth, outsideHeight
}

// Show restores the minimized overlay.
func (w *Window) Show() {
	ebiten.RestoreWindow()
}

// Hide minimizes the overlay between captures.
func (w *Window) Hide() {
	ebiten.MinimizeWindow()
}

// Focus raises the window. Ebiten restores focus with the window;
// nothing further is needed.
func (w *Window) Focus() {
	ebiten.RestoreWindow()
}

// SetRect moves and sizes the overlay to cover the target monitor.
func (w *Window) SetRect(x, y int32, width, height uint32) {
	ebiten.SetWindowPosition(int(x), int(y))
	ebiten.SetWindowSize(int(width), int(height))
}

// RequestRedraw nudges the render thread.
func (w *Window) RequestRedraw() {
	select {
	case w.redraw <- struct{}{}:
	default:
	}
}

// Redraw is the render thread's wakeup channel.
func (w *Window) Redraw() <-chan struct{} { return w.redraw }
