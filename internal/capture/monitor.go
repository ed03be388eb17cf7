// Package capture is the capture-taker side of the pipeline: monitor
// enumeration, the OS shared-handle capture API, the per-monitor
// capture-session cache, the global hotkey, and the single-instance
// guard. The GPU core consumes only the integer handle and extent it
// produces.
package capture

// Rect is a monitor rectangle in virtual-screen pixel coordinates.
type Rect struct {
	X, Y          int32
	Width, Height uint32
}

// MonitorInfo describes one monitor as reported by the OS: its
// rectangle, its SDR reference white and maximum brightness in scRGB
// units, and the opaque OS monitor handle.
type MonitorInfo struct {
	Rect          Rect
	SDRWhite      float32
	MaxBrightness float32
	Handle        uintptr
}

// Contains reports whether the point lies within the monitor rect.
func (r Rect) Contains(x, y int32) bool {
	return x >= r.X && y >= r.Y &&
		x < r.X+int32(r.Width) && y < r.Y+int32(r.Height)
}
