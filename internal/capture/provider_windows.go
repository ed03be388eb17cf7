//go:build windows && !headless

package capture

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
)

var (
	user32              = windows.NewLazySystemDLL("user32.dll")
	procGetCursorPos    = user32.NewProc("GetCursorPos")
	procMonitorFromPt   = user32.NewProc("MonitorFromPoint")
	procGetMonitorInfoW = user32.NewProc("GetMonitorInfoW")
	procEnumDisplayMon  = user32.NewProc("EnumDisplayMonitors")
)

const (
	monitorDefaultToNull = 0

	// DISPLAYCONFIG defaults when the white-level query fails: treat
	// the panel as plain SDR.
	defaultSDRWhite      = 1.0
	defaultMaxBrightness = 1.0
)

type point struct {
	X, Y int32
}

type winRect struct {
	Left, Top, Right, Bottom int32
}

type monitorInfo struct {
	Size    uint32
	Monitor winRect
	Work    winRect
	Flags   uint32
}

// WindowsProvider resolves monitors and opens DXGI output-duplication
// sessions against them. It is the thin glue between the OS capture
// surface and the GPU core.
type WindowsProvider struct{}

// NewPlatformProvider returns the Windows capture provider.
func NewPlatformProvider() (Provider, error) {
	return &WindowsProvider{}, nil
}

// ResolveActiveMonitor finds the monitor the cursor is currently on.
// No monitor under the cursor maps to MonitorsMismatch; an empty
// monitor list maps to NoDisplay.
func (p *WindowsProvider) ResolveActiveMonitor() (MonitorInfo, error) {
	if !anyMonitorConnected() {
		return MonitorInfo{}, &gpuerr.NoDisplay{}
	}

	var pt point
	ret, _, _ := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	if ret == 0 {
		return MonitorInfo{}, &gpuerr.MonitorsMismatch{}
	}

	hmon, _, _ := procMonitorFromPt.Call(uintptr(pt.X), uintptr(pt.Y), monitorDefaultToNull)
	if hmon == 0 {
		return MonitorInfo{}, &gpuerr.MonitorsMismatch{}
	}

	var info monitorInfo
	info.Size = uint32(unsafe.Sizeof(info))
	ret, _, _ = procGetMonitorInfoW.Call(hmon, uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return MonitorInfo{}, &gpuerr.MonitorsMismatch{}
	}

	sdrWhite, maxBrightness := queryLuminance(hmon)

	return MonitorInfo{
		Rect: Rect{
			X:      info.Monitor.Left,
			Y:      info.Monitor.Top,
			Width:  uint32(info.Monitor.Right - info.Monitor.Left),
			Height: uint32(info.Monitor.Bottom - info.Monitor.Top),
		},
		SDRWhite:      sdrWhite,
		MaxBrightness: maxBrightness,
		Handle:        hmon,
	}, nil
}

func anyMonitorConnected() bool {
	var count int
	cb := windows.NewCallback(func(hmon, hdc, rect, lparam uintptr) uintptr {
		count++
		return 1
	})
	procEnumDisplayMon.Call(0, 0, cb, 0)
	return count > 0
}

// queryLuminance reads the SDR white level and maximum luminance from
// the first active display-config path that answers, converted from
// nits to scRGB units (80 nits = 1.0); the paths are not matched
// against hmon. Falls back to SDR defaults when the query path is
// unavailable.
func queryLuminance(hmon uintptr) (sdrWhite, maxBrightness float32) {
	sdrWhite, maxBrightness = defaultSDRWhite, defaultMaxBrightness

	white, ok := querySDRWhiteLevel(hmon)
	if ok {
		sdrWhite = white / 80.0
	}
	max, ok := queryMaxLuminance(hmon)
	if ok {
		maxBrightness = max / 80.0
	}
	if maxBrightness < sdrWhite {
		maxBrightness = sdrWhite
	}
	return sdrWhite, maxBrightness
}

// OpenSession negotiates a DXGI output-duplication session for the
// monitor. The session is cached by the taker per monitor handle.
func (p *WindowsProvider) OpenSession(mon MonitorInfo) (Session, error) {
	return newDuplicationSession(mon)
}
