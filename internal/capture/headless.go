//go:build headless

package capture

import "errors"

// The headless build has no OS capture surface; the provider serves
// synthetic monitors so the controller and taker paths can be driven
// without a desktop session.

// ErrAlreadyRunning mirrors the real single-instance error for code
// compiled under both tags.
var ErrAlreadyRunning = errors.New("another instance is already running")

// InstanceGuard is a no-op under headless builds.
type InstanceGuard struct{}

// AcquireInstance always succeeds headlessly.
func AcquireInstance() (*InstanceGuard, error) { return &InstanceGuard{}, nil }

// Release is a no-op.
func (g *InstanceGuard) Release() {}

// HotkeyRegistrar is inert headlessly; the hotkey callback is simply
// never invoked.
type HotkeyRegistrar struct{}

// RegisterHotkey accepts any key name and never fires.
func RegisterHotkey(name string, onHotkey func()) (*HotkeyRegistrar, error) {
	return &HotkeyRegistrar{}, nil
}

// Shutdown is a no-op.
func (r *HotkeyRegistrar) Shutdown() {}

// HeadlessProvider serves one synthetic 1920x1080 SDR monitor.
type HeadlessProvider struct{}

// NewPlatformProvider returns the headless provider.
func NewPlatformProvider() (Provider, error) {
	return &HeadlessProvider{}, nil
}

// ResolveActiveMonitor reports the synthetic monitor.
func (p *HeadlessProvider) ResolveActiveMonitor() (MonitorInfo, error) {
	return MonitorInfo{
		Rect:          Rect{X: 0, Y: 0, Width: 1920, Height: 1080},
		SDRWhite:      1.0,
		MaxBrightness: 1.0,
		Handle:        1,
	}, nil
}

// OpenSession fails: there is no surface to duplicate headlessly.
func (p *HeadlessProvider) OpenSession(MonitorInfo) (Session, error) {
	return nil, errors.New("capture is unavailable in a headless build")
}
