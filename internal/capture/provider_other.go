//go:build !windows && !headless

package capture

import "errors"

// The shared-handle capture contract is Windows-only; other
// platforms compile but refuse to capture.

// ErrAlreadyRunning mirrors the Windows single-instance error.
var ErrAlreadyRunning = errors.New("another instance is already running")

// InstanceGuard is a no-op off-Windows.
type InstanceGuard struct{}

// AcquireInstance always succeeds off-Windows.
func AcquireInstance() (*InstanceGuard, error) { return &InstanceGuard{}, nil }

// Release is a no-op.
func (g *InstanceGuard) Release() {}

// HotkeyRegistrar is inert off-Windows.
type HotkeyRegistrar struct{}

// RegisterHotkey accepts any key name and never fires.
func RegisterHotkey(name string, onHotkey func()) (*HotkeyRegistrar, error) {
	return &HotkeyRegistrar{}, nil
}

// Shutdown is a no-op.
func (r *HotkeyRegistrar) Shutdown() {}

// NewPlatformProvider fails: there is no capture API to bind.
func NewPlatformProvider() (Provider, error) {
	return nil, errors.New("hdr capture is only supported on windows")
}
