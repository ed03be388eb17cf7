//go:build windows && !headless

package capture

import (
	"errors"

	"golang.org/x/sys/windows"
)

const instanceMutexName = "Global\\hdrsnip-single-instance"

// ErrAlreadyRunning means another process holds the instance mutex.
var ErrAlreadyRunning = errors.New("another instance is already running")

// InstanceGuard holds the named OS mutex for the process lifetime,
// the single-instance primitive other launches bounce off.
type InstanceGuard struct {
	handle windows.Handle
}

// AcquireInstance creates the named mutex; a pre-existing mutex means
// another instance owns it and the process must exit non-zero.
func AcquireInstance() (*InstanceGuard, error) {
	name, err := windows.UTF16PtrFromString(instanceMutexName)
	if err != nil {
		return nil, err
	}
	handle, err := windows.CreateMutex(nil, false, name)
	if err != nil {
		if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
			if handle != 0 {
				windows.CloseHandle(handle)
			}
			return nil, ErrAlreadyRunning
		}
		return nil, err
	}
	return &InstanceGuard{handle: handle}, nil
}

// Release closes the mutex; called on process exit.
func (g *InstanceGuard) Release() {
	if g.handle != 0 {
		windows.CloseHandle(g.handle)
		g.handle = 0
	}
}
