//go:build windows && !headless

package capture

import (
	"runtime"

	"golang.org/x/sys/windows"
)

func lockThread()   { runtime.LockOSThread() }
func unlockThread() { runtime.UnlockOSThread() }

func currentThreadID() uint32 {
	return windows.GetCurrentThreadId()
}
