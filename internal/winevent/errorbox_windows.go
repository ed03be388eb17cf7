//go:build windows && !headless

package winevent

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var procMessageBoxW = user32.NewProc("MessageBoxW")

const (
	mbOK        = 0x0
	mbIconError = 0x10
)

// ShowErrorBox shows the single modal failure dialog the user sees
// for unrecoverable errors; details go to the logs.
func ShowErrorBox(title, message string) {
	t, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return
	}
	m, err := windows.UTF16PtrFromString(message + "\n\nSee logs for details.")
	if err != nil {
		return
	}
	procMessageBoxW.Call(0, uintptr(unsafe.Pointer(m)), uintptr(unsafe.Pointer(t)), mbOK|mbIconError)
}
