//go:build windows && !headless

package capture

import (
	"fmt"
	"strings"
	"unsafe"

	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/logx"
)

var (
	procRegisterHotKey   = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey = user32.NewProc("UnregisterHotKey")
	procGetMessageW      = user32.NewProc("GetMessageW")
	procPostThreadMsgW   = user32.NewProc("PostThreadMessageW")
)

const (
	wmHotkey = 0x0312
	wmQuit   = 0x0012

	hotkeyID = 1
)

// virtualKeys maps the config file's hotkey names to Win32 virtual
// key codes.
var virtualKeys = map[string]uint32{
	"PrintScreen": 0x2C,
	"F1":          0x70, "F2": 0x71, "F3": 0x72, "F4": 0x73,
	"F5": 0x74, "F6": 0x75, "F7": 0x76, "F8": 0x77,
	"F9": 0x78, "F10": 0x79, "F11": 0x7A, "F12": 0x7B,
	"Pause": 0x13, "Insert": 0x2D, "Home": 0x24, "End": 0x23,
}

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

// HotkeyRegistrar owns the global hotkey and its message loop thread.
// The loop calls onHotkey for each press; Shutdown posts WM_QUIT and
// joins.
type HotkeyRegistrar struct {
	log      *zap.Logger
	threadID uint32
	done     chan struct{}
}

// RegisterHotkey registers the named key system-wide and starts the
// message loop. An unknown key name fails with an error.
func RegisterHotkey(name string, onHotkey func()) (*HotkeyRegistrar, error) {
	vk, ok := virtualKeys[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("unknown hotkey %q", name)
	}

	r := &HotkeyRegistrar{
		log:  logx.Named("capture.hotkey"),
		done: make(chan struct{}),
	}

	registered := make(chan error, 1)
	go func() {
		defer close(r.done)

		// Hotkeys are delivered to the registering thread's message
		// queue, so registration and the loop share this goroutine's
		// OS thread.
		lockThread()
		defer unlockThread()
		r.threadID = currentThreadID()

		ret, _, err := procRegisterHotKey.Call(0, hotkeyID, 0, uintptr(vk))
		if ret == 0 {
			registered <- fmt.Errorf("registering hotkey %q: %w", name, err)
			return
		}
		registered <- nil
		defer procUnregisterHotKey.Call(0, hotkeyID)

		var m msg
		for {
			ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			if int32(ret) <= 0 || m.Message == wmQuit {
				return
			}
			if m.Message == wmHotkey && m.WParam == hotkeyID {
				r.log.Debug("hotkey pressed", zap.String("key", name))
				onHotkey()
			}
		}
	}()

	if err := <-registered; err != nil {
		return nil, err
	}
	return r, nil
}

// Shutdown unregisters the hotkey by ending its message loop.
func (r *HotkeyRegistrar) Shutdown() {
	procPostThreadMsgW.Call(uintptr(r.threadID), wmQuit, 0, 0)
	<-r.done
}
