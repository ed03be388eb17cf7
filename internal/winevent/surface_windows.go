//go:build windows && !headless

package winevent

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"golang.org/x/sys/windows"

	"github.com/hdrsnip/hdrsnip/internal/gpu"
	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
)

var (
	user32          = windows.NewLazySystemDLL("user32.dll")
	procFindWindowW = user32.NewProc("FindWindowW")
)

// NativeWindowHandle looks up the overlay window's HWND by its title.
// Ebiten does not expose the native handle directly; the title is set
// before the event loop starts, so the lookup is stable.
func (w *Window) NativeWindowHandle() (uintptr, error) {
	title, err := windows.UTF16PtrFromString("hdrsnip")
	if err != nil {
		return 0, err
	}
	hwnd, _, _ := procFindWindowW.Call(0, uintptr(unsafe.Pointer(title)))
	if hwnd == 0 {
		return 0, &gpuerr.NoDisplay{}
	}
	return hwnd, nil
}

// CreateSurface makes the Vulkan surface the renderer's swapchain
// presents to.
func (w *Window) CreateSurface(ctx *gpu.Context) (vk.Surface, error) {
	hwnd, err := w.NativeWindowHandle()
	if err != nil {
		return vk.NullSurface, err
	}
	var surface vk.Surface
	if res := vk.CreateWindowSurface(ctx.Instance(), hwnd, nil, &surface); res != vk.Success {
		return vk.NullSurface, &gpuerr.VkError{Call: "vkCreateWin32Surface", Result: int32(res)}
	}
	return surface, nil
}
