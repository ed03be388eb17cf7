//go:build !windows && !headless

package winevent

import (
	"errors"

	vk "github.com/goki/vulkan"

	"github.com/hdrsnip/hdrsnip/internal/gpu"
)

// Shared-handle capture only exists against the Windows compositor;
// other desktop platforms get the event pump but no renderer surface.

// CreateSurface fails off-Windows.
func (w *Window) CreateSurface(ctx *gpu.Context) (vk.Surface, error) {
	return vk.NullSurface, errors.New("capture surfaces are only supported on windows")
}

// ShowErrorBox is a no-op off-Windows.
func ShowErrorBox(title, message string) {}
