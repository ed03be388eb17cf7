package gpu

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestSwapchain_SurfaceFormatScore(t *testing.T) {
	hdr := vk.SurfaceFormat{Format: vk.FormatR16g16b16a16Sfloat, ColorSpace: vk.ColorSpaceExtendedSrgbLinear}
	srgb := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	other := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	if !(surfaceFormatScore(hdr) < surfaceFormatScore(srgb)) {
		t.Error("HDR-native format must outrank sRGB")
	}
	if !(surfaceFormatScore(srgb) < surfaceFormatScore(other)) {
		t.Error("sRGB must outrank other formats")
	}

	// The HDR format in a non-HDR colour space is not HDR-native.
	mismatched := vk.SurfaceFormat{Format: vk.FormatR16g16b16a16Sfloat, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	if surfaceFormatScore(mismatched) == surfaceFormatScore(hdr) {
		t.Error("format without the extended-sRGB colour space must not score as HDR")
	}
}

func TestSwapchain_PresentModeScore(t *testing.T) {
	order := []vk.PresentMode{
		vk.PresentModeFifo,
		vk.PresentModeMailbox,
		vk.PresentModeFifoRelaxed,
		vk.PresentModeImmediate,
	}
	for i := 1; i < len(order); i++ {
		if !(presentModeScore(order[i-1]) < presentModeScore(order[i])) {
			t.Errorf("present mode %v must outrank %v", order[i-1], order[i])
		}
	}
}

func TestSwapchain_ClampExtent(t *testing.T) {
	tests := []struct {
		v, lo, hi, want uint32
	}{
		{5, 1, 10, 5},
		{0, 1, 10, 1},
		{20, 1, 10, 10},
	}
	for _, tt := range tests {
		if got := clampU32(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clampU32(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}
