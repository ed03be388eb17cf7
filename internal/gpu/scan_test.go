package gpu

import (
	"math"
	"testing"

	vk "github.com/goki/vulkan"
)

func TestScanner_Float16Conversion(t *testing.T) {
	tests := []struct {
		name string
		bits uint16
		want float32
	}{
		{"zero", 0x0000, 0.0},
		{"one", 0x3C00, 1.0},
		{"half", 0x3800, 0.5},
		{"two", 0x4000, 2.0},
		{"pi-ish", 0x4248, 3.140625},
		{"max-normal", 0x7BFF, 65504.0},
		{"smallest-subnormal", 0x0001, 5.9604645e-8},
		{"negative-one", 0xBC00, -1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := float16ToFloat32(tt.bits)
			if got != tt.want {
				t.Errorf("float16ToFloat32(%#04x) = %v, want %v", tt.bits, got, tt.want)
			}
		})
	}
}

func TestScanner_Float16Infinity(t *testing.T) {
	if got := float16ToFloat32(0x7C00); !math.IsInf(float64(got), 1) {
		t.Errorf("expected +Inf, got %v", got)
	}
	if got := float16ToFloat32(0xFC00); !math.IsInf(float64(got), -1) {
		t.Errorf("expected -Inf, got %v", got)
	}
	if got := float16ToFloat32(0x7E00); !math.IsNaN(float64(got)) {
		t.Errorf("expected NaN, got %v", got)
	}
}

func TestScanner_OutputCount(t *testing.T) {
	tests := []struct {
		name         string
		extent       vk.Extent2D
		subgroupSize uint32
		want         uint32
	}{
		{"one pixel", vk.Extent2D{Width: 1, Height: 1}, 32, 1},
		{"exact rows", vk.Extent2D{Width: 64, Height: 2}, 32, 4},
		{"ragged row", vk.Extent2D{Width: 65, Height: 2}, 32, 6},
		{"subgroup of one", vk.Extent2D{Width: 4, Height: 4}, 1, 16},
		{"zero subgroup falls back", vk.Extent2D{Width: 64, Height: 1}, 0, 2},
		{"4k", vk.Extent2D{Width: 3840, Height: 2160}, 8, 480 * 2160},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanOutputCount(tt.extent, tt.subgroupSize)
			if got != tt.want {
				t.Errorf("scanOutputCount(%dx%d, %d) = %d, want %d",
					tt.extent.Width, tt.extent.Height, tt.subgroupSize, got, tt.want)
			}
		})
	}
}

func TestScanner_ReductionSchedule(t *testing.T) {
	tests := []struct {
		name         string
		inputLength  uint32
		subgroupSize uint32
		wantPasses   int
	}{
		{"single value needs no pass", 1, 32, 0},
		{"two values", 2, 32, 1},
		{"one full block", 1024 * 32, 32, 1},
		{"one block plus one", 1024*32 + 1, 32, 2},
		{"subgroup of one still terminates", 1 << 20, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule := reductionSchedule(tt.inputLength, tt.subgroupSize)
			if len(schedule) != tt.wantPasses {
				t.Fatalf("got %d passes %v, want %d", len(schedule), schedule, tt.wantPasses)
			}
			if tt.wantPasses > 0 && schedule[len(schedule)-1] != 1 {
				t.Errorf("schedule %v does not end at one value", schedule)
			}
			for i := 1; i < len(schedule); i++ {
				if schedule[i] >= schedule[i-1] {
					t.Errorf("schedule %v does not shrink at pass %d", schedule, i)
				}
			}
		})
	}
}

// A 3840x2160 capture must finish scanning within ten buffer passes
// for every plausible subgroup width.
func TestScanner_UHDScanBounded(t *testing.T) {
	extent := vk.Extent2D{Width: 3840, Height: 2160}
	for _, subgroup := range []uint32{8, 16, 32, 64} {
		outputs := scanOutputCount(extent, subgroup)
		passes := len(reductionSchedule(outputs, subgroup))
		if passes > 10 {
			t.Errorf("subgroup %d: %d buffer passes for UHD, want <= 10", subgroup, passes)
		}
	}
}
