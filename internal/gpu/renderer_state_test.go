package gpu

import "testing"

func TestSelection_Rect(t *testing.T) {
	tests := []struct {
		name                  string
		sel                   Selection
		wantX, wantY          int32
		wantWidth, wantHeight int32
	}{
		{"ordered", Selection{Start: [2]int32{10, 20}, End: [2]int32{110, 220}}, 10, 20, 100, 200},
		{"reversed", Selection{Start: [2]int32{110, 220}, End: [2]int32{10, 20}}, 10, 20, 100, 200},
		{"mixed corners", Selection{Start: [2]int32{110, 20}, End: [2]int32{10, 220}}, 10, 20, 100, 200},
		{"degenerate", Selection{Start: [2]int32{50, 50}, End: [2]int32{50, 50}}, 50, 50, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, w, h := tt.sel.Rect()
			if x != tt.wantX || y != tt.wantY || w != tt.wantWidth || h != tt.wantHeight {
				t.Errorf("Rect() = (%d,%d %dx%d), want (%d,%d %dx%d)",
					x, y, w, h, tt.wantX, tt.wantY, tt.wantWidth, tt.wantHeight)
			}
		})
	}
}

func TestSelection_Empty(t *testing.T) {
	if !(Selection{Start: [2]int32{5, 5}, End: [2]int32{5, 9}}).Empty() {
		t.Error("zero-width selection must be empty")
	}
	if !(Selection{}).Empty() {
		t.Error("zero selection must be empty")
	}
	if (Selection{End: [2]int32{1, 1}}).Empty() {
		t.Error("1x1 selection must not be empty")
	}
}

func TestSelection_Valid(t *testing.T) {
	bounds := Selection{Start: [2]int32{0, 0}, End: [2]int32{1920, 1080}}
	if !bounds.Valid(1920, 1080) {
		t.Error("full-window selection must be valid")
	}
	outside := Selection{Start: [2]int32{-1, 0}, End: [2]int32{10, 10}}
	if outside.Valid(1920, 1080) {
		t.Error("negative coordinate must be invalid")
	}
	past := Selection{Start: [2]int32{0, 0}, End: [2]int32{1921, 10}}
	if past.Valid(1920, 1080) {
		t.Error("coordinate past the window must be invalid")
	}
}

func TestScreenSpace(t *testing.T) {
	tests := []struct {
		name          string
		px            [2]float32
		width, height float32
		want          [2]float32
	}{
		{"origin", [2]float32{0, 0}, 1920, 1080, [2]float32{-1, -1}},
		{"center", [2]float32{960, 540}, 1920, 1080, [2]float32{0, 0}},
		{"far corner", [2]float32{1920, 1080}, 1920, 1080, [2]float32{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScreenSpace(tt.px, tt.width, tt.height)
			if got != tt.want {
				t.Errorf("ScreenSpace(%v) = %v, want %v", tt.px, got, tt.want)
			}
		})
	}
}

func TestRendererState_SnapshotRoundTrip(t *testing.T) {
	var state RendererState
	img := &HDRImage{}

	if prev := state.SetCapture(img, 6.5); prev != nil {
		t.Errorf("first SetCapture returned %v, want nil", prev)
	}
	state.SetWhitepoint(2.0)
	state.SetMouse([2]float32{10, 20})
	state.SetSelection([2]float32{1, 2}, [2]float32{3, 4})

	snap := state.Snapshot()
	if snap.HDRImage != img {
		t.Error("snapshot lost the published image")
	}
	if snap.MaxBrightness != 6.5 || snap.Whitepoint != 2.0 {
		t.Errorf("snapshot brightness/whitepoint = %v/%v", snap.MaxBrightness, snap.Whitepoint)
	}
	if snap.MousePosition != [2]float32{10, 20} {
		t.Errorf("snapshot mouse = %v", snap.MousePosition)
	}
	if snap.Selection != [2][2]float32{{1, 2}, {3, 4}} {
		t.Errorf("snapshot selection = %v", snap.Selection)
	}
}

func TestRendererState_ReplaceAndClear(t *testing.T) {
	var state RendererState
	first := &HDRImage{}
	second := &HDRImage{}

	state.SetCapture(first, 1.0)
	if prev := state.SetCapture(second, 2.0); prev != first {
		t.Error("replacing the capture must hand back the previous image")
	}
	if got := state.Clear(); got != second {
		t.Error("Clear must hand back the current image")
	}

	snap := state.Snapshot()
	if snap.HDRImage != nil || snap.Whitepoint != 0 || snap.MaxBrightness != 0 {
		t.Errorf("cleared state still holds %+v", snap)
	}
	if state.Clear() != nil {
		t.Error("clearing an empty state must return nil")
	}
}
