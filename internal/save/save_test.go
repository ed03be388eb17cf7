package save

import (
	"testing"
	"time"

	"github.com/hdrsnip/hdrsnip/internal/gpu"
)

func TestSave_SanitizePath(t *testing.T) {
	const base = "/srv/shots"

	tests := []struct {
		name   string
		input  string
		wantOK bool
	}{
		{"plain name", "Screenshot 2026-08-01 120000.png", true},
		{"nested", "august/shot.png", true},
		{"absolute", "/etc/passwd", false},
		{"traversal", "../outside.png", false},
		{"embedded traversal", "a/../../outside.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sanitizePath(base, tt.input)
			if ok != tt.wantOK {
				t.Fatalf("sanitizePath(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got == "" {
				t.Error("accepted path must not be empty")
			}
		})
	}
}

func TestSave_ScreenshotFilename(t *testing.T) {
	ts := time.Date(2026, 8, 1, 9, 5, 7, 0, time.UTC)
	got := screenshotFilename(ts)
	want := "Screenshot 2026-08-01 090507.png"
	if got != want {
		t.Errorf("screenshotFilename = %q, want %q", got, want)
	}
}

// makePixels builds a tightly packed RGBA image whose red channel
// encodes the x coordinate and green channel the y coordinate.
func makePixels(width, height int) []byte {
	pixels := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			pixels[i] = byte(x)
			pixels[i+1] = byte(y)
			pixels[i+2] = 0
			pixels[i+3] = 255
		}
	}
	return pixels
}

func TestSave_Crop(t *testing.T) {
	pixels := makePixels(16, 8)
	sel := gpu.Selection{Start: [2]int32{4, 2}, End: [2]int32{12, 6}}

	out := crop(pixels, 16, 8, sel)
	if out.Rect.Dx() != 8 || out.Rect.Dy() != 4 {
		t.Fatalf("cropped to %dx%d, want 8x4", out.Rect.Dx(), out.Rect.Dy())
	}

	// Top-left of the crop is source pixel (4,2).
	r, g, _, a := out.At(0, 0).RGBA()
	if byte(r>>8) != 4 || byte(g>>8) != 2 || byte(a>>8) != 255 {
		t.Errorf("crop origin = (%d,%d), want source (4,2)", r>>8, g>>8)
	}
	// Bottom-right of the crop is source pixel (11,5).
	r, g, _, _ = out.At(7, 3).RGBA()
	if byte(r>>8) != 11 || byte(g>>8) != 5 {
		t.Errorf("crop corner = (%d,%d), want source (11,5)", r>>8, g>>8)
	}
}

func TestSave_CropReversedSelection(t *testing.T) {
	pixels := makePixels(16, 8)
	sel := gpu.Selection{Start: [2]int32{12, 6}, End: [2]int32{4, 2}}

	out := crop(pixels, 16, 8, sel)
	if out.Rect.Dx() != 8 || out.Rect.Dy() != 4 {
		t.Errorf("reversed corners cropped to %dx%d, want 8x4", out.Rect.Dx(), out.Rect.Dy())
	}
}

func TestSave_CropClampsToImage(t *testing.T) {
	pixels := makePixels(8, 8)
	sel := gpu.Selection{Start: [2]int32{4, 4}, End: [2]int32{100, 100}}

	out := crop(pixels, 8, 8, sel)
	if out.Rect.Dx() != 4 || out.Rect.Dy() != 4 {
		t.Errorf("clamped crop = %dx%d, want 4x4", out.Rect.Dx(), out.Rect.Dy())
	}
}

func TestSave_CropEmptySelectionKeepsFullImage(t *testing.T) {
	pixels := makePixels(8, 8)
	sel := gpu.Selection{Start: [2]int32{-10, -10}, End: [2]int32{-5, -5}}

	out := crop(pixels, 8, 8, sel)
	if out.Rect.Dx() != 8 || out.Rect.Dy() != 8 {
		t.Errorf("empty intersection = %dx%d, want the full 8x8", out.Rect.Dx(), out.Rect.Dy())
	}
}

func TestSave_EncodePNG(t *testing.T) {
	pixels := makePixels(4, 4)
	img := crop(pixels, 4, 4, gpu.Selection{End: [2]int32{4, 4}})

	encoded, err := encodePNG(img)
	if err != nil {
		t.Fatalf("encodePNG failed: %v", err)
	}
	// PNG signature.
	sig := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	for i, b := range sig {
		if encoded[i] != b {
			t.Fatalf("byte %d = %#x, want PNG signature", i, encoded[i])
		}
	}
}
