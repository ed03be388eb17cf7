package gpu

import "sync"

// Selection is two screen-space points in integer pixels, unordered;
// the selection is the axis-aligned bounding rect of the pair.
type Selection struct {
	Start [2]int32
	End   [2]int32
}

// Rect returns the selection's top-left corner and size with the
// corners ordered.
func (s Selection) Rect() (x, y, w, h int32) {
	x0, x1 := s.Start[0], s.End[0]
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	y0, y1 := s.Start[1], s.End[1]
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return x0, y0, x1 - x0, y1 - y0
}

// Empty reports whether the selection covers zero pixels.
func (s Selection) Empty() bool {
	_, _, w, h := s.Rect()
	return w == 0 || h == 0
}

// Valid reports whether both corners lie within the given window
// bounds.
func (s Selection) Valid(width, height int32) bool {
	for _, p := range [2][2]int32{s.Start, s.End} {
		if p[0] < 0 || p[0] > width || p[1] < 0 || p[1] > height {
			return false
		}
	}
	return true
}

// ScreenSpace converts a pixel coordinate to normalised device
// coordinates. All pipelines consume NDC.
func ScreenSpace(px [2]float32, width, height float32) [2]float32 {
	return [2]float32{2*px[0]/width - 1, 2*px[1]/height - 1}
}

// RendererState is the mutable structure the controller updates and
// the render thread snapshots once per frame. Guarded by its mutex;
// neither side holds the lock across a GPU submit.
type RendererState struct {
	mu sync.Mutex

	hdrImage      *HDRImage
	whitepoint    float32
	maxBrightness float32
	mousePosition [2]float32
	selection     [2][2]float32
}

// StateSnapshot is the per-frame copy the renderer draws from.
type StateSnapshot struct {
	HDRImage      *HDRImage
	Whitepoint    float32
	MaxBrightness float32
	MousePosition [2]float32
	Selection     [2][2]float32
}

// Snapshot copies the current state out under the lock.
func (s *RendererState) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StateSnapshot{
		HDRImage:      s.hdrImage,
		Whitepoint:    s.whitepoint,
		MaxBrightness: s.maxBrightness,
		MousePosition: s.mousePosition,
		Selection:     s.selection,
	}
}

// SetCapture publishes a new HDR image and the monitor's max
// brightness, returning the previous image (if any) so the caller can
// destroy it once the renderer is known to have stopped drawing it.
func (s *RendererState) SetCapture(img *HDRImage, maxBrightness float32) *HDRImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.hdrImage
	s.hdrImage = img
	s.maxBrightness = maxBrightness
	return prev
}

// SetWhitepoint publishes the chosen tonemap whitepoint.
func (s *RendererState) SetWhitepoint(wp float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitepoint = wp
}

// SetMouse publishes the current mouse position.
func (s *RendererState) SetMouse(pos [2]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mousePosition = pos
}

// SetSelection publishes the selection corners in pixel coordinates.
func (s *RendererState) SetSelection(start, end [2]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = [2][2]float32{start, end}
}

// Clear drops the published image and resets brightness, returning
// the image for destruction by the caller.
func (s *RendererState) Clear() *HDRImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.hdrImage
	s.hdrImage = nil
	s.whitepoint = 0
	s.maxBrightness = 0
	return prev
}
