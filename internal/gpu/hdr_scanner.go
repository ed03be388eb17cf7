package gpu

import (
	vk "github.com/goki/vulkan"
)

// HDRScanner composes the scanner with per-extent scan resources and
// answers the controller's question: does this capture actually
// contain HDR content, and how bright is it?
type HDRScanner struct {
	ctx       *Context
	scanner   *Scanner
	resources *ScanResources
}

// NewHDRScanner builds the scanner pipelines. Scan resources are
// created lazily on first use and recreated when the extent changes.
func NewHDRScanner(ctx *Context) (*HDRScanner, error) {
	scanner, err := NewScanner(ctx)
	if err != nil {
		return nil, err
	}
	return &HDRScanner{ctx: ctx, scanner: scanner}, nil
}

func (h *HDRScanner) ensureResources(extent vk.Extent2D) error {
	if h.resources != nil && h.resources.extent == extent {
		return nil
	}
	if h.resources != nil {
		h.resources.Destroy()
		h.resources = nil
	}
	res, err := NewScanResources(h.ctx, extent, h.ctx.SubgroupSize())
	if err != nil {
		return err
	}
	h.resources = res
	return nil
}

// MaxLuminance reduces img to its largest R/G/B component value.
func (h *HDRScanner) MaxLuminance(img *HDRImage) (float32, error) {
	if err := h.ensureResources(img.Extent); err != nil {
		return 0, err
	}
	return h.scanner.Scan(img, h.resources)
}

// ContainsHDR reports whether img holds values brighter than the
// monitor's SDR white, along with the measured maximum. Content at or
// below SDR white tonemaps with the SDR whitepoint; anything brighter
// takes the histogram path.
func (h *HDRScanner) ContainsHDR(img *HDRImage, sdrWhite float32) (bool, float32, error) {
	maximum, err := h.MaxLuminance(img)
	if err != nil {
		return false, 0, err
	}
	return maximum > sdrWhite, maximum, nil
}

// Destroy releases the scanner pipelines and any scan resources.
func (h *HDRScanner) Destroy() {
	if h.resources != nil {
		h.resources.Destroy()
		h.resources = nil
	}
	h.scanner.Destroy()
}
