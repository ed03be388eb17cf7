package gpu

import (
	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
)

// MaxFramesInFlight bounds how many swapchain frames may be recorded
// before the oldest completes.
const MaxFramesInFlight = 2

// frameResources is the per-swapchain-image tuple.
type frameResources struct {
	commandPool    vk.CommandPool
	commandBuffer  vk.CommandBuffer
	imageAvailable vk.Semaphore
	renderFinished vk.Semaphore
	inFlight       vk.Fence
}

// swapchain owns the swapchain itself, its images/views, per-image
// resources, and the needsToRebuild flag set on OUT_OF_DATE or
// SUBOPTIMAL results.
type swapchain struct {
	ctx     *Context
	surface vk.Surface

	handle vk.Swapchain
	format vk.SurfaceFormat
	extent vk.Extent2D
	hdr    bool // surface is R16G16B16A16_SFLOAT + EXTENDED_SRGB_LINEAR

	images []vk.Image
	views  []vk.ImageView
	frames []frameResources

	needsToRebuild bool
	frameIndex     int
}

// surfaceFormatScore prefers the HDR-native format, then any sRGB
// format.
func surfaceFormatScore(f vk.SurfaceFormat) int {
	if f.Format == vk.FormatR16g16b16a16Sfloat && f.ColorSpace == vk.ColorSpaceExtendedSrgbLinear {
		return 0
	}
	if f.Format == vk.FormatB8g8r8a8Srgb || f.Format == vk.FormatR8g8b8a8Srgb {
		return 1
	}
	return 2
}

// presentModeScore orders FIFO first, then MAILBOX, FIFO_RELAXED,
// IMMEDIATE.
func presentModeScore(m vk.PresentMode) int {
	switch m {
	case vk.PresentModeFifo:
		return 0
	case vk.PresentModeMailbox:
		return 1
	case vk.PresentModeFifoRelaxed:
		return 2
	case vk.PresentModeImmediate:
		return 3
	default:
		return 4
	}
}

func newSwapchain(ctx *Context, surface vk.Surface, extent vk.Extent2D) (*swapchain, error) {
	sc := &swapchain{ctx: ctx, surface: surface}
	if err := sc.create(extent); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *swapchain) create(extent vk.Extent2D) error {
	log := logNamed("gpu.swapchain")

	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(sc.ctx.PhysicalDevice(), sc.surface, &caps); res != vk.Success {
		return &gpuerr.VkError{Call: "vkGetPhysicalDeviceSurfaceCapabilities", Result: int32(res)}
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	if caps.CurrentExtent.Width != 0xFFFFFFFF {
		extent = caps.CurrentExtent
	} else {
		extent.Width = clampU32(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
		extent.Height = clampU32(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	}
	if extent.Width == 0 || extent.Height == 0 {
		return &gpuerr.InvalidExtent{}
	}

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(sc.ctx.PhysicalDevice(), sc.surface, &formatCount, nil)
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(sc.ctx.PhysicalDevice(), sc.surface, &formatCount, formats)
	if len(formats) == 0 {
		return &gpuerr.UnsupportedDevice{Reason: "surface exposes no formats"}
	}
	for i := range formats {
		formats[i].Deref()
	}
	best := formats[0]
	for _, f := range formats[1:] {
		if surfaceFormatScore(f) < surfaceFormatScore(best) {
			best = f
		}
	}

	var modeCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(sc.ctx.PhysicalDevice(), sc.surface, &modeCount, nil)
	modes := make([]vk.PresentMode, modeCount)
	vk.GetPhysicalDeviceSurfacePresentModes(sc.ctx.PhysicalDevice(), sc.surface, &modeCount, modes)
	presentMode := vk.PresentModeFifo
	for _, m := range modes {
		if presentModeScore(m) < presentModeScore(presentMode) {
			presentMode = m
		}
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          sc.surface,
		MinImageCount:    imageCount,
		ImageFormat:      best.Format,
		ImageColorSpace:  best.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     sc.handle,
	}
	var handle vk.Swapchain
	if res := vk.CreateSwapchain(sc.ctx.Device(), &createInfo, nil, &handle); res != vk.Success {
		return &gpuerr.VkError{Call: "vkCreateSwapchain", Result: int32(res)}
	}
	if sc.handle != vk.NullSwapchain {
		vk.DestroySwapchain(sc.ctx.Device(), sc.handle, nil)
	}
	sc.handle = handle
	sc.format = best
	sc.extent = extent
	sc.hdr = best.Format == vk.FormatR16g16b16a16Sfloat && best.ColorSpace == vk.ColorSpaceExtendedSrgbLinear

	var count uint32
	vk.GetSwapchainImages(sc.ctx.Device(), sc.handle, &count, nil)
	sc.images = make([]vk.Image, count)
	vk.GetSwapchainImages(sc.ctx.Device(), sc.handle, &count, sc.images)

	sc.views = make([]vk.ImageView, count)
	for i, img := range sc.images {
		view, err := createImageView(sc.ctx, img, best.Format)
		if err != nil {
			return err
		}
		sc.views[i] = view
	}

	if err := sc.createFrameResources(int(count)); err != nil {
		return err
	}

	log.Debug("swapchain created",
		zap.Uint32("width", extent.Width), zap.Uint32("height", extent.Height),
		zap.Uint32("images", count), zap.Bool("hdrSurface", sc.hdr))
	return nil
}

func (sc *swapchain) createFrameResources(count int) error {
	sc.frames = make([]frameResources, count)
	for i := range sc.frames {
		poolInfo := vk.CommandPoolCreateInfo{
			SType:            vk.StructureTypeCommandPoolCreateInfo,
			QueueFamilyIndex: sc.ctx.QueueFamily(),
			Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
		}
		var pool vk.CommandPool
		if res := vk.CreateCommandPool(sc.ctx.Device(), &poolInfo, nil, &pool); res != vk.Success {
			return &gpuerr.VkError{Call: "vkCreateCommandPool(frame)", Result: int32(res)}
		}
		sc.frames[i].commandPool = pool

		allocInfo := vk.CommandBufferAllocateInfo{
			SType:              vk.StructureTypeCommandBufferAllocateInfo,
			CommandPool:        pool,
			Level:              vk.CommandBufferLevelPrimary,
			CommandBufferCount: 1,
		}
		cmdBufs := make([]vk.CommandBuffer, 1)
		if res := vk.AllocateCommandBuffers(sc.ctx.Device(), &allocInfo, cmdBufs); res != vk.Success {
			return &gpuerr.VkError{Call: "vkAllocateCommandBuffers(frame)", Result: int32(res)}
		}
		sc.frames[i].commandBuffer = cmdBufs[0]

		semInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
		if res := vk.CreateSemaphore(sc.ctx.Device(), &semInfo, nil, &sc.frames[i].imageAvailable); res != vk.Success {
			return &gpuerr.VkError{Call: "vkCreateSemaphore(imageAvailable)", Result: int32(res)}
		}
		if res := vk.CreateSemaphore(sc.ctx.Device(), &semInfo, nil, &sc.frames[i].renderFinished); res != vk.Success {
			return &gpuerr.VkError{Call: "vkCreateSemaphore(renderFinished)", Result: int32(res)}
		}
		fenceInfo := vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}
		if res := vk.CreateFence(sc.ctx.Device(), &fenceInfo, nil, &sc.frames[i].inFlight); res != vk.Success {
			return &gpuerr.VkError{Call: "vkCreateFence(inFlight)", Result: int32(res)}
		}
	}
	return nil
}

// rebuild waits for the device to idle, tears down the per-image
// resources, and recreates the swapchain at the given extent. A
// zero-sized extent leaves needsToRebuild set so the caller skips the
// frame.
func (sc *swapchain) rebuild(extent vk.Extent2D) error {
	if extent.Width == 0 || extent.Height == 0 {
		return &gpuerr.InvalidExtent{}
	}
	unlock := sc.ctx.DeviceWaitIdle()
	defer unlock()

	sc.destroyFrameResources()
	sc.destroyViews()
	if err := sc.create(extent); err != nil {
		return err
	}
	sc.needsToRebuild = false
	return nil
}

func (sc *swapchain) destroyViews() {
	for _, view := range sc.views {
		if view != vk.NullImageView {
			vk.DestroyImageView(sc.ctx.Device(), view, nil)
		}
	}
	sc.views = nil
}

func (sc *swapchain) destroyFrameResources() {
	for i := range sc.frames {
		f := &sc.frames[i]
		if f.inFlight != vk.NullFence {
			vk.DestroyFence(sc.ctx.Device(), f.inFlight, nil)
		}
		if f.renderFinished != vk.NullSemaphore {
			vk.DestroySemaphore(sc.ctx.Device(), f.renderFinished, nil)
		}
		if f.imageAvailable != vk.NullSemaphore {
			vk.DestroySemaphore(sc.ctx.Device(), f.imageAvailable, nil)
		}
		if f.commandPool != vk.NullCommandPool {
			vk.DestroyCommandPool(sc.ctx.Device(), f.commandPool, nil)
		}
	}
	sc.frames = nil
}

func (sc *swapchain) destroy() {
	sc.destroyFrameResources()
	sc.destroyViews()
	if sc.handle != vk.NullSwapchain {
		vk.DestroySwapchain(sc.ctx.Device(), sc.handle, nil)
		sc.handle = vk.NullSwapchain
	}
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
