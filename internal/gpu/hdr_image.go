package gpu

import (
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
)

// HDRImageFormat is the format every HDR image uses: scRGB linear,
// 16-bit float per channel.
const HDRImageFormat = vk.FormatR16g16b16a16Sfloat

// HandleType identifies the OS shared-handle kind being imported.
// Only the Windows NT/D3D11 shared-texture handle is implemented;
// it is the only handle kind the capture source produces.
type HandleType int

const WindowsNTHandle HandleType = iota

// HDRImage wraps an imported shared HDR surface: image, view, owned
// device memory, and extent. Layout is always GENERAL after
// construction.
type HDRImage struct {
	ctx    *Context
	Image  vk.Image
	View   vk.ImageView
	memory vk.DeviceMemory
	Extent vk.Extent2D
}

// ImportExternal creates a 2-D image over externally-owned device
// memory referenced by an OS handle. The handle is bound
// via a dedicated allocation because the underlying resource is
// opaque to the allocator (sub-allocation is impossible). The image is
// transitioned UNDEFINED -> GENERAL before returning.
func ImportExternal(ctx *Context, width, height uint32, handleType HandleType, handle uintptr) (*HDRImage, error) {
	log := logNamed("gpu.hdrimage")
	start := time.Now()

	extMemInfo := vk.ExternalMemoryImageCreateInfo{
		SType:       vk.StructureTypeExternalMemoryImageCreateInfo,
		HandleTypes: vk.ExternalMemoryHandleTypeFlags(vk.ExternalMemoryHandleTypeOpaqueWin32Bit),
	}

	imageInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		PNext:         unsafe.Pointer(&extMemInfo),
		ImageType:     vk.ImageType2d,
		Format:        HDRImageFormat,
		Extent:        vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageStorageBit | vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var image vk.Image
	if res := vk.CreateImage(ctx.Device(), &imageInfo, nil, &image); res != vk.Success {
		return nil, &gpuerr.VkError{Call: "vkCreateImage(hdr)", Result: int32(res)}
	}

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(ctx.Device(), image, &memReqs)
	memReqs.Deref()

	memType, err := ctx.FindMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(ctx.Device(), image, nil)
		return nil, err
	}

	dedicated := vk.MemoryDedicatedAllocateInfo{
		SType: vk.StructureTypeMemoryDedicatedAllocateInfo,
		Image: image,
	}
	importInfo := vk.ImportMemoryWin32HandleInfoKHR{
		SType:      vk.StructureTypeImportMemoryWin32HandleInfoKhr,
		PNext:      unsafe.Pointer(&dedicated),
		HandleType: vk.ExternalMemoryHandleTypeFlagBits(vk.ExternalMemoryHandleTypeOpaqueWin32Bit),
		Handle:     vk.Handle(handle),
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           unsafe.Pointer(&importInfo),
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memType,
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(ctx.Device(), &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyImage(ctx.Device(), image, nil)
		return nil, &gpuerr.VkError{Call: "vkAllocateMemory(hdr import)", Result: int32(res)}
	}
	vk.BindImageMemory(ctx.Device(), image, memory, 0)

	view, err := createImageView(ctx, image, HDRImageFormat)
	if err != nil {
		vk.FreeMemory(ctx.Device(), memory, nil)
		vk.DestroyImage(ctx.Device(), image, nil)
		return nil, err
	}

	img := &HDRImage{
		ctx:    ctx,
		Image:  image,
		View:   view,
		memory: memory,
		Extent: vk.Extent2D{Width: width, Height: height},
	}

	if err := transitionLayout(ctx, QueueCompute, image, vk.ImageLayoutUndefined, vk.ImageLayoutGeneral); err != nil {
		img.Destroy()
		return nil, err
	}

	ctx.DebugLabel(image, "hdr-capture-image")
	log.Info("imported shared HDR surface",
		zap.Uint32("width", width), zap.Uint32("height", height),
		zap.Duration("elapsed", time.Since(start)))
	return img, nil
}

// AllocateHDR creates an HDR image backed by dedicated device memory
// rather than an imported handle; used by test tooling and the
// headless backend.
func AllocateHDR(ctx *Context, width, height uint32) (*HDRImage, error) {
	imageInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        HDRImageFormat,
		Extent:        vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageStorageBit | vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if res := vk.CreateImage(ctx.Device(), &imageInfo, nil, &image); res != vk.Success {
		return nil, &gpuerr.VkError{Call: "vkCreateImage(hdr alloc)", Result: int32(res)}
	}
	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(ctx.Device(), image, &memReqs)
	memReqs.Deref()
	memType, err := ctx.FindMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(ctx.Device(), image, nil)
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(ctx.Device(), &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyImage(ctx.Device(), image, nil)
		return nil, &gpuerr.VkError{Call: "vkAllocateMemory(hdr alloc)", Result: int32(res)}
	}
	vk.BindImageMemory(ctx.Device(), image, memory, 0)

	view, err := createImageView(ctx, image, HDRImageFormat)
	if err != nil {
		vk.FreeMemory(ctx.Device(), memory, nil)
		vk.DestroyImage(ctx.Device(), image, nil)
		return nil, err
	}
	img := &HDRImage{ctx: ctx, Image: image, View: view, memory: memory, Extent: vk.Extent2D{Width: width, Height: height}}
	if err := transitionLayout(ctx, QueueCompute, image, vk.ImageLayoutUndefined, vk.ImageLayoutGeneral); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// Destroy releases view, image, and memory in that order.
// The OS handle, if any, is not closed here; the capture source closes
// it after a successful import.
func (h *HDRImage) Destroy() {
	if h.View != vk.NullImageView {
		vk.DestroyImageView(h.ctx.Device(), h.View, nil)
		h.View = vk.NullImageView
	}
	if h.Image != vk.NullImage {
		vk.DestroyImage(h.ctx.Device(), h.Image, nil)
		h.Image = vk.NullImage
	}
	if h.memory != vk.NullDeviceMemory {
		vk.FreeMemory(h.ctx.Device(), h.memory, nil)
		h.memory = vk.NullDeviceMemory
	}
}
