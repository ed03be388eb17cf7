package gpu

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
)

// SDRImageFormat is the tonemap destination format.
const SDRImageFormat = vk.FormatR8g8b8a8Unorm

// SDRImage is the tonemap destination: same extent as its producing
// HDR image, GENERAL layout, usage {STORAGE, TRANSFER_SRC}.
type SDRImage struct {
	ctx    *Context
	Image  vk.Image
	View   vk.ImageView
	memory vk.DeviceMemory
	Extent vk.Extent2D
}

func allocateSDR(ctx *Context, extent vk.Extent2D) (*SDRImage, error) {
	imageInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        SDRImageFormat,
		Extent:        vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageStorageBit | vk.ImageUsageTransferSrcBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if res := vk.CreateImage(ctx.Device(), &imageInfo, nil, &image); res != vk.Success {
		return nil, &gpuerr.VkError{Call: "vkCreateImage(sdr)", Result: int32(res)}
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
		return nil, &gpuerr.VkError{Call: "vkAllocateMemory(sdr)", Result: int32(res)}
	}
	vk.BindImageMemory(ctx.Device(), image, memory, 0)

	view, err := createImageView(ctx, image, SDRImageFormat)
	if err != nil {
		vk.FreeMemory(ctx.Device(), memory, nil)
		vk.DestroyImage(ctx.Device(), image, nil)
		return nil, err
	}

	return &SDRImage{ctx: ctx, Image: image, View: view, memory: memory, Extent: extent}, nil
}

// CopyToCPU reads the SDR image back into a tightly packed RGBA8
// byte slice via a host-visible staging buffer and a one-time copy
// command.
func (s *SDRImage) CopyToCPU() ([]byte, error) {
	size := vk.DeviceSize(s.Extent.Width) * vk.DeviceSize(s.Extent.Height) * 4

	stagingInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var staging vk.Buffer
	if res := vk.CreateBuffer(s.ctx.Device(), &stagingInfo, nil, &staging); res != vk.Success {
		return nil, &gpuerr.VkError{Call: "vkCreateBuffer(sdr staging)", Result: int32(res)}
	}
	defer vk.DestroyBuffer(s.ctx.Device(), staging, nil)

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(s.ctx.Device(), staging, &memReqs)
	memReqs.Deref()

	memType, err := s.ctx.FindMemoryType(memReqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: memReqs.Size, MemoryTypeIndex: memType}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(s.ctx.Device(), &allocInfo, nil, &memory); res != vk.Success {
		return nil, &gpuerr.VkError{Call: "vkAllocateMemory(sdr staging)", Result: int32(res)}
	}
	defer vk.FreeMemory(s.ctx.Device(), memory, nil)
	vk.BindBufferMemory(s.ctx.Device(), staging, memory, 0)

	err = oneTimeCommand(s.ctx, QueueGraphics, func(cmd vk.CommandBuffer) {
		region := vk.BufferImageCopy{
			BufferOffset:      0,
			ImageSubresource:  vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), MipLevel: 0, BaseArrayLayer: 0, LayerCount: 1},
			ImageOffset:       vk.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent:       vk.Extent3D{Width: s.Extent.Width, Height: s.Extent.Height, Depth: 1},
		}
		vk.CmdCopyImageToBuffer(cmd, s.Image, vk.ImageLayoutGeneral, staging, 1, []vk.BufferImageCopy{region})
	})
	if err != nil {
		return nil, err
	}

	var mapped unsafe.Pointer
	if res := vk.MapMemory(s.ctx.Device(), memory, 0, size, 0, &mapped); res != vk.Success {
		return nil, &gpuerr.VkError{Call: "vkMapMemory(sdr staging)", Result: int32(res)}
	}
	out := make([]byte, size)
	vk.Memcopy(out, (*(*[1 << 30]byte)(mapped))[:size:size])
	vk.UnmapMemory(s.ctx.Device(), memory)

	return out, nil
}

// Destroy releases view, image, and memory in that order.
func (s *SDRImage) Destroy() {
	if s.View != vk.NullImageView {
		vk.DestroyImageView(s.ctx.Device(), s.View, nil)
		s.View = vk.NullImageView
	}
	if s.Image != vk.NullImage {
		vk.DestroyImage(s.ctx.Device(), s.Image, nil)
		s.Image = vk.NullImage
	}
	if s.memory != vk.NullDeviceMemory {
		vk.FreeMemory(s.ctx.Device(), s.memory, nil)
		s.memory = vk.NullDeviceMemory
	}
}
