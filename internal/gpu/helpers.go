package gpu

import (
	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
	"github.com/hdrsnip/hdrsnip/internal/logx"
)

func logNamed(component string) *zap.Logger {
	return logx.Named(component)
}

// createImageView creates a COLOR-aspect, single mip/layer 2-D view
// over image, the shape every image in this package needs.
func createImageView(ctx *Context, image vk.Image, format vk.Format) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(ctx.Device(), &viewInfo, nil, &view); res != vk.Success {
		return vk.NullImageView, &gpuerr.VkError{Call: "vkCreateImageView", Result: int32(res)}
	}
	return view, nil
}

// oneTimeCommand allocates a single primary command buffer from the
// context's transient pool, runs fn to record it, submits it on the
// given queue purpose, and blocks until it completes.
func oneTimeCommand(ctx *Context, purpose QueuePurpose, fn func(cmd vk.CommandBuffer)) error {
	pool, unlockPool := ctx.TransientPool()
	defer unlockPool()

	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cmdBufs := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(ctx.Device(), &allocInfo, cmdBufs); res != vk.Success {
		return &gpuerr.VkError{Call: "vkAllocateCommandBuffers(onetime)", Result: int32(res)}
	}
	cmd := cmdBufs[0]
	defer vk.FreeCommandBuffers(ctx.Device(), pool, 1, cmdBufs)

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cmd, &beginInfo); res != vk.Success {
		return &gpuerr.VkError{Call: "vkBeginCommandBuffer(onetime)", Result: int32(res)}
	}

	fn(cmd)

	if res := vk.EndCommandBuffer(cmd); res != vk.Success {
		return &gpuerr.VkError{Call: "vkEndCommandBuffer(onetime)", Result: int32(res)}
	}

	queue, unlockQueue := ctx.Queue(purpose)
	defer unlockQueue()

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cmdBufs,
	}
	if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
		return &gpuerr.VkError{Call: "vkQueueSubmit(onetime)", Result: int32(res)}
	}
	if res := vk.QueueWaitIdle(queue); res != vk.Success {
		return &gpuerr.VkError{Call: "vkQueueWaitIdle(onetime)", Result: int32(res)}
	}
	return nil
}

// transitionLayout performs a one-time image layout transition with a
// full memory barrier; used for the infrequent transitions in this
// package (import, tonemap output). The swapchain's own per-frame
// transitions are recorded by renderer.go's swapchainBarrier.
func transitionLayout(ctx *Context, purpose QueuePurpose, image vk.Image, from, to vk.ImageLayout) error {
	return oneTimeCommand(ctx, purpose, func(cmd vk.CommandBuffer) {
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           from,
			NewLayout:           to,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			SrcAccessMask: vk.AccessFlags(vk.AccessMemoryWriteBit | vk.AccessMemoryReadBit),
			DstAccessMask: vk.AccessFlags(vk.AccessMemoryWriteBit | vk.AccessMemoryReadBit),
		}
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	})
}

// dispatchCount2D returns the ceil(w/tileW) x ceil(h/tileH) workgroup
// count used throughout the compute passes.
func dispatchCount2D(width, height, tileW, tileH uint32) (uint32, uint32) {
	return (width + tileW - 1) / tileW, (height + tileH - 1) / tileH
}
