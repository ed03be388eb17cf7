package gpu

import (
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
	"github.com/hdrsnip/hdrsnip/internal/shaders"
)

// HistogramBins is the fixed bin count of every generated histogram.
const HistogramBins = 256

// WhitepointPercentile is the cumulative fraction of samples below the
// chosen whitepoint bin. Chosen empirically; kept as a named constant
// rather than inline so it stays tunable.
const WhitepointPercentile = 0.9999

// histogramPushConstants mirrors the shader's push_constant block.
type histogramPushConstants struct {
	Width, Height uint32
	BinWidth      float32
}

// HistogramResources owns the device-local bin buffer and a
// host-visible staging buffer of the same size. The device buffer is
// zeroed at the start of every generate call.
type HistogramResources struct {
	ctx *Context

	buffer        vk.Buffer
	memory        vk.DeviceMemory
	stagingBuffer vk.Buffer
	stagingMemory vk.DeviceMemory
}

func newHistogramResources(ctx *Context) (*HistogramResources, error) {
	const size = vk.DeviceSize(HistogramBins * 4)

	deviceInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit | vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(ctx.Device(), &deviceInfo, nil, &buffer); res != vk.Success {
		return nil, &gpuerr.VkError{Call: "vkCreateBuffer(histogram)", Result: int32(res)}
	}
	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(ctx.Device(), buffer, &memReqs)
	memReqs.Deref()
	memType, err := ctx.FindMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyBuffer(ctx.Device(), buffer, nil)
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: memReqs.Size, MemoryTypeIndex: memType}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(ctx.Device(), &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyBuffer(ctx.Device(), buffer, nil)
		return nil, &gpuerr.VkError{Call: "vkAllocateMemory(histogram)", Result: int32(res)}
	}
	vk.BindBufferMemory(ctx.Device(), buffer, memory, 0)

	stagingInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var staging vk.Buffer
	if res := vk.CreateBuffer(ctx.Device(), &stagingInfo, nil, &staging); res != vk.Success {
		vk.FreeMemory(ctx.Device(), memory, nil)
		vk.DestroyBuffer(ctx.Device(), buffer, nil)
		return nil, &gpuerr.VkError{Call: "vkCreateBuffer(histogram staging)", Result: int32(res)}
	}
	var stagingReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(ctx.Device(), staging, &stagingReqs)
	stagingReqs.Deref()
	stagingType, err := ctx.FindMemoryType(stagingReqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(ctx.Device(), staging, nil)
		vk.FreeMemory(ctx.Device(), memory, nil)
		vk.DestroyBuffer(ctx.Device(), buffer, nil)
		return nil, err
	}
	stagingAlloc := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: stagingReqs.Size, MemoryTypeIndex: stagingType}
	var stagingMemory vk.DeviceMemory
	if res := vk.AllocateMemory(ctx.Device(), &stagingAlloc, nil, &stagingMemory); res != vk.Success {
		vk.DestroyBuffer(ctx.Device(), staging, nil)
		vk.FreeMemory(ctx.Device(), memory, nil)
		vk.DestroyBuffer(ctx.Device(), buffer, nil)
		return nil, &gpuerr.VkError{Call: "vkAllocateMemory(histogram staging)", Result: int32(res)}
	}
	vk.BindBufferMemory(ctx.Device(), staging, stagingMemory, 0)

	return &HistogramResources{
		ctx: ctx, buffer: buffer, memory: memory,
		stagingBuffer: staging, stagingMemory: stagingMemory,
	}, nil
}

func (r *HistogramResources) destroy() {
	if r.stagingBuffer != vk.NullBuffer {
		vk.DestroyBuffer(r.ctx.Device(), r.stagingBuffer, nil)
	}
	if r.stagingMemory != vk.NullDeviceMemory {
		vk.FreeMemory(r.ctx.Device(), r.stagingMemory, nil)
	}
	if r.buffer != vk.NullBuffer {
		vk.DestroyBuffer(r.ctx.Device(), r.buffer, nil)
	}
	if r.memory != vk.NullDeviceMemory {
		vk.FreeMemory(r.ctx.Device(), r.memory, nil)
	}
}

// HistogramGenerator produces the bin-count distribution the
// controller picks the HDR whitepoint from.
type HistogramGenerator struct {
	ctx            *Context
	resources      *HistogramResources
	descSetLayout  vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	pipeline       vk.Pipeline
	shaderModule   vk.ShaderModule
}

// NewHistogramGenerator builds the histogram compute pipeline and its
// bin buffers.
func NewHistogramGenerator(ctx *Context) (*HistogramGenerator, error) {
	resources, err := newHistogramResources(ctx)
	if err != nil {
		return nil, err
	}

	module, err := createShaderModule(ctx, shaders.HistogramComputeSPV)
	if err != nil {
		resources.destroy()
		return nil, err
	}

	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeStorageImage, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		Flags:        vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreateFlagBits(0x1)), // PUSH_DESCRIPTOR_BIT_KHR
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var setLayout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(ctx.Device(), &layoutInfo, nil, &setLayout); res != vk.Success {
		vk.DestroyShaderModule(ctx.Device(), module, nil)
		resources.destroy()
		return nil, &gpuerr.VkError{Call: "vkCreateDescriptorSetLayout(histogram)", Result: int32(res)}
	}

	pushRange := vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit), Offset: 0, Size: 12}
	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo, SetLayoutCount: 1, PSetLayouts: []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: 1, PPushConstantRanges: []vk.PushConstantRange{pushRange},
	}
	var pipelineLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(ctx.Device(), &pipelineLayoutInfo, nil, &pipelineLayout); res != vk.Success {
		vk.DestroyDescriptorSetLayout(ctx.Device(), setLayout, nil)
		vk.DestroyShaderModule(ctx.Device(), module, nil)
		resources.destroy()
		return nil, &gpuerr.VkError{Call: "vkCreatePipelineLayout(histogram)", Result: int32(res)}
	}

	stageInfo := vk.PipelineShaderStageCreateInfo{
		SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageComputeBit,
		Module: module, PName: safeString("main"),
	}
	createInfo := vk.ComputePipelineCreateInfo{SType: vk.StructureTypeComputePipelineCreateInfo, Stage: stageInfo, Layout: pipelineLayout}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(ctx.Device(), vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{createInfo}, nil, pipelines); res != vk.Success {
		vk.DestroyPipelineLayout(ctx.Device(), pipelineLayout, nil)
		vk.DestroyDescriptorSetLayout(ctx.Device(), setLayout, nil)
		vk.DestroyShaderModule(ctx.Device(), module, nil)
		resources.destroy()
		return nil, &gpuerr.VkError{Call: "vkCreateComputePipelines(histogram)", Result: int32(res)}
	}

	return &HistogramGenerator{
		ctx: ctx, resources: resources, descSetLayout: setLayout,
		pipelineLayout: pipelineLayout, pipeline: pipelines[0], shaderModule: module,
	}, nil
}

// Generate fills and reads back the bin counts for img with the value
// range [0, maximum] partitioned into HistogramBins bins. The device
// buffer is zero-filled in the same submission, before the dispatch.
func (g *HistogramGenerator) Generate(img *HDRImage, maximum float32) ([HistogramBins]uint32, error) {
	var bins [HistogramBins]uint32
	if img.Extent.Width == 0 || img.Extent.Height == 0 {
		return bins, &gpuerr.InvalidExtent{}
	}
	log := logNamed("gpu.histogram")
	start := time.Now()

	const size = vk.DeviceSize(HistogramBins * 4)
	dispatchX, dispatchY := dispatchCount2D(img.Extent.Width, img.Extent.Height, 16, 16)

	err := oneTimeCommand(g.ctx, QueueCompute, func(cmd vk.CommandBuffer) {
		g.ctx.BeginRegion(cmd, "histogram")
		defer g.ctx.EndRegion(cmd)

		vk.CmdFillBuffer(cmd, g.resources.buffer, 0, size, 0)

		fillBarrier := vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              g.resources.buffer,
			Offset:              0,
			Size:                size,
		}
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
			0, 0, nil, 1, []vk.BufferMemoryBarrier{fillBarrier}, 0, nil)

		imageWrite := vk.WriteDescriptorSet{
			SType: vk.StructureTypeWriteDescriptorSet, DstBinding: 0, DescriptorCount: 1,
			DescriptorType: vk.DescriptorTypeStorageImage,
			PImageInfo:     []vk.DescriptorImageInfo{{ImageView: img.View, ImageLayout: vk.ImageLayoutGeneral}},
		}
		bufferWrite := vk.WriteDescriptorSet{
			SType: vk.StructureTypeWriteDescriptorSet, DstBinding: 1, DescriptorCount: 1,
			DescriptorType: vk.DescriptorTypeStorageBuffer,
			PBufferInfo:    []vk.DescriptorBufferInfo{{Buffer: g.resources.buffer, Offset: 0, Range: size}},
		}
		vk.CmdPushDescriptorSetKHR(cmd, vk.PipelineBindPointCompute, g.pipelineLayout, 0, 2,
			[]vk.WriteDescriptorSet{imageWrite, bufferWrite})

		pc := histogramPushConstants{
			Width:    img.Extent.Width,
			Height:   img.Extent.Height,
			BinWidth: maximum / float32(HistogramBins),
		}
		vk.CmdPushConstants(cmd, g.pipelineLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, 12, unsafe.Pointer(&pc))

		vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, g.pipeline)
		vk.CmdDispatch(cmd, dispatchX, dispatchY, 1)

		dispatchBarrier := vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(vk.AccessShaderWriteBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessTransferReadBit),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              g.resources.buffer,
			Offset:              0,
			Size:                size,
		}
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			0, 0, nil, 1, []vk.BufferMemoryBarrier{dispatchBarrier}, 0, nil)

		region := vk.BufferCopy{SrcOffset: 0, DstOffset: 0, Size: size}
		vk.CmdCopyBuffer(cmd, g.resources.buffer, g.resources.stagingBuffer, 1, []vk.BufferCopy{region})
	})
	if err != nil {
		return bins, err
	}

	var mapped unsafe.Pointer
	if res := vk.MapMemory(g.ctx.Device(), g.resources.stagingMemory, 0, size, 0, &mapped); res != vk.Success {
		return bins, &gpuerr.VkError{Call: "vkMapMemory(histogram staging)", Result: int32(res)}
	}
	raw := make([]byte, size)
	vk.Memcopy(raw, (*(*[HistogramBins * 4]byte)(mapped))[:])
	vk.UnmapMemory(g.ctx.Device(), g.resources.stagingMemory)

	for i := range bins {
		bins[i] = uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
	}

	log.Debug("histogram generated",
		zap.Float32("maximum", maximum),
		zap.Duration("elapsed", time.Since(start)))
	return bins, nil
}

// Destroy releases the histogram pipeline and its buffers.
func (g *HistogramGenerator) Destroy() {
	vk.DestroyPipeline(g.ctx.Device(), g.pipeline, nil)
	vk.DestroyPipelineLayout(g.ctx.Device(), g.pipelineLayout, nil)
	vk.DestroyDescriptorSetLayout(g.ctx.Device(), g.descSetLayout, nil)
	vk.DestroyShaderModule(g.ctx.Device(), g.shaderModule, nil)
	g.resources.destroy()
}

// SelectWhitepoint walks the bins accumulating a running total and
// returns the whitepoint for the first bin at which the cumulative
// fraction of samples reaches WhitepointPercentile:
//
//	whitepoint = (maximum / N) * (i + 1)
//
// totalSamples is 3*W*H for a W x H image (one sample per colour
// component). The percentile cut keeps a handful of extreme specular
// highlights from darkening the whole tonemapped image.
func SelectWhitepoint(bins [HistogramBins]uint32, maximum float32, totalSamples uint64) float32 {
	if totalSamples == 0 {
		return maximum
	}
	threshold := WhitepointPercentile * float64(totalSamples)
	var running uint64
	for i, count := range bins {
		running += uint64(count)
		if float64(running) >= threshold {
			return maximum / float32(HistogramBins) * float32(i+1)
		}
	}
	return maximum
}
