package gpu

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
	"github.com/hdrsnip/hdrsnip/internal/shaders"
)

// computeBlocksizeBase is the thread-count factor each buffer pass
// applies to the element count; multiplied by the subgroup width gives
// the actual blocksize.
const computeBlocksizeBase = 1024

// reductionSchedule returns the sequence of element counts the buffer
// pass shrinks through, one entry per dispatch, ending at 1. Each pass
// divides by computeBlocksizeBase*subgroupSize.
func reductionSchedule(inputLength, subgroupSize uint32) []uint32 {
	if subgroupSize == 0 {
		subgroupSize = 1
	}
	blockSize := uint32(computeBlocksizeBase) * subgroupSize
	var schedule []uint32
	for inputLength > 1 {
		inputLength = (inputLength + blockSize - 1) / blockSize
		schedule = append(schedule, inputLength)
	}
	return schedule
}

// bufferPassPushConstants mirrors the shader's push_constant block.
type bufferPassPushConstants struct {
	InputLength uint32
}

// bufferPass is stage 2 of the scanner: an iterated compute dispatch
// that ping-pongs between the scan buffer's two halves until one
// value remains.
type bufferPass struct {
	ctx            *Context
	descSetLayout  vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	pipeline       vk.Pipeline
	shaderModule   vk.ShaderModule
}

func newBufferPass(ctx *Context) (*bufferPass, error) {
	module, err := createShaderModule(ctx, shaders.BufferScanComputeSPV)
	if err != nil {
		return nil, err
	}

	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
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
		return nil, &gpuerr.VkError{Call: "vkCreateDescriptorSetLayout(bufferPass)", Result: int32(res)}
	}

	pushRange := vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit), Offset: 0, Size: 4}
	layouts := []vk.DescriptorSetLayout{setLayout}
	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo, SetLayoutCount: 1, PSetLayouts: layouts,
		PushConstantRangeCount: 1, PPushConstantRanges: []vk.PushConstantRange{pushRange},
	}
	var pipelineLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(ctx.Device(), &pipelineLayoutInfo, nil, &pipelineLayout); res != vk.Success {
		vk.DestroyDescriptorSetLayout(ctx.Device(), setLayout, nil)
		vk.DestroyShaderModule(ctx.Device(), module, nil)
		return nil, &gpuerr.VkError{Call: "vkCreatePipelineLayout(bufferPass)", Result: int32(res)}
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
		return nil, &gpuerr.VkError{Call: "vkCreateComputePipelines(bufferPass)", Result: int32(res)}
	}

	return &bufferPass{
		ctx: ctx, descSetLayout: setLayout,
		pipelineLayout: pipelineLayout, pipeline: pipelines[0], shaderModule: module,
	}, nil
}

// run dispatches the buffer pass once per schedule entry, shrinking
// the element count by computeBlocksize = 1024*subgroupSize each time
// until one value remains. Submissions are pipelined through a ring
// of CommandBuffers command buffers on one timeline semaphore:
// submission k signals base+k, waits on the device for base+k-1 (the
// read half is the previous pass's write half), and the host blocks
// on base+k-CommandBuffers before re-recording a ring slot so no
// in-flight command buffer is ever rewritten.
func (p *bufferPass) run(res *ScanResources, inputLength uint32) (int, error) {
	schedule := reductionSchedule(inputLength, res.subgroupSize)
	if len(schedule) == 0 {
		res.resultInRead = true
		return 0, nil
	}

	device := p.ctx.Device()

	pool, unlockPool := p.ctx.TransientPool()
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: CommandBuffers,
	}
	cmdBufs := make([]vk.CommandBuffer, CommandBuffers)
	res2 := vk.AllocateCommandBuffers(device, &allocInfo, cmdBufs)
	unlockPool()
	if res2 != vk.Success {
		return 0, &gpuerr.VkError{Call: "vkAllocateCommandBuffers(bufferPass ring)", Result: int32(res2)}
	}
	defer func() {
		pool, unlock := p.ctx.TransientPool()
		vk.FreeCommandBuffers(device, pool, CommandBuffers, cmdBufs)
		unlock()
	}()

	base := res.semaphoreValue
	useWriteReadDS := false // false: read=half0,write=half1; true: swapped

	for i, outputLength := range schedule {
		k := uint64(i + 1)

		if k > CommandBuffers {
			reuseAt := base + k - CommandBuffers
			waitInfo := vk.SemaphoreWaitInfo{
				SType:          vk.StructureTypeSemaphoreWaitInfo,
				SemaphoreCount: 1,
				PSemaphores:    []vk.Semaphore{res.semaphore},
				PValues:        []uint64{reuseAt},
			}
			if r := vk.WaitSemaphores(device, &waitInfo, ^uint64(0)); r != vk.Success {
				return i, &gpuerr.VkError{Call: "vkWaitSemaphores(bufferPass ring)", Result: int32(r)}
			}
		}

		readOffset, writeOffset := vk.DeviceSize(0), res.halfSize
		if useWriteReadDS {
			readOffset, writeOffset = res.halfSize, 0
		}

		cmd := cmdBufs[(k-1)%CommandBuffers]
		beginInfo := vk.CommandBufferBeginInfo{
			SType: vk.StructureTypeCommandBufferBeginInfo,
			Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
		}
		if r := vk.BeginCommandBuffer(cmd, &beginInfo); r != vk.Success {
			return i, &gpuerr.VkError{Call: "vkBeginCommandBuffer(bufferPass)", Result: int32(r)}
		}

		p.ctx.BeginRegion(cmd, "scan buffer pass")

		readWrite := vk.WriteDescriptorSet{
			SType: vk.StructureTypeWriteDescriptorSet, DstBinding: 0, DescriptorCount: 1,
			DescriptorType: vk.DescriptorTypeStorageBuffer,
			PBufferInfo:    []vk.DescriptorBufferInfo{{Buffer: res.buffer, Offset: readOffset, Range: res.halfSize}},
		}
		writeWrite := vk.WriteDescriptorSet{
			SType: vk.StructureTypeWriteDescriptorSet, DstBinding: 1, DescriptorCount: 1,
			DescriptorType: vk.DescriptorTypeStorageBuffer,
			PBufferInfo:    []vk.DescriptorBufferInfo{{Buffer: res.buffer, Offset: writeOffset, Range: res.halfSize}},
		}
		vk.CmdPushDescriptorSetKHR(cmd, vk.PipelineBindPointCompute, p.pipelineLayout, 0, 2,
			[]vk.WriteDescriptorSet{readWrite, writeWrite})

		pc := bufferPassPushConstants{InputLength: inputLength}
		vk.CmdPushConstants(cmd, p.pipelineLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, 4, unsafe.Pointer(&pc))

		vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, p.pipeline)
		vk.CmdDispatch(cmd, outputLength, 1, 1)
		p.ctx.EndRegion(cmd)

		if r := vk.EndCommandBuffer(cmd); r != vk.Success {
			return i, &gpuerr.VkError{Call: "vkEndCommandBuffer(bufferPass)", Result: int32(r)}
		}

		if err := p.submit(res, cmd, base+k-1, base+k, i == 0); err != nil {
			return i, err
		}

		useWriteReadDS = !useWriteReadDS
		inputLength = outputLength
	}

	res.semaphoreValue = base + uint64(len(schedule))
	res.resultInRead = !useWriteReadDS
	return len(schedule), nil
}

// submit queues one reduction pass, signalling signalValue on the
// timeline and making the GPU wait for waitValue so each pass reads
// the half its predecessor finished writing. The first pass after the
// image stage has nothing to wait on.
func (p *bufferPass) submit(res *ScanResources, cmd vk.CommandBuffer, waitValue, signalValue uint64, first bool) error {
	timelineInfo := vk.TimelineSemaphoreSubmitInfo{
		SType:                     vk.StructureTypeTimelineSemaphoreSubmitInfo,
		SignalSemaphoreValueCount: 1,
		PSignalSemaphoreValues:    []uint64{signalValue},
	}
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		PNext:                unsafe.Pointer(&timelineInfo),
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{res.semaphore},
	}
	waitStages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)}
	if !first {
		timelineInfo.WaitSemaphoreValueCount = 1
		timelineInfo.PWaitSemaphoreValues = []uint64{waitValue}
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{res.semaphore}
		submitInfo.PWaitDstStageMask = waitStages
	}

	queue, unlock := p.ctx.Queue(QueueCompute)
	defer unlock()
	if r := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); r != vk.Success {
		return &gpuerr.VkError{Call: "vkQueueSubmit(bufferPass)", Result: int32(r)}
	}
	return nil
}

func (p *bufferPass) destroy() {
	vk.DestroyPipeline(p.ctx.Device(), p.pipeline, nil)
	vk.DestroyPipelineLayout(p.ctx.Device(), p.pipelineLayout, nil)
	vk.DestroyDescriptorSetLayout(p.ctx.Device(), p.descSetLayout, nil)
	vk.DestroyShaderModule(p.ctx.Device(), p.shaderModule, nil)
}
