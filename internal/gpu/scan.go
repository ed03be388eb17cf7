package gpu

import (
	"math"
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
)

// CommandBuffers is the ring size for pipelined timeline-semaphore
// submissions.
const CommandBuffers = 3

// subgroupSize is queried once per context; a conservative default
// keeps ScanResources sized correctly when the query is unavailable.
const defaultSubgroupSize = 32

// ScanResources owns the device-local reduction buffer plus the
// bookkeeping the scanner needs to ping-pong between its two halves.
// Recreated when the extent changes; otherwise reused.
type ScanResources struct {
	ctx *Context

	buffer       vk.Buffer
	memory       vk.DeviceMemory
	halfSize     vk.DeviceSize // bytes per half
	subgroupSize uint32
	extent       vk.Extent2D

	resultInRead bool

	semaphore      vk.Semaphore
	semaphoreValue uint64
}

// NewScanResources sizes a buffer for the worst case: one subgroup
// output per subgroupSize pixels of a width x height image, rounded up
// and padded so the buffer pass's blocksize divides it evenly enough
// to terminate.
func NewScanResources(ctx *Context, extent vk.Extent2D, subgroupSize uint32) (*ScanResources, error) {
	if subgroupSize == 0 {
		subgroupSize = defaultSubgroupSize
	}
	halfSize := vk.DeviceSize(scanOutputCount(extent, subgroupSize)) * 2 // 2 bytes per f16 slot
	if halfSize == 0 {
		halfSize = 2
	}

	bufInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        halfSize * 2,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit | vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(ctx.Device(), &bufInfo, nil, &buffer); res != vk.Success {
		return nil, &gpuerr.VkError{Call: "vkCreateBuffer(scan)", Result: int32(res)}
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
		return nil, &gpuerr.VkError{Call: "vkAllocateMemory(scan)", Result: int32(res)}
	}
	vk.BindBufferMemory(ctx.Device(), buffer, memory, 0)

	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  0,
	}
	semInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(&typeInfo),
	}
	var sem vk.Semaphore
	if res := vk.CreateSemaphore(ctx.Device(), &semInfo, nil, &sem); res != vk.Success {
		vk.FreeMemory(ctx.Device(), memory, nil)
		vk.DestroyBuffer(ctx.Device(), buffer, nil)
		return nil, &gpuerr.VkError{Call: "vkCreateSemaphore(scan timeline)", Result: int32(res)}
	}

	return &ScanResources{
		ctx: ctx, buffer: buffer, memory: memory,
		halfSize: halfSize, subgroupSize: subgroupSize, extent: extent,
		semaphore: sem,
	}, nil
}

// Destroy releases the scan buffer, its memory, and the timeline
// semaphore.
func (r *ScanResources) Destroy() {
	if r.semaphore != vk.NullSemaphore {
		vk.DestroySemaphore(r.ctx.Device(), r.semaphore, nil)
	}
	if r.buffer != vk.NullBuffer {
		vk.DestroyBuffer(r.ctx.Device(), r.buffer, nil)
	}
	if r.memory != vk.NullDeviceMemory {
		vk.FreeMemory(r.ctx.Device(), r.memory, nil)
	}
}

// Scanner composes the image pass and the buffer pass to reduce an
// HDR image to its maximum colour-component value.
type Scanner struct {
	ctx       *Context
	imagePass *imagePass
	bufPass   *bufferPass
}

// NewScanner builds the compute pipelines for both reduction stages.
func NewScanner(ctx *Context) (*Scanner, error) {
	ip, err := newImagePass(ctx)
	if err != nil {
		return nil, err
	}
	bp, err := newBufferPass(ctx)
	if err != nil {
		ip.destroy()
		return nil, err
	}
	return &Scanner{ctx: ctx, imagePass: ip, bufPass: bp}, nil
}

// Scan reduces img to its maximum R/G/B component, returning the value
// as a float32.
func (s *Scanner) Scan(img *HDRImage, res *ScanResources) (float32, error) {
	if img.Extent.Width == 0 || img.Extent.Height == 0 {
		return 0, &gpuerr.InvalidExtent{}
	}
	log := logNamed("gpu.scanner")
	start := time.Now()

	outputCount, err := s.imagePass.run(img, res)
	if err != nil {
		return 0, err
	}

	iterations, err := s.bufPass.run(res, outputCount)
	if err != nil {
		return 0, err
	}

	value, err := s.readResult(res)
	if err != nil {
		return 0, err
	}

	log.Debug("scan complete",
		zap.Float32("maximum", value),
		zap.Int("bufferPassIterations", iterations),
		zap.Duration("elapsed", time.Since(start)))
	return value, nil
}

// readResult copies the final 2-byte f16 slot into a host-visible
// staging buffer, waiting on the scan's final timeline value, and
// converts it to float32.
func (s *Scanner) readResult(res *ScanResources) (float32, error) {
	offset := vk.DeviceSize(0)
	if res.resultInRead {
		offset = 0
	} else {
		offset = res.halfSize
	}

	stagingInfo := vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo, Size: 2,
		Usage: vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), SharingMode: vk.SharingModeExclusive,
	}
	var staging vk.Buffer
	if res2 := vk.CreateBuffer(s.ctx.Device(), &stagingInfo, nil, &staging); res2 != vk.Success {
		return 0, &gpuerr.VkError{Call: "vkCreateBuffer(scan readback)", Result: int32(res2)}
	}
	defer vk.DestroyBuffer(s.ctx.Device(), staging, nil)

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(s.ctx.Device(), staging, &memReqs)
	memReqs.Deref()
	memType, err := s.ctx.FindMemoryType(memReqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return 0, err
	}
	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: memReqs.Size, MemoryTypeIndex: memType}
	var memory vk.DeviceMemory
	if res2 := vk.AllocateMemory(s.ctx.Device(), &allocInfo, nil, &memory); res2 != vk.Success {
		return 0, &gpuerr.VkError{Call: "vkAllocateMemory(scan readback)", Result: int32(res2)}
	}
	defer vk.FreeMemory(s.ctx.Device(), memory, nil)
	vk.BindBufferMemory(s.ctx.Device(), staging, memory, 0)

	if err := s.submitReadback(res, staging, offset); err != nil {
		return 0, err
	}

	var mappedPtr unsafe.Pointer
	if res2 := vk.MapMemory(s.ctx.Device(), memory, 0, 2, 0, &mappedPtr); res2 != vk.Success {
		return 0, &gpuerr.VkError{Call: "vkMapMemory(scan readback)", Result: int32(res2)}
	}
	mapped := make([]byte, 2)
	vk.Memcopy(mapped, (*(*[2]byte)(mappedPtr))[:])
	bits := uint16(mapped[0]) | uint16(mapped[1])<<8
	vk.UnmapMemory(s.ctx.Device(), memory)

	return float16ToFloat32(bits), nil
}

// submitReadback copies the winning 2-byte slot into the staging
// buffer on the same queue, waiting on the scan's final timeline
// value so the copy observes the last reduction, and blocks on a
// fence until the copy lands.
func (s *Scanner) submitReadback(res *ScanResources, staging vk.Buffer, offset vk.DeviceSize) error {
	device := s.ctx.Device()

	pool, unlockPool := s.ctx.TransientPool()
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cmdBufs := make([]vk.CommandBuffer, 1)
	r := vk.AllocateCommandBuffers(device, &allocInfo, cmdBufs)
	unlockPool()
	if r != vk.Success {
		return &gpuerr.VkError{Call: "vkAllocateCommandBuffers(scan readback)", Result: int32(r)}
	}
	defer func() {
		pool, unlock := s.ctx.TransientPool()
		vk.FreeCommandBuffers(device, pool, 1, cmdBufs)
		unlock()
	}()

	cmd := cmdBufs[0]
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if r := vk.BeginCommandBuffer(cmd, &beginInfo); r != vk.Success {
		return &gpuerr.VkError{Call: "vkBeginCommandBuffer(scan readback)", Result: int32(r)}
	}
	region := vk.BufferCopy{SrcOffset: offset, DstOffset: 0, Size: 2}
	vk.CmdCopyBuffer(cmd, res.buffer, staging, 1, []vk.BufferCopy{region})
	if r := vk.EndCommandBuffer(cmd); r != vk.Success {
		return &gpuerr.VkError{Call: "vkEndCommandBuffer(scan readback)", Result: int32(r)}
	}

	fenceInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	var fence vk.Fence
	if r := vk.CreateFence(device, &fenceInfo, nil, &fence); r != vk.Success {
		return &gpuerr.VkError{Call: "vkCreateFence(scan readback)", Result: int32(r)}
	}
	defer vk.DestroyFence(device, fence, nil)

	timelineInfo := vk.TimelineSemaphoreSubmitInfo{
		SType:                   vk.StructureTypeTimelineSemaphoreSubmitInfo,
		WaitSemaphoreValueCount: 1,
		PWaitSemaphoreValues:    []uint64{res.semaphoreValue},
	}
	waitStages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageTransferBit)}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		PNext:              unsafe.Pointer(&timelineInfo),
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{res.semaphore},
		PWaitDstStageMask:  waitStages,
		CommandBufferCount: 1,
		PCommandBuffers:    cmdBufs,
	}

	queue, unlockQueue := s.ctx.Queue(QueueCompute)
	r = vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, fence)
	unlockQueue()
	if r != vk.Success {
		return &gpuerr.VkError{Call: "vkQueueSubmit(scan readback)", Result: int32(r)}
	}

	if r := vk.WaitForFences(device, 1, []vk.Fence{fence}, vk.True, ^uint64(0)); r != vk.Success {
		return &gpuerr.VkError{Call: "vkWaitForFences(scan readback)", Result: int32(r)}
	}
	return nil
}

// Destroy releases the scanner's compute pipelines.
func (s *Scanner) Destroy() {
	s.imagePass.destroy()
	s.bufPass.destroy()
}

// float16ToFloat32 converts an IEEE 754 half-precision bit pattern to
// float32.
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := (h >> 10) & 0x1f
	mant := uint32(h & 0x3ff)

	var bits uint32
	switch {
	case exp == 0 && mant == 0:
		bits = sign
	case exp == 0x1f:
		bits = sign | 0x7f800000 | (mant << 13)
	case exp == 0:
		// subnormal half -> normalize
		e := 0
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3ff
		bits = sign | uint32(int32(127-15+e+1))<<23 | (mant << 13)
	default:
		bits = sign | (uint32(exp)+(127-15))<<23 | (mant << 13)
	}
	return math.Float32frombits(bits)
}
