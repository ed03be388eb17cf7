package gpu

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
	"github.com/hdrsnip/hdrsnip/internal/shaders"
)

// selectionVertex is one vertex of the picture-frame strip. Movable
// vertices snap to the selection corners in the vertex shader; their
// baked position's sign selects which corner.
type selectionVertex struct {
	X, Y    float32
	Movable float32
}

// selectionVertices is the 10-vertex triangle strip forming the
// "picture frame": outer rect fixed to the screen edges, inner rect
// following the selection. The strip alternates
// outer/inner around the frame and closes by repeating the first
// pair.
var selectionVertices = [10]selectionVertex{
	{-1, -1, 0}, {-0.5, -0.5, 1},
	{1, -1, 0}, {0.5, -0.5, 1},
	{1, 1, 0}, {0.5, 0.5, 1},
	{-1, 1, 0}, {-0.5, 0.5, 1},
	{-1, -1, 0}, {-0.5, -0.5, 1},
}

// selectionPushConstants carries the selection's two opposite corners
// in NDC.
type selectionPushConstants struct {
	StartX, StartY float32
	EndX, EndY     float32
}

// selectionPipeline shades everything outside the selection with
// semi-transparent black, source-alpha blended.
type selectionPipeline struct {
	ctx          *Context
	pipeline     *graphicsPipeline
	vertexBuffer vk.Buffer
	vertexMemory vk.DeviceMemory
}

func newSelectionPipeline(ctx *Context, colorFormat vk.Format) (*selectionPipeline, error) {
	pipeline, err := newGraphicsPipeline(ctx, graphicsPipelineConfig{
		name:     "selection",
		vertSPV:  shaders.SelectionVertexSPV,
		fragSPV:  shaders.SelectionFragmentSPV,
		topology: vk.PrimitiveTopologyTriangleStrip,
		vertexBindings: []vk.VertexInputBindingDescription{
			{Binding: 0, Stride: 12, InputRate: vk.VertexInputRateVertex},
		},
		vertexAttrs: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: vk.FormatR32Sfloat, Offset: 8},
		},
		pushConstants: []vk.PushConstantRange{
			{StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit), Offset: 0, Size: 16},
		},
		blend:       true,
		colorFormat: colorFormat,
	})
	if err != nil {
		return nil, err
	}

	sp := &selectionPipeline{ctx: ctx, pipeline: pipeline}
	if err := sp.createVertexBuffer(); err != nil {
		pipeline.destroy()
		return nil, err
	}
	return sp, nil
}

func (p *selectionPipeline) createVertexBuffer() error {
	size := vk.DeviceSize(len(selectionVertices) * 12)
	bufInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(p.ctx.Device(), &bufInfo, nil, &buffer); res != vk.Success {
		return &gpuerr.VkError{Call: "vkCreateBuffer(selection vertices)", Result: int32(res)}
	}
	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(p.ctx.Device(), buffer, &memReqs)
	memReqs.Deref()
	memType, err := p.ctx.FindMemoryType(memReqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(p.ctx.Device(), buffer, nil)
		return err
	}
	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: memReqs.Size, MemoryTypeIndex: memType}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(p.ctx.Device(), &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyBuffer(p.ctx.Device(), buffer, nil)
		return &gpuerr.VkError{Call: "vkAllocateMemory(selection vertices)", Result: int32(res)}
	}
	vk.BindBufferMemory(p.ctx.Device(), buffer, memory, 0)

	var mapped unsafe.Pointer
	if res := vk.MapMemory(p.ctx.Device(), memory, 0, size, 0, &mapped); res != vk.Success {
		vk.FreeMemory(p.ctx.Device(), memory, nil)
		vk.DestroyBuffer(p.ctx.Device(), buffer, nil)
		return &gpuerr.VkError{Call: "vkMapMemory(selection vertices)", Result: int32(res)}
	}
	src := (*(*[len(selectionVertices) * 12]byte)(unsafe.Pointer(&selectionVertices)))[:]
	vk.Memcopy((*(*[len(selectionVertices) * 12]byte)(mapped))[:], src)
	vk.UnmapMemory(p.ctx.Device(), memory)

	p.vertexBuffer = buffer
	p.vertexMemory = memory
	return nil
}

// draw records the picture-frame strip with the selection corners in
// NDC.
func (p *selectionPipeline) draw(cmd vk.CommandBuffer, startNDC, endNDC [2]float32) {
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{p.vertexBuffer}, []vk.DeviceSize{0})

	pc := selectionPushConstants{
		StartX: startNDC[0], StartY: startNDC[1],
		EndX: endNDC[0], EndY: endNDC[1],
	}
	vk.CmdPushConstants(cmd, p.pipeline.layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, 16, unsafe.Pointer(&pc))

	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, p.pipeline.pipeline)
	vk.CmdDraw(cmd, uint32(len(selectionVertices)), 1, 0, 0)
}

func (p *selectionPipeline) destroy() {
	p.pipeline.destroy()
	if p.vertexBuffer != vk.NullBuffer {
		vk.DestroyBuffer(p.ctx.Device(), p.vertexBuffer, nil)
	}
	if p.vertexMemory != vk.NullDeviceMemory {
		vk.FreeMemory(p.ctx.Device(), p.vertexMemory, nil)
	}
}
