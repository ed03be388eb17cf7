package gpu

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/hdrsnip/hdrsnip/internal/shaders"
)

// linePushConstants carries one segment's endpoints in NDC plus its
// colour.
type linePushConstants struct {
	StartX, StartY float32
	EndX, EndY     float32
	R, G, B, A     float32
}

// borderColor is the selection border; guideColor is the mouse
// crosshair.
var (
	borderColor = [4]float32{1, 1, 1, 1}
	guideColor  = [4]float32{1, 1, 1, 0.35}
)

// linePipeline draws push-constant-supplied line segments. Used for
// the selection border (four lines with caps extending half the
// border width past each corner) and the mouse crosshair guides.
type linePipeline struct {
	ctx      *Context
	pipeline *graphicsPipeline
}

func newLinePipeline(ctx *Context, colorFormat vk.Format) (*linePipeline, error) {
	pipeline, err := newGraphicsPipeline(ctx, graphicsPipelineConfig{
		name:     "line",
		vertSPV:  shaders.LineVertexSPV,
		fragSPV:  shaders.LineFragmentSPV,
		topology: vk.PrimitiveTopologyLineList,
		pushConstants: []vk.PushConstantRange{
			{StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit), Offset: 0, Size: 32},
		},
		blend:       true,
		colorFormat: colorFormat,
	})
	if err != nil {
		return nil, err
	}
	return &linePipeline{ctx: ctx, pipeline: pipeline}, nil
}

// drawSegment records one line from start to end in NDC.
func (p *linePipeline) drawSegment(cmd vk.CommandBuffer, start, end [2]float32, color [4]float32) {
	pc := linePushConstants{
		StartX: start[0], StartY: start[1],
		EndX: end[0], EndY: end[1],
		R: color[0], G: color[1], B: color[2], A: color[3],
	}
	vk.CmdPushConstants(cmd, p.pipeline.layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, 32, unsafe.Pointer(&pc))
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, p.pipeline.pipeline)
	vk.CmdDraw(cmd, 2, 1, 0, 0)
}

// drawBorder records the four border lines around the selection rect
// given in NDC, with caps extending capX/capY (half the border width,
// in NDC units) past each corner.
func (p *linePipeline) drawBorder(cmd vk.CommandBuffer, min, max [2]float32, capX, capY float32) {
	// horizontal edges, extended past the corners
	p.drawSegment(cmd, [2]float32{min[0] - capX, min[1]}, [2]float32{max[0] + capX, min[1]}, borderColor)
	p.drawSegment(cmd, [2]float32{min[0] - capX, max[1]}, [2]float32{max[0] + capX, max[1]}, borderColor)
	// vertical edges
	p.drawSegment(cmd, [2]float32{min[0], min[1] - capY}, [2]float32{min[0], max[1] + capY}, borderColor)
	p.drawSegment(cmd, [2]float32{max[0], min[1] - capY}, [2]float32{max[0], max[1] + capY}, borderColor)
}

// drawGuides records the two full-window crosshair lines through the
// mouse position in NDC.
func (p *linePipeline) drawGuides(cmd vk.CommandBuffer, mouse [2]float32) {
	p.drawSegment(cmd, [2]float32{-1, mouse[1]}, [2]float32{1, mouse[1]}, guideColor)
	p.drawSegment(cmd, [2]float32{mouse[0], -1}, [2]float32{mouse[0], 1}, guideColor)
}

func (p *linePipeline) destroy() {
	p.pipeline.destroy()
}
