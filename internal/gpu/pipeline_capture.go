package gpu

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
	"github.com/hdrsnip/hdrsnip/internal/shaders"
)

// capturePushConstants mirrors the capture fragment shader's
// push_constant block.
type capturePushConstants struct {
	MaxBrightness float32
}

// capturePipeline draws the HDR capture as a full-screen triangle
// strip. The applyOETF specialisation constant is set
// when the surface is not HDR linear-sRGB and the fragment shader
// must re-encode before presentation.
type capturePipeline struct {
	ctx           *Context
	pipeline      *graphicsPipeline
	descSetLayout vk.DescriptorSetLayout
	sampler       vk.Sampler
}

func newCapturePipeline(ctx *Context, colorFormat vk.Format, hdrSurface bool) (*capturePipeline, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		AddressModeU: vk.SamplerAddressModeClampToEdge,
		AddressModeV: vk.SamplerAddressModeClampToEdge,
		AddressModeW: vk.SamplerAddressModeClampToEdge,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(ctx.Device(), &samplerInfo, nil, &sampler); res != vk.Success {
		return nil, &gpuerr.VkError{Call: "vkCreateSampler(capture)", Result: int32(res)}
	}

	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		Flags:        vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreateFlagBits(0x1)), // PUSH_DESCRIPTOR_BIT_KHR
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var setLayout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(ctx.Device(), &layoutInfo, nil, &setLayout); res != vk.Success {
		vk.DestroySampler(ctx.Device(), sampler, nil)
		return nil, &gpuerr.VkError{Call: "vkCreateDescriptorSetLayout(capture)", Result: int32(res)}
	}

	applyOETF := uint32(0)
	if !hdrSurface {
		applyOETF = 1
	}
	specEntries := []vk.SpecializationMapEntry{{ConstantID: 0, Offset: 0, Size: 4}}
	specInfo := vk.SpecializationInfo{
		MapEntryCount: 1,
		PMapEntries:   specEntries,
		DataSize:      4,
		PData:         unsafe.Pointer(&applyOETF),
	}

	pipeline, err := newGraphicsPipeline(ctx, graphicsPipelineConfig{
		name:     "capture",
		vertSPV:  shaders.CaptureVertexSPV,
		fragSPV:  shaders.CaptureFragmentSPV,
		topology: vk.PrimitiveTopologyTriangleStrip,
		pushConstants: []vk.PushConstantRange{
			{StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit), Offset: 0, Size: 4},
		},
		descLayouts:    []vk.DescriptorSetLayout{setLayout},
		specialization: &specInfo,
		colorFormat:    colorFormat,
	})
	if err != nil {
		vk.DestroyDescriptorSetLayout(ctx.Device(), setLayout, nil)
		vk.DestroySampler(ctx.Device(), sampler, nil)
		return nil, err
	}

	return &capturePipeline{ctx: ctx, pipeline: pipeline, descSetLayout: setLayout, sampler: sampler}, nil
}

// draw records the full-screen capture quad.
func (p *capturePipeline) draw(cmd vk.CommandBuffer, img *HDRImage, maxBrightness float32) {
	imageWrite := vk.WriteDescriptorSet{
		SType: vk.StructureTypeWriteDescriptorSet, DstBinding: 0, DescriptorCount: 1,
		DescriptorType: vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler: p.sampler, ImageView: img.View, ImageLayout: vk.ImageLayoutGeneral,
		}},
	}
	vk.CmdPushDescriptorSetKHR(cmd, vk.PipelineBindPointGraphics, p.pipeline.layout, 0, 1,
		[]vk.WriteDescriptorSet{imageWrite})

	pc := capturePushConstants{MaxBrightness: maxBrightness}
	vk.CmdPushConstants(cmd, p.pipeline.layout, vk.ShaderStageFlags(vk.ShaderStageFragmentBit), 0, 4, unsafe.Pointer(&pc))

	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, p.pipeline.pipeline)
	vk.CmdDraw(cmd, 4, 1, 0, 0)
}

func (p *capturePipeline) destroy() {
	p.pipeline.destroy()
	vk.DestroyDescriptorSetLayout(p.ctx.Device(), p.descSetLayout, nil)
	vk.DestroySampler(p.ctx.Device(), p.sampler, nil)
}
