package gpu

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
)

// graphicsPipelineConfig collects the per-pipeline knobs the three
// render pipelines differ in; everything else (dynamic viewport and
// scissor, dynamic rendering against the swapchain format, no depth)
// is shared.
type graphicsPipelineConfig struct {
	name           string
	vertSPV        []byte
	fragSPV        []byte
	topology       vk.PrimitiveTopology
	vertexBindings []vk.VertexInputBindingDescription
	vertexAttrs    []vk.VertexInputAttributeDescription
	pushConstants  []vk.PushConstantRange
	descLayouts    []vk.DescriptorSetLayout
	specialization *vk.SpecializationInfo
	blend          bool
	colorFormat    vk.Format
}

// graphicsPipeline owns the pipeline and its layout plus the shader
// modules; recreated whole on swapchain rebuild because the surface
// format may change.
type graphicsPipeline struct {
	ctx        *Context
	pipeline   vk.Pipeline
	layout     vk.PipelineLayout
	vertModule vk.ShaderModule
	fragModule vk.ShaderModule
}

func newGraphicsPipeline(ctx *Context, cfg graphicsPipelineConfig) (*graphicsPipeline, error) {
	vertModule, err := createShaderModule(ctx, cfg.vertSPV)
	if err != nil {
		return nil, err
	}
	fragModule, err := createShaderModule(ctx, cfg.fragSPV)
	if err != nil {
		vk.DestroyShaderModule(ctx.Device(), vertModule, nil)
		return nil, err
	}

	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(cfg.descLayouts)),
		PSetLayouts:            cfg.descLayouts,
		PushConstantRangeCount: uint32(len(cfg.pushConstants)),
		PPushConstantRanges:    cfg.pushConstants,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(ctx.Device(), &layoutInfo, nil, &layout); res != vk.Success {
		vk.DestroyShaderModule(ctx.Device(), fragModule, nil)
		vk.DestroyShaderModule(ctx.Device(), vertModule, nil)
		return nil, &gpuerr.VkError{Call: "vkCreatePipelineLayout(" + cfg.name + ")", Result: int32(res)}
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageVertexBit,
			Module: vertModule, PName: safeString("main"),
		},
		{
			SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageFragmentBit,
			Module: fragModule, PName: safeString("main"), PSpecializationInfo: cfg.specialization,
		},
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(cfg.vertexBindings)),
		PVertexBindingDescriptions:      cfg.vertexBindings,
		VertexAttributeDescriptionCount: uint32(len(cfg.vertexAttrs)),
		PVertexAttributeDescriptions:    cfg.vertexAttrs,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: cfg.topology,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}

	blendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if cfg.blend {
		blendAttachment.BlendEnable = vk.True
		blendAttachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		blendAttachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blendAttachment.ColorBlendOp = vk.BlendOpAdd
		blendAttachment.SrcAlphaBlendFactor = vk.BlendFactorOne
		blendAttachment.DstAlphaBlendFactor = vk.BlendFactorZero
		blendAttachment.AlphaBlendOp = vk.BlendOpAdd
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	colorFormats := []vk.Format{cfg.colorFormat}
	renderingInfo := vk.PipelineRenderingCreateInfo{
		SType:                   vk.StructureTypePipelineRenderingCreateInfo,
		ColorAttachmentCount:    1,
		PColorAttachmentFormats: colorFormats,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               unsafe.Pointer(&renderingInfo),
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(ctx.Device(), vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines); res != vk.Success {
		vk.DestroyPipelineLayout(ctx.Device(), layout, nil)
		vk.DestroyShaderModule(ctx.Device(), fragModule, nil)
		vk.DestroyShaderModule(ctx.Device(), vertModule, nil)
		return nil, &gpuerr.VkError{Call: "vkCreateGraphicsPipelines(" + cfg.name + ")", Result: int32(res)}
	}

	return &graphicsPipeline{
		ctx: ctx, pipeline: pipelines[0], layout: layout,
		vertModule: vertModule, fragModule: fragModule,
	}, nil
}

func (p *graphicsPipeline) destroy() {
	vk.DestroyPipeline(p.ctx.Device(), p.pipeline, nil)
	vk.DestroyPipelineLayout(p.ctx.Device(), p.layout, nil)
	vk.DestroyShaderModule(p.ctx.Device(), p.fragModule, nil)
	vk.DestroyShaderModule(p.ctx.Device(), p.vertModule, nil)
}
