package gpu

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
	"github.com/hdrsnip/hdrsnip/internal/shaders"
)

// scanOutputCount returns the number of per-subgroup maxima the image
// pass writes for an extent: one slot per subgroupSize-wide run of
// pixels per row.
func scanOutputCount(extent vk.Extent2D, subgroupSize uint32) uint32 {
	if subgroupSize == 0 {
		subgroupSize = defaultSubgroupSize
	}
	outputsPerRow := (extent.Width + subgroupSize - 1) / subgroupSize
	return outputsPerRow * extent.Height
}

// imagePassPushConstants mirrors the shader's push_constant block:
// the image extent, used to bound subgroup reads at image edges.
type imagePassPushConstants struct {
	Width, Height uint32
}

// imagePass is stage 1 of the scanner: one compute dispatch reducing
// the HDR image to one value per subgroup, written to the read half
// of the scan buffer.
type imagePass struct {
	ctx            *Context
	descSetLayout  vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	pipeline       vk.Pipeline
	shaderModule   vk.ShaderModule
}

func newImagePass(ctx *Context) (*imagePass, error) {
	module, err := createShaderModule(ctx, shaders.ImageScanComputeSPV)
	if err != nil {
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
		return nil, &gpuerr.VkError{Call: "vkCreateDescriptorSetLayout(imagePass)", Result: int32(res)}
	}

	pushRange := vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit), Offset: 0, Size: 8}
	layouts := []vk.DescriptorSetLayout{setLayout}
	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            layouts,
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushRange},
	}
	var pipelineLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(ctx.Device(), &pipelineLayoutInfo, nil, &pipelineLayout); res != vk.Success {
		vk.DestroyDescriptorSetLayout(ctx.Device(), setLayout, nil)
		vk.DestroyShaderModule(ctx.Device(), module, nil)
		return nil, &gpuerr.VkError{Call: "vkCreatePipelineLayout(imagePass)", Result: int32(res)}
	}

	stageInfo := vk.PipelineShaderStageCreateInfo{
		SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageComputeBit,
		Module: module, PName: safeString("main"),
	}
	createInfo := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo, Stage: stageInfo, Layout: pipelineLayout,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(ctx.Device(), vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{createInfo}, nil, pipelines); res != vk.Success {
		vk.DestroyPipelineLayout(ctx.Device(), pipelineLayout, nil)
		vk.DestroyDescriptorSetLayout(ctx.Device(), setLayout, nil)
		vk.DestroyShaderModule(ctx.Device(), module, nil)
		return nil, &gpuerr.VkError{Call: "vkCreateComputePipelines(imagePass)", Result: int32(res)}
	}

	return &imagePass{
		ctx: ctx, descSetLayout: setLayout, pipelineLayout: pipelineLayout,
		pipeline: pipelines[0], shaderModule: module,
	}, nil
}

// run dispatches ceil(width/W) x ceil(height/subgroupSize) threads and
// returns the element count written to the scan buffer's read half.
func (p *imagePass) run(img *HDRImage, res *ScanResources) (uint32, error) {
	const workgroupWidth = 256
	dispatchX := (img.Extent.Width + workgroupWidth - 1) / workgroupWidth
	dispatchY := (img.Extent.Height + res.subgroupSize - 1) / res.subgroupSize

	outputCount := scanOutputCount(img.Extent, res.subgroupSize)

	err := oneTimeCommand(p.ctx, QueueCompute, func(cmd vk.CommandBuffer) {
		p.ctx.BeginRegion(cmd, "scan image pass")
		defer p.ctx.EndRegion(cmd)

		imageWrite := vk.WriteDescriptorSet{
			SType: vk.StructureTypeWriteDescriptorSet, DstBinding: 0, DescriptorCount: 1,
			DescriptorType: vk.DescriptorTypeStorageImage,
			PImageInfo:     []vk.DescriptorImageInfo{{ImageView: img.View, ImageLayout: vk.ImageLayoutGeneral}},
		}
		bufferWrite := vk.WriteDescriptorSet{
			SType: vk.StructureTypeWriteDescriptorSet, DstBinding: 1, DescriptorCount: 1,
			DescriptorType: vk.DescriptorTypeStorageBuffer,
			PBufferInfo:    []vk.DescriptorBufferInfo{{Buffer: res.buffer, Offset: 0, Range: res.halfSize}},
		}
		vk.CmdPushDescriptorSetKHR(cmd, vk.PipelineBindPointCompute, p.pipelineLayout, 0, 2,
			[]vk.WriteDescriptorSet{imageWrite, bufferWrite})

		pc := imagePassPushConstants{Width: img.Extent.Width, Height: img.Extent.Height}
		vk.CmdPushConstants(cmd, p.pipelineLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, 8, unsafe.Pointer(&pc))

		vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, p.pipeline)
		vk.CmdDispatch(cmd, dispatchX, dispatchY, 1)
	})
	if err != nil {
		return 0, err
	}

	res.resultInRead = true
	return outputCount, nil
}

func (p *imagePass) destroy() {
	vk.DestroyPipeline(p.ctx.Device(), p.pipeline, nil)
	vk.DestroyPipelineLayout(p.ctx.Device(), p.pipelineLayout, nil)
	vk.DestroyDescriptorSetLayout(p.ctx.Device(), p.descSetLayout, nil)
	vk.DestroyShaderModule(p.ctx.Device(), p.shaderModule, nil)
}

func createShaderModule(ctx *Context, spirv []byte) (vk.ShaderModule, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(spirv)),
		PCode:    sliceUint32(spirv),
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(ctx.Device(), &info, nil, &module); res != vk.Success {
		return vk.NullShaderModule, &gpuerr.VkError{Call: "vkCreateShaderModule", Result: int32(res)}
	}
	return module, nil
}

// sliceUint32 reinterprets a SPIR-V byte slice as the []uint32 the
// Vulkan API expects.
func sliceUint32(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
	}
	return out
}
