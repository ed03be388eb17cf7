package gpu

import (
	"math"
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
	"github.com/hdrsnip/hdrsnip/internal/shaders"
)

// SRGBEncode is the host-side reference of the tonemap shader's
// transfer function. Debug tooling and tests pin the shader's output
// bytes against it.
func SRGBEncode(c float32) float32 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return float32(1.055*math.Pow(float64(c), 1/2.4) - 0.055)
}

// tonemapPushConstants mirrors the shader's push_constant block.
type tonemapPushConstants struct {
	Whitepoint float32
}

// Tonemapper applies the per-pixel HDR->SDR operator:
// clamp to [0, whitepoint], normalise, sRGB OETF, opaque alpha.
type Tonemapper struct {
	ctx            *Context
	descSetLayout  vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	pipeline       vk.Pipeline
	shaderModule   vk.ShaderModule
}

// NewTonemapper builds the tonemap compute pipeline.
func NewTonemapper(ctx *Context) (*Tonemapper, error) {
	module, err := createShaderModule(ctx, shaders.TonemapComputeSPV)
	if err != nil {
		return nil, err
	}

	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeStorageImage, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeStorageImage, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
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
		return nil, &gpuerr.VkError{Call: "vkCreateDescriptorSetLayout(tonemap)", Result: int32(res)}
	}

	pushRange := vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit), Offset: 0, Size: 4}
	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo, SetLayoutCount: 1, PSetLayouts: []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: 1, PPushConstantRanges: []vk.PushConstantRange{pushRange},
	}
	var pipelineLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(ctx.Device(), &pipelineLayoutInfo, nil, &pipelineLayout); res != vk.Success {
		vk.DestroyDescriptorSetLayout(ctx.Device(), setLayout, nil)
		vk.DestroyShaderModule(ctx.Device(), module, nil)
		return nil, &gpuerr.VkError{Call: "vkCreatePipelineLayout(tonemap)", Result: int32(res)}
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
		return nil, &gpuerr.VkError{Call: "vkCreateComputePipelines(tonemap)", Result: int32(res)}
	}

	return &Tonemapper{
		ctx: ctx, descSetLayout: setLayout,
		pipelineLayout: pipelineLayout, pipeline: pipelines[0], shaderModule: module,
	}, nil
}

// Tonemap creates an SDR image dimensioned to img and fills it by
// dispatching the tonemap shader at ceil(w/8) x ceil(h/8). On failure
// the SDR image is not created (allocation errors propagate before
// any dispatch; dispatch errors destroy the partial image).
func (t *Tonemapper) Tonemap(img *HDRImage, whitepoint float32) (*SDRImage, error) {
	log := logNamed("gpu.tonemap")
	start := time.Now()

	sdr, err := allocateSDR(t.ctx, img.Extent)
	if err != nil {
		return nil, err
	}
	if err := transitionLayout(t.ctx, QueueCompute, sdr.Image, vk.ImageLayoutUndefined, vk.ImageLayoutGeneral); err != nil {
		sdr.Destroy()
		return nil, err
	}

	dispatchX, dispatchY := dispatchCount2D(img.Extent.Width, img.Extent.Height, 8, 8)

	err = oneTimeCommand(t.ctx, QueueCompute, func(cmd vk.CommandBuffer) {
		t.ctx.BeginRegion(cmd, "tonemap")
		defer t.ctx.EndRegion(cmd)

		hdrWrite := vk.WriteDescriptorSet{
			SType: vk.StructureTypeWriteDescriptorSet, DstBinding: 0, DescriptorCount: 1,
			DescriptorType: vk.DescriptorTypeStorageImage,
			PImageInfo:     []vk.DescriptorImageInfo{{ImageView: img.View, ImageLayout: vk.ImageLayoutGeneral}},
		}
		sdrWrite := vk.WriteDescriptorSet{
			SType: vk.StructureTypeWriteDescriptorSet, DstBinding: 1, DescriptorCount: 1,
			DescriptorType: vk.DescriptorTypeStorageImage,
			PImageInfo:     []vk.DescriptorImageInfo{{ImageView: sdr.View, ImageLayout: vk.ImageLayoutGeneral}},
		}
		vk.CmdPushDescriptorSetKHR(cmd, vk.PipelineBindPointCompute, t.pipelineLayout, 0, 2,
			[]vk.WriteDescriptorSet{hdrWrite, sdrWrite})

		pc := tonemapPushConstants{Whitepoint: whitepoint}
		vk.CmdPushConstants(cmd, t.pipelineLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, 4, unsafe.Pointer(&pc))

		vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, t.pipeline)
		vk.CmdDispatch(cmd, dispatchX, dispatchY, 1)
	})
	if err != nil {
		sdr.Destroy()
		return nil, err
	}

	log.Info("tonemapped capture",
		zap.Float32("whitepoint", whitepoint),
		zap.Uint32("width", img.Extent.Width), zap.Uint32("height", img.Extent.Height),
		zap.Duration("elapsed", time.Since(start)))
	return sdr, nil
}

// Destroy releases the tonemap pipeline.
func (t *Tonemapper) Destroy() {
	vk.DestroyPipeline(t.ctx.Device(), t.pipeline, nil)
	vk.DestroyPipelineLayout(t.ctx.Device(), t.pipelineLayout, nil)
	vk.DestroyDescriptorSetLayout(t.ctx.Device(), t.descSetLayout, nil)
	vk.DestroyShaderModule(t.ctx.Device(), t.shaderModule, nil)
}
