package gpu

import (
	"errors"
	"sync"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
)

// acquireTimeoutNs bounds how long a frame waits for the next
// swapchain image before skipping.
const acquireTimeoutNs = 100 * 1000 * 1000

// borderWidthPx is the selection border thickness; caps extend half
// of it past each corner.
const borderWidthPx = float32(2)

// clearColor is the background drawn behind the capture.
var clearColor = [4]float32{0.05, 0.05, 0.05, 1}

// Renderer owns the swapchain and the three graphics pipelines, and
// draws the capture, selection shading, border, and crosshair guides
// once per frame from a snapshot of its shared state.
type Renderer struct {
	ctx     *Context
	log     *zap.Logger
	surface vk.Surface

	sc    *swapchain
	state *RendererState

	capture   *capturePipeline
	selection *selectionPipeline
	lines     *linePipeline

	extentMu      sync.Mutex
	pendingExtent vk.Extent2D
}

// NewRenderer creates the swapchain and pipelines against an existing
// surface. The surface is created by the window layer from the
// platform display/window handles and destroyed by it after the
// renderer. state is shared with the controller, which may have been
// publishing into it before the render thread came up.
func NewRenderer(ctx *Context, surface vk.Surface, extent vk.Extent2D, state *RendererState) (*Renderer, error) {
	r := &Renderer{
		ctx: ctx, log: logNamed("gpu.renderer"), surface: surface,
		state:         state,
		pendingExtent: extent,
	}

	sc, err := newSwapchain(ctx, surface, extent)
	if err != nil {
		return nil, err
	}
	r.sc = sc

	if err := r.createPipelines(); err != nil {
		sc.destroy()
		return nil, err
	}

	r.log.Info("renderer ready",
		zap.Uint32("width", sc.extent.Width), zap.Uint32("height", sc.extent.Height),
		zap.Bool("hdrSurface", sc.hdr))
	return r, nil
}

// State returns the shared renderer state the controller publishes
// into.
func (r *Renderer) State() *RendererState { return r.state }

// Resize records the new window extent and flags the swapchain for
// rebuild on the next frame.
func (r *Renderer) Resize(width, height uint32) {
	r.extentMu.Lock()
	r.pendingExtent = vk.Extent2D{Width: width, Height: height}
	r.extentMu.Unlock()
	r.sc.needsToRebuild = true
}

func (r *Renderer) currentExtent() vk.Extent2D {
	r.extentMu.Lock()
	defer r.extentMu.Unlock()
	return r.pendingExtent
}

func (r *Renderer) createPipelines() error {
	capture, err := newCapturePipeline(r.ctx, r.sc.format.Format, r.sc.hdr)
	if err != nil {
		return err
	}
	selection, err := newSelectionPipeline(r.ctx, r.sc.format.Format)
	if err != nil {
		capture.destroy()
		return err
	}
	lines, err := newLinePipeline(r.ctx, r.sc.format.Format)
	if err != nil {
		selection.destroy()
		capture.destroy()
		return err
	}
	r.capture = capture
	r.selection = selection
	r.lines = lines
	return nil
}

func (r *Renderer) destroyPipelines() {
	if r.lines != nil {
		r.lines.destroy()
		r.lines = nil
	}
	if r.selection != nil {
		r.selection.destroy()
		r.selection = nil
	}
	if r.capture != nil {
		r.capture.destroy()
		r.capture = nil
	}
}

// RenderFrame runs one iteration of the render loop. A
// nil return with nothing drawn (zero-sized window, acquire timeout)
// is a skipped frame, not an error.
func (r *Renderer) RenderFrame() error {
	if r.sc.needsToRebuild {
		extent := r.currentExtent()
		if extent.Width == 0 || extent.Height == 0 {
			return nil
		}
		r.destroyPipelines()
		if err := r.sc.rebuild(extent); err != nil {
			var invalid *gpuerr.InvalidExtent
			if errors.As(err, &invalid) {
				// Minimized window; keep needsToRebuild set and skip.
				return nil
			}
			return err
		}
		// The surface format may have changed with the swapchain.
		if err := r.createPipelines(); err != nil {
			return err
		}
	}

	frame := &r.sc.frames[r.sc.frameIndex]

	vk.WaitForFences(r.ctx.Device(), 1, []vk.Fence{frame.inFlight}, vk.True, ^uint64(0))

	var imageIndex uint32
	switch res := vk.AcquireNextImage(r.ctx.Device(), r.sc.handle, acquireTimeoutNs, frame.imageAvailable, vk.NullFence, &imageIndex); res {
	case vk.Success:
	case vk.Suboptimal:
		r.sc.needsToRebuild = true
	case vk.NotReady, vk.Timeout:
		return nil
	case vk.ErrorOutOfDate:
		r.sc.needsToRebuild = true
		return nil
	case vk.ErrorDeviceLost:
		return &gpuerr.DeviceLost{Reason: "vkAcquireNextImage"}
	default:
		return &gpuerr.VkError{Call: "vkAcquireNextImage", Result: int32(res)}
	}

	vk.ResetFences(r.ctx.Device(), 1, []vk.Fence{frame.inFlight})

	vk.ResetCommandPool(r.ctx.Device(), frame.commandPool, 0)
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(frame.commandBuffer, &beginInfo); res != vk.Success {
		return &gpuerr.VkError{Call: "vkBeginCommandBuffer(frame)", Result: int32(res)}
	}

	r.recordFrame(frame.commandBuffer, imageIndex)

	if res := vk.EndCommandBuffer(frame.commandBuffer); res != vk.Success {
		return &gpuerr.VkError{Call: "vkEndCommandBuffer(frame)", Result: int32(res)}
	}

	queue, unlock := r.ctx.Queue(QueueGraphics)
	waitStages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{frame.imageAvailable},
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{frame.commandBuffer},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{frame.renderFinished},
	}
	if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, frame.inFlight); res != vk.Success {
		unlock()
		if res == vk.ErrorDeviceLost {
			return &gpuerr.DeviceLost{Reason: "vkQueueSubmit(frame)"}
		}
		return &gpuerr.VkError{Call: "vkQueueSubmit(frame)", Result: int32(res)}
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{frame.renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{r.sc.handle},
		PImageIndices:      []uint32{imageIndex},
	}
	res := vk.QueuePresent(queue, &presentInfo)
	unlock()
	switch res {
	case vk.Success:
	case vk.Suboptimal, vk.ErrorOutOfDate:
		r.sc.needsToRebuild = true
	case vk.ErrorDeviceLost:
		return &gpuerr.DeviceLost{Reason: "vkQueuePresent"}
	default:
		return &gpuerr.VkError{Call: "vkQueuePresent", Result: int32(res)}
	}

	r.sc.frameIndex = (r.sc.frameIndex + 1) % MaxFramesInFlight
	return nil
}

// recordFrame records the layout transitions, the dynamic-rendering
// pass, and the draws for one swapchain image.
func (r *Renderer) recordFrame(cmd vk.CommandBuffer, imageIndex uint32) {
	image := r.sc.images[imageIndex]

	// The pass clears the whole attachment, so the acquire-side
	// transition can discard previous contents.
	r.swapchainBarrier(cmd, image,
		vk.ImageLayoutUndefined, vk.ImageLayoutColorAttachmentOptimal,
		0, vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit))

	var clear vk.ClearValue
	clear.SetColor(clearColor[:])
	colorAttachment := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   r.sc.views[imageIndex],
		ImageLayout: vk.ImageLayoutColorAttachmentOptimal,
		LoadOp:      vk.AttachmentLoadOpClear,
		StoreOp:     vk.AttachmentStoreOpStore,
		ClearValue:  clear,
	}
	renderingInfo := vk.RenderingInfo{
		SType:                vk.StructureTypeRenderingInfo,
		RenderArea:           vk.Rect2D{Offset: vk.Offset2D{}, Extent: r.sc.extent},
		LayerCount:           1,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.RenderingAttachmentInfo{colorAttachment},
	}
	vk.CmdBeginRendering(cmd, &renderingInfo)

	viewport := vk.Viewport{
		X: 0, Y: 0,
		Width:    float32(r.sc.extent.Width),
		Height:   float32(r.sc.extent.Height),
		MinDepth: 0, MaxDepth: 1,
	}
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{viewport})
	scissor := vk.Rect2D{Offset: vk.Offset2D{}, Extent: r.sc.extent}
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{scissor})

	snapshot := r.state.Snapshot()
	if snapshot.HDRImage != nil {
		r.drawScene(cmd, snapshot)
	}

	vk.CmdEndRendering(cmd)

	r.swapchainBarrier(cmd, image,
		vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutPresentSrc,
		vk.AccessFlags(vk.AccessColorAttachmentWriteBit), 0,
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit))
}

func (r *Renderer) drawScene(cmd vk.CommandBuffer, snapshot StateSnapshot) {
	width := float32(r.sc.extent.Width)
	height := float32(r.sc.extent.Height)

	maxBrightness := snapshot.MaxBrightness
	if maxBrightness <= 0 {
		maxBrightness = 1
	}
	r.capture.draw(cmd, snapshot.HDRImage, maxBrightness)

	startNDC := ScreenSpace(snapshot.Selection[0], width, height)
	endNDC := ScreenSpace(snapshot.Selection[1], width, height)
	r.selection.draw(cmd, startNDC, endNDC)

	minNDC := [2]float32{minF(startNDC[0], endNDC[0]), minF(startNDC[1], endNDC[1])}
	maxNDC := [2]float32{maxF(startNDC[0], endNDC[0]), maxF(startNDC[1], endNDC[1])}
	// half the border width, converted to NDC units per axis
	capX := borderWidthPx / width
	capY := borderWidthPx / height
	r.lines.drawBorder(cmd, minNDC, maxNDC, capX, capY)

	mouseNDC := ScreenSpace(snapshot.MousePosition, width, height)
	r.lines.drawGuides(cmd, mouseNDC)
}

func (r *Renderer) swapchainBarrier(cmd vk.CommandBuffer, image vk.Image, from, to vk.ImageLayout, srcAccess, dstAccess vk.AccessFlags, srcStage, dstStage vk.PipelineStageFlags) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1, LayerCount: 1,
		},
		SrcAccessMask: srcAccess,
		DstAccessMask: dstAccess,
	}
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// Destroy waits for the device to idle and tears down pipelines and
// the swapchain. The surface itself is destroyed by the window layer.
func (r *Renderer) Destroy() {
	unlock := r.ctx.DeviceWaitIdle()
	defer unlock()
	r.destroyPipelines()
	r.sc.destroy()
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
