// Package gpu implements the Vulkan compute/render pipeline: device
// context, HDR/SDR images, the maximum-luminance scanner, histogram
// generator, HDR->SDR tonemapper, and the live-preview renderer.
package gpu

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
	"github.com/hdrsnip/hdrsnip/internal/logx"
)

// QueuePurpose distinguishes the logical role a submission serves.
// Both purposes alias the same physical queue; a single queue family
// avoids ownership transfers on images shared across passes.
type QueuePurpose int

const (
	QueueCompute QueuePurpose = iota
	QueueGraphics
)

// requiredDeviceExtensions are checked during physical device
// selection: 16-bit storage, subgroup extended types,
// timeline semaphores, synchronization-2, external memory import,
// dynamic rendering, push descriptors. Shader objects are enabled when
// the device offers them but are not required; the renderer uses
// compiled pipelines.
var requiredDeviceExtensions = []string{
	"VK_KHR_16bit_storage",
	"VK_KHR_shader_subgroup_extended_types",
	"VK_KHR_timeline_semaphore",
	"VK_KHR_synchronization2",
	"VK_KHR_external_memory_win32",
	"VK_KHR_dynamic_rendering",
	"VK_KHR_push_descriptor",
}

const shaderObjectExtension = "VK_EXT_shader_object"

// Context is the process-wide GPU handle: instance, physical device,
// logical device, queues, and a shared transient command pool. Every
// other component borrows it; it outlives all of them.
type Context struct {
	log *zap.Logger

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	device         vk.Device

	queueFamily uint32
	queueMu     sync.Mutex
	queue       vk.Queue // aliases compute and graphics purposes

	transientMu   sync.Mutex
	transientPool vk.CommandPool

	hasPushDescriptor bool
	hasShaderObject   bool
	subgroupSize      uint32
	debug             bool
}

// New creates the GPU context. wantDebug enables validation layers and
// debug-utils object labelling. displayHandle is accepted but not
// read: the queue family is chosen for graphics and compute support
// only, and presentation support is not checked here.
func New(wantDebug bool, displayHandle uintptr) (*Context, error) {
	log := logx.Named("gpu.context")

	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, &gpuerr.UnsupportedInstance{Missing: []string{"vulkan loader: " + err.Error()}}
	}
	if err := vk.Init(); err != nil {
		return nil, &gpuerr.UnsupportedInstance{Missing: []string{"vulkan init: " + err.Error()}}
	}

	ctx := &Context{log: log, debug: wantDebug}

	if err := ctx.createInstance(wantDebug); err != nil {
		return nil, err
	}
	if err := ctx.selectPhysicalDevice(); err != nil {
		ctx.destroyInstance()
		return nil, err
	}
	if err := ctx.createDevice(); err != nil {
		ctx.destroyInstance()
		return nil, err
	}
	if err := ctx.createTransientPool(); err != nil {
		ctx.destroyDevice()
		ctx.destroyInstance()
		return nil, err
	}

	log.Info("gpu context ready",
		zap.Bool("debug", wantDebug),
		zap.Bool("pushDescriptor", ctx.hasPushDescriptor),
		zap.Bool("shaderObject", ctx.hasShaderObject),
	)
	return ctx, nil
}

func (c *Context) createInstance(wantDebug bool) error {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   safeString("hdrsnip"),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        safeString("hdrsnip-gpu"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 2, 198),
	}

	var layers, extensions []string
	if wantDebug {
		layers = append(layers, "VK_LAYER_KHRONOS_validation")
		extensions = append(extensions, "VK_EXT_debug_utils")
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return &gpuerr.UnsupportedInstance{Missing: []string{fmt.Sprintf("vkCreateInstance: %d", res)}}
	}
	c.instance = instance
	vk.InitInstance(instance)
	return nil
}

// devicePreference orders candidate devices: discrete first, then
// integrated, virtual, CPU, anything else last.
func devicePreference(deviceType vk.PhysicalDeviceType) int {
	switch deviceType {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 0
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 1
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 2
	case vk.PhysicalDeviceTypeCpu:
		return 3
	default:
		return 5
	}
}

func (c *Context) selectPhysicalDevice() error {
	var count uint32
	vk.EnumeratePhysicalDevices(c.instance, &count, nil)
	if count == 0 {
		return &gpuerr.UnsupportedDevice{Reason: "no Vulkan-capable GPU present"}
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(c.instance, &count, devices)

	type candidate struct {
		device      vk.PhysicalDevice
		queueFamily uint32
		preference  int
		props       vk.PhysicalDeviceProperties
	}
	var candidates []candidate

	for _, dev := range devices {
		if !c.deviceHasRequiredExtensions(dev) {
			continue
		}
		family, ok := c.findQueueFamily(dev)
		if !ok {
			continue
		}
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(dev, &props)
		props.Deref()
		candidates = append(candidates, candidate{
			device:      dev,
			queueFamily: family,
			preference:  devicePreference(props.DeviceType),
			props:       props,
		})
	}

	if len(candidates) == 0 {
		return &gpuerr.UnsupportedDevice{Reason: "no device exposes the required extensions and a combined graphics+compute queue"}
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.preference < best.preference {
			best = cand
		}
	}

	c.physicalDevice = best.device
	c.queueFamily = best.queueFamily
	c.subgroupSize = querySubgroupSize(best.device)
	c.log.Info("selected physical device",
		zap.String("name", safeStringFromBytes(best.props.DeviceName[:])),
		zap.Int("preference", best.preference),
	)
	return nil
}

// findQueueFamily looks for a single family supporting both graphics
// and compute, matching the design's single-queue-family default.
func (c *Context) findQueueFamily(dev vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, families)

	const want = vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit)
	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&want == want {
			return uint32(i), true
		}
	}
	return 0, false
}

func (c *Context) deviceHasRequiredExtensions(dev vk.PhysicalDevice) bool {
	var count uint32
	vk.EnumerateDeviceExtensionProperties(dev, "", &count, nil)
	props := make([]vk.ExtensionProperties, count)
	vk.EnumerateDeviceExtensionProperties(dev, "", &count, props)

	have := make(map[string]bool, len(props))
	for i := range props {
		props[i].Deref()
		have[safeStringFromBytes(props[i].ExtensionName[:])] = true
	}

	for _, ext := range requiredDeviceExtensions {
		if !have[ext] {
			return false
		}
	}
	return true
}

func (c *Context) createDevice() error {
	var count uint32
	vk.EnumerateDeviceExtensionProperties(c.physicalDevice, "", &count, nil)
	props := make([]vk.ExtensionProperties, count)
	vk.EnumerateDeviceExtensionProperties(c.physicalDevice, "", &count, props)
	have := make(map[string]bool, len(props))
	for i := range props {
		props[i].Deref()
		have[safeStringFromBytes(props[i].ExtensionName[:])] = true
	}

	extensions := append([]string{}, requiredDeviceExtensions...)
	c.hasPushDescriptor = true // required device extension, checked during selection
	if have[shaderObjectExtension] {
		extensions = append(extensions, shaderObjectExtension)
		c.hasShaderObject = true
	}
	if have["VK_KHR_portability_subset"] {
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	priority := float32(1.0)
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: c.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{priority},
	}

	deviceInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vk.DeviceQueueCreateInfo{queueInfo},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	var device vk.Device
	if res := vk.CreateDevice(c.physicalDevice, &deviceInfo, nil, &device); res != vk.Success {
		return &gpuerr.VkError{Call: "vkCreateDevice", Result: int32(res)}
	}
	c.device = device
	vk.InitDevice(device)

	var queue vk.Queue
	vk.GetDeviceQueue(device, c.queueFamily, 0, &queue)
	c.queue = queue

	c.DebugLabel(device, "hdrsnip-device")
	return nil
}

func (c *Context) createTransientPool() error {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: c.queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit | vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(c.device, &poolInfo, nil, &pool); res != vk.Success {
		return &gpuerr.VkError{Call: "vkCreateCommandPool(transient)", Result: int32(res)}
	}
	c.transientPool = pool
	return nil
}

// Device returns the logical device handle for components that need
// to issue their own calls (image/buffer creation, pipeline setup).
func (c *Context) Device() vk.Device                 { return c.device }
func (c *Context) PhysicalDevice() vk.PhysicalDevice { return c.physicalDevice }
func (c *Context) Instance() vk.Instance             { return c.instance }
func (c *Context) QueueFamily() uint32               { return c.queueFamily }
func (c *Context) HasShaderObject() bool             { return c.hasShaderObject }

// SubgroupSize returns the device's subgroup width, which sizes the
// scanner's per-subgroup output slots. Zero means the query was
// unavailable; callers fall back to a conservative default.
func (c *Context) SubgroupSize() uint32 { return c.subgroupSize }

// Queue returns the mutex-guarded queue for the given purpose. Callers
// must hold the returned unlock function across the submit call.
func (c *Context) Queue(_ QueuePurpose) (vk.Queue, func()) {
	c.queueMu.Lock()
	return c.queue, c.queueMu.Unlock
}

// TransientPool returns the shared transient command pool, locked for
// the duration of a single allocate+record+submit+free cycle.
func (c *Context) TransientPool() (vk.CommandPool, func()) {
	c.transientMu.Lock()
	return c.transientPool, c.transientMu.Unlock
}

// FindMemoryType scans physical device memory types for one matching
// both the type filter (from a VkMemoryRequirements bitmask) and the
// requested property flags.
func (c *Context) FindMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(c.physicalDevice, &memProps)
	memProps.Deref()

	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memProps.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && memProps.MemoryTypes[i].PropertyFlags&properties == properties {
			return i, nil
		}
	}
	return 0, &gpuerr.NoSuitableMemoryType{TypeFilter: typeFilter}
}

// DeviceWaitIdle locks the queue, waits for the device to go idle, and
// returns the unlock function so the caller can hold the lock across
// teardown to guarantee no resubmission races destruction.
func (c *Context) DeviceWaitIdle() func() {
	c.queueMu.Lock()
	vk.DeviceWaitIdle(c.device)
	return c.queueMu.Unlock
}

// DebugLabel names a Vulkan object through debug-utils so validation
// layers and captures show it by name. A no-op when debug was not
// requested (the extension is only enabled then).
func (c *Context) DebugLabel(object interface{}, name string) {
	if !c.debug {
		return
	}

	info := vk.DebugUtilsObjectNameInfo{
		SType:       vk.StructureTypeDebugUtilsObjectNameInfo,
		PObjectName: safeString(name),
	}
	switch o := object.(type) {
	case vk.Device:
		info.ObjectType = vk.ObjectTypeDevice
		info.ObjectHandle = rawHandle(unsafe.Pointer(&o))
	case vk.Queue:
		info.ObjectType = vk.ObjectTypeQueue
		info.ObjectHandle = rawHandle(unsafe.Pointer(&o))
	case vk.Image:
		info.ObjectType = vk.ObjectTypeImage
		info.ObjectHandle = rawHandle(unsafe.Pointer(&o))
	case vk.Buffer:
		info.ObjectType = vk.ObjectTypeBuffer
		info.ObjectHandle = rawHandle(unsafe.Pointer(&o))
	case vk.CommandPool:
		info.ObjectType = vk.ObjectTypeCommandPool
		info.ObjectHandle = rawHandle(unsafe.Pointer(&o))
	default:
		return
	}
	vk.SetDebugUtilsObjectName(c.device, &info)
}

// rawHandle reinterprets a Vulkan handle (dispatchable pointer or
// non-dispatchable 64-bit value alike) as the uint64 debug-utils
// wants.
func rawHandle(p unsafe.Pointer) uint64 {
	return *(*uint64)(p)
}

// BeginRegion opens a named debug-utils label region on a command
// buffer so captures group the pass's commands; paired with
// EndRegion. No-ops without debug.
func (c *Context) BeginRegion(cmd vk.CommandBuffer, name string) {
	if !c.debug {
		return
	}
	label := vk.DebugUtilsLabel{
		SType:      vk.StructureTypeDebugUtilsLabel,
		PLabelName: safeString(name),
	}
	vk.CmdBeginDebugUtilsLabel(cmd, &label)
}

// EndRegion closes the innermost debug region.
func (c *Context) EndRegion(cmd vk.CommandBuffer) {
	if !c.debug {
		return
	}
	vk.CmdEndDebugUtilsLabel(cmd)
}

// Destroy tears down the device, transient pool, and instance in
// reverse creation order, after waiting for the device to go idle.
func (c *Context) Destroy() {
	unlock := c.DeviceWaitIdle()
	defer unlock()

	if c.transientPool != vk.NullCommandPool {
		vk.DestroyCommandPool(c.device, c.transientPool, nil)
	}
	c.destroyDevice()
	c.destroyInstance()
}

func (c *Context) destroyDevice() {
	if c.device != vk.NullDevice {
		vk.DestroyDevice(c.device, nil)
		c.device = vk.NullDevice
	}
}

func (c *Context) destroyInstance() {
	if c.instance != vk.NullInstance {
		vk.DestroyInstance(c.instance, nil)
		c.instance = vk.NullInstance
	}
}

// querySubgroupSize reads the device's subgroup width from the core
// 1.1 subgroup properties.
func querySubgroupSize(dev vk.PhysicalDevice) uint32 {
	var subgroup vk.PhysicalDeviceSubgroupProperties
	subgroup.SType = vk.StructureTypePhysicalDeviceSubgroupProperties
	props := vk.PhysicalDeviceProperties2{
		SType: vk.StructureTypePhysicalDeviceProperties2,
		PNext: unsafe.Pointer(&subgroup),
	}
	vk.GetPhysicalDeviceProperties2(dev, &props)
	subgroup.Deref()
	return subgroup.SubgroupSize
}

func safeString(s string) string {
	return s + "\x00"
}

func safeStringFromBytes(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
