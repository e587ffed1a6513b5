// Package vulkan implements the gpu contract on Vulkan. Fragment buffers are
// secondary command buffers, each with its own command pool so they can be
// recorded concurrently, and the primary merges them with vkCmdExecuteCommands.
package vulkan

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

var deviceExtensions = []string{"VK_KHR_swapchain"}

// Surface is the window the backend presents to.
type Surface interface {
	// VulkanExtensions returns the instance extensions needed to present to the window.
	VulkanExtensions() []string

	// VulkanSurface creates a VkSurfaceKHR for the window on instance.
	VulkanSurface(instance any) (uintptr, error)

	// Extent returns the framebuffer size in pixels.
	Extent() gpu.Extent2D
}

// ErrNoSetLayouts is returned by BindBuffers when the backend was built without
// descriptor set layouts.
var ErrNoSetLayouts = errors.New("vulkan: no descriptor set layouts configured")

// SetLayout describes one descriptor set: binding i holds a buffer used as Bindings[i].
type SetLayout struct {
	Bindings []gpu.BufferUsage
}

type queueFamilies struct {
	graphics, present       uint32
	hasGraphics, hasPresent bool
}

type backend struct {
	mu *sync.Mutex

	appName    string
	validation bool
	mode       gpu.PresentMode
	maxSets    uint32

	instance       vk.Instance
	surface        vk.Surface
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	queues         queueFamilies
	graphicsQueue  vk.Queue
	presentQueue   vk.Queue

	memory vk.PhysicalDeviceMemoryProperties

	renderPass  vk.RenderPass
	depthFormat vk.Format
	swapchain   *swapchain

	setLayouts     []SetLayout
	setLayoutObjs  []vk.DescriptorSetLayout
	descriptorPool vk.DescriptorPool
	pipelineLayout vk.PipelineLayout

	destroyed bool
}

// Backend is the Vulkan gpu.Backend plus descriptor set construction.
type Backend interface {
	gpu.Backend

	// Device returns the logical device.
	Device() vk.Device

	// BindBuffers allocates a descriptor set for set whose binding i is buffers[i].
	//
	// Parameters:
	//   - set: the set index in the shared pipeline layout
	//   - buffers: the buffers to bind, in binding order
	//
	// Returns:
	//   - gpu.DescriptorSet: a vk.DescriptorSet
	//   - error: ErrNoSetLayouts, or an allocation failure
	BindBuffers(set uint32, buffers ...gpu.Buffer) (gpu.DescriptorSet, error)
}

var _ Backend = &backend{}

// NewBackend loads the Vulkan loader through GLFW, opens a device able to
// present to surface and builds the swapchain at the surface's extent.
//
// Parameters:
//   - surface: the window to present to
//   - options: functional options for validation, present mode and set layouts
//
// Returns:
//   - Backend: the backend
//   - error: an error if any step of device setup failed
func NewBackend(surface Surface, options ...BackendBuilderOption) (Backend, error) {
	b := &backend{
		mu:      &sync.Mutex{},
		appName: "oxy-frame",
		maxSets: 64,
	}
	for _, opt := range options {
		opt(b)
	}

	if !glfw.VulkanSupported() {
		return nil, errors.New("vulkan: loader not found")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("vulkan init: %w", err)
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"instance", func() error { return b.createInstance(surface.VulkanExtensions()) }},
		{"surface", func() error { return b.createSurface(surface) }},
		{"physical device", b.pickPhysicalDevice},
		{"logical device", b.createLogicalDevice},
		{"render pass", b.createRenderPass},
		{"descriptor layouts", b.createLayouts},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			b.Destroy()
			return nil, err
		}
		common.Logger().Debug("vulkan setup", slog.String("step", step.name))
	}

	b.swapchain = &swapchain{mu: &sync.Mutex{}, backend: b, mode: b.mode}
	if err := b.swapchain.Recreate(surface.Extent()); err != nil {
		b.Destroy()
		return nil, err
	}

	common.Logger().Info("vulkan backend ready",
		slog.Int("images", b.swapchain.ImageCount()),
		slog.Bool("validation", b.validation),
	)
	return b, nil
}

func (b *backend) createInstance(extensions []string) error {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   cstr(b.appName),
		ApplicationVersion: vk.MakeVersion(0, 1, 0),
		PEngineName:        cstr("oxy-frame"),
		EngineVersion:      vk.MakeVersion(0, 1, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}
	exts := cstrs(extensions)
	info := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}
	if b.validation {
		layers := cstrs([]string{validationLayer})
		info.EnabledLayerCount = uint32(len(layers))
		info.PpEnabledLayerNames = layers
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&info, nil, &instance); res != vk.Success {
		return fmt.Errorf("create instance: %w", vk.Error(res))
	}
	b.instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return fmt.Errorf("init instance: %w", err)
	}
	return nil
}

func (b *backend) createSurface(surface Surface) error {
	ptr, err := surface.VulkanSurface(b.instance)
	if err != nil {
		return fmt.Errorf("create window surface: %w", err)
	}
	b.surface = vk.SurfaceFromPointer(ptr)
	return nil
}

func (b *backend) pickPhysicalDevice() error {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(b.instance, &count, nil); res != vk.Success || count == 0 {
		return fmt.Errorf("enumerate physical devices: %w", vk.Error(res))
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(b.instance, &count, devices); res != vk.Success {
		return fmt.Errorf("enumerate physical devices: %w", vk.Error(res))
	}

	best := int32(-1)
	for _, dev := range devices {
		q := b.findQueueFamilies(dev)
		if !q.hasGraphics || !q.hasPresent || !b.supportsExtensions(dev) {
			continue
		}
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(dev, &props)
		props.Deref()
		if score := deviceScore(props.DeviceType); score > best {
			best = score
			b.physicalDevice = dev
			b.queues = q
		}
	}
	if best < 0 {
		return errors.New("vulkan: no suitable GPU found")
	}

	vk.GetPhysicalDeviceMemoryProperties(b.physicalDevice, &b.memory)
	b.memory.Deref()
	return nil
}

func (b *backend) findQueueFamilies(dev vk.PhysicalDevice) queueFamilies {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, props)

	var q queueFamilies
	for i := range props {
		props[i].Deref()
		if props[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 && !q.hasGraphics {
			q.graphics = uint32(i)
			q.hasGraphics = true
		}
		var present vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(dev, uint32(i), b.surface, &present)
		if present == vk.True && !q.hasPresent {
			q.present = uint32(i)
			q.hasPresent = true
		}
	}
	return q
}

func (b *backend) supportsExtensions(dev vk.PhysicalDevice) bool {
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(dev, "", &count, nil) != vk.Success {
		return false
	}
	props := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(dev, "", &count, props) != vk.Success {
		return false
	}
	supported := make(map[string]bool, len(props))
	for i := range props {
		props[i].Deref()
		supported[vk.ToString(props[i].ExtensionName[:])] = true
	}
	for _, ext := range deviceExtensions {
		if !supported[ext] {
			return false
		}
	}
	return true
}

func (b *backend) createLogicalDevice() error {
	families := map[uint32]bool{b.queues.graphics: true, b.queues.present: true}
	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(families))
	for family := range families {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	exts := cstrs(deviceExtensions)
	info := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
	}

	var device vk.Device
	if res := vk.CreateDevice(b.physicalDevice, &info, nil, &device); res != vk.Success {
		return fmt.Errorf("create logical device: %w", vk.Error(res))
	}
	b.device = device

	var graphics, present vk.Queue
	vk.GetDeviceQueue(device, b.queues.graphics, 0, &graphics)
	vk.GetDeviceQueue(device, b.queues.present, 0, &present)
	b.graphicsQueue = graphics
	b.presentQueue = present
	return nil
}

func (b *backend) findDepthFormat() (vk.Format, error) {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	want := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, format := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(b.physicalDevice, format, &props)
		props.Deref()
		if props.OptimalTilingFeatures&want == want {
			return format, nil
		}
	}
	return 0, errors.New("vulkan: no supported depth format")
}

// createRenderPass builds the single colour+depth pass every pipeline and
// fragment buffer targets. It survives swapchain recreation.
func (b *backend) createRenderPass() error {
	depthFormat, err := b.findDepthFormat()
	if err != nil {
		return err
	}
	b.depthFormat = depthFormat

	colorFormat := chooseSurfaceFormat(b.surfaceFormats()).Format

	attachments := []vk.AttachmentDescription{
		{
			Format:         colorFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		},
		{
			Format:         depthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}
	colorRef := vk.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}
	depthRef := vk.AttachmentReference{Attachment: 1, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorRef},
		PDepthStencilAttachment: &depthRef,
	}
	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit)
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		DstStageMask:  stages,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	var renderPass vk.RenderPass
	if res := vk.CreateRenderPass(b.device, &info, nil, &renderPass); res != vk.Success {
		return fmt.Errorf("create render pass: %w", vk.Error(res))
	}
	b.renderPass = renderPass
	return nil
}

func (b *backend) surfaceFormats() []vk.SurfaceFormat {
	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(b.physicalDevice, b.surface, &count, nil)
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(b.physicalDevice, b.surface, &count, formats)
	for i := range formats {
		formats[i].Deref()
	}
	if len(formats) == 0 {
		formats = append(formats, vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear})
	}
	return formats
}

// createLayouts builds the descriptor set layouts, their pool and the
// pipeline layout shared by every pipeline.
func (b *backend) createLayouts() error {
	counts := make(map[vk.DescriptorType]uint32)
	for i, set := range b.setLayouts {
		bindings := make([]vk.DescriptorSetLayoutBinding, len(set.Bindings))
		for j, usage := range set.Bindings {
			bindings[j] = vk.DescriptorSetLayoutBinding{
				Binding:         uint32(j),
				DescriptorType:  descriptorType(usage),
				DescriptorCount: 1,
				StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
			}
			counts[descriptorType(usage)] += b.maxSets
		}
		info := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(bindings)),
			PBindings:    bindings,
		}
		var layout vk.DescriptorSetLayout
		if res := vk.CreateDescriptorSetLayout(b.device, &info, nil, &layout); res != vk.Success {
			return fmt.Errorf("create descriptor set layout %d: %w", i, vk.Error(res))
		}
		b.setLayoutObjs = append(b.setLayoutObjs, layout)
	}

	if len(counts) > 0 {
		sizes := make([]vk.DescriptorPoolSize, 0, len(counts))
		for t, n := range counts {
			sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: n})
		}
		info := vk.DescriptorPoolCreateInfo{
			SType:         vk.StructureTypeDescriptorPoolCreateInfo,
			Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
			MaxSets:       b.maxSets * uint32(len(b.setLayouts)),
			PoolSizeCount: uint32(len(sizes)),
			PPoolSizes:    sizes,
		}
		var pool vk.DescriptorPool
		if res := vk.CreateDescriptorPool(b.device, &info, nil, &pool); res != vk.Success {
			return fmt.Errorf("create descriptor pool: %w", vk.Error(res))
		}
		b.descriptorPool = pool
	}

	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(b.setLayoutObjs)),
		PSetLayouts:    b.setLayoutObjs,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(b.device, &info, nil, &layout); res != vk.Success {
		return fmt.Errorf("create pipeline layout: %w", vk.Error(res))
	}
	b.pipelineLayout = layout
	return nil
}

func (b *backend) findMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlagBits) (uint32, bool) {
	want := vk.MemoryPropertyFlags(properties)
	for i := uint32(0); i < b.memory.MemoryTypeCount; i++ {
		memoryType := b.memory.MemoryTypes[i]
		memoryType.Deref()
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&want == want {
			return i, true
		}
	}
	return 0, false
}

func (b *backend) Type() gpu.BackendType {
	return gpu.BackendVulkan
}

func (b *backend) Device() vk.Device {
	return b.device
}

func (b *backend) CreateFence(signaled bool) (gpu.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var f vk.Fence
	if res := vk.CreateFence(b.device, &info, nil, &f); res != vk.Success {
		return nil, fmt.Errorf("create fence: %w", vk.Error(res))
	}
	return &fence{device: b.device, handle: f}, nil
}

func (b *backend) CreateSemaphore() (gpu.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var s vk.Semaphore
	if res := vk.CreateSemaphore(b.device, &info, nil, &s); res != vk.Success {
		return nil, fmt.Errorf("create semaphore: %w", vk.Error(res))
	}
	return &semaphore{device: b.device, handle: s}, nil
}

// AllocateCommandBuffers gives every buffer its own pool: pools are externally
// synchronised and fragments are recorded on different goroutines.
func (b *backend) AllocateCommandBuffers(level gpu.CommandLevel, count int) ([]gpu.CommandBuffer, error) {
	vkLevel := vk.CommandBufferLevelPrimary
	if level == gpu.LevelFragment {
		vkLevel = vk.CommandBufferLevelSecondary
	}

	out := make([]gpu.CommandBuffer, 0, count)
	for i := 0; i < count; i++ {
		poolInfo := vk.CommandPoolCreateInfo{
			SType:            vk.StructureTypeCommandPoolCreateInfo,
			QueueFamilyIndex: b.queues.graphics,
			Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		}
		var pool vk.CommandPool
		if res := vk.CreateCommandPool(b.device, &poolInfo, nil, &pool); res != vk.Success {
			destroyAll(out)
			return nil, fmt.Errorf("create command pool: %w", vk.Error(res))
		}

		allocInfo := vk.CommandBufferAllocateInfo{
			SType:              vk.StructureTypeCommandBufferAllocateInfo,
			CommandPool:        pool,
			Level:              vkLevel,
			CommandBufferCount: 1,
		}
		handles := make([]vk.CommandBuffer, 1)
		if res := vk.AllocateCommandBuffers(b.device, &allocInfo, handles); res != vk.Success {
			vk.DestroyCommandPool(b.device, pool, nil)
			destroyAll(out)
			return nil, fmt.Errorf("allocate command buffer: %w", vk.Error(res))
		}
		out = append(out, &commandBuffer{
			device: b.device,
			pool:   pool,
			handle: handles[0],
			level:  level,
		})
	}
	return out, nil
}

func destroyAll(buffers []gpu.CommandBuffer) {
	for _, cb := range buffers {
		cb.Destroy()
	}
}

func (b *backend) CreateBuffer(size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(b.device, &info, nil, &handle); res != vk.Success {
		return nil, fmt.Errorf("create buffer: %w", vk.Error(res))
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.device, handle, &req)
	req.Deref()

	memoryType, ok := b.findMemoryType(req.MemoryTypeBits, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if !ok {
		vk.DestroyBuffer(b.device, handle, nil)
		return nil, errors.New("vulkan: no host-visible memory type for buffer")
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memoryType,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(b.device, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyBuffer(b.device, handle, nil)
		return nil, fmt.Errorf("allocate buffer memory: %w", vk.Error(res))
	}
	vk.BindBufferMemory(b.device, handle, mem, 0)

	buf := &buffer{device: b.device, handle: handle, memory: mem, size: size}
	if err := buf.mapMemory(); err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

func (b *backend) CreatePipeline(r gpu.PipelineRecipe) (gpu.Pipeline, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Format != gpu.ShaderSPIRV {
		return nil, fmt.Errorf("%w: vulkan needs SPIR-V for %q", gpu.ErrInvalidRecipe, r.Name)
	}
	return b.createPipeline(r)
}

func (b *backend) BindBuffers(set uint32, buffers ...gpu.Buffer) (gpu.DescriptorSet, error) {
	if int(set) >= len(b.setLayoutObjs) {
		return nil, fmt.Errorf("descriptor set %d: %w", set, ErrNoSetLayouts)
	}
	layout := b.setLayouts[set]
	if len(buffers) != len(layout.Bindings) {
		return nil, fmt.Errorf("descriptor set %d: %d buffers for %d bindings", set, len(buffers), len(layout.Bindings))
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     b.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{b.setLayoutObjs[set]},
	}
	var ds vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(b.device, &allocInfo, &ds); res != vk.Success {
		return nil, fmt.Errorf("allocate descriptor set %d: %w", set, vk.Error(res))
	}

	writes := make([]vk.WriteDescriptorSet, len(buffers))
	for i, buf := range buffers {
		vb, ok := buf.(*buffer)
		if !ok {
			return nil, fmt.Errorf("descriptor set %d binding %d: buffer from another backend", set, i)
		}
		writes[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          ds,
			DstBinding:      uint32(i),
			DescriptorCount: 1,
			DescriptorType:  descriptorType(layout.Bindings[i]),
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: vb.handle,
				Offset: 0,
				Range:  vk.DeviceSize(vb.size),
			}},
		}
	}
	vk.UpdateDescriptorSets(b.device, uint32(len(writes)), writes, 0, nil)
	return ds, nil
}

func (b *backend) Submit(cmd gpu.CommandBuffer, wait, signal gpu.Semaphore, f gpu.Fence) gpu.Result {
	cb, ok := cmd.(*commandBuffer)
	if !ok {
		return gpu.ResultUnknown
	}

	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.handle},
	}
	if s, ok := wait.(*semaphore); ok {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{s.handle}
		info.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}
	if s, ok := signal.(*semaphore); ok {
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = []vk.Semaphore{s.handle}
	}
	handle := vk.Fence(vk.NullHandle)
	if vf, ok := f.(*fence); ok {
		handle = vf.handle
	}
	return result(vk.QueueSubmit(b.graphicsQueue, 1, []vk.SubmitInfo{info}, handle))
}

func (b *backend) WaitIdle() gpu.Result {
	if b.device == nil {
		return gpu.ResultSuccess
	}
	return result(vk.DeviceWaitIdle(b.device))
}

func (b *backend) Swapchain() gpu.Swapchain {
	return b.swapchain
}

func (b *backend) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true

	if b.device != nil {
		vk.DeviceWaitIdle(b.device)
		if b.swapchain != nil {
			b.swapchain.Destroy()
		}
		if b.pipelineLayout != vk.PipelineLayout(vk.NullHandle) {
			vk.DestroyPipelineLayout(b.device, b.pipelineLayout, nil)
		}
		if b.descriptorPool != vk.DescriptorPool(vk.NullHandle) {
			vk.DestroyDescriptorPool(b.device, b.descriptorPool, nil)
		}
		for _, l := range b.setLayoutObjs {
			vk.DestroyDescriptorSetLayout(b.device, l, nil)
		}
		if b.renderPass != vk.RenderPass(vk.NullHandle) {
			vk.DestroyRenderPass(b.device, b.renderPass, nil)
		}
		vk.DestroyDevice(b.device, nil)
	}
	if b.surface != vk.Surface(vk.NullHandle) {
		vk.DestroySurface(b.instance, b.surface, nil)
	}
	if b.instance != nil {
		vk.DestroyInstance(b.instance, nil)
	}
}
