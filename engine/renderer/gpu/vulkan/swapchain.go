package vulkan

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	vk "github.com/goki/vulkan"
)

type swapchain struct {
	mu      *sync.Mutex
	backend *backend

	handle vk.Swapchain
	format vk.SurfaceFormat
	extent gpu.Extent2D
	mode   gpu.PresentMode

	images      []vk.Image
	views       []vk.ImageView
	targets     []*passTarget
	depthImage  vk.Image
	depthMemory vk.DeviceMemory
	depthView   vk.ImageView
}

var _ gpu.Swapchain = &swapchain{}

func (s *swapchain) Extent() gpu.Extent2D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extent
}

func (s *swapchain) ImageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

func (s *swapchain) Acquire(signal gpu.Semaphore) (uint32, gpu.Result) {
	sem, ok := signal.(*semaphore)
	if !ok {
		return 0, gpu.ResultUnknown
	}
	var image uint32
	res := vk.AcquireNextImage(s.backend.device, s.handle, vk.MaxUint64, sem.handle, vk.Fence(vk.NullHandle), &image)
	return image, result(res)
}

func (s *swapchain) Present(image uint32, wait gpu.Semaphore) gpu.Result {
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{s.handle},
		PImageIndices:  []uint32{image},
	}
	if sem, ok := wait.(*semaphore); ok {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{sem.handle}
	}
	return result(vk.QueuePresent(s.backend.presentQueue, &info))
}

func (s *swapchain) Target(image uint32) gpu.RenderPassContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := gpu.RenderPassContext{ImageIndex: image, Extent: s.extent}
	if int(image) < len(s.targets) {
		ctx.Native = s.targets[image]
	}
	return ctx
}

func (s *swapchain) SetPresentMode(mode gpu.PresentMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Recreate builds a new swapchain from the old one, then replaces the views,
// depth target and framebuffers. The backend's render pass is reused.
func (s *swapchain) Recreate(extent gpu.Extent2D) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.backend
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(b.physicalDevice, b.surface, &caps); res != vk.Success {
		return fmt.Errorf("query surface capabilities: %w", vk.Error(res))
	}
	caps.Deref()

	var modeCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(b.physicalDevice, b.surface, &modeCount, nil)
	modes := make([]vk.PresentMode, modeCount)
	vk.GetPhysicalDeviceSurfacePresentModes(b.physicalDevice, b.surface, &modeCount, modes)

	s.format = chooseSurfaceFormat(b.surfaceFormats())
	size := chooseExtent(caps.CurrentExtent, caps.MinImageExtent, caps.MaxImageExtent, extent)
	presentMode := choosePresentMode(s.mode, modes)

	old := s.handle
	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          b.surface,
		MinImageCount:    imageCount(caps.MinImageCount, caps.MaxImageCount),
		ImageFormat:      s.format.Format,
		ImageColorSpace:  s.format.ColorSpace,
		ImageExtent:      size,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	if b.queues.graphics != b.queues.present {
		indices := []uint32{b.queues.graphics, b.queues.present}
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = uint32(len(indices))
		info.PQueueFamilyIndices = indices
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(b.device, &info, nil, &handle); res != vk.Success {
		return fmt.Errorf("create swapchain: %w", vk.Error(res))
	}
	s.releaseTargets()
	if old != vk.Swapchain(vk.NullHandle) {
		vk.DestroySwapchain(b.device, old, nil)
	}
	s.handle = handle
	s.extent = gpu.Extent2D{Width: size.Width, Height: size.Height}

	var count uint32
	vk.GetSwapchainImages(b.device, handle, &count, nil)
	s.images = make([]vk.Image, count)
	vk.GetSwapchainImages(b.device, handle, &count, s.images)

	if err := s.createTargets(); err != nil {
		return err
	}
	common.Logger().Debug("vulkan swapchain created",
		slog.Int("images", len(s.images)),
		slog.Int("width", int(size.Width)),
		slog.Int("height", int(size.Height)),
		slog.Any("present_mode", presentMode),
	)
	return nil
}

func (s *swapchain) createTargets() error {
	b := s.backend
	s.views = make([]vk.ImageView, 0, len(s.images))
	for i, img := range s.images {
		view, err := b.createImageView(img, s.format.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return fmt.Errorf("swapchain image view %d: %w", i, err)
		}
		s.views = append(s.views, view)
	}

	image, memory, err := b.createImage(s.extent, b.depthFormat, vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit))
	if err != nil {
		return fmt.Errorf("depth image: %w", err)
	}
	s.depthImage, s.depthMemory = image, memory
	if s.depthView, err = b.createImageView(image, b.depthFormat, vk.ImageAspectFlags(vk.ImageAspectDepthBit)); err != nil {
		return fmt.Errorf("depth image view: %w", err)
	}

	s.targets = make([]*passTarget, 0, len(s.views))
	for i, view := range s.views {
		attachments := []vk.ImageView{view, s.depthView}
		info := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      b.renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           s.extent.Width,
			Height:          s.extent.Height,
			Layers:          1,
		}
		var fb vk.Framebuffer
		if res := vk.CreateFramebuffer(b.device, &info, nil, &fb); res != vk.Success {
			return fmt.Errorf("framebuffer %d: %w", i, vk.Error(res))
		}
		s.targets = append(s.targets, &passTarget{renderPass: b.renderPass, framebuffer: fb})
	}
	return nil
}

func (s *swapchain) releaseTargets() {
	device := s.backend.device
	for _, t := range s.targets {
		vk.DestroyFramebuffer(device, t.framebuffer, nil)
	}
	s.targets = nil
	if s.depthView != vk.ImageView(vk.NullHandle) {
		vk.DestroyImageView(device, s.depthView, nil)
		s.depthView = vk.ImageView(vk.NullHandle)
	}
	if s.depthImage != vk.Image(vk.NullHandle) {
		vk.DestroyImage(device, s.depthImage, nil)
		vk.FreeMemory(device, s.depthMemory, nil)
		s.depthImage = vk.Image(vk.NullHandle)
	}
	for _, v := range s.views {
		vk.DestroyImageView(device, v, nil)
	}
	s.views = nil
	s.images = nil
}

func (s *swapchain) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseTargets()
	if s.handle != vk.Swapchain(vk.NullHandle) {
		vk.DestroySwapchain(s.backend.device, s.handle, nil)
		s.handle = vk.Swapchain(vk.NullHandle)
	}
}

func (b *backend) createImage(extent gpu.Extent2D, format vk.Format, usage vk.ImageUsageFlags) (vk.Image, vk.DeviceMemory, error) {
	info := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Extent:        vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	var image vk.Image
	if res := vk.CreateImage(b.device, &info, nil, &image); res != vk.Success {
		return image, vk.DeviceMemory(vk.NullHandle), fmt.Errorf("create image: %w", vk.Error(res))
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(b.device, image, &req)
	req.Deref()
	memoryType, ok := b.findMemoryType(req.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if !ok {
		vk.DestroyImage(b.device, image, nil)
		return vk.Image(vk.NullHandle), vk.DeviceMemory(vk.NullHandle), fmt.Errorf("no device-local memory type for image")
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(b.device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyImage(b.device, image, nil)
		return vk.Image(vk.NullHandle), memory, fmt.Errorf("allocate image memory: %w", vk.Error(res))
	}
	if res := vk.BindImageMemory(b.device, image, memory, 0); res != vk.Success {
		vk.FreeMemory(b.device, memory, nil)
		vk.DestroyImage(b.device, image, nil)
		return vk.Image(vk.NullHandle), vk.DeviceMemory(vk.NullHandle), fmt.Errorf("bind image memory: %w", vk.Error(res))
	}
	return image, memory, nil
}

func (b *backend) createImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(b.device, &info, nil, &view); res != vk.Success {
		return view, fmt.Errorf("create image view: %w", vk.Error(res))
	}
	return view, nil
}
