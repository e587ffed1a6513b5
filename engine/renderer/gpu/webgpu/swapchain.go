package webgpu

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// swapchain is the configured surface plus its size-dependent MSAA and depth
// targets. WebGPU hands out one current texture at a time, so every image
// index is 0.
type swapchain struct {
	mu      *sync.Mutex
	backend *backend

	extent gpu.Extent2D
	mode   gpu.PresentMode
	format wgpu.TextureFormat

	msaaTexture  *wgpu.Texture
	msaaView     *wgpu.TextureView
	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView

	texture *wgpu.Texture
	view    *wgpu.TextureView
}

var _ gpu.Swapchain = &swapchain{}

func (s *swapchain) Extent() gpu.Extent2D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extent
}

func (s *swapchain) ImageCount() int {
	return 1
}

func (s *swapchain) Acquire(gpu.Semaphore) (uint32, gpu.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.texture != nil {
		// The previous image was never presented.
		return 0, gpu.ResultNotReady
	}

	texture, err := s.backend.surface.GetCurrentTexture()
	if err != nil {
		common.Logger().Debug("get current texture", slog.Any("error", err))
		return 0, gpu.ResultOutOfDate
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return 0, gpu.ResultOutOfMemory
	}
	s.texture = texture
	s.view = view
	return 0, gpu.ResultSuccess
}

func (s *swapchain) Present(uint32, gpu.Semaphore) gpu.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.texture == nil {
		return gpu.ResultUnknown
	}
	s.backend.surface.Present()
	s.releaseCurrent()
	return gpu.ResultSuccess
}

func (s *swapchain) releaseCurrent() {
	if s.view != nil {
		s.view.Release()
		s.view = nil
	}
	if s.texture != nil {
		s.texture.Release()
		s.texture = nil
	}
}

func (s *swapchain) Target(image uint32) gpu.RenderPassContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gpu.RenderPassContext{ImageIndex: image, Extent: s.extent, Native: s.view}
}

// passDescriptor builds the render pass for target. With MSAA the multisampled
// texture is drawn into and resolved to the surface view.
func (s *swapchain) passDescriptor(target *gpu.RenderPassContext, clear gpu.ClearValues) *wgpu.RenderPassDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, _ := target.Native.(*wgpu.TextureView)
	color := wgpu.RenderPassColorAttachment{
		View:    view,
		LoadOp:  wgpu.LoadOpClear,
		StoreOp: wgpu.StoreOpStore,
		ClearValue: wgpu.Color{
			R: float64(clear.Color[0]),
			G: float64(clear.Color[1]),
			B: float64(clear.Color[2]),
			A: float64(clear.Color[3]),
		},
	}
	if s.msaaView != nil {
		color.View = s.msaaView
		color.ResolveTarget = view
		color.StoreOp = wgpu.StoreOpDiscard
	}

	return &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{color},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            s.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: clear.Depth,
		},
	}
}

func (s *swapchain) Recreate(extent gpu.Extent2D) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if extent.Empty() {
		return fmt.Errorf("webgpu: cannot configure surface at %dx%d", extent.Width, extent.Height)
	}

	b := s.backend
	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return fmt.Errorf("webgpu: surface reports no formats")
	}
	s.format = capabilities.Formats[0]

	s.releaseCurrent()
	s.releaseTargets()

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       extent.Width,
		Height:      extent.Height,
		PresentMode: supportedPresentMode(presentMode(s.mode), capabilities.PresentModes),
		AlphaMode:   capabilities.AlphaModes[0],
	})

	size := wgpu.Extent3D{
		Width:              extent.Width,
		Height:             extent.Height,
		DepthOrArrayLayers: 1,
	}

	var err error
	if b.sampleCount > 1 {
		s.msaaTexture, err = b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "MSAA Texture",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   b.sampleCount,
			Dimension:     wgpu.TextureDimension2D,
			Format:        s.format,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("create msaa texture: %w", err)
		}
		if s.msaaView, err = s.msaaTexture.CreateView(nil); err != nil {
			return fmt.Errorf("create msaa view: %w", err)
		}
	}

	// Depth sample count must match the colour attachment.
	s.depthTexture, err = b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Texture",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   b.sampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create depth texture: %w", err)
	}
	if s.depthView, err = s.depthTexture.CreateView(nil); err != nil {
		return fmt.Errorf("create depth view: %w", err)
	}

	s.extent = extent
	return nil
}

func (s *swapchain) releaseTargets() {
	if s.msaaView != nil {
		s.msaaView.Release()
		s.msaaView = nil
	}
	if s.msaaTexture != nil {
		s.msaaTexture.Release()
		s.msaaTexture = nil
	}
	if s.depthView != nil {
		s.depthView.Release()
		s.depthView = nil
	}
	if s.depthTexture != nil {
		s.depthTexture.Release()
		s.depthTexture = nil
	}
}

func (s *swapchain) SetPresentMode(mode gpu.PresentMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

func (s *swapchain) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseCurrent()
	s.releaseTargets()
}
