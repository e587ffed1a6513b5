package frame

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

type swapSurface struct {
	mu        *sync.Mutex
	swapchain gpu.Swapchain

	stale    bool
	deferred bool
}

// SwapSurface runs the acquire/present cycle and tracks whether the surface
// needs rebuilding. Stale results never surface as errors.
type SwapSurface interface {
	// Extent returns the current swapchain extent.
	Extent() gpu.Extent2D

	// Acquire requests the next image, signaling slot.ImageAcquired.
	//
	// Parameters:
	//   - slot: the frame slot the image is acquired for
	//
	// Returns:
	//   - uint32: the image index, valid when ok is true
	//   - bool: false when the surface is out of date and the frame must be skipped
	//   - error: a gpu.ResultError for fatal results
	Acquire(slot *Slot) (uint32, bool, error)

	// Present queues image for display once slot.RenderComplete is raised.
	//
	// Returns:
	//   - bool: true when the surface reported itself stale and must be resized
	//   - error: a gpu.ResultError for fatal results
	Present(slot *Slot, image uint32) (bool, error)

	// Target returns the render pass context for image.
	Target(image uint32) gpu.RenderPassContext

	// Invalidate marks the surface for rebuilding on the next Resize.
	Invalidate()

	// NeedsResize reports whether the surface is stale or a resize was deferred.
	NeedsResize() bool

	// Resize recreates the swapchain for extent when the surface is stale or
	// extent differs from the current one. An empty extent is deferred until a
	// usable one is reported.
	//
	// Parameters:
	//   - extent: the current window size
	//
	// Returns:
	//   - bool: true when the swapchain was recreated
	//   - error: an error if recreation failed
	Resize(extent gpu.Extent2D) (bool, error)

	// SetPresentMode forwards the mode to the swapchain and invalidates the surface.
	SetPresentMode(mode gpu.PresentMode)
}

var _ SwapSurface = &swapSurface{}

// NewSwapSurface wraps swapchain.
//
// Parameters:
//   - swapchain: the presentation surface
//
// Returns:
//   - SwapSurface: the surface
func NewSwapSurface(swapchain gpu.Swapchain) SwapSurface {
	return &swapSurface{mu: &sync.Mutex{}, swapchain: swapchain}
}

func (s *swapSurface) Extent() gpu.Extent2D {
	return s.swapchain.Extent()
}

func (s *swapSurface) Acquire(slot *Slot) (uint32, bool, error) {
	image, res := s.swapchain.Acquire(slot.ImageAcquired)
	switch {
	case res == gpu.ResultSuccess:
		return image, true, nil
	case res == gpu.ResultSuboptimal:
		// Still presentable; rebuild after this frame is submitted.
		s.Invalidate()
		return image, true, nil
	case res == gpu.ResultOutOfDate:
		s.Invalidate()
		common.Logger().Warn("swapchain out of date on acquire, skipping frame", slog.Int("slot", slot.Index))
		return 0, false, nil
	default:
		return 0, false, res.Err(fmt.Sprintf("acquire image slot %d", slot.Index))
	}
}

func (s *swapSurface) Present(slot *Slot, image uint32) (bool, error) {
	res := s.swapchain.Present(image, slot.RenderComplete)
	if res.Stale() {
		s.Invalidate()
		common.Logger().Warn("swapchain stale on present", slog.Int("slot", slot.Index), slog.String("result", res.String()))
		return true, nil
	}
	if res != gpu.ResultSuccess {
		return false, res.Err(fmt.Sprintf("present image %d", image))
	}
	return s.NeedsResize(), nil
}

func (s *swapSurface) Target(image uint32) gpu.RenderPassContext {
	return s.swapchain.Target(image)
}

func (s *swapSurface) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
}

func (s *swapSurface) NeedsResize() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale || s.deferred
}

func (s *swapSurface) Resize(extent gpu.Extent2D) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if extent.Empty() {
		if !s.deferred {
			common.Logger().Info("surface minimised, deferring resize")
		}
		s.deferred = true
		return false, nil
	}
	if !s.stale && !s.deferred && extent == s.swapchain.Extent() {
		return false, nil
	}

	if err := s.swapchain.Recreate(extent); err != nil {
		return false, fmt.Errorf("recreate swapchain %dx%d: %w", extent.Width, extent.Height, err)
	}
	s.stale = false
	s.deferred = false
	common.Logger().Info("swapchain recreated", slog.Int("width", int(extent.Width)), slog.Int("height", int(extent.Height)))
	return true, nil
}

func (s *swapSurface) SetPresentMode(mode gpu.PresentMode) {
	s.swapchain.SetPresentMode(mode)
	s.Invalidate()
}
