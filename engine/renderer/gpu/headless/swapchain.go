package headless

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

// Swapchain is the headless gpu.Swapchain with scripting and inspection hooks.
type Swapchain interface {
	gpu.Swapchain

	// QueueAcquire scripts the results of the next Acquire calls, consumed in order.
	// Unscripted calls succeed.
	QueueAcquire(results ...gpu.Result)

	// QueuePresent scripts the results of the next Present calls, consumed in order.
	// Unscripted calls succeed.
	QueuePresent(results ...gpu.Result)

	// Recreates returns how many times Recreate has succeeded.
	Recreates() int

	// Presents returns how many presents were accepted (success or stale).
	Presents() int

	// Generation returns a counter bumped by every Recreate; framebuffer tags embed it.
	Generation() int

	// PresentMode returns the mode the swapchain was last configured with.
	PresentMode() gpu.PresentMode
}

type swapchain struct {
	mu      *sync.Mutex
	backend *backend

	extent      gpu.Extent2D
	images      int
	next        uint32
	generation  int
	recreates   int
	presents    int
	presentMode gpu.PresentMode

	acquireScript []gpu.Result
	presentScript []gpu.Result
}

var _ Swapchain = &swapchain{}

// Framebuffer is the Native payload of a headless RenderPassContext.
type Framebuffer struct {
	Generation int
	Image      uint32
}

func (s *swapchain) Extent() gpu.Extent2D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extent
}

func (s *swapchain) ImageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images
}

func (s *swapchain) Acquire(signal gpu.Semaphore) (uint32, gpu.Result) {
	s.mu.Lock()
	result := gpu.ResultSuccess
	if len(s.acquireScript) > 0 {
		result = s.acquireScript[0]
		s.acquireScript = s.acquireScript[1:]
	}
	if result != gpu.ResultSuccess && result != gpu.ResultSuboptimal {
		s.mu.Unlock()
		return 0, result
	}
	image := s.next
	s.next = (s.next + 1) % uint32(s.images)
	s.mu.Unlock()

	if sem, ok := signal.(*semaphore); ok {
		sem.raise()
	}
	return image, result
}

func (s *swapchain) Present(image uint32, wait gpu.Semaphore) gpu.Result {
	s.mu.Lock()
	result := gpu.ResultSuccess
	if len(s.presentScript) > 0 {
		result = s.presentScript[0]
		s.presentScript = s.presentScript[1:]
	}
	if int(image) >= s.images {
		s.mu.Unlock()
		s.backend.violate("present of image %d out of %d", image, s.images)
		return gpu.ResultUnknown
	}
	if result.Fatal() {
		s.mu.Unlock()
		return result
	}
	s.presents++
	s.mu.Unlock()

	if sem, ok := wait.(*semaphore); ok && !sem.consume() {
		s.backend.violate("present waits on unsignaled semaphore %d", sem.id)
	}
	return result
}

func (s *swapchain) Target(image uint32) gpu.RenderPassContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gpu.RenderPassContext{
		ImageIndex: image,
		Extent:     s.extent,
		Native:     Framebuffer{Generation: s.generation, Image: image},
	}
}

func (s *swapchain) Recreate(extent gpu.Extent2D) error {
	if extent.Empty() {
		return fmt.Errorf("headless: recreate with empty extent %dx%d", extent.Width, extent.Height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.extent = extent
	s.next = 0
	s.generation++
	s.recreates++
	return nil
}

func (s *swapchain) SetPresentMode(mode gpu.PresentMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presentMode = mode
}

func (s *swapchain) Destroy() {}

func (s *swapchain) QueueAcquire(results ...gpu.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquireScript = append(s.acquireScript, results...)
}

func (s *swapchain) QueuePresent(results ...gpu.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presentScript = append(s.presentScript, results...)
}

func (s *swapchain) Recreates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recreates
}

func (s *swapchain) Presents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}

func (s *swapchain) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *swapchain) PresentMode() gpu.PresentMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presentMode
}
