// Package renderer paces frames: it composes the fence ring and the swap
// surface into a begin/end cycle, owns the pipeline cache and rebuilds
// size-dependent resources when the surface changes.
package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/frame"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/workers"
)

// ErrFailed is returned by every frame call after a fatal GPU error.
var ErrFailed = errors.New("renderer failed")

// Frame is one in-flight frame between BeginFrame and EndFrame.
type Frame struct {
	Number uint64
	Slot   *frame.Slot
	Image  uint32
	Target gpu.RenderPassContext
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backend   gpu.Backend
	ring      frame.FenceRing
	surface   frame.SwapSurface
	pipelines pipeline.Cache
	extent    ExtentSource

	framesInFlight int
	workers        int
	clear          gpu.ClearValues
	onResize       []func(gpu.Extent2D)

	// Pre-creation config collected from builder options
	pendingPresentMode *gpu.PresentMode
	pendingRecipes     []gpu.PipelineRecipe

	frameNumber     uint64
	inFrame         bool
	submitted       bool
	resizeRequested atomic.Bool
	failed          atomic.Bool
}

// Renderer is the frame pacer.
//
// BeginFrame and EndFrame must be called from a single goroutine. RequestResize
// may be called from any goroutine, typically a window callback.
type Renderer interface {
	// Backend returns the device the renderer drives.
	Backend() gpu.Backend

	// BackendType identifies the backend implementation.
	BackendType() gpu.BackendType

	// Ring returns the frame-in-flight ring.
	Ring() frame.FenceRing

	// Surface returns the swap surface.
	Surface() frame.SwapSurface

	// Pipelines returns the pipeline cache.
	Pipelines() pipeline.Cache

	// FramesInFlight returns the number of frame slots.
	FramesInFlight() int

	// Workers returns the number of fragment buffers per slot.
	Workers() int

	// FrameNumber returns the number of frames begun so far.
	FrameNumber() uint64

	// BeginFrame waits for the current slot, acquires an image and opens the
	// render pass on the slot's primary buffer. The pass contents must come
	// from fragment buffers merged with ExecuteCommands.
	//
	// Returns:
	//   - Frame: the frame, valid when ok is true
	//   - bool: false when the frame must be skipped (stale surface, minimised window)
	//   - error: ErrFailed, or the fatal GPU error that failed the renderer
	BeginFrame() (Frame, bool, error)

	// EndFrame is Submit followed by Present.
	//
	// Parameters:
	//   - f: the frame returned by BeginFrame
	//
	// Returns:
	//   - error: ErrFailed, or the fatal GPU error that failed the renderer
	EndFrame(f Frame) error

	// Submit closes the render pass and submits the primary buffer, waiting on
	// the slot's image-acquired semaphore and signaling its render-complete
	// semaphore and fence.
	//
	// Parameters:
	//   - f: the frame returned by BeginFrame
	//
	// Returns:
	//   - error: ErrFailed, or the fatal GPU error that failed the renderer
	Submit(f Frame) error

	// Present hands the image to the display and advances to the next slot. A
	// stale present triggers a resize, which runs after the frame's submission.
	//
	// Parameters:
	//   - f: the frame passed to Submit
	//
	// Returns:
	//   - error: ErrFailed, or the fatal GPU error that failed the renderer
	Present(f Frame) error

	// Resize waits for the device to idle, then recreates the swapchain and
	// every slot's command buffers and sync objects for the size reported by
	// the extent source. Calling it when nothing changed does nothing.
	//
	// Returns:
	//   - error: an error if any resource could not be rebuilt
	Resize() error

	// RequestResize flags a resize to be performed at the next BeginFrame.
	RequestResize()

	// ReloadPipelines waits for the device to idle and rebuilds every pipeline.
	// Recipes passed in replace the registered ones of the same name first, so
	// edited shader bytes are picked up by the rebuild.
	//
	// Parameters:
	//   - recipes: replacement recipes, may be empty
	//
	// Returns:
	//   - error: the first build failure, the old pipelines stay in place
	ReloadPipelines(recipes ...gpu.PipelineRecipe) error

	// SetPresentMode selects the present mode, applied by a swapchain rebuild
	// at the next BeginFrame.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode gpu.PresentMode)

	// Failed reports whether a fatal GPU error has been raised.
	Failed() bool

	// Destroy waits for the device to idle and releases every frame resource
	// and pipeline. The backend itself is left to its owner.
	Destroy()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer driving backend.
//
// Parameters:
//   - backend: the GPU backend with its presentation surface
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if frame resources or pre-registered pipelines could not be created
func NewRenderer(backend gpu.Backend, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:             &sync.Mutex{},
		backend:        backend,
		framesInFlight: frame.DefaultFramesInFlight,
		workers:        workers.DefaultWorkers,
		clear:          gpu.DefaultClear,
	}
	for _, opt := range options {
		opt(r)
	}
	if r.extent == nil {
		r.extent = ExtentFunc(backend.Swapchain().Extent)
	}

	ring, err := frame.NewFenceRing(backend, r.framesInFlight, r.workers)
	if err != nil {
		return nil, fmt.Errorf("create frame ring: %w", err)
	}
	r.ring = ring
	r.surface = frame.NewSwapSurface(backend.Swapchain())
	r.pipelines = pipeline.NewCache(backend)

	if r.pendingPresentMode != nil {
		r.surface.SetPresentMode(*r.pendingPresentMode)
	}
	if err := r.pipelines.Register(r.pendingRecipes...); err != nil {
		r.ring.Destroy()
		return nil, err
	}
	r.pendingRecipes = nil

	common.Logger().Info("renderer created",
		slog.String("backend", backend.Type().String()),
		slog.Int("frames_in_flight", r.framesInFlight),
		slog.Int("workers", r.workers))
	return r, nil
}

func (r *renderer) Backend() gpu.Backend {
	return r.backend
}

func (r *renderer) BackendType() gpu.BackendType {
	return r.backend.Type()
}

func (r *renderer) Ring() frame.FenceRing {
	return r.ring
}

func (r *renderer) Surface() frame.SwapSurface {
	return r.surface
}

func (r *renderer) Pipelines() pipeline.Cache {
	return r.pipelines
}

func (r *renderer) FramesInFlight() int {
	return r.framesInFlight
}

func (r *renderer) Workers() int {
	return r.workers
}

func (r *renderer) FrameNumber() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameNumber
}

func (r *renderer) Failed() bool {
	return r.failed.Load()
}

// fail marks the renderer failed and raises err through the fatal handler.
func (r *renderer) fail(err error, attrs ...slog.Attr) error {
	if r.failed.CompareAndSwap(false, true) {
		common.Fatal(err, attrs...)
	}
	return err
}

func (r *renderer) BeginFrame() (Frame, bool, error) {
	if r.failed.Load() {
		return Frame{}, false, ErrFailed
	}
	r.mu.Lock()
	if r.inFrame || r.submitted {
		r.mu.Unlock()
		panic("renderer: BeginFrame called before the previous frame was presented")
	}
	r.mu.Unlock()

	if r.resizeRequested.Load() || r.surface.NeedsResize() {
		if err := r.Resize(); err != nil {
			return Frame{}, false, r.fail(err)
		}
		if r.surface.NeedsResize() {
			// Still minimised.
			return Frame{}, false, nil
		}
	}

	slot, err := r.ring.Wait()
	if err != nil {
		return Frame{}, false, r.fail(err, slog.Int("slot", slot.Index))
	}

	image, ok, err := r.surface.Acquire(slot)
	if err != nil {
		return Frame{}, false, r.fail(err, slog.Int("slot", slot.Index))
	}
	if !ok {
		// The fence was never reset, so the slot stays reusable.
		if err := r.Resize(); err != nil {
			return Frame{}, false, r.fail(err)
		}
		return Frame{}, false, nil
	}

	if err := r.ring.Reset(); err != nil {
		return Frame{}, false, r.fail(err, slog.Int("slot", slot.Index))
	}

	target := r.surface.Target(image)
	if res := slot.Primary.Begin(nil); res != gpu.ResultSuccess {
		return Frame{}, false, r.fail(res.Err("begin primary"), slog.Int("slot", slot.Index))
	}
	slot.Primary.BeginRenderPass(target, r.clear)

	r.mu.Lock()
	r.frameNumber++
	r.inFrame = true
	f := Frame{Number: r.frameNumber, Slot: slot, Image: image, Target: target}
	r.mu.Unlock()

	common.Logger().Debug("frame begun",
		slog.Uint64("frame", f.Number),
		slog.Int("slot", slot.Index),
		slog.Int("image", int(image)))
	return f, true, nil
}

func (r *renderer) EndFrame(f Frame) error {
	if err := r.Submit(f); err != nil {
		return err
	}
	return r.Present(f)
}

func (r *renderer) Submit(f Frame) error {
	r.mu.Lock()
	if !r.inFrame {
		r.mu.Unlock()
		panic("renderer: Submit without BeginFrame")
	}
	r.inFrame = false
	r.submitted = true
	r.mu.Unlock()

	if r.failed.Load() {
		return ErrFailed
	}

	slot := f.Slot
	slot.Primary.EndRenderPass()
	if res := slot.Primary.End(); res != gpu.ResultSuccess {
		return r.fail(res.Err("end primary"), slog.Int("slot", slot.Index))
	}

	if res := r.backend.Submit(slot.Primary, slot.ImageAcquired, slot.RenderComplete, slot.Fence); res != gpu.ResultSuccess {
		return r.fail(res.Err("submit"), slog.Uint64("frame", f.Number), slog.Int("slot", slot.Index))
	}
	return nil
}

func (r *renderer) Present(f Frame) error {
	r.mu.Lock()
	if !r.submitted {
		r.mu.Unlock()
		panic("renderer: Present without Submit")
	}
	r.submitted = false
	r.mu.Unlock()

	if r.failed.Load() {
		return ErrFailed
	}

	stale, err := r.surface.Present(f.Slot, f.Image)
	r.ring.Advance()
	if err != nil {
		return r.fail(err, slog.Uint64("frame", f.Number), slog.Int("slot", f.Slot.Index))
	}

	if stale || r.resizeRequested.Load() {
		if err := r.Resize(); err != nil {
			return r.fail(err)
		}
	}
	return nil
}

func (r *renderer) Resize() error {
	r.resizeRequested.Store(false)

	extent := r.extent.Extent()
	if extent.Empty() {
		_, err := r.surface.Resize(extent)
		return err
	}
	if !r.surface.NeedsResize() && extent == r.surface.Extent() {
		return nil
	}

	if res := r.backend.WaitIdle(); res != gpu.ResultSuccess {
		return res.Err("wait idle before resize")
	}
	recreated, err := r.surface.Resize(extent)
	if err != nil {
		return err
	}
	if !recreated {
		return nil
	}
	if err := r.ring.Rebuild(); err != nil {
		return fmt.Errorf("rebuild frame ring: %w", err)
	}
	for _, fn := range r.onResize {
		fn(extent)
	}
	return nil
}

func (r *renderer) RequestResize() {
	r.resizeRequested.Store(true)
}

func (r *renderer) ReloadPipelines(recipes ...gpu.PipelineRecipe) error {
	if r.failed.Load() {
		return ErrFailed
	}
	if err := r.pipelines.Replace(recipes...); err != nil {
		common.Logger().Warn("pipeline reload rejected, keeping previous pipelines", slog.Any("err", err))
		return err
	}
	if res := r.backend.WaitIdle(); res != gpu.ResultSuccess {
		return r.fail(res.Err("wait idle before pipeline reload"))
	}
	if err := r.pipelines.RebuildAll(); err != nil {
		common.Logger().Warn("pipeline reload failed, keeping previous pipelines", slog.Any("err", err))
		return err
	}
	common.Logger().Info("pipelines reloaded", slog.Int("count", len(r.pipelines.Names())))
	return nil
}

func (r *renderer) SetPresentMode(mode gpu.PresentMode) {
	r.surface.SetPresentMode(mode)
}

func (r *renderer) Destroy() {
	r.backend.WaitIdle()
	r.pipelines.Destroy()
	r.ring.Destroy()
}
