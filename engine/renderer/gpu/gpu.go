// Package gpu defines the backend-neutral device contract the frame pacer,
// recorder and worker pool are written against. Concrete backends live in the
// headless, vulkan and webgpu sub-packages.
package gpu

// BackendType identifies a Backend implementation.
type BackendType int

const (
	// BackendHeadless is the deterministic in-memory backend used for tests and tooling.
	BackendHeadless BackendType = iota
	// BackendVulkan drives a Vulkan device.
	BackendVulkan
	// BackendWebGPU drives a WebGPU device.
	BackendWebGPU
)

func (b BackendType) String() string {
	switch b {
	case BackendHeadless:
		return "headless"
	case BackendVulkan:
		return "vulkan"
	case BackendWebGPU:
		return "webgpu"
	default:
		return "unknown"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped

	// PresentModeMailbox replaces the queued image instead of blocking. Falls back to VSync
	// where the surface does not support it.
	PresentModeMailbox
)

// CommandLevel distinguishes primary buffers, which are submitted, from
// fragment buffers, which are recorded in parallel and merged into a primary.
type CommandLevel int

const (
	LevelPrimary CommandLevel = iota
	LevelFragment
)

// Fence is a CPU-waitable signal raised when a submission finishes on the GPU.
type Fence interface {
	// Wait blocks until the fence is signaled.
	//
	// Returns:
	//   - Result: ResultSuccess once signaled, or the failure reported by the device
	Wait() Result

	// Reset returns the fence to the unsignaled state.
	//
	// Returns:
	//   - Result: ResultSuccess or the failure reported by the device
	Reset() Result

	// Destroy releases the fence.
	Destroy()
}

// Semaphore orders queue operations on the GPU timeline.
type Semaphore interface {
	// Destroy releases the semaphore.
	Destroy()
}

// Pipeline is a built graphics pipeline.
type Pipeline interface {
	// Name returns the recipe name the pipeline was built from.
	Name() string

	// Destroy releases the pipeline.
	Destroy()
}

// Buffer is a GPU-visible buffer the host can write to.
type Buffer interface {
	// Size returns the buffer size in bytes.
	Size() uint64

	// Write copies data into the buffer at offset.
	//
	// Parameters:
	//   - offset: byte offset into the buffer
	//   - data: bytes to copy
	//
	// Returns:
	//   - Result: ResultSuccess, or a failure when the write is out of bounds or the device failed
	Write(offset uint64, data []byte) Result

	// Destroy releases the buffer.
	Destroy()
}

// DescriptorSet is an opaque resource binding handle owned by the material
// collaborator (a VkDescriptorSet, a *wgpu.BindGroup, ...).
type DescriptorSet any

// Mesh is a ready-to-draw set of GPU-resident geometry buffers.
type Mesh struct {
	Vertex      Buffer
	Index       Buffer
	VertexCount uint32
	IndexCount  uint32
	IndexFormat IndexFormat
}

// Indexed reports whether the mesh is drawn with an index buffer.
func (m Mesh) Indexed() bool {
	return m.Index != nil && m.IndexCount > 0
}

// CommandBuffer records GPU commands. A primary buffer opens a render pass and
// merges fragment buffers into it; a fragment buffer records inside the pass
// described by the RenderPassContext it was begun with.
type CommandBuffer interface {
	// Level returns whether this is a primary or fragment buffer.
	Level() CommandLevel

	// Begin starts recording. Fragment buffers must receive the render pass
	// context they continue; primary buffers pass nil.
	//
	// Parameters:
	//   - inherit: the render pass a fragment buffer records into, nil for primaries
	//
	// Returns:
	//   - Result: ResultSuccess or the failure reported by the device
	Begin(inherit *RenderPassContext) Result

	// End finishes recording.
	//
	// Returns:
	//   - Result: ResultSuccess or the failure reported by the device
	End() Result

	// Reset discards all recorded commands.
	//
	// Returns:
	//   - Result: ResultSuccess or the failure reported by the device
	Reset() Result

	// BeginRenderPass opens the render pass for ctx on a primary buffer. The
	// pass contents are supplied by fragment buffers via ExecuteCommands.
	//
	// Parameters:
	//   - ctx: the target image and extent
	//   - clear: the clear values for the colour and depth attachments
	BeginRenderPass(ctx RenderPassContext, clear ClearValues)

	// EndRenderPass closes the render pass opened by BeginRenderPass.
	EndRenderPass()

	// BindPipeline binds a graphics pipeline.
	BindPipeline(p Pipeline)

	// BindDescriptorSets binds sets starting at index first using p's layout.
	BindDescriptorSets(p Pipeline, first uint32, sets ...DescriptorSet)

	// BindVertexBuffers binds vertex buffers starting at slot first.
	BindVertexBuffers(first uint32, buffers ...Buffer)

	// BindIndexBuffer binds the index buffer.
	BindIndexBuffer(buf Buffer, format IndexFormat)

	// SetViewport sets the dynamic viewport.
	SetViewport(vp Viewport)

	// SetScissor sets the dynamic scissor rectangle.
	SetScissor(rect Rect2D)

	// Draw issues a non-indexed draw.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// DrawIndexed issues an indexed draw.
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)

	// PipelineBarrier inserts a memory barrier.
	PipelineBarrier(b Barrier)

	// ExecuteCommands appends the recorded fragments, in argument order, into
	// the render pass of this primary buffer.
	ExecuteCommands(fragments ...CommandBuffer)

	// Destroy releases the buffer.
	Destroy()
}

// Swapchain is the presentation surface: a set of images that are acquired,
// rendered into and handed back to the display.
type Swapchain interface {
	// Extent returns the current image size.
	Extent() Extent2D

	// ImageCount returns the number of presentable images.
	ImageCount() int

	// Acquire requests the next presentable image and arranges for signal to be
	// raised once it is ready to be rendered to.
	//
	// Parameters:
	//   - signal: the semaphore raised when the image is available
	//
	// Returns:
	//   - uint32: the image index, valid when the result is success or suboptimal
	//   - Result: ResultSuccess, a stale result, or a fatal failure
	Acquire(signal Semaphore) (uint32, Result)

	// Present queues image for display after wait is raised.
	//
	// Parameters:
	//   - image: the image index returned by Acquire
	//   - wait: the semaphore raised when rendering completes
	//
	// Returns:
	//   - Result: ResultSuccess, a stale result, or a fatal failure
	Present(image uint32, wait Semaphore) Result

	// Target returns the render pass context for image.
	Target(image uint32) RenderPassContext

	// Recreate rebuilds the swapchain and every size-dependent resource it owns
	// (depth target, framebuffers) for extent. The device must be idle.
	//
	// Parameters:
	//   - extent: the new surface size
	//
	// Returns:
	//   - error: an error if any resource could not be rebuilt
	Recreate(extent Extent2D) error

	// SetPresentMode selects the present mode used by the next Recreate.
	SetPresentMode(mode PresentMode)

	// Destroy releases the swapchain and its size-dependent resources.
	Destroy()
}

// Backend is a GPU device plus its presentation surface.
type Backend interface {
	// Type identifies the implementation.
	Type() BackendType

	// CreateFence creates a fence, optionally already signaled so the first
	// wait on a fresh frame slot returns immediately.
	CreateFence(signaled bool) (Fence, error)

	// CreateSemaphore creates a queue semaphore.
	CreateSemaphore() (Semaphore, error)

	// AllocateCommandBuffers allocates count command buffers of the given level.
	AllocateCommandBuffers(level CommandLevel, count int) ([]CommandBuffer, error)

	// CreateBuffer creates a host-writable buffer.
	CreateBuffer(size uint64, usage BufferUsage) (Buffer, error)

	// CreatePipeline builds a graphics pipeline from a recipe against the
	// swapchain's current render pass.
	CreatePipeline(recipe PipelineRecipe) (Pipeline, error)

	// Submit queues cmd for execution. The submission waits on wait, raises
	// signal when done and signals fence. Any of wait, signal and fence may be nil.
	Submit(cmd CommandBuffer, wait, signal Semaphore, fence Fence) Result

	// WaitIdle blocks until the device has finished all submitted work.
	WaitIdle() Result

	// Swapchain returns the presentation surface.
	Swapchain() Swapchain

	// Destroy releases every backend-owned resource.
	Destroy()
}
