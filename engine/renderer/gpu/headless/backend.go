// Package headless implements the gpu contract in memory. Submissions complete
// instantly, every command is logged, and acquire/present/submit results can
// be scripted so frame pacing paths (stale surface, device loss) can be driven
// deterministically without a device.
package headless

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

type backend struct {
	mu *sync.Mutex

	swapchain *swapchain

	fences     []*fence
	semaphores []*semaphore
	buffers    []*commandBuffer

	submitScript []gpu.Result
	submits      int
	waitIdles    int
	lastSubmit   []Command

	builds    map[string]int
	destroyed bool

	violations []string
}

// Backend is the headless gpu.Backend plus the inspection hooks tests use.
type Backend interface {
	gpu.Backend

	// HeadlessSwapchain returns the swapchain with its scripting hooks.
	HeadlessSwapchain() Swapchain

	// QueueSubmit scripts the results of the next submissions, consumed in order.
	// Unscripted submissions succeed.
	//
	// Parameters:
	//   - results: the results to return
	QueueSubmit(results ...gpu.Result)

	// Submits returns the number of successful submissions.
	Submits() int

	// WaitIdles returns the number of WaitIdle calls.
	WaitIdles() int

	// LastSubmitted returns a copy of the command log of the most recent successful submission.
	LastSubmitted() []Command

	// Fences returns every fence created so far, in creation order.
	Fences() []Fence

	// Builds returns how many times a pipeline with the given name was built.
	Builds(name string) int

	// Violations returns protocol misuse detected so far (unsignaled waits,
	// recording into a closed buffer, merging an open fragment...).
	Violations() []string
}

var _ Backend = &backend{}

// NewBackend creates a headless backend. The swapchain starts at 1280x720 with
// three images unless overridden.
//
// Parameters:
//   - options: functional options for extent and image count
//
// Returns:
//   - Backend: the new backend
func NewBackend(options ...BackendBuilderOption) Backend {
	b := &backend{
		mu:     &sync.Mutex{},
		builds: make(map[string]int),
	}
	b.swapchain = &swapchain{
		mu:      &sync.Mutex{},
		backend: b,
		extent:  gpu.Extent2D{Width: 1280, Height: 720},
		images:  3,
	}

	for _, opt := range options {
		opt(b)
	}

	return b
}

func (b *backend) violate(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.violations = append(b.violations, fmt.Sprintf(format, args...))
}

func (b *backend) Type() gpu.BackendType {
	return gpu.BackendHeadless
}

func (b *backend) CreateFence(signaled bool) (gpu.Fence, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f := &fence{mu: &sync.Mutex{}, backend: b, id: len(b.fences), signaled: signaled}
	b.fences = append(b.fences, f)
	return f, nil
}

func (b *backend) CreateSemaphore() (gpu.Semaphore, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &semaphore{mu: &sync.Mutex{}, backend: b, id: len(b.semaphores)}
	b.semaphores = append(b.semaphores, s)
	return s, nil
}

func (b *backend) AllocateCommandBuffers(level gpu.CommandLevel, count int) ([]gpu.CommandBuffer, error) {
	if count < 0 {
		return nil, fmt.Errorf("headless: allocate %d command buffers", count)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]gpu.CommandBuffer, count)
	for i := range out {
		cb := &commandBuffer{backend: b, level: level, id: len(b.buffers)}
		b.buffers = append(b.buffers, cb)
		out[i] = cb
	}
	return out, nil
}

func (b *backend) CreateBuffer(size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("headless: zero sized buffer")
	}
	return &buffer{mu: &sync.Mutex{}, data: make([]byte, size), usage: usage}, nil
}

func (b *backend) CreatePipeline(recipe gpu.PipelineRecipe) (gpu.Pipeline, error) {
	if err := recipe.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.builds[recipe.Name]++
	return &pipeline{
		name:       recipe.Name,
		generation: b.builds[recipe.Name],
		vertex:     append([]byte(nil), recipe.Vertex.Code...),
	}, nil
}

func (b *backend) Submit(cmd gpu.CommandBuffer, wait, signal gpu.Semaphore, f gpu.Fence) gpu.Result {
	cb, ok := cmd.(*commandBuffer)
	if !ok {
		return gpu.ResultUnknown
	}

	b.mu.Lock()
	result := gpu.ResultSuccess
	if len(b.submitScript) > 0 {
		result = b.submitScript[0]
		b.submitScript = b.submitScript[1:]
	}
	b.mu.Unlock()

	if result != gpu.ResultSuccess {
		return result
	}

	if cb.level != gpu.LevelPrimary {
		b.violate("submit of fragment buffer %d", cb.id)
	}
	if cb.isRecording() {
		b.violate("submit of buffer %d while recording", cb.id)
	}
	if s, ok := wait.(*semaphore); ok && !s.consume() {
		b.violate("submit waits on unsignaled semaphore %d", s.id)
	}
	if s, ok := signal.(*semaphore); ok {
		s.raise()
	}
	if hf, ok := f.(*fence); ok {
		hf.signal()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.submits++
	b.lastSubmit = cb.snapshot()
	return gpu.ResultSuccess
}

func (b *backend) WaitIdle() gpu.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waitIdles++
	return gpu.ResultSuccess
}

func (b *backend) Swapchain() gpu.Swapchain {
	return b.swapchain
}

func (b *backend) HeadlessSwapchain() Swapchain {
	return b.swapchain
}

func (b *backend) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = true
}

func (b *backend) QueueSubmit(results ...gpu.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitScript = append(b.submitScript, results...)
}

func (b *backend) Submits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submits
}

func (b *backend) WaitIdles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waitIdles
}

func (b *backend) LastSubmitted() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Command(nil), b.lastSubmit...)
}

func (b *backend) Fences() []Fence {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Fence, len(b.fences))
	for i, f := range b.fences {
		out[i] = f
	}
	return out
}

func (b *backend) Builds(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds[name]
}

func (b *backend) Violations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.violations...)
}
