// Package frame holds the per-frame-in-flight GPU resources and the
// acquire/present cycle over the presentation surface.
package frame

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

// DefaultFramesInFlight is the ring size used when none is configured.
const DefaultFramesInFlight = 3

// Slot is one frame-in-flight. Its resources may only be touched after its
// fence has signaled for the previous submission that used them.
type Slot struct {
	Index int

	Fence          gpu.Fence
	ImageAcquired  gpu.Semaphore
	RenderComplete gpu.Semaphore

	Primary gpu.CommandBuffer

	// Fragments holds one buffer per worker. Worker i records only into Fragments[i].
	Fragments []gpu.CommandBuffer

	// Tail is recorded by the orchestrator after the parallel window and merged last.
	Tail gpu.CommandBuffer
}

type fenceRing struct {
	mu      *sync.Mutex
	backend gpu.Backend

	slots   []*Slot
	workers int
	current int
	waits   []int
}

// FenceRing is a fixed ring of frame slots. Only the orchestrator goroutine
// advances it.
type FenceRing interface {
	// Size returns the number of slots.
	Size() int

	// Workers returns the number of fragment buffers per slot.
	Workers() int

	// Current returns the slot the next frame will use.
	Current() *Slot

	// Slot returns slot i.
	Slot(i int) *Slot

	// Wait blocks until the current slot's fence signals.
	//
	// Returns:
	//   - *Slot: the current slot, safe to reuse once Wait returns
	//   - error: a gpu.ResultError when the wait failed
	Wait() (*Slot, error)

	// Reset returns the current slot's fence to unsignaled, ahead of the submit that will signal it.
	//
	// Returns:
	//   - error: a gpu.ResultError when the reset failed
	Reset() error

	// Advance moves to the next slot.
	Advance()

	// Rebuild destroys and recreates every command buffer and sync object. The
	// device must be idle. Fences come back signaled.
	//
	// Returns:
	//   - error: an error if any object could not be created
	Rebuild() error

	// Waits returns how many times slot i has been waited on.
	Waits(i int) int

	// Destroy releases every slot resource.
	Destroy()
}

var _ FenceRing = &fenceRing{}

// NewFenceRing allocates size slots, each with a primary buffer, a signaled
// fence, two semaphores, one fragment buffer per worker and a tail fragment.
//
// Parameters:
//   - backend: the device to allocate from
//   - size: the number of frames in flight, must be at least 1
//   - workers: fragment buffers per slot, must be at least 1
//
// Returns:
//   - FenceRing: the ring
//   - error: an error if allocation failed
func NewFenceRing(backend gpu.Backend, size, workers int) (FenceRing, error) {
	if size < 1 {
		panic(fmt.Sprintf("frame: ring size %d < 1", size))
	}
	if workers < 1 {
		panic(fmt.Sprintf("frame: worker count %d < 1", workers))
	}

	r := &fenceRing{
		mu:      &sync.Mutex{},
		backend: backend,
		slots:   make([]*Slot, size),
		workers: workers,
		waits:   make([]int, size),
	}
	for i := range r.slots {
		r.slots[i] = &Slot{Index: i}
	}
	if err := r.allocate(); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *fenceRing) allocate() error {
	for _, s := range r.slots {
		var err error
		if s.Fence, err = r.backend.CreateFence(true); err != nil {
			return fmt.Errorf("slot %d fence: %w", s.Index, err)
		}
		if s.ImageAcquired, err = r.backend.CreateSemaphore(); err != nil {
			return fmt.Errorf("slot %d image acquired semaphore: %w", s.Index, err)
		}
		if s.RenderComplete, err = r.backend.CreateSemaphore(); err != nil {
			return fmt.Errorf("slot %d render complete semaphore: %w", s.Index, err)
		}

		primary, err := r.backend.AllocateCommandBuffers(gpu.LevelPrimary, 1)
		if err != nil {
			return fmt.Errorf("slot %d primary buffer: %w", s.Index, err)
		}
		s.Primary = primary[0]

		fragments, err := r.backend.AllocateCommandBuffers(gpu.LevelFragment, r.workers+1)
		if err != nil {
			return fmt.Errorf("slot %d fragment buffers: %w", s.Index, err)
		}
		s.Fragments = fragments[:r.workers]
		s.Tail = fragments[r.workers]
	}
	return nil
}

func (r *fenceRing) release() {
	for _, s := range r.slots {
		if s.Fence != nil {
			s.Fence.Destroy()
		}
		if s.ImageAcquired != nil {
			s.ImageAcquired.Destroy()
		}
		if s.RenderComplete != nil {
			s.RenderComplete.Destroy()
		}
		if s.Primary != nil {
			s.Primary.Destroy()
		}
		for _, f := range s.Fragments {
			f.Destroy()
		}
		if s.Tail != nil {
			s.Tail.Destroy()
		}
		*s = Slot{Index: s.Index}
	}
}

func (r *fenceRing) Size() int {
	return len(r.slots)
}

func (r *fenceRing) Workers() int {
	return r.workers
}

func (r *fenceRing) Current() *Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[r.current]
}

func (r *fenceRing) Slot(i int) *Slot {
	return r.slots[i]
}

func (r *fenceRing) Wait() (*Slot, error) {
	r.mu.Lock()
	s := r.slots[r.current]
	r.waits[r.current]++
	r.mu.Unlock()

	if res := s.Fence.Wait(); res != gpu.ResultSuccess {
		return s, res.Err(fmt.Sprintf("wait fence slot %d", s.Index))
	}
	return s, nil
}

func (r *fenceRing) Reset() error {
	s := r.Current()
	if res := s.Fence.Reset(); res != gpu.ResultSuccess {
		return res.Err(fmt.Sprintf("reset fence slot %d", s.Index))
	}
	return nil
}

func (r *fenceRing) Advance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = (r.current + 1) % len(r.slots)
}

func (r *fenceRing) Rebuild() error {
	r.release()
	return r.allocate()
}

func (r *fenceRing) Waits(i int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waits[i]
}

func (r *fenceRing) Destroy() {
	r.release()
}
