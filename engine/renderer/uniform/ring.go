// Package uniform keeps one set of per-frame shader inputs (camera, lighting
// and instance transforms) for every frame slot, so the CPU can fill slot N+1
// while the GPU still reads slot N.
package uniform

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

// InstanceStride is the byte size of one packed instance, a column-major model matrix.
const InstanceStride = 64

// MinInstanceCapacity is the smallest instance buffer a slot allocates, in instances.
const MinInstanceCapacity = 64

// DefaultPackWorkers is the pack pool size used when WithPackWorkers is not given.
const DefaultPackWorkers = 4

// Instances is the grouped transform source packed into a slot's instance buffer.
// Items are laid out group after group, so item (g, l) lands at instance
// index sum(Sizes()[:g]) + l.
type Instances interface {
	Sizes() []int
	Transform(group, local int) common.Mat4
}

// BindingFactory builds the descriptor set a slot's buffers are bound through.
// It is called whenever a slot's buffers are (re)created.
type BindingFactory func(slot int, s *Slot) (gpu.DescriptorSet, error)

// Slot is the uniform state of one frame slot.
type Slot struct {
	Camera    gpu.Buffer
	Lighting  gpu.Buffer
	Instances gpu.Buffer
	Binding   gpu.DescriptorSet

	capacity int
	count    int
	scratch  []byte
}

// Capacity returns the number of instances the slot's instance buffer holds.
func (s *Slot) Capacity() int {
	return s.capacity
}

// Count returns the number of instances written by the last upload.
func (s *Slot) Count() int {
	return s.count
}

type ring struct {
	backend gpu.Backend
	slots   []*Slot
	binding BindingFactory

	packWorkers int
	packPool    worker.DynamicWorkerPool
}

// Ring holds one Slot per frame in flight.
type Ring interface {
	// Size returns the number of slots.
	Size() int

	// Slot returns slot i.
	Slot(i int) *Slot

	// PackWorkers returns how many goroutines pack instance groups; 1 means
	// packing runs on the uploading goroutine.
	PackWorkers() int

	// Upload writes a frame's camera, lighting and instance data into slot i.
	// Buffers grow as needed; the instance buffer grows to the next power of two.
	// The caller must own the slot, that is, its fence has signaled.
	//
	// Parameters:
	//   - i: the slot index
	//   - camera: the marshalled camera uniform
	//   - lighting: the marshalled lighting uniform
	//   - instances: the grouped transforms to pack
	//
	// Returns:
	//   - error: an error if a buffer could not be created or written
	Upload(i int, camera, lighting []byte, instances Instances) error

	// Destroy releases every buffer. Idle pack workers exit on their own timeout.
	Destroy()
}

var _ Ring = &ring{}

// NewRing creates an empty ring of size slots. Buffers are created on first upload.
//
// Parameters:
//   - backend: the device buffers are created on
//   - size: the number of slots, normally the frames in flight
//   - options: functional options
//
// Returns:
//   - Ring: the ring
func NewRing(backend gpu.Backend, size int, options ...RingBuilderOption) Ring {
	if size < 1 {
		panic(fmt.Sprintf("uniform: ring size %d", size))
	}
	r := &ring{
		backend:     backend,
		slots:       make([]*Slot, size),
		packWorkers: DefaultPackWorkers,
	}
	for i := range r.slots {
		r.slots[i] = &Slot{}
	}
	for _, option := range options {
		option(r)
	}
	if r.packWorkers > 1 {
		r.packPool = worker.NewDynamicWorkerPool(r.packWorkers, 256, 1*time.Second)
	}
	return r
}

func (r *ring) Size() int {
	return len(r.slots)
}

func (r *ring) Slot(i int) *Slot {
	return r.slots[i]
}

func (r *ring) PackWorkers() int {
	if r.packPool == nil {
		return 1
	}
	return r.packWorkers
}

func (r *ring) Upload(i int, camera, lighting []byte, instances Instances) error {
	s := r.slots[i]
	created := false

	var err error
	var grew bool
	if s.Camera, grew, err = r.fit(s.Camera, uint64(len(camera)), gpu.BufferUniform); err != nil {
		return fmt.Errorf("uniform: slot %d camera buffer: %w", i, err)
	}
	created = created || grew
	if s.Lighting, grew, err = r.fit(s.Lighting, uint64(len(lighting)), gpu.BufferUniform); err != nil {
		return fmt.Errorf("uniform: slot %d lighting buffer: %w", i, err)
	}
	created = created || grew

	var sizes []int
	total := 0
	if instances != nil {
		sizes = instances.Sizes()
		for _, n := range sizes {
			total += n
		}
	}
	if total > s.capacity || s.Instances == nil {
		capacity := int(common.NextPow2(uint64(max(total, MinInstanceCapacity))))
		if s.Instances != nil {
			s.Instances.Destroy()
		}
		if s.Instances, err = r.backend.CreateBuffer(uint64(capacity*InstanceStride), gpu.BufferStorage|gpu.BufferCopyDst); err != nil {
			s.capacity = 0
			return fmt.Errorf("uniform: slot %d instance buffer: %w", i, err)
		}
		s.capacity = capacity
		s.scratch = make([]byte, capacity*InstanceStride)
		created = true
	}

	if created && r.binding != nil {
		if s.Binding, err = r.binding(i, s); err != nil {
			return fmt.Errorf("uniform: slot %d binding: %w", i, err)
		}
	}

	if len(camera) > 0 {
		if err := s.Camera.Write(0, camera).Err("write camera uniform"); err != nil {
			return err
		}
	}
	if len(lighting) > 0 {
		if err := s.Lighting.Write(0, lighting).Err("write lighting uniform"); err != nil {
			return err
		}
	}

	s.count = total
	if total == 0 {
		return nil
	}
	r.pack(s.scratch, sizes, instances)
	return s.Instances.Write(0, s.scratch[:total*InstanceStride]).Err("write instances")
}

// fit returns buf when it holds size bytes, otherwise a new buffer of that size.
func (r *ring) fit(buf gpu.Buffer, size uint64, usage gpu.BufferUsage) (gpu.Buffer, bool, error) {
	if size == 0 {
		size = 16
	}
	if buf != nil && buf.Size() >= size {
		return buf, false, nil
	}
	if buf != nil {
		buf.Destroy()
	}
	nb, err := r.backend.CreateBuffer(size, usage|gpu.BufferCopyDst)
	return nb, err == nil, err
}

// pack writes every group's transforms into dst. Groups are disjoint ranges of
// dst, so with a pack pool each group is its own task.
func (r *ring) pack(dst []byte, sizes []int, instances Instances) {
	if r.packPool == nil || len(sizes) < 2 {
		offset := 0
		for g, n := range sizes {
			packGroup(dst, offset, g, n, instances)
			offset += n
		}
		return
	}

	// A WaitGroup is the per-upload barrier; pool.Wait would block until the
	// workers idle out.
	var wg sync.WaitGroup
	offset := 0
	for g, n := range sizes {
		if n == 0 {
			continue
		}
		wg.Add(1)
		group, start, count := g, offset, n
		r.packPool.SubmitTask(worker.Task{
			ID: g,
			Do: func() (any, error) {
				defer wg.Done()
				packGroup(dst, start, group, count, instances)
				return nil, nil
			},
		})
		offset += n
	}
	wg.Wait()
}

func packGroup(dst []byte, offset, group, count int, instances Instances) {
	for l := 0; l < count; l++ {
		m := instances.Transform(group, l)
		copy(dst[(offset+l)*InstanceStride:], common.SliceToBytes(m[:]))
	}
}

func (r *ring) Destroy() {
	for _, s := range r.slots {
		for _, b := range []gpu.Buffer{s.Camera, s.Lighting, s.Instances} {
			if b != nil {
				b.Destroy()
			}
		}
		*s = Slot{}
	}
}
