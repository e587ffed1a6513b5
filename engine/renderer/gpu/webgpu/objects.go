package webgpu

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// fence emulates a submission fence. WebGPU has no CPU-waitable fence, so a
// wait on a submitted fence blocks in Poll until the queue has drained.
type fence struct {
	mu     *sync.Mutex
	device *wgpu.Device

	signaled bool
	pending  bool
}

func (f *fence) submitted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = true
}

func (f *fence) Wait() gpu.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		f.device.Poll(true, nil)
		f.pending = false
		f.signaled = true
	}
	if !f.signaled {
		// Never submitted: a real fence would block forever.
		return gpu.ResultTimeout
	}
	return gpu.ResultSuccess
}

func (f *fence) Reset() gpu.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signaled = false
	return gpu.ResultSuccess
}

func (f *fence) Destroy() {}

// semaphore is a no-op: a single WebGPU queue is ordered.
type semaphore struct{}

func (semaphore) Destroy() {}

type buffer struct {
	buf   *wgpu.Buffer
	size  uint64
	queue *wgpu.Queue
}

func (b *buffer) Size() uint64 {
	return b.size
}

func (b *buffer) Write(offset uint64, data []byte) gpu.Result {
	if offset+uint64(len(data)) > b.size {
		return gpu.ResultUnknown
	}
	if len(data) == 0 {
		return gpu.ResultSuccess
	}
	if offset%4 != 0 {
		return gpu.ResultUnknown
	}
	if pad := len(data) % 4; pad != 0 {
		data = append(data[:len(data):len(data)], make([]byte, 4-pad)...)
	}
	b.queue.WriteBuffer(b.buf, offset, data)
	return gpu.ResultSuccess
}

func (b *buffer) Destroy() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

type pipeline struct {
	name   string
	render *wgpu.RenderPipeline
}

func (p *pipeline) Name() string {
	return p.name
}

func (p *pipeline) Destroy() {
	if p.render != nil {
		p.render.Release()
		p.render = nil
	}
}
