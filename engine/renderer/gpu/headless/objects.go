package headless

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

// Fence is the headless gpu.Fence with wait/reset counters.
type Fence interface {
	gpu.Fence

	// ID returns the creation index of the fence.
	ID() int

	// Waits returns how many times Wait has been called.
	Waits() int

	// Resets returns how many times Reset has been called.
	Resets() int

	// Signaled reports the current fence state.
	Signaled() bool
}

type fence struct {
	mu       *sync.Mutex
	backend  *backend
	id       int
	signaled bool
	waits    int
	resets   int
}

var _ Fence = &fence{}

func (f *fence) Wait() gpu.Result {
	f.mu.Lock()
	f.waits++
	signaled := f.signaled
	f.mu.Unlock()

	// Nothing in flight can ever signal this fence; a real device would hang here.
	if !signaled {
		f.backend.violate("wait on fence %d that was never submitted", f.id)
		return gpu.ResultTimeout
	}
	return gpu.ResultSuccess
}

func (f *fence) Reset() gpu.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.signaled = false
	return gpu.ResultSuccess
}

func (f *fence) Destroy() {}

func (f *fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signaled = true
}

func (f *fence) ID() int {
	return f.id
}

func (f *fence) Waits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waits
}

func (f *fence) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

func (f *fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

type semaphore struct {
	mu       *sync.Mutex
	backend  *backend
	id       int
	signaled bool
}

func (s *semaphore) Destroy() {}

func (s *semaphore) raise() {
	s.mu.Lock()
	already := s.signaled
	s.signaled = true
	s.mu.Unlock()

	if already {
		s.backend.violate("semaphore %d signaled twice without a wait", s.id)
	}
}

func (s *semaphore) consume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.signaled
	s.signaled = false
	return ok
}

type buffer struct {
	mu    *sync.Mutex
	data  []byte
	usage gpu.BufferUsage
}

// Bytes returns a copy of a headless buffer's contents, or nil for foreign buffers.
func Bytes(b gpu.Buffer) []byte {
	hb, ok := b.(*buffer)
	if !ok {
		return nil
	}
	hb.mu.Lock()
	defer hb.mu.Unlock()
	return append([]byte(nil), hb.data...)
}

func (b *buffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *buffer) Write(offset uint64, data []byte) gpu.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return gpu.ResultUnknown
	}
	copy(b.data[offset:], data)
	return gpu.ResultSuccess
}

func (b *buffer) Destroy() {}

type pipeline struct {
	name       string
	generation int
	vertex     []byte
}

func (p *pipeline) Name() string {
	return p.name
}

func (p *pipeline) Destroy() {}

// Generation returns how many builds of the same recipe name preceded this pipeline, plus one.
func Generation(p gpu.Pipeline) int {
	if hp, ok := p.(*pipeline); ok {
		return hp.generation
	}
	return 0
}

// VertexCode returns the vertex stage bytes the pipeline was built from.
func VertexCode(p gpu.Pipeline) []byte {
	if hp, ok := p.(*pipeline); ok {
		return hp.vertex
	}
	return nil
}

type commandBuffer struct {
	backend   *backend
	id        int
	level     gpu.CommandLevel
	recording bool
	inPass    bool
	inherit   *gpu.RenderPassContext
	bound     string
	commands  []Command
}

var _ gpu.CommandBuffer = &commandBuffer{}

// Commands returns a copy of the command log of a headless command buffer.
func Commands(cb gpu.CommandBuffer) []Command {
	if hc, ok := cb.(*commandBuffer); ok {
		return hc.snapshot()
	}
	return nil
}

// Inherited returns the render pass context a headless fragment buffer was begun with.
func Inherited(cb gpu.CommandBuffer) *gpu.RenderPassContext {
	if hc, ok := cb.(*commandBuffer); ok {
		return hc.inherit
	}
	return nil
}

func (c *commandBuffer) snapshot() []Command {
	return append([]Command(nil), c.commands...)
}

func (c *commandBuffer) isRecording() bool {
	return c.recording
}

func (c *commandBuffer) Level() gpu.CommandLevel {
	return c.level
}

func (c *commandBuffer) Begin(inherit *gpu.RenderPassContext) gpu.Result {
	if c.recording {
		c.backend.violate("begin on buffer %d while recording", c.id)
	}
	if c.level == gpu.LevelFragment && inherit == nil {
		c.backend.violate("fragment buffer %d begun without render pass context", c.id)
	}
	c.recording = true
	c.inPass = false
	c.bound = ""
	c.commands = c.commands[:0]
	if inherit != nil {
		ctx := *inherit
		c.inherit = &ctx
	} else {
		c.inherit = nil
	}
	return gpu.ResultSuccess
}

func (c *commandBuffer) End() gpu.Result {
	if !c.recording {
		c.backend.violate("end on buffer %d that is not recording", c.id)
	}
	if c.inPass {
		c.backend.violate("end on buffer %d inside a render pass", c.id)
	}
	c.recording = false
	return gpu.ResultSuccess
}

func (c *commandBuffer) Reset() gpu.Result {
	c.recording = false
	c.inPass = false
	c.commands = c.commands[:0]
	return gpu.ResultSuccess
}

func (c *commandBuffer) record(cmd Command) {
	if !c.recording {
		c.backend.violate("%s recorded into buffer %d that is not recording", cmd.Op, c.id)
	}
	if c.level == gpu.LevelPrimary {
		switch cmd.Op {
		case OpBeginRenderPass, OpEndRenderPass:
		case OpBarrier:
			if c.inPass {
				c.backend.violate("barrier recorded into primary %d inside a render pass", c.id)
			}
		default:
			// Pass contents of a primary come exclusively from merged fragments.
			c.backend.violate("%s recorded inline into primary %d", cmd.Op, c.id)
		}
	}
	cmd.Fragment = -1
	c.commands = append(c.commands, cmd)
}

func (c *commandBuffer) BeginRenderPass(ctx gpu.RenderPassContext, _ gpu.ClearValues) {
	if c.level != gpu.LevelPrimary {
		c.backend.violate("render pass opened on fragment buffer %d", c.id)
	}
	c.record(Command{Op: OpBeginRenderPass, Image: ctx.ImageIndex, Extent: ctx.Extent})
	c.inPass = true
}

func (c *commandBuffer) EndRenderPass() {
	c.record(Command{Op: OpEndRenderPass})
	c.inPass = false
}

func (c *commandBuffer) BindPipeline(p gpu.Pipeline) {
	c.bound = p.Name()
	c.record(Command{Op: OpBindPipeline, Pipeline: c.bound})
}

func (c *commandBuffer) BindDescriptorSets(p gpu.Pipeline, first uint32, sets ...gpu.DescriptorSet) {
	c.record(Command{Op: OpBindDescriptorSets, Pipeline: p.Name(), First: first, Count: uint32(len(sets))})
}

func (c *commandBuffer) BindVertexBuffers(first uint32, buffers ...gpu.Buffer) {
	c.record(Command{Op: OpBindVertexBuffers, First: first, Count: uint32(len(buffers))})
}

func (c *commandBuffer) BindIndexBuffer(_ gpu.Buffer, _ gpu.IndexFormat) {
	c.record(Command{Op: OpBindIndexBuffer})
}

func (c *commandBuffer) SetViewport(vp gpu.Viewport) {
	c.record(Command{Op: OpSetViewport, Viewport: vp})
}

func (c *commandBuffer) SetScissor(rect gpu.Rect2D) {
	c.record(Command{Op: OpSetScissor, Scissor: rect})
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.record(Command{Op: OpDraw, Pipeline: c.bound, Count: vertexCount, Instances: instanceCount, First: firstVertex, FirstInstance: firstInstance})
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.record(Command{Op: OpDrawIndexed, Pipeline: c.bound, Count: indexCount, Instances: instanceCount, First: firstIndex, VertexOffset: vertexOffset, FirstInstance: firstInstance})
}

func (c *commandBuffer) PipelineBarrier(b gpu.Barrier) {
	c.record(Command{Op: OpBarrier, Barrier: b})
}

func (c *commandBuffer) ExecuteCommands(fragments ...gpu.CommandBuffer) {
	if c.level != gpu.LevelPrimary || !c.inPass {
		c.backend.violate("execute commands on buffer %d outside a primary render pass", c.id)
	}
	for i, f := range fragments {
		frag, ok := f.(*commandBuffer)
		if !ok {
			continue
		}
		if frag.level != gpu.LevelFragment {
			c.backend.violate("buffer %d merged as fragment but is primary", frag.id)
		}
		if frag.recording {
			c.backend.violate("fragment %d merged while still recording", frag.id)
		}
		for _, cmd := range frag.commands {
			cmd.Fragment = i
			c.commands = append(c.commands, cmd)
		}
	}
}

func (c *commandBuffer) Destroy() {}
