package webgpu

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// op is one recorded render pass command, replayed by Submit.
type op func(pass *wgpu.RenderPassEncoder)

// commandBuffer records into an op list. Fragments are merged by appending
// their ops to the primary in ExecuteCommands order.
type commandBuffer struct {
	level gpu.CommandLevel
	ops   []op

	recording bool
	inherit   *gpu.RenderPassContext

	// Primary only.
	target *gpu.RenderPassContext
	clear  gpu.ClearValues
	inPass bool

	barriers int
}

var _ gpu.CommandBuffer = &commandBuffer{}

func (c *commandBuffer) Level() gpu.CommandLevel {
	return c.level
}

func (c *commandBuffer) Begin(inherit *gpu.RenderPassContext) gpu.Result {
	if c.recording {
		return gpu.ResultUnknown
	}
	if c.level == gpu.LevelFragment && inherit == nil {
		return gpu.ResultUnknown
	}
	c.reset()
	c.recording = true
	if inherit != nil {
		ctx := *inherit
		c.inherit = &ctx
	}
	return gpu.ResultSuccess
}

func (c *commandBuffer) End() gpu.Result {
	if !c.recording || c.inPass {
		return gpu.ResultUnknown
	}
	c.recording = false
	return gpu.ResultSuccess
}

func (c *commandBuffer) Reset() gpu.Result {
	c.reset()
	c.recording = false
	return gpu.ResultSuccess
}

func (c *commandBuffer) reset() {
	clear(c.ops)
	c.ops = c.ops[:0]
	c.inherit = nil
	c.target = nil
	c.inPass = false
	c.barriers = 0
}

func (c *commandBuffer) record(o op) {
	if c.recording {
		c.ops = append(c.ops, o)
	}
}

func (c *commandBuffer) BeginRenderPass(ctx gpu.RenderPassContext, clear gpu.ClearValues) {
	if c.level != gpu.LevelPrimary {
		return
	}
	c.target = &ctx
	c.clear = clear
	c.inPass = true
}

func (c *commandBuffer) EndRenderPass() {
	c.inPass = false
}

func (c *commandBuffer) BindPipeline(p gpu.Pipeline) {
	wp, ok := p.(*pipeline)
	if !ok {
		return
	}
	render := wp.render
	c.record(func(pass *wgpu.RenderPassEncoder) {
		pass.SetPipeline(render)
	})
}

func (c *commandBuffer) BindDescriptorSets(_ gpu.Pipeline, first uint32, sets ...gpu.DescriptorSet) {
	for i, s := range sets {
		group, ok := s.(*wgpu.BindGroup)
		if !ok || group == nil {
			continue
		}
		index := first + uint32(i)
		c.record(func(pass *wgpu.RenderPassEncoder) {
			pass.SetBindGroup(index, group, nil)
		})
	}
}

func (c *commandBuffer) BindVertexBuffers(first uint32, buffers ...gpu.Buffer) {
	for i, b := range buffers {
		wb, ok := b.(*buffer)
		if !ok {
			continue
		}
		slot, buf := first+uint32(i), wb.buf
		c.record(func(pass *wgpu.RenderPassEncoder) {
			pass.SetVertexBuffer(slot, buf, 0, wgpu.WholeSize)
		})
	}
}

func (c *commandBuffer) BindIndexBuffer(b gpu.Buffer, format gpu.IndexFormat) {
	wb, ok := b.(*buffer)
	if !ok {
		return
	}
	buf, f := wb.buf, indexFormat(format)
	c.record(func(pass *wgpu.RenderPassEncoder) {
		pass.SetIndexBuffer(buf, f, 0, wgpu.WholeSize)
	})
}

// SetViewport ignores FlipY: WebGPU clip space already has +Y up.
func (c *commandBuffer) SetViewport(vp gpu.Viewport) {
	c.record(func(pass *wgpu.RenderPassEncoder) {
		pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	})
}

func (c *commandBuffer) SetScissor(rect gpu.Rect2D) {
	x, y := uint32(max(rect.X, 0)), uint32(max(rect.Y, 0))
	c.record(func(pass *wgpu.RenderPassEncoder) {
		pass.SetScissorRect(x, y, rect.Width, rect.Height)
	})
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.record(func(pass *wgpu.RenderPassEncoder) {
		pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	})
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.record(func(pass *wgpu.RenderPassEncoder) {
		pass.DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	})
}

// PipelineBarrier is counted but not encoded; WebGPU tracks hazards itself.
func (c *commandBuffer) PipelineBarrier(gpu.Barrier) {
	if c.recording {
		c.barriers++
	}
}

func (c *commandBuffer) ExecuteCommands(fragments ...gpu.CommandBuffer) {
	if c.level != gpu.LevelPrimary || !c.inPass {
		return
	}
	for _, f := range fragments {
		wf, ok := f.(*commandBuffer)
		if !ok || wf.recording {
			continue
		}
		c.ops = append(c.ops, wf.ops...)
	}
}

func (c *commandBuffer) Destroy() {
	c.reset()
	c.ops = nil
}
