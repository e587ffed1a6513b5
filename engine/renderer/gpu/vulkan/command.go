package vulkan

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	vk "github.com/goki/vulkan"
)

// passTarget is the RenderPassContext.Native payload: what a secondary buffer
// needs to inherit the pass opened by its primary.
type passTarget struct {
	renderPass  vk.RenderPass
	framebuffer vk.Framebuffer
}

type commandBuffer struct {
	device vk.Device
	pool   vk.CommandPool
	handle vk.CommandBuffer
	level  gpu.CommandLevel
}

func (c *commandBuffer) Level() gpu.CommandLevel {
	return c.level
}

func (c *commandBuffer) Begin(inherit *gpu.RenderPassContext) gpu.Result {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if c.level == gpu.LevelFragment {
		if inherit == nil {
			return gpu.ResultUnknown
		}
		target, ok := inherit.Native.(*passTarget)
		if !ok {
			return gpu.ResultUnknown
		}
		info.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
		info.PInheritanceInfo = []vk.CommandBufferInheritanceInfo{{
			SType:       vk.StructureTypeCommandBufferInheritanceInfo,
			RenderPass:  target.renderPass,
			Subpass:     inherit.Subpass,
			Framebuffer: target.framebuffer,
		}}
	}
	return result(vk.BeginCommandBuffer(c.handle, &info))
}

func (c *commandBuffer) End() gpu.Result {
	return result(vk.EndCommandBuffer(c.handle))
}

func (c *commandBuffer) Reset() gpu.Result {
	return result(vk.ResetCommandBuffer(c.handle, 0))
}

func (c *commandBuffer) BeginRenderPass(ctx gpu.RenderPassContext, clear gpu.ClearValues) {
	target, ok := ctx.Native.(*passTarget)
	if !ok || c.level != gpu.LevelPrimary {
		return
	}
	clearValues := []vk.ClearValue{
		vk.NewClearValue(clear.Color[:]),
		vk.NewClearDepthStencil(clear.Depth, clear.Stencil),
	}
	info := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  target.renderPass,
		Framebuffer: target.framebuffer,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: ctx.Extent.Width, Height: ctx.Extent.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(c.handle, &info, vk.SubpassContentsSecondaryCommandBuffers)
}

func (c *commandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.handle)
}

func (c *commandBuffer) BindPipeline(p gpu.Pipeline) {
	if vp, ok := p.(*pipeline); ok {
		vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, vp.handle)
	}
}

func (c *commandBuffer) BindDescriptorSets(p gpu.Pipeline, first uint32, sets ...gpu.DescriptorSet) {
	vp, ok := p.(*pipeline)
	if !ok || len(sets) == 0 {
		return
	}
	handles := make([]vk.DescriptorSet, 0, len(sets))
	for _, s := range sets {
		ds, ok := s.(vk.DescriptorSet)
		if !ok {
			return
		}
		handles = append(handles, ds)
	}
	vk.CmdBindDescriptorSets(c.handle, vk.PipelineBindPointGraphics, vp.layout, first, uint32(len(handles)), handles, 0, nil)
}

func (c *commandBuffer) BindVertexBuffers(first uint32, buffers ...gpu.Buffer) {
	handles := make([]vk.Buffer, 0, len(buffers))
	for _, b := range buffers {
		vb, ok := b.(*buffer)
		if !ok {
			return
		}
		handles = append(handles, vb.handle)
	}
	if len(handles) == 0 {
		return
	}
	offsets := make([]vk.DeviceSize, len(handles))
	vk.CmdBindVertexBuffers(c.handle, first, uint32(len(handles)), handles, offsets)
}

func (c *commandBuffer) BindIndexBuffer(buf gpu.Buffer, format gpu.IndexFormat) {
	if vb, ok := buf.(*buffer); ok {
		vk.CmdBindIndexBuffer(c.handle, vb.handle, 0, indexType(format))
	}
}

func (c *commandBuffer) SetViewport(vp gpu.Viewport) {
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{viewport(vp)})
}

func (c *commandBuffer) SetScissor(r gpu.Rect2D) {
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{rect(r)})
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(c.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *commandBuffer) PipelineBarrier(b gpu.Barrier) {
	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: accessMask(b.SrcAccess),
		DstAccessMask: accessMask(b.DstAccess),
	}
	vk.CmdPipelineBarrier(c.handle, pipelineStages(b.SrcStage), pipelineStages(b.DstStage), 0,
		1, []vk.MemoryBarrier{barrier}, 0, nil, 0, nil)
}

func (c *commandBuffer) ExecuteCommands(fragments ...gpu.CommandBuffer) {
	if c.level != gpu.LevelPrimary {
		return
	}
	handles := make([]vk.CommandBuffer, 0, len(fragments))
	for _, f := range fragments {
		if vf, ok := f.(*commandBuffer); ok && vf.level == gpu.LevelFragment {
			handles = append(handles, vf.handle)
		}
	}
	if len(handles) == 0 {
		return
	}
	vk.CmdExecuteCommands(c.handle, uint32(len(handles)), handles)
}

func (c *commandBuffer) Destroy() {
	vk.FreeCommandBuffers(c.device, c.pool, 1, []vk.CommandBuffer{c.handle})
	vk.DestroyCommandPool(c.device, c.pool, nil)
}
