// Package recorder wraps a gpu.CommandBuffer with the state tracking a draw
// loop needs: redundant pipeline binds are dropped and every draw is counted.
package recorder

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

type recorder struct {
	buffer gpu.CommandBuffer
	flipY  bool

	bound  gpu.Pipeline
	mesh   gpu.Mesh
	extent gpu.Extent2D

	local Stats
}

// Recorder records draws into a single command buffer. A Recorder is owned by
// one goroutine at a time and is not safe for concurrent use.
type Recorder interface {
	// Buffer returns the wrapped command buffer.
	Buffer() gpu.CommandBuffer

	// Begin starts recording. Fragment buffers pass the render pass context they
	// record into; the dynamic viewport and scissor are then set to cover its extent.
	//
	// Parameters:
	//   - ctx: the inherited render pass, nil for primary buffers
	//
	// Returns:
	//   - gpu.Result: the result of beginning the underlying buffer
	Begin(ctx *gpu.RenderPassContext) gpu.Result

	// End finishes recording.
	//
	// Returns:
	//   - gpu.Result: the result of ending the underlying buffer
	End() gpu.Result

	// BindPipeline binds p unless it is already the bound pipeline.
	//
	// Parameters:
	//   - p: the pipeline to bind
	BindPipeline(p gpu.Pipeline)

	// BindDescriptorSets binds sets starting at first against p's layout.
	BindDescriptorSets(p gpu.Pipeline, first uint32, sets ...gpu.DescriptorSet)

	// BindMesh binds the vertex buffer and, for indexed meshes, the index buffer.
	// Binding the mesh that is already bound is a no-op.
	BindMesh(mesh gpu.Mesh)

	// Draw issues a non-indexed draw.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// DrawIndexed issues an indexed draw.
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)

	// DrawMesh binds mesh and draws it, indexed when the mesh has indices.
	//
	// Parameters:
	//   - mesh: the geometry to draw
	//   - instances: the instance count
	//   - firstInstance: the first instance index, used to address per-item data
	DrawMesh(mesh gpu.Mesh, instances, firstInstance uint32)

	// Barrier inserts a memory barrier.
	Barrier(b gpu.Barrier)

	// SetViewport sets a viewport and scissor covering extent.
	//
	// Parameters:
	//   - extent: the area to cover
	SetViewport(extent gpu.Extent2D)

	// Extent returns the extent the recorder last covered with SetViewport.
	Extent() gpu.Extent2D

	// Stats returns the draws recorded since the last Begin.
	Stats() Stats
}

var _ Recorder = &recorder{}

// New creates a Recorder for buffer.
//
// Parameters:
//   - buffer: the command buffer to record into
//   - options: variadic list of RecorderBuilderOption functions
//
// Returns:
//   - Recorder: the new recorder
func New(buffer gpu.CommandBuffer, options ...RecorderBuilderOption) Recorder {
	r := &recorder{buffer: buffer}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *recorder) Buffer() gpu.CommandBuffer {
	return r.buffer
}

func (r *recorder) Begin(ctx *gpu.RenderPassContext) gpu.Result {
	r.bound = nil
	r.mesh = gpu.Mesh{}
	r.local = Stats{}

	res := r.buffer.Begin(ctx)
	if res != gpu.ResultSuccess {
		return res
	}
	if ctx != nil && r.buffer.Level() == gpu.LevelFragment {
		r.SetViewport(ctx.Extent)
	}
	return res
}

func (r *recorder) End() gpu.Result {
	return r.buffer.End()
}

func (r *recorder) BindPipeline(p gpu.Pipeline) {
	if p == nil || p == r.bound {
		return
	}
	r.buffer.BindPipeline(p)
	r.bound = p
}

func (r *recorder) BindDescriptorSets(p gpu.Pipeline, first uint32, sets ...gpu.DescriptorSet) {
	if len(sets) == 0 {
		return
	}
	r.buffer.BindDescriptorSets(p, first, sets...)
}

func (r *recorder) BindMesh(mesh gpu.Mesh) {
	if mesh.Vertex != nil && mesh.Vertex == r.mesh.Vertex && mesh.Index == r.mesh.Index {
		return
	}
	if mesh.Vertex != nil {
		r.buffer.BindVertexBuffers(0, mesh.Vertex)
	}
	if mesh.Indexed() {
		r.buffer.BindIndexBuffer(mesh.Index, mesh.IndexFormat)
	}
	r.mesh = mesh
}

func (r *recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.buffer.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	r.count(vertexCount)
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	r.buffer.DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	r.count(indexCount)
}

func (r *recorder) DrawMesh(mesh gpu.Mesh, instances, firstInstance uint32) {
	if instances == 0 {
		return
	}
	r.BindMesh(mesh)
	if mesh.Indexed() {
		r.buffer.DrawIndexed(mesh.IndexCount, instances, 0, 0, firstInstance)
	} else {
		r.buffer.Draw(mesh.VertexCount, instances, 0, firstInstance)
	}
	r.count(mesh.VertexCount)
}

func (r *recorder) Barrier(b gpu.Barrier) {
	r.buffer.PipelineBarrier(b)
}

func (r *recorder) SetViewport(extent gpu.Extent2D) {
	r.buffer.SetViewport(gpu.FullViewport(extent, r.flipY))
	r.buffer.SetScissor(gpu.FullScissor(extent))
	r.extent = extent
}

func (r *recorder) Extent() gpu.Extent2D {
	return r.extent
}

func (r *recorder) Stats() Stats {
	return r.local
}

func (r *recorder) count(vertices uint32) {
	r.local.DrawCalls++
	r.local.Vertices += uint64(vertices)
	global.Add(1, uint64(vertices))
}
