// Package debugdraw collects debug lines from any goroutine during a frame and
// draws them with a single line-list draw.
package debugdraw

import (
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/recorder"
)

// VertexStride is the byte size of one line vertex: position vec3 + colour vec4.
const VertexStride = 28

const floatsPerVertex = VertexStride / 4

// PipelineName is the cache key the default debug pipeline is registered under.
const PipelineName = "debug_lines"

// ShaderSource is the WGSL for the default debug pipeline. Group 0 binding 0 is
// the camera uniform.
const ShaderSource = `struct Camera {
    view_proj: mat4x4<f32>,
    position: vec3<f32>,
};
@group(0) @binding(0) var<uniform> camera: Camera;

struct VertexOut {
    @builtin(position) clip: vec4<f32>,
    @location(0) color: vec4<f32>,
};

@vertex
fn vs_main(@location(0) pos: vec3<f32>, @location(1) color: vec4<f32>) -> VertexOut {
    var out: VertexOut;
    out.clip = camera.view_proj * vec4<f32>(pos, 1.0);
    out.color = color;
    return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    return in.color;
}
`

// Recipe returns the overlay line-list recipe matching the Batch vertex layout.
// Without options it uses ShaderSource as WGSL.
//
// Parameters:
//   - opts: overrides, e.g. SPIR-V shaders for the Vulkan backend
//
// Returns:
//   - gpu.PipelineRecipe: the recipe
func Recipe(opts ...pipeline.PipelineBuilderOption) gpu.PipelineRecipe {
	base := []pipeline.PipelineBuilderOption{
		pipeline.WithShaderFormat(gpu.ShaderWGSL),
		pipeline.WithVertexShader([]byte(ShaderSource), "vs_main"),
		pipeline.WithFragmentShader([]byte(ShaderSource), "fs_main"),
		pipeline.WithTopology(gpu.TopologyLineList),
		pipeline.WithVertexLayout(gpu.VertexLayout{
			Stride: VertexStride,
			Attributes: []gpu.VertexAttribute{
				{Location: 0, Format: gpu.VertexFloat32x3, Offset: 0},
				{Location: 1, Format: gpu.VertexFloat32x4, Offset: 12},
			},
		}),
	}
	return pipeline.NewRecipe(PipelineName, gpu.PipelineOverlay, append(base, opts...)...)
}

type batch struct {
	mu      *sync.Mutex
	backend gpu.Backend

	vertices []float32
	buffers  []gpu.Buffer
}

// Batch accumulates lines for one frame. Line and its helpers are safe for
// concurrent use; Flush must be called by the goroutine recording the draw.
type Batch interface {
	// Line adds a segment from a to b.
	Line(a, b [3]float32, color [4]float32)

	// Box adds the twelve edges of the axis-aligned box min..max.
	Box(min, max [3]float32, color [4]float32)

	// Axes adds red, green and blue segments of length size along X, Y and Z from origin.
	Axes(origin [3]float32, size float32)

	// Circle adds a circle of radius r around center in the XZ plane.
	Circle(center [3]float32, r float32, segments int, color [4]float32)

	// Lines returns the number of pending lines.
	Lines() int

	// Clear drops every pending line.
	Clear()

	// Flush uploads the pending lines into slot's vertex buffer and records one
	// draw with p. Pending lines are cleared. Nothing is recorded when there are
	// no lines.
	//
	// Parameters:
	//   - rec: the recorder to draw with
	//   - slot: the frame slot, selects which vertex buffer is written
	//   - p: the line pipeline
	//   - sets: descriptor sets bound from index 0, normally the camera
	//
	// Returns:
	//   - recorder.Stats: what was drawn
	//   - error: an error if the vertex buffer could not be created or written
	Flush(rec recorder.Recorder, slot int, p gpu.Pipeline, sets ...gpu.DescriptorSet) (recorder.Stats, error)

	// Destroy releases the vertex buffers.
	Destroy()
}

var _ Batch = &batch{}

// NewBatch creates an empty batch with one vertex buffer per frame slot.
//
// Parameters:
//   - backend: the device vertex buffers are created on
//   - slots: the number of frames in flight
//
// Returns:
//   - Batch: the batch
func NewBatch(backend gpu.Backend, slots int) Batch {
	if slots < 1 {
		panic(fmt.Sprintf("debugdraw: %d slots", slots))
	}
	return &batch{
		mu:      &sync.Mutex{},
		backend: backend,
		buffers: make([]gpu.Buffer, slots),
	}
}

func (b *batch) Line(p0, p1 [3]float32, color [4]float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vertices = append(b.vertices,
		p0[0], p0[1], p0[2], color[0], color[1], color[2], color[3],
		p1[0], p1[1], p1[2], color[0], color[1], color[2], color[3])
}

func (b *batch) Box(min, max [3]float32, color [4]float32) {
	var c [8][3]float32
	for i := range c {
		c[i] = [3]float32{min[0], min[1], min[2]}
		if i&1 != 0 {
			c[i][0] = max[0]
		}
		if i&2 != 0 {
			c[i][1] = max[1]
		}
		if i&4 != 0 {
			c[i][2] = max[2]
		}
	}
	edges := [12][2]int{
		{0, 1}, {2, 3}, {4, 5}, {6, 7},
		{0, 2}, {1, 3}, {4, 6}, {5, 7},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
	for _, e := range edges {
		b.Line(c[e[0]], c[e[1]], color)
	}
}

func (b *batch) Axes(origin [3]float32, size float32) {
	b.Line(origin, [3]float32{origin[0] + size, origin[1], origin[2]}, [4]float32{1, 0, 0, 1})
	b.Line(origin, [3]float32{origin[0], origin[1] + size, origin[2]}, [4]float32{0, 1, 0, 1})
	b.Line(origin, [3]float32{origin[0], origin[1], origin[2] + size}, [4]float32{0, 0, 1, 1})
}

func (b *batch) Circle(center [3]float32, r float32, segments int, color [4]float32) {
	if segments < 3 {
		segments = 3
	}
	point := func(i int) [3]float32 {
		a := 2 * math.Pi * float64(i) / float64(segments)
		return [3]float32{center[0] + r*float32(math.Cos(a)), center[1], center[2] + r*float32(math.Sin(a))}
	}
	for i := 0; i < segments; i++ {
		b.Line(point(i), point(i+1), color)
	}
}

func (b *batch) Lines() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.vertices) / (2 * floatsPerVertex)
}

func (b *batch) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vertices = b.vertices[:0]
}

func (b *batch) Flush(rec recorder.Recorder, slot int, p gpu.Pipeline, sets ...gpu.DescriptorSet) (recorder.Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.vertices) == 0 {
		return recorder.Stats{}, nil
	}
	data := common.SliceToBytes(b.vertices)
	count := uint32(len(b.vertices) / floatsPerVertex)
	b.vertices = b.vertices[:0]

	buf := b.buffers[slot]
	if buf == nil || buf.Size() < uint64(len(data)) {
		if buf != nil {
			buf.Destroy()
		}
		var err error
		buf, err = b.backend.CreateBuffer(common.NextPow2(uint64(len(data))), gpu.BufferVertex|gpu.BufferCopyDst)
		if err != nil {
			b.buffers[slot] = nil
			return recorder.Stats{}, fmt.Errorf("debug line buffer: %w", err)
		}
		b.buffers[slot] = buf
	}
	if err := buf.Write(0, data).Err("write debug lines"); err != nil {
		return recorder.Stats{}, err
	}

	before := rec.Stats()
	rec.BindPipeline(p)
	rec.BindDescriptorSets(p, 0, sets...)
	rec.DrawMesh(gpu.Mesh{Vertex: buf, VertexCount: count}, 1, 0)
	after := rec.Stats()
	return recorder.Stats{DrawCalls: after.DrawCalls - before.DrawCalls, Vertices: after.Vertices - before.Vertices}, nil
}

func (b *batch) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, buf := range b.buffers {
		if buf != nil {
			buf.Destroy()
			b.buffers[i] = nil
		}
	}
}
