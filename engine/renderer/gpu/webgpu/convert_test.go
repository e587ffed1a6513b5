package webgpu

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// ============================================================================
// Mapping
// ============================================================================

func TestPresentMode(t *testing.T) {
	tests := []struct {
		in   gpu.PresentMode
		want wgpu.PresentMode
	}{
		{gpu.PresentModeVSync, wgpu.PresentModeFifo},
		{gpu.PresentModeUncapped, wgpu.PresentModeImmediate},
		{gpu.PresentModeMailbox, wgpu.PresentModeMailbox},
	}
	for _, tt := range tests {
		if got := presentMode(tt.in); got != tt.want {
			t.Errorf("presentMode(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSupportedPresentMode_FallsBackToFifo(t *testing.T) {
	available := []wgpu.PresentMode{wgpu.PresentModeFifo, wgpu.PresentModeImmediate}
	if got := supportedPresentMode(wgpu.PresentModeMailbox, available); got != wgpu.PresentModeFifo {
		t.Errorf("supportedPresentMode(mailbox) = %v, want fifo", got)
	}
	if got := supportedPresentMode(wgpu.PresentModeImmediate, available); got != wgpu.PresentModeImmediate {
		t.Errorf("supportedPresentMode(immediate) = %v, want immediate", got)
	}
}

func TestBufferUsage(t *testing.T) {
	got := bufferUsage(gpu.BufferUniform | gpu.BufferVertex)
	want := wgpu.BufferUsageCopyDst | wgpu.BufferUsageUniform | wgpu.BufferUsageVertex
	if got != want {
		t.Errorf("bufferUsage = %v, want %v", got, want)
	}
	if got := bufferUsage(0); got != wgpu.BufferUsageCopyDst {
		t.Errorf("bufferUsage(0) = %v, want CopyDst", got)
	}
}

func TestVertexLayouts(t *testing.T) {
	layouts := vertexLayouts([]gpu.VertexLayout{
		{
			Stride: 28,
			Attributes: []gpu.VertexAttribute{
				{Location: 0, Format: gpu.VertexFloat32x3, Offset: 0},
				{Location: 1, Format: gpu.VertexFloat32x4, Offset: 12},
			},
		},
		{Stride: 64, Instanced: true},
	})
	if len(layouts) != 2 {
		t.Fatalf("len(layouts) = %d, want 2", len(layouts))
	}
	if layouts[0].ArrayStride != 28 || layouts[0].StepMode != wgpu.VertexStepModeVertex {
		t.Errorf("layouts[0] = %+v, want stride 28 per-vertex", layouts[0])
	}
	if layouts[0].Attributes[1].Format != wgpu.VertexFormatFloat32x4 || layouts[0].Attributes[1].Offset != 12 {
		t.Errorf("layouts[0].Attributes[1] = %+v", layouts[0].Attributes[1])
	}
	if layouts[1].StepMode != wgpu.VertexStepModeInstance {
		t.Errorf("layouts[1].StepMode = %v, want instance", layouts[1].StepMode)
	}
}

func TestDepthStencil(t *testing.T) {
	opaque := depthStencil(gpu.PipelineRecipe{DepthTest: true, DepthWrite: true})
	if opaque.DepthCompare != wgpu.CompareFunctionLess || !opaque.DepthWriteEnabled {
		t.Errorf("opaque depth = %+v, want less with writes", opaque)
	}
	overlay := depthStencil(gpu.PipelineRecipe{})
	if overlay.DepthCompare != wgpu.CompareFunctionAlways || overlay.DepthWriteEnabled {
		t.Errorf("overlay depth = %+v, want always without writes", overlay)
	}
}

func TestColorTarget_Blend(t *testing.T) {
	if colorTarget(wgpu.TextureFormatBGRA8Unorm, false).Blend != nil {
		t.Error("opaque target should not blend")
	}
	if colorTarget(wgpu.TextureFormatBGRA8Unorm, true).Blend == nil {
		t.Error("blended target has no blend state")
	}
}

// ============================================================================
// Bind group layout merging
// ============================================================================

func TestMergeBindGroupLayouts(t *testing.T) {
	vertex := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Label: "globals", Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 1, Visibility: wgpu.ShaderStageVertex},
			{Binding: 0, Visibility: wgpu.ShaderStageVertex},
		}},
		1: {Label: "instances", Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageVertex},
		}},
	}
	fragment := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Label: "globals", Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 1, Visibility: wgpu.ShaderStageFragment},
			{Binding: 2, Visibility: wgpu.ShaderStageFragment},
		}},
		2: {Label: "material"},
	}

	merged := mergeBindGroupLayouts(vertex, fragment)
	if len(merged) != 3 {
		t.Fatalf("len(merged) = %d, want 3", len(merged))
	}

	globals := merged[0].Entries
	if len(globals) != 3 {
		t.Fatalf("group 0 entries = %d, want 3", len(globals))
	}
	for i, e := range globals {
		if e.Binding != uint32(i) {
			t.Errorf("group 0 entry %d binding = %d, want %d", i, e.Binding, i)
		}
	}
	if want := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment; globals[1].Visibility != want {
		t.Errorf("shared binding visibility = %v, want %v", globals[1].Visibility, want)
	}
	if merged[1].Label != "instances" || merged[2].Label != "material" {
		t.Errorf("single-stage groups not carried over: %q %q", merged[1].Label, merged[2].Label)
	}
}

func TestMergeBindGroupLayouts_Empty(t *testing.T) {
	if got := mergeBindGroupLayouts(nil, nil); len(got) != 0 {
		t.Errorf("mergeBindGroupLayouts(nil, nil) = %v, want empty", got)
	}
}

// ============================================================================
// Recording
// ============================================================================

func TestCommandBuffer_ExecuteCommandsMergesInOrder(t *testing.T) {
	ctx := gpu.RenderPassContext{Extent: gpu.Extent2D{Width: 64, Height: 64}}

	fragments := []*commandBuffer{{level: gpu.LevelFragment}, {level: gpu.LevelFragment}}
	for i, f := range fragments {
		if r := f.Begin(&ctx); r != gpu.ResultSuccess {
			t.Fatalf("fragment %d Begin = %v", i, r)
		}
		for range i + 1 {
			f.Draw(3, 1, 0, 0)
		}
		f.End()
	}

	primary := &commandBuffer{level: gpu.LevelPrimary}
	primary.Begin(nil)
	primary.BeginRenderPass(ctx, gpu.DefaultClear)
	primary.ExecuteCommands(fragments[0], fragments[1])
	primary.EndRenderPass()
	if r := primary.End(); r != gpu.ResultSuccess {
		t.Fatalf("primary End = %v", r)
	}

	if len(primary.ops) != 3 {
		t.Errorf("merged ops = %d, want 3", len(primary.ops))
	}
	if primary.target == nil || primary.target.Extent != ctx.Extent {
		t.Errorf("primary target = %+v, want extent %v", primary.target, ctx.Extent)
	}
}

func TestCommandBuffer_FragmentNeedsInheritance(t *testing.T) {
	f := &commandBuffer{level: gpu.LevelFragment}
	if r := f.Begin(nil); r != gpu.ResultUnknown {
		t.Errorf("Begin(nil) on fragment = %v, want unknown", r)
	}
}

func TestCommandBuffer_OpenFragmentNotMerged(t *testing.T) {
	ctx := gpu.RenderPassContext{}
	f := &commandBuffer{level: gpu.LevelFragment}
	f.Begin(&ctx)
	f.Draw(3, 1, 0, 0)

	primary := &commandBuffer{level: gpu.LevelPrimary}
	primary.Begin(nil)
	primary.BeginRenderPass(ctx, gpu.DefaultClear)
	primary.ExecuteCommands(f)
	if len(primary.ops) != 0 {
		t.Errorf("merged ops = %d, want 0 for a fragment still recording", len(primary.ops))
	}
}

func TestCommandBuffer_ResetClearsOps(t *testing.T) {
	ctx := gpu.RenderPassContext{}
	f := &commandBuffer{level: gpu.LevelFragment}
	f.Begin(&ctx)
	f.Draw(3, 1, 0, 0)
	f.PipelineBarrier(gpu.Barrier{})
	f.End()
	f.Reset()
	if len(f.ops) != 0 || f.barriers != 0 {
		t.Errorf("after Reset ops = %d barriers = %d, want 0 and 0", len(f.ops), f.barriers)
	}
}

// ============================================================================
// Sync objects
// ============================================================================

func TestFence_SignaledWaitsWithoutDevice(t *testing.T) {
	b := &backend{}
	f, _ := b.CreateFence(true)
	if r := f.Wait(); r != gpu.ResultSuccess {
		t.Errorf("Wait on signaled fence = %v, want success", r)
	}
	f.Reset()
	if r := f.Wait(); r != gpu.ResultTimeout {
		t.Errorf("Wait on reset fence = %v, want timeout", r)
	}
}

func TestBuffer_WriteBounds(t *testing.T) {
	buf := &buffer{size: 16}
	tests := []struct {
		name   string
		offset uint64
		data   []byte
		want   gpu.Result
	}{
		{"past end", 12, make([]byte, 8), gpu.ResultUnknown},
		{"unaligned offset", 2, make([]byte, 4), gpu.ResultUnknown},
		{"empty", 16, nil, gpu.ResultSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buf.Write(tt.offset, tt.data); got != tt.want {
				t.Errorf("Write(%d, %d bytes) = %v, want %v", tt.offset, len(tt.data), got, tt.want)
			}
		})
	}
}
