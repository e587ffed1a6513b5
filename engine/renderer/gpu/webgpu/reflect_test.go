package webgpu

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

const reflectSource = `
struct Camera { view_proj: mat4x4<f32> };
// @group(3) @binding(0) var<uniform> commented: Camera;
@group(0) @binding(0) var<uniform> camera: Camera;
/* @group(3) @binding(1) var<uniform> /* nested */ hidden: Camera; */
@group(1) @binding(1) var<storage, read> instances: array<mat4x4<f32>>;
@group(1) @binding(0) var<storage, read_write> counters: array<u32>;
@group(2) @binding(0) var albedo: texture_2d<f32>;
@group(2) @binding(1) var albedo_sampler: sampler;
`

// ============================================================================
// Reflection
// ============================================================================

func TestReflectBindGroups(t *testing.T) {
	groups := ReflectBindGroups(reflectSource, wgpu.ShaderStageVertex)

	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d, want 3", len(groups))
	}
	if _, ok := groups[3]; ok {
		t.Error("commented declarations must be ignored")
	}

	camera := groups[0].Entries
	if len(camera) != 1 || camera[0].Buffer.Type != wgpu.BufferBindingTypeUniform {
		t.Errorf("group 0 = %+v, want one uniform buffer", camera)
	}
	if camera[0].Visibility != wgpu.ShaderStageVertex {
		t.Errorf("visibility = %v, want vertex", camera[0].Visibility)
	}

	storage := groups[1].Entries
	if len(storage) != 2 {
		t.Fatalf("group 1 has %d entries, want 2", len(storage))
	}
	if storage[0].Binding != 0 || storage[0].Buffer.Type != wgpu.BufferBindingTypeStorage {
		t.Errorf("group 1 binding 0 = %+v, want read_write storage", storage[0])
	}
	if storage[1].Binding != 1 || storage[1].Buffer.Type != wgpu.BufferBindingTypeReadOnlyStorage {
		t.Errorf("group 1 binding 1 = %+v, want read-only storage", storage[1])
	}

	material := groups[2].Entries
	if material[0].Texture.SampleType != wgpu.TextureSampleTypeFloat {
		t.Errorf("texture sample type = %v, want float", material[0].Texture.SampleType)
	}
	if material[1].Sampler.Type != wgpu.SamplerBindingTypeFiltering {
		t.Errorf("sampler type = %v, want filtering", material[1].Sampler.Type)
	}
}

func TestReflectRecipes_SkipsSPIRV(t *testing.T) {
	wgsl := gpu.PipelineRecipe{
		Format:   gpu.ShaderWGSL,
		Vertex:   gpu.ShaderStage{Code: []byte(reflectSource)},
		Fragment: gpu.ShaderStage{Code: []byte("@group(0) @binding(0) var<uniform> camera: Camera;")},
	}
	spirv := gpu.PipelineRecipe{
		Format: gpu.ShaderSPIRV,
		Vertex: gpu.ShaderStage{Code: []byte("@group(7) @binding(0) var<uniform> x: X;")},
	}

	vertex, fragment := ReflectRecipes(wgsl, spirv)
	if _, ok := vertex[7]; ok {
		t.Error("SPIR-V recipe was reflected")
	}
	if len(vertex) != 3 || len(fragment) != 1 {
		t.Errorf("got %d vertex and %d fragment groups, want 3 and 1", len(vertex), len(fragment))
	}

	merged := mergeBindGroupLayouts(vertex, fragment)
	want := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	if got := merged[0].Entries[0].Visibility; got != want {
		t.Errorf("merged camera visibility = %v, want %v", got, want)
	}
}

func TestAbsorb_FirstDeclarationWins(t *testing.T) {
	dst := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 1, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}}}},
	}
	src := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 1, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 0, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
		}},
	}
	absorb(dst, src)

	entries := dst[0].Entries
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Binding != 0 || entries[1].Binding != 1 {
		t.Errorf("bindings = %d,%d, want sorted 0,1", entries[0].Binding, entries[1].Binding)
	}
	if entries[1].Buffer.Type != wgpu.BufferBindingTypeUniform {
		t.Errorf("binding 1 type = %v, want the original uniform", entries[1].Buffer.Type)
	}
}

func TestStripComments(t *testing.T) {
	got := stripComments("a // line\nb /* block /* nested */ still */ c")
	if strings.Contains(got, "line") || strings.Contains(got, "block") || strings.Contains(got, "still") {
		t.Errorf("stripComments left comment text: %q", got)
	}
	if !strings.Contains(got, "a") || !strings.Contains(got, "b") || !strings.Contains(got, "c") {
		t.Errorf("stripComments dropped code: %q", got)
	}
}
