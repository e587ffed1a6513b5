package webgpu

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// BackendBuilderOption is a functional option applied to a WebGPU backend during construction.
type BackendBuilderOption func(*backend)

// WithSampleCount sets the MSAA sample count. 1 disables multisampling.
//
// Parameters:
//   - count: 1 or 4
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithSampleCount(count uint32) BackendBuilderOption {
	return func(b *backend) {
		if count == 1 || count == 4 {
			b.sampleCount = count
		}
	}
}

// WithFallbackAdapter forces the software adapter.
func WithFallbackAdapter(force bool) BackendBuilderOption {
	return func(b *backend) {
		b.fallback = force
	}
}

// WithMaxBindGroups raises the device's bind group limit.
func WithMaxBindGroups(n uint32) BackendBuilderOption {
	return func(b *backend) {
		if n > 0 {
			b.maxBindGroups = n
		}
	}
}

// WithPresentMode sets the initial present mode.
func WithPresentMode(mode gpu.PresentMode) BackendBuilderOption {
	return func(b *backend) {
		b.presentMode = mode
	}
}

// WithBindGroupLayouts declares the bind group layouts of the vertex and
// fragment stages. They are merged into one pipeline layout shared by every
// pipeline, which is what lets a bind group built with BindBuffers be used
// with any of them.
//
// Parameters:
//   - vertex: layouts keyed by group index as declared by the vertex stage
//   - fragment: layouts keyed by group index as declared by the fragment stage
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithBindGroupLayouts(vertex, fragment map[int]wgpu.BindGroupLayoutDescriptor) BackendBuilderOption {
	return func(b *backend) {
		b.vertexGroups = vertex
		b.fragmentGroups = fragment
	}
}

// WithRecipeLayouts builds the shared pipeline layout from the resource
// declarations of the given WGSL recipes.
//
// Parameters:
//   - recipes: every WGSL recipe the backend will build
//
// Returns:
//   - BackendBuilderOption: the option
func WithRecipeLayouts(recipes ...gpu.PipelineRecipe) BackendBuilderOption {
	vertex, fragment := ReflectRecipes(recipes...)
	return WithBindGroupLayouts(vertex, fragment)
}
