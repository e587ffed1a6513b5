package pipeline

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

// PipelineBuilderOption is a functional option used to configure a recipe during construction.
type PipelineBuilderOption func(*gpu.PipelineRecipe)

// WithShaderFormat sets the encoding of both shader stages.
//
// Parameters:
//   - format: gpu.ShaderSPIRV or gpu.ShaderWGSL
//
// Returns:
//   - PipelineBuilderOption: a function that sets the shader format for this recipe
func WithShaderFormat(format gpu.ShaderFormat) PipelineBuilderOption {
	return func(r *gpu.PipelineRecipe) {
		r.Format = format
	}
}

// WithVertexShader sets the vertex stage for this recipe.
//
// Parameters:
//   - code: the compiled stage, SPIR-V bytes or WGSL source
//   - entry: the entry point name
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex stage for this recipe
func WithVertexShader(code []byte, entry string) PipelineBuilderOption {
	return func(r *gpu.PipelineRecipe) {
		r.Vertex = gpu.ShaderStage{Code: code, Entry: entry}
	}
}

// WithFragmentShader sets the fragment stage for this recipe.
//
// Parameters:
//   - code: the compiled stage, SPIR-V bytes or WGSL source
//   - entry: the entry point name
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment stage for this recipe
func WithFragmentShader(code []byte, entry string) PipelineBuilderOption {
	return func(r *gpu.PipelineRecipe) {
		r.Fragment = gpu.ShaderStage{Code: code, Entry: entry}
	}
}

// WithDepthTestEnabled sets whether depth testing is enabled for this recipe.
//
// Parameters:
//   - enabled: a boolean indicating whether depth testing should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth test enabled state for this recipe
func WithDepthTestEnabled(enabled bool) PipelineBuilderOption {
	return func(r *gpu.PipelineRecipe) {
		r.DepthTest = enabled
	}
}

// WithDepthWriteEnabled sets whether depth writing is enabled for this recipe.
//
// Parameters:
//   - enabled: a boolean indicating whether depth writing should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth write enabled state for this recipe
func WithDepthWriteEnabled(enabled bool) PipelineBuilderOption {
	return func(r *gpu.PipelineRecipe) {
		r.DepthWrite = enabled
	}
}

// WithDepthBias sets the depth bias parameters for this recipe.
//
// Parameters:
//   - bias: the constant depth bias to apply
//   - slopeScale: the slope scale depth bias to apply
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth bias parameters for this recipe
func WithDepthBias(bias int32, slopeScale float32) PipelineBuilderOption {
	return func(r *gpu.PipelineRecipe) {
		r.DepthBias = bias
		r.DepthBiasSlopeScale = slopeScale
	}
}

// WithBlendEnabled sets whether alpha blending is enabled for this recipe.
//
// Parameters:
//   - enabled: a boolean indicating whether blending should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend enabled state for this recipe
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(r *gpu.PipelineRecipe) {
		r.Blend = enabled
	}
}

// WithCullMode sets the cull mode for this recipe.
//
// Parameters:
//   - mode: the cull mode (gpu.CullNone, gpu.CullFront, gpu.CullBack)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cull mode for this recipe
func WithCullMode(mode gpu.CullMode) PipelineBuilderOption {
	return func(r *gpu.PipelineRecipe) {
		r.CullMode = mode
	}
}

// WithTopology sets the primitive topology for this recipe.
//
// Parameters:
//   - topology: the primitive topology (e.g., gpu.TopologyTriangleList, gpu.TopologyLineList)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the primitive topology for this recipe
func WithTopology(topology gpu.Topology) PipelineBuilderOption {
	return func(r *gpu.PipelineRecipe) {
		r.Topology = topology
	}
}

// WithFrontFace sets the front face winding order for this recipe.
//
// Parameters:
//   - frontFace: the front face (gpu.FrontFaceCCW, gpu.FrontFaceCW)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the front face for this recipe
func WithFrontFace(frontFace gpu.FrontFace) PipelineBuilderOption {
	return func(r *gpu.PipelineRecipe) {
		r.FrontFace = frontFace
	}
}

// WithVertexLayout appends a vertex buffer layout. Layouts bind to consecutive slots in the order they are added.
//
// Parameters:
//   - layout: the vertex buffer layout
//
// Returns:
//   - PipelineBuilderOption: a function that appends the layout to this recipe
func WithVertexLayout(layout gpu.VertexLayout) PipelineBuilderOption {
	return func(r *gpu.PipelineRecipe) {
		r.VertexLayouts = append(r.VertexLayouts, layout)
	}
}
