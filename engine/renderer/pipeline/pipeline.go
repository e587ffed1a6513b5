// Package pipeline builds pipeline recipes and keeps the cache of pipelines
// built from them.
package pipeline

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

// NewRecipe is the entry point to describe a pipeline. The kind selects the
// defaults: opaque pipelines depth test and write, transparent pipelines depth
// test and blend, overlay pipelines blend and ignore depth.
//
// Parameters:
//   - name: the unique key for this pipeline
//   - kind: the pipeline family
//   - opts: a variadic list of PipelineBuilderOption functions to configure the recipe
//
// Returns:
//   - gpu.PipelineRecipe: the recipe, ready to be registered with a Cache
func NewRecipe(name string, kind gpu.PipelineKind, opts ...PipelineBuilderOption) gpu.PipelineRecipe {
	r := &gpu.PipelineRecipe{
		Name:      name,
		Kind:      kind,
		Format:    gpu.ShaderSPIRV,
		Topology:  gpu.TopologyTriangleList,
		CullMode:  gpu.CullNone,
		FrontFace: gpu.FrontFaceCCW,
	}

	switch kind {
	case gpu.PipelineOpaque:
		r.DepthTest = true
		r.DepthWrite = true
	case gpu.PipelineTransparent:
		r.DepthTest = true
		r.Blend = true
	case gpu.PipelineOverlay:
		r.Blend = true
	}

	for _, opt := range opts {
		opt(r)
	}
	return *r
}
