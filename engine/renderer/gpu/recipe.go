package gpu

import (
	"errors"
	"fmt"
)

// PipelineKind tags the family a recipe belongs to. Backends build every kind
// with the same generic path; the kind only selects defaults and validation.
type PipelineKind int

const (
	// PipelineOpaque is a depth-tested, depth-written mesh pipeline.
	PipelineOpaque PipelineKind = iota
	// PipelineTransparent is depth-tested, alpha blended and does not write depth.
	PipelineTransparent
	// PipelineOverlay draws on top of the scene (debug lines, UI) without depth.
	PipelineOverlay
)

func (k PipelineKind) String() string {
	switch k {
	case PipelineOpaque:
		return "opaque"
	case PipelineTransparent:
		return "transparent"
	case PipelineOverlay:
		return "overlay"
	default:
		return fmt.Sprintf("PipelineKind(%d)", int(k))
	}
}

// ShaderFormat identifies the encoding of pre-compiled shader code.
type ShaderFormat int

const (
	ShaderSPIRV ShaderFormat = iota
	ShaderWGSL
)

// ShaderStage is one compiled shader stage. Code is SPIR-V words as bytes or
// WGSL source as UTF-8, depending on the recipe's Format.
type ShaderStage struct {
	Code  []byte
	Entry string
}

// Topology is the primitive assembly mode.
type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

// CullMode selects which faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// FrontFace selects the winding treated as front facing.
type FrontFace int

const (
	FrontFaceCCW FrontFace = iota
	FrontFaceCW
)

// VertexFormat is the type of a single vertex attribute.
type VertexFormat int

const (
	VertexFloat32x2 VertexFormat = iota
	VertexFloat32x3
	VertexFloat32x4
	VertexUint32
)

// VertexAttribute places one attribute inside a vertex buffer layout.
type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint32
}

// VertexLayout describes one bound vertex buffer.
type VertexLayout struct {
	Stride     uint32
	Instanced  bool
	Attributes []VertexAttribute
}

// PipelineRecipe is the plain-data description of a graphics pipeline. Recipes
// are what the pipeline cache keeps so pipelines can be rebuilt at any time.
type PipelineRecipe struct {
	Name   string
	Kind   PipelineKind
	Format ShaderFormat

	Vertex   ShaderStage
	Fragment ShaderStage

	Topology  Topology
	CullMode  CullMode
	FrontFace FrontFace

	DepthTest           bool
	DepthWrite          bool
	DepthBias           int32
	DepthBiasSlopeScale float32
	Blend               bool

	VertexLayouts []VertexLayout
}

// ErrInvalidRecipe is wrapped by every recipe validation failure.
var ErrInvalidRecipe = errors.New("gpu: invalid pipeline recipe")

// Validate checks the fields every backend relies on.
func (r PipelineRecipe) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRecipe)
	}
	if len(r.Vertex.Code) == 0 || len(r.Fragment.Code) == 0 {
		return fmt.Errorf("%w: %q needs vertex and fragment code", ErrInvalidRecipe, r.Name)
	}
	if r.Vertex.Entry == "" || r.Fragment.Entry == "" {
		return fmt.Errorf("%w: %q needs entry points", ErrInvalidRecipe, r.Name)
	}
	if r.Format == ShaderSPIRV && (len(r.Vertex.Code)%4 != 0 || len(r.Fragment.Code)%4 != 0) {
		return fmt.Errorf("%w: %q SPIR-V code is not word aligned", ErrInvalidRecipe, r.Name)
	}
	if r.Kind == PipelineOverlay && r.DepthWrite {
		return fmt.Errorf("%w: overlay pipeline %q cannot write depth", ErrInvalidRecipe, r.Name)
	}
	return nil
}
