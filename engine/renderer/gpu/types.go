package gpu

// Extent2D is a surface size in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Empty reports whether either dimension is zero, as happens while a window is minimised.
func (e Extent2D) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// Aspect returns width/height, or 1 for an empty extent.
func (e Extent2D) Aspect() float32 {
	if e.Empty() {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

// Rect2D is a pixel rectangle.
type Rect2D struct {
	X, Y          int32
	Width, Height uint32
}

// Viewport describes the dynamic viewport state. FlipY renders with a negative
// height so clip-space +Y points up on backends whose framebuffer origin is top-left.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
	FlipY               bool
}

// FullViewport returns a viewport covering extent with a [0, 1] depth range.
func FullViewport(extent Extent2D, flipY bool) Viewport {
	return Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MaxDepth: 1,
		FlipY:    flipY,
	}
}

// FullScissor returns a scissor rectangle covering extent.
func FullScissor(extent Extent2D) Rect2D {
	return Rect2D{Width: extent.Width, Height: extent.Height}
}

// ClearValues holds the colour and depth values a render pass clears to.
type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// DefaultClear is the clear colour used when a renderer is not given one.
var DefaultClear = ClearValues{Color: [4]float32{0.1, 0.1, 0.1, 1.0}, Depth: 1.0}

// RenderPassContext is everything a fragment command buffer needs in order to
// record inside a render pass opened by someone else. Native carries the
// backend-specific inheritance data.
type RenderPassContext struct {
	ImageIndex uint32
	Extent     Extent2D
	Subpass    uint32
	Native     any
}

// PipelineStage is a bit mask of pipeline stages used by barriers.
type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageVertexInput
	StageVertexShader
	StageFragmentShader
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageTransfer
	StageBottomOfPipe
)

// Access is a bit mask of memory access types used by barriers.
type Access uint32

const (
	AccessUniformRead Access = 1 << iota
	AccessVertexRead
	AccessIndexRead
	AccessShaderRead
	AccessShaderWrite
	AccessColorAttachmentWrite
	AccessDepthStencilWrite
	AccessTransferWrite
	AccessHostWrite
)

// Barrier is a global memory barrier between two sets of stages.
type Barrier struct {
	SrcStage  PipelineStage
	DstStage  PipelineStage
	SrcAccess Access
	DstAccess Access
}

// IndexFormat selects 16- or 32-bit indices.
type IndexFormat int

const (
	IndexUint32 IndexFormat = iota
	IndexUint16
)

// BufferUsage is a bit mask describing how a buffer is bound.
type BufferUsage uint32

const (
	BufferUniform BufferUsage = 1 << iota
	BufferStorage
	BufferVertex
	BufferIndex
	BufferCopyDst
)
