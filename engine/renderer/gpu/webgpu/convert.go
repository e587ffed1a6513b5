package webgpu

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

func presentMode(mode gpu.PresentMode) wgpu.PresentMode {
	switch mode {
	case gpu.PresentModeUncapped:
		return wgpu.PresentModeImmediate
	case gpu.PresentModeMailbox:
		return wgpu.PresentModeMailbox
	default:
		return wgpu.PresentModeFifo
	}
}

// supportedPresentMode falls back to Fifo, which every surface supports.
func supportedPresentMode(want wgpu.PresentMode, available []wgpu.PresentMode) wgpu.PresentMode {
	for _, m := range available {
		if m == want {
			return want
		}
	}
	return wgpu.PresentModeFifo
}

func topology(t gpu.Topology) wgpu.PrimitiveTopology {
	switch t {
	case gpu.TopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	case gpu.TopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case gpu.TopologyPointList:
		return wgpu.PrimitiveTopologyPointList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func cullMode(c gpu.CullMode) wgpu.CullMode {
	switch c {
	case gpu.CullFront:
		return wgpu.CullModeFront
	case gpu.CullBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func frontFace(f gpu.FrontFace) wgpu.FrontFace {
	if f == gpu.FrontFaceCW {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

func vertexFormat(f gpu.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gpu.VertexFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gpu.VertexFloat32x4:
		return wgpu.VertexFormatFloat32x4
	case gpu.VertexUint32:
		return wgpu.VertexFormatUint32
	default:
		return wgpu.VertexFormatFloat32x3
	}
}

func indexFormat(f gpu.IndexFormat) wgpu.IndexFormat {
	if f == gpu.IndexUint16 {
		return wgpu.IndexFormatUint16
	}
	return wgpu.IndexFormatUint32
}

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	// Every buffer is written through the queue.
	usage := wgpu.BufferUsageCopyDst
	if u&gpu.BufferUniform != 0 {
		usage |= wgpu.BufferUsageUniform
	}
	if u&gpu.BufferStorage != 0 {
		usage |= wgpu.BufferUsageStorage
	}
	if u&gpu.BufferVertex != 0 {
		usage |= wgpu.BufferUsageVertex
	}
	if u&gpu.BufferIndex != 0 {
		usage |= wgpu.BufferUsageIndex
	}
	return usage
}

func vertexLayouts(layouts []gpu.VertexLayout) []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, 0, len(layouts))
	for _, l := range layouts {
		step := wgpu.VertexStepModeVertex
		if l.Instanced {
			step = wgpu.VertexStepModeInstance
		}
		attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
		for i, a := range l.Attributes {
			attrs[i] = wgpu.VertexAttribute{
				Format:         vertexFormat(a.Format),
				Offset:         uint64(a.Offset),
				ShaderLocation: a.Location,
			}
		}
		out = append(out, wgpu.VertexBufferLayout{
			ArrayStride: uint64(l.Stride),
			StepMode:    step,
			Attributes:  attrs,
		})
	}
	return out
}

func colorTarget(format wgpu.TextureFormat, blend bool) wgpu.ColorTargetState {
	state := wgpu.ColorTargetState{
		Format:    format,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	if blend {
		state.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}
	return state
}

func depthStencil(r gpu.PipelineRecipe) *wgpu.DepthStencilState {
	compare := wgpu.CompareFunctionLess
	if !r.DepthTest {
		compare = wgpu.CompareFunctionAlways
	}
	return &wgpu.DepthStencilState{
		Format:              depthFormat,
		DepthWriteEnabled:   r.DepthWrite,
		DepthCompare:        compare,
		DepthBias:           r.DepthBias,
		DepthBiasSlopeScale: r.DepthBiasSlopeScale,
		StencilFront: wgpu.StencilFaceState{
			Compare: wgpu.CompareFunctionAlways,
		},
		StencilBack: wgpu.StencilFaceState{
			Compare: wgpu.CompareFunctionAlways,
		},
	}
}

// mergeBindGroupLayouts combines the per-group layouts declared by the vertex
// and fragment stages. Bindings present in both stages OR their visibility.
func mergeBindGroupLayouts(
	vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor,
) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)

	groupIndices := make(map[int]bool)
	for g := range vertexLayouts {
		groupIndices[g] = true
	}
	for g := range fragmentLayouts {
		groupIndices[g] = true
	}

	for g := range groupIndices {
		vDesc, hasV := vertexLayouts[g]
		fDesc, hasF := fragmentLayouts[g]

		switch {
		case hasV && !hasF:
			merged[g] = vDesc
		case hasF && !hasV:
			merged[g] = fDesc
		default:
			entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
			for _, e := range vDesc.Entries {
				entryMap[e.Binding] = e
			}
			for _, e := range fDesc.Entries {
				if existing, ok := entryMap[e.Binding]; ok {
					existing.Visibility |= e.Visibility
					entryMap[e.Binding] = existing
				} else {
					entryMap[e.Binding] = e
				}
			}

			entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
			for _, e := range entryMap {
				entries = append(entries, e)
			}
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Binding < entries[j].Binding
			})

			merged[g] = wgpu.BindGroupLayoutDescriptor{
				Label:   vDesc.Label,
				Entries: entries,
			}
		}
	}

	return merged
}
