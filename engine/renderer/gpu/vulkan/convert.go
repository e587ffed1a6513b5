package vulkan

import (
	"math"
	"strings"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	vk "github.com/goki/vulkan"
)

func result(r vk.Result) gpu.Result {
	switch r {
	case vk.Success:
		return gpu.ResultSuccess
	case vk.NotReady:
		return gpu.ResultNotReady
	case vk.Timeout:
		return gpu.ResultTimeout
	case vk.Suboptimal:
		return gpu.ResultSuboptimal
	case vk.ErrorOutOfDate:
		return gpu.ResultOutOfDate
	case vk.ErrorDeviceLost, vk.ErrorSurfaceLost:
		return gpu.ResultDeviceLost
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory:
		return gpu.ResultOutOfMemory
	default:
		return gpu.ResultUnknown
	}
}

// cstr null-terminates s the way the bindings expect.
func cstr(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

func cstrs(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = cstr(s)
	}
	return out
}

func deviceScore(t vk.PhysicalDeviceType) int32 {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 500
	default:
		return 100
	}
}

func chooseSurfaceFormat(available []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, f := range available {
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return available[0]
}

// choosePresentMode falls back to Fifo, the only mode every surface supports.
func choosePresentMode(want gpu.PresentMode, available []vk.PresentMode) vk.PresentMode {
	has := func(m vk.PresentMode) bool {
		for _, a := range available {
			if a == m {
				return true
			}
		}
		return false
	}
	switch want {
	case gpu.PresentModeUncapped:
		if has(vk.PresentModeImmediate) {
			return vk.PresentModeImmediate
		}
		if has(vk.PresentModeMailbox) {
			return vk.PresentModeMailbox
		}
	case gpu.PresentModeMailbox:
		if has(vk.PresentModeMailbox) {
			return vk.PresentModeMailbox
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent uses the surface's current extent when it reports one, else
// clamps want into the supported range.
func chooseExtent(current, minExtent, maxExtent vk.Extent2D, want gpu.Extent2D) vk.Extent2D {
	if current.Width != math.MaxUint32 && current.Width != 0 && current.Height != 0 {
		return current
	}
	if maxExtent.Width == 0 {
		maxExtent.Width = want.Width
	}
	if maxExtent.Height == 0 {
		maxExtent.Height = want.Height
	}
	return vk.Extent2D{
		Width:  min(max(want.Width, minExtent.Width, 1), maxExtent.Width),
		Height: min(max(want.Height, minExtent.Height, 1), maxExtent.Height),
	}
}

func imageCount(minCount, maxCount uint32) uint32 {
	n := minCount + 1
	if maxCount > 0 && n > maxCount {
		n = maxCount
	}
	return n
}

func viewport(vp gpu.Viewport) vk.Viewport {
	out := vk.Viewport{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}
	if vp.FlipY {
		// Negative height viewports are core since Vulkan 1.1.
		out.Y = vp.Y + vp.Height
		out.Height = -vp.Height
	}
	return out
}

func rect(r gpu.Rect2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
	}
}

func topology(t gpu.Topology) vk.PrimitiveTopology {
	switch t {
	case gpu.TopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case gpu.TopologyLineList:
		return vk.PrimitiveTopologyLineList
	case gpu.TopologyPointList:
		return vk.PrimitiveTopologyPointList
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

func cullMode(c gpu.CullMode) vk.CullModeFlags {
	switch c {
	case gpu.CullFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case gpu.CullBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	default:
		return vk.CullModeFlags(vk.CullModeNone)
	}
}

func frontFace(f gpu.FrontFace) vk.FrontFace {
	if f == gpu.FrontFaceCW {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func vertexFormat(f gpu.VertexFormat) vk.Format {
	switch f {
	case gpu.VertexFloat32x2:
		return vk.FormatR32g32Sfloat
	case gpu.VertexFloat32x4:
		return vk.FormatR32g32b32a32Sfloat
	case gpu.VertexUint32:
		return vk.FormatR32Uint
	default:
		return vk.FormatR32g32b32Sfloat
	}
}

func indexType(f gpu.IndexFormat) vk.IndexType {
	if f == gpu.IndexUint16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func bufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlagBits
	if u&gpu.BufferUniform != 0 {
		out |= vk.BufferUsageUniformBufferBit
	}
	if u&gpu.BufferStorage != 0 {
		out |= vk.BufferUsageStorageBufferBit
	}
	if u&gpu.BufferVertex != 0 {
		out |= vk.BufferUsageVertexBufferBit
	}
	if u&gpu.BufferIndex != 0 {
		out |= vk.BufferUsageIndexBufferBit
	}
	if u&gpu.BufferCopyDst != 0 {
		out |= vk.BufferUsageTransferDstBit
	}
	return vk.BufferUsageFlags(out)
}

func descriptorType(u gpu.BufferUsage) vk.DescriptorType {
	if u&gpu.BufferStorage != 0 {
		return vk.DescriptorTypeStorageBuffer
	}
	return vk.DescriptorTypeUniformBuffer
}

var stageBits = []struct {
	in  gpu.PipelineStage
	out vk.PipelineStageFlagBits
}{
	{gpu.StageTopOfPipe, vk.PipelineStageTopOfPipeBit},
	{gpu.StageVertexInput, vk.PipelineStageVertexInputBit},
	{gpu.StageVertexShader, vk.PipelineStageVertexShaderBit},
	{gpu.StageFragmentShader, vk.PipelineStageFragmentShaderBit},
	{gpu.StageEarlyFragmentTests, vk.PipelineStageEarlyFragmentTestsBit},
	{gpu.StageLateFragmentTests, vk.PipelineStageLateFragmentTestsBit},
	{gpu.StageColorAttachmentOutput, vk.PipelineStageColorAttachmentOutputBit},
	{gpu.StageTransfer, vk.PipelineStageTransferBit},
	{gpu.StageBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
}

func pipelineStages(s gpu.PipelineStage) vk.PipelineStageFlags {
	var out vk.PipelineStageFlagBits
	for _, b := range stageBits {
		if s&b.in != 0 {
			out |= b.out
		}
	}
	if out == 0 {
		out = vk.PipelineStageTopOfPipeBit
	}
	return vk.PipelineStageFlags(out)
}

var accessBits = []struct {
	in  gpu.Access
	out vk.AccessFlagBits
}{
	{gpu.AccessUniformRead, vk.AccessUniformReadBit},
	{gpu.AccessVertexRead, vk.AccessVertexAttributeReadBit},
	{gpu.AccessIndexRead, vk.AccessIndexReadBit},
	{gpu.AccessShaderRead, vk.AccessShaderReadBit},
	{gpu.AccessShaderWrite, vk.AccessShaderWriteBit},
	{gpu.AccessColorAttachmentWrite, vk.AccessColorAttachmentWriteBit},
	{gpu.AccessDepthStencilWrite, vk.AccessDepthStencilAttachmentWriteBit},
	{gpu.AccessTransferWrite, vk.AccessTransferWriteBit},
	{gpu.AccessHostWrite, vk.AccessHostWriteBit},
}

func accessMask(a gpu.Access) vk.AccessFlags {
	var out vk.AccessFlagBits
	for _, b := range accessBits {
		if a&b.in != 0 {
			out |= b.out
		}
	}
	return vk.AccessFlags(out)
}
