package vulkan

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	vk "github.com/goki/vulkan"
)

type fence struct {
	device vk.Device
	handle vk.Fence
}

func (f *fence) Wait() gpu.Result {
	return result(vk.WaitForFences(f.device, 1, []vk.Fence{f.handle}, vk.True, vk.MaxUint64))
}

func (f *fence) Reset() gpu.Result {
	return result(vk.ResetFences(f.device, 1, []vk.Fence{f.handle}))
}

func (f *fence) Destroy() {
	vk.DestroyFence(f.device, f.handle, nil)
}

type semaphore struct {
	device vk.Device
	handle vk.Semaphore
}

func (s *semaphore) Destroy() {
	vk.DestroySemaphore(s.device, s.handle, nil)
}

// buffer is host-visible, coherent memory mapped for its whole lifetime.
type buffer struct {
	mu     sync.Mutex
	device vk.Device
	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64
	mapped []byte
}

func (b *buffer) mapMemory() error {
	var ptr unsafe.Pointer
	if res := vk.MapMemory(b.device, b.memory, 0, vk.DeviceSize(b.size), 0, &ptr); res != vk.Success {
		return fmt.Errorf("map buffer memory: %w", vk.Error(res))
	}
	b.mapped = unsafe.Slice((*byte)(ptr), b.size)
	return nil
}

func (b *buffer) Size() uint64 {
	return b.size
}

func (b *buffer) Write(offset uint64, data []byte) gpu.Result {
	if offset+uint64(len(data)) > b.size {
		return gpu.ResultUnknown
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mapped == nil {
		return gpu.ResultUnknown
	}
	copy(b.mapped[offset:], data)
	return gpu.ResultSuccess
}

func (b *buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mapped != nil {
		vk.UnmapMemory(b.device, b.memory)
		b.mapped = nil
	}
	vk.DestroyBuffer(b.device, b.handle, nil)
	vk.FreeMemory(b.device, b.memory, nil)
}

type pipeline struct {
	name   string
	device vk.Device
	handle vk.Pipeline
	layout vk.PipelineLayout
}

func (p *pipeline) Name() string {
	return p.name
}

func (p *pipeline) Destroy() {
	vk.DestroyPipeline(p.device, p.handle, nil)
}

// spirvWords reinterprets little-endian SPIR-V bytes as words. Validate has
// already checked the length is a multiple of four.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}

func (b *backend) shaderModule(code []byte) (vk.ShaderModule, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    spirvWords(code),
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(b.device, &info, nil, &module); res != vk.Success {
		return module, fmt.Errorf("create shader module: %w", vk.Error(res))
	}
	return module, nil
}

func vertexInput(layouts []gpu.VertexLayout) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	bindings := make([]vk.VertexInputBindingDescription, len(layouts))
	var attributes []vk.VertexInputAttributeDescription
	for i, l := range layouts {
		rate := vk.VertexInputRateVertex
		if l.Instanced {
			rate = vk.VertexInputRateInstance
		}
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   uint32(i),
			Stride:    l.Stride,
			InputRate: rate,
		}
		for _, a := range l.Attributes {
			attributes = append(attributes, vk.VertexInputAttributeDescription{
				Location: a.Location,
				Binding:  uint32(i),
				Format:   vertexFormat(a.Format),
				Offset:   a.Offset,
			})
		}
	}
	return bindings, attributes
}

func boolean(v bool) vk.Bool32 {
	if v {
		return vk.True
	}
	return vk.False
}

func (b *backend) createPipeline(r gpu.PipelineRecipe) (gpu.Pipeline, error) {
	vertModule, err := b.shaderModule(r.Vertex.Code)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q vertex: %w", r.Name, err)
	}
	defer vk.DestroyShaderModule(b.device, vertModule, nil)
	fragModule, err := b.shaderModule(r.Fragment.Code)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q fragment: %w", r.Name, err)
	}
	defer vk.DestroyShaderModule(b.device, fragModule, nil)

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertModule,
			PName:  cstr(r.Vertex.Entry),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  cstr(r.Fragment.Entry),
		},
	}

	bindings, attributes := vertexInput(r.VertexLayouts)
	vertexInputState := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: topology(r.Topology),
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                cullMode(r.CullMode),
		FrontFace:               frontFace(r.FrontFace),
		DepthBiasEnable:         boolean(r.DepthBias != 0 || r.DepthBiasSlopeScale != 0),
		DepthBiasConstantFactor: float32(r.DepthBias),
		DepthBiasSlopeFactor:    r.DepthBiasSlopeScale,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}
	compare := vk.CompareOpAlways
	if r.DepthTest {
		compare = vk.CompareOpLess
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  boolean(r.DepthTest),
		DepthWriteEnable: boolean(r.DepthWrite),
		DepthCompareOp:   compare,
	}
	blendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if r.Blend {
		blendAttachment.BlendEnable = vk.True
		blendAttachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		blendAttachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blendAttachment.ColorBlendOp = vk.BlendOpAdd
		blendAttachment.SrcAlphaBlendFactor = vk.BlendFactorOne
		blendAttachment.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blendAttachment.AlphaBlendOp = vk.BlendOpAdd
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}
	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamic,
		Layout:              b.pipelineLayout,
		RenderPass:          b.renderPass,
		Subpass:             0,
	}
	handles := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(b.device, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{info}, nil, handles); res != vk.Success {
		return nil, fmt.Errorf("create pipeline %q: %w", r.Name, vk.Error(res))
	}
	return &pipeline{name: r.Name, device: b.device, handle: handles[0], layout: b.pipelineLayout}, nil
}
