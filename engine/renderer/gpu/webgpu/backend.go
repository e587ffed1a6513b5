// Package webgpu implements the gpu contract on WebGPU through wgpu-native.
//
// WebGPU render pass encoders cannot be shared between goroutines, so fragment
// buffers record into a replayable op list and the primary buffer encodes every
// merged fragment into a single render pass at submit time.
package webgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

const depthFormat = wgpu.TextureFormatDepth24Plus

// Surface is the window the backend presents to.
type Surface interface {
	// SurfaceDescriptor returns the platform surface descriptor, nil when the window is gone.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Extent returns the framebuffer size in pixels.
	Extent() gpu.Extent2D
}

// ErrNoBindGroupLayouts is returned by BindBuffers when the backend was built
// without explicit bind group layouts.
var ErrNoBindGroupLayouts = errors.New("webgpu: no bind group layouts configured")

type backend struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	swapchain *swapchain

	sampleCount   uint32
	fallback      bool
	maxBindGroups uint32
	presentMode   gpu.PresentMode

	vertexGroups   map[int]wgpu.BindGroupLayoutDescriptor
	fragmentGroups map[int]wgpu.BindGroupLayoutDescriptor
	groupLayouts   []*wgpu.BindGroupLayout
	layout         *wgpu.PipelineLayout

	destroyed bool
}

// Backend is the WebGPU gpu.Backend plus the handles needed to build resource
// bindings outside the frame loop.
type Backend interface {
	gpu.Backend

	// Device returns the logical device.
	Device() *wgpu.Device

	// Queue returns the device queue.
	Queue() *wgpu.Queue

	// BindBuffers creates a bind group for group whose binding i is buffers[i].
	//
	// Parameters:
	//   - group: the bind group index in the shared pipeline layout
	//   - buffers: the buffers to bind, in binding order
	//
	// Returns:
	//   - gpu.DescriptorSet: a *wgpu.BindGroup
	//   - error: ErrNoBindGroupLayouts, or a creation failure
	BindBuffers(group uint32, buffers ...gpu.Buffer) (gpu.DescriptorSet, error)
}

var _ Backend = &backend{}

// NewBackend opens an adapter and device compatible with surface and
// configures the surface at its current extent. The calling goroutine is
// locked to its OS thread.
//
// Parameters:
//   - surface: the window to present to
//   - options: functional options for MSAA, present mode and bind group layouts
//
// Returns:
//   - Backend: the backend
//   - error: an error if any device object could not be created
func NewBackend(surface Surface, options ...BackendBuilderOption) (Backend, error) {
	runtime.LockOSThread()

	desc := surface.SurfaceDescriptor()
	if desc == nil {
		return nil, errors.New("webgpu: window has no surface")
	}

	b := &backend{
		mu:            &sync.Mutex{},
		instance:      wgpu.CreateInstance(nil),
		sampleCount:   1,
		maxBindGroups: 4,
	}
	for _, opt := range options {
		opt(b)
	}
	b.surface = b.instance.CreateSurface(desc)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.fallback,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.Destroy()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	b.adapter = adapter

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = b.maxBindGroups

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		b.Destroy()
		return nil, fmt.Errorf("request device: %w", err)
	}
	b.device = device
	b.queue = device.GetQueue()

	if err := b.buildLayouts(); err != nil {
		b.Destroy()
		return nil, err
	}

	b.swapchain = &swapchain{
		mu:      &sync.Mutex{},
		backend: b,
		mode:    b.presentMode,
	}
	if err := b.swapchain.Recreate(surface.Extent()); err != nil {
		b.Destroy()
		return nil, err
	}

	common.Logger().Info("webgpu backend ready",
		slog.Int("msaa", int(b.sampleCount)),
		slog.Any("format", b.swapchain.format),
	)
	return b, nil
}

// buildLayouts creates the shared pipeline layout from the configured per-stage
// bind group layouts. Without any, pipelines use the layout derived from their shaders.
func (b *backend) buildLayouts() error {
	merged := mergeBindGroupLayouts(b.vertexGroups, b.fragmentGroups)
	if len(merged) == 0 {
		return nil
	}

	maxGroup := -1
	for g := range merged {
		maxGroup = max(maxGroup, g)
	}
	b.groupLayouts = make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g, desc := range merged {
		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return fmt.Errorf("create bind group layout for group %d: %w", g, err)
		}
		b.groupLayouts[g] = layout
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Shared Pipeline Layout",
		BindGroupLayouts: b.groupLayouts,
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	b.layout = layout
	return nil
}

func (b *backend) Type() gpu.BackendType {
	return gpu.BackendWebGPU
}

func (b *backend) Device() *wgpu.Device {
	return b.device
}

func (b *backend) Queue() *wgpu.Queue {
	return b.queue
}

func (b *backend) CreateFence(signaled bool) (gpu.Fence, error) {
	return &fence{mu: &sync.Mutex{}, device: b.device, signaled: signaled}, nil
}

func (b *backend) CreateSemaphore() (gpu.Semaphore, error) {
	return semaphore{}, nil
}

func (b *backend) AllocateCommandBuffers(level gpu.CommandLevel, count int) ([]gpu.CommandBuffer, error) {
	out := make([]gpu.CommandBuffer, count)
	for i := range out {
		out[i] = &commandBuffer{level: level}
	}
	return out, nil
}

func (b *backend) CreateBuffer(size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	// Queue writes must be 4-byte aligned.
	aligned := (size + 3) &^ 3
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Frame Buffer",
		Size:  aligned,
		Usage: bufferUsage(usage),
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer of %d bytes: %w", size, err)
	}
	return &buffer{buf: buf, size: size, queue: b.queue}, nil
}

func (b *backend) shaderModule(label string, format gpu.ShaderFormat, stage gpu.ShaderStage) (*wgpu.ShaderModule, error) {
	desc := &wgpu.ShaderModuleDescriptor{Label: label}
	if format == gpu.ShaderWGSL {
		desc.WGSLDescriptor = &wgpu.ShaderModuleWGSLDescriptor{Code: string(stage.Code)}
	} else {
		desc.SPIRVDescriptor = &wgpu.ShaderModuleSPIRVDescriptor{Code: stage.Code}
	}
	return b.device.CreateShaderModule(desc)
}

func (b *backend) CreatePipeline(r gpu.PipelineRecipe) (gpu.Pipeline, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	vs, err := b.shaderModule(r.Name+" vertex", r.Format, r.Vertex)
	if err != nil {
		return nil, fmt.Errorf("vertex shader: %w", err)
	}
	defer vs.Release()
	fs, err := b.shaderModule(r.Name+" fragment", r.Format, r.Fragment)
	if err != nil {
		return nil, fmt.Errorf("fragment shader: %w", err)
	}
	defer fs.Release()

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  r.Name + " Render Pipeline",
		Layout: b.layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: r.Vertex.Entry,
			Buffers:    vertexLayouts(r.VertexLayouts),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: r.Fragment.Entry,
			Targets:    []wgpu.ColorTargetState{colorTarget(b.swapchain.format, r.Blend)},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology(r.Topology),
			FrontFace: frontFace(r.FrontFace),
			CullMode:  cullMode(r.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: b.sampleCount,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil(r),
	})
	if err != nil {
		return nil, err
	}
	return &pipeline{name: r.Name, render: created}, nil
}

func (b *backend) BindBuffers(group uint32, buffers ...gpu.Buffer) (gpu.DescriptorSet, error) {
	if int(group) >= len(b.groupLayouts) || b.groupLayouts[group] == nil {
		return nil, fmt.Errorf("bind group %d: %w", group, ErrNoBindGroupLayouts)
	}
	entries := make([]wgpu.BindGroupEntry, len(buffers))
	for i, buf := range buffers {
		wb, ok := buf.(*buffer)
		if !ok {
			return nil, fmt.Errorf("bind group %d binding %d: buffer from another backend", group, i)
		}
		entries[i] = wgpu.BindGroupEntry{
			Binding: uint32(i),
			Buffer:  wb.buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}
	}
	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("Group %d Bind Group", group),
		Layout:  b.groupLayouts[group],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group %d: %w", group, err)
	}
	return bindGroup, nil
}

func (b *backend) Submit(cmd gpu.CommandBuffer, wait, signal gpu.Semaphore, f gpu.Fence) gpu.Result {
	cb, ok := cmd.(*commandBuffer)
	if !ok || cb.level != gpu.LevelPrimary {
		return gpu.ResultUnknown
	}
	if cb.target == nil {
		// Nothing to encode; still honour the fence.
		if wf, ok := f.(*fence); ok {
			wf.submitted()
		}
		return gpu.ResultSuccess
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return gpu.ResultOutOfMemory
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(b.swapchain.passDescriptor(cb.target, cb.clear))
	for _, op := range cb.ops {
		op(pass)
	}
	pass.End()
	pass.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		common.Logger().Error("finish command encoder", slog.Any("error", err))
		return gpu.ResultDeviceLost
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	if wf, ok := f.(*fence); ok {
		wf.submitted()
	}
	return gpu.ResultSuccess
}

func (b *backend) WaitIdle() gpu.Result {
	if b.device == nil {
		return gpu.ResultSuccess
	}
	b.device.Poll(true, nil)
	return gpu.ResultSuccess
}

func (b *backend) Swapchain() gpu.Swapchain {
	return b.swapchain
}

func (b *backend) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true

	if b.swapchain != nil {
		b.swapchain.Destroy()
	}
	if b.layout != nil {
		b.layout.Release()
	}
	for _, l := range b.groupLayouts {
		if l != nil {
			l.Release()
		}
	}
	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
}
