package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu/headless"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/pipeline"
)

// =============================================================================
// Helpers
// =============================================================================

func newTestRenderer(t *testing.T, b headless.Backend, options ...RendererBuilderOption) Renderer {
	t.Helper()
	r, err := NewRenderer(b, options...)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Destroy)
	return r
}

func captureFatal(t *testing.T) *[]error {
	t.Helper()
	var got []error
	prev := common.SetFatalHandler(func(err error) { got = append(got, err) })
	t.Cleanup(func() { common.SetFatalHandler(prev) })
	return &got
}

func runFrame(t *testing.T, r Renderer) (Frame, bool) {
	t.Helper()
	f, ok, err := r.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if !ok {
		return f, false
	}
	if err := r.EndFrame(f); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	return f, true
}

func assertNoViolations(t *testing.T, b headless.Backend) {
	t.Helper()
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

// =============================================================================
// Frame cycle
// =============================================================================

func TestRenderer_FrameCycle(t *testing.T) {
	b := headless.NewBackend()
	r := newTestRenderer(t, b)

	f, ok := runFrame(t, r)
	if !ok {
		t.Fatal("first frame skipped")
	}
	if f.Number != 1 || f.Slot.Index != 0 {
		t.Errorf("frame = %d slot %d, want 1 slot 0", f.Number, f.Slot.Index)
	}
	if b.Submits() != 1 || b.HeadlessSwapchain().Presents() != 1 {
		t.Errorf("submits %d presents %d, want 1 and 1", b.Submits(), b.HeadlessSwapchain().Presents())
	}
	if r.Ring().Current().Index != 1 {
		t.Errorf("current slot = %d, want 1", r.Ring().Current().Index)
	}

	cmds := b.LastSubmitted()
	if len(cmds) != 2 || cmds[0].Op != headless.OpBeginRenderPass || cmds[1].Op != headless.OpEndRenderPass {
		t.Errorf("primary commands = %v, want begin/end render pass", cmds)
	}
	assertNoViolations(t, b)
}

func TestRenderer_SlotRotation(t *testing.T) {
	tests := []struct {
		framesInFlight int
		frames         int
	}{
		{1, 4},
		{2, 6},
		{3, 9},
	}

	for _, tt := range tests {
		b := headless.NewBackend()
		r := newTestRenderer(t, b, WithFramesInFlight(tt.framesInFlight))

		for i := 0; i < tt.frames; i++ {
			f, ok := runFrame(t, r)
			if !ok {
				t.Fatalf("frame %d skipped", i)
			}
			if want := i % tt.framesInFlight; f.Slot.Index != want {
				t.Errorf("N=%d frame %d slot = %d, want %d", tt.framesInFlight, i, f.Slot.Index, want)
			}
		}
		per := tt.frames / tt.framesInFlight
		for i := 0; i < tt.framesInFlight; i++ {
			if got := r.Ring().Waits(i); got != per {
				t.Errorf("N=%d Waits(%d) = %d, want %d", tt.framesInFlight, i, got, per)
			}
		}
		assertNoViolations(t, b)
	}
}

func TestRenderer_BeginFrameTwicePanics(t *testing.T) {
	b := headless.NewBackend()
	r := newTestRenderer(t, b)
	if _, ok, _ := r.BeginFrame(); !ok {
		t.Fatal("frame skipped")
	}
	defer func() {
		if recover() == nil {
			t.Error("second BeginFrame did not panic")
		}
	}()
	r.BeginFrame()
}

// =============================================================================
// Stale surface
// =============================================================================

func TestRenderer_StaleAcquireSkipsFrame(t *testing.T) {
	b := headless.NewBackend()
	r := newTestRenderer(t, b)
	sc := b.HeadlessSwapchain()
	sc.QueueAcquire(gpu.ResultOutOfDate)
	fence := b.Fences()[0]

	_, ok, err := r.BeginFrame()
	if err != nil || ok {
		t.Fatalf("BeginFrame = (%v, %v), want skip", ok, err)
	}
	if b.Submits() != 0 {
		t.Errorf("Submits() = %d, want 0", b.Submits())
	}
	if fence.Resets() != 0 {
		t.Errorf("fence resets = %d, skipped frame must not reset its fence", fence.Resets())
	}
	if sc.Recreates() != 1 {
		t.Errorf("Recreates() = %d, want 1", sc.Recreates())
	}

	if _, ok := runFrame(t, r); !ok {
		t.Error("frame after stale acquire skipped")
	}
	if sc.Recreates() != 1 {
		t.Errorf("Recreates() after recovery = %d, want 1", sc.Recreates())
	}
	assertNoViolations(t, b)
}

func TestRenderer_SuboptimalAcquireRendersThenResizes(t *testing.T) {
	b := headless.NewBackend()
	r := newTestRenderer(t, b)
	sc := b.HeadlessSwapchain()
	sc.QueueAcquire(gpu.ResultSuboptimal)

	if _, ok := runFrame(t, r); !ok {
		t.Fatal("suboptimal frame skipped")
	}
	if b.Submits() != 1 || sc.Recreates() != 1 {
		t.Errorf("submits %d recreates %d, want 1 and 1", b.Submits(), sc.Recreates())
	}
	assertNoViolations(t, b)
}

func TestRenderer_StalePresentResizesAfterSubmit(t *testing.T) {
	b := headless.NewBackend()
	r := newTestRenderer(t, b)
	sc := b.HeadlessSwapchain()
	sc.QueuePresent(gpu.ResultOutOfDate)

	if _, ok := runFrame(t, r); !ok {
		t.Fatal("frame skipped")
	}
	if b.Submits() != 1 {
		t.Errorf("Submits() = %d, want 1", b.Submits())
	}
	if sc.Recreates() != 1 {
		t.Errorf("Recreates() = %d, want 1", sc.Recreates())
	}
	if b.WaitIdles() == 0 {
		t.Error("resize did not wait for the device to idle")
	}

	for i := 0; i < 3; i++ {
		if _, ok := runFrame(t, r); !ok {
			t.Fatalf("frame %d after stale present skipped", i)
		}
	}
	assertNoViolations(t, b)
}

// =============================================================================
// Resize
// =============================================================================

func TestRenderer_ResizeIdempotent(t *testing.T) {
	b := headless.NewBackend(headless.WithExtent(640, 480))
	extent := gpu.Extent2D{Width: 640, Height: 480}
	var resized []gpu.Extent2D
	r := newTestRenderer(t, b,
		WithExtentSource(ExtentFunc(func() gpu.Extent2D { return extent })),
		WithResizeCallback(func(e gpu.Extent2D) { resized = append(resized, e) }))
	sc := b.HeadlessSwapchain()

	if err := r.Resize(); err != nil {
		t.Fatal(err)
	}
	if sc.Recreates() != 0 {
		t.Errorf("Recreates() with unchanged extent = %d, want 0", sc.Recreates())
	}

	extent = gpu.Extent2D{Width: 800, Height: 600}
	r.RequestResize()
	for i := 0; i < 2; i++ {
		if err := r.Resize(); err != nil {
			t.Fatal(err)
		}
	}
	if sc.Recreates() != 1 {
		t.Errorf("Recreates() = %d, want 1", sc.Recreates())
	}
	if len(resized) != 1 || resized[0] != extent {
		t.Errorf("resize callbacks = %v, want [%v]", resized, extent)
	}
	if _, ok := runFrame(t, r); !ok {
		t.Error("frame after resize skipped")
	}
	assertNoViolations(t, b)
}

func TestRenderer_MinimisedDefersResize(t *testing.T) {
	b := headless.NewBackend()
	extent := gpu.Extent2D{}
	r := newTestRenderer(t, b, WithExtentSource(ExtentFunc(func() gpu.Extent2D { return extent })))
	sc := b.HeadlessSwapchain()
	r.RequestResize()

	for i := 0; i < 3; i++ {
		if _, ok, err := r.BeginFrame(); ok || err != nil {
			t.Fatalf("BeginFrame while minimised = (%v, %v), want skip", ok, err)
		}
	}
	if sc.Recreates() != 0 {
		t.Errorf("Recreates() while minimised = %d, want 0", sc.Recreates())
	}

	extent = gpu.Extent2D{Width: 1024, Height: 768}
	if _, ok := runFrame(t, r); !ok {
		t.Fatal("frame after restore skipped")
	}
	if sc.Recreates() != 1 || sc.Extent() != extent {
		t.Errorf("after restore recreates %d extent %v, want 1 and %v", sc.Recreates(), sc.Extent(), extent)
	}
	assertNoViolations(t, b)
}

func TestRenderer_SetPresentModeRebuilds(t *testing.T) {
	b := headless.NewBackend()
	r := newTestRenderer(t, b)
	r.SetPresentMode(gpu.PresentModeUncapped)

	if _, ok := runFrame(t, r); !ok {
		t.Fatal("frame skipped")
	}
	sc := b.HeadlessSwapchain()
	if sc.PresentMode() != gpu.PresentModeUncapped || sc.Recreates() != 1 {
		t.Errorf("mode %v recreates %d, want uncapped and 1", sc.PresentMode(), sc.Recreates())
	}
}

// =============================================================================
// Failure
// =============================================================================

func TestRenderer_DeviceLostIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		script func(b headless.Backend)
	}{
		{"submit", func(b headless.Backend) { b.QueueSubmit(gpu.ResultDeviceLost) }},
		{"acquire", func(b headless.Backend) { b.HeadlessSwapchain().QueueAcquire(gpu.ResultDeviceLost) }},
		{"present", func(b headless.Backend) { b.HeadlessSwapchain().QueuePresent(gpu.ResultDeviceLost) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fatals := captureFatal(t)
			b := headless.NewBackend()
			r := newTestRenderer(t, b)
			tt.script(b)

			f, ok, err := r.BeginFrame()
			if ok {
				err = r.EndFrame(f)
			}
			if !errors.Is(err, gpu.ErrDeviceLost) {
				t.Errorf("error = %v, want device lost", err)
			}
			if !r.Failed() {
				t.Error("Failed() = false after device loss")
			}
			if len(*fatals) != 1 {
				t.Errorf("fatal handler calls = %d, want 1", len(*fatals))
			}
			if _, _, err := r.BeginFrame(); !errors.Is(err, ErrFailed) {
				t.Errorf("BeginFrame after failure = %v, want ErrFailed", err)
			}
		})
	}
}

// =============================================================================
// Pipelines
// =============================================================================

func TestRenderer_ReloadPipelines(t *testing.T) {
	b := headless.NewBackend()
	recipe := pipeline.NewRecipe("mesh", gpu.PipelineOpaque,
		pipeline.WithShaderFormat(gpu.ShaderWGSL),
		pipeline.WithVertexShader([]byte("vs"), "vs_main"),
		pipeline.WithFragmentShader([]byte("fs"), "fs_main"))
	r := newTestRenderer(t, b, WithPipelines(recipe))

	if b.Builds("mesh") != 1 {
		t.Fatalf("Builds(mesh) = %d, want 1", b.Builds("mesh"))
	}
	if err := r.ReloadPipelines(); err != nil {
		t.Fatal(err)
	}
	if b.Builds("mesh") != 2 {
		t.Errorf("Builds(mesh) after reload = %d, want 2", b.Builds("mesh"))
	}
	p, err := r.Pipelines().Get("mesh")
	if err != nil || headless.Generation(p) != 2 {
		t.Errorf("Get(mesh) = generation %d err %v, want generation 2", headless.Generation(p), err)
	}
}

func TestRenderer_ReloadPipelinesWithEditedRecipe(t *testing.T) {
	b := headless.NewBackend()
	recipe := func(vs string) gpu.PipelineRecipe {
		return pipeline.NewRecipe("mesh", gpu.PipelineOpaque,
			pipeline.WithShaderFormat(gpu.ShaderWGSL),
			pipeline.WithVertexShader([]byte(vs), "vs_main"),
			pipeline.WithFragmentShader([]byte("fs"), "fs_main"))
	}
	r := newTestRenderer(t, b, WithPipelines(recipe("vs_v1")))

	if err := r.ReloadPipelines(recipe("vs_v2")); err != nil {
		t.Fatal(err)
	}
	p, err := r.Pipelines().Get("mesh")
	if err != nil {
		t.Fatal(err)
	}
	if got := string(headless.VertexCode(p)); got != "vs_v2" {
		t.Errorf("VertexCode(mesh) = %q, want %q", got, "vs_v2")
	}
	if b.WaitIdles() == 0 {
		t.Error("reload did not wait for the device to idle")
	}
}

func TestRenderer_InvalidPipelineFailsConstruction(t *testing.T) {
	b := headless.NewBackend()
	if _, err := NewRenderer(b, WithPipelines(gpu.PipelineRecipe{Name: "broken"})); !errors.Is(err, gpu.ErrInvalidRecipe) {
		t.Errorf("NewRenderer error = %v, want ErrInvalidRecipe", err)
	}
}

func TestParseNames(t *testing.T) {
	if bt, err := ParseBackendType("Vulkan"); err != nil || bt != gpu.BackendVulkan {
		t.Errorf("ParseBackendType(Vulkan) = %v, %v", bt, err)
	}
	if _, err := ParseBackendType("metal"); err == nil {
		t.Error("ParseBackendType(metal) should fail")
	}
	if pm, err := ParsePresentMode("mailbox"); err != nil || pm != gpu.PresentModeMailbox {
		t.Errorf("ParsePresentMode(mailbox) = %v, %v", pm, err)
	}
}
