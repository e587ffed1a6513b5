package headless

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

func testPipeline(t *testing.T, b Backend, name string) gpu.Pipeline {
	t.Helper()
	p, err := b.CreatePipeline(gpu.PipelineRecipe{
		Name:     name,
		Format:   gpu.ShaderWGSL,
		Vertex:   gpu.ShaderStage{Code: []byte("vs"), Entry: "vs_main"},
		Fragment: gpu.ShaderStage{Code: []byte("fs"), Entry: "fs_main"},
	})
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	return p
}

func TestBackend_SubmitSignalsFence(t *testing.T) {
	b := NewBackend()
	f, _ := b.CreateFence(false)
	cmds, _ := b.AllocateCommandBuffers(gpu.LevelPrimary, 1)

	cmds[0].Begin(nil)
	cmds[0].End()
	if r := b.Submit(cmds[0], nil, nil, f); r != gpu.ResultSuccess {
		t.Fatalf("Submit = %v, want success", r)
	}
	if r := f.Wait(); r != gpu.ResultSuccess {
		t.Errorf("Wait = %v, want success", r)
	}
	if b.Submits() != 1 {
		t.Errorf("Submits() = %d, want 1", b.Submits())
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestBackend_WaitOnUnsubmittedFence(t *testing.T) {
	b := NewBackend()
	f, _ := b.CreateFence(false)
	if r := f.Wait(); r != gpu.ResultTimeout {
		t.Errorf("Wait = %v, want timeout", r)
	}
	if len(b.Violations()) != 1 {
		t.Errorf("Violations() = %v, want one", b.Violations())
	}
}

func TestBackend_ScriptedSubmit(t *testing.T) {
	b := NewBackend()
	b.QueueSubmit(gpu.ResultDeviceLost)
	cmds, _ := b.AllocateCommandBuffers(gpu.LevelPrimary, 1)
	cmds[0].Begin(nil)
	cmds[0].End()

	if r := b.Submit(cmds[0], nil, nil, nil); r != gpu.ResultDeviceLost {
		t.Errorf("Submit = %v, want device lost", r)
	}
	if r := b.Submit(cmds[0], nil, nil, nil); r != gpu.ResultSuccess {
		t.Errorf("second Submit = %v, want success", r)
	}
}

func TestBackend_ExecuteCommandsMergesInOrder(t *testing.T) {
	b := NewBackend()
	p := testPipeline(t, b, "mesh")
	primary, _ := b.AllocateCommandBuffers(gpu.LevelPrimary, 1)
	frags, _ := b.AllocateCommandBuffers(gpu.LevelFragment, 2)
	ctx := b.Swapchain().Target(0)

	for i, f := range frags {
		f.Begin(&ctx)
		f.BindPipeline(p)
		f.Draw(3, 1, 0, uint32(i))
		f.End()
	}

	primary[0].Begin(nil)
	primary[0].BeginRenderPass(ctx, gpu.DefaultClear)
	primary[0].ExecuteCommands(frags[1], frags[0])
	primary[0].EndRenderPass()
	primary[0].End()

	var draws []Command
	for _, c := range Commands(primary[0]) {
		if c.IsDraw() {
			draws = append(draws, c)
		}
	}
	if len(draws) != 2 {
		t.Fatalf("draws = %d, want 2", len(draws))
	}
	if draws[0].FirstInstance != 1 || draws[0].Fragment != 0 {
		t.Errorf("first merged draw = %v, want fragment 0 recorded by frags[1]", draws[0])
	}
	if draws[1].FirstInstance != 0 || draws[1].Fragment != 1 {
		t.Errorf("second merged draw = %v, want fragment 1 recorded by frags[0]", draws[1])
	}
	if draws[0].Pipeline != "mesh" {
		t.Errorf("draw pipeline = %q, want mesh", draws[0].Pipeline)
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestBackend_InlineDrawInPrimaryIsViolation(t *testing.T) {
	b := NewBackend()
	p := testPipeline(t, b, "mesh")
	primary, _ := b.AllocateCommandBuffers(gpu.LevelPrimary, 1)
	primary[0].Begin(nil)
	primary[0].BeginRenderPass(b.Swapchain().Target(0), gpu.DefaultClear)
	primary[0].BindPipeline(p)
	primary[0].EndRenderPass()
	primary[0].End()

	if len(b.Violations()) == 0 {
		t.Error("inline bind in primary should be a violation")
	}
}

func TestSwapchain_AcquirePresent(t *testing.T) {
	b := NewBackend(WithImageCount(2))
	sc := b.HeadlessSwapchain()
	acquired, _ := b.CreateSemaphore()

	idx, r := sc.Acquire(acquired)
	if r != gpu.ResultSuccess || idx != 0 {
		t.Fatalf("Acquire = (%d, %v), want (0, success)", idx, r)
	}
	if r := sc.Present(idx, acquired); r != gpu.ResultSuccess {
		t.Errorf("Present = %v, want success", r)
	}
	idx, _ = sc.Acquire(acquired)
	if idx != 1 {
		t.Errorf("second image = %d, want 1", idx)
	}
}

func TestSwapchain_ScriptedStale(t *testing.T) {
	b := NewBackend()
	sc := b.HeadlessSwapchain()
	sc.QueueAcquire(gpu.ResultOutOfDate)
	sem, _ := b.CreateSemaphore()

	if _, r := sc.Acquire(sem); r != gpu.ResultOutOfDate {
		t.Errorf("Acquire = %v, want out of date", r)
	}
	// A stale acquire must not signal the semaphore.
	if _, r := sc.Acquire(sem); r != gpu.ResultSuccess {
		t.Errorf("Acquire = %v, want success", r)
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestSwapchain_Recreate(t *testing.T) {
	b := NewBackend(WithExtent(640, 480))
	sc := b.HeadlessSwapchain()

	if err := sc.Recreate(gpu.Extent2D{}); err == nil {
		t.Error("Recreate with empty extent should fail")
	}
	if err := sc.Recreate(gpu.Extent2D{Width: 800, Height: 600}); err != nil {
		t.Fatalf("Recreate: %v", err)
	}
	if got := sc.Extent(); got != (gpu.Extent2D{Width: 800, Height: 600}) {
		t.Errorf("Extent() = %v, want 800x600", got)
	}
	fb := sc.Target(1).Native.(Framebuffer)
	if fb.Generation != 1 || fb.Image != 1 {
		t.Errorf("Target(1).Native = %+v, want generation 1 image 1", fb)
	}
}

func TestBuffer_WriteBounds(t *testing.T) {
	b := NewBackend()
	buf, err := b.CreateBuffer(8, gpu.BufferUniform)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if r := buf.Write(4, []byte{1, 2, 3, 4}); r != gpu.ResultSuccess {
		t.Errorf("Write = %v, want success", r)
	}
	if r := buf.Write(6, []byte{1, 2, 3}); r == gpu.ResultSuccess {
		t.Error("out of bounds Write should fail")
	}
	if got := Bytes(buf); got[4] != 1 || got[7] != 4 {
		t.Errorf("Bytes() = %v", got)
	}
}
