package recorder

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu/headless"
)

func newFragment(t *testing.T, b headless.Backend) (Recorder, gpu.RenderPassContext) {
	t.Helper()
	cbs, err := b.AllocateCommandBuffers(gpu.LevelFragment, 1)
	if err != nil {
		t.Fatalf("AllocateCommandBuffers: %v", err)
	}
	return New(cbs[0]), b.Swapchain().Target(0)
}

func pipelineNamed(t *testing.T, b headless.Backend, name string) gpu.Pipeline {
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

func countOps(cmds []headless.Command, op headless.Op) int {
	n := 0
	for _, c := range cmds {
		if c.Op == op {
			n++
		}
	}
	return n
}

// =============================================================================
// Binding
// =============================================================================

func TestRecorder_RedundantPipelineBindSkipped(t *testing.T) {
	b := headless.NewBackend()
	rec, ctx := newFragment(t, b)
	p := pipelineNamed(t, b, "opaque")
	q := pipelineNamed(t, b, "overlay")

	rec.Begin(&ctx)
	rec.BindPipeline(p)
	rec.BindPipeline(p)
	rec.BindPipeline(q)
	rec.BindPipeline(q)
	rec.BindPipeline(p)
	rec.End()

	if got := countOps(headless.Commands(rec.Buffer()), headless.OpBindPipeline); got != 3 {
		t.Errorf("pipeline binds = %d, want 3", got)
	}
}

func TestRecorder_BeginResetsBoundState(t *testing.T) {
	b := headless.NewBackend()
	rec, ctx := newFragment(t, b)
	p := pipelineNamed(t, b, "opaque")

	rec.Begin(&ctx)
	rec.BindPipeline(p)
	rec.End()

	rec.Begin(&ctx)
	rec.BindPipeline(p)
	rec.End()

	if got := countOps(headless.Commands(rec.Buffer()), headless.OpBindPipeline); got != 1 {
		t.Errorf("pipeline binds after re-begin = %d, want 1", got)
	}
}

func TestRecorder_FragmentBeginCoversExtent(t *testing.T) {
	b := headless.NewBackend(headless.WithExtent(800, 600))
	cbs, _ := b.AllocateCommandBuffers(gpu.LevelFragment, 1)
	rec := New(cbs[0], WithFlipY(true))
	ctx := b.Swapchain().Target(0)

	rec.Begin(&ctx)
	rec.End()

	cmds := headless.Commands(rec.Buffer())
	if len(cmds) != 2 || cmds[0].Op != headless.OpSetViewport || cmds[1].Op != headless.OpSetScissor {
		t.Fatalf("commands = %v, want viewport then scissor", cmds)
	}
	if vp := cmds[0].Viewport; vp.Width != 800 || vp.Height != 600 || !vp.FlipY {
		t.Errorf("viewport = %+v, want 800x600 flipped", vp)
	}
	if rec.Extent() != (gpu.Extent2D{Width: 800, Height: 600}) {
		t.Errorf("Extent() = %v", rec.Extent())
	}
}

// =============================================================================
// Draws and stats
// =============================================================================

func TestRecorder_DrawMesh(t *testing.T) {
	b := headless.NewBackend()
	rec, ctx := newFragment(t, b)
	vb, _ := b.CreateBuffer(64, gpu.BufferVertex)
	ib, _ := b.CreateBuffer(64, gpu.BufferIndex)

	indexed := gpu.Mesh{Vertex: vb, Index: ib, VertexCount: 24, IndexCount: 36}
	plain := gpu.Mesh{Vertex: vb, VertexCount: 3}

	rec.Begin(&ctx)
	rec.DrawMesh(indexed, 1, 7)
	rec.DrawMesh(indexed, 2, 8)
	rec.DrawMesh(plain, 1, 10)
	rec.DrawMesh(plain, 0, 11)
	rec.End()

	cmds := headless.Commands(rec.Buffer())
	if got := countOps(cmds, headless.OpDrawIndexed); got != 2 {
		t.Errorf("indexed draws = %d, want 2", got)
	}
	if got := countOps(cmds, headless.OpDraw); got != 1 {
		t.Errorf("plain draws = %d, want 1", got)
	}
	if got := countOps(cmds, headless.OpBindIndexBuffer); got != 1 {
		t.Errorf("index binds = %d, want 1", got)
	}
	if got := countOps(cmds, headless.OpBindVertexBuffers); got != 2 {
		t.Errorf("vertex binds = %d, want 2", got)
	}

	var first []uint32
	for _, c := range cmds {
		if c.IsDraw() {
			first = append(first, c.FirstInstance)
		}
	}
	want := []uint32{7, 8, 10}
	for i := range want {
		if first[i] != want[i] {
			t.Errorf("draw %d firstInstance = %d, want %d", i, first[i], want[i])
		}
	}

	stats := rec.Stats()
	if stats.DrawCalls != 3 || stats.Vertices != 24+24+3 {
		t.Errorf("Stats() = %+v, want 3 draws 51 vertices", stats)
	}
}

func TestCounters_ConcurrentAdd(t *testing.T) {
	var c Counters
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Add(1, 3)
			}
		}()
	}
	wg.Wait()

	if got := c.Load(); got.DrawCalls != 8000 || got.Vertices != 24000 {
		t.Errorf("Load() = %+v, want 8000/24000", got)
	}
	if got := c.Swap(); got.DrawCalls != 8000 {
		t.Errorf("Swap() = %+v, want 8000 draws", got)
	}
	if got := c.Load(); got != (Stats{}) {
		t.Errorf("Load() after Swap = %+v, want zero", got)
	}
}

func TestRecorder_FeedsGlobalCounters(t *testing.T) {
	Global().Swap()
	b := headless.NewBackend()
	rec, ctx := newFragment(t, b)

	rec.Begin(&ctx)
	rec.Draw(3, 1, 0, 0)
	rec.DrawIndexed(6, 1, 0, 0, 0)
	rec.End()

	if got := Global().Swap(); got.DrawCalls != 2 || got.Vertices != 9 {
		t.Errorf("Global().Swap() = %+v, want 2 draws 9 vertices", got)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkRecorder_DrawMesh(b *testing.B) {
	be := headless.NewBackend()
	cbs, _ := be.AllocateCommandBuffers(gpu.LevelFragment, 1)
	rec := New(cbs[0])
	ctx := be.Swapchain().Target(0)
	vb, _ := be.CreateBuffer(64, gpu.BufferVertex)
	mesh := gpu.Mesh{Vertex: vb, VertexCount: 36}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%1024 == 0 {
			rec.Begin(&ctx)
		}
		rec.DrawMesh(mesh, 1, uint32(i))
		if i%1024 == 1023 {
			rec.End()
		}
	}
}
