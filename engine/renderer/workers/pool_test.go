package workers

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu/headless"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/recorder"
)

type fixture struct {
	backend   headless.Backend
	primary   gpu.CommandBuffer
	fragments []gpu.CommandBuffer
	ctx       gpu.RenderPassContext
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()
	b := headless.NewBackend()
	primary, _ := b.AllocateCommandBuffers(gpu.LevelPrimary, 1)
	fragments, _ := b.AllocateCommandBuffers(gpu.LevelFragment, workers)
	return &fixture{backend: b, primary: primary[0], fragments: fragments, ctx: b.Swapchain().Target(0)}
}

func (f *fixture) run(t *testing.T, p Pool, job Job) FrameStats {
	t.Helper()
	job.Context = f.ctx
	f.primary.Begin(nil)
	f.primary.BeginRenderPass(f.ctx, gpu.DefaultClear)
	p.BeginFrame(job, f.fragments)
	stats, err := p.ProcessFrame(f.primary)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	f.primary.EndRenderPass()
	f.primary.End()
	return stats
}

// drawIndex records a single draw whose firstInstance is the item's global index.
func drawIndex(rec recorder.Recorder, _, _, global int) {
	rec.Draw(3, 1, 0, uint32(global))
}

func mergedInstances(cb gpu.CommandBuffer) []uint32 {
	var out []uint32
	for _, c := range headless.Commands(cb) {
		if c.IsDraw() {
			out = append(out, c.FirstInstance)
		}
	}
	return out
}

// =============================================================================
// Merge order
// =============================================================================

func TestPool_MergeIsDeterministicAndComplete(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		groups  []int
	}{
		{"even", 4, []int{8, 8}},
		{"uneven groups", 3, []int{5, 0, 3, 8}},
		{"fewer items than workers", 4, []int{2}},
		{"empty", 2, nil},
		{"single worker", 1, []int{3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.workers)
			p := NewPool(tt.workers)
			defer p.Stop()

			for frame := 0; frame < 3; frame++ {
				stats := f.run(t, p, Job{Groups: tt.groups, DrawItem: drawIndex})

				got := mergedInstances(f.primary)
				total := 0
				for _, g := range tt.groups {
					total += g
				}
				if len(got) != total || stats.Items != total {
					t.Fatalf("frame %d: %d draws, %d items, want %d", frame, len(got), stats.Items, total)
				}
				for i, v := range got {
					if v != uint32(i) {
						t.Fatalf("frame %d: merged order = %v, want ascending", frame, got)
					}
				}
				if stats.Draws.DrawCalls != uint64(total) {
					t.Errorf("frame %d: DrawCalls = %d, want %d", frame, stats.Draws.DrawCalls, total)
				}
			}
			if v := f.backend.Violations(); len(v) != 0 {
				t.Errorf("unexpected violations: %v", v)
			}
		})
	}
}

func TestPool_FragmentOwnership(t *testing.T) {
	f := newFixture(t, 3)
	p := NewPool(3)
	defer p.Stop()

	f.run(t, p, Job{Groups: []int{9}, DrawItem: drawIndex})

	for id, frag := range f.fragments {
		want := []uint32{uint32(id * 3), uint32(id*3 + 1), uint32(id*3 + 2)}
		got := mergedInstances(frag)
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("fragment %d draws = %v, want %v", id, got, want)
		}
		if headless.Inherited(frag) == nil {
			t.Errorf("fragment %d begun without inherited render pass", id)
		}
	}
}

// =============================================================================
// Frame-global draws
// =============================================================================

func TestPool_PrologueEpilogueOnce(t *testing.T) {
	f := newFixture(t, 4)
	p := NewPool(4)
	defer p.Stop()

	var prologues, epilogues atomic.Int32
	job := Job{
		Groups:   []int{10},
		DrawItem: drawIndex,
		Prologue: func(rec recorder.Recorder) {
			prologues.Add(1)
			rec.Draw(6, 1, 0, 1000)
		},
		Epilogue: func(rec recorder.Recorder) {
			epilogues.Add(1)
			rec.Draw(2, 1, 0, 2000)
		},
	}
	f.run(t, p, job)

	if prologues.Load() != 1 || epilogues.Load() != 1 {
		t.Errorf("prologue/epilogue = %d/%d, want 1/1", prologues.Load(), epilogues.Load())
	}
	got := mergedInstances(f.primary)
	if got[0] != 1000 || got[len(got)-1] != 2000 {
		t.Errorf("merged = %v, want prologue first and epilogue last", got)
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestPool_StatesDoneAfterProcessFrame(t *testing.T) {
	f := newFixture(t, 3)
	p := NewPool(3)
	defer p.Stop()

	for id := 0; id < 3; id++ {
		if p.State(id) != StateIdle {
			t.Errorf("State(%d) = %v before first frame, want idle", id, p.State(id))
		}
	}
	f.run(t, p, Job{Groups: []int{5}, DrawItem: drawIndex})
	for id := 0; id < 3; id++ {
		if p.State(id) != StateDone {
			t.Errorf("State(%d) = %v, want done", id, p.State(id))
		}
	}
}

func TestPool_ReentrantBeginFramePanics(t *testing.T) {
	f := newFixture(t, 2)
	p := NewPool(2)
	defer p.Stop()

	p.BeginFrame(Job{Context: f.ctx}, f.fragments)
	defer func() {
		if recover() == nil {
			t.Error("second BeginFrame should panic")
		}
		f.primary.Begin(nil)
		f.primary.BeginRenderPass(f.ctx, gpu.DefaultClear)
		p.ProcessFrame(f.primary)
	}()
	p.BeginFrame(Job{Context: f.ctx}, f.fragments)
}

func TestPool_ProcessWithoutBeginPanics(t *testing.T) {
	p := NewPool(1)
	defer p.Stop()
	defer func() {
		if recover() == nil {
			t.Error("ProcessFrame without BeginFrame should panic")
		}
	}()
	p.ProcessFrame(nil)
}

func TestPool_WorkerPanicReraised(t *testing.T) {
	f := newFixture(t, 2)
	p := NewPool(2)
	defer p.Stop()

	f.primary.Begin(nil)
	f.primary.BeginRenderPass(f.ctx, gpu.DefaultClear)
	p.BeginFrame(Job{
		Context: f.ctx,
		Groups:  []int{4},
		DrawItem: func(rec recorder.Recorder, _, _, global int) {
			if global == 3 {
				panic("bad item")
			}
		},
	}, f.fragments)

	defer func() {
		if recover() == nil {
			t.Error("worker panic should surface from ProcessFrame")
		}
	}()
	p.ProcessFrame(f.primary)
}

func TestPool_FragmentBeginFailure(t *testing.T) {
	f := newFixture(t, 2)
	p := NewPool(2)
	defer p.Stop()

	// Headless buffers never fail Begin.
	frags := []gpu.CommandBuffer{f.fragments[0], failingBuffer{f.fragments[1]}}
	f.primary.Begin(nil)
	f.primary.BeginRenderPass(f.ctx, gpu.DefaultClear)
	p.BeginFrame(Job{Context: f.ctx, Groups: []int{2}, DrawItem: drawIndex}, frags)

	_, err := p.ProcessFrame(f.primary)
	if !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("ProcessFrame err = %v, want device lost", err)
	}
}

func TestPool_WaitThenMerge(t *testing.T) {
	f := newFixture(t, 3)
	p := NewPool(3)
	defer p.Stop()

	f.primary.Begin(nil)
	f.primary.BeginRenderPass(f.ctx, gpu.DefaultClear)
	p.BeginFrame(Job{Context: f.ctx, Groups: []int{6}, DrawItem: drawIndex}, f.fragments)

	stats, err := p.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if stats.Draws.DrawCalls != 6 {
		t.Errorf("DrawCalls = %d, want 6", stats.Draws.DrawCalls)
	}
	for id := 0; id < 3; id++ {
		if p.State(id) != StateDone {
			t.Errorf("State(%d) after Wait = %v, want done", id, p.State(id))
		}
	}
	if got := mergedInstances(f.primary); len(got) != 0 {
		t.Errorf("primary draws before Merge = %v, want none", got)
	}

	p.Merge(f.primary)
	if got := mergedInstances(f.primary); fmt.Sprint(got) != "[0 1 2 3 4 5]" {
		t.Errorf("primary draws after Merge = %v, want [0 1 2 3 4 5]", got)
	}
	f.primary.EndRenderPass()
	f.primary.End()
}

func TestPool_MergeWithoutWaitPanics(t *testing.T) {
	f := newFixture(t, 1)
	p := NewPool(1)
	defer p.Stop()
	defer func() {
		if recover() == nil {
			t.Error("Merge without Wait should panic")
		}
	}()
	p.Merge(f.primary)
}

func TestPool_StopIdempotent(t *testing.T) {
	p := NewPool(3)
	p.Stop()
	p.Stop()
}

type failingBuffer struct {
	gpu.CommandBuffer
}

func (failingBuffer) Begin(*gpu.RenderPassContext) gpu.Result {
	return gpu.ResultDeviceLost
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkPool_Frame(b *testing.B) {
	be := headless.NewBackend()
	primary, _ := be.AllocateCommandBuffers(gpu.LevelPrimary, 1)
	fragments, _ := be.AllocateCommandBuffers(gpu.LevelFragment, 4)
	ctx := be.Swapchain().Target(0)
	p := NewPool(4)
	defer p.Stop()

	job := Job{Context: ctx, Groups: []int{256, 128, 512}, DrawItem: drawIndex}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		primary[0].Begin(nil)
		primary[0].BeginRenderPass(ctx, gpu.DefaultClear)
		p.BeginFrame(job, fragments)
		p.ProcessFrame(primary[0])
		primary[0].EndRenderPass()
		primary[0].End()
	}
}
