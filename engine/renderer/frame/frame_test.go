package frame

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu/headless"
)

// =============================================================================
// FenceRing
// =============================================================================

func TestFenceRing_Allocation(t *testing.T) {
	b := headless.NewBackend()
	ring, err := NewFenceRing(b, 3, 2)
	if err != nil {
		t.Fatalf("NewFenceRing: %v", err)
	}
	defer ring.Destroy()

	if ring.Size() != 3 {
		t.Errorf("Size() = %d, want 3", ring.Size())
	}
	for i := 0; i < ring.Size(); i++ {
		s := ring.Slot(i)
		if s.Index != i {
			t.Errorf("slot %d Index = %d", i, s.Index)
		}
		if len(s.Fragments) != 2 || s.Tail == nil || s.Primary == nil {
			t.Errorf("slot %d buffers = %d fragments tail=%v primary=%v", i, len(s.Fragments), s.Tail != nil, s.Primary != nil)
		}
		if s.Primary.Level() != gpu.LevelPrimary || s.Tail.Level() != gpu.LevelFragment {
			t.Errorf("slot %d has wrong buffer levels", i)
		}
	}
	for _, f := range b.Fences() {
		if !f.Signaled() {
			t.Errorf("fence %d not created signaled", f.ID())
		}
	}
}

func TestFenceRing_RotatesThroughSlots(t *testing.T) {
	b := headless.NewBackend()
	ring, _ := NewFenceRing(b, 3, 1)

	var order []int
	for i := 0; i < 7; i++ {
		s, err := ring.Wait()
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		order = append(order, s.Index)
		ring.Reset()
		b.Submit(s.Primary, nil, nil, s.Fence)
		ring.Advance()
	}

	want := []int{0, 1, 2, 0, 1, 2, 0}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("slot order = %v, want %v", order, want)
		}
	}
	if ring.Waits(0) != 3 || ring.Waits(1) != 2 || ring.Waits(2) != 2 {
		t.Errorf("waits = %d/%d/%d, want 3/2/2", ring.Waits(0), ring.Waits(1), ring.Waits(2))
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestFenceRing_RebuildRecreatesSignaled(t *testing.T) {
	b := headless.NewBackend()
	ring, _ := NewFenceRing(b, 2, 1)
	ring.Wait()
	ring.Reset()

	before := ring.Current().Fence
	if err := ring.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	after := ring.Current().Fence
	if before == after {
		t.Error("Rebuild kept the old fence")
	}
	if _, err := ring.Wait(); err != nil {
		t.Errorf("Wait after Rebuild: %v", err)
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestFenceRing_ContractPanics(t *testing.T) {
	b := headless.NewBackend()
	tests := []struct {
		name          string
		size, workers int
	}{
		{"zero slots", 0, 1},
		{"zero workers", 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			NewFenceRing(b, tt.size, tt.workers)
		})
	}
}

// =============================================================================
// SwapSurface
// =============================================================================

func newSurface(t *testing.T) (headless.Backend, FenceRing, SwapSurface) {
	t.Helper()
	b := headless.NewBackend(headless.WithExtent(640, 480))
	ring, err := NewFenceRing(b, 2, 1)
	if err != nil {
		t.Fatalf("NewFenceRing: %v", err)
	}
	return b, ring, NewSwapSurface(b.Swapchain())
}

func TestSwapSurface_AcquireResults(t *testing.T) {
	tests := []struct {
		name      string
		script    gpu.Result
		wantOK    bool
		wantErr   bool
		wantStale bool
	}{
		{"success", gpu.ResultSuccess, true, false, false},
		{"suboptimal", gpu.ResultSuboptimal, true, false, true},
		{"out of date", gpu.ResultOutOfDate, false, false, true},
		{"device lost", gpu.ResultDeviceLost, false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ring, surface := newSurface(t)
			b.HeadlessSwapchain().QueueAcquire(tt.script)

			_, ok, err := surface.Acquire(ring.Current())
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, gpu.ErrDeviceLost) {
				t.Errorf("err = %v, want ErrDeviceLost", err)
			}
			if surface.NeedsResize() != tt.wantStale {
				t.Errorf("NeedsResize() = %v, want %v", surface.NeedsResize(), tt.wantStale)
			}
		})
	}
}

func TestSwapSurface_PresentStale(t *testing.T) {
	b, ring, surface := newSurface(t)
	s := ring.Current()
	image, ok, _ := surface.Acquire(s)
	if !ok {
		t.Fatal("Acquire failed")
	}
	s.Primary.Begin(nil)
	s.Primary.End()
	b.Submit(s.Primary, s.ImageAcquired, s.RenderComplete, s.Fence)

	b.HeadlessSwapchain().QueuePresent(gpu.ResultOutOfDate)
	stale, err := surface.Present(s, image)
	if err != nil || !stale {
		t.Errorf("Present = (%v, %v), want (true, nil)", stale, err)
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestSwapSurface_ResizeIdempotent(t *testing.T) {
	b, _, surface := newSurface(t)
	sc := b.HeadlessSwapchain()

	surface.Invalidate()
	extent := gpu.Extent2D{Width: 1024, Height: 768}
	if did, err := surface.Resize(extent); !did || err != nil {
		t.Fatalf("first Resize = (%v, %v), want (true, nil)", did, err)
	}
	if did, err := surface.Resize(extent); did || err != nil {
		t.Errorf("second Resize = (%v, %v), want (false, nil)", did, err)
	}
	if sc.Recreates() != 1 {
		t.Errorf("Recreates() = %d, want 1", sc.Recreates())
	}
	if surface.Extent() != extent {
		t.Errorf("Extent() = %v, want %v", surface.Extent(), extent)
	}
}

func TestSwapSurface_EmptyExtentDeferred(t *testing.T) {
	b, _, surface := newSurface(t)
	sc := b.HeadlessSwapchain()

	if did, _ := surface.Resize(gpu.Extent2D{Width: 0, Height: 480}); did {
		t.Error("Resize with empty extent should be deferred")
	}
	if !surface.NeedsResize() {
		t.Error("deferred resize should keep NeedsResize set")
	}
	// Same extent as the current swapchain, but the deferred flag forces a rebuild.
	if did, err := surface.Resize(gpu.Extent2D{Width: 640, Height: 480}); !did || err != nil {
		t.Errorf("Resize after restore = (%v, %v), want (true, nil)", did, err)
	}
	if sc.Recreates() != 1 || surface.NeedsResize() {
		t.Errorf("Recreates() = %d NeedsResize() = %v, want 1 false", sc.Recreates(), surface.NeedsResize())
	}
}
