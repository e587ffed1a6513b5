package uniform

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu/headless"
)

// =============================================================================
// Helpers
// =============================================================================

type grid struct {
	sizes []int
}

func (g grid) Sizes() []int { return g.sizes }

// Transform encodes (group, local) into the translation column.
func (g grid) Transform(group, local int) common.Mat4 {
	return common.Translation(float32(group), float32(local), 1)
}

func instanceXY(t *testing.T, data []byte, i int) (float32, float32) {
	t.Helper()
	base := i * InstanceStride
	x := math.Float32frombits(binary.LittleEndian.Uint32(data[base+12*4:]))
	y := math.Float32frombits(binary.LittleEndian.Uint32(data[base+13*4:]))
	return x, y
}

// =============================================================================
// Upload
// =============================================================================

func TestRing_UploadLayout(t *testing.T) {
	tests := []struct {
		name    string
		workers int
	}{
		{"inline", 0},
		{"parallel", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := headless.NewBackend()
			r := NewRing(b, 3, WithPackWorkers(tt.workers))
			defer r.Destroy()

			src := grid{sizes: []int{3, 0, 2, 5}}
			if err := r.Upload(1, []byte{1, 2, 3, 4}, []byte{5, 6}, src); err != nil {
				t.Fatalf("Upload: %v", err)
			}

			s := r.Slot(1)
			if s.Count() != 10 {
				t.Errorf("Count() = %d, want 10", s.Count())
			}
			data := headless.Bytes(s.Instances)
			want := [][2]float32{{0, 0}, {0, 1}, {0, 2}, {2, 0}, {2, 1}, {3, 0}, {3, 1}, {3, 2}, {3, 3}, {3, 4}}
			for i, w := range want {
				x, y := instanceXY(t, data, i)
				if x != w[0] || y != w[1] {
					t.Errorf("instance %d = (%v, %v), want (%v, %v)", i, x, y, w[0], w[1])
				}
			}
			if got := headless.Bytes(s.Camera); got[0] != 1 || got[3] != 4 {
				t.Errorf("camera bytes = %v", got)
			}
		})
	}
}

func TestRing_PackWorkers(t *testing.T) {
	tests := []struct {
		name    string
		options []RingBuilderOption
		want    int
	}{
		{"default", nil, DefaultPackWorkers},
		{"explicit", []RingBuilderOption{WithPackWorkers(6)}, 6},
		{"inline", []RingBuilderOption{WithPackWorkers(1)}, 1},
		{"zero", []RingBuilderOption{WithPackWorkers(0)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing(headless.NewBackend(), 2, tt.options...)
			defer r.Destroy()
			if got := r.PackWorkers(); got != tt.want {
				t.Errorf("PackWorkers() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRing_SlotsAreIndependent(t *testing.T) {
	b := headless.NewBackend()
	r := NewRing(b, 2)
	defer r.Destroy()

	if err := r.Upload(0, []byte{1}, nil, grid{sizes: []int{1}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Upload(1, []byte{2}, nil, grid{sizes: []int{1}}); err != nil {
		t.Fatal(err)
	}
	if r.Slot(0).Camera == r.Slot(1).Camera {
		t.Error("slots share a camera buffer")
	}
	if got := headless.Bytes(r.Slot(0).Camera)[0]; got != 1 {
		t.Errorf("slot 0 camera = %d, want 1", got)
	}
}

func TestRing_InstanceCapacityGrowth(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, MinInstanceCapacity},
		{10, MinInstanceCapacity},
		{64, 64},
		{65, 128},
		{1000, 1024},
	}

	for _, tt := range tests {
		b := headless.NewBackend()
		r := NewRing(b, 1)
		if err := r.Upload(0, nil, nil, grid{sizes: []int{tt.total}}); err != nil {
			t.Fatalf("Upload(%d): %v", tt.total, err)
		}
		if got := r.Slot(0).Capacity(); got != tt.want {
			t.Errorf("Capacity() after %d = %d, want %d", tt.total, got, tt.want)
		}
		r.Destroy()
	}
}

func TestRing_BindingRebuiltOnGrowth(t *testing.T) {
	b := headless.NewBackend()
	calls := 0
	r := NewRing(b, 1, WithBindingFactory(func(slot int, s *Slot) (gpu.DescriptorSet, error) {
		calls++
		return calls, nil
	}))
	defer r.Destroy()

	for _, total := range []int{4, 8, 200} {
		if err := r.Upload(0, []byte{1}, []byte{1}, grid{sizes: []int{total}}); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 2 {
		t.Errorf("binding factory calls = %d, want 2", calls)
	}
	if r.Slot(0).Binding != 2 {
		t.Errorf("Binding = %v, want 2", r.Slot(0).Binding)
	}
}

func TestRing_BindingError(t *testing.T) {
	b := headless.NewBackend()
	boom := errors.New("boom")
	r := NewRing(b, 1, WithBindingFactory(func(int, *Slot) (gpu.DescriptorSet, error) {
		return nil, boom
	}))
	defer r.Destroy()

	if err := r.Upload(0, nil, nil, nil); !errors.Is(err, boom) {
		t.Errorf("Upload error = %v, want %v", err, boom)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkRing_Upload(b *testing.B) {
	backend := headless.NewBackend()
	r := NewRing(backend, 3, WithPackWorkers(4))
	defer r.Destroy()
	src := grid{sizes: []int{2500, 2500, 2500, 2500}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.Upload(i%3, nil, nil, src); err != nil {
			b.Fatal(err)
		}
	}
}
