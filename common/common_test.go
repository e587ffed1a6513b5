package common

import (
	"errors"
	"log/slog"
	"testing"
)

func TestCoalesce(t *testing.T) {
	if got := Coalesce(0, 0, 3, 4); got != 3 {
		t.Errorf("Coalesce = %d, want 3", got)
	}
	if got := Coalesce("", ""); got != "" {
		t.Errorf("Coalesce = %q, want empty", got)
	}
}

func TestNextPow2(t *testing.T) {
	tests := []struct {
		in, want uint64
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{1000, 1024},
		{1024, 1024},
	}
	for _, tt := range tests {
		if got := NextPow2(tt.in); got != tt.want {
			t.Errorf("NextPow2(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMul4Identity(t *testing.T) {
	m := Translation(1, 2, 3)
	if got := Mul4(Identity4(), m); got != m {
		t.Errorf("I*M = %v, want %v", got, m)
	}
	if got := Mul4(m, Identity4()); got != m {
		t.Errorf("M*I = %v, want %v", got, m)
	}
}

func TestLookAtOrigin(t *testing.T) {
	v := LookAt([3]float32{0, 0, 5}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})
	// The eye maps to the view-space origin.
	x := v[0]*0 + v[4]*0 + v[8]*5 + v[12]
	y := v[1]*0 + v[5]*0 + v[9]*5 + v[13]
	z := v[2]*0 + v[6]*0 + v[10]*5 + v[14]
	if x != 0 || y != 0 || z != 0 {
		t.Errorf("eye in view space = (%v, %v, %v), want origin", x, y, z)
	}
}

func TestLoggerDefaultsSilent(t *testing.T) {
	if Logger().Enabled(t.Context(), slog.LevelError) {
		t.Error("default logger should be disabled")
	}
	SetLogger(slog.Default())
	defer SetLogger(nil)
	if Logger() != slog.Default() {
		t.Error("SetLogger did not install logger")
	}
}

func TestFatalHandler(t *testing.T) {
	var got error
	prev := SetFatalHandler(func(err error) { got = err })
	defer SetFatalHandler(prev)

	want := errors.New("device lost")
	Fatal(want)
	if !errors.Is(got, want) {
		t.Errorf("handler got %v, want %v", got, want)
	}
}
