package gpu

import (
	"errors"
	"testing"
)

func TestResultClassification(t *testing.T) {
	tests := []struct {
		r            Result
		stale, fatal bool
	}{
		{ResultSuccess, false, false},
		{ResultSuboptimal, true, false},
		{ResultOutOfDate, true, false},
		{ResultDeviceLost, false, true},
		{ResultOutOfMemory, false, true},
		{ResultTimeout, false, true},
		{ResultUnknown, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.r.String(), func(t *testing.T) {
			if got := tt.r.Stale(); got != tt.stale {
				t.Errorf("Stale() = %v, want %v", got, tt.stale)
			}
			if got := tt.r.Fatal(); got != tt.fatal {
				t.Errorf("Fatal() = %v, want %v", got, tt.fatal)
			}
		})
	}
}

func TestResultErr(t *testing.T) {
	if err := ResultSuccess.Err("submit"); err != nil {
		t.Errorf("Success.Err = %v, want nil", err)
	}

	err := ResultDeviceLost.Err("submit")
	if !errors.Is(err, ErrDeviceLost) {
		t.Errorf("errors.Is(%v, ErrDeviceLost) = false", err)
	}
	if errors.Is(err, ErrOutOfDate) {
		t.Errorf("device lost should not match ErrOutOfDate")
	}
	if got, want := err.Error(), "gpu: submit: device lost"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var re *ResultError
	if !errors.As(ResultSuboptimal.Err("present"), &re) || re.Op != "present" {
		t.Errorf("errors.As did not recover ResultError")
	}
	if !errors.Is(ResultSuboptimal.Err("present"), ErrOutOfDate) {
		t.Errorf("suboptimal should match ErrOutOfDate")
	}
}

func TestExtent(t *testing.T) {
	if !(Extent2D{Width: 0, Height: 10}).Empty() {
		t.Error("zero width should be empty")
	}
	if got := (Extent2D{Width: 200, Height: 100}).Aspect(); got != 2 {
		t.Errorf("Aspect() = %v, want 2", got)
	}
	if got := (Extent2D{}).Aspect(); got != 1 {
		t.Errorf("empty Aspect() = %v, want 1", got)
	}
}

func TestRecipeValidate(t *testing.T) {
	valid := PipelineRecipe{
		Name:     "mesh",
		Format:   ShaderWGSL,
		Vertex:   ShaderStage{Code: []byte("vs"), Entry: "vs_main"},
		Fragment: ShaderStage{Code: []byte("fs"), Entry: "fs_main"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(r *PipelineRecipe)
	}{
		{"no name", func(r *PipelineRecipe) { r.Name = "" }},
		{"no fragment", func(r *PipelineRecipe) { r.Fragment.Code = nil }},
		{"no entry", func(r *PipelineRecipe) { r.Vertex.Entry = "" }},
		{"unaligned spirv", func(r *PipelineRecipe) { r.Format = ShaderSPIRV; r.Vertex.Code = []byte{1, 2, 3} }},
		{"overlay writes depth", func(r *PipelineRecipe) { r.Kind = PipelineOverlay; r.DepthWrite = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			if err := r.Validate(); !errors.Is(err, ErrInvalidRecipe) {
				t.Errorf("Validate() = %v, want ErrInvalidRecipe", err)
			}
		})
	}
}
