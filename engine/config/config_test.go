package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/uniform"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.FramesInFlight != 3 || cfg.Workers != 2 {
		t.Errorf("defaults = %d frames %d workers, want 3 and 2", cfg.FramesInFlight, cfg.Workers)
	}
	if cfg.PackWorkers != uniform.DefaultPackWorkers {
		t.Errorf("PackWorkers = %d, want %d", cfg.PackWorkers, uniform.DefaultPackWorkers)
	}
	if cfg.Logger() != nil {
		t.Error("Logger() without a level should be nil")
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
frames_in_flight: 2
workers: 6
pack_workers: 8
present_mode: mailbox
backend: vulkan
tick_rate: 120
frame_limit: 144
profiling: true
log_level: debug
window:
  title: demo
  width: 800
  height: 600
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.FramesInFlight != 2 || cfg.Workers != 6 || cfg.TickRate != 120 || cfg.FrameLimit != 144 || !cfg.Profiling {
		t.Errorf("Parse = %+v", cfg)
	}
	if cfg.PackWorkers != 8 {
		t.Errorf("PackWorkers = %d, want 8", cfg.PackWorkers)
	}
	if pm, _ := cfg.PresentModeValue(); pm != gpu.PresentModeMailbox {
		t.Errorf("PresentModeValue() = %v, want mailbox", pm)
	}
	if bt, _ := cfg.BackendType(); bt != gpu.BackendVulkan {
		t.Errorf("BackendType() = %v, want vulkan", bt)
	}
	if lvl, _ := cfg.Level(); lvl != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", lvl)
	}
	if cfg.Window != (Window{Title: "demo", Width: 800, Height: 600}) {
		t.Errorf("Window = %+v", cfg.Window)
	}
}

func TestParse_EmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) = %v", err)
	}
	if cfg != Default() {
		t.Errorf("Parse(nil) = %+v, want defaults", cfg)
	}
}

func TestParse_PartialOverride(t *testing.T) {
	cfg, err := Parse([]byte("workers: 4\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 4 || cfg.FramesInFlight != 3 {
		t.Errorf("Parse = %+v, want workers 4 frames 3", cfg)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		invalid bool
	}{
		{"zero frames", "frames_in_flight: 0", true},
		{"too many frames", "frames_in_flight: 9", true},
		{"zero workers", "workers: 0", true},
		{"zero pack workers", "pack_workers: 0", true},
		{"bad present mode", "present_mode: sometimes", true},
		{"bad backend", "backend: metal", true},
		{"zero tick", "tick_rate: 0", true},
		{"negative limit", "frame_limit: -1", true},
		{"bad level", "log_level: loud", true},
		{"unknown key", "colour: blue", false},
		{"bad yaml", "workers: [", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse should fail")
			}
			if got := errors.Is(err, ErrInvalid); got != tt.invalid {
				t.Errorf("errors.Is(%v, ErrInvalid) = %v, want %v", err, got, tt.invalid)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("workers: 3\nbackend: headless\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 3 || cfg.Backend != "headless" {
		t.Errorf("Load = %+v", cfg)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) = %v, want not exist", err)
	}
}
