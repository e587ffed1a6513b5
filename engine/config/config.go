// Package config loads engine settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/frame"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/uniform"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Window is the window section.
type Window struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Config is the engine configuration. Zero fields are filled from Default by Parse.
type Config struct {
	FramesInFlight int     `yaml:"frames_in_flight"`
	Workers        int     `yaml:"workers"`
	PackWorkers    int     `yaml:"pack_workers"`
	PresentMode    string  `yaml:"present_mode"`
	Backend        string  `yaml:"backend"`
	TickRate       float64 `yaml:"tick_rate"`
	FrameLimit     float64 `yaml:"frame_limit"`
	Profiling      bool    `yaml:"profiling"`
	LogLevel       string  `yaml:"log_level"`
	Window         Window  `yaml:"window"`
}

// Default returns the built-in configuration: three frames in flight, two
// recording workers, four pack workers, vsync, a 60 Hz tick and no frame limit.
func Default() Config {
	return Config{
		FramesInFlight: frame.DefaultFramesInFlight,
		Workers:        2,
		PackWorkers:    uniform.DefaultPackWorkers,
		PresentMode:    "vsync",
		Backend:        "webgpu",
		TickRate:       60,
		Window:         Window{Title: "oxy-frame", Width: 1280, Height: 720},
	}
}

// Load reads and parses the YAML file at path.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the parsed configuration
//   - error: an error if the file cannot be read, parsed or validated
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result. Unknown keys are rejected.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - Config: the parsed configuration
//   - error: a decode error or an ErrInvalid validation failure
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document decodes to io.EOF and leaves the defaults.
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field.
//
// Returns:
//   - error: an ErrInvalid wrapping the first bad field
func (c Config) Validate() error {
	if c.FramesInFlight < 1 || c.FramesInFlight > 8 {
		return fmt.Errorf("%w: frames_in_flight %d outside 1..8", ErrInvalid, c.FramesInFlight)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers %d < 1", ErrInvalid, c.Workers)
	}
	if c.PackWorkers < 1 {
		return fmt.Errorf("%w: pack_workers %d < 1", ErrInvalid, c.PackWorkers)
	}
	if _, err := c.PresentModeValue(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.BackendType(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("%w: tick_rate %v must be positive", ErrInvalid, c.TickRate)
	}
	if c.FrameLimit < 0 {
		return fmt.Errorf("%w: frame_limit %v is negative", ErrInvalid, c.FrameLimit)
	}
	if c.LogLevel != "" {
		if _, err := c.Level(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	if c.Window.Width < 0 || c.Window.Height < 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	return nil
}

// PresentModeValue parses PresentMode.
func (c Config) PresentModeValue() (gpu.PresentMode, error) {
	return renderer.ParsePresentMode(c.PresentMode)
}

// BackendType parses Backend.
func (c Config) BackendType() (gpu.BackendType, error) {
	return renderer.ParseBackendType(c.Backend)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// Logger returns a text logger on stderr at LogLevel, or nil when no level is set.
func (c Config) Logger() *slog.Logger {
	if c.LogLevel == "" {
		return nil
	}
	lvl, err := c.Level()
	if err != nil {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
