package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/config"
	"github.com/Carmen-Shannon/oxy-frame/engine/profiler"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/recorder"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/uniform"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/workers"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithConfig applies a validated configuration: ring size, worker counts,
// present mode, tick rate, frame limit, profiling and logging. Options given
// after WithConfig override it.
//
// Parameters:
//   - cfg: the configuration, already checked with Validate
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *engine) {
		e.framesInFlight = cfg.FramesInFlight
		e.workerCount = cfg.Workers
		if cfg.PackWorkers > 0 {
			e.uniformOptions = append(e.uniformOptions, uniform.WithPackWorkers(cfg.PackWorkers))
		}
		if mode, err := cfg.PresentModeValue(); err == nil {
			e.rendererOptions = append(e.rendererOptions, renderer.WithPresentMode(mode))
		}
		if cfg.TickRate > 0 {
			e.engineTickRate = time.Duration(float64(time.Second) / cfg.TickRate)
		}
		if cfg.FrameLimit > 0 {
			e.renderFrameLimit = time.Duration(float64(time.Second) / cfg.FrameLimit)
		}
		e.profilingEnabled = cfg.Profiling
		if l := cfg.Logger(); l != nil {
			common.SetLogger(l)
		}
	}
}

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfiler replaces the default profiler, e.g. to change its interval.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// The tick callback will be called at this rate for game logic updates.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow sets the window the engine presents to. The window becomes the
// renderer's extent source and its resize events request a swapchain resize.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithScene sets the scene drawn each frame.
//
// Parameters:
//   - s: the Scene to draw
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.source = s
	}
}

// WithSource sets any snapshot source as the frame's content.
func WithSource(src scene.Source) EngineBuilderOption {
	return func(e *engine) {
		e.source = src
	}
}

// WithFramesInFlight sets the number of frame slots.
func WithFramesInFlight(n int) EngineBuilderOption {
	return func(e *engine) {
		e.framesInFlight = n
	}
}

// WithWorkers sets the number of recording workers.
func WithWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		e.workerCount = n
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithDebugDraw registers the debug line pipeline and flushes the debug batch
// at the end of the last worker's fragment every frame. Options override the
// default WGSL recipe, e.g. with SPIR-V shaders for the Vulkan backend.
func WithDebugDraw(opts ...pipeline.PipelineBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.debugEnabled = true
		e.debugRecipe = opts
	}
}

// WithPrologue sets a callback recorded at the start of worker 0's fragment,
// e.g. a full screen background pass.
func WithPrologue(fn func(rec recorder.Recorder)) EngineBuilderOption {
	return func(e *engine) {
		e.prologue = fn
	}
}

// WithTailWork sets the single-threaded draw callback. See Engine.SetTailWork.
func WithTailWork(fn TailFunc) EngineBuilderOption {
	return func(e *engine) {
		e.tail = fn
	}
}

// WithRendererOptions forwards options to the renderer. They are applied after
// the engine's own, so they win.
func WithRendererOptions(options ...renderer.RendererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rendererOptions = append(e.rendererOptions, options...)
	}
}

// WithPoolOptions forwards options to the render worker pool.
func WithPoolOptions(options ...workers.PoolBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.poolOptions = append(e.poolOptions, options...)
	}
}

// WithPackWorkers sets how many goroutines pack instance transforms into the
// uniform ring each frame. 1 packs on the render thread.
//
// Parameters:
//   - n: the pack worker count
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPackWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		e.uniformOptions = append(e.uniformOptions, uniform.WithPackWorkers(n))
	}
}

// WithUniformOptions forwards options to the uniform ring, e.g. a binding factory.
func WithUniformOptions(options ...uniform.RingBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.uniformOptions = append(e.uniformOptions, options...)
	}
}
