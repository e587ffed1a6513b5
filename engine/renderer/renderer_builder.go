package renderer

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPipelines registers recipes in the renderer's pipeline cache during construction.
//
// Parameters:
//   - recipes: the pipeline recipes to build
//
// Returns:
//   - RendererBuilderOption: a function that applies the pipelines option to a renderer
func WithPipelines(recipes ...gpu.PipelineRecipe) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingRecipes = append(r.pendingRecipes, recipes...)
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync, Uncapped or Mailbox)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode gpu.PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithFramesInFlight sets how many frames the CPU may record ahead of the GPU.
// Values below 1 are ignored.
//
// Parameters:
//   - n: the number of frame slots
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithFramesInFlight(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.framesInFlight = n
		}
	}
}

// WithWorkers sets the number of fragment buffers allocated per slot, one per
// render worker. Values below 1 are ignored.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithExtentSource sets where Resize reads the surface size from. Defaults to
// the swapchain's own extent.
//
// Parameters:
//   - src: the extent source
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithExtentSource(src ExtentSource) RendererBuilderOption {
	return func(r *renderer) {
		r.extent = src
	}
}

// WithClearValues sets the colour and depth the render pass clears to.
//
// Parameters:
//   - clear: the clear values
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithClearValues(clear gpu.ClearValues) RendererBuilderOption {
	return func(r *renderer) {
		r.clear = clear
	}
}

// WithResizeCallback registers fn to run after every swapchain rebuild, with the new extent.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithResizeCallback(fn func(gpu.Extent2D)) RendererBuilderOption {
	return func(r *renderer) {
		if fn != nil {
			r.onResize = append(r.onResize, fn)
		}
	}
}
