package headless

import "github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"

// BackendBuilderOption is a functional option applied to a headless backend during construction.
type BackendBuilderOption func(*backend)

// WithExtent sets the initial swapchain extent.
//
// Parameters:
//   - width: surface width in pixels
//   - height: surface height in pixels
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithExtent(width, height uint32) BackendBuilderOption {
	return func(b *backend) {
		b.swapchain.extent = gpu.Extent2D{Width: width, Height: height}
	}
}

// WithImageCount sets the number of presentable images.
//
// Parameters:
//   - n: image count, values < 1 are ignored
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithImageCount(n int) BackendBuilderOption {
	return func(b *backend) {
		if n > 0 {
			b.swapchain.images = n
		}
	}
}
