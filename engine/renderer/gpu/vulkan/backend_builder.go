package vulkan

import "github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"

// BackendBuilderOption configures the Vulkan backend before device creation.
type BackendBuilderOption func(*backend)

// WithValidation enables VK_LAYER_KHRONOS_validation. The layer must be installed.
func WithValidation() BackendBuilderOption {
	return func(b *backend) {
		b.validation = true
	}
}

// WithPresentMode sets the initial present mode.
func WithPresentMode(mode gpu.PresentMode) BackendBuilderOption {
	return func(b *backend) {
		b.mode = mode
	}
}

// WithSetLayouts declares the descriptor sets of the shared pipeline layout,
// set i taking layouts[i]. Without it pipelines have no descriptor sets.
//
// Parameters:
//   - layouts: one entry per descriptor set, in set order
//
// Returns:
//   - BackendBuilderOption: the option
func WithSetLayouts(layouts ...SetLayout) BackendBuilderOption {
	return func(b *backend) {
		b.setLayouts = layouts
	}
}

// WithMaxSets sets how many descriptor sets of each layout BindBuffers may allocate.
func WithMaxSets(n uint32) BackendBuilderOption {
	return func(b *backend) {
		if n > 0 {
			b.maxSets = n
		}
	}
}

// WithAppName sets the application name reported to the driver.
func WithAppName(name string) BackendBuilderOption {
	return func(b *backend) {
		b.appName = name
	}
}
