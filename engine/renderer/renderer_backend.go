package renderer

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

// ExtentSource reports the current drawable size of the presentation surface,
// usually the window framebuffer size.
type ExtentSource interface {
	Extent() gpu.Extent2D
}

// ExtentFunc adapts a function to ExtentSource.
type ExtentFunc func() gpu.Extent2D

// Extent calls f.
func (f ExtentFunc) Extent() gpu.Extent2D {
	return f()
}

// ParseBackendType maps a configuration name onto a gpu.BackendType.
//
// Parameters:
//   - name: "headless", "vulkan" or "webgpu" (case-insensitive)
//
// Returns:
//   - gpu.BackendType: the backend type
//   - error: an error for unknown names
func ParseBackendType(name string) (gpu.BackendType, error) {
	switch strings.ToLower(name) {
	case "headless":
		return gpu.BackendHeadless, nil
	case "vulkan", "vk":
		return gpu.BackendVulkan, nil
	case "webgpu", "wgpu":
		return gpu.BackendWebGPU, nil
	}
	return 0, fmt.Errorf("unknown backend %q", name)
}

// ParsePresentMode maps a configuration name onto a gpu.PresentMode.
//
// Parameters:
//   - name: "vsync", "uncapped" or "mailbox" (case-insensitive)
//
// Returns:
//   - gpu.PresentMode: the present mode
//   - error: an error for unknown names
func ParsePresentMode(name string) (gpu.PresentMode, error) {
	switch strings.ToLower(name) {
	case "vsync", "fifo":
		return gpu.PresentModeVSync, nil
	case "uncapped", "immediate":
		return gpu.PresentModeUncapped, nil
	case "mailbox", "triple":
		return gpu.PresentModeMailbox, nil
	}
	return 0, fmt.Errorf("unknown present mode %q", name)
}
