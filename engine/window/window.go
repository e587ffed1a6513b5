// Package window owns the GLFW window: it reports the drawable extent the
// renderer sizes its swapchain to and forwards resize and key events.
package window

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window is the platform window the engine presents into.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	// A minimised window reports 0x0.
	//
	// Parameters:
	//   - callback: function receiving the new framebuffer extent
	SetResizeCallback(callback func(extent gpu.Extent2D))

	// SetKeyDownCallback sets the function called when a key is pressed or repeats.
	//
	// Parameters:
	//   - callback: function receiving the GLFW key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the function called when a key is released.
	//
	// Parameters:
	//   - callback: function receiving the GLFW key code
	SetKeyUpCallback(callback func(keyCode uint32))

	// Extent returns the framebuffer size in pixels. Safe to call from any goroutine.
	Extent() gpu.Extent2D

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// VulkanExtensions returns the instance extensions GLFW needs to present with Vulkan.
	VulkanExtensions() []string

	// VulkanSurface creates a VkSurfaceKHR for this window on instance.
	//
	// Parameters:
	//   - instance: the VkInstance handle
	//
	// Returns:
	//   - uintptr: the surface handle
	//   - error: an error if the surface could not be created
	VulkanSurface(instance any) (uintptr, error)

	// IsRunning returns true if the window is still active.
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// ProcessMessages runs the window message loop on the calling goroutine,
	// which must be the one that created the window. Blocks until the window is
	// closed. Calls the update callback each iteration.
	ProcessMessages()
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	mu *sync.Mutex

	title string

	maxWidth  int
	maxHeight int
	minWidth  int
	minHeight int

	// width and height are the framebuffer size, written by GLFW callbacks on
	// the window goroutine and read by the render goroutine.
	width  int
	height int

	internalWindow any

	onUpdate  func()
	onResize  func(extent gpu.Extent2D)
	onKeyDown func(keyCode uint32)
	onKeyUp   func(keyCode uint32)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a GLFW window with the specified options.
// Applies default values first, then each option in order. The calling
// goroutine is locked to its OS thread and must run ProcessMessages.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window
//   - error: an error if GLFW could not create the window
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		mu:        &sync.Mutex{},
		title:     "oxy-frame",
		maxWidth:  -1,
		maxHeight: -1,
		minWidth:  320,
		minHeight: 200,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("create platform window: %w", err)
	}
	return w, nil
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(extent gpu.Extent2D)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) Extent() gpu.Extent2D {
	w.mu.Lock()
	defer w.mu.Unlock()
	return gpu.Extent2D{Width: uint32(max(w.width, 0)), Height: uint32(max(w.height, 0))}
}

// resized stores the new framebuffer size and notifies the resize callback.
func (w *engineWindow) resized(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	cb := w.onResize
	w.mu.Unlock()

	if cb != nil {
		cb(gpu.Extent2D{Width: uint32(max(width, 0)), Height: uint32(max(height, 0))})
	}
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) VulkanExtensions() []string {
	return platformVulkanExtensions(w)
}

func (w *engineWindow) VulkanSurface(instance any) (uintptr, error) {
	return platformVulkanSurface(w, instance)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if succ := platformProcessMessages(w); !succ {
			break
		}

		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}
