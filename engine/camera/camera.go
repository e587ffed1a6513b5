package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
)

// cameraImpl is the implementation of the Camera interface.
type cameraImpl struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32
	up       [3]float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	viewMatrix           common.Mat4
	projectionMatrix     common.Mat4
	viewProjectionMatrix common.Mat4
}

// Camera is a perspective camera looking from a position at a target. The
// orchestrator snapshots it once per frame with Uniform.
type Camera interface {
	// Position returns the world-space eye position.
	Position() [3]float32

	// Target returns the world-space point the camera looks at.
	Target() [3]float32

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// ViewMatrix returns the current view matrix.
	ViewMatrix() common.Mat4

	// ProjectionMatrix returns the current projection matrix.
	ProjectionMatrix() common.Mat4

	// ViewProjectionMatrix returns projection * view.
	ViewProjectionMatrix() common.Mat4

	// SetPosition moves the eye.
	SetPosition(x, y, z float32)

	// SetTarget changes the look-at point.
	SetTarget(x, y, z float32)

	// SetAspect changes the aspect ratio, typically after a surface resize.
	//
	// Parameters:
	//   - aspect: width / height, ignored when not positive
	SetAspect(aspect float32)

	// SetFov changes the vertical field of view.
	SetFov(fov float32)

	// Uniform snapshots the camera into its GPU layout.
	//
	// Returns:
	//   - GPUCameraUniform: the view-projection matrix and eye position
	Uniform() GPUCameraUniform
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera at (0, 0, 5) looking at the origin with a 45 degree field of view.
//
// Parameters:
//   - options: variadic list of CameraBuilderOption functions
//
// Returns:
//   - Camera: the camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		position: [3]float32{0, 0, 5},
		up:       [3]float32{0, 1, 0},
		fov:      45.0 * (math.Pi / 180.0), // radians
		aspect:   1.0,
		near:     0.1,
		far:      100.0,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Position() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Target() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) ViewMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) SetPosition(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetTarget(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) Uniform() GPUCameraUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GPUCameraUniform{
		ViewProj:       c.viewProjectionMatrix,
		CameraPosition: c.position,
	}
}

// updateMatrices recomputes view, projection and view-projection. Caller holds c.mu.
func (c *cameraImpl) updateMatrices() {
	c.viewMatrix = common.LookAt(c.position, c.target, c.up)
	c.projectionMatrix = common.Perspective(c.fov, c.aspect, c.near, c.far)
	c.viewProjectionMatrix = common.Mul4(c.projectionMatrix, c.viewMatrix)
}
