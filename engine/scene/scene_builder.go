package scene

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/light"
)

// SceneBuilderOption is a functional option applied to a scene during construction.
type SceneBuilderOption func(s *scene)

// WithCamera sets the camera snapshots are taken with.
//
// Parameters:
//   - cam: the camera
//
// Returns:
//   - SceneBuilderOption: a function that sets the camera
func WithCamera(cam camera.Camera) SceneBuilderOption {
	return func(s *scene) {
		if cam != nil {
			s.cam = cam
		}
	}
}

// WithLighting sets the light set snapshots are taken with.
//
// Parameters:
//   - lighting: the light set
//
// Returns:
//   - SceneBuilderOption: a function that sets the lighting
func WithLighting(lighting *light.Lighting) SceneBuilderOption {
	return func(s *scene) {
		if lighting != nil {
			s.lighting = lighting
		}
	}
}

// WithVisibility installs the visibility predicate applied at draw time.
//
// Parameters:
//   - fn: the predicate
//
// Returns:
//   - SceneBuilderOption: a function that sets the predicate
func WithVisibility(fn VisibilityFunc) SceneBuilderOption {
	return func(s *scene) {
		s.visible = fn
	}
}
