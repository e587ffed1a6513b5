package light

import "sync"

// Lighting is the scene's light set: an ambient term plus registered lights.
type Lighting struct {
	mu      sync.Mutex
	ambient [3]float32
	lights  []Light
}

// NewLighting creates a light set with the given ambient color.
func NewLighting(ambient [3]float32, lights ...Light) *Lighting {
	return &Lighting{ambient: ambient, lights: lights}
}

// Add registers lights.
func (s *Lighting) Add(lights ...Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights, lights...)
}

// SetAmbient changes the ambient color.
func (s *Lighting) SetAmbient(r, g, b float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambient = [3]float32{r, g, b}
}

// Uniform snapshots the enabled lights into their GPU layout.
//
// Returns:
//   - GPULightingUniform: the lighting block for this frame
func (s *Lighting) Uniform() GPULightingUniform {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := GPULightingUniform{Ambient: s.ambient}
	for _, l := range s.lights {
		if u.LightCount == MaxGPULights {
			break
		}
		if !l.Enabled() {
			continue
		}
		u.Lights[u.LightCount] = ToGPULight(l)
		u.LightCount++
	}
	return u
}
