package light

import "sync"

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional has no position, only a direction, and no attenuation.
	LightTypeDirectional LightType = iota

	// LightTypePoint emits in all directions from a position up to its range.
	LightTypePoint

	// LightTypeSpot emits in a cone along its direction.
	LightTypeSpot
)

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	mu *sync.Mutex

	lightType  LightType
	position   [3]float32
	direction  [3]float32
	color      [3]float32
	intensity  float32
	lightRange float32
	innerCone  float32 // stored as cos(angle in radians)
	outerCone  float32 // stored as cos(angle in radians)
	enabled    bool
}

// Light is a light source contributing to the lit pass. Properties that do not
// apply to a type (cone angles on a point light) read as zero.
type Light interface {
	// Type returns the kind of light source.
	Type() LightType

	// Position returns the world-space position. Meaningless for directional lights.
	Position() [3]float32

	// Direction returns the normalized direction. Meaningless for point lights.
	Direction() [3]float32

	// Color returns the RGB color.
	Color() [3]float32

	// Intensity returns the scalar intensity multiplier.
	Intensity() float32

	// Range returns the attenuation cutoff distance for point and spot lights.
	Range() float32

	// Cone returns cos(inner) and cos(outer) of a spot light's cone half-angles.
	Cone() (inner, outer float32)

	// Enabled reports whether the light is uploaded.
	Enabled() bool

	// SetPosition moves the light.
	SetPosition(x, y, z float32)

	// SetDirection re-aims the light; the vector is normalized.
	SetDirection(x, y, z float32)

	// SetColor changes the RGB color.
	SetColor(r, g, b float32)

	// SetIntensity changes the intensity multiplier.
	SetIntensity(intensity float32)

	// SetEnabled toggles the light.
	SetEnabled(enabled bool)
}

var _ Light = &lightImpl{}

// NewLight creates a white, enabled light of intensity 1 pointing down -Y.
//
// Parameters:
//   - lightType: the kind of light
//   - opts: variadic list of LightBuilderOption functions
//
// Returns:
//   - Light: the light
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		mu:         &sync.Mutex{},
		lightType:  lightType,
		direction:  [3]float32{0, -1, 0},
		color:      [3]float32{1, 1, 1},
		intensity:  1,
		lightRange: 10,
		enabled:    true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

func (l *lightImpl) Direction() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direction
}

func (l *lightImpl) Color() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intensity
}

func (l *lightImpl) Range() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lightRange
}

func (l *lightImpl) Cone() (float32, float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.innerCone, l.outerCone
}

func (l *lightImpl) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

func (l *lightImpl) SetPosition(x, y, z float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = [3]float32{x, y, z}
}

func (l *lightImpl) SetDirection(x, y, z float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.direction = normalize3(x, y, z)
}

func (l *lightImpl) SetColor(r, g, b float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = [3]float32{r, g, b}
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intensity = intensity
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}
