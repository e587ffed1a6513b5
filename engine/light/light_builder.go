package light

import "math"

// LightBuilderOption is a functional option applied to a light during construction.
type LightBuilderOption func(*lightImpl)

// WithPosition sets the world-space position.
//
// Parameters:
//   - x, y, z: the position
//
// Returns:
//   - LightBuilderOption: a function that sets the position
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = [3]float32{x, y, z}
	}
}

// WithDirection sets the light direction. The vector is normalized.
//
// Parameters:
//   - x, y, z: the direction
//
// Returns:
//   - LightBuilderOption: a function that sets the direction
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.direction = normalize3(x, y, z)
	}
}

// WithColor sets the RGB color.
//
// Returns:
//   - LightBuilderOption: a function that sets the color
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = [3]float32{r, g, b}
	}
}

// WithIntensity sets the intensity multiplier.
//
// Returns:
//   - LightBuilderOption: a function that sets the intensity
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithRange sets the attenuation cutoff distance of point and spot lights.
//
// Returns:
//   - LightBuilderOption: a function that sets the range
func WithRange(lightRange float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.lightRange = lightRange
	}
}

// WithSpotCone sets the inner and outer cone half-angles in degrees.
//
// Parameters:
//   - innerDeg: full-intensity half-angle
//   - outerDeg: falloff-to-zero half-angle
//
// Returns:
//   - LightBuilderOption: a function that sets the cone
func WithSpotCone(innerDeg, outerDeg float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.innerCone = cosDeg(innerDeg)
		l.outerCone = cosDeg(outerDeg)
	}
}

// WithEnabled sets whether the light starts enabled.
//
// Returns:
//   - LightBuilderOption: a function that sets the enabled flag
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.enabled = enabled
	}
}

func normalize3(x, y, z float32) [3]float32 {
	n := float32(math.Sqrt(float64(x*x + y*y + z*z)))
	if n == 0 {
		return [3]float32{0, -1, 0}
	}
	return [3]float32{x / n, y / n, z / n}
}

func cosDeg(deg float32) float32 {
	return float32(math.Cos(float64(deg) * math.Pi / 180))
}
