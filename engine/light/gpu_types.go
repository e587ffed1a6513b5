package light

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// MaxGPULights is how many lights fit in GPULightingUniform. Enabled lights
// beyond it are dropped in registration order.
const MaxGPULights = 8

// GPULightingUniformSource is the WGSL definition matching GPULightingUniform.
const GPULightingUniformSource = `struct Light {
    position: vec3<f32>,
    light_type: u32,
    color: vec3<f32>,
    intensity: f32,
    direction: vec3<f32>,
    light_range: f32,
    inner_cone: f32,
    outer_cone: f32,
    _pad: vec2<f32>,
}

struct Lighting {
    ambient: vec3<f32>,
    light_count: u32,
    lights: array<Light, 8>,
}`

// GPULight is the GPU-aligned representation of a single light.
// Size: 64 bytes.
type GPULight struct {
	Position   [3]float32 // offset  0
	LightType  uint32     // offset 12: 0 = directional, 1 = point, 2 = spot
	Color      [3]float32 // offset 16
	Intensity  float32    // offset 28
	Direction  [3]float32 // offset 32
	LightRange float32    // offset 44
	InnerCone  float32    // offset 48: cos(inner half-angle)
	OuterCone  float32    // offset 52: cos(outer half-angle)
	_pad       [2]uint32  // offset 56
}

// GPULightingUniform is the per-frame lighting block: ambient color, active
// light count and a fixed array of lights.
// Size: 16 + 64*MaxGPULights bytes.
type GPULightingUniform struct {
	Ambient    [3]float32
	LightCount uint32
	Lights     [MaxGPULights]GPULight
}

// Size returns the size of the GPULightingUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes
func (u *GPULightingUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the uniform into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (u *GPULightingUniform) Marshal() []byte {
	buf := make([]byte, u.Size())
	putF32s(buf[0:], u.Ambient[:])
	binary.LittleEndian.PutUint32(buf[12:], u.LightCount)
	for i := range u.Lights {
		l := &u.Lights[i]
		o := 16 + i*64
		putF32s(buf[o:], l.Position[:])
		binary.LittleEndian.PutUint32(buf[o+12:], l.LightType)
		putF32s(buf[o+16:], l.Color[:])
		putF32s(buf[o+28:], []float32{l.Intensity})
		putF32s(buf[o+32:], l.Direction[:])
		putF32s(buf[o+44:], []float32{l.LightRange, l.InnerCone, l.OuterCone})
	}
	return buf
}

// ToGPULight converts a Light into its GPU layout.
//
// Parameters:
//   - l: the Light to convert
//
// Returns:
//   - GPULight: the GPU-aligned representation
func ToGPULight(l Light) GPULight {
	inner, outer := l.Cone()
	return GPULight{
		Position:   l.Position(),
		LightType:  uint32(l.Type()),
		Color:      l.Color(),
		Intensity:  l.Intensity(),
		Direction:  l.Direction(),
		LightRange: l.Range(),
		InnerCone:  inner,
		OuterCone:  outer,
	}
}

func putF32s(buf []byte, vals []float32) {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}
