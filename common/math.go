package common

import (
	"math"
	"unsafe"
)

// Mat4 is a 4x4 matrix stored in column-major order, matching the layout
// shaders expect for uniform and storage buffers.
type Mat4 [16]float32

// Identity4 returns the 4x4 identity matrix.
func Identity4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}

// Mul4 returns a * b. Both operands are column-major.
//
// Parameters:
//   - a: left-hand matrix
//   - b: right-hand matrix
//
// Returns:
//   - Mat4: the product
func Mul4(a, b Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[k*4+row] * b[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// Perspective builds a right-handed perspective projection with a [0, 1] clip
// space depth range.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))
	var out Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// LookAt builds a view matrix for an eye looking at center with the given up vector.
//
// Parameters:
//   - eye: camera position in world space
//   - center: target point the camera looks at
//   - up: up vector (typically 0,1,0)
//
// Returns:
//   - Mat4: the view matrix
func LookAt(eye, center, up [3]float32) Mat4 {
	z := normalize3([3]float32{eye[0] - center[0], eye[1] - center[1], eye[2] - center[2]})
	x := normalize3(cross3(up, z))
	y := cross3(z, x)

	var out Mat4
	out[0], out[4], out[8], out[12] = x[0], x[1], x[2], -dot3(x, eye)
	out[1], out[5], out[9], out[13] = y[0], y[1], y[2], -dot3(y, eye)
	out[2], out[6], out[10], out[14] = z[0], z[1], z[2], -dot3(z, eye)
	out[15] = 1
	return out
}

// Translation returns a matrix translating by (x, y, z).
func Translation(x, y, z float32) Mat4 {
	m := Identity4()
	m[12], m[13], m[14] = x, y, z
	return m
}

// ModelMatrix builds a model matrix from position, Euler rotation (Y * X * Z) and scale.
//
// Parameters:
//   - pos: translation in world space
//   - rot: rotation angles in radians around each axis
//   - scale: scale factors along each axis
//
// Returns:
//   - Mat4: the model matrix
func ModelMatrix(pos, rot, scale [3]float32) Mat4 {
	cx, sx := float32(math.Cos(float64(rot[0]))), float32(math.Sin(float64(rot[0])))
	cy, sy := float32(math.Cos(float64(rot[1]))), float32(math.Sin(float64(rot[1])))
	cz, sz := float32(math.Cos(float64(rot[2]))), float32(math.Sin(float64(rot[2])))

	return Mat4{
		(cy*cz + sy*sx*sz) * scale[0], (cx * sz) * scale[0], (-sy*cz + cy*sx*sz) * scale[0], 0,
		(cy*-sz + sy*sx*cz) * scale[1], (cx * cz) * scale[1], (sy*sz + cy*sx*cz) * scale[1], 0,
		(sy * cx) * scale[2], (-sx) * scale[2], (cy * cx) * scale[2], 0,
		pos[0], pos[1], pos[2], 1,
	}
}

func dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross3(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize3(v [3]float32) [3]float32 {
	l := float64(dot3(v, v))
	if l == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(l))
	return [3]float32{v[0] * inv, v[1] * inv, v[2] * inv}
}
