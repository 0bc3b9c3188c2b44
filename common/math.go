package common

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

// Align rounds v up to the next multiple of alignment.
// Alignment must be a power of two.
//
// Parameters:
//   - v: the value to align
//   - alignment: the power-of-two alignment
//
// Returns:
//   - T: v rounded up to a multiple of alignment
func Align[T constraints.Unsigned](v, alignment T) T {
	if alignment == 0 {
		return v
	}
	return (v + alignment - 1) &^ (alignment - 1)
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
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// PutUint32 writes v little-endian at offset and returns the offset past it.
func PutUint32(buf []byte, offset int, v uint32) int {
	binary.LittleEndian.PutUint32(buf[offset:], v)
	return offset + 4
}

// PutFloat32s writes each value little-endian starting at offset.
//
// Returns:
//   - int: the offset immediately after the last written value
func PutFloat32s(buf []byte, offset int, values ...float32) int {
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
		offset += 4
	}
	return offset
}

// PutVec4 writes a vec4<f32>.
func PutVec4(buf []byte, offset int, v mgl32.Vec4) int {
	return PutFloat32s(buf, offset, v[0], v[1], v[2], v[3])
}

// PutMat4 writes a mat4x4<f32> in column-major order, which is the mgl32 storage order
// and the WGSL uniform layout.
func PutMat4(buf []byte, offset int, m mgl32.Mat4) int {
	return PutFloat32s(buf, offset, m[:]...)
}

// Uint32At reads a little-endian uint32 at offset.
func Uint32At(buf []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(buf[offset:])
}

// Float32At reads a little-endian float32 at offset.
func Float32At(buf []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset:]))
}

// Vec4At reads a vec4<f32> at offset.
func Vec4At(buf []byte, offset int) mgl32.Vec4 {
	return mgl32.Vec4{
		Float32At(buf, offset),
		Float32At(buf, offset+4),
		Float32At(buf, offset+8),
		Float32At(buf, offset+12),
	}
}

// Mat4At reads a column-major mat4x4<f32> at offset.
func Mat4At(buf []byte, offset int) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range 16 {
		m[i] = Float32At(buf, offset+i*4)
	}
	return m
}

// BuildModelMatrix composes a TRS model matrix.
// Result: T * R * S
//
// Parameters:
//   - translation: world-space translation
//   - rotation: orientation quaternion
//   - scale: per-axis scale
//
// Returns:
//   - mgl32.Mat4: the composed model matrix
func BuildModelMatrix(translation mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	t := mgl32.Translate3D(translation[0], translation[1], translation[2])
	r := rotation.Normalize().Mat4()
	s := mgl32.Scale3D(scale[0], scale[1], scale[2])
	return t.Mul4(r).Mul4(s)
}

// PerspectiveZO builds a right-handed perspective projection mapping view depth to a zero-to-one
// clip range, the depth convention of WebGPU and the software device.
//
// Parameters:
//   - fovy: vertical field of view in radians
//   - aspect: viewport width divided by height
//   - near: distance to the near plane
//   - far: distance to the far plane
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func PerspectiveZO(fovy, aspect, near, far float32) mgl32.Mat4 {
	f := 1 / float32(math.Tan(float64(fovy)/2))
	var m mgl32.Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = near * far / (near - far)
	return m
}
