package model

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// VertexInputSource is the WGSL definition of the VertexInput struct matching VertexLayouts.
//
//go:embed assets/vertex.wgsl
var VertexInputSource string

// Vertex stream slots bound by every mesh pipeline.
const (
	StreamPosition uint32 = iota
	StreamNormal
	StreamUV

	// StreamCount is the number of streams in VertexLayouts.
	StreamCount
)

// VertexLayouts returns the three vertex streams of a ModelAsset: float3 position, float3 normal
// and float2 uv, each in its own buffer.
func VertexLayouts() []gpu.VertexBufferLayout {
	return []gpu.VertexBufferLayout{
		{Stride: 12, Attributes: []gpu.VertexAttribute{{Location: 0, Format: gpu.VertexFormatFloat32x3}}},
		{Stride: 12, Attributes: []gpu.VertexAttribute{{Location: 1, Format: gpu.VertexFormatFloat32x3}}},
		{Stride: 8, Attributes: []gpu.VertexAttribute{{Location: 2, Format: gpu.VertexFormatFloat32x2}}},
	}
}

// MarshalVec3s packs a float3 stream.
func MarshalVec3s(v []mgl32.Vec3) []byte {
	buf := make([]byte, len(v)*12)
	off := 0
	for _, e := range v {
		off = common.PutFloat32s(buf, off, e[0], e[1], e[2])
	}
	return buf
}

// MarshalVec2s packs a float2 stream.
func MarshalVec2s(v []mgl32.Vec2) []byte {
	buf := make([]byte, len(v)*8)
	off := 0
	for _, e := range v {
		off = common.PutFloat32s(buf, off, e[0], e[1])
	}
	return buf
}

// MarshalVec4s packs a float4 stream.
func MarshalVec4s(v []mgl32.Vec4) []byte {
	buf := make([]byte, len(v)*16)
	off := 0
	for _, e := range v {
		off = common.PutVec4(buf, off, e)
	}
	return buf
}

// MarshalUint4s packs a uint4 stream.
func MarshalUint4s(v [][4]uint32) []byte {
	buf := make([]byte, len(v)*16)
	off := 0
	for _, e := range v {
		for _, c := range e {
			off = common.PutUint32(buf, off, c)
		}
	}
	return buf
}

// MarshalIndices packs a 32-bit index stream.
func MarshalIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	off := 0
	for _, i := range indices {
		off = common.PutUint32(buf, off, i)
	}
	return buf
}
