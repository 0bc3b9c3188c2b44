package model

import (
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// Stream is one GPU vertex buffer of a ModelAsset.
type Stream struct {
	// Resource is the buffer, kept in StateVertexOrConstantBuffer.
	Resource gpu.Resource

	// Stride is the size of one element in bytes.
	Stride uint64

	// Count is the number of elements.
	Count int
}

// Valid reports whether the stream was uploaded.
func (s Stream) Valid() bool {
	return s.Resource.Handle.Valid()
}

// View returns the vertex buffer view covering the whole stream.
func (s Stream) View() gpu.VertexBufferView {
	return gpu.VertexBufferView{Buffer: s.Resource.Handle, Size: s.Stride * uint64(s.Count), Stride: s.Stride}
}

// Material is a resolved material: textures are created and ready to sample.
type Material struct {
	// Name is the material identifier.
	Name string

	// Albedo is the albedo map, a white texel when the asset has none.
	Albedo texture.Texture

	// Specular is the specular map, a black texel when the asset has none.
	Specular texture.Texture

	Diffuse   mgl32.Vec3
	Ambient   mgl32.Vec3
	Shininess float32
}

// ModelAsset is a GPU-ready model: contiguous vertex streams, one index buffer, the draw batches
// ranging over them and the material table the batches index.
type ModelAsset struct {
	// Name is the model identifier.
	Name string

	Positions Stream
	Normals   Stream
	UVs       Stream

	// Tangents, Joints and Weights are uploaded only when the mesh carries them.
	Tangents Stream
	Joints   Stream
	Weights  Stream

	// Indices is the 32-bit index buffer, kept in StateIndexBuffer.
	Indices    gpu.Resource
	IndexCount uint32

	Batches   []DrawBatch
	Materials []Material

	// Skeleton holds the node arena batches are placed by, nil for a model without nodes.
	Skeleton *Skeleton
}

// VertexBufferViews returns the position, normal and uv views in stream slot order.
func (m *ModelAsset) VertexBufferViews() []gpu.VertexBufferView {
	return []gpu.VertexBufferView{m.Positions.View(), m.Normals.View(), m.UVs.View()}
}

// IndexBufferView returns the view of the whole index buffer.
func (m *ModelAsset) IndexBufferView() gpu.IndexBufferView {
	return gpu.IndexBufferView{Buffer: m.Indices.Handle, Size: uint64(m.IndexCount) * 4, Format: gpu.IndexFormatUint32}
}

// BatchWorld returns the world matrix of batch i: its node's world transform, or identity.
func (m *ModelAsset) BatchWorld(i int) mgl32.Mat4 {
	return m.Skeleton.World(m.Batches[i].Node)
}

// Destroy releases the model's buffers. Textures belong to the texture loader. The GPU must be idle.
func (m *ModelAsset) Destroy(device gpu.Device) {
	for _, s := range []Stream{m.Positions, m.Normals, m.UVs, m.Tangents, m.Joints, m.Weights} {
		if s.Valid() {
			device.Destroy(s.Resource.Handle)
		}
	}
	if m.Indices.Handle.Valid() {
		device.Destroy(m.Indices.Handle)
	}
}
