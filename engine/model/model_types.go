package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// --- Transform & Skeleton Types ---

// Transform represents a decomposed node transform.
type Transform struct {
	// Translation is the position offset.
	Translation mgl32.Vec3

	// Rotation is the orientation quaternion.
	Rotation mgl32.Quat

	// Scale is the scale factor along each axis.
	Scale mgl32.Vec3
}

// IdentityTransform returns the transform that leaves a node at its parent's origin.
func IdentityTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// Matrix composes the transform as T * R * S.
func (t Transform) Matrix() mgl32.Mat4 {
	s := t.Scale
	if s == (mgl32.Vec3{}) {
		s = mgl32.Vec3{1, 1, 1}
	}
	r := t.Rotation
	if r == (mgl32.Quat{}) {
		r = mgl32.QuatIdent()
	}
	tr := mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2])
	return tr.Mul4(r.Normalize().Mat4()).Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// Node is one entry of a flat node arena.
type Node struct {
	// Name is the node identifier.
	Name string

	// Parent is the index of the parent node, -1 for roots.
	Parent int

	// Local is the transform relative to the parent.
	Local Transform
}

// --- Import Types ---

// MaterialData is a material as described by an asset, before its textures are resolved.
type MaterialData struct {
	// Name is the material identifier.
	Name string

	// AlbedoPath is the image file of the albedo map, empty for a white albedo.
	AlbedoPath string

	// SpecularPath is the image file of the specular map, empty for none.
	SpecularPath string

	// Diffuse is the diffuse color multiplied into the albedo map.
	Diffuse mgl32.Vec3

	// Ambient is the ambient reflectance.
	Ambient mgl32.Vec3

	// Shininess is the specular exponent.
	Shininess float32
}

// DrawBatch is one draw batch of a model: a sub-range of the shared index buffer.
type DrawBatch struct {
	// VertexOffset is added to every index of the batch.
	VertexOffset int32

	// IndexOffset is the first index of the batch.
	IndexOffset uint32

	// IndexCount is the number of indices of the batch.
	IndexCount uint32

	// MaterialIndex references MeshData.Materials.
	MaterialIndex int

	// Node references MeshData.Nodes, -1 for a batch placed at the model origin.
	Node int
}

// MeshData is the CPU-side content of a model: contiguous vertex streams, a shared index buffer,
// draw batches and a material table. Importers produce it, Loader turns it into a ModelAsset.
type MeshData struct {
	// Name is the model identifier.
	Name string

	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2

	// Tangents holds xyz tangent and w handedness. Optional.
	Tangents []mgl32.Vec4

	// Joints and Weights hold four bone influences per vertex. Optional.
	Joints  [][4]uint32
	Weights []mgl32.Vec4

	Indices []uint32

	Batches   []DrawBatch
	Materials []MaterialData

	// Nodes is the flat node arena referenced by batches. Optional.
	Nodes []Node
}

// VertexCount returns the number of vertices in the position stream.
func (m *MeshData) VertexCount() int {
	return len(m.Positions)
}
