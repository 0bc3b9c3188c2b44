package model

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/Carmen-Shannon/oxy-samples/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkeletonEvaluatesParentsFirst(t *testing.T) {
	// The child is stored before its parent.
	child := IdentityTransform()
	child.Translation = mgl32.Vec3{0, 1, 0}
	parent := IdentityTransform()
	parent.Translation = mgl32.Vec3{10, 0, 0}

	s, err := NewSkeleton([]Node{
		{Name: "child", Parent: 1, Local: child},
		{Name: "parent", Parent: -1, Local: parent},
	})
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{10, 1, 0}, s.World(0).Col(3).Vec3())
	assert.Equal(t, 0, s.Find("child"))
	assert.Equal(t, -1, s.Find("missing"))

	parent.Translation = mgl32.Vec3{0, 0, 5}
	s.SetLocal(1, parent)
	s.Update()
	assert.Equal(t, mgl32.Vec3{0, 1, 5}, s.World(0).Col(3).Vec3())
	assert.Equal(t, mgl32.Ident4(), s.World(-1))
}

func TestSkeletonRejectsBadParents(t *testing.T) {
	_, err := NewSkeleton([]Node{{Name: "a", Parent: 1}, {Name: "b", Parent: 0}})
	assert.ErrorContains(t, err, "cycle")

	_, err = NewSkeleton([]Node{{Name: "a", Parent: 3}})
	assert.ErrorContains(t, err, "out of range")
}

func TestBoxFacesWindOutward(t *testing.T) {
	m := Box("box", mgl32.Vec3{1, 2, 3})
	require.Len(t, m.Indices, 36)
	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Positions[m.Indices[i]], m.Positions[m.Indices[i+1]], m.Positions[m.Indices[i+2]]
		n := m.Normals[m.Indices[i]]
		assert.Greater(t, b.Sub(a).Cross(c.Sub(a)).Dot(n), float32(0), "triangle %d", i/3)
	}
}

func TestAppendOffsetsBatches(t *testing.T) {
	var m MeshData
	Append(&m, Plane("a", 1), 0, -1)
	i := Append(&m, Box("b", mgl32.Vec3{1, 1, 1}), 0, -1)
	assert.Equal(t, DrawBatch{VertexOffset: 4, IndexOffset: 6, IndexCount: 36, Node: -1}, m.Batches[i])
	assert.NoError(t, Validate(&m))
}

func TestValidate(t *testing.T) {
	base := func() MeshData {
		m := Plane("p", 1)
		m.Batches = []DrawBatch{{IndexCount: 6, Node: -1}}
		return m
	}
	tests := []struct {
		name   string
		mutate func(*MeshData)
		want   string
	}{
		{"no vertices", func(m *MeshData) { m.Positions = nil }, "no vertices"},
		{"short normals", func(m *MeshData) { m.Normals = m.Normals[:2] }, "normal stream"},
		{"index range", func(m *MeshData) { m.Batches[0].IndexCount = 7 }, "exceed"},
		{"material", func(m *MeshData) { m.Batches[0].MaterialIndex = 1 }, "material 1"},
		{"node", func(m *MeshData) { m.Batches[0].Node = 0 }, "node 0"},
		{"vertex offset", func(m *MeshData) { m.Batches[0].VertexOffset = 1 }, "references vertex 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(&m)
			assert.ErrorContains(t, Validate(&m), tt.want)
		})
	}
}

func TestLoaderUploadsStreams(t *testing.T) {
	d := software.NewDevice(software.WithRasterWorkers(1))
	defer d.Close()
	textures, err := texture.NewLoader(d)
	require.NoError(t, err)
	defer textures.Destroy()

	mesh := Courtyard()
	m, err := NewLoader(d, textures).Load(&mesh)
	require.NoError(t, err)
	defer m.Destroy(d)

	assert.Len(t, m.Materials, 6)
	assert.Len(t, m.Batches, len(mesh.Batches))
	assert.Equal(t, gpu.StateVertexOrConstantBuffer, m.Positions.Resource.State)
	assert.Equal(t, gpu.StateIndexBuffer, m.Indices.State)
	assert.False(t, m.Tangents.Valid())

	views := m.VertexBufferViews()
	require.Len(t, views, int(StreamCount))
	assert.Equal(t, uint64(8), views[StreamUV].Stride)
	assert.Equal(t, uint64(len(mesh.Indices))*4, m.IndexBufferView().Size)

	raw, err := d.ReadBuffer(m.Indices.Handle, 0, 24)
	require.NoError(t, err)
	assert.Equal(t, MarshalIndices(mesh.Indices[:6]), raw)

	// The rotor places the boxes 150 units up.
	box := 1 + 8
	assert.InDelta(t, 150, m.BatchWorld(box).Col(3)[1], 1e-4)

	albedo, err := d.ReadTexture(m.Materials[0].Albedo.Resource.Handle)
	require.NoError(t, err)
	assert.Equal(t, [4]float32{1, 1, 1, 1}, albedo.At(0, 0))
}

func TestLoaderDefaultsMaterialsAndBatches(t *testing.T) {
	d := software.NewDevice(software.WithRasterWorkers(1))
	defer d.Close()
	textures, err := texture.NewLoader(d)
	require.NoError(t, err)
	defer textures.Destroy()

	mesh := Plane("bare", 1)
	mesh.Normals = nil
	m, err := NewLoader(d, textures).Load(&mesh)
	require.NoError(t, err)
	require.Len(t, m.Materials, 1)
	assert.Equal(t, "default", m.Materials[0].Name)
	assert.Equal(t, []DrawBatch{{IndexCount: 6, Node: -1}}, m.Batches)

	normals, err := d.ReadBuffer(m.Normals.Resource.Handle, 0, 12)
	require.NoError(t, err)
	assert.Equal(t, MarshalVec3s([]mgl32.Vec3{{0, 1, 0}}), normals)
}
