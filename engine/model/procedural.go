package model

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Box returns an axis-aligned box centered at the origin with the given half extents. Faces wind
// counter-clockwise seen from outside.
func Box(name string, half mgl32.Vec3) MeshData {
	m := MeshData{Name: name}
	x, y, z := half[0], half[1], half[2]
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -z}, mgl32.Vec3{0, y, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, z}, mgl32.Vec3{0, y, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{x, 0, 0}, mgl32.Vec3{0, 0, -z}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{x, 0, 0}, mgl32.Vec3{0, 0, z}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{x, 0, 0}, mgl32.Vec3{0, y, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-x, 0, 0}, mgl32.Vec3{0, y, 0}},
	}
	for _, f := range faces {
		c := mgl32.Vec3{f.n[0] * x, f.n[1] * y, f.n[2] * z}
		appendQuad(&m, c, f.u, f.v, f.n)
	}
	return m
}

// Plane returns a square facing +Y centered at the origin.
func Plane(name string, half float32) MeshData {
	m := MeshData{Name: name}
	appendQuad(&m, mgl32.Vec3{}, mgl32.Vec3{half, 0, 0}, mgl32.Vec3{0, 0, -half}, mgl32.Vec3{0, 1, 0})
	return m
}

// appendQuad adds the quad c±u±v. The quad is front facing when n = u × v.
func appendQuad(m *MeshData, c, u, v, n mgl32.Vec3) {
	base := uint32(len(m.Positions))
	m.Positions = append(m.Positions,
		c.Sub(u).Sub(v), c.Add(u).Sub(v), c.Add(u).Add(v), c.Sub(u).Add(v))
	m.Normals = append(m.Normals, n, n, n, n)
	m.UVs = append(m.UVs, mgl32.Vec2{0, 1}, mgl32.Vec2{1, 1}, mgl32.Vec2{1, 0}, mgl32.Vec2{0, 0})
	m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
}

// Append adds part to dst as one new draw batch. The part's indices are kept local and the batch
// carries its base vertex as VertexOffset.
//
// Parameters:
//   - dst: the mesh being assembled
//   - part: a single-batch mesh such as Box or Plane
//   - material: the material index of the new batch
//   - node: the node index of the new batch, -1 for the origin
//
// Returns:
//   - int: the index of the new batch
func Append(dst *MeshData, part MeshData, material, node int) int {
	b := DrawBatch{
		VertexOffset:  int32(len(dst.Positions)),
		IndexOffset:   uint32(len(dst.Indices)),
		IndexCount:    uint32(len(part.Indices)),
		MaterialIndex: material,
		Node:          node,
	}
	dst.Positions = append(dst.Positions, part.Positions...)
	dst.Normals = append(dst.Normals, part.Normals...)
	dst.UVs = append(dst.UVs, part.UVs...)
	dst.Indices = append(dst.Indices, part.Indices...)
	dst.Batches = append(dst.Batches, b)
	return len(dst.Batches) - 1
}

// Courtyard material indices.
const (
	CourtyardFloor = iota
	CourtyardStone
	CourtyardRed
	CourtyardGreen
	CourtyardBlue
	CourtyardScreen
)

// Courtyard builds the deferred sample scene: a floor, a ring of pillars, boxes orbiting a rotor
// node and a screen panel whose material samples a per-frame texture. Node 1 is the rotor.
func Courtyard() MeshData {
	m := MeshData{Name: "courtyard"}
	mat := func(name string, d mgl32.Vec3) MaterialData {
		return MaterialData{Name: name, Diffuse: d, Ambient: mgl32.Vec3{0.2, 0.2, 0.2}, Shininess: 16}
	}
	m.Materials = []MaterialData{
		CourtyardFloor:  mat("floor", mgl32.Vec3{0.6, 0.6, 0.6}),
		CourtyardStone:  mat("stone", mgl32.Vec3{0.85, 0.75, 0.6}),
		CourtyardRed:    mat("red", mgl32.Vec3{0.9, 0.2, 0.2}),
		CourtyardGreen:  mat("green", mgl32.Vec3{0.2, 0.9, 0.3}),
		CourtyardBlue:   mat("blue", mgl32.Vec3{0.2, 0.3, 0.9}),
		CourtyardScreen: mat("screen", mgl32.Vec3{1, 1, 1}),
	}

	id := IdentityTransform()
	at := func(x, y, z float32) Transform {
		t := IdentityTransform()
		t.Translation = mgl32.Vec3{x, y, z}
		return t
	}
	m.Nodes = []Node{
		{Name: "root", Parent: -1, Local: id},
		{Name: "rotor", Parent: 0, Local: at(0, 150, 0)},
	}

	Append(&m, Plane("floor", 700), CourtyardFloor, 0)

	for i := range 8 {
		angle := float32(i) * mgl32.DegToRad(45)
		x, z := 500*math32.Cos(angle), 500*math32.Sin(angle)
		node := len(m.Nodes)
		m.Nodes = append(m.Nodes, Node{Name: fmt.Sprintf("pillar%d", i), Parent: 0, Local: at(x, 150, z)})
		Append(&m, Box("pillar", mgl32.Vec3{30, 150, 30}), CourtyardStone, node)
	}

	colors := []int{CourtyardRed, CourtyardGreen, CourtyardBlue}
	for i := range 6 {
		angle := float32(i) * mgl32.DegToRad(60)
		node := len(m.Nodes)
		m.Nodes = append(m.Nodes, Node{Name: fmt.Sprintf("box%d", i), Parent: 1, Local: at(250*math32.Cos(angle), 0, 250*math32.Sin(angle))})
		Append(&m, Box("box", mgl32.Vec3{40, 40, 40}), colors[i%len(colors)], node)
	}

	node := len(m.Nodes)
	m.Nodes = append(m.Nodes, Node{Name: "screen", Parent: 0, Local: at(0, 200, -650)})
	Append(&m, Box("screen", mgl32.Vec3{200, 120, 5}), CourtyardScreen, node)
	return m
}
