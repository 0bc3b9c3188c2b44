package model

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// loader is the implementation of the Loader interface.
type loader struct {
	device   gpu.Device
	textures texture.Loader

	// textureRoot is joined with relative material texture paths.
	textureRoot string
}

// Loader uploads MeshData to the GPU and resolves its material textures.
type Loader interface {
	// Load validates mesh and creates its buffers and textures.
	//
	// Parameters:
	//   - mesh: the CPU-side model
	//
	// Returns:
	//   - *ModelAsset: the GPU-ready model
	//   - error: error if the mesh is malformed or a resource cannot be created
	Load(mesh *MeshData) (*ModelAsset, error)
}

var _ Loader = &loader{}

// NewLoader creates a Loader.
//
// Parameters:
//   - device: the device buffers are created on
//   - textures: the loader resolving material images
//   - options: a variadic list of LoaderBuilderOption functions
//
// Returns:
//   - Loader: the loader
func NewLoader(device gpu.Device, textures texture.Loader, options ...LoaderBuilderOption) Loader {
	l := &loader{device: device, textures: textures}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Validate checks that the streams agree in length and that every batch stays inside the index
// buffer, references an existing material and node, and indexes existing vertices.
func Validate(mesh *MeshData) error {
	n := mesh.VertexCount()
	if n == 0 {
		return fmt.Errorf("mesh %q: no vertices", mesh.Name)
	}
	var errs []error
	check := func(name string, l int) {
		if l != 0 && l != n {
			errs = append(errs, fmt.Errorf("mesh %q: %s stream has %d elements, positions %d", mesh.Name, name, l, n))
		}
	}
	check("normal", len(mesh.Normals))
	check("uv", len(mesh.UVs))
	check("tangent", len(mesh.Tangents))
	check("joint", len(mesh.Joints))
	check("weight", len(mesh.Weights))

	for i, b := range mesh.Batches {
		end := uint64(b.IndexOffset) + uint64(b.IndexCount)
		if end > uint64(len(mesh.Indices)) {
			errs = append(errs, fmt.Errorf("mesh %q: batch %d indices [%d,%d) exceed %d", mesh.Name, i, b.IndexOffset, end, len(mesh.Indices)))
			continue
		}
		if b.MaterialIndex < 0 || b.MaterialIndex >= max(len(mesh.Materials), 1) {
			errs = append(errs, fmt.Errorf("mesh %q: batch %d material %d out of range", mesh.Name, i, b.MaterialIndex))
		}
		if b.Node < -1 || b.Node >= len(mesh.Nodes) {
			errs = append(errs, fmt.Errorf("mesh %q: batch %d node %d out of range", mesh.Name, i, b.Node))
		}
		for _, idx := range mesh.Indices[b.IndexOffset:end] {
			if v := int64(idx) + int64(b.VertexOffset); v < 0 || v >= int64(n) {
				errs = append(errs, fmt.Errorf("mesh %q: batch %d references vertex %d of %d", mesh.Name, i, v, n))
				break
			}
		}
	}
	return errors.Join(errs...)
}

func (l *loader) Load(mesh *MeshData) (*ModelAsset, error) {
	if err := Validate(mesh); err != nil {
		return nil, err
	}
	n := mesh.VertexCount()

	normals := mesh.Normals
	if len(normals) == 0 {
		normals = make([]mgl32.Vec3, n)
		for i := range normals {
			normals[i] = mgl32.Vec3{0, 1, 0}
		}
	}
	uvs := mesh.UVs
	if len(uvs) == 0 {
		uvs = make([]mgl32.Vec2, n)
	}

	m := &ModelAsset{Name: mesh.Name, Batches: append([]DrawBatch(nil), mesh.Batches...)}
	if len(m.Batches) == 0 && len(mesh.Indices) > 0 {
		m.Batches = []DrawBatch{{IndexCount: uint32(len(mesh.Indices)), Node: -1}}
	}
	var err error
	fail := func(e error) (*ModelAsset, error) {
		m.Destroy(l.device)
		return nil, fmt.Errorf("load mesh %q: %w", mesh.Name, e)
	}

	if m.Positions, err = l.stream(mesh.Name+".position", MarshalVec3s(mesh.Positions), 12, n); err != nil {
		return fail(err)
	}
	if m.Normals, err = l.stream(mesh.Name+".normal", MarshalVec3s(normals), 12, n); err != nil {
		return fail(err)
	}
	if m.UVs, err = l.stream(mesh.Name+".uv", MarshalVec2s(uvs), 8, n); err != nil {
		return fail(err)
	}
	if len(mesh.Tangents) > 0 {
		if m.Tangents, err = l.stream(mesh.Name+".tangent", MarshalVec4s(mesh.Tangents), 16, n); err != nil {
			return fail(err)
		}
	}
	if len(mesh.Joints) > 0 {
		if m.Joints, err = l.stream(mesh.Name+".joints", MarshalUint4s(mesh.Joints), 16, n); err != nil {
			return fail(err)
		}
	}
	if len(mesh.Weights) > 0 {
		if m.Weights, err = l.stream(mesh.Name+".weights", MarshalVec4s(mesh.Weights), 16, n); err != nil {
			return fail(err)
		}
	}

	if len(mesh.Indices) > 0 {
		m.Indices, err = l.device.CreateBuffer(gpu.BufferDesc{
			Label:        mesh.Name + ".index",
			Size:         uint64(len(mesh.Indices)) * 4,
			Usage:        gpu.BufferUsageIndex | gpu.BufferUsageCopyDst,
			InitialState: gpu.StateIndexBuffer,
		})
		if err != nil {
			return fail(err)
		}
		if err = l.device.WriteBuffer(m.Indices.Handle, 0, MarshalIndices(mesh.Indices)); err != nil {
			return fail(err)
		}
		m.IndexCount = uint32(len(mesh.Indices))
	}

	if len(mesh.Nodes) > 0 {
		if m.Skeleton, err = NewSkeleton(mesh.Nodes); err != nil {
			return fail(err)
		}
	}

	materials := mesh.Materials
	if len(materials) == 0 {
		materials = []MaterialData{DefaultMaterial()}
	}
	for _, md := range materials {
		mat, err := l.material(md)
		if err != nil {
			return fail(err)
		}
		m.Materials = append(m.Materials, mat)
	}

	common.Logger().Info("model loaded", "name", mesh.Name, "vertices", n, "indices", len(mesh.Indices), "batches", len(m.Batches), "materials", len(m.Materials))
	return m, nil
}

func (l *loader) stream(label string, data []byte, stride uint64, count int) (Stream, error) {
	res, err := l.device.CreateBuffer(gpu.BufferDesc{
		Label:        label,
		Size:         uint64(len(data)),
		Usage:        gpu.BufferUsageVertex | gpu.BufferUsageCopyDst,
		InitialState: gpu.StateVertexOrConstantBuffer,
	})
	if err != nil {
		return Stream{}, err
	}
	if err := l.device.WriteBuffer(res.Handle, 0, data); err != nil {
		l.device.Destroy(res.Handle)
		return Stream{}, err
	}
	return Stream{Resource: res, Stride: stride, Count: count}, nil
}

func (l *loader) material(md MaterialData) (Material, error) {
	mat := Material{Name: md.Name, Diffuse: md.Diffuse, Ambient: md.Ambient, Shininess: md.Shininess}
	var err error
	if mat.Albedo, err = l.image(md.AlbedoPath, md.Name+".albedo", [4]uint8{255, 255, 255, 255}); err != nil {
		return Material{}, err
	}
	if mat.Specular, err = l.image(md.SpecularPath, md.Name+".specular", [4]uint8{0, 0, 0, 255}); err != nil {
		return Material{}, err
	}
	return mat, nil
}

func (l *loader) image(path, label string, fallback [4]uint8) (texture.Texture, error) {
	if path == "" {
		return l.textures.Solid(label, fallback)
	}
	if !filepath.IsAbs(path) && l.textureRoot != "" {
		path = filepath.Join(l.textureRoot, path)
	}
	return l.textures.Load(path)
}

// DefaultMaterial is the material of meshes without a material table: white, ambient 0.2.
func DefaultMaterial() MaterialData {
	return MaterialData{
		Name:      "default",
		Diffuse:   mgl32.Vec3{1, 1, 1},
		Ambient:   mgl32.Vec3{0.2, 0.2, 0.2},
		Shininess: 16,
	}
}
