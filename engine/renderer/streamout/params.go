package streamout

import (
	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxNodes is the size of the node palette. Palette entry 0 is the model origin, entry n+1 holds
// the world transform of node n.
const MaxNodes = 32

// PaletteSize is the size of the marshaled node palette.
const PaletteSize = MaxNodes * 64

// Scene block byte offsets.
const (
	offView       = 0
	offProj       = 64
	offLightDir   = 128
	offCamera     = 144
	offAlbedo     = 160
	offIndexCount = 176

	// SceneParamsSize is the size of the marshaled scene block.
	SceneParamsSize = 192
)

// SceneParams mirrors the constant block shared by the capture kernel and the draw of the
// captured vertices.
type SceneParams struct {
	View           mgl32.Mat4
	Proj           mgl32.Mat4
	LightDir       mgl32.Vec4
	CameraPosition mgl32.Vec4

	// Albedo is the rgb surface color and w the ambient term.
	Albedo mgl32.Vec4

	// IndexCount is the number of vertices the capture writes.
	IndexCount uint32
}

// SetCamera stores the view, the projection and the eye position.
func (p *SceneParams) SetCamera(view, proj mgl32.Mat4, eye mgl32.Vec3) {
	p.View = view
	p.Proj = proj
	p.CameraPosition = eye.Vec4(1)
}

// Marshal serializes the block in its WGSL uniform layout.
func (p *SceneParams) Marshal() []byte {
	buf := make([]byte, SceneParamsSize)
	common.PutMat4(buf, offView, p.View)
	common.PutMat4(buf, offProj, p.Proj)
	common.PutVec4(buf, offLightDir, p.LightDir)
	common.PutVec4(buf, offCamera, p.CameraPosition)
	common.PutVec4(buf, offAlbedo, p.Albedo)
	common.PutUint32(buf, offIndexCount, p.IndexCount)
	return buf
}

// Palette is the per-frame node transform table read by the capture kernel.
type Palette [MaxNodes]mgl32.Mat4

// NewPalette returns a palette of identity transforms.
func NewPalette() Palette {
	var p Palette
	for i := range p {
		p[i] = mgl32.Ident4()
	}
	return p
}

// Marshal serializes the palette as array<mat4x4<f32>, MaxNodes>.
func (p *Palette) Marshal() []byte {
	buf := make([]byte, PaletteSize)
	for i, m := range p {
		common.PutMat4(buf, i*64, m)
	}
	return buf
}
