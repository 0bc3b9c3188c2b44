package particle

import (
	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/go-gl/mathgl/mgl32"
)

// ColorCount is the size of the particle color palette.
const ColorCount = 8

// Scene block byte offsets.
const (
	offView             = 0
	offProj             = 64
	offLightDir         = 128
	offCameraPosition   = 144
	offForceCenter      = 160
	offMaxParticleCount = 176
	offFrameDeltaTime   = 180
	offEmitCount        = 184
	offFrameIndex       = 188
	offParticleColors   = 192
	offBillboard        = offParticleColors + ColorCount*16

	// SceneParamsSize is the size of the marshaled scene block.
	SceneParamsSize = offBillboard + 64
)

// SceneParams mirrors the constant block shared by the particle kernels and the billboard draw.
type SceneParams struct {
	View           mgl32.Mat4
	Proj           mgl32.Mat4
	LightDir       mgl32.Vec4
	CameraPosition mgl32.Vec4

	// ForceCenter is a collision sphere: xyz center, w radius. A zero radius disables it.
	ForceCenter mgl32.Vec4

	MaxParticleCount uint32
	FrameDeltaTime   float32

	// EmitCount is the number of activation attempts of the next emit dispatch.
	EmitCount uint32

	// FrameIndex selects the counter pair and the emit window of the frame.
	FrameIndex uint32

	ParticleColors [ColorCount]mgl32.Vec4

	// Billboard rotates quad corners into the camera plane.
	Billboard mgl32.Mat4
}

// DefaultColors is the palette of the particle sample.
func DefaultColors() [ColorCount]mgl32.Vec4 {
	return [ColorCount]mgl32.Vec4{
		{1, 0.1, 0.1, 0},
		{0.1, 1, 0.1, 0},
		{0.1, 0.1, 1, 0},
		{0.8, 0.8, 0.8, 0},
		{1, 1, 0.1, 0},
		{0.1, 1, 1, 0},
		{1, 1, 0, 0},
		{0.5, 0.8, 0.2, 0},
	}
}

// SetCamera stores the view and projection and derives the billboard rotation, the inverse of the
// view rotation.
func (p *SceneParams) SetCamera(view, proj mgl32.Mat4, eye mgl32.Vec3) {
	p.View = view
	p.Proj = proj
	p.CameraPosition = eye.Vec4(1)
	p.Billboard = view.Mat3().Transpose().Mat4()
}

// Marshal serializes the block in its WGSL uniform layout.
func (p *SceneParams) Marshal() []byte {
	buf := make([]byte, SceneParamsSize)
	common.PutMat4(buf, offView, p.View)
	common.PutMat4(buf, offProj, p.Proj)
	common.PutVec4(buf, offLightDir, p.LightDir)
	common.PutVec4(buf, offCameraPosition, p.CameraPosition)
	common.PutVec4(buf, offForceCenter, p.ForceCenter)
	common.PutUint32(buf, offMaxParticleCount, p.MaxParticleCount)
	common.PutFloat32s(buf, offFrameDeltaTime, p.FrameDeltaTime)
	common.PutUint32(buf, offEmitCount, p.EmitCount)
	common.PutUint32(buf, offFrameIndex, p.FrameIndex)
	for i, c := range p.ParticleColors {
		common.PutVec4(buf, offParticleColors+i*16, c)
	}
	common.PutMat4(buf, offBillboard, p.Billboard)
	return buf
}
