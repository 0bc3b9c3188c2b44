package deferred

import (
	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxPointLights is the fixed size of the point light array in the scene block.
const MaxPointLights = 8

// Scene block byte offsets.
const (
	offView             = 0
	offProj             = 64
	offLightDir         = 128
	offLightColor       = 144
	offAmbient          = 160
	offCameraPosition   = 176
	offInvViewProj      = 192
	offPointLights      = 256
	offPointLightColors = offPointLights + MaxPointLights*16
	offFrame            = offPointLightColors + MaxPointLights*16

	// SceneParamsSize is the size of the marshaled scene block.
	SceneParamsSize = offFrame + 16
)

// SceneParams mirrors the scene constant block read by every deferred pass. It is rewritten
// wholesale into the active frame slot each frame.
type SceneParams struct {
	View mgl32.Mat4
	Proj mgl32.Mat4

	// LightDir points from the surface toward the directional light.
	LightDir   mgl32.Vec4
	LightColor mgl32.Vec4

	// Ambient scales the per-material ambient reflectance stored in the normal target's w.
	Ambient        mgl32.Vec4
	CameraPosition mgl32.Vec4
	InvViewProj    mgl32.Mat4

	// PointLights holds xyz position and w radius.
	PointLights      [MaxPointLights]mgl32.Vec4
	PointLightColors [MaxPointLights]mgl32.Vec4

	// PointLightCount is the number of leading PointLights entries the lighting pass evaluates.
	PointLightCount uint32
	Time            float32
}

// Marshal serializes the block in its WGSL uniform layout.
func (p *SceneParams) Marshal() []byte {
	buf := make([]byte, SceneParamsSize)
	common.PutMat4(buf, offView, p.View)
	common.PutMat4(buf, offProj, p.Proj)
	common.PutVec4(buf, offLightDir, p.LightDir)
	common.PutVec4(buf, offLightColor, p.LightColor)
	common.PutVec4(buf, offAmbient, p.Ambient)
	common.PutVec4(buf, offCameraPosition, p.CameraPosition)
	common.PutMat4(buf, offInvViewProj, p.InvViewProj)
	for i := range MaxPointLights {
		common.PutVec4(buf, offPointLights+i*16, p.PointLights[i])
		common.PutVec4(buf, offPointLightColors+i*16, p.PointLightColors[i])
	}
	off := common.PutUint32(buf, offFrame, min(p.PointLightCount, MaxPointLights))
	common.PutFloat32s(buf, off, p.Time)
	return buf
}

// SetCamera fills the view, projection, inverse view-projection and camera position entries.
func (p *SceneParams) SetCamera(view, proj mgl32.Mat4, eye mgl32.Vec3) {
	p.View = view
	p.Proj = proj
	p.InvViewProj = proj.Mul4(view).Inv()
	p.CameraPosition = eye.Vec4(1)
}

// Material block byte offsets.
const (
	offWorld   = 0
	offDiffuse = 64
	offMatAmb  = 80

	// MaterialParamsSize is the size of the marshaled material block.
	MaterialParamsSize = 96
)

// MaterialParams mirrors the per-batch constant block.
type MaterialParams struct {
	World   mgl32.Mat4
	// Diffuse holds the diffuse color in xyz and the shininess in w.
	Diffuse mgl32.Vec4
	Ambient mgl32.Vec4
}

// Marshal serializes the block in its WGSL uniform layout.
func (p *MaterialParams) Marshal() []byte {
	buf := make([]byte, MaterialParamsSize)
	p.MarshalInto(buf)
	return buf
}

// MarshalInto serializes the block into buf, which must hold MaterialParamsSize bytes.
func (p *MaterialParams) MarshalInto(buf []byte) {
	common.PutMat4(buf, offWorld, p.World)
	common.PutVec4(buf, offDiffuse, p.Diffuse)
	common.PutVec4(buf, offMatAmb, p.Ambient)
}
