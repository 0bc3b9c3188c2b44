package software

import (
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxVaryings is the number of vec4 interpolants passed from the vertex to the fragment stage.
const MaxVaryings = 8

// MaxAttributes is the number of vertex attribute locations.
const MaxAttributes = 8

// MaxColorTargets is the number of simultaneously bound color targets.
const MaxColorTargets = 4

// VertexInput is the input of one vertex shader invocation.
type VertexInput struct {
	VertexID   uint32
	InstanceID uint32
	Attributes [MaxAttributes]mgl32.Vec4
}

// VertexOutput is the output of one vertex shader invocation. Position is in clip space with a
// zero-to-one depth range.
type VertexOutput struct {
	Position mgl32.Vec4
	Varyings [MaxVaryings]mgl32.Vec4
}

// FragmentInput is the input of one fragment shader invocation. Position holds the pixel center
// in x/y and the interpolated depth in z.
type FragmentInput struct {
	Position    mgl32.Vec4
	Varyings    [MaxVaryings]mgl32.Vec4
	FrontFacing bool
}

// FragmentOutput carries one color per bound render target.
type FragmentOutput struct {
	Colors  [MaxColorTargets]mgl32.Vec4
	Discard bool
}

// Bindings exposes the resources bound to a draw or dispatch to reference programs.
type Bindings interface {
	// Constants returns the bytes of the constant buffer at slot, or nil.
	Constants(slot uint32) []byte

	// Buffer returns the memory of the buffer bound as a shader resource or unordered-access view
	// at slot. Writes through the slice are visible to later commands.
	Buffer(slot uint32) []byte

	// Texture returns the texture bound as a shader resource at slot, or nil.
	Texture(slot uint32) *TextureView
}

// RenderProgram is the host implementation of a vertex/fragment shader pair.
// Fragment is nil for depth-only pipelines.
type RenderProgram struct {
	Vertex   func(in VertexInput, b Bindings) VertexOutput
	Fragment func(in FragmentInput, b Bindings) FragmentOutput
}

// Invocation identifies one compute shader thread.
type Invocation struct {
	GroupID  [3]uint32
	LocalID  [3]uint32
	GlobalID [3]uint32
}

// ComputeProgram is the host implementation of a compute kernel, called once per thread.
type ComputeProgram func(inv Invocation, b Bindings)

// TextureView is a read-only host view of a texture bound as a shader resource.
type TextureView struct {
	Width  int
	Height int
	Format gpu.Format
	texels []float32
}

// Load fetches the texel at integer coordinates, clamped to the texture bounds.
func (v *TextureView) Load(x, y int) mgl32.Vec4 {
	if v == nil || v.Width == 0 || v.Height == 0 {
		return mgl32.Vec4{}
	}
	x = min(max(x, 0), v.Width-1)
	y = min(max(y, 0), v.Height-1)
	i := (y*v.Width + x) * 4
	return mgl32.Vec4{v.texels[i], v.texels[i+1], v.texels[i+2], v.texels[i+3]}
}

// Sample fetches the texel nearest to normalized coordinates (u, v) with clamp addressing.
func (v *TextureView) Sample(u, w float32) mgl32.Vec4 {
	if v == nil {
		return mgl32.Vec4{}
	}
	x := int(math32.Floor(u * float32(v.Width)))
	y := int(math32.Floor(w * float32(v.Height)))
	return v.Load(x, y)
}
