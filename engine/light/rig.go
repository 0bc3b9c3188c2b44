package light

import (
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/deferred"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultSeed seeds the point light placement of the deferred sample.
const DefaultSeed = 12356

// PointColors is the palette assigned to the eight point lights in order.
var PointColors = [deferred.MaxPointLights]mgl32.Vec3{
	{1.0, 0.1, 0.1},
	{0.1, 1.0, 0.1},
	{0.1, 0.1, 1.0},
	{0.8, 0.8, 0.8},
	{1.0, 1.0, 0.1},
	{0.1, 1.0, 1.0},
	{1.0, 1.0, 0.0},
	{0.5, 0.8, 0.2},
}

// Rig is the light set of a deferred scene: one directional light and a fixed array of point lights.
type Rig struct {
	Sun    Light
	Points [deferred.MaxPointLights]Light
}

// NewRig creates the sample rig: the sun toward (0.5, 0.25, 0.1) and eight point lights scattered
// over the courtyard by seed. Point light 0 is pinned at (1000, 200, 0) with radius 500.
//
// Parameters:
//   - seed: the placement seed; equal seeds give equal rigs
//   - sun: options applied to the directional light after its defaults
//
// Returns:
//   - *Rig: the rig
func NewRig(seed uint64, sun ...LightBuilderOption) *Rig {
	r := &Rig{
		Sun: NewLight(LightTypeDirectional, append([]LightBuilderOption{WithDirection(0.5, 0.25, 0.1)}, sun...)...),
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	uniform := func(lo, hi float32) float32 {
		return lo + rng.Float32()*(hi-lo)
	}
	for i := range r.Points {
		x := uniform(-650, 650)
		y := uniform(0, 300)
		z := uniform(-650, 650)
		c := PointColors[i]
		r.Points[i] = NewLight(LightTypePoint,
			WithPosition(x, y, z),
			WithRange(uniform(50, 250)),
			WithColor(c[0], c[1], c[2]),
		)
	}
	r.Points[0].SetPosition(mgl32.Vec3{1000, 200, 0})
	r.Points[0].SetRange(500)
	return r
}

// Apply packs the rig into the scene block. Enabled point lights are written contiguously from
// slot 0 and PointLightCount is set to their number; unused slots are zeroed.
//
// Parameters:
//   - p: the scene block to fill
func (r *Rig) Apply(p *deferred.SceneParams) {
	if r.Sun != nil {
		p.LightDir = r.Sun.Direction().Vec4(0)
		if r.Sun.Enabled() {
			p.LightColor = r.Sun.Color().Mul(r.Sun.Intensity()).Vec4(0)
		} else {
			p.LightColor = mgl32.Vec4{}
		}
	}

	n := 0
	for _, l := range r.Points {
		if l == nil || !l.Enabled() {
			continue
		}
		p.PointLights[n] = l.Position().Vec4(l.Range())
		p.PointLightColors[n] = l.Color().Mul(l.Intensity()).Vec4(0)
		n++
	}
	for i := n; i < deferred.MaxPointLights; i++ {
		p.PointLights[i] = mgl32.Vec4{}
		p.PointLightColors[i] = mgl32.Vec4{}
	}
	p.PointLightCount = uint32(n)
}
