package light

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/deferred"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDirectionNormalizes(t *testing.T) {
	l := NewLight(LightTypeDirectional, WithDirection(0, 0, 2))
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, l.Direction())

	l.SetDirection(mgl32.Vec3{})
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, l.Direction(), "zero direction is ignored")
}

func TestRigIsDeterministicPerSeed(t *testing.T) {
	a, b := NewRig(DefaultSeed), NewRig(DefaultSeed)
	c := NewRig(DefaultSeed + 1)
	for i := range a.Points {
		assert.Equal(t, a.Points[i].Position(), b.Points[i].Position())
	}
	assert.NotEqual(t, a.Points[1].Position(), c.Points[1].Position())
}

func TestRigPlacementBounds(t *testing.T) {
	r := NewRig(DefaultSeed)
	assert.Equal(t, mgl32.Vec3{1000, 200, 0}, r.Points[0].Position())
	assert.Equal(t, float32(500), r.Points[0].Range())
	for i := 1; i < len(r.Points); i++ {
		p := r.Points[i].Position()
		assert.True(t, p[0] >= -650 && p[0] <= 650, "x of light %d", i)
		assert.True(t, p[1] >= 0 && p[1] <= 300, "y of light %d", i)
		assert.True(t, p[2] >= -650 && p[2] <= 650, "z of light %d", i)
		rad := r.Points[i].Range()
		assert.True(t, rad >= 50 && rad <= 250, "radius of light %d", i)
		assert.Equal(t, PointColors[i], r.Points[i].Color())
	}
}

func TestApplyPacksEnabledLights(t *testing.T) {
	r := NewRig(DefaultSeed, WithColor(0.5, 0.5, 0.5), WithIntensity(2))
	r.Points[2].SetEnabled(false)

	var p deferred.SceneParams
	p.PointLights[7] = mgl32.Vec4{9, 9, 9, 9}
	r.Apply(&p)

	require.Equal(t, uint32(7), p.PointLightCount)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 0}, p.LightColor)
	assert.InDelta(t, 1.0, p.LightDir.Vec3().Len(), 1e-6)
	assert.Equal(t, r.Points[3].Position().Vec4(r.Points[3].Range()), p.PointLights[2], "disabled light is skipped")
	assert.Equal(t, mgl32.Vec4{}, p.PointLights[7])
}
