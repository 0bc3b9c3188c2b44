package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, want[i], got[i], 1e-4, "component %d of %v", i, got)
	}
}

func newController() CameraController {
	return NewCameraController(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{})
}

func TestOrbitKeepsDistanceToTarget(t *testing.T) {
	cc := newController()
	cc.Orbit(0, 0)
	assertVec3(t, mgl32.Vec3{0, 0, 10}, cc.Position())

	cc.Orbit(0.25, 0)
	assertVec3(t, mgl32.Vec3{10, 0, 0}, cc.Position())
	assertVec3(t, mgl32.Vec3{}, cc.Target())
}

func TestOrbitStaysAwayFromThePoles(t *testing.T) {
	cc := newController()
	cc.Orbit(0, 1)
	eye := cc.Position()
	assert.InDelta(t, 10, eye.Len(), 1e-4)
	assert.Less(t, eye.Y(), float32(10))
	assert.Greater(t, eye.Y(), float32(9.9))
}

func TestDollyClampsToMinDistance(t *testing.T) {
	cc := newController()
	cc.Dolly(0.5)
	assertVec3(t, mgl32.Vec3{0, 0, 5}, cc.Position())
	cc.Dolly(2)
	assertVec3(t, mgl32.Vec3{0, 0, 1}, cc.Position())
}

func TestPanMovesEyeAndTarget(t *testing.T) {
	cc := newController()
	cc.Pan(0.1, 0)
	assertVec3(t, mgl32.Vec3{1, 0, 10}, cc.Position())
	assertVec3(t, mgl32.Vec3{1, 0, 0}, cc.Target())
}

func TestDragSelectsOperationByButton(t *testing.T) {
	cc := newController()
	assert.False(t, cc.MouseMove(10, 10, 100, 100), "no button held")

	cc.ButtonDown(common.MouseRight, 10, 10)
	b, ok := cc.Dragging()
	require.True(t, ok)
	assert.Equal(t, common.MouseRight, b)
	assert.True(t, cc.MouseMove(10, 60, 100, 100))
	assertVec3(t, mgl32.Vec3{0, 0, 5}, cc.Position())

	cc.ButtonUp()
	assert.False(t, cc.Move(0.5, 0.5))

	cc.Reset()
	assertVec3(t, mgl32.Vec3{0, 0, 10}, cc.Position())
}

type recordingBlock struct {
	view, proj mgl32.Mat4
	eye        mgl32.Vec3
}

func (r *recordingBlock) SetCamera(view, proj mgl32.Mat4, eye mgl32.Vec3) {
	r.view, r.proj, r.eye = view, proj, eye
}

func TestCameraAppliesControllerState(t *testing.T) {
	cc := newController()
	cam := NewCamera(WithController(cc), WithAspect(2))

	cc.Pan(0.1, 0)
	cam.Update()

	var block recordingBlock
	cam.Apply(&block)
	assertVec3(t, mgl32.Vec3{1, 0, 10}, block.eye)
	assert.Equal(t, mgl32.LookAtV(cc.Position(), cc.Target(), cc.Up()), block.view)
	assert.Equal(t, common.PerspectiveZO(mgl32.DegToRad(45), 2, 1, 5000), block.proj)

	cam.SetAspect(0)
	assert.Equal(t, float32(2), cam.Aspect(), "non-positive aspect is ignored")
}

func TestBuilderRejectsDegenerateProjection(t *testing.T) {
	cam := NewCamera(WithFov(0), WithAspect(-1), WithClip(10, 5))
	assert.InDelta(t, minFov, cam.Fov(), 1e-6)
	assert.Equal(t, float32(1), cam.Aspect())
	assert.Equal(t, float32(1), cam.Near())
	assert.Equal(t, float32(5000), cam.Far())

	cam.SetClip(0, 100)
	assert.Equal(t, float32(1), cam.Near())
	cam.SetClip(0.5, 100)
	assert.Equal(t, float32(0.5), cam.Near())
}
