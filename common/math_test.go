package common

import (
	"image"
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlign(t *testing.T) {
	tests := []struct {
		v, a, want uint64
	}{
		{0, 4096, 0},
		{1, 4096, 4096},
		{4096, 4096, 4096},
		{400000, 4096, 401408},
		{13, 0, 13},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Align(tt.v, tt.a))
	}
	assert.Equal(t, uint32(16), Align[uint32](9, 16))
}

func TestPutReadMat4(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2))
	buf := make([]byte, 80)
	next := PutMat4(buf, 0, m)
	require.Equal(t, 64, next)
	next = PutVec4(buf, next, mgl32.Vec4{5, 6, 7, 8})
	require.Equal(t, 80, next)

	assert.Equal(t, m, Mat4At(buf, 0))
	assert.Equal(t, mgl32.Vec4{5, 6, 7, 8}, Vec4At(buf, 64))
	// Translation lives in the fourth column.
	assert.Equal(t, float32(1), Float32At(buf, 48))
}

func TestBuildModelMatrix(t *testing.T) {
	m := BuildModelMatrix(mgl32.Vec3{10, 0, 0}, mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}), mgl32.Vec3{2, 2, 2})
	p := m.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 10, p[0], 1e-5)
	assert.InDelta(t, 0, p[1], 1e-5)
	assert.InDelta(t, -2, p[2], 1e-5)
}

func TestClampCoalesce(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 1, 3))
	assert.Equal(t, 1, Clamp(-5, 1, 3))
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 0, Coalesce(0, 0))
}

func TestImageToStaging(t *testing.T) {
	img := image.NewNRGBA(image.Rect(2, 2, 4, 3))
	img.Set(2, 2, color.NRGBA{R: 255, A: 255})
	img.Set(3, 2, color.NRGBA{G: 255, A: 255})

	staging := ImageToStaging(img)
	require.Equal(t, uint32(2), staging.Width)
	require.Equal(t, uint32(1), staging.Height)
	assert.Equal(t, uint32(8), staging.RowPitch())
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 255, 0, 255}, staging.Pixels)
}

func TestPerspectiveZODepthRange(t *testing.T) {
	m := PerspectiveZO(mgl32.DegToRad(45), 1, 1, 5000)
	near := m.Mul4x1(mgl32.Vec4{0, 0, -1, 1})
	far := m.Mul4x1(mgl32.Vec4{0, 0, -5000, 1})
	assert.InDelta(t, 0, near[2]/near[3], 1e-6)
	assert.InDelta(t, 1, far[2]/far[3], 1e-5)
}
