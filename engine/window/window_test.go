package window

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/stretchr/testify/assert"
)

func TestSettingsNormalized(t *testing.T) {
	s := defaultSettings()
	WithSizeLimits(400, 300, 800, 600)(&s)
	WithWidth(2000)(&s)
	WithHeight(10)(&s)
	n := s.normalized()
	assert.Equal(t, 800, n.width)
	assert.Equal(t, 300, n.height)

	// Inverted limits collapse onto the minimum.
	WithSizeLimits(500, 500, 100, 100)(&s)
	n = s.normalized()
	assert.Equal(t, 500, n.maxWidth)
	assert.Equal(t, 500, n.width)
}

func TestSizePacking(t *testing.T) {
	w, h := unpackSize(packSize(1920, 1080))
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	w, h = unpackSize(packSize(-1, 0))
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestResizeForwardsChangesOnly(t *testing.T) {
	w := &engineWindow{}
	var sizes [][2]int
	w.SetResizeCallback(func(width, height int) { sizes = append(sizes, [2]int{width, height}) })

	w.setSize(640, 480)
	w.setSize(640, 480)
	w.setSize(0, 0)
	assert.Equal(t, [][2]int{{640, 480}, {0, 0}}, sizes)
	assert.True(t, w.minimized())
}

func TestKeyRoutingAndEscape(t *testing.T) {
	w := &engineWindow{}
	var down, up []uint32
	w.SetKeyDownCallback(func(k uint32) { down = append(down, k) })
	w.SetKeyUpCallback(func(k uint32) { up = append(up, k) })

	w.key(common.KeyH, true)
	w.key(common.KeyH, false)
	assert.Equal(t, []uint32{common.KeyH}, down)
	assert.Equal(t, []uint32{common.KeyH}, up)

	w.key(common.KeyEsc, true)
	assert.False(t, w.IsRunning())
	assert.Len(t, down, 1, "escape closes instead of reaching the sample")
}

func TestButtonFiltersExtraButtons(t *testing.T) {
	w := &engineWindow{}
	var got []common.MouseButton
	w.SetMouseDownCallback(func(b common.MouseButton, _, _ int32) { got = append(got, b) })

	w.button(common.MouseRight, true, 1, 2)
	w.button(common.MouseButton(4), true, 1, 2)
	w.button(common.MouseLeft, false, 1, 2)
	assert.Equal(t, []common.MouseButton{common.MouseRight}, got)
}
