package overlay

import (
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/frame_ring"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clearColor = [4]float32{0, 0, 1, 1}

func renderHUD(t *testing.T, lines ...string) (software.Device, gpu.TextureData) {
	t.Helper()
	d := software.NewDevice(software.WithRasterWorkers(1))
	t.Cleanup(func() { _ = d.Close() })
	ring, err := frame_ring.NewRing(d)
	require.NoError(t, err)

	rt, err := d.CreateTexture(gpu.TextureDesc{Label: "target", Width: 64, Height: 32, Format: gpu.FormatRGBA32Float, Usage: gpu.TextureUsageRenderTarget, InitialState: gpu.StateRenderTarget})
	require.NoError(t, err)
	rtv, err := d.CreateView(rt, gpu.ViewRenderTarget)
	require.NoError(t, err)

	h, err := NewHUD(d, ring, gpu.FormatRGBA32Float, WithPanelSize(32, 16), WithMargin(0), WithBackground(color.RGBA{A: 255}))
	require.NoError(t, err)
	h.SetLines(lines...)

	slot := ring.AcquireSlot()
	require.NoError(t, ring.Reset(slot))
	cmd := ring.Context(slot)
	cmd.ClearRenderTarget(rtv, clearColor)
	cmd.SetRenderTargets([]gpu.Descriptor{rtv}, nil)
	cmd.SetViewport(gpu.Viewport{Width: 64, Height: 32, MaxDepth: 1})
	require.NoError(t, h.Render(cmd, slot, Target{RTV: rtv, Format: gpu.FormatRGBA32Float, Width: 64, Height: 32}))
	_, err = ring.Submit(slot)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.WaitIdle(ctx))
	out, err := d.ReadTexture(rt.Handle)
	require.NoError(t, err)

	h.Destroy()
	ring.Destroy()
	return d, out
}

func TestHUDCompositesTextPanel(t *testing.T) {
	_, out := renderHUD(t, "HH")

	assert.Equal(t, [4]float32{0, 0, 0, 1}, out.At(0, 0), "panel background")
	assert.Equal(t, clearColor, out.At(60, 30), "outside the panel")
	assert.Equal(t, clearColor, out.At(40, 4), "right of the panel")

	white := 0
	for y := range 16 {
		for x := range 32 {
			if out.At(x, y)[0] > 0.9 {
				white++
			}
		}
	}
	assert.Greater(t, white, 0)
}

func TestHUDWithoutTextDrawsNothing(t *testing.T) {
	d, out := renderHUD(t)
	assert.Equal(t, clearColor, out.At(0, 0))
	for _, e := range d.Trace() {
		assert.NotEqual(t, software.TraceDraw, e.Op)
	}
}

func TestPanelRect(t *testing.T) {
	r := PanelRect(32, 16, 8, 64, 32)
	assert.InDelta(t, -0.75, r[0], 1e-6)
	assert.InDelta(t, 0.5, r[1], 1e-6)
	assert.InDelta(t, 0.25, r[2], 1e-6)
	assert.InDelta(t, -0.5, r[3], 1e-6)
	assert.Equal(t, mgl32.Vec4{-1, 1, 1, -1}, PanelRect(10, 10, 0, 10, 10))
}

type recorder struct {
	name  string
	calls *[]string
	err   error
}

func (r recorder) Render(gpu.CommandContext, int, Target) error {
	*r.calls = append(*r.calls, r.name)
	return r.err
}

func TestChainStopsAtFirstError(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	c := Chain{recorder{"a", &calls, nil}, nil, recorder{"b", &calls, boom}, recorder{"c", &calls, nil}}
	assert.ErrorIs(t, c.Render(nil, 0, Target{}), boom)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestToggleHidesOverlay(t *testing.T) {
	var calls []string
	tg := NewToggle(recorder{"hud", &calls, nil})
	require.NoError(t, tg.Render(nil, 0, Target{}))
	assert.True(t, tg.Visible())

	assert.False(t, tg.Flip())
	require.NoError(t, tg.Render(nil, 0, Target{}))
	assert.Equal(t, []string{"hud"}, calls)

	assert.True(t, tg.Flip())
	require.NoError(t, tg.Render(nil, 0, Target{}))
	assert.Equal(t, []string{"hud", "hud"}, calls)
}
