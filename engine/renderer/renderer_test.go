package renderer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/engine/config"
	"github.com/Carmen-Shannon/oxy-samples/engine/overlay"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/present"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSoftwareRenderer(t *testing.T, opts ...RendererBuilderOption) Renderer {
	t.Helper()
	opts = append([]RendererBuilderOption{WithBackend(BackendTypeSoftware), WithExtent(8, 8), WithFrameCount(2)}, opts...)
	r, err := NewRenderer(nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, r.Close(ctx))
	})
	return r
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("software")
	require.NoError(t, err)
	assert.Equal(t, BackendTypeSoftware, b)

	b, err = ParseBackend("wgpu")
	require.NoError(t, err)
	assert.Equal(t, BackendTypeWGPU, b)

	_, err = ParseBackend("d3d12")
	assert.Error(t, err)
}

func TestWGPUBackendNeedsWindow(t *testing.T) {
	_, err := NewRenderer(nil, WithBackend(BackendTypeWGPU))
	assert.Error(t, err)
}

func TestRendererWiresRingToSwapchain(t *testing.T) {
	r := newSoftwareRenderer(t, WithFrameCount(3))
	assert.Equal(t, BackendTypeSoftware, r.Backend())
	assert.Equal(t, 3, r.Swapchain().ImageCount())
	assert.Equal(t, 3, r.Ring().Count())
	assert.Equal(t, 8, r.Swapchain().Width())
	assert.Equal(t, present.PolicyBlocking, r.Presenter().Policy())
}

func TestFrameClearsAndPresents(t *testing.T) {
	r := newSoftwareRenderer(t, WithClearColor([4]float32{0.5, 0.25, 0.15, 0}))
	dev := r.Device().(software.Device)
	ctx := testCtx(t)

	var got []int
	for range 3 {
		image := r.Swapchain().CurrentImageIndex()
		require.NoError(t, r.Frame(ctx, func(cmd gpu.CommandContext, slot int, target overlay.Target) error {
			got = append(got, slot)
			assert.Equal(t, 8, target.Width)
			st, ok := dev.Tracker().State(r.Swapchain().Image(image).Handle)
			require.True(t, ok)
			assert.Equal(t, gpu.StateRenderTarget, st, "the recorder runs with the back buffer bound as a render target")
			return nil
		}))
	}
	assert.Equal(t, []int{0, 1, 0}, got)

	require.NoError(t, dev.WaitIdle(ctx))
	out, err := dev.ReadTexture(r.Swapchain().Image(0).Handle)
	require.NoError(t, err)
	px := out.At(3, 3)
	assert.InDelta(t, 0.5, px[0], 0.01)
	assert.InDelta(t, 0.25, px[1], 0.01)
	assert.InDelta(t, 0.15, px[2], 0.01)
	assert.Equal(t, gpu.StatePresent, r.Swapchain().Image(0).State)
}

func TestFrameRecordErrorIsFatalButSubmits(t *testing.T) {
	r := newSoftwareRenderer(t)
	boom := errors.New("boom")
	err := r.Frame(testCtx(t), func(gpu.CommandContext, int, overlay.Target) error { return boom })
	require.ErrorIs(t, err, boom)

	// The slot was closed and submitted, so it retires and the next frame can reuse it.
	require.NoError(t, r.Ring().WaitIdle(testCtx(t)))
	assert.NoError(t, r.Frame(testCtx(t), func(gpu.CommandContext, int, overlay.Target) error { return nil }))
}

func TestResizeRecreatesImages(t *testing.T) {
	r := newSoftwareRenderer(t)
	before := r.Swapchain().Image(0).Handle
	require.NoError(t, r.Resize(testCtx(t), 16, 4))
	assert.Equal(t, 16, r.Swapchain().Width())
	assert.Equal(t, 4, r.Swapchain().Height())
	assert.NotEqual(t, before, r.Swapchain().Image(0).Handle)
}

func TestWithConfig(t *testing.T) {
	c := config.Default()
	c.Renderer.Backend = "software"
	c.Renderer.FrameCount = 2
	c.Renderer.Policy = "waitable"
	c.Renderer.PresentMode = "immediate"
	c.Renderer.MaxFrameLatency = 2
	require.NoError(t, c.Validate())

	r := newSoftwareRenderer(t, WithConfig(c.Renderer))
	assert.Equal(t, BackendTypeSoftware, r.Backend())
	assert.Equal(t, 2, r.Ring().Count())
	assert.Equal(t, present.PolicyWaitable, r.Presenter().Policy())
	require.NoError(t, r.Frame(testCtx(t), func(gpu.CommandContext, int, overlay.Target) error { return nil }))
}

func TestInjectedDeviceIsNotClosed(t *testing.T) {
	d := software.NewDevice()
	t.Cleanup(func() { _ = d.Close() })
	r, err := NewRenderer(nil, WithDevice(d), WithExtent(4, 4), WithFrameCount(2))
	require.NoError(t, err)
	require.NoError(t, r.Close(testCtx(t)))

	_, err = d.CreateBuffer(gpu.BufferDesc{Label: "after", Size: 16, Usage: gpu.BufferUsageConstant | gpu.BufferUsageUpload})
	assert.NoError(t, err)
}
