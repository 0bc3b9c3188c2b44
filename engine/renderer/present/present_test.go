package present

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/frame_ring"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dev  software.Device
	sc   gpu.Swapchain
	ring frame_ring.Ring
	p    Presenter
}

func newFixture(t *testing.T, waitable bool, opts ...PresenterBuilderOption) fixture {
	t.Helper()
	d := software.NewDevice(software.WithManualRetire(), software.WithRasterWorkers(1))
	t.Cleanup(func() { _ = d.Close() })
	sc, err := d.CreateSwapchain(gpu.SwapchainDesc{Label: "main", Width: 4, Height: 4, ImageCount: 2, Waitable: waitable, MaxFrameLatency: 1})
	require.NoError(t, err)
	r, err := frame_ring.NewRing(d, frame_ring.WithSlotCount(2), frame_ring.WithIndexSource(sc.CurrentImageIndex))
	require.NoError(t, err)
	return fixture{dev: d, sc: sc, ring: r, p: NewPresenter(sc, opts...)}
}

// recordFrame transitions the back buffer to RenderTarget and back, then submits the slot.
func (f fixture) recordFrame(t *testing.T, index int) {
	t.Helper()
	slot := f.ring.AcquireSlot()
	require.Equal(t, index, slot)
	require.NoError(t, f.ring.Reset(slot))
	c := f.ring.Context(slot)
	c.ResourceBarrier(f.p.BarrierToRenderTarget(index))
	_, rtv := f.p.BackBuffer(index)
	c.ClearRenderTarget(rtv, [4]float32{0.5, 0.25, 0.15, 0})
	c.ResourceBarrier(f.p.BarrierToPresent(index))
	_, err := f.ring.Submit(slot)
	require.NoError(t, err)
}

func TestBarriersNameTheBackBuffer(t *testing.T) {
	f := newFixture(t, false)
	img, _ := f.p.BackBuffer(1)

	toRT := f.p.BarrierToRenderTarget(1)
	assert.Equal(t, gpu.Barrier{Type: gpu.BarrierTransition, Resource: img.Handle, Before: gpu.StatePresent, After: gpu.StateRenderTarget}, toRT)
	toPresent := f.p.BarrierToPresent(1)
	assert.Equal(t, gpu.StateRenderTarget, toPresent.Before)
	assert.Equal(t, gpu.StatePresent, toPresent.After)
}

func TestBlockingPolicyWaitsForReusedSlot(t *testing.T) {
	f := newFixture(t, false, WithFenceTimeout(20*time.Millisecond))
	ctx := context.Background()

	index, err := f.p.BeginFrame(ctx, f.ring)
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	f.recordFrame(t, index)
	require.NoError(t, f.p.EndFrame(ctx, f.ring), "slot 1 was never submitted")

	index, err = f.p.BeginFrame(ctx, f.ring)
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	f.recordFrame(t, index)
	assert.ErrorIs(t, f.p.EndFrame(ctx, f.ring), gpu.ErrFenceTimeout, "slot 0 is still held by the GPU")

	f.dev.Retire(2)
	require.NoError(t, f.p.WaitPreviousFrame(ctx, f.ring, 0, 5*time.Second))
	require.NoError(t, f.dev.WaitIdle(ctx))
	assert.Equal(t, []int{0, 1}, f.sc.(software.Presented).PresentedImages())
}

func TestWaitablePolicyBoundsLatency(t *testing.T) {
	f := newFixture(t, true, WithPolicy(PolicyWaitable), WithFenceTimeout(200*time.Millisecond))
	ctx := context.Background()
	f.dev.Retire(100)

	index, err := f.p.BeginFrame(ctx, f.ring)
	require.NoError(t, err)
	f.recordFrame(t, index)

	// The latency token is taken and not yet returned by a present.
	_, err = f.p.BeginFrame(ctx, f.ring)
	assert.ErrorIs(t, err, gpu.ErrFenceTimeout)

	require.NoError(t, f.p.EndFrame(ctx, f.ring))
	index, err = f.p.BeginFrame(ctx, f.ring)
	require.NoError(t, err)
	assert.Equal(t, 1, index)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("waitable")
	require.NoError(t, err)
	assert.Equal(t, PolicyWaitable, p)
	assert.Equal(t, "blocking", PolicyBlocking.String())
	_, err = ParsePolicy("vsync")
	assert.Error(t, err)
}
