package main

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/config"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSample(t *testing.T) (*sample, context.Context) {
	t.Helper()
	cfg := config.Default()
	cfg.Renderer.Backend = "software"
	require.NoError(t, cfg.Validate())

	r, err := renderer.NewRenderer(nil, renderer.WithConfig(cfg.Renderer), renderer.WithExtent(16, 16))
	require.NoError(t, err)
	s, err := newSample(r, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return s, ctx
}

func TestSampleCapturesFrames(t *testing.T) {
	s, ctx := newTestSample(t)
	for range 3 {
		s.Tick(1.0 / 60)
		require.NoError(t, s.RenderFrame(ctx, 1.0/60))
	}
	assert.Equal(t, gpu.StateStreamOut, s.so.Output().State)
	assert.InDelta(t, 3*rotorSpeed/60, s.angle, 1e-5)
	require.NoError(t, s.Teardown(ctx))
}

func TestRotorDrivesPalette(t *testing.T) {
	s, ctx := newTestSample(t)
	t.Cleanup(func() { _ = s.Teardown(ctx) })

	require.NoError(t, s.RenderFrame(ctx, 0))
	box := s.skel.Find("box0")
	require.GreaterOrEqual(t, box, 0)
	before := s.skel.World(box).Col(3)

	s.Tick(1)
	require.NoError(t, s.RenderFrame(ctx, 1))
	after := s.skel.World(box).Col(3)
	assert.False(t, before.ApproxEqual(after), "box0 stayed at %v", after)

	s.keyDown(common.KeyP)
	angle := s.angle
	s.Tick(1)
	assert.Equal(t, angle, s.angle)
}

func TestResizeFollowsSwapchain(t *testing.T) {
	s, ctx := newTestSample(t)
	t.Cleanup(func() { _ = s.Teardown(ctx) })

	require.NoError(t, s.Resize(ctx, 24, 12))
	require.NoError(t, s.RenderFrame(ctx, 0))
	assert.Equal(t, 24, s.width)
}

func TestLightDirTunable(t *testing.T) {
	s, ctx := newTestSample(t)
	t.Cleanup(func() { _ = s.Teardown(ctx) })

	tun := config.Default().Tunables()
	tun.LightDir = [3]float32{0, 1, 0}
	s.applyTunables(tun)
	require.NoError(t, s.RenderFrame(ctx, 0))
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 0}, s.so.Scene().LightDir)
}
