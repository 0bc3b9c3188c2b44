package main

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/config"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSample(t *testing.T) (*sample, context.Context) {
	t.Helper()
	cfg := config.Default()
	cfg.Renderer.Backend = "software"
	cfg.Window.Width, cfg.Window.Height = 32, 24
	require.NoError(t, cfg.Validate())

	r, err := renderer.NewRenderer(nil, renderer.WithConfig(cfg.Renderer), renderer.WithExtent(32, 24))
	require.NoError(t, err)
	s, err := newSample(r, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return s, ctx
}

func TestSampleRendersAndTearsDown(t *testing.T) {
	s, ctx := newTestSample(t)
	for range 3 {
		s.Tick(1.0 / 60)
		require.NoError(t, s.RenderFrame(ctx, 1.0/60))
	}
	assert.InDelta(t, 3*rotorSpeed/60, s.angle, 1e-5)
	assert.Equal(t, uint32(8), s.o.Scene().PointLightCount)
	require.NoError(t, s.Teardown(ctx))
}

func TestPauseStopsTheRotor(t *testing.T) {
	s, ctx := newTestSample(t)
	t.Cleanup(func() { _ = s.Teardown(ctx) })

	s.keyDown(common.KeyP)
	s.Tick(0.5)
	assert.Zero(t, s.angle)

	s.keyDown(common.KeySpace)
	s.Tick(0.5)
	assert.InDelta(t, rotorSpeed*0.5, s.angle, 1e-6)
	s.Tick(0.5)
	assert.InDelta(t, rotorSpeed*0.5, s.angle, 1e-6)
}

func TestTunablesApplyOnNextFrame(t *testing.T) {
	s, ctx := newTestSample(t)
	t.Cleanup(func() { _ = s.Teardown(ctx) })

	tun := config.Default().Tunables()
	tun.LightDir = [3]float32{0, 1, 0}
	s.applyTunables(tun)
	require.NoError(t, s.RenderFrame(ctx, 0))

	dir := s.o.Scene().LightDir
	assert.InDelta(t, 1, dir[1], 1e-6)
	assert.Nil(t, s.pending)
}

func TestHUDToggle(t *testing.T) {
	s, ctx := newTestSample(t)
	t.Cleanup(func() { _ = s.Teardown(ctx) })

	s.keyDown(common.KeyH)
	assert.False(t, s.hudGate.Visible())
	require.NoError(t, s.RenderFrame(ctx, 0))
}
