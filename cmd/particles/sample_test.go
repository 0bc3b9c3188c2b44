package main

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/config"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/particle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSample(t *testing.T) (*sample, context.Context) {
	t.Helper()
	cfg := config.Default()
	cfg.Renderer.Backend = "software"
	cfg.Particle.Capacity = 256
	cfg.Particle.EmitCount = 16
	require.NoError(t, cfg.Validate())

	r, err := renderer.NewRenderer(nil, renderer.WithConfig(cfg.Renderer), renderer.WithExtent(16, 16))
	require.NoError(t, err)
	s, err := newSample(r, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return s, ctx
}

func TestSampleSimulatesFrames(t *testing.T) {
	s, ctx := newTestSample(t)
	for range 3 {
		s.Tick(1.0 / 60)
		require.NoError(t, s.RenderFrame(ctx, 1.0/60))
	}
	assert.Equal(t, particle.Steady, s.sys.State())
	assert.InDelta(t, 1.0/60, s.sys.Scene().FrameDeltaTime, 1e-6)
	require.NoError(t, s.Teardown(ctx))
}

func TestSimulationStepIsBounded(t *testing.T) {
	s, ctx := newTestSample(t)
	t.Cleanup(func() { _ = s.Teardown(ctx) })

	s.Tick(2)
	require.NoError(t, s.RenderFrame(ctx, 2))
	assert.InDelta(t, maxStep, s.sys.Scene().FrameDeltaTime, 1e-6)

	s.keyDown(common.KeyP)
	s.Tick(1)
	require.NoError(t, s.RenderFrame(ctx, 1))
	assert.Zero(t, s.sys.Scene().FrameDeltaTime)
}

func TestDrawModeToggleRebuildsSystem(t *testing.T) {
	s, ctx := newTestSample(t)
	t.Cleanup(func() { _ = s.Teardown(ctx) })
	require.NoError(t, s.RenderFrame(ctx, 0))
	before := s.sys

	s.keyDown(common.KeyI)
	require.NoError(t, s.RenderFrame(ctx, 0))
	assert.NotSame(t, before, s.sys)
	assert.Equal(t, particle.DrawIndirect, s.sys.Mode())
	assert.Equal(t, particle.Steady, s.sys.State())
}

func TestForceCenterTunable(t *testing.T) {
	s, ctx := newTestSample(t)
	t.Cleanup(func() { _ = s.Teardown(ctx) })

	tun := config.Default().Tunables()
	tun.ForceCenter = [4]float32{0, 5, 0, 10}
	s.applyTunables(tun)
	require.NoError(t, s.RenderFrame(ctx, 0))
	assert.Equal(t, float32(10), s.sys.Scene().ForceCenter[3])
}
