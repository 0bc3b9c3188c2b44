package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/particle"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/present"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 5*time.Second, c.Renderer.FenceTimeout.Duration)
	assert.Equal(t, 3, c.Renderer.FrameCount)
	assert.Equal(t, [4]float32{0.5, 0.25, 0.15, 0}, c.Deferred.ClearColor)
	assert.Equal(t, uint32(100000), c.Particle.Capacity)
	assert.Equal(t, [3]float32{1, 0.1, 0.1}, c.Particle.Colors[0])
	assert.Equal(t, present.PolicyBlocking, c.Renderer.PresentPolicy())
	assert.Equal(t, 1, c.Renderer.SyncInterval())
}

func TestDecodeKeepsDefaultsForAbsentKeys(t *testing.T) {
	toml := []byte(`
[renderer]
backend = "software"
frame_count = 2
fence_timeout = "250ms"
policy = "waitable"

[particle]
draw_mode = "indirect"
force_center = [1.0, 2.0, 3.0, 4.0]
`)
	yaml := []byte(`
renderer:
  backend: software
  frame_count: 2
  fence_timeout: 250ms
  policy: waitable
particle:
  draw_mode: indirect
  force_center: [1, 2, 3, 4]
`)
	for name, tc := range map[string]struct {
		data   []byte
		format Format
	}{
		"toml": {toml, FormatTOML},
		"yaml": {yaml, FormatYAML},
	} {
		t.Run(name, func(t *testing.T) {
			c, err := Decode(tc.data, tc.format)
			require.NoError(t, err)
			assert.Equal(t, "software", c.Renderer.Backend)
			assert.Equal(t, 2, c.Renderer.FrameCount)
			assert.Equal(t, 250*time.Millisecond, c.Renderer.FenceTimeout.Duration)
			assert.Equal(t, present.PolicyWaitable, c.Renderer.PresentPolicy())
			assert.Equal(t, particle.DrawIndirect, c.Particle.Mode())
			assert.Equal(t, [4]float32{1, 2, 3, 4}, c.Particle.ForceCenter)
			assert.Equal(t, 1280, c.Window.Width, "absent key keeps its default")
			assert.Equal(t, uint64(12356), c.Deferred.PointLightSeed)
		})
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"frame count low":  func(c *Config) { c.Renderer.FrameCount = 1 },
		"frame count high": func(c *Config) { c.Renderer.FrameCount = 4 },
		"zero capacity":    func(c *Config) { c.Particle.Capacity = 0 },
		"backend":          func(c *Config) { c.Renderer.Backend = "vulkan" },
		"present mode":     func(c *Config) { c.Renderer.PresentMode = "mailbox" },
		"policy":           func(c *Config) { c.Renderer.Policy = "vsync" },
		"draw mode":        func(c *Config) { c.Particle.DrawMode = "auto" },
		"log level":        func(c *Config) { c.Log.Level = "loud" },
		"fence timeout":    func(c *Config) { c.Renderer.FenceTimeout = Duration{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode([]byte("[renderer]\nbackedn = \"wgpu\"\n"), FormatTOML)
	assert.Error(t, err)
	_, err = Decode([]byte("renderer:\n  backedn: wgpu\n"), FormatYAML)
	assert.Error(t, err)
}

func TestEncodeRoundTripsThroughLoad(t *testing.T) {
	dir := t.TempDir()
	c := Default()
	c.Particle.Capacity = 4096
	for _, name := range []string{"sample.toml", "sample.yaml"} {
		format, err := FormatOf(name)
		require.NoError(t, err)
		data, err := Encode(c, format)
		require.NoError(t, err)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		loaded, err := Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, c, loaded, name)
	}
	_, err := FormatOf("sample.json")
	assert.Error(t, err)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	require.NoError(t, os.WriteFile(path, []byte("[deferred]\nlight_dir = [0.0, 1.0, 0.0]\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c })
	}()

	// The watcher registers asynchronously; keep rewriting until a reload arrives.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	var got *Config
	for got == nil {
		select {
		case got = <-changes:
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("[deferred]\nlight_dir = [1.0, 0.0, 0.0]\n"), 0o644))
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
	assert.Equal(t, [3]float32{1, 0, 0}, got.Tunables().LightDir)

	cancel()
	assert.NoError(t, <-done)
}
