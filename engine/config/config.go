// Package config loads the sample configuration from TOML or YAML and watches it for tunable
// changes while a sample runs.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/particle"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/present"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration written as a Go duration string ("5s", "250ms") in both formats.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Config is the full configuration of a sample.
type Config struct {
	Log       LogConfig       `toml:"log" yaml:"log"`
	Window    WindowConfig    `toml:"window" yaml:"window"`
	Renderer  RendererConfig  `toml:"renderer" yaml:"renderer"`
	Deferred  DeferredConfig  `toml:"deferred" yaml:"deferred"`
	Particle  ParticleConfig  `toml:"particle" yaml:"particle"`
	Profiling ProfilingConfig `toml:"profiling" yaml:"profiling"`
}

type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" yaml:"level"`
}

type WindowConfig struct {
	Title  string `toml:"title" yaml:"title"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
}

type RendererConfig struct {
	// Backend is wgpu or software.
	Backend string `toml:"backend" yaml:"backend"`
	// FrameCount is both the swapchain image count and the frame slot count.
	FrameCount int `toml:"frame_count" yaml:"frame_count"`
	// PresentMode is vsync or immediate.
	PresentMode string `toml:"present_mode" yaml:"present_mode"`
	// Policy is blocking or waitable.
	Policy             string   `toml:"policy" yaml:"policy"`
	MaxFrameLatency    int      `toml:"max_frame_latency" yaml:"max_frame_latency"`
	FenceTimeout       Duration `toml:"fence_timeout" yaml:"fence_timeout"`
	DebugStateTracking bool     `toml:"debug_state_tracking" yaml:"debug_state_tracking"`
}

type DeferredConfig struct {
	ClearColor     [4]float32 `toml:"clear_color" yaml:"clear_color"`
	LightDir       [3]float32 `toml:"light_dir" yaml:"light_dir"`
	LightColor     [3]float32 `toml:"light_color" yaml:"light_color"`
	Ambient        float32    `toml:"ambient" yaml:"ambient"`
	PointLightSeed uint64     `toml:"point_light_seed" yaml:"point_light_seed"`
}

type ParticleConfig struct {
	Capacity  uint32 `toml:"capacity" yaml:"capacity"`
	EmitCount uint32 `toml:"emit_count" yaml:"emit_count"`
	// ForceCenter is the collision sphere: xyz center, w radius.
	ForceCenter [4]float32                     `toml:"force_center" yaml:"force_center"`
	Colors      [particle.ColorCount][3]float32 `toml:"colors" yaml:"colors"`
	// DrawMode is fixed or indirect.
	DrawMode string `toml:"draw_mode" yaml:"draw_mode"`
}

type ProfilingConfig struct {
	Interval Duration `toml:"interval" yaml:"interval"`
	// CPUProfile enables CPU profiling into the directory of this path when set.
	CPUProfile string `toml:"cpu_profile" yaml:"cpu_profile"`
}

// Tunables is the part of the configuration a running sample applies on reload.
type Tunables struct {
	ClearColor  [4]float32
	LightDir    [3]float32
	LightColor  [3]float32
	ForceCenter [4]float32
}

// Tunables returns the reloadable values.
func (c *Config) Tunables() Tunables {
	return Tunables{
		ClearColor:  c.Deferred.ClearColor,
		LightDir:    c.Deferred.LightDir,
		LightColor:  c.Deferred.LightColor,
		ForceCenter: c.Particle.ForceCenter,
	}
}

// Default returns the values used by the samples when no file is given.
func Default() *Config {
	c := &Config{
		Log: LogConfig{Level: "info"},
		Window: WindowConfig{
			Title:  "oxy samples",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			Backend:         "wgpu",
			FrameCount:      3,
			PresentMode:     "vsync",
			Policy:          "blocking",
			MaxFrameLatency: 1,
			FenceTimeout:    Duration{5 * time.Second},
		},
		Deferred: DeferredConfig{
			ClearColor:     [4]float32{0.5, 0.25, 0.15, 0},
			LightDir:       [3]float32{0.5, 0.25, 0.1},
			LightColor:     [3]float32{1, 1, 1},
			Ambient:        1,
			PointLightSeed: 12356,
		},
		Particle: ParticleConfig{
			Capacity:    100000,
			EmitCount:   64,
			ForceCenter: [4]float32{15, 0, 0, 18},
			DrawMode:    "fixed",
		},
		Profiling: ProfilingConfig{Interval: Duration{time.Second}},
	}
	for i, col := range particle.DefaultColors() {
		c.Particle.Colors[i] = [3]float32{col[0], col[1], col[2]}
	}
	return c
}

// Validate rejects values no sample can run with. Every problem is reported.
//
// Returns:
//   - error: the joined problems wrapping ErrInvalid, nil if the config is usable
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		bad("log.level %q", c.Log.Level)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		bad("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	switch c.Renderer.Backend {
	case "wgpu", "software":
	default:
		bad("renderer.backend %q, want wgpu or software", c.Renderer.Backend)
	}
	if c.Renderer.FrameCount < 2 || c.Renderer.FrameCount > 3 {
		bad("renderer.frame_count %d outside [2, 3]", c.Renderer.FrameCount)
	}
	switch c.Renderer.PresentMode {
	case "vsync", "immediate":
	default:
		bad("renderer.present_mode %q, want vsync or immediate", c.Renderer.PresentMode)
	}
	if _, err := present.ParsePolicy(c.Renderer.Policy); err != nil {
		bad("renderer.policy: %v", err)
	}
	if c.Renderer.MaxFrameLatency < 1 {
		bad("renderer.max_frame_latency %d", c.Renderer.MaxFrameLatency)
	}
	if c.Renderer.FenceTimeout.Duration <= 0 {
		bad("renderer.fence_timeout %s", c.Renderer.FenceTimeout)
	}
	if c.Particle.Capacity == 0 {
		bad("particle.capacity must be positive")
	}
	if _, err := particle.ParseDrawMode(c.Particle.DrawMode); err != nil {
		bad("particle.draw_mode: %v", err)
	}
	if c.Profiling.Interval.Duration < 0 {
		bad("profiling.interval %s", c.Profiling.Interval)
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(l.Level))
	return lvl, err
}

// PresentPolicy returns the parsed presentation policy. Call after Validate.
func (r RendererConfig) PresentPolicy() present.Policy {
	p, _ := present.ParsePolicy(r.Policy)
	return p
}

// SyncInterval maps the present mode to a present sync interval.
func (r RendererConfig) SyncInterval() int {
	if r.PresentMode == "immediate" {
		return 0
	}
	return 1
}

// Mode returns the parsed particle draw mode. Call after Validate.
func (p ParticleConfig) Mode() particle.DrawMode {
	m, _ := particle.ParseDrawMode(p.DrawMode)
	return m
}
