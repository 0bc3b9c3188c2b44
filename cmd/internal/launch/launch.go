// Package launch holds the start-up shared by the sample commands: flags, configuration,
// logging, the optional window and the engine options derived from them.
package launch

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine"
	"github.com/Carmen-Shannon/oxy-samples/engine/config"
	"github.com/Carmen-Shannon/oxy-samples/engine/profiler"
	"github.com/Carmen-Shannon/oxy-samples/engine/window"
)

// Flags are the command line switches every sample accepts.
type Flags struct {
	// ConfigPath is a .toml or .yaml file; empty runs on config.Default.
	ConfigPath string
	// Frames stops the run after this many frames; zero runs until the window closes.
	Frames int
	// Backend overrides renderer.backend when set.
	Backend string
	// CPUProfile overrides profiling.cpu_profile when set.
	CPUProfile string
}

// ParseFlags parses os.Args into Flags.
func ParseFlags() Flags {
	var f Flags
	flag.StringVar(&f.ConfigPath, "config", "", "configuration file (.toml, .yaml)")
	flag.IntVar(&f.Frames, "frames", 0, "stop after this many frames")
	flag.StringVar(&f.Backend, "backend", "", "renderer backend override: wgpu or software")
	flag.StringVar(&f.CPUProfile, "cpuprofile", "", "write a CPU profile into the directory of this path")
	flag.Parse()
	return f
}

// Config loads the configuration named by the flags and applies the overrides.
//
// Parameters:
//   - f: the parsed flags
//
// Returns:
//   - *config.Config: the validated configuration
//   - error: error if the file cannot be loaded or the result is invalid
func Config(f Flags) (*config.Config, error) {
	c := config.Default()
	if f.ConfigPath != "" {
		loaded, err := config.Load(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		c = loaded
	}
	c.Renderer.Backend = common.Coalesce(f.Backend, c.Renderer.Backend)
	c.Profiling.CPUProfile = common.Coalesce(f.CPUProfile, c.Profiling.CPUProfile)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// InstallLogger routes the shared engine logger to stderr at the configured level.
func InstallLogger(c config.LogConfig) error {
	lvl, err := c.SlogLevel()
	if err != nil {
		return fmt.Errorf("log level %q: %w", c.Level, err)
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// Window opens the sample window. The software backend runs headless and gets nil.
//
// Parameters:
//   - c: the validated configuration
//   - title: appended to the configured window title
//
// Returns:
//   - window.Window: the window, nil when headless
//   - error: error if the window cannot be created
func Window(c *config.Config, title string) (window.Window, error) {
	if c.Renderer.Backend == "software" {
		return nil, nil
	}
	return window.NewWindow(
		window.WithTitle(c.Window.Title+" - "+title),
		window.WithWidth(c.Window.Width),
		window.WithHeight(c.Window.Height),
	)
}

// EngineOptions assembles the engine options shared by the samples. The profiler reports into
// report, which may be nil.
func EngineOptions(c *config.Config, f Flags, win window.Window, report func(profiler.Stats)) []engine.EngineBuilderOption {
	popts := []profiler.ProfilerOption{profiler.WithInterval(c.Profiling.Interval.Duration)}
	if report != nil {
		popts = append(popts, profiler.WithReport(report))
	}
	opts := []engine.EngineBuilderOption{
		engine.WithTickRate(60),
		engine.WithProfiling(c.Profiling.Interval.Duration > 0),
		engine.WithProfiler(profiler.NewProfiler(popts...)),
		engine.WithTeardownTimeout(c.Renderer.FenceTimeout.Duration),
	}
	if win != nil {
		opts = append(opts, engine.WithWindow(win))
	}
	frames := f.Frames
	if frames == 0 && win == nil {
		// A headless run has no window to close.
		frames = 300
	}
	opts = append(opts, engine.WithMaxFrames(frames))
	return opts
}

// WatchTunables reloads the configuration file on change and hands its tunables to apply. It
// does nothing when the sample runs on the default configuration.
//
// Parameters:
//   - ctx: stops the watcher
//   - path: the configuration file, may be empty
//   - apply: receives the tunables of every successful reload, from the watcher goroutine
func WatchTunables(ctx context.Context, path string, apply func(config.Tunables)) {
	if path == "" {
		return
	}
	go func() {
		err := config.Watch(ctx, path, func(c *config.Config) {
			apply(c.Tunables())
		})
		if err != nil {
			common.Logger().Warn("config watch stopped", "path", path, "err", err)
		}
	}()
}
