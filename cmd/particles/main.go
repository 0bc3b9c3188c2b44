// Command particles runs the GPU particle system: init, emit and update compute passes followed
// by an instanced billboard draw, with the HUD on top.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-samples/cmd/internal/launch"
	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine"
	"github.com/Carmen-Shannon/oxy-samples/engine/profiler"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"
)

func main() {
	flags := launch.ParseFlags()
	cfg, err := launch.Config(flags)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := launch.InstallLogger(cfg.Log); err != nil {
		log.Fatal(err)
	}
	stopProfile := profiler.StartCPUProfile(cfg.Profiling.CPUProfile)
	defer stopProfile()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// ── Window + Renderer ───────────────────────────────────────────────
	win, err := launch.Window(cfg, "Particles")
	if err != nil {
		log.Fatalf("window: %v", err)
	}
	r, err := renderer.NewRenderer(win,
		renderer.WithConfig(cfg.Renderer),
		renderer.WithExtent(cfg.Window.Width, cfg.Window.Height),
		renderer.WithClearColor([4]float32{0, 0, 0, 1}),
	)
	if err != nil {
		log.Fatalf("renderer: %v", err)
	}

	// ── Scene ───────────────────────────────────────────────────────────
	s, err := newSample(r, cfg)
	if err != nil {
		_ = r.Close(ctx)
		log.Fatalf("particle sample: %v", err)
	}
	if win != nil {
		s.bindInput(win)
	}
	launch.WatchTunables(ctx, flags.ConfigPath, s.applyTunables)

	// ── Run ─────────────────────────────────────────────────────────────
	eng := engine.NewEngine(s, launch.EngineOptions(cfg, flags, win, s.report)...)
	if err := eng.Run(ctx); err != nil {
		common.Logger().Error("particle sample stopped", "err", err)
		stopProfile()
		os.Exit(1)
	}
}
