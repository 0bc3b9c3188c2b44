// Command deferred renders the courtyard scene through the deferred pipeline: a depth prepass,
// the G-buffer geometry pass, a full-screen lighting pass and the HUD.
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
	win, err := launch.Window(cfg, "Deferred")
	if err != nil {
		log.Fatalf("window: %v", err)
	}
	r, err := renderer.NewRenderer(win,
		renderer.WithConfig(cfg.Renderer),
		renderer.WithExtent(cfg.Window.Width, cfg.Window.Height),
		renderer.WithClearColor(cfg.Deferred.ClearColor),
	)
	if err != nil {
		log.Fatalf("renderer: %v", err)
	}

	// ── Scene ───────────────────────────────────────────────────────────
	s, err := newSample(r, cfg)
	if err != nil {
		_ = r.Close(ctx)
		log.Fatalf("deferred sample: %v", err)
	}
	if win != nil {
		s.bindInput(win)
	}
	launch.WatchTunables(ctx, flags.ConfigPath, s.applyTunables)

	// ── Run ─────────────────────────────────────────────────────────────
	eng := engine.NewEngine(s, launch.EngineOptions(cfg, flags, win, s.report)...)
	if err := eng.Run(ctx); err != nil {
		common.Logger().Error("deferred sample stopped", "err", err)
		stopProfile()
		os.Exit(1)
	}
}
