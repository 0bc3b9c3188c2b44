package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine"
	"github.com/Carmen-Shannon/oxy-samples/engine/camera"
	"github.com/Carmen-Shannon/oxy-samples/engine/config"
	"github.com/Carmen-Shannon/oxy-samples/engine/overlay"
	"github.com/Carmen-Shannon/oxy-samples/engine/profiler"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/particle"
	"github.com/Carmen-Shannon/oxy-samples/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

// maxStep bounds the simulation step of one frame so a stall does not fling every particle.
const maxStep = 1.0 / 20

// sample drives the particle system. The system is owned by the render goroutine, which is the
// only place it is rebuilt when the draw mode changes.
type sample struct {
	r       renderer.Renderer
	sys     particle.System
	opts    []particle.SystemBuilderOption
	hud     overlay.HUD
	hudGate *overlay.Toggle
	cam     camera.Camera
	ctrl    camera.CameraController

	// simulated is the simulation time already handed to the GPU.
	simulated float32

	mu         sync.Mutex
	paused     bool
	step       bool
	clock      float32
	width      int
	height     int
	mode       particle.DrawMode
	switchMode bool
	restart    bool
	pending    *config.Tunables
	lastFPS    string
	backend    string
}

var _ engine.Sample = &sample{}

func newSample(r renderer.Renderer, cfg *config.Config) (*sample, error) {
	sc := r.Swapchain()
	pc := cfg.Particle
	var colors [particle.ColorCount]mgl32.Vec4
	for i, c := range pc.Colors {
		colors[i] = mgl32.Vec4{c[0], c[1], c[2], 0}
	}
	s := &sample{
		r: r,
		opts: []particle.SystemBuilderOption{
			particle.WithCapacity(pc.Capacity),
			particle.WithEmitCount(pc.EmitCount),
			particle.WithForceCenter(mgl32.Vec4(pc.ForceCenter)),
			particle.WithColors(colors),
		},
		width:   sc.Width(),
		height:  sc.Height(),
		mode:    pc.Mode(),
		backend: r.Backend().String(),
	}

	sys, err := s.build(s.mode)
	if err != nil {
		return nil, err
	}
	s.sys = sys
	if s.hud, err = overlay.NewHUD(r.Device(), r.Ring(), sc.Format()); err != nil {
		s.sys.Destroy()
		return nil, err
	}
	s.hudGate = overlay.NewToggle(s.hud)
	s.hud.SetLines(s.hudLines("")...)

	s.ctrl = camera.NewCameraController(mgl32.Vec3{0, 25, 50}, mgl32.Vec3{0, 5, 0}, camera.WithMinDistance(5))
	s.cam = camera.NewCamera(
		camera.WithFov(mgl32.DegToRad(45)),
		camera.WithAspect(float32(s.width)/float32(max(s.height, 1))),
		camera.WithClip(1, 5000),
		camera.WithController(s.ctrl),
	)
	return s, nil
}

func (s *sample) build(mode particle.DrawMode) (particle.System, error) {
	opts := append([]particle.SystemBuilderOption{particle.WithDrawMode(mode)}, s.opts...)
	sys, err := particle.NewSystem(s.r.Device(), s.r.Ring(), s.r.Swapchain().Format(), opts...)
	if err != nil {
		return nil, fmt.Errorf("particle system (%s): %w", mode, err)
	}
	return sys, nil
}

func (s *sample) bindInput(win window.Window) {
	win.SetMouseDownCallback(s.ctrl.ButtonDown)
	win.SetMouseUpCallback(func(common.MouseButton, int32, int32) { s.ctrl.ButtonUp() })
	win.SetMouseMoveCallback(func(x, y int32) {
		s.mu.Lock()
		w, h := s.width, s.height
		s.mu.Unlock()
		s.ctrl.MouseMove(x, y, w, h)
	})
	win.SetScrollCallback(s.ctrl.Zoom)
	win.SetKeyDownCallback(s.keyDown)
}

func (s *sample) keyDown(key uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key {
	case common.KeyH:
		s.hudGate.Flip()
	case common.KeyI:
		s.switchMode = true
	case common.KeyP:
		s.paused = !s.paused
	case common.KeySpace:
		s.step = true
	case common.KeyR:
		s.ctrl.Reset()
		s.restart = true
	}
}

func (s *sample) applyTunables(t config.Tunables) {
	s.mu.Lock()
	s.pending = &t
	s.mu.Unlock()
}

func (s *sample) report(st profiler.Stats) {
	lines := st.Lines()
	s.hud.SetLines(s.hudLines(lines[0], lines[1:]...)...)
}

func (s *sample) hudLines(fps string, extra ...string) []string {
	s.mu.Lock()
	if fps != "" {
		s.lastFPS = fps
	}
	lines := []string{"particles  " + s.backend + "  " + s.mode.String(), s.lastFPS}
	if s.paused {
		lines = append(lines, "paused")
	}
	s.mu.Unlock()
	return append(lines, extra...)
}

func (s *sample) Tick(dt float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused && !s.step {
		return
	}
	s.step = false
	s.clock += dt
}

func (s *sample) RenderFrame(ctx context.Context, _ float32) error {
	s.mu.Lock()
	clock, pending := s.clock, s.pending
	switchMode, restart, mode := s.switchMode, s.restart, s.mode
	if switchMode {
		mode = 1 - mode
		s.mode = mode
	}
	s.pending, s.switchMode, s.restart = nil, false, false
	s.mu.Unlock()

	if switchMode {
		if err := s.rebuild(ctx, mode); err != nil {
			return err
		}
	} else if restart {
		s.sys.Reset()
	}
	if pending != nil {
		s.sys.Scene().ForceCenter = mgl32.Vec4(pending.ForceCenter)
		common.Logger().Info("tunables applied", "force_center", pending.ForceCenter)
	}

	scene := s.sys.Scene()
	scene.FrameDeltaTime = min(clock-s.simulated, maxStep)
	s.simulated = clock
	s.cam.Update()
	s.cam.Apply(scene)

	return s.r.Frame(ctx, func(cmd gpu.CommandContext, slot int, target overlay.Target) error {
		return overlay.Chain{s.sys, s.hudGate}.Render(cmd, slot, target)
	})
}

// rebuild replaces the system with one drawing in mode. The draw pipelines and the argument
// buffer differ per mode, so the old system is released after the GPU idles.
func (s *sample) rebuild(ctx context.Context, mode particle.DrawMode) error {
	if err := s.r.Ring().WaitIdle(ctx); err != nil {
		return fmt.Errorf("switch draw mode: %w", err)
	}
	scene := *s.sys.Scene()
	s.sys.Destroy()
	sys, err := s.build(mode)
	if err != nil {
		s.sys = nil
		return err
	}
	sys.Scene().ForceCenter = scene.ForceCenter
	s.sys = sys
	common.Logger().Info("particle draw mode switched", "mode", mode.String())
	return nil
}

func (s *sample) Resize(ctx context.Context, width, height int) error {
	if err := s.r.Resize(ctx, width, height); err != nil {
		return err
	}
	s.cam.SetAspect(float32(width) / float32(max(height, 1)))
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
	return nil
}

func (s *sample) Teardown(ctx context.Context) error {
	if err := s.r.Device().WaitIdle(ctx); err != nil {
		common.Logger().Error("particle teardown without idle GPU", "err", err)
	}
	if s.sys != nil {
		s.sys.Destroy()
	}
	s.hud.Destroy()
	return s.r.Close(ctx)
}
