package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine"
	"github.com/Carmen-Shannon/oxy-samples/engine/camera"
	"github.com/Carmen-Shannon/oxy-samples/engine/config"
	"github.com/Carmen-Shannon/oxy-samples/engine/model"
	"github.com/Carmen-Shannon/oxy-samples/engine/overlay"
	"github.com/Carmen-Shannon/oxy-samples/engine/profiler"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/streamout"
	"github.com/Carmen-Shannon/oxy-samples/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

// rotorSpeed is the rotor's turn rate in radians per second.
const rotorSpeed = 0.6

// sample captures the courtyard every frame. The skeleton and the capture belong to the render
// goroutine; Tick and the input callbacks only touch the fields behind mu.
type sample struct {
	r       renderer.Renderer
	so      streamout.Capture
	skel    *model.Skeleton
	hud     overlay.HUD
	hudGate *overlay.Toggle
	cam     camera.Camera
	ctrl    camera.CameraController

	rotor     int
	rotorBase model.Transform

	mu      sync.Mutex
	paused  bool
	step    bool
	angle   float32
	width   int
	height  int
	pending *config.Tunables
	lastFPS string
	backend string
}

var _ engine.Sample = &sample{}

func newSample(r renderer.Renderer, cfg *config.Config) (*sample, error) {
	sc := r.Swapchain()
	s := &sample{
		r:       r,
		width:   sc.Width(),
		height:  sc.Height(),
		backend: r.Backend().String(),
	}

	mesh := model.Courtyard()
	skel, err := model.NewSkeleton(mesh.Nodes)
	if err != nil {
		return nil, fmt.Errorf("courtyard skeleton: %w", err)
	}
	s.skel = skel
	if s.rotor = skel.Find("rotor"); s.rotor < 0 {
		return nil, errors.New("courtyard has no rotor node")
	}
	s.rotorBase = skel.Local(s.rotor)

	d := cfg.Deferred.LightDir
	s.so, err = streamout.NewCapture(r.Device(), r.Ring(), &mesh, sc.Format(), uint32(s.width), uint32(s.height),
		streamout.WithLightDir(mgl32.Vec3(d)),
		streamout.WithAlbedo(mgl32.Vec3{0.8, 0.75, 0.7}, 0.25),
		streamout.WithCullMode(gpu.CullBack),
	)
	if err != nil {
		return nil, err
	}
	if s.hud, err = overlay.NewHUD(r.Device(), r.Ring(), sc.Format()); err != nil {
		s.so.Destroy()
		return nil, err
	}
	s.hudGate = overlay.NewToggle(s.hud)
	s.hud.SetLines(s.hudLines("")...)

	s.ctrl = camera.NewCameraController(mgl32.Vec3{-830, 370, 76}, mgl32.Vec3{30, -60, -230},
		camera.WithMinDistance(50),
	)
	s.cam = camera.NewCamera(
		camera.WithFov(mgl32.DegToRad(45)),
		camera.WithAspect(float32(s.width)/float32(max(s.height, 1))),
		camera.WithClip(1, 5000),
		camera.WithController(s.ctrl),
	)
	return s, nil
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
	case common.KeyP:
		s.paused = !s.paused
	case common.KeySpace:
		s.step = true
	case common.KeyR:
		s.ctrl.Reset()
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
	lines := []string{fmt.Sprintf("stream out  %s  %d vertices", s.backend, s.so.IndexCount()), s.lastFPS}
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
	s.angle += rotorSpeed * dt
}

func (s *sample) RenderFrame(ctx context.Context, _ float32) error {
	s.mu.Lock()
	angle, pending := s.angle, s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending != nil {
		s.so.Scene().LightDir = mgl32.Vec3(pending.LightDir).Vec4(0)
		common.Logger().Info("tunables applied", "light_dir", pending.LightDir)
	}

	rotor := s.rotorBase
	rotor.Rotation = mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0}).Mul(s.rotorBase.Rotation)
	s.skel.SetLocal(s.rotor, rotor)
	s.skel.Update()
	s.so.SetPose(s.skel)

	s.cam.Update()
	s.cam.Apply(s.so.Scene())

	return s.r.Frame(ctx, func(cmd gpu.CommandContext, slot int, target overlay.Target) error {
		return overlay.Chain{s.so, s.hudGate}.Render(cmd, slot, target)
	})
}

func (s *sample) Resize(ctx context.Context, width, height int) error {
	if err := s.r.Resize(ctx, width, height); err != nil {
		return err
	}
	if err := s.so.Resize(uint32(width), uint32(height)); err != nil {
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
		common.Logger().Error("stream out teardown without idle GPU", "err", err)
	}
	s.so.Destroy()
	s.hud.Destroy()
	return s.r.Close(ctx)
}
