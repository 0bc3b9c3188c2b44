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
	"github.com/Carmen-Shannon/oxy-samples/engine/light"
	"github.com/Carmen-Shannon/oxy-samples/engine/model"
	"github.com/Carmen-Shannon/oxy-samples/engine/overlay"
	"github.com/Carmen-Shannon/oxy-samples/engine/profiler"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/deferred"
	"github.com/Carmen-Shannon/oxy-samples/engine/texture"
	"github.com/Carmen-Shannon/oxy-samples/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

// rotorSpeed is the rotor's turn rate in radians per second.
const rotorSpeed = 0.6

// sample drives the courtyard. Tick and the input callbacks only touch the fields behind mu;
// everything else belongs to the render goroutine.
type sample struct {
	r        renderer.Renderer
	o        deferred.Orchestrator
	asset    *model.ModelAsset
	textures texture.Loader
	screen   texture.FrameProducer
	hud      overlay.HUD
	hudGate  *overlay.Toggle
	cam      camera.Camera
	ctrl     camera.CameraController
	rig      *light.Rig

	rotor     int
	rotorBase model.Transform

	mu      sync.Mutex
	paused  bool
	step    bool
	angle   float32
	elapsed float32
	width   int
	height  int
	pending *config.Tunables
	ambient float32
	lastFPS string
	backend string
	policy  string
}

var _ engine.Sample = &sample{}

func newSample(r renderer.Renderer, cfg *config.Config) (*sample, error) {
	dev := r.Device()
	sc := r.Swapchain()
	textures, err := texture.NewLoader(dev)
	if err != nil {
		return nil, err
	}
	s := &sample{
		r:        r,
		textures: textures,
		width:    sc.Width(),
		height:   sc.Height(),
		ambient:  cfg.Deferred.Ambient,
		backend:  r.Backend().String(),
		policy:   r.Presenter().Policy().String(),
	}

	mesh := model.Courtyard()
	asset, err := model.NewLoader(dev, s.textures).Load(&mesh)
	if err != nil {
		s.textures.Destroy()
		return nil, fmt.Errorf("load courtyard: %w", err)
	}
	s.asset = asset
	s.rotor = asset.Skeleton.Find("rotor")
	if s.rotor < 0 {
		s.release()
		return nil, errors.New("courtyard has no rotor node")
	}
	s.rotorBase = asset.Skeleton.Local(s.rotor)

	if s.screen, err = texture.NewCheckerProducer(dev, r.Ring().Count(), 128, 128, 16); err != nil {
		s.release()
		return nil, err
	}
	if s.hud, err = overlay.NewHUD(dev, r.Ring(), sc.Format()); err != nil {
		s.release()
		return nil, err
	}
	s.hudGate = overlay.NewToggle(s.hud)
	s.hud.SetLines(s.hudLines("")...)

	s.o, err = deferred.NewOrchestrator(dev, r.Presenter(), r.Ring(), asset,
		deferred.WithClearColor(cfg.Deferred.ClearColor),
		deferred.WithOverlay(s.hudGate),
		deferred.WithFrameProducer(model.CourtyardScreen, s.screen),
	)
	if err != nil {
		s.release()
		return nil, err
	}

	s.ctrl = camera.NewCameraController(mgl32.Vec3{-830, 370, 76}, mgl32.Vec3{30, -60, -230},
		camera.WithMinDistance(50),
	)
	s.cam = camera.NewCamera(
		camera.WithFov(mgl32.DegToRad(45)),
		camera.WithAspect(float32(s.width)/float32(max(s.height, 1))),
		camera.WithClip(1, 5000),
		camera.WithController(s.ctrl),
	)

	d, c := cfg.Deferred.LightDir, cfg.Deferred.LightColor
	s.rig = light.NewRig(cfg.Deferred.PointLightSeed, light.WithDirection(d[0], d[1], d[2]), light.WithColor(c[0], c[1], c[2]))
	return s, nil
}

// bindInput routes window input to the camera controller and the sample toggles.
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
	switch key {
	case common.KeyH:
		s.hudGate.Flip()
	case common.KeyP:
		s.mu.Lock()
		s.paused = !s.paused
		s.mu.Unlock()
	case common.KeySpace:
		s.mu.Lock()
		s.step = true
		s.mu.Unlock()
	case common.KeyR:
		s.ctrl.Reset()
	}
}

// applyTunables queues reloaded values for the next frame.
func (s *sample) applyTunables(t config.Tunables) {
	s.mu.Lock()
	s.pending = &t
	s.mu.Unlock()
}

// report feeds profiler stats to the HUD.
func (s *sample) report(st profiler.Stats) {
	lines := st.Lines()
	s.hud.SetLines(s.hudLines(lines[0], lines[1:]...)...)
}

func (s *sample) hudLines(fps string, extra ...string) []string {
	s.mu.Lock()
	if fps != "" {
		s.lastFPS = fps
	}
	lines := []string{"deferred  " + s.backend + "  " + s.policy, s.lastFPS}
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
	s.elapsed += dt
}

func (s *sample) RenderFrame(ctx context.Context, _ float32) error {
	s.mu.Lock()
	angle, elapsed, pending := s.angle, s.elapsed, s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending != nil {
		d, c := pending.LightDir, pending.LightColor
		s.rig.Sun.SetDirection(mgl32.Vec3{d[0], d[1], d[2]})
		s.rig.Sun.SetColor(mgl32.Vec3{c[0], c[1], c[2]})
		s.o.SetClearColor(pending.ClearColor)
		common.Logger().Info("tunables applied", "light_dir", d, "clear_color", pending.ClearColor)
	}

	rotor := s.rotorBase
	rotor.Rotation = mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0}).Mul(s.rotorBase.Rotation)
	s.asset.Skeleton.SetLocal(s.rotor, rotor)
	s.asset.Skeleton.Update()

	s.cam.Update()
	scene := s.o.Scene()
	s.cam.Apply(scene)
	s.rig.Apply(scene)
	scene.Ambient = mgl32.Vec4{s.ambient, s.ambient, s.ambient, 0}
	scene.Time = elapsed
	return s.o.RenderFrame(ctx)
}

func (s *sample) Resize(ctx context.Context, width, height int) error {
	if err := s.o.Resize(ctx, width, height); err != nil {
		return err
	}
	s.cam.SetAspect(float32(width) / float32(max(height, 1)))
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
	common.Logger().Info("deferred sample resized", "width", width, "height", height)
	return nil
}

func (s *sample) Teardown(ctx context.Context) error {
	if s.o != nil {
		s.o.Destroy(ctx)
	}
	s.release()
	return s.r.Close(ctx)
}

// release frees everything the sample created on the device. The GPU must be idle.
func (s *sample) release() {
	if s.hud != nil {
		s.hud.Destroy()
	}
	if s.screen != nil {
		s.screen.Destroy()
	}
	if s.asset != nil {
		s.asset.Destroy(s.r.Device())
	}
	s.textures.Destroy()
}
