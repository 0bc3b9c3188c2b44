package deferred

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/model"
	"github.com/Carmen-Shannon/oxy-samples/engine/overlay"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/frame_ring"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/present"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/Carmen-Shannon/oxy-samples/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dev   software.Device
	sc    gpu.Swapchain
	ring  frame_ring.Ring
	asset *model.ModelAsset
	o     Orchestrator
}

func newFixture(t *testing.T, mesh model.MeshData, width, height int, opts ...OrchestratorBuilderOption) fixture {
	t.Helper()
	d := software.NewDevice(software.WithRasterWorkers(2))
	t.Cleanup(func() { _ = d.Close() })

	sc, err := d.CreateSwapchain(gpu.SwapchainDesc{Label: "main", Width: width, Height: height, Format: gpu.FormatRGBA32Float, ImageCount: 2})
	require.NoError(t, err)
	ring, err := frame_ring.NewRing(d, frame_ring.WithSlotCount(2), frame_ring.WithIndexSource(sc.CurrentImageIndex))
	require.NoError(t, err)

	textures, err := texture.NewLoader(d)
	require.NoError(t, err)
	asset, err := model.NewLoader(d, textures).Load(&mesh)
	require.NoError(t, err)

	o, err := NewOrchestrator(d, present.NewPresenter(sc), ring, asset, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.Destroy(ctx)
		ring.Destroy()
		asset.Destroy(d)
		textures.Destroy()
	})
	return fixture{dev: d, sc: sc, ring: ring, asset: asset, o: o}
}

func (f fixture) render(t *testing.T) gpu.TextureData {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	image := f.sc.CurrentImageIndex()
	require.NoError(t, f.o.RenderFrame(ctx))
	require.NoError(t, f.dev.WaitIdle(ctx))
	out, err := f.dev.ReadTexture(f.sc.Image(image).Handle)
	require.NoError(t, err)
	return out
}

// topDown looks straight down at the origin from 10 units above.
func topDown() SceneParams {
	var p SceneParams
	eye := mgl32.Vec3{0, 10, 0}
	p.SetCamera(mgl32.LookAtV(eye, mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}), common.PerspectiveZO(mgl32.DegToRad(90), 1, 1, 100), eye)
	p.LightDir = mgl32.Vec4{0, 1, 0, 0}
	p.LightColor = mgl32.Vec4{0.5, 0.5, 0.5, 0}
	p.Ambient = mgl32.Vec4{1, 1, 1, 0}
	return p
}

func floor() model.MeshData {
	m := model.Plane("floor", 100)
	m.Materials = []model.MaterialData{{Name: "white", Diffuse: mgl32.Vec3{1, 1, 1}, Ambient: mgl32.Vec3{0.2, 0.2, 0.2}, Shininess: 8}}
	return m
}

func TestLambertianLighting(t *testing.T) {
	f := newFixture(t, floor(), 8, 8, WithScene(topDown()))
	out := f.render(t)

	for y := range 8 {
		for x := range 8 {
			c := out.At(x, y)
			for ch := range 3 {
				assert.InDelta(t, 0.7, c[ch], 1e-5, "pixel (%d,%d) channel %d", x, y, ch)
			}
			assert.Equal(t, float32(1), c[3])
		}
	}
}

func TestPointLightAddsAttenuatedDiffuse(t *testing.T) {
	scene := topDown()
	scene.LightColor = mgl32.Vec4{}
	// A light 50 units above the floor with radius 100 contributes (1 - 50/100) at the center.
	scene.PointLights[0] = mgl32.Vec4{0, 50, 0, 100}
	scene.PointLightColors[0] = mgl32.Vec4{1, 0, 0, 0}
	scene.PointLightCount = 1

	light := Shade(scene.Marshal(), mgl32.Vec3{}, mgl32.Vec4{0, 1, 0, 0.2})
	assert.InDelta(t, 0.2+0.5, light[0], 1e-6)
	assert.InDelta(t, 0.2, light[1], 1e-6)

	// Point lights past the count are ignored.
	scene.PointLightCount = 0
	light = Shade(scene.Marshal(), mgl32.Vec3{}, mgl32.Vec4{0, 1, 0, 0.2})
	assert.InDelta(t, 0.2, light[0], 1e-6)
}

func TestEmptyPixelsKeepClearColor(t *testing.T) {
	mesh := model.Plane("tile", 3)
	clearColor := [4]float32{0.5, 0.25, 0.15, 0}
	f := newFixture(t, mesh, 8, 8, WithScene(topDown()), WithClearColor(clearColor))
	out := f.render(t)

	assert.Equal(t, clearColor, out.At(0, 0))
	assert.NotEqual(t, clearColor, out.At(4, 4))
}

func TestSetClearColorAppliesNextFrame(t *testing.T) {
	f := newFixture(t, model.Plane("tile", 3), 8, 8, WithScene(topDown()))
	f.render(t)

	next := [4]float32{0, 0.5, 1, 0}
	f.o.SetClearColor(next)
	out := f.render(t)
	assert.Equal(t, next, out.At(0, 0))
}

func TestGBufferStatesAroundPasses(t *testing.T) {
	f := newFixture(t, model.Courtyard(), 16, 12, WithClearColor([4]float32{0.5, 0.25, 0.15, 0}))
	f.render(t)
	f.render(t)

	targets := f.o.GBuffer().Targets
	seen := map[string]int{}
	for _, e := range f.dev.Events() {
		var want gpu.ResourceState
		switch e.Name {
		case EventLighting:
			want = gpu.StatePixelShaderResource
		case EventGeometry, EventZPrePass:
			want = gpu.StateRenderTarget
		default:
			continue
		}
		seen[e.Name]++
		for _, tgt := range targets {
			assert.Equal(t, want, e.States[tgt.Handle], "%s before %s in %s", tgt.Label, e.Name, e.Context)
		}
	}
	assert.Equal(t, map[string]int{EventZPrePass: 2, EventGeometry: 2, EventLighting: 2}, seen)

	for i := range f.sc.ImageCount() {
		s, ok := f.dev.Tracker().State(f.sc.Image(i).Handle)
		require.True(t, ok)
		assert.Equal(t, gpu.StatePresent, s)
	}
	assert.Equal(t, gpu.StateRenderTarget, f.o.GBuffer().State())
}

func TestFrameIsBitIdenticalAcrossRepeats(t *testing.T) {
	scene := DefaultScene(4.0 / 3.0)
	scene.PointLights[0] = mgl32.Vec4{0, 200, 0, 500}
	scene.PointLightColors[0] = mgl32.Vec4{1, 0.1, 0.1, 0}
	scene.PointLightCount = 1
	f := newFixture(t, model.Courtyard(), 32, 24, WithScene(scene))

	first := f.render(t)
	second := f.render(t)
	third := f.render(t)
	assert.Equal(t, first.Texels, second.Texels)
	assert.Equal(t, first.Texels, third.Texels)
}

func TestSceneConstantsRoundTrip(t *testing.T) {
	scene := topDown()
	scene.Time = 1.5
	f := newFixture(t, floor(), 4, 4, WithScene(scene))
	o := f.o.(*orchestrator)

	slot := f.ring.AcquireSlot()
	require.NoError(t, f.o.WriteConstants(slot))
	got, err := f.ring.ReadConstants(slot, o.sceneCB)
	require.NoError(t, err)
	assert.Equal(t, scene.Marshal(), got[:SceneParamsSize])
	assert.Equal(t, uint64(768), o.sceneCB.Size())
	assert.Equal(t, float32(1.5), common.Float32At(got, offFrame+4))
}

func TestParallelMaterialPacking(t *testing.T) {
	f := newFixture(t, model.Courtyard(), 4, 4, WithPackWorkers(3, 1))
	o := f.o.(*orchestrator)
	require.NotNil(t, o.pool)

	require.NoError(t, f.o.WriteConstants(1))
	for i := range f.asset.Batches {
		got, err := f.ring.ReadConstants(1, o.batchCBs[i])
		require.NoError(t, err)
		p := o.materialParams(i)
		assert.Equal(t, p.Marshal(), got[:MaterialParamsSize], "batch %d", i)
	}

	p := o.materialParams(0)
	assert.Equal(t, mgl32.Vec4{0.6, 0.6, 0.6, 16}, p.Diffuse)
}

type recordingOverlay struct {
	slots   []int
	targets []overlay.Target
}

func (r *recordingOverlay) Render(cmd gpu.CommandContext, slot int, target overlay.Target) error {
	r.slots = append(r.slots, slot)
	r.targets = append(r.targets, target)
	return nil
}

func TestOverlayAndProducerHooks(t *testing.T) {
	ov := &recordingOverlay{}
	mesh := model.Courtyard()

	d := software.NewDevice(software.WithRasterWorkers(1))
	defer d.Close()
	producer, err := texture.NewCheckerProducer(d, 2, 8, 8, 2)
	require.NoError(t, err)
	defer producer.Destroy()

	sc, err := d.CreateSwapchain(gpu.SwapchainDesc{Width: 8, Height: 8, ImageCount: 2})
	require.NoError(t, err)
	ring, err := frame_ring.NewRing(d, frame_ring.WithIndexSource(sc.CurrentImageIndex))
	require.NoError(t, err)
	textures, err := texture.NewLoader(d)
	require.NoError(t, err)
	defer textures.Destroy()
	asset, err := model.NewLoader(d, textures).Load(&mesh)
	require.NoError(t, err)

	o, err := NewOrchestrator(d, present.NewPresenter(sc), ring, asset,
		WithOverlay(ov), WithFrameProducer(model.CourtyardScreen, producer))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.RenderFrame(ctx))
	require.NoError(t, o.RenderFrame(ctx))
	o.Destroy(ctx)

	assert.Equal(t, []int{0, 1}, ov.slots)
	assert.Equal(t, sc.RenderTargetView(1), ov.targets[1].RTV)
	assert.Equal(t, 8, ov.targets[0].Width)

	impl := o.(*orchestrator)
	assert.Equal(t, producer.Texture(1).SRV, impl.albedo(1, model.CourtyardScreen))
	assert.Equal(t, asset.Materials[model.CourtyardRed].Albedo.SRV, impl.albedo(1, model.CourtyardRed))
}

func TestGBufferTransitionIsPure(t *testing.T) {
	d := software.NewDevice(software.WithRasterWorkers(1))
	defer d.Close()
	g, err := NewGBuffer(d, 4, 4)
	require.NoError(t, err)
	defer g.Destroy(d, 0)

	read, barriers := g.Transition(gpu.StatePixelShaderResource)
	assert.Len(t, barriers, TargetCount)
	assert.Equal(t, gpu.StateRenderTarget, g.State(), "the receiver is unchanged")
	assert.Equal(t, gpu.StatePixelShaderResource, read.State())
	for i, b := range barriers {
		assert.Equal(t, g.Targets[i].Handle, b.Resource)
		assert.Equal(t, gpu.StateRenderTarget, b.Before)
	}

	_, none := read.Transition(gpu.StatePixelShaderResource)
	assert.Empty(t, none)
}

func TestMismatchedSlotCountIsFatal(t *testing.T) {
	d := software.NewDevice(software.WithRasterWorkers(1))
	defer d.Close()
	sc, err := d.CreateSwapchain(gpu.SwapchainDesc{Width: 4, Height: 4, ImageCount: 3})
	require.NoError(t, err)
	ring, err := frame_ring.NewRing(d, frame_ring.WithSlotCount(2))
	require.NoError(t, err)
	textures, err := texture.NewLoader(d)
	require.NoError(t, err)
	defer textures.Destroy()
	mesh := floor()
	asset, err := model.NewLoader(d, textures).Load(&mesh)
	require.NoError(t, err)

	_, err = NewOrchestrator(d, present.NewPresenter(sc), ring, asset)
	assert.ErrorContains(t, err, "3 swapchain images but 2 frame slots")
}

func TestFailedResizeReleasesGBufferOnce(t *testing.T) {
	f := newFixture(t, floor(), 4, 4)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	descriptors := f.dev.Descriptors()
	descriptors.Reclaim(math.MaxUint64)
	before := descriptors.Available(gpu.HeapRenderTarget)

	require.Error(t, f.o.Resize(ctx, 0, 0))
	f.o.Destroy(ctx)
	descriptors.Reclaim(math.MaxUint64)
	assert.Equal(t, before+TargetCount, descriptors.Available(gpu.HeapRenderTarget))

	seen := map[uint32]bool{}
	for range TargetCount + 1 {
		d, err := descriptors.Allocate(gpu.NewHandle(), gpu.ViewRenderTarget)
		require.NoError(t, err)
		assert.False(t, seen[d.Index], "slot %d handed out twice", d.Index)
		seen[d.Index] = true
	}
}
