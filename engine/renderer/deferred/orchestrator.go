package deferred

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/model"
	"github.com/Carmen-Shannon/oxy-samples/engine/overlay"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/frame_ring"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/present"
	"github.com/Carmen-Shannon/oxy-samples/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// Event names bracketing each pass on the command context.
const (
	EventClear    = "Clear"
	EventZPrePass = "ZPrePass"
	EventGeometry = "GeometryPass"
	EventLighting = "LightingPass"
	EventOverlay  = "Overlay"
)

// Orchestrator records and submits the deferred frame: z-prepass, geometry pass into the G-buffer,
// lighting pass into the back buffer, overlay, present. It is the single owner of the G-buffer
// state and issues every transition between passes.
type Orchestrator interface {
	// Scene returns the scene block written into the frame slot by the next frame.
	Scene() *SceneParams

	// GBuffer returns the G-buffer as last recorded.
	GBuffer() GBuffer

	// SetClearColor changes the back buffer clear color from the next recorded frame on.
	SetClearColor(c [4]float32)

	// RenderFrame acquires the next image, records all passes, submits and presents.
	//
	// Parameters:
	//   - ctx: bounds the presentation and fence waits
	//
	// Returns:
	//   - error: a fatal error; gpu.ErrFenceTimeout when a frame slot did not retire in time
	RenderFrame(ctx context.Context) error

	// WriteConstants writes the scene block and every batch's material block into slot.
	WriteConstants(slot int) error

	// Record records the passes of one frame into cmd, rendering into presentable image.
	//
	// Parameters:
	//   - cmd: the open command context of slot
	//   - slot: the frame slot selecting constant buffer instances
	//   - image: the presentable image index
	Record(cmd gpu.CommandContext, slot, image int) error

	// Resize waits for the GPU, resizes the swapchain and recreates the G-buffer.
	Resize(ctx context.Context, width, height int) error

	// Destroy waits for the GPU and releases the G-buffer. Constant buffers belong to the ring.
	Destroy(ctx context.Context)
}

// orchestrator is the implementation of the Orchestrator interface.
type orchestrator struct {
	device    gpu.Device
	presenter present.Presenter
	ring      frame_ring.Ring
	pipelines *pipeline.Set
	model     *model.ModelAsset

	// gbuffer is the only record of the G-buffer target states.
	gbuffer GBuffer
	scene   SceneParams

	sceneCB  frame_ring.ConstantBuffer
	batchCBs []frame_ring.ConstantBuffer

	overlay          overlay.Overlay
	producer         texture.FrameProducer
	producerMaterial int

	clearColor [4]float32

	// packWorkers parallelizes material packing when the model has at least packThreshold batches.
	packWorkers   int
	packThreshold int
	pool          worker.DynamicWorkerPool
	packed        []byte
}

var _ Orchestrator = &orchestrator{}

// NewOrchestrator builds the deferred pipelines, the G-buffer at the swapchain extent and one
// material constant buffer per batch, replicated per frame slot. Pipeline or G-buffer creation
// failures are fatal setup errors.
//
// Parameters:
//   - device: the device owning every resource
//   - presenter: the presentation policy wrapping the swapchain
//   - ring: the frame ring; its slot count must match the swapchain image count
//   - asset: the model drawn by the geometry passes
//   - options: a variadic list of OrchestratorBuilderOption functions
//
// Returns:
//   - Orchestrator: the orchestrator
//   - error: the setup error
func NewOrchestrator(device gpu.Device, presenter present.Presenter, ring frame_ring.Ring, asset *model.ModelAsset, options ...OrchestratorBuilderOption) (Orchestrator, error) {
	o := &orchestrator{
		device:           device,
		presenter:        presenter,
		ring:             ring,
		model:            asset,
		producerMaterial: -1,
		packWorkers:      4,
		packThreshold:    64,
	}
	o.scene = DefaultScene(float32(presenter.Swapchain().Width()) / float32(max(presenter.Swapchain().Height(), 1)))
	for _, opt := range options {
		opt(o)
	}

	sc := presenter.Swapchain()
	if sc.ImageCount() != ring.Count() {
		return nil, fmt.Errorf("deferred: %d swapchain images but %d frame slots", sc.ImageCount(), ring.Count())
	}

	set, err := pipeline.Build(device, Pipelines(sc.Format())...)
	if err != nil {
		return nil, fmt.Errorf("deferred pipelines: %w", err)
	}
	o.pipelines = set

	if o.gbuffer, err = NewGBuffer(device, uint32(sc.Width()), uint32(sc.Height())); err != nil {
		return nil, fmt.Errorf("deferred: %w", err)
	}
	if o.sceneCB, err = ring.NewConstantBuffer("scene", SceneParamsSize); err != nil {
		o.gbuffer.Destroy(device, 0)
		return nil, fmt.Errorf("deferred scene constants: %w", err)
	}
	o.batchCBs = make([]frame_ring.ConstantBuffer, len(asset.Batches))
	for i := range asset.Batches {
		if o.batchCBs[i], err = ring.NewConstantBuffer(fmt.Sprintf("batch %d", i), MaterialParamsSize); err != nil {
			o.gbuffer.Destroy(device, 0)
			return nil, fmt.Errorf("deferred batch constants: %w", err)
		}
	}
	o.packed = make([]byte, len(asset.Batches)*MaterialParamsSize)
	if len(asset.Batches) >= o.packThreshold && o.packWorkers > 1 {
		o.pool = worker.NewDynamicWorkerPool(o.packWorkers, 256, 1*time.Second)
	}

	common.Logger().Info("deferred orchestrator ready", "width", sc.Width(), "height", sc.Height(), "batches", len(asset.Batches), "slots", ring.Count())
	return o, nil
}

// DefaultScene returns the scene of the deferred sample: a camera looking across the courtyard,
// the directional light (0.5, 0.25, 0.1) in white and eight seeded point lights.
func DefaultScene(aspect float32) SceneParams {
	var p SceneParams
	eye := mgl32.Vec3{-830, 370, 76}
	view := mgl32.LookAtV(eye, mgl32.Vec3{30, -60, -230}, mgl32.Vec3{0, 1, 0})
	p.SetCamera(view, common.PerspectiveZO(mgl32.DegToRad(45), aspect, 1, 5000), eye)
	p.LightDir = mgl32.Vec4{0.5, 0.25, 0.1, 0}
	p.LightColor = mgl32.Vec4{1, 1, 1, 0}
	p.Ambient = mgl32.Vec4{1, 1, 1, 0}
	return p
}

func (o *orchestrator) Scene() *SceneParams {
	return &o.scene
}

func (o *orchestrator) GBuffer() GBuffer {
	return o.gbuffer
}

func (o *orchestrator) SetClearColor(c [4]float32) {
	o.clearColor = c
}

func (o *orchestrator) RenderFrame(ctx context.Context) error {
	image, err := o.presenter.BeginFrame(ctx, o.ring)
	if err != nil {
		return err
	}
	slot := o.ring.AcquireSlot()
	if err := o.ring.Reset(slot); err != nil {
		return err
	}
	cmd := o.ring.Context(slot)

	if o.producer != nil {
		if err := o.producer.Update(ctx, slot, cmd); err != nil {
			return fmt.Errorf("update frame producer: %w", err)
		}
	}
	if err := o.WriteConstants(slot); err != nil {
		return err
	}
	if err := o.Record(cmd, slot, image); err != nil {
		return err
	}
	if _, err := o.ring.Submit(slot); err != nil {
		return fmt.Errorf("submit frame slot %d: %w", slot, err)
	}
	return o.presenter.EndFrame(ctx, o.ring)
}

func (o *orchestrator) WriteConstants(slot int) error {
	if err := o.ring.WriteConstants(slot, o.sceneCB, o.scene.Marshal()); err != nil {
		return fmt.Errorf("write scene constants: %w", err)
	}

	n := len(o.model.Batches)
	errs := make([]error, n)
	pack := func(i int) {
		buf := o.packed[i*MaterialParamsSize : (i+1)*MaterialParamsSize]
		p := o.materialParams(i)
		p.MarshalInto(buf)
		errs[i] = o.ring.WriteConstants(slot, o.batchCBs[i], buf)
	}

	if o.pool == nil {
		for i := range n {
			pack(i)
		}
	} else {
		// Batches are split into one contiguous chunk per worker; the WaitGroup is the frame
		// barrier before recording.
		chunk := (n + o.packWorkers - 1) / o.packWorkers
		var wg sync.WaitGroup
		for start := 0; start < n; start += chunk {
			end := min(start+chunk, n)
			wg.Add(1)
			o.pool.SubmitTask(worker.Task{
				ID: start,
				Do: func() (any, error) {
					defer wg.Done()
					for i := start; i < end; i++ {
						pack(i)
					}
					return nil, nil
				},
			})
		}
		wg.Wait()
	}

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("write batch %d constants: %w", i, err)
		}
	}
	return nil
}

func (o *orchestrator) materialParams(i int) MaterialParams {
	b := o.model.Batches[i]
	mat := o.model.Materials[b.MaterialIndex]
	return MaterialParams{
		World:   o.model.BatchWorld(i),
		Diffuse: mat.Diffuse.Vec4(mat.Shininess),
		Ambient: mat.Ambient.Vec4(0),
	}
}

func (o *orchestrator) albedo(slot, material int) gpu.Descriptor {
	if o.producer != nil && material == o.producerMaterial {
		return o.producer.Texture(slot).SRV
	}
	return o.model.Materials[material].Albedo.SRV
}

func (o *orchestrator) Record(cmd gpu.CommandContext, slot, image int) error {
	g := o.gbuffer
	if g.State() != gpu.StateRenderTarget {
		return fmt.Errorf("record frame: G-buffer is %s, expected %s", g.State(), gpu.StateRenderTarget)
	}
	back, rtv := o.presenter.BackBuffer(image)
	vp := gpu.Viewport{Width: float32(g.Width), Height: float32(g.Height), MaxDepth: 1}

	cmd.ResourceBarrier(o.presenter.BarrierToRenderTarget(image))

	cmd.BeginEvent(EventClear)
	cmd.ClearDepth(g.DSV, 1)
	for i := range TargetCount {
		cmd.ClearRenderTarget(g.RTVs[i], [4]float32{})
	}
	cmd.ClearRenderTarget(rtv, o.clearColor)
	cmd.EndEvent()

	cmd.BeginEvent(EventZPrePass)
	cmd.SetRenderTargets(nil, &g.DSV)
	cmd.SetViewport(vp)
	cmd.SetPipeline(o.pipelines.Get(pipeline.ZPrePass))
	o.drawBatches(cmd, slot)
	cmd.EndEvent()

	cmd.BeginEvent(EventGeometry)
	cmd.SetRenderTargets(g.RTVs[:], &g.DSV)
	cmd.SetPipeline(o.pipelines.Get(pipeline.GBuffer))
	o.drawBatches(cmd, slot)
	cmd.EndEvent()

	g, toRead := g.Transition(gpu.StatePixelShaderResource)
	cmd.ResourceBarrier(toRead...)

	cmd.BeginEvent(EventLighting)
	cmd.SetRenderTargets([]gpu.Descriptor{rtv}, nil)
	cmd.SetPipeline(o.pipelines.Get(pipeline.Lighting))
	cmd.SetConstantBuffer(SlotScene, o.sceneCB.Handle(slot))
	for i := range TargetCount {
		cmd.SetShaderResource(uint32(1+i), g.SRVs[i])
	}
	cmd.DrawInstanced(4, 1, 0, 0)
	cmd.EndEvent()

	var overlayErr error
	if o.overlay != nil {
		cmd.BeginEvent(EventOverlay)
		overlayErr = o.overlay.Render(cmd, slot, overlay.Target{
			RTV: rtv, Format: o.presenter.Swapchain().Format(), Width: int(g.Width), Height: int(g.Height),
		})
		cmd.EndEvent()
	}

	g, toWrite := g.Transition(gpu.StateRenderTarget)
	cmd.ResourceBarrier(append(toWrite, o.presenter.BarrierToPresent(image))...)
	o.gbuffer = g

	common.Logger().Debug("deferred frame recorded", "slot", slot, "image", image, "back_buffer", back.Label)
	if overlayErr != nil {
		return fmt.Errorf("record overlay: %w", overlayErr)
	}
	return nil
}

// drawBatches binds the model streams and draws every batch with its material block and albedo.
func (o *orchestrator) drawBatches(cmd gpu.CommandContext, slot int) {
	cmd.SetVertexBuffers(0, o.model.VertexBufferViews()...)
	cmd.SetIndexBuffer(o.model.IndexBufferView())
	cmd.SetConstantBuffer(SlotScene, o.sceneCB.Handle(slot))
	for i, b := range o.model.Batches {
		cmd.SetConstantBuffer(SlotMaterial, o.batchCBs[i].Handle(slot))
		cmd.SetShaderResource(SlotAlbedo, o.albedo(slot, b.MaterialIndex))
		cmd.DrawIndexedInstanced(b.IndexCount, 1, b.IndexOffset, b.VertexOffset, 0)
	}
}

func (o *orchestrator) Resize(ctx context.Context, width, height int) error {
	if err := o.ring.WaitIdle(ctx); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	o.gbuffer.Destroy(o.device, o.ring.CompletedValue())
	o.gbuffer = GBuffer{}
	if err := o.presenter.Resize(width, height); err != nil {
		return err
	}
	g, err := NewGBuffer(o.device, uint32(width), uint32(height))
	if err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	o.gbuffer = g
	proj := common.PerspectiveZO(mgl32.DegToRad(45), float32(width)/float32(max(height, 1)), 1, 5000)
	o.scene.SetCamera(o.scene.View, proj, o.scene.CameraPosition.Vec3())
	return nil
}

func (o *orchestrator) Destroy(ctx context.Context) {
	if err := o.device.WaitIdle(ctx); err != nil {
		common.Logger().Error("deferred teardown without idle GPU", "error", err)
	}
	o.gbuffer.Destroy(o.device, o.ring.CompletedValue())
}
