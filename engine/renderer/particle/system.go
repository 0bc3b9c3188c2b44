package particle

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/overlay"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/frame_ring"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-samples/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// Debug event names bracketing each particle stage.
const (
	EventInit   = "ParticleInit"
	EventEmit   = "ParticleEmit"
	EventUpdate = "ParticleUpdate"
	EventDraw   = "ParticleDraw"
)

// ErrNotInitialized is returned when emit or update is recorded before the init dispatch.
var ErrNotInitialized = errors.New("particle system not initialized")

// State is the lifecycle of the element pool.
type State int

const (
	// Uninitialized pools hold undefined memory; the next frame must record the init dispatch.
	Uninitialized State = iota
	// Initializing pools have the init dispatch recorded but no emit yet.
	Initializing
	// Steady pools run emit, update and draw every frame.
	Steady
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Steady:
		return "steady"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// drawArgsSize is the size of one indexed indirect argument record.
const drawArgsSize = 20

// system is the implementation of the System interface.
type system struct {
	device    gpu.Device
	ring      frame_ring.Ring
	pipelines *pipeline.Set

	capacity  uint32
	emitCount uint32
	mode      DrawMode
	layout    IndexListLayout
	scene     SceneParams

	// state is advanced only by the Record* methods.
	state State
	// frame is the index written into the next frame's constants.
	frame uint32
	// parity is the counter pair selector of the constants last written.
	parity uint32
	// live is the counter holding the alive-list length after the last recorded stage.
	live uint32

	elements  gpu.Resource
	indexList gpu.Resource
	drawArgs  gpu.Resource
	quad      gpu.Resource
	quadIdx   gpu.Resource
	sprite    texture.Texture

	elementsUAV  gpu.Descriptor
	indexListUAV gpu.Descriptor

	sceneCB frame_ring.ConstantBuffer
}

// System maintains a fixed-capacity pool of particle elements and an alive-index list on the
// GPU. Each frame records an emit, an update and a billboard draw; the first frame also records
// the init dispatch. Emit attempts past the capacity are dropped without error.
type System interface {
	overlay.Overlay

	// State returns the lifecycle state of the pool.
	State() State

	// Capacity returns the fixed element count M.
	Capacity() uint32

	// Mode returns the draw mode the billboard pipeline was built for.
	Mode() DrawMode

	// Scene returns the scene block written into each frame's constants. Callers update the
	// camera, frame delta and tunables through it.
	Scene() *SceneParams

	// Elements returns the element buffer.
	Elements() gpu.Resource

	// IndexList returns the alive-index list buffer.
	IndexList() gpu.Resource

	// Layout returns the placement of the index list and its counters.
	Layout() IndexListLayout

	// LiveCounterOffset returns the byte offset, within the index list, of the counter holding the
	// alive count after the last recorded stage.
	LiveCounterOffset() uint64

	// WriteConstants writes the scene block for the next frame into slot.
	//
	// Parameters:
	//   - slot: the frame slot being recorded
	//
	// Returns:
	//   - error: error if the constant write fails
	WriteConstants(slot int) error

	// RecordInit records the dispatch that clears every element and both counters.
	RecordInit(cmd gpu.CommandContext, slot int)

	// RecordEmit records the emit dispatch followed by UAV barriers on both buffers.
	//
	// Returns:
	//   - error: ErrNotInitialized if no init dispatch was recorded
	RecordEmit(cmd gpu.CommandContext, slot int) error

	// RecordUpdate records the update dispatch followed by UAV barriers on both buffers, then the
	// indirect argument copy in indirect mode.
	//
	// Returns:
	//   - error: ErrNotInitialized if no init dispatch was recorded
	RecordUpdate(cmd gpu.CommandContext, slot int) error

	// RecordDraw records the billboard draw into target.
	RecordDraw(cmd gpu.CommandContext, slot int, target overlay.Target)

	// Record writes the constants of slot and records init when needed, emit, update and draw.
	//
	// Parameters:
	//   - cmd: the frame's command context
	//   - slot: the frame slot being recorded
	//   - target: the render target the billboards draw into
	//
	// Returns:
	//   - error: error if the constants cannot be written
	Record(cmd gpu.CommandContext, slot int, target overlay.Target) error

	// Reset returns the pool to Uninitialized so the next frame records the init dispatch again.
	Reset()

	// Destroy releases the buffers and views. The caller must have waited for the device to idle.
	Destroy()
}

var _ System = &system{}

// NewSystem creates the element buffer, the index list, the billboard geometry and the pipelines.
// Pipeline creation failures are fatal setup errors.
//
// Parameters:
//   - device: the device owning every resource
//   - ring: the frame ring replicating the scene constants
//   - target: the format of the render target the billboards draw into
//   - options: a variadic list of SystemBuilderOption functions
//
// Returns:
//   - System: the particle system in the Uninitialized state
//   - error: the setup error
func NewSystem(device gpu.Device, ring frame_ring.Ring, target gpu.Format, options ...SystemBuilderOption) (System, error) {
	s := &system{
		device:    device,
		ring:      ring,
		capacity:  100000,
		emitCount: emitWindow,
		scene: SceneParams{
			LightDir:       mgl32.Vec4{0.5, 0.25, 0.1, 0},
			ForceCenter:    mgl32.Vec4{15, 0, 0, 18},
			ParticleColors: DefaultColors(),
			FrameDeltaTime: 1.0 / 60,
		},
	}
	for _, opt := range options {
		opt(s)
	}
	if s.capacity == 0 {
		return nil, errors.New("particle: capacity must be positive")
	}
	s.layout = IndexListLayout{Capacity: s.capacity}

	set, err := pipeline.Build(device, Pipelines(target, s.mode)...)
	if err != nil {
		return nil, fmt.Errorf("particle pipelines: %w", err)
	}
	s.pipelines = set

	if err := s.createResources(); err != nil {
		s.Destroy()
		return nil, err
	}
	common.Logger().Info("particle system ready", "capacity", s.capacity, "mode", s.mode.String(), "index list bytes", s.layout.Size())
	return s, nil
}

func (s *system) createResources() error {
	var err error
	if s.elements, err = s.device.CreateBuffer(gpu.BufferDesc{
		Label:        "particle.elements",
		Size:         uint64(s.capacity) * ElementSize,
		Usage:        gpu.BufferUsageStorage,
		InitialState: gpu.StateUnorderedAccess,
	}); err != nil {
		return fmt.Errorf("create particle elements: %w", err)
	}
	if s.indexList, err = s.device.CreateBuffer(gpu.BufferDesc{
		Label:        "particle.index_list",
		Size:         s.layout.Size(),
		Usage:        gpu.BufferUsageStorage | gpu.BufferUsageCopySrc,
		InitialState: gpu.StateUnorderedAccess,
	}); err != nil {
		return fmt.Errorf("create particle index list: %w", err)
	}
	if s.elementsUAV, err = s.device.CreateView(s.elements, gpu.ViewUnorderedAccess); err != nil {
		return fmt.Errorf("create particle elements view: %w", err)
	}
	if s.indexListUAV, err = s.device.CreateView(s.indexList, gpu.ViewUnorderedAccess); err != nil {
		return fmt.Errorf("create particle index list view: %w", err)
	}

	if s.mode == DrawIndirect {
		if s.drawArgs, err = s.device.CreateBuffer(gpu.BufferDesc{
			Label:        "particle.draw_args",
			Size:         drawArgsSize,
			Usage:        gpu.BufferUsageIndirect | gpu.BufferUsageCopyDst,
			InitialState: gpu.StateIndirectArgument,
		}); err != nil {
			return fmt.Errorf("create particle draw args: %w", err)
		}
		args := make([]byte, drawArgsSize)
		common.PutUint32(args, 0, uint32(len(quadIndices)))
		if err := s.device.WriteBuffer(s.drawArgs.Handle, 0, args); err != nil {
			return fmt.Errorf("write particle draw args: %w", err)
		}
	}

	vertices := common.SliceToBytes(quadVertices())
	if s.quad, err = s.device.CreateBuffer(gpu.BufferDesc{
		Label:        "particle.quad",
		Size:         uint64(len(vertices)),
		Usage:        gpu.BufferUsageVertex | gpu.BufferUsageCopyDst,
		InitialState: gpu.StateVertexOrConstantBuffer,
	}); err != nil {
		return fmt.Errorf("create particle quad: %w", err)
	}
	if err := s.device.WriteBuffer(s.quad.Handle, 0, vertices); err != nil {
		return fmt.Errorf("write particle quad: %w", err)
	}
	indices := common.SliceToBytes(quadIndices)
	if s.quadIdx, err = s.device.CreateBuffer(gpu.BufferDesc{
		Label:        "particle.quad_indices",
		Size:         uint64(len(indices)),
		Usage:        gpu.BufferUsageIndex | gpu.BufferUsageCopyDst,
		InitialState: gpu.StateIndexBuffer,
	}); err != nil {
		return fmt.Errorf("create particle quad indices: %w", err)
	}
	if err := s.device.WriteBuffer(s.quadIdx.Handle, 0, indices); err != nil {
		return fmt.Errorf("write particle quad indices: %w", err)
	}

	if s.sprite, err = texture.Create(s.device, "particle.sprite", SpriteStaging(32)); err != nil {
		return fmt.Errorf("create particle sprite: %w", err)
	}
	if s.sceneCB, err = s.ring.NewConstantBuffer("particle scene", SceneParamsSize); err != nil {
		return fmt.Errorf("particle scene constants: %w", err)
	}
	return nil
}

func (s *system) State() State                   { return s.state }
func (s *system) Capacity() uint32               { return s.capacity }
func (s *system) Mode() DrawMode                 { return s.mode }
func (s *system) Scene() *SceneParams            { return &s.scene }
func (s *system) Elements() gpu.Resource         { return s.elements }
func (s *system) IndexList() gpu.Resource        { return s.indexList }
func (s *system) Layout() IndexListLayout        { return s.layout }
func (s *system) LiveCounterOffset() uint64      { return uint64(s.layout.counterWord(s.live)) * 4 }
func (s *system) groups() uint32                 { return s.capacity/WorkgroupSize + 1 }
func (s *system) uavBarriers() []gpu.Barrier     { return gpu.UAVBarriers(s.elements.Handle, s.indexList.Handle) }

func (s *system) WriteConstants(slot int) error {
	s.scene.MaxParticleCount = s.capacity
	s.scene.EmitCount = min(s.emitCount, emitWindow, s.capacity)
	s.scene.FrameIndex = s.frame
	s.parity = s.frame & 1
	return s.ring.WriteConstants(slot, s.sceneCB, s.scene.Marshal())
}

// bindCompute binds a kernel with the scene constants and both buffers as unordered access.
func (s *system) bindCompute(cmd gpu.CommandContext, slot int, id pipeline.ID) {
	cmd.SetPipeline(s.pipelines.Get(id))
	cmd.SetConstantBuffer(SlotScene, s.sceneCB.Handle(slot))
	cmd.SetUnorderedAccess(SlotElements, s.elementsUAV)
	cmd.SetUnorderedAccess(SlotIndexList, s.indexListUAV)
}

func (s *system) RecordInit(cmd gpu.CommandContext, slot int) {
	cmd.BeginEvent(EventInit)
	s.bindCompute(cmd, slot, pipeline.ParticleInit)
	cmd.Dispatch(s.groups(), 1, 1)
	cmd.ResourceBarrier(s.uavBarriers()...)
	cmd.EndEvent()

	s.state = Initializing
	s.live = 0
}

func (s *system) RecordEmit(cmd gpu.CommandContext, slot int) error {
	if s.state == Uninitialized {
		return ErrNotInitialized
	}
	cmd.BeginEvent(EventEmit)
	s.bindCompute(cmd, slot, pipeline.ParticleEmit)
	cmd.Dispatch(EmitGroups, 1, 1)
	cmd.ResourceBarrier(s.uavBarriers()...)
	cmd.EndEvent()

	s.state = Steady
	s.live = s.parity
	return nil
}

func (s *system) RecordUpdate(cmd gpu.CommandContext, slot int) error {
	if s.state == Uninitialized {
		return ErrNotInitialized
	}
	cmd.BeginEvent(EventUpdate)
	s.bindCompute(cmd, slot, pipeline.ParticleUpdate)
	cmd.Dispatch(s.groups(), 1, 1)
	cmd.ResourceBarrier(s.uavBarriers()...)
	s.live = s.parity + 1
	if s.mode == DrawIndirect {
		s.copyDrawArgs(cmd)
	}
	cmd.EndEvent()

	s.frame++
	return nil
}

// copyDrawArgs copies the live counter into the instance count of the indirect arguments.
func (s *system) copyDrawArgs(cmd gpu.CommandContext) {
	var list, args gpu.Resource
	var toCopy [2]gpu.Barrier
	list, toCopy[0], _ = s.indexList.Transition(gpu.StateCopySource)
	args, toCopy[1], _ = s.drawArgs.Transition(gpu.StateCopyDest)
	cmd.ResourceBarrier(toCopy[:]...)

	cmd.CopyBufferRegion(args.Handle, 4, list.Handle, s.LiveCounterOffset(), 4)

	var back [2]gpu.Barrier
	s.indexList, back[0], _ = list.Transition(gpu.StateUnorderedAccess)
	s.drawArgs, back[1], _ = args.Transition(gpu.StateIndirectArgument)
	cmd.ResourceBarrier(back[:]...)
}

func (s *system) RecordDraw(cmd gpu.CommandContext, slot int, target overlay.Target) {
	cmd.BeginEvent(EventDraw)
	cmd.SetRenderTargets([]gpu.Descriptor{target.RTV}, nil)
	cmd.SetViewport(gpu.Viewport{Width: float32(target.Width), Height: float32(target.Height), MaxDepth: 1})
	cmd.SetPipeline(s.pipelines.Get(pipeline.ParticleDraw))
	cmd.SetConstantBuffer(SlotScene, s.sceneCB.Handle(slot))
	cmd.SetUnorderedAccess(SlotElements, s.elementsUAV)
	cmd.SetUnorderedAccess(SlotIndexList, s.indexListUAV)
	cmd.SetShaderResource(SlotSprite, s.sprite.SRV)
	cmd.SetVertexBuffers(0, gpu.VertexBufferView{Buffer: s.quad.Handle, Size: uint64(len(quadVertices()) * 4), Stride: quadStride})
	cmd.SetIndexBuffer(gpu.IndexBufferView{Buffer: s.quadIdx.Handle, Size: uint64(len(quadIndices) * 4), Format: gpu.IndexFormatUint32})

	if s.mode == DrawIndirect {
		cmd.DrawIndexedIndirect(s.drawArgs.Handle, 0)
	} else {
		cmd.DrawIndexedInstanced(uint32(len(quadIndices)), s.capacity, 0, 0, 0)
	}
	cmd.EndEvent()
}

func (s *system) Record(cmd gpu.CommandContext, slot int, target overlay.Target) error {
	if err := s.WriteConstants(slot); err != nil {
		return fmt.Errorf("particle constants: %w", err)
	}
	if s.state == Uninitialized {
		s.RecordInit(cmd, slot)
	}
	if err := s.RecordEmit(cmd, slot); err != nil {
		return err
	}
	if err := s.RecordUpdate(cmd, slot); err != nil {
		return err
	}
	s.RecordDraw(cmd, slot, target)
	return nil
}

// Render records a full particle frame after the lighting pass.
func (s *system) Render(cmd gpu.CommandContext, slot int, target overlay.Target) error {
	return s.Record(cmd, slot, target)
}

func (s *system) Reset() {
	s.state = Uninitialized
	s.frame = 0
	s.live = 0
}

func (s *system) Destroy() {
	descriptors := s.device.Descriptors()
	descriptors.Release(s.elementsUAV, 0)
	descriptors.Release(s.indexListUAV, 0)
	descriptors.Release(s.sprite.SRV, 0)
	for _, r := range []gpu.Resource{s.elements, s.indexList, s.drawArgs, s.quad, s.quadIdx, s.sprite.Resource} {
		if r.Handle.Valid() {
			s.device.Destroy(r.Handle)
		}
	}
	s.elementsUAV, s.indexListUAV = gpu.Descriptor{}, gpu.Descriptor{}
	s.elements, s.indexList, s.drawArgs, s.quad, s.quadIdx = gpu.Resource{}, gpu.Resource{}, gpu.Resource{}, gpu.Resource{}, gpu.Resource{}
	s.sprite = texture.Texture{}
}
