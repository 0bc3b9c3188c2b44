package software

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

// Device is a gpu.Device that executes on the host. Every barrier, bind, draw and dispatch is
// validated against an always-on state tracker when it is recorded, and recorded errors surface
// from CommandContext.Close. Execution happens on a single queue goroutine in submission order.
type Device interface {
	gpu.Device
	gpu.TextureReader

	// Retire releases n held submissions when the device was built WithManualRetire.
	Retire(n int)

	// Events returns a snapshot of tracked resource states taken at every BeginEvent since the
	// last ResetTrace.
	Events() []EventSnapshot

	// Trace returns every command recorded since the last ResetTrace, across all contexts.
	Trace() []TraceEntry

	// ResetTrace clears recorded events and trace entries.
	ResetTrace()
}

// EventSnapshot is the tracked state of every resource when a debug event began.
type EventSnapshot struct {
	Context string
	Name    string
	States  map[gpu.Handle]gpu.ResourceState
}

// TraceOp is the kind of a recorded command.
type TraceOp int

const (
	TraceBarrier TraceOp = iota
	TraceClearColor
	TraceClearDepth
	TraceDraw
	TraceDispatch
	TraceCopy
)

func (o TraceOp) String() string {
	switch o {
	case TraceBarrier:
		return "Barrier"
	case TraceClearColor:
		return "ClearColor"
	case TraceClearDepth:
		return "ClearDepth"
	case TraceDraw:
		return "Draw"
	case TraceDispatch:
		return "Dispatch"
	case TraceCopy:
		return "Copy"
	}
	return fmt.Sprintf("TraceOp(%d)", int(o))
}

// TraceEntry is one recorded command.
type TraceEntry struct {
	Op       TraceOp
	Context  string
	Event    string
	Pipeline string
	Barriers []gpu.Barrier

	// Targets lists the render targets and depth target of a draw, or the target of a clear.
	Targets []gpu.Handle

	// Counts holds the group counts of a dispatch, or {count, instances, 0} of a draw.
	Counts [3]uint32
}

type deviceImpl struct {
	label         string
	manualRetire  bool
	rasterWorkers int
	heapSizes     [3]uint32

	tracker     gpu.StateTracker
	descriptors gpu.DescriptorAllocator
	pool        worker.DynamicWorkerPool

	// mem guards the resource maps and resource contents. The queue goroutine holds it for the
	// duration of each command.
	mem      sync.Mutex
	buffers  map[gpu.Handle]*buffer
	textures map[gpu.Handle]*texture

	traceMu sync.Mutex
	events  []EventSnapshot
	trace   []TraceEntry

	queue *queue
	idle  *fence
}

var _ Device = &deviceImpl{}

// NewDevice creates a software Device and starts its queue goroutine.
//
// Parameters:
//   - options: variadic list of DeviceBuilderOption functions
//
// Returns:
//   - Device: the new device
func NewDevice(options ...DeviceBuilderOption) Device {
	d := &deviceImpl{
		label:         "software",
		rasterWorkers: defaultRasterWorkers(),
		heapSizes:     [3]uint32{1024, 64, 16},
		tracker:       gpu.NewStateTracker(),
		buffers:       make(map[gpu.Handle]*buffer),
		textures:      make(map[gpu.Handle]*texture),
	}
	for _, opt := range options {
		opt(d)
	}

	d.descriptors = gpu.NewDescriptorAllocator(d.heapSizes[0], d.heapSizes[1], d.heapSizes[2])
	if d.rasterWorkers > 1 {
		d.pool = worker.NewDynamicWorkerPool(d.rasterWorkers, 256, 1*time.Second)
	}
	d.idle = newFence(0)
	d.queue = newQueue(d)

	common.Logger().Info("software device created", "label", d.label, "raster_workers", d.rasterWorkers, "manual_retire", d.manualRetire)
	return d
}

func (d *deviceImpl) Label() string {
	return d.label
}

func (d *deviceImpl) CreateBuffer(desc gpu.BufferDesc) (gpu.Resource, error) {
	if desc.Size == 0 {
		return gpu.Resource{}, fmt.Errorf("create buffer %q: zero size", desc.Label)
	}
	state := desc.InitialState
	if desc.Usage&gpu.BufferUsageUpload != 0 {
		state = gpu.StateGenericRead
	}
	if desc.Usage&gpu.BufferUsageReadback != 0 {
		state = gpu.StateCopyDest
	}

	h := gpu.NewHandle()
	d.mem.Lock()
	d.buffers[h] = &buffer{desc: desc, data: make([]byte, desc.Size)}
	d.mem.Unlock()
	d.tracker.Register(h, desc.Label, state)

	return gpu.Resource{Handle: h, Kind: gpu.ResourceKindBuffer, Label: desc.Label, State: state}, nil
}

func (d *deviceImpl) CreateTexture(desc gpu.TextureDesc) (gpu.Resource, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return gpu.Resource{}, fmt.Errorf("create texture %q: zero extent %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if desc.Format.BytesPerTexel() == 0 {
		return gpu.Resource{}, fmt.Errorf("create texture %q: unsupported format %d", desc.Label, desc.Format)
	}

	h := gpu.NewHandle()
	d.mem.Lock()
	d.textures[h] = newTexture(desc)
	d.mem.Unlock()
	d.tracker.Register(h, desc.Label, desc.InitialState)

	return gpu.Resource{Handle: h, Kind: gpu.ResourceKindTexture, Label: desc.Label, State: desc.InitialState}, nil
}

func (d *deviceImpl) CreateView(r gpu.Resource, kind gpu.ViewKind) (gpu.Descriptor, error) {
	d.mem.Lock()
	_, isBuf := d.buffers[r.Handle]
	tex, isTex := d.textures[r.Handle]
	d.mem.Unlock()

	switch {
	case !isBuf && !isTex:
		return gpu.Descriptor{}, fmt.Errorf("create view of %q: %w", r.Label, gpu.ErrInvalidHandle)
	case isBuf && (kind == gpu.ViewRenderTarget || kind == gpu.ViewDepthStencil):
		return gpu.Descriptor{}, fmt.Errorf("create view of buffer %q: kind %d needs a texture", r.Label, kind)
	case isTex && kind == gpu.ViewDepthStencil && !tex.desc.Format.IsDepth():
		return gpu.Descriptor{}, fmt.Errorf("create depth view of %q: format is not a depth format", r.Label)
	}
	return d.descriptors.Allocate(r.Handle, kind)
}

func (d *deviceImpl) CreateRenderPipeline(desc gpu.RenderPipelineDesc) (gpu.Pipeline, error) {
	var prog RenderProgram
	switch ref := desc.Reference.(type) {
	case RenderProgram:
		prog = ref
	case *RenderProgram:
		if ref != nil {
			prog = *ref
		}
	}
	if prog.Vertex == nil {
		return nil, fmt.Errorf("render pipeline %q: no reference vertex program: %w", desc.Label, gpu.ErrPipelineCreation)
	}
	if len(desc.ColorFormats) > MaxColorTargets {
		return nil, fmt.Errorf("render pipeline %q: %d color targets exceeds %d: %w", desc.Label, len(desc.ColorFormats), MaxColorTargets, gpu.ErrPipelineCreation)
	}
	if len(desc.ColorFormats) > 0 && prog.Fragment == nil {
		return nil, fmt.Errorf("render pipeline %q: color targets without a fragment program: %w", desc.Label, gpu.ErrPipelineCreation)
	}
	return &renderPipeline{desc: desc, program: prog}, nil
}

func (d *deviceImpl) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.Pipeline, error) {
	var prog ComputeProgram
	switch ref := desc.Reference.(type) {
	case ComputeProgram:
		prog = ref
	case func(Invocation, Bindings):
		prog = ref
	}
	if prog == nil {
		return nil, fmt.Errorf("compute pipeline %q: no reference kernel: %w", desc.Label, gpu.ErrPipelineCreation)
	}
	ws := desc.WorkgroupSize
	for i := range ws {
		if ws[i] == 0 {
			ws[i] = 1
		}
	}
	desc.WorkgroupSize = ws
	return &computePipeline{desc: desc, program: prog}, nil
}

func (d *deviceImpl) CreateCommandContext(label string) (gpu.CommandContext, error) {
	return newCommandContext(d, label), nil
}

func (d *deviceImpl) CreateFence(initial uint64) (gpu.Fence, error) {
	return newFence(initial), nil
}

func (d *deviceImpl) CreateSwapchain(desc gpu.SwapchainDesc) (gpu.Swapchain, error) {
	return newSwapchain(d, desc)
}

func (d *deviceImpl) Queue() gpu.Queue {
	return d.queue
}

func (d *deviceImpl) WriteBuffer(h gpu.Handle, offset uint64, data []byte) error {
	d.mem.Lock()
	defer d.mem.Unlock()
	b, ok := d.buffers[h]
	if !ok {
		return fmt.Errorf("write buffer: %w", gpu.ErrInvalidHandle)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("write buffer %q: range [%d,%d) exceeds size %d", b.desc.Label, offset, offset+uint64(len(data)), len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *deviceImpl) ReadBuffer(h gpu.Handle, offset, size uint64) ([]byte, error) {
	d.mem.Lock()
	defer d.mem.Unlock()
	b, ok := d.buffers[h]
	if !ok {
		return nil, fmt.Errorf("read buffer: %w", gpu.ErrInvalidHandle)
	}
	if offset+size > uint64(len(b.data)) {
		return nil, fmt.Errorf("read buffer %q: range [%d,%d) exceeds size %d", b.desc.Label, offset, offset+size, len(b.data))
	}
	out := make([]byte, size)
	copy(out, b.data[offset:offset+size])
	return out, nil
}

func (d *deviceImpl) WriteTexture(h gpu.Handle, texels []byte, width, height uint32) error {
	d.mem.Lock()
	defer d.mem.Unlock()
	t, ok := d.textures[h]
	if !ok {
		return fmt.Errorf("write texture: %w", gpu.ErrInvalidHandle)
	}
	if t.desc.Usage&gpu.TextureUsageCopyDst == 0 {
		return fmt.Errorf("write texture %q: created without CopyDst usage", t.desc.Label)
	}
	t.upload(texels, int(width), int(height))
	return nil
}

func (d *deviceImpl) ReadTexture(h gpu.Handle) (gpu.TextureData, error) {
	d.mem.Lock()
	defer d.mem.Unlock()
	t, ok := d.textures[h]
	if !ok {
		return gpu.TextureData{}, fmt.Errorf("read texture: %w", gpu.ErrInvalidHandle)
	}
	out := make([]float32, len(t.texels))
	copy(out, t.texels)
	return gpu.TextureData{Width: t.width(), Height: t.height(), Format: t.desc.Format, Texels: out}, nil
}

func (d *deviceImpl) Destroy(h gpu.Handle) {
	d.mem.Lock()
	delete(d.buffers, h)
	delete(d.textures, h)
	d.mem.Unlock()
	d.tracker.Forget(h)
}

func (d *deviceImpl) WaitIdle(ctx context.Context) error {
	v := d.idle.CompletedValue() + 1
	if err := d.queue.Signal(d.idle, v); err != nil {
		return err
	}
	return d.idle.Wait(ctx, v)
}

func (d *deviceImpl) Descriptors() gpu.DescriptorAllocator {
	return d.descriptors
}

func (d *deviceImpl) Tracker() gpu.StateTracker {
	return d.tracker
}

func (d *deviceImpl) Close() error {
	d.queue.close()
	return nil
}

func (d *deviceImpl) Retire(n int) {
	d.queue.retire(n)
}

func (d *deviceImpl) Events() []EventSnapshot {
	d.traceMu.Lock()
	defer d.traceMu.Unlock()
	return append([]EventSnapshot(nil), d.events...)
}

func (d *deviceImpl) Trace() []TraceEntry {
	d.traceMu.Lock()
	defer d.traceMu.Unlock()
	return append([]TraceEntry(nil), d.trace...)
}

func (d *deviceImpl) ResetTrace() {
	d.traceMu.Lock()
	defer d.traceMu.Unlock()
	d.events = nil
	d.trace = nil
}

func (d *deviceImpl) recordEvent(e EventSnapshot) {
	d.traceMu.Lock()
	defer d.traceMu.Unlock()
	d.events = append(d.events, e)
}

func (d *deviceImpl) recordTrace(e TraceEntry) {
	d.traceMu.Lock()
	defer d.traceMu.Unlock()
	d.trace = append(d.trace, e)
}

// textureInfo returns the description of a texture, used by record-time validation.
func (d *deviceImpl) textureInfo(h gpu.Handle) (gpu.TextureDesc, bool) {
	d.mem.Lock()
	defer d.mem.Unlock()
	t, ok := d.textures[h]
	if !ok {
		return gpu.TextureDesc{}, false
	}
	return t.desc, true
}

type renderPipeline struct {
	desc    gpu.RenderPipelineDesc
	program RenderProgram
}

func (p *renderPipeline) Label() string          { return p.desc.Label }
func (p *renderPipeline) Kind() gpu.PipelineKind { return gpu.PipelineKindRender }

type computePipeline struct {
	desc    gpu.ComputePipelineDesc
	program ComputeProgram
}

func (p *computePipeline) Label() string          { return p.desc.Label }
func (p *computePipeline) Kind() gpu.PipelineKind { return gpu.PipelineKindCompute }
