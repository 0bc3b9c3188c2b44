package software

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

type command func(ex *executor)

// commandContext records closures executed later by the queue. Binding state is mirrored at
// record time so every draw and dispatch can be validated against the tracker as it is recorded.
type commandContext struct {
	dev   *deviceImpl
	label string

	mu      sync.Mutex
	open    bool
	cmds    []command
	errs    []error
	events  []string
	pending atomic.Int32

	pipeline gpu.Pipeline
	rtvs     []gpu.Descriptor
	dsv      *gpu.Descriptor
	cbs      map[uint32]gpu.Handle
	srvs     map[uint32]gpu.Descriptor
	uavs     map[uint32]gpu.Descriptor
	sos      map[uint32]gpu.Handle
	vbs      map[uint32]gpu.VertexBufferView
	ib       *gpu.IndexBufferView
}

var _ gpu.CommandContext = &commandContext{}

func newCommandContext(d *deviceImpl, label string) *commandContext {
	return &commandContext{dev: d, label: label}
}

func (c *commandContext) Label() string {
	return c.label
}

func (c *commandContext) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.pending.Load(); n > 0 {
		return fmt.Errorf("reset %q with %d submissions in flight: %w", c.label, n, gpu.ErrContextState)
	}
	c.open = true
	c.cmds = nil
	c.errs = nil
	c.events = nil
	c.resetBindings()
	c.rtvs = nil
	c.dsv = nil
	return nil
}

func (c *commandContext) resetBindings() {
	c.cbs = make(map[uint32]gpu.Handle)
	c.srvs = make(map[uint32]gpu.Descriptor)
	c.uavs = make(map[uint32]gpu.Descriptor)
	c.sos = make(map[uint32]gpu.Handle)
	c.vbs = make(map[uint32]gpu.VertexBufferView)
	c.ib = nil
}

func (c *commandContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return fmt.Errorf("close %q: not recording: %w", c.label, gpu.ErrContextState)
	}
	c.open = false
	if len(c.events) > 0 {
		c.errs = append(c.errs, fmt.Errorf("close %q: unterminated events %s", c.label, strings.Join(c.events, ", ")))
	}
	return errors.Join(c.errs...)
}

func (c *commandContext) markSubmitted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return fmt.Errorf("submit %q: still recording: %w", c.label, gpu.ErrContextState)
	}
	c.pending.Add(1)
	return nil
}

// execute runs the recorded commands on the queue goroutine.
func (c *commandContext) execute() {
	c.mu.Lock()
	cmds := c.cmds
	c.mu.Unlock()

	ex := newExecutor(c.dev)
	for _, cmd := range cmds {
		c.dev.mem.Lock()
		cmd(ex)
		c.dev.mem.Unlock()
	}
	c.pending.Add(-1)
}

// begin locks the context for recording a command and reports whether it is open.
func (c *commandContext) begin(op string) bool {
	c.mu.Lock()
	if !c.open {
		c.errs = append(c.errs, fmt.Errorf("%s on %q: not recording: %w", op, c.label, gpu.ErrContextState))
		c.mu.Unlock()
		return false
	}
	return true
}

func (c *commandContext) fail(err error) {
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

func (c *commandContext) expect(op string, h gpu.Handle, allowed ...gpu.ResourceState) {
	c.fail(c.dev.tracker.Expect(op, h, allowed...))
}

func (c *commandContext) currentEvent() string {
	if len(c.events) == 0 {
		return ""
	}
	return c.events[len(c.events)-1]
}

func (c *commandContext) trace(e TraceEntry) {
	e.Context = c.label
	e.Event = c.currentEvent()
	c.dev.recordTrace(e)
}

func (c *commandContext) BeginEvent(name string) {
	if !c.begin("begin event") {
		return
	}
	defer c.mu.Unlock()
	c.events = append(c.events, name)
	c.dev.recordEvent(EventSnapshot{Context: c.label, Name: name, States: c.dev.tracker.Snapshot()})
}

func (c *commandContext) EndEvent() {
	if !c.begin("end event") {
		return
	}
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		c.fail(fmt.Errorf("end event on %q: no open event", c.label))
		return
	}
	c.events = c.events[:len(c.events)-1]
}

func (c *commandContext) ResourceBarrier(barriers ...gpu.Barrier) {
	if len(barriers) == 0 || !c.begin("barrier") {
		return
	}
	defer c.mu.Unlock()
	c.fail(c.dev.tracker.Apply(barriers...))
	c.trace(TraceEntry{Op: TraceBarrier, Barriers: append([]gpu.Barrier(nil), barriers...)})
}

func (c *commandContext) ClearRenderTarget(rtv gpu.Descriptor, color [4]float32) {
	if !c.begin("clear render target") {
		return
	}
	defer c.mu.Unlock()
	if rtv.Kind != gpu.ViewRenderTarget {
		c.fail(fmt.Errorf("clear render target on %q: descriptor is not a render target view", c.label))
		return
	}
	c.expect("clear render target", rtv.Resource, gpu.StateRenderTarget)
	c.trace(TraceEntry{Op: TraceClearColor, Targets: []gpu.Handle{rtv.Resource}})
	c.cmds = append(c.cmds, func(ex *executor) { ex.clearColor(rtv.Resource, color) })
}

func (c *commandContext) ClearDepth(dsv gpu.Descriptor, depth float32) {
	if !c.begin("clear depth") {
		return
	}
	defer c.mu.Unlock()
	if dsv.Kind != gpu.ViewDepthStencil {
		c.fail(fmt.Errorf("clear depth on %q: descriptor is not a depth stencil view", c.label))
		return
	}
	c.expect("clear depth", dsv.Resource, gpu.StateDepthWrite)
	c.trace(TraceEntry{Op: TraceClearDepth, Targets: []gpu.Handle{dsv.Resource}})
	c.cmds = append(c.cmds, func(ex *executor) { ex.clearColor(dsv.Resource, [4]float32{depth, 0, 0, 0}) })
}

func (c *commandContext) SetRenderTargets(rtvs []gpu.Descriptor, dsv *gpu.Descriptor) {
	if !c.begin("set render targets") {
		return
	}
	defer c.mu.Unlock()
	if len(rtvs) > MaxColorTargets {
		c.fail(fmt.Errorf("set render targets on %q: %d targets exceeds %d", c.label, len(rtvs), MaxColorTargets))
		return
	}
	c.rtvs = append([]gpu.Descriptor(nil), rtvs...)
	c.dsv = nil
	if dsv != nil {
		d := *dsv
		c.dsv = &d
	}
	targets := append([]gpu.Descriptor(nil), rtvs...)
	depth := c.dsv
	c.cmds = append(c.cmds, func(ex *executor) {
		ex.rtvs = targets
		ex.dsv = depth
	})
}

func (c *commandContext) SetViewport(vp gpu.Viewport) {
	if !c.begin("set viewport") {
		return
	}
	defer c.mu.Unlock()
	c.cmds = append(c.cmds, func(ex *executor) {
		ex.viewport = vp
		ex.viewportSet = true
	})
}

// SetPipeline binds a pipeline and clears every resource binding, matching a root signature change.
func (c *commandContext) SetPipeline(p gpu.Pipeline) {
	if !c.begin("set pipeline") {
		return
	}
	defer c.mu.Unlock()
	switch p.(type) {
	case *renderPipeline, *computePipeline:
	default:
		c.fail(fmt.Errorf("set pipeline on %q: foreign pipeline: %w", c.label, gpu.ErrInvalidHandle))
		return
	}
	c.pipeline = p
	c.resetBindings()
	c.cmds = append(c.cmds, func(ex *executor) { ex.setPipeline(p) })
}

func (c *commandContext) SetConstantBuffer(slot uint32, h gpu.Handle) {
	if !c.begin("set constant buffer") {
		return
	}
	defer c.mu.Unlock()
	c.cbs[slot] = h
	c.cmds = append(c.cmds, func(ex *executor) { ex.cbs[slot] = h })
}

func (c *commandContext) SetShaderResource(slot uint32, srv gpu.Descriptor) {
	if !c.begin("set shader resource") {
		return
	}
	defer c.mu.Unlock()
	if srv.Kind != gpu.ViewShaderResource {
		c.fail(fmt.Errorf("set shader resource %d on %q: descriptor is not a shader resource view", slot, c.label))
		return
	}
	c.srvs[slot] = srv
	c.cmds = append(c.cmds, func(ex *executor) { ex.srvs[slot] = srv.Resource })
}

func (c *commandContext) SetUnorderedAccess(slot uint32, uav gpu.Descriptor) {
	if !c.begin("set unordered access") {
		return
	}
	defer c.mu.Unlock()
	if uav.Kind != gpu.ViewUnorderedAccess {
		c.fail(fmt.Errorf("set unordered access %d on %q: descriptor is not an unordered access view", slot, c.label))
		return
	}
	c.uavs[slot] = uav
	c.cmds = append(c.cmds, func(ex *executor) { ex.uavs[slot] = uav.Resource })
}

func (c *commandContext) SetStreamOutTarget(slot uint32, buffer gpu.Handle) {
	if !c.begin("set stream out target") {
		return
	}
	defer c.mu.Unlock()
	if !buffer.Valid() {
		c.fail(fmt.Errorf("set stream out target %d on %q: %w", slot, c.label, gpu.ErrInvalidHandle))
		return
	}
	c.sos[slot] = buffer
	c.cmds = append(c.cmds, func(ex *executor) { ex.sos[slot] = buffer })
}

func (c *commandContext) SetVertexBuffers(startSlot uint32, views ...gpu.VertexBufferView) {
	if !c.begin("set vertex buffers") {
		return
	}
	defer c.mu.Unlock()
	for i, v := range views {
		c.vbs[startSlot+uint32(i)] = v
	}
	vs := append([]gpu.VertexBufferView(nil), views...)
	c.cmds = append(c.cmds, func(ex *executor) {
		for i, v := range vs {
			ex.vbs[startSlot+uint32(i)] = v
		}
	})
}

func (c *commandContext) SetIndexBuffer(view gpu.IndexBufferView) {
	if !c.begin("set index buffer") {
		return
	}
	defer c.mu.Unlock()
	c.ib = &view
	c.cmds = append(c.cmds, func(ex *executor) { ex.ib = &view })
}

func (c *commandContext) DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32) {
	if !c.begin("draw") {
		return
	}
	defer c.mu.Unlock()
	if !c.validateDraw("draw", false) {
		return
	}
	call := drawCall{count: vertexCount, instances: instanceCount, first: startVertex, firstInstance: startInstance}
	c.traceDraw(call.count, call.instances)
	c.cmds = append(c.cmds, func(ex *executor) { ex.draw(call) })
}

func (c *commandContext) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	if !c.begin("draw indexed") {
		return
	}
	defer c.mu.Unlock()
	if !c.validateDraw("draw indexed", true) {
		return
	}
	call := drawCall{indexed: true, count: indexCount, instances: instanceCount, first: startIndex, baseVertex: baseVertex, firstInstance: startInstance}
	c.traceDraw(call.count, call.instances)
	c.cmds = append(c.cmds, func(ex *executor) { ex.draw(call) })
}

func (c *commandContext) DrawIndexedIndirect(args gpu.Handle, offset uint64) {
	if !c.begin("draw indexed indirect") {
		return
	}
	defer c.mu.Unlock()
	if !c.validateDraw("draw indexed indirect", true) {
		return
	}
	c.expect("draw indexed indirect args", args, gpu.StateIndirectArgument)
	c.traceDraw(0, 0)
	c.cmds = append(c.cmds, func(ex *executor) { ex.drawIndirect(args, offset) })
}

func (c *commandContext) traceDraw(count, instances uint32) {
	var targets []gpu.Handle
	for _, r := range c.rtvs {
		targets = append(targets, r.Resource)
	}
	if c.dsv != nil {
		targets = append(targets, c.dsv.Resource)
	}
	c.trace(TraceEntry{Op: TraceDraw, Pipeline: c.pipeline.Label(), Targets: targets, Counts: [3]uint32{count, instances, 0}})
}

func (c *commandContext) Dispatch(x, y, z uint32) {
	if !c.begin("dispatch") {
		return
	}
	defer c.mu.Unlock()
	p, ok := c.pipeline.(*computePipeline)
	if !ok {
		c.fail(fmt.Errorf("dispatch on %q: no compute pipeline bound: %w", c.label, gpu.ErrContextState))
		return
	}
	c.validateBindings("dispatch "+p.desc.Label, p.desc.Bindings)
	c.trace(TraceEntry{Op: TraceDispatch, Pipeline: p.desc.Label, Counts: [3]uint32{x, y, z}})
	c.cmds = append(c.cmds, func(ex *executor) { ex.dispatch(x, y, z) })
}

func (c *commandContext) CopyBufferRegion(dst gpu.Handle, dstOffset uint64, src gpu.Handle, srcOffset uint64, size uint64) {
	if !c.begin("copy buffer") {
		return
	}
	defer c.mu.Unlock()
	c.expect("copy buffer destination", dst, gpu.StateCopyDest)
	c.expect("copy buffer source", src, gpu.StateCopySource)
	c.trace(TraceEntry{Op: TraceCopy, Targets: []gpu.Handle{dst, src}})
	c.cmds = append(c.cmds, func(ex *executor) { ex.copyBuffer(dst, dstOffset, src, srcOffset, size) })
}

// validateDraw checks the bound render pipeline, targets, streams and resources. Called with c.mu held.
func (c *commandContext) validateDraw(op string, indexed bool) bool {
	p, ok := c.pipeline.(*renderPipeline)
	if !ok {
		c.fail(fmt.Errorf("%s on %q: no render pipeline bound: %w", op, c.label, gpu.ErrContextState))
		return false
	}
	op = op + " " + p.desc.Label
	before := len(c.errs)

	if len(c.rtvs) != len(p.desc.ColorFormats) {
		c.fail(fmt.Errorf("%s: %d render targets bound, pipeline writes %d", op, len(c.rtvs), len(p.desc.ColorFormats)))
	}
	for i, rtv := range c.rtvs {
		c.expect(op+" render target", rtv.Resource, gpu.StateRenderTarget)
		if i < len(p.desc.ColorFormats) {
			if desc, ok := c.dev.textureInfo(rtv.Resource); ok && desc.Format != p.desc.ColorFormats[i] {
				c.fail(fmt.Errorf("%s: render target %d %q has format %d, pipeline expects %d", op, i, desc.Label, desc.Format, p.desc.ColorFormats[i]))
			}
		}
	}

	if p.desc.DepthTest || p.desc.DepthWrite {
		switch {
		case c.dsv == nil:
			c.fail(fmt.Errorf("%s: depth enabled without a depth target", op))
		case p.desc.DepthWrite:
			c.expect(op+" depth", c.dsv.Resource, gpu.StateDepthWrite)
		default:
			c.expect(op+" depth", c.dsv.Resource, gpu.StateDepthRead, gpu.StateDepthWrite)
		}
	}

	for i := range p.desc.VertexLayout {
		v, ok := c.vbs[uint32(i)]
		if !ok {
			c.fail(fmt.Errorf("%s: vertex stream %d not bound", op, i))
			continue
		}
		c.expect(op+" vertex stream", v.Buffer, gpu.StateVertexOrConstantBuffer)
	}
	if indexed {
		if c.ib == nil {
			c.fail(fmt.Errorf("%s: no index buffer bound", op))
		} else {
			c.expect(op+" index buffer", c.ib.Buffer, gpu.StateIndexBuffer)
		}
	}

	c.validateBindings(op, p.desc.Bindings)
	return len(c.errs) == before
}

func shaderResourceStates(stages gpu.ShaderStage) []gpu.ResourceState {
	switch {
	case stages == gpu.StageFragment:
		return []gpu.ResourceState{gpu.StatePixelShaderResource}
	case stages&gpu.StageFragment == 0:
		return []gpu.ResourceState{gpu.StateNonPixelShaderResource}
	}
	return []gpu.ResourceState{gpu.StatePixelShaderResource, gpu.StateNonPixelShaderResource}
}

// validateBindings checks that every slot declared by the pipeline layout is bound in a legal state.
func (c *commandContext) validateBindings(op string, bindings []gpu.BindingDesc) {
	for _, b := range bindings {
		switch b.Type {
		case gpu.BindingConstantBuffer:
			h, ok := c.cbs[b.Slot]
			if !ok {
				c.fail(fmt.Errorf("%s: constant buffer slot %d not bound", op, b.Slot))
				continue
			}
			c.expect(fmt.Sprintf("%s constants %d", op, b.Slot), h, gpu.StateVertexOrConstantBuffer)
		case gpu.BindingTexture:
			d, ok := c.srvs[b.Slot]
			if !ok {
				c.fail(fmt.Errorf("%s: texture slot %d not bound", op, b.Slot))
				continue
			}
			c.expect(fmt.Sprintf("%s texture %d", op, b.Slot), d.Resource, shaderResourceStates(b.Stages)...)
		case gpu.BindingStorageRead:
			if d, ok := c.uavs[b.Slot]; ok {
				c.expect(fmt.Sprintf("%s storage %d", op, b.Slot), d.Resource, gpu.StateUnorderedAccess)
				continue
			}
			d, ok := c.srvs[b.Slot]
			if !ok {
				c.fail(fmt.Errorf("%s: storage slot %d not bound", op, b.Slot))
				continue
			}
			c.expect(fmt.Sprintf("%s storage %d", op, b.Slot), d.Resource, shaderResourceStates(b.Stages)...)
		case gpu.BindingStorageReadWrite:
			d, ok := c.uavs[b.Slot]
			if !ok {
				c.fail(fmt.Errorf("%s: unordered access slot %d not bound", op, b.Slot))
				continue
			}
			c.expect(fmt.Sprintf("%s unordered access %d", op, b.Slot), d.Resource, gpu.StateUnorderedAccess)
		case gpu.BindingStreamOut:
			h, ok := c.sos[b.Slot]
			if !ok {
				c.fail(fmt.Errorf("%s: stream out slot %d not bound", op, b.Slot))
				continue
			}
			c.expect(fmt.Sprintf("%s stream out %d", op, b.Slot), h, gpu.StateStreamOut)
		}
	}
}
