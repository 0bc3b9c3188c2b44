package wgpu_backend

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// commandContext records into a WebGPU command encoder. Render passes open lazily on the first
// draw after the targets change and close on any command that cannot live inside a pass.
type commandContext struct {
	dev   *deviceImpl
	label string

	mu      sync.Mutex
	open    bool
	encoder *wgpu.CommandEncoder
	rpass   *wgpu.RenderPassEncoder
	cpass   *wgpu.ComputePassEncoder
	done    *wgpu.CommandBuffer
	errs    []error
	events  []string

	// serial is the submission that last carried this context's commands.
	serial uint64

	pipeline gpu.Pipeline
	rtvs     []gpu.Descriptor
	dsv      *gpu.Descriptor
	viewport *gpu.Viewport
	cbs      map[uint32]gpu.Handle
	srvs     map[uint32]gpu.Descriptor
	uavs     map[uint32]gpu.Descriptor
	sos      map[uint32]gpu.Handle
	vbs      map[uint32]gpu.VertexBufferView
	ib       *gpu.IndexBufferView

	passPipeline gpu.Pipeline
	passGroup    *wgpu.BindGroup
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
	if c.serial > c.dev.queue.completedSerial() {
		c.dev.queue.poll(false)
	}
	if c.serial > c.dev.queue.completedSerial() {
		return fmt.Errorf("reset %q with submission %d in flight: %w", c.label, c.serial, gpu.ErrContextState)
	}
	if c.done != nil {
		c.done.Release()
		c.done = nil
	}
	if c.encoder != nil {
		c.encoder.Release()
	}
	encoder, err := c.dev.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: c.label})
	if err != nil {
		return fmt.Errorf("reset %q: %w", c.label, err)
	}
	c.encoder = encoder
	c.open = true
	c.errs = nil
	c.events = nil
	c.rtvs = nil
	c.dsv = nil
	c.viewport = nil
	c.pipeline = nil
	c.resetBindings()
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
	c.endPasses()
	if len(c.events) > 0 {
		c.errs = append(c.errs, fmt.Errorf("close %q: unterminated events %s", c.label, strings.Join(c.events, ", ")))
	}
	cb, err := c.encoder.Finish(&wgpu.CommandBufferDescriptor{Label: c.label})
	c.encoder.Release()
	c.encoder = nil
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("close %q: %w", c.label, err))
	} else {
		c.done = cb
	}
	return errors.Join(c.errs...)
}

// takeCommands hands the finished command buffer to the queue.
func (c *commandContext) takeCommands() (*wgpu.CommandBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return nil, fmt.Errorf("submit %q: still recording: %w", c.label, gpu.ErrContextState)
	}
	if c.done == nil {
		return nil, fmt.Errorf("submit %q: nothing recorded: %w", c.label, gpu.ErrContextState)
	}
	cb := c.done
	c.done = nil
	return cb, nil
}

func (c *commandContext) markSubmitted(serial uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serial = serial
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
	if c.dev.tracker != nil {
		c.fail(c.dev.tracker.Expect(op, h, allowed...))
	}
}

func (c *commandContext) endPasses() {
	if c.rpass != nil {
		c.rpass.End()
		c.rpass.Release()
		c.rpass = nil
	}
	if c.cpass != nil {
		c.cpass.End()
		c.cpass.Release()
		c.cpass = nil
	}
	c.passPipeline = nil
	c.passGroup = nil
}

func (c *commandContext) BeginEvent(name string) {
	if !c.begin("begin event") {
		return
	}
	defer c.mu.Unlock()
	c.endPasses()
	c.events = append(c.events, name)
	c.encoder.PushDebugGroup(name)
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
	c.endPasses()
	c.events = c.events[:len(c.events)-1]
	c.encoder.PopDebugGroup()
}

// ResourceBarrier validates the barriers and ends the open pass. WebGPU derives the hazards
// itself at pass boundaries; UAV barriers between dispatches need no split.
func (c *commandContext) ResourceBarrier(barriers ...gpu.Barrier) {
	if len(barriers) == 0 || !c.begin("barrier") {
		return
	}
	defer c.mu.Unlock()
	if c.dev.tracker != nil {
		c.fail(c.dev.tracker.Apply(barriers...))
	}
	for _, b := range barriers {
		if b.Type == gpu.BarrierTransition {
			c.endPasses()
			return
		}
	}
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
	view, ok := c.dev.viewOf(rtv)
	if !ok {
		c.fail(fmt.Errorf("clear render target on %q: %w", c.label, gpu.ErrInvalidHandle))
		return
	}
	c.endPasses()
	pass := c.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "clear",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  wgpu.LoadOpClear,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(color[0]), G: float64(color[1]), B: float64(color[2]), A: float64(color[3]),
			},
		}},
	})
	pass.End()
	pass.Release()
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
	view, ok := c.dev.viewOf(dsv)
	if !ok {
		c.fail(fmt.Errorf("clear depth on %q: %w", c.label, gpu.ErrInvalidHandle))
		return
	}
	c.endPasses()
	pass := c.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "clear depth",
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: depth,
		},
	})
	pass.End()
	pass.Release()
}

func (c *commandContext) SetRenderTargets(rtvs []gpu.Descriptor, dsv *gpu.Descriptor) {
	if !c.begin("set render targets") {
		return
	}
	defer c.mu.Unlock()
	c.endPasses()
	c.rtvs = append([]gpu.Descriptor(nil), rtvs...)
	c.dsv = nil
	if dsv != nil {
		d := *dsv
		c.dsv = &d
	}
}

func (c *commandContext) SetViewport(vp gpu.Viewport) {
	if !c.begin("set viewport") {
		return
	}
	defer c.mu.Unlock()
	c.viewport = &vp
	if c.rpass != nil {
		c.rpass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	}
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
}

func (c *commandContext) SetConstantBuffer(slot uint32, h gpu.Handle) {
	if !c.begin("set constant buffer") {
		return
	}
	defer c.mu.Unlock()
	c.cbs[slot] = h
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
}

// SetStreamOutTarget binds buffer as a storage slot of the capture kernel. WebGPU has no fixed
// function stream output, so the capture stage runs as a compute pass writing the buffer.
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
}

func (c *commandContext) SetVertexBuffers(startSlot uint32, views ...gpu.VertexBufferView) {
	if !c.begin("set vertex buffers") {
		return
	}
	defer c.mu.Unlock()
	for i, v := range views {
		c.vbs[startSlot+uint32(i)] = v
	}
}

func (c *commandContext) SetIndexBuffer(view gpu.IndexBufferView) {
	if !c.begin("set index buffer") {
		return
	}
	defer c.mu.Unlock()
	c.ib = &view
}

func (c *commandContext) DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32) {
	if !c.begin("draw") {
		return
	}
	defer c.mu.Unlock()
	if pass := c.prepareDraw("draw", false); pass != nil {
		pass.Draw(vertexCount, instanceCount, startVertex, startInstance)
	}
}

func (c *commandContext) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	if !c.begin("draw indexed") {
		return
	}
	defer c.mu.Unlock()
	if pass := c.prepareDraw("draw indexed", true); pass != nil {
		pass.DrawIndexed(indexCount, instanceCount, startIndex, baseVertex, startInstance)
	}
}

func (c *commandContext) DrawIndexedIndirect(args gpu.Handle, offset uint64) {
	if !c.begin("draw indexed indirect") {
		return
	}
	defer c.mu.Unlock()
	c.expect("draw indexed indirect args", args, gpu.StateIndirectArgument)
	b, ok := c.dev.bufferOf(args)
	if !ok {
		c.fail(fmt.Errorf("draw indexed indirect on %q: args: %w", c.label, gpu.ErrInvalidHandle))
		return
	}
	if pass := c.prepareDraw("draw indexed indirect", true); pass != nil {
		pass.DrawIndexedIndirect(b.buf, offset)
	}
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
	op := "dispatch " + p.desc.Label
	before := len(c.errs)
	c.validateBindings(op, p.desc.Bindings)
	group := c.bindGroup(op, p.id, p.layout, p.desc.Bindings, nil)
	if len(c.errs) != before || group == nil {
		return
	}

	if c.rpass != nil {
		c.endPasses()
	}
	if c.cpass == nil {
		c.cpass = c.encoder.BeginComputePass(nil)
	}
	if c.passPipeline != c.pipeline {
		c.cpass.SetPipeline(p.pipeline)
		c.passPipeline = c.pipeline
		c.passGroup = nil
	}
	if c.passGroup != group {
		c.cpass.SetBindGroup(0, group, nil)
		c.passGroup = group
	}
	c.cpass.DispatchWorkgroups(x, y, z)
}

func (c *commandContext) CopyBufferRegion(dst gpu.Handle, dstOffset uint64, src gpu.Handle, srcOffset uint64, size uint64) {
	if !c.begin("copy buffer") {
		return
	}
	defer c.mu.Unlock()
	c.expect("copy buffer destination", dst, gpu.StateCopyDest)
	c.expect("copy buffer source", src, gpu.StateCopySource)
	d, dok := c.dev.bufferOf(dst)
	s, sok := c.dev.bufferOf(src)
	if !dok || !sok {
		c.fail(fmt.Errorf("copy buffer on %q: %w", c.label, gpu.ErrInvalidHandle))
		return
	}
	c.endPasses()
	c.encoder.CopyBufferToBuffer(s.buf, srcOffset, d.buf, dstOffset, size)
}

// prepareDraw validates the draw, opens the render pass if needed and applies pipeline, bind
// group and streams. Called with c.mu held; nil means the draw was recorded as an error.
func (c *commandContext) prepareDraw(op string, indexed bool) *wgpu.RenderPassEncoder {
	p, ok := c.pipeline.(*renderPipeline)
	if !ok {
		c.fail(fmt.Errorf("%s on %q: no render pipeline bound: %w", op, c.label, gpu.ErrContextState))
		return nil
	}
	op = op + " " + p.desc.Label
	before := len(c.errs)
	c.validateDraw(op, p, indexed)
	group := c.bindGroup(op, p.id, p.layout, p.desc.Bindings, p.desc.Samplers)
	if len(c.errs) != before || group == nil {
		return nil
	}

	if c.rpass == nil && !c.beginRenderPass(op) {
		return nil
	}
	if c.passPipeline != c.pipeline {
		c.rpass.SetPipeline(p.pipeline)
		c.passPipeline = c.pipeline
		c.passGroup = nil
	}
	if c.passGroup != group {
		c.rpass.SetBindGroup(0, group, nil)
		c.passGroup = group
	}
	for slot, v := range c.vbs {
		b, ok := c.dev.bufferOf(v.Buffer)
		if !ok {
			c.fail(fmt.Errorf("%s: vertex stream %d: %w", op, slot, gpu.ErrInvalidHandle))
			return nil
		}
		c.rpass.SetVertexBuffer(slot, b.buf, v.Offset, orWhole(v.Size, wgpu.WholeSize))
	}
	if indexed {
		b, ok := c.dev.bufferOf(c.ib.Buffer)
		if !ok {
			c.fail(fmt.Errorf("%s: index buffer: %w", op, gpu.ErrInvalidHandle))
			return nil
		}
		c.rpass.SetIndexBuffer(b.buf, indexFormat(c.ib.Format), c.ib.Offset, orWhole(c.ib.Size, wgpu.WholeSize))
	}
	return c.rpass
}

// common0 returns v, or fallback when v is zero.
func orWhole(v, fallback uint64) uint64 {
	if v == 0 {
		return fallback
	}
	return v
}

func (c *commandContext) beginRenderPass(op string) bool {
	colors := make([]wgpu.RenderPassColorAttachment, len(c.rtvs))
	for i, rtv := range c.rtvs {
		view, ok := c.dev.viewOf(rtv)
		if !ok {
			c.fail(fmt.Errorf("%s: render target %d: %w", op, i, gpu.ErrInvalidHandle))
			return false
		}
		colors[i] = wgpu.RenderPassColorAttachment{View: view, LoadOp: wgpu.LoadOpLoad, StoreOp: wgpu.StoreOpStore}
	}
	desc := &wgpu.RenderPassDescriptor{Label: op, ColorAttachments: colors}
	if c.dsv != nil {
		view, ok := c.dev.viewOf(*c.dsv)
		if !ok {
			c.fail(fmt.Errorf("%s: depth target: %w", op, gpu.ErrInvalidHandle))
			return false
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:         view,
			DepthLoadOp:  wgpu.LoadOpLoad,
			DepthStoreOp: wgpu.StoreOpStore,
		}
	}
	if c.cpass != nil {
		c.endPasses()
	}
	c.rpass = c.encoder.BeginRenderPass(desc)
	if vp := c.viewport; vp != nil {
		c.rpass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	}
	return true
}

func (c *commandContext) validateDraw(op string, p *renderPipeline, indexed bool) {
	if len(c.rtvs) != len(p.desc.ColorFormats) {
		c.fail(fmt.Errorf("%s: %d render targets bound, pipeline writes %d", op, len(c.rtvs), len(p.desc.ColorFormats)))
	}
	for i, rtv := range c.rtvs {
		c.expect(op+" render target", rtv.Resource, gpu.StateRenderTarget)
		if t, ok := c.dev.textureOf(rtv.Resource); ok && i < len(p.desc.ColorFormats) && t.desc.Format != p.desc.ColorFormats[i] {
			c.fail(fmt.Errorf("%s: render target %d %q has format %d, pipeline expects %d", op, i, t.desc.Label, t.desc.Format, p.desc.ColorFormats[i]))
		}
	}
	if p.desc.DepthFormat != gpu.FormatUnknown {
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

// validateBindings checks that every slot declared by the pipeline layout is bound and, with
// tracking on, in a legal state.
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

// boundResource returns the handle bound to a declared slot and, for textures, its descriptor.
func (c *commandContext) boundResource(b gpu.BindingDesc) (gpu.Handle, gpu.Descriptor) {
	switch b.Type {
	case gpu.BindingConstantBuffer:
		return c.cbs[b.Slot], gpu.Descriptor{}
	case gpu.BindingTexture:
		d := c.srvs[b.Slot]
		return d.Resource, d
	case gpu.BindingStorageRead:
		if d, ok := c.uavs[b.Slot]; ok {
			return d.Resource, gpu.Descriptor{}
		}
		return c.srvs[b.Slot].Resource, gpu.Descriptor{}
	case gpu.BindingStreamOut:
		return c.sos[b.Slot], gpu.Descriptor{}
	}
	return c.uavs[b.Slot].Resource, gpu.Descriptor{}
}

// bindGroup returns the bind group for the current bindings. Groups are cached by pipeline and
// bound handles; handles are never reused so a stale entry can never match live resources.
func (c *commandContext) bindGroup(op string, pipelineID uint64, layout *wgpu.BindGroupLayout, bindings []gpu.BindingDesc, samplers []gpu.SamplerDesc) *wgpu.BindGroup {
	var key strings.Builder
	fmt.Fprintf(&key, "%d", pipelineID)
	for _, b := range bindings {
		h, _ := c.boundResource(b)
		fmt.Fprintf(&key, "|%d:%s", b.Slot, h)
	}
	if cached, ok := c.dev.bindGroups.Get(key.String()); ok {
		return cached
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(bindings)+len(samplers))
	for _, b := range bindings {
		h, desc := c.boundResource(b)
		if b.Type == gpu.BindingTexture {
			view, ok := c.dev.viewOf(desc)
			if !ok {
				c.fail(fmt.Errorf("%s: texture slot %d: %w", op, b.Slot, gpu.ErrInvalidHandle))
				return nil
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: b.Slot, TextureView: view})
			continue
		}
		buf, ok := c.dev.bufferOf(h)
		if !ok {
			c.fail(fmt.Errorf("%s: buffer slot %d: %w", op, b.Slot, gpu.ErrInvalidHandle))
			return nil
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: b.Slot, Buffer: buf.buf, Size: wgpu.WholeSize})
	}
	for _, s := range samplers {
		smp, err := c.dev.sampler(s)
		if err != nil {
			c.fail(fmt.Errorf("%s: sampler %d: %w", op, s.Slot, err))
			return nil
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: s.Slot, Sampler: smp})
	}

	group, err := c.dev.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   op,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		c.fail(fmt.Errorf("%s: bind group: %w", op, err))
		return nil
	}
	c.dev.bindGroups.Add(key.String(), group)
	return group
}
