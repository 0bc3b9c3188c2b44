package wgpu_backend

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	lru "github.com/hashicorp/golang-lru/v2"
)

type buffer struct {
	desc gpu.BufferDesc
	buf  *wgpu.Buffer
	size uint64

	// shadow mirrors upload buffers so they can be read back without a map.
	shadow []byte
}

type texture struct {
	desc gpu.TextureDesc
	tex  *wgpu.Texture
}

type samplerKey struct {
	filter gpu.FilterMode
	clamp  bool
}

// deviceImpl is a gpu.Device over a WebGPU adapter. Resource states are implicit in WebGPU, so
// barriers only split passes; the optional state tracker validates them at record time.
type deviceImpl struct {
	label         string
	forceFallback bool
	tracking      bool
	heapSizes     [3]uint32
	cacheSize     int

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *queue
	surface  *wgpu.Surface

	tracker     gpu.StateTracker
	descriptors gpu.DescriptorAllocator

	mu       sync.Mutex
	buffers  map[gpu.Handle]*buffer
	textures map[gpu.Handle]*texture
	views    map[gpu.Descriptor]*wgpu.TextureView

	bindGroups *lru.Cache[string, *wgpu.BindGroup]
	samplers   *lru.Cache[samplerKey, *wgpu.Sampler]

	idle *fence
}

var _ gpu.Device = &deviceImpl{}

// NewDevice requests an adapter compatible with surface and opens a device on it. A nil surface
// creates a device without presentation support.
//
// Parameters:
//   - surface: the platform surface descriptor from the window, or nil
//   - options: variadic list of DeviceBuilderOption functions
//
// Returns:
//   - gpu.Device: the new device
//   - error: error if no adapter or device could be acquired
func NewDevice(surface *wgpu.SurfaceDescriptor, options ...DeviceBuilderOption) (gpu.Device, error) {
	runtime.LockOSThread()
	d := &deviceImpl{
		label:     "wgpu",
		heapSizes: [3]uint32{4096, 256, 64},
		cacheSize: 256,
		buffers:   make(map[gpu.Handle]*buffer),
		textures:  make(map[gpu.Handle]*texture),
		views:     make(map[gpu.Descriptor]*wgpu.TextureView),
	}
	for _, opt := range options {
		opt(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	if surface != nil {
		d.surface = d.instance.CreateSurface(surface)
	}

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallback,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.adapter = adapter

	limits := wgpu.DefaultLimits()
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          d.label,
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		d.release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.device = device
	d.queue = newQueue(d, device.GetQueue())
	d.idle = newFence(d, 0)

	if d.tracking {
		d.tracker = gpu.NewStateTracker()
	}
	d.descriptors = gpu.NewDescriptorAllocator(d.heapSizes[0], d.heapSizes[1], d.heapSizes[2])

	d.bindGroups, err = lru.NewWithEvict(d.cacheSize, func(_ string, bg *wgpu.BindGroup) {
		bg.Release()
	})
	if err != nil {
		d.release()
		return nil, fmt.Errorf("bind group cache: %w", err)
	}
	d.samplers, err = lru.NewWithEvict(16, func(_ samplerKey, s *wgpu.Sampler) {
		s.Release()
	})
	if err != nil {
		d.release()
		return nil, fmt.Errorf("sampler cache: %w", err)
	}

	common.Logger().Info("wgpu device created", "label", d.label, "fallback", d.forceFallback, "state_tracking", d.tracking, "surface", d.surface != nil)
	return d, nil
}

func (d *deviceImpl) Label() string {
	return d.label
}

func (d *deviceImpl) register(h gpu.Handle, label string, state gpu.ResourceState) {
	if d.tracker != nil {
		d.tracker.Register(h, label, state)
	}
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

	size := align(desc.Size, 4)
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return gpu.Resource{}, fmt.Errorf("create buffer %q: %w", desc.Label, err)
	}

	b := &buffer{desc: desc, buf: buf, size: size}
	if desc.Usage&gpu.BufferUsageUpload != 0 {
		b.shadow = make([]byte, size)
	}
	h := gpu.NewHandle()
	d.mu.Lock()
	d.buffers[h] = b
	d.mu.Unlock()
	d.register(h, desc.Label, state)

	return gpu.Resource{Handle: h, Kind: gpu.ResourceKindBuffer, Label: desc.Label, State: state}, nil
}

func (d *deviceImpl) CreateTexture(desc gpu.TextureDesc) (gpu.Resource, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return gpu.Resource{}, fmt.Errorf("create texture %q: zero extent %dx%d", desc.Label, desc.Width, desc.Height)
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return gpu.Resource{}, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Usage:         textureUsage(desc.Usage),
		Dimension:     wgpu.TextureDimension2D,
		Size:          wgpu.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return gpu.Resource{}, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}

	h := gpu.NewHandle()
	d.mu.Lock()
	d.textures[h] = &texture{desc: desc, tex: tex}
	d.mu.Unlock()
	d.register(h, desc.Label, desc.InitialState)

	return gpu.Resource{Handle: h, Kind: gpu.ResourceKindTexture, Label: desc.Label, State: desc.InitialState}, nil
}

// CreateView allocates a descriptor. Texture views get a WebGPU view object; buffer views resolve
// to the buffer itself when a bind group is built.
func (d *deviceImpl) CreateView(r gpu.Resource, kind gpu.ViewKind) (gpu.Descriptor, error) {
	d.mu.Lock()
	_, isBuf := d.buffers[r.Handle]
	tex, isTex := d.textures[r.Handle]
	d.mu.Unlock()

	switch {
	case !isBuf && !isTex:
		return gpu.Descriptor{}, fmt.Errorf("create view of %q: %w", r.Label, gpu.ErrInvalidHandle)
	case isBuf && (kind == gpu.ViewRenderTarget || kind == gpu.ViewDepthStencil):
		return gpu.Descriptor{}, fmt.Errorf("create view of buffer %q: kind %d needs a texture", r.Label, kind)
	case isTex && kind == gpu.ViewDepthStencil && !tex.desc.Format.IsDepth():
		return gpu.Descriptor{}, fmt.Errorf("create depth view of %q: format is not a depth format", r.Label)
	}

	desc, err := d.descriptors.Allocate(r.Handle, kind)
	if err != nil {
		return gpu.Descriptor{}, err
	}
	if !isTex {
		return desc, nil
	}

	aspect := wgpu.TextureAspectAll
	if tex.desc.Format.IsDepth() && kind == gpu.ViewShaderResource {
		aspect = wgpu.TextureAspectDepthOnly
	}
	view, err := tex.tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           fmt.Sprintf("%s view %d", r.Label, kind),
		Dimension:       wgpu.TextureViewDimension2D,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
		Aspect:          aspect,
	})
	if err != nil {
		d.descriptors.Release(desc, 0)
		return gpu.Descriptor{}, fmt.Errorf("create view of %q: %w", r.Label, err)
	}
	d.mu.Lock()
	if old, ok := d.views[desc]; ok {
		old.Release()
	}
	d.views[desc] = view
	d.mu.Unlock()
	return desc, nil
}

func (d *deviceImpl) CreateCommandContext(label string) (gpu.CommandContext, error) {
	return newCommandContext(d, label), nil
}

func (d *deviceImpl) CreateFence(initial uint64) (gpu.Fence, error) {
	return newFence(d, initial), nil
}

func (d *deviceImpl) CreateSwapchain(desc gpu.SwapchainDesc) (gpu.Swapchain, error) {
	if d.surface == nil {
		return nil, errors.New("create swapchain: device was created without a surface")
	}
	return newSwapchain(d, desc)
}

func (d *deviceImpl) Queue() gpu.Queue {
	return d.queue
}

func (d *deviceImpl) WriteBuffer(h gpu.Handle, offset uint64, data []byte) error {
	d.mu.Lock()
	b, ok := d.buffers[h]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("write buffer: %w", gpu.ErrInvalidHandle)
	}
	end := offset + uint64(len(data))
	if end > b.desc.Size {
		return fmt.Errorf("write buffer %q: range [%d,%d) exceeds size %d", b.desc.Label, offset, end, b.desc.Size)
	}
	if b.desc.Usage&gpu.BufferUsageReadback != 0 {
		return fmt.Errorf("write buffer %q: readback buffers are GPU written", b.desc.Label)
	}
	if b.shadow != nil {
		copy(b.shadow[offset:], data)
	}

	// Queue writes move whole words; widen the range with what the buffer already holds.
	if offset%4 != 0 || len(data)%4 != 0 {
		start := offset &^ 3
		stop := min(align(end, 4), b.size)
		if b.shadow == nil {
			return fmt.Errorf("write buffer %q: unaligned range [%d,%d) on a device local buffer", b.desc.Label, offset, end)
		}
		return d.queue.q.WriteBuffer(b.buf, start, b.shadow[start:stop])
	}
	return d.queue.q.WriteBuffer(b.buf, offset, data)
}

func (d *deviceImpl) ReadBuffer(h gpu.Handle, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	b, ok := d.buffers[h]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("read buffer: %w", gpu.ErrInvalidHandle)
	}
	if offset+size > b.desc.Size {
		return nil, fmt.Errorf("read buffer %q: range [%d,%d) exceeds size %d", b.desc.Label, offset, offset+size, b.desc.Size)
	}
	if b.shadow != nil {
		out := make([]byte, size)
		copy(out, b.shadow[offset:offset+size])
		return out, nil
	}
	if b.desc.Usage&gpu.BufferUsageReadback == 0 {
		return nil, fmt.Errorf("read buffer %q: not host visible", b.desc.Label)
	}

	// Map offsets must be 8 aligned and sizes 4 aligned.
	mapOffset := offset &^ 7
	mapSize := min(align(offset+size-mapOffset, 4), b.size-mapOffset)
	var status wgpu.BufferMapAsyncStatus
	if err := b.buf.MapAsync(wgpu.MapModeRead, mapOffset, mapSize, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, fmt.Errorf("map buffer %q: %w", b.desc.Label, err)
	}
	d.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("map buffer %q: status %s", b.desc.Label, status.String())
	}
	mapped := b.buf.GetMappedRange(uint(mapOffset), uint(mapSize))
	out := make([]byte, size)
	copy(out, mapped[offset-mapOffset:])
	b.buf.Unmap()
	return out, nil
}

func (d *deviceImpl) WriteTexture(h gpu.Handle, texels []byte, width, height uint32) error {
	d.mu.Lock()
	t, ok := d.textures[h]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("write texture: %w", gpu.ErrInvalidHandle)
	}
	if t.desc.Usage&gpu.TextureUsageCopyDst == 0 {
		return fmt.Errorf("write texture %q: created without CopyDst usage", t.desc.Label)
	}
	stride := uint32(t.desc.Format.BytesPerTexel())
	if want := int(width * height * stride); len(texels) < want {
		return fmt.Errorf("write texture %q: %d bytes for %dx%d texels, need %d", t.desc.Label, len(texels), width, height, want)
	}
	d.queue.q.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture: t.tex,
			Aspect:  wgpu.TextureAspectAll,
		},
		texels,
		&wgpu.TextureDataLayout{
			BytesPerRow:  width * stride,
			RowsPerImage: height,
		},
		&wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)
	return nil
}

// Destroy drops the device's references. WebGPU keeps the memory alive until submitted work that
// uses it has completed.
func (d *deviceImpl) Destroy(h gpu.Handle) {
	d.mu.Lock()
	if b, ok := d.buffers[h]; ok {
		b.buf.Release()
		delete(d.buffers, h)
	}
	if t, ok := d.textures[h]; ok {
		t.tex.Release()
		delete(d.textures, h)
	}
	for desc, v := range d.views {
		if desc.Resource == h {
			v.Release()
			delete(d.views, desc)
		}
	}
	d.mu.Unlock()
	if d.tracker != nil {
		d.tracker.Forget(h)
	}
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
	d.mu.Lock()
	for h, b := range d.buffers {
		b.buf.Release()
		delete(d.buffers, h)
	}
	for h, t := range d.textures {
		t.tex.Release()
		delete(d.textures, h)
	}
	for desc, v := range d.views {
		v.Release()
		delete(d.views, desc)
	}
	d.mu.Unlock()
	d.bindGroups.Purge()
	d.samplers.Purge()
	d.release()
	common.Logger().Info("wgpu device closed", "label", d.label)
	return nil
}

func (d *deviceImpl) release() {
	if d.queue != nil {
		d.queue.q.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

func (d *deviceImpl) bufferOf(h gpu.Handle) (*buffer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[h]
	return b, ok
}

func (d *deviceImpl) textureOf(h gpu.Handle) (*texture, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[h]
	return t, ok
}

func (d *deviceImpl) viewOf(desc gpu.Descriptor) (*wgpu.TextureView, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.views[desc]
	return v, ok
}

// sampler returns the cached sampler for a static sampler declaration.
func (d *deviceImpl) sampler(s gpu.SamplerDesc) (*wgpu.Sampler, error) {
	key := samplerKey{filter: s.Filter, clamp: s.Clamp}
	if cached, ok := d.samplers.Get(key); ok {
		return cached, nil
	}
	filter, mip := wgpu.FilterModeLinear, wgpu.MipmapFilterModeLinear
	if s.Filter == gpu.FilterPoint {
		filter, mip = wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest
	}
	address := wgpu.AddressModeRepeat
	if s.Clamp {
		address = wgpu.AddressModeClampToEdge
	}
	created, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         fmt.Sprintf("sampler filter=%d clamp=%t", s.Filter, s.Clamp),
		AddressModeU:  address,
		AddressModeV:  address,
		AddressModeW:  address,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  mip,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}
	d.samplers.Add(key, created)
	return created, nil
}
