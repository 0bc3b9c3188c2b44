package gpu

import "context"

// BufferUsage is a bit set of the ways a buffer may be bound.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageConstant
	BufferUsageStorage
	BufferUsageIndirect
	BufferUsageCopySrc
	BufferUsageCopyDst

	// BufferUsageUpload places the buffer in CPU-writable memory that stays mapped for its lifetime.
	// Upload buffers are permanently in StateGenericRead.
	BufferUsageUpload

	// BufferUsageReadback places the buffer in CPU-readable memory used as a copy destination.
	BufferUsageReadback
)

// TextureUsage is a bit set of the ways a texture may be bound.
type TextureUsage uint32

const (
	TextureUsageRenderTarget TextureUsage = 1 << iota
	TextureUsageDepthStencil
	TextureUsageShaderResource
	TextureUsageStorage
	TextureUsageCopyDst
	TextureUsageCopySrc
)

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage BufferUsage

	// InitialState is the state the buffer is created in. Upload buffers ignore it.
	InitialState ResourceState
}

// TextureDesc describes a 2D texture to create.
type TextureDesc struct {
	Label        string
	Width        uint32
	Height       uint32
	Format       Format
	Usage        TextureUsage
	InitialState ResourceState
}

// ShaderStage is a bit set of pipeline stages.
type ShaderStage uint32

const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
	StageCompute
)

// BindingType is the kind of resource bound to a slot.
type BindingType int

const (
	BindingConstantBuffer BindingType = iota
	BindingTexture
	BindingStorageRead
	BindingStorageReadWrite
	// BindingStreamOut is a buffer written by a capture stage, bound with SetStreamOutTarget and
	// held in StateStreamOut.
	BindingStreamOut
)

// BindingDesc declares one resource slot of a pipeline layout.
type BindingDesc struct {
	Slot   uint32
	Type   BindingType
	Stages ShaderStage

	// Unfilterable marks a texture slot read with texel loads only, required for 32-bit float
	// formats.
	Unfilterable bool
}

// FilterMode selects texel filtering for a static sampler.
type FilterMode int

const (
	FilterPoint FilterMode = iota
	FilterLinear
)

// SamplerDesc declares a static sampler baked into a pipeline layout.
type SamplerDesc struct {
	Slot   uint32
	Filter FilterMode
	Clamp  bool
}

// ShaderSource is WGSL source and its entry point.
type ShaderSource struct {
	Label      string
	Code       string
	EntryPoint string
}

// VertexAttribute is one attribute of a vertex stream.
type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint64
}

// VertexBufferLayout describes one vertex stream.
type VertexBufferLayout struct {
	Stride      uint64
	PerInstance bool
	Attributes  []VertexAttribute
}

// Topology is the primitive assembly mode.
type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
)

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// CompareFunc is a depth comparison function.
type CompareFunc int

const (
	CompareLess CompareFunc = iota
	CompareLessEqual
	CompareEqual
	CompareAlways
)

// BlendMode selects color blending for all color targets.
type BlendMode int

const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendAdditive
)

// PipelineKind distinguishes render from compute pipelines.
type PipelineKind int

const (
	PipelineKindRender PipelineKind = iota
	PipelineKindCompute
)

// RenderPipelineDesc describes a graphics pipeline. A pipeline without a fragment shader and
// without color formats is depth-only.
type RenderPipelineDesc struct {
	Label        string
	Vertex       ShaderSource
	Fragment     *ShaderSource
	VertexLayout []VertexBufferLayout
	Topology     Topology
	CullMode     CullMode
	ColorFormats []Format
	DepthFormat  Format
	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareFunc
	Blend        BlendMode
	Bindings     []BindingDesc
	Samplers     []SamplerDesc

	// Reference is the host implementation of the shaders, consumed by devices that execute on
	// the CPU. Hardware devices ignore it.
	Reference any
}

// ComputePipelineDesc describes a compute pipeline.
type ComputePipelineDesc struct {
	Label         string
	Compute       ShaderSource
	WorkgroupSize [3]uint32
	Bindings      []BindingDesc

	// Reference is the host implementation of the kernel, see RenderPipelineDesc.Reference.
	Reference any
}

// Pipeline is a created pipeline state object.
type Pipeline interface {
	Label() string
	Kind() PipelineKind
}

// VertexBufferView binds a range of a buffer as a vertex stream.
type VertexBufferView struct {
	Buffer Handle
	Offset uint64
	Size   uint64
	Stride uint64
}

// IndexBufferView binds a range of a buffer as the index stream.
type IndexBufferView struct {
	Buffer Handle
	Offset uint64
	Size   uint64
	Format IndexFormat
}

// Viewport maps normalized device coordinates to render target pixels.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// CommandContext records GPU commands for one submission. It is reset before recording and
// closed before submission; recording happens on a single goroutine.
type CommandContext interface {
	Label() string

	// Reset reclaims the context's command memory and opens it for recording. Only legal once the
	// GPU has retired everything previously recorded into it.
	Reset() error

	// Close ends recording. Errors recorded while recording (validation failures) surface here.
	Close() error

	BeginEvent(name string)
	EndEvent()

	ResourceBarrier(barriers ...Barrier)

	ClearRenderTarget(rtv Descriptor, color [4]float32)
	ClearDepth(dsv Descriptor, depth float32)

	// SetRenderTargets binds color targets and an optional depth target. A nil dsv binds none.
	SetRenderTargets(rtvs []Descriptor, dsv *Descriptor)
	SetViewport(vp Viewport)

	SetPipeline(p Pipeline)
	SetConstantBuffer(slot uint32, buffer Handle)
	SetShaderResource(slot uint32, srv Descriptor)
	SetUnorderedAccess(slot uint32, uav Descriptor)
	// SetStreamOutTarget binds a buffer that receives the vertices written by a capture stage.
	SetStreamOutTarget(slot uint32, buffer Handle)

	SetVertexBuffers(startSlot uint32, views ...VertexBufferView)
	SetIndexBuffer(view IndexBufferView)

	DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32)
	DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32)

	// DrawIndexedIndirect reads {indexCount, instanceCount, firstIndex, baseVertex, firstInstance}
	// as five 32-bit values from args at offset.
	DrawIndexedIndirect(args Handle, offset uint64)

	Dispatch(x, y, z uint32)

	CopyBufferRegion(dst Handle, dstOffset uint64, src Handle, srcOffset uint64, size uint64)
}

// Queue is the single serial command queue.
type Queue interface {
	// Submit executes closed contexts in order.
	Submit(contexts ...CommandContext) error

	// Signal sets f to value once all previously submitted work has completed.
	Signal(f Fence, value uint64) error
}

// Fence is a monotonically increasing GPU completion counter.
type Fence interface {
	CompletedValue() uint64

	// Wait blocks until the fence reaches value or ctx ends. A context deadline yields an error
	// wrapping ErrFenceTimeout.
	Wait(ctx context.Context, value uint64) error
}

// PresentMode controls how presented images reach the display.
type PresentMode int

const (
	// PresentModeVSync waits for vertical blank.
	PresentModeVSync PresentMode = iota

	// PresentModeImmediate presents without waiting.
	PresentModeImmediate
)

// SwapchainDesc describes the presentable image ring.
type SwapchainDesc struct {
	Label       string
	Width       int
	Height      int
	Format      Format
	ImageCount  int
	PresentMode PresentMode

	// Waitable exposes a latency waitable object limiting queued frames to MaxFrameLatency.
	Waitable        bool
	MaxFrameLatency int
}

// Swapchain is the presentable image ring. Images are created in StatePresent.
type Swapchain interface {
	ImageCount() int

	// CurrentImageIndex returns the index of the image the next frame renders into.
	CurrentImageIndex() int

	Image(index int) Resource
	RenderTargetView(index int) Descriptor
	Format() Format
	Width() int
	Height() int

	// Present hands the current image to the presentation engine and advances the image index.
	Present(syncInterval int) error

	// WaitReady blocks until the presentation engine can accept another frame. It returns
	// immediately for swapchains created without Waitable.
	WaitReady(ctx context.Context) error

	Resize(width, height int) error
}

// TextureData is a host copy of a texture with every channel widened to float32 RGBA.
type TextureData struct {
	Width  int
	Height int
	Format Format
	Texels []float32
}

// At returns the RGBA value of the texel at (x, y).
func (t TextureData) At(x, y int) [4]float32 {
	i := (y*t.Width + x) * 4
	return [4]float32{t.Texels[i], t.Texels[i+1], t.Texels[i+2], t.Texels[i+3]}
}

// TextureReader is implemented by devices that can copy texture contents back to the host.
type TextureReader interface {
	ReadTexture(h Handle) (TextureData, error)
}

// Device creates resources and pipelines and owns the queue.
type Device interface {
	Label() string

	CreateBuffer(desc BufferDesc) (Resource, error)
	CreateTexture(desc TextureDesc) (Resource, error)
	CreateView(r Resource, kind ViewKind) (Descriptor, error)
	CreateRenderPipeline(desc RenderPipelineDesc) (Pipeline, error)
	CreateComputePipeline(desc ComputePipelineDesc) (Pipeline, error)
	CreateCommandContext(label string) (CommandContext, error)
	CreateFence(initial uint64) (Fence, error)
	CreateSwapchain(desc SwapchainDesc) (Swapchain, error)

	Queue() Queue

	// WriteBuffer copies data into a buffer. For upload buffers the write lands in mapped memory and
	// is consumed by the GPU when work recorded after it executes.
	WriteBuffer(h Handle, offset uint64, data []byte) error

	// ReadBuffer copies size bytes out of an upload or readback buffer's mapped memory.
	ReadBuffer(h Handle, offset, size uint64) ([]byte, error)

	// WriteTexture uploads tightly packed texels into a texture created with TextureUsageCopyDst.
	WriteTexture(h Handle, texels []byte, width, height uint32) error

	Destroy(h Handle)

	// WaitIdle blocks until every submitted command has completed.
	WaitIdle(ctx context.Context) error

	// Descriptors returns the allocator backing CreateView. Views are released through it with the
	// fence value of the last frame that referenced them.
	Descriptors() DescriptorAllocator

	// Tracker returns the state tracker validating resource usage, or nil when tracking is off.
	Tracker() StateTracker

	Close() error
}
