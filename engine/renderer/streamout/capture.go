package streamout

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/model"
	"github.com/Carmen-Shannon/oxy-samples/engine/overlay"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/frame_ring"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/pipeline"
	"github.com/go-gl/mathgl/mgl32"
)

// Debug event names bracketing the two stages.
const (
	EventCapture = "StreamOutCapture"
	EventDraw    = "StreamOutDraw"
)

// DepthFormat is the format of the depth target of the captured draw.
const DepthFormat = gpu.FormatDepth32Float

// ErrTargetSize is returned when the render target and the depth target differ in size.
var ErrTargetSize = errors.New("stream out depth does not match the render target")

// capture is the implementation of the Capture interface.
type capture struct {
	device    gpu.Device
	ring      frame_ring.Ring
	pipelines *pipeline.Set

	cull       gpu.CullMode
	clearDepth float32
	scene      SceneParams
	palette    Palette
	nodes      int
	batches    []model.DrawBatch

	vertices gpu.Resource
	indices  gpu.Resource
	output   gpu.Resource
	filled   gpu.Resource

	verticesSRV gpu.Descriptor
	indicesSRV  gpu.Descriptor

	depth  gpu.Resource
	dsv    gpu.Descriptor
	width  uint32
	height uint32

	sceneCB   frame_ring.ConstantBuffer
	paletteCB frame_ring.ConstantBuffer
}

// Capture transforms a mesh through its node hierarchy on the GPU every frame, writes the result
// into a stream output buffer and draws that buffer. The output buffer lives in StateStreamOut
// and is transitioned to StateVertexOrConstantBuffer only around the draw.
type Capture interface {
	overlay.Overlay

	// Scene returns the scene block written into each frame's constants. Callers update the
	// camera through it.
	Scene() *SceneParams

	// IndexCount returns the number of vertices written by each capture.
	IndexCount() uint32

	// Batches returns the draw batches of the captured stream.
	Batches() []model.DrawBatch

	// Output returns the stream output buffer.
	Output() gpu.Resource

	// Filled returns the buffer holding the byte count written by the last capture.
	Filled() gpu.Resource

	// SetPose copies the world transforms of the skeleton into the node palette.
	SetPose(skeleton *model.Skeleton)

	// WriteConstants writes the scene block and the node palette for the next frame into slot.
	//
	// Parameters:
	//   - slot: the frame slot being recorded
	//
	// Returns:
	//   - error: error if a constant write fails
	WriteConstants(slot int) error

	// RecordCapture records the capture dispatch. The output buffer must be in StateStreamOut.
	RecordCapture(cmd gpu.CommandContext, slot int)

	// RecordDraw transitions the output buffer to a vertex stream, draws every batch into target
	// and transitions it back to StateStreamOut.
	//
	// Returns:
	//   - error: ErrTargetSize if target and the depth target differ in size
	RecordDraw(cmd gpu.CommandContext, slot int, target overlay.Target) error

	// Resize recreates the depth target. The caller must have waited for the device to idle.
	//
	// Parameters:
	//   - width: the new target width
	//   - height: the new target height
	//
	// Returns:
	//   - error: error if the depth target cannot be created
	Resize(width, height uint32) error

	// Destroy releases the buffers, the depth target and the views. The constants are owned by the
	// ring. The caller must have waited for the device to idle.
	Destroy()
}

var _ Capture = &capture{}

// NewCapture uploads the mesh as source buffers and creates the stream output buffer, its byte
// counter, the depth target and the pipelines.
//
// Parameters:
//   - device: the device owning every resource
//   - ring: the frame ring replicating the constants
//   - mesh: the mesh to capture; batch nodes index the palette
//   - target: the format of the render target the captured stream draws into
//   - width: the initial target width
//   - height: the initial target height
//   - options: a variadic list of CaptureBuilderOption functions
//
// Returns:
//   - Capture: the capture ready to record
//   - error: the setup error
func NewCapture(device gpu.Device, ring frame_ring.Ring, mesh *model.MeshData, target gpu.Format, width, height uint32, options ...CaptureBuilderOption) (Capture, error) {
	if err := model.Validate(mesh); err != nil {
		return nil, fmt.Errorf("stream out mesh: %w", err)
	}
	if len(mesh.Nodes) >= MaxNodes {
		return nil, fmt.Errorf("stream out mesh %q: %d nodes, palette holds %d", mesh.Name, len(mesh.Nodes), MaxNodes-1)
	}
	if len(mesh.Indices) == 0 {
		return nil, fmt.Errorf("stream out mesh %q: no indices", mesh.Name)
	}
	c := &capture{
		device:     device,
		ring:       ring,
		clearDepth: 1,
		palette:    NewPalette(),
		nodes:      len(mesh.Nodes),
		batches:    captureBatches(mesh),
		scene: SceneParams{
			LightDir: mgl32.Vec4{0.5, 1, 0.25, 0},
			Albedo:   mgl32.Vec4{0.8, 0.8, 0.8, 0.2},
		},
	}
	for _, opt := range options {
		opt(c)
	}
	c.scene.IndexCount = uint32(len(mesh.Indices))

	set, err := pipeline.Build(device, Pipelines(target, c.cull)...)
	if err != nil {
		return nil, fmt.Errorf("stream out pipelines: %w", err)
	}
	c.pipelines = set

	if err := c.createResources(mesh); err != nil {
		c.Destroy()
		return nil, err
	}
	if err := c.Resize(width, height); err != nil {
		c.Destroy()
		return nil, err
	}
	common.Logger().Info("stream out capture ready", "mesh", mesh.Name, "vertices", c.scene.IndexCount, "batches", len(c.batches), "output bytes", uint64(c.scene.IndexCount)*VertexStride)
	return c, nil
}

// captureBatches returns the batches of mesh with one covering every index when it declares none.
func captureBatches(mesh *model.MeshData) []model.DrawBatch {
	if len(mesh.Batches) == 0 {
		return []model.DrawBatch{{IndexCount: uint32(len(mesh.Indices)), Node: -1}}
	}
	return append([]model.DrawBatch(nil), mesh.Batches...)
}

// SourceVertices packs the position, normal and uv streams of mesh into SourceVertexSize records.
// A missing normal stream defaults to +Y.
func SourceVertices(mesh *model.MeshData) []byte {
	buf := make([]byte, mesh.VertexCount()*SourceVertexSize)
	for i, p := range mesh.Positions {
		o := i * SourceVertexSize
		n := mgl32.Vec3{0, 1, 0}
		if i < len(mesh.Normals) {
			n = mesh.Normals[i]
		}
		var uv mgl32.Vec2
		if i < len(mesh.UVs) {
			uv = mesh.UVs[i]
		}
		common.PutVec4(buf, o, p.Vec4(1))
		common.PutVec4(buf, o+16, n.Vec4(0))
		common.PutVec4(buf, o+32, mgl32.Vec4{uv[0], uv[1], 0, 0})
	}
	return buf
}

// IndexRecords resolves every index of mesh to its source vertex and palette entry. Batch vertex
// offsets are applied here, and indices outside every batch use the model origin.
func IndexRecords(mesh *model.MeshData) []byte {
	buf := make([]byte, len(mesh.Indices)*IndexRecordSize)
	for i, idx := range mesh.Indices {
		common.PutUint32(buf, i*IndexRecordSize, idx)
	}
	for _, b := range mesh.Batches {
		for i := b.IndexOffset; i < b.IndexOffset+b.IndexCount; i++ {
			o := int(i) * IndexRecordSize
			common.PutUint32(buf, o, uint32(int64(mesh.Indices[i])+int64(b.VertexOffset)))
			common.PutUint32(buf, o+4, uint32(b.Node+1))
		}
	}
	return buf
}

func (c *capture) createResources(mesh *model.MeshData) error {
	var err error
	upload := func(label string, data []byte) (gpu.Resource, gpu.Descriptor, error) {
		r, err := c.device.CreateBuffer(gpu.BufferDesc{
			Label:        label,
			Size:         uint64(len(data)),
			Usage:        gpu.BufferUsageStorage | gpu.BufferUsageCopyDst,
			InitialState: gpu.StateNonPixelShaderResource,
		})
		if err != nil {
			return gpu.Resource{}, gpu.Descriptor{}, fmt.Errorf("create %s: %w", label, err)
		}
		if err := c.device.WriteBuffer(r.Handle, 0, data); err != nil {
			return r, gpu.Descriptor{}, fmt.Errorf("write %s: %w", label, err)
		}
		srv, err := c.device.CreateView(r, gpu.ViewShaderResource)
		if err != nil {
			return r, gpu.Descriptor{}, fmt.Errorf("create %s view: %w", label, err)
		}
		return r, srv, nil
	}
	if c.vertices, c.verticesSRV, err = upload("streamout.source_vertices", SourceVertices(mesh)); err != nil {
		return err
	}
	if c.indices, c.indicesSRV, err = upload("streamout.source_indices", IndexRecords(mesh)); err != nil {
		return err
	}

	if c.output, err = c.device.CreateBuffer(gpu.BufferDesc{
		Label:        "streamout.vertices",
		Size:         uint64(c.scene.IndexCount) * VertexStride,
		Usage:        gpu.BufferUsageStorage | gpu.BufferUsageVertex,
		InitialState: gpu.StateStreamOut,
	}); err != nil {
		return fmt.Errorf("create stream out buffer: %w", err)
	}
	if c.filled, err = c.device.CreateBuffer(gpu.BufferDesc{
		Label:        "streamout.filled",
		Size:         FilledSize,
		Usage:        gpu.BufferUsageStorage | gpu.BufferUsageCopySrc,
		InitialState: gpu.StateStreamOut,
	}); err != nil {
		return fmt.Errorf("create stream out counter: %w", err)
	}

	if c.sceneCB, err = c.ring.NewConstantBuffer("streamout scene", SceneParamsSize); err != nil {
		return fmt.Errorf("stream out scene constants: %w", err)
	}
	if c.paletteCB, err = c.ring.NewConstantBuffer("streamout palette", PaletteSize); err != nil {
		return fmt.Errorf("stream out palette constants: %w", err)
	}
	return nil
}

func (c *capture) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("stream out depth %dx%d: extent must be positive", width, height)
	}
	c.releaseDepth()
	depth, err := c.device.CreateTexture(gpu.TextureDesc{
		Label:        "streamout.depth",
		Width:        width,
		Height:       height,
		Format:       DepthFormat,
		Usage:        gpu.TextureUsageDepthStencil,
		InitialState: gpu.StateDepthWrite,
	})
	if err != nil {
		return fmt.Errorf("create stream out depth: %w", err)
	}
	c.depth = depth
	if c.dsv, err = c.device.CreateView(depth, gpu.ViewDepthStencil); err != nil {
		return fmt.Errorf("create stream out depth view: %w", err)
	}
	c.width, c.height = width, height
	return nil
}

func (c *capture) releaseDepth() {
	c.device.Descriptors().Release(c.dsv, 0)
	if c.depth.Handle.Valid() {
		c.device.Destroy(c.depth.Handle)
	}
	c.depth, c.dsv = gpu.Resource{}, gpu.Descriptor{}
	c.width, c.height = 0, 0
}

func (c *capture) Scene() *SceneParams        { return &c.scene }
func (c *capture) IndexCount() uint32         { return c.scene.IndexCount }
func (c *capture) Batches() []model.DrawBatch { return c.batches }
func (c *capture) Output() gpu.Resource       { return c.output }
func (c *capture) Filled() gpu.Resource       { return c.filled }
func (c *capture) groups() uint32             { return c.scene.IndexCount/WorkgroupSize + 1 }

func (c *capture) SetPose(skeleton *model.Skeleton) {
	for i := range c.nodes {
		c.palette[i+1] = skeleton.World(i)
	}
}

func (c *capture) WriteConstants(slot int) error {
	if err := c.ring.WriteConstants(slot, c.sceneCB, c.scene.Marshal()); err != nil {
		return err
	}
	return c.ring.WriteConstants(slot, c.paletteCB, c.palette.Marshal())
}

func (c *capture) RecordCapture(cmd gpu.CommandContext, slot int) {
	cmd.BeginEvent(EventCapture)
	cmd.SetPipeline(c.pipelines.Get(pipeline.StreamOutCapture))
	cmd.SetConstantBuffer(SlotScene, c.sceneCB.Handle(slot))
	cmd.SetConstantBuffer(SlotPalette, c.paletteCB.Handle(slot))
	cmd.SetShaderResource(SlotVertices, c.verticesSRV)
	cmd.SetShaderResource(SlotIndices, c.indicesSRV)
	cmd.SetStreamOutTarget(SlotOutput, c.output.Handle)
	cmd.SetStreamOutTarget(SlotFilled, c.filled.Handle)
	cmd.Dispatch(c.groups(), 1, 1)
	cmd.EndEvent()
}

func (c *capture) RecordDraw(cmd gpu.CommandContext, slot int, target overlay.Target) error {
	if uint32(target.Width) != c.width || uint32(target.Height) != c.height {
		return fmt.Errorf("%w: depth %dx%d, target %dx%d", ErrTargetSize, c.width, c.height, target.Width, target.Height)
	}
	var toVertex gpu.Barrier
	c.output, toVertex, _ = c.output.Transition(gpu.StateVertexOrConstantBuffer)
	cmd.ResourceBarrier(toVertex)

	cmd.BeginEvent(EventDraw)
	cmd.ClearDepth(c.dsv, c.clearDepth)
	cmd.SetRenderTargets([]gpu.Descriptor{target.RTV}, &c.dsv)
	cmd.SetViewport(gpu.Viewport{Width: float32(target.Width), Height: float32(target.Height), MaxDepth: 1})
	cmd.SetPipeline(c.pipelines.Get(pipeline.StreamOutDraw))
	cmd.SetConstantBuffer(SlotScene, c.sceneCB.Handle(slot))
	cmd.SetVertexBuffers(0, gpu.VertexBufferView{Buffer: c.output.Handle, Size: uint64(c.scene.IndexCount) * VertexStride, Stride: VertexStride})
	for _, b := range c.batches {
		cmd.DrawInstanced(b.IndexCount, 1, b.IndexOffset, 0)
	}
	cmd.EndEvent()

	var toStreamOut gpu.Barrier
	c.output, toStreamOut, _ = c.output.Transition(gpu.StateStreamOut)
	cmd.ResourceBarrier(toStreamOut)
	return nil
}

// Render writes the constants of slot and records the capture followed by the draw.
func (c *capture) Render(cmd gpu.CommandContext, slot int, target overlay.Target) error {
	if err := c.WriteConstants(slot); err != nil {
		return fmt.Errorf("stream out constants: %w", err)
	}
	c.RecordCapture(cmd, slot)
	return c.RecordDraw(cmd, slot, target)
}

func (c *capture) Destroy() {
	descriptors := c.device.Descriptors()
	descriptors.Release(c.verticesSRV, 0)
	descriptors.Release(c.indicesSRV, 0)
	c.releaseDepth()
	for _, r := range []gpu.Resource{c.vertices, c.indices, c.output, c.filled} {
		if r.Handle.Valid() {
			c.device.Destroy(r.Handle)
		}
	}
	c.verticesSRV, c.indicesSRV = gpu.Descriptor{}, gpu.Descriptor{}
	c.vertices, c.indices, c.output, c.filled = gpu.Resource{}, gpu.Resource{}, gpu.Resource{}, gpu.Resource{}
}
