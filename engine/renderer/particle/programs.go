package particle

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

//go:embed assets/scene.wgsl
var sceneSource string

//go:embed assets/compute.wgsl
var computeSource string

//go:embed assets/draw.wgsl
var drawSource string

// Binding slots shared by the kernels and the billboard draw.
const (
	SlotScene     uint32 = 0
	SlotElements  uint32 = 1
	SlotIndexList uint32 = 2
	SlotSprite    uint32 = 3
	slotSampler   uint32 = 4
)

// WorkgroupSize is the thread count of every particle kernel.
const WorkgroupSize = 32

// EmitGroups is the group count of the emit dispatch.
const EmitGroups = 2

// Kernel constants, mirrored in compute.wgsl and draw.wgsl.
const (
	gravity        = 9.8
	lifeMin        = 2.0
	lifeSpan       = 3.0
	emitWindow     = EmitGroups * WorkgroupSize
	billboardSize  = 1.5
	bounceDamping  = 0.5
	sphereDamping  = 0.6
	launchSpread   = 20.0
	launchMinSpeed = 20.0
)

// DrawMode selects how many billboards the draw pass instances.
type DrawMode int

const (
	// DrawFixed instances the full capacity; inactive elements collapse to degenerate quads.
	DrawFixed DrawMode = iota
	// DrawIndirect instances the alive count copied from the GPU counter.
	DrawIndirect
)

func (m DrawMode) String() string {
	switch m {
	case DrawFixed:
		return "fixed"
	case DrawIndirect:
		return "indirect"
	}
	return fmt.Sprintf("DrawMode(%d)", int(m))
}

// ParseDrawMode parses "fixed" or "indirect".
func ParseDrawMode(s string) (DrawMode, error) {
	switch s {
	case "fixed", "":
		return DrawFixed, nil
	case "indirect":
		return DrawIndirect, nil
	}
	return DrawFixed, fmt.Errorf("unknown particle draw mode %q", s)
}

var computeBindings = []gpu.BindingDesc{
	{Slot: SlotScene, Type: gpu.BindingConstantBuffer, Stages: gpu.StageCompute},
	{Slot: SlotElements, Type: gpu.BindingStorageReadWrite, Stages: gpu.StageCompute},
	{Slot: SlotIndexList, Type: gpu.BindingStorageReadWrite, Stages: gpu.StageCompute},
}

var drawBindings = []gpu.BindingDesc{
	{Slot: SlotScene, Type: gpu.BindingConstantBuffer, Stages: gpu.StageVertex},
	{Slot: SlotElements, Type: gpu.BindingStorageRead, Stages: gpu.StageVertex},
	{Slot: SlotIndexList, Type: gpu.BindingStorageRead, Stages: gpu.StageVertex},
	{Slot: SlotSprite, Type: gpu.BindingTexture, Stages: gpu.StageFragment},
}

// quadStride is the stride of the billboard vertex stream: corner xyz then uv.
const quadStride = 20

func quadLayout() gpu.VertexBufferLayout {
	return gpu.VertexBufferLayout{
		Stride: quadStride,
		Attributes: []gpu.VertexAttribute{
			{Location: 0, Format: gpu.VertexFormatFloat32x3, Offset: 0},
			{Location: 1, Format: gpu.VertexFormatFloat32x2, Offset: 12},
		},
	}
}

// quadVertices returns the four billboard corners, counter-clockwise facing the camera.
func quadVertices() []float32 {
	return []float32{
		-1, 1, 0, 0, 0,
		-1, -1, 0, 0, 1,
		1, 1, 0, 1, 0,
		1, -1, 0, 1, 1,
	}
}

var quadIndices = []uint32{0, 1, 2, 2, 1, 3}

// Pipelines declares the three kernels and the billboard draw writing into a target of format
// target.
func Pipelines(target gpu.Format, mode DrawMode) []pipeline.Pipeline {
	compute := sceneSource + computeSource
	draw := sceneSource + drawSource
	group := [3]uint32{WorkgroupSize, 1, 1}
	vertexEntry := "vs_fixed"
	if mode == DrawIndirect {
		vertexEntry = "vs_indirect"
	}

	kernel := func(id pipeline.ID, entry string, ref software.ComputeProgram) pipeline.Pipeline {
		return pipeline.NewPipeline(id, gpu.PipelineKindCompute,
			pipeline.WithComputeShader(gpu.ShaderSource{Label: entry, Code: compute, EntryPoint: entry}, group),
			pipeline.WithReference(ref),
			pipeline.WithBindings(computeBindings...),
		)
	}
	return []pipeline.Pipeline{
		kernel(pipeline.ParticleInit, "cs_init", initKernel),
		kernel(pipeline.ParticleEmit, "cs_emit", emitKernel),
		kernel(pipeline.ParticleUpdate, "cs_update", updateKernel),
		pipeline.NewPipeline(pipeline.ParticleDraw, gpu.PipelineKindRender,
			pipeline.WithVertexShader(gpu.ShaderSource{Label: "particle", Code: draw, EntryPoint: vertexEntry}),
			pipeline.WithFragmentShader(gpu.ShaderSource{Label: "particle", Code: draw, EntryPoint: "fs_particle"}),
			pipeline.WithReference(drawProgram(mode)),
			pipeline.WithVertexLayout(quadLayout()),
			pipeline.WithColorFormats(target),
			pipeline.WithBlendMode(gpu.BlendAlpha),
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
			pipeline.WithBindings(drawBindings...),
			pipeline.WithStaticSamplers(gpu.SamplerDesc{Slot: slotSampler, Filter: gpu.FilterLinear, Clamp: true}),
		),
	}
}

type kernelScene struct {
	capacity uint32
	frame    uint32
	emit     uint32
	dt       float32
	center   mgl32.Vec4
	list     IndexListLayout
}

func readKernelScene(b software.Bindings) kernelScene {
	c := b.Constants(SlotScene)
	capacity := common.Uint32At(c, offMaxParticleCount)
	return kernelScene{
		capacity: capacity,
		frame:    common.Uint32At(c, offFrameIndex),
		emit:     common.Uint32At(c, offEmitCount),
		dt:       common.Float32At(c, offFrameDeltaTime),
		center:   common.Vec4At(c, offForceCenter),
		list:     IndexListLayout{Capacity: capacity},
	}
}

var initKernel software.ComputeProgram = func(inv software.Invocation, b software.Bindings) {
	s := readKernelScene(b)
	elements, list := b.Buffer(SlotElements), b.Buffer(SlotIndexList)
	i := inv.GlobalID[0]
	if i == 0 {
		putWord(list, s.list.counterWord(0), 0)
		putWord(list, s.list.counterWord(1), 0)
	}
	if i >= s.capacity {
		return
	}
	encodeElement(elements, i, Element{})
	putWord(list, int(i), 0)
}

var emitKernel software.ComputeProgram = func(inv software.Invocation, b software.Bindings) {
	s := readKernelScene(b)
	elements, list := b.Buffer(SlotElements), b.Buffer(SlotIndexList)
	t := inv.GlobalID[0]
	parity := s.frame & 1
	if t == 0 {
		putWord(list, s.list.counterWord(parity+1), 0)
	}
	if t >= s.emit {
		return
	}
	slot := (s.frame*emitWindow + t) % s.capacity
	if DecodeElement(elements, slot).Active {
		return
	}
	counter := s.list.counterWord(parity)
	at := wordAt(list, counter)
	if at >= s.capacity {
		return
	}
	putWord(list, counter, at+1)

	encodeElement(elements, slot, Element{
		Active:     true,
		LifeTime:   lifeMin + lifeSpan*random(slot, s.frame, 0),
		ColorIndex: pcg(slot^s.frame) % ColorCount,
		Position:   mgl32.Vec4{0, 0, 0, 1},
		Velocity: mgl32.Vec4{
			(random(slot, s.frame, 1) - 0.5) * launchSpread,
			launchMinSpeed + random(slot, s.frame, 2)*launchSpread,
			(random(slot, s.frame, 3) - 0.5) * launchSpread,
			0,
		},
	})
	putWord(list, int(at), slot)
}

var updateKernel software.ComputeProgram = func(inv software.Invocation, b software.Bindings) {
	s := readKernelScene(b)
	elements, list := b.Buffer(SlotElements), b.Buffer(SlotIndexList)
	i := inv.GlobalID[0]
	if i >= s.capacity {
		return
	}
	e := DecodeElement(elements, i)
	if !e.Active {
		return
	}
	e.Elapsed += s.dt
	if e.Elapsed >= e.LifeTime {
		e.Active = false
		encodeElement(elements, i, e)
		return
	}

	e.Velocity[1] -= gravity * s.dt
	e.Position = e.Position.Vec3().Add(e.Velocity.Vec3().Mul(s.dt)).Vec4(1)

	radius := s.center[3]
	d := e.Position.Vec3().Sub(s.center.Vec3())
	if dist := d.Len(); radius > 0 && dist < radius && dist > 0 {
		n := d.Mul(1 / dist)
		e.Position = s.center.Vec3().Add(n.Mul(radius)).Vec4(1)
		if vn := e.Velocity.Vec3().Dot(n); vn < 0 {
			e.Velocity = e.Velocity.Vec3().Sub(n.Mul(2 * vn)).Mul(sphereDamping).Vec4(0)
		}
	}
	if e.Position[1] < 0 {
		e.Position[1] = 0
		e.Velocity[1] = -e.Velocity[1] * bounceDamping
	}
	encodeElement(elements, i, e)

	counter := s.list.counterWord(s.frame&1 + 1)
	at := wordAt(list, counter)
	putWord(list, counter, at+1)
	if at < s.capacity {
		putWord(list, int(at), i)
	}
}

// Varyings of the billboard vertex stage.
const (
	varyColor = iota
	varyUV
)

func drawProgram(mode DrawMode) software.RenderProgram {
	return software.RenderProgram{
		Vertex: func(in software.VertexInput, b software.Bindings) software.VertexOutput {
			scene := b.Constants(SlotScene)
			index := in.InstanceID
			if mode == DrawIndirect {
				index = wordAt(b.Buffer(SlotIndexList), int(in.InstanceID))
			}
			e := DecodeElement(b.Buffer(SlotElements), index)
			if !e.Active {
				return software.VertexOutput{}
			}

			corner := in.Attributes[0].Vec3().Mul(billboardSize).Vec4(0)
			offset := common.Mat4At(scene, offBillboard).Mul4x1(corner).Vec3()
			viewProj := common.Mat4At(scene, offProj).Mul4(common.Mat4At(scene, offView))
			color := common.Vec4At(scene, offParticleColors+int(e.ColorIndex%ColorCount)*16)

			var out software.VertexOutput
			out.Position = viewProj.Mul4x1(e.Position.Vec3().Add(offset).Vec4(1))
			out.Varyings[varyColor] = color.Vec3().Vec4(1 - e.Elapsed/e.LifeTime)
			out.Varyings[varyUV] = in.Attributes[1]
			return out
		},
		Fragment: func(in software.FragmentInput, b software.Bindings) software.FragmentOutput {
			c, uv := in.Varyings[varyColor], in.Varyings[varyUV]
			texel := b.Texture(SlotSprite).Sample(uv[0], uv[1])
			var out software.FragmentOutput
			out.Colors[0] = mgl32.Vec4{c[0] * texel[0], c[1] * texel[1], c[2] * texel[2], texel[3] * c[3]}
			return out
		},
	}
}

// SpriteStaging returns a size x size white sprite whose alpha falls off radially, used as the
// billboard texture.
func SpriteStaging(size uint32) common.TextureStagingData {
	data := common.TextureStagingData{Width: size, Height: size, Pixels: make([]byte, size*size*4)}
	half := float32(size) / 2
	for y := range size {
		for x := range size {
			dx := (float32(x) + 0.5 - half) / half
			dy := (float32(y) + 0.5 - half) / half
			a := common.Clamp(1-math32.Sqrt(dx*dx+dy*dy), 0, 1)
			o := (y*size + x) * 4
			data.Pixels[o], data.Pixels[o+1], data.Pixels[o+2] = 255, 255, 255
			data.Pixels[o+3] = uint8(a * 255)
		}
	}
	return data
}
