package streamout

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/go-gl/mathgl/mgl32"
)

//go:embed assets/scene.wgsl
var sceneSource string

//go:embed assets/capture.wgsl
var captureSource string

//go:embed assets/draw.wgsl
var drawSource string

// Binding slots of the capture kernel and the captured draw.
const (
	SlotScene    uint32 = 0
	SlotPalette  uint32 = 1
	SlotVertices uint32 = 2
	SlotIndices  uint32 = 3
	SlotOutput   uint32 = 4
	SlotFilled   uint32 = 5
)

// WorkgroupSize is the thread count of the capture kernel.
const WorkgroupSize = 64

// Buffer record sizes.
const (
	// SourceVertexSize is one source vertex: position, normal and uv, each padded to a vec4.
	SourceVertexSize = 48
	// IndexRecordSize is one captured index: the source vertex and its palette entry.
	IndexRecordSize = 8
	// VertexStride is one captured vertex: position xyz, normal xyz and uv.
	VertexStride = 32
	// FilledSize is the size of the buffer receiving the captured byte count.
	FilledSize = 16
)

var captureBindings = []gpu.BindingDesc{
	{Slot: SlotScene, Type: gpu.BindingConstantBuffer, Stages: gpu.StageCompute},
	{Slot: SlotPalette, Type: gpu.BindingConstantBuffer, Stages: gpu.StageCompute},
	{Slot: SlotVertices, Type: gpu.BindingStorageRead, Stages: gpu.StageCompute},
	{Slot: SlotIndices, Type: gpu.BindingStorageRead, Stages: gpu.StageCompute},
	{Slot: SlotOutput, Type: gpu.BindingStreamOut, Stages: gpu.StageCompute},
	{Slot: SlotFilled, Type: gpu.BindingStreamOut, Stages: gpu.StageCompute},
}

var drawBindings = []gpu.BindingDesc{
	{Slot: SlotScene, Type: gpu.BindingConstantBuffer, Stages: gpu.StageVertex | gpu.StageFragment},
}

// VertexLayout is the layout of the captured vertex stream.
func VertexLayout() gpu.VertexBufferLayout {
	return gpu.VertexBufferLayout{
		Stride: VertexStride,
		Attributes: []gpu.VertexAttribute{
			{Location: 0, Format: gpu.VertexFormatFloat32x3, Offset: 0},
			{Location: 1, Format: gpu.VertexFormatFloat32x3, Offset: 12},
			{Location: 2, Format: gpu.VertexFormatFloat32x2, Offset: 24},
		},
	}
}

// Pipelines declares the capture kernel and the draw of the captured stream into a target of
// format target.
func Pipelines(target gpu.Format, cull gpu.CullMode) []pipeline.Pipeline {
	return []pipeline.Pipeline{
		pipeline.NewPipeline(pipeline.StreamOutCapture, gpu.PipelineKindCompute,
			pipeline.WithComputeShader(gpu.ShaderSource{Label: "capture", Code: sceneSource + captureSource, EntryPoint: "cs_capture"}, [3]uint32{WorkgroupSize, 1, 1}),
			pipeline.WithReference(captureKernel),
			pipeline.WithBindings(captureBindings...),
		),
		pipeline.NewPipeline(pipeline.StreamOutDraw, gpu.PipelineKindRender,
			pipeline.WithVertexShader(gpu.ShaderSource{Label: "captured", Code: sceneSource + drawSource, EntryPoint: "vs_captured"}),
			pipeline.WithFragmentShader(gpu.ShaderSource{Label: "captured", Code: sceneSource + drawSource, EntryPoint: "fs_captured"}),
			pipeline.WithReference(drawProgram),
			pipeline.WithVertexLayout(VertexLayout()),
			pipeline.WithColorFormats(target),
			pipeline.WithDepthFormat(DepthFormat),
			pipeline.WithCullMode(cull),
			pipeline.WithBindings(drawBindings...),
		),
	}
}

// CapturedVertex is one decoded vertex of the output stream.
type CapturedVertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// DecodeVertex reads vertex i of a captured stream.
func DecodeVertex(buf []byte, i uint32) CapturedVertex {
	o := int(i) * VertexStride
	f := func(k int) float32 { return common.Float32At(buf, o+k*4) }
	return CapturedVertex{
		Position: mgl32.Vec3{f(0), f(1), f(2)},
		Normal:   mgl32.Vec3{f(3), f(4), f(5)},
		UV:       mgl32.Vec2{f(6), f(7)},
	}
}

func encodeVertex(buf []byte, i uint32, v CapturedVertex) {
	common.PutFloat32s(buf, int(i)*VertexStride,
		v.Position[0], v.Position[1], v.Position[2],
		v.Normal[0], v.Normal[1], v.Normal[2],
		v.UV[0], v.UV[1],
	)
}

var captureKernel software.ComputeProgram = func(inv software.Invocation, b software.Bindings) {
	scene, palette := b.Constants(SlotScene), b.Constants(SlotPalette)
	count := common.Uint32At(scene, offIndexCount)
	i := inv.GlobalID[0]
	if i == 0 {
		common.PutUint32(b.Buffer(SlotFilled), 0, count*VertexStride)
	}
	if i >= count {
		return
	}
	records := b.Buffer(SlotIndices)
	vertex := common.Uint32At(records, int(i)*IndexRecordSize)
	node := common.Uint32At(records, int(i)*IndexRecordSize+4)

	src := b.Buffer(SlotVertices)
	o := int(vertex) * SourceVertexSize
	world := common.Mat4At(palette, int(node)*64)
	position := common.Vec4At(src, o).Vec3()
	normal := common.Vec4At(src, o+16).Vec3()
	uv := common.Vec4At(src, o+32)

	encodeVertex(b.Buffer(SlotOutput), i, CapturedVertex{
		Position: world.Mul4x1(position.Vec4(1)).Vec3(),
		Normal:   world.Mul4x1(normal.Vec4(0)).Vec3().Normalize(),
		UV:       mgl32.Vec2{uv[0], uv[1]},
	})
}

// Varyings of the captured draw.
const (
	varyNormal = iota
	varyUV
)

var drawProgram = software.RenderProgram{
	Vertex: func(in software.VertexInput, b software.Bindings) software.VertexOutput {
		scene := b.Constants(SlotScene)
		viewProj := common.Mat4At(scene, offProj).Mul4(common.Mat4At(scene, offView))
		var out software.VertexOutput
		out.Position = viewProj.Mul4x1(in.Attributes[0].Vec3().Vec4(1))
		out.Varyings[varyNormal] = in.Attributes[1].Vec3().Vec4(0)
		out.Varyings[varyUV] = in.Attributes[2]
		return out
	},
	Fragment: func(in software.FragmentInput, b software.Bindings) software.FragmentOutput {
		scene := b.Constants(SlotScene)
		light := common.Vec4At(scene, offLightDir).Vec3().Normalize()
		albedo := common.Vec4At(scene, offAlbedo)
		diffuse := max(in.Varyings[varyNormal].Vec3().Normalize().Dot(light), 0)
		k := albedo[3] + diffuse
		var out software.FragmentOutput
		out.Colors[0] = mgl32.Vec4{min(albedo[0]*k, 1), min(albedo[1]*k, 1), min(albedo[2]*k, 1), 1}
		return out
	},
}
