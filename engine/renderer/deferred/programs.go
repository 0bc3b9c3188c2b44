package deferred

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/model"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/go-gl/mathgl/mgl32"
)

//go:embed assets/scene.wgsl
var sceneSource string

//go:embed assets/geometry.wgsl
var geometrySource string

//go:embed assets/lighting.wgsl
var lightingSource string

// Binding slots of the geometry and z-prepass pipelines.
const (
	SlotScene    uint32 = 0
	SlotMaterial uint32 = 1
	SlotAlbedo   uint32 = 2
	slotSampler  uint32 = 3
)

// alphaCutoff is the albedo alpha below which the z-prepass discards.
const alphaCutoff = 0.5

var geometryBindings = []gpu.BindingDesc{
	{Slot: SlotScene, Type: gpu.BindingConstantBuffer, Stages: gpu.StageVertex | gpu.StageFragment},
	{Slot: SlotMaterial, Type: gpu.BindingConstantBuffer, Stages: gpu.StageVertex | gpu.StageFragment},
	{Slot: SlotAlbedo, Type: gpu.BindingTexture, Stages: gpu.StageFragment},
}

var lightingBindings = []gpu.BindingDesc{
	{Slot: SlotScene, Type: gpu.BindingConstantBuffer, Stages: gpu.StageFragment},
	{Slot: 1 + TargetPosition, Type: gpu.BindingTexture, Stages: gpu.StageFragment, Unfilterable: true},
	{Slot: 1 + TargetNormal, Type: gpu.BindingTexture, Stages: gpu.StageFragment, Unfilterable: true},
	{Slot: 1 + TargetAlbedo, Type: gpu.BindingTexture, Stages: gpu.StageFragment},
}

// Pipelines declares the z-prepass, geometry and lighting pipelines writing into a back buffer of
// format backBuffer.
func Pipelines(backBuffer gpu.Format) []pipeline.Pipeline {
	geometry := sceneSource + model.VertexInputSource + geometrySource
	lighting := sceneSource + lightingSource
	sampler := gpu.SamplerDesc{Slot: slotSampler, Filter: gpu.FilterLinear}

	return []pipeline.Pipeline{
		pipeline.NewPipeline(pipeline.ZPrePass, gpu.PipelineKindRender,
			pipeline.WithVertexShader(gpu.ShaderSource{Label: "zprepass", Code: geometry, EntryPoint: "vs_geometry"}),
			pipeline.WithFragmentShader(gpu.ShaderSource{Label: "zprepass", Code: geometry, EntryPoint: "fs_zprepass"}),
			pipeline.WithReference(zPrePassProgram),
			pipeline.WithVertexLayout(model.VertexLayouts()...),
			pipeline.WithCullMode(gpu.CullBack),
			pipeline.WithDepthFormat(DepthFormat),
			pipeline.WithBindings(geometryBindings...),
			pipeline.WithStaticSamplers(sampler),
		),
		pipeline.NewPipeline(pipeline.GBuffer, gpu.PipelineKindRender,
			pipeline.WithVertexShader(gpu.ShaderSource{Label: "geometry", Code: geometry, EntryPoint: "vs_geometry"}),
			pipeline.WithFragmentShader(gpu.ShaderSource{Label: "geometry", Code: geometry, EntryPoint: "fs_geometry"}),
			pipeline.WithReference(geometryProgram),
			pipeline.WithVertexLayout(model.VertexLayouts()...),
			pipeline.WithCullMode(gpu.CullBack),
			pipeline.WithColorFormats(TargetFormats()...),
			pipeline.WithDepthFormat(DepthFormat),
			pipeline.WithDepthWriteEnabled(false),
			pipeline.WithBindings(geometryBindings...),
			pipeline.WithStaticSamplers(sampler),
		),
		pipeline.NewPipeline(pipeline.Lighting, gpu.PipelineKindRender,
			pipeline.WithVertexShader(gpu.ShaderSource{Label: "lighting", Code: lighting, EntryPoint: "vs_lighting"}),
			pipeline.WithFragmentShader(gpu.ShaderSource{Label: "lighting", Code: lighting, EntryPoint: "fs_lighting"}),
			pipeline.WithReference(lightingProgram),
			pipeline.WithTopology(gpu.TopologyTriangleStrip),
			pipeline.WithColorFormats(backBuffer),
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
			pipeline.WithBindings(lightingBindings...),
		),
	}
}

// Varyings of the geometry vertex stage.
const (
	varyWorldPos = iota
	varyNormal
	varyUV
)

func geometryVertex(in software.VertexInput, b software.Bindings) software.VertexOutput {
	scene, mat := b.Constants(SlotScene), b.Constants(SlotMaterial)
	world := common.Mat4At(mat, offWorld)
	viewProj := common.Mat4At(scene, offProj).Mul4(common.Mat4At(scene, offView))

	pos := in.Attributes[0].Vec3().Vec4(1)
	wp := world.Mul4x1(pos)
	var out software.VertexOutput
	out.Position = viewProj.Mul4x1(wp)
	out.Varyings[varyWorldPos] = wp
	out.Varyings[varyNormal] = world.Mul4x1(in.Attributes[1].Vec3().Vec4(0))
	out.Varyings[varyUV] = in.Attributes[2]
	return out
}

var zPrePassProgram = software.RenderProgram{
	Vertex: geometryVertex,
	Fragment: func(in software.FragmentInput, b software.Bindings) software.FragmentOutput {
		uv := in.Varyings[varyUV]
		if b.Texture(SlotAlbedo).Sample(uv[0], uv[1])[3] < alphaCutoff {
			return software.FragmentOutput{Discard: true}
		}
		return software.FragmentOutput{}
	},
}

var geometryProgram = software.RenderProgram{
	Vertex: geometryVertex,
	Fragment: func(in software.FragmentInput, b software.Bindings) software.FragmentOutput {
		mat := b.Constants(SlotMaterial)
		diffuse := common.Vec4At(mat, offDiffuse)
		ambient := common.Vec4At(mat, offMatAmb)
		uv := in.Varyings[varyUV]
		texel := b.Texture(SlotAlbedo).Sample(uv[0], uv[1])

		var out software.FragmentOutput
		out.Colors[TargetPosition] = in.Varyings[varyWorldPos].Vec3().Vec4(1)
		out.Colors[TargetNormal] = in.Varyings[varyNormal].Vec3().Normalize().Vec4(ambient[0])
		out.Colors[TargetAlbedo] = mgl32.Vec4{texel[0] * diffuse[0], texel[1] * diffuse[1], texel[2] * diffuse[2], texel[3]}
		return out
	},
}

var lightingProgram = software.RenderProgram{
	Vertex: func(in software.VertexInput, b software.Bindings) software.VertexOutput {
		x := float32(in.VertexID&1)*2 - 1
		y := float32(in.VertexID>>1)*2 - 1
		return software.VertexOutput{Position: mgl32.Vec4{x, y, 0, 1}}
	},
	Fragment: func(in software.FragmentInput, b software.Bindings) software.FragmentOutput {
		x, y := int(in.Position[0]), int(in.Position[1])
		position := b.Texture(1 + TargetPosition).Load(x, y)
		if position[3] == 0 {
			return software.FragmentOutput{Discard: true}
		}
		normal := b.Texture(1 + TargetNormal).Load(x, y)
		albedo := b.Texture(1 + TargetAlbedo).Load(x, y)
		light := Shade(b.Constants(SlotScene), position.Vec3(), normal)

		var out software.FragmentOutput
		out.Colors[0] = mgl32.Vec4{albedo[0] * light[0], albedo[1] * light[1], albedo[2] * light[2], 1}
		return out
	},
}

// Shade returns the light reaching a surface point: the scene ambient scaled by the material
// ambient in normal.w, the Lambert term of the directional light and the attenuated point lights.
//
// Parameters:
//   - scene: the marshaled SceneParams
//   - position: the world position of the surface
//   - normal: the world normal in xyz and the material ambient in w
//
// Returns:
//   - mgl32.Vec3: the incoming light, to be multiplied by the albedo
func Shade(scene []byte, position mgl32.Vec3, normal mgl32.Vec4) mgl32.Vec3 {
	n := normal.Vec3().Normalize()
	l := common.Vec4At(scene, offLightDir).Vec3().Normalize()
	light := common.Vec4At(scene, offAmbient).Vec3().Mul(normal[3]).
		Add(common.Vec4At(scene, offLightColor).Vec3().Mul(max(n.Dot(l), 0)))

	count := min(common.Uint32At(scene, offFrame), MaxPointLights)
	for i := range int(count) {
		pl := common.Vec4At(scene, offPointLights+i*16)
		toLight := pl.Vec3().Sub(position)
		dist := toLight.Len()
		if dist <= 0 {
			continue
		}
		atten := common.Clamp(1-dist/pl[3], 0, 1)
		color := common.Vec4At(scene, offPointLightColors+i*16).Vec3()
		light = light.Add(color.Mul(max(n.Dot(toLight.Mul(1/dist)), 0) * atten))
	}
	return light
}
