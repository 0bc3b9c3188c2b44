package pipeline

import "github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithLabel overrides the debug label, which defaults to the ID name.
func WithLabel(label string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.Label = label
		p.compute.Label = label
	}
}

// WithVertexShader sets the vertex shader for this pipeline.
//
// Parameters:
//   - s: the vertex shader source and entry point
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex shader for this pipeline
func WithVertexShader(s gpu.ShaderSource) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.Vertex = s
	}
}

// WithFragmentShader sets the fragment shader for this pipeline. Depth-only pipelines omit it.
//
// Parameters:
//   - s: the fragment shader source and entry point
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment shader for this pipeline
func WithFragmentShader(s gpu.ShaderSource) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.Fragment = &s
	}
}

// WithComputeShader sets the compute shader and workgroup size for this pipeline.
//
// Parameters:
//   - s: the compute shader source and entry point
//   - workgroupSize: the @workgroup_size declared by the shader
//
// Returns:
//   - PipelineBuilderOption: a function that sets the compute shader for this pipeline
func WithComputeShader(s gpu.ShaderSource, workgroupSize [3]uint32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.compute.Compute = s
		p.compute.WorkgroupSize = workgroupSize
	}
}

// WithReference sets the host implementation used by software devices. It takes a
// software.RenderProgram for render pipelines and a software.ComputeProgram for compute pipelines.
func WithReference(ref any) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.Reference = ref
		p.compute.Reference = ref
	}
}

// WithDepthTestEnabled sets whether depth testing is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether depth testing should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth test enabled state for this pipeline
func WithDepthTestEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.DepthTest = enabled
	}
}

// WithDepthWriteEnabled sets whether depth writing is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether depth writing should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth write enabled state for this pipeline
func WithDepthWriteEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.DepthWrite = enabled
	}
}

// WithDepthCompare sets the depth comparison function.
func WithDepthCompare(f gpu.CompareFunc) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.DepthCompare = f
	}
}

// WithDepthFormat sets the format of the bound depth target.
func WithDepthFormat(f gpu.Format) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.DepthFormat = f
	}
}

// WithColorFormats sets the formats of the bound color targets, in slot order.
//
// Parameters:
//   - formats: one format per render target
//
// Returns:
//   - PipelineBuilderOption: a function that sets the color target formats for this pipeline
func WithColorFormats(formats ...gpu.Format) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.ColorFormats = append([]gpu.Format(nil), formats...)
	}
}

// WithBlendMode sets the blend mode applied to every color target.
//
// Parameters:
//   - mode: gpu.BlendNone, gpu.BlendAlpha or gpu.BlendAdditive
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend mode for this pipeline
func WithBlendMode(mode gpu.BlendMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.Blend = mode
	}
}

// WithCullMode sets the cull mode for this pipeline.
//
// Parameters:
//   - mode: the cull mode to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cull mode for this pipeline
func WithCullMode(mode gpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.CullMode = mode
	}
}

// WithTopology sets the primitive topology for this pipeline.
//
// Parameters:
//   - topology: gpu.TopologyTriangleList or gpu.TopologyTriangleStrip
//
// Returns:
//   - PipelineBuilderOption: a function that sets the primitive topology for this pipeline
func WithTopology(topology gpu.Topology) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.Topology = topology
	}
}

// WithVertexLayout sets the vertex streams, one layout per vertex buffer slot.
func WithVertexLayout(layouts ...gpu.VertexBufferLayout) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.VertexLayout = append([]gpu.VertexBufferLayout(nil), layouts...)
	}
}

// WithBindings sets the resource slots of the pipeline layout.
//
// Parameters:
//   - bindings: one entry per bound resource
//
// Returns:
//   - PipelineBuilderOption: a function that sets the layout for this pipeline
func WithBindings(bindings ...gpu.BindingDesc) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.Bindings = append([]gpu.BindingDesc(nil), bindings...)
		p.compute.Bindings = append([]gpu.BindingDesc(nil), bindings...)
	}
}

// WithStaticSamplers sets the samplers baked into the pipeline layout.
func WithStaticSamplers(samplers ...gpu.SamplerDesc) PipelineBuilderOption {
	return func(p *pipeline) {
		p.render.Samplers = append([]gpu.SamplerDesc(nil), samplers...)
	}
}
