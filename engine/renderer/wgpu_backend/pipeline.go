package wgpu_backend

import (
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

var pipelineIDs atomic.Uint64

type renderPipeline struct {
	id       uint64
	desc     gpu.RenderPipelineDesc
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.BindGroupLayout
}

func (p *renderPipeline) Label() string          { return p.desc.Label }
func (p *renderPipeline) Kind() gpu.PipelineKind { return gpu.PipelineKindRender }

type computePipeline struct {
	id       uint64
	desc     gpu.ComputePipelineDesc
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
}

func (p *computePipeline) Label() string          { return p.desc.Label }
func (p *computePipeline) Kind() gpu.PipelineKind { return gpu.PipelineKindCompute }

func (d *deviceImpl) shaderModule(src gpu.ShaderSource) (*wgpu.ShaderModule, error) {
	return d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: src.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: src.Code,
		},
	})
}

func (d *deviceImpl) pipelineLayout(label string, entries []wgpu.BindGroupLayoutEntry) (*wgpu.BindGroupLayout, *wgpu.PipelineLayout, error) {
	bgl, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label + " bind group layout",
		Entries: entries,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("bind group layout: %w", err)
	}
	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		return nil, nil, fmt.Errorf("pipeline layout: %w", err)
	}
	return bgl, layout, nil
}

func (d *deviceImpl) CreateRenderPipeline(desc gpu.RenderPipelineDesc) (gpu.Pipeline, error) {
	fail := func(err error) (gpu.Pipeline, error) {
		return nil, fmt.Errorf("render pipeline %q: %w: %w", desc.Label, gpu.ErrPipelineCreation, err)
	}
	if len(desc.ColorFormats) > 0 && desc.Fragment == nil {
		return fail(fmt.Errorf("color targets without a fragment shader"))
	}

	vs, err := d.shaderModule(desc.Vertex)
	if err != nil {
		return fail(fmt.Errorf("vertex shader: %w", err))
	}
	defer vs.Release()

	samplerStages := wgpu.ShaderStageFragment
	bgl, layout, err := d.pipelineLayout(desc.Label, layoutEntries(desc.Bindings, desc.Samplers, samplerStages))
	if err != nil {
		return fail(err)
	}
	defer layout.Release()

	pd := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    vertexLayouts(desc.VertexLayout),
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology(desc.Topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode(desc.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}

	if desc.Fragment != nil {
		fs, err := d.shaderModule(*desc.Fragment)
		if err != nil {
			bgl.Release()
			return fail(fmt.Errorf("fragment shader: %w", err))
		}
		defer fs.Release()
		targets := make([]wgpu.ColorTargetState, len(desc.ColorFormats))
		for i, f := range desc.ColorFormats {
			tf, err := textureFormat(f)
			if err != nil {
				bgl.Release()
				return fail(err)
			}
			targets[i] = wgpu.ColorTargetState{
				Format:    tf,
				Blend:     blendState(desc.Blend),
				WriteMask: wgpu.ColorWriteMaskAll,
			}
		}
		pd.Fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    targets,
		}
	}

	if desc.DepthFormat != gpu.FormatUnknown {
		df, err := textureFormat(desc.DepthFormat)
		if err != nil {
			bgl.Release()
			return fail(err)
		}
		compare := compareFunction(desc.DepthCompare)
		if !desc.DepthTest {
			compare = wgpu.CompareFunctionAlways
		}
		pd.DepthStencil = &wgpu.DepthStencilState{
			Format:            df,
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      compare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	created, err := d.device.CreateRenderPipeline(pd)
	if err != nil {
		bgl.Release()
		return fail(err)
	}
	return &renderPipeline{id: pipelineIDs.Add(1), desc: desc, pipeline: created, layout: bgl}, nil
}

func (d *deviceImpl) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.Pipeline, error) {
	fail := func(err error) (gpu.Pipeline, error) {
		return nil, fmt.Errorf("compute pipeline %q: %w: %w", desc.Label, gpu.ErrPipelineCreation, err)
	}
	cs, err := d.shaderModule(desc.Compute)
	if err != nil {
		return fail(fmt.Errorf("compute shader: %w", err))
	}
	defer cs.Release()

	bgl, layout, err := d.pipelineLayout(desc.Label, layoutEntries(desc.Bindings, nil, wgpu.ShaderStageCompute))
	if err != nil {
		return fail(err)
	}
	defer layout.Release()

	created, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     cs,
			EntryPoint: desc.Compute.EntryPoint,
		},
	})
	if err != nil {
		bgl.Release()
		return fail(err)
	}
	return &computePipeline{id: pipelineIDs.Add(1), desc: desc, pipeline: created, layout: bgl}, nil
}
