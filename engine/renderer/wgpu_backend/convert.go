package wgpu_backend

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

var textureFormats = map[gpu.Format]wgpu.TextureFormat{
	gpu.FormatRGBA8Unorm:   wgpu.TextureFormatRGBA8Unorm,
	gpu.FormatBGRA8Unorm:   wgpu.TextureFormatBGRA8Unorm,
	gpu.FormatRGBA16Float:  wgpu.TextureFormatRGBA16Float,
	gpu.FormatRGBA32Float:  wgpu.TextureFormatRGBA32Float,
	gpu.FormatR32Uint:      wgpu.TextureFormatR32Uint,
	gpu.FormatDepth32Float: wgpu.TextureFormatDepth32Float,
	gpu.FormatDepth24Plus:  wgpu.TextureFormatDepth24Plus,
}

func textureFormat(f gpu.Format) (wgpu.TextureFormat, error) {
	tf, ok := textureFormats[f]
	if !ok {
		return wgpu.TextureFormatUndefined, fmt.Errorf("texture format %d has no webgpu equivalent", f)
	}
	return tf, nil
}

// surfaceFormat maps a surface format to the linear format of the back buffers copied into it.
// Copies between formats that differ only in sRGB encoding are legal.
func surfaceFormat(tf wgpu.TextureFormat) (gpu.Format, bool) {
	switch tf {
	case wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb:
		return gpu.FormatBGRA8Unorm, true
	case wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8UnormSrgb:
		return gpu.FormatRGBA8Unorm, true
	}
	return gpu.FormatUnknown, false
}

// bufferUsage translates usage flags. Every buffer is a copy destination so queue writes work,
// and readback buffers may only combine MapRead with CopyDst.
func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	if u&gpu.BufferUsageReadback != 0 {
		return wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
	}
	out := wgpu.BufferUsageCopyDst
	pairs := []struct {
		from gpu.BufferUsage
		to   wgpu.BufferUsage
	}{
		{gpu.BufferUsageVertex, wgpu.BufferUsageVertex},
		{gpu.BufferUsageIndex, wgpu.BufferUsageIndex},
		{gpu.BufferUsageConstant, wgpu.BufferUsageUniform},
		{gpu.BufferUsageStorage, wgpu.BufferUsageStorage},
		{gpu.BufferUsageIndirect, wgpu.BufferUsageIndirect},
		{gpu.BufferUsageCopySrc, wgpu.BufferUsageCopySrc},
	}
	for _, p := range pairs {
		if u&p.from != 0 {
			out |= p.to
		}
	}
	return out
}

func textureUsage(u gpu.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&(gpu.TextureUsageRenderTarget|gpu.TextureUsageDepthStencil) != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u&gpu.TextureUsageShaderResource != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&gpu.TextureUsageStorage != 0 {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u&gpu.TextureUsageCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	if u&gpu.TextureUsageCopySrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	return out
}

func shaderStages(s gpu.ShaderStage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if s&gpu.StageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&gpu.StageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	if s&gpu.StageCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	return out
}

// layoutEntries builds the single bind group layout of a pipeline. Slots map one to one onto
// @group(0) @binding(n); storage bindings are always buffers.
func layoutEntries(bindings []gpu.BindingDesc, samplers []gpu.SamplerDesc, samplerStages wgpu.ShaderStage) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings)+len(samplers))
	for _, b := range bindings {
		e := wgpu.BindGroupLayoutEntry{Binding: b.Slot, Visibility: shaderStages(b.Stages)}
		switch b.Type {
		case gpu.BindingConstantBuffer:
			e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
		case gpu.BindingStorageRead:
			e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
		case gpu.BindingStorageReadWrite, gpu.BindingStreamOut:
			e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}
		case gpu.BindingTexture:
			sample := wgpu.TextureSampleTypeFloat
			if b.Unfilterable {
				sample = wgpu.TextureSampleTypeUnfilterableFloat
			}
			e.Texture = wgpu.TextureBindingLayout{
				SampleType:    sample,
				ViewDimension: wgpu.TextureViewDimension2D,
			}
		}
		entries = append(entries, e)
	}
	for _, s := range samplers {
		kind := wgpu.SamplerBindingTypeFiltering
		if s.Filter == gpu.FilterPoint {
			kind = wgpu.SamplerBindingTypeNonFiltering
		}
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    s.Slot,
			Visibility: samplerStages,
			Sampler:    wgpu.SamplerBindingLayout{Type: kind},
		})
	}
	return entries
}

func vertexFormat(f gpu.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gpu.VertexFormatFloat32:
		return wgpu.VertexFormatFloat32
	case gpu.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gpu.VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3
	case gpu.VertexFormatUint32x4:
		return wgpu.VertexFormatUint32x4
	}
	return wgpu.VertexFormatFloat32x4
}

func vertexLayouts(layouts []gpu.VertexBufferLayout) []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, len(layouts))
	for i, l := range layouts {
		step := wgpu.VertexStepModeVertex
		if l.PerInstance {
			step = wgpu.VertexStepModeInstance
		}
		attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
		for j, a := range l.Attributes {
			attrs[j] = wgpu.VertexAttribute{
				Format:         vertexFormat(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.Location,
			}
		}
		out[i] = wgpu.VertexBufferLayout{ArrayStride: l.Stride, StepMode: step, Attributes: attrs}
	}
	return out
}

func topology(t gpu.Topology) wgpu.PrimitiveTopology {
	if t == gpu.TopologyTriangleStrip {
		return wgpu.PrimitiveTopologyTriangleStrip
	}
	return wgpu.PrimitiveTopologyTriangleList
}

func cullMode(c gpu.CullMode) wgpu.CullMode {
	switch c {
	case gpu.CullBack:
		return wgpu.CullModeBack
	case gpu.CullFront:
		return wgpu.CullModeFront
	}
	return wgpu.CullModeNone
}

func compareFunction(c gpu.CompareFunc) wgpu.CompareFunction {
	switch c {
	case gpu.CompareLess:
		return wgpu.CompareFunctionLess
	case gpu.CompareEqual:
		return wgpu.CompareFunctionEqual
	case gpu.CompareAlways:
		return wgpu.CompareFunctionAlways
	}
	return wgpu.CompareFunctionLessEqual
}

func blendState(m gpu.BlendMode) *wgpu.BlendState {
	switch m {
	case gpu.BlendAlpha:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	case gpu.BlendAdditive:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}
	return nil
}

func indexFormat(f gpu.IndexFormat) wgpu.IndexFormat {
	if f == gpu.IndexFormatUint16 {
		return wgpu.IndexFormatUint16
	}
	return wgpu.IndexFormatUint32
}

func presentMode(m gpu.PresentMode) wgpu.PresentMode {
	if m == gpu.PresentModeImmediate {
		return wgpu.PresentModeImmediate
	}
	return wgpu.PresentModeFifo
}

// align rounds n up to a multiple of to, which must be a power of two.
func align(n, to uint64) uint64 {
	return (n + to - 1) &^ (to - 1)
}
