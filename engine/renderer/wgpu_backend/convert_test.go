package wgpu_backend

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferUsage(t *testing.T) {
	assert.Equal(t, wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst, bufferUsage(gpu.BufferUsageReadback|gpu.BufferUsageStorage))

	got := bufferUsage(gpu.BufferUsageStorage | gpu.BufferUsageIndirect | gpu.BufferUsageCopySrc)
	assert.Equal(t, wgpu.BufferUsageStorage|wgpu.BufferUsageIndirect|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst, got)

	assert.Equal(t, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, bufferUsage(gpu.BufferUsageConstant|gpu.BufferUsageUpload))
}

func TestTextureUsage(t *testing.T) {
	assert.Equal(t, wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding,
		textureUsage(gpu.TextureUsageRenderTarget|gpu.TextureUsageShaderResource))
	assert.Equal(t, wgpu.TextureUsageRenderAttachment, textureUsage(gpu.TextureUsageDepthStencil))
}

func TestTextureFormat(t *testing.T) {
	tf, err := textureFormat(gpu.FormatRGBA16Float)
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, tf)

	_, err = textureFormat(gpu.FormatUnknown)
	assert.Error(t, err)
}

func TestSurfaceFormat(t *testing.T) {
	f, ok := surfaceFormat(wgpu.TextureFormatBGRA8UnormSrgb)
	require.True(t, ok)
	assert.Equal(t, gpu.FormatBGRA8Unorm, f)

	f, ok = surfaceFormat(wgpu.TextureFormatRGBA8Unorm)
	require.True(t, ok)
	assert.Equal(t, gpu.FormatRGBA8Unorm, f)

	_, ok = surfaceFormat(wgpu.TextureFormatRGBA16Float)
	assert.False(t, ok)
}

func TestLayoutEntries(t *testing.T) {
	entries := layoutEntries(
		[]gpu.BindingDesc{
			{Slot: 0, Type: gpu.BindingConstantBuffer, Stages: gpu.StageVertex | gpu.StageFragment},
			{Slot: 1, Type: gpu.BindingTexture, Stages: gpu.StageFragment, Unfilterable: true},
			{Slot: 2, Type: gpu.BindingTexture, Stages: gpu.StageFragment},
			{Slot: 5, Type: gpu.BindingStorageRead, Stages: gpu.StageVertex},
			{Slot: 6, Type: gpu.BindingStorageReadWrite, Stages: gpu.StageCompute},
			{Slot: 7, Type: gpu.BindingStreamOut, Stages: gpu.StageCompute},
		},
		[]gpu.SamplerDesc{{Slot: 3, Filter: gpu.FilterPoint}, {Slot: 4, Filter: gpu.FilterLinear}},
		wgpu.ShaderStageFragment,
	)
	require.Len(t, entries, 8)

	assert.Equal(t, uint32(0), entries[0].Binding)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, entries[0].Visibility)

	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, entries[1].Texture.SampleType)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, entries[2].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, entries[2].Texture.ViewDimension)

	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, entries[3].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[4].Buffer.Type)
	assert.Equal(t, wgpu.ShaderStageCompute, entries[4].Visibility)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[5].Buffer.Type)

	assert.Equal(t, uint32(3), entries[6].Binding)
	assert.Equal(t, wgpu.SamplerBindingTypeNonFiltering, entries[6].Sampler.Type)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, entries[7].Sampler.Type)
	assert.Equal(t, wgpu.ShaderStageFragment, entries[7].Visibility)
}

func TestVertexLayouts(t *testing.T) {
	out := vertexLayouts([]gpu.VertexBufferLayout{
		{Stride: 32, Attributes: []gpu.VertexAttribute{{Location: 0, Format: gpu.VertexFormatFloat32x3}}},
		{Stride: 16, PerInstance: true, Attributes: []gpu.VertexAttribute{{Location: 1, Format: gpu.VertexFormatFloat32x4, Offset: 0}}},
	})
	require.Len(t, out, 2)
	assert.Equal(t, wgpu.VertexStepModeVertex, out[0].StepMode)
	assert.Equal(t, wgpu.VertexFormatFloat32x3, out[0].Attributes[0].Format)
	assert.Equal(t, wgpu.VertexStepModeInstance, out[1].StepMode)
	assert.Equal(t, uint64(16), out[1].ArrayStride)
}

func TestBlendAndDepthMappings(t *testing.T) {
	assert.Nil(t, blendState(gpu.BlendNone))
	add := blendState(gpu.BlendAdditive)
	require.NotNil(t, add)
	assert.Equal(t, wgpu.BlendFactorOne, add.Color.DstFactor)

	assert.Equal(t, wgpu.CompareFunctionLessEqual, compareFunction(gpu.CompareLessEqual))
	assert.Equal(t, wgpu.CompareFunctionLess, compareFunction(gpu.CompareLess))
	assert.Equal(t, wgpu.PresentModeImmediate, presentMode(gpu.PresentModeImmediate))
	assert.Equal(t, wgpu.PresentModeFifo, presentMode(gpu.PresentModeVSync))
}

func TestAlign(t *testing.T) {
	assert.Equal(t, uint64(0), align(0, 4))
	assert.Equal(t, uint64(4), align(1, 4))
	assert.Equal(t, uint64(8), align(8, 4))
	assert.Equal(t, uint64(16), align(9, 8))
}

func TestShaderResourceStates(t *testing.T) {
	assert.Equal(t, []gpu.ResourceState{gpu.StatePixelShaderResource}, shaderResourceStates(gpu.StageFragment))
	assert.Equal(t, []gpu.ResourceState{gpu.StateNonPixelShaderResource}, shaderResourceStates(gpu.StageCompute))
	assert.Len(t, shaderResourceStates(gpu.StageVertex|gpu.StageFragment), 2)
}
