package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var depthOnly = software.RenderProgram{
	Vertex: func(in software.VertexInput, b software.Bindings) software.VertexOutput {
		return software.VertexOutput{Position: in.Attributes[0]}
	},
}

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline(GBuffer, gpu.PipelineKindRender, WithDepthWriteEnabled(false), WithColorFormats(gpu.FormatRGBA32Float, gpu.FormatRGBA32Float, gpu.FormatRGBA8Unorm))
	d := p.RenderDesc()
	assert.Equal(t, "GBuffer", d.Label)
	assert.True(t, d.DepthTest)
	assert.False(t, d.DepthWrite)
	assert.Equal(t, gpu.TopologyTriangleList, d.Topology)
	assert.Len(t, d.ColorFormats, 3)
}

func TestBuildIndexesByID(t *testing.T) {
	dev := software.NewDevice(software.WithRasterWorkers(1))
	defer dev.Close()

	set, err := Build(dev,
		NewPipeline(ZPrePass, gpu.PipelineKindRender, WithReference(depthOnly), WithDepthFormat(gpu.FormatDepth32Float)),
		NewPipeline(ParticleEmit, gpu.PipelineKindCompute, WithReference(software.ComputeProgram(func(software.Invocation, software.Bindings) {}))),
	)
	require.NoError(t, err)
	assert.True(t, set.Has(ZPrePass))
	assert.Equal(t, gpu.PipelineKindCompute, set.Get(ParticleEmit).Kind())
	assert.False(t, set.Has(Lighting))
	assert.Nil(t, set.Get(Count))
}

func TestBuildFailureIsFatal(t *testing.T) {
	dev := software.NewDevice(software.WithRasterWorkers(1))
	defer dev.Close()

	set, err := Build(dev,
		NewPipeline(Lighting, gpu.PipelineKindRender),
		NewPipeline(ZPrePass, gpu.PipelineKindRender, WithReference(depthOnly)),
		NewPipeline(ZPrePass, gpu.PipelineKindRender, WithReference(depthOnly)),
	)
	assert.Nil(t, set)
	assert.ErrorIs(t, err, gpu.ErrPipelineCreation)
	assert.ErrorContains(t, err, "pipeline Lighting")
	assert.ErrorContains(t, err, "declared twice")
}
