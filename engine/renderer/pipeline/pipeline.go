package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

// ID names every pipeline the samples build. Sets are indexed by ID, so a pipeline that was never
// declared is a nil slot rather than a failed string lookup.
type ID int

const (
	// ZPrePass writes depth only.
	ZPrePass ID = iota
	// GBuffer writes world position, world normal and albedo with depth test and no depth write.
	GBuffer
	// Lighting resolves the G-buffer with a full-screen strip.
	Lighting
	// Overlay composites the HUD over the lit image.
	Overlay
	// ParticleInit clears the element pool and index list.
	ParticleInit
	// ParticleEmit activates free elements and appends their indices.
	ParticleEmit
	// ParticleUpdate integrates alive particles and compacts the index list.
	ParticleUpdate
	// ParticleDraw renders alive particles as billboards.
	ParticleDraw
	// StreamOutCapture transforms skinned mesh vertices into the stream output buffer.
	StreamOutCapture
	// StreamOutDraw renders the captured vertices.
	StreamOutDraw

	// Count is the number of pipeline IDs.
	Count
)

func (id ID) String() string {
	switch id {
	case ZPrePass:
		return "ZPrePass"
	case GBuffer:
		return "GBuffer"
	case Lighting:
		return "Lighting"
	case Overlay:
		return "Overlay"
	case ParticleInit:
		return "ParticleInit"
	case ParticleEmit:
		return "ParticleEmit"
	case ParticleUpdate:
		return "ParticleUpdate"
	case ParticleDraw:
		return "ParticleDraw"
	case StreamOutCapture:
		return "StreamOutCapture"
	case StreamOutDraw:
		return "StreamOutDraw"
	}
	return fmt.Sprintf("ID(%d)", int(id))
}

// pipeline is the implementation of the Pipeline interface. It holds the creation parameters of one
// render or compute pipeline until Build turns it into a device object.
type pipeline struct {
	// id is the slot this pipeline occupies in a Set.
	id ID
	// kind indicates whether this is a render or compute pipeline.
	kind gpu.PipelineKind

	// render holds the creation parameters of a render pipeline, toggled with the builder options.
	render gpu.RenderPipelineDesc
	// compute holds the creation parameters of a compute pipeline.
	compute gpu.ComputePipelineDesc
}

// Pipeline is a declared pipeline, the input of Build.
type Pipeline interface {
	// ID returns the slot this pipeline occupies in a Set.
	//
	// Returns:
	//   - ID: the pipeline ID
	ID() ID

	// Kind returns whether the pipeline is a render or compute pipeline.
	//
	// Returns:
	//   - gpu.PipelineKind: the pipeline kind
	Kind() gpu.PipelineKind

	// RenderDesc returns the render pipeline parameters. Only meaningful for render pipelines.
	//
	// Returns:
	//   - gpu.RenderPipelineDesc: the creation parameters
	RenderDesc() gpu.RenderPipelineDesc

	// ComputeDesc returns the compute pipeline parameters. Only meaningful for compute pipelines.
	//
	// Returns:
	//   - gpu.ComputePipelineDesc: the creation parameters
	ComputeDesc() gpu.ComputePipelineDesc
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to declare a pipeline. Render pipelines default to depth test and
// write enabled, no culling, a triangle list and no blending.
//
// Parameters:
//   - id: the slot the pipeline occupies in a Set
//   - kind: the pipeline kind
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: the declared pipeline
func NewPipeline(id ID, kind gpu.PipelineKind, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		id:   id,
		kind: kind,
		render: gpu.RenderPipelineDesc{
			Label:        id.String(),
			Topology:     gpu.TopologyTriangleList,
			CullMode:     gpu.CullNone,
			DepthTest:    true,
			DepthWrite:   true,
			DepthCompare: gpu.CompareLessEqual,
			Blend:        gpu.BlendNone,
		},
		compute: gpu.ComputePipelineDesc{
			Label:         id.String(),
			WorkgroupSize: [3]uint32{1, 1, 1},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) ID() ID {
	return p.id
}

func (p *pipeline) Kind() gpu.PipelineKind {
	return p.kind
}

func (p *pipeline) RenderDesc() gpu.RenderPipelineDesc {
	return p.render
}

func (p *pipeline) ComputeDesc() gpu.ComputePipelineDesc {
	return p.compute
}

// Set holds built pipelines indexed by ID.
type Set struct {
	pipelines [Count]gpu.Pipeline
}

// Get returns the pipeline built for id, or nil if it was not declared.
func (s *Set) Get(id ID) gpu.Pipeline {
	if s == nil || id < 0 || id >= Count {
		return nil
	}
	return s.pipelines[id]
}

// Has reports whether a pipeline was built for id.
func (s *Set) Has(id ID) bool {
	return s.Get(id) != nil
}

// Build creates every declared pipeline on device. Any failure is a fatal setup error: the returned
// error names each pipeline that failed and wraps gpu.ErrPipelineCreation.
//
// Parameters:
//   - device: the device to create pipelines on
//   - declared: the pipelines to build, at most one per ID
//
// Returns:
//   - *Set: the built set, nil on error
//   - error: the joined creation errors
func Build(device gpu.Device, declared ...Pipeline) (*Set, error) {
	set := &Set{}
	var errs []error
	for _, decl := range declared {
		id := decl.ID()
		if id < 0 || id >= Count {
			errs = append(errs, fmt.Errorf("pipeline %s: out of range: %w", id, gpu.ErrPipelineCreation))
			continue
		}
		if set.pipelines[id] != nil {
			errs = append(errs, fmt.Errorf("pipeline %s: declared twice: %w", id, gpu.ErrPipelineCreation))
			continue
		}

		var (
			built gpu.Pipeline
			err   error
		)
		switch decl.Kind() {
		case gpu.PipelineKindRender:
			built, err = device.CreateRenderPipeline(decl.RenderDesc())
		case gpu.PipelineKindCompute:
			built, err = device.CreateComputePipeline(decl.ComputeDesc())
		default:
			err = fmt.Errorf("unknown kind %d", decl.Kind())
		}
		if err != nil {
			if !errors.Is(err, gpu.ErrPipelineCreation) {
				err = fmt.Errorf("%w: %w", gpu.ErrPipelineCreation, err)
			}
			errs = append(errs, fmt.Errorf("pipeline %s: %w", id, err))
			continue
		}
		set.pipelines[id] = built
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	common.Logger().Info("pipeline set built", "pipelines", len(declared), "device", device.Label())
	return set, nil
}
