package deferred

import (
	"github.com/Carmen-Shannon/oxy-samples/engine/overlay"
	"github.com/Carmen-Shannon/oxy-samples/engine/texture"
)

// OrchestratorBuilderOption is a functional option used to configure an Orchestrator during construction.
type OrchestratorBuilderOption func(*orchestrator)

// WithClearColor sets the color the back buffer is cleared to before lighting.
//
// Parameters:
//   - c: the RGBA clear color
//
// Returns:
//   - OrchestratorBuilderOption: a function that sets the clear color
func WithClearColor(c [4]float32) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.clearColor = c
	}
}

// WithScene replaces the default scene block.
func WithScene(p SceneParams) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.scene = p
	}
}

// WithOverlay sets the overlay recorded after the lighting pass.
//
// Parameters:
//   - ov: the overlay
//
// Returns:
//   - OrchestratorBuilderOption: a function that sets the overlay
func WithOverlay(ov overlay.Overlay) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.overlay = ov
	}
}

// WithFrameProducer makes every batch using material sample the producer's texture instead of the
// material albedo. The producer is updated once per frame before the z-prepass.
//
// Parameters:
//   - material: the material index to replace
//   - p: the per-frame texture producer
//
// Returns:
//   - OrchestratorBuilderOption: a function that sets the producer
func WithFrameProducer(material int, p texture.FrameProducer) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.producer = p
		o.producerMaterial = material
	}
}

// WithPackWorkers sets how many workers pack material blocks and the batch count from which the
// pool is used.
func WithPackWorkers(workers, threshold int) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.packWorkers = workers
		o.packThreshold = threshold
	}
}
