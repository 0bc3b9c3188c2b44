package overlay

import (
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

// Target describes the render target an overlay draws into.
type Target struct {
	// RTV is the render-target view already bound on the command context.
	RTV    gpu.Descriptor
	Format gpu.Format
	Width  int
	Height int
}

// Overlay appends UI draws after the lighting pass. It records into the frame's command context
// with Target bound as the only render target and performs no barriers of its own.
type Overlay interface {
	// Render records the overlay draws.
	//
	// Parameters:
	//   - cmd: the frame's command context
	//   - slot: the frame slot being recorded, selecting per-slot overlay resources
	//   - target: the bound render target
	//
	// Returns:
	//   - error: error if the overlay resources could not be updated
	Render(cmd gpu.CommandContext, slot int, target Target) error
}
