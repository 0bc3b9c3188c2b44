package gpu

import "fmt"

// BarrierType identifies the kind of synchronization a barrier expresses.
type BarrierType int

const (
	// BarrierTransition changes a resource from one state to another.
	BarrierTransition BarrierType = iota

	// BarrierUAV orders unordered-access writes against later unordered-access reads of the same
	// resource without changing its state.
	BarrierUAV
)

// Barrier is one entry of a barrier list recorded into a command context.
// Entries inside one list have no ordering dependency on each other.
type Barrier struct {
	Type     BarrierType
	Resource Handle
	Before   ResourceState
	After    ResourceState
}

func (b Barrier) String() string {
	if b.Type == BarrierUAV {
		return fmt.Sprintf("UAV(%s)", b.Resource)
	}
	return fmt.Sprintf("Transition(%s %s->%s)", b.Resource, b.Before, b.After)
}

// UAVBarriers returns one UAV barrier per handle.
func UAVBarriers(handles ...Handle) []Barrier {
	out := make([]Barrier, len(handles))
	for i, h := range handles {
		out[i] = Barrier{
			Type:     BarrierUAV,
			Resource: h,
			Before:   StateUnorderedAccess,
			After:    StateUnorderedAccess,
		}
	}
	return out
}
