package gpu

import (
	"github.com/google/uuid"
)

// Handle is an opaque, stable identifier for a GPU resource. Handles are never reused.
type Handle uuid.UUID

// NilHandle is the zero handle; it never identifies a resource.
var NilHandle = Handle(uuid.Nil)

// NewHandle returns a fresh handle.
func NewHandle() Handle {
	return Handle(uuid.New())
}

// Valid reports whether h identifies a resource.
func (h Handle) Valid() bool {
	return h != NilHandle
}

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// ResourceKind distinguishes buffers from textures.
type ResourceKind int

const (
	ResourceKindBuffer ResourceKind = iota
	ResourceKindTexture
)

// Resource is a GPU resource handle paired with the state the owner last transitioned it to.
// Resources are values: transitions return a new Resource instead of mutating shared state, so
// the single owner holding the value is the only source of truth for the recorded state.
type Resource struct {
	Handle Handle
	Kind   ResourceKind
	Label  string
	State  ResourceState
}

// Transition returns the resource moved to state to, together with the barrier describing the
// change. ok is false when the resource is already in that state, in which case no barrier must
// be recorded.
//
// Parameters:
//   - to: the state required by the next use
//
// Returns:
//   - Resource: the resource value carrying its new state
//   - Barrier: the transition barrier to record
//   - bool: false when the transition is a no-op
func (r Resource) Transition(to ResourceState) (Resource, Barrier, bool) {
	if r.State == to {
		return r, Barrier{}, false
	}
	b := Barrier{
		Type:     BarrierTransition,
		Resource: r.Handle,
		Before:   r.State,
		After:    to,
	}
	r.State = to
	return r, b, true
}

// TransitionAll transitions every resource in rs to state to and returns the updated values and
// the barriers for the ones that actually changed. The input slice is not modified.
func TransitionAll(rs []Resource, to ResourceState) ([]Resource, []Barrier) {
	out := make([]Resource, len(rs))
	barriers := make([]Barrier, 0, len(rs))
	for i, r := range rs {
		next, b, ok := r.Transition(to)
		out[i] = next
		if ok {
			barriers = append(barriers, b)
		}
	}
	return out, barriers
}
