package gpu

import (
	"errors"
	"fmt"
	"sync"
)

// StateTracker mirrors the state of every registered resource and validates each use and each
// barrier against it. It is the debug assertion layer: production paths guarantee ordering by
// construction and the tracker proves it in tests.
type StateTracker interface {
	// Register starts tracking a resource in its initial state.
	//
	// Parameters:
	//   - h: the resource handle
	//   - label: a human-readable name used in errors
	//   - initial: the state the resource was created in
	Register(h Handle, label string, initial ResourceState)

	// Forget stops tracking a destroyed resource.
	Forget(h Handle)

	// State returns the tracked state of h.
	//
	// Returns:
	//   - ResourceState: the tracked state
	//   - bool: false if h is not tracked
	State(h Handle) (ResourceState, bool)

	// Apply validates and applies a barrier list. Transition barriers must name the tracked state
	// as their Before state; UAV barriers require the resource to be in UnorderedAccess.
	// Barriers that pass validation are applied even when others in the list fail.
	//
	// Returns:
	//   - error: a *StateError (joined when several barriers fail), or nil
	Apply(barriers ...Barrier) error

	// Expect verifies that h is in one of the allowed states for operation op.
	//
	// Returns:
	//   - error: a *StateError if the tracked state satisfies none of allowed
	Expect(op string, h Handle, allowed ...ResourceState) error

	// Snapshot copies the current state of every tracked resource.
	Snapshot() map[Handle]ResourceState
}

type trackedResource struct {
	label string
	state ResourceState
}

type stateTrackerImpl struct {
	mu        sync.Mutex
	resources map[Handle]trackedResource
}

var _ StateTracker = &stateTrackerImpl{}

// NewStateTracker creates an empty StateTracker.
func NewStateTracker() StateTracker {
	return &stateTrackerImpl{
		resources: make(map[Handle]trackedResource),
	}
}

func (t *stateTrackerImpl) Register(h Handle, label string, initial ResourceState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resources[h] = trackedResource{label: label, state: initial}
}

func (t *stateTrackerImpl) Forget(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.resources, h)
}

func (t *stateTrackerImpl) State(h Handle) (ResourceState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.resources[h]
	return r.state, ok
}

func (t *stateTrackerImpl) Apply(barriers ...Barrier) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for _, b := range barriers {
		r, ok := t.resources[b.Resource]
		if !ok {
			errs = append(errs, fmt.Errorf("barrier %s: %w", b, ErrInvalidHandle))
			continue
		}
		switch b.Type {
		case BarrierUAV:
			if r.state != StateUnorderedAccess {
				errs = append(errs, &StateError{
					Op: "UAV barrier", Resource: b.Resource, Label: r.label,
					Expected: []ResourceState{StateUnorderedAccess}, Actual: r.state,
				})
			}
		case BarrierTransition:
			if !r.state.Satisfies(b.Before) {
				errs = append(errs, &StateError{
					Op: "transition to " + b.After.String(), Resource: b.Resource, Label: r.label,
					Expected: []ResourceState{b.Before}, Actual: r.state,
				})
				continue
			}
			r.state = b.After
			t.resources[b.Resource] = r
		}
	}
	return errors.Join(errs...)
}

func (t *stateTrackerImpl) Expect(op string, h Handle, allowed ...ResourceState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.resources[h]
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrInvalidHandle)
	}
	for _, s := range allowed {
		if r.state.Satisfies(s) {
			return nil
		}
	}
	return &StateError{Op: op, Resource: h, Label: r.label, Expected: allowed, Actual: r.state}
}

func (t *stateTrackerImpl) Snapshot() map[Handle]ResourceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Handle]ResourceState, len(t.resources))
	for h, r := range t.resources {
		out[h] = r.state
	}
	return out
}
