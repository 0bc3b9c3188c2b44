package gpu

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFenceTimeout is returned when a fence does not reach the awaited value in time.
	// Continuing after a timeout would overwrite resources still in use, so callers treat it as fatal.
	ErrFenceTimeout = errors.New("gpu: fence wait timed out")

	// ErrSlotInFlight is returned when a frame slot is reset before the GPU retired its work.
	ErrSlotInFlight = errors.New("gpu: frame slot still in flight")

	// ErrInvalidHandle is returned when a handle does not name a live resource.
	ErrInvalidHandle = errors.New("gpu: invalid resource handle")

	// ErrDescriptorHeapFull is returned when a descriptor heap has no free entries.
	ErrDescriptorHeapFull = errors.New("gpu: descriptor heap exhausted")

	// ErrPipelineCreation wraps every pipeline construction failure.
	ErrPipelineCreation = errors.New("gpu: pipeline creation failed")

	// ErrDeviceLost is returned once the device can no longer execute work.
	ErrDeviceLost = errors.New("gpu: device lost")

	// ErrContextState is returned when a command context is used out of its Reset/Close sequence.
	ErrContextState = errors.New("gpu: command context used in wrong state")
)

// StateError reports a resource used in a state that does not permit the operation.
type StateError struct {
	Op       string
	Resource Handle
	Label    string
	Expected []ResourceState
	Actual   ResourceState
}

func (e *StateError) Error() string {
	want := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		want[i] = s.String()
	}
	name := e.Label
	if name == "" {
		name = e.Resource.String()
	}
	return fmt.Sprintf("gpu: %s on %q requires state %s, resource is %s",
		e.Op, name, strings.Join(want, "|"), e.Actual)
}
