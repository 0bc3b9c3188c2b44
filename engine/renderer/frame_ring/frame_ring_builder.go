package frame_ring

import "time"

// RingBuilderOption is a functional option used to configure a Ring during construction.
type RingBuilderOption func(*ring)

// WithSlotCount sets the number of frame slots.
//
// Parameters:
//   - n: the slot count, normally the swapchain image count
//
// Returns:
//   - RingBuilderOption: a function that sets the slot count
func WithSlotCount(n int) RingBuilderOption {
	return func(r *ring) {
		r.count = n
	}
}

// WithIndexSource makes AcquireSlot return the value of source instead of advancing round-robin.
// Samples pass the swapchain's current image index so slots follow presentable images.
//
// Parameters:
//   - source: returns the slot index for the next frame
//
// Returns:
//   - RingBuilderOption: a function that sets the index source
func WithIndexSource(source func() int) RingBuilderOption {
	return func(r *ring) {
		r.indexSource = source
	}
}

// WithFenceTimeout sets the default timeout used by WaitForSlot when the context has no deadline.
//
// Parameters:
//   - d: the timeout
//
// Returns:
//   - RingBuilderOption: a function that sets the fence timeout
func WithFenceTimeout(d time.Duration) RingBuilderOption {
	return func(r *ring) {
		r.fenceTimeout = d
	}
}

// WithLabel sets the label prefix of the slot command contexts.
func WithLabel(label string) RingBuilderOption {
	return func(r *ring) {
		r.label = label
	}
}
