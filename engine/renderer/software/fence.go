package software

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

type fence struct {
	mu      sync.Mutex
	value   uint64
	changed chan struct{}
}

var _ gpu.Fence = &fence{}

func newFence(initial uint64) *fence {
	return &fence{value: initial, changed: make(chan struct{})}
}

func (f *fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// signal raises the fence to v. Fence values never decrease.
func (f *fence) signal(v uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v > f.value {
		f.value = v
	}
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *fence) Wait(ctx context.Context, value uint64) error {
	for {
		f.mu.Lock()
		if f.value >= value {
			f.mu.Unlock()
			return nil
		}
		ch := f.changed
		completed := f.value
		f.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("wait for fence value %d (completed %d): %w", value, completed, gpu.ErrFenceTimeout)
			}
			return ctx.Err()
		}
	}
}
