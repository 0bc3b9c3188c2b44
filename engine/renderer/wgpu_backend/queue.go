package wgpu_backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// pendingSignal raises a fence once the submission with the given serial has completed.
type pendingSignal struct {
	serial uint64
	fence  *fence
	value  uint64
}

// queue numbers every submission with a serial. WebGPU exposes completion only as "the queue is
// empty" after a device poll, so a poll that drains the queue completes every serial issued
// before it started.
type queue struct {
	dev *deviceImpl
	q   *wgpu.Queue

	mu        sync.Mutex
	submitted uint64
	completed uint64
	signals   []pendingSignal

	// pollMu serializes device polls.
	pollMu sync.Mutex
}

var _ gpu.Queue = &queue{}

func newQueue(d *deviceImpl, q *wgpu.Queue) *queue {
	return &queue{dev: d, q: q}
}

func (q *queue) Submit(contexts ...gpu.CommandContext) error {
	buffers := make([]*wgpu.CommandBuffer, 0, len(contexts))
	owned := make([]*commandContext, 0, len(contexts))
	for _, c := range contexts {
		cc, ok := c.(*commandContext)
		if !ok || cc.dev != q.dev {
			return fmt.Errorf("submit: context %q belongs to another device: %w", c.Label(), gpu.ErrInvalidHandle)
		}
		cb, err := cc.takeCommands()
		if err != nil {
			return err
		}
		buffers = append(buffers, cb)
		owned = append(owned, cc)
	}

	q.mu.Lock()
	q.submitted++
	serial := q.submitted
	q.mu.Unlock()

	q.q.Submit(buffers...)
	for i, cb := range buffers {
		cb.Release()
		owned[i].markSubmitted(serial)
	}
	return nil
}

func (q *queue) Signal(f gpu.Fence, value uint64) error {
	wf, ok := f.(*fence)
	if !ok || wf.dev != q.dev {
		return fmt.Errorf("signal: foreign fence: %w", gpu.ErrInvalidHandle)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.completed >= q.submitted {
		wf.signal(value)
		return nil
	}
	q.signals = append(q.signals, pendingSignal{serial: q.submitted, fence: wf, value: value})
	return nil
}

// lastSerial returns the serial of the most recent submission.
func (q *queue) lastSerial() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submitted
}

// completedSerial returns the highest serial known to have completed.
func (q *queue) completedSerial() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// poll drives the device and completes every serial retired by it. With wait the call blocks
// until the queue is empty.
func (q *queue) poll(wait bool) {
	q.pollMu.Lock()
	defer q.pollMu.Unlock()

	target := q.lastSerial()
	empty := q.dev.device.Poll(wait, nil)
	if !empty && !wait {
		return
	}
	q.complete(target)
}

func (q *queue) complete(serial uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if serial <= q.completed {
		return
	}
	q.completed = serial
	kept := q.signals[:0]
	for _, s := range q.signals {
		if s.serial <= serial {
			s.fence.signal(s.value)
			continue
		}
		kept = append(kept, s)
	}
	q.signals = kept
}

// waitSerial blocks until serial has completed or ctx ends. The blocking poll runs on its own
// goroutine so a deadline can interrupt the wait.
func (q *queue) waitSerial(ctx context.Context, serial uint64) error {
	for q.completedSerial() < serial {
		done := make(chan struct{})
		go func() {
			q.poll(true)
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("wait for submission %d (completed %d): %w", serial, q.completedSerial(), gpu.ErrFenceTimeout)
			}
			return ctx.Err()
		}
	}
	return nil
}

type fence struct {
	dev *deviceImpl

	mu      sync.Mutex
	value   uint64
	changed chan struct{}
}

var _ gpu.Fence = &fence{}

func newFence(d *deviceImpl, initial uint64) *fence {
	return &fence{dev: d, value: initial, changed: make(chan struct{})}
}

func (f *fence) CompletedValue() uint64 {
	f.dev.queue.poll(false)
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

		polled := make(chan struct{})
		go func() {
			f.dev.queue.poll(true)
			close(polled)
		}()

		select {
		case <-ch:
		case <-polled:
			drained := f.dev.queue.completedSerial() >= f.dev.queue.lastSerial()
			f.mu.Lock()
			stuck := drained && f.value < value
			f.mu.Unlock()
			if stuck {
				// Drained without reaching value: the signal has not been queued yet.
				select {
				case <-ch:
				case <-time.After(time.Millisecond):
				case <-ctx.Done():
					return fenceErr(ctx, value, completed)
				}
			}
		case <-ctx.Done():
			return fenceErr(ctx, value, completed)
		}
	}
}

func fenceErr(ctx context.Context, value, completed uint64) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("wait for fence value %d (completed %d): %w", value, completed, gpu.ErrFenceTimeout)
	}
	return ctx.Err()
}
