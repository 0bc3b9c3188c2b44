package frame_ring

import (
	"context"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

// Ring gives every command context and constant buffer N independent instances so CPU writes for
// frame K+1 never alias GPU reads still in flight for frame K. A slot may only be reset once the
// fence value signalled after its last submission has completed.
//
// Ring is driven by a single frame loop goroutine; slot ownership is exclusive by construction and
// the ring does no locking.
type Ring interface {
	// Count returns the number of slots.
	Count() int

	// AcquireSlot returns the slot the next frame records into.
	//
	// Returns:
	//   - int: the slot index, strictly alternating 0..N-1 unless an index source is configured
	AcquireSlot() int

	// Current returns the slot returned by the last AcquireSlot.
	Current() int

	// Reset reclaims the command context of slot and opens it for recording.
	//
	// Parameters:
	//   - slot: the slot index
	//
	// Returns:
	//   - error: gpu.ErrSlotInFlight if the GPU has not retired the slot's previous work
	Reset(slot int) error

	// Context returns the command context owned by slot.
	Context(slot int) gpu.CommandContext

	// NewConstantBuffer creates a constant buffer replicated once per slot.
	//
	// Parameters:
	//   - label: a debug label
	//   - size: the constant block size in bytes
	//
	// Returns:
	//   - ConstantBuffer: the replicated buffer, destroyed with the ring
	//   - error: an error if allocation fails
	NewConstantBuffer(label string, size uint64) (ConstantBuffer, error)

	// WriteConstants writes data into slot's instance of cb.
	WriteConstants(slot int, cb ConstantBuffer, data []byte) error

	// ReadConstants reads back slot's instance of cb from mapped memory.
	ReadConstants(slot int, cb ConstantBuffer) ([]byte, error)

	// Submit closes slot's context, submits it and signals the ring fence with the next value.
	//
	// Returns:
	//   - uint64: the fence value that marks the slot retired
	//   - error: recording or submission errors
	Submit(slot int) (uint64, error)

	// WaitForSlot blocks until the work last submitted from slot has retired. A context without a
	// deadline gets the ring's fence timeout.
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrFenceTimeout on timeout
	WaitForSlot(ctx context.Context, slot int) error

	// SlotFenceValue returns the fence value that retires slot, or 0 if it was never submitted.
	SlotFenceValue(slot int) uint64

	// CompletedValue returns the completed value of the ring fence.
	CompletedValue() uint64

	// WaitIdle blocks until every slot has retired.
	WaitIdle(ctx context.Context) error

	// Destroy releases the constant buffers created through the ring. The caller must idle first.
	Destroy()
}

// slot is one ring position.
type slot struct {
	// context is the command context recorded into by frames using this slot.
	context gpu.CommandContext
	// fenceValue is the ring fence value signalled after the slot's last submission.
	fenceValue uint64
}

// ring is the implementation of Ring.
type ring struct {
	// label prefixes the slot context labels.
	label string
	// device is the device slots are created on.
	device gpu.Device
	// count is the number of slots.
	count int
	// slots holds the per-slot state.
	slots []slot
	// fence is signalled once per submission with nextValue.
	fence gpu.Fence
	// nextValue is the last fence value handed out.
	nextValue uint64
	// current is the slot returned by the last AcquireSlot.
	current int
	// acquired counts AcquireSlot calls for round-robin selection.
	acquired int
	// indexSource overrides round-robin selection when set.
	indexSource func() int
	// fenceTimeout bounds WaitForSlot when the caller's context has no deadline.
	fenceTimeout time.Duration
	// buffers are the constant buffers created through the ring.
	buffers []ConstantBuffer
}

var _ Ring = &ring{}

// NewRing creates a Ring with one command context per slot and a shared fence.
//
// Parameters:
//   - device: the device to create contexts and the fence on
//   - options: variadic list of RingBuilderOption functions
//
// Returns:
//   - Ring: the new ring
//   - error: an error if the slot count is invalid or creation fails
func NewRing(device gpu.Device, options ...RingBuilderOption) (Ring, error) {
	r := &ring{
		label:        "frame",
		device:       device,
		count:        2,
		fenceTimeout: 5 * time.Second,
	}
	for _, opt := range options {
		opt(r)
	}
	if r.count < 1 {
		return nil, fmt.Errorf("frame ring: slot count %d must be positive", r.count)
	}

	f, err := device.CreateFence(0)
	if err != nil {
		return nil, fmt.Errorf("frame ring fence: %w", err)
	}
	r.fence = f
	r.slots = make([]slot, r.count)
	for i := range r.slots {
		c, err := device.CreateCommandContext(fmt.Sprintf("%s slot %d", r.label, i))
		if err != nil {
			return nil, fmt.Errorf("frame ring slot %d: %w", i, err)
		}
		r.slots[i].context = c
	}
	r.current = -1
	common.Logger().Info("frame ring created", "slots", r.count)
	return r, nil
}

func (r *ring) Count() int {
	return r.count
}

func (r *ring) AcquireSlot() int {
	if r.indexSource != nil {
		r.current = r.indexSource() % r.count
	} else {
		r.current = r.acquired % r.count
	}
	r.acquired++
	return r.current
}

func (r *ring) Current() int {
	return r.current
}

func (r *ring) valid(slot int) error {
	if slot < 0 || slot >= r.count {
		return fmt.Errorf("frame ring: slot %d out of range [0,%d)", slot, r.count)
	}
	return nil
}

func (r *ring) Reset(slot int) error {
	if err := r.valid(slot); err != nil {
		return err
	}
	completed := r.fence.CompletedValue()
	if want := r.slots[slot].fenceValue; completed < want {
		return fmt.Errorf("reset slot %d: fence at %d, slot retires at %d: %w", slot, completed, want, gpu.ErrSlotInFlight)
	}
	r.device.Descriptors().Reclaim(completed)
	return r.slots[slot].context.Reset()
}

func (r *ring) Context(slot int) gpu.CommandContext {
	if r.valid(slot) != nil {
		return nil
	}
	return r.slots[slot].context
}

func (r *ring) NewConstantBuffer(label string, size uint64) (ConstantBuffer, error) {
	cb, err := NewConstantBuffer(r.device, label, size, r.count)
	if err != nil {
		return nil, err
	}
	r.buffers = append(r.buffers, cb)
	return cb, nil
}

func (r *ring) WriteConstants(slot int, cb ConstantBuffer, data []byte) error {
	if err := r.valid(slot); err != nil {
		return err
	}
	return cb.Write(slot, data)
}

func (r *ring) ReadConstants(slot int, cb ConstantBuffer) ([]byte, error) {
	if err := r.valid(slot); err != nil {
		return nil, err
	}
	return cb.Read(slot)
}

func (r *ring) Submit(slot int) (uint64, error) {
	if err := r.valid(slot); err != nil {
		return 0, err
	}
	s := &r.slots[slot]
	if err := s.context.Close(); err != nil {
		return 0, fmt.Errorf("slot %d recording: %w", slot, err)
	}
	q := r.device.Queue()
	if err := q.Submit(s.context); err != nil {
		return 0, fmt.Errorf("slot %d submit: %w", slot, err)
	}
	r.nextValue++
	if err := q.Signal(r.fence, r.nextValue); err != nil {
		return 0, fmt.Errorf("slot %d signal: %w", slot, err)
	}
	s.fenceValue = r.nextValue
	return s.fenceValue, nil
}

func (r *ring) WaitForSlot(ctx context.Context, slot int) error {
	if err := r.valid(slot); err != nil {
		return err
	}
	want := r.slots[slot].fenceValue
	if r.fence.CompletedValue() >= want {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && r.fenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.fenceTimeout)
		defer cancel()
	}
	common.Logger().Debug("waiting for frame slot", "slot", slot, "fence", want)
	if err := r.fence.Wait(ctx, want); err != nil {
		return fmt.Errorf("wait for slot %d: %w", slot, err)
	}
	return nil
}

func (r *ring) SlotFenceValue(slot int) uint64 {
	if r.valid(slot) != nil {
		return 0
	}
	return r.slots[slot].fenceValue
}

func (r *ring) CompletedValue() uint64 {
	return r.fence.CompletedValue()
}

func (r *ring) WaitIdle(ctx context.Context) error {
	for i := range r.slots {
		if err := r.WaitForSlot(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

func (r *ring) Destroy() {
	for _, cb := range r.buffers {
		cb.Destroy()
	}
	r.buffers = nil
}
