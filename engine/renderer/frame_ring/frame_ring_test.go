package frame_ring

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T, opts ...software.DeviceBuilderOption) software.Device {
	t.Helper()
	d := software.NewDevice(opts...)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestAcquireSlotAlternates(t *testing.T) {
	r, err := NewRing(newDevice(t), WithSlotCount(2))
	require.NoError(t, err)

	var got []int
	for range 6 {
		got = append(got, r.AcquireSlot())
	}
	assert.Equal(t, []int{0, 1, 0, 1, 0, 1}, got)
	assert.Equal(t, 1, r.Current())
}

func TestAcquireSlotFollowsIndexSource(t *testing.T) {
	image := 2
	r, err := NewRing(newDevice(t), WithSlotCount(3), WithIndexSource(func() int { return image }))
	require.NoError(t, err)
	assert.Equal(t, 2, r.AcquireSlot())
	image = 0
	assert.Equal(t, 0, r.AcquireSlot())
}

func TestWaitForSlotBlocksUntilRetired(t *testing.T) {
	d := newDevice(t, software.WithManualRetire())
	r, err := NewRing(d, WithSlotCount(2))
	require.NoError(t, err)

	slot := r.AcquireSlot()
	require.NoError(t, r.Reset(slot))
	value, err := r.Submit(slot)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), value)

	assert.ErrorIs(t, r.Reset(slot), gpu.ErrSlotInFlight)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.WaitForSlot(short, slot), gpu.ErrFenceTimeout)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- r.WaitForSlot(ctx, slot)
	}()

	select {
	case err := <-done:
		t.Fatalf("wait returned before the slot retired: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	d.Retire(1)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not return after the slot retired")
	}
	assert.NoError(t, r.Reset(slot))
	assert.NoError(t, r.Context(slot).Close())
}

func TestOtherSlotRecordsWhileFirstInFlight(t *testing.T) {
	d := newDevice(t, software.WithManualRetire())
	r, err := NewRing(d, WithSlotCount(2))
	require.NoError(t, err)

	first := r.AcquireSlot()
	require.NoError(t, r.Reset(first))
	_, err = r.Submit(first)
	require.NoError(t, err)

	second := r.AcquireSlot()
	assert.NotEqual(t, first, second)
	require.NoError(t, r.Reset(second))
	value, err := r.Submit(second)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), value)

	d.Retire(2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.WaitIdle(ctx))
	assert.Equal(t, uint64(2), r.CompletedValue())
}

func TestConstantsRoundTrip(t *testing.T) {
	r, err := NewRing(newDevice(t), WithSlotCount(3))
	require.NoError(t, err)
	cb, err := r.NewConstantBuffer("scene", 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), cb.Size())
	assert.Equal(t, 3, cb.Count())

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	slot := r.AcquireSlot()
	require.NoError(t, r.WriteConstants(slot, cb, payload))
	got, err := r.ReadConstants(slot, cb)
	require.NoError(t, err)
	assert.Equal(t, payload, got[:100])

	other, err := r.ReadConstants(1, cb)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 256), other, "slots are independent instances")

	assert.Error(t, r.WriteConstants(slot, cb, make([]byte, 257)))
	assert.Error(t, r.WriteConstants(3, cb, payload))
}

func TestSubmitSurfacesRecordingErrors(t *testing.T) {
	d := newDevice(t)
	r, err := NewRing(d, WithSlotCount(2))
	require.NoError(t, err)
	slot := r.AcquireSlot()
	require.NoError(t, r.Reset(slot))
	r.Context(slot).BeginEvent("frame")

	_, err = r.Submit(slot)
	assert.ErrorContains(t, err, "unterminated events")
}
