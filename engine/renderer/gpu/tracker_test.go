package gpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerApplyTransitions(t *testing.T) {
	tr := NewStateTracker()
	h := NewHandle()
	tr.Register(h, "normal", StateRenderTarget)

	require.NoError(t, tr.Apply(Barrier{Type: BarrierTransition, Resource: h, Before: StateRenderTarget, After: StatePixelShaderResource}))
	s, ok := tr.State(h)
	require.True(t, ok)
	assert.Equal(t, StatePixelShaderResource, s)

	// A stale Before state is a mis-ordered barrier.
	err := tr.Apply(Barrier{Type: BarrierTransition, Resource: h, Before: StateRenderTarget, After: StatePixelShaderResource})
	var se *StateError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "normal", se.Label)
	assert.Equal(t, StatePixelShaderResource, se.Actual)
}

func TestTrackerUAVBarrier(t *testing.T) {
	tr := NewStateTracker()
	uav := NewHandle()
	srv := NewHandle()
	tr.Register(uav, "elements", StateUnorderedAccess)
	tr.Register(srv, "albedo", StatePixelShaderResource)

	assert.NoError(t, tr.Apply(UAVBarriers(uav)...))
	err := tr.Apply(UAVBarriers(uav, srv)...)
	require.Error(t, err)
	var se *StateError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, srv, se.Resource)
}

func TestTrackerExpect(t *testing.T) {
	tr := NewStateTracker()
	h := NewHandle()
	tr.Register(h, "cb", StateGenericRead)

	assert.NoError(t, tr.Expect("bind constants", h, StateVertexOrConstantBuffer))
	assert.Error(t, tr.Expect("bind uav", h, StateUnorderedAccess))
	assert.ErrorIs(t, tr.Expect("bind", NewHandle(), StateCommon), ErrInvalidHandle)

	tr.Forget(h)
	_, ok := tr.State(h)
	assert.False(t, ok)
}

func TestTrackerSnapshotIsCopy(t *testing.T) {
	tr := NewStateTracker()
	h := NewHandle()
	tr.Register(h, "x", StateCommon)
	snap := tr.Snapshot()
	require.NoError(t, tr.Apply(Barrier{Resource: h, Before: StateCommon, After: StateCopyDest}))
	assert.Equal(t, StateCommon, snap[h])
	assert.Equal(t, StateCopyDest, tr.Snapshot()[h])
}
