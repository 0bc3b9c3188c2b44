package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionIsPure(t *testing.T) {
	r := Resource{Handle: NewHandle(), Kind: ResourceKindTexture, Label: "albedo", State: StateRenderTarget}

	next, b, ok := r.Transition(StatePixelShaderResource)
	require.True(t, ok)
	assert.Equal(t, StateRenderTarget, r.State, "input value must not change")
	assert.Equal(t, StatePixelShaderResource, next.State)
	assert.Equal(t, Barrier{Type: BarrierTransition, Resource: r.Handle, Before: StateRenderTarget, After: StatePixelShaderResource}, b)

	same, _, ok := next.Transition(StatePixelShaderResource)
	assert.False(t, ok)
	assert.Equal(t, next, same)
}

func TestTransitionAll(t *testing.T) {
	rs := []Resource{
		{Handle: NewHandle(), State: StateRenderTarget},
		{Handle: NewHandle(), State: StatePixelShaderResource},
		{Handle: NewHandle(), State: StateRenderTarget},
	}
	out, barriers := TransitionAll(rs, StatePixelShaderResource)
	require.Len(t, out, 3)
	assert.Len(t, barriers, 2)
	for _, r := range out {
		assert.Equal(t, StatePixelShaderResource, r.State)
	}
	assert.Equal(t, StateRenderTarget, rs[0].State)
}

func TestStateSatisfies(t *testing.T) {
	tests := []struct {
		have, want ResourceState
		ok         bool
	}{
		{StateRenderTarget, StateRenderTarget, true},
		{StateGenericRead, StateVertexOrConstantBuffer, true},
		{StateGenericRead, StateIndexBuffer, true},
		{StateGenericRead, StateUnorderedAccess, false},
		{StatePresent, StateCommon, true},
		{StateCommon, StatePresent, true},
		{StateRenderTarget, StatePixelShaderResource, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.have.Satisfies(tt.want), "%s satisfies %s", tt.have, tt.want)
	}
}

func TestHandles(t *testing.T) {
	a, b := NewHandle(), NewHandle()
	assert.NotEqual(t, a, b)
	assert.True(t, a.Valid())
	assert.False(t, NilHandle.Valid())
	assert.Len(t, a.String(), 36)
	assert.Equal(t, "PixelShaderResource", StatePixelShaderResource.String())
	assert.Equal(t, "ResourceState(99)", ResourceState(99).String())
}
