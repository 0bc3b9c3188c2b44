package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorAllocatorHeaps(t *testing.T) {
	a := NewDescriptorAllocator(4, 2, 1)
	r := NewHandle()

	rtv, err := a.Allocate(r, ViewRenderTarget)
	require.NoError(t, err)
	assert.Equal(t, HeapRenderTarget, rtv.Heap)

	srv, err := a.Allocate(r, ViewShaderResource)
	require.NoError(t, err)
	assert.Equal(t, HeapShaderVisible, srv.Heap)
	assert.Equal(t, uint32(0), srv.Index)

	_, err = a.Allocate(r, ViewDepthStencil)
	require.NoError(t, err)
	_, err = a.Allocate(r, ViewDepthStencil)
	assert.ErrorIs(t, err, ErrDescriptorHeapFull)
}

func TestDescriptorReleaseWaitsForRetirement(t *testing.T) {
	a := NewDescriptorAllocator(1, 0, 0)
	d, err := a.Allocate(NewHandle(), ViewShaderResource)
	require.NoError(t, err)

	a.Release(d, 5)
	assert.Equal(t, 0, a.Available(HeapShaderVisible))
	assert.Equal(t, 0, a.Reclaim(4), "frame 5 still in flight")
	_, err = a.Allocate(NewHandle(), ViewShaderResource)
	assert.ErrorIs(t, err, ErrDescriptorHeapFull)

	assert.Equal(t, 1, a.Reclaim(5))
	again, err := a.Allocate(NewHandle(), ViewShaderResource)
	require.NoError(t, err)
	assert.Equal(t, d.Index, again.Index)
}

func TestDescriptorReleaseIgnoresStaleDescriptors(t *testing.T) {
	a := NewDescriptorAllocator(0, 2, 0)
	d, err := a.Allocate(NewHandle(), ViewRenderTarget)
	require.NoError(t, err)

	a.Release(d, 1)
	a.Release(d, 1)
	assert.Equal(t, 1, a.Reclaim(1))
	a.Release(d, 2)
	assert.Equal(t, 0, a.Reclaim(2), "already free")
	assert.Equal(t, 2, a.Available(HeapRenderTarget))

	reused, err := a.Allocate(NewHandle(), ViewRenderTarget)
	require.NoError(t, err)
	assert.Equal(t, d.Index, reused.Index)
	a.Release(d, 3)
	assert.Equal(t, 0, a.Reclaim(3), "slot now belongs to another resource")

	other, err := a.Allocate(NewHandle(), ViewRenderTarget)
	require.NoError(t, err)
	assert.NotEqual(t, reused.Index, other.Index)
}
