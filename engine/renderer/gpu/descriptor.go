package gpu

import (
	"fmt"
	"sync"
)

// HeapType identifies a descriptor heap.
type HeapType int

const (
	// HeapShaderVisible holds constant, shader-resource and unordered-access views.
	HeapShaderVisible HeapType = iota

	// HeapRenderTarget holds render target views.
	HeapRenderTarget

	// HeapDepthStencil holds depth stencil views.
	HeapDepthStencil

	heapTypeCount
)

func (h HeapType) String() string {
	switch h {
	case HeapShaderVisible:
		return "ShaderVisible"
	case HeapRenderTarget:
		return "RenderTarget"
	case HeapDepthStencil:
		return "DepthStencil"
	}
	return fmt.Sprintf("HeapType(%d)", int(h))
}

// ViewKind is the way a descriptor exposes its resource.
type ViewKind int

const (
	ViewConstantBuffer ViewKind = iota
	ViewShaderResource
	ViewUnorderedAccess
	ViewRenderTarget
	ViewDepthStencil
)

// Heap returns the heap views of this kind are allocated from.
func (k ViewKind) Heap() HeapType {
	switch k {
	case ViewRenderTarget:
		return HeapRenderTarget
	case ViewDepthStencil:
		return HeapDepthStencil
	}
	return HeapShaderVisible
}

// Descriptor is a stable slot in a descriptor heap describing one view of one resource.
type Descriptor struct {
	Heap     HeapType
	Index    uint32
	Resource Handle
	Kind     ViewKind
}

// Valid reports whether the descriptor names a resource.
func (d Descriptor) Valid() bool {
	return d.Resource.Valid()
}

// DescriptorAllocator hands out descriptor slots. A released slot is only recycled once the
// fence value of the last frame that may reference it has been observed as completed.
type DescriptorAllocator interface {
	// Allocate reserves a slot in the heap matching kind.
	//
	// Parameters:
	//   - resource: the resource the view refers to
	//   - kind: the view kind
	//
	// Returns:
	//   - Descriptor: the allocated descriptor
	//   - error: ErrDescriptorHeapFull if the heap has no free slot
	Allocate(resource Handle, kind ViewKind) (Descriptor, error)

	// Release schedules d for reuse once retireValue has completed. A descriptor that is not
	// currently allocated to d.Resource is ignored, so releasing twice never frees a slot twice.
	//
	// Parameters:
	//   - d: the descriptor to release
	//   - retireValue: the fence value of the last submission that may reference d
	Release(d Descriptor, retireValue uint64)

	// Reclaim returns pending slots whose retire value is <= completedValue to the free lists.
	//
	// Returns:
	//   - int: the number of slots reclaimed
	Reclaim(completedValue uint64) int

	// Available returns the number of immediately allocatable slots in heap.
	Available(heap HeapType) int
}

type pendingRelease struct {
	d           Descriptor
	retireValue uint64
}

type descriptorHeap struct {
	capacity uint32
	next     uint32
	free     []uint32
	live     map[uint32]Handle // allocated slots and the resource they describe
}

type descriptorAllocatorImpl struct {
	mu      sync.Mutex
	heaps   [heapTypeCount]descriptorHeap
	pending []pendingRelease
}

var _ DescriptorAllocator = &descriptorAllocatorImpl{}

// NewDescriptorAllocator creates an allocator with the given per-heap capacities.
//
// Parameters:
//   - shaderVisible: capacity of the CBV/SRV/UAV heap
//   - renderTargets: capacity of the RTV heap
//   - depthStencils: capacity of the DSV heap
//
// Returns:
//   - DescriptorAllocator: the new allocator
func NewDescriptorAllocator(shaderVisible, renderTargets, depthStencils uint32) DescriptorAllocator {
	a := &descriptorAllocatorImpl{}
	a.heaps[HeapShaderVisible].capacity = shaderVisible
	a.heaps[HeapRenderTarget].capacity = renderTargets
	a.heaps[HeapDepthStencil].capacity = depthStencils
	for i := range a.heaps {
		a.heaps[i].live = make(map[uint32]Handle)
	}
	return a
}

func (a *descriptorAllocatorImpl) Allocate(resource Handle, kind ViewKind) (Descriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	heapType := kind.Heap()
	heap := &a.heaps[heapType]

	var index uint32
	switch {
	case len(heap.free) > 0:
		index = heap.free[len(heap.free)-1]
		heap.free = heap.free[:len(heap.free)-1]
	case heap.next < heap.capacity:
		index = heap.next
		heap.next++
	default:
		return Descriptor{}, fmt.Errorf("%s heap (%d entries): %w", heapType, heap.capacity, ErrDescriptorHeapFull)
	}
	heap.live[index] = resource

	return Descriptor{Heap: heapType, Index: index, Resource: resource, Kind: kind}, nil
}

func (a *descriptorAllocatorImpl) Release(d Descriptor, retireValue uint64) {
	if !d.Valid() || d.Heap < 0 || d.Heap >= heapTypeCount {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	heap := &a.heaps[d.Heap]
	if owner, ok := heap.live[d.Index]; !ok || owner != d.Resource {
		return
	}
	delete(heap.live, d.Index)
	a.pending = append(a.pending, pendingRelease{d: d, retireValue: retireValue})
}

func (a *descriptorAllocatorImpl) Reclaim(completedValue uint64) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	reclaimed := 0
	kept := a.pending[:0]
	for _, p := range a.pending {
		if p.retireValue <= completedValue {
			heap := &a.heaps[p.d.Heap]
			heap.free = append(heap.free, p.d.Index)
			reclaimed++
			continue
		}
		kept = append(kept, p)
	}
	a.pending = kept
	return reclaimed
}

func (a *descriptorAllocatorImpl) Available(heap HeapType) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.heaps[heap]
	return int(h.capacity-h.next) + len(h.free)
}
