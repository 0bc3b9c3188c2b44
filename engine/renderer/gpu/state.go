package gpu

import "fmt"

// ResourceState is the usage mode a GPU resource is in at a given point of the command stream.
// A resource may only be used in the way its current state allows; changing the state requires a
// transition barrier recorded between the producing and the consuming work.
type ResourceState uint32

const (
	// StateCommon is the initial state of freshly created resources with no declared usage.
	StateCommon ResourceState = iota

	// StateRenderTarget allows color attachment writes.
	StateRenderTarget

	// StateDepthWrite allows depth attachment reads and writes.
	StateDepthWrite

	// StateDepthRead allows depth testing without writes.
	StateDepthRead

	// StatePixelShaderResource allows sampling from the fragment stage.
	StatePixelShaderResource

	// StateNonPixelShaderResource allows sampling from vertex or compute stages.
	StateNonPixelShaderResource

	// StateUnorderedAccess allows read-modify-write access from shaders, including counters.
	StateUnorderedAccess

	// StateStreamOut allows a capture stage to write transformed vertices into the buffer.
	StateStreamOut

	// StateVertexOrConstantBuffer allows binding as a vertex stream or constant block.
	StateVertexOrConstantBuffer

	// StateIndexBuffer allows binding as an index stream.
	StateIndexBuffer

	// StateIndirectArgument allows reading draw or dispatch arguments.
	StateIndirectArgument

	// StateCopyDest allows the resource to receive copies.
	StateCopyDest

	// StateCopySource allows the resource to be copied from.
	StateCopySource

	// StatePresent is the state a swapchain image must be in when handed to the presentation engine.
	StatePresent

	// StateGenericRead is the permanent state of CPU-writable upload memory. Upload resources never
	// transition; they satisfy every read-only usage.
	StateGenericRead
)

var stateNames = [...]string{
	StateCommon:                 "Common",
	StateRenderTarget:           "RenderTarget",
	StateDepthWrite:             "DepthWrite",
	StateDepthRead:              "DepthRead",
	StatePixelShaderResource:    "PixelShaderResource",
	StateNonPixelShaderResource: "NonPixelShaderResource",
	StateUnorderedAccess:        "UnorderedAccess",
	StateStreamOut:              "StreamOut",
	StateVertexOrConstantBuffer: "VertexOrConstantBuffer",
	StateIndexBuffer:            "IndexBuffer",
	StateIndirectArgument:       "IndirectArgument",
	StateCopyDest:               "CopyDest",
	StateCopySource:             "CopySource",
	StatePresent:                "Present",
	StateGenericRead:            "GenericRead",
}

func (s ResourceState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("ResourceState(%d)", uint32(s))
}

// IsWrite reports whether the state grants GPU write access.
func (s ResourceState) IsWrite() bool {
	switch s {
	case StateRenderTarget, StateDepthWrite, StateUnorderedAccess, StateStreamOut, StateCopyDest:
		return true
	}
	return false
}

// Satisfies reports whether a resource in state s may be used where want is required.
// GenericRead satisfies every read-only state and Present is interchangeable with Common,
// matching the D3D12 aliasing of those two states.
func (s ResourceState) Satisfies(want ResourceState) bool {
	if s == want {
		return true
	}
	if s == StateGenericRead && !want.IsWrite() && want != StatePresent {
		return true
	}
	if (s == StatePresent && want == StateCommon) || (s == StateCommon && want == StatePresent) {
		return true
	}
	return false
}
