package deferred

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

// G-buffer target indices, also the lighting pass texture slots minus one.
const (
	TargetPosition = iota
	TargetNormal
	TargetAlbedo

	// TargetCount is the number of G-buffer render targets.
	TargetCount
)

// Target formats, in target index order.
var targetFormats = [TargetCount]gpu.Format{gpu.FormatRGBA32Float, gpu.FormatRGBA32Float, gpu.FormatRGBA8Unorm}

var targetNames = [TargetCount]string{"gbuffer.position", "gbuffer.normal", "gbuffer.albedo"}

// DepthFormat is the format of the depth target shared by the z-prepass and the geometry pass.
const DepthFormat = gpu.FormatDepth32Float

// TargetFormats returns the G-buffer formats in target order.
func TargetFormats() []gpu.Format {
	return targetFormats[:]
}

// GBuffer is the set of geometry pass targets. It is a value: Transition returns the next
// GBuffer together with the barriers, so the owner holding the value is the single record of the
// targets' state. All targets always share one state.
type GBuffer struct {
	Targets [TargetCount]gpu.Resource
	RTVs    [TargetCount]gpu.Descriptor
	SRVs    [TargetCount]gpu.Descriptor

	// Depth stays in StateDepthWrite.
	Depth gpu.Resource
	DSV   gpu.Descriptor

	Width  uint32
	Height uint32
}

// NewGBuffer creates the three targets in StateRenderTarget with render-target and
// shader-resource views, and the depth target in StateDepthWrite.
//
// Parameters:
//   - device: the device to create the targets on
//   - width, height: the target extent, normally the swapchain extent
//
// Returns:
//   - GBuffer: the G-buffer in StateRenderTarget
//   - error: error if any target or view cannot be created
func NewGBuffer(device gpu.Device, width, height uint32) (GBuffer, error) {
	g := GBuffer{Width: width, Height: height}
	for i := range TargetCount {
		tex, err := device.CreateTexture(gpu.TextureDesc{
			Label:        targetNames[i],
			Width:        width,
			Height:       height,
			Format:       targetFormats[i],
			Usage:        gpu.TextureUsageRenderTarget | gpu.TextureUsageShaderResource,
			InitialState: gpu.StateRenderTarget,
		})
		if err != nil {
			g.Destroy(device, 0)
			return GBuffer{}, fmt.Errorf("create %s: %w", targetNames[i], err)
		}
		g.Targets[i] = tex
		if g.RTVs[i], err = device.CreateView(tex, gpu.ViewRenderTarget); err != nil {
			g.Destroy(device, 0)
			return GBuffer{}, fmt.Errorf("create %s render target view: %w", targetNames[i], err)
		}
		if g.SRVs[i], err = device.CreateView(tex, gpu.ViewShaderResource); err != nil {
			g.Destroy(device, 0)
			return GBuffer{}, fmt.Errorf("create %s shader resource view: %w", targetNames[i], err)
		}
	}

	depth, err := device.CreateTexture(gpu.TextureDesc{
		Label:        "gbuffer.depth",
		Width:        width,
		Height:       height,
		Format:       DepthFormat,
		Usage:        gpu.TextureUsageDepthStencil,
		InitialState: gpu.StateDepthWrite,
	})
	if err != nil {
		g.Destroy(device, 0)
		return GBuffer{}, fmt.Errorf("create depth target: %w", err)
	}
	g.Depth = depth
	if g.DSV, err = device.CreateView(depth, gpu.ViewDepthStencil); err != nil {
		g.Destroy(device, 0)
		return GBuffer{}, fmt.Errorf("create depth view: %w", err)
	}
	return g, nil
}

// State returns the state shared by the three targets.
func (g GBuffer) State() gpu.ResourceState {
	return g.Targets[0].State
}

// Transition moves every target to state to. The barrier list is empty when the targets are
// already there.
//
// Parameters:
//   - to: gpu.StateRenderTarget or gpu.StatePixelShaderResource
//
// Returns:
//   - GBuffer: the G-buffer carrying the new state
//   - []gpu.Barrier: one barrier per target that changed
func (g GBuffer) Transition(to gpu.ResourceState) (GBuffer, []gpu.Barrier) {
	next, barriers := gpu.TransitionAll(g.Targets[:], to)
	copy(g.Targets[:], next)
	return g, barriers
}

// Destroy releases the targets and their views. Views are reclaimed once the device fence reaches
// retireValue.
func (g GBuffer) Destroy(device gpu.Device, retireValue uint64) {
	descriptors := device.Descriptors()
	for i := range TargetCount {
		descriptors.Release(g.RTVs[i], retireValue)
		descriptors.Release(g.SRVs[i], retireValue)
		if g.Targets[i].Handle.Valid() {
			device.Destroy(g.Targets[i].Handle)
		}
	}
	descriptors.Release(g.DSV, retireValue)
	if g.Depth.Handle.Valid() {
		device.Destroy(g.Depth.Handle)
	}
}
