package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the CPU reference device. It needs no window and presents into
	// host memory, so it also drives headless runs.
	BackendTypeSoftware
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	}
	return fmt.Sprintf("RendererBackendType(%d)", int(t))
}

// ParseBackend parses a backend name as written in configuration.
//
// Parameters:
//   - s: wgpu or software
//
// Returns:
//   - RendererBackendType: the backend
//   - error: error if the name is unknown
func ParseBackend(s string) (RendererBackendType, error) {
	switch s {
	case "wgpu", "":
		return BackendTypeWGPU, nil
	case "software":
		return BackendTypeSoftware, nil
	}
	return 0, fmt.Errorf("unknown renderer backend %q", s)
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

func (m PresentMode) gpu() gpu.PresentMode {
	if m == PresentModeUncapped {
		return gpu.PresentModeImmediate
	}
	return gpu.PresentModeVSync
}

// syncInterval is the present sync interval matching the mode.
func (m PresentMode) syncInterval() int {
	if m == PresentModeUncapped {
		return 0
	}
	return 1
}
