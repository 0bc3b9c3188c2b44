package renderer

import (
	"time"

	"github.com/Carmen-Shannon/oxy-samples/engine/config"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/present"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithBackend selects the GPU backend.
//
// Parameters:
//   - backend: BackendTypeWGPU (default) or BackendTypeSoftware
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackend(backend RendererBackendType) RendererBuilderOption {
	return func(r *renderer) {
		r.backendType = backend
	}
}

// WithDevice renders on an existing device instead of creating one. The renderer does not close
// an injected device.
func WithDevice(d gpu.Device) RendererBuilderOption {
	return func(r *renderer) {
		r.device = d
		r.ownsDevice = false
	}
}

// WithExtent sets the swapchain size used when no window is given.
func WithExtent(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		r.width, r.height = width, height
	}
}

// WithFrameCount sets the swapchain image count, which is also the number of frame slots.
//
// Parameters:
//   - n: 2 or 3
//
// Returns:
//   - RendererBuilderOption: a function that applies the frame count option to a renderer
func WithFrameCount(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.frameCount = n
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithPresentPolicy selects where the frame loop blocks. The waitable policy also creates the
// swapchain with a latency waitable bounded by maxFrameLatency.
func WithPresentPolicy(policy present.Policy, maxFrameLatency int) RendererBuilderOption {
	return func(r *renderer) {
		r.policy = policy
		r.maxFrameLatency = maxFrameLatency
	}
}

// WithFenceTimeout bounds every wait for a previous frame. Passing the bound is fatal.
func WithFenceTimeout(d time.Duration) RendererBuilderOption {
	return func(r *renderer) {
		if d > 0 {
			r.fenceTimeout = d
		}
	}
}

// WithStateTracking validates barriers and resource uses on the wgpu backend. The software
// backend always tracks.
func WithStateTracking(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.stateTracking = enabled
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithClearColor sets the back buffer clear color used by Frame.
func WithClearColor(c [4]float32) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithConfig applies the renderer section of a validated configuration.
//
// Parameters:
//   - c: the renderer configuration
//
// Returns:
//   - RendererBuilderOption: a function applying backend, frame count, present mode, policy,
//     fence timeout and state tracking
func WithConfig(c config.RendererConfig) RendererBuilderOption {
	return func(r *renderer) {
		if backend, err := ParseBackend(c.Backend); err == nil {
			r.backendType = backend
		}
		r.frameCount = c.FrameCount
		r.presentMode = PresentModeVSync
		if c.SyncInterval() == 0 {
			r.presentMode = PresentModeUncapped
		}
		WithPresentPolicy(c.PresentPolicy(), c.MaxFrameLatency)(r)
		WithFenceTimeout(c.FenceTimeout.Duration)(r)
		r.stateTracking = c.DebugStateTracking
	}
}
