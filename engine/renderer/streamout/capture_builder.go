package streamout

import (
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// CaptureBuilderOption is a functional option used to configure a Capture during construction.
type CaptureBuilderOption func(*capture)

// WithCullMode sets the cull mode of the captured draw.
//
// Parameters:
//   - mode: the cull mode, CullNone by default
//
// Returns:
//   - CaptureBuilderOption: a function that sets the cull mode
func WithCullMode(mode gpu.CullMode) CaptureBuilderOption {
	return func(c *capture) {
		c.cull = mode
	}
}

// WithLightDir sets the direction toward the light used to shade the captured stream.
func WithLightDir(dir mgl32.Vec3) CaptureBuilderOption {
	return func(c *capture) {
		c.scene.LightDir = dir.Vec4(0)
	}
}

// WithAlbedo sets the surface color and the ambient term.
//
// Parameters:
//   - color: the rgb surface color
//   - ambient: the light added regardless of orientation
//
// Returns:
//   - CaptureBuilderOption: a function that sets the albedo
func WithAlbedo(color mgl32.Vec3, ambient float32) CaptureBuilderOption {
	return func(c *capture) {
		c.scene.Albedo = color.Vec4(ambient)
	}
}

// WithDepthClear sets the value the depth target is cleared to before the captured draw.
func WithDepthClear(depth float32) CaptureBuilderOption {
	return func(c *capture) {
		c.clearDepth = depth
	}
}
