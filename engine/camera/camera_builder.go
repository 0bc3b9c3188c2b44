package camera

import "github.com/chewxy/math32"

// CameraBuilderOption is a functional option applied by NewCamera before the first matrix update.
type CameraBuilderOption func(*cameraImpl)

// Field of view limits in radians.
const (
	minFov = 0.01
	maxFov = math32.Pi - 0.01
)

// WithFov sets the vertical field of view, clamped into (0, pi).
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = clampFov(fov)
	}
}

// WithAspect sets the width / height ratio. Non-positive ratios are ignored.
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if aspect > 0 {
			c.aspect = aspect
		}
	}
}

// WithClip sets the near and far plane distances. The pair is ignored unless 0 < near < far.
//
// Parameters:
//   - near: distance to the near plane
//   - far: distance to the far plane
//
// Returns:
//   - CameraBuilderOption: a function that sets both planes
func WithClip(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if validClip(near, far) {
			c.near, c.far = near, far
		}
	}
}

// WithController makes ctrl the source of the camera's look-at state.
func WithController(ctrl CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}

func clampFov(fov float32) float32 {
	return min(max(fov, minFov), maxFov)
}

func validClip(near, far float32) bool {
	return near > 0 && far > near
}
