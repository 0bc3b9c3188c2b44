package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithUp sets the up vector passed to the look-at computation.
//
// Parameters:
//   - up: the up vector
//
// Returns:
//   - CameraControllerOption: functional option to set the up vector
func WithUp(up mgl32.Vec3) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.up = up
	}
}

// WithMinDistance sets how close a dolly may bring the eye to the target.
//
// Parameters:
//   - d: minimum eye to target distance
//
// Returns:
//   - CameraControllerOption: functional option to set the minimum distance
func WithMinDistance(d float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.minDistance = d
	}
}

// WithMouseSensitivity sets the mouse drag sensitivity.
//
// Parameters:
//   - sensitivity: multiplier for normalized mouse movement
//
// Returns:
//   - CameraControllerOption: functional option to set mouse sensitivity
func WithMouseSensitivity(sensitivity float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.mouseSensitivity = sensitivity
	}
}

// WithZoomSpeed sets the fraction of the distance dollied per scroll unit.
//
// Parameters:
//   - speed: multiplier for zoom input
//
// Returns:
//   - CameraControllerOption: functional option to set zoom speed
func WithZoomSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.zoomSpeed = speed
	}
}
