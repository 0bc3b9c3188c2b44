package camera

import (
	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraController owns the look-at state (eye, target, up) and maps mouse drags onto it.
// The left button orbits the eye around the target, the right button dollies toward the target
// and the middle button pans both along the view plane. Camera reads from the controller and
// computes view/projection matrices.
type CameraController interface {
	dragCameraController

	// Position returns the camera's world-space eye position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Position() mgl32.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl32.Vec3: world-space target position
	Target() mgl32.Vec3

	// Up returns the up vector passed to the look-at computation.
	Up() mgl32.Vec3

	// SetLookAt replaces eye, target and up.
	//
	// Parameters:
	//   - eye: world-space eye position
	//   - target: world-space look-at point
	//   - up: up vector
	SetLookAt(eye, target, up mgl32.Vec3)

	// Reset restores the look-at state the controller was created with.
	Reset()

	// Orbit rotates the eye around the target. A full viewport width of dx turns the azimuth by
	// 360 degrees and a full height of dy tilts the polar angle by 180 degrees, kept away from
	// the poles.
	//
	// Parameters:
	//   - dx, dy: normalized drag deltas
	Orbit(dx, dy float32)

	// Dolly moves the eye toward the target by d times the current distance. The eye never
	// gets closer than the minimum distance.
	//
	// Parameters:
	//   - d: fraction of the distance to travel; negative moves away
	Dolly(d float32)

	// Pan translates eye and target along the view's right and up axes, scaled by distance.
	//
	// Parameters:
	//   - dx, dy: normalized drag deltas
	Pan(dx, dy float32)

	// Zoom dollies by a scroll wheel delta scaled by ZoomSpeed.
	// Positive delta zooms in (closer to target).
	//
	// Parameters:
	//   - delta: scroll amount
	Zoom(delta float32)
}

// dragCameraController defines the mouse drag state machine.
type dragCameraController interface {
	// ButtonDown starts a drag with button at window position (x, y).
	//
	// Parameters:
	//   - button: the pressed button selecting orbit, dolly or pan
	//   - x, y: cursor position in pixels
	ButtonDown(button common.MouseButton, x, y int32)

	// ButtonUp ends the current drag.
	ButtonUp()

	// Dragging returns the button of the active drag.
	//
	// Returns:
	//   - common.MouseButton: the held button
	//   - bool: false when no drag is active
	Dragging() (common.MouseButton, bool)

	// MouseMove applies the cursor motion since the last event to the active drag. Pixel deltas
	// are normalized by the viewport so the drag speed does not depend on window size.
	//
	// Parameters:
	//   - x, y: cursor position in pixels
	//   - width, height: viewport size in pixels
	//
	// Returns:
	//   - bool: true if the look-at state changed
	MouseMove(x, y int32, width, height int) bool

	// Move applies normalized deltas to the active drag.
	//
	// Returns:
	//   - bool: true if the look-at state changed
	Move(dx, dy float32) bool

	// MouseSensitivity returns the multiplier applied to normalized deltas.
	MouseSensitivity() float32

	// ZoomSpeed returns the fraction of the distance dollied per scroll unit.
	ZoomSpeed() float32
}
