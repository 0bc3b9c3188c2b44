package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Polar angle limits of an orbit, as a fraction of 180 degrees.
const (
	minPolar = 0.02
	maxPolar = 0.98

	epsilon = 1e-6
)

// cameraControllerImpl is the single implementation of CameraController.
type cameraControllerImpl struct {
	mu sync.Mutex

	eye    mgl32.Vec3
	target mgl32.Vec3
	up     mgl32.Vec3

	initialEye    mgl32.Vec3
	initialTarget mgl32.Vec3
	initialUp     mgl32.Vec3

	// button is the held button, valid while dragging.
	button   common.MouseButton
	dragging bool
	lastX    int32
	lastY    int32

	minDistance      float32
	mouseSensitivity float32
	zoomSpeed        float32
}

// Compile-time interface compliance check
var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a new camera controller looking from eye at target with +Y up.
//
// Parameters:
//   - eye: initial world-space eye position
//   - target: initial look-at point
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(eye, target mgl32.Vec3, options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		eye:              eye,
		target:           target,
		up:               mgl32.Vec3{0, 1, 0},
		minDistance:      1.0,
		mouseSensitivity: 1.0,
		zoomSpeed:        0.1,
	}
	for _, option := range options {
		option(cc)
	}
	cc.initialEye, cc.initialTarget, cc.initialUp = cc.eye, cc.target, cc.up
	return cc
}

func (cc *cameraControllerImpl) Position() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.eye
}

func (cc *cameraControllerImpl) Target() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *cameraControllerImpl) Up() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.up
}

func (cc *cameraControllerImpl) SetLookAt(eye, target, up mgl32.Vec3) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.eye, cc.target, cc.up = eye, target, up
}

func (cc *cameraControllerImpl) Reset() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.eye, cc.target, cc.up = cc.initialEye, cc.initialTarget, cc.initialUp
	cc.dragging = false
}

func (cc *cameraControllerImpl) Orbit(dx, dy float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.orbit(dx, dy)
}

func (cc *cameraControllerImpl) Dolly(d float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.dolly(d)
}

func (cc *cameraControllerImpl) Pan(dx, dy float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pan(dx, dy)
}

func (cc *cameraControllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.dolly(delta * cc.zoomSpeed)
}

// --- dragCameraController implementation ---

func (cc *cameraControllerImpl) ButtonDown(button common.MouseButton, x, y int32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.button = button
	cc.dragging = true
	cc.lastX, cc.lastY = x, y
}

func (cc *cameraControllerImpl) ButtonUp() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.dragging = false
}

func (cc *cameraControllerImpl) Dragging() (common.MouseButton, bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.button, cc.dragging
}

func (cc *cameraControllerImpl) MouseMove(x, y int32, width, height int) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	px, py := x-cc.lastX, y-cc.lastY
	cc.lastX, cc.lastY = x, y
	if !cc.dragging || width <= 0 || height <= 0 {
		return false
	}
	// Horizontal motion is inverted so the scene follows the cursor.
	dx := float32(-px) / float32(width)
	dy := float32(py) / float32(height)
	return cc.move(dx, dy)
}

func (cc *cameraControllerImpl) Move(dx, dy float32) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.move(dx, dy)
}

func (cc *cameraControllerImpl) MouseSensitivity() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.mouseSensitivity
}

func (cc *cameraControllerImpl) ZoomSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.zoomSpeed
}

// move dispatches a drag delta on the held button. Caller must hold the mutex.
func (cc *cameraControllerImpl) move(dx, dy float32) bool {
	if !cc.dragging {
		return false
	}
	dx *= cc.mouseSensitivity
	dy *= cc.mouseSensitivity
	switch cc.button {
	case common.MouseLeft:
		cc.orbit(dx, dy)
	case common.MouseRight:
		cc.dolly(dy)
	case common.MouseMiddle:
		cc.pan(dx, dy)
	default:
		return false
	}
	return true
}

// orbit works in normalized spherical coordinates around the target: azimuth phi in [0, 1) of a
// turn and polar angle theta in [0, 1] of a half turn. Caller must hold the mutex.
func (cc *cameraControllerImpl) orbit(dx, dy float32) {
	toEye := cc.eye.Sub(cc.target)
	dist := toEye.Len()
	if dist < epsilon {
		return
	}
	toEye = toEye.Mul(1 / dist)

	phi := math32.Atan2(toEye.X(), toEye.Z())
	theta := math32.Acos(common.Clamp(toEye.Y(), -1, 1))

	x := (math32.Pi+phi)/(2*math32.Pi) + dx
	y := common.Clamp(theta/math32.Pi-dy, minPolar, maxPolar)

	phi = x * 2 * math32.Pi
	theta = y * math32.Pi
	st, ct := math32.Sin(theta), math32.Cos(theta)
	sp, cp := math32.Sin(phi), math32.Cos(phi)

	dir := mgl32.Vec3{-st * sp, ct, -st * cp}.Normalize()
	cc.eye = cc.target.Add(dir.Mul(dist))
}

// dolly moves the eye along the view direction. Caller must hold the mutex.
func (cc *cameraControllerImpl) dolly(d float32) {
	toTarget := cc.target.Sub(cc.eye)
	dist := toTarget.Len()
	if dist < epsilon {
		return
	}
	next := max(dist*(1-d), cc.minDistance)
	cc.eye = cc.target.Sub(toTarget.Mul(next / dist))
}

// pan shifts eye and target along the camera's right and up axes. Caller must hold the mutex.
func (cc *cameraControllerImpl) pan(dx, dy float32) {
	dist := cc.target.Sub(cc.eye).Len()
	view := mgl32.LookAtV(cc.eye, cc.target, cc.up)
	right := view.Row(0).Vec3().Mul(dx * dist)
	top := view.Row(1).Vec3().Mul(dy * dist)
	shift := right.Add(top)
	cc.eye = cc.eye.Add(shift)
	cc.target = cc.target.Add(shift)
}
