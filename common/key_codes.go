package common

// Key codes delivered by the window's key callbacks.
// Printable keys use their ASCII value, matching GLFW.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyH     = 72  // toggle HUD
	KeyI     = 73  // toggle indirect particle draw
	KeyP     = 80  // pause simulation
	KeyR     = 82  // reset camera
	KeySpace = 32  // single-step while paused
	KeyEsc   = 256 // close window (GLFW)
)

// MouseButton identifies a mouse button in the window's button callbacks.
// The values match glfw.MouseButton.
type MouseButton int

const (
	MouseLeft   MouseButton = 0
	MouseRight  MouseButton = 1
	MouseMiddle MouseButton = 2
)
