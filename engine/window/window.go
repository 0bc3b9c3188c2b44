package window

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window is the sample's native window: a presentation surface plus input callbacks.
//
// Callbacks run on the goroutine that calls ProcessMessages, which must be the goroutine that
// created the window. Width and Height may be read from any goroutine.
type Window interface {
	// SetResizeCallback sets the function called with the new framebuffer size in pixels. A
	// minimized window reports 0x0.
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for vertical wheel motion, positive away from the user.
	SetScrollCallback(callback func(delta float32))

	// SetKeyDownCallback sets the callback for key presses and repeats. Key codes match the
	// constants in common (printable keys are ASCII).
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key releases.
	SetKeyUpCallback(callback func(keyCode uint32))

	// SetMouseDownCallback sets the callback for left, right and middle button presses with the
	// cursor position in pixels.
	SetMouseDownCallback(callback func(button common.MouseButton, x, y int32))

	// SetMouseUpCallback sets the callback for button releases.
	SetMouseUpCallback(callback func(button common.MouseButton, x, y int32))

	// SetMouseMoveCallback sets the callback for cursor motion in pixels.
	SetMouseMoveCallback(callback func(x, y int32))

	// SurfaceDescriptor returns the descriptor the wgpu instance creates the window surface from.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is open and no close was requested.
	IsRunning() bool

	// ProcessMessages pumps window events until the window closes or ctx is done.
	//
	// Parameters:
	//   - ctx: stops the loop when done
	ProcessMessages(ctx context.Context)

	// Close destroys the window. It is safe to call more than once.
	Close() error

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

// callbacks holds the registered input handlers. Zero values are ignored.
type callbacks struct {
	resize    func(width, height int)
	scroll    func(delta float32)
	keyDown   func(keyCode uint32)
	keyUp     func(keyCode uint32)
	mouseDown func(button common.MouseButton, x, y int32)
	mouseUp   func(button common.MouseButton, x, y int32)
	mouseMove func(x, y int32)
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	settings settings
	on       callbacks

	// size packs the framebuffer width in the high and the height in the low 32 bits.
	size atomic.Uint64

	native    *glfwWindow
	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Window = &engineWindow{}

// NewWindow creates and shows the window. It locks the calling goroutine to its OS thread, which
// must then run ProcessMessages.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the configured window, shown and ready for a surface
//   - error: error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	s := defaultSettings()
	for _, opt := range options {
		opt(&s)
	}
	w := &engineWindow{settings: s.normalized()}
	if err := w.open(); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	common.Logger().Info("window created", "title", w.settings.title, "width", w.Width(), "height", w.Height())
	return w, nil
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) { w.on.resize = callback }
func (w *engineWindow) SetScrollCallback(callback func(delta float32))      { w.on.scroll = callback }
func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32))    { w.on.keyDown = callback }
func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32))      { w.on.keyUp = callback }

func (w *engineWindow) SetMouseDownCallback(callback func(button common.MouseButton, x, y int32)) {
	w.on.mouseDown = callback
}

func (w *engineWindow) SetMouseUpCallback(callback func(button common.MouseButton, x, y int32)) {
	w.on.mouseUp = callback
}

func (w *engineWindow) SetMouseMoveCallback(callback func(x, y int32)) {
	w.on.mouseMove = callback
}

func (w *engineWindow) IsRunning() bool {
	return !w.closing.Load() && w.native.open()
}

func (w *engineWindow) ProcessMessages(ctx context.Context) {
	for ctx.Err() == nil && w.IsRunning() {
		w.native.poll(w.minimized())
	}
}

func (w *engineWindow) Close() error {
	w.closeOnce.Do(func() {
		w.closing.Store(true)
		w.closeErr = w.native.destroy()
		common.Logger().Info("window closed", "title", w.settings.title)
	})
	return w.closeErr
}

func (w *engineWindow) Width() int {
	width, _ := unpackSize(w.size.Load())
	return width
}

func (w *engineWindow) Height() int {
	_, height := unpackSize(w.size.Load())
	return height
}

func (w *engineWindow) minimized() bool {
	width, height := unpackSize(w.size.Load())
	return width == 0 || height == 0
}

// setSize records a framebuffer size and forwards it to the resize callback when it changed.
func (w *engineWindow) setSize(width, height int) {
	next := packSize(width, height)
	if w.size.Swap(next) == next {
		return
	}
	common.Logger().Debug("framebuffer resized", "width", width, "height", height)
	if w.on.resize != nil {
		w.on.resize(width, height)
	}
}

func (w *engineWindow) key(code uint32, pressed bool) {
	if code == common.KeyEsc && pressed {
		w.closing.Store(true)
		return
	}
	switch {
	case pressed && w.on.keyDown != nil:
		w.on.keyDown(code)
	case !pressed && w.on.keyUp != nil:
		w.on.keyUp(code)
	}
}

func (w *engineWindow) button(b common.MouseButton, pressed bool, x, y int32) {
	if !supportedButton(b) {
		return
	}
	switch {
	case pressed && w.on.mouseDown != nil:
		w.on.mouseDown(b, x, y)
	case !pressed && w.on.mouseUp != nil:
		w.on.mouseUp(b, x, y)
	}
}

func supportedButton(b common.MouseButton) bool {
	return b == common.MouseLeft || b == common.MouseRight || b == common.MouseMiddle
}

func packSize(width, height int) uint64 {
	return uint64(uint32(max(width, 0)))<<32 | uint64(uint32(max(height, 0)))
}

func unpackSize(v uint64) (int, int) {
	return int(v >> 32), int(uint32(v))
}
