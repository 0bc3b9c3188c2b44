package window

import (
	"fmt"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// minimizedWait is how long a minimized window blocks for events before re-checking its state.
const minimizedWait = 50 * time.Millisecond

// glfwWindow is the GLFW handle behind an engineWindow.
type glfwWindow struct {
	window *glfw.Window
}

// open initializes GLFW and creates the window with its callbacks.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
func (w *engineWindow) open() error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initialize GLFW: %w", err)
	}

	// The surface is created by wgpu; GLFW must not create a GL context.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfwBool(w.settings.resizable))

	s := w.settings
	win, err := glfw.CreateWindow(s.width, s.height, s.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("create GLFW window: %w", err)
	}
	win.SetSizeLimits(s.minWidth, s.minHeight, s.maxWidth, s.maxHeight)
	w.native = &glfwWindow{window: win}

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		w.key(uint32(key), action != glfw.Release)
	})
	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		if w.on.scroll != nil {
			w.on.scroll(float32(yoff))
		}
	})
	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		x, y := win.GetCursorPos()
		w.button(common.MouseButton(button), action == glfw.Press, int32(x), int32(y))
	})
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if w.on.mouseMove != nil {
			w.on.mouseMove(int32(x), int32(y))
		}
	})

	// Framebuffer size, not window size: the surface is configured in pixels, which differ from
	// screen coordinates on high-DPI displays.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.setSize(width, height)
	})
	width, height := win.GetFramebufferSize()
	w.size.Store(packSize(width, height))
	return nil
}

func glfwBool(v bool) int {
	if v {
		return glfw.True
	}
	return glfw.False
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.native == nil || w.native.window == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.native.window)
}

func (g *glfwWindow) open() bool {
	return g != nil && g.window != nil && !g.window.ShouldClose()
}

// poll dispatches pending events. A minimized window has nothing to render for, so it blocks
// briefly instead of spinning.
func (g *glfwWindow) poll(minimized bool) {
	if minimized {
		glfw.WaitEventsTimeout(minimizedWait.Seconds())
		return
	}
	glfw.PollEvents()
}

func (g *glfwWindow) destroy() error {
	if g == nil || g.window == nil {
		return fmt.Errorf("window is not initialized")
	}
	g.window.SetShouldClose(true)
	g.window.Destroy()
	g.window = nil
	glfw.Terminate()
	return nil
}
