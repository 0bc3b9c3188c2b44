package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/profiler"
	"github.com/Carmen-Shannon/oxy-samples/engine/window"
)

// ErrRenderPanic wraps a panic recovered from the render goroutine.
var ErrRenderPanic = errors.New("render goroutine panicked")

// Sample is what the engine drives: a tick for simulation and input, and a render for one
// frame. Tick and RenderFrame run on different goroutines.
type Sample interface {
	// Tick advances simulation state at the engine tick rate.
	//
	// Parameters:
	//   - dt: seconds since the previous tick
	Tick(dt float32)

	// RenderFrame records, submits and presents one frame. Any error is fatal and stops the loop.
	//
	// Parameters:
	//   - ctx: bounds presentation and fence waits
	//   - dt: seconds since the previous frame
	RenderFrame(ctx context.Context, dt float32) error

	// Resize reacts to a new framebuffer size between frames.
	Resize(ctx context.Context, width, height int) error

	// Teardown waits for the GPU to go idle and releases every resource. Called exactly once,
	// after both loops have stopped.
	Teardown(ctx context.Context) error
}

// engine implements the Engine interface.
// Coordinates the tick, render and window goroutines.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates
	resizeChannel   chan [2]int        // Latest pending framebuffer size

	runningMu sync.Mutex
	running   bool
	wg        sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	errMu sync.Mutex
	err   error

	window window.Window
	sample Sample

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate   time.Duration
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        int           // frames to render before quitting; 0 = until closed
	teardownTimeout  time.Duration
}

// Engine is the main entry point for the engine.
// It orchestrates the tick loop, render loop, and window management.
type Engine interface {
	// Window returns the underlying window, nil for headless runs.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// RequestResize queues a framebuffer size for the render goroutine. Only the latest request
	// is kept.
	RequestResize(width, height int)

	// Run starts the tick and render loops and, when a window is attached, pumps its messages on
	// the calling goroutine. It blocks until the window closes, ctx is done, Quit is called, the
	// frame budget is spent, or a frame fails. The sample is then torn down after an idle wait.
	//
	// Parameters:
	//   - ctx: stops the engine when done
	//
	// Returns:
	//   - error: the fatal frame error, or the teardown error, nil on a clean stop
	Run(ctx context.Context) error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine driving sample with the provided options.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - sample: the sample to tick and render
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(sample Sample, options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		resizeChannel:   make(chan [2]int, 1),
		quitChannel:     make(chan struct{}),
		sample:          sample,
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
		teardownTimeout: 5 * time.Second,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.RequestResize)
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Run(ctx context.Context) error {
	e.runningMu.Lock()
	e.running = true
	e.runningMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-runCtx.Done():
			e.signalQuit()
		case <-e.quitChannel:
			cancel()
		}
	}()

	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender(runCtx)

	if e.window != nil {
		e.window.ProcessMessages(runCtx)
		e.signalQuit()
	} else {
		<-e.quitChannel
	}
	e.wg.Wait()

	// Teardown gets its own deadline: the run context is already cancelled here.
	tdCtx, tdCancel := context.WithTimeout(context.Background(), e.teardownTimeout)
	defer tdCancel()
	tdErr := e.sample.Teardown(tdCtx)
	if tdErr != nil {
		common.Logger().Error("teardown failed", "err", tdErr)
	}
	// The surface is gone with the sample's device, so the window can go last.
	if e.window != nil {
		tdErr = errors.Join(tdErr, e.window.Close())
	}
	common.Logger().Info("engine stopped")
	return errors.Join(e.fatal(), tdErr)
}

// Quit signals all engine goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.runningMu.Lock()
		e.running = false
		e.runningMu.Unlock()
		close(e.quitChannel)
	})
}

// stop records the first fatal error and stops the engine.
func (e *engine) stop(err error) {
	e.errMu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.errMu.Unlock()
	common.Logger().Error("stopping frame loop", "err", err)
	e.signalQuit()
}

func (e *engine) fatal() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// handleEngine runs the fixed-rate tick loop in its own goroutine.
// Fires the sample tick at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			e.sample.Tick(dt)
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Pending resizes are applied between frames. A frame error or a panic stops the engine.
func (e *engine) handleRender(ctx context.Context) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.stop(fmt.Errorf("%w: %v", ErrRenderPanic, r))
		}
	}()

	lastRender := time.Now()
	frames := 0

	for {
		select {
		case <-e.quitChannel:
			return
		case size := <-e.resizeChannel:
			if size[0] <= 0 || size[1] <= 0 {
				// Minimized; keep waiting for a usable size.
				continue
			}
			if err := e.sample.Resize(ctx, size[0], size[1]); err != nil {
				e.stop(fmt.Errorf("resize to %dx%d: %w", size[0], size[1], err))
				return
			}
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			if err := e.sample.RenderFrame(ctx, dt); err != nil {
				if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
					return
				}
				e.stop(fmt.Errorf("frame %d: %w", frames, err))
				return
			}
			frames++

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick()
			}
			if e.maxFrames > 0 && frames >= e.maxFrames {
				e.signalQuit()
				return
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(now)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	e.runningMu.Lock()
	running := e.running
	e.runningMu.Unlock()
	if !running {
		e.engineTickRate = newRate
		return
	}
	// Non-blocking send - if channel is full, replace the pending value
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) RequestResize(width, height int) {
	size := [2]int{width, height}
	select {
	case e.resizeChannel <- size:
	default:
		select {
		case <-e.resizeChannel:
		default:
		}
		e.resizeChannel <- size
	}
}
