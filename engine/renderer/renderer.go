package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/overlay"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/frame_ring"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/present"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/wgpu_backend"
	"github.com/Carmen-Shannon/oxy-samples/engine/window"
)

// FrameRecorder records the draws of one frame into the acquired back buffer. The target is in
// RenderTarget state, already cleared, and stays bound for the recorder.
type FrameRecorder func(cmd gpu.CommandContext, slot int, target overlay.Target) error

// renderer is the implementation of the Renderer interface.
type renderer struct {
	backendType RendererBackendType

	device    gpu.Device
	swapchain gpu.Swapchain
	presenter present.Presenter
	ring      frame_ring.Ring

	// ownsDevice is false when the device was injected with WithDevice.
	ownsDevice bool

	// Pre-creation config collected from builder options
	width, height        int
	frameCount           int
	presentMode          PresentMode
	policy               present.Policy
	maxFrameLatency      int
	fenceTimeout         time.Duration
	stateTracking        bool
	forceFallbackAdapter bool
	clearColor           [4]float32
}

// Renderer defines the interface for the rendering system.
//
// The Renderer owns the device, the swapchain, the presentation policy and the frame ring that
// every sample records through. Samples build their passes on top of these and either drive the
// frame themselves or hand a FrameRecorder to Frame.
type Renderer interface {
	// Backend returns the backend the device was created on.
	Backend() RendererBackendType

	// Device returns the GPU device.
	Device() gpu.Device

	// Swapchain returns the presentable image ring.
	Swapchain() gpu.Swapchain

	// Presenter returns the presentation policy wrapping the swapchain.
	Presenter() present.Presenter

	// Ring returns the frame ring. Its slot count equals the swapchain image count.
	Ring() frame_ring.Ring

	// Frame runs one complete frame around record: acquire, transition to RenderTarget, clear,
	// record, transition to Present, submit and present.
	//
	// Parameters:
	//   - ctx: bounds the presentation and fence waits
	//   - record: records the frame's passes
	//
	// Returns:
	//   - error: a fatal error; gpu.ErrFenceTimeout when a frame slot did not retire in time
	Frame(ctx context.Context, record FrameRecorder) error

	// Resize waits for the GPU to go idle and resizes the swapchain.
	//
	// Parameters:
	//   - ctx: bounds the idle wait
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: error if the wait or the resize fails
	Resize(ctx context.Context, width, height int) error

	// Close waits for the GPU to go idle, then destroys the frame ring and the device.
	Close(ctx context.Context) error
}

var _ Renderer = &renderer{}

// NewRenderer creates the device for the selected backend, a swapchain sized to the window, the
// presenter and a frame ring with one slot per swapchain image.
//
// Parameters:
//   - win: the window to present into; may be nil for the software backend
//   - options: variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: the renderer
//   - error: error if the device, swapchain or ring could not be created
func NewRenderer(win window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		backendType:     BackendTypeWGPU,
		width:           1280,
		height:          720,
		frameCount:      3,
		policy:          present.PolicyBlocking,
		maxFrameLatency: 1,
		fenceTimeout:    5 * time.Second,
		ownsDevice:      true,
	}
	for _, opt := range options {
		opt(r)
	}
	if win != nil {
		r.width, r.height = win.Width(), win.Height()
	}

	if r.device == nil {
		d, err := r.createDevice(win)
		if err != nil {
			return nil, err
		}
		r.device = d
	}

	sc, err := r.device.CreateSwapchain(gpu.SwapchainDesc{
		Label:           "main",
		Width:           r.width,
		Height:          r.height,
		ImageCount:      r.frameCount,
		PresentMode:     r.presentMode.gpu(),
		Waitable:        r.policy == present.PolicyWaitable,
		MaxFrameLatency: r.maxFrameLatency,
	})
	if err != nil {
		r.closeDevice()
		return nil, fmt.Errorf("renderer swapchain: %w", err)
	}
	r.swapchain = sc
	r.presenter = present.NewPresenter(sc,
		present.WithPolicy(r.policy),
		present.WithSyncInterval(r.presentMode.syncInterval()),
		present.WithFenceTimeout(r.fenceTimeout),
	)

	ring, err := frame_ring.NewRing(r.device,
		frame_ring.WithSlotCount(sc.ImageCount()),
		frame_ring.WithIndexSource(sc.CurrentImageIndex),
		frame_ring.WithFenceTimeout(r.fenceTimeout),
	)
	if err != nil {
		r.closeDevice()
		return nil, fmt.Errorf("renderer frame ring: %w", err)
	}
	r.ring = ring

	common.Logger().Info("renderer ready", "backend", r.backendType.String(), "device", r.device.Label(),
		"width", sc.Width(), "height", sc.Height(), "frames", sc.ImageCount(), "policy", r.policy.String())
	return r, nil
}

func (r *renderer) createDevice(win window.Window) (gpu.Device, error) {
	switch r.backendType {
	case BackendTypeSoftware:
		return software.NewDevice(software.WithLabel("software")), nil
	case BackendTypeWGPU:
		if win == nil {
			return nil, errors.New("renderer: the wgpu backend needs a window")
		}
		opts := []wgpu_backend.DeviceBuilderOption{wgpu_backend.WithLabel("wgpu")}
		if r.forceFallbackAdapter {
			opts = append(opts, wgpu_backend.WithForceFallbackAdapter())
		}
		if r.stateTracking {
			opts = append(opts, wgpu_backend.WithStateTracking())
		}
		d, err := wgpu_backend.NewDevice(win.SurfaceDescriptor(), opts...)
		if err != nil {
			return nil, fmt.Errorf("renderer device: %w", err)
		}
		return d, nil
	}
	return nil, fmt.Errorf("renderer: unsupported backend %s", r.backendType)
}

func (r *renderer) closeDevice() {
	if r.ownsDevice && r.device != nil {
		_ = r.device.Close()
	}
}

func (r *renderer) Backend() RendererBackendType { return r.backendType }
func (r *renderer) Device() gpu.Device           { return r.device }
func (r *renderer) Swapchain() gpu.Swapchain     { return r.swapchain }
func (r *renderer) Presenter() present.Presenter { return r.presenter }
func (r *renderer) Ring() frame_ring.Ring        { return r.ring }

func (r *renderer) Frame(ctx context.Context, record FrameRecorder) error {
	image, err := r.presenter.BeginFrame(ctx, r.ring)
	if err != nil {
		return err
	}
	slot := r.ring.AcquireSlot()
	if err := r.ring.Reset(slot); err != nil {
		return err
	}
	cmd := r.ring.Context(slot)
	_, rtv := r.presenter.BackBuffer(image)
	target := overlay.Target{RTV: rtv, Format: r.swapchain.Format(), Width: r.swapchain.Width(), Height: r.swapchain.Height()}

	cmd.ResourceBarrier(r.presenter.BarrierToRenderTarget(image))
	cmd.ClearRenderTarget(rtv, r.clearColor)
	recordErr := record(cmd, slot, target)
	cmd.ResourceBarrier(r.presenter.BarrierToPresent(image))

	if _, err := r.ring.Submit(slot); err != nil {
		return errors.Join(recordErr, fmt.Errorf("submit frame slot %d: %w", slot, err))
	}
	if recordErr != nil {
		return fmt.Errorf("record frame: %w", recordErr)
	}
	return r.presenter.EndFrame(ctx, r.ring)
}

func (r *renderer) Resize(ctx context.Context, width, height int) error {
	if err := r.ring.WaitIdle(ctx); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	return r.presenter.Resize(width, height)
}

func (r *renderer) Close(ctx context.Context) error {
	err := r.device.WaitIdle(ctx)
	if err != nil {
		common.Logger().Error("renderer teardown without idle GPU", "error", err)
	}
	r.ring.Destroy()
	if r.ownsDevice {
		err = errors.Join(err, r.device.Close())
	}
	return err
}
