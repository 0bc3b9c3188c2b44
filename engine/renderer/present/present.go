package present

import (
	"context"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

// Policy selects where the frame loop blocks.
type Policy int

const (
	// PolicyBlocking presents and then waits for the slot of the next image to retire.
	PolicyBlocking Policy = iota

	// PolicyWaitable waits on the swapchain latency object, then on the acquired slot, before
	// recording. Frame latency is bounded by the swapchain's MaxFrameLatency.
	PolicyWaitable
)

func (p Policy) String() string {
	switch p {
	case PolicyBlocking:
		return "blocking"
	case PolicyWaitable:
		return "waitable"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy parses "blocking" or "waitable".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "blocking", "":
		return PolicyBlocking, nil
	case "waitable":
		return PolicyWaitable, nil
	}
	return 0, fmt.Errorf("unknown presentation policy %q", s)
}

// Retirer waits for a frame slot's previously submitted work to complete.
type Retirer interface {
	WaitForSlot(ctx context.Context, slot int) error
}

// Presenter owns the swapchain side of the frame: image acquisition, the present transitions and
// the waits that keep CPU recording from overtaking the GPU.
type Presenter interface {
	// Swapchain returns the wrapped swapchain.
	Swapchain() gpu.Swapchain

	// Policy returns the configured presentation policy.
	Policy() Policy

	// AcquireCurrentImage returns the index of the image the next frame renders into.
	AcquireCurrentImage() int

	// BackBuffer returns the image at index and its render target view.
	BackBuffer(index int) (gpu.Resource, gpu.Descriptor)

	// BarrierToRenderTarget returns the Present -> RenderTarget transition of image index.
	BarrierToRenderTarget(index int) gpu.Barrier

	// BarrierToPresent returns the RenderTarget -> Present transition of image index.
	BarrierToPresent(index int) gpu.Barrier

	// Present presents the current image with the configured sync interval.
	Present() error

	// WaitOnSwapchain blocks until the presentation engine can accept another frame. It returns
	// immediately for non-waitable swapchains.
	WaitOnSwapchain(ctx context.Context) error

	// WaitPreviousFrame blocks until the work last submitted from slot index has retired.
	//
	// Parameters:
	//   - ctx: the caller's context
	//   - r: the frame ring owning the slot
	//   - index: the slot index
	//   - timeout: the wait bound; zero means the context decides
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrFenceTimeout when the bound passes, which is fatal
	WaitPreviousFrame(ctx context.Context, r Retirer, index int, timeout time.Duration) error

	// BeginFrame applies the policy's pre-recording waits and returns the acquired image index.
	BeginFrame(ctx context.Context, r Retirer) (int, error)

	// EndFrame presents and applies the policy's post-present wait.
	EndFrame(ctx context.Context, r Retirer) error

	// Resize recreates the swapchain images. The caller must idle the GPU first.
	Resize(width, height int) error
}

// presenter is the implementation of Presenter.
type presenter struct {
	// swapchain is the presentable image ring.
	swapchain gpu.Swapchain
	// policy selects where the frame loop blocks.
	policy Policy
	// syncInterval is passed to every Present.
	syncInterval int
	// fenceTimeout bounds WaitPreviousFrame inside BeginFrame and EndFrame.
	fenceTimeout time.Duration
}

var _ Presenter = &presenter{}

// NewPresenter wraps a swapchain.
//
// Parameters:
//   - sc: the swapchain to present with
//   - options: variadic list of PresenterBuilderOption functions
//
// Returns:
//   - Presenter: the new presenter
func NewPresenter(sc gpu.Swapchain, options ...PresenterBuilderOption) Presenter {
	p := &presenter{
		swapchain:    sc,
		policy:       PolicyBlocking,
		syncInterval: 1,
		fenceTimeout: 5 * time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *presenter) Swapchain() gpu.Swapchain {
	return p.swapchain
}

func (p *presenter) Policy() Policy {
	return p.policy
}

func (p *presenter) AcquireCurrentImage() int {
	return p.swapchain.CurrentImageIndex()
}

func (p *presenter) BackBuffer(index int) (gpu.Resource, gpu.Descriptor) {
	return p.swapchain.Image(index), p.swapchain.RenderTargetView(index)
}

func (p *presenter) BarrierToRenderTarget(index int) gpu.Barrier {
	img := p.swapchain.Image(index)
	img.State = gpu.StatePresent
	_, b, _ := img.Transition(gpu.StateRenderTarget)
	return b
}

func (p *presenter) BarrierToPresent(index int) gpu.Barrier {
	img := p.swapchain.Image(index)
	img.State = gpu.StateRenderTarget
	_, b, _ := img.Transition(gpu.StatePresent)
	return b
}

func (p *presenter) Present() error {
	if err := p.swapchain.Present(p.syncInterval); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

func (p *presenter) WaitOnSwapchain(ctx context.Context) error {
	if p.fenceTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.fenceTimeout)
			defer cancel()
		}
	}
	return p.swapchain.WaitReady(ctx)
}

func (p *presenter) WaitPreviousFrame(ctx context.Context, r Retirer, index int, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := r.WaitForSlot(ctx, index); err != nil {
		common.Logger().Error("previous frame did not retire", "slot", index, "timeout", timeout, "error", err)
		return err
	}
	return nil
}

func (p *presenter) BeginFrame(ctx context.Context, r Retirer) (int, error) {
	if p.policy != PolicyWaitable {
		return p.AcquireCurrentImage(), nil
	}
	if err := p.WaitOnSwapchain(ctx); err != nil {
		return 0, fmt.Errorf("wait on swapchain: %w", err)
	}
	index := p.AcquireCurrentImage()
	if err := p.WaitPreviousFrame(ctx, r, index, p.fenceTimeout); err != nil {
		return 0, err
	}
	return index, nil
}

func (p *presenter) EndFrame(ctx context.Context, r Retirer) error {
	if err := p.Present(); err != nil {
		return err
	}
	if p.policy == PolicyWaitable {
		return nil
	}
	return p.WaitPreviousFrame(ctx, r, p.AcquireCurrentImage(), p.fenceTimeout)
}

func (p *presenter) Resize(width, height int) error {
	if err := p.swapchain.Resize(width, height); err != nil {
		return fmt.Errorf("resize swapchain: %w", err)
	}
	common.Logger().Info("swapchain resized", "width", width, "height", height)
	return nil
}
