package software

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

// swapchain is a ring of host textures. Presenting is a queue operation: the presented image is
// recorded and the latency token returned once all prior work has executed.
type swapchain struct {
	dev  *deviceImpl
	desc gpu.SwapchainDesc

	mu      sync.Mutex
	images  []gpu.Resource
	views   []gpu.Descriptor
	current int

	presentMu sync.Mutex
	presented []int

	tokens chan struct{}
}

// Presented is implemented by the software swapchain. It lists the image indices presented so far
// in queue order.
type Presented interface {
	PresentedImages() []int
}

var _ gpu.Swapchain = &swapchain{}
var _ Presented = &swapchain{}

func newSwapchain(d *deviceImpl, desc gpu.SwapchainDesc) (*swapchain, error) {
	desc.ImageCount = max(desc.ImageCount, 2)
	if desc.Format == gpu.FormatUnknown {
		desc.Format = gpu.FormatRGBA8Unorm
	}
	if desc.Waitable {
		desc.MaxFrameLatency = max(desc.MaxFrameLatency, 1)
	}
	s := &swapchain{dev: d, desc: desc}
	if desc.Waitable {
		s.tokens = make(chan struct{}, desc.MaxFrameLatency)
		for range desc.MaxFrameLatency {
			s.tokens <- struct{}{}
		}
	}
	if err := s.createImages(); err != nil {
		return nil, err
	}
	common.Logger().Info("swapchain created", "images", desc.ImageCount, "width", desc.Width, "height", desc.Height, "waitable", desc.Waitable)
	return s, nil
}

func (s *swapchain) createImages() error {
	s.images = make([]gpu.Resource, s.desc.ImageCount)
	s.views = make([]gpu.Descriptor, s.desc.ImageCount)
	for i := range s.images {
		img, err := s.dev.CreateTexture(gpu.TextureDesc{
			Label:        fmt.Sprintf("%s back buffer %d", s.desc.Label, i),
			Width:        uint32(s.desc.Width),
			Height:       uint32(s.desc.Height),
			Format:       s.desc.Format,
			Usage:        gpu.TextureUsageRenderTarget | gpu.TextureUsageCopySrc,
			InitialState: gpu.StatePresent,
		})
		if err != nil {
			return err
		}
		rtv, err := s.dev.CreateView(img, gpu.ViewRenderTarget)
		if err != nil {
			return err
		}
		s.images[i] = img
		s.views[i] = rtv
	}
	s.current = 0
	return nil
}

func (s *swapchain) ImageCount() int { return s.desc.ImageCount }
func (s *swapchain) Format() gpu.Format { return s.desc.Format }

func (s *swapchain) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc.Width
}

func (s *swapchain) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc.Height
}

func (s *swapchain) CurrentImageIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *swapchain) Image(index int) gpu.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	img := s.images[index]
	if st, ok := s.dev.tracker.State(img.Handle); ok {
		img.State = st
	}
	return img
}

func (s *swapchain) RenderTargetView(index int) gpu.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views[index]
}

func (s *swapchain) Present(syncInterval int) error {
	s.mu.Lock()
	index := s.current
	img := s.images[index]
	s.mu.Unlock()

	if err := s.dev.tracker.Expect("present", img.Handle, gpu.StatePresent); err != nil {
		return err
	}

	err := s.dev.queue.after(func() {
		s.presentMu.Lock()
		s.presented = append(s.presented, index)
		s.presentMu.Unlock()
		if s.tokens != nil {
			select {
			case s.tokens <- struct{}{}:
			default:
			}
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = (s.current + 1) % len(s.images)
	s.mu.Unlock()
	return nil
}

func (s *swapchain) WaitReady(ctx context.Context) error {
	if s.tokens == nil {
		return nil
	}
	select {
	case <-s.tokens:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("swapchain wait: %w", gpu.ErrFenceTimeout)
		}
		return ctx.Err()
	}
}

// Resize recreates the images. Callers must drain the queue first.
func (s *swapchain) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("resize swapchain to %dx%d: non-positive extent", width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, img := range s.images {
		s.dev.descriptors.Release(s.views[i], 0)
		s.dev.Destroy(img.Handle)
	}
	s.dev.descriptors.Reclaim(0)
	s.desc.Width, s.desc.Height = width, height
	return s.createImages()
}

func (s *swapchain) PresentedImages() []int {
	s.presentMu.Lock()
	defer s.presentMu.Unlock()
	return append([]int(nil), s.presented...)
}
