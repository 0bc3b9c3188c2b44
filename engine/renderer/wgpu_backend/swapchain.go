package wgpu_backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// swapchain keeps its own ring of back buffers and copies the current one into the acquired
// surface texture on Present. WebGPU surfaces hand out one texture at a time and never expose a
// stable image index, so the ring gives frames persistent render target views.
type swapchain struct {
	dev  *deviceImpl
	desc gpu.SwapchainDesc

	mu          sync.Mutex
	images      []gpu.Resource
	views       []gpu.Descriptor
	current     int
	presentMode wgpu.PresentMode
	alphaMode   wgpu.CompositeAlphaMode
	surfaceFmt  wgpu.TextureFormat

	// presents holds the queue serial of each present, oldest first, bounded by MaxFrameLatency.
	presents []uint64
}

var _ gpu.Swapchain = &swapchain{}

func newSwapchain(d *deviceImpl, desc gpu.SwapchainDesc) (*swapchain, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("create swapchain %q: non-positive extent %dx%d", desc.Label, desc.Width, desc.Height)
	}
	caps := d.surface.GetCapabilities(d.adapter)
	if len(caps.Formats) == 0 || len(caps.AlphaModes) == 0 {
		return nil, fmt.Errorf("create swapchain %q: surface reports no formats", desc.Label)
	}
	format, ok := surfaceFormat(caps.Formats[0])
	if !ok {
		return nil, fmt.Errorf("create swapchain %q: unsupported surface format %s", desc.Label, caps.Formats[0].String())
	}
	desc.Format = format
	desc.ImageCount = max(desc.ImageCount, 2)
	if desc.Waitable {
		desc.MaxFrameLatency = max(desc.MaxFrameLatency, 1)
	}

	s := &swapchain{
		dev:         d,
		desc:        desc,
		presentMode: presentMode(desc.PresentMode),
		alphaMode:   caps.AlphaModes[0],
		surfaceFmt:  caps.Formats[0],
	}
	s.configure()
	if err := s.createImages(); err != nil {
		return nil, err
	}
	common.Logger().Info("swapchain created", "images", desc.ImageCount, "width", desc.Width, "height", desc.Height,
		"format", caps.Formats[0].String(), "waitable", desc.Waitable)
	return s, nil
}

func (s *swapchain) configure() {
	s.dev.surface.Configure(s.dev.adapter, s.dev.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopyDst,
		Format:      s.surfaceFmt,
		Width:       uint32(s.desc.Width),
		Height:      uint32(s.desc.Height),
		PresentMode: s.presentMode,
		AlphaMode:   s.alphaMode,
	})
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

func (s *swapchain) ImageCount() int    { return s.desc.ImageCount }
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
	if s.dev.tracker != nil {
		if st, ok := s.dev.tracker.State(img.Handle); ok {
			img.State = st
		}
	}
	return img
}

func (s *swapchain) RenderTargetView(index int) gpu.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views[index]
}

// Present copies the current back buffer into the surface and presents it. A syncInterval of 0
// switches the surface to immediate presentation, anything else to vsync.
func (s *swapchain) Present(syncInterval int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img := s.images[s.current]
	if s.dev.tracker != nil {
		if err := s.dev.tracker.Expect("present", img.Handle, gpu.StatePresent); err != nil {
			return err
		}
	}

	mode := wgpu.PresentModeFifo
	if syncInterval == 0 {
		mode = wgpu.PresentModeImmediate
	}
	if mode != s.presentMode {
		s.presentMode = mode
		s.configure()
	}

	src, ok := s.dev.textureOf(img.Handle)
	if !ok {
		return fmt.Errorf("present: back buffer %d: %w", s.current, gpu.ErrInvalidHandle)
	}
	surfaceTexture, err := s.dev.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("present: acquire surface texture: %w", err)
	}
	defer surfaceTexture.Release()

	encoder, err := s.dev.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "present"})
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	defer encoder.Release()
	encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: src.tex, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyTexture{Texture: surfaceTexture, Aspect: wgpu.TextureAspectAll},
		&wgpu.Extent3D{Width: uint32(s.desc.Width), Height: uint32(s.desc.Height), DepthOrArrayLayers: 1},
	)
	cb, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}

	q := s.dev.queue
	q.mu.Lock()
	q.submitted++
	serial := q.submitted
	q.mu.Unlock()
	q.q.Submit(cb)
	cb.Release()
	s.dev.surface.Present()

	if s.desc.Waitable {
		s.presents = append(s.presents, serial)
		if len(s.presents) > s.desc.MaxFrameLatency {
			s.presents = s.presents[1:]
		}
	}
	s.current = (s.current + 1) % len(s.images)
	return nil
}

// WaitReady blocks until no more than MaxFrameLatency-1 presents are still queued, leaving room
// for one more frame.
func (s *swapchain) WaitReady(ctx context.Context) error {
	if !s.desc.Waitable {
		return nil
	}
	s.mu.Lock()
	var serial uint64
	if len(s.presents) >= s.desc.MaxFrameLatency {
		serial = s.presents[0]
	}
	s.mu.Unlock()
	if serial == 0 {
		return nil
	}
	if err := s.dev.queue.waitSerial(ctx, serial); err != nil {
		return fmt.Errorf("swapchain wait: %w", err)
	}
	return nil
}

// Resize reconfigures the surface and recreates the back buffers. Callers must drain the queue
// first.
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
	s.presents = nil
	s.configure()
	return s.createImages()
}
