package texture

import (
	"context"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

// FrameProducer is a texture whose contents change every frame, like a decoded video stream.
// It keeps one texture per frame slot so a slot's upload never overwrites texels a frame still
// in flight is sampling.
type FrameProducer interface {
	// Texture returns the texture to sample while recording slot.
	Texture(slot int) Texture

	// Update refreshes the texture of slot. It is called once per frame, after the slot has retired
	// and before the geometry pass that samples it, on the slot's command context.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - slot: the frame slot being recorded
	//   - cmd: the slot's command context
	//
	// Returns:
	//   - error: error if the frame could not be transferred
	Update(ctx context.Context, slot int, cmd gpu.CommandContext) error

	// Destroy releases the producer's textures. The GPU must be idle.
	Destroy()
}

// checker is a FrameProducer drawing a scrolling two-color checkerboard.
type checker struct {
	device   gpu.Device
	textures []Texture
	width    uint32
	height   uint32
	cell     uint32
	start    time.Time
	now      func() time.Time
	colors   [2][4]uint8
	pixels   []byte
}

var _ FrameProducer = &checker{}

// NewCheckerProducer creates an animated checkerboard producer with one texture per frame slot.
//
// Parameters:
//   - device: the device to create textures on
//   - slots: the number of frame slots
//   - width, height: the texture extent
//   - cell: the edge length of one checker cell in texels
//
// Returns:
//   - FrameProducer: the producer
//   - error: error if a texture cannot be created
func NewCheckerProducer(device gpu.Device, slots int, width, height, cell uint32) (FrameProducer, error) {
	c := &checker{
		device: device,
		width:  width,
		height: height,
		cell:   max(cell, 1),
		now:    time.Now,
		colors: [2][4]uint8{{230, 230, 230, 255}, {40, 40, 160, 255}},
		pixels: make([]byte, width*height*4),
	}
	c.start = c.now()
	c.fill(0)
	for i := range slots {
		t, err := Create(device, fmt.Sprintf("checker[%d]", i), common.TextureStagingData{Pixels: c.pixels, Width: width, Height: height})
		if err != nil {
			c.Destroy()
			return nil, err
		}
		c.textures = append(c.textures, t)
	}
	return c, nil
}

func (c *checker) Texture(slot int) Texture {
	return c.textures[slot%len(c.textures)]
}

func (c *checker) Update(ctx context.Context, slot int, cmd gpu.CommandContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	offset := uint32(c.now().Sub(c.start).Seconds() * float64(c.cell) * 2)
	c.fill(offset)
	t := c.Texture(slot)
	if err := c.device.WriteTexture(t.Resource.Handle, c.pixels, c.width, c.height); err != nil {
		return fmt.Errorf("transfer checker frame: %w", err)
	}
	return nil
}

func (c *checker) fill(offset uint32) {
	for y := range c.height {
		for x := range c.width {
			parity := ((x+offset)/c.cell + y/c.cell) & 1
			copy(c.pixels[(y*c.width+x)*4:], c.colors[parity][:])
		}
	}
}

func (c *checker) Destroy() {
	for _, t := range c.textures {
		c.device.Descriptors().Release(t.SRV, 0)
		c.device.Destroy(t.Resource.Handle)
	}
	c.textures = nil
}
