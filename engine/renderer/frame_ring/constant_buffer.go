package frame_ring

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

// ConstantBufferAlignment is the size granularity of constant buffer instances.
const ConstantBufferAlignment uint64 = 256

// ConstantBuffer is one logical constant block with an independent upload buffer per frame slot.
type ConstantBuffer interface {
	// Label returns the debug label of the buffer.
	Label() string

	// Size returns the aligned size of every instance in bytes.
	Size() uint64

	// Count returns the number of instances, equal to the ring's slot count.
	Count() int

	// Handle returns the upload buffer backing slot.
	Handle(slot int) gpu.Handle

	// Write copies data into the instance of slot. The GPU observes it when work recorded in the same
	// slot executes.
	//
	// Parameters:
	//   - slot: the frame slot index
	//   - data: at most Size() bytes
	//
	// Returns:
	//   - error: an error if the slot is out of range or data exceeds the instance size
	Write(slot int, data []byte) error

	// Read copies the mapped contents of the instance of slot.
	Read(slot int) ([]byte, error)

	// Destroy releases every instance. The caller must have idled the GPU.
	Destroy()
}

// constantBuffer is the implementation of ConstantBuffer.
type constantBuffer struct {
	// device is the device the instances were created on.
	device gpu.Device
	// label is a debug label added for convenience.
	label string
	// size is the per-instance size rounded up to ConstantBufferAlignment.
	size uint64
	// instances holds one upload buffer per frame slot.
	instances []gpu.Resource
}

var _ ConstantBuffer = &constantBuffer{}

// NewConstantBuffer creates count upload buffer instances of size bytes each.
//
// Parameters:
//   - device: the device to allocate on
//   - label: a debug label
//   - size: the constant block size in bytes, rounded up to ConstantBufferAlignment
//   - count: the number of frame slots
//
// Returns:
//   - ConstantBuffer: the replicated buffer
//   - error: an error if any instance fails to allocate
func NewConstantBuffer(device gpu.Device, label string, size uint64, count int) (ConstantBuffer, error) {
	cb := &constantBuffer{
		device: device,
		label:  label,
		size:   common.Align(max(size, 1), ConstantBufferAlignment),
	}
	for i := range count {
		r, err := device.CreateBuffer(gpu.BufferDesc{
			Label: fmt.Sprintf("%s[%d]", label, i),
			Size:  cb.size,
			Usage: gpu.BufferUsageConstant | gpu.BufferUsageUpload,
		})
		if err != nil {
			cb.Destroy()
			return nil, fmt.Errorf("constant buffer %q slot %d: %w", label, i, err)
		}
		cb.instances = append(cb.instances, r)
	}
	return cb, nil
}

func (c *constantBuffer) Label() string { return c.label }
func (c *constantBuffer) Size() uint64  { return c.size }
func (c *constantBuffer) Count() int    { return len(c.instances) }

func (c *constantBuffer) Handle(slot int) gpu.Handle {
	if slot < 0 || slot >= len(c.instances) {
		return gpu.NilHandle
	}
	return c.instances[slot].Handle
}

func (c *constantBuffer) Write(slot int, data []byte) error {
	if slot < 0 || slot >= len(c.instances) {
		return fmt.Errorf("write %q: slot %d out of range [0,%d)", c.label, slot, len(c.instances))
	}
	if uint64(len(data)) > c.size {
		return fmt.Errorf("write %q: %d bytes exceeds instance size %d", c.label, len(data), c.size)
	}
	return c.device.WriteBuffer(c.instances[slot].Handle, 0, data)
}

func (c *constantBuffer) Read(slot int) ([]byte, error) {
	if slot < 0 || slot >= len(c.instances) {
		return nil, fmt.Errorf("read %q: slot %d out of range [0,%d)", c.label, slot, len(c.instances))
	}
	return c.device.ReadBuffer(c.instances[slot].Handle, 0, c.size)
}

func (c *constantBuffer) Destroy() {
	for _, r := range c.instances {
		c.device.Destroy(r.Handle)
	}
	c.instances = nil
}
