package particle

import (
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/go-gl/mathgl/mgl32"
)

// ElementSize is the stride of one element in the element buffer.
const ElementSize = 48

// Element field byte offsets.
const (
	offIsActive   = 0
	offLifeTime   = 4
	offElapsed    = 8
	offColorIndex = 12
	offPosition   = 16
	offVelocity   = 32
)

// Element is the host view of one particle record.
type Element struct {
	Active     bool
	LifeTime   float32
	Elapsed    float32
	ColorIndex uint32
	Position   mgl32.Vec4
	Velocity   mgl32.Vec4
}

// DecodeElement reads element i of an element buffer.
func DecodeElement(buf []byte, i uint32) Element {
	o := int(i) * ElementSize
	return Element{
		Active:     common.Uint32At(buf, o+offIsActive) != 0,
		LifeTime:   common.Float32At(buf, o+offLifeTime),
		Elapsed:    common.Float32At(buf, o+offElapsed),
		ColorIndex: common.Uint32At(buf, o+offColorIndex),
		Position:   common.Vec4At(buf, o+offPosition),
		Velocity:   common.Vec4At(buf, o+offVelocity),
	}
}

func encodeElement(buf []byte, i uint32, e Element) {
	o := int(i) * ElementSize
	var active uint32
	if e.Active {
		active = 1
	}
	common.PutUint32(buf, o+offIsActive, active)
	common.PutFloat32s(buf, o+offLifeTime, e.LifeTime, e.Elapsed)
	common.PutUint32(buf, o+offColorIndex, e.ColorIndex)
	common.PutVec4(buf, o+offPosition, e.Position)
	common.PutVec4(buf, o+offVelocity, e.Velocity)
}

// counterAlignment is the placement alignment of the counter block behind the index list.
const counterAlignment = 4096

// IndexListLayout locates the alive-index list and its counters inside one buffer: capacity u32
// indices, padded to counterAlignment, followed by a 16 byte block holding two counters.
type IndexListLayout struct {
	Capacity uint32
}

// CounterOffset returns the byte offset of the counter block.
func (l IndexListLayout) CounterOffset() uint64 {
	return common.Align(uint64(l.Capacity)*4, counterAlignment)
}

// Size returns the buffer size in bytes.
func (l IndexListLayout) Size() uint64 {
	return l.CounterOffset() + 16
}

// counterWord returns the u32 index of counter c, 0 or 1.
func (l IndexListLayout) counterWord(c uint32) int {
	return int(l.CounterOffset()/4) + int(c&1)
}

func wordAt(buf []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(buf[i*4:])
}

func putWord(buf []byte, i int, v uint32) {
	binary.LittleEndian.PutUint32(buf[i*4:], v)
}

// pcg is the PCG hash used by both the WGSL kernels and their host references.
func pcg(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

// random returns a value in [0, 1) derived from an element index, a frame index and a stream.
func random(index, frame, stream uint32) float32 {
	h := pcg(index ^ pcg(frame+stream*0x9e3779b9))
	return float32(h>>8) / (1 << 24)
}
