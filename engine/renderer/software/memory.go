package software

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/chewxy/math32"
)

type buffer struct {
	desc gpu.BufferDesc
	data []byte
}

// texture stores every format as float32 RGBA; depth formats keep depth in the red channel.
// Stores into UNORM formats are quantized to 8 bits per channel.
type texture struct {
	desc   gpu.TextureDesc
	texels []float32
}

func newTexture(desc gpu.TextureDesc) *texture {
	return &texture{
		desc:   desc,
		texels: make([]float32, int(desc.Width)*int(desc.Height)*4),
	}
}

func (t *texture) width() int  { return int(t.desc.Width) }
func (t *texture) height() int { return int(t.desc.Height) }

func (t *texture) store(x, y int, c [4]float32) {
	i := (y*t.width() + x) * 4
	if t.desc.Format.IsUnorm() {
		for k := range c {
			c[k] = quantizeUnorm(c[k])
		}
	}
	copy(t.texels[i:i+4], c[:])
}

func (t *texture) load(x, y int) [4]float32 {
	i := (y*t.width() + x) * 4
	return [4]float32{t.texels[i], t.texels[i+1], t.texels[i+2], t.texels[i+3]}
}

func (t *texture) fill(c [4]float32) {
	if t.desc.Format.IsUnorm() {
		for k := range c {
			c[k] = quantizeUnorm(c[k])
		}
	}
	for i := 0; i < len(t.texels); i += 4 {
		copy(t.texels[i:i+4], c[:])
	}
}

func (t *texture) view() *TextureView {
	return &TextureView{Width: t.width(), Height: t.height(), Format: t.desc.Format, texels: t.texels}
}

// upload decodes tightly packed texels of the texture's format.
func (t *texture) upload(src []byte, width, height int) {
	bpt := t.desc.Format.BytesPerTexel()
	for y := range min(height, t.height()) {
		for x := range min(width, t.width()) {
			off := (y*width + x) * bpt
			if off+bpt > len(src) {
				return
			}
			t.store(x, y, decodeTexel(t.desc.Format, src[off:off+bpt]))
		}
	}
}

func decodeTexel(f gpu.Format, b []byte) [4]float32 {
	switch f {
	case gpu.FormatRGBA8Unorm:
		return [4]float32{float32(b[0]) / 255, float32(b[1]) / 255, float32(b[2]) / 255, float32(b[3]) / 255}
	case gpu.FormatBGRA8Unorm:
		return [4]float32{float32(b[2]) / 255, float32(b[1]) / 255, float32(b[0]) / 255, float32(b[3]) / 255}
	case gpu.FormatRGBA32Float:
		return [4]float32{common.Float32At(b, 0), common.Float32At(b, 4), common.Float32At(b, 8), common.Float32At(b, 12)}
	case gpu.FormatRGBA16Float:
		var c [4]float32
		for k := range c {
			c[k] = halfToFloat(binary.LittleEndian.Uint16(b[k*2:]))
		}
		return c
	case gpu.FormatR32Uint:
		return [4]float32{float32(binary.LittleEndian.Uint32(b)), 0, 0, 1}
	case gpu.FormatDepth32Float, gpu.FormatDepth24Plus:
		return [4]float32{common.Float32At(b, 0), 0, 0, 0}
	}
	return [4]float32{}
}

// quantizeUnorm rounds to the nearest 8-bit level. The scale stays in float32 so values such as
// 0.7 land on the same level a GPU writes.
func quantizeUnorm(v float32) float32 {
	v = common.Clamp(v, 0, 1)
	return math32.Round(v*255) / 255
}

func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h) & 0x3ff
	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3ff
	case exp == 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	}
	return math.Float32frombits(sign | (exp+112)<<23 | mant<<13)
}
