package texture

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T) software.Device {
	t.Helper()
	d := software.NewDevice(software.WithRasterWorkers(1))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestSolidTexture(t *testing.T) {
	d := newDevice(t)
	l, err := NewLoader(d)
	require.NoError(t, err)
	defer l.Destroy()

	tex, err := l.Solid("white", [4]uint8{255, 255, 255, 255})
	require.NoError(t, err)
	assert.True(t, tex.Valid())
	assert.Equal(t, gpu.StatePixelShaderResource, tex.Resource.State)

	data, err := d.ReadTexture(tex.Resource.Handle)
	require.NoError(t, err)
	assert.Equal(t, [4]float32{1, 1, 1, 1}, data.At(0, 0))
}

func TestLoadDeduplicatesPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.png")
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := range 2 {
		for x := range 2 {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	d := newDevice(t)
	l, err := NewLoader(d, WithDecodeCacheSize(1))
	require.NoError(t, err)
	defer l.Destroy()

	a, err := l.Load(path)
	require.NoError(t, err)
	b, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, a.Resource.Handle, b.Resource.Handle)
	assert.Equal(t, uint32(2), a.Width)

	_, err = l.Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestCreateRejectsShortPixels(t *testing.T) {
	d := newDevice(t)
	_, err := Create(d, "short", common.TextureStagingData{Pixels: make([]byte, 4), Width: 2, Height: 2})
	assert.Error(t, err)
}

func TestCheckerProducerScrolls(t *testing.T) {
	d := newDevice(t)
	p, err := NewCheckerProducer(d, 2, 4, 1, 1)
	require.NoError(t, err)
	defer p.Destroy()

	c := p.(*checker)
	now := c.start
	c.now = func() time.Time { return now }

	assert.NotEqual(t, p.Texture(0).Resource.Handle, p.Texture(1).Resource.Handle)
	before, err := d.ReadTexture(p.Texture(1).Resource.Handle)
	require.NoError(t, err)

	// Half a second scrolls by one cell, flipping the parity of every texel.
	now = now.Add(500 * time.Millisecond)
	require.NoError(t, p.Update(context.Background(), 1, nil))
	after, err := d.ReadTexture(p.Texture(1).Resource.Handle)
	require.NoError(t, err)
	assert.NotEqual(t, before.At(0, 0), after.At(0, 0))
	assert.Equal(t, before.At(1, 0), after.At(0, 0))
}

func TestNewLoaderRejectsEmptyDecodeCache(t *testing.T) {
	_, err := NewLoader(newDevice(t), WithDecodeCacheSize(0))
	assert.ErrorContains(t, err, "texture decode cache")
}
