package texture

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Texture is a sampled image: the resource and its shader-visible view. Loaded textures stay in
// StatePixelShaderResource for their lifetime.
type Texture struct {
	Resource gpu.Resource
	SRV      gpu.Descriptor
	Width    uint32
	Height   uint32
}

// Valid reports whether t refers to a created texture.
func (t Texture) Valid() bool {
	return t.Resource.Handle.Valid()
}

// loader is the implementation of the Loader interface.
type loader struct {
	device gpu.Device

	// decoded caches staging data by path so re-loading an image skips the decode.
	decoded *lru.Cache[string, common.TextureStagingData]
	// cacheSize is the number of decoded images kept in memory.
	cacheSize int

	mu      sync.Mutex
	byPath  map[string]Texture
	created []Texture
}

// Loader creates sampled textures from image files or pixel data.
type Loader interface {
	// Load decodes the image at path and uploads it. Loading the same path twice returns the
	// same texture.
	//
	// Parameters:
	//   - path: file system path of a png, jpeg, bmp, tiff or webp image
	//
	// Returns:
	//   - Texture: the uploaded texture
	//   - error: error if the file cannot be decoded or the texture cannot be created
	Load(path string) (Texture, error)

	// FromStaging uploads already decoded RGBA8 pixels.
	//
	// Parameters:
	//   - label: the debug label of the texture
	//   - data: the pixels
	//
	// Returns:
	//   - Texture: the uploaded texture
	//   - error: error if the texture cannot be created
	FromStaging(label string, data common.TextureStagingData) (Texture, error)

	// Solid returns a 1x1 texture of color c, used for materials without an image.
	Solid(label string, c [4]uint8) (Texture, error)

	// Destroy releases every texture created by the loader. The GPU must be idle.
	Destroy()
}

var _ Loader = &loader{}

// NewLoader creates a texture loader bound to device.
//
// Parameters:
//   - device: the device textures are created on
//   - options: a variadic list of LoaderBuilderOption functions
//
// Returns:
//   - Loader: the loader
//   - error: error if the decode cache size is not positive
func NewLoader(device gpu.Device, options ...LoaderBuilderOption) (Loader, error) {
	l := &loader{
		device:    device,
		cacheSize: 32,
		byPath:    make(map[string]Texture),
	}
	for _, opt := range options {
		opt(l)
	}
	decoded, err := lru.New[string, common.TextureStagingData](l.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("texture decode cache: %w", err)
	}
	l.decoded = decoded
	return l, nil
}

func (l *loader) Load(path string) (Texture, error) {
	l.mu.Lock()
	if t, ok := l.byPath[path]; ok {
		l.mu.Unlock()
		return t, nil
	}
	l.mu.Unlock()

	data, ok := l.decoded.Get(path)
	if !ok {
		var err error
		data, err = common.DecodeImageFile(path)
		if err != nil {
			return Texture{}, err
		}
		l.decoded.Add(path, data)
	}

	t, err := l.FromStaging(path, data)
	if err != nil {
		return Texture{}, err
	}
	l.mu.Lock()
	l.byPath[path] = t
	l.mu.Unlock()
	return t, nil
}

func (l *loader) FromStaging(label string, data common.TextureStagingData) (Texture, error) {
	t, err := Create(l.device, label, data)
	if err != nil {
		return Texture{}, err
	}
	l.mu.Lock()
	l.created = append(l.created, t)
	l.mu.Unlock()
	common.Logger().Debug("texture loaded", "label", label, "width", data.Width, "height", data.Height)
	return t, nil
}

func (l *loader) Solid(label string, c [4]uint8) (Texture, error) {
	return l.FromStaging(label, common.TextureStagingData{Pixels: c[:], Width: 1, Height: 1})
}

func (l *loader) Destroy() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.created {
		l.device.Descriptors().Release(t.SRV, 0)
		l.device.Destroy(t.Resource.Handle)
	}
	l.created = nil
	clear(l.byPath)
	l.decoded.Purge()
}

// Create uploads RGBA8 pixels into a new sampled texture and creates its shader-visible view.
//
// Parameters:
//   - device: the device to create the texture on
//   - label: the debug label
//   - data: tightly packed RGBA8 pixels
//
// Returns:
//   - Texture: the texture in StatePixelShaderResource
//   - error: error if the pixel data does not match the extent or creation fails
func Create(device gpu.Device, label string, data common.TextureStagingData) (Texture, error) {
	if uint32(len(data.Pixels)) != data.RowPitch()*data.Height {
		return Texture{}, fmt.Errorf("texture %q: %d bytes for %dx%d texels", label, len(data.Pixels), data.Width, data.Height)
	}
	res, err := device.CreateTexture(gpu.TextureDesc{
		Label:        label,
		Width:        data.Width,
		Height:       data.Height,
		Format:       gpu.FormatRGBA8Unorm,
		Usage:        gpu.TextureUsageShaderResource | gpu.TextureUsageCopyDst,
		InitialState: gpu.StatePixelShaderResource,
	})
	if err != nil {
		return Texture{}, fmt.Errorf("texture %q: %w", label, err)
	}
	if err := device.WriteTexture(res.Handle, data.Pixels, data.Width, data.Height); err != nil {
		device.Destroy(res.Handle)
		return Texture{}, fmt.Errorf("texture %q: %w", label, err)
	}
	srv, err := device.CreateView(res, gpu.ViewShaderResource)
	if err != nil {
		device.Destroy(res.Handle)
		return Texture{}, fmt.Errorf("texture %q: %w", label, err)
	}
	return Texture{Resource: res, SRV: srv, Width: data.Width, Height: data.Height}, nil
}
