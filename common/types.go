package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// TextureStagingData holds tightly packed RGBA8 pixels ready for upload.
type TextureStagingData struct {
	// Pixels is the RGBA8 pixel data, row-major, 4 bytes per texel.
	Pixels []byte

	// Width is the texture width in texels.
	Width uint32

	// Height is the texture height in texels.
	Height uint32
}

// RowPitch returns the number of bytes per row.
func (t TextureStagingData) RowPitch() uint32 {
	return t.Width * 4
}

// DecodeImage decodes any registered image format (png, jpeg, bmp, tiff, webp) into RGBA8 staging data.
//
// Parameters:
//   - r: the encoded image stream
//
// Returns:
//   - TextureStagingData: the decoded pixels
//   - error: error if the stream is not a supported image
func DecodeImage(r io.Reader) (TextureStagingData, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return ImageToStaging(img), nil
}

// DecodeImageFile opens and decodes an image file.
//
// Parameters:
//   - path: file system path of the image
//
// Returns:
//   - TextureStagingData: the decoded pixels
//   - error: error if the file cannot be opened or decoded
func DecodeImageFile(path string) (TextureStagingData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to open texture file %s: %w", path, err)
	}
	staging, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("%s: %w", path, err)
	}
	return staging, nil
}

// ImageToStaging converts an image to RGBA8 staging data with its origin at (0, 0).
func ImageToStaging(img image.Image) TextureStagingData {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}
}
