// Package codec turns uploaded bytes into the in-memory forms the render
// engine works on: decoded bitmaps and interleaved 16-bit PCM.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	// Formats accepted for slide images.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds a single decoded slide (about 64 MiB as NRGBA).
const DefaultMaxPixels = 16 << 20

var (
	// ErrEmptyImage is returned for images with a zero width or height.
	ErrEmptyImage = errors.New("image has zero width or height")
	// ErrImageTooLarge is returned when the header announces more than MaxPixels.
	ErrImageTooLarge = errors.New("image exceeds the pixel limit")
)

// Images decodes still images. The zero value uses DefaultMaxPixels.
type Images struct {
	MaxPixels int
}

// DecodeImage checks the header before decoding so oversized inputs are
// rejected without allocating their pixel buffers.
func (d Images) DecodeImage(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrEmptyImage
	}
	limit := d.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if cfg.Width*cfg.Height > limit {
		return nil, fmt.Errorf("%w: %dx%d %s", ErrImageTooLarge, cfg.Width, cfg.Height, format)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	return img, nil
}
