package vectorize

import (
	"fmt"
	"image"
	"image/draw"
)

const (
	// Channels is the number of interleaved samples per pixel: R, G, B, A.
	Channels = 4

	// MaxDimension is the largest width or height the pipeline accepts.
	// Decoders must scale larger images down before handing them over.
	MaxDimension = 2000
)

// PixelBuffer is a dense, row-major RGBA buffer with non-premultiplied
// 8-bit samples.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPixelBuffer allocates a zeroed buffer of the given size.
func NewPixelBuffer(width, height int) PixelBuffer {
	return PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*Channels),
	}
}

// FromImage copies img into a new buffer whose origin is img.Bounds().Min.
func FromImage(img image.Image) PixelBuffer {
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return PixelBuffer{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pix:    dst.Pix,
	}
}

// Validate checks the size invariants every pipeline stage relies on.
func (b PixelBuffer) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: image dimensions %dx%d must be positive", ErrInvalidInput, b.Width, b.Height)
	}
	if b.Width > MaxDimension || b.Height > MaxDimension {
		return fmt.Errorf("%w: image dimensions %dx%d exceed %d px", ErrInvalidInput, b.Width, b.Height, MaxDimension)
	}
	if want := b.Width * b.Height * Channels; len(b.Pix) != want {
		return fmt.Errorf("%w: pixel data has %d samples, want %d", ErrInvalidInput, len(b.Pix), want)
	}
	return nil
}

// Offset returns the index of the first sample of pixel (x, y).
func (b PixelBuffer) Offset(x, y int) int {
	return (y*b.Width + x) * Channels
}

// RGB returns the color channels of pixel (x, y).
func (b PixelBuffer) RGB(x, y int) RGB {
	i := b.Offset(x, y)
	return RGB{R: b.Pix[i], G: b.Pix[i+1], B: b.Pix[i+2]}
}

// Clone returns a deep copy of b.
func (b PixelBuffer) Clone() PixelBuffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return PixelBuffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Image wraps a copy of b as an *image.NRGBA.
func (b PixelBuffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Clone().Pix,
		Stride: b.Width * Channels,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

func (b PixelBuffer) sameSize(o PixelBuffer) bool {
	return b.Width == o.Width && b.Height == o.Height && len(b.Pix) == len(o.Pix)
}
