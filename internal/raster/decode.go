// Package raster decodes uploaded image bytes into the pixel buffers the
// vectorize pipeline consumes, scaling oversized images down first.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/vectorflow/internal/vectorize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxUploadBytes bounds the encoded payload accepted for conversion.
const MaxUploadBytes = 10 << 20

var ErrDecode = errors.New("failed to load image, please ensure it is a valid image file")

type Decoder interface {
	Decode(ctx context.Context, data []byte) (vectorize.PixelBuffer, error)
}

// NewDecoder returns the decoder selected at build time: libvips with the
// govips tag, the pure Go codecs otherwise.
func NewDecoder() Decoder {
	return newDecoder()
}

// Validate rejects payloads that must never reach a decoder.
func Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: no image data provided", vectorize.ErrInvalidInput)
	}
	if len(data) > MaxUploadBytes {
		return fmt.Errorf("%w: image is %d bytes, maximum is %d", vectorize.ErrInvalidInput, len(data), MaxUploadBytes)
	}
	if ct := ContentType(data); !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("%w: content type %s is not an image", vectorize.ErrInvalidInput, ct)
	}
	return nil
}

// ContentType sniffs data, adding TIFF which net/http does not recognize.
func ContentType(data []byte) string {
	if bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")) {
		return "image/tiff"
	}
	return http.DetectContentType(data)
}

// FitDimensions scales w x h down to fit within limit x limit, preserving
// the aspect ratio. Sizes already within the limit are returned unchanged.
func FitDimensions(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	ratio := math.Min(float64(limit)/float64(w), float64(limit)/float64(h))
	fw := int(math.Floor(float64(w) * ratio))
	fh := int(math.Floor(float64(h) * ratio))
	return max(1, fw), max(1, fh)
}

// Fit downsizes img so neither side exceeds vectorize.MaxDimension.
func Fit(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := FitDimensions(bounds.Dx(), bounds.Dy(), vectorize.MaxDimension)
	if w == bounds.Dx() && h == bounds.Dy() {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

type stdlibDecoder struct{}

func (stdlibDecoder) Decode(ctx context.Context, data []byte) (vectorize.PixelBuffer, error) {
	if err := Validate(data); err != nil {
		return vectorize.PixelBuffer{}, err
	}

	select {
	case <-ctx.Done():
		return vectorize.PixelBuffer{}, ctx.Err()
	default:
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return vectorize.PixelBuffer{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return vectorize.FromImage(Fit(img)), nil
}
