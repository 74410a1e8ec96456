//go:build govips && cgo

package raster

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/vectorflow/internal/vectorize"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

func Startup() error {
	startupOnce.Do(func() {
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   128 * 1024 * 1024,
			MaxCacheSize:  100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func newDecoder() Decoder {
	return govipsDecoder{}
}

// govipsDecoder reads anything libvips understands (HEIF, AVIF, JPEG XL
// included) and shrinks it with Lanczos3 before handing pixels over.
type govipsDecoder struct{}

func (govipsDecoder) Decode(ctx context.Context, data []byte) (vectorize.PixelBuffer, error) {
	if err := Validate(data); err != nil {
		return vectorize.PixelBuffer{}, err
	}

	select {
	case <-ctx.Done():
		return vectorize.PixelBuffer{}, ctx.Err()
	default:
	}

	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return vectorize.PixelBuffer{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer img.Close()

	w, h := FitDimensions(img.Width(), img.Height(), vectorize.MaxDimension)
	if w != img.Width() || h != img.Height() {
		scale := math.Min(float64(w)/float64(img.Width()), float64(h)/float64(img.Height()))
		if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
			return vectorize.PixelBuffer{}, fmt.Errorf("resize image: %w", err)
		}
	}

	out, err := img.ToImage(vips.NewDefaultPNGExportParams())
	if err != nil {
		return vectorize.PixelBuffer{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return vectorize.FromImage(Fit(out)), nil
}
