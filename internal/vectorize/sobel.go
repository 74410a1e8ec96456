package vectorize

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

type kernel [3][3]int

// Sobel operators, see https://en.wikipedia.org/wiki/Sobel_operator
var (
	kernelX = kernel{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}

	kernelY = kernel{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// EdgeMap holds one edge strength per pixel, broadcast into the color
// channels of an opaque PixelBuffer. Source is the unblurred image the map
// was derived from; it is borrowed, not owned.
type EdgeMap struct {
	PixelBuffer
	Source *PixelBuffer
}

// Strength returns the edge strength at (x, y).
func (m EdgeMap) Strength(x, y int) uint8 {
	return m.Pix[m.Offset(x, y)]
}

// DetectEdges computes the Sobel gradient magnitude of the luminance of
// blurred. When original is non-nil the per-channel gradient magnitude of
// original is averaged in as well. Border pixels keep strength zero.
// Neither input is modified.
func DetectEdges(blurred PixelBuffer, original *PixelBuffer) (EdgeMap, error) {
	if original != nil && !original.sameSize(blurred) {
		return EdgeMap{}, fmt.Errorf("%w: original buffer is %dx%d, blurred buffer is %dx%d",
			ErrInvalidInput, original.Width, original.Height, blurred.Width, blurred.Height)
	}

	w, h := blurred.Width, blurred.Height
	intensity := make([]int, w*h)
	for i := range intensity {
		p := blurred.Pix[i*Channels:]
		intensity[i] = luma(p[0], p[1], p[2])
	}

	out := EdgeMap{PixelBuffer: NewPixelBuffer(w, h), Source: original}
	for i := Channels - 1; i < len(out.Pix); i += Channels {
		out.Pix[i] = 255
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var gx, gy int
			var cgx, cgy [3]int

			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					kxv := kernelX[ky+1][kx+1]
					kyv := kernelY[ky+1][kx+1]

					v := intensity[(y+ky)*w+x+kx]
					gx += v * kxv
					gy += v * kyv

					if original != nil {
						i := original.Offset(x+kx, y+ky)
						for c := 0; c < 3; c++ {
							s := int(original.Pix[i+c])
							cgx[c] += s * kxv
							cgy[c] += s * kyv
						}
					}
				}
			}

			magnitude := math.Sqrt(float64(gx*gx + gy*gy))
			if original != nil {
				var sum float64
				for c := 0; c < 3; c++ {
					sum += float64(cgx[c]*cgx[c] + cgy[c]*cgy[c])
				}
				magnitude = (magnitude + math.Sqrt(sum)/3) / 2
			}

			strength := uint8(clamp(magnitude, 0, 255))
			i := out.Offset(x, y)
			out.Pix[i] = strength
			out.Pix[i+1] = strength
			out.Pix[i+2] = strength
		}
	}
	return out, nil
}

func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
