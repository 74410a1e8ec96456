package vectorize

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// RGB is an opaque 8-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex formats c as #rrggbb.
func (c RGB) Hex() string {
	return "#" + hex.EncodeToString([]byte{c.R, c.G, c.B})
}

// ParseHexColor accepts #rgb or #rrggbb, with or without the leading '#'.
func ParseHexColor(s string) (RGB, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(raw) == 3 {
		raw = string([]byte{raw[0], raw[0], raw[1], raw[1], raw[2], raw[2]})
	}
	if len(raw) != 6 {
		return RGB{}, fmt.Errorf("%w: color %q must be #rgb or #rrggbb", ErrInvalidInput, s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: color %q: %v", ErrInvalidInput, s, err)
	}
	return RGB{R: b[0], G: b[1], B: b[2]}, nil
}

// DominantColor returns the most frequent exact color of src under the
// points of t. Among equally frequent colors the one that appears first
// along the trace wins.
func DominantColor(t Trace, src PixelBuffer) RGB {
	counts := make(map[RGB]int, len(t))
	order := make([]RGB, 0, len(t))
	for _, p := range t {
		c := src.RGB(p.X, p.Y)
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}

	var (
		best      RGB
		bestCount int
	)
	for _, c := range order {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

// SampleColors pairs every trace with its dominant color in src, or with
// override when it is non-nil.
func SampleColors(traces []Trace, src PixelBuffer, override *RGB) []ColoredPath {
	paths := make([]ColoredPath, 0, len(traces))
	for _, t := range traces {
		var c RGB
		if override != nil {
			c = *override
		} else {
			c = DominantColor(t, src)
		}
		paths = append(paths, ColoredPath{Points: t, Color: c})
	}
	return paths
}

// Monochrome returns a copy of src where every pixel is the tint color
// scaled by the pixel's luminance. Alpha is preserved.
func Monochrome(src PixelBuffer, tint RGB) PixelBuffer {
	dst := src.Clone()
	for i := 0; i+3 < len(dst.Pix); i += Channels {
		l := luma(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
		dst.Pix[i] = scaleChannel(tint.R, l)
		dst.Pix[i+1] = scaleChannel(tint.G, l)
		dst.Pix[i+2] = scaleChannel(tint.B, l)
	}
	return dst
}

// luma is the Rec. 601 luminance in integer arithmetic, so equal channels
// map to themselves exactly.
func luma(r, g, b uint8) int {
	return (299*int(r) + 587*int(g) + 114*int(b)) / 1000
}

func scaleChannel(c uint8, l int) uint8 {
	return uint8((int(c)*l + 127) / 255)
}
