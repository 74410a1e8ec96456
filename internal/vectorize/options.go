package vectorize

import (
	"fmt"
	"strings"
)

const (
	DefaultThreshold = 128

	// ThresholdScale maps the user-facing 0..255 sensitivity onto the edge
	// strength scale. Sobel magnitudes run far above raw intensity values.
	ThresholdScale = 0.3
)

type ColorMode string

const (
	ColorModeOriginal ColorMode = "original"
	ColorModeMono     ColorMode = "mono"
)

// ParseColorMode accepts "original" or "mono"; the empty string means
// original.
func ParseColorMode(s string) (ColorMode, error) {
	switch ColorMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ColorModeOriginal:
		return ColorModeOriginal, nil
	case ColorModeMono:
		return ColorModeMono, nil
	default:
		return "", fmt.Errorf("%w: unsupported color mode %q", ErrInvalidInput, s)
	}
}

// Options controls a single conversion.
type Options struct {
	// Threshold is the edge sensitivity in [0, 255]. Lower values keep
	// weaker edges.
	Threshold int

	// StrokeColor, when set, replaces dominant-color sampling: every path is
	// stroked with this color.
	StrokeColor *RGB

	// ColorAware adds per-channel gradients of the original image to the
	// intensity gradient so that edges between equally bright colors
	// survive.
	ColorAware bool

	// ColorMode "mono" tints the image by luminance into MonoColor before
	// edge detection and color sampling.
	ColorMode ColorMode
	MonoColor RGB

	// MinTraceLength drops traces with fewer points. Zero means the default.
	MinTraceLength int
}

func DefaultOptions() Options {
	return Options{
		Threshold:      DefaultThreshold,
		ColorAware:     true,
		ColorMode:      ColorModeOriginal,
		MonoColor:      RGB{B: 255},
		MinTraceLength: DefaultMinTraceLength,
	}
}

func (o Options) Validate() error {
	if o.Threshold < 0 || o.Threshold > 255 {
		return fmt.Errorf("%w: threshold %d outside [0,255]", ErrInvalidInput, o.Threshold)
	}
	if o.MinTraceLength != 0 && (o.MinTraceLength < DefaultMinTraceLength || o.MinTraceLength > MaxTraceLength) {
		return fmt.Errorf("%w: min trace length %d outside [%d,%d]",
			ErrInvalidInput, o.MinTraceLength, DefaultMinTraceLength, MaxTraceLength)
	}
	if _, err := ParseColorMode(string(o.ColorMode)); err != nil {
		return err
	}
	return nil
}

func (o Options) minTraceLength() int {
	if o.MinTraceLength <= 0 {
		return DefaultMinTraceLength
	}
	return o.MinTraceLength
}

// ScaledThreshold converts a user threshold into an edge-strength cutoff.
func ScaledThreshold(threshold int) float64 {
	return float64(threshold) * ThresholdScale
}
