// Package preview rasterizes a vectorized document back into a PNG so a
// caller can eyeball the traced outlines without an SVG viewer.
package preview

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/dunamismax/vectorflow/internal/vectorize"
	"github.com/gogpu/gg"
)

// White is the default canvas color.
var White = vectorize.RGB{R: 255, G: 255, B: 255}

// Render strokes every path of doc onto a Width x Height canvas filled
// with background and returns the PNG encoding.
func Render(doc vectorize.Document, background vectorize.RGB) ([]byte, error) {
	if doc.Width <= 0 || doc.Height <= 0 {
		return nil, fmt.Errorf("%w: preview canvas %dx%d", vectorize.ErrInvalidInput, doc.Width, doc.Height)
	}

	dc := gg.NewContext(doc.Width, doc.Height)
	defer dc.Close()

	dc.ClearWithColor(gg.FromColor(toColor(background)))
	dc.SetLineWidth(vectorize.StrokeWidth)

	for i, p := range doc.Paths {
		if len(p.Points) == 0 {
			continue
		}
		dc.SetColor(toColor(p.Color))
		// Pixel centers keep a 1px stroke on a single pixel column/row.
		dc.MoveTo(float64(p.Points[0].X)+0.5, float64(p.Points[0].Y)+0.5)
		for _, pt := range p.Points[1:] {
			dc.LineTo(float64(pt.X)+0.5, float64(pt.Y)+0.5)
		}
		if err := dc.Stroke(); err != nil {
			return nil, fmt.Errorf("stroke path %d: %w", i, err)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

func toColor(c vectorize.RGB) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}
