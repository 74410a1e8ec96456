package vectorize

import (
	"fmt"
	"io"

	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/document"
	"seehuhn.de/go/pdf/graphics/color"
)

// WritePDF writes d as a single-page PDF whose page measures Width x Height
// points. PDF user space grows upwards, so y coordinates are flipped.
func (d Document) WritePDF(w io.Writer) error {
	paper := &pdf.Rectangle{
		URx: float64(d.Width),
		URy: float64(d.Height),
	}

	page, err := document.WriteSinglePage(w, paper, pdf.V1_7, nil)
	if err != nil {
		return fmt.Errorf("create pdf page: %w", err)
	}

	page.SetLineWidth(StrokeWidth)
	for _, p := range d.Paths {
		page.SetStrokeColor(color.DeviceRGB{
			float64(p.Color.R) / 255,
			float64(p.Color.G) / 255,
			float64(p.Color.B) / 255,
		})
		for i, pt := range p.Points {
			x, y := float64(pt.X), float64(d.Height-pt.Y)
			if i == 0 {
				page.MoveTo(x, y)
			} else {
				page.LineTo(x, y)
			}
		}
		page.Stroke()
	}

	if err := page.Close(); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
