package pipeline

import (
	"bytes"
	"fmt"

	"github.com/dunamismax/vectorflow/internal/domain"
	"github.com/dunamismax/vectorflow/internal/preview"
	"github.com/dunamismax/vectorflow/internal/vectorize"
)

// Encode renders doc in the requested output format.
func Encode(doc vectorize.Document, format string) ([]byte, error) {
	switch domain.NormalizeFormat(format) {
	case domain.FormatSVG:
		var buf bytes.Buffer
		if err := doc.WriteSVG(&buf); err != nil {
			return nil, fmt.Errorf("write svg: %w", err)
		}
		return buf.Bytes(), nil
	case domain.FormatPDF:
		var buf bytes.Buffer
		if err := doc.WritePDF(&buf); err != nil {
			return nil, fmt.Errorf("write pdf: %w", err)
		}
		return buf.Bytes(), nil
	case domain.FormatPNG:
		return preview.Render(doc, preview.White)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func ContentType(format string) string {
	switch domain.NormalizeFormat(format) {
	case domain.FormatPDF:
		return "application/pdf"
	case domain.FormatPNG:
		return "image/png"
	default:
		return "image/svg+xml"
	}
}
