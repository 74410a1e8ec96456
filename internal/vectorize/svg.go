package vectorize

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedPath reports path data that is not an M/L polyline of
// integer coordinates.
var ErrMalformedPath = errors.New("malformed path data")

// PathData renders t as "M x0 y0 L x1 y1 L x2 y2 ...".
func PathData(t Trace) string {
	buf := make([]byte, 0, len(t)*10)
	for i, p := range t {
		if i == 0 {
			buf = append(buf, "M "...)
		} else {
			buf = append(buf, " L "...)
		}
		buf = strconv.AppendInt(buf, int64(p.X), 10)
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, int64(p.Y), 10)
	}
	return string(buf)
}

// ParsePathData is the inverse of PathData. Only absolute M and L commands
// with integer coordinates are accepted, and M must come first.
func ParsePathData(d string) (Trace, error) {
	fields := strings.Fields(d)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedPath)
	}
	if len(fields)%3 != 0 {
		return nil, fmt.Errorf("%w: %d tokens is not a sequence of command x y", ErrMalformedPath, len(fields))
	}

	t := make(Trace, 0, len(fields)/3)
	for i := 0; i < len(fields); i += 3 {
		cmd := fields[i]
		switch {
		case i == 0 && cmd != "M":
			return nil, fmt.Errorf("%w: path must start with M, got %q", ErrMalformedPath, cmd)
		case i > 0 && cmd != "L":
			return nil, fmt.Errorf("%w: unsupported command %q at token %d", ErrMalformedPath, cmd, i)
		}

		x, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: x at token %d: %v", ErrMalformedPath, i+1, err)
		}
		y, err := strconv.Atoi(fields[i+2])
		if err != nil {
			return nil, fmt.Errorf("%w: y at token %d: %v", ErrMalformedPath, i+2, err)
		}
		t = append(t, Point{X: x, Y: y})
	}
	return t, nil
}

// WriteSVG writes d as a standalone SVG document with one unfilled, stroked
// path element per ColoredPath.
func (d Document) WriteSVG(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`+"\n",
		d.Width, d.Height, d.Width, d.Height)
	for _, p := range d.Paths {
		fmt.Fprintf(bw, `  <path d="%s" fill="none" stroke="%s" stroke-width="%d"/>`+"\n",
			PathData(p.Points), p.Color.Hex(), StrokeWidth)
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

// SVG returns the document rendered by WriteSVG.
func (d Document) SVG() string {
	var b strings.Builder
	_ = d.WriteSVG(&b)
	return b.String()
}

type svgElement struct {
	XMLName xml.Name     `xml:"svg"`
	ViewBox string       `xml:"viewBox,attr"`
	Paths   []svgPathTag `xml:"path"`
}

type svgPathTag struct {
	D      string `xml:"d,attr"`
	Stroke string `xml:"stroke,attr"`
}

// ParseSVG reads a document produced by WriteSVG back into a Document.
func ParseSVG(r io.Reader) (Document, error) {
	var el svgElement
	if err := xml.NewDecoder(r).Decode(&el); err != nil {
		return Document{}, fmt.Errorf("decode svg: %w", err)
	}

	var minX, minY int
	var doc Document
	if _, err := fmt.Sscanf(el.ViewBox, "%d %d %d %d", &minX, &minY, &doc.Width, &doc.Height); err != nil {
		return Document{}, fmt.Errorf("parse viewBox %q: %w", el.ViewBox, err)
	}
	if minX != 0 || minY != 0 {
		return Document{}, fmt.Errorf("viewBox %q: origin must be 0 0", el.ViewBox)
	}

	doc.Paths = make([]ColoredPath, 0, len(el.Paths))
	for i, p := range el.Paths {
		points, err := ParsePathData(p.D)
		if err != nil {
			return Document{}, fmt.Errorf("path %d: %w", i, err)
		}
		c, err := ParseHexColor(p.Stroke)
		if err != nil {
			return Document{}, fmt.Errorf("path %d stroke: %w", i, err)
		}
		doc.Paths = append(doc.Paths, ColoredPath{Points: points, Color: c})
	}
	return doc, nil
}
