package vectorize

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPathDataFormat(t *testing.T) {
	got := PathData(Trace{{1, 2}, {3, 4}, {10, 200}})
	want := "M 1 2 L 3 4 L 10 200"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestParsePathDataRejectsMalformed(t *testing.T) {
	for _, d := range []string{
		"",
		"L 1 2",
		"M 1 2 L 3",
		"M 1 2 C 3 4",
		"M 1.5 2",
		"M a b",
	} {
		if _, err := ParsePathData(d); !errors.Is(err, ErrMalformedPath) {
			t.Fatalf("expected ErrMalformedPath for %q, got %v", d, err)
		}
	}
}

func TestSVGRoundTrip(t *testing.T) {
	doc := Document{
		Width:  40,
		Height: 30,
		Paths: []ColoredPath{
			{Points: Trace{{0, 0}, {1, 1}, {2, 2}, {3, 3}}, Color: RGB{R: 255}},
			{Points: Trace{{39, 29}, {38, 29}, {37, 28}}, Color: RGB{R: 0x12, G: 0x34, B: 0x56}},
		},
	}

	svg := doc.SVG()
	if !strings.Contains(svg, `viewBox="0 0 40 30"`) {
		t.Fatalf("expected viewBox sized to the image, got:\n%s", svg)
	}
	if n := strings.Count(svg, "<path "); n != 2 {
		t.Fatalf("expected 2 path elements, got %d", n)
	}
	if strings.Count(svg, `fill="none"`) != 2 || strings.Count(svg, `stroke-width="1"`) != 2 {
		t.Fatalf("expected unfilled 1px strokes, got:\n%s", svg)
	}

	parsed, err := ParseSVG(strings.NewReader(svg))
	if err != nil {
		t.Fatalf("parse svg: %v", err)
	}
	if diff := cmp.Diff(doc, parsed); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildWithoutPaths(t *testing.T) {
	if _, err := Build(nil, 10, 10); !errors.Is(err, ErrNoEdgesFound) {
		t.Fatalf("expected ErrNoEdgesFound, got %v", err)
	}
}

func TestParseSVGRejectsShiftedViewBox(t *testing.T) {
	in := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="2 0 10 10" width="10" height="10">` +
		`<path d="M 0 0 L 1 1 L 2 2" stroke="#000000" fill="none" stroke-width="1"/></svg>`
	if _, err := ParseSVG(strings.NewReader(in)); err == nil || !strings.Contains(err.Error(), "origin") {
		t.Fatalf("expected origin error, got %v", err)
	}
}
