package vectorize

// StrokeWidth is the stroke width of every emitted path, in pixels.
const StrokeWidth = 1

// ColoredPath is a trace and the color it is stroked with.
type ColoredPath struct {
	Points Trace
	Color  RGB
}

// Document is the vector result of one conversion, sized to the source
// image in pixels.
type Document struct {
	Width  int
	Height int
	Paths  []ColoredPath
}

// Build wraps paths into a Document. An empty path set is reported as
// ErrNoEdgesFound rather than producing an empty drawing.
func Build(paths []ColoredPath, width, height int) (Document, error) {
	if len(paths) == 0 {
		return Document{}, ErrNoEdgesFound
	}
	return Document{Width: width, Height: height, Paths: paths}, nil
}

// PointCount returns the total number of points across all paths.
func (d Document) PointCount() int {
	n := 0
	for _, p := range d.Paths {
		n += len(p.Points)
	}
	return n
}
