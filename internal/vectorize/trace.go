package vectorize

const (
	// MaxTraceLength caps a single walk so dense edge regions cannot
	// produce runaway traces.
	MaxTraceLength = 1000

	// DefaultMinTraceLength is the shortest trace kept as a path.
	DefaultMinTraceLength = 10

	// minWalkLength is the shortest walk TraceEdges returns at all.
	minWalkLength = 3
)

// Point is a pixel coordinate, origin top-left.
type Point struct {
	X, Y int
}

// Trace is an ordered walk through 8-connected edge pixels.
type Trace []Point

// neighbors is the fixed walk priority: E, SE, S, SW, W, NW, N, NE.
// Changing the order changes which traces are produced.
var neighbors = [8]Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

// TraceEdges scans edges in raster order and greedily walks every pixel
// whose strength exceeds threshold into a trace. Each pixel is claimed by
// at most one walk. Walks shorter than three points are discarded, but
// their pixels stay claimed.
func TraceEdges(edges EdgeMap, threshold float64) []Trace {
	w, h := edges.Width, edges.Height
	visited := make([]bool, w*h)

	var traces []Trace
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y*w+x] || float64(edges.Strength(x, y)) <= threshold {
				continue
			}
			if t := walk(edges, x, y, threshold, visited); t != nil {
				traces = append(traces, t)
			}
		}
	}
	return traces
}

func walk(edges EdgeMap, x, y int, threshold float64, visited []bool) Trace {
	w, h := edges.Width, edges.Height
	trace := Trace{{X: x, Y: y}}

	for {
		visited[y*w+x] = true
		if len(trace) >= MaxTraceLength {
			break
		}

		found := false
		for _, d := range neighbors {
			nx, ny := x+d.X, y+d.Y
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			if visited[ny*w+nx] || float64(edges.Strength(nx, ny)) <= threshold {
				continue
			}
			x, y = nx, ny
			trace = append(trace, Point{X: x, Y: y})
			found = true
			break
		}
		if !found {
			break
		}
	}

	if len(trace) < minWalkLength {
		return nil
	}
	return trace
}

// FilterTraces keeps the traces with at least minLength points.
func FilterTraces(traces []Trace, minLength int) []Trace {
	kept := make([]Trace, 0, len(traces))
	for _, t := range traces {
		if len(t) >= minLength {
			kept = append(kept, t)
		}
	}
	return kept
}
