package vectorize

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func randomBlocks(seed int64, w, h int) PixelBuffer {
	rng := rand.New(rand.NewSource(seed))
	b := NewPixelBuffer(w, h)
	for by := 0; by < h; by += 3 {
		for bx := 0; bx < w; bx += 3 {
			c := RGB{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256))}
			for y := by; y < by+3 && y < h; y++ {
				for x := bx; x < bx+3 && x < w; x++ {
					setPixel(b, x, y, c)
				}
			}
		}
	}
	return b
}

func TestTraceEdgesNeighborPriority(t *testing.T) {
	edges := edgeMapFrom(5, 5,
		Point{1, 1}, Point{2, 1}, Point{1, 2},
	)

	traces := TraceEdges(edges, 10)

	want := []Trace{{{1, 1}, {2, 1}, {1, 2}}}
	if diff := cmp.Diff(want, traces); diff != "" {
		t.Fatalf("unexpected traces (-want +got):\n%s", diff)
	}
}

func TestTraceEdgesDropsShortWalks(t *testing.T) {
	edges := edgeMapFrom(6, 6, Point{1, 1}, Point{2, 1}, Point{4, 4})
	if traces := TraceEdges(edges, 0); len(traces) != 0 {
		t.Fatalf("expected no traces, got %v", traces)
	}
}

func TestTraceEdgesThresholdIsExclusive(t *testing.T) {
	edges := edgeMapFrom(6, 3, Point{1, 1}, Point{2, 1}, Point{3, 1}, Point{4, 1})
	if traces := TraceEdges(edges, 255); len(traces) != 0 {
		t.Fatalf("expected strength equal to threshold to be ignored, got %v", traces)
	}
	if traces := TraceEdges(edges, 254); len(traces) != 1 {
		t.Fatalf("expected one trace, got %d", len(traces))
	}
}

func TestTraceEdgesCapsLength(t *testing.T) {
	const width = 1500
	pts := make([]Point, 0, width)
	for x := 0; x < width; x++ {
		pts = append(pts, Point{x, 1})
	}
	edges := edgeMapFrom(width, 3, pts...)

	traces := TraceEdges(edges, 0)
	if len(traces) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(traces))
	}
	if len(traces[0]) != MaxTraceLength {
		t.Fatalf("expected first trace capped at %d, got %d", MaxTraceLength, len(traces[0]))
	}
	if len(traces[1]) != width-MaxTraceLength {
		t.Fatalf("expected remainder of %d points, got %d", width-MaxTraceLength, len(traces[1]))
	}
	if traces[1][0] != (Point{MaxTraceLength, 1}) {
		t.Fatalf("expected second trace to resume at x=%d, got %v", MaxTraceLength, traces[1][0])
	}
}

func TestTraceEdgesDeterministic(t *testing.T) {
	src := randomBlocks(7, 64, 48)
	edges, err := DetectEdges(Preprocess(src), &src)
	if err != nil {
		t.Fatalf("detect edges: %v", err)
	}

	first := TraceEdges(edges, ScaledThreshold(60))
	second := TraceEdges(edges, ScaledThreshold(60))
	if len(first) == 0 {
		t.Fatal("expected traces from random blocks")
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("expected identical traces on rerun (-first +second):\n%s", diff)
	}
}

func TestTraceEdgesInvariants(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		src := randomBlocks(seed, 80, 60)
		edges, err := DetectEdges(Preprocess(src), &src)
		if err != nil {
			t.Fatalf("detect edges: %v", err)
		}

		traces := TraceEdges(edges, ScaledThreshold(40))
		seen := make(map[Point]int)
		for i, tr := range traces {
			if len(tr) < minWalkLength || len(tr) > MaxTraceLength {
				t.Fatalf("seed %d: expected trace length in [%d,%d], got %d", seed, minWalkLength, MaxTraceLength, len(tr))
			}
			assertAdjacent(t, tr)
			for _, p := range tr {
				if p.X < 0 || p.X >= src.Width || p.Y < 0 || p.Y >= src.Height {
					t.Fatalf("seed %d: point %v out of bounds", seed, p)
				}
				if other, ok := seen[p]; ok {
					t.Fatalf("seed %d: point %v shared by traces %d and %d", seed, p, other, i)
				}
				seen[p] = i
			}
		}

		for _, tr := range FilterTraces(traces, DefaultMinTraceLength) {
			if len(tr) < DefaultMinTraceLength {
				t.Fatalf("seed %d: expected filtered trace of at least %d points, got %d", seed, DefaultMinTraceLength, len(tr))
			}
		}
	}
}

func TestFilterTraces(t *testing.T) {
	traces := []Trace{
		make(Trace, 9),
		make(Trace, 10),
		make(Trace, 3),
		make(Trace, 42),
	}
	kept := FilterTraces(traces, 10)
	if len(kept) != 2 || len(kept[0]) != 10 || len(kept[1]) != 42 {
		t.Fatalf("expected traces of 10 and 42 points, got %d traces", len(kept))
	}
}
