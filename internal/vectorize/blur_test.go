package vectorize

import (
	"bytes"
	"testing"
)

func TestPreprocessKeepsDimensionsAndBorders(t *testing.T) {
	src := NewPixelBuffer(7, 5)
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 37)
	}
	before := src.Clone()

	out := Preprocess(src)

	if out.Width != src.Width || out.Height != src.Height || len(out.Pix) != len(src.Pix) {
		t.Fatalf("expected %dx%d, got %dx%d", src.Width, src.Height, out.Width, out.Height)
	}
	if !bytes.Equal(src.Pix, before.Pix) {
		t.Fatal("expected source buffer to be left untouched")
	}

	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			i := src.Offset(x, y)
			if out.Pix[i+3] != src.Pix[i+3] {
				t.Fatalf("expected alpha preserved at (%d,%d)", x, y)
			}
			border := x == 0 || y == 0 || x == src.Width-1 || y == src.Height-1
			if border && !bytes.Equal(out.Pix[i:i+4], src.Pix[i:i+4]) {
				t.Fatalf("expected border pixel (%d,%d) unchanged", x, y)
			}
		}
	}
}

func TestPreprocessWeightsNeighborhood(t *testing.T) {
	src := solidBuffer(3, 3, RGB{})
	setPixel(src, 1, 1, RGB{R: 160, G: 32, B: 16})
	setPixel(src, 0, 0, RGB{R: 160})
	setPixel(src, 1, 0, RGB{R: 16})

	out := Preprocess(src)

	// center weight 4, edge 2, corner 1, divisor 16
	got := out.RGB(1, 1)
	want := RGB{R: (160*4 + 160 + 16*2) / 16, G: 32 * 4 / 16, B: 16 * 4 / 16}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestPreprocessUniformImageIsStable(t *testing.T) {
	src := solidBuffer(6, 6, RGB{R: 90, G: 120, B: 200})
	out := Preprocess(src)
	if !bytes.Equal(out.Pix, src.Pix) {
		t.Fatal("expected uniform image to be unchanged by blurring")
	}
}
