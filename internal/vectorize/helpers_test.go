package vectorize

import "testing"

func solidBuffer(w, h int, c RGB) PixelBuffer {
	b := NewPixelBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			setPixel(b, x, y, c)
		}
	}
	return b
}

func setPixel(b PixelBuffer, x, y int, c RGB) {
	i := b.Offset(x, y)
	b.Pix[i] = c.R
	b.Pix[i+1] = c.G
	b.Pix[i+2] = c.B
	b.Pix[i+3] = 255
}

// verticalLine draws a 1px white line at column x on black.
func verticalLine(w, h, x int) PixelBuffer {
	b := solidBuffer(w, h, RGB{})
	for y := 0; y < h; y++ {
		setPixel(b, x, y, RGB{R: 255, G: 255, B: 255})
	}
	return b
}

func edgeMapFrom(w, h int, pts ...Point) EdgeMap {
	m := EdgeMap{PixelBuffer: NewPixelBuffer(w, h)}
	for _, p := range pts {
		i := m.Offset(p.X, p.Y)
		m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3] = 255, 255, 255, 255
	}
	return m
}

func assertAdjacent(t *testing.T, tr Trace) {
	t.Helper()
	for i := 1; i < len(tr); i++ {
		dx := tr[i].X - tr[i-1].X
		dy := tr[i].Y - tr[i-1].Y
		if dx < -1 || dx > 1 || dy < -1 || dy > 1 || (dx == 0 && dy == 0) {
			t.Fatalf("expected 8-connected step at %d, got %v -> %v", i, tr[i-1], tr[i])
		}
	}
}
