package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/dunamismax/vectorflow/internal/vectorize"
)

func TestDecodePNG(t *testing.T) {
	src := buildTestPNG(t, 24, 16)

	buf, err := NewDecoder().Decode(context.Background(), src)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.Width != 24 || buf.Height != 16 {
		t.Fatalf("expected 24x16, got %dx%d", buf.Width, buf.Height)
	}
	if err := buf.Validate(); err != nil {
		t.Fatalf("expected valid buffer, got %v", err)
	}
	if got := buf.RGB(12, 8); got != (vectorize.RGB{R: 127, G: 127, B: 140}) {
		t.Fatalf("expected gradient pixel, got %+v", got)
	}
}

func TestDecodeScalesOversizedImage(t *testing.T) {
	src := buildTestPNG(t, 3000, 1)

	buf, err := NewDecoder().Decode(context.Background(), src)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.Width != vectorize.MaxDimension || buf.Height != 1 {
		t.Fatalf("expected %dx1, got %dx%d", vectorize.MaxDimension, buf.Width, buf.Height)
	}
}

func TestDecodeRejectsInvalidInput(t *testing.T) {
	cases := map[string][]byte{
		"empty":     nil,
		"text":      []byte("hello, this is not an image"),
		"oversized": append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, MaxUploadBytes)...),
	}
	for name, data := range cases {
		if _, err := NewDecoder().Decode(context.Background(), data); !errors.Is(err, vectorize.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestDecodeReportsCorruptImage(t *testing.T) {
	corrupt := append([]byte("\x89PNG\r\n\x1a\n"), []byte("definitely not IHDR")...)
	_, err := NewDecoder().Decode(context.Background(), corrupt)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if errors.Is(err, vectorize.ErrInvalidInput) {
		t.Fatal("expected decode failure to be distinct from invalid input")
	}
}

func TestFitDimensions(t *testing.T) {
	cases := []struct {
		w, h, wantW, wantH int
	}{
		{800, 600, 800, 600},
		{2000, 2000, 2000, 2000},
		{4000, 3000, 2000, 1500},
		{3000, 4500, 1333, 2000},
		{3000, 1, 2000, 1},
	}
	for _, tc := range cases {
		w, h := FitDimensions(tc.w, tc.h, 2000)
		if w != tc.wantW || h != tc.wantH {
			t.Fatalf("fit %dx%d: expected %dx%d, got %dx%d", tc.w, tc.h, tc.wantW, tc.wantH, w, h)
		}
	}
}

func TestContentTypeTIFF(t *testing.T) {
	if ct := ContentType([]byte("II*\x00rest")); ct != "image/tiff" {
		t.Fatalf("expected image/tiff, got %s", ct)
	}
}

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}
