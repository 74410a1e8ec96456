package vectorize

import (
	"errors"
	"testing"
)

func TestDominantColorMajority(t *testing.T) {
	src := solidBuffer(4, 1, RGB{R: 10})
	setPixel(src, 2, 0, RGB{G: 10})

	tr := Trace{{0, 0}, {1, 0}, {2, 0}, {3, 0}}
	if got := DominantColor(tr, src); got != (RGB{R: 10}) {
		t.Fatalf("expected majority red, got %+v", got)
	}
}

func TestDominantColorTieGoesToFirstSeen(t *testing.T) {
	src := solidBuffer(4, 1, RGB{})
	setPixel(src, 0, 0, RGB{B: 200})
	setPixel(src, 1, 0, RGB{R: 200})
	setPixel(src, 2, 0, RGB{R: 200})
	setPixel(src, 3, 0, RGB{B: 200})

	tr := Trace{{0, 0}, {1, 0}, {2, 0}, {3, 0}}
	if got := DominantColor(tr, src); got != (RGB{B: 200}) {
		t.Fatalf("expected first-seen blue to win the tie, got %+v", got)
	}
}

func TestSampleColorsOverride(t *testing.T) {
	src := solidBuffer(3, 1, RGB{R: 1, G: 2, B: 3})
	override := RGB{R: 9}

	paths := SampleColors([]Trace{{{0, 0}, {1, 0}, {2, 0}}}, src, &override)
	if len(paths) != 1 || paths[0].Color != override {
		t.Fatalf("expected override color, got %+v", paths)
	}

	paths = SampleColors([]Trace{{{0, 0}, {1, 0}, {2, 0}}}, src, nil)
	if paths[0].Color != (RGB{R: 1, G: 2, B: 3}) {
		t.Fatalf("expected sampled color, got %+v", paths[0].Color)
	}
}

func TestParseHexColor(t *testing.T) {
	cases := map[string]RGB{
		"#000000":   {},
		"#ff8000":   {R: 255, G: 128},
		"0af":       {G: 0xaa, B: 0xff},
		" #ABCDEF ": {R: 0xab, G: 0xcd, B: 0xef},
	}
	for in, want := range cases {
		got, err := ParseHexColor(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %+v, got %+v", in, want, got)
		}
		if c, _ := ParseHexColor(got.Hex()); c != got {
			t.Fatalf("expected %s to parse back to itself", got.Hex())
		}
	}

	for _, bad := range []string{"", "#12", "#gggggg", "#1234567"} {
		if _, err := ParseHexColor(bad); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %q, got %v", bad, err)
		}
	}
}

func TestMonochromeTintsByLuminance(t *testing.T) {
	src := solidBuffer(2, 1, RGB{R: 255, G: 255, B: 255})
	setPixel(src, 1, 0, RGB{})

	out := Monochrome(src, RGB{B: 255})
	if got := out.RGB(0, 0); got != (RGB{B: 255}) {
		t.Fatalf("expected white to become full tint, got %+v", got)
	}
	if got := out.RGB(1, 0); got != (RGB{}) {
		t.Fatalf("expected black to stay black, got %+v", got)
	}
	if src.RGB(1, 0) != (RGB{}) || src.RGB(0, 0) != (RGB{R: 255, G: 255, B: 255}) {
		t.Fatal("expected source buffer to be left untouched")
	}
}
