package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/dunamismax/vectorflow/internal/pipeline"
	"github.com/dunamismax/vectorflow/internal/vectorize"
	"github.com/google/go-cmp/cmp"
)

func writeSquarePNG(t *testing.T, path string, blank bool) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if !blank && x >= 12 && x < 36 && y >= 12 && y < 36 {
				c = color.RGBA{A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func newConverter(t *testing.T) *pipeline.Processor {
	t.Helper()
	conv, err := pipeline.NewProcessor(nil, nil)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return conv
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		flag, dest, want string
		wantErr          bool
	}{
		{flag: "", dest: "-", want: "svg"},
		{flag: "", dest: "out.pdf", want: "pdf"},
		{flag: "PNG", dest: "out.pdf", want: "png"},
		{flag: "", dest: "outdir", want: "svg"},
		{flag: "gif", dest: "-", wantErr: true},
		{flag: "", dest: "out.eps", wantErr: true},
	}

	for _, tc := range tests {
		got, err := resolveFormat(tc.flag, tc.dest)
		if tc.wantErr {
			if !errors.Is(err, pipeline.ErrUnsupportedFormat) {
				t.Fatalf("resolveFormat(%q, %q): expected ErrUnsupportedFormat, got %v", tc.flag, tc.dest, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("resolveFormat(%q, %q): unexpected error: %v", tc.flag, tc.dest, err)
		}
		if got != tc.want {
			t.Fatalf("resolveFormat(%q, %q): expected %q, got %q", tc.flag, tc.dest, tc.want, got)
		}
	}
}

func TestBuildOptions(t *testing.T) {
	opts, err := buildOptions(90, "#ff0000", false, "", 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Threshold != 90 || opts.ColorAware || opts.MinTraceLength != 25 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.StrokeColor == nil || *opts.StrokeColor != (vectorize.RGB{R: 255}) {
		t.Fatalf("expected red stroke override, got %v", opts.StrokeColor)
	}

	mono, err := buildOptions(vectorize.DefaultThreshold, "", true, "336699", vectorize.DefaultMinTraceLength)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mono.ColorMode != vectorize.ColorModeMono || mono.MonoColor != (vectorize.RGB{R: 0x33, G: 0x66, B: 0x99}) {
		t.Fatalf("expected mono mode with #336699, got %+v", mono)
	}

	if _, err := buildOptions(300, "", true, "", 10); !errors.Is(err, vectorize.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for threshold 300, got %v", err)
	}
	if _, err := buildOptions(vectorize.DefaultThreshold, "", true, "", 4); !errors.Is(err, vectorize.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for min length 4, got %v", err)
	}
}

func TestConvertFileWritesSVG(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "square.png")
	out := filepath.Join(dir, "square.svg")
	writeSquarePNG(t, in, false)

	doc, err := convertFile(context.Background(), newConverter(t), in, out, "svg", vectorize.DefaultOptions())
	if err != nil {
		t.Fatalf("convertFile failed: %v", err)
	}
	if len(doc.Paths) == 0 {
		t.Fatalf("expected traced paths")
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(data), "<svg") || !strings.Contains(string(data), `viewBox="0 0 48 48"`) {
		t.Fatalf("unexpected svg output: %.120s", data)
	}
}

func TestConvertFileBlankImage(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "blank.png")
	writeSquarePNG(t, in, true)

	_, err := convertFile(context.Background(), newConverter(t), in, filepath.Join(dir, "blank.svg"), "svg", vectorize.DefaultOptions())
	if !errors.Is(err, vectorize.ErrNoEdgesFound) {
		t.Fatalf("expected ErrNoEdgesFound, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "blank.svg")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file for failed conversion, got %v", statErr)
	}
}

func TestConvertDirMirrorsLayout(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeSquarePNG(t, filepath.Join(src, "a.png"), false)
	writeSquarePNG(t, filepath.Join(src, "nested", "b.png"), false)
	writeSquarePNG(t, filepath.Join(src, "blank.png"), true)
	if err := os.WriteFile(filepath.Join(src, "notes.txt"), []byte("skip me"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	var converted, failed []string
	for res := range convertDir(context.Background(), newConverter(t), src, dest, "pdf", vectorize.DefaultOptions(), 2) {
		rel, _ := filepath.Rel(src, res.path)
		if res.err != nil {
			failed = append(failed, rel)
			continue
		}
		converted = append(converted, rel)
	}
	sort.Strings(converted)

	if diff := cmp.Diff([]string{"a.png", filepath.Join("nested", "b.png")}, converted); diff != "" {
		t.Fatalf("converted files mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"blank.png"}, failed); diff != "" {
		t.Fatalf("failed files mismatch (-want +got):\n%s", diff)
	}

	for _, name := range []string{"a.pdf", filepath.Join("nested", "b.pdf")} {
		data, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("expected output %s: %v", name, err)
		}
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			t.Fatalf("expected pdf header in %s", name)
		}
	}
}

func TestIsValidExtension(t *testing.T) {
	for _, ext := range []string{".png", ".JPG", ".webp", ".tiff"} {
		if !isValidExtension(ext) {
			t.Fatalf("expected %s to be valid", ext)
		}
	}
	for _, ext := range []string{".txt", ".svg", ""} {
		if isValidExtension(ext) {
			t.Fatalf("expected %q to be invalid", ext)
		}
	}
}
