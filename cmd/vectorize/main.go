// Command vectorize traces raster images into stroke-only SVG, PDF or PNG
// outlines. It converts a single file, a stdin/stdout pipe, or every image
// under a directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dunamismax/vectorflow/internal/domain"
	"github.com/dunamismax/vectorflow/internal/pipeline"
	"github.com/dunamismax/vectorflow/internal/raster"
	"github.com/dunamismax/vectorflow/internal/vectorize"
	"golang.org/x/term"
)

// pipeName selects stdin or stdout.
const pipeName = "-"

const maxWorkers = 20

var validExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

var (
	source      = flag.String("in", pipeName, "Source image, directory, or - for stdin")
	destination = flag.String("out", pipeName, "Destination file, directory, or - for stdout")
	threshold   = flag.Int("threshold", vectorize.DefaultThreshold, "Edge sensitivity 0-255, lower keeps weaker edges")
	stroke      = flag.String("stroke", "", "Stroke every path with this hex color instead of sampling")
	colorAware  = flag.Bool("color-aware", true, "Use per-channel gradients to find edges between equally bright colors")
	mono        = flag.String("mono", "", "Tint the image into this hex color before tracing")
	minLength   = flag.Int("min-length", vectorize.DefaultMinTraceLength, "Drop traced paths with fewer points (10 or more)")
	format      = flag.String("format", "", "Output format: svg, pdf or png (default from -out extension, else svg)")
	workers     = flag.Int("conc", runtime.NumCPU(), "Number of files to convert concurrently")
)

type converter interface {
	Vectorize(ctx context.Context, source []byte, opts vectorize.Options) (vectorize.Document, error)
}

type result struct {
	path   string
	paths  int
	points int
	err    error
}

func main() {
	logger := log.New(os.Stderr, "[vectorize] ", log.LstdFlags|log.Lmsgprefix)
	flag.Parse()

	opts, err := buildOptions(*threshold, *stroke, *colorAware, *mono, *minLength)
	if err != nil {
		logger.Fatalf("invalid options: %v", err)
	}
	outFormat, err := resolveFormat(*format, *destination)
	if err != nil {
		logger.Fatalf("invalid format: %v", err)
	}

	conv, err := pipeline.NewProcessor(nil, nil)
	if err != nil {
		logger.Fatalf("initialize converter: %v", err)
	}
	defer raster.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var info fs.FileInfo
	if *source == pipeName {
		info, err = os.Stdin.Stat()
	} else {
		info, err = os.Stat(*source)
	}
	if err != nil {
		logger.Fatalf("failed to load the source: %v", err)
	}

	start := time.Now()
	if info.IsDir() {
		n := *workers
		if n <= 0 || n > maxWorkers {
			n = min(runtime.NumCPU(), maxWorkers)
		}
		failed := 0
		for res := range convertDir(ctx, conv, *source, *destination, outFormat, opts, n) {
			if res.err != nil {
				failed++
				logger.Printf("convert failed path=%s err=%v", res.path, res.err)
				continue
			}
			logger.Printf("converted path=%s paths=%d points=%d", res.path, res.paths, res.points)
		}
		logger.Printf("done elapsed=%s failed=%d", time.Since(start).Round(time.Millisecond), failed)
		if failed > 0 {
			stop()
			os.Exit(1)
		}
		return
	}

	doc, err := convertFile(ctx, conv, *source, *destination, outFormat, opts)
	if err != nil {
		if errors.Is(err, vectorize.ErrNoEdgesFound) {
			logger.Printf("hint: try a lower -threshold")
		}
		stop()
		logger.Fatalf("convert failed path=%s err=%v", *source, err)
	}
	logger.Printf("converted path=%s paths=%d points=%d elapsed=%s", *source, len(doc.Paths), doc.PointCount(), time.Since(start).Round(time.Millisecond))
}

func buildOptions(threshold int, stroke string, colorAware bool, mono string, minLength int) (vectorize.Options, error) {
	co := domain.ConversionOptions{
		Threshold:   &threshold,
		StrokeColor: stroke,
		ColorAware:  &colorAware,
		MonoColor:   mono,
	}
	if strings.TrimSpace(mono) != "" {
		co.ColorMode = string(vectorize.ColorModeMono)
	}

	base := vectorize.DefaultOptions()
	base.MinTraceLength = minLength
	return co.ToOptions(base)
}

// resolveFormat prefers the explicit flag, then the destination extension.
func resolveFormat(flagValue, dest string) (string, error) {
	f := strings.TrimSpace(flagValue)
	if f == "" && dest != pipeName {
		f = strings.TrimPrefix(filepath.Ext(dest), ".")
	}
	f = domain.NormalizeFormat(f)
	if !domain.IsSupportedFormat(f) {
		return "", fmt.Errorf("%w: %q", pipeline.ErrUnsupportedFormat, f)
	}
	return f, nil
}

func convertFile(ctx context.Context, conv converter, in, out, format string, opts vectorize.Options) (vectorize.Document, error) {
	data, err := readSource(in)
	if err != nil {
		return vectorize.Document{}, err
	}

	doc, err := conv.Vectorize(ctx, data, opts)
	if err != nil {
		return vectorize.Document{}, err
	}

	encoded, err := pipeline.Encode(doc, format)
	if err != nil {
		return vectorize.Document{}, err
	}
	if err := writeDest(out, format, encoded); err != nil {
		return vectorize.Document{}, err
	}
	return doc, nil
}

// convertDir walks src and converts every supported image with n workers,
// mirroring the directory layout under dest.
func convertDir(ctx context.Context, conv converter, src, dest, format string, opts vectorize.Options, n int) <-chan result {
	paths := make(chan string)
	results := make(chan result)

	go func() {
		defer close(paths)
		err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() || !isValidExtension(filepath.Ext(path)) {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case paths <- path:
			}
			return nil
		})
		if err != nil {
			select {
			case results <- result{path: src, err: fmt.Errorf("walk directory: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			for path := range paths {
				res := result{path: path}
				out, err := outputPath(src, path, dest, format)
				if err == nil {
					var doc vectorize.Document
					doc, err = convertFile(ctx, conv, path, out, format, opts)
					res.paths, res.points = len(doc.Paths), doc.PointCount()
				}
				res.err = err
				results <- res
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

// outputPath maps path under srcRoot to the same relative location under
// destRoot with the format's extension, creating parent directories.
func outputPath(srcRoot, path, destRoot, format string) (string, error) {
	rel, err := filepath.Rel(srcRoot, path)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	out := filepath.Join(destRoot, strings.TrimSuffix(rel, filepath.Ext(rel))+"."+format)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return out, nil
}

func readSource(in string) ([]byte, error) {
	var r io.Reader
	if in == pipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		r = os.Stdin
	} else {
		f, err := os.Open(in)
		if err != nil {
			return nil, fmt.Errorf("unable to open the source file: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, raster.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return data, nil
}

func writeDest(out, format string, data []byte) error {
	if out == pipeName {
		// SVG is text and fine on a terminal, binary formats are not.
		if format != domain.FormatSVG && term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("`-` should be used with a pipe for binary stdout")
		}
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("unable to write the destination file: %w", err)
	}
	return nil
}

func isValidExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, ex := range validExtensions {
		if ex == ext {
			return true
		}
	}
	return false
}
