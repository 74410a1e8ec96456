// Package vectorize turns a decoded raster image into stroke-only vector
// paths: blur, Sobel edge detection, greedy edge tracing, dominant-color
// sampling and serialization.
//
// Every stage takes its inputs read-only and returns a newly allocated
// result, so independent images can be converted concurrently.
package vectorize

import (
	"context"
)

// Convert runs the whole pipeline on src. It fails with ErrInvalidInput for
// bad buffers or options and ErrNoEdgesFound when nothing survives
// filtering. Other failures are *StageError values wrapping ErrInternal.
func Convert(ctx context.Context, src PixelBuffer, opts Options) (Document, error) {
	var (
		original PixelBuffer
		blurred  PixelBuffer
		edges    EdgeMap
		traces   []Trace
		paths    []ColoredPath
		doc      Document
	)

	stages := []struct {
		stage Stage
		run   func() error
	}{
		{StageValidate, func() error {
			if err := src.Validate(); err != nil {
				return err
			}
			return opts.Validate()
		}},
		{StageMonochrome, func() error {
			original = src
			if opts.ColorMode == ColorModeMono {
				original = Monochrome(src, opts.MonoColor)
			}
			return nil
		}},
		{StagePreprocess, func() error {
			blurred = Preprocess(original)
			return nil
		}},
		{StageDetect, func() error {
			var colorSource *PixelBuffer
			if opts.ColorAware {
				colorSource = &original
			}
			var err error
			edges, err = DetectEdges(blurred, colorSource)
			return err
		}},
		{StageTrace, func() error {
			traces = TraceEdges(edges, ScaledThreshold(opts.Threshold))
			traces = FilterTraces(traces, opts.minTraceLength())
			return nil
		}},
		{StageSample, func() error {
			paths = SampleColors(traces, original, opts.StrokeColor)
			return nil
		}},
		{StageSerialize, func() error {
			var err error
			doc, err = Build(paths, src.Width, src.Height)
			return err
		}},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		if err := runStage(s.stage, s.run); err != nil {
			return Document{}, err
		}
	}
	return doc, nil
}
