package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/vectorflow/internal/domain"
	"github.com/dunamismax/vectorflow/internal/raster"
	"github.com/dunamismax/vectorflow/internal/vectorize"
)

const SourceTypeLocalFile = domain.SourceTypeLocalFile

var (
	ErrUnsupportedSourceType = errors.New("unsupported source_type")
	ErrUnsupportedFormat     = errors.New("unsupported output format")
)

type Request struct {
	JobID      string
	SourceType string
	ObjectKey  string
	Options    vectorize.Options
	Outputs    []domain.OutputSpec
}

type Output struct {
	OutputID    string `json:"output_id"`
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
	Path        string `json:"path"`
	Bytes       int    `json:"bytes"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Success     bool   `json:"success"`
}

type Result struct {
	Outputs     []Output
	SourceBytes int
	Width       int
	Height      int
	PathCount   int
	PointCount  int
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, spec domain.OutputSpec, data []byte, width, height int) (Output, error)
}

type Processor struct {
	fetcher Fetcher
	decoder raster.Decoder
	emitter Emitter
}

// NewProcessor wires a processor around the build's raster decoder. A
// processor without fetcher or emitter can still Vectorize in memory.
func NewProcessor(fetcher Fetcher, emitter Emitter) (*Processor, error) {
	if err := raster.Startup(); err != nil {
		return nil, fmt.Errorf("start raster runtime: %w", err)
	}
	return &Processor{
		fetcher: fetcher,
		decoder: raster.NewDecoder(),
		emitter: emitter,
	}, nil
}

func NewLocalProcessor(outputDir string) (*Processor, error) {
	return NewProcessor(LocalFileFetcher{}, LocalFileEmitter{OutputDir: outputDir})
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return Result{}, errors.New("job_id is required")
	}
	if len(req.Outputs) == 0 {
		return Result{}, errors.New("outputs must contain at least one entry")
	}
	if p.fetcher == nil || p.emitter == nil {
		return Result{}, errors.New("processor has no fetcher or emitter")
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	doc, err := p.Vectorize(ctx, sourceBytes, req.Options)
	if err != nil {
		return Result{}, err
	}

	out := Result{
		Outputs:     make([]Output, 0, len(req.Outputs)),
		SourceBytes: len(sourceBytes),
		Width:       doc.Width,
		Height:      doc.Height,
		PathCount:   len(doc.Paths),
		PointCount:  doc.PointCount(),
	}
	for _, spec := range req.Outputs {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		encoded, err := Encode(doc, spec.Format)
		if err != nil {
			return Result{}, fmt.Errorf("encode stage output=%s format=%s: %w", spec.ID, spec.Format, err)
		}

		written, err := p.emitter.Emit(ctx, req, spec, encoded, doc.Width, doc.Height)
		if err != nil {
			return Result{}, fmt.Errorf("emit stage output=%s format=%s: %w", spec.ID, spec.Format, err)
		}
		out.Outputs = append(out.Outputs, written)
	}

	return out, nil
}

// Vectorize decodes an encoded image and traces it.
func (p *Processor) Vectorize(ctx context.Context, source []byte, opts vectorize.Options) (vectorize.Document, error) {
	buf, err := p.decoder.Decode(ctx, source)
	if err != nil {
		return vectorize.Document{}, fmt.Errorf("decode stage: %w", err)
	}

	doc, err := vectorize.Convert(ctx, buf, opts)
	if err != nil {
		return vectorize.Document{}, fmt.Errorf("vectorize stage: %w", err)
	}
	return doc, nil
}

// IsPermanent reports whether retrying err with the same input is futile.
func IsPermanent(err error) bool {
	return errors.Is(err, vectorize.ErrInvalidInput) ||
		errors.Is(err, vectorize.ErrNoEdgesFound) ||
		errors.Is(err, raster.ErrDecode) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrUnsupportedSourceType)
}

// FailureReason maps err onto a short machine-readable reason.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, vectorize.ErrNoEdgesFound):
		return "no_edges_found"
	case errors.Is(err, raster.ErrDecode):
		return "decode_failed"
	case errors.Is(err, vectorize.ErrInvalidInput), errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrUnsupportedSourceType):
		return "invalid_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	info, err := os.Stat(req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("stat input file %s: %w", req.ObjectKey, err)
	}
	if info.Size() > raster.MaxUploadBytes {
		return nil, fmt.Errorf("%w: input file %s is %d bytes", vectorize.ErrInvalidInput, req.ObjectKey, info.Size())
	}

	data, err := os.ReadFile(req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.ObjectKey, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, spec domain.OutputSpec, data []byte, width, height int) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}
	if strings.TrimSpace(spec.ID) == "" {
		return Output{}, errors.New("output id is required")
	}

	jobDir := filepath.Join(e.OutputDir, sanitizePathToken(req.JobID))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	format := domain.NormalizeFormat(spec.Format)
	fullPath := filepath.Join(jobDir, outputFilename(spec))
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return Output{
		OutputID:    spec.ID,
		Format:      format,
		ContentType: ContentType(format),
		Path:        fullPath,
		Bytes:       len(data),
		Width:       width,
		Height:      height,
		Success:     true,
	}, nil
}

func outputFilename(spec domain.OutputSpec) string {
	return fmt.Sprintf("%s.%s", sanitizePathToken(spec.ID), domain.NormalizeFormat(spec.Format))
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
