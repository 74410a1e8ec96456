package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dunamismax/vectorflow/internal/domain"
	"github.com/dunamismax/vectorflow/internal/raster"
	"github.com/dunamismax/vectorflow/internal/storage"
	"github.com/dunamismax/vectorflow/internal/vectorize"
)

const (
	SourceTypeS3Presigned = domain.SourceTypeS3Presigned
)

type ObjectStoreFetcher struct {
	Storage *storage.Client
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if f.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	if !strings.EqualFold(req.SourceType, SourceTypeS3Presigned) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	data, err := f.Storage.ReadObject(ctx, req.ObjectKey, raster.MaxUploadBytes)
	if errors.Is(err, storage.ErrObjectTooLarge) {
		return nil, fmt.Errorf("%w: %v", vectorize.ErrInvalidInput, err)
	}
	return data, err
}

type ObjectStoreEmitter struct {
	Storage      *storage.Client
	OutputPrefix string
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, req Request, spec domain.OutputSpec, data []byte, width, height int) (Output, error) {
	if e.Storage == nil {
		return Output{}, errors.New("storage client is required")
	}
	if strings.TrimSpace(spec.ID) == "" {
		return Output{}, errors.New("output id is required")
	}

	format := domain.NormalizeFormat(spec.Format)
	objectKey := ObjectKey(e.OutputPrefix, req.JobID, spec)
	err := e.Storage.WriteObject(ctx, storage.Object{
		Key:         objectKey,
		Data:        data,
		ContentType: ContentType(format),
		Filename:    outputFilename(spec),
		JobID:       req.JobID,
	})
	if err != nil {
		return Output{}, err
	}

	return Output{
		OutputID:    spec.ID,
		Format:      format,
		ContentType: ContentType(format),
		Path:        objectKey,
		Bytes:       len(data),
		Width:       width,
		Height:      height,
		Success:     true,
	}, nil
}

func NewObjectStoreProcessor(fetcher ObjectStoreFetcher, emitter ObjectStoreEmitter) (*Processor, error) {
	if fetcher.Storage == nil || emitter.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	return NewProcessor(fetcher, emitter)
}

// ObjectKey is where an output lands in the bucket.
func ObjectKey(prefix, jobID string, spec domain.OutputSpec) string {
	return path.Join(defaultOutputPrefix(prefix), sanitizePathToken(jobID), outputFilename(spec))
}

func defaultOutputPrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "outputs"
	}
	return prefix
}
