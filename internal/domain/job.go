package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"

	FormatSVG = "svg"
	FormatPDF = "pdf"
	FormatPNG = "png"
)

type CreateJobRequest struct {
	SourceType string            `json:"source_type"`
	WebhookURL string            `json:"webhook_url,omitempty"`
	ObjectKey  string            `json:"object_key,omitempty"`
	Options    ConversionOptions `json:"options"`
	Outputs    []OutputSpec      `json:"outputs"`
}

// OutputSpec names one rendering of the traced document.
type OutputSpec struct {
	ID     string `json:"id"`
	Format string `json:"format"`
}

type Job struct {
	ID         string
	UserID     string
	Status     string
	SourceType string
	WebhookURL string
	Options    ConversionOptions
	Outputs    []OutputSpec
	ObjectKey  string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r CreateJobRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.ObjectKey) == "" {
		return errors.New("object_key is required for source_type=local_file")
	}
	if len(r.Outputs) == 0 {
		return errors.New("outputs must contain at least one entry")
	}

	seen := make(map[string]struct{}, len(r.Outputs))
	for i, out := range r.Outputs {
		id := strings.TrimSpace(out.ID)
		if id == "" {
			return fmt.Errorf("outputs[%d].id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("outputs[%d].id %q is duplicated", i, id)
		}
		seen[id] = struct{}{}
		if !IsSupportedFormat(out.Format) {
			return fmt.Errorf("outputs[%d].format %q is not one of svg, pdf, png", i, out.Format)
		}
	}

	if err := r.Options.Validate(); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	return nil
}

// NormalizeFormat lowercases format and defaults an empty value to svg.
func NormalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return FormatSVG
	}
	return format
}

func IsSupportedFormat(format string) bool {
	switch NormalizeFormat(format) {
	case FormatSVG, FormatPDF, FormatPNG:
		return true
	default:
		return false
	}
}
