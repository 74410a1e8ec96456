package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/vectorflow/internal/domain"
	"github.com/dunamismax/vectorflow/internal/pipeline"
	"github.com/dunamismax/vectorflow/internal/raster"
	"github.com/dunamismax/vectorflow/internal/vectorize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const noEdgesHint = "lower the threshold to keep weaker edges"

// handleConvert vectorizes the request body synchronously. The body is the
// raw image, or a multipart form with the image in the "image" field.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if s.converter == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "conversion is unavailable"})
		return
	}

	format, opts, err := parseConvertQuery(r.URL.Query(), s.defaults)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	data, err := readUpload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.metrics.uploadBytes.Observe(float64(len(data)))

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("vectorflow.format", format),
		attribute.Int("vectorflow.threshold", opts.Threshold),
		attribute.Int("vectorflow.upload_bytes", len(data)),
	)

	start := time.Now()
	doc, err := s.converter.Vectorize(r.Context(), data, opts)
	var encoded []byte
	if err == nil {
		encoded, err = pipeline.Encode(doc, format)
	}
	if err != nil {
		reason := pipeline.FailureReason(err)
		s.metrics.observeConversion(format, reason, time.Since(start), 0)
		span.SetAttributes(attribute.String("vectorflow.failure_reason", reason))
		s.writeConversionError(w, reason, err)
		return
	}

	s.metrics.observeConversion(format, "ok", time.Since(start), doc.PointCount())
	span.SetAttributes(
		attribute.Int("vectorflow.paths", len(doc.Paths)),
		attribute.Int("vectorflow.points", doc.PointCount()),
	)
	w.Header().Set("Content-Type", pipeline.ContentType(format))
	w.Header().Set("X-Vectorflow-Paths", strconv.Itoa(len(doc.Paths)))
	w.Header().Set("X-Vectorflow-Points", strconv.Itoa(doc.PointCount()))
	w.Header().Set("X-Vectorflow-Size", fmt.Sprintf("%dx%d", doc.Width, doc.Height))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded)
}

// writeConversionError maps a conversion failure to its status code.
func (s *Server) writeConversionError(w http.ResponseWriter, reason string, err error) {
	switch {
	case errors.Is(err, vectorize.ErrNoEdgesFound):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  vectorize.ErrNoEdgesFound.Error(),
			"reason": reason,
			"hint":   noEdgesHint,
		})
	case errors.Is(err, raster.ErrDecode):
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{
			"error":  raster.ErrDecode.Error(),
			"reason": reason,
		})
	case errors.Is(err, vectorize.ErrInvalidInput), errors.Is(err, pipeline.ErrUnsupportedFormat):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  err.Error(),
			"reason": reason,
		})
	default:
		s.logger.Printf("conversion failed err=%v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "conversion failed",
			"reason": reason,
		})
	}
}

func parseConvertQuery(q url.Values, defaults vectorize.Options) (string, vectorize.Options, error) {
	format := domain.NormalizeFormat(q.Get("format"))
	if !domain.IsSupportedFormat(format) {
		return "", vectorize.Options{}, fmt.Errorf("%w: %q", pipeline.ErrUnsupportedFormat, format)
	}

	var co domain.ConversionOptions
	if v := strings.TrimSpace(q.Get("threshold")); v != "" {
		threshold, err := strconv.Atoi(v)
		if err != nil {
			return "", vectorize.Options{}, fmt.Errorf("threshold must be an integer: %q", v)
		}
		co.Threshold = &threshold
	}
	if v := strings.TrimSpace(q.Get("color_aware")); v != "" {
		aware, err := strconv.ParseBool(v)
		if err != nil {
			return "", vectorize.Options{}, fmt.Errorf("color_aware must be a boolean: %q", v)
		}
		co.ColorAware = &aware
	}
	co.StrokeColor = q.Get("stroke_color")
	co.ColorMode = q.Get("color_mode")
	co.MonoColor = q.Get("mono_color")

	opts, err := co.ToOptions(defaults)
	if err != nil {
		return "", vectorize.Options{}, err
	}
	return format, opts, nil
}

func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	// Multipart framing needs headroom beyond the image itself.
	r.Body = http.MaxBytesReader(w, r.Body, raster.MaxUploadBytes+64<<10)

	var body io.Reader = r.Body
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && strings.HasPrefix(mediaType, "multipart/") {
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("%w: multipart field \"image\" is required", vectorize.ErrInvalidInput)
		}
		defer file.Close()
		body = io.LimitReader(file, raster.MaxUploadBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: image exceeds %d bytes", vectorize.ErrInvalidInput, raster.MaxUploadBytes)
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return data, nil
}
