package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dunamismax/vectorflow/internal/domain"
	"github.com/dunamismax/vectorflow/internal/id"
	"github.com/dunamismax/vectorflow/internal/pipeline"
	"github.com/dunamismax/vectorflow/internal/queue"
	"github.com/dunamismax/vectorflow/internal/raster"
	"github.com/dunamismax/vectorflow/internal/storage"
	"github.com/dunamismax/vectorflow/internal/store"
	"github.com/dunamismax/vectorflow/internal/telemetry"
	"github.com/dunamismax/vectorflow/internal/vectorize"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger                *log.Logger
	queueClient           queueEnqueuer
	jobStore              store.JobStore
	storage               ObjectStorage
	converter             Converter
	defaults              vectorize.Options
	presignTTL            time.Duration
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	metrics               *metrics
	tracer                trace.Tracer
	mux                   *http.ServeMux
}

type Config struct {
	PresignTTL   time.Duration
	UserIDHeader string
	Defaults     vectorize.Options
	Converter    Converter
	RateLimiter  RateLimiter
	Tracer       trace.Tracer
}

// Converter turns an encoded image into a traced document.
type Converter interface {
	Vectorize(ctx context.Context, source []byte, opts vectorize.Options) (vectorize.Document, error)
}

type queueEnqueuer interface {
	EnqueueVectorizeImage(ctx context.Context, payload queue.VectorizeImagePayload) (*asynq.TaskInfo, error)
}

// ObjectStorage issues presigned URLs and inspects uploaded sources.
type ObjectStorage interface {
	PresignUpload(ctx context.Context, objectKey string, policy storage.UploadPolicy) (storage.Upload, error)
	PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	StatObject(ctx context.Context, objectKey string) (storage.ObjectInfo, bool, error)
}

func NewServer(logger *log.Logger, queueClient queueEnqueuer, jobStore store.JobStore, storage ObjectStorage, cfg Config) *Server {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	if strings.TrimSpace(cfg.UserIDHeader) == "" {
		cfg.UserIDHeader = "X-User-ID"
	}
	if cfg.Defaults == (vectorize.Options{}) {
		cfg.Defaults = vectorize.DefaultOptions()
	}
	if storage == nil {
		storage = unavailableObjectStorage{}
	}

	s := &Server{
		logger:                logger,
		queueClient:           queueClient,
		jobStore:              jobStore,
		storage:               storage,
		converter:             cfg.Converter,
		defaults:              cfg.Defaults,
		presignTTL:            cfg.PresignTTL,
		rateLimiter:           cfg.RateLimiter,
		rateLimitUserIDHeader: cfg.UserIDHeader,
		metrics:               newMetrics(),
		tracer:                cfg.Tracer,
		mux:                   http.NewServeMux(),
	}
	s.routes()
	return s
}

type unavailableObjectStorage struct{}

func (unavailableObjectStorage) PresignUpload(_ context.Context, _ string, _ storage.UploadPolicy) (storage.Upload, error) {
	return storage.Upload{}, errors.New("object storage is unavailable")
}

func (unavailableObjectStorage) PresignedGetURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errors.New("object storage is unavailable")
}

func (unavailableObjectStorage) StatObject(_ context.Context, _ string) (storage.ObjectInfo, bool, error) {
	return storage.ObjectInfo{}, false, errors.New("object storage is unavailable")
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("POST /v1/jobs/{id}/start", s.handleStartJob)
	s.mux.HandleFunc("POST /v1/convert", s.handleConvert)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	jobID := id.New()
	sourceType := strings.ToLower(strings.TrimSpace(req.SourceType))
	objectKey := strings.TrimSpace(req.ObjectKey)
	upload := map[string]any{"state": "not_required"}

	if sourceType == domain.SourceTypeS3Presigned {
		objectKey = storage.SourceKey(jobID)
		presigned, err := s.storage.PresignUpload(r.Context(), objectKey, storage.UploadPolicy{
			MaxBytes:          raster.MaxUploadBytes,
			ContentTypePrefix: "image/",
			Expiry:            s.presignTTL,
		})
		if err != nil {
			s.logger.Printf("presign upload failed job_id=%s err=%v", jobID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate upload form"})
			return
		}
		upload = map[string]any{
			"state":      "ready",
			"url":        presigned.URL,
			"method":     presigned.Method,
			"fields":     presigned.Fields,
			"file_field": "file",
			"max_bytes":  raster.MaxUploadBytes,
			"expires_at": presigned.ExpiresAt,
		}
	}
	upload["object_key"] = objectKey

	job := domain.Job{
		ID:         jobID,
		UserID:     strings.TrimSpace(r.Header.Get(s.rateLimitUserIDHeader)),
		Status:     domain.JobStatusCreated,
		SourceType: sourceType,
		WebhookURL: req.WebhookURL,
		Options:    req.Options,
		Outputs:    req.Outputs,
		ObjectKey:  objectKey,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.jobStore.Create(r.Context(), job); err != nil {
		s.logger.Printf("create job failed job_id=%s err=%v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create job"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"status":     job.Status,
		"upload":     upload,
		"start_url":  fmt.Sprintf("/v1/jobs/%s/start", job.ID),
		"status_url": fmt.Sprintf("/v1/jobs/%s", job.ID),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}

	outputs := make([]map[string]string, 0, len(job.Outputs))
	for _, spec := range job.Outputs {
		format := domain.NormalizeFormat(spec.Format)
		out := map[string]string{
			"id":           spec.ID,
			"format":       format,
			"content_type": pipeline.ContentType(format),
		}
		if job.Status == domain.JobStatusSucceeded && job.SourceType == domain.SourceTypeS3Presigned {
			key := pipeline.ObjectKey("", job.ID, spec)
			out["object_key"] = key
			if u, err := s.storage.PresignedGetURL(r.Context(), key, s.presignTTL); err == nil {
				out["download_url"] = u
			} else {
				s.logger.Printf("presign download failed job_id=%s output=%s err=%v", job.ID, spec.ID, err)
			}
		}
		outputs = append(outputs, out)
	}

	body := map[string]any{
		"job_id":      job.ID,
		"status":      job.Status,
		"source_type": job.SourceType,
		"object_key":  job.ObjectKey,
		"options":     job.Options,
		"outputs":     outputs,
		"created_at":  job.CreatedAt,
		"updated_at":  job.UpdatedAt,
	}
	if job.Error != "" {
		body["error"] = job.Error
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}

	if err := s.verifySourceExists(r.Context(), job); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	payload := queue.VectorizeImagePayload{
		JobID:        job.ID,
		SourceType:   job.SourceType,
		WebhookURL:   job.WebhookURL,
		ObjectKey:    job.ObjectKey,
		Options:      job.Options,
		Outputs:      job.Outputs,
		RequestedAt:  time.Now().UTC(),
		TraceContext: telemetry.InjectCarrier(r.Context()),
	}

	taskInfo, err := s.queueClient.EnqueueVectorizeImage(r.Context(), payload)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job already started"})
		return
	}
	if err != nil {
		s.logger.Printf("enqueue failed job_id=%s err=%v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue job"})
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	if _, err := s.jobStore.UpdateStatus(r.Context(), job.ID, domain.JobStatusQueued); err != nil {
		s.logger.Printf("update status failed job_id=%s err=%v", job.ID, err)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"status":      domain.JobStatusQueued,
		"queue":       taskInfo.Queue,
		"task_id":     taskInfo.ID,
		"state":       taskInfo.State.String(),
		"enqueued_at": taskInfo.NextProcessAt,
	})
}

func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) (domain.Job, bool) {
	jobID := strings.TrimSpace(r.PathValue("id"))
	if jobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return domain.Job{}, false
	}

	job, ok, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Printf("fetch job failed job_id=%s err=%v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		return domain.Job{}, false
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return domain.Job{}, false
	}
	return job, true
}

func (s *Server) verifySourceExists(ctx context.Context, job domain.Job) error {
	switch job.SourceType {
	case domain.SourceTypeLocalFile:
		if _, err := os.Stat(job.ObjectKey); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("source object is missing: %s", job.ObjectKey)
			}
			return fmt.Errorf("source object check failed: %w", err)
		}
		return nil
	default:
		info, exists, err := s.storage.StatObject(ctx, job.ObjectKey)
		if err != nil {
			return fmt.Errorf("source object check failed: %w", err)
		}
		if !exists {
			return fmt.Errorf("source object is missing: %s", job.ObjectKey)
		}
		if info.Size > raster.MaxUploadBytes {
			return fmt.Errorf("source object is %d bytes, maximum is %d", info.Size, raster.MaxUploadBytes)
		}
		return nil
	}
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
