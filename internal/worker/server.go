package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/vectorflow/internal/config"
	"github.com/dunamismax/vectorflow/internal/domain"
	"github.com/dunamismax/vectorflow/internal/pipeline"
	"github.com/dunamismax/vectorflow/internal/queue"
	"github.com/dunamismax/vectorflow/internal/storage"
	"github.com/dunamismax/vectorflow/internal/store"
	"github.com/dunamismax/vectorflow/internal/telemetry"
	"github.com/dunamismax/vectorflow/internal/vectorize"
	"github.com/dunamismax/vectorflow/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger          *log.Logger
	server          *asynq.Server
	sem             chan struct{}
	localProcessor  processor
	objectProcessor processor
	defaults        vectorize.Options
	webhookClient   webhookSender
	jobStore        store.JobStore
	usageStore      store.UsageStore
	metrics         *metrics
	tracer          trace.Tracer
}

type processor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint string, ev webhook.Event) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	defaults vectorize.Options,
	storageClient *storage.Client,
	webhookClient webhookSender,
	jobStore store.JobStore,
	usageStore store.UsageStore,
) (*Server, error) {
	if storageClient == nil {
		return nil, fmt.Errorf("storage client is required")
	}

	localProcessor, err := pipeline.NewLocalProcessor(workerCfg.LocalOutputDir)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline processor: %w", err)
	}

	objectProcessor, err := pipeline.NewObjectStoreProcessor(
		pipeline.ObjectStoreFetcher{Storage: storageClient},
		pipeline.ObjectStoreEmitter{Storage: storageClient, OutputPrefix: "outputs"},
	)
	if err != nil {
		return nil, fmt.Errorf("initialize object-store processor: %w", err)
	}

	if usageStore == nil {
		if jobAndUsageStore, ok := jobStore.(store.UsageStore); ok {
			usageStore = jobAndUsageStore
		}
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:             make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		localProcessor:  localProcessor,
		objectProcessor: objectProcessor,
		defaults:        defaults,
		webhookClient:   webhookClient,
		jobStore:        jobStore,
		usageStore:      usageStore,
		metrics:         newMetrics(),
		tracer:          otel.Tracer("vectorflow/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeVectorizeImage, s.handleVectorizeImage)
	return s.server.Run(mux)
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleVectorizeImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseVectorizeImagePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %w: %w", err, asynq.SkipRetry)
	}

	ctx = telemetry.ExtractCarrier(ctx, payload.TraceContext)
	ctx, span := s.tracer.Start(ctx, "worker.vectorize_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.source_type", payload.SourceType),
		attribute.Int("job.outputs", len(payload.Outputs)),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(payload.SourceType, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(payload.SourceType, outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	s.logger.Printf(
		"Working... job_id=%s source_type=%s outputs=%d object_key=%s",
		payload.JobID,
		payload.SourceType,
		len(payload.Outputs),
		payload.ObjectKey,
	)

	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusProcessing)

	opts, err := payload.Options.ToOptions(s.defaults)
	if err == nil {
		request := pipeline.Request{
			JobID:      payload.JobID,
			SourceType: payload.SourceType,
			ObjectKey:  payload.ObjectKey,
			Options:    opts,
			Outputs:    payload.Outputs,
		}

		var result pipeline.Result
		switch payload.SourceType {
		case domain.SourceTypeLocalFile:
			result, err = s.localProcessor.Process(ctx, request)
		default:
			result, err = s.objectProcessor.Process(ctx, request)
		}
		if err == nil {
			if err := s.complete(ctx, payload, result, startedAt); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "webhook dispatch failed")
				return err
			}
			outcome = domain.JobStatusSucceeded
			span.SetStatus(codes.Ok, "processed")
			return nil
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "pipeline failed")
	return s.fail(ctx, payload, err)
}

func (s *Server) complete(ctx context.Context, payload queue.VectorizeImagePayload, result pipeline.Result, startedAt time.Time) error {
	s.logger.Printf(
		"Processed job_id=%s outputs=%d paths=%d points=%d size=%dx%d",
		payload.JobID,
		len(result.Outputs),
		result.PathCount,
		result.PointCount,
		result.Width,
		result.Height,
	)
	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusSucceeded)
	s.metrics.pipelineOutputsTotal.Add(float64(len(result.Outputs)))
	s.metrics.pathsTotal.Add(float64(result.PathCount))
	s.metrics.pointsTotal.Add(float64(result.PointCount))
	s.recordUsage(ctx, payload.JobID, result, time.Since(startedAt))

	return s.dispatchWebhook(ctx, payload, webhook.EventJobSucceeded, jobSucceeded{
		Status:      domain.JobStatusSucceeded,
		SourceType:  payload.SourceType,
		ObjectKey:   payload.ObjectKey,
		RequestedAt: payload.RequestedAt,
		CompletedAt: time.Now().UTC(),
		Width:       result.Width,
		Height:      result.Height,
		Paths:       result.PathCount,
		Points:      result.PointCount,
		Outputs:     result.Outputs,
	})
}

// fail records a failed attempt. Permanent failures end the job at once;
// transient ones go back to queued until asynq runs out of retries.
func (s *Server) fail(ctx context.Context, payload queue.VectorizeImagePayload, err error) error {
	reason := pipeline.FailureReason(err)
	permanent := pipeline.IsPermanent(err)
	s.metrics.failuresTotal.WithLabelValues(reason).Inc()

	if !permanent && !isLastAttempt(ctx) {
		s.logger.Printf("job attempt failed job_id=%s reason=%s err=%v", payload.JobID, reason, err)
		s.updateJobStatus(ctx, payload.JobID, domain.JobStatusQueued)
		return fmt.Errorf("run pipeline: %w", err)
	}

	s.logger.Printf("job failed job_id=%s reason=%s permanent=%t err=%v", payload.JobID, reason, permanent, err)
	if s.jobStore != nil {
		if _, markErr := s.jobStore.MarkFailed(ctx, payload.JobID, reason); markErr != nil {
			s.logger.Printf("job status update failed job_id=%s status=%s err=%v", payload.JobID, domain.JobStatusFailed, markErr)
		}
	}
	_ = s.dispatchWebhook(ctx, payload, webhook.EventJobFailed, jobFailed{
		Status:      domain.JobStatusFailed,
		SourceType:  payload.SourceType,
		ObjectKey:   payload.ObjectKey,
		RequestedAt: payload.RequestedAt,
		FailedAt:    time.Now().UTC(),
		Reason:      reason,
		Error:       userFacingError(err),
	})

	if permanent {
		return fmt.Errorf("run pipeline: %w: %w", err, asynq.SkipRetry)
	}
	return fmt.Errorf("run pipeline: %w", err)
}

func isLastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

func userFacingError(err error) string {
	if errors.Is(err, vectorize.ErrNoEdgesFound) {
		return vectorize.ErrNoEdgesFound.Error()
	}
	return err.Error()
}

func (s *Server) updateJobStatus(ctx context.Context, jobID, status string) {
	if s.jobStore == nil {
		return
	}
	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status); err != nil {
		s.logger.Printf("job status update failed job_id=%s status=%s err=%v", jobID, status, err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.VectorizeImagePayload, event string, data any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	ev := webhook.Event{Type: event, JobID: payload.JobID, Data: data}
	if err := s.webhookClient.Send(ctx, payload.WebhookURL, ev); err != nil {
		s.logger.Printf("webhook delivery failed job_id=%s event=%s err=%v", payload.JobID, event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

func (s *Server) recordUsage(ctx context.Context, jobID string, result pipeline.Result, computeDuration time.Duration) {
	if s.usageStore == nil {
		return
	}

	userID := "anonymous"
	if s.jobStore != nil {
		job, ok, err := s.jobStore.Get(ctx, jobID)
		if err != nil {
			s.logger.Printf("usage lookup failed job_id=%s err=%v", jobID, err)
		} else if ok && strings.TrimSpace(job.UserID) != "" {
			userID = job.UserID
		}
	}

	var outputBytes int64
	for _, output := range result.Outputs {
		outputBytes += int64(output.Bytes)
	}
	pixelsProcessed := int64(result.Width) * int64(result.Height)

	computeTimeMS := computeDuration.Milliseconds()
	if computeTimeMS < 1 {
		computeTimeMS = 1
	}

	usage := domain.UsageLog{
		UserID:          userID,
		JobID:           jobID,
		PixelsProcessed: pixelsProcessed,
		PathsEmitted:    int64(result.PathCount),
		PointsEmitted:   int64(result.PointCount),
		OutputBytes:     outputBytes,
		ComputeTimeMS:   computeTimeMS,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.usageStore.CreateUsageLog(ctx, usage); err != nil {
		s.logger.Printf("usage log write failed job_id=%s err=%v", jobID, err)
		return
	}

	s.metrics.pixelsProcessedTotal.Add(float64(pixelsProcessed))
	s.metrics.outputBytesTotal.Add(float64(outputBytes))
	s.metrics.computeTimeMSTotal.Add(float64(computeTimeMS))
}
