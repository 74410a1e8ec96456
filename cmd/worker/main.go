package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/vectorflow/internal/config"
	"github.com/dunamismax/vectorflow/internal/raster"
	"github.com/dunamismax/vectorflow/internal/storage"
	"github.com/dunamismax/vectorflow/internal/store"
	"github.com/dunamismax/vectorflow/internal/telemetry"
	"github.com/dunamismax/vectorflow/internal/webhook"
	"github.com/dunamismax/vectorflow/internal/worker"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:    "vectorflow-worker",
		ServiceVersion: version,
		Exporter:       cfg.Tracing.Exporter,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		OTLPInsecure:   cfg.Tracing.OTLPInsecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	defaults, err := cfg.Vectorize.Options()
	if err != nil {
		logger.Fatalf("invalid vectorize defaults: %v", err)
	}

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint:            cfg.Storage.Endpoint,
		Access:              cfg.Storage.AccessKey,
		Secret:              cfg.Storage.SecretKey,
		Bucket:              cfg.Storage.Bucket,
		Region:              cfg.Storage.Region,
		UseSSL:              cfg.Storage.UseSSL,
		SourceRetentionDays: cfg.Storage.SourceRetentionDays,
	})
	if err != nil {
		logger.Fatalf("storage client init failed: %v", err)
	}
	bucketCtx, cancelBucket := context.WithTimeout(context.Background(), 15*time.Second)
	if err := storageClient.EnsureBucket(bucketCtx); err != nil {
		logger.Printf("ensure bucket failed bucket=%s err=%v", storageClient.Bucket(), err)
	}
	cancelBucket()

	var jobStore store.JobStore = store.NewMemoryJobStore()
	if cfg.Database.DSN != "" {
		pgStore, err := store.NewPostgresJobStore(context.Background(), cfg.Database.DSN)
		if err != nil {
			logger.Fatalf("postgres store init failed: %v", err)
		}
		defer pgStore.Close()
		jobStore = pgStore
	}

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret:  cfg.Webhook.SigningSecret,
		Timeout:        cfg.Webhook.Timeout,
		MaxAttempts:    cfg.Webhook.MaxAttempts,
		InitialBackoff: cfg.Webhook.InitialBackoff,
		MaxBackoff:     cfg.Webhook.MaxBackoff,
	})

	logger.Printf(
		"starting worker version=%s concurrency=%d max_active_jobs=%d queue=%s redis=%s threshold=%d",
		version,
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActiveJobs,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
		defaults.Threshold,
	)

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, defaults, storageClient, webhookClient, jobStore, nil)
	if err != nil {
		logger.Fatalf("worker init failed: %v", err)
	}
	defer raster.Shutdown()

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	// Run blocks until SIGINT or SIGTERM and drains in-flight tasks.
	if err := srv.Run(); err != nil {
		logger.Printf("worker failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Printf("metrics shutdown failed: %v", err)
	}
}
