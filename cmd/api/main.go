package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/vectorflow/internal/api"
	"github.com/dunamismax/vectorflow/internal/config"
	"github.com/dunamismax/vectorflow/internal/pipeline"
	"github.com/dunamismax/vectorflow/internal/queue"
	"github.com/dunamismax/vectorflow/internal/raster"
	"github.com/dunamismax/vectorflow/internal/ratelimit"
	"github.com/dunamismax/vectorflow/internal/storage"
	"github.com/dunamismax/vectorflow/internal/store"
	"github.com/dunamismax/vectorflow/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:    "vectorflow-api",
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

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	var jobStore store.JobStore = store.NewMemoryJobStore()
	if cfg.Database.DSN != "" {
		pgStore, err := store.NewPostgresJobStore(context.Background(), cfg.Database.DSN)
		if err != nil {
			logger.Fatalf("postgres store init failed: %v", err)
		}
		defer pgStore.Close()
		jobStore = pgStore
		logger.Printf("job store=postgres")
	} else {
		logger.Printf("job store=memory")
	}

	var objectStorage api.ObjectStorage
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
		logger.Printf("object storage disabled err=%v", err)
	} else {
		objectStorage = storageClient
	}

	var limiter api.RateLimiter
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer redisClient.Close()

		bucket, err := ratelimit.NewRedisTokenBucket(redisClient, ratelimit.Config{
			Capacity: cfg.RateLimit.Capacity,
			Window:   cfg.RateLimit.Window,
		})
		if err != nil {
			logger.Fatalf("rate limiter init failed: %v", err)
		}
		limiter = bucket
		logger.Printf("rate limit capacity=%d window=%s", cfg.RateLimit.Capacity, cfg.RateLimit.Window)
	}

	converter, err := pipeline.NewProcessor(nil, nil)
	if err != nil {
		logger.Fatalf("converter init failed: %v", err)
	}
	defer raster.Shutdown()

	app := api.NewServer(logger, queueClient, jobStore, objectStorage, api.Config{
		PresignTTL:   cfg.API.PresignTTL,
		UserIDHeader: cfg.API.UserIDHeader,
		Defaults:     defaults,
		Converter:    converter,
		RateLimiter:  limiter,
		Tracer:       otel.Tracer("vectorflow/api"),
	})

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s version=%s", cfg.API.Addr, version)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}
