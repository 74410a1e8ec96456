package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/vectorflow/internal/vectorize"
	"github.com/hibiken/asynq"
)

type Config struct {
	API       APIConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Tracing   TracingConfig
	Vectorize VectorizeConfig
}

type APIConfig struct {
	Addr         string
	PresignTTL   time.Duration
	UserIDHeader string
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency    int
	MaxActiveJobs  int
	LocalOutputDir string
	MetricsAddr    string
}

type StorageConfig struct {
	Endpoint            string
	AccessKey           string
	SecretKey           string
	Bucket              string
	Region              string
	UseSSL              bool
	SourceRetentionDays int
}

type DatabaseConfig struct {
	DSN string
}

type RateLimitConfig struct {
	Enabled  bool
	Capacity int
	Window   time.Duration
}

type WebhookConfig struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

// VectorizeConfig holds the service-wide conversion defaults that requests
// may override.
type VectorizeConfig struct {
	Threshold   int
	StrokeColor string
	ColorAware  bool
}

// Options resolves the configured defaults into conversion options.
func (v VectorizeConfig) Options() (vectorize.Options, error) {
	opts := vectorize.DefaultOptions()
	opts.Threshold = v.Threshold
	opts.ColorAware = v.ColorAware
	if s := strings.TrimSpace(v.StrokeColor); s != "" {
		c, err := vectorize.ParseHexColor(s)
		if err != nil {
			return vectorize.Options{}, fmt.Errorf("VECTORIZE_STROKE_COLOR: %w", err)
		}
		opts.StrokeColor = &c
	}
	if err := opts.Validate(); err != nil {
		return vectorize.Options{}, fmt.Errorf("vectorize defaults: %w", err)
	}
	return opts, nil
}

func Load() Config {
	defaultWorkerSlots := max(1, runtime.NumCPU()/2)

	return Config{
		API: APIConfig{
			Addr:         env("VECTORFLOW_API_ADDR", ":8080"),
			PresignTTL:   envDuration("VECTORFLOW_PRESIGN_TTL", 15*time.Minute),
			UserIDHeader: env("VECTORFLOW_USER_ID_HEADER", "X-User-ID"),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency:    envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveJobs:  envInt("WORKER_MAX_ACTIVE_JOBS", defaultWorkerSlots),
			LocalOutputDir: env("WORKER_LOCAL_OUTPUT_DIR", "./.vectorflow-output"),
			MetricsAddr:    env("WORKER_METRICS_ADDR", ":9091"),
		},
		Storage: StorageConfig{
			Endpoint:            env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:           env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:           env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:              env("MINIO_BUCKET", "vectorflow-jobs"),
			Region:              env("MINIO_REGION", "us-east-1"),
			UseSSL:              envBool("MINIO_USE_SSL", false),
			SourceRetentionDays: envInt("STORAGE_SOURCE_RETENTION_DAYS", 7),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:  envBool("RATE_LIMIT_ENABLED", true),
			Capacity: envInt("RATE_LIMIT_CAPACITY", 60),
			Window:   envDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Webhook: WebhookConfig{
			SigningSecret:  env("WEBHOOK_SIGNING_SECRET", ""),
			Timeout:        envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:    envInt("WEBHOOK_MAX_ATTEMPTS", 3),
			InitialBackoff: envDuration("WEBHOOK_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     envDuration("WEBHOOK_MAX_BACKOFF", 10*time.Second),
		},
		Tracing: TracingConfig{
			Exporter:     env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  envFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		Vectorize: VectorizeConfig{
			Threshold:   envInt("VECTORIZE_THRESHOLD", vectorize.DefaultThreshold),
			StrokeColor: env("VECTORIZE_STROKE_COLOR", ""),
			ColorAware:  envBool("VECTORIZE_COLOR_AWARE", true),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
