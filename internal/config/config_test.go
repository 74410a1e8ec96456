package config

import (
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/vectorflow/internal/vectorize"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VECTORFLOW_API_ADDR", "")
	t.Setenv("VECTORIZE_THRESHOLD", "")
	t.Setenv("RATE_LIMIT_WINDOW", "")
	t.Setenv("MINIO_REGION", "")
	t.Setenv("STORAGE_SOURCE_RETENTION_DAYS", "")

	cfg := Load()
	if cfg.API.Addr != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.API.Addr)
	}
	if cfg.Vectorize.Threshold != vectorize.DefaultThreshold {
		t.Fatalf("expected threshold %d, got %d", vectorize.DefaultThreshold, cfg.Vectorize.Threshold)
	}
	if !cfg.Vectorize.ColorAware {
		t.Fatal("expected color-aware detection by default")
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Fatalf("expected 1m rate limit window, got %s", cfg.RateLimit.Window)
	}
	if cfg.Storage.Region != "us-east-1" || cfg.Storage.SourceRetentionDays != 7 {
		t.Fatalf("expected us-east-1 with 7 day source retention, got %+v", cfg.Storage)
	}
	if cfg.Worker.Concurrency < 2 || cfg.Worker.MaxActiveJobs < 1 {
		t.Fatalf("expected positive worker sizing, got %+v", cfg.Worker)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VECTORIZE_THRESHOLD", "40")
	t.Setenv("VECTORIZE_COLOR_AWARE", "false")
	t.Setenv("VECTORIZE_STROKE_COLOR", "#0f0")
	t.Setenv("WEBHOOK_TIMEOUT", "250ms")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	if cfg.Webhook.Timeout != 250*time.Millisecond {
		t.Fatalf("expected 250ms webhook timeout, got %s", cfg.Webhook.Timeout)
	}
	if cfg.Queue.RedisDB != 0 {
		t.Fatalf("expected invalid REDIS_DB to fall back to 0, got %d", cfg.Queue.RedisDB)
	}

	opts, err := cfg.Vectorize.Options()
	if err != nil {
		t.Fatalf("vectorize options: %v", err)
	}
	if opts.Threshold != 40 || opts.ColorAware {
		t.Fatalf("expected threshold 40 without color awareness, got %+v", opts)
	}
	if opts.StrokeColor == nil || *opts.StrokeColor != (vectorize.RGB{G: 255}) {
		t.Fatalf("expected green stroke override, got %v", opts.StrokeColor)
	}
}

func TestVectorizeOptionsRejectsBadDefaults(t *testing.T) {
	_, err := VectorizeConfig{Threshold: 999, ColorAware: true}.Options()
	if !errors.Is(err, vectorize.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
