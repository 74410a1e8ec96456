package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/vectorflow/internal/domain"
)

func TestMemoryJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	created := time.Now().UTC().Add(-time.Minute)
	if err := s.Create(ctx, domain.Job{
		ID:         "job-1",
		Status:     domain.JobStatusCreated,
		SourceType: domain.SourceTypeLocalFile,
		Outputs:    []domain.OutputSpec{{ID: "outline", Format: "svg"}},
		CreatedAt:  created,
		UpdatedAt:  created,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	job, err := s.UpdateStatus(ctx, "job-1", domain.JobStatusQueued)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if job.Status != domain.JobStatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
	if !job.UpdatedAt.After(created) {
		t.Fatal("expected updated_at to advance")
	}

	job, err = s.MarkFailed(ctx, "job-1", "no_edges_found")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if job.Status != domain.JobStatusFailed || job.Error != "no_edges_found" {
		t.Fatalf("expected failed with reason, got %s %q", job.Status, job.Error)
	}

	got, ok, err := s.Get(ctx, "job-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(got.Outputs) != 1 || got.Outputs[0].ID != "outline" {
		t.Fatalf("expected outputs to survive, got %+v", got.Outputs)
	}
}

func TestMemoryJobStoreMissingJob(t *testing.T) {
	s := NewMemoryJobStore()

	if _, ok, err := s.Get(context.Background(), "nope"); ok || err != nil {
		t.Fatalf("expected missing job, got ok=%v err=%v", ok, err)
	}
	if _, err := s.UpdateStatus(context.Background(), "nope", domain.JobStatusQueued); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryJobStoreUsageLogs(t *testing.T) {
	s := NewMemoryJobStore()
	var _ UsageStore = s

	if err := s.CreateUsageLog(context.Background(), domain.UsageLog{JobID: "job-1", PathsEmitted: 3}); err != nil {
		t.Fatalf("create usage log: %v", err)
	}

	logs := s.UsageLogs()
	if len(logs) != 1 || logs[0].PathsEmitted != 3 {
		t.Fatalf("expected one usage log with 3 paths, got %+v", logs)
	}
}
