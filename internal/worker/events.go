package worker

import (
	"time"

	"github.com/dunamismax/vectorflow/internal/pipeline"
)

// jobSucceeded is the data of a job.succeeded webhook.
type jobSucceeded struct {
	Status      string            `json:"status"`
	SourceType  string            `json:"source_type"`
	ObjectKey   string            `json:"object_key,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
	CompletedAt time.Time         `json:"completed_at"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Paths       int               `json:"paths"`
	Points      int               `json:"points"`
	Outputs     []pipeline.Output `json:"outputs"`
}

// jobFailed is the data of a job.failed webhook. Reason is one of the
// pipeline failure reasons; Error is safe to show to the caller.
type jobFailed struct {
	Status      string    `json:"status"`
	SourceType  string    `json:"source_type"`
	ObjectKey   string    `json:"object_key,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	FailedAt    time.Time `json:"failed_at"`
	Reason      string    `json:"reason"`
	Error       string    `json:"error"`
}
