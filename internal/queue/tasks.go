package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dunamismax/vectorflow/internal/domain"
	"github.com/hibiken/asynq"
)

const TypeVectorizeImage = "image:vectorize"

type VectorizeImagePayload struct {
	JobID       string                   `json:"job_id"`
	SourceType  string                   `json:"source_type"`
	WebhookURL  string                   `json:"webhook_url,omitempty"`
	ObjectKey   string                   `json:"object_key"`
	Options     domain.ConversionOptions `json:"options"`
	Outputs     []domain.OutputSpec      `json:"outputs"`
	RequestedAt time.Time                `json:"requested_at"`
	// TraceContext carries the enqueuing request's trace headers so the
	// worker span joins the same trace.
	TraceContext map[string]string `json:"trace_context,omitempty"`
}

func NewVectorizeImageTask(payload VectorizeImagePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal vectorize payload: %w", err)
	}
	return asynq.NewTask(TypeVectorizeImage, body), nil
}

func ParseVectorizeImagePayload(task *asynq.Task) (VectorizeImagePayload, error) {
	var payload VectorizeImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return VectorizeImagePayload{}, fmt.Errorf("unmarshal vectorize payload: %w", err)
	}
	return payload, nil
}
