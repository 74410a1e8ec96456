package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const (
	maxRetry = 5
	// retention keeps finished tasks around so starting the same job id
	// again conflicts instead of running twice.
	retention        = 24 * time.Hour
	baseTimeout      = time.Minute
	perOutputTimeout = 30 * time.Second
)

var ErrMissingJobID = errors.New("vectorize task requires a job id")

// Client enqueues vectorize tasks onto a single asynq queue.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

func (c *Client) EnqueueVectorizeImage(ctx context.Context, payload VectorizeImagePayload) (*asynq.TaskInfo, error) {
	if strings.TrimSpace(payload.JobID) == "" {
		return nil, ErrMissingJobID
	}
	task, err := NewVectorizeImageTask(payload)
	if err != nil {
		return nil, err
	}

	info, err := c.client.EnqueueContext(ctx, task, TaskOptions(c.queue, payload)...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s job_id=%s: %w", TypeVectorizeImage, payload.JobID, err)
	}
	return info, nil
}

// TaskOptions keys the task by job id and gives each requested output its
// own slice of the timeout on top of the decode and trace budget.
func TaskOptions(queueName string, payload VectorizeImagePayload) []asynq.Option {
	outputs := max(1, len(payload.Outputs))
	return []asynq.Option{
		asynq.Queue(queueName),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(baseTimeout + time.Duration(outputs)*perOutputTimeout),
		asynq.Retention(retention),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}
