package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRatesRefresh is the task type for the exchange-rate refresh tick.
	TaskRatesRefresh = "rates:refresh"
)

// NewRatesRefreshTask constructs the refresh task. It carries no payload;
// the handler reads everything it needs from storage.
func NewRatesRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskRatesRefresh, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueRatesRefresh enqueues one refresh tick.
func (c *Client) EnqueueRatesRefresh(ctx context.Context) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, NewRatesRefreshTask(), asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
