package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypePush is the asynq task type consumed by the notification worker.
const TaskTypePush = "notification:push"

// PushTask is the queued payload for one multicast push.
type PushTask struct {
	Tokens  []string `json:"tokens"`
	Payload Payload  `json:"payload"`
}

// QueueDispatcher enqueues pushes on an asynq/Redis queue for the external
// delivery worker. Enqueueing is the hand-off; there is no delivery guarantee
// at this layer.
type QueueDispatcher struct {
	client *asynq.Client
}

// NewQueueDispatcher constructs a dispatcher from a Redis URL.
func NewQueueDispatcher(redisURL string) (*QueueDispatcher, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &QueueDispatcher{client: asynq.NewClient(opt)}, nil
}

var _ Dispatcher = (*QueueDispatcher)(nil)

func (d *QueueDispatcher) Dispatch(ctx context.Context, tokens []string, p Payload) error {
	if len(tokens) == 0 {
		return nil
	}
	raw, err := json.Marshal(PushTask{Tokens: tokens, Payload: p})
	if err != nil {
		return fmt.Errorf("asynq: marshal push task: %w", err)
	}
	task := asynq.NewTask(TaskTypePush, raw)
	if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue("notifications"), asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("asynq: enqueue push: %w", err)
	}
	return nil
}

func (d *QueueDispatcher) Close() error {
	return d.client.Close()
}
