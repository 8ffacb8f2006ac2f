package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/bazaar/internal/logger"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue schedules email tasks. Each enqueue is bounded by timeout so a slow
// Redis never holds up the request that triggered it.
type Queue struct {
	client  Enqueuer
	timeout time.Duration
}

func NewQueue(client Enqueuer, timeout time.Duration) *Queue {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Queue{client: client, timeout: timeout}
}

func (q *Queue) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", taskType, err)
	}
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	opts = append([]asynq.Option{asynq.Queue(emailQueue), asynq.MaxRetry(5)}, opts...)
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(taskType, b), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Debug("%s already queued", taskType)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	logger.Debug("queued %s id=%s", taskType, info.ID)
	return nil
}

// EnqueueOrderCreated confirms a new order to the buyer.
func (q *Queue) EnqueueOrderCreated(ctx context.Context, p OrderEmailPayload) error {
	return q.enqueue(ctx, TaskOrderCreated, p)
}

// EnqueuePaymentReceived is keyed by order id: a second enqueue for the same
// order is rejected by Redis and treated as success.
func (q *Queue) EnqueuePaymentReceived(ctx context.Context, p OrderEmailPayload) error {
	return q.enqueue(ctx, TaskPaymentReceived, p, asynq.TaskID("paid:"+p.OrderID), asynq.Retention(24*time.Hour))
}

func (q *Queue) EnqueueOrderCancelled(ctx context.Context, p OrderEmailPayload) error {
	return q.enqueue(ctx, TaskOrderCancelled, p)
}

func (q *Queue) EnqueueMessageNew(ctx context.Context, p MessageNewPayload) error {
	return q.enqueue(ctx, TaskMessageNew, p)
}
