package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// Publisher records a PENDING task and enqueues it for the worker.
type Publisher struct {
	queue  TaskQueue
	tasks  TaskStore
	images ImageStore
	logger *logging.Logger
}

type PublisherOption func(*Publisher)

// WithImageStore uploads analysis images instead of inlining them.
func WithImageStore(images ImageStore) PublisherOption {
	return func(p *Publisher) { p.images = images }
}

func WithPublisherLogger(logger *logging.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPublisher(queue TaskQueue, tasks TaskStore, opts ...PublisherOption) *Publisher {
	if queue == nil {
		panic("assistant: queue cannot be nil")
	}
	if tasks == nil {
		panic("assistant: task store cannot be nil")
	}
	p := &Publisher{queue: queue, tasks: tasks, logger: logging.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SubmitAnalysis enqueues a skin analysis of img on behalf of ownerID.
func (p *Publisher) SubmitAnalysis(ctx context.Context, ownerID string, img Image) (*Task, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}
	task := &Task{ID: uuid.NewString(), Kind: KindAnalysis, OwnerID: ownerID}
	payload := taskPayload{TaskID: task.ID, Kind: KindAnalysis, OwnerID: ownerID}

	if p.images != nil {
		stored, err := p.images.Put(ctx, task.ID, img)
		if err != nil {
			return nil, err
		}
		payload.ImageKey = stored.Key
		payload.ImageURL = stored.URL
	} else {
		payload.Image = &img
		payload.ImageURL = DataURL(img)
	}
	return task, p.enqueue(ctx, task, payload)
}

// SubmitChat enqueues a LumeBot reply to message.
func (p *Publisher) SubmitChat(ctx context.Context, ownerID, message string) (*Task, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	task := &Task{ID: uuid.NewString(), Kind: KindChat, OwnerID: ownerID}
	return task, p.enqueue(ctx, task, taskPayload{TaskID: task.ID, Kind: KindChat, OwnerID: ownerID, Message: message})
}

func (p *Publisher) enqueue(ctx context.Context, task *Task, payload taskPayload) error {
	body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	if err := p.tasks.PutPending(ctx, task); err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("assistant: enqueue task: %w", err)
	}
	p.logger.Debug("assistant task enqueued", "task_id", task.ID, "kind", task.Kind)
	return nil
}

// Task returns the current state of a task.
func (p *Publisher) Task(ctx context.Context, id string) (*Task, error) {
	return p.tasks.Get(ctx, id)
}
