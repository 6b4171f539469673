package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/lumeskin-platform/internal/events"
	"github.com/wolfman30/lumeskin-platform/internal/observability/metrics"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

// Worker consumes assistant tasks from the queue and settles them.
type Worker struct {
	runner    *Runner
	queue     TaskQueue
	tasks     TaskStore
	images    ImageStore
	publisher events.Publisher
	metrics   *metrics.ClinicMetrics
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	images           ImageStore
	publisher        events.Publisher
	metrics          *metrics.ClinicMetrics
}

type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithWorkerImages resolves uploaded analysis images.
func WithWorkerImages(images ImageStore) WorkerOption {
	return func(cfg *workerConfig) { cfg.images = images }
}

// WithEventPublisher announces settled tasks.
func WithEventPublisher(p events.Publisher) WorkerOption {
	return func(cfg *workerConfig) { cfg.publisher = p }
}

func WithWorkerMetrics(m *metrics.ClinicMetrics) WorkerOption {
	return func(cfg *workerConfig) { cfg.metrics = m }
}

func NewWorker(runner *Runner, queue TaskQueue, tasks TaskStore, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if runner == nil {
		panic("assistant: runner cannot be nil")
	}
	if queue == nil {
		panic("assistant: queue cannot be nil")
	}
	if tasks == nil {
		panic("assistant: task store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		runner:    runner,
		queue:     queue,
		tasks:     tasks,
		images:    cfg.images,
		publisher: cfg.publisher,
		metrics:   cfg.metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("assistant worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("assistant worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive assistant tasks", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// handleMessage settles one task. There is no retry: the message is deleted
// whatever the outcome. A received message is finished even when the worker
// is shutting down; the runner timeout bounds the model call.
func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	ctx = context.WithoutCancel(ctx)
	defer w.deleteMessage(context.Background(), msg.ReceiptHandle)

	var payload taskPayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode assistant task", "error", err, "msg_id", msg.ID)
		return
	}

	task := &Task{ID: payload.TaskID, Kind: payload.Kind, OwnerID: payload.OwnerID}
	var runErr error
	switch payload.Kind {
	case KindAnalysis:
		var img Image
		img, runErr = w.resolveImage(ctx, payload)
		res := FallbackAnalysis
		if runErr == nil {
			res, runErr = w.runner.Analyze(ctx, img)
		}
		res.ImageURL = payload.ImageURL
		task.Analysis = &res
	case KindChat:
		task.Reply, runErr = w.runner.Chat(ctx, payload.Message)
		task.ReplyHTML = w.runner.RenderHTML(task.Reply)
	default:
		w.logger.Error("unknown assistant task kind", "task_id", payload.TaskID, "kind", payload.Kind)
		return
	}

	task.Status = TaskSucceeded
	if runErr != nil {
		task.Status = TaskFailed
		task.Error = runErr.Error()
	}
	if err := w.tasks.Settle(ctx, task); err != nil {
		w.logger.Error("failed to settle assistant task", "error", err, "task_id", task.ID)
		return
	}
	w.metrics.ObserveAssistantTask(string(task.Kind), string(task.Status))
	events.PublishQuietly(ctx, w.publisher, w.logger, events.New(events.AssistantTaskSettled, map[string]string{
		"taskId": task.ID,
		"kind":   string(task.Kind),
		"status": string(task.Status),
	}))
	w.logger.Info("assistant task settled", "task_id", task.ID, "kind", task.Kind, "status", task.Status)
}

func (w *Worker) resolveImage(ctx context.Context, payload taskPayload) (Image, error) {
	if payload.Image != nil {
		return *payload.Image, nil
	}
	if payload.ImageKey == "" || w.images == nil {
		return Image{}, ErrEmptyImage
	}
	return w.images.Get(ctx, payload.ImageKey)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete assistant task message", "error", err)
	}
}
