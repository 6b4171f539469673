package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

type TaskKind string

const (
	KindAnalysis TaskKind = "analysis"
	KindChat     TaskKind = "chat"
)

// TaskStatus moves PENDING → SUCCEEDED | FAILED exactly once.
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskSucceeded TaskStatus = "SUCCEEDED"
	TaskFailed    TaskStatus = "FAILED"
)

const taskTTL = 24 * time.Hour

// Task is one asynchronous assistant request. A FAILED task still carries a
// usable payload: the fixed fallback analysis or reply.
type Task struct {
	ID        string                 `dynamodbav:"taskId" json:"id"`
	Kind      TaskKind               `dynamodbav:"kind" json:"kind"`
	Status    TaskStatus             `dynamodbav:"status" json:"status"`
	OwnerID   string                 `dynamodbav:"ownerId" json:"ownerId"`
	Analysis  *models.AnalysisResult `dynamodbav:"analysis,omitempty" json:"analysis,omitempty"`
	Reply     string                 `dynamodbav:"reply,omitempty" json:"reply,omitempty"`
	ReplyHTML string                 `dynamodbav:"replyHtml,omitempty" json:"replyHtml,omitempty"`
	Error     string                 `dynamodbav:"errorMessage,omitempty" json:"error,omitempty"`
	CreatedAt time.Time              `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt time.Time              `dynamodbav:"updatedAt" json:"updatedAt"`
	ExpiresAt int64                  `dynamodbav:"expiresAt,omitempty" json:"-"`
}

// Settled reports whether the task has reached a final state.
func (t *Task) Settled() bool {
	return t.Status == TaskSucceeded || t.Status == TaskFailed
}

// TaskStore persists task state between the API and the worker.
type TaskStore interface {
	PutPending(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	Settle(ctx context.Context, task *Task) error
}

// MemoryTaskStore is used when the API runs the worker in-process.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]Task)}
}

func (s *MemoryTaskStore) PutPending(_ context.Context, task *Task) error {
	now := time.Now().UTC()
	task.Status = TaskPending
	task.CreatedAt = now
	task.UpdatedAt = now
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (s *MemoryTaskStore) Get(_ context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	out := cloneTask(task)
	return &out, nil
}

// Settle ignores tasks that are unknown or already final.
func (s *MemoryTaskStore) Settle(_ context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tasks[task.ID]
	if !ok {
		return ErrTaskNotFound
	}
	if current.Settled() {
		return nil
	}
	task.UpdatedAt = time.Now().UTC()
	s.tasks[task.ID] = cloneTask(*task)
	return nil
}

func cloneTask(t Task) Task {
	if t.Analysis != nil {
		a := *t.Analysis
		t.Analysis = &a
	}
	return t
}
