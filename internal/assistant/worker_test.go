package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lumeskin-platform/internal/events"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/observability/metrics"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func waitSettled(t *testing.T, store TaskStore, id string) *Task {
	t.Helper()
	var task *Task
	require.Eventually(t, func() bool {
		got, err := store.Get(context.Background(), id)
		if err != nil {
			return false
		}
		task = got
		return got.Settled()
	}, 2*time.Second, 10*time.Millisecond)
	return task
}

type harness struct {
	publisher *Publisher
	tasks     *MemoryTaskStore
	events    *recordingPublisher
	reg       *prometheus.Registry
}

func startHarness(t *testing.T, model Model) harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	queue := NewMemoryQueue(8)
	tasks := NewMemoryTaskStore()
	pub := &recordingPublisher{}
	reg := prometheus.NewRegistry()
	m := metrics.NewClinicMetrics(reg)

	runner := NewRunner(model, WithRunnerMetrics(m))
	worker := NewWorker(runner, queue, tasks, nil,
		WithWorkerCount(1),
		WithReceiveWaitSeconds(0),
		WithEventPublisher(pub),
		WithWorkerMetrics(m),
	)
	worker.Start(ctx)
	t.Cleanup(func() {
		cancel()
		worker.Wait()
	})
	return harness{publisher: NewPublisher(queue, tasks), tasks: tasks, events: pub, reg: reg}
}

func TestWorker_AnalysisSucceeds(t *testing.T) {
	model := &fakeModel{name: "fake", analysis: models.AnalysisResult{Condition: "Acne", Confidence: 0.7, Recommendation: "Cleanse gently."}}
	h := startHarness(t, model)

	task, err := h.publisher.SubmitAnalysis(context.Background(), "u1", Image{Data: pngHeader, MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, TaskPending, task.Status)

	done := waitSettled(t, h.tasks, task.ID)
	assert.Equal(t, TaskSucceeded, done.Status)
	require.NotNil(t, done.Analysis)
	assert.Equal(t, "Acne", done.Analysis.Condition)
	assert.Equal(t, DataURL(Image{Data: pngHeader, MIMEType: "image/png"}), done.Analysis.ImageURL)
	require.Eventually(t, func() bool {
		n, err := testutil.GatherAndCount(h.reg, "lume_assistant_tasks_total")
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		h.events.mu.Lock()
		defer h.events.mu.Unlock()
		return len(h.events.events) == 1 && h.events.events[0].Type == events.AssistantTaskSettled
	}, time.Second, 10*time.Millisecond)
}

func TestWorker_AnalysisFailureStoresFallback(t *testing.T) {
	h := startHarness(t, &fakeModel{name: "fake", err: errors.New("model unavailable")})

	task, err := h.publisher.SubmitAnalysis(context.Background(), "u1", Image{Data: pngHeader, MIMEType: "image/png"})
	require.NoError(t, err)

	done := waitSettled(t, h.tasks, task.ID)
	assert.Equal(t, TaskFailed, done.Status)
	require.NotNil(t, done.Analysis)
	assert.Equal(t, "Unknown", done.Analysis.Condition)
	assert.Equal(t, 0.0, done.Analysis.Confidence)
	assert.Equal(t, "Please consult a doctor for accurate diagnosis.", done.Analysis.Recommendation)
	assert.Contains(t, done.Error, "model unavailable")
}

func TestWorker_ChatRendersHTML(t *testing.T) {
	h := startHarness(t, &fakeModel{name: "fake", reply: "Apply **SPF 30** daily."})

	task, err := h.publisher.SubmitChat(context.Background(), "u1", "sun care?")
	require.NoError(t, err)

	done := waitSettled(t, h.tasks, task.ID)
	assert.Equal(t, TaskSucceeded, done.Status)
	assert.Equal(t, "Apply **SPF 30** daily.", done.Reply)
	assert.Contains(t, done.ReplyHTML, "<strong>SPF 30</strong>")
}

func TestWorker_EmptyChatReplyFails(t *testing.T) {
	h := startHarness(t, &fakeModel{name: "fake", reply: ""})

	task, err := h.publisher.SubmitChat(context.Background(), "u1", "hello")
	require.NoError(t, err)

	done := waitSettled(t, h.tasks, task.ID)
	assert.Equal(t, TaskFailed, done.Status)
	assert.Equal(t, "Error getting response", done.Reply)
}

func TestWorker_NoModelConfigured(t *testing.T) {
	h := startHarness(t, nil)

	task, err := h.publisher.SubmitChat(context.Background(), "u1", "hello")
	require.NoError(t, err)

	done := waitSettled(t, h.tasks, task.ID)
	assert.Equal(t, TaskFailed, done.Status)
	assert.Equal(t, FallbackReply, done.Reply)
	assert.Contains(t, done.Error, ErrModelNotConfigured.Error())
}

func TestPublisher_RejectsEmptyInput(t *testing.T) {
	p := NewPublisher(NewMemoryQueue(1), NewMemoryTaskStore())
	_, err := p.SubmitChat(context.Background(), "u1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = p.SubmitAnalysis(context.Background(), "u1", Image{})
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestPublisher_UsesImageStore(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}}
	images := NewS3ImageStore(client, "bucket")
	queue := NewMemoryQueue(1)
	p := NewPublisher(queue, NewMemoryTaskStore(), WithImageStore(images))

	task, err := p.SubmitAnalysis(context.Background(), "u1", Image{Data: pngHeader, MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Contains(t, client.objects, "analysis/"+task.ID+".png")

	msgs, err := queue.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.NotContains(t, msgs[0].Body, `"image":`)
	assert.Contains(t, msgs[0].Body, `"imageKey":"analysis/`+task.ID+`.png"`)
}

func TestMemoryQueue_ReceiveTimesOut(t *testing.T) {
	q := NewMemoryQueue(1)
	start := time.Now()
	msgs, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

// strictTaskStore refuses writes on a cancelled context.
type strictTaskStore struct {
	*MemoryTaskStore
}

func (s strictTaskStore) Settle(ctx context.Context, task *Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryTaskStore.Settle(ctx, task)
}

// contextModel fails like a real client when its context is done.
type contextModel struct {
	fakeModel
}

func (m *contextModel) Chat(ctx context.Context, msg string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.fakeModel.Chat(ctx, msg)
}

func TestWorker_FinishesReceivedTaskDuringShutdown(t *testing.T) {
	tasks := strictTaskStore{NewMemoryTaskStore()}
	model := &contextModel{fakeModel{name: "fake", reply: "Use sunscreen."}}
	worker := NewWorker(NewRunner(model), NewMemoryQueue(1), tasks, nil, WithWorkerCount(1))

	task := &Task{ID: "t1", Kind: KindChat, OwnerID: "u1"}
	require.NoError(t, tasks.PutPending(context.Background(), task))
	body, err := encodePayload(taskPayload{TaskID: "t1", Kind: KindChat, OwnerID: "u1", Message: "sun care?"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	worker.handleMessage(ctx, queueMessage{ID: "m1", Body: body, ReceiptHandle: "r1"})

	done, err := tasks.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, TaskSucceeded, done.Status)
	assert.Equal(t, "Use sunscreen.", done.Reply)
	assert.Empty(t, done.Error)
}
