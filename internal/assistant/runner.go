package assistant

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/observability/metrics"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

var tracer = otel.Tracer("lumeskin.internal.assistant")

// Runner calls the model and turns every failure into the fixed fallback.
type Runner struct {
	model   Model
	timeout time.Duration
	metrics *metrics.ClinicMetrics
	logger  *logging.Logger
	md      goldmark.Markdown
}

type RunnerOption func(*Runner)

// WithTimeout bounds each model call. Zero means no bound.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

func WithRunnerMetrics(m *metrics.ClinicMetrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func WithRunnerLogger(logger *logging.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner accepts a nil model; every task then fails with its fallback.
func NewRunner(model Model, opts ...RunnerOption) *Runner {
	r := &Runner{model: model, logger: logging.Default(), md: goldmark.New()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) modelName() string {
	if r.model == nil {
		return "none"
	}
	return r.model.Name()
}

func (r *Runner) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if r.model == nil {
		return ErrModelNotConfigured
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	ctx, span := tracer.Start(ctx, "assistant."+op, trace.WithAttributes(attribute.String("lume.assistant.model", r.modelName())))
	defer span.End()

	started := time.Now()
	err := fn(ctx)
	r.metrics.ObserveLLMLatency(r.modelName(), time.Since(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Analyze returns the model's result, or FallbackAnalysis with the cause.
func (r *Runner) Analyze(ctx context.Context, img Image) (models.AnalysisResult, error) {
	var res models.AnalysisResult
	err := r.call(ctx, "analyze", func(ctx context.Context) error {
		var err error
		res, err = r.model.Analyze(ctx, img)
		if err == nil && res.Condition == "" {
			err = ErrMalformedAnalysis
		}
		return err
	})
	if err != nil {
		r.logger.Warn("skin analysis failed", "error", err, "model", r.modelName())
		return FallbackAnalysis, err
	}
	return res, nil
}

// Chat returns the model's reply, or FallbackReply with the cause.
func (r *Runner) Chat(ctx context.Context, message string) (string, error) {
	var reply string
	err := r.call(ctx, "chat", func(ctx context.Context) error {
		var err error
		reply, err = r.model.Chat(ctx, message)
		if err == nil && strings.TrimSpace(reply) == "" {
			err = ErrEmptyReply
		}
		return err
	})
	if err != nil {
		r.logger.Warn("chat reply failed", "error", err, "model", r.modelName())
		return FallbackReply, err
	}
	return reply, nil
}

// RenderHTML converts a markdown reply for clients that display rich text.
func (r *Runner) RenderHTML(text string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return ""
	}
	return buf.String()
}
