package assistant

import (
	"context"

	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// FallbackModel tries primary first and, when it fails, the secondary
// provider. With no secondary it behaves like primary.
type FallbackModel struct {
	primary   Model
	secondary Model
	logger    *logging.Logger
}

func NewFallbackModel(primary, secondary Model, logger *logging.Logger) *FallbackModel {
	if primary == nil {
		panic("assistant: primary model cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackModel{primary: primary, secondary: secondary, logger: logger}
}

func (f *FallbackModel) Name() string { return f.primary.Name() }

func (f *FallbackModel) Analyze(ctx context.Context, img Image) (models.AnalysisResult, error) {
	res, err := f.primary.Analyze(ctx, img)
	if err == nil || f.secondary == nil {
		return res, err
	}
	f.logger.Warn("primary model failed, attempting fallback", "error", err, "op", "analyze", "fallback_model", f.secondary.Name())
	return f.secondary.Analyze(ctx, img)
}

func (f *FallbackModel) Chat(ctx context.Context, message string) (string, error) {
	reply, err := f.primary.Chat(ctx, message)
	if err == nil || f.secondary == nil {
		return reply, err
	}
	f.logger.Warn("primary model failed, attempting fallback", "error", err, "op", "chat", "fallback_model", f.secondary.Name())
	return f.secondary.Chat(ctx, message)
}
