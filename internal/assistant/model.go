// Package assistant runs the two generative-AI features of the clinic, skin
// image analysis and the LumeBot chat, as asynchronous tasks.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

// FallbackAnalysis is stored on a FAILED analysis task.
var FallbackAnalysis = models.AnalysisResult{
	Condition:      "Unknown",
	Confidence:     0,
	Recommendation: "Please consult a doctor for accurate diagnosis.",
}

// FallbackReply is stored on a FAILED chat task.
const FallbackReply = "Error getting response"

const (
	analysisPrompt   = "Analyze this skin image as a professional dermatologist. Identify potential issues (e.g., Acne, Eczema, Healthy) and provide a recommendation. Output in JSON format with fields: condition, confidence (0-1), recommendation."
	chatSystemPrompt = "You are LumeBot, a helpful dermatology assistant for the Lume Skin app. Provide advice on skin care, products, and general health. Always advise seeing a doctor for serious concerns."
)

// Image is a decoded upload.
type Image struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

// ChatTurn is a prior exchange sent by the client. It is accepted on the wire
// but each chat request is answered on its own.
type ChatTurn struct {
	Role string `json:"role" validate:"omitempty,oneof=user model"`
	Text string `json:"text"`
}

// Model is a generative backend able to answer both assistant features.
type Model interface {
	Name() string
	Analyze(ctx context.Context, img Image) (models.AnalysisResult, error)
	Chat(ctx context.Context, message string) (string, error)
}

type analysisPayload struct {
	Condition      *string  `json:"condition"`
	Confidence     *float64 `json:"confidence"`
	Recommendation *string  `json:"recommendation"`
}

// parseAnalysis decodes the model's JSON answer. Code fences are tolerated
// because not every backend honours a response MIME type.
func parseAnalysis(text string) (models.AnalysisResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var p analysisPayload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}
	if p.Condition == nil || p.Confidence == nil || p.Recommendation == nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: missing required field", ErrMalformedAnalysis)
	}
	conf := *p.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return models.AnalysisResult{
		Condition:      strings.TrimSpace(*p.Condition),
		Confidence:     conf,
		Recommendation: strings.TrimSpace(*p.Recommendation),
	}, nil
}
