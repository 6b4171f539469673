package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

const defaultGeminiModel = "gemini-3-flash-preview"

type geminiGenerator interface {
	Generate(ctx context.Context, modelID string, configure func(*genai.GenerativeModel), parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type genaiGenerator struct {
	client *genai.Client
}

func (g genaiGenerator) Generate(ctx context.Context, modelID string, configure func(*genai.GenerativeModel), parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	model := g.client.GenerativeModel(modelID)
	configure(model)
	return model.GenerateContent(ctx, parts...)
}

// GeminiModel implements Model using Google's Gemini API.
type GeminiModel struct {
	gen     geminiGenerator
	closer  func() error
	modelID string
}

// NewGeminiModel creates a Gemini-backed model.
func NewGeminiModel(ctx context.Context, apiKey, modelID string) (*GeminiModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("assistant: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("assistant: failed to create gemini client: %w", err)
	}
	m := newGeminiModel(genaiGenerator{client: client}, modelID)
	m.closer = client.Close
	return m, nil
}

func newGeminiModel(gen geminiGenerator, modelID string) *GeminiModel {
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultGeminiModel
	}
	return &GeminiModel{gen: gen, modelID: modelID}
}

func (g *GeminiModel) Name() string { return g.modelID }

// analysisSchema forces the three-field answer.
var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"condition":      {Type: genai.TypeString},
		"confidence":     {Type: genai.TypeNumber},
		"recommendation": {Type: genai.TypeString},
	},
	Required: []string{"condition", "confidence", "recommendation"},
}

func (g *GeminiModel) Analyze(ctx context.Context, img Image) (models.AnalysisResult, error) {
	resp, err := g.gen.Generate(ctx, g.modelID, func(m *genai.GenerativeModel) {
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = analysisSchema
	}, genai.Blob{MIMEType: img.MIMEType, Data: img.Data}, genai.Text(analysisPrompt))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("assistant: gemini analysis failed: %w", err)
	}
	text, err := geminiText(resp)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	return parseAnalysis(text)
}

func (g *GeminiModel) Chat(ctx context.Context, message string) (string, error) {
	resp, err := g.gen.Generate(ctx, g.modelID, func(m *genai.GenerativeModel) {
		m.SystemInstruction = genai.NewUserContent(genai.Text(chatSystemPrompt))
	}, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("assistant: gemini chat failed: %w", err)
	}
	return geminiText(resp)
}

// Close releases resources held by the Gemini client.
func (g *GeminiModel) Close() error {
	if g.closer != nil {
		return g.closer()
	}
	return nil
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("assistant: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("assistant: gemini returned empty content")
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyReply
	}
	return out, nil
}
