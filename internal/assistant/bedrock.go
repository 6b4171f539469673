package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockModel implements Model with the Bedrock Converse API.
type BedrockModel struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockModel(api bedrockConverseAPI, modelID string) *BedrockModel {
	if api == nil {
		panic("assistant: bedrock converse client cannot be nil")
	}
	if strings.TrimSpace(modelID) == "" {
		panic("assistant: bedrock model id cannot be empty")
	}
	return &BedrockModel{api: api, modelID: modelID}
}

func (b *BedrockModel) Name() string { return b.modelID }

func (b *BedrockModel) Analyze(ctx context.Context, img Image) (models.AnalysisResult, error) {
	format, ok := bedrockImageFormat(img.MIMEType)
	if !ok {
		return models.AnalysisResult{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, img.MIMEType)
	}
	out, err := b.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.modelID),
		Messages: []brtypes.Message{{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberImage{Value: brtypes.ImageBlock{
					Format: format,
					Source: &brtypes.ImageSourceMemberBytes{Value: img.Data},
				}},
				&brtypes.ContentBlockMemberText{Value: analysisPrompt + " Respond with the JSON object only."},
			},
		}},
	})
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("assistant: bedrock analysis failed: %w", err)
	}
	text, err := bedrockOutputText(out)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	return parseAnalysis(text)
}

func (b *BedrockModel) Chat(ctx context.Context, message string) (string, error) {
	out, err := b.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.modelID),
		System:  []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: chatSystemPrompt}},
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: message}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("assistant: bedrock chat failed: %w", err)
	}
	return bedrockOutputText(out)
}

func bedrockImageFormat(mime string) (brtypes.ImageFormat, bool) {
	switch mime {
	case "image/jpeg":
		return brtypes.ImageFormatJpeg, true
	case "image/png":
		return brtypes.ImageFormatPng, true
	case "image/gif":
		return brtypes.ImageFormatGif, true
	case "image/webp":
		return brtypes.ImageFormatWebp, true
	}
	return "", false
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("assistant: bedrock response is nil")
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("assistant: bedrock response did not include a message output")
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
