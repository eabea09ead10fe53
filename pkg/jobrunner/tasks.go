package jobrunner

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/flowbaker/weave/pkg/ai"
	"github.com/flowbaker/weave/pkg/domain"
)

// RunLLMTask answers a prompt with the configured language model.
type RunLLMTask struct {
	model        ai.LanguageModel
	defaultModel string
}

func NewRunLLMTask(model ai.LanguageModel, defaultModel string) *RunLLMTask {
	return &RunLLMTask{
		model:        model,
		defaultModel: defaultModel,
	}
}

func (t *RunLLMTask) Handle(ctx context.Context, payload map[string]any) (map[string]any, error) {
	prompt := stringValue(payload, "prompt")
	if strings.TrimSpace(prompt) == "" {
		return nil, ai.ErrEmptyPrompt
	}

	model := stringValue(payload, "model")
	if model == "" {
		model = t.defaultModel
	}

	text, err := t.model.Generate(ctx, ai.GenerateRequest{
		Model:    model,
		System:   stringValue(payload, "system"),
		Prompt:   prompt,
		ImageURL: stringValue(payload, "image"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate text: %w", err)
	}

	return map[string]any{domain.FieldResult: text}, nil
}

// ExtractFrameTask turns a video URL and a timestamp into a still image URL.
type ExtractFrameTask struct {
	extractor domain.FrameExtractor
}

func NewExtractFrameTask(extractor domain.FrameExtractor) *ExtractFrameTask {
	return &ExtractFrameTask{
		extractor: extractor,
	}
}

func (t *ExtractFrameTask) Handle(ctx context.Context, payload map[string]any) (map[string]any, error) {
	videoURL := stringValue(payload, "videoUrl")
	if videoURL == "" {
		return nil, fmt.Errorf("videoUrl is required")
	}

	timestamp, err := floatValue(payload, "timestamp")
	if err != nil {
		return nil, err
	}

	imageURL, err := t.extractor.ExtractFrame(ctx, videoURL, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to extract frame: %w", err)
	}

	return map[string]any{domain.FieldImageURL: imageURL}, nil
}

func stringValue(payload map[string]any, key string) string {
	value, ok := payload[key].(string)
	if !ok {
		return ""
	}

	return value
}

func floatValue(payload map[string]any, key string) (float64, error) {
	switch value := payload[key].(type) {
	case nil:
		return 0, nil
	case float64:
		return value, nil
	case int:
		return float64(value), nil
	case int64:
		return float64(value), nil
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}

		return parsed, nil
	default:
		return 0, fmt.Errorf("invalid %s: unsupported type %T", key, value)
	}
}
