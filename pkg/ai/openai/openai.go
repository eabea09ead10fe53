package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowbaker/weave/pkg/ai"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// Model implements ai.LanguageModel for OpenAI chat completions
type Model struct {
	client *openai.Client
	config Config
}

func New(config Config) (*Model, error) {
	if config.APIKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	if config.Model == "" {
		config.Model = DefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Model{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

func (m *Model) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ai.ErrEmptyPrompt
	}

	model := req.Model
	if model == "" {
		model = m.config.Model
	}

	var messages []openai.ChatCompletionMessage

	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}

	if req.ImageURL != "" {
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: req.ImageURL}},
		}
	} else {
		user.Content = req.Prompt
	}

	messages = append(messages, user)

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}

	if m.config.MaxTokens > 0 {
		chatReq.MaxTokens = m.config.MaxTokens
	}

	log.Debug().Str("model", model).Bool("with_image", req.ImageURL != "").Msg("Creating chat completion")

	resp, err := m.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ai.ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}
