package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/flowbaker/weave/pkg/ai"
)

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultMaxTokens = 4096
)

type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// Model implements ai.LanguageModel for Anthropic Claude
type Model struct {
	client anthropic.Client
	config Config
}

func New(config Config) (*Model, error) {
	if config.APIKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	if config.Model == "" {
		config.Model = DefaultModel
	}

	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Model{
		client: anthropic.NewClient(opts...),
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

	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.Prompt)}
	if req.ImageURL != "" {
		blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: req.ImageURL}))
	}

	msgReq := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		MaxTokens: int64(m.config.MaxTokens),
	}

	if req.System != "" {
		msgReq.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := m.client.Messages.New(ctx, msgReq)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder

	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", ai.ErrEmptyResponse
	}

	return text.String(), nil
}
