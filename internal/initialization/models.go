package initialization

import (
	"context"
	"fmt"

	"github.com/flowbaker/weave/internal/config"
	"github.com/flowbaker/weave/pkg/ai"
	"github.com/flowbaker/weave/pkg/ai/anthropic"
	"github.com/flowbaker/weave/pkg/ai/gemini"
	"github.com/flowbaker/weave/pkg/ai/openai"
)

// NewLanguageModel creates the model client of the configured provider and
// returns it with the model name used when a node does not pick one.
func NewLanguageModel(ctx context.Context, cfg config.LLMConfig) (ai.LanguageModel, string, error) {
	switch ai.Provider(cfg.Provider) {
	case ai.ProviderGemini, "":
		model, err := gemini.New(ctx, gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create gemini model: %w", err)
		}

		return model, defaultModel(cfg.Model, gemini.DefaultModel), nil
	case ai.ProviderOpenAI:
		model, err := openai.New(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create openai model: %w", err)
		}

		return model, defaultModel(cfg.Model, openai.DefaultModel), nil
	case ai.ProviderAnthropic:
		model, err := anthropic.New(anthropic.Config{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create anthropic model: %w", err)
		}

		return model, defaultModel(cfg.Model, anthropic.DefaultModel), nil
	}

	return nil, "", fmt.Errorf("%w: %q", ai.ErrUnknownProvider, cfg.Provider)
}

func defaultModel(configured, fallback string) string {
	if configured != "" {
		return configured
	}

	return fallback
}
