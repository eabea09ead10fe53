// Package ai holds the provider-neutral language model contract used by the
// run-llm task.
package ai

import (
	"context"
	"errors"
)

type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

var (
	ErrEmptyPrompt     = errors.New("prompt is required")
	ErrEmptyResponse   = errors.New("model returned no text")
	ErrMissingAPIKey   = errors.New("api key is required")
	ErrUnknownProvider = errors.New("unknown model provider")
)

type GenerateRequest struct {
	Model    string
	System   string
	Prompt   string
	ImageURL string
}

type LanguageModel interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

func (p Provider) IsValid() bool {
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		return true
	}

	return false
}
