package gemini

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/flowbaker/weave/pkg/ai"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

type Config struct {
	APIKey          string
	Model           string
	BaseURL         string
	MaxOutputTokens int32
}

// Model implements ai.LanguageModel for Google Gemini
type Model struct {
	client *genai.Client
	config Config
}

func New(ctx context.Context, config Config) (*Model, error) {
	if config.APIKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	if config.Model == "" {
		config.Model = DefaultModel
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}

	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Model{
		client: client,
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

	config := &genai.GenerateContentConfig{}

	if m.config.MaxOutputTokens > 0 {
		config.MaxOutputTokens = m.config.MaxOutputTokens
	}

	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.System)},
		}
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.ImageURL != "" {
		parts = append(parts, genai.NewPartFromURI(req.ImageURL, imageMIMEType(req.ImageURL)))
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := m.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini api error: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var text strings.Builder

	if content := resp.Candidates[0].Content; content != nil {
		for _, part := range content.Parts {
			text.WriteString(part.Text)
		}
	}

	if text.Len() == 0 {
		return "", ai.ErrEmptyResponse
	}

	return text.String(), nil
}

func imageMIMEType(imageURL string) string {
	if i := strings.IndexAny(imageURL, "?#"); i >= 0 {
		imageURL = imageURL[:i]
	}

	if mimeType := mime.TypeByExtension(path.Ext(imageURL)); strings.HasPrefix(mimeType, "image/") {
		return mimeType
	}

	return "image/jpeg"
}
