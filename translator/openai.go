package translator

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAI completes prompts through any OpenAI-compatible chat endpoint.
type OpenAI struct {
	client llms.Model
	model  string
}

// NewOpenAI creates an OpenAI completer. BaseURL may point at a compatible server.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return &OpenAI{client: client, model: model}, nil
}

// Complete sends system and prompt as a two-message chat in JSON mode.
func (o *OpenAI) Complete(ctx context.Context, system, prompt string) (string, error) {
	var content []llms.MessageContent
	if system != "" {
		content = append(content, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		})
	}
	content = append(content, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt)},
	})

	response, err := o.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", o.model, err)
	}
	if len(response.Choices) < 1 || response.Choices[0].Content == "" {
		return "", ErrEmptyResponse
	}
	return response.Choices[0].Content, nil
}
