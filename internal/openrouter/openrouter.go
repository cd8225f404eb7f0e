// Package openrouter talks to OpenRouter through the eino OpenAI chat model.
package openrouter

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"github.com/lehigh-university-libraries/panelator/internal/providers"
)

// BaseURL is the OpenRouter OpenAI compatible root
const BaseURL = "https://openrouter.ai/api/v1"

// OpenRouter is a provider for OpenRouter hosted models
type OpenRouter struct {
	apiKey  string
	baseURL string
}

// New returns a new OpenRouter provider. An empty apiKey falls back to
// OPENROUTER_API_KEY.
func New(apiKey string) *OpenRouter {
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return &OpenRouter{apiKey: apiKey, baseURL: BaseURL}
}

// Complete runs a single system + user exchange
func (o *OpenRouter) Complete(ctx context.Context, config providers.Config) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("OPENROUTER_API_KEY environment variable not set")
	}

	temperature := float32(config.Temperature)
	chatModelConfig := &openai.ChatModelConfig{
		Model:       config.Model,
		APIKey:      o.apiKey,
		BaseURL:     o.baseURL,
		Temperature: &temperature,
	}
	if config.MaxTokens > 0 {
		maxTokens := config.MaxTokens
		chatModelConfig.MaxTokens = &maxTokens
	}
	if config.JSON {
		chatModelConfig.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return "", fmt.Errorf("failed to create chat model: %w", err)
	}

	messages := []*schema.Message{}
	if config.System != "" {
		messages = append(messages, schema.SystemMessage(config.System))
	}
	messages = append(messages, schema.UserMessage(config.Prompt))

	response, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	if response == nil || response.Content == "" {
		return "", fmt.Errorf("empty completion returned from OpenRouter")
	}

	return response.Content, nil
}
