package providers

import (
	"context"
	"strings"
)

// Config represents the configuration for a single completion request
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	System      string
	Prompt      string
	// JSON asks the provider to constrain output to a JSON object when it can
	JSON bool
}

// Provider defines the interface for an LLM provider
type Provider interface {
	Complete(ctx context.Context, config Config) (string, error)
}

// TrimCodeFence strips a surrounding markdown code block from a model response
func TrimCodeFence(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
