package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/panelator/internal/providers"
)

// Ollama is a provider for a local Ollama server
type Ollama struct {
	baseURL string
	client  *http.Client
}

// New returns a new Ollama provider. An empty baseURL is resolved from
// OLLAMA_URL, then OLLAMA_HOST, then the default local address.
func New(baseURL string) *Ollama {
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_URL")
	}
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Complete generates text for the given prompt
func (o *Ollama) Complete(ctx context.Context, config providers.Config) (string, error) {
	return o.Generate(ctx, config, nil)
}

// Generate runs /api/generate, attaching images (raw bytes) for vision models
func (o *Ollama) Generate(ctx context.Context, config providers.Config, images [][]byte) (string, error) {
	options := map[string]interface{}{
		"temperature": config.Temperature,
	}
	if config.MaxTokens > 0 {
		options["num_predict"] = config.MaxTokens
	}
	body := map[string]interface{}{
		"model":   config.Model,
		"prompt":  config.Prompt,
		"stream":  false,
		"options": options,
	}
	if config.System != "" {
		body["system"] = config.System
	}
	if config.JSON {
		body["format"] = "json"
	}
	if len(images) > 0 {
		encoded := make([]string, 0, len(images))
		for _, img := range images {
			encoded = append(encoded, base64.StdEncoding.EncodeToString(img))
		}
		body["images"] = encoded
	}

	resp, err := o.post(ctx, "/api/generate", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return response.Response, nil
}

// Pull downloads a model if the server does not have it yet. It blocks until
// the server reports success.
func (o *Ollama) Pull(ctx context.Context, model string) error {
	resp, err := o.post(ctx, "/api/pull", map[string]interface{}{
		"model":  model,
		"stream": true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var last struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	for scanner.Scan() {
		if err := json.Unmarshal(scanner.Bytes(), &last); err != nil {
			return fmt.Errorf("failed to decode pull progress: %w", err)
		}
		if last.Error != "" {
			return fmt.Errorf("pull %s: %s", model, last.Error)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read pull progress: %w", err)
	}
	if last.Status != "success" {
		return fmt.Errorf("pull %s ended with status %q", model, last.Status)
	}
	return nil
}

func (o *Ollama) post(ctx context.Context, path string, body map[string]interface{}) (*http.Response, error) {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+path, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(b))
	}
	return resp, nil
}
