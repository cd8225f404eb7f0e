package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lehigh-university-libraries/panelator/internal/models"
	"github.com/lehigh-university-libraries/panelator/internal/providers"
)

// Sentinel is the placeholder the model substitutes for watermarks and site
// links. Blocks whose translation contains it are removed.
const Sentinel = "RTMTH"

// placeholder is what a model writes for an entry it could not translate.
const placeholder = "NULL"

var defaultBatchModels = map[Engine]string{
	Gemini:     "gemini-2.0-flash",
	OpenRouter: "google/gemini-2.0-flash-exp:free",
	Perplexity: "sonar",
}

// responseSchema accepts an object whose values are arrays of strings (or nulls).
var responseSchema = map[string]any{
	"type": "object",
	"additionalProperties": map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": []string{"string", "null"},
		},
	},
}

var compiledSchema = mustCompileSchema(responseSchema)

func mustCompileSchema(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("batch.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema: %v", err))
	}
	return compiler.MustCompile("batch.json")
}

// BatchTranslator sends a whole chapter to an LLM as a single JSON document.
type BatchTranslator struct {
	provider    providers.Provider
	model       string
	to          string
	temperature float64
	maxTokens   int
	log         *slog.Logger
}

// NewBatch returns a translator that talks to provider.
func NewBatch(provider providers.Provider, opts Options) *BatchTranslator {
	model := opts.Model
	if model == "" {
		model = defaultBatchModels[opts.Engine]
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &BatchTranslator{
		provider:    provider,
		model:       model,
		to:          Label(opts.To),
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		log:         log,
	}
}

func (t *BatchTranslator) Translate(ctx context.Context, pages models.DocumentResult) error {
	input, err := json.Marshal(pages.Texts())
	if err != nil {
		return fmt.Errorf("marshal batch input: %w", err)
	}

	response, err := t.provider.Complete(ctx, providers.Config{
		Model:       t.model,
		Temperature: t.temperature,
		MaxTokens:   t.maxTokens,
		System:      t.buildSystemPrompt(),
		Prompt:      "JSON " + string(input),
		JSON:        true,
	})
	if err != nil {
		return fmt.Errorf("batch translation request: %w", err)
	}

	translations, err := parseBatchResponse(response)
	if err != nil {
		return err
	}

	removed := apply(pages, translations)
	t.log.Debug("Applied batch translation", "pages", len(pages), "removed", removed)
	return nil
}

// parseBatchResponse trims code fences, validates and decodes the model output.
func parseBatchResponse(response string) (map[string][]*string, error) {
	data := []byte(providers.TrimCodeFence(response))

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse batch response: %w", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("batch response does not match schema: %w", err)
	}

	var out map[string][]*string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode batch response: %w", err)
	}
	return out, nil
}

// apply writes translations back by position, falling back to the source text
// for missing entries, and drops sentinel blocks. It returns the number of
// blocks removed.
func apply(pages models.DocumentResult, translations map[string][]*string) int {
	removed := 0
	for key, page := range pages {
		entries := translations[key]
		kept := page.Blocks[:0]
		for i, b := range page.Blocks {
			b.Translation = b.Text
			if i < len(entries) && entries[i] != nil && *entries[i] != placeholder {
				b.Translation = *entries[i]
			}
			if strings.Contains(b.Translation, Sentinel) {
				removed++
				continue
			}
			kept = append(kept, b)
		}
		page.Blocks = kept
	}
	return removed
}

func (t *BatchTranslator) buildSystemPrompt() string {
	return fmt.Sprintf(`## System Prompt for Manhwa/Manga/Manhua Translation

You are a highly skilled AI tasked with translating text from scanned images of comics (manhwa, manga, manhua) while preserving the original structure and removing any watermarks or site links.

**Here's how you should operate:**

1. **Input:** You'll receive a JSON object where keys are image filenames (e.g., "001.jpg") and values are lists of text strings extracted from those images.

2. **Translation:** Translate all text strings to the target language %[1]s. Ensure the translation is natural and fluent, adapting idioms and expressions to fit the target language's cultural context.

3. **Watermark/Site Link Removal:** Replace any watermarks or site links (e.g., "colamanga.com") with the placeholder "%[2]s".

4. **Structure Preservation:** Maintain the exact same structure as the input JSON. The output JSON should have the same number of keys (image filenames) and the same number of text strings within each list.

**Example:**

Input:
{"001.jpg":["chinese1","chinese2"],"002.jpg":["chinese2","colamanga.com"]}

Output (for %[1]s = English):
{"001.jpg":["eng1","eng2"],"002.jpg":["eng2","%[2]s"]}

**Key Points:**

* Prioritize accurate and natural-sounding translations.
* Be meticulous in removing all watermarks and site links.
* Ensure the output JSON structure perfectly mirrors the input structure.`, t.to, Sentinel)
}

func (t *BatchTranslator) Close() error { return nil }
