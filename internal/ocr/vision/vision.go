// Package vision implements ocr.Recognizer with a vision capable LLM served by
// Ollama. The model is asked for text regions with pixel boxes as JSON.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/panelator/internal/models"
	"github.com/lehigh-university-libraries/panelator/internal/ocr"
	"github.com/lehigh-university-libraries/panelator/internal/providers"
)

const defaultModel = "mistral-small3.2:24b"

// Generator is the part of the Ollama client the recognizer needs
type Generator interface {
	Generate(ctx context.Context, config providers.Config, images [][]byte) (string, error)
}

// Recognizer asks a vision model for the speech bubbles on a page
type Recognizer struct {
	lang  ocr.Language
	gen   Generator
	model string
	log   *slog.Logger
}

// New returns a recognizer for lang. An empty model resolves from OLLAMA_MODEL.
func New(gen Generator, lang ocr.Language, model string, log *slog.Logger) *Recognizer {
	if model == "" {
		model = os.Getenv("OLLAMA_MODEL")
	}
	if model == "" {
		model = defaultModel
	}
	if log == nil {
		log = slog.Default()
	}
	return &Recognizer{lang: lang, gen: gen, model: model, log: log}
}

func (r *Recognizer) Language() ocr.Language { return r.lang }

func (r *Recognizer) Close() error { return nil }

type detection struct {
	Text   string  `json:"text"`
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
	Lines  int     `json:"lines"`
}

// Recognize sends the page to the model and converts its answer to regions.
func (r *Recognizer) Recognize(ctx context.Context, img []byte) ([]models.TextRegion, error) {
	response, err := r.gen.Generate(ctx, providers.Config{
		Model:       r.model,
		Temperature: 0.0,
		Prompt:      r.buildPrompt(),
		JSON:        true,
	}, [][]byte{img})
	if err != nil {
		return nil, fmt.Errorf("vision OCR request: %w", err)
	}

	detections, err := parseDetections(response)
	if err != nil {
		return nil, err
	}

	regions := make([]models.TextRegion, 0, len(detections))
	for _, d := range detections {
		text := strings.TrimSpace(d.Text)
		if !ocr.Accept(text, d.Width, d.Height) {
			continue
		}
		lines := d.Lines
		if lines < 1 {
			lines = strings.Count(text, "\n") + 1
		}
		side := d.Height / float32(lines)
		regions = append(regions, models.TextRegion{
			Text:      text,
			X:         d.X,
			Y:         d.Y,
			Width:     d.Width,
			Height:    d.Height,
			SymWidth:  side,
			SymHeight: side,
		})
	}
	r.log.Debug("Recognized page", "engine", "vision", "model", r.model, "regions", len(regions))
	return regions, nil
}

// parseDetections accepts either a bare array or an object with a "regions" array.
func parseDetections(response string) ([]detection, error) {
	response = providers.TrimCodeFence(response)

	var list []detection
	if err := json.Unmarshal([]byte(response), &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Regions []detection `json:"regions"`
	}
	if err := json.Unmarshal([]byte(response), &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse vision OCR response: %w", err)
	}
	return wrapped.Regions, nil
}

func (r *Recognizer) buildPrompt() string {
	return fmt.Sprintf(`You are performing OCR (Optical Character Recognition) on a comic page written in %s.

Find every speech bubble, caption and sound effect that contains text.
For each one, transcribe the text exactly as it appears and measure its bounding box in image pixels.

OUTPUT FORMAT:
Return ONLY a JSON object of the form
{"regions":[{"text":"...","x":0,"y":0,"width":0,"height":0,"lines":1}]}
where x and y are the top-left corner and lines is the number of text lines in the region.
Keep the reading order of the page. Do not add commentary.`, r.lang.Label())
}
