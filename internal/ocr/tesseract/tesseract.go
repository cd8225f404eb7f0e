// Package tesseract implements ocr.Recognizer on top of the gosseract client.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/lehigh-university-libraries/panelator/internal/models"
	"github.com/lehigh-university-libraries/panelator/internal/ocr"
)

// trainedData maps a language family to the tesseract traineddata it needs.
var trainedData = map[ocr.Language][]string{
	ocr.Chinese:  {"chi_sim", "chi_tra"},
	ocr.Japanese: {"jpn"},
	ocr.Korean:   {"kor"},
	ocr.English:  {"eng"},
}

// Recognizer holds one gosseract client configured for a language. gosseract
// clients are not safe for concurrent use, so calls are serialized.
type Recognizer struct {
	lang   ocr.Language
	mu     sync.Mutex
	client *gosseract.Client
	log    *slog.Logger
}

// New creates a recognizer for lang.
func New(lang ocr.Language, log *slog.Logger) (*Recognizer, error) {
	if log == nil {
		log = slog.Default()
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(trainedData[lang]...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set tesseract language %s: %w", lang, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	return &Recognizer{lang: lang, client: client, log: log}, nil
}

func (r *Recognizer) Language() ocr.Language { return r.lang }

// Recognize returns one region per detected paragraph.
func (r *Recognizer) Recognize(ctx context.Context, img []byte) ([]models.TextRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	paragraphs, err := r.client.GetBoundingBoxes(gosseract.RIL_PARA)
	if err != nil {
		return nil, fmt.Errorf("paragraph boxes: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbols, err := r.client.GetBoundingBoxes(gosseract.RIL_SYMBOL)
	if err != nil {
		return nil, fmt.Errorf("symbol boxes: %w", err)
	}

	regions := make([]models.TextRegion, 0, len(paragraphs))
	for _, p := range paragraphs {
		text := strings.TrimSpace(p.Word)
		w, h := float32(p.Box.Dx()), float32(p.Box.Dy())
		if !ocr.Accept(text, w, h) {
			continue
		}
		sym := firstSymbol(p.Box, symbols)
		regions = append(regions, models.TextRegion{
			Text:      text,
			X:         float32(p.Box.Min.X),
			Y:         float32(p.Box.Min.Y),
			Width:     w,
			Height:    h,
			SymWidth:  float32(sym.Dx()),
			SymHeight: float32(sym.Dy()),
		})
	}
	r.log.Debug("Recognized page", "engine", "tesseract", "language", r.lang.String(), "regions", len(regions))
	return regions, nil
}

// firstSymbol returns the first glyph box inside the paragraph. It is only a
// padding heuristic, so a missing glyph falls back to a square of the line height.
func firstSymbol(para image.Rectangle, symbols []gosseract.BoundingBox) image.Rectangle {
	for _, s := range symbols {
		if s.Box.In(para) {
			return s.Box
		}
	}
	side := min(para.Dy(), para.Dx())
	return image.Rect(0, 0, side, side)
}

func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}
