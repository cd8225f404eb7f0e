package translator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/panelator/internal/models"
	"github.com/lehigh-university-libraries/panelator/internal/providers"
)

const defaultLocalModel = "qwen2.5:7b"

// Puller is a provider that can fetch model weights ahead of use.
type Puller interface {
	providers.Provider
	Pull(ctx context.Context, model string) error
}

// pulled records the model/language pairs already fetched in this process.
var pulled sync.Map

// LocalTranslator translates block by block with a model served by Ollama.
type LocalTranslator struct {
	client      Puller
	model       string
	from        string
	to          string
	temperature float64
	log         *slog.Logger
}

// NewLocal returns a translator backed by client. An empty model resolves
// from OLLAMA_TRANSLATION_MODEL.
func NewLocal(client Puller, opts Options) *LocalTranslator {
	model := opts.Model
	if model == "" {
		model = os.Getenv("OLLAMA_TRANSLATION_MODEL")
	}
	if model == "" {
		model = defaultLocalModel
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &LocalTranslator{
		client:      client,
		model:       model,
		from:        opts.From.Label(),
		to:          Label(opts.To),
		temperature: 0.0,
		log:         log,
	}
}

// ensureModel pulls the model once per language pair.
func (t *LocalTranslator) ensureModel(ctx context.Context) error {
	key := t.model + "|" + t.from + "|" + t.to
	if _, ok := pulled.Load(key); ok {
		return nil
	}
	t.log.Info("Pulling translation model", "model", t.model, "from", t.from, "to", t.to)
	if err := t.client.Pull(ctx, t.model); err != nil {
		return fmt.Errorf("prepare local model: %w", err)
	}
	pulled.Store(key, struct{}{})
	return nil
}

// Translate sends each non-empty line of each block separately and joins the
// non-empty results with newlines.
func (t *LocalTranslator) Translate(ctx context.Context, pages models.DocumentResult) error {
	if err := t.ensureModel(ctx); err != nil {
		return err
	}
	for _, page := range pages {
		for i := range page.Blocks {
			b := &page.Blocks[i]
			var out []string
			for _, line := range strings.Split(b.Text, "\n") {
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				res, err := t.client.Complete(ctx, providers.Config{
					Model:       t.model,
					Temperature: t.temperature,
					System:      t.buildPrompt(),
					Prompt:      line,
				})
				if err != nil {
					return fmt.Errorf("translate line: %w", err)
				}
				if res = strings.TrimSpace(res); res != "" {
					out = append(out, res)
				}
			}
			b.Translation = strings.Join(out, "\n")
		}
	}
	return nil
}

func (t *LocalTranslator) buildPrompt() string {
	return fmt.Sprintf(`You translate comic dialogue from %s to %s.
Reply with the translation only. Do not add notes, quotes or explanations.`, t.from, t.to)
}

func (t *LocalTranslator) Close() error { return nil }
