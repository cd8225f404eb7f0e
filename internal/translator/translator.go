// Package translator turns recognized page text into the target language.
// Engines differ in batching: the local and Google engines work block by
// block, the LLM engines send the whole chapter as one JSON request.
package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/lehigh-university-libraries/panelator/internal/gemini"
	"github.com/lehigh-university-libraries/panelator/internal/models"
	"github.com/lehigh-university-libraries/panelator/internal/ocr"
	"github.com/lehigh-university-libraries/panelator/internal/ollama"
	"github.com/lehigh-university-libraries/panelator/internal/openai"
	"github.com/lehigh-university-libraries/panelator/internal/openrouter"
)

var (
	// ErrUnsupportedLanguage is returned when the selected engine cannot
	// translate into the requested target language.
	ErrUnsupportedLanguage = errors.New("target language not supported by engine")
	// ErrMissingAPIKey is returned when a remote engine is selected without a key.
	ErrMissingAPIKey = errors.New("engine requires an API key")
)

// Translator fills in TextBlock.Translation for every block of every page.
// Implementations may also remove blocks.
type Translator interface {
	Translate(ctx context.Context, pages models.DocumentResult) error
	Close() error
}

// Engine selects a translation backend. The numeric value is what the
// preferences store.
type Engine int

const (
	Local Engine = iota
	Google
	Gemini
	OpenRouter
	Perplexity
)

var engineNames = []string{"local", "google", "gemini", "openrouter", "perplexity"}

var engineLabels = []string{
	"Ollama (Local)",
	"Google Translate",
	"Gemini AI [API KEY]",
	"OpenRouter [API KEY]",
	"Perplexity AI [API KEY]",
}

// EngineFromOrdinal maps a stored preference to an Engine. Out of range
// values fall back to Local.
func EngineFromOrdinal(n int) Engine {
	if n < 0 || n >= len(engineNames) {
		return Local
	}
	return Engine(n)
}

// ParseEngine accepts either a name ("gemini") or an ordinal ("2").
func ParseEngine(value string) Engine {
	v := strings.TrimSpace(value)
	for i, name := range engineNames {
		if strings.EqualFold(v, name) {
			return Engine(i)
		}
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
		return EngineFromOrdinal(n)
	}
	return Local
}

func (e Engine) String() string { return engineNames[EngineFromOrdinal(int(e))] }

// Label returns the name shown to users.
func (e Engine) Label() string { return engineLabels[EngineFromOrdinal(int(e))] }

// RequiresAPIKey reports whether the engine is a paid remote API.
func (e Engine) RequiresAPIKey() bool {
	switch e {
	case Gemini, OpenRouter, Perplexity:
		return true
	}
	return false
}

// localTargets are the languages the default local models translate into reliably.
var localTargets = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Italian,
	language.Portuguese,
	language.BrazilianPortuguese,
	language.Russian,
	language.Indonesian,
	language.Vietnamese,
	language.Thai,
	language.Arabic,
	language.Turkish,
	language.Polish,
	language.Japanese,
	language.Korean,
	language.SimplifiedChinese,
	language.TraditionalChinese,
}

var localMatcher = language.NewMatcher(localTargets)

// Options configure an engine for one language pair.
type Options struct {
	Engine      Engine
	From        ocr.Language
	To          language.Tag
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	// OllamaURL overrides the local server address.
	OllamaURL string
	Log       *slog.Logger
}

// ParseTarget parses a BCP 47 target language.
func ParseTarget(code string) (language.Tag, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil || tag == language.Und {
		return language.Und, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	return tag, nil
}

// Label returns the English display name of a target language.
func Label(tag language.Tag) string {
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// Validate reports configuration errors before a job is created.
func Validate(opts Options) error {
	if opts.To == language.Und {
		return fmt.Errorf("%w: no target language", ErrUnsupportedLanguage)
	}
	if opts.Engine == Local {
		if !localSupports(opts.To) {
			return fmt.Errorf("%w: %s cannot translate to %s", ErrUnsupportedLanguage, opts.Engine.Label(), Label(opts.To))
		}
	}
	if opts.Engine.RequiresAPIKey() && strings.TrimSpace(opts.APIKey) == "" {
		return fmt.Errorf("%w: %s", ErrMissingAPIKey, opts.Engine.Label())
	}
	return nil
}

// localSupports reports whether the local engine has a model for tag. The
// matcher falls back to English for unrelated languages, so the base language
// of the match must be the requested one.
func localSupports(tag language.Tag) bool {
	match, _, conf := localMatcher.Match(tag)
	if conf == language.No {
		return false
	}
	mb, _ := match.Base()
	tb, _ := tag.Base()
	return mb == tb
}

// Build validates opts and returns the engine they select.
func Build(opts Options) (Translator, error) {
	if err := Validate(opts); err != nil {
		return nil, err
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	opts.Log = opts.Log.With("engine", opts.Engine.String())

	switch opts.Engine {
	case Google:
		return NewGoogle(opts.To, opts.Log), nil
	case Gemini:
		return NewBatch(gemini.New(opts.APIKey), opts), nil
	case OpenRouter:
		return NewBatch(openrouter.New(opts.APIKey), opts), nil
	case Perplexity:
		return NewBatch(openai.New(openai.PerplexityBaseURL, opts.APIKey), opts), nil
	default:
		return NewLocal(ollama.New(opts.OllamaURL), opts), nil
	}
}
