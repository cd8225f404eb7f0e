// Package config loads user preferences from a YAML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/panelator/internal/merge"
	"github.com/lehigh-university-libraries/panelator/internal/ocr"
	"github.com/lehigh-university-libraries/panelator/internal/translator"
)

const (
	DefaultTemperature = 1.0
	DefaultMaxTokens   = 8914
)

// OCR engine names.
const (
	OCRTesseract = "tesseract"
	OCRVision    = "vision"
)

// Preferences mirrors the settings screen. Temperature and max tokens are
// stored as strings and parsed on read.
type Preferences struct {
	AutoTranslate   bool             `yaml:"auto_translate"`
	SourceLanguage  string           `yaml:"source_language"`
	TargetLanguage  string           `yaml:"target_language"`
	Engine          int              `yaml:"engine"`
	APIKey          string           `yaml:"api_key"`
	Model           string           `yaml:"model"`
	Temperature     string           `yaml:"temperature"`
	MaxTokens       string           `yaml:"max_output_tokens"`
	LibraryDir      string           `yaml:"library_dir"`
	TranslationsDir string           `yaml:"translations_dir"`
	OCREngine       string           `yaml:"ocr_engine"`
	VisionModel     string           `yaml:"vision_model"`
	OllamaURL       string           `yaml:"ollama_url"`
	MergePolicy     merge.Policy     `yaml:"merge_policy"`
	Tolerances      merge.Tolerances `yaml:"merge_tolerances"`
}

// Default returns the preferences of a fresh install.
func Default() Preferences {
	return Preferences{
		AutoTranslate:   false,
		SourceLanguage:  ocr.Chinese.String(),
		TargetLanguage:  "en",
		Engine:          int(translator.Local),
		Temperature:     "1.0",
		MaxTokens:       strconv.Itoa(DefaultMaxTokens),
		LibraryDir:      "library",
		TranslationsDir: "translations",
		OCREngine:       OCRTesseract,
		MergePolicy:     merge.PolicySweep,
		Tolerances:      merge.DefaultTolerances(),
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Preferences, error) {
	prefs := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("No preferences file, using defaults", "path", path)
		case err != nil:
			return prefs, fmt.Errorf("read preferences: %w", err)
		default:
			if err := yaml.Unmarshal(data, &prefs); err != nil {
				return prefs, fmt.Errorf("parse preferences %s: %w", path, err)
			}
		}
	}
	prefs.ApplyEnv()
	return prefs, nil
}

// Save writes the preferences as YAML.
func (p Preferences) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from PANELATOR_* variables and fills the API key
// from the engine's conventional variable when unset.
func (p *Preferences) ApplyEnv() {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("PANELATOR_SOURCE_LANGUAGE", &p.SourceLanguage)
	setString("PANELATOR_TARGET_LANGUAGE", &p.TargetLanguage)
	setString("PANELATOR_API_KEY", &p.APIKey)
	setString("PANELATOR_MODEL", &p.Model)
	setString("PANELATOR_TEMPERATURE", &p.Temperature)
	setString("PANELATOR_MAX_TOKENS", &p.MaxTokens)
	setString("PANELATOR_LIBRARY_DIR", &p.LibraryDir)
	setString("PANELATOR_TRANSLATIONS_DIR", &p.TranslationsDir)
	setString("PANELATOR_OCR_ENGINE", &p.OCREngine)
	setString("PANELATOR_VISION_MODEL", &p.VisionModel)
	setString("OLLAMA_URL", &p.OllamaURL)

	if v := os.Getenv("PANELATOR_ENGINE"); v != "" {
		p.Engine = int(translator.ParseEngine(v))
	}
	if v := os.Getenv("PANELATOR_AUTO_TRANSLATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			p.AutoTranslate = b
		}
	}
	if v := os.Getenv("PANELATOR_MERGE_POLICY"); v != "" {
		p.MergePolicy = merge.Policy(strings.ToLower(v))
	}

	if p.APIKey == "" {
		switch p.EngineValue() {
		case translator.Gemini:
			p.APIKey = os.Getenv("GEMINI_API_KEY")
		case translator.OpenRouter:
			p.APIKey = os.Getenv("OPENROUTER_API_KEY")
		case translator.Perplexity:
			p.APIKey = os.Getenv("PERPLEXITY_API_KEY")
		}
	}
}

// TemperatureValue parses the temperature, falling back to 1.0.
func (p Preferences) TemperatureValue() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(p.Temperature), 64)
	if err != nil {
		return DefaultTemperature
	}
	return v
}

// MaxTokensValue parses the output token limit, falling back to 8914.
func (p Preferences) MaxTokensValue() int {
	v, err := strconv.Atoi(strings.TrimSpace(p.MaxTokens))
	if err != nil {
		return DefaultMaxTokens
	}
	return v
}

// Source returns the recognition language.
func (p Preferences) Source() ocr.Language {
	return ocr.ParseLanguage(p.SourceLanguage)
}

// Target returns the translation language.
func (p Preferences) Target() (language.Tag, error) {
	return translator.ParseTarget(p.TargetLanguage)
}

// EngineValue returns the selected translation engine.
func (p Preferences) EngineValue() translator.Engine {
	return translator.EngineFromOrdinal(p.Engine)
}

// Policy returns the merge policy, defaulting to the reading order sweep.
func (p Preferences) Policy() merge.Policy {
	if p.MergePolicy == merge.PolicyOverlap {
		return merge.PolicyOverlap
	}
	return merge.PolicySweep
}

// TranslatorOptions assembles engine options for the current language pair.
func (p Preferences) TranslatorOptions(log *slog.Logger) (translator.Options, error) {
	to, err := p.Target()
	if err != nil {
		return translator.Options{}, err
	}
	return translator.Options{
		Engine:      p.EngineValue(),
		From:        p.Source(),
		To:          to,
		APIKey:      p.APIKey,
		Model:       p.Model,
		Temperature: p.TemperatureValue(),
		MaxTokens:   p.MaxTokensValue(),
		OllamaURL:   p.OllamaURL,
		Log:         log,
	}, nil
}
