package translator

import (
	"errors"
	"testing"

	"golang.org/x/text/language"

	"github.com/lehigh-university-libraries/panelator/internal/ocr"
)

func TestEngineFromOrdinal(t *testing.T) {
	tests := []struct {
		ordinal  int
		expected Engine
	}{
		{0, Local},
		{1, Google},
		{2, Gemini},
		{3, OpenRouter},
		{4, Perplexity},
		{5, Local},
		{-1, Local},
	}

	for _, tt := range tests {
		if got := EngineFromOrdinal(tt.ordinal); got != tt.expected {
			t.Errorf("EngineFromOrdinal(%d): Expected %v, got %v", tt.ordinal, tt.expected, got)
		}
	}
}

func TestParseEngine(t *testing.T) {
	tests := []struct {
		input    string
		expected Engine
	}{
		{"gemini", Gemini},
		{"OpenRouter", OpenRouter},
		{"4", Perplexity},
		{"42", Local},
		{"bogus", Local},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseEngine(tt.input); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{
			name: "local english",
			opts: Options{Engine: Local, From: ocr.Chinese, To: language.English},
		},
		{
			name:    "local unsupported target",
			opts:    Options{Engine: Local, From: ocr.Chinese, To: language.MustParse("haw")},
			wantErr: ErrUnsupportedLanguage,
		},
		{
			name:    "local swahili",
			opts:    Options{Engine: Local, From: ocr.Japanese, To: language.Swahili},
			wantErr: ErrUnsupportedLanguage,
		},
		{
			name:    "local zulu",
			opts:    Options{Engine: Local, From: ocr.Japanese, To: language.Zulu},
			wantErr: ErrUnsupportedLanguage,
		},
		{
			name:    "local xhosa",
			opts:    Options{Engine: Local, From: ocr.Korean, To: language.MustParse("xh")},
			wantErr: ErrUnsupportedLanguage,
		},
		{
			name: "local brazilian portuguese",
			opts: Options{Engine: Local, From: ocr.Chinese, To: language.BrazilianPortuguese},
		},
		{
			name: "local traditional chinese",
			opts: Options{Engine: Local, From: ocr.Japanese, To: language.MustParse("zh-Hant")},
		},
		{
			name: "local regional english",
			opts: Options{Engine: Local, From: ocr.Japanese, To: language.MustParse("en-GB")},
		},
		{
			name:    "no target",
			opts:    Options{Engine: Google, To: language.Und},
			wantErr: ErrUnsupportedLanguage,
		},
		{
			name: "google accepts any tag",
			opts: Options{Engine: Google, To: language.MustParse("haw")},
		},
		{
			name:    "gemini without key",
			opts:    Options{Engine: Gemini, To: language.English},
			wantErr: ErrMissingAPIKey,
		},
		{
			name: "perplexity with key",
			opts: Options{Engine: Perplexity, To: language.English, APIKey: "k"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.opts)
			if tt.wantErr == nil && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		engine Engine
		check  func(Translator) bool
	}{
		{Local, func(tr Translator) bool { _, ok := tr.(*LocalTranslator); return ok }},
		{Google, func(tr Translator) bool { _, ok := tr.(*GoogleTranslator); return ok }},
		{Gemini, func(tr Translator) bool { _, ok := tr.(*BatchTranslator); return ok }},
		{OpenRouter, func(tr Translator) bool { _, ok := tr.(*BatchTranslator); return ok }},
		{Perplexity, func(tr Translator) bool { _, ok := tr.(*BatchTranslator); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.engine.String(), func(t *testing.T) {
			tr, err := Build(Options{Engine: tt.engine, To: language.English, APIKey: "k"})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			defer tr.Close()
			if !tt.check(tr) {
				t.Errorf("Unexpected translator type %T", tr)
			}
		})
	}
}

func TestParseTarget(t *testing.T) {
	if _, err := ParseTarget("not a tag!"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("Expected ErrUnsupportedLanguage, got %v", err)
	}
	tag, err := ParseTarget(" pt-BR ")
	if err != nil {
		t.Fatalf("ParseTarget() error = %v", err)
	}
	if tag != language.BrazilianPortuguese {
		t.Errorf("Expected pt-BR, got %v", tag)
	}
}
