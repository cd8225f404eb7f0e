// Package ocr defines the recognition capability: an engine that turns a page
// image into raw text regions for one source language.
package ocr

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/lehigh-university-libraries/panelator/internal/models"
)

// Recognizer extracts text regions from an encoded image. An instance is bound
// to one source language and must be replaced when the language changes.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) ([]models.TextRegion, error)
	Language() Language
	Close() error
}

// Language is a supported source language family.
type Language int

const (
	Chinese Language = iota
	Japanese
	Korean
	English
)

var languageNames = map[Language]string{
	Chinese:  "CHINESE",
	Japanese: "JAPANESE",
	Korean:   "KOREAN",
	English:  "ENGLISH",
}

var languageLabels = map[Language]string{
	Chinese:  "Chinese (trad/sim)",
	Japanese: "Japanese",
	Korean:   "Korean",
	English:  "English",
}

// Code returns the BCP-47 code of the language.
func (l Language) Code() string {
	switch l {
	case Japanese:
		return "ja"
	case Korean:
		return "ko"
	case English:
		return "en"
	default:
		return "zh"
	}
}

func (l Language) String() string {
	return languageNames[l]
}

// Label returns a human readable name.
func (l Language) Label() string {
	return languageLabels[l]
}

// ParseLanguage resolves a preference value case-insensitively by name or code.
// Unknown values fall back to Chinese.
func ParseLanguage(value string) Language {
	v := strings.TrimSpace(value)
	for lang, name := range languageNames {
		if strings.EqualFold(v, name) || strings.EqualFold(v, lang.Code()) {
			return lang
		}
	}
	return Chinese
}

// Accept reports whether a detection is worth keeping: it needs a non-empty
// box and more than one character of text.
func Accept(text string, width, height float32) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(text)) > 1
}
