package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/panelator/internal/config"
	"github.com/lehigh-university-libraries/panelator/internal/images"
	"github.com/lehigh-university-libraries/panelator/internal/ocr"
	"github.com/lehigh-university-libraries/panelator/internal/ocr/tesseract"
	"github.com/lehigh-university-libraries/panelator/internal/ocr/vision"
	"github.com/lehigh-university-libraries/panelator/internal/ollama"
	"github.com/lehigh-university-libraries/panelator/internal/storage"
	"github.com/lehigh-university-libraries/panelator/internal/translation"
)

// app holds the collaborators every command shares.
type app struct {
	prefs   config.Preferences
	store   *storage.Provider
	library *images.Library
	manager *translation.Manager
}

func loadApp(opts *rootOptions) (*app, error) {
	prefs, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	log := slog.Default()
	store := storage.New(prefs.TranslationsDir, log)
	library := images.NewLibrary(prefs.LibraryDir, log)
	manager := translation.NewManager(prefs, store, library, recognizers(prefs), translation.WithLogger(log))

	slog.Debug("Loaded preferences",
		"config", opts.configPath,
		"engine", prefs.EngineValue().String(),
		"source", prefs.Source().String(),
		"target", prefs.TargetLanguage,
		"ocr", prefs.OCREngine)
	return &app{prefs: prefs, store: store, library: library, manager: manager}, nil
}

// recognizers selects the OCR engine named in the preferences.
func recognizers(prefs config.Preferences) translation.RecognizerFactory {
	return func(lang ocr.Language) (ocr.Recognizer, error) {
		switch prefs.OCREngine {
		case config.OCRVision:
			return vision.New(ollama.New(prefs.OllamaURL), lang, prefs.VisionModel, slog.Default()), nil
		case config.OCRTesseract, "":
			r, err := tesseract.New(lang, slog.Default())
			if err != nil {
				return nil, err
			}
			return r, nil
		default:
			return nil, fmt.Errorf("unknown ocr engine %q", prefs.OCREngine)
		}
	}
}

// enqueueLibrary queues every chapter of the library, optionally limited to
// one source or title. Chapters already queued or translated are skipped.
func (a *app) enqueueLibrary(source, title string) (queued, skipped int, err error) {
	docs, err := a.library.Documents()
	if err != nil {
		return 0, 0, err
	}
	for _, d := range docs {
		if source != "" && d.Source != source {
			continue
		}
		if title != "" && d.Title != title {
			continue
		}
		names, err := a.library.Chapters(d.Source, d.Title)
		if err != nil {
			return queued, skipped, err
		}
		for _, name := range names {
			_, err := a.manager.Enqueue(storage.Chapter{Source: d.Source, Title: d.Title, Name: name})
			switch {
			case err == nil:
				queued++
			case errors.Is(err, translation.ErrAlreadyTracked), errors.Is(err, translation.ErrAlreadyTranslated):
				skipped++
			default:
				return queued, skipped, err
			}
		}
	}
	return queued, skipped, nil
}
