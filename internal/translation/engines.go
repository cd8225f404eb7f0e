package translation

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/panelator/internal/ocr"
	"github.com/lehigh-university-libraries/panelator/internal/translator"
)

// RecognizerFactory builds a recognizer for one source language.
type RecognizerFactory func(lang ocr.Language) (ocr.Recognizer, error)

// TranslatorFactory builds a translator for one engine configuration.
type TranslatorFactory func(opts translator.Options) (translator.Translator, error)

// Engines caches the recognizer and translator of the last language pair.
// The cache is only rebuilt while nobody holds a lease; a job that needs
// another pair meanwhile gets private instances that close on release.
type Engines struct {
	newRecognizer RecognizerFactory
	newTranslator TranslatorFactory
	log           *slog.Logger

	mu     sync.Mutex
	key    translator.Options
	loaded bool
	rec    ocr.Recognizer
	tr     translator.Translator
	refs   int
}

// Lease grants use of a recognizer and translator until Release.
type Lease struct {
	Recognizer ocr.Recognizer
	Translator translator.Translator
	release    func()
	once       sync.Once
}

// Release returns the lease. It is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(l.release)
}

// NewEngines returns an empty cache.
func NewEngines(rec RecognizerFactory, tr TranslatorFactory, log *slog.Logger) *Engines {
	if tr == nil {
		tr = translator.Build
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engines{newRecognizer: rec, newTranslator: tr, log: log}
}

// Acquire returns engines for opts. Build failures come back as *JobError.
func (e *Engines) Acquire(opts translator.Options) (*Lease, error) {
	key := opts
	key.Log = nil

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded && e.key == key {
		e.refs++
		return e.sharedLease(), nil
	}

	if e.refs > 0 {
		e.log.Debug("Engines busy with another language pair, building private instances",
			"from", opts.From.String(), "to", opts.To.String())
		rec, tr, err := e.build(opts)
		if err != nil {
			return nil, err
		}
		return &Lease{
			Recognizer: rec,
			Translator: tr,
			release: func() {
				if err := errors.Join(rec.Close(), tr.Close()); err != nil {
					e.log.Warn("Failed to close engines", "err", err)
				}
			},
		}, nil
	}

	e.closeShared()
	e.log.Info("Loading engines", "from", opts.From.String(), "to", opts.To.String(), "engine", opts.Engine.String())
	rec, tr, err := e.build(opts)
	if err != nil {
		return nil, err
	}
	e.key, e.rec, e.tr, e.loaded = key, rec, tr, true
	e.refs = 1
	return e.sharedLease(), nil
}

func (e *Engines) sharedLease() *Lease {
	return &Lease{
		Recognizer: e.rec,
		Translator: e.tr,
		release: func() {
			e.mu.Lock()
			e.refs--
			e.mu.Unlock()
		},
	}
}

func (e *Engines) build(opts translator.Options) (ocr.Recognizer, translator.Translator, error) {
	rec, err := e.newRecognizer(opts.From)
	if err != nil {
		return nil, nil, classify(KindRecognition, err)
	}
	tr, err := e.newTranslator(opts)
	if err != nil {
		rec.Close()
		return nil, nil, classify(KindTranslation, err)
	}
	return rec, tr, nil
}

func (e *Engines) closeShared() {
	if !e.loaded {
		return
	}
	if err := errors.Join(e.rec.Close(), e.tr.Close()); err != nil {
		e.log.Warn("Failed to close engines", "err", err)
	}
	e.rec, e.tr, e.loaded = nil, nil, false
}

// Close releases the cached engines if no lease is outstanding.
func (e *Engines) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refs == 0 {
		e.closeShared()
	}
}
