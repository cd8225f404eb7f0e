package translation

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyTracked is returned by Enqueue when the chapter is in the queue.
	ErrAlreadyTracked = errors.New("chapter already queued")
	// ErrAlreadyTranslated is returned by Enqueue when a result is persisted.
	ErrAlreadyTranslated = errors.New("chapter already translated")

	errSuperseded = errors.New("job left the active set")
	errStopped    = errors.New("scheduler stopped")
	errPaused     = errors.New("scheduler paused")
	errFinished   = errors.New("queue drained")
)

// Kind classifies an expected job failure.
type Kind string

const (
	KindState       Kind = "state"
	KindStorage     Kind = "storage"
	KindSource      Kind = "source"
	KindRecognition Kind = "recognition"
	KindTranslation Kind = "translation"
	KindWrite       Kind = "write"
)

// JobError is a failure that ends one job in Error without affecting the
// scheduler. Any other error from a job halts the scheduler.
type JobError struct {
	Kind Kind
	Err  error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

func classify(kind Kind, err error) error {
	return &JobError{Kind: kind, Err: err}
}
