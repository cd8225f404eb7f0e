package report

import (
	"sync"
	"time"

	"github.com/lehigh-university-libraries/panelator/internal/models"
	"github.com/lehigh-university-libraries/panelator/internal/storage"
	"github.com/lehigh-university-libraries/panelator/internal/translation"
)

// Recorder turns job events into chapter results.
type Recorder struct {
	// Result reads a translated chapter for its page and block counts. Optional.
	Result func(storage.Chapter) (models.DocumentResult, error)

	now     func() time.Time
	mu      sync.Mutex
	started map[string]time.Time
	results map[string]*ChapterResult
	order   []string
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		now:     time.Now,
		started: make(map[string]time.Time),
		results: make(map[string]*ChapterResult),
	}
}

// Observe records one event. Only the last terminal state of a chapter is kept.
func (r *Recorder) Observe(ev translation.Event) {
	id := ev.Job.ChapterID
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.State {
	case translation.Translating:
		r.started[id] = now
		return
	case translation.Translated, translation.Error:
	default:
		return
	}

	res, ok := r.results[id]
	if !ok {
		res = &ChapterResult{ChapterID: id}
		r.results[id] = res
		r.order = append(r.order, id)
	}
	res.Status = ev.State.String()
	res.Error = ""
	if start, ok := r.started[id]; ok {
		res.ProcessingTime = now.Sub(start)
	}

	if ev.State == translation.Error {
		res.Error = "stopped"
		if err := ev.Job.Err(); err != nil {
			res.Error = err.Error()
		}
		return
	}
	if r.Result != nil {
		if doc, err := r.Result(ev.Job.Chapter); err == nil {
			res.Pages = len(doc)
			res.Blocks = doc.BlockCount()
		}
	}
}

// Results returns chapter results in the order chapters first finished.
func (r *Recorder) Results() []ChapterResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ChapterResult, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.results[id])
	}
	return out
}
