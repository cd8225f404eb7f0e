// Package translation drives chapters through recognition, merging and
// translation. A Manager owns the job queue, a Scheduler that keeps at most
// one job per source running, and the Pipeline that executes a job.
package translation

import (
	"fmt"
	"sync"

	"github.com/lehigh-university-libraries/panelator/internal/storage"
	"github.com/lehigh-university-libraries/panelator/internal/translator"
)

// State is the lifecycle position of a job. Ordinals are significant: every
// state up to Translating counts as pending.
type State int

const (
	NotTranslated State = iota
	Queued
	Translating
	Translated
	Error
)

var stateNames = []string{"NOT_TRANSLATED", "QUEUE", "TRANSLATING", "TRANSLATED", "ERROR"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Pending reports whether the job still needs work.
func (s State) Pending() bool {
	return s <= Translating
}

var transitions = map[State][]State{
	NotTranslated: {Queued},
	Queued:        {Translating, Error, NotTranslated, Queued},
	Translating:   {Translated, Error, Queued, NotTranslated},
	Error:         {Queued, NotTranslated},
	Translated:    nil,
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Event is a status change of a job. Seq increases with every change of
// the same job.
type Event struct {
	Job   *Job
	State State
	Seq   uint64
}

// Job is one chapter to translate. Jobs are compared by pointer; the chapter
// ID is unique among tracked jobs.
type Job struct {
	SourceID   string
	DocumentID string
	ChapterID  string
	Chapter    storage.Chapter
	// Options is the engine configuration captured at enqueue time.
	Options translator.Options

	// pub orders transitions with their events.
	pub   sync.Mutex
	mu    sync.Mutex
	state State
	seq   uint64
	err   error
	hub   *Hub
}

// NewJob returns a job for chapter in state NotTranslated.
func NewJob(chapter storage.Chapter, opts translator.Options, hub *Hub) *Job {
	opts.Log = nil
	return &Job{
		SourceID:   chapter.Source,
		DocumentID: DocumentID(chapter.Source, chapter.Title),
		ChapterID:  ChapterID(chapter),
		Chapter:    chapter,
		Options:    opts,
		hub:        hub,
	}
}

// DocumentID identifies a title within a source.
func DocumentID(source, title string) string {
	return storage.ValidFilename(source) + "/" + storage.ValidFilename(title)
}

// ChapterID identifies a chapter by the path of its result file.
func ChapterID(c storage.Chapter) string {
	return DocumentID(c.Source, c.Title) + "/" + storage.ResultFileName(c.Name, c.Scanlator)
}

// Status returns the current state.
func (j *Job) Status() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// SetStatus moves the job to to. Setting the current state is a no-op;
// an illegal move returns an error and leaves the job unchanged.
func (j *Job) SetStatus(to State) error {
	j.pub.Lock()
	defer j.pub.Unlock()

	j.mu.Lock()
	from := j.state
	if from == to {
		j.mu.Unlock()
		return nil
	}
	if !CanTransition(from, to) {
		j.mu.Unlock()
		return fmt.Errorf("illegal transition %s -> %s for %s", from, to, j.ChapterID)
	}
	j.state = to
	if to == Queued {
		j.err = nil
	}
	j.seq++
	seq := j.seq
	j.mu.Unlock()

	j.publish(to, seq)
	return nil
}

// Err returns the failure that put the job in Error, if one was recorded.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// fail records err and moves the job to Error.
func (j *Job) fail(err error) error {
	j.mu.Lock()
	prev := j.err
	j.err = err
	j.mu.Unlock()
	if serr := j.SetStatus(Error); serr != nil {
		j.mu.Lock()
		j.err = prev
		j.mu.Unlock()
		return serr
	}
	return nil
}

// swapStatus moves the job to to only if it is currently in from.
func (j *Job) swapStatus(from, to State) bool {
	j.pub.Lock()
	defer j.pub.Unlock()

	j.mu.Lock()
	if j.state != from || !CanTransition(from, to) {
		j.mu.Unlock()
		return false
	}
	j.state = to
	if to == Queued {
		j.err = nil
	}
	j.seq++
	seq := j.seq
	j.mu.Unlock()

	j.publish(to, seq)
	return true
}

// announce publishes the current state of a job whose state was set before
// it was tracked.
func (j *Job) announce() {
	j.pub.Lock()
	defer j.pub.Unlock()

	j.mu.Lock()
	j.seq++
	state, seq := j.state, j.seq
	j.mu.Unlock()

	j.publish(state, seq)
}

// snapshot returns the state with the sequence number of its event.
func (j *Job) snapshot() (State, uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, j.seq
}

func (j *Job) publish(s State, seq uint64) {
	if j.hub != nil {
		j.hub.Publish(Event{Job: j, State: s, Seq: seq})
	}
}

func (j *Job) String() string {
	return j.ChapterID
}
