package translation

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/panelator/internal/storage"
	"github.com/lehigh-university-libraries/panelator/internal/translator"
)

func testJob(hub *Hub, source, name string) *Job {
	j := NewJob(storage.Chapter{Source: source, Title: "T", Name: name}, translator.Options{}, hub)
	j.state = Queued
	return j
}

// fakeRunner blocks every job until the test releases it.
type fakeRunner struct {
	mu      sync.Mutex
	running map[*Job]bool
	gates   map[*Job]chan error
	starts  map[*Job]int
	panicOn *Job
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		running: make(map[*Job]bool),
		gates:   make(map[*Job]chan error),
		starts:  make(map[*Job]int),
	}
}

func (f *fakeRunner) gate(j *Job) chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.gates[j]
	if !ok {
		ch = make(chan error, 1)
		f.gates[j] = ch
	}
	return ch
}

func (f *fakeRunner) Run(ctx context.Context, job *Job) error {
	if err := job.SetStatus(Translating); err != nil {
		return classify(KindState, err)
	}
	gate := f.gate(job)

	f.mu.Lock()
	f.running[job] = true
	f.starts[job]++
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.running, job)
		f.mu.Unlock()
	}()

	select {
	case err := <-gate:
		f.mu.Lock()
		shouldPanic := f.panicOn == job
		f.mu.Unlock()
		if shouldPanic {
			panic("runner exploded")
		}
		if err != nil {
			return err
		}
		return job.SetStatus(Translated)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRunner) release(j *Job, err error) {
	f.gate(j) <- err
}

func (f *fakeRunner) runningIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for j := range f.running {
		ids = append(ids, j.ChapterID)
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeRunner) startCount(j *Job) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts[j]
}

func ids(jobs ...*Job) []string {
	var out []string
	for _, j := range jobs {
		out = append(out, j.ChapterID)
	}
	sort.Strings(out)
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
