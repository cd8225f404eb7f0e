package translation

import (
	"errors"
	"fmt"
	"testing"
)

func newTestScheduler(t *testing.T, jobs ...[2]string) (*Scheduler, *fakeRunner, []*Job) {
	t.Helper()
	hub := NewHub()
	q := NewQueue()
	r := newFakeRunner()
	var out []*Job
	for _, pair := range jobs {
		j := testJob(hub, pair[0], pair[1])
		if !q.Add(j) {
			t.Fatalf("Failed to add %v", pair)
		}
		out = append(out, j)
	}
	s := NewScheduler(q, hub, r)
	t.Cleanup(func() { s.Stop("test cleanup") })
	return s, r, out
}

func TestSchedulerReplacesFailedJobWithinSource(t *testing.T) {
	s, r, jobs := newTestScheduler(t, [2]string{"S1", "A"}, [2]string{"S1", "B"}, [2]string{"S2", "C"})
	a, b, c := jobs[0], jobs[1], jobs[2]

	if !s.Start() {
		t.Fatalf("Expected Start to report pending work")
	}
	waitFor(t, "A and C running", func() bool { return equalIDs(r.runningIDs(), ids(a, c)) })

	if err := a.SetStatus(Error); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	waitFor(t, "B and C running", func() bool { return equalIDs(r.runningIDs(), ids(b, c)) })

	if n := r.startCount(c); n != 1 {
		t.Errorf("Expected C to keep its task, got %d starts", n)
	}
	if a.Status() != Error {
		t.Errorf("Expected A to stay in Error, got %v", a.Status())
	}
	if !s.IsRunning() {
		t.Errorf("Expected scheduler to keep running")
	}
}

func TestSchedulerRequeuesSupersededJob(t *testing.T) {
	s, r, jobs := newTestScheduler(t, [2]string{"S1", "X"}, [2]string{"S1", "A"})
	x, a := jobs[0], jobs[1]

	s.Start()
	waitFor(t, "X running", func() bool { return r.startCount(x) == 1 })
	r.release(x, classify(KindTranslation, errors.New("quota")))
	waitFor(t, "A running", func() bool { return equalIDs(r.runningIDs(), ids(a)) })

	// X is ahead of A in the same source, so it takes the slot back on the
	// next queue change.
	if err := x.SetStatus(Queued); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	c := testJob(s.hub, "S2", "C")
	if !s.queue.Add(c) {
		t.Fatalf("Failed to add C")
	}
	waitFor(t, "X and C running", func() bool { return equalIDs(r.runningIDs(), ids(x, c)) })

	waitFor(t, "A requeued", func() bool { return a.Status() == Queued })
	if a.Err() != nil {
		t.Errorf("Expected no recorded failure for A, got %v", a.Err())
	}
	if n := r.startCount(x); n != 2 {
		t.Errorf("Expected X to restart once, got %d starts", n)
	}
	if !s.IsRunning() {
		t.Errorf("Expected scheduler to keep running")
	}

	r.release(x, nil)
	waitFor(t, "A resumed", func() bool { return r.startCount(a) == 2 })
}

func TestSchedulerCapsActiveJobs(t *testing.T) {
	var specs [][2]string
	for i := 0; i < 6; i++ {
		specs = append(specs, [2]string{fmt.Sprintf("S%d", i), "c"})
	}
	s, r, jobs := newTestScheduler(t, specs...)

	s.Start()
	waitFor(t, "five running", func() bool { return len(r.runningIDs()) == MaxActive })
	if r.startCount(jobs[5]) != 0 {
		t.Fatalf("Expected sixth source to wait")
	}

	r.release(jobs[0], nil)
	waitFor(t, "sixth source started", func() bool { return r.startCount(jobs[5]) == 1 })
	if n := len(r.runningIDs()); n > MaxActive {
		t.Errorf("Expected at most %d running, got %d", MaxActive, n)
	}
}

func TestSchedulerStopsWhenDrained(t *testing.T) {
	s, r, jobs := newTestScheduler(t, [2]string{"S1", "A"}, [2]string{"S1", "B"})
	a, b := jobs[0], jobs[1]

	s.Start()
	waitFor(t, "A running", func() bool { return r.startCount(a) == 1 })
	r.release(a, classify(KindSource, errors.New("missing pages")))
	waitFor(t, "B running", func() bool { return r.startCount(b) == 1 })

	if a.Status() != Error {
		t.Errorf("Expected A in Error, got %v", a.Status())
	}
	var jobErr *JobError
	if !errors.As(a.Err(), &jobErr) || jobErr.Kind != KindSource {
		t.Errorf("Expected recorded source failure, got %v", a.Err())
	}
	if !s.IsRunning() {
		t.Fatalf("Expected a classified failure to leave the scheduler running")
	}

	r.release(b, nil)
	waitFor(t, "scheduler stopped", func() bool { return !s.IsRunning() })

	if b.Status() != Translated {
		t.Errorf("Expected B Translated, got %v", b.Status())
	}
	remaining := s.queue.Snapshot()
	if len(remaining) != 1 || remaining[0] != a {
		t.Errorf("Expected only the failed job to remain, got %v", remaining)
	}
	if s.IsPaused() {
		t.Errorf("Expected paused to be false after draining")
	}
}

func TestSchedulerHaltsOnUnexpectedFailure(t *testing.T) {
	tests := []struct {
		name    string
		trigger func(r *fakeRunner, j *Job)
	}{
		{
			name:    "unclassified error",
			trigger: func(r *fakeRunner, j *Job) { r.release(j, errors.New("boom")) },
		},
		{
			name: "panic",
			trigger: func(r *fakeRunner, j *Job) {
				r.mu.Lock()
				r.panicOn = j
				r.mu.Unlock()
				r.release(j, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, r, jobs := newTestScheduler(t, [2]string{"S1", "A"}, [2]string{"S2", "B"})
			s.Start()
			waitFor(t, "both running", func() bool { return len(r.runningIDs()) == 2 })

			tt.trigger(r, jobs[0])
			waitFor(t, "scheduler halted", func() bool { return !s.IsRunning() })

			for _, j := range jobs {
				if j.Status() != Error {
					t.Errorf("Expected %s in Error, got %v", j, j.Status())
				}
			}
			if len(r.runningIDs()) != 0 {
				t.Errorf("Expected no task left running")
			}
		})
	}
}

func TestSchedulerPauseAndResume(t *testing.T) {
	s, r, jobs := newTestScheduler(t, [2]string{"S1", "A"})
	a := jobs[0]

	s.Start()
	waitFor(t, "A running", func() bool { return r.startCount(a) == 1 })

	s.Pause()
	if s.IsRunning() {
		t.Errorf("Expected scheduler stopped after pause")
	}
	if !s.IsPaused() {
		t.Errorf("Expected paused flag")
	}
	if a.Status() != Queued {
		t.Errorf("Expected A back in the queue, got %v", a.Status())
	}

	if !s.Start() {
		t.Fatalf("Expected Start to resume pending work")
	}
	if s.IsPaused() {
		t.Errorf("Expected Start to clear the paused flag")
	}
	waitFor(t, "A restarted", func() bool { return r.startCount(a) == 2 })
}

func TestSchedulerStop(t *testing.T) {
	s, r, jobs := newTestScheduler(t, [2]string{"S1", "A"}, [2]string{"S1", "B"})
	a, b := jobs[0], jobs[1]

	s.Start()
	waitFor(t, "A running", func() bool { return r.startCount(a) == 1 })
	s.Pause()
	s.Start()
	waitFor(t, "A running again", func() bool { return r.startCount(a) == 2 })

	s.Stop("user")
	if a.Status() != Error {
		t.Errorf("Expected translating job to fail on stop, got %v", a.Status())
	}
	if b.Status() != Queued {
		t.Errorf("Expected waiting job to stay queued, got %v", b.Status())
	}

	s.Pause()
	s.Stop("shutdown")
	if !s.IsPaused() {
		t.Errorf("Expected a stop with a reason to keep the paused flag")
	}
	s.Stop("")
	if s.IsPaused() {
		t.Errorf("Expected a stop without a reason to clear the paused flag")
	}

	if !s.Start() {
		t.Fatalf("Expected Start to requeue the failed job")
	}
	if a.Err() != nil {
		t.Errorf("Expected requeue to clear the recorded failure")
	}
	waitFor(t, "A retried", func() bool { return r.startCount(a) == 3 })
}

func TestSchedulerStartEmpty(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	if s.Start() {
		t.Errorf("Expected false for an empty queue")
	}
	if s.IsRunning() {
		t.Errorf("Expected scheduler not running")
	}
}

func TestSchedulerRemovingActiveJob(t *testing.T) {
	s, r, jobs := newTestScheduler(t, [2]string{"S1", "A"})
	a := jobs[0]

	s.Start()
	waitFor(t, "A running", func() bool { return r.startCount(a) == 1 })

	s.queue.Remove(a)
	waitFor(t, "scheduler stopped", func() bool { return !s.IsRunning() })

	if a.Status() != NotTranslated {
		t.Errorf("Expected removed job reset, got %v", a.Status())
	}
	if r.startCount(a) != 1 {
		t.Errorf("Expected removed job not to restart")
	}
}

func TestSchedulerClearQueue(t *testing.T) {
	s, r, jobs := newTestScheduler(t, [2]string{"S1", "A"}, [2]string{"S2", "B"})

	s.Start()
	waitFor(t, "both running", func() bool { return len(r.runningIDs()) == 2 })
	s.ClearQueue()

	if s.IsRunning() {
		t.Errorf("Expected scheduler stopped")
	}
	if n := len(s.queue.Snapshot()); n != 0 {
		t.Errorf("Expected empty queue, got %d", n)
	}
	for _, j := range jobs {
		if j.Status() != NotTranslated {
			t.Errorf("Expected %s reset, got %v", j, j.Status())
		}
	}
}
