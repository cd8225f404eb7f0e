package translation

import (
	"sync/atomic"
)

// MaxActive bounds the number of jobs executing at once.
const MaxActive = 5

// Queue is the ordered collection of tracked jobs. Readers get immutable
// snapshots; writers replace the slice with compare-and-swap and retry on
// conflict.
type Queue struct {
	jobs    atomic.Pointer[[]*Job]
	changed chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	q := &Queue{changed: make(chan struct{}, 1)}
	empty := []*Job{}
	q.jobs.Store(&empty)
	return q
}

// Snapshot returns the current jobs in order. Callers must not modify it.
func (q *Queue) Snapshot() []*Job {
	return *q.jobs.Load()
}

// Changed is signalled after every mutation. Signals coalesce.
func (q *Queue) Changed() <-chan struct{} {
	return q.changed
}

// update applies fn until its result is swapped in. fn may run more than
// once and must not mutate its argument; it returns false to abort.
func (q *Queue) update(fn func([]*Job) ([]*Job, bool)) bool {
	for {
		cur := q.jobs.Load()
		next, ok := fn(*cur)
		if !ok {
			return false
		}
		if q.jobs.CompareAndSwap(cur, &next) {
			select {
			case q.changed <- struct{}{}:
			default:
			}
			return true
		}
	}
}

// Add appends job unless a job with the same chapter ID is tracked.
func (q *Queue) Add(job *Job) bool {
	return q.update(func(jobs []*Job) ([]*Job, bool) {
		for _, j := range jobs {
			if j.ChapterID == job.ChapterID {
				return nil, false
			}
		}
		next := make([]*Job, 0, len(jobs)+1)
		next = append(next, jobs...)
		return append(next, job), true
	})
}

// Find returns the tracked job for chapterID.
func (q *Queue) Find(chapterID string) *Job {
	for _, j := range q.Snapshot() {
		if j.ChapterID == chapterID {
			return j
		}
	}
	return nil
}

// RemoveIf drops every job matching pred. Removed jobs that were still queued
// or translating go back to NotTranslated so they can be enqueued again.
func (q *Queue) RemoveIf(pred func(*Job) bool) []*Job {
	var removed []*Job
	q.update(func(jobs []*Job) ([]*Job, bool) {
		removed = removed[:0]
		next := make([]*Job, 0, len(jobs))
		for _, j := range jobs {
			if pred(j) {
				removed = append(removed, j)
				continue
			}
			next = append(next, j)
		}
		if len(removed) == 0 {
			return nil, false
		}
		for _, j := range removed {
			resetRemoved(j)
		}
		return next, true
	})
	return removed
}

// Remove drops job by identity.
func (q *Queue) Remove(job *Job) bool {
	return len(q.RemoveIf(func(j *Job) bool { return j == job })) > 0
}

// Clear drops every job.
func (q *Queue) Clear() []*Job {
	return q.RemoveIf(func(*Job) bool { return true })
}

func resetRemoved(j *Job) {
	if !j.swapStatus(Queued, NotTranslated) {
		j.swapStatus(Translating, NotTranslated)
	}
}

// HasPending reports whether any tracked job still needs work.
func (q *Queue) HasPending() bool {
	for _, j := range q.Snapshot() {
		if j.Status().Pending() {
			return true
		}
	}
	return false
}

// ActiveSet picks the first pending job of each source, in order of first
// appearance, up to max jobs.
func ActiveSet(jobs []*Job, max int) []*Job {
	seen := make(map[string]bool)
	var active []*Job
	for _, j := range jobs {
		if len(active) == max {
			break
		}
		if !j.Status().Pending() || seen[j.SourceID] {
			continue
		}
		seen[j.SourceID] = true
		active = append(active, j)
	}
	return active
}
