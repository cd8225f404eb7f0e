package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Runner executes a single job.
type Runner interface {
	Run(ctx context.Context, job *Job) error
}

// Scheduler keeps the active set of the queue running. It reconciles on every
// queue change, whenever an active job reports Error, and whenever a task
// returns.
type Scheduler struct {
	queue     *Queue
	hub       *Hub
	runner    Runner
	maxActive int
	log       *slog.Logger

	// lifecycle serializes Start, Stop, Pause and ClearQueue.
	lifecycle sync.Mutex

	mu     sync.Mutex
	run    *schedulerRun
	paused bool
}

type schedulerRun struct {
	id     string
	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
}

type task struct {
	job    *Job
	cancel context.CancelCauseFunc
}

type taskResult struct {
	task *task
	err  error
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithMaxActive overrides MaxActive.
func WithMaxActive(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxActive = n
		}
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(log *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// NewScheduler returns a stopped scheduler over queue.
func NewScheduler(queue *Queue, hub *Hub, runner Runner, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		queue:     queue,
		hub:       hub,
		runner:    runner,
		maxActive: MaxActive,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsRunning reports whether a run is in progress.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil
}

// IsPaused reports whether the last halt was a pause.
func (s *Scheduler) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Start requeues every unfinished job and launches a run. It returns false
// if already running or the queue is empty, otherwise whether any job is
// pending.
func (s *Scheduler) Start() bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.queue.Snapshot()
	if s.run != nil || len(jobs) == 0 {
		return false
	}

	pending := 0
	for _, j := range jobs {
		if j.Status() == Translated {
			continue
		}
		pending++
		if err := j.SetStatus(Queued); err != nil {
			s.log.Warn("Could not requeue job", "chapter", j.ChapterID, "err", err)
		}
	}
	s.paused = false

	ctx, cancel := context.WithCancelCause(context.Background())
	r := &schedulerRun{id: uuid.NewString(), ctx: ctx, cancel: cancel, done: make(chan struct{})}
	s.run = r
	s.log.Info("Translation scheduler started", "run", r.id, "jobs", len(jobs), "pending", pending)
	go s.loop(r)
	return pending > 0
}

// Stop halts the run and marks every translating job as Error. An empty
// reason also clears the paused flag.
func (s *Scheduler) Stop(reason string) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.halt(errStopped)
	s.markTranslating(Error)

	s.mu.Lock()
	if reason == "" {
		s.paused = false
	}
	s.mu.Unlock()
	if reason != "" {
		s.log.Info("Translation scheduler stopped", "reason", reason)
	}
}

// Pause halts the run and returns translating jobs to the queue.
func (s *Scheduler) Pause() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.halt(errPaused)
	s.markTranslating(Queued)

	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// ClearQueue halts the run and drops every job.
func (s *Scheduler) ClearQueue() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.halt(errStopped)
	removed := s.queue.Clear()
	s.log.Info("Translation queue cleared", "removed", len(removed))
}

// halt cancels the current run and waits for it to exit.
func (s *Scheduler) halt(cause error) {
	s.mu.Lock()
	r := s.run
	s.run = nil
	s.mu.Unlock()
	if r == nil {
		return
	}
	r.cancel(cause)
	<-r.done
}

func (s *Scheduler) markTranslating(to State) {
	for _, j := range s.queue.Snapshot() {
		j.swapStatus(Translating, to)
	}
}

// finish ends a run from inside its own loop. The run must already be
// cancelled and drained.
func (s *Scheduler) finish(r *schedulerRun, failure error) {
	if failure != nil {
		s.markTranslating(Error)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != r {
		return
	}
	s.run = nil
	s.paused = false
	if failure != nil {
		s.log.Error("Translation scheduler halted", "run", r.id, "err", failure)
	} else {
		s.log.Info("Translation queue finished", "run", r.id)
	}
}

func (s *Scheduler) loop(r *schedulerRun) {
	defer close(r.done)

	results := make(chan taskResult)
	var wg sync.WaitGroup
	active := make(map[*Job]*task)
	draining := make(map[*Job]*task)
	events := s.hub.Subscribe(r.ctx, nil)

	exit := func(cause error) {
		r.cancel(cause)
		wg.Wait()
	}

	reconcile := func() {
		desired := ActiveSet(s.queue.Snapshot(), s.maxActive)
		keep := make(map[*Job]bool, len(desired))
		for _, j := range desired {
			keep[j] = true
		}
		for j, t := range active {
			if !keep[j] {
				t.cancel(errSuperseded)
				delete(active, j)
				draining[j] = t
			}
		}
		for _, j := range desired {
			if _, ok := active[j]; ok {
				continue
			}
			// one task per job; a cancelled task must return first
			if _, ok := draining[j]; ok {
				continue
			}
			active[j] = s.startTask(r, j, results, &wg)
		}
	}

	reconcile()
	if len(active) == 0 && !s.queue.HasPending() {
		exit(errFinished)
		s.finish(r, nil)
		return
	}
	for {
		select {
		case <-r.ctx.Done():
			exit(context.Cause(r.ctx))
			return

		case <-s.queue.Changed():
			reconcile()
			if len(active) == 0 && len(draining) == 0 && !s.queue.HasPending() {
				exit(errFinished)
				s.finish(r, nil)
				return
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if _, isActive := active[ev.Job]; isActive && ev.State == Error {
				reconcile()
			}

		case res := <-results:
			job := res.task.job
			if active[job] == res.task {
				delete(active, job)
			}
			if draining[job] == res.task {
				delete(draining, job)
			}

			if failure := s.settle(job, res.err); failure != nil {
				exit(failure)
				s.finish(r, failure)
				return
			}
			if !s.queue.HasPending() && len(active) == 0 && len(draining) == 0 {
				exit(errFinished)
				s.finish(r, nil)
				return
			}
			reconcile()
		}
	}
}

// settle applies a task outcome. It returns an error only for failures that
// must halt the scheduler.
func (s *Scheduler) settle(job *Job, err error) error {
	var jobErr *JobError
	switch {
	case err == nil:
		if job.Status() == Translated {
			s.queue.Remove(job)
		}
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil
	case errors.As(err, &jobErr):
		return nil
	default:
		return fmt.Errorf("unexpected failure in %s: %w", job.ChapterID, err)
	}
}

func (s *Scheduler) startTask(r *schedulerRun, job *Job, results chan<- taskResult, wg *sync.WaitGroup) *task {
	ctx, cancel := context.WithCancelCause(r.ctx)
	t := &task{job: job, cancel: cancel}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel(nil)
		err := s.execute(ctx, job)
		select {
		case results <- taskResult{task: t, err: err}:
		case <-r.ctx.Done():
		}
	}()
	return t
}

// execute runs the job, converting panics into unclassified errors and
// applying the job-level consequences of the outcome.
func (s *Scheduler) execute(ctx context.Context, job *Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	err = s.runner.Run(ctx, job)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		if errors.Is(context.Cause(ctx), errSuperseded) {
			job.swapStatus(Translating, Queued)
		}
		return ctx.Err()
	}

	var jobErr *JobError
	if errors.As(err, &jobErr) {
		s.log.Warn("Chapter translation failed", "chapter", job.ChapterID, "kind", string(jobErr.Kind), "err", jobErr.Err)
		if serr := job.fail(jobErr); serr != nil {
			s.log.Debug("Failed job no longer tracked", "chapter", job.ChapterID, "err", serr)
		}
	}
	return err
}
