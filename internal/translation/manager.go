package translation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/panelator/internal/config"
	"github.com/lehigh-university-libraries/panelator/internal/images"
	"github.com/lehigh-university-libraries/panelator/internal/models"
	"github.com/lehigh-university-libraries/panelator/internal/storage"
	"github.com/lehigh-university-libraries/panelator/internal/translator"
)

// Manager is the entry point for callers: it validates and enqueues chapters,
// controls the scheduler and answers status queries.
type Manager struct {
	store     *storage.Provider
	queue     *Queue
	hub       *Hub
	scheduler *Scheduler
	engines   *Engines
	log       *slog.Logger

	mu    sync.RWMutex
	prefs config.Preferences
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	log           *slog.Logger
	maxActive     int
	runner        Runner
	newTranslator TranslatorFactory
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *managerOptions) { o.log = log }
}

// WithConcurrency overrides the number of jobs run at once.
func WithConcurrency(n int) Option {
	return func(o *managerOptions) { o.maxActive = n }
}

// WithRunner replaces the pipeline, mainly for tests.
func WithRunner(r Runner) Option {
	return func(o *managerOptions) { o.runner = r }
}

// WithTranslatorFactory replaces translator.Build.
func WithTranslatorFactory(f TranslatorFactory) Option {
	return func(o *managerOptions) { o.newTranslator = f }
}

// NewManager wires the queue, scheduler and pipeline.
func NewManager(prefs config.Preferences, store *storage.Provider, source images.Source, recognizers RecognizerFactory, opts ...Option) *Manager {
	o := managerOptions{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		store: store,
		queue: NewQueue(),
		hub:   NewHub(),
		log:   o.log,
		prefs: prefs,
	}
	m.engines = NewEngines(recognizers, o.newTranslator, o.log)

	runner := o.runner
	if runner == nil {
		runner = NewPipeline(store, source, m.engines, prefs.Policy(), prefs.Tolerances, o.log)
	}
	m.scheduler = NewScheduler(m.queue, m.hub, runner, WithMaxActive(o.maxActive), WithSchedulerLogger(o.log))
	return m
}

// Preferences returns the current preferences.
func (m *Manager) Preferences() config.Preferences {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prefs
}

// SetPreferences replaces the preferences used for new jobs.
func (m *Manager) SetPreferences(p config.Preferences) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = p
}

// Enqueue validates the engine configuration and queues the chapter, then
// starts the scheduler. It returns ErrAlreadyTranslated or ErrAlreadyTracked
// when there is nothing to do.
func (m *Manager) Enqueue(chapter storage.Chapter) (*Job, error) {
	opts, err := m.Preferences().TranslatorOptions(nil)
	if err != nil {
		return nil, err
	}
	if err := translator.Validate(opts); err != nil {
		return nil, err
	}
	if m.store.Exists(chapter) {
		return nil, ErrAlreadyTranslated
	}

	job := NewJob(chapter, opts, m.hub)
	job.state = Queued
	if !m.queue.Add(job) {
		return nil, ErrAlreadyTracked
	}
	job.announce()
	m.log.Debug("Queued chapter", "chapter", job.ChapterID)

	if !m.scheduler.IsRunning() {
		m.scheduler.Start()
	}
	return job, nil
}

// Start resumes the queue. See Scheduler.Start.
func (m *Manager) Start() bool {
	return m.scheduler.Start()
}

// Pause halts work and keeps translating jobs queued.
func (m *Manager) Pause() {
	m.scheduler.Pause()
}

// Stop halts work, failing translating jobs.
func (m *Manager) Stop(reason string) {
	m.scheduler.Stop(reason)
}

// ClearQueue drops every job and stops the scheduler.
func (m *Manager) ClearQueue() {
	m.scheduler.ClearQueue()
	m.scheduler.Stop("")
}

// IsRunning reports whether the scheduler is running.
func (m *Manager) IsRunning() bool {
	return m.scheduler.IsRunning()
}

// IsPaused reports whether the scheduler was paused.
func (m *Manager) IsPaused() bool {
	return m.scheduler.IsPaused()
}

// Queue returns the tracked jobs in order.
func (m *Manager) Queue() []*Job {
	return m.queue.Snapshot()
}

// Job returns the tracked job of a chapter, if any.
func (m *Manager) Job(chapter storage.Chapter) *Job {
	return m.queue.Find(ChapterID(chapter))
}

// StatusOf prefers the live job, then a persisted result.
func (m *Manager) StatusOf(chapter storage.Chapter) State {
	if j := m.Job(chapter); j != nil {
		return j.Status()
	}
	if m.store.Exists(chapter) {
		return Translated
	}
	return NotTranslated
}

// Subscribe streams status changes until ctx is done. Jobs translating at
// the time of the call are replayed first.
func (m *Manager) Subscribe(ctx context.Context) <-chan Event {
	return m.hub.Subscribe(ctx, func() []Event {
		var events []Event
		for _, j := range m.queue.Snapshot() {
			if state, seq := j.snapshot(); state == Translating {
				events = append(events, Event{Job: j, State: state, Seq: seq})
			}
		}
		return events
	})
}

// Subscribers returns the number of open status subscriptions.
func (m *Manager) Subscribers() int {
	return m.hub.Subscribers()
}

// RemoveFromQueue drops one chapter. A running scheduler is paused around
// the removal and resumed if work remains.
func (m *Manager) RemoveFromQueue(chapterID string) bool {
	return m.removeIf(func(j *Job) bool { return j.ChapterID == chapterID })
}

// RemoveDocument drops every queued chapter of a document.
func (m *Manager) RemoveDocument(documentID string) bool {
	return m.removeIf(func(j *Job) bool { return j.DocumentID == documentID })
}

func (m *Manager) removeIf(pred func(*Job) bool) bool {
	wasRunning := m.scheduler.IsRunning()
	if wasRunning {
		m.scheduler.Pause()
	}
	removed := m.queue.RemoveIf(pred)
	if wasRunning {
		if len(m.queue.Snapshot()) == 0 {
			m.scheduler.Stop("")
		} else {
			m.scheduler.Start()
		}
	}
	return len(removed) > 0
}

// DeleteTranslation unqueues a chapter and deletes its result.
func (m *Manager) DeleteTranslation(chapter storage.Chapter) error {
	m.RemoveFromQueue(ChapterID(chapter))
	if err := m.store.DeleteResult(chapter); err != nil {
		return fmt.Errorf("delete translation: %w", err)
	}
	return nil
}

// DeleteDocument unqueues and deletes every result of a document.
func (m *Manager) DeleteDocument(source, title string) error {
	m.RemoveDocument(DocumentID(source, title))
	if err := m.store.DeleteDocument(title, source); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Result reads a persisted chapter. Corrupt files read as empty.
func (m *Manager) Result(chapter storage.Chapter) (models.DocumentResult, error) {
	return m.store.ReadResult(chapter)
}

// Close stops the scheduler and releases cached engines.
func (m *Manager) Close() {
	m.scheduler.Stop("shutdown")
	m.engines.Close()
}
