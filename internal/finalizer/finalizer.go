package finalizer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/Profile/internal/archive"
	"github.com/MikeSquared-Agency/Profile/internal/assessment"
	"github.com/MikeSquared-Agency/Profile/internal/hermes"
	"github.com/MikeSquared-Agency/Profile/internal/notify"
	"github.com/MikeSquared-Agency/Profile/internal/scoring"
	"github.com/MikeSquared-Agency/Profile/internal/session"
)

const (
	OutcomeFinalized = "finalized"
	OutcomeFailed    = "failed"
)

// Recorder counts finalization outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	SessionFinalized(outcome string)
}

type Config struct {
	Interval  time.Duration
	BatchSize int
	// MaxBackoff caps the delay before a failing session is retried. The
	// delay starts at Interval and doubles on each failure.
	MaxBackoff time.Duration
}

// retryState tracks a session that failed to finalize.
type retryState struct {
	failures int
	next     time.Time
}

// Finalizer scores completed sessions in the background: it archives each
// report, publishes a results event, notifies the operator and marks the
// session finalized. A session that fails is retried with exponential backoff;
// sessions behind it in the queue are still processed in the same pass.
type Finalizer struct {
	store    session.Store
	defs     assessment.Provider
	engine   *scoring.Engine
	archive  archive.Archive
	events   hermes.Client
	notifier notify.Notifier
	recorder Recorder
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	retries map[string]*retryState

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a finalizer. archive, events, notifier and recorder may be nil.
func New(store session.Store, defs assessment.Provider, engine *scoring.Engine, arch archive.Archive, events hermes.Client, notifier notify.Notifier, recorder Recorder, cfg Config, logger *slog.Logger) *Finalizer {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxBackoff < cfg.Interval {
		cfg.MaxBackoff = 30 * cfg.Interval
	}
	if events == nil {
		events = hermes.Nop{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Finalizer{
		store:    store,
		defs:     defs,
		engine:   engine,
		archive:  arch,
		events:   events,
		notifier: notifier,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		retries:  make(map[string]*retryState),
		stopCh:   make(chan struct{}),
	}
}

func (f *Finalizer) Start(ctx context.Context) {
	f.wg.Add(1)
	go f.loop(ctx)
}

func (f *Finalizer) Stop() {
	f.stopOnce.Do(func() { close(f.stopCh) })
	f.wg.Wait()
}

func (f *Finalizer) loop(ctx context.Context) {
	defer f.wg.Done()
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := f.RunOnce(ctx); err != nil {
				f.logger.Error("finalizer pass failed", "error", err)
			}
		}
	}
}

// RunOnce attempts up to BatchSize completed sessions and returns how many
// were marked finalized. Sessions still backing off after a failure are
// skipped, and the pass pages past them so newer sessions are not starved.
func (f *Finalizer) RunOnce(ctx context.Context) (int, error) {
	done, attempted, offset := 0, 0, 0
	for attempted < f.cfg.BatchSize {
		sessions, err := f.store.ListUnfinalized(ctx, f.cfg.BatchSize, offset)
		if err != nil {
			return done, fmt.Errorf("list unfinalized sessions: %w", err)
		}

		for _, sess := range sessions {
			if ctx.Err() != nil {
				return done, ctx.Err()
			}
			if attempted >= f.cfg.BatchSize {
				break
			}
			if f.backingOff(sess.Code) {
				offset++
				continue
			}
			attempted++
			if err := f.finalize(ctx, sess); err != nil {
				delay := f.failed(sess.Code)
				f.logger.Warn("failed to finalize session", "code", sess.Code, "retry_in", delay, "error", err)
				f.record(OutcomeFailed)
				offset++
				continue
			}
			f.succeeded(sess.Code)
			f.record(OutcomeFinalized)
			done++
		}

		if len(sessions) < f.cfg.BatchSize {
			break
		}
	}
	if attempted > 0 {
		f.logger.Info("finalizer pass complete", "attempted", attempted, "finalized", done)
	}
	return done, nil
}

func (f *Finalizer) backingOff(code string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.retries[code]
	return ok && f.now().Before(r.next)
}

// failed schedules the next attempt for code and returns the delay.
func (f *Finalizer) failed(code string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.retries[code]
	if !ok {
		r = &retryState{}
		f.retries[code] = r
	}
	r.failures++
	delay := f.cfg.Interval
	for i := 1; i < r.failures && delay < f.cfg.MaxBackoff; i++ {
		delay *= 2
	}
	if delay > f.cfg.MaxBackoff {
		delay = f.cfg.MaxBackoff
	}
	r.next = f.now().Add(delay)
	return delay
}

func (f *Finalizer) succeeded(code string) {
	f.mu.Lock()
	delete(f.retries, code)
	f.mu.Unlock()
}

func (f *Finalizer) finalize(ctx context.Context, sess *session.Session) error {
	def, err := f.defs.Resolve(sess.AssessmentType)
	if err != nil {
		return err
	}
	report := f.engine.Evaluate(sess.Snapshot(), def)

	var key string
	if f.archive != nil {
		key, err = f.archive.Put(ctx, report)
		if err != nil {
			return fmt.Errorf("archive report: %w", err)
		}
	}

	now := f.now().UTC()
	if err := f.events.Publish(hermes.SubjectResultsComputed(sess.Code), hermes.ResultsComputedEvent{
		Code:              sess.Code,
		AssessmentType:    sess.AssessmentType,
		Profile:           report.Analysis.Profile.Name,
		GlobalScore:       report.Scores.GlobalNormalized,
		CoherenceIndex:    report.Reliability.CoherenceIndex,
		DesirabilityScore: report.Reliability.DesirabilityScore,
		ZScore:            report.Reliability.ZScore,
		Flags:             report.Reliability.Flags(),
		ArchiveKey:        key,
		Timestamp:         now,
	}); err != nil {
		f.logger.Warn("failed to publish results", "code", sess.Code, "error", err)
	}

	summary := notify.NewSummary(sess.CandidateName, sess.CandidateRole, report)
	summary.ArchiveKey = key
	if err := f.notifier.SessionCompleted(ctx, summary); err != nil {
		f.logger.Warn("failed to notify operator", "code", sess.Code, "error", err)
	}

	if err := f.store.MarkFinalized(ctx, sess.Code, now); err != nil {
		return fmt.Errorf("mark finalized: %w", err)
	}
	f.logger.Info("session finalized", "code", sess.Code, "profile", report.Analysis.Profile.Name, "global", report.Scores.GlobalNormalized, "archive_key", key)
	return nil
}

func (f *Finalizer) record(outcome string) {
	if f.recorder != nil {
		f.recorder.SessionFinalized(outcome)
	}
}
