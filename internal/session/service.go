package session

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
	"github.com/MikeSquared-Agency/Profile/internal/hermes"
	"github.com/MikeSquared-Agency/Profile/internal/scoring"
)

// Recorder counts session lifecycle events. *metrics.Metrics satisfies it.
type Recorder interface {
	SessionCreated(assessmentType, format string)
	AnswerRecorded(assessmentType string)
	SessionCompleted(assessmentType string)
}

type Options struct {
	DefaultAssessment string
	DefaultFormat     string
	// MaxCodeAttempts bounds retries when a generated code collides.
	MaxCodeAttempts int
	// Rand drives question selection and code generation. Nil uses a
	// ChaCha8 source seeded from crypto/rand.
	Rand *rand.Rand
	Now  func() time.Time
}

type CreateRequest struct {
	AssessmentType string `json:"assessment_type"`
	Format         string `json:"format"`
	CandidateName  string `json:"candidate_name"`
	CandidateRole  string `json:"candidate_role"`
}

type AnswerRequest struct {
	Index     int      `json:"index"`
	Ranking   []string `json:"ranking"`
	ElapsedMs int64    `json:"elapsed_ms"`
}

// Service runs the session lifecycle: creation, sequential answering and
// evaluation through the scoring engine.
type Service struct {
	store    Store
	defs     assessment.Provider
	engine   *scoring.Engine
	events   hermes.Client
	recorder Recorder
	logger   *slog.Logger
	opts     Options

	mu  sync.Mutex
	rng *rand.Rand
}

func NewService(store Store, defs assessment.Provider, engine *scoring.Engine, events hermes.Client, recorder Recorder, logger *slog.Logger, opts Options) *Service {
	if events == nil {
		events = hermes.Nop{}
	}
	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	rng := opts.Rand
	if rng == nil {
		var seed [32]byte
		_, _ = crand.Read(seed[:])
		rng = rand.New(rand.NewChaCha8(seed))
	}
	return &Service{
		store:    store,
		defs:     defs,
		engine:   engine,
		events:   events,
		recorder: recorder,
		logger:   logger,
		opts:     opts,
		rng:      rng,
	}
}

// Create selects the questions of a new session and stores it under a
// fresh code.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	assessmentType := strings.TrimSpace(req.AssessmentType)
	if assessmentType == "" {
		assessmentType = s.opts.DefaultAssessment
	}
	def, err := s.defs.Resolve(assessmentType)
	if err != nil {
		return nil, err
	}

	format := strings.TrimSpace(req.Format)
	if format == "" {
		format = s.opts.DefaultFormat
	}
	role := strings.TrimSpace(req.CandidateRole)
	if role == "" {
		role = def.DefaultRole
	}

	s.mu.Lock()
	questions, err := scoring.SelectQuestions(def, format, s.rng)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		AssessmentType: def.ID,
		Format:         format,
		CandidateName:  strings.TrimSpace(req.CandidateName),
		CandidateRole:  role,
		Status:         StatusPending,
		Questions:      questions,
		Answers:        scoring.Answers{},
	}

	for attempt := 1; ; attempt++ {
		s.mu.Lock()
		sess.Code = GenerateCode(def.CodePrefix, s.rng)
		s.mu.Unlock()

		err = s.store.Create(ctx, sess)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrCodeTaken) || attempt >= s.opts.MaxCodeAttempts {
			return nil, fmt.Errorf("create session: %w", err)
		}
		s.logger.Debug("session code collision", "code", sess.Code, "attempt", attempt)
	}

	s.publish(hermes.SubjectSessionCreated(sess.Code), hermes.SessionCreatedEvent{
		SessionID:      sess.ID.String(),
		Code:           sess.Code,
		AssessmentType: sess.AssessmentType,
		Format:         sess.Format,
		CandidateName:  sess.CandidateName,
		TotalQuestions: len(sess.Questions),
		Timestamp:      s.opts.Now().UTC(),
	})
	if s.recorder != nil {
		s.recorder.SessionCreated(sess.AssessmentType, sess.Format)
	}
	s.logger.Info("session created", "code", sess.Code, "assessment", sess.AssessmentType, "format", sess.Format, "questions", len(sess.Questions))
	return sess, nil
}

// Answer records the ranking for the current question. Questions must be
// answered in order; the last answer completes the session.
func (s *Service) Answer(ctx context.Context, code string, req AnswerRequest) (*Session, error) {
	sess, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusCompleted {
		return nil, ErrAlreadyCompleted
	}
	if req.Index != sess.CurrentQuestion || req.Index >= len(sess.Questions) {
		return nil, fmt.Errorf("%w: expected question %d, got %d", ErrOutOfOrder, sess.CurrentQuestion, req.Index)
	}

	q := sess.Questions[req.Index]
	value, err := scoring.WeightedValue(q.Question, req.Ranking, s.engine.Config().RankWeights)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now().UTC()
	sess.Answers = sess.Answers.Record(q.Question, value)
	sess.CurrentQuestion++
	if req.ElapsedMs > 0 {
		sess.TotalTimeMs += req.ElapsedMs
	}
	if sess.StartedAt == nil {
		sess.StartedAt = &now
	}
	sess.Status = StatusInProgress
	completed := sess.CurrentQuestion >= len(sess.Questions)
	if completed {
		sess.Status = StatusCompleted
		sess.CompletedAt = &now
	}

	if err := s.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("update session %s: %w", code, err)
	}

	s.publish(hermes.SubjectSessionAnswered(code), hermes.SessionAnsweredEvent{
		Code:      code,
		Index:     req.Index,
		Target:    q.Target,
		Answered:  sess.CurrentQuestion,
		Total:     len(sess.Questions),
		ElapsedMs: req.ElapsedMs,
		Timestamp: now,
	})
	if s.recorder != nil {
		s.recorder.AnswerRecorded(sess.AssessmentType)
	}

	if completed {
		s.publish(hermes.SubjectSessionCompleted(code), hermes.SessionCompletedEvent{
			Code:           code,
			AssessmentType: sess.AssessmentType,
			TotalTimeMs:    sess.TotalTimeMs,
			Timestamp:      now,
		})
		if s.recorder != nil {
			s.recorder.SessionCompleted(sess.AssessmentType)
		}
		s.logger.Info("session completed", "code", code, "total_time_ms", sess.TotalTimeMs)
	}
	return sess, nil
}

// Results evaluates the session as it currently stands.
func (s *Service) Results(ctx context.Context, code string) (*Session, scoring.Report, error) {
	sess, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, scoring.Report{}, err
	}
	def, err := s.defs.Resolve(sess.AssessmentType)
	if err != nil {
		return nil, scoring.Report{}, fmt.Errorf("session %s: %w", code, err)
	}
	return sess, s.engine.Evaluate(sess.Snapshot(), def), nil
}

func (s *Service) Get(ctx context.Context, code string) (*Session, error) {
	return s.store.GetByCode(ctx, code)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]*Session, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) publish(subject string, event interface{}) {
	if err := s.events.Publish(subject, event); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
