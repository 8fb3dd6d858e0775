package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
	"github.com/MikeSquared-Agency/Profile/internal/scoring"
)

type mockHermes struct {
	mock.Mock
}

func (m *mockHermes) Publish(subject string, data interface{}) error {
	args := m.Called(subject, data)
	return args.Error(0)
}
func (m *mockHermes) Subscribe(_ string, _ func(string, []byte)) error { return nil }
func (m *mockHermes) Close()                                           {}

type countingRecorder struct {
	created, answered, completed int
}

func (r *countingRecorder) SessionCreated(string, string) { r.created++ }
func (r *countingRecorder) AnswerRecorded(string)         { r.answered++ }
func (r *countingRecorder) SessionCompleted(string)       { r.completed++ }

// collidingStore rejects the first n codes.
type collidingStore struct {
	*MemoryStore
	n int
}

func (c *collidingStore) Create(ctx context.Context, s *Session) error {
	if c.n > 0 {
		c.n--
		return ErrCodeTaken
	}
	return c.MemoryStore.Create(ctx, s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, store Store, events *mockHermes, rec Recorder) *Service {
	t.Helper()
	defs, err := assessment.NewRegistry("", 0, discardLogger())
	require.NoError(t, err)
	engine, err := scoring.NewEngine(scoring.DefaultEngineConfig(), discardLogger(), nil)
	require.NoError(t, err)
	fixed := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return NewService(store, defs, engine, events, rec, discardLogger(), Options{
		DefaultAssessment: "dsi",
		DefaultFormat:     "standard",
		Rand:              rand.New(rand.NewPCG(5, 9)),
		Now:               func() time.Time { return fixed },
	})
}

func bestRanking(q assessment.Question) []string {
	opts := append([]assessment.Option(nil), q.Options...)
	sort.Slice(opts, func(i, j int) bool { return opts[i].Value > opts[j].Value })
	ids := make([]string, len(opts))
	for i, o := range opts {
		ids[i] = o.ID
	}
	return ids
}

func TestCreateSession(t *testing.T) {
	events := &mockHermes{}
	events.On("Publish", mock.AnythingOfType("string"), mock.Anything).Return(nil)
	rec := &countingRecorder{}
	svc := newTestService(t, NewMemoryStore(), events, rec)

	sess, err := svc.Create(context.Background(), CreateRequest{CandidateName: "  Alex Martin "})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sess.Code, "AMA-"))
	assert.Len(t, sess.Code, len("AMA-")+4)
	assert.Equal(t, "dsi", sess.AssessmentType)
	assert.Equal(t, "standard", sess.Format)
	assert.Equal(t, "Alex Martin", sess.CandidateName)
	assert.Equal(t, "DSI", sess.CandidateRole)
	assert.Equal(t, StatusPending, sess.Status)
	assert.Len(t, sess.Questions, 58)
	assert.Equal(t, 1, rec.created)
	events.AssertCalled(t, "Publish", "profile.session."+sess.Code+".created", mock.Anything)
}

func TestCreateSessionErrors(t *testing.T) {
	events := &mockHermes{}
	svc := newTestService(t, NewMemoryStore(), events, nil)

	_, err := svc.Create(context.Background(), CreateRequest{AssessmentType: "unknown"})
	assert.True(t, errors.Is(err, assessment.ErrUnknownAssessment))

	_, err = svc.Create(context.Background(), CreateRequest{Format: "marathon"})
	assert.True(t, errors.Is(err, scoring.ErrUnknownFormat))

	events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCreateRetriesCodeCollision(t *testing.T) {
	events := &mockHermes{}
	events.On("Publish", mock.AnythingOfType("string"), mock.Anything).Return(nil)

	store := &collidingStore{MemoryStore: NewMemoryStore(), n: 2}
	svc := newTestService(t, store, events, nil)
	sess, err := svc.Create(context.Background(), CreateRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Code)

	exhausted := &collidingStore{MemoryStore: NewMemoryStore(), n: 100}
	svc = newTestService(t, exhausted, events, nil)
	_, err = svc.Create(context.Background(), CreateRequest{})
	assert.True(t, errors.Is(err, ErrCodeTaken))
}

func TestAnswerFlow(t *testing.T) {
	events := &mockHermes{}
	events.On("Publish", mock.AnythingOfType("string"), mock.Anything).Return(nil)
	rec := &countingRecorder{}
	svc := newTestService(t, NewMemoryStore(), events, rec)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{Format: "court"})
	require.NoError(t, err)
	require.Len(t, sess.Questions, 42)

	_, err = svc.Answer(ctx, sess.Code, AnswerRequest{Index: 1, Ranking: bestRanking(sess.Questions[1].Question)})
	assert.True(t, errors.Is(err, ErrOutOfOrder), "answering ahead must fail")

	_, err = svc.Answer(ctx, sess.Code, AnswerRequest{Index: 0, Ranking: []string{"a", "a", "b", "c"}})
	assert.True(t, errors.Is(err, scoring.ErrInvalidRanking))

	for i, q := range sess.Questions {
		updated, err := svc.Answer(ctx, sess.Code, AnswerRequest{Index: i, Ranking: bestRanking(q.Question), ElapsedMs: 1500})
		require.NoError(t, err, "question %d", i)
		if i < len(sess.Questions)-1 {
			assert.Equal(t, StatusInProgress, updated.Status)
		}
	}

	final, err := svc.Get(ctx, sess.Code)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.NotNil(t, final.CompletedAt)
	assert.Equal(t, int64(42*1500), final.TotalTimeMs)
	assert.Equal(t, 42, final.Answers.Count())

	_, err = svc.Answer(ctx, sess.Code, AnswerRequest{Index: 42})
	assert.True(t, errors.Is(err, ErrAlreadyCompleted))

	assert.Equal(t, 42, rec.answered)
	assert.Equal(t, 1, rec.completed)
	events.AssertCalled(t, "Publish", "profile.session."+sess.Code+".completed", mock.Anything)

	_, report, err := svc.Results(ctx, sess.Code)
	require.NoError(t, err)
	assert.True(t, report.Complete)
	assert.Equal(t, 100, report.Scores.GlobalNormalized)
	require.NotNil(t, report.Reliability.CoherenceIndex)
	assert.Equal(t, 100, *report.Reliability.CoherenceIndex)
}

func TestAnswerUnknownSession(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), &mockHermes{}, nil)
	_, err := svc.Answer(context.Background(), "AMA-NONE", AnswerRequest{})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPartialResults(t *testing.T) {
	events := &mockHermes{}
	events.On("Publish", mock.AnythingOfType("string"), mock.Anything).Return(nil)
	svc := newTestService(t, NewMemoryStore(), events, nil)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := svc.Answer(ctx, sess.Code, AnswerRequest{Index: i, Ranking: bestRanking(sess.Questions[i].Question)})
		require.NoError(t, err)
	}

	_, report, err := svc.Results(ctx, sess.Code)
	require.NoError(t, err)
	assert.False(t, report.Complete)
	assert.Equal(t, 5, report.Answered)
	assert.Equal(t, 58, report.Total)
}

func TestPublishFailureDoesNotFailAnswer(t *testing.T) {
	events := &mockHermes{}
	events.On("Publish", mock.AnythingOfType("string"), mock.Anything).Return(errors.New("nats down"))
	svc := newTestService(t, NewMemoryStore(), events, nil)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{})
	require.NoError(t, err)
	_, err = svc.Answer(ctx, sess.Code, AnswerRequest{Index: 0, Ranking: bestRanking(sess.Questions[0].Question)})
	assert.NoError(t, err)
}

func TestCandidateViewHidesValues(t *testing.T) {
	events := &mockHermes{}
	events.On("Publish", mock.AnythingOfType("string"), mock.Anything).Return(nil)
	svc := newTestService(t, NewMemoryStore(), events, nil)

	sess, err := svc.Create(context.Background(), CreateRequest{})
	require.NoError(t, err)

	v := sess.CandidateView()
	require.NotNil(t, v.Current)
	assert.Equal(t, 0, v.Current.Index)
	assert.Len(t, v.Current.Options, 4)
	assert.Equal(t, 58, v.Total)

	// Presentation order is stable across calls.
	again := sess.CandidateView()
	assert.Equal(t, v.Current.Options, again.Current.Options)
}

func TestGenerateCode(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	for i := 0; i < 200; i++ {
		code := GenerateCode("AMA", rng)
		require.True(t, strings.HasPrefix(code, "AMA-"))
		for _, c := range code[4:] {
			assert.True(t, strings.ContainsRune(CodeAlphabet, c), "unexpected character %q", c)
		}
	}
	assert.Len(t, GenerateCode("", rng), 4)
}
