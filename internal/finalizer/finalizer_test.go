package finalizer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Profile/internal/archive"
	"github.com/MikeSquared-Agency/Profile/internal/assessment"
	"github.com/MikeSquared-Agency/Profile/internal/hermes"
	"github.com/MikeSquared-Agency/Profile/internal/notify"
	"github.com/MikeSquared-Agency/Profile/internal/scoring"
	"github.com/MikeSquared-Agency/Profile/internal/session"
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

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SessionCompleted(ctx context.Context, s notify.Summary) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

type outcomes map[string]int

func (o outcomes) SessionFinalized(outcome string) { o[outcome]++ }

type failingArchive struct{}

func (failingArchive) Put(context.Context, scoring.Report) (string, error) {
	return "", errors.New("bucket unavailable")
}
func (failingArchive) Get(context.Context, string) (scoring.Report, error) {
	return scoring.Report{}, archive.ErrNotFound
}

type fixture struct {
	store  *session.MemoryStore
	defs   *assessment.Registry
	engine *scoring.Engine
	svc    *session.Service
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	defs, err := assessment.NewRegistry("", 0, discardLogger())
	require.NoError(t, err)
	engine, err := scoring.NewEngine(scoring.DefaultEngineConfig(), discardLogger(), nil)
	require.NoError(t, err)
	store := session.NewMemoryStore()
	svc := session.NewService(store, defs, engine, nil, nil, discardLogger(), session.Options{
		DefaultAssessment: "dsi",
		DefaultFormat:     "court",
		Rand:              rand.New(rand.NewPCG(11, 3)),
	})
	return &fixture{store: store, defs: defs, engine: engine, svc: svc}
}

// completeSession answers every question with the highest-valued option first.
func (fx *fixture) completeSession(t *testing.T, name string) *session.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := fx.svc.Create(ctx, session.CreateRequest{CandidateName: name})
	require.NoError(t, err)
	for i, q := range sess.Questions {
		opts := append([]assessment.Option(nil), q.Options...)
		sort.Slice(opts, func(a, b int) bool { return opts[a].Value > opts[b].Value })
		ranking := make([]string, len(opts))
		for j, o := range opts {
			ranking[j] = o.ID
		}
		_, err := fx.svc.Answer(ctx, sess.Code, session.AnswerRequest{Index: i, Ranking: ranking})
		require.NoError(t, err)
	}
	return sess
}

// completedRetired stores a completed session whose assessment type no longer
// resolves, so every finalization attempt fails.
func (fx *fixture) completedRetired(t *testing.T, code string, at time.Time) {
	t.Helper()
	require.NoError(t, fx.store.Create(context.Background(), &session.Session{
		Code:           code,
		AssessmentType: "retired",
		Format:         "court",
		Status:         session.StatusCompleted,
		CompletedAt:    &at,
	}))
}

func TestRunOnceFinalizesCompletedSessions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	done := fx.completeSession(t, "Alex Martin")

	// Incomplete sessions are left alone.
	pending, err := fx.svc.Create(ctx, session.CreateRequest{})
	require.NoError(t, err)

	events := &mockHermes{}
	events.On("Publish", hermes.SubjectResultsComputed(done.Code), mock.AnythingOfType("hermes.ResultsComputedEvent")).Return(nil)
	notifier := &mockNotifier{}
	notifier.On("SessionCompleted", mock.Anything, mock.AnythingOfType("notify.Summary")).Return(nil)
	arch := archive.NewMemoryArchive()
	rec := outcomes{}

	f := New(fx.store, fx.defs, fx.engine, arch, events, notifier, rec, Config{}, discardLogger())
	n, err := f.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, rec[OutcomeFinalized])

	events.AssertExpectations(t)
	ev := events.Calls[0].Arguments.Get(1).(hermes.ResultsComputedEvent)
	assert.Equal(t, 100, ev.GlobalScore)
	assert.Equal(t, archive.Key(done.Code), ev.ArchiveKey)
	require.NotNil(t, ev.CoherenceIndex)

	summary := notifier.Calls[0].Arguments.Get(1).(notify.Summary)
	assert.Equal(t, "Alex Martin", summary.CandidateName)
	assert.Equal(t, archive.Key(done.Code), summary.ArchiveKey)

	stored, err := arch.Get(ctx, done.Code)
	require.NoError(t, err)
	assert.True(t, stored.Complete)

	got, err := fx.store.GetByCode(ctx, done.Code)
	require.NoError(t, err)
	assert.NotNil(t, got.FinalizedAt)
	untouched, err := fx.store.GetByCode(ctx, pending.Code)
	require.NoError(t, err)
	assert.Nil(t, untouched.FinalizedAt)

	// A second pass has nothing left to do.
	n, err = f.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	events.AssertNumberOfCalls(t, "Publish", 1)
}

func TestArchiveFailureLeavesSessionForRetry(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.completeSession(t, "")

	events := &mockHermes{}
	rec := outcomes{}
	f := New(fx.store, fx.defs, fx.engine, failingArchive{}, events, nil, rec, Config{}, discardLogger())

	n, err := f.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, rec[OutcomeFailed])
	events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)

	got, err := fx.store.GetByCode(ctx, sess.Code)
	require.NoError(t, err)
	assert.Nil(t, got.FinalizedAt)
}

func TestFailingSessionsDoNotBlockNewerOnes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)
	fx.completedRetired(t, "OLD-0001", old)
	fx.completedRetired(t, "OLD-0002", old.Add(time.Minute))
	fresh := fx.completeSession(t, "")

	rec := outcomes{}
	f := New(fx.store, fx.defs, fx.engine, nil, nil, nil, rec, Config{}, discardLogger())

	n, err := f.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, rec[OutcomeFailed])

	got, err := fx.store.GetByCode(ctx, fresh.Code)
	require.NoError(t, err)
	assert.NotNil(t, got.FinalizedAt)
}

func TestFailingSessionsBackOff(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)
	fx.completedRetired(t, "OLD-0001", old)
	fx.completedRetired(t, "OLD-0002", old.Add(time.Minute))
	fresh := fx.completeSession(t, "")

	rec := outcomes{}
	f := New(fx.store, fx.defs, fx.engine, nil, nil, nil, rec, Config{Interval: time.Minute, BatchSize: 2}, discardLogger())
	clock := time.Now()
	f.now = func() time.Time { return clock }

	// The two oldest sessions fill the first batch and fail.
	n, err := f.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, rec[OutcomeFailed])

	// While they back off the pass pages past them.
	n, err = f.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, rec[OutcomeFailed])
	got, err := fx.store.GetByCode(ctx, fresh.Code)
	require.NoError(t, err)
	assert.NotNil(t, got.FinalizedAt)

	// First retry after one interval, then the delay doubles.
	clock = clock.Add(time.Minute)
	_, err = f.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, rec[OutcomeFailed])

	clock = clock.Add(time.Minute)
	_, err = f.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, rec[OutcomeFailed], "still backing off")

	clock = clock.Add(time.Minute)
	_, err = f.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, rec[OutcomeFailed])
}

func TestDeliveryFailuresDoNotBlockFinalization(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.completeSession(t, "")

	events := &mockHermes{}
	events.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nats down"))
	notifier := &mockNotifier{}
	notifier.On("SessionCompleted", mock.Anything, mock.Anything).Return(errors.New("telegram down"))

	f := New(fx.store, fx.defs, fx.engine, nil, events, notifier, nil, Config{}, discardLogger())
	n, err := f.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ev := events.Calls[0].Arguments.Get(1).(hermes.ResultsComputedEvent)
	assert.Empty(t, ev.ArchiveKey, "no archive configured")

	got, err := fx.store.GetByCode(ctx, sess.Code)
	require.NoError(t, err)
	assert.NotNil(t, got.FinalizedAt)
}

func TestStartStop(t *testing.T) {
	fx := newFixture(t)
	sess := fx.completeSession(t, "")

	f := New(fx.store, fx.defs, fx.engine, nil, nil, nil, nil, Config{Interval: 5 * time.Millisecond}, discardLogger())
	f.Start(context.Background())
	defer f.Stop()

	require.Eventually(t, func() bool {
		got, err := fx.store.GetByCode(context.Background(), sess.Code)
		return err == nil && got.FinalizedAt != nil
	}, time.Second, 5*time.Millisecond)

	f.Stop()
	f.Stop()
}
