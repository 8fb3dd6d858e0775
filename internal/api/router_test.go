package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Profile/internal/archive"
	"github.com/MikeSquared-Agency/Profile/internal/assessment"
	"github.com/MikeSquared-Agency/Profile/internal/metrics"
	"github.com/MikeSquared-Agency/Profile/internal/scoring"
	"github.com/MikeSquared-Agency/Profile/internal/session"
)

const adminToken = "admin-token"

type testServer struct {
	handler http.Handler
	svc     *session.Service
	store   *session.MemoryStore
	archive *archive.MemoryArchive
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	defs, err := assessment.NewRegistry("", 0, logger)
	require.NoError(t, err)
	engine, err := scoring.NewEngine(scoring.DefaultEngineConfig(), logger, nil)
	require.NoError(t, err)
	store := session.NewMemoryStore()
	svc := session.NewService(store, defs, engine, nil, nil, logger, session.Options{
		DefaultAssessment: "dsi",
		DefaultFormat:     "court",
		Rand:              rand.New(rand.NewPCG(2, 7)),
	})
	arch := archive.NewMemoryArchive()
	h := NewRouter(svc, defs, arch, RouterConfig{AdminToken: adminToken, RequestsPerMinute: 10000, SessionRequestsPerMinute: 10000}, logger)
	return &testServer{handler: h, svc: svc, store: store, archive: arch}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// bestRanking orders the current question's options by calibrated value,
// looked up from the full admin record.
func (ts *testServer) bestRanking(t *testing.T, code string, index int) []string {
	t.Helper()
	sess, err := ts.svc.Get(context.Background(), code)
	require.NoError(t, err)
	opts := append([]assessment.Option(nil), sess.Questions[index].Options...)
	sort.Slice(opts, func(i, j int) bool { return opts[i].Value > opts[j].Value })
	ids := make([]string, len(opts))
	for i, o := range opts {
		ids[i] = o.ID
	}
	return ids
}

func TestListAssessments(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "GET", "/api/v1/assessments", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]assessment.Summary](t, w)
	require.NotEmpty(t, list)
	assert.Equal(t, "dsi", list[0].ID)

	w = ts.do(t, "GET", "/api/v1/assessments/dsi", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"value"`)

	w = ts.do(t, "GET", "/api/v1/assessments/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSessionRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/v1/sessions", session.CreateRequest{}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, "GET", "/api/v1/sessions", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, "POST", "/api/v1/sessions", session.CreateRequest{Format: "marathon"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "POST", "/api/v1/sessions", session.CreateRequest{AssessmentType: "nope"}, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCandidateFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/v1/sessions", session.CreateRequest{CandidateName: "Alex Martin"}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[SessionSummary](t, w)
	assert.Equal(t, 42, created.Total)
	base := "/api/v1/sessions/" + created.Code

	w = ts.do(t, "GET", base, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[session.CandidateView](t, w)
	require.NotNil(t, view.Current)
	assert.NotContains(t, w.Body.String(), `"value"`)
	assert.NotContains(t, w.Body.String(), `"target"`)

	w = ts.do(t, "GET", base+"/results", nil, false)
	assert.Equal(t, http.StatusConflict, w.Code, "results hidden until completion")

	w = ts.do(t, "GET", "/api/v1/admin/sessions/"+created.Code+"/results", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	partial := decode[AdminResults](t, w)
	assert.False(t, partial.Report.Complete)

	w = ts.do(t, "POST", base+"/answers", session.AnswerRequest{Index: 3, Ranking: []string{"a", "b", "c", "d"}}, false)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, "POST", base+"/answers", map[string]interface{}{"index": 0}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var last AnswerResponse
	for i := 0; i < created.Total; i++ {
		w = ts.do(t, "POST", base+"/answers", session.AnswerRequest{Index: i, Ranking: ts.bestRanking(t, created.Code, i)}, false)
		require.Equal(t, http.StatusOK, w.Code, "question %d: %s", i, w.Body.String())
		last = decode[AnswerResponse](t, w)
	}
	assert.True(t, last.Completed)
	assert.Nil(t, last.Current)

	w = ts.do(t, "POST", base+"/answers", session.AnswerRequest{Index: 42, Ranking: []string{"a"}}, false)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, "GET", base+"/results", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[scoring.Report](t, w)
	assert.True(t, report.Complete)
	assert.Equal(t, 100, report.Scores.GlobalNormalized)

	w = ts.do(t, "GET", "/api/v1/sessions?status=completed", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]SessionSummary](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, created.Code, list[0].Code)
}

func TestResultsPreferArchivedReport(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	sess, err := ts.svc.Create(ctx, session.CreateRequest{})
	require.NoError(t, err)
	for i := range sess.Questions {
		_, err := ts.svc.Answer(ctx, sess.Code, session.AnswerRequest{Index: i, Ranking: ts.bestRanking(t, sess.Code, i)})
		require.NoError(t, err)
	}

	_, report, err := ts.svc.Results(ctx, sess.Code)
	require.NoError(t, err)
	report.Analysis.Profile.Name = "archived"
	_, err = ts.archive.Put(ctx, report)
	require.NoError(t, err)
	require.NoError(t, ts.store.MarkFinalized(ctx, sess.Code, time.Now()))

	w := ts.do(t, "GET", "/api/v1/sessions/"+sess.Code+"/results", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[scoring.Report](t, w)
	assert.Equal(t, "archived", got.Analysis.Profile.Name)
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/v1/sessions/AMA-NONE", "/api/v1/sessions/AMA-NONE/results"} {
		w := ts.do(t, "GET", path, nil, false)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := ts.do(t, "GET", "/api/v1/admin/sessions/AMA-NONE", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.MustNew(reg)
	m.SessionCreated("dsi", "court")

	h := NewMetricsRouter(reg)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "profile_sessions_created_total")
}
