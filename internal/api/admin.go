package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Profile/internal/scoring"
	"github.com/MikeSquared-Agency/Profile/internal/session"
)

// AdminHandler serves the operator routes: session creation, listing and
// partial results.
type AdminHandler struct {
	svc *session.Service
}

func NewAdminHandler(svc *session.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type SessionSummary struct {
	Code           string         `json:"code"`
	AssessmentType string         `json:"assessment_type"`
	Format         string         `json:"format"`
	CandidateName  string         `json:"candidate_name"`
	CandidateRole  string         `json:"candidate_role,omitempty"`
	Status         session.Status `json:"status"`
	Answered       int            `json:"answered"`
	Total          int            `json:"total"`
	Finalized      bool           `json:"finalized"`
}

func summarize(s *session.Session) SessionSummary {
	return SessionSummary{
		Code:           s.Code,
		AssessmentType: s.AssessmentType,
		Format:         s.Format,
		CandidateName:  s.CandidateName,
		CandidateRole:  s.CandidateRole,
		Status:         s.Status,
		Answered:       s.CurrentQuestion,
		Total:          len(s.Questions),
		Finalized:      s.FinalizedAt != nil,
	}
}

func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	sess, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summarize(sess))
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := session.Filter{AssessmentType: q.Get("assessment_type")}
	if s := q.Get("status"); s != "" {
		status := session.Status(s)
		filter.Status = &status
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
		return
	}

	sessions, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, summarize(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns the full session record, calibrated values included.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type AdminResults struct {
	Session SessionSummary `json:"session"`
	Report  scoring.Report `json:"report"`
}

// Results evaluates the session as it stands, partial or complete.
func (h *AdminHandler) Results(w http.ResponseWriter, r *http.Request) {
	sess, report, err := h.svc.Results(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdminResults{Session: summarize(sess), Report: report})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
