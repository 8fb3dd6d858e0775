package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Profile/internal/archive"
	"github.com/MikeSquared-Agency/Profile/internal/session"
)

// SessionsHandler serves the candidate-facing routes.
type SessionsHandler struct {
	svc     *session.Service
	archive archive.Archive
	logger  *slog.Logger
}

func NewSessionsHandler(svc *session.Service, arch archive.Archive, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{svc: svc, archive: arch, logger: logger}
}

func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.CandidateView())
}

type AnswerResponse struct {
	session.CandidateView
	Completed bool `json:"completed"`
}

func (h *SessionsHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req session.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Ranking) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ranking required"})
		return
	}

	sess, err := h.svc.Answer(r.Context(), chi.URLParam(r, "code"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AnswerResponse{
		CandidateView: sess.CandidateView(),
		Completed:     sess.Status == session.StatusCompleted,
	})
}

// Results returns the report of a completed session, preferring the archived
// copy when one exists.
func (h *SessionsHandler) Results(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	sess, err := h.svc.Get(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	if sess.Status != session.StatusCompleted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session not completed"})
		return
	}

	if h.archive != nil && sess.FinalizedAt != nil {
		report, err := h.archive.Get(r.Context(), code)
		if err == nil {
			writeJSON(w, http.StatusOK, report)
			return
		}
		if !errors.Is(err, archive.ErrNotFound) {
			h.logger.Warn("failed to read archived report", "code", code, "error", err)
		}
	}

	_, report, err := h.svc.Results(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
