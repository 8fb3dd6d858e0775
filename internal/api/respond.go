package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
	"github.com/MikeSquared-Agency/Profile/internal/scoring"
	"github.com/MikeSquared-Agency/Profile/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, assessment.ErrUnknownAssessment):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrAlreadyCompleted), errors.Is(err, session.ErrOutOfOrder):
		status = http.StatusConflict
	case errors.Is(err, scoring.ErrInvalidRanking), errors.Is(err, scoring.ErrUnknownFormat):
		status = http.StatusBadRequest
	case errors.Is(err, scoring.ErrPoolExhausted):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
