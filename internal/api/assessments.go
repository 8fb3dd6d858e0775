package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Profile/internal/assessment"
)

type AssessmentsHandler struct {
	defs assessment.Provider
}

func NewAssessmentsHandler(defs assessment.Provider) *AssessmentsHandler {
	return &AssessmentsHandler{defs: defs}
}

func (h *AssessmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.defs.List()
	if list == nil {
		list = []assessment.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Get returns the public summary of one assessment. Calibrated option values
// never leave the server.
func (h *AssessmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	def, err := h.defs.Resolve(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def.Summary())
}
