package api

import "net/http"

// StatsHandler serves the service statistics endpoint.
type StatsHandler struct {
	deps Dependencies
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(deps Dependencies) *StatsHandler {
	return &StatsHandler{deps: deps}
}

// HandleStats responds to GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Stats(r.Context()))
}
