package api

import (
	"errors"
	"net/http"

	service "github.com/corralhq/corral/internal/app"
)

// SyncHandler triggers ingestion passes and safety rescans.
type SyncHandler struct {
	deps Dependencies
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(deps Dependencies) *SyncHandler {
	return &SyncHandler{deps: deps}
}

type syncRequest struct {
	Sources []string `json:"sources"`
}

// HandleSync responds to POST /sync. The body may name a subset of
// sources; empty means all configured ones.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req syncRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	report, err := h.deps.Sync(r.Context(), req.Sources)
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "sync_in_progress")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"added":      report.Added,
		"updated":    report.Updated,
		"duplicates": report.Duplicates,
	})
}

// HandleRescan responds to POST /safety/rescan.
func (h *SyncHandler) HandleRescan(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	res, err := h.deps.RescanSafety(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"flagged": res.Flagged,
		"cleared": res.Cleared,
	})
}
