package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/internal/scheduler"
)

// JobsHandler manages validation jobs over HTTP.
type JobsHandler struct {
	deps Dependencies
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(deps Dependencies) *JobsHandler {
	return &JobsHandler{deps: deps}
}

type validateRequest struct {
	ModelID string   `json:"model_id"`
	Sources []string `json:"sources"`
}

// HandleValidate responds to POST /validate.
func (h *JobsHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req validateRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if strings.TrimSpace(req.ModelID) == "" {
		writeError(w, http.StatusBadRequest, "missing_model_id")
		return
	}

	sources := make([]model.ValidationSource, 0, len(req.Sources))
	for _, s := range req.Sources {
		switch src := model.ValidationSource(strings.ToUpper(s)); src {
		case model.SourceAPI, model.SourceWebsearch, model.SourceScraping:
			sources = append(sources, src)
		default:
			writeError(w, http.StatusBadRequest, "invalid_source")
			return
		}
	}

	job, err := h.deps.Validate(r.Context(), req.ModelID, sources)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, job)
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "model_not_found")
	case errors.Is(err, scheduler.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "queue_full")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

// HandleList responds to GET /jobs.
func (h *JobsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	jobs := h.deps.Jobs()
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// HandlePause responds to POST /validate/pause.
func (h *JobsHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	h.deps.PauseValidation()
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// HandleResume responds to POST /validate/resume.
func (h *JobsHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	h.deps.ResumeValidation()
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// HandleCancel responds to POST /validate/cancel.
func (h *JobsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	n := h.deps.CancelValidation()
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}

// HandleClearFinished responds to DELETE /jobs/finished.
func (h *JobsHandler) HandleClearFinished(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	n := h.deps.ClearFinishedJobs()
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}
