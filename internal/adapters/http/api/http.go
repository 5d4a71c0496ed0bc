// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	service "github.com/corralhq/corral/internal/app"
	"github.com/corralhq/corral/internal/domain/merge"
	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/internal/domain/safety"
)

// Dependencies required by HTTP handlers. Using an interface bundle
// keeps the handler layer loosely coupled to the service package.
type Dependencies interface {
	// Ingestion
	Sync(ctx context.Context, sources []string) (merge.Report, error)
	ImportModels(ctx context.Context, models []model.Model) (merge.Report, error)

	// Catalog reads
	Models(ctx context.Context, opts service.ListOptions) ([]model.Model, error)
	Stats(ctx context.Context) map[string]any

	// Safety
	RescanSafety(ctx context.Context) (safety.RescanResult, error)

	// Validation jobs
	Validate(ctx context.Context, modelID string, sources []model.ValidationSource) (model.ValidationJob, error)
	Jobs() []model.ValidationJob
	PauseValidation()
	ResumeValidation()
	CancelValidation() int
	ClearFinishedJobs() int
}

// Server wires HTTP routes for the catalog API.
type Server struct {
	deps  Dependencies
	guard *Guard

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	modelsHandler *ModelsHandler
	syncHandler   *SyncHandler
	jobsHandler   *JobsHandler
	proxyHandler  *ProxyHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, guard *Guard, proxyTarget string) *Server {
	return &Server{
		deps:          deps,
		guard:         guard,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		modelsHandler: NewModelsHandler(deps),
		syncHandler:   NewSyncHandler(deps),
		jobsHandler:   NewJobsHandler(deps),
		proxyHandler:  NewProxyHandler(proxyTarget),
	}
}

// Register attaches all HTTP routes to mux. Every route passes through
// the guard (origin allowlist, then rate quota) and metrics middleware.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	browse := func(h http.HandlerFunc, endpoint string) http.HandlerFunc {
		return s.guard.Browse(MetricsMiddleware(h, endpoint))
	}
	llm := func(h http.HandlerFunc, endpoint string) http.HandlerFunc {
		return s.guard.LLM(MetricsMiddleware(h, endpoint))
	}

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", browse(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/models", browse(s.modelsHandler.HandleList, "models"))
	mux.HandleFunc("/models/import", browse(s.modelsHandler.HandleImport, "models_import"))

	mux.HandleFunc("/sync", browse(s.syncHandler.HandleSync, "sync"))
	mux.HandleFunc("/safety/rescan", browse(s.syncHandler.HandleRescan, "safety_rescan"))

	mux.HandleFunc("/validate", llm(s.jobsHandler.HandleValidate, "validate"))
	mux.HandleFunc("/validate/pause", browse(s.jobsHandler.HandlePause, "validate_pause"))
	mux.HandleFunc("/validate/resume", browse(s.jobsHandler.HandleResume, "validate_resume"))
	mux.HandleFunc("/validate/cancel", browse(s.jobsHandler.HandleCancel, "validate_cancel"))
	mux.HandleFunc("/jobs", browse(s.jobsHandler.HandleList, "jobs"))
	mux.HandleFunc("/jobs/finished", browse(s.jobsHandler.HandleClearFinished, "jobs_finished"))

	mux.HandleFunc("/proxy/", llm(s.proxyHandler.HandleProxy, "proxy"))
}

type errorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

// isNotFound translates service lookup failures into 404 responses.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}

// requireMethod rejects mismatched verbs uniformly.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return false
	}
	return true
}

var errBadBody = errors.New("invalid request body")

// decodeBody parses a JSON request body into v. An empty body is
// allowed when optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return nil
	}
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return errBadBody
}
