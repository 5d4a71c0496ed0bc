package api

import (
	"net/http"
	"strconv"

	service "github.com/corralhq/corral/internal/app"
	"github.com/corralhq/corral/internal/domain/model"
)

// ModelsHandler serves catalog reads and direct imports.
type ModelsHandler struct {
	deps Dependencies
}

// NewModelsHandler creates a models handler.
func NewModelsHandler(deps Dependencies) *ModelsHandler {
	return &ModelsHandler{deps: deps}
}

// HandleList responds to GET /models. Query parameters: limit, offset,
// favorite=true (favorites only), nsfw=false (hide flagged entries).
func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	var opts service.ListOptions
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		opts.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_offset")
			return
		}
		opts.Offset = n
	}
	if raw := q.Get("favorite"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_favorite")
			return
		}
		opts.FavoritesOnly = v
	}
	if raw := q.Get("nsfw"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_nsfw")
			return
		}
		opts.HideNSFW = !v
	}

	models, err := h.deps.Models(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": models,
		"count":  len(models),
	})
}

type importRequest struct {
	Models []model.Model `json:"models"`
}

// HandleImport responds to POST /models/import.
func (h *ModelsHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req importRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if len(req.Models) == 0 {
		writeError(w, http.StatusBadRequest, "no_models")
		return
	}
	for _, m := range req.Models {
		if m.Name == "" {
			writeError(w, http.StatusBadRequest, "missing_name")
			return
		}
	}

	report, err := h.deps.ImportModels(r.Context(), req.Models)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"added":      report.Added,
		"updated":    report.Updated,
		"duplicates": report.Duplicates,
	})
}
