package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/depicts/internal/commons"
	"github.com/desertthunder/depicts/internal/jobs"
	"github.com/desertthunder/depicts/internal/models"
	"github.com/desertthunder/depicts/internal/shared"
)

const defaultSuggestionLimit = 10

// ResultStore is the slice of the repository layer the API reads from.
type ResultStore interface {
	ListByCategory(category string) ([]models.FileRecord, error)
	Summary(category string) (*models.CategorySummary, error)
	ListCategories() ([]models.CategorySummary, error)
	DeleteCategory(category string) (int, error)
}

// APIHandler serves the JSON API for analysis jobs and stored results.
// Implements the [Handler] interface for registration with a [Router].
type APIHandler struct {
	mux      *http.ServeMux
	engine   *jobs.Engine
	registry *jobs.Registry
	store    ResultStore
	client   commons.Client
	logger   *log.Logger
}

// NewAPIHandler creates the API handler and wires its routes.
func NewAPIHandler(engine *jobs.Engine, registry *jobs.Registry, store ResultStore, client commons.Client, logger *log.Logger) *APIHandler {
	h := &APIHandler{
		engine:   engine,
		registry: registry,
		store:    store,
		client:   client,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", h.analyze)
	mux.HandleFunc("GET /api/progress/{id}", h.progress)
	mux.HandleFunc("POST /api/cancel/{id}", h.cancel)
	mux.HandleFunc("GET /api/jobs", h.listJobs)
	mux.HandleFunc("GET /api/results/{category}", h.results)
	mux.HandleFunc("GET /api/history", h.history)
	mux.HandleFunc("DELETE /api/category/{category}", h.deleteCategory)
	mux.HandleFunc("GET /api/suggest", h.suggestCategories)
	mux.HandleFunc("GET /api/suggests/{file}", h.suggestDepicts)
	h.mux = mux

	return h
}

// Routes returns the path patterns this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{"/api/"}
}

// ServeHTTP implements [http.Handler].
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type analyzeRequest struct {
	Category string `json:"category"`
}

// analyze starts an analysis job and returns 202 with its snapshot.
func (h *APIHandler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, shared.ErrInvalidInput)
		return
	}

	snap, err := h.engine.Submit(r.Context(), req.Category)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, snap)
}

func (h *APIHandler) progress(w http.ResponseWriter, r *http.Request) {
	snap, err := h.registry.Snapshot(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *APIHandler) cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.registry.Cancel(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *APIHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": h.registry.Jobs()})
}

func (h *APIHandler) results(w http.ResponseWriter, r *http.Request) {
	category := models.CategoryDisplayName(r.PathValue("category"))

	summary, err := h.store.Summary(category)
	if err != nil {
		h.writeError(w, err)
		return
	}

	files, err := h.store.ListByCategory(category)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary": summary,
		"files":   files,
	})
}

func (h *APIHandler) history(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListCategories()
	if err != nil {
		h.writeError(w, err)
		return
	}

	if summaries == nil {
		summaries = []models.CategorySummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"categories": summaries})
}

func (h *APIHandler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	category := models.CategoryDisplayName(r.PathValue("category"))

	if id, active := h.registry.Active(category); active {
		h.logger.Warn("delete refused, job running", "category", category, "job", id)
		h.writeError(w, shared.ErrConflict)
		return
	}

	deleted, err := h.store.DeleteCategory(category)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if deleted == 0 {
		h.writeError(w, shared.ErrNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (h *APIHandler) suggestCategories(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	limit := queryLimit(r, defaultSuggestionLimit)

	suggestions, err := h.client.SuggestCategories(r.Context(), query, limit)
	if err != nil {
		// Suggestions are advisory; degrade to an empty list.
		h.logger.Warn("category suggestion failed", "query", query, "error", err)
		suggestions = nil
	}

	if suggestions == nil {
		suggestions = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (h *APIHandler) suggestDepicts(w http.ResponseWriter, r *http.Request) {
	fileName := r.PathValue("file")
	limit := queryLimit(r, defaultSuggestionLimit)

	suggestions, err := h.client.SuggestDepicts(r.Context(), fileName, limit)
	if err != nil {
		h.logger.Warn("depicts suggestion failed", "file", fileName, "error", err)
		suggestions = nil
	}

	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file":        fileName,
		"suggestions": suggestions,
	})
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrCategoryNotFound),
		errors.Is(err, shared.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrRemoteUnavailable),
		errors.Is(err, shared.ErrMalformedResponse):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return fallback
	}
	return limit
}
