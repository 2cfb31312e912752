package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketintel/stealth-scraper/internal/config"
	"github.com/marketintel/stealth-scraper/internal/jobs"
	"github.com/marketintel/stealth-scraper/internal/storage"
)

type Handlers struct {
	cfg    *config.Config
	jobs   *jobs.Manager
	store  *storage.SnapshotStore
	logger *slog.Logger
}

func NewHandlers(cfg *config.Config, manager *jobs.Manager, store *storage.SnapshotStore) *Handlers {
	return &Handlers{
		cfg:    cfg,
		jobs:   manager,
		store:  store,
		logger: slog.Default().With("component", "api"),
	}
}

// CreateRunRequest asks for one pipeline run.
type CreateRunRequest struct {
	Target      string `json:"target"`
	MaxProducts int    `json:"max_products"`
	SkipEnrich  bool   `json:"skip_enrich"`
}

// CreateRun queues a scrape job.
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.cfg.GetTarget(req.Target); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.MaxProducts <= 0 {
		req.MaxProducts = 50
	}

	job, err := h.jobs.Create(req.Target, req.MaxProducts, req.SkipEnrich)
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusAccepted, job)
}

// GetRun returns one job by id.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, ok := h.jobs.Get(id)
	if !ok {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// ListRuns returns all known jobs.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.List())
}

// GetStats returns job counters.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.GetStats())
}

// GetRawResults serves the latest raw snapshot document.
func (h *Handlers) GetRawResults(w http.ResponseWriter, r *http.Request) {
	h.serveSnapshot(w, h.cfg.Output.RawPath)
}

// GetEnrichedResults serves the latest enriched snapshot document.
func (h *Handlers) GetEnrichedResults(w http.ResponseWriter, r *http.Request) {
	h.serveSnapshot(w, h.cfg.Output.EnrichedPath)
}

// ListTargets returns the configured target names.
func (h *Handlers) ListTargets(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.cfg.Targets))
	for name := range h.cfg.Targets {
		names = append(names, name)
	}
	h.respondJSON(w, http.StatusOK, names)
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) serveSnapshot(w http.ResponseWriter, path string) {
	snapshot, err := h.store.Read(path)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "no snapshot available")
		return
	}

	h.respondJSON(w, http.StatusOK, snapshot)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
