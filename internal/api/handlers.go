package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/coin-collector/internal/runs"
)

// RunService is the part of runs.Manager the handlers use.
type RunService interface {
	Start(ctx context.Context) (*runs.Run, error)
	Get(id string) (*runs.Run, error)
	List() []*runs.Run
	Active() (*runs.Run, bool)
}

type Handlers struct {
	runs   RunService
	logger *slog.Logger
}

func NewHandlers(runs RunService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		runs:   runs,
		logger: logger.With("component", "api"),
	}
}

// StartRunResponse represents the run creation response
type StartRunResponse struct {
	RunID   string      `json:"run_id"`
	Status  runs.Status `json:"status"`
	Message string      `json:"message"`
}

// StartRun begins a collection run in the background
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Start(r.Context())
	if errors.Is(err, runs.ErrRunInProgress) {
		h.respondError(w, http.StatusConflict, "a collection run is already in progress")
		return
	}
	if err != nil {
		h.logger.Error("failed to start run", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	h.respondJSON(w, http.StatusAccepted, StartRunResponse{
		RunID:   run.ID,
		Status:  run.Status,
		Message: "Run started",
	})
}

// GetRun handles run status retrieval
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		h.respondError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	run, err := h.runs.Get(runID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.runs.List())
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{"status": "ok"}
	if run, ok := h.runs.Active(); ok {
		health["active_run"] = run.ID
	}
	h.respondJSON(w, http.StatusOK, health)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
