package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/logging"
	"github.com/ekaya-inc/taskboard/pkg/services"
)

// WorkloadHandler serves the merged task and people views.
type WorkloadHandler struct {
	workload services.WorkloadService
	store    BrowserStore
	logger   *zap.Logger
}

// NewWorkloadHandler creates a new workload handler.
func NewWorkloadHandler(workload services.WorkloadService, store BrowserStore, logger *zap.Logger) *WorkloadHandler {
	return &WorkloadHandler{
		workload: workload,
		store:    store,
		logger:   logger,
	}
}

// RegisterRoutes registers the workload routes on the given mux.
func (h *WorkloadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notion/tasks", h.Tasks)
	mux.HandleFunc("GET /api/notion/people", h.People)
}

// Tasks handles GET /api/notion/tasks.
func (h *WorkloadHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	conns := services.NormalizeConnections(h.store.Connections(r))
	result := h.workload.GetTasks(r.Context(), conns, h.store.Mappings(r))

	status := http.StatusOK
	if !result.OK {
		status = StatusForError(result.Err)
		h.logFailure("tasks", status, result.Err)
	}
	if err := WriteJSON(w, status, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// People handles GET /api/notion/people.
func (h *WorkloadHandler) People(w http.ResponseWriter, r *http.Request) {
	conns := services.NormalizeConnections(h.store.Connections(r))
	result := h.workload.GetPeople(r.Context(), conns, h.store.Mappings(r))

	status := http.StatusOK
	if !result.OK {
		status = StatusForError(result.Err)
		h.logFailure("people", status, result.Err)
	}
	if err := WriteJSON(w, status, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *WorkloadHandler) logFailure(view string, status int, err error) {
	if status < http.StatusInternalServerError {
		h.logger.Debug("Workload unavailable",
			zap.String("view", view),
			zap.Int("status", status),
			zap.String("error", logging.SanitizeError(err)))
		return
	}
	h.logger.Error("Workload aggregation failed",
		zap.String("view", view),
		zap.Int("status", status),
		zap.String("error", logging.SanitizeError(err)))
}
