package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
	"github.com/ekaya-inc/taskboard/pkg/logging"
	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/services"
)

const databasesNotDetectedMessage = "Could not auto-detect Tasks, Projects, or Sprints databases. " +
	"Please name them accordingly (Tasks/Projects/Sprints) and try again, or use OAuth."

// ConnectionsResponse lists the connected workspaces without their tokens.
type ConnectionsResponse struct {
	OK          bool                       `json:"ok"`
	Connections []models.ConnectionSummary `json:"connections"`
}

// ConnectTokenRequest is the body of POST /api/notion/connections.
type ConnectTokenRequest struct {
	AccessToken string `json:"accessToken"`
}

// ConnectTokenResponse reports a workspace connected with a manual token.
type ConnectTokenResponse struct {
	OK            bool                     `json:"ok"`
	WorkspaceName string                   `json:"workspaceName"`
	Detected      models.DetectedDatabases `json:"detected"`
}

// UpdateDatabasesRequest is the body of PUT /api/notion/connections.
// Database ids are pointers so a missing field can be told from an empty one.
type UpdateDatabasesRequest struct {
	WorkspaceID  string  `json:"workspaceId"`
	TasksDBID    *string `json:"tasksDbId"`
	ProjectsDBID *string `json:"projectsDbId"`
	SprintsDBID  *string `json:"sprintsDbId"`
}

// DatabasesResponse lists the databases visible to a workspace.
type DatabasesResponse struct {
	OK        bool              `json:"ok"`
	Databases []models.Database `json:"databases"`
}

// ConnectionsHandler manages the connected workspaces of a browser.
type ConnectionsHandler struct {
	connections services.ConnectionService
	store       BrowserStore
	logger      *zap.Logger
}

// NewConnectionsHandler creates a new connections handler.
func NewConnectionsHandler(connections services.ConnectionService, store BrowserStore, logger *zap.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{
		connections: connections,
		store:       store,
		logger:      logger,
	}
}

// RegisterRoutes registers the connection routes on the given mux.
func (h *ConnectionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notion/connections", h.List)
	mux.HandleFunc("POST /api/notion/connections", h.ConnectToken)
	mux.HandleFunc("PUT /api/notion/connections", h.UpdateDatabases)
	mux.HandleFunc("DELETE /api/notion/connections", h.Delete)
	mux.HandleFunc("GET /api/notion/databases", h.Databases)
}

// List handles GET /api/notion/connections.
func (h *ConnectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	conns := services.NormalizeConnections(h.store.Connections(r))
	response := ConnectionsResponse{OK: true, Connections: services.Summaries(conns)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ConnectToken handles POST /api/notion/connections.
// Connects a workspace with an internal integration token and detects its
// databases by title.
func (h *ConnectionsHandler) ConnectToken(w http.ResponseWriter, r *http.Request) {
	var req ConnectTokenRequest
	if !decodeBody(r, &req) || strings.TrimSpace(req.AccessToken) == "" {
		h.fail(w, http.StatusBadRequest, "accessToken is required")
		return
	}

	conn, err := h.connections.ConnectWithToken(r.Context(), strings.TrimSpace(req.AccessToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrDatabasesNotDetected) {
			h.fail(w, http.StatusBadRequest, databasesNotDetectedMessage)
			return
		}
		h.logger.Error("Failed to connect workspace with token",
			zap.String("error", logging.SanitizeError(err)))
		h.fail(w, StatusForError(err), upstreamMessage(err, "Unable to save integration token"))
		return
	}

	merged := services.MergeConnection(h.store.Connections(r), *conn)
	if err := h.store.SaveConnections(w, r, merged); err != nil {
		h.logger.Error("Failed to save connections", zap.Error(err))
		status, message := saveFailure(err, tooManyWorkspacesMessage, "Unable to save integration token")
		h.fail(w, status, message)
		return
	}

	response := ConnectTokenResponse{
		OK:            true,
		WorkspaceName: conn.WorkspaceName,
		Detected: models.DetectedDatabases{
			TasksDBID:    conn.TasksDBID,
			ProjectsDBID: conn.ProjectsDBID,
			SprintsDBID:  conn.SprintsDBID,
		},
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateDatabases handles PUT /api/notion/connections.
func (h *ConnectionsHandler) UpdateDatabases(w http.ResponseWriter, r *http.Request) {
	var req UpdateDatabasesRequest
	if !decodeBody(r, &req) || req.WorkspaceID == "" ||
		req.TasksDBID == nil || req.ProjectsDBID == nil || req.SprintsDBID == nil {
		h.fail(w, http.StatusBadRequest, "workspaceId, tasksDbId, projectsDbId, sprintsDbId are required")
		return
	}

	updated, found := services.UpdateDatabases(h.store.Connections(r), req.WorkspaceID, models.DetectedDatabases{
		TasksDBID:    strings.TrimSpace(*req.TasksDBID),
		ProjectsDBID: strings.TrimSpace(*req.ProjectsDBID),
		SprintsDBID:  strings.TrimSpace(*req.SprintsDBID),
	})
	if !found {
		h.fail(w, http.StatusNotFound, "Workspace not found in your connections")
		return
	}

	if err := h.store.SaveConnections(w, r, updated); err != nil {
		h.logger.Error("Failed to save connections", zap.Error(err))
		status, message := saveFailure(err, tooManyWorkspacesMessage, "Failed to save connection")
		h.fail(w, status, message)
		return
	}
	if err := WriteJSON(w, http.StatusOK, Envelope{OK: true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/notion/connections?workspaceId=.
func (h *ConnectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	remaining := services.RemoveConnection(h.store.Connections(r), workspaceID)
	if err := h.store.SaveConnections(w, r, remaining); err != nil {
		h.logger.Error("Failed to save connections", zap.Error(err))
		h.fail(w, http.StatusInternalServerError, "Failed to remove connection")
		return
	}

	// Mappings of a removed workspace are dropped with it.
	mappings := h.store.Mappings(r)
	if _, ok := mappings[workspaceID]; ok {
		delete(mappings, workspaceID)
		if err := h.store.SaveMappings(w, r, mappings); err != nil {
			h.logger.Warn("Failed to drop property mapping of removed workspace", zap.Error(err))
		}
	}

	if err := WriteJSON(w, http.StatusOK, Envelope{OK: true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Databases handles GET /api/notion/databases?workspaceId=.
func (h *ConnectionsHandler) Databases(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	conn, ok := services.FindConnection(h.store.Connections(r), workspaceID)
	if !ok {
		h.fail(w, http.StatusNotFound, "Workspace not found in your connections")
		return
	}

	databases, err := h.connections.ListDatabases(r.Context(), conn)
	if err != nil {
		h.logger.Warn("Failed to list databases",
			zap.String("workspace_id", workspaceID),
			zap.String("error", logging.SanitizeError(err)))
		h.fail(w, StatusForError(err), upstreamMessage(err, "Failed to list databases"))
		return
	}

	if err := WriteJSON(w, http.StatusOK, DatabasesResponse{OK: true, Databases: databases}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *ConnectionsHandler) fail(w http.ResponseWriter, status int, message string) {
	if err := ErrorResponse(w, status, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
