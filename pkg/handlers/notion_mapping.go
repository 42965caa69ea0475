package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/logging"
	"github.com/ekaya-inc/taskboard/pkg/models"
	"github.com/ekaya-inc/taskboard/pkg/services"
)

// MappingResponse returns the mapping of one workspace.
type MappingResponse struct {
	OK      bool                   `json:"ok"`
	Mapping models.PropertyMapping `json:"mapping"`
}

// MappingsResponse returns the mappings of every workspace.
type MappingsResponse struct {
	OK       bool              `json:"ok"`
	Mappings models.MappingSet `json:"mappings"`
}

// PutMappingRequest is the body of PUT /api/notion/property-mapping.
type PutMappingRequest struct {
	WorkspaceID string         `json:"workspaceId"`
	Mapping     map[string]any `json:"mapping"`
}

// PropertiesResponse lists the columns of a tasks database.
type PropertiesResponse struct {
	OK         bool                  `json:"ok"`
	Properties []models.PropertyInfo `json:"properties"`
}

// PropertyMappingHandler edits property mappings.
type PropertyMappingHandler struct {
	mappings services.PropertyMappingService
	store    BrowserStore
	logger   *zap.Logger
}

// NewPropertyMappingHandler creates a new property mapping handler.
func NewPropertyMappingHandler(mappings services.PropertyMappingService, store BrowserStore, logger *zap.Logger) *PropertyMappingHandler {
	return &PropertyMappingHandler{
		mappings: mappings,
		store:    store,
		logger:   logger,
	}
}

// RegisterRoutes registers the mapping routes on the given mux.
func (h *PropertyMappingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notion/property-mapping", h.Get)
	mux.HandleFunc("PUT /api/notion/property-mapping", h.Put)
	mux.HandleFunc("GET /api/notion/properties", h.Properties)
}

// Get handles GET /api/notion/property-mapping[?workspaceId=].
func (h *PropertyMappingHandler) Get(w http.ResponseWriter, r *http.Request) {
	mappings := h.store.Mappings(r)

	var response any
	if workspaceID := r.URL.Query().Get("workspaceId"); workspaceID != "" {
		response = MappingResponse{OK: true, Mapping: mappings.For(workspaceID)}
	} else {
		response = MappingsResponse{OK: true, Mappings: mappings}
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Put handles PUT /api/notion/property-mapping.
func (h *PropertyMappingHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req PutMappingRequest
	if !decodeBody(r, &req) || req.WorkspaceID == "" || req.Mapping == nil {
		h.fail(w, http.StatusBadRequest, "workspaceId and mapping are required")
		return
	}

	next, sanitized := h.mappings.Put(h.store.Mappings(r), req.WorkspaceID, req.Mapping)
	if err := h.store.SaveMappings(w, r, next); err != nil {
		h.logger.Error("Failed to save property mapping", zap.Error(err))
		status, message := saveFailure(err, tooManyMappingsMessage, "Failed to save property mapping")
		h.fail(w, status, message)
		return
	}

	if err := WriteJSON(w, http.StatusOK, MappingResponse{OK: true, Mapping: sanitized}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Properties handles GET /api/notion/properties?workspaceId=.
func (h *PropertyMappingHandler) Properties(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	props, err := h.mappings.Properties(r.Context(), h.store.Connections(r), workspaceID)
	if err != nil {
		status := StatusForError(err)
		if status == http.StatusNotFound {
			h.fail(w, status, "Workspace not found or missing tasks database")
			return
		}
		h.logger.Warn("Failed to fetch properties",
			zap.String("workspace_id", workspaceID),
			zap.String("error", logging.SanitizeError(err)))
		h.fail(w, status, upstreamMessage(err, "Failed to fetch properties"))
		return
	}

	if err := WriteJSON(w, http.StatusOK, PropertiesResponse{OK: true, Properties: props}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *PropertyMappingHandler) fail(w http.ResponseWriter, status int, message string) {
	if err := ErrorResponse(w, status, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
