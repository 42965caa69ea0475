package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ParseWorkspaceID extracts the workspaceId query parameter.
// Returns the trimmed id and true on success, or "" and false when it is
// missing (after writing an error response).
func ParseWorkspaceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	return requireQueryParam(w, r, "workspaceId", "workspaceId is required", logger)
}

// requireQueryParam is the internal helper that does the actual parsing work.
func requireQueryParam(w http.ResponseWriter, r *http.Request, name, errorMessage string, logger *zap.Logger) (string, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return value, true
}
