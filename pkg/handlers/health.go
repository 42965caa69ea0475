package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/config"
)

// PingResponse describes the running service and the features its
// configuration turns on. It never carries secrets.
type PingResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	Service         string `json:"service"`
	GoVersion       string `json:"go_version"`
	Hostname        string `json:"hostname"`
	Environment     string `json:"environment"`
	Shared          bool   `json:"shared_workspace"`
	AggregationMode string `json:"aggregation_mode"`
	ServerOAuthApp  bool   `json:"server_oauth_app"`
	ManagerRole     bool   `json:"manager_role"`
	MCP             bool   `json:"mcp"`
}

// HealthHandler serves the liveness and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, logger: logger}
}

// RegisterRoutes registers /health and /ping.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health answers "ok" while the process serves requests. It does not call
// Notion.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		h.logger.Warn("Failed to read hostname", zap.Error(err))
		hostname = "unknown"
	}

	response := PingResponse{
		Status:          "ok",
		Version:         h.cfg.Version,
		Service:         "taskboard",
		GoVersion:       runtime.Version(),
		Hostname:        hostname,
		Environment:     h.cfg.Env,
		Shared:          h.cfg.Shared.Connection() != nil,
		AggregationMode: h.cfg.Aggregation.Mode,
		ServerOAuthApp:  h.cfg.Notion.AppCredentials() != nil,
		ManagerRole:     h.cfg.ManagerSecret != "",
		MCP:             h.cfg.MCP.Enabled,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
