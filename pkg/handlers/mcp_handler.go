package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/taskboard/pkg/auth"
	"github.com/ekaya-inc/taskboard/pkg/mcp"
	"github.com/ekaya-inc/taskboard/pkg/middleware"
)

// MCPHandler handles MCP protocol requests over HTTP.
type MCPHandler struct {
	httpServer http.Handler
	logger     *zap.Logger
}

// NewMCPHandler creates a new MCP handler from an MCP server.
func NewMCPHandler(mcpServer *mcp.Server, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{
		httpServer: mcpServer.Handler(),
		logger:     logger,
	}
}

// RegisterRoutes registers the /mcp endpoint. When managerAuth is non-nil the
// endpoint requires a manager token; nil leaves it open.
func (h *MCPHandler) RegisterRoutes(mux *http.ServeMux, managerAuth *auth.Middleware) {
	// 1. MCP request/response logging (innermost)
	// 2. Manager token check (when enabled)
	// 3. Method check (outermost, rejects non-POST before auth)
	var handler http.Handler = middleware.MCPRequestLogger(h.logger)(h.httpServer)
	if managerAuth != nil {
		handler = managerAuth.RequireManager(handler)
	}
	mux.Handle("/mcp", h.requirePOST(handler))
}

// requirePOST returns 405 Method Not Allowed for non-POST requests.
// MCP over HTTP Streaming requires POST for JSON-RPC requests.
func (h *MCPHandler) requirePOST(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
