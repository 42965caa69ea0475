// Package mcp exposes the workload to agents over the Model Context Protocol.
package mcp

import (
	"net/http"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// ServerName is the implementation name reported to MCP clients.
const ServerName = "taskboard"

// Server is the taskboard MCP server. It records the tools added to it so
// startup can log what agents will see.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger

	mu    sync.Mutex
	tools []string
}

// NewServer creates the MCP server with tool capabilities. When audit is
// non-nil every tool call is logged through it.
func NewServer(version string, audit *AuditLogger, logger *zap.Logger) *Server {
	opts := []server.ServerOption{server.WithToolCapabilities(true)}
	if audit != nil {
		opts = append(opts, server.WithHooks(audit.Hooks()))
	}
	return &Server{
		mcp:    server.NewMCPServer(ServerName, version, opts...),
		logger: logger.Named("mcp"),
	}
}

// AddTool registers a tool. Server satisfies tools.Registrar.
func (s *Server) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mu.Lock()
	s.tools = append(s.tools, tool.Name)
	s.mu.Unlock()

	s.logger.Debug("Registering MCP tool", zap.String("tool", tool.Name))
	s.mcp.AddTool(tool, handler)
}

// ToolNames returns the registered tool names, sorted.
func (s *Server) ToolNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := append([]string(nil), s.tools...)
	sort.Strings(names)
	return names
}

// MCP returns the underlying mcp-go server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Handler returns the streamable-HTTP transport. It is stateless: every POST
// carries a complete JSON-RPC exchange and no session survives it.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}
